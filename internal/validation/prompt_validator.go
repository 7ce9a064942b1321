// Package validation checks prompt templates before they are stored.
//
// Templates may contain substitution variables in two forms:
//
//	{var_name}      single braces, content is exactly an identifier
//	{{ var_name }}  double braces, exactly one space on each side of the identifier
//
// Prompts whose name starts with "_" are protected: they are rendered by a
// single-brace templating call site and must provide {query_str} plus one of
// {context_str} or {context_msg}.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Rule identifies which validation rule rejected a prompt.
type Rule string

const (
	RuleRequiredField     Rule = "required_field"
	RuleDoubleBraceFormat Rule = "double_brace_format"
	RuleSingleBraceFormat Rule = "single_brace_format"
	RuleUnbalancedBraces  Rule = "unbalanced_braces"
	RuleProtectedDouble   Rule = "protected_double_brace"
	RuleProtectedQueryVar Rule = "protected_query_variable"
	RuleProtectedContext  Rule = "protected_context_variable"
)

// Reasons reported by ValidationError.Error.
const (
	ReasonNameRequired      = "name must not be empty"
	ReasonModelNameRequired = "model_name must not be empty"
	ReasonDoubleBraceFormat = "invalid double-brace variable format"
	ReasonSingleBraceFormat = "invalid single-brace variable format"
	ReasonUnbalancedBraces  = "unbalanced braces"
	ReasonProtectedDouble   = "protected prompts must not use double braces"
	ReasonMissingQueryVar   = "missing required variable query_str"
	ReasonMissingContextVar = "missing required context variable"
)

const (
	protectedPrefix       = "_"
	requiredQueryVariable = "query_str"
	doubleBraceExample    = "{{ var_name }}"
	singleBraceExample    = "{like_this}"
)

// requiredContextVariables lists the variables a protected prompt must contain at least one of.
var requiredContextVariables = []string{"context_str", "context_msg"}

var (
	doubleBracePattern = regexp.MustCompile(`\{\{(.*?)\}\}`)
	singleBracePattern = regexp.MustCompile(`\{([^{}]+)\}`)
	doubleBraceContent = regexp.MustCompile(`^ [a-zA-Z_][a-zA-Z0-9_]* $`)
	identifierPattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// ValidationError reports why a prompt was rejected. Nothing is persisted when it is returned.
type ValidationError struct {
	Rule   Rule
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// IsValidationError reports whether err (or anything it wraps) is a *ValidationError.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

type check func(name, prompt, modelName string) *ValidationError

// checks run in order; the first failure wins.
var checks = []check{
	checkRequiredFields,
	func(_, prompt, _ string) *ValidationError { return CheckDoubleBraceVariables(prompt) },
	func(_, prompt, _ string) *ValidationError { return CheckSingleBraceVariables(prompt) },
	func(_, prompt, _ string) *ValidationError { return CheckBraceBalance(prompt) },
	CheckProtectedName,
}

// Validate runs every rule against the submission and returns the first failure, or nil.
func Validate(name, prompt, modelName string) error {
	for _, c := range checks {
		if vErr := c(name, prompt, modelName); vErr != nil {
			return vErr
		}
	}
	return nil
}

func checkRequiredFields(name, _, modelName string) *ValidationError {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Rule: RuleRequiredField, Reason: ReasonNameRequired}
	}
	if strings.TrimSpace(modelName) == "" {
		return &ValidationError{Rule: RuleRequiredField, Reason: ReasonModelNameRequired}
	}
	return nil
}

// CheckDoubleBraceVariables requires every {{...}} to hold exactly " identifier ".
func CheckDoubleBraceVariables(prompt string) *ValidationError {
	for _, m := range doubleBracePattern.FindAllStringSubmatch(prompt, -1) {
		if !doubleBraceContent.MatchString(m[1]) {
			return &ValidationError{
				Rule:   RuleDoubleBraceFormat,
				Reason: ReasonDoubleBraceFormat,
				Detail: fmt.Sprintf("'{{%s}}', expected '%s'", m[1], doubleBraceExample),
			}
		}
	}
	return nil
}

// CheckSingleBraceVariables requires every standalone {...} to hold exactly an identifier.
func CheckSingleBraceVariables(prompt string) *ValidationError {
	for _, content := range singleBraceVariables(prompt) {
		if !identifierPattern.MatchString(content) {
			return &ValidationError{
				Rule:   RuleSingleBraceFormat,
				Reason: ReasonSingleBraceFormat,
				Detail: fmt.Sprintf("'{%s}', expected '%s'", content, singleBraceExample),
			}
		}
	}
	return nil
}

// singleBraceVariables returns the content of every {...} that is not part of a
// double-brace pair, i.e. not directly preceded by '{' nor directly followed by '}'.
func singleBraceVariables(prompt string) []string {
	var out []string
	for _, loc := range singleBracePattern.FindAllStringSubmatchIndex(prompt, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && prompt[start-1] == '{' {
			continue
		}
		if end < len(prompt) && prompt[end] == '}' {
			continue
		}
		out = append(out, prompt[loc[2]:loc[3]])
	}
	return out
}

// CheckBraceBalance scans the prompt twice: once for "{{"/"}}" tokens and once for
// single "{"/"}" characters. Each pass must balance on its own.
func CheckBraceBalance(prompt string) *ValidationError {
	if detail := balance(prompt, "{{", "}}"); detail != "" {
		return &ValidationError{Rule: RuleUnbalancedBraces, Reason: ReasonUnbalancedBraces, Detail: detail}
	}
	if detail := balance(prompt, "{", "}"); detail != "" {
		return &ValidationError{Rule: RuleUnbalancedBraces, Reason: ReasonUnbalancedBraces, Detail: detail}
	}
	return nil
}

// balance walks non-overlapping open/close tokens left to right and returns a
// description of the first imbalance, or "" when balanced.
func balance(s, open, close string) string {
	depth := 0
	for i := 0; i < len(s); {
		switch {
		case strings.HasPrefix(s[i:], open):
			depth++
			i += len(open)
		case strings.HasPrefix(s[i:], close):
			if depth == 0 {
				return fmt.Sprintf("unmatched closing '%s' at offset %d", close, i)
			}
			depth--
			i += len(close)
		default:
			i++
		}
	}
	if depth > 0 {
		return fmt.Sprintf("%d unmatched opening '%s'", depth, open)
	}
	return ""
}

// CheckProtectedName applies the extra rules for names starting with "_".
func CheckProtectedName(name, prompt, _ string) *ValidationError {
	if !strings.HasPrefix(name, protectedPrefix) {
		return nil
	}
	if strings.Contains(prompt, "{{") || strings.Contains(prompt, "}}") {
		return &ValidationError{Rule: RuleProtectedDouble, Reason: ReasonProtectedDouble, Detail: "use single braces '{ }' only"}
	}

	vars := make(map[string]struct{})
	for _, v := range singleBraceVariables(prompt) {
		vars[v] = struct{}{}
	}
	if _, ok := vars[requiredQueryVariable]; !ok {
		return &ValidationError{Rule: RuleProtectedQueryVar, Reason: ReasonMissingQueryVar}
	}
	for _, v := range requiredContextVariables {
		if _, ok := vars[v]; ok {
			return nil
		}
	}
	return &ValidationError{
		Rule:   RuleProtectedContext,
		Reason: ReasonMissingContextVar,
		Detail: fmt.Sprintf("one of %s", strings.Join(requiredContextVariables, ", ")),
	}
}
