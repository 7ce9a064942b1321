package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireRule(t *testing.T, err error, rule Rule) {
	t.Helper()
	require.Error(t, err)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr), "expected *ValidationError, got %T", err)
	assert.Equal(t, rule, vErr.Rule, "unexpected rule, error: %v", err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		promptName string
		prompt     string
		wantRule   Rule // "" means accepted
	}{
		{"plain text", "x", "hello world", ""},
		{"empty prompt", "x", "", ""},
		{"double brace well formed", "x", "hello {{ name }}", ""},
		{"double brace on protected name", "_x", "hello {{ name }}", RuleProtectedDouble},
		{"double brace no spaces", "x", "{{name}}", RuleDoubleBraceFormat},
		{"double brace missing trailing space", "x", "{{ name}}", RuleDoubleBraceFormat},
		{"double brace missing leading space", "x", "{{name }}", RuleDoubleBraceFormat},
		{"double brace two spaces", "x", "{{  name }}", RuleDoubleBraceFormat},
		{"double brace bad identifier", "x", "{{ 1name }}", RuleDoubleBraceFormat},
		{"double brace empty", "x", "{{}}", RuleDoubleBraceFormat},
		{"single brace good", "x", "{good_name}", ""},
		{"single brace leading digit", "x", "{1bad}", RuleSingleBraceFormat},
		{"single brace with spaces", "x", "{ a } { b }", RuleSingleBraceFormat},
		{"single brace dash", "x", "{bad-name}", RuleSingleBraceFormat},
		{"single and double mixed", "x", "Hi {user}, see {{ item }}", ""},
		{"unmatched single closing brace", "x", "{{ a }} }", RuleUnbalancedBraces},
		{"unmatched single opening brace", "x", "{ a", RuleUnbalancedBraces},
		{"unmatched double opening brace", "x", "{{ a }} {{", RuleUnbalancedBraces},
		{"protected accepted with context_str", "_sys", "Answer {query_str} using {context_str}", ""},
		{"protected accepted with context_msg", "_sys", "Answer {query_str} using {context_msg}", ""},
		{"protected missing context", "_sys", "Answer {query_str}", RuleProtectedContext},
		{"protected missing query", "_sys", "Answer {context_str}", RuleProtectedQueryVar},
		{"protected bare words do not count", "_sys", "query_str context_str", RuleProtectedQueryVar},
		{"protected closing double brace only", "_sys", "{query_str} {context_str}}}", RuleUnbalancedBraces},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.promptName, tt.prompt, "m")
			if tt.wantRule == "" {
				assert.NoError(t, err)
				return
			}
			requireRule(t, err, tt.wantRule)
		})
	}
}

func TestValidate_ReasonText(t *testing.T) {
	err := Validate("x", "{{name}}", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ReasonDoubleBraceFormat)
	assert.Contains(t, err.Error(), "{{name}}")

	err = Validate("x", "{1bad}", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ReasonSingleBraceFormat)

	err = Validate("_sys", "Answer {query_str}", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ReasonMissingContextVar)
}

func TestValidate_RequiredFields(t *testing.T) {
	requireRule(t, Validate("", "hello", "m"), RuleRequiredField)
	requireRule(t, Validate("   ", "hello", "m"), RuleRequiredField)
	requireRule(t, Validate("x", "hello", ""), RuleRequiredField)
}

func TestValidate_RuleOrder(t *testing.T) {
	// Malformed double braces are reported before the protected-name rules.
	requireRule(t, Validate("_sys", "{{bad}}", "m"), RuleDoubleBraceFormat)
	// Single-brace format is checked before balance.
	requireRule(t, Validate("x", "{1bad} }", "m"), RuleSingleBraceFormat)
}

func TestCheckBraceBalance(t *testing.T) {
	assert.Nil(t, CheckBraceBalance("{ a } { b }"))
	assert.Nil(t, CheckBraceBalance("{{ a }} {b}"))
	assert.NotNil(t, CheckBraceBalance("{{ a }} }"))
	assert.NotNil(t, CheckBraceBalance("{ a"))
	assert.NotNil(t, CheckBraceBalance("} {"))

	// Two independent passes: this string balances in both even though the
	// nesting of single and double tokens is interleaved.
	assert.Nil(t, CheckBraceBalance("{ {{ } }}"))
}

func TestSingleBraceVariables(t *testing.T) {
	vars := singleBraceVariables("a {x} {{ y }} {z}} {{w} {v}")
	assert.Equal(t, []string{"x", "v"}, vars)
}

func TestIsValidationError(t *testing.T) {
	err := Validate("x", "{1bad}", "m")
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsValidationError(errors.New("other")))
	assert.False(t, IsValidationError(nil))
}
