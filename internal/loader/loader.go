// Package loader uploads failsafe prompt templates (*.jinja files) to a running prompt-service.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"prompt-service/internal/models"
)

const (
	TemplateExt      = ".jinja"
	DefaultModelName = "gpt-4o"
)

// ErrNoTemplates is returned when a directory holds no matching templates.
var ErrNoTemplates = errors.New("no failsafe prompts found")

// Template is one prompt file. Name is the file name up to the first dot.
type Template struct {
	Name    string
	File    string
	Content string
}

// ReadTemplates reads every *.jinja file in dir, sorted by name. When only is
// set, just the template whose file name or prompt name equals it is read.
func ReadTemplates(dir, only string) ([]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template dir %s: %w", dir, err)
	}

	var templates []Template
	for _, entry := range entries {
		file := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(file, TemplateExt) {
			continue
		}
		name, _, _ := strings.Cut(file, ".")
		if only != "" && file != only && name != only {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", file, err)
		}
		templates = append(templates, Template{Name: name, File: file, Content: string(content)})
	}

	if len(templates) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTemplates, dir)
	}
	sort.Slice(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

// Client posts prompts to <baseURL>/prompt.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL for prompt service: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("PromptLoader"),
	}, nil
}

// Post creates a new prompt version. Non-2xx responses are returned as errors carrying the body.
func (c *Client) Post(ctx context.Context, req models.PromptCreateRequest) (*models.Prompt, error) {
	postURL := c.baseURL + "/prompt"
	log := c.logger.With(zap.String("url", postURL), zap.String("name", req.Name), zap.String("model", req.ModelName))

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prompt: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Error("HTTP request to prompt-service failed", zap.Error(err))
		return nil, fmt.Errorf("request to prompt service failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		log.Warn("prompt-service rejected prompt", zap.Int("status", httpResp.StatusCode), zap.ByteString("body", respBody))
		return nil, fmt.Errorf("prompt service returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var created models.Prompt
	if err := json.Unmarshal(respBody, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created prompt: %w", err)
	}
	log.Info("Loaded prompt", zap.Int("version", created.Version))
	return &created, nil
}

// LoadAll posts every template under modelName and stops at the first failure.
// It returns the prompts created before that point.
func (c *Client) LoadAll(ctx context.Context, templates []Template, modelName string) ([]*models.Prompt, error) {
	if modelName == "" {
		modelName = DefaultModelName
	}
	created := make([]*models.Prompt, 0, len(templates))
	for _, tpl := range templates {
		p, err := c.Post(ctx, models.PromptCreateRequest{Name: tpl.Name, Prompt: tpl.Content, ModelName: modelName})
		if err != nil {
			return created, fmt.Errorf("failed to load %s: %w", tpl.File, err)
		}
		created = append(created, p)
	}
	return created, nil
}
