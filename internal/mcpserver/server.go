// Package mcpserver exposes the prompt registry as MCP tools and resources.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"prompt-service/internal/models"
	"prompt-service/internal/service"
)

const (
	ServerName = "prompt-service"

	promptURIScheme   = "prompt://"
	promptURITemplate = promptURIScheme + "{model_name}/{name}"
)

type promptKeyInput struct {
	Name      string `json:"name" jsonschema:"prompt name"`
	ModelName string `json:"model_name" jsonschema:"target model, e.g. gpt-4o"`
}

type getPromptInput struct {
	Name      string `json:"name" jsonschema:"prompt name"`
	ModelName string `json:"model_name" jsonschema:"target model, e.g. gpt-4o"`
	Version   int    `json:"version,omitempty" jsonschema:"exact version; omit or 0 for the latest"`
}

type createPromptInput struct {
	Name      string `json:"name" jsonschema:"prompt name; names starting with _ are protected"`
	ModelName string `json:"model_name" jsonschema:"target model, e.g. gpt-4o"`
	Prompt    string `json:"prompt" jsonschema:"template text"`
}

type deletePromptInput struct {
	Name      string `json:"name" jsonschema:"prompt name"`
	ModelName string `json:"model_name" jsonschema:"target model"`
	Version   int    `json:"version" jsonschema:"version to delete"`
}

type listPromptsInput struct{}

type tools struct {
	service service.PromptService
	logger  *zap.Logger
}

// New builds an MCP server whose tools forward to svc.
func New(svc service.PromptService, version string, logger *zap.Logger) *mcp.Server {
	t := &tools{service: svc, logger: logger.Named("MCPServer")}

	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_prompts",
		Description: "List the latest version of every prompt.",
	}, t.listPrompts)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_prompt",
		Description: "Get a prompt by name and model. Returns the latest version unless version is given.",
	}, t.getPrompt)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_prompt_versions",
		Description: "List every version of a prompt, newest first.",
	}, t.getPromptVersions)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_prompt_version",
		Description: "Validate a prompt template and store it as the next version.",
	}, t.createPromptVersion)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "delete_prompt_version",
		Description: "Delete one exact prompt version.",
	}, t.deletePromptVersion)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "prompt",
		Title:       "Latest prompt text",
		URITemplate: promptURITemplate,
		MIMEType:    "text/plain",
	}, t.readPrompt)

	return server
}

func (t *tools) listPrompts(ctx context.Context, _ *mcp.CallToolRequest, _ listPromptsInput) (*mcp.CallToolResult, any, error) {
	prompts, err := t.service.ListLatest(ctx)
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(models.ListPromptsResponse{Prompts: prompts})
}

func (t *tools) getPrompt(ctx context.Context, _ *mcp.CallToolRequest, in getPromptInput) (*mcp.CallToolResult, any, error) {
	var (
		prompt *models.Prompt
		err    error
	)
	if in.Version > 0 {
		prompt, err = t.service.Get(ctx, in.Name, in.ModelName, in.Version)
	} else {
		prompt, err = t.service.GetLatest(ctx, in.Name, in.ModelName)
	}
	if err != nil {
		return nil, nil, err
	}
	return jsonResult(prompt)
}

func (t *tools) getPromptVersions(ctx context.Context, _ *mcp.CallToolRequest, in promptKeyInput) (*mcp.CallToolResult, any, error) {
	prompts, err := t.service.GetAllVersions(ctx, in.Name, in.ModelName)
	if err != nil {
		return nil, nil, err
	}
	if len(prompts) == 0 {
		return nil, nil, models.ErrPromptNotFound
	}
	return jsonResult(prompts)
}

func (t *tools) createPromptVersion(ctx context.Context, _ *mcp.CallToolRequest, in createPromptInput) (*mcp.CallToolResult, any, error) {
	prompt, err := t.service.CreateNewVersion(ctx, models.PromptCreateRequest{
		Name:      in.Name,
		ModelName: in.ModelName,
		Prompt:    in.Prompt,
	})
	if err != nil {
		t.logger.Info("create_prompt_version failed", zap.String("name", in.Name), zap.String("model", in.ModelName), zap.Error(err))
		return nil, nil, err
	}
	return jsonResult(prompt)
}

func (t *tools) deletePromptVersion(ctx context.Context, _ *mcp.CallToolRequest, in deletePromptInput) (*mcp.CallToolResult, any, error) {
	deleted, err := t.service.Delete(ctx, in.Name, in.ModelName, in.Version)
	if err != nil {
		return nil, nil, err
	}
	if !deleted {
		return nil, nil, models.ErrPromptNotFound
	}
	return jsonResult(models.DeleteResponse{Message: map[string]bool{"deleted": true}})
}

func (t *tools) readPrompt(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	modelName, name, err := parsePromptURI(uri)
	if err != nil {
		return nil, err
	}

	prompt, err := t.service.GetLatest(ctx, name, modelName)
	if err != nil {
		if errors.Is(err, models.ErrPromptNotFound) {
			return nil, mcp.ResourceNotFoundError(uri)
		}
		return nil, err
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     prompt.Prompt,
		}},
	}, nil
}

// parsePromptURI splits prompt://<model_name>/<name>. The model part may itself contain '/'.
func parsePromptURI(uri string) (modelName, name string, err error) {
	rest, ok := strings.CutPrefix(uri, promptURIScheme)
	if !ok {
		return "", "", fmt.Errorf("unsupported prompt uri %q", uri)
	}
	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("prompt uri %q must look like %s", uri, promptURITemplate)
	}
	if modelName, err = url.PathUnescape(rest[:i]); err != nil {
		return "", "", fmt.Errorf("invalid model name in %q: %w", uri, err)
	}
	if name, err = url.PathUnescape(rest[i+1:]); err != nil {
		return "", "", fmt.Errorf("invalid prompt name in %q: %w", uri, err)
	}
	return modelName, name, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(body)}}}, nil, nil
}

// ServeHTTP serves the streamable HTTP transport on addr until ctx is cancelled.
func ServeHTTP(ctx context.Context, server *mcp.Server, addr string, logger *zap.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting MCP HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mcp http server shutdown: %w", err)
	}
	return nil
}

// ServeStdio runs the server over stdin/stdout until the client disconnects or ctx is cancelled.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
