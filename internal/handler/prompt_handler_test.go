package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"prompt-service/internal/database"
	"prompt-service/internal/interfaces"
	"prompt-service/internal/messaging"
	"prompt-service/internal/models"
	"prompt-service/internal/service"
)

func setupRouter(t *testing.T, repo interfaces.PromptRepository, metrics bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.NewPromptService(service.Config{}, repo, nil, messaging.NoopPromptPublisher{}, zap.NewNop())
	return NewRouter(RouterConfig{EnableMetrics: metrics}, NewPromptHandler(svc, zap.NewNop()), zap.NewNop())
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestCreateAndRead(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), false)
	body := models.PromptCreateRequest{Name: "greet", ModelName: "gpt-4o", Prompt: "hello {{ name }}"}

	w := doJSON(t, r, http.MethodPost, "/api/prompt", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Prompt](t, w)
	assert.Equal(t, 1, created.Version)
	assert.Equal(t, "gpt-4o", created.ModelName)

	w = doJSON(t, r, http.MethodPost, "/api/prompt", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, decode[models.Prompt](t, w).Version)

	w = doJSON(t, r, http.MethodGet, "/api/prompt/latest/greet/gpt-4o", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, decode[models.Prompt](t, w).Version)

	w = doJSON(t, r, http.MethodGet, "/api/prompt/greet/gpt-4o/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[models.Prompt](t, w).ID)

	w = doJSON(t, r, http.MethodGet, "/api/prompt/versions/greet/gpt-4o", nil)
	require.Equal(t, http.StatusOK, w.Code)
	versions := decode[[]models.Prompt](t, w)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)

	w = doJSON(t, r, http.MethodGet, "/api/prompt/prompts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.ListPromptsResponse](t, w)
	require.Len(t, list.Prompts, 1)
	assert.Equal(t, 2, list.Prompts[0].Version)
}

func TestRecordJSONShape(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), false)
	w := doJSON(t, r, http.MethodPost, "/api/prompt", models.PromptCreateRequest{Name: "a", ModelName: "m", Prompt: "x"})
	require.Equal(t, http.StatusCreated, w.Code)

	raw := decode[map[string]any](t, w)
	for _, key := range []string{"id", "name", "prompt", "model_name", "version", "last_updated"} {
		assert.Contains(t, raw, key)
	}
}

func TestCreate_Errors(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), false)

	w := doJSON(t, r, http.MethodPost, "/api/prompt", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/prompt", models.PromptCreateRequest{Name: "x", ModelName: "m", Prompt: "{{name}}"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[models.ErrorResponse](t, w).Error, "invalid double-brace variable format")

	w = doJSON(t, r, http.MethodPost, "/api/prompt", models.PromptCreateRequest{Name: "_sys", ModelName: "m", Prompt: "Answer {query_str}"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode[models.ErrorResponse](t, w).Error, "missing required context variable")
}

func TestCreate_EmptyPromptAccepted(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), false)

	w := doJSON(t, r, http.MethodPost, "/api/prompt", map[string]string{"name": "blank", "model_name": "m", "prompt": ""})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Prompt](t, w)
	assert.Equal(t, 1, created.Version)
	assert.Empty(t, created.Prompt)

	// Protected names still go through the validator.
	w = doJSON(t, r, http.MethodPost, "/api/prompt", map[string]string{"name": "_sys", "model_name": "m", "prompt": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

type conflictRepo struct {
	interfaces.PromptRepository
}

func (conflictRepo) Insert(context.Context, *models.Prompt) error { return models.ErrVersionConflict }

func TestCreate_ConflictExhausted(t *testing.T) {
	r := setupRouter(t, conflictRepo{database.NewMemoryPromptRepository()}, false)
	w := doJSON(t, r, http.MethodPost, "/api/prompt", models.PromptCreateRequest{Name: "a", ModelName: "m", Prompt: "x"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNotFound(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), false)

	for _, path := range []string{
		"/api/prompt/latest/none/m",
		"/api/prompt/none/m/1",
		"/api/prompt/versions/none/m",
	} {
		w := doJSON(t, r, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "prompt not found", decode[models.ErrorResponse](t, w).Error)
	}

	w := doJSON(t, r, http.MethodGet, "/api/prompt/none/m/zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), false)
	create := models.PromptCreateRequest{Name: "greet", ModelName: "m", Prompt: "hi"}
	require.Equal(t, http.StatusCreated, doJSON(t, r, http.MethodPost, "/api/prompt", create).Code)
	require.Equal(t, http.StatusCreated, doJSON(t, r, http.MethodPost, "/api/prompt", create).Code)

	del := models.PromptDeleteRequest{Name: "greet", ModelName: "m", Version: 1}
	w := doJSON(t, r, http.MethodDelete, "/api/prompt", del)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"deleted": true}, decode[models.DeleteResponse](t, w).Message)

	w = doJSON(t, r, http.MethodDelete, "/api/prompt", del)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/prompt", map[string]any{"name": "greet", "model_name": "m", "version": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/prompt/model/m", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/api/prompt/model/m", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t, database.NewMemoryPromptRepository(), true)

	w := doJSON(t, r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "prompt_versions_created_total")
}
