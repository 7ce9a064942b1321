package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prompt-service/internal/models"
	"prompt-service/internal/service"
	"prompt-service/internal/validation"
)

// PromptHandler exposes PromptService over HTTP.
type PromptHandler struct {
	service service.PromptService
	logger  *zap.Logger
}

func NewPromptHandler(promptService service.PromptService, logger *zap.Logger) *PromptHandler {
	return &PromptHandler{
		service: promptService,
		logger:  logger.Named("PromptHandler"),
	}
}

// RegisterRoutes mounts the prompt API on rg (normally the /api group).
func (h *PromptHandler) RegisterRoutes(rg gin.IRouter) {
	prompts := rg.Group("/prompt")
	{
		prompts.GET("/prompts", h.listLatest)
		prompts.POST("", h.create)
		prompts.GET("/versions/:name/:model", h.listVersions)
		prompts.GET("/latest/:name/:model", h.getLatest)
		prompts.GET("/:name/:model/:version", h.get)
		prompts.DELETE("", h.delete)
		prompts.DELETE("/model/:model", h.deleteModel)
	}
}

func (h *PromptHandler) listLatest(c *gin.Context) {
	prompts, err := h.service.ListLatest(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ListPromptsResponse{Prompts: prompts})
}

func (h *PromptHandler) create(c *gin.Context) {
	var req models.PromptCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	prompt, err := h.service.CreateNewVersion(c.Request.Context(), req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, prompt)
}

func (h *PromptHandler) listVersions(c *gin.Context) {
	name, model := c.Param("name"), c.Param("model")
	prompts, err := h.service.GetAllVersions(c.Request.Context(), name, model)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if len(prompts) == 0 {
		h.handleServiceError(c, models.ErrPromptNotFound)
		return
	}
	c.JSON(http.StatusOK, prompts)
}

func (h *PromptHandler) getLatest(c *gin.Context) {
	prompt, err := h.service.GetLatest(c.Request.Context(), c.Param("name"), c.Param("model"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (h *PromptHandler) get(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "version must be a positive integer"})
		return
	}

	prompt, err := h.service.Get(c.Request.Context(), c.Param("name"), c.Param("model"), version)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, prompt)
}

func (h *PromptHandler) delete(c *gin.Context) {
	var req models.PromptDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	deleted, err := h.service.Delete(c.Request.Context(), req.Name, req.ModelName, req.Version)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if !deleted {
		h.handleServiceError(c, models.ErrPromptNotFound)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Message: map[string]bool{"deleted": true}})
}

func (h *PromptHandler) deleteModel(c *gin.Context) {
	deleted, err := h.service.DeleteAllForModel(c.Request.Context(), c.Param("model"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if !deleted {
		h.handleServiceError(c, models.ErrPromptNotFound)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Message: map[string]bool{"deleted": true}})
}

func (h *PromptHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case validation.IsValidationError(err):
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrPromptNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.ErrPromptNotFound.Error()})
	case errors.Is(err, models.ErrVersionConflict):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "could not allocate a prompt version, retry the request"})
	default:
		h.logger.Error("Prompt request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: models.ErrInternalServer.Error()})
	}
}
