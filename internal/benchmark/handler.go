package benchmark

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"justice-backend/internal/shared/server/respond"
	"justice-backend/internal/workflow"
)

// Handler exposes benchmark tasks over HTTP.
type Handler struct {
	Runner *Runner
}

// NewHandler constructs a Handler.
func NewHandler(runner *Runner) *Handler {
	return &Handler{Runner: runner}
}

// RegisterRoutes attaches benchmark routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/benchmark/run", h.run)
	rg.GET("/benchmark", h.list)
	rg.GET("/benchmark/:id", h.get)
}

type runRequest struct {
	Iterations int `json:"iterations"`
}

func (h *Handler) run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	task, err := h.Runner.Start(c.Request.Context(), req.Iterations)
	if err != nil {
		if errors.Is(err, ErrInvalidIterations) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start benchmark", nil)
		return
	}
	respond.JSON(c, http.StatusAccepted, task)
}

func (h *Handler) list(c *gin.Context) {
	tasks, err := h.Runner.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list tasks", nil)
		return
	}
	respond.OK(c, gin.H{"tasks": tasks})
}

func (h *Handler) get(c *gin.Context) {
	task, err := h.Runner.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, workflow.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "task not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch task", nil)
		}
		return
	}
	respond.OK(c, task)
}
