package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"plantpal-backend/internal/task/domain"
	"plantpal-backend/internal/task/store"
	"plantpal-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
	quickLimit  func() int
}

// NewTaskHandler creates a new TaskHandler. quickLimit supplies the quick
// view size when the request does not set one.
func NewTaskHandler(taskUsecase usecase.TaskUsecase, quickLimit func() int) *TaskHandler {
	if quickLimit == nil {
		quickLimit = func() int { return store.DefaultQuickLimit }
	}
	return &TaskHandler{
		taskUsecase: taskUsecase,
		quickLimit:  quickLimit,
	}
}

// AdoptSuggestionRequest is the body of POST /api/suggestions/:id/adopt
type AdoptSuggestionRequest struct {
	Category domain.Category    `json:"category_type"`
	IconRef  string             `json:"icon_ref"`
	Points   *int               `json:"points"`
	Detail   *domain.TaskDetail `json:"detail"`
}

// GetTasks returns one tab of the user's tasks
// GET /api/tasks?tab=active
func (h *TaskHandler) GetTasks(c *gin.Context) {
	tab, ok := store.ParseTab(c.Query("tab"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tab must be favorite, active or completed"})
		return
	}

	view, err := h.taskUsecase.State(c.Request.Context(), c.GetString("userID"), tab)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RefreshTasks re-fetches the user's tasks
// POST /api/tasks/refresh
func (h *TaskHandler) RefreshTasks(c *gin.Context) {
	view, err := h.taskUsecase.Refresh(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetQuickTasks returns the dashboard quick view
// GET /api/tasks/quick?category=daily&limit=3
func (h *TaskHandler) GetQuickTasks(c *gin.Context) {
	category := domain.Category(c.DefaultQuery("category", string(domain.CategoryDaily)))
	limit := h.quickLimit()
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a number"})
			return
		}
		limit = parsed
	}

	tasks, err := h.taskUsecase.QuickTasks(c.Request.Context(), c.GetString("userID"), category, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// GetSummary returns task counts and earned points
// GET /api/tasks/summary
func (h *TaskHandler) GetSummary(c *gin.Context) {
	summary, err := h.taskUsecase.Summary(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CreateTask creates a task from a draft
// POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var draft domain.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.CreateTask(c.Request.Context(), c.GetString("userID"), draft)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial update
// PATCH /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var fields domain.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.UpdateTask(c.Request.Context(), c.GetString("userID"), c.Param("id"), fields)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task and its details
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskUsecase.DeleteTask(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// ToggleFavorite flips the favorite flag
// POST /api/tasks/:id/favorite
func (h *TaskHandler) ToggleFavorite(c *gin.Context) {
	task, err := h.taskUsecase.ToggleFavorite(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": task != nil, "task": task})
}

// CompleteTask marks a task completed
// POST /api/tasks/:id/complete
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	task, err := h.taskUsecase.MarkCompleted(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// SkipTask marks a task skipped
// POST /api/tasks/:id/skip
func (h *TaskHandler) SkipTask(c *gin.Context) {
	task, err := h.taskUsecase.SkipTask(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetSuggestions lists task templates, optionally searched by title
// GET /api/suggestions?q=water
func (h *TaskHandler) GetSuggestions(c *gin.Context) {
	suggestions, err := h.taskUsecase.Suggestions(c.Request.Context(), c.GetString("userID"), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// AdoptSuggestion creates a task titled after a template
// POST /api/suggestions/:id/adopt
func (h *TaskHandler) AdoptSuggestion(c *gin.Context) {
	var req AdoptSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.CreateFromSuggestion(c.Request.Context(), c.GetString("userID"), c.Param("id"), usecase.AdoptRequest{
		Category: req.Category,
		IconRef:  req.IconRef,
		Points:   req.Points,
		Detail:   req.Detail,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// EndSession drops the user's in-memory task state
// POST /api/session/end
func (h *TaskHandler) EndSession(c *gin.Context) {
	closed := h.taskUsecase.EndSession(c.GetString("userID"))
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}

func respondError(c *gin.Context, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusRequestTimeout, gin.H{"error": err.Error()})
		return
	}

	e := domain.AsError(err)
	status := http.StatusInternalServerError
	switch e.Kind {
	case domain.KindValidation:
		status = http.StatusBadRequest
	case domain.KindUnauthenticated:
		status = http.StatusUnauthorized
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindNetwork:
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": e.Message, "kind": e.Kind})
}
