package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"task-tracker/internal/logger"
	"task-tracker/internal/middleware"
	"task-tracker/internal/models"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// OperationRecorder counts task operations by outcome.
type OperationRecorder interface {
	RecordTaskOperation(operation, result string)
}

type TaskHandler struct {
	taskService services.TaskService
	metrics     OperationRecorder
}

func NewTaskHandler(taskService services.TaskService, metrics OperationRecorder) *TaskHandler {
	return &TaskHandler{taskService: taskService, metrics: metrics}
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	h.record("list", err)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(c)

	task, err := h.taskService.GetTask(c.Request.Context(), userID, id)
	h.record("get", err)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	userID, _ := middleware.UserID(c)

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, req.Title, req.Description)
	h.record("create", err)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	userID, _ := middleware.UserID(c)

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, id, services.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	h.record("update", err)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ToggleComplete(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(c)

	task, err := h.taskService.ToggleComplete(c.Request.Context(), userID, id)
	h.record("toggle", err)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	userID, _ := middleware.UserID(c)

	err := h.taskService.DeleteTask(c.Request.Context(), userID, id)
	h.record("delete", err)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) record(operation string, err error) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordTaskOperation(operation, operationResult(err))
}

func operationResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, services.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, services.ErrTaskNotFound):
		return "not_found"
	case errors.Is(err, services.ErrForbidden):
		return "forbidden"
	case errors.Is(err, services.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

func taskID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return 0, false
	}
	return uint(id), true
}

func handleTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated", "message": "Invalid token"})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("task request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}

func taskTitles(tasks []models.Task) []string {
	titles := make([]string, 0, len(tasks))
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	return titles
}
