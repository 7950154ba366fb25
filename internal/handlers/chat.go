package handlers

import (
	"context"
	"net/http"
	"strings"

	"task-tracker/internal/middleware"
	"task-tracker/internal/services"

	"github.com/gin-gonic/gin"
)

// Responder answers a chat message given the caller's task titles. It never
// fails; upstream problems are reported inside the reply text.
type Responder interface {
	Reply(ctx context.Context, message string, titles []string) string
}

type ChatHandler struct {
	taskService services.TaskService
	responder   Responder
}

func NewChatHandler(taskService services.TaskService, responder Responder) *ChatHandler {
	return &ChatHandler{taskService: taskService, responder: responder}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	message := strings.TrimSpace(c.Query("user_message"))
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_message is required"})
		return
	}
	userID, _ := middleware.UserID(c)

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	reply := h.responder.Reply(c.Request.Context(), message, taskTitles(tasks))
	c.JSON(http.StatusOK, gin.H{"response": reply})
}
