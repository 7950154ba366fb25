package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"task-tracker/internal/handlers"
	"task-tracker/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResponder struct {
	message string
	titles  []string
}

func (m *MockResponder) Reply(ctx context.Context, message string, titles []string) string {
	m.message = message
	m.titles = titles
	return "reply to " + message
}

func setupChatHandler(userID string) (*MockTaskService, *MockResponder, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	tasks := &MockTaskService{}
	responder := &MockResponder{}
	handler := handlers.NewChatHandler(tasks, responder)

	router := gin.New()
	router.POST("/api/chat", withUser(userID), handler.Chat)
	return tasks, responder, router
}

func TestChatUsesCallerTaskTitles(t *testing.T) {
	tasks, responder, router := setupChatHandler("alice")
	tasks.tasks = []models.Task{
		{ID: 1, OwnerID: "alice", Title: "Buy milk"},
		{ID: 2, OwnerID: "bob", Title: "Secret plan"},
		{ID: 3, OwnerID: "alice", Title: "Write report"},
	}

	w := perform(router, http.MethodPost, "/api/chat?user_message=what+first%3F", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"response":"reply to what first?"}`, w.Body.String())
	assert.Equal(t, []string{"Buy milk", "Write report"}, responder.titles)
}

func TestChatRequiresMessage(t *testing.T) {
	_, responder, router := setupChatHandler("alice")

	w := perform(router, http.MethodPost, "/api/chat", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, responder.message)
}

func TestChatTaskLookupFailure(t *testing.T) {
	tasks, responder, router := setupChatHandler("alice")
	tasks.err = errors.New("database is locked")

	w := perform(router, http.MethodPost, "/api/chat?user_message=hi", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, responder.message)
}
