package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"task-tracker/internal/models"

	"github.com/gofrs/uuid"
)

func TestTask_OwnedBy(t *testing.T) {
	task := models.Task{ID: 1, OwnerID: "u1", Title: "Buy milk"}

	if !task.OwnedBy("u1") {
		t.Error("Expected task to be owned by u1")
	}

	if task.OwnedBy("u2") {
		t.Error("Expected task not to be owned by u2")
	}

	if task.OwnedBy("") {
		t.Error("Expected empty identity never to own a task")
	}
}

func TestTask_JSONShape(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	task := models.Task{
		ID:        1,
		OwnerID:   "u1",
		Title:     "Buy milk",
		CreatedAt: now,
		UpdatedAt: now,
	}

	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("Failed to marshal task: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal task: %v", err)
	}

	for _, key := range []string{"id", "owner_id", "title", "description", "completed", "created_at", "updated_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected key %q in task JSON", key)
		}
	}

	if fields["description"] != "" {
		t.Errorf("Expected empty description, got %v", fields["description"])
	}

	if fields["completed"] != false {
		t.Errorf("Expected completed false, got %v", fields["completed"])
	}
}

func TestUser_PasswordNeverSerialized(t *testing.T) {
	user := models.User{
		ID:       uuid.Must(uuid.NewV4()).String(),
		Email:    "user@example.com",
		Name:     "Test User",
		Password: "$2a$10$hash",
	}

	data, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("Failed to marshal user: %v", err)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Failed to unmarshal user: %v", err)
	}

	if _, ok := fields["password"]; ok {
		t.Error("Password hash must not appear in user JSON")
	}

	if fields["email"] != "user@example.com" {
		t.Errorf("Expected email 'user@example.com', got %v", fields["email"])
	}
}
