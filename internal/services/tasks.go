package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"task-tracker/internal/models"

	"gorm.io/gorm"
)

// TaskPatch carries the fields of an update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

// TaskService is the ownership-scoped access layer over the tasks table.
// Every method expects an identity already verified by a TokenVerifier.
type TaskService interface {
	ListTasks(ctx context.Context, userID string) ([]models.Task, error)
	GetTask(ctx context.Context, userID string, id uint) (models.Task, error)
	CreateTask(ctx context.Context, userID, title, description string) (models.Task, error)
	UpdateTask(ctx context.Context, userID string, id uint, patch TaskPatch) (models.Task, error)
	ToggleComplete(ctx context.Context, userID string, id uint) (models.Task, error)
	DeleteTask(ctx context.Context, userID string, id uint) error
}

type TaskServiceImpl struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTaskService(db *gorm.DB) *TaskServiceImpl {
	return &TaskServiceImpl{
		db: db,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock replaces the time source used for created_at and updated_at.
func (s *TaskServiceImpl) WithClock(now func() time.Time) *TaskServiceImpl {
	s.now = now
	return s
}

// authorize is the ownership gate shared by the storage path and the cache path.
func authorize(task models.Task, userID string) error {
	if !task.OwnedBy(userID) {
		return ErrForbidden
	}
	return nil
}

// loadAuthorized fetches a task and applies the ownership gate. A missing row
// is always ErrTaskNotFound, never ErrForbidden.
func loadAuthorized(tx *gorm.DB, userID string, id uint) (models.Task, error) {
	var task models.Task
	if err := tx.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("load task %d: %w", id, err)
	}

	if err := authorize(task, userID); err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func requireIdentity(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrValidation)
	}
	return title, nil
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, userID string, id uint) (models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return models.Task{}, err
	}

	return loadAuthorized(s.db.WithContext(ctx), userID, id)
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, userID, title, description string) (models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return models.Task{}, err
	}

	title, err := validateTitle(title)
	if err != nil {
		return models.Task{}, err
	}

	now := s.now()
	task := models.Task{
		OwnerID:     userID,
		Title:       title,
		Description: description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&task).Error
	})
	if err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, userID string, id uint, patch TaskPatch) (models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return models.Task{}, err
	}

	var title string
	if patch.Title != nil {
		var err error
		if title, err = validateTitle(*patch.Title); err != nil {
			return models.Task{}, err
		}
	}

	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if task, err = loadAuthorized(tx, userID, id); err != nil {
			return err
		}

		changes := map[string]interface{}{}
		if patch.Title != nil {
			task.Title = title
			changes["title"] = title
		}
		if patch.Description != nil {
			task.Description = *patch.Description
			changes["description"] = *patch.Description
		}
		if patch.Completed != nil {
			task.Completed = *patch.Completed
			changes["completed"] = *patch.Completed
		}
		task.UpdatedAt = s.now()
		changes["updated_at"] = task.UpdatedAt

		return tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(changes).Error
	})
	if err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (s *TaskServiceImpl) ToggleComplete(ctx context.Context, userID string, id uint) (models.Task, error) {
	if err := requireIdentity(userID); err != nil {
		return models.Task{}, err
	}

	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if task, err = loadAuthorized(tx, userID, id); err != nil {
			return err
		}

		task.Completed = !task.Completed
		task.UpdatedAt = s.now()

		return tx.Model(&models.Task{}).Where("id = ?", task.ID).Updates(map[string]interface{}{
			"completed":  task.Completed,
			"updated_at": task.UpdatedAt,
		}).Error
	})
	if err != nil {
		return models.Task{}, err
	}

	return task, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, userID string, id uint) error {
	if err := requireIdentity(userID); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := loadAuthorized(tx, userID, id)
		if err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
}
