package models

import (
	"time"
)

// Task is one user's to-do item. OwnerID is set once at creation and is
// stored in the user_id column.
type Task struct {
	ID          uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	OwnerID     string    `json:"owner_id" gorm:"column:user_id;not null;index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	Completed   bool      `json:"completed" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) OwnedBy(userID string) bool {
	return t.OwnerID == userID
}
