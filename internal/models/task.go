package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task records a background job requested by a user. The worker that runs it
// updates Progress and sets Complete when done.
type Task struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string    `json:"name" gorm:"size:128;index;not null"`
	Description string    `json:"description" gorm:"size:128"`
	UserID      uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	Progress    int       `json:"progress" gorm:"default:0"`
	Complete    bool      `json:"complete" gorm:"default:false"`
	Error       string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	return assignID(&t.ID)
}
