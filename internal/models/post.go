package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Post struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;index:idx_posts_user_created,priority:1"`
	Body      string         `json:"body" gorm:"size:140;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index;index:idx_posts_user_created,priority:2"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Author User `json:"author" gorm:"foreignKey:UserID"`
}

func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a time-ordered v7 ID, so ID order follows insertion
// order and can break created_at ties.
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	return assignID(&p.ID)
}
