package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message *models.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByRecipientID(ctx context.Context, recipientID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	var messages []*models.Message
	if err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// CountSince counts messages received after since; a nil since counts all.
func (r *MessageRepository) CountSince(ctx context.Context, recipientID uuid.UUID, since *time.Time) (int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Message{}).Where("recipient_id = ?", recipientID)
	if since != nil {
		db = db.Where("created_at > ?", *since)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
