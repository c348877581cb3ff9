package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Replace stores n as the only notification with its name for its user.
func (r *NotificationRepository) Replace(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND name = ?", n.UserID, n.Name).
			Delete(&models.Notification{}).Error; err != nil {
			return fmt.Errorf("failed to delete notification: %w", err)
		}
		if err := tx.Create(n).Error; err != nil {
			return fmt.Errorf("failed to create notification: %w", err)
		}
		return nil
	})
}

// Since lists the user's notifications newer than since, oldest first.
func (r *NotificationRepository) Since(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Notification, error) {
	var notifications []*models.Notification
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND issued_at > ?", userID, since).
		Order("issued_at ASC").
		Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	return notifications, nil
}
