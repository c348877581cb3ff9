package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
)

const (
	NotificationUnreadMessages = "unread_message_count"
	NotificationTaskProgress   = "task_progress"
)

type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	logger           *logger.Logger
}

func NewNotificationService(notificationRepo *repository.NotificationRepository, logger *logger.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// Add replaces the user's notification called name with one carrying data.
func (s *NotificationService) Add(ctx context.Context, userID uuid.UUID, name string, data interface{}) (*models.Notification, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification payload: %w", err)
	}

	n := &models.Notification{
		Name:        name,
		UserID:      userID,
		Timestamp:   time.Now().UTC(),
		PayloadJSON: string(payload),
	}
	if err := s.notificationRepo.Replace(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *NotificationService) Since(ctx context.Context, userID uuid.UUID, since time.Time) ([]*models.Notification, error) {
	return s.notificationRepo.Since(ctx, userID, since.UTC())
}
