package services

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

type MessageService struct {
	messageRepo   *repository.MessageRepository
	userRepo      *repository.UserRepository
	notifications *NotificationService
	producer      EventPublisher
	logger        *logger.Logger
}

func NewMessageService(
	messageRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
	notifications *NotificationService,
	producer EventPublisher,
	logger *logger.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:   messageRepo,
		userRepo:      userRepo,
		notifications: notifications,
		producer:      producer,
		logger:        logger,
	}
}

type SendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Body        string    `json:"body"`
}

// Send delivers a private message and refreshes the recipient's unread count.
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req *SendMessageRequest) (*models.Message, error) {
	n := utf8.RuneCountInString(req.Body)
	if n == 0 || n > MaxPostLength {
		return nil, fmt.Errorf("%w: message body must be 1-%d characters", ErrInvalidInput, MaxPostLength)
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sender: %w", err)
	}
	if sender == nil {
		return nil, ErrUserNotFound
	}
	recipient, err := s.userRepo.GetByID(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	if recipient == nil {
		return nil, ErrUserNotFound
	}

	message := &models.Message{
		SenderID:    senderID,
		RecipientID: recipient.ID,
		Body:        req.Body,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}
	message.Sender = *sender
	message.Recipient = *recipient

	count, err := s.messageRepo.CountSince(ctx, recipient.ID, recipient.LastMessageReadTime)
	if err != nil {
		return nil, err
	}
	if _, err := s.notifications.Add(ctx, recipient.ID, NotificationUnreadMessages, count); err != nil {
		return nil, err
	}

	publishEvent(ctx, s.producer, s.logger, recipient.ID.String(), queue.NewEvent(queue.EventMessageSent, queue.MessageEventData{
		MessageID:   message.ID.String(),
		SenderID:    senderID.String(),
		RecipientID: recipient.ID.String(),
	}))

	s.logger.WithFields(map[string]interface{}{
		"message_id":   message.ID,
		"sender_id":    senderID,
		"recipient_id": recipient.ID,
	}).Info("Message sent")
	return message, nil
}

// Received lists the user's inbox, newest first.
func (s *MessageService) Received(ctx context.Context, userID uuid.UUID, offset, limit int) ([]*models.Message, error) {
	messages, err := s.messageRepo.GetByRecipientID(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *MessageService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	return s.messageRepo.CountSince(ctx, userID, user.LastMessageReadTime)
}

// MarkRead clears the user's unread count.
func (s *MessageService) MarkRead(ctx context.Context, userID uuid.UUID) error {
	if err := s.userRepo.UpdateLastMessageReadTime(ctx, userID, time.Now().UTC()); err != nil {
		return err
	}
	_, err := s.notifications.Add(ctx, userID, NotificationUnreadMessages, 0)
	return err
}
