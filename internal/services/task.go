package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

const TaskExportPosts = "export_posts"

type TaskService struct {
	taskRepo      *repository.TaskRepository
	userRepo      *repository.UserRepository
	notifications *NotificationService
	producer      EventPublisher
	logger        *logger.Logger
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	userRepo *repository.UserRepository,
	notifications *NotificationService,
	producer EventPublisher,
	logger *logger.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:      taskRepo,
		userRepo:      userRepo,
		notifications: notifications,
		producer:      producer,
		logger:        logger,
	}
}

type TaskProgress struct {
	TaskID   string `json:"task_id"`
	Progress int    `json:"progress"`
}

// Launch records a task and queues it for the task worker. A user can have
// only one unfinished task of each name.
func (s *TaskService) Launch(ctx context.Context, userID uuid.UUID, name, description string) (*models.Task, error) {
	if s.producer == nil {
		return nil, ErrTaskQueueUnavailable
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	running, err := s.taskRepo.GetInProgressByName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, ErrTaskInProgress
	}

	task := &models.Task{
		Name:        name,
		Description: description,
		UserID:      userID,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	// An unqueued task would never complete and would block relaunching, so
	// a failed publish fails the task.
	event := queue.NewEvent(queue.EventTaskRequested, queue.TaskEventData{
		TaskID: task.ID.String(),
		Name:   name,
		UserID: userID.String(),
	})
	if err := s.producer.Publish(ctx, task.ID.String(), event); err != nil {
		if finishErr := s.Finish(ctx, task, err); finishErr != nil {
			s.logger.WithError(finishErr).WithField("task_id", task.ID).Error("Failed to finish unqueued task")
		}
		return nil, fmt.Errorf("%w: %w", ErrTaskQueueUnavailable, err)
	}

	s.logger.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"name":    name,
		"user_id": userID,
	}).Info("Task launched")
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, taskID uuid.UUID) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) InProgress(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	return s.taskRepo.GetInProgress(ctx, userID)
}

// InProgressByName returns nil when no such task is running.
func (s *TaskService) InProgressByName(ctx context.Context, userID uuid.UUID, name string) (*models.Task, error) {
	return s.taskRepo.GetInProgressByName(ctx, userID, name)
}

// SetProgress stores progress (0-100) and notifies the task's owner.
func (s *TaskService) SetProgress(ctx context.Context, task *models.Task, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if err := s.taskRepo.UpdateProgress(ctx, task.ID, progress); err != nil {
		return err
	}
	task.Progress = progress
	_, err := s.notifications.Add(ctx, task.UserID, NotificationTaskProgress, TaskProgress{
		TaskID:   task.ID.String(),
		Progress: progress,
	})
	return err
}

// Finish completes the task. A non-nil cause is recorded as its error.
func (s *TaskService) Finish(ctx context.Context, task *models.Task, cause error) error {
	var failure string
	if cause != nil {
		failure = cause.Error()
	}
	if err := s.SetProgress(ctx, task, 100); err != nil {
		return err
	}
	if err := s.taskRepo.Finish(ctx, task.ID, failure); err != nil {
		return err
	}
	task.Complete = true
	task.Error = failure
	return nil
}
