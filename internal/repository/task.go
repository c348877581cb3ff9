package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/models"
	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) GetInProgress(ctx context.Context, userID uuid.UUID) ([]*models.Task, error) {
	var tasks []*models.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND complete = ?", userID, false).
		Order("created_at ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to get tasks in progress: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) GetInProgressByName(ctx context.Context, userID uuid.UUID, name string) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND name = ? AND complete = ?", userID, name, false).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get task in progress: %w", err)
	}
	return &task, nil
}

func (r *TaskRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	if err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Update("progress", progress).Error; err != nil {
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// Finish marks the task complete, recording failure text if any.
func (r *TaskRepository) Finish(ctx context.Context, id uuid.UUID, failure string) error {
	if err := r.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"complete": true, "error": failure}).Error; err != nil {
		return fmt.Errorf("failed to finish task: %w", err)
	}
	return nil
}
