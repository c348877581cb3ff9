package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
)

type ExportService struct {
	postRepo *repository.PostRepository
	userRepo *repository.UserRepository
	tasks    *TaskService
	config   *config.ExportConfig
	logger   *logger.Logger
}

func NewExportService(
	postRepo *repository.PostRepository,
	userRepo *repository.UserRepository,
	tasks *TaskService,
	config *config.ExportConfig,
	logger *logger.Logger,
) *ExportService {
	return &ExportService{
		postRepo: postRepo,
		userRepo: userRepo,
		tasks:    tasks,
		config:   config,
		logger:   logger,
	}
}

type ExportedPost struct {
	Body      string `json:"body"`
	Timestamp string `json:"timestamp"`
}

type PostArchive struct {
	Posts []ExportedPost `json:"posts"`
}

// ExportPosts runs an export_posts task: it writes the owner's posts, oldest
// first, to a JSON file in the export directory and returns its path. The
// task is always finished, recording the failure if there was one.
func (s *ExportService) ExportPosts(ctx context.Context, taskID uuid.UUID) (string, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		return "", err
	}
	if task.Complete {
		return "", fmt.Errorf("%w: task %s already complete", ErrInvalidInput, taskID)
	}

	path, err := s.exportPosts(ctx, task)
	if finishErr := s.tasks.Finish(ctx, task, err); finishErr != nil {
		s.logger.WithError(finishErr).WithField("task_id", task.ID).Error("Failed to finish task")
	}
	if err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).Error("Post export failed")
		return "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"task_id": task.ID,
		"user_id": task.UserID,
		"path":    path,
	}).Info("Posts exported")
	return path, nil
}

func (s *ExportService) exportPosts(ctx context.Context, task *models.Task) (string, error) {
	user, err := s.userRepo.GetByID(ctx, task.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return "", ErrUserNotFound
	}

	total, err := s.postRepo.CountByUserID(ctx, user.ID)
	if err != nil {
		return "", err
	}

	batch := s.config.BatchSize
	if batch <= 0 {
		batch = 100
	}

	archive := PostArchive{Posts: make([]ExportedPost, 0, total)}
	for offset := 0; ; offset += batch {
		posts, err := s.postRepo.GetByUserIDOldestFirst(ctx, user.ID, offset, batch)
		if err != nil {
			return "", err
		}
		for _, post := range posts {
			archive.Posts = append(archive.Posts, ExportedPost{
				Body:      post.Body,
				Timestamp: post.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if total > 0 {
			progress := int(int64(len(archive.Posts)) * 100 / total)
			if err := s.tasks.SetProgress(ctx, task, progress); err != nil {
				return "", err
			}
		}
		if len(posts) < batch {
			break
		}
	}

	if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	data, err := json.MarshalIndent(archive, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode posts: %w", err)
	}
	path := filepath.Join(s.config.Dir, fmt.Sprintf("%s-posts-%s.json", user.Username, task.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}
