package services

import (
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"gorm.io/gorm"
)

// Producers routes events by topic. Account and follow-graph events go to
// UserEvents, post events to FeedEvents, task requests to Tasks. A nil
// producer drops its events.
type Producers struct {
	UserEvents EventPublisher
	FeedEvents EventPublisher
	Tasks      EventPublisher
}

type Services struct {
	Users         *UserService
	Feed          *FeedService
	Messages      *MessageService
	Notifications *NotificationService
	Tasks         *TaskService
	Export        *ExportService
	Profiles      *ProfileService
	Billing       *BillingService

	FollowRepo *repository.FollowRepository
}

func New(db *gorm.DB, cache Cache, producers Producers, cfg *config.Config, logger *logger.Logger) *Services {
	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	notifications := NewNotificationService(repository.NewNotificationRepository(db), logger)
	tasks := NewTaskService(repository.NewTaskRepository(db), userRepo, notifications, producers.Tasks, logger)

	return &Services{
		Users:         NewUserService(userRepo, followRepo, producers.UserEvents, cache, logger),
		Feed:          NewFeedService(postRepo, userRepo, cache, producers.FeedEvents, &cfg.Feed, logger),
		Messages:      NewMessageService(repository.NewMessageRepository(db), userRepo, notifications, producers.UserEvents, logger),
		Notifications: notifications,
		Tasks:         tasks,
		Export:        NewExportService(postRepo, userRepo, tasks, &cfg.Export, logger),
		Profiles:      NewProfileService(profileRepo, userRepo, logger),
		Billing:       NewBillingService(repository.NewBillingRepository(db), profileRepo, logger),
		FollowRepo:    followRepo,
	}
}
