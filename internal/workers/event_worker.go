package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/internal/services"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

// EventWorker keeps cached feeds in step with writes made elsewhere. The
// service that performed a write has already refreshed the actor's own feed;
// this worker refreshes everyone else's.
type EventWorker struct {
	feedService *services.FeedService
	followRepo  *repository.FollowRepository
	consumers   []*queue.KafkaConsumer
	fanoutBatch int
	logger      *logger.Logger
}

func NewEventWorker(
	feedService *services.FeedService,
	followRepo *repository.FollowRepository,
	fanoutBatch int,
	logger *logger.Logger,
	consumers ...*queue.KafkaConsumer,
) *EventWorker {
	if fanoutBatch <= 0 {
		fanoutBatch = 500
	}
	return &EventWorker{
		feedService: feedService,
		followRepo:  followRepo,
		consumers:   consumers,
		fanoutBatch: fanoutBatch,
		logger:      logger,
	}
}

// Start consumes every topic until ctx is cancelled.
func (w *EventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting event worker...")

	var wg sync.WaitGroup
	errs := make([]error, len(w.consumers))
	for i, consumer := range w.consumers {
		wg.Add(1)
		go func(i int, consumer *queue.KafkaConsumer) {
			defer wg.Done()
			err := consumer.Subscribe(ctx, w.Handle)
			if err != nil && !errors.Is(err, context.Canceled) {
				errs[i] = err
			}
		}(i, consumer)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (w *EventWorker) Handle(ctx context.Context, msg queue.Message) error {
	event, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"timestamp":  event.Timestamp,
		"topic":      msg.Topic,
	}).Debug("Processing event")

	switch event.Type {
	case queue.EventPostCreated, queue.EventPostDeleted:
		return w.handlePostEvent(ctx, event)
	case queue.EventFollowCreated, queue.EventFollowDeleted:
		return w.handleFollowEvent(ctx, event)
	default:
		return nil
	}
}

func (w *EventWorker) handlePostEvent(ctx context.Context, event *queue.ReceivedEvent) error {
	var data queue.PostEventData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	authorID, err := uuid.Parse(data.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID: %w", err)
	}

	n, err := w.invalidateFollowers(ctx, authorID)
	if err != nil {
		return err
	}

	w.logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"post_id":    data.PostID,
		"user_id":    data.UserID,
		"feeds":      n,
	}).Info("Invalidated follower feeds")
	return nil
}

// Follow edges only change the follower's feed. Repeating the invalidation
// here covers caches owned by other instances.
func (w *EventWorker) handleFollowEvent(ctx context.Context, event *queue.ReceivedEvent) error {
	var data queue.FollowEventData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	followerID, err := uuid.Parse(data.FollowerID)
	if err != nil {
		return fmt.Errorf("invalid follower ID: %w", err)
	}

	w.feedService.InvalidateFeed(ctx, followerID)
	return nil
}

// invalidateFollowers walks the author's followers in fanoutBatch pages.
func (w *EventWorker) invalidateFollowers(ctx context.Context, authorID uuid.UUID) (int, error) {
	total := 0
	for offset := 0; ; offset += w.fanoutBatch {
		ids, err := w.followRepo.GetFollowerIDs(ctx, authorID, offset, w.fanoutBatch)
		if err != nil {
			return total, err
		}
		for _, id := range ids {
			w.feedService.InvalidateFeed(ctx, id)
		}
		total += len(ids)
		if len(ids) < w.fanoutBatch {
			return total, nil
		}
	}
}

func (w *EventWorker) Stop() error {
	w.logger.Info("Stopping event worker...")
	var errs []error
	for _, consumer := range w.consumers {
		if err := consumer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
