package workers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/microblog/microblog/internal/services"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

// TaskWorker runs background tasks requested through TaskService.Launch.
type TaskWorker struct {
	taskService   *services.TaskService
	exportService *services.ExportService
	consumer      *queue.KafkaConsumer
	logger        *logger.Logger
}

func NewTaskWorker(
	taskService *services.TaskService,
	exportService *services.ExportService,
	consumer *queue.KafkaConsumer,
	logger *logger.Logger,
) *TaskWorker {
	return &TaskWorker{
		taskService:   taskService,
		exportService: exportService,
		consumer:      consumer,
		logger:        logger,
	}
}

func (w *TaskWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting task worker...")
	return w.consumer.Subscribe(ctx, w.Handle)
}

func (w *TaskWorker) Handle(ctx context.Context, msg queue.Message) error {
	event, err := queue.DecodeEvent(msg.Value)
	if err != nil {
		return err
	}
	if event.Type != queue.EventTaskRequested {
		return nil
	}

	var data queue.TaskEventData
	if err := event.DecodeData(&data); err != nil {
		return err
	}
	taskID, err := uuid.Parse(data.TaskID)
	if err != nil {
		return fmt.Errorf("invalid task ID: %w", err)
	}

	log := w.logger.WithFields(map[string]interface{}{
		"task_id": data.TaskID,
		"name":    data.Name,
	})
	log.Info("Running task")

	switch data.Name {
	case services.TaskExportPosts:
		_, err = w.exportService.ExportPosts(ctx, taskID)
		return err
	default:
		task, err := w.taskService.Get(ctx, taskID)
		if err != nil {
			return err
		}
		log.Warn("Unknown task")
		return w.taskService.Finish(ctx, task, fmt.Errorf("unknown task %q", data.Name))
	}
}

func (w *TaskWorker) Stop() error {
	w.logger.Info("Stopping task worker...")
	return w.consumer.Close()
}
