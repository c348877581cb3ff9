package services

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	return errors.New("broker down")
}

func TestLaunchTask(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	u := env.register(t, "u")

	task, err := env.tasks.Launch(ctx, u.ID, TaskExportPosts, "Exporting posts...")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.tasks.Launch(ctx, u.ID, TaskExportPosts, "again"); !errors.Is(err, ErrTaskInProgress) {
		t.Fatalf("expected ErrTaskInProgress, got %v", err)
	}

	running, err := env.tasks.InProgressByName(ctx, u.ID, TaskExportPosts)
	if err != nil {
		t.Fatal(err)
	}
	if running == nil || running.ID != task.ID {
		t.Fatalf("in progress = %+v", running)
	}
	all, err := env.tasks.InProgress(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("%d tasks in progress", len(all))
	}

	types := env.publisher.types()
	if types[len(types)-1] != queue.EventTaskRequested {
		t.Fatalf("last event = %s", types[len(types)-1])
	}
}

func TestExportPosts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	start := time.Now().UTC().Add(-time.Second)
	u := env.register(t, "exporter")
	for _, body := range []string{"first", "second", "third"} {
		env.post(t, u, body)
	}

	task, err := env.tasks.Launch(ctx, u.ID, TaskExportPosts, "Exporting posts...")
	if err != nil {
		t.Fatal(err)
	}
	path, err := env.export.ExportPosts(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var archive PostArchive
	if err := json.Unmarshal(data, &archive); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, p := range archive.Posts {
		got = append(got, p.Body)
		if _, err := time.Parse(time.RFC3339, p.Timestamp); err != nil {
			t.Errorf("bad timestamp %q", p.Timestamp)
		}
	}
	if !equal(got, []string{"first", "second", "third"}) {
		t.Fatalf("exported %v", got)
	}

	done, err := env.tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done.Complete || done.Progress != 100 || done.Error != "" {
		t.Fatalf("task = %+v", done)
	}

	notes, err := env.notifications.Since(ctx, u.ID, start)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Name != NotificationTaskProgress {
		t.Fatalf("notifications = %+v", notes)
	}
	var progress TaskProgress
	if err := notes[0].Payload(&progress); err != nil {
		t.Fatal(err)
	}
	if progress.TaskID != task.ID.String() || progress.Progress != 100 {
		t.Fatalf("progress = %+v", progress)
	}

	// The same kind of task can be launched again once finished.
	if _, err := env.tasks.Launch(ctx, u.ID, TaskExportPosts, "again"); err != nil {
		t.Fatalf("relaunch: %v", err)
	}
}

func TestExportPostsRecordsFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	u := env.register(t, "exporter")
	env.post(t, u, "only")

	// A file where the export directory should be makes the write fail.
	if err := os.WriteFile(env.exportDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	task, err := env.tasks.Launch(ctx, u.ID, TaskExportPosts, "Exporting posts...")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.export.ExportPosts(ctx, task.ID); err == nil {
		t.Fatalf("expected export to fail")
	}
	done, err := env.tasks.Get(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !done.Complete || done.Error == "" {
		t.Fatalf("task = %+v", done)
	}
}

func TestLaunchFailsWhenRequestCannotBeQueued(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	u := env.register(t, "u")

	userRepo := repository.NewUserRepository(env.db.DB)
	taskRepo := repository.NewTaskRepository(env.db.DB)
	tasks := NewTaskService(taskRepo, userRepo, env.notifications, failingPublisher{}, logger.Discard())

	for i := 0; i < 2; i++ {
		task, err := tasks.Launch(ctx, u.ID, TaskExportPosts, "Exporting posts...")
		if !errors.Is(err, ErrTaskQueueUnavailable) {
			t.Fatalf("launch %d: expected ErrTaskQueueUnavailable, got task=%v err=%v", i, task, err)
		}
	}

	running, err := tasks.InProgressByName(ctx, u.ID, TaskExportPosts)
	if err != nil {
		t.Fatal(err)
	}
	if running != nil {
		t.Fatalf("unqueued task left in progress: %+v", running)
	}

	unwired := NewTaskService(taskRepo, userRepo, env.notifications, nil, logger.Discard())
	if _, err := unwired.Launch(ctx, u.ID, TaskExportPosts, ""); !errors.Is(err, ErrTaskQueueUnavailable) {
		t.Fatalf("nil producer: expected ErrTaskQueueUnavailable, got %v", err)
	}

	// Once the queue is back the export can be launched again.
	if _, err := env.tasks.Launch(ctx, u.ID, TaskExportPosts, "Exporting posts..."); err != nil {
		t.Fatalf("relaunch: %v", err)
	}
}
