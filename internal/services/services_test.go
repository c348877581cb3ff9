package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/microblog/microblog/internal/config"
	"github.com/microblog/microblog/internal/models"
	"github.com/microblog/microblog/internal/repository"
	"github.com/microblog/microblog/pkg/cache"
	"github.com/microblog/microblog/pkg/logger"
	"github.com/microblog/microblog/pkg/queue"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *fakePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, value.(queue.Event))
	return nil
}

func (p *fakePublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db            *repository.Database
	users         *UserService
	feed          *FeedService
	messages      *MessageService
	notifications *NotificationService
	tasks         *TaskService
	export        *ExportService
	profiles      *ProfileService
	billing       *BillingService
	publisher     *fakePublisher
	redis         *miniredis.Miniredis
	exportDir     string
}

// newTestEnv wires every service over a fresh sqlite file. With withCache
// the feed cache is backed by an in-process Redis.
func newTestEnv(t *testing.T, withCache bool) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := repository.NewDatabase(&config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(dir, "test.db"),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:        db,
		publisher: &fakePublisher{},
		exportDir: filepath.Join(dir, "exports"),
	}

	var c Cache
	if withCache {
		env.redis = miniredis.RunT(t)
		client := cache.NewRedisClient(env.redis.Addr(), "", 0, 5, 0)
		t.Cleanup(func() { client.Close() })
		c = client
	}

	cfg := &config.Config{
		Feed:   config.FeedConfig{PageSize: 25, MaxPageSize: 50, CacheTTL: time.Minute, FanoutBatch: 2},
		Export: config.ExportConfig{Dir: env.exportDir, BatchSize: 2},
	}
	svc := New(db.DB, c, Producers{
		UserEvents: env.publisher,
		FeedEvents: env.publisher,
		Tasks:      env.publisher,
	}, cfg, logger.Discard())

	env.users = svc.Users
	env.feed = svc.Feed
	env.messages = svc.Messages
	env.notifications = svc.Notifications
	env.tasks = svc.Tasks
	env.export = svc.Export
	env.profiles = svc.Profiles
	env.billing = svc.Billing
	return env
}

func (e *testEnv) register(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), &RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret-" + username,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return u
}

func (e *testEnv) post(t *testing.T, author *models.User, body string) *models.Post {
	t.Helper()
	p, err := e.feed.CreatePost(context.Background(), author.ID, &CreatePostRequest{Body: body})
	if err != nil {
		t.Fatalf("post %q: %v", body, err)
	}
	return p
}

func (e *testEnv) follow(t *testing.T, follower, followed *models.User) {
	t.Helper()
	if err := e.users.Follow(context.Background(), follower.ID, followed.ID); err != nil {
		t.Fatalf("%s follow %s: %v", follower.Username, followed.Username, err)
	}
}

func bodies(posts []*models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Body
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
