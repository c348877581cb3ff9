package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/microblog/microblog/internal/models"
	"gorm.io/gorm"
)

func TestUserLookups(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	users := NewUserRepository(db.DB)

	john := createUser(t, users, "john")

	byName, err := users.GetByUsername(ctx, "john")
	if err != nil || byName == nil || byName.ID != john.ID {
		t.Fatalf("by username = %v, %v", byName, err)
	}
	byEmail, err := users.GetByEmail(ctx, "john@example.com")
	if err != nil || byEmail == nil || byEmail.ID != john.ID {
		t.Fatalf("by email = %v, %v", byEmail, err)
	}
	missing, err := users.GetByUsername(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("missing user = %v, %v", missing, err)
	}

	dup := &models.User{Username: "john", Email: "other@example.com"}
	if err := users.Create(ctx, dup); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate username: expected gorm.ErrDuplicatedKey, got %v", err)
	}

	seen := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if err := users.UpdateLastSeen(ctx, john.ID, seen); err != nil {
		t.Fatal(err)
	}
	reloaded, _ := users.GetByID(ctx, john.ID)
	if !reloaded.LastSeen.Equal(seen) {
		t.Fatalf("last seen = %v, want %v", reloaded.LastSeen, seen)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	users := NewUserRepository(db.DB)
	follows := NewFollowRepository(db.DB)
	posts := NewPostRepository(db.DB)
	messages := NewMessageRepository(db.DB)

	john := createUser(t, users, "john")
	susan := createUser(t, users, "susan")
	mary := createUser(t, users, "mary")
	if _, err := follows.Create(ctx, john.ID, susan.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := follows.Create(ctx, mary.ID, john.ID); err != nil {
		t.Fatal(err)
	}
	createPost(t, posts, john, "bye", time.Now().UTC())
	if err := messages.Create(ctx, &models.Message{SenderID: susan.ID, RecipientID: john.ID, Body: "hi"}); err != nil {
		t.Fatal(err)
	}

	if err := users.Delete(ctx, john.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if u, _ := users.GetByID(ctx, john.ID); u != nil {
		t.Fatalf("user still present")
	}
	if n, _ := posts.CountByUserID(ctx, john.ID); n != 0 {
		t.Fatalf("posts survived: %d", n)
	}
	if n, _ := follows.CountFollowers(ctx, susan.ID); n != 0 {
		t.Fatalf("edge to susan survived")
	}
	if n, _ := follows.CountFollowed(ctx, mary.ID); n != 0 {
		t.Fatalf("edge from mary survived")
	}
	s, _ := users.GetByID(ctx, susan.ID)
	m, _ := users.GetByID(ctx, mary.ID)
	if s.Followers != 0 || m.Following != 0 {
		t.Fatalf("counters not adjusted: susan.followers=%d mary.following=%d", s.Followers, m.Following)
	}
	if n, _ := messages.CountSince(ctx, john.ID, nil); n != 0 {
		t.Fatalf("messages survived")
	}
}

func TestMessagesAndNotifications(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	users := NewUserRepository(db.DB)
	messages := NewMessageRepository(db.DB)
	notifications := NewNotificationRepository(db.DB)

	john := createUser(t, users, "john")
	susan := createUser(t, users, "susan")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, body := range []string{"one", "two", "three"} {
		m := &models.Message{SenderID: susan.ID, RecipientID: john.ID, Body: body, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := messages.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	inbox, err := messages.GetByRecipientID(ctx, john.ID, 0, 10)
	if err != nil || len(inbox) != 3 || inbox[0].Body != "three" || inbox[0].Sender.Username != "susan" {
		t.Fatalf("inbox = %v, %v", inbox, err)
	}
	since := base.Add(30 * time.Second)
	if n, _ := messages.CountSince(ctx, john.ID, &since); n != 2 {
		t.Fatalf("count since = %d, want 2", n)
	}

	for i, payload := range []string{`1`, `2`} {
		n := &models.Notification{Name: "unread_message_count", UserID: john.ID, Timestamp: base.Add(time.Duration(i+1) * time.Hour), PayloadJSON: payload}
		if err := notifications.Replace(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	other := &models.Notification{Name: "task_progress", UserID: john.ID, Timestamp: base.Add(3 * time.Hour), PayloadJSON: `{}`}
	if err := notifications.Replace(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := notifications.Since(ctx, john.ID, base)
	if err != nil || len(got) != 2 {
		t.Fatalf("notifications = %v, %v", got, err)
	}
	var count int
	if err := got[0].Payload(&count); err != nil || count != 2 || got[0].Name != "unread_message_count" {
		t.Fatalf("first notification = %+v (%d, %v)", got[0], count, err)
	}
	later, _ := notifications.Since(ctx, john.ID, base.Add(2*time.Hour))
	if len(later) != 1 || later[0].Name != "task_progress" {
		t.Fatalf("since filter = %v", later)
	}
}

func TestTaskLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	users := NewUserRepository(db.DB)
	tasks := NewTaskRepository(db.DB)

	john := createUser(t, users, "john")
	task := &models.Task{Name: "export_posts", Description: "Exporting posts...", UserID: john.ID}
	if err := tasks.Create(ctx, task); err != nil {
		t.Fatal(err)
	}

	running, err := tasks.GetInProgressByName(ctx, john.ID, "export_posts")
	if err != nil || running == nil || running.ID != task.ID {
		t.Fatalf("in progress = %v, %v", running, err)
	}
	if err := tasks.UpdateProgress(ctx, task.ID, 50); err != nil {
		t.Fatal(err)
	}
	if err := tasks.Finish(ctx, task.ID, ""); err != nil {
		t.Fatal(err)
	}

	done, _ := tasks.GetByID(ctx, task.ID)
	if !done.Complete || done.Progress != 50 {
		t.Fatalf("task = %+v", done)
	}
	if list, _ := tasks.GetInProgress(ctx, john.ID); len(list) != 0 {
		t.Fatalf("finished task still listed: %v", list)
	}
}

func TestUpdateProfileKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	users := NewUserRepository(db.DB)
	follows := NewFollowRepository(db.DB)

	a := createUser(t, users, "a")
	b := createUser(t, users, "b")

	stale, err := users.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}

	// These commit after the copy above was read.
	if _, err := follows.Create(ctx, b.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	seen := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	if err := users.UpdateLastSeen(ctx, a.ID, seen); err != nil {
		t.Fatal(err)
	}
	if err := users.UpdateLastMessageReadTime(ctx, a.ID, seen); err != nil {
		t.Fatal(err)
	}

	stale.Username = "a2"
	stale.AboutMe = "hello"
	if err := users.UpdateProfile(ctx, stale); err != nil {
		t.Fatal(err)
	}

	got, err := users.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Username != "a2" || got.AboutMe != "hello" {
		t.Fatalf("profile not saved: %+v", got)
	}
	if got.Followers != 1 {
		t.Fatalf("followers = %d, want 1", got.Followers)
	}
	if !got.LastSeen.Equal(seen) {
		t.Fatalf("last seen = %v, want %v", got.LastSeen, seen)
	}
	if got.LastMessageReadTime == nil || !got.LastMessageReadTime.Equal(seen) {
		t.Fatalf("last message read time = %v, want %v", got.LastMessageReadTime, seen)
	}
}
