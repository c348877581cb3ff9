package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMessagesAndUnreadCount(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	start := time.Now().UTC().Add(-time.Second)

	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	for _, body := range []string{"hi", "are you there?"} {
		if _, err := env.messages.Send(ctx, alice.ID, &SendMessageRequest{RecipientID: bob.ID, Body: body}); err != nil {
			t.Fatal(err)
		}
	}

	count, err := env.messages.UnreadCount(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("unread = %d, want 2", count)
	}

	notes, err := env.notifications.Since(ctx, bob.ID, start)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Name != NotificationUnreadMessages {
		t.Fatalf("notifications = %+v", notes)
	}
	var n int64
	if err := notes[0].Payload(&n); err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("notification payload = %d, want 2", n)
	}

	inbox, err := env.messages.Received(ctx, bob.ID, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(inbox) != 2 || inbox[0].Body != "are you there?" || inbox[0].Sender.Username != "alice" {
		t.Fatalf("inbox = %+v", inbox)
	}

	if err := env.messages.MarkRead(ctx, bob.ID); err != nil {
		t.Fatal(err)
	}
	count, err = env.messages.UnreadCount(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("unread after MarkRead = %d", count)
	}
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	alice := env.register(t, "alice")

	if _, err := env.messages.Send(ctx, alice.ID, &SendMessageRequest{RecipientID: alice.ID}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty body: got %v", err)
	}
	if _, err := env.messages.Send(ctx, alice.ID, &SendMessageRequest{Body: "hello"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown recipient: got %v", err)
	}
}
