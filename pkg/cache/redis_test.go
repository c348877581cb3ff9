package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0, 5, 0)
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestJSONRoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	type page struct {
		IDs []string `json:"ids"`
	}
	if err := client.SetJSON(ctx, "feed:u1:0:25", page{IDs: []string{"a", "b"}}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got page
	if err := client.GetJSON(ctx, "feed:u1:0:25", &got); err != nil {
		t.Fatal(err)
	}
	if len(got.IDs) != 2 || got.IDs[1] != "b" {
		t.Fatalf("got %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if err := client.GetJSON(ctx, "feed:u1:0:25", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss after ttl, got %v", err)
	}
}

func TestDeletePattern(t *testing.T) {
	ctx := context.Background()
	client, mr := newTestClient(t)

	for i := 0; i < 250; i++ {
		if err := client.Set(ctx, fmt.Sprintf("feed:u1:%d:25", i), "x", 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := client.Set(ctx, "feed:u2:0:25", "x", 0); err != nil {
		t.Fatal(err)
	}

	if err := client.DeletePattern(ctx, "feed:u1:*"); err != nil {
		t.Fatalf("delete pattern: %v", err)
	}
	if keys := mr.Keys(); len(keys) != 1 || keys[0] != "feed:u2:0:25" {
		t.Fatalf("remaining keys = %v", keys)
	}
	if n, _ := client.Exists(ctx, "feed:u2:0:25"); n != 1 {
		t.Fatalf("unrelated key removed")
	}
}
