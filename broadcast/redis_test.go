package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return rdb
}

func TestRedisChannelDeliversToPeersOnly(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	a, err := NewRedisChannel(ctx, rdb, DefaultName, RedisOptions{Prefix: "test"})
	if err != nil {
		t.Fatalf("NewRedisChannel a: %v", err)
	}
	defer a.Close()
	b, err := NewRedisChannel(ctx, rdb, DefaultName, RedisOptions{Prefix: "test"})
	if err != nil {
		t.Fatalf("NewRedisChannel b: %v", err)
	}
	defer b.Close()

	if a.Topic() != "test:auth" {
		t.Fatalf("Topic = %q", a.Topic())
	}

	fromA := make(chan string, 4)
	fromB := make(chan string, 4)
	a.Subscribe(func(m string) { fromA <- m })
	b.Subscribe(func(m string) { fromB <- m })

	if err := a.Post(ctx, MessageSignOut); err != nil {
		t.Fatalf("Post: %v", err)
	}

	select {
	case m := <-fromB:
		if m != MessageSignOut {
			t.Fatalf("peer got %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer did not receive message")
	}

	select {
	case m := <-fromA:
		t.Fatalf("poster received its own message %q", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisChannelAcceptsBarePayload(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	c, err := NewRedisChannel(ctx, rdb, DefaultName, RedisOptions{})
	if err != nil {
		t.Fatalf("NewRedisChannel: %v", err)
	}
	defer c.Close()

	got := make(chan string, 1)
	c.Subscribe(func(m string) { got <- m })

	if err := rdb.Publish(ctx, c.Topic(), MessageSignOut).Err(); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case m := <-got:
		if m != MessageSignOut {
			t.Fatalf("got %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
}

func TestRedisChannelCloseIsIdempotent(t *testing.T) {
	rdb := newTestRedis(t)
	c, err := NewRedisChannel(context.Background(), rdb, DefaultName, RedisOptions{})
	if err != nil {
		t.Fatalf("NewRedisChannel: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := c.Post(context.Background(), MessageSignOut); err == nil {
		t.Fatal("Post after Close should fail")
	}
}
