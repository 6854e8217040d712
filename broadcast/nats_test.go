package broadcast

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// Runs only against a live server: AUTHSTATE_NATS_URL=nats://127.0.0.1:4222.
func TestNATSChannelDeliversToPeersOnly(t *testing.T) {
	url := os.Getenv("AUTHSTATE_NATS_URL")
	if url == "" {
		t.Skip("AUTHSTATE_NATS_URL not set")
	}
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	defer nc.Close()

	a, err := NewNATSChannel(nc, DefaultName, NATSOptions{Prefix: "test"})
	if err != nil {
		t.Fatalf("NewNATSChannel a: %v", err)
	}
	defer a.Close()
	b, err := NewNATSChannel(nc, DefaultName, NATSOptions{Prefix: "test"})
	if err != nil {
		t.Fatalf("NewNATSChannel b: %v", err)
	}
	defer b.Close()

	fromA := make(chan string, 1)
	fromB := make(chan string, 1)
	a.Subscribe(func(m string) { fromA <- m })
	b.Subscribe(func(m string) { fromB <- m })

	if err := a.Post(context.Background(), MessageSignOut); err != nil {
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

func TestNewNATSChannelRejectsNilConn(t *testing.T) {
	if _, err := NewNATSChannel(nil, DefaultName, NATSOptions{}); err == nil {
		t.Fatal("expected error for nil connection")
	}
}
