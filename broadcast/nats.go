package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSOptions configures a [NATSChannel].
type NATSOptions struct {
	// Prefix namespaces the subject; the subject is Prefix + "." + name.
	Prefix string
}

// NATSChannel carries broadcast messages over a core NATS subject using the
// same envelope as [RedisChannel].
type NATSChannel struct {
	conn     *nats.Conn
	name     string
	subject  string
	sender   string
	sub      *nats.Subscription
	handlers handlerSet

	closeOnce sync.Once
}

// NewNATSChannel subscribes to the subject for name on conn. The
// subscription is confirmed before NewNATSChannel returns.
func NewNATSChannel(conn *nats.Conn, name string, opts NATSOptions) (*NATSChannel, error) {
	if conn == nil {
		return nil, errors.New("nil nats connection")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "authstate"
	}

	c := &NATSChannel{
		conn:    conn,
		name:    name,
		subject: prefix + "." + name,
		sender:  uuid.NewString(),
	}

	sub, err := conn.Subscribe(c.subject, func(m *nats.Msg) {
		env := decodeEnvelope(m.Data)
		if env.Sender == c.sender {
			return
		}
		c.handlers.dispatch(env.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", c.subject, err)
	}
	c.sub = sub

	// Flush round-trips to the server so the interest is registered before
	// the first peer posts.
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("nats subscribe %s: %w", c.subject, err)
	}

	return c, nil
}

func (c *NATSChannel) Name() string { return c.name }

// Subject returns the NATS subject the channel uses.
func (c *NATSChannel) Subject() string { return c.subject }

func (c *NATSChannel) Post(ctx context.Context, msg string) error {
	if c.handlers.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeEnvelope(c.sender, msg)
	if err != nil {
		return err
	}
	if err := c.conn.Publish(c.subject, payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", c.subject, err)
	}
	if _, ok := ctx.Deadline(); ok {
		return c.conn.FlushWithContext(ctx)
	}
	return c.conn.Flush()
}

func (c *NATSChannel) Subscribe(h Handler) func() {
	return c.handlers.add(h)
}

func (c *NATSChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.handlers.close()
		err = c.sub.Unsubscribe()
	})
	return err
}
