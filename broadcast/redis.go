package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a [RedisChannel].
type RedisOptions struct {
	// Prefix namespaces the Pub/Sub topic; the topic is Prefix + ":" + name.
	Prefix string
}

// RedisChannel carries broadcast messages over Redis Pub/Sub.
//
// Each endpoint stamps its messages with a random sender id and drops
// messages carrying its own id, so a poster never hears itself.
type RedisChannel struct {
	client   redis.UniversalClient
	name     string
	topic    string
	sender   string
	pubsub   *redis.PubSub
	handlers handlerSet

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisChannel subscribes to the topic for name and starts delivering
// messages. The subscription is confirmed before NewRedisChannel returns.
func NewRedisChannel(ctx context.Context, client redis.UniversalClient, name string, opts RedisOptions) (*RedisChannel, error) {
	if client == nil {
		return nil, errors.New("nil redis client")
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "authstate"
	}

	c := &RedisChannel{
		client: client,
		name:   name,
		topic:  prefix + ":" + name,
		sender: uuid.NewString(),
	}

	c.pubsub = client.Subscribe(ctx, c.topic)
	if _, err := c.pubsub.Receive(ctx); err != nil {
		_ = c.pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", c.topic, err)
	}

	msgs := c.pubsub.Channel()
	c.wg.Add(1)
	go c.run(msgs)

	return c, nil
}

func (c *RedisChannel) run(msgs <-chan *redis.Message) {
	defer c.wg.Done()

	for m := range msgs {
		env := decodeEnvelope([]byte(m.Payload))
		if env.Sender == c.sender {
			continue
		}
		c.handlers.dispatch(env.Data)
	}
}

func (c *RedisChannel) Name() string { return c.name }

// Topic returns the Redis Pub/Sub topic the channel uses.
func (c *RedisChannel) Topic() string { return c.topic }

func (c *RedisChannel) Post(ctx context.Context, msg string) error {
	if c.handlers.isClosed() {
		return ErrClosed
	}
	payload, err := encodeEnvelope(c.sender, msg)
	if err != nil {
		return err
	}
	if err := c.client.Publish(ctx, c.topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", c.topic, err)
	}
	return nil
}

func (c *RedisChannel) Subscribe(h Handler) func() {
	return c.handlers.add(h)
}

// Close unsubscribes and waits for the delivery goroutine to exit.
func (c *RedisChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.handlers.close()
		err = c.pubsub.Close()
		c.wg.Wait()
	})
	return err
}
