package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/authstate/apiclient"
	"github.com/MrEthical07/authstate/broadcast"
	"github.com/MrEthical07/authstate/cookie"
	internalaudit "github.com/MrEthical07/authstate/internal/audit"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Builder assembles a [Store]. A Builder is single-use.
type Builder struct {
	config Config

	backend   Backend
	jar       cookie.Jar
	navigator Navigator
	opener    ChannelOpener
	hub       *broadcast.Hub
	redis     redis.UniversalClient
	nats      *nats.Conn
	auditSink AuditSink
	logger    *slog.Logger
	metrics   *Metrics

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBackend replaces the HTTP API client. Tests and server-side callers
// use it to talk to the session API in-process.
func (b *Builder) WithBackend(backend Backend) *Builder {
	b.backend = backend
	return b
}

// WithJar sets the cookie storage. Tabs of one browser profile share a jar.
func (b *Builder) WithJar(jar cookie.Jar) *Builder {
	b.jar = jar
	return b
}

func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithChannel overrides how the cross-tab channel is opened. It takes
// precedence over every other channel option.
func (b *Builder) WithChannel(open ChannelOpener) *Builder {
	b.opener = open
	return b
}

// WithHub joins the store to an in-process hub. Tabs of one browser profile
// share a hub.
func (b *Builder) WithHub(hub *broadcast.Hub) *Builder {
	b.hub = hub
	b.config.Channel.Transport = TransportMemory
	return b
}

// WithRedis carries the channel over Redis pub/sub using client. The
// caller keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	b.config.Channel.Transport = TransportRedis
	return b
}

// WithNATS carries the channel over conn. The caller keeps ownership of
// conn.
func (b *Builder) WithNATS(conn *nats.Conn) *Builder {
	b.nats = conn
	b.config.Channel.Transport = TransportNATS
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics shares an existing metrics set, typically with a
// middleware.Guard, instead of creating one from Config.Metrics.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the sign-in latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a store that has not been
// initialized yet.
func (b *Builder) Build() (*Store, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := &Store{
		id:        uuid.NewString(),
		config:    cfg,
		backend:   b.backend,
		jar:       b.jar,
		navigator: b.navigator,
		logger:    b.logger,
		metrics:   b.metrics,
	}

	if store.logger == nil {
		store.logger = slog.Default()
	}
	if store.jar == nil {
		store.jar = cookie.NewMemoryJar()
	}
	if store.navigator == nil {
		store.navigator = noopNavigator{}
	}
	if store.metrics == nil {
		store.metrics = NewMetrics(cfg.Metrics)
	}

	// -------- BACKEND --------
	if store.backend == nil {
		if cfg.API.BaseURL == "" {
			return nil, fmt.Errorf("%w: backend or API BaseURL required", ErrInvalidConfig)
		}
		client, err := apiclient.New(cfg.API.BaseURL,
			apiclient.WithTimeout(cfg.API.Timeout),
			apiclient.WithTokenSource(apiclient.TokenSourceFunc(store.Token)),
		)
		if err != nil {
			return nil, err
		}
		store.backend = client
	}

	// -------- CHANNEL --------
	open, closers, err := b.channelOpener(cfg, store.logger)
	if err != nil {
		return nil, err
	}
	store.open = open
	store.closers = closers

	// -------- AUDIT --------
	store.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	b.built = true

	return store, nil
}

func (b *Builder) channelOpener(cfg Config, logger *slog.Logger) (ChannelOpener, []func() error, error) {
	if b.opener != nil {
		return b.opener, nil, nil
	}

	switch cfg.Channel.Transport {
	case TransportMemory:
		hub := b.hub
		if hub == nil {
			logger.Debug("authstate: no hub supplied, sign-outs stay in this store")
			hub = broadcast.NewHub()
		}
		return func(_ context.Context, name string) (broadcast.Channel, error) {
			return hub.Open(name), nil
		}, nil, nil

	case TransportRedis:
		var closers []func() error
		client := b.redis
		if client == nil {
			if cfg.Channel.RedisAddr == "" {
				return nil, nil, fmt.Errorf("%w: redis transport requires a client or Channel RedisAddr", ErrInvalidConfig)
			}
			owned := redis.NewClient(&redis.Options{Addr: cfg.Channel.RedisAddr})
			client = owned
			closers = append(closers, owned.Close)
		}
		opts := broadcast.RedisOptions{Prefix: cfg.Channel.RedisPrefix}
		return func(ctx context.Context, name string) (broadcast.Channel, error) {
			return broadcast.NewRedisChannel(ctx, client, name, opts)
		}, closers, nil

	case TransportNATS:
		var closers []func() error
		conn := b.nats
		if conn == nil {
			if cfg.Channel.NATSURL == "" {
				return nil, nil, fmt.Errorf("%w: nats transport requires a connection or Channel NATSURL", ErrInvalidConfig)
			}
			owned, err := nats.Connect(cfg.Channel.NATSURL, nats.Name("authstate"))
			if err != nil {
				return nil, nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
			}
			conn = owned
			closers = append(closers, func() error {
				owned.Close()
				return nil
			})
		}
		opts := broadcast.NATSOptions{Prefix: cfg.Channel.NATSPrefix}
		return func(_ context.Context, name string) (broadcast.Channel, error) {
			return broadcast.NewNATSChannel(conn, name, opts)
		}, closers, nil
	}

	return nil, nil, errors.New("unsupported channel transport")
}
