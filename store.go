package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authstate/broadcast"
	"github.com/MrEthical07/authstate/cookie"
	internalaudit "github.com/MrEthical07/authstate/internal/audit"
)

// ChannelOpener opens the named cross-tab channel for one store.
type ChannelOpener func(ctx context.Context, name string) (broadcast.Channel, error)

// Store holds one tab's authentication state.
//
// A Store is built by [Builder.Build], started with [Store.Init] and released
// with [Store.Close]. Its methods are safe for concurrent use.
type Store struct {
	id        string
	config    Config
	backend   Backend
	jar       cookie.Jar
	navigator Navigator
	open      ChannelOpener
	logger    *slog.Logger
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	closers   []func() error

	mu   sync.RWMutex
	user *User

	initOnce sync.Once
	initErr  error

	chMu        sync.Mutex
	channel     broadcast.Channel
	unsubscribe func()

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// ID identifies the store in logs and audit events.
func (s *Store) ID() string { return s.id }

// Init opens the cross-tab channel and, when a session token cookie is
// present, restores the user with GET /me. Only the first call does any
// work; later calls return the first call's result.
//
// A rejected token performs a broadcasting sign-out. A channel that cannot
// be opened is reported as [ErrChannelUnavailable] after rehydration has run.
func (s *Store) Init(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	s.initOnce.Do(func() {
		s.initErr = s.init(ctx)
	})
	return s.initErr
}

func (s *Store) init(ctx context.Context) error {
	chErr := s.openChannel(ctx)
	if chErr != nil {
		s.logger.Warn("authstate: cross-tab channel unavailable",
			slog.String("store", s.id),
			slog.String("channel", s.config.Channel.Name),
			slog.Any("error", chErr),
		)
	}

	s.rehydrate(ctx)

	return chErr
}

func (s *Store) openChannel(ctx context.Context) error {
	ch, err := s.open(ctx, s.config.Channel.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}

	// Received sign-outs outlive the Init call that subscribed to them.
	base := context.WithoutCancel(ctx)
	unsubscribe := ch.Subscribe(func(msg string) {
		s.handleMessage(base, msg)
	})

	s.chMu.Lock()
	s.channel = ch
	s.unsubscribe = unsubscribe
	s.chMu.Unlock()
	return nil
}

func (s *Store) handleMessage(ctx context.Context, msg string) {
	switch msg {
	case broadcast.MessageSignOut:
		s.metrics.Inc(MetricSignOutReceived)
		s.logger.Debug("authstate: sign-out received from another tab", slog.String("store", s.id))
		s.emitAudit(ctx, AuditEventSignOutReceived, true, s.currentEmail(), nil, nil)
		s.SignOut(ctx, false)
	default:
		// "signIn" is reserved; everything else is foreign traffic.
	}
}

func (s *Store) rehydrate(ctx context.Context) {
	token, ok := s.jar.Get(cookie.TokenName)
	if !ok || token == "" {
		return
	}

	profile, err := s.backend.Me(ctx)
	if err != nil {
		s.metrics.Inc(MetricRehydrateFailure)
		s.logger.Warn("authstate: stored session rejected",
			slog.String("store", s.id),
			slog.Any("error", err),
		)
		s.emitAudit(ctx, AuditEventRehydrate, false, "", err, nil)
		s.SignOut(ctx, true)
		return
	}

	s.setUser(User{Email: profile.Email, Permissions: profile.Permissions, Roles: profile.Roles})
	s.metrics.Inc(MetricRehydrateSuccess)
	s.emitAudit(ctx, AuditEventRehydrate, true, profile.Email, nil, nil)
}

// SignIn exchanges credentials for a session. On success both session
// cookies are written, the user is held in memory and the tab navigates to
// the after-sign-in route. Failures are logged, audited and counted, and
// leave the store unchanged; check [Store.IsAuthenticated] for the outcome.
func (s *Store) SignIn(ctx context.Context, creds Credentials) {
	if s.closed.Load() {
		s.logger.Warn("authstate: sign-in on closed store", slog.String("store", s.id))
		return
	}

	start := time.Now()
	resp, err := s.backend.CreateSession(ctx, creds)
	if s.metrics.LatencyEnabled() {
		s.metrics.Observe(MetricSignInLatency, time.Since(start))
	}
	if err == nil && resp.Token == "" {
		err = ErrEmptyToken
	}
	if err != nil {
		s.metrics.Inc(MetricSignInFailure)
		s.logger.Error("authstate: sign-in failed",
			slog.String("store", s.id),
			slog.String("email", creds.Email),
			slog.Any("error", err),
		)
		s.emitAudit(ctx, AuditEventSignIn, false, creds.Email, err, nil)
		return
	}

	opts := s.config.Cookie.Options()
	s.jar.Set(cookie.TokenName, resp.Token, opts)
	s.jar.Set(cookie.RefreshTokenName, resp.RefreshToken, opts)

	s.setUser(User{Email: creds.Email, Permissions: resp.Permissions, Roles: resp.Roles})

	s.metrics.Inc(MetricSignInSuccess)
	s.logger.Info("authstate: signed in", slog.String("store", s.id), slog.String("email", creds.Email))
	s.emitAudit(ctx, AuditEventSignIn, true, creds.Email, nil, nil)

	s.navigator.Push(ctx, s.config.Routes.AfterSignIn)
}

// SignOut destroys both session cookies, forgets the user and navigates to
// the after-sign-out route. With notifyTabs set, exactly one "signOut" message
// is posted so every other tab signs out too. SignOut is idempotent.
func (s *Store) SignOut(ctx context.Context, notifyTabs bool) {
	email := s.currentEmail()

	cookie.DestroySession(s.jar, s.config.Cookie.Options())
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.metrics.Inc(MetricSignOut)

	var postErr error
	if notifyTabs {
		postErr = s.postSignOut(ctx)
		if postErr != nil {
			s.metrics.Inc(MetricBroadcastFailure)
			s.logger.Warn("authstate: sign-out broadcast failed",
				slog.String("store", s.id),
				slog.Any("error", postErr),
			)
		} else {
			s.metrics.Inc(MetricSignOutBroadcast)
		}
	}

	s.emitAudit(ctx, AuditEventSignOut, postErr == nil, email, postErr, func() map[string]string {
		if notifyTabs {
			return map[string]string{"broadcast": "true"}
		}
		return map[string]string{"broadcast": "false"}
	})

	s.navigator.Push(ctx, s.config.Routes.AfterSignOut)
}

func (s *Store) postSignOut(ctx context.Context) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	s.chMu.Lock()
	ch := s.channel
	s.chMu.Unlock()
	if ch == nil {
		return ErrNotInitialized
	}
	return ch.Post(ctx, broadcast.MessageSignOut)
}

// User returns a copy of the signed-in user.
func (s *Store) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return s.user.clone(), true
}

// IsAuthenticated reports whether a user is held in memory. A token cookie
// alone never makes a store authenticated.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// Token returns the current session token cookie, or "". It is the token
// source of the default API client.
func (s *Store) Token() string {
	token, _ := s.jar.Get(cookie.TokenName)
	return token
}

func (s *Store) setUser(u User) {
	u = u.clone()
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
}

func (s *Store) currentEmail() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Email
}

// MetricsSnapshot returns a point-in-time copy of the store's metrics.
func (s *Store) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Metrics returns the live metrics set, which may be shared with a guard.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// AuditDropped reports events the audit dispatcher discarded.
func (s *Store) AuditDropped() uint64 {
	return s.audit.Dropped()
}

// Close unsubscribes from and closes the channel, flushes pending audit
// events and releases clients the builder created. It does not sign out.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		var errs []error

		s.chMu.Lock()
		if s.unsubscribe != nil {
			s.unsubscribe()
			s.unsubscribe = nil
		}
		if s.channel != nil {
			if err := s.channel.Close(); err != nil && !errors.Is(err, broadcast.ErrClosed) {
				errs = append(errs, fmt.Errorf("close channel: %w", err))
			}
			s.channel = nil
		}
		s.chMu.Unlock()

		s.audit.Close()

		for i := len(s.closers) - 1; i >= 0; i-- {
			if err := s.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
