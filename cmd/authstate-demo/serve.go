package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/apiclient"
	"github.com/MrEthical07/authstate/cookie"
	"github.com/MrEthical07/authstate/internal/devserver"
	"github.com/MrEthical07/authstate/internal/rate"
	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/metrics/export/prometheus"
	"github.com/MrEthical07/authstate/middleware"
	"github.com/MrEthical07/authstate/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCmd(g *globalFlags) *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API under /api and guarded pages",
		Long: `Serve starts the reference session API (POST /api/sessions, GET /api/me)
seeded with two accounts, and server-rendered JSON pages behind the render guard:

  /dashboard   any signed-in user
  /users       requires users.list and the administrator role
  /metrics     Prometheus metrics of the guard

Failed sign-ins are throttled with Redis counters; without --redis-addr an
in-memory Redis is started.

Accounts: ada@example.com / correct-horse (administrator),
          grace@example.com / battery-staple (viewer).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			cfg, err := g.config(logger)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "127.0.0.1:8080", "Listen address")
	cmd.Flags().DurationVar(&opts.tokenTTL, "token-ttl", 15*time.Minute, "Session token lifetime")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the sign-in throttle; if empty, an in-memory Redis is used")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 5, "Failed sign-ins allowed per email and IP within --attempt-window")
	cmd.Flags().DurationVar(&opts.attemptWindow, "attempt-window", time.Minute, "Sign-in throttle window")

	return cmd
}

type serveOptions struct {
	addr          string
	tokenTTL      time.Duration
	redisAddr     string
	maxAttempts   int
	attemptWindow time.Duration
}

func serve(ctx context.Context, opts serveOptions, cfg authstate.Config, logger *slog.Logger) error {
	addr := opts.addr
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     opts.tokenTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    secret,
	})
	if err != nil {
		return err
	}

	hasher, err := password.New(password.DefaultConfig())
	if err != nil {
		return err
	}
	users := devserver.NewUsers(hasher)
	if err := users.Add("ada@example.com", "correct-horse", []string{"users.list", "users.create"}, []string{"administrator"}); err != nil {
		return err
	}
	if err := users.Add("grace@example.com", "battery-staple", []string{"users.list"}, []string{"viewer"}); err != nil {
		return err
	}

	redisAddr := opts.redisAddr
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	limiter, err := rate.New(rdb, rate.Config{
		Prefix:           appName,
		EnableIPThrottle: true,
		MaxAttempts:      opts.maxAttempts,
		Cooldown:         opts.attemptWindow,
	})
	if err != nil {
		return err
	}

	api, err := devserver.New(users, signer, logger, devserver.WithSignInLimiter(limiter))
	if err != nil {
		return err
	}

	metrics := authstate.NewMetrics(authstate.MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	guard := middleware.NewGuard(
		middleware.WithVerifier(signer),
		middleware.WithMetrics(metrics),
		middleware.WithAuditSink(authstate.NewSlogSink(logger)),
		middleware.WithRoutes(cfg.Routes.AfterSignOut, cfg.Routes.AfterSignIn),
		middleware.WithCookieOptions(cfg.Cookie.Options()),
		middleware.WithLogger(logger),
	)
	exporter, err := prometheus.NewPrometheusExporter(guard)
	if err != nil {
		return err
	}

	apiBase := "http://" + addr + "/api"
	r := chi.NewRouter()
	r.Mount("/api", api.Routes())
	r.Handle("/metrics", exporter.Handler())
	r.Method(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, "sign in with: %s signin --api %s --email ada@example.com --password correct-horse\n", appName, apiBase)
	}))
	r.Method(http.MethodGet, "/dashboard", guard.Handler(dashboardPage, nil, middleware.JSONRenderer))
	r.Method(http.MethodGet, "/users", guard.Handler(usersPage(apiBase), &middleware.Requirements{
		Permissions: []string{"users.list"},
		Roles:       []string{"administrator"},
	}, middleware.JSONRenderer))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", slog.String("addr", addr), slog.String("api", apiBase))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func dashboardPage(rc middleware.RenderContext) (middleware.RenderResult, error) {
	u, _ := authstate.UserFromContext(rc.Context())
	return middleware.RenderResult{Props: map[string]any{
		"page": "dashboard",
		"user": u,
	}}, nil
}

// usersPage asks the backend who the token belongs to; a rejected token
// becomes a forced sign-out.
func usersPage(apiBase string) middleware.RenderFunc {
	return func(rc middleware.RenderContext) (middleware.RenderResult, error) {
		token, _ := cookie.NewHTTPJar(nil, rc.Request).Get(cookie.TokenName)
		client, err := apiclient.New(apiBase,
			apiclient.WithTimeout(5*time.Second),
			apiclient.WithTokenSource(apiclient.TokenSourceFunc(func() string { return token })),
		)
		if err != nil {
			return middleware.RenderResult{}, err
		}

		profile, err := client.Me(rc.Context())
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return middleware.RenderResult{}, fmt.Errorf("load users page: %w", authstate.ErrAuthTokenInvalid)
		}
		if err != nil {
			return middleware.RenderResult{}, err
		}
		return middleware.RenderResult{Props: map[string]any{
			"page":   "users",
			"viewer": profile,
		}}, nil
	}
}
