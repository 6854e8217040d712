package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/apiclient"
	otelexport "github.com/MrEthical07/authstate/metrics/export/otel"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func tabsCmd(g *globalFlags) *cobra.Command {
	var (
		tabs      int
		rounds    int
		redisAddr string
		timeout   time.Duration
		showOTel  bool
	)

	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "Measure sign-out propagation across tabs sharing a Redis channel",
		Long: `Tabs builds --tabs stores on one Redis Pub/Sub channel against an
in-process backend. Each round one tab signs in and signs out with a
broadcast; the time until every other tab has followed is recorded.

Without --redis-addr (or REDIS_ADDR) an in-memory Redis is started.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tabs < 2 || rounds < 1 {
				return errors.New("--tabs must be at least 2 and --rounds at least 1")
			}
			logger := g.logger()
			cfg, err := g.config(logger)
			if err != nil {
				return err
			}
			addr := redisAddr
			if addr == "" {
				addr = os.Getenv("REDIS_ADDR")
			}
			return runTabs(cmd.Context(), cmd.OutOrStdout(), cfg, logger, tabsOptions{
				tabs:      tabs,
				rounds:    rounds,
				redisAddr: addr,
				timeout:   timeout,
				showOTel:  showOTel,
			})
		},
	}

	cmd.Flags().IntVar(&tabs, "tabs", 8, "Number of simulated tabs")
	cmd.Flags().IntVar(&rounds, "rounds", 200, "Sign-in/sign-out rounds")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address; if empty, REDIS_ADDR or an in-memory Redis is used")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "How long one round waits for every tab")
	cmd.Flags().BoolVar(&showOTel, "otel", false, "Print metrics collected through the OpenTelemetry exporter")

	return cmd
}

type tabsOptions struct {
	tabs      int
	rounds    int
	redisAddr string
	timeout   time.Duration
	showOTel  bool
}

// staticBackend accepts every credential and recognises the tokens it issued.
type staticBackend struct {
	token string
}

func (b staticBackend) CreateSession(_ context.Context, creds apiclient.Credentials) (apiclient.SessionResponse, error) {
	return apiclient.SessionResponse{
		Token:        b.token,
		RefreshToken: uuid.NewString(),
		Permissions:  []string{"users.list"},
		Roles:        []string{"viewer"},
	}, nil
}

func (b staticBackend) Me(context.Context) (apiclient.Profile, error) {
	return apiclient.Profile{Email: "load@example.com", Permissions: []string{"users.list"}, Roles: []string{"viewer"}}, nil
}

type arrival struct {
	tab  int
	path string
	at   time.Time
}

type arrivalNavigator struct {
	tab int
	out chan<- arrival
}

func (n arrivalNavigator) Push(_ context.Context, path string) {
	n.out <- arrival{tab: n.tab, path: path, at: time.Now()}
}

func runTabs(ctx context.Context, w io.Writer, cfg authstate.Config, logger *slog.Logger, opts tabsOptions) error {
	addr := opts.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(w, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(w, "using redis at %s\n", addr)
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	cfg.Channel.Transport = authstate.TransportRedis
	cfg.Channel.RedisPrefix = "authstate-demo:" + uuid.NewString()
	cfg.Metrics = authstate.MetricsConfig{Enabled: true, EnableLatencyHistograms: true}

	metrics := authstate.NewMetrics(cfg.Metrics)
	backend := staticBackend{token: uuid.NewString()}
	arrivals := make(chan arrival, opts.tabs*4)

	stores := make([]*authstate.Store, 0, opts.tabs)
	defer func() {
		for _, s := range stores {
			_ = s.Close()
		}
	}()
	for i := 0; i < opts.tabs; i++ {
		store, err := authstate.New().
			WithConfig(cfg).
			WithRedis(client).
			WithBackend(backend).
			WithNavigator(arrivalNavigator{tab: i, out: arrivals}).
			WithMetrics(metrics).
			WithLogger(logger.With(slog.Int("tab", i))).
			Build()
		if err != nil {
			return fmt.Errorf("build tab %d: %w", i, err)
		}
		stores = append(stores, store)
		if err := store.Init(ctx); err != nil {
			return fmt.Errorf("init tab %d: %w", i, err)
		}
	}

	var (
		samples  = make([]time.Duration, 0, opts.rounds*(opts.tabs-1))
		failures int64
	)
	start := time.Now()
	for r := 0; r < opts.rounds; r++ {
		poster := r % opts.tabs
		stores[poster].SignIn(ctx, authstate.Credentials{Email: "load@example.com", Password: "load"})
		drain(arrivals)

		t0 := time.Now()
		stores[poster].SignOut(ctx, true)
		got, missed := collectArrivals(arrivals, poster, opts.tabs-1, opts.timeout)
		for _, a := range got {
			samples = append(samples, a.at.Sub(t0))
		}
		failures += int64(missed)
	}
	stats := computeStats(time.Since(start), samples, failures)

	fmt.Fprintln(w, "---- results ----")
	printStats(w, "sign-out propagation", stats)

	if opts.showOTel {
		return printOTel(ctx, w, stores[0])
	}
	return nil
}

func drain(ch <-chan arrival) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// collectArrivals waits for want sign-out navigations from tabs other than
// poster and returns them with the number that never came.
func collectArrivals(ch <-chan arrival, poster, want int, timeout time.Duration) ([]arrival, int) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	seen := make(map[int]bool, want)
	out := make([]arrival, 0, want)
	for len(out) < want {
		select {
		case a := <-ch:
			if a.tab == poster || seen[a.tab] {
				continue
			}
			seen[a.tab] = true
			out = append(out, a)
		case <-deadline.C:
			return out, want - len(out)
		}
	}
	return out, 0
}

type phaseStats struct {
	total    time.Duration
	samples  int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		samples:  len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(w io.Writer, name string, s phaseStats) {
	fmt.Fprintf(w, "%s: deliveries=%d missed=%d total=%s p50=%s p95=%s p99=%s\n",
		name,
		s.samples,
		s.failures,
		s.total.Round(time.Millisecond),
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printOTel(ctx context.Context, w io.Writer, source otelexport.MetricsSource) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	exporter, err := otelexport.NewOTelExporter(provider.Meter(appName), source)
	if err != nil {
		return err
	}
	defer exporter.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}

	fmt.Fprintln(w, "---- otel ----")
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if le, ok := dp.Attributes.Value(attribute.Key(otelexport.BucketAttribute)); ok {
					fmt.Fprintf(w, "%s{le=%s} %d\n", m.Name, le.AsString(), dp.Value)
					continue
				}
				fmt.Fprintf(w, "%s %d\n", m.Name, dp.Value)
			}
		}
	}
	return nil
}
