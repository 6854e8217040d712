package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/broadcast"
	"github.com/MrEthical07/authstate/cookie"
	"github.com/spf13/cobra"
)

func signinCmd(g *globalFlags) *cobra.Command {
	var (
		api      string
		email    string
		password string
		tabs     int
	)

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in against a session API and sign out across simulated tabs",
		Long: `Signin opens --tabs stores sharing one cookie jar, the way tabs of a
browser profile do. The first tab signs in, the others restore the session
from the cookie, then the first tab signs out and every tab follows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tabs < 1 {
				return errors.New("--tabs must be at least 1")
			}
			logger := g.logger()
			cfg, err := g.config(logger)
			if err != nil {
				return err
			}
			if api != "" {
				cfg.API.BaseURL = api
			}
			return runSignin(cmd.Context(), cmd.OutOrStdout(), cfg, logger, authstate.Credentials{Email: email, Password: password}, tabs)
		},
	}

	cmd.Flags().StringVar(&api, "api", "", "Session API base URL (overrides api.base_url)")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.Flags().IntVar(&tabs, "tabs", 3, "Number of simulated tabs")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// tabNavigator records where a tab was sent.
type tabNavigator struct {
	mu   sync.Mutex
	path string
}

func (n *tabNavigator) Push(_ context.Context, path string) {
	n.mu.Lock()
	n.path = path
	n.mu.Unlock()
}

func (n *tabNavigator) current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

type tab struct {
	store *authstate.Store
	nav   *tabNavigator
}

func openTabs(ctx context.Context, cfg authstate.Config, logger *slog.Logger, n int, configure func(*authstate.Builder)) ([]tab, func(), error) {
	jar := cookie.NewMemoryJar()
	hub := broadcast.NewHub()

	out := make([]tab, 0, n)
	closeAll := func() {
		for _, t := range out {
			_ = t.store.Close()
		}
	}

	for i := 0; i < n; i++ {
		nav := &tabNavigator{}
		b := authstate.New().
			WithConfig(cfg).
			WithJar(jar).
			WithNavigator(nav).
			WithLogger(logger.With(slog.Int("tab", i)))
		if cfg.Channel.Transport == authstate.TransportMemory {
			b.WithHub(hub)
		}
		if configure != nil {
			configure(b)
		}
		store, err := b.Build()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("build tab %d: %w", i, err)
		}
		out = append(out, tab{store: store, nav: nav})
	}

	// The first tab is initialized before sign-in so it can broadcast.
	if err := out[0].store.Init(ctx); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("init tab 0: %w", err)
	}
	return out, closeAll, nil
}

func runSignin(ctx context.Context, w io.Writer, cfg authstate.Config, logger *slog.Logger, creds authstate.Credentials, n int) error {
	tabs, closeAll, err := openTabs(ctx, cfg, logger, n, nil)
	if err != nil {
		return err
	}
	defer closeAll()

	tabs[0].store.SignIn(ctx, creds)
	if !tabs[0].store.IsAuthenticated() {
		return fmt.Errorf("sign-in as %s failed", creds.Email)
	}

	for i := 1; i < len(tabs); i++ {
		if err := tabs[i].store.Init(ctx); err != nil {
			return fmt.Errorf("init tab %d: %w", i, err)
		}
	}
	printTabs(w, "after sign-in", tabs)

	tabs[0].store.SignOut(ctx, true)
	// Redis and NATS deliver asynchronously.
	stillIn := waitSignedOut(tabs, 2*time.Second)
	printTabs(w, "after sign-out", tabs)

	if stillIn >= 0 {
		return fmt.Errorf("tab %d still signed in after broadcast sign-out", stillIn)
	}
	return nil
}

// waitSignedOut polls until no tab holds a user and returns -1, or returns
// the first tab still signed in when timeout passes.
func waitSignedOut(tabs []tab, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for {
		first := -1
		for i, t := range tabs {
			if t.store.IsAuthenticated() {
				first = i
				break
			}
		}
		if first < 0 || time.Now().After(deadline) {
			return first
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func printTabs(w io.Writer, title string, tabs []tab) {
	fmt.Fprintf(w, "---- %s ----\n", title)
	for i, t := range tabs {
		u, ok := t.store.User()
		if !ok {
			fmt.Fprintf(w, "tab %d: signed out  page=%s\n", i, t.nav.current())
			continue
		}
		fmt.Fprintf(w, "tab %d: %s permissions=%v roles=%v page=%s\n", i, u.Email, u.Permissions, u.Roles, t.nav.current())
	}
}
