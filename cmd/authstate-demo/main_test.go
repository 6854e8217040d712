package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/internal/devserver"
	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/password"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := out.String(); !strings.Contains(got, Version) {
		t.Fatalf("version output %q missing %s", got, Version)
	}
}

func TestSigninRequiresCredentials(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"signin", "--api", "http://127.0.0.1:1"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected missing flag error")
	}
}

func TestRunSigninPropagatesSignOut(t *testing.T) {
	hasher, err := password.New(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	users := devserver.NewUsers(hasher)
	if err := users.Add("grace@example.com", "battery-staple", []string{"users.list"}, []string{"viewer"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("demo-secret-0123456789abcdef0123"),
	})
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}
	api, err := devserver.New(users, signer, quietLogger())
	if err != nil {
		t.Fatalf("devserver.New: %v", err)
	}
	ts := httptest.NewServer(api.Routes())
	defer ts.Close()

	cfg := authstate.DefaultConfig()
	cfg.API.BaseURL = ts.URL

	var out bytes.Buffer
	err = runSignin(context.Background(), &out, cfg, quietLogger(),
		authstate.Credentials{Email: "grace@example.com", Password: "battery-staple"}, 3)
	if err != nil {
		t.Fatalf("runSignin: %v\n%s", err, out.String())
	}

	got := out.String()
	if c := strings.Count(got, "grace@example.com"); c != 3 {
		t.Fatalf("expected 3 signed-in tabs, got %d:\n%s", c, got)
	}
	if c := strings.Count(got, "signed out  page=/"); c != 3 {
		t.Fatalf("expected 3 signed-out tabs, got %d:\n%s", c, got)
	}
}

func TestRunSigninRejectedCredentials(t *testing.T) {
	hasher, err := password.New(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("demo-secret-0123456789abcdef0123"),
	})
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}
	api, err := devserver.New(devserver.NewUsers(hasher), signer, quietLogger())
	if err != nil {
		t.Fatalf("devserver.New: %v", err)
	}
	ts := httptest.NewServer(api.Routes())
	defer ts.Close()

	cfg := authstate.DefaultConfig()
	cfg.API.BaseURL = ts.URL

	err = runSignin(context.Background(), io.Discard, cfg, quietLogger(),
		authstate.Credentials{Email: "nobody@example.com", Password: "x"}, 2)
	if err == nil {
		t.Fatal("expected sign-in failure")
	}
}

func TestRunTabsOverMiniredis(t *testing.T) {
	var out bytes.Buffer
	err := runTabs(context.Background(), &out, authstate.DefaultConfig(), quietLogger(), tabsOptions{
		tabs:     3,
		rounds:   5,
		timeout:  2 * time.Second,
		showOTel: true,
	})
	if err != nil {
		t.Fatalf("runTabs: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "deliveries=10 missed=0") {
		t.Fatalf("unexpected propagation stats:\n%s", got)
	}
	if !strings.Contains(got, "authstate_sign_out_broadcast_total 5") {
		t.Fatalf("otel output missing broadcast count:\n%s", got)
	}
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	cases := []struct {
		p    int
		want time.Duration
	}{
		{0, 1},
		{50, 5},
		{99, 9},
		{100, 10},
	}
	for _, tc := range cases {
		if got := percentile(samples, tc.p); got != tc.want {
			t.Fatalf("percentile(%d)=%d want %d", tc.p, got, tc.want)
		}
	}
}
