package authstate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/apiclient"
	"github.com/MrEthical07/authstate/broadcast"
	"github.com/MrEthical07/authstate/cookie"
	"github.com/MrEthical07/authstate/internal/devserver"
	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/middleware"
	"github.com/MrEthical07/authstate/password"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()

	hasher, err := password.New(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16})
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	users := devserver.NewUsers(hasher)
	if err := users.Add("ada@example.com", "correct-horse", []string{"users.list"}, []string{"administrator"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	signer, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("e2e-secret-0123456789abcdef01234"),
	})
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}
	srv, err := devserver.New(users, signer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("devserver.New: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestSessionAcrossTabsAgainstBackend(t *testing.T) {
	backend := startBackend(t)
	cfg := authstate.DefaultConfig()
	cfg.API.BaseURL = backend.URL

	hub := broadcast.NewHub()
	jar := cookie.NewMemoryJar()
	ctx := context.Background()

	open := func() *authstate.Store {
		s, err := authstate.New().
			WithConfig(cfg).
			WithHub(hub).
			WithJar(jar).
			WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
			Build()
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		t.Cleanup(func() { _ = s.Close() })
		if err := s.Init(ctx); err != nil {
			t.Fatalf("Init: %v", err)
		}
		return s
	}

	first := open()
	first.SignIn(ctx, authstate.Credentials{Email: "ada@example.com", Password: "wrong-horse"})
	if first.IsAuthenticated() {
		t.Fatal("wrong password authenticated")
	}
	first.SignIn(ctx, authstate.Credentials{Email: "ada@example.com", Password: "correct-horse"})
	if !first.IsAuthenticated() {
		t.Fatal("sign-in failed")
	}

	second := open()
	u, ok := second.User()
	if !ok || u.Email != "ada@example.com" || u.Roles[0] != "administrator" {
		t.Fatalf("second tab user = %+v, %v", u, ok)
	}

	// Server-side render with the same cookie.
	guard := middleware.NewGuard(middleware.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	page := guard.Handler(func(rc middleware.RenderContext) (middleware.RenderResult, error) {
		u, _ := authstate.UserFromContext(rc.Context())
		return middleware.RenderResult{Props: map[string]string{"email": u.Email}}, nil
	}, &middleware.Requirements{Permissions: []string{"users.list"}, Roles: []string{"administrator"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(&http.Cookie{Name: cookie.TokenName, Value: first.Token()})
	rec := httptest.NewRecorder()
	page.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("guarded page status = %d", rec.Code)
	}

	first.SignOut(ctx, true)
	if first.IsAuthenticated() || second.IsAuthenticated() {
		t.Fatal("sign-out did not reach both tabs")
	}
	if first.Token() != "" {
		t.Fatal("token survived sign-out")
	}
}

func TestGuardForcesSignOutOnRejectedToken(t *testing.T) {
	backend := startBackend(t)

	forger, err := jwt.NewManager(jwt.Config{
		AccessTTL:     time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("not-the-backend-secret-000000000"),
	})
	if err != nil {
		t.Fatalf("jwt.NewManager: %v", err)
	}
	forged, _ := forger.CreateAccess("ada@example.com", "x", "ada@example.com", []string{"users.list"}, nil)

	loader := func(rc middleware.RenderContext) (middleware.RenderResult, error) {
		token, _ := cookie.NewHTTPJar(nil, rc.Request).Get(cookie.TokenName)
		client, err := apiclient.New(backend.URL, apiclient.WithTokenSource(apiclient.TokenSourceFunc(func() string { return token })))
		if err != nil {
			return middleware.RenderResult{}, err
		}
		profile, err := client.Me(rc.Context())
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return middleware.RenderResult{}, authstate.ErrAuthTokenInvalid
		}
		if err != nil {
			return middleware.RenderResult{}, err
		}
		return middleware.RenderResult{Props: profile}, nil
	}

	page := middleware.NewGuard(middleware.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).
		Handler(loader, &middleware.Requirements{Permissions: []string{"users.list"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(&http.Cookie{Name: cookie.TokenName, Value: forged})
	rec := httptest.NewRecorder()
	page.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
	expired := 0
	for _, c := range rec.Result().Cookies() {
		if (c.Name == cookie.TokenName || c.Name == cookie.RefreshTokenName) && c.MaxAge < 0 {
			expired++
		}
	}
	if expired != 2 {
		t.Fatalf("expected both cookies expired, got %v", rec.Header().Values("Set-Cookie"))
	}
}
