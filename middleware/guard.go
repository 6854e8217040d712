package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authstate"
	"github.com/MrEthical07/authstate/cookie"
	"github.com/MrEthical07/authstate/jwt"
	"github.com/MrEthical07/authstate/permission"
)

const (
	// DefaultSignInRoute receives requests without a session token and
	// requests whose token the backend rejected.
	DefaultSignInRoute = "/"
	// DefaultForbiddenRoute receives requests whose claims lack a required
	// permission or role.
	DefaultForbiddenRoute = "/dashboard"
)

// RenderContext is the request a page loader runs for.
type RenderContext struct {
	Request *http.Request
	Writer  http.ResponseWriter
}

// Context returns the request context, which carries the decoded user.
func (rc RenderContext) Context() context.Context {
	if rc.Request == nil {
		return context.Background()
	}
	return rc.Request.Context()
}

// Redirect sends the browser elsewhere instead of rendering.
type Redirect struct {
	Destination string
	Permanent   bool
}

// RenderResult is what a page loader produces: props to render, a redirect,
// or a not-found marker.
type RenderResult struct {
	Props    any
	Redirect *Redirect
	NotFound bool
}

// RenderFunc loads the data for one server-rendered page.
type RenderFunc func(rc RenderContext) (RenderResult, error)

// Requirements lists the permissions and roles a page needs. All of them
// must be held.
type Requirements struct {
	Permissions []string
	Roles       []string
}

// Guard gates page loaders on the session token cookie and its claims.
type Guard struct {
	verifier       *jwt.Manager
	metrics        *authstate.Metrics
	audit          authstate.AuditSink
	logger         *slog.Logger
	signInRoute    string
	forbiddenRoute string
	cookieOpts     cookie.Options
}

type Option func(*Guard)

// WithVerifier makes the guard verify token signatures with m instead of
// decoding claims unverified. A token that fails verification is handled like
// a backend rejection: the session cookies are expired and the visitor is sent
// to the sign-in route without running the loader, whatever the requirements.
func WithVerifier(m *jwt.Manager) Option {
	return func(g *Guard) { g.verifier = m }
}

func WithMetrics(m *authstate.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithAuditSink records redirects and forced sign-outs. The sink is called
// synchronously on the request goroutine.
func WithAuditSink(sink authstate.AuditSink) Option {
	return func(g *Guard) { g.audit = sink }
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// WithRoutes overrides the redirect destinations. Empty values keep the
// defaults.
func WithRoutes(signIn, forbidden string) Option {
	return func(g *Guard) {
		if signIn != "" {
			g.signInRoute = signIn
		}
		if forbidden != "" {
			g.forbiddenRoute = forbidden
		}
	}
}

// WithCookieOptions sets the path and scope the session cookies were written
// with, so forced sign-outs expire the same cookies.
func WithCookieOptions(opts cookie.Options) Option {
	return func(g *Guard) { g.cookieOpts = opts }
}

func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		signInRoute:    DefaultSignInRoute,
		forbiddenRoute: DefaultForbiddenRoute,
		cookieOpts:     cookie.SessionOptions(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// NewGuardFromConfig builds a guard whose routes, cookies and verification
// follow cfg: signed-out visitors go to Routes.AfterSignOut, under-privileged
// ones to Routes.AfterSignIn, forced sign-outs expire cookies on Cookie.Path,
// and JWT.Verify enables signature checks.
func NewGuardFromConfig(cfg authstate.Config, opts ...Option) (*Guard, error) {
	base := []Option{
		WithRoutes(cfg.Routes.AfterSignOut, cfg.Routes.AfterSignIn),
		WithCookieOptions(cfg.Cookie.Options()),
	}
	if cfg.JWT.Verify {
		m, err := newVerifier(cfg.JWT)
		if err != nil {
			return nil, err
		}
		base = append(base, WithVerifier(m))
	}
	return NewGuard(append(base, opts...)...), nil
}

func newVerifier(cfg authstate.JWTConfig) (*jwt.Manager, error) {
	key, err := cfg.DecodedKey()
	if err != nil {
		return nil, err
	}
	jc := jwt.Config{
		// Only verification happens here; the TTL is never used to issue.
		AccessTTL:     time.Minute,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
	}
	if jc.SigningMethod == jwt.MethodHS256 {
		jc.PrivateKey = key
	} else {
		jc.PublicKey = key
	}
	return jwt.NewManager(jc)
}

var defaultGuard = NewGuard()

// WithSSRAuth wraps fn with a guard using the default routes and unverified
// claim decoding.
func WithSSRAuth(fn RenderFunc, req *Requirements) RenderFunc {
	return defaultGuard.Wrap(fn, req)
}

// Wrap returns a loader that runs fn only for requests carrying a session
// token whose claims satisfy req. A nil req only checks token presence.
//
// When fn fails with [authstate.ErrAuthTokenInvalid], or a verifying guard
// rejects the token, both session cookies are expired on the response and the
// visitor is sent to the sign-in route. Any other error from fn is returned
// unchanged.
func (g *Guard) Wrap(fn RenderFunc, req *Requirements) RenderFunc {
	return func(rc RenderContext) (RenderResult, error) {
		ctx := rc.Context()
		jar := cookie.NewHTTPJar(rc.Writer, rc.Request)

		token, ok := jar.Get(cookie.TokenName)
		if !ok {
			g.metrics.Inc(authstate.MetricGuardMissingToken)
			g.emit(ctx, rc, authstate.AuditEventGuardRedirect, "", "missing_token", g.signInRoute)
			return redirectTo(g.signInRoute), nil
		}

		claims, claimsErr := g.claims(token)
		if claimsErr != nil && g.verifier != nil {
			g.logger.Info("authstate: session token failed verification",
				slog.String("path", requestPath(rc)),
				slog.Any("error", claimsErr),
			)
			return g.forceSignOut(ctx, rc, jar, "token_unverified"), nil
		}
		if req != nil {
			// An undecodable token holds nothing, so it passes only empty
			// requirements. Only unverified decoding gets here with an error.
			var heldPermissions, heldRoles []string
			if claimsErr == nil {
				heldPermissions, heldRoles = claims.Permissions, claims.Roles
			}
			need := permission.Requirement{Permissions: req.Permissions, Roles: req.Roles}
			if !permission.Validate(heldPermissions, heldRoles, need) {
				g.metrics.Inc(authstate.MetricGuardForbidden)
				missingPermissions, missingRoles := permission.Missing(heldPermissions, heldRoles, need)
				g.logger.Debug("authstate: render forbidden",
					slog.String("path", requestPath(rc)),
					slog.Any("missing_permissions", missingPermissions),
					slog.Any("missing_roles", missingRoles),
					slog.Bool("claims_decoded", claimsErr == nil),
				)
				email := ""
				if claims != nil {
					email = claims.Email
				}
				g.emit(ctx, rc, authstate.AuditEventGuardRedirect, email, "forbidden", g.forbiddenRoute)
				return redirectTo(g.forbiddenRoute), nil
			}
		}

		if claimsErr == nil && rc.Request != nil {
			ctx = authstate.WithUser(ctx, authstate.User{
				Email:       claims.Email,
				Permissions: claims.Permissions,
				Roles:       claims.Roles,
			})
			rc.Request = rc.Request.WithContext(ctx)
		}

		start := time.Now()
		res, err := fn(rc)
		if g.metrics.LatencyEnabled() {
			g.metrics.Observe(authstate.MetricRenderLatency, time.Since(start))
		}
		if err != nil {
			if errors.Is(err, authstate.ErrAuthTokenInvalid) {
				g.logger.Info("authstate: session token rejected during render",
					slog.String("path", requestPath(rc)),
				)
				return g.forceSignOut(ctx, rc, jar, "auth_token_invalid"), nil
			}
			g.metrics.Inc(authstate.MetricGuardError)
			return RenderResult{}, err
		}

		g.metrics.Inc(authstate.MetricGuardRendered)
		return res, nil
	}
}

func (g *Guard) forceSignOut(ctx context.Context, rc RenderContext, jar cookie.Jar, reason string) RenderResult {
	cookie.DestroySession(jar, g.cookieOpts)
	g.metrics.Inc(authstate.MetricGuardAuthTokenInvalid)
	g.emit(ctx, rc, authstate.AuditEventGuardTokenReject, "", reason, g.signInRoute)
	return redirectTo(g.signInRoute)
}

func (g *Guard) claims(token string) (*jwt.Claims, error) {
	if g.verifier != nil {
		return g.verifier.ParseAccess(token)
	}
	return jwt.Decode(token)
}

func (g *Guard) emit(ctx context.Context, rc RenderContext, eventType, email, reason, destination string) {
	if g.audit == nil {
		return
	}
	g.audit.Emit(ctx, authstate.AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Email:     email,
		Path:      requestPath(rc),
		Success:   false,
		Error:     reason,
		Metadata:  map[string]string{"destination": destination},
	})
}

// MetricsSnapshot lets exporters read the guard's metrics.
func (g *Guard) MetricsSnapshot() authstate.MetricsSnapshot {
	return g.metrics.Snapshot()
}

// AuditDropped reports drops when the audit sink counts them.
func (g *Guard) AuditDropped() uint64 {
	if d, ok := g.audit.(interface{ Dropped() uint64 }); ok {
		return d.Dropped()
	}
	return 0
}

func redirectTo(dest string) RenderResult {
	return RenderResult{Redirect: &Redirect{Destination: dest, Permanent: false}}
}

func requestPath(rc RenderContext) string {
	if rc.Request == nil || rc.Request.URL == nil {
		return ""
	}
	return rc.Request.URL.Path
}
