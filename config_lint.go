package authstate

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks configuration warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is a valid but questionable setting.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list returned by [Config.Lint].
type LintResult []LintWarning

func (r LintResult) Codes() []string {
	out := make([]string, 0, len(r))
	for _, w := range r {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (r LintResult) BySeverity(min LintSeverity) LintResult {
	var out LintResult
	for _, w := range r {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError folds warnings at or above min into one error, or returns nil.
func (r LintResult) AsError(min LintSeverity) error {
	matched := r.BySeverity(min)
	if len(matched) == 0 {
		return nil
	}
	parts := make([]string, 0, len(matched))
	for _, w := range matched {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that pass [Config.Validate] but are unlikely to be
// intended in production. Lint never mutates c.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if !c.Cookie.Secure {
		add("cookie_not_secure", LintWarn, "session cookies are sent over plain HTTP")
	}
	if strings.EqualFold(strings.TrimSpace(c.Cookie.SameSite), "none") && !c.Cookie.Secure {
		add("samesite_none_insecure", LintHigh, "browsers reject SameSite=None cookies without Secure")
	}
	if c.Cookie.MaxAge > 90*24*time.Hour {
		add("cookie_max_age_long", LintWarn, "session cookies outlive 90 days")
	}
	if c.API.Timeout == 0 {
		add("api_no_timeout", LintInfo, "backend calls are bounded only by the caller's context")
	}
	if !c.JWT.Verify {
		add("jwt_unverified", LintWarn, "the render guard trusts unverified token claims")
	}
	if c.JWT.Verify && c.JWT.SigningMethod == "hs256" {
		add("jwt_hs256_shared_secret", LintInfo, "hs256 verification needs the signing secret on every front-end host")
	}
	if c.Channel.Transport == TransportRedis && c.Channel.RedisAddr == "" {
		add("redis_addr_missing", LintHigh, "redis transport needs RedisAddr or a client passed to the builder")
	}
	if c.Channel.Transport == TransportNATS && c.Channel.NATSURL == "" {
		add("nats_url_missing", LintHigh, "nats transport needs NATSURL or a connection passed to the builder")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "sign-in and sign-out events are not audited")
	}

	return ws
}
