package authstate

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigHasNoHighWarnings(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Lint().AsError(LintHigh); err != nil {
		t.Fatalf("default config should not fail AsError(LintHigh): %v", err)
	}
	codes := cfg.Lint().Codes()
	for _, want := range []string{"cookie_not_secure", "jwt_unverified", "audit_disabled"} {
		if !containsCode(codes, want) {
			t.Errorf("expected %s warning for default config", want)
		}
	}
}

func TestLint_HardenedConfigMinimalWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cookie.Secure = true
	cfg.API.Timeout = 5 * time.Second
	cfg.JWT.Verify = true
	cfg.JWT.Key = "AAAA"
	cfg.Audit.Enabled = true

	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws.Codes())
	}
}

func TestLint_SameSiteNoneInsecure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cookie.SameSite = "none"
	ws := cfg.Lint()
	if !containsCode(ws.Codes(), "samesite_none_insecure") {
		t.Fatal("expected samesite_none_insecure warning")
	}
	if ws.AsError(LintHigh) == nil {
		t.Fatal("expected AsError(LintHigh) to fail")
	}
}

func TestLint_TransportWithoutAddress(t *testing.T) {
	tests := []struct {
		transport string
		code      string
	}{
		{TransportRedis, "redis_addr_missing"},
		{TransportNATS, "nats_url_missing"},
	}
	for _, tc := range tests {
		cfg := DefaultConfig()
		cfg.Channel.Transport = tc.transport
		if !containsCode(cfg.Lint().Codes(), tc.code) {
			t.Errorf("expected %s for transport %s", tc.code, tc.transport)
		}
	}
}

func TestLint_LongCookie(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cookie.MaxAge = 365 * 24 * time.Hour
	if !containsCode(cfg.Lint().Codes(), "cookie_max_age_long") {
		t.Fatal("expected cookie_max_age_long warning")
	}
}

func TestLint_BySeverity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cookie.SameSite = "none"
	for _, w := range cfg.Lint().BySeverity(LintWarn) {
		if w.Severity < LintWarn {
			t.Errorf("BySeverity(LintWarn) returned %s", w.Severity)
		}
	}
	if LintHigh.String() != "HIGH" {
		t.Fatalf("unexpected severity string %q", LintHigh.String())
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
