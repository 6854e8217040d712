package authstate

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/MrEthical07/authstate/broadcast"
	"github.com/MrEthical07/authstate/cookie"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every variable read by [LoadConfigFromEnv].
const EnvPrefix = "AUTHSTATE_"

// Config defines everything a [Store] needs besides its collaborators.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	API     APIConfig     `envPrefix:"API_" yaml:"api"`
	Cookie  CookieConfig  `envPrefix:"COOKIE_" yaml:"cookie"`
	Channel ChannelConfig `envPrefix:"CHANNEL_" yaml:"channel"`
	Routes  RoutesConfig  `envPrefix:"ROUTES_" yaml:"routes"`
	JWT     JWTConfig     `envPrefix:"JWT_" yaml:"jwt"`
	Audit   AuditConfig   `envPrefix:"AUDIT_" yaml:"audit"`
	Metrics MetricsConfig `envPrefix:"METRICS_" yaml:"metrics"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points the store at the backend session API.
type APIConfig struct {
	BaseURL string `env:"BASE_URL" yaml:"base_url"`
	// Timeout bounds each backend call. Zero means no client-side timeout.
	Timeout time.Duration `env:"TIMEOUT" yaml:"timeout"`
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls the attributes of the session cookies. The cookie
// names themselves are fixed.
type CookieConfig struct {
	MaxAge   time.Duration `env:"MAX_AGE" yaml:"max_age"`
	Path     string        `env:"PATH" yaml:"path"`
	Secure   bool          `env:"SECURE" yaml:"secure"`
	HTTPOnly bool          `env:"HTTP_ONLY" yaml:"http_only"`
	SameSite string        `env:"SAME_SITE" yaml:"same_site"` // "lax" (default), "strict", "none"
}

// Options converts c into the attributes written with each session cookie.
func (c CookieConfig) Options() cookie.Options {
	opts := cookie.SessionOptions()
	if c.MaxAge > 0 {
		opts.MaxAge = c.MaxAge
	}
	if c.Path != "" {
		opts.Path = c.Path
	}
	opts.Secure = c.Secure
	opts.HTTPOnly = c.HTTPOnly
	opts.SameSite = sameSiteMode(c.SameSite)
	return opts
}

func sameSiteMode(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "", "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

/*
====================================
CHANNEL CONFIG
====================================
*/

const (
	TransportMemory = "memory"
	TransportRedis  = "redis"
	TransportNATS   = "nats"
)

// ChannelConfig selects the cross-tab channel transport.
type ChannelConfig struct {
	Name        string `env:"NAME" yaml:"name"`
	Transport   string `env:"TRANSPORT" yaml:"transport"`
	RedisAddr   string `env:"REDIS_ADDR" yaml:"redis_addr"`
	RedisPrefix string `env:"REDIS_PREFIX" yaml:"redis_prefix"`
	NATSURL     string `env:"NATS_URL" yaml:"nats_url"`
	NATSPrefix  string `env:"NATS_PREFIX" yaml:"nats_prefix"`
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig names the pages the store navigates to.
type RoutesConfig struct {
	AfterSignIn  string `env:"AFTER_SIGN_IN" yaml:"after_sign_in"`
	AfterSignOut string `env:"AFTER_SIGN_OUT" yaml:"after_sign_out"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig enables signature verification of session tokens in the render
// guard. With Verify false, claims are decoded without verification and only
// the backend's answer to GET /me is authoritative.
type JWTConfig struct {
	Verify        bool          `env:"VERIFY" yaml:"verify"`
	SigningMethod string        `env:"SIGNING_METHOD" yaml:"signing_method"` // "ed25519" (default), "hs256"
	Key           string        `env:"KEY" yaml:"key"`                       // base64: ed25519 public key or hs256 secret
	Issuer        string        `env:"ISSUER" yaml:"issuer"`
	Audience      string        `env:"AUDIENCE" yaml:"audience"`
	Leeway        time.Duration `env:"LEEWAY" yaml:"leeway"`
}

// DecodedKey returns the base64-decoded verification key.
func (c JWTConfig) DecodedKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.Key))
	if err != nil {
		return nil, fmt.Errorf("decode jwt key: %w", err)
	}
	return key, nil
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `env:"ENABLED" yaml:"enabled"`
	BufferSize int  `env:"BUFFER_SIZE" yaml:"buffer_size"`
	DropIfFull bool `env:"DROP_IF_FULL" yaml:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED" yaml:"enabled"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS" yaml:"latency_histograms"`
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when none is supplied: an
// in-process channel named "auth", 30-day cookies on path "/", and
// navigation to /dashboard and / after sign-in and sign-out.
func DefaultConfig() Config {
	return Config{
		Cookie: CookieConfig{
			MaxAge:   cookie.DefaultMaxAge,
			Path:     cookie.DefaultPath,
			SameSite: "lax",
		},
		Channel: ChannelConfig{
			Name:        broadcast.DefaultName,
			Transport:   TransportMemory,
			RedisPrefix: "authstate",
			NATSPrefix:  "authstate",
		},
		Routes: RoutesConfig{
			AfterSignIn:  "/dashboard",
			AfterSignOut: "/",
		},
		JWT: JWTConfig{
			SigningMethod: "ed25519",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in [ErrInvalidConfig].
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) validate() error {
	// API
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("API BaseURL must be an absolute URL")
		}
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	// Cookie
	if c.Cookie.MaxAge <= 0 {
		return errors.New("Cookie MaxAge must be > 0")
	}
	if !strings.HasPrefix(c.Cookie.Path, "/") {
		return errors.New("Cookie Path must start with '/'")
	}
	switch strings.ToLower(strings.TrimSpace(c.Cookie.SameSite)) {
	case "", "lax", "strict", "none":
	default:
		return errors.New("Cookie SameSite must be 'lax', 'strict' or 'none'")
	}

	// Channel
	if strings.TrimSpace(c.Channel.Name) == "" {
		return errors.New("Channel Name must not be empty")
	}
	switch c.Channel.Transport {
	case TransportMemory, TransportRedis, TransportNATS:
	default:
		return errors.New("Channel Transport must be 'memory', 'redis' or 'nats'")
	}

	// Routes
	if !strings.HasPrefix(c.Routes.AfterSignIn, "/") {
		return errors.New("Routes AfterSignIn must start with '/'")
	}
	if !strings.HasPrefix(c.Routes.AfterSignOut, "/") {
		return errors.New("Routes AfterSignOut must start with '/'")
	}

	// JWT
	if c.JWT.Verify {
		switch c.JWT.SigningMethod {
		case "ed25519", "hs256":
		default:
			return errors.New("unsupported JWT signing method")
		}
		key, err := c.JWT.DecodedKey()
		if err != nil {
			return err
		}
		if len(key) == 0 {
			return errors.New("JWT Verify requires Key")
		}
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}

/*
====================================
LOADING
====================================
*/

// LoadConfigFromEnv overlays AUTHSTATE_* environment variables on
// [DefaultConfig], e.g. AUTHSTATE_API_BASE_URL or AUTHSTATE_CHANNEL_TRANSPORT.
// Unset variables keep their defaults.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile overlays a YAML file on [DefaultConfig].
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return ParseConfigYAML(data)
}

// ParseConfigYAML is [LoadConfigFile] for an in-memory document.
func ParseConfigYAML(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}
