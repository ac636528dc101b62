package authclient

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/authapi"
	"github.com/MrEthical07/authclient/refresh"
	"github.com/MrEthical07/authclient/route"
	"github.com/MrEthical07/authclient/session"
)

// Session persistence backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the full Manager configuration. Field tags are the keys read by [LoadConfig].
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Token   TokenConfig   `mapstructure:"token"`
	Session SessionConfig `mapstructure:"session"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Routes  RoutesConfig  `mapstructure:"routes"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the back-office API and its auth endpoints.
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	LoginPath    string        `mapstructure:"login_path"`
	RegisterPath string        `mapstructure:"register_path"`
	VerifyPath   string        `mapstructure:"verify_path"`
	RefreshPath  string        `mapstructure:"refresh_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
	// ExemptSuffixes and ExemptSubstrings replace the default gate exemptions when set.
	// LoginPath, RegisterPath and RefreshPath are exempt regardless.
	ExemptSuffixes   []string `mapstructure:"exempt_suffixes"`
	ExemptSubstrings []string `mapstructure:"exempt_substrings"`
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls access token decoding. An empty SigningMethod decodes without
// verifying signatures.
type TokenConfig struct {
	SigningMethod string        `mapstructure:"signing_method"`
	VerifyKey     string        `mapstructure:"verify_key"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	ExpirySkew    time.Duration `mapstructure:"expiry_skew"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig selects where credentials persist.
type SessionConfig struct {
	Backend     string        `mapstructure:"backend"`
	FilePath    string        `mapstructure:"file_path"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
	AccessSlot  string        `mapstructure:"access_slot"`
	RefreshSlot string        `mapstructure:"refresh_slot"`
}

// RefreshConfig bounds token renewal.
type RefreshConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// RoutesConfig names the redirect targets of route decisions.
type RoutesConfig struct {
	Login           string `mapstructure:"login"`
	Unauthenticated string `mapstructure:"unauthenticated"`
	Authenticated   string `mapstructure:"authenticated"`
}

// NotifyConfig controls notification delivery. With Async a bounded queue sits between
// the request path and the notifier.
type NotifyConfig struct {
	Async      bool `mapstructure:"async"`
	BufferSize int  `mapstructure:"buffer_size"`
	DropIfFull bool `mapstructure:"drop_if_full"`
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms"`
}

// DefaultConfig returns a configuration for a local back office on :8080 with in-memory
// sessions.
func DefaultConfig() Config {
	landings := route.DefaultLandings()
	return Config{
		API: APIConfig{
			BaseURL:      "http://localhost:8080",
			LoginPath:    authapi.DefaultLoginPath,
			RegisterPath: authapi.DefaultRegisterPath,
			VerifyPath:   authapi.DefaultVerifyPath,
			RefreshPath:  authapi.DefaultRefreshPath,
			Timeout:      15 * time.Second,
		},
		Session: SessionConfig{
			Backend:     BackendMemory,
			RedisPrefix: "authclient",
			AccessSlot:  session.DefaultAccessTokenSlot,
			RefreshSlot: session.DefaultRefreshTokenSlot,
		},
		Refresh: RefreshConfig{
			Timeout: refresh.DefaultTimeout,
		},
		Routes: RoutesConfig{
			Login:           landings.Login,
			Unauthenticated: landings.Unauthenticated,
			Authenticated:   landings.Authenticated,
		},
		Notify: NotifyConfig{
			Async:      true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Log: LogConfig{
			Level: "info",
			App:   "authclient",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.API.ExemptSuffixes = append([]string(nil), cfg.API.ExemptSuffixes...)
	out.API.ExemptSubstrings = append([]string(nil), cfg.API.ExemptSubstrings...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("API BaseURL must be an absolute http(s) URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	for _, p := range []string{c.API.LoginPath, c.API.RegisterPath, c.API.VerifyPath, c.API.RefreshPath} {
		if p != "" && !strings.HasPrefix(p, "/") {
			return fmt.Errorf("API endpoint path must start with /: %q", p)
		}
	}

	switch c.Token.SigningMethod {
	case "":
		if c.Token.VerifyKey != "" {
			return errors.New("Token VerifyKey requires SigningMethod")
		}
	case "hs256", "ed25519":
		if c.Token.VerifyKey == "" {
			return errors.New("Token SigningMethod requires VerifyKey")
		}
	default:
		return errors.New("unsupported Token SigningMethod")
	}
	if c.Token.ExpirySkew < 0 || c.Token.ExpirySkew > 10*time.Minute {
		return errors.New("Token ExpirySkew must be within [0, 10m]")
	}

	switch c.Session.Backend {
	case BackendMemory:
	case BackendFile:
		if strings.TrimSpace(c.Session.FilePath) == "" {
			return errors.New("Session FilePath required for file backend")
		}
	case BackendRedis:
		if c.Session.RedisTTL < 0 {
			return errors.New("Session RedisTTL must be >= 0")
		}
	default:
		return fmt.Errorf("unsupported Session Backend %q", c.Session.Backend)
	}
	if c.Session.AccessSlot != "" && c.Session.AccessSlot == c.Session.RefreshSlot {
		return errors.New("Session AccessSlot and RefreshSlot must differ")
	}

	if c.Refresh.Timeout < 0 {
		return errors.New("Refresh Timeout must be >= 0")
	}

	for _, p := range []string{c.Routes.Login, c.Routes.Unauthenticated, c.Routes.Authenticated} {
		if p != "" && !strings.HasPrefix(p, "/") {
			return fmt.Errorf("route landing must start with /: %q", p)
		}
	}

	if c.Notify.BufferSize < 0 {
		return errors.New("Notify BufferSize must be >= 0")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}
	return nil
}
