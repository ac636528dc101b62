package authclient

import (
	"net/url"
	"strings"
	"time"
)

// LintSeverity orders lint warnings.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
)

func (s LintSeverity) String() string {
	if s == LintWarn {
		return "warn"
	}
	return "info"
}

// LintWarning is a configuration choice that is valid but likely unintended.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintResult is the ordered list of warnings from [Config.Lint].
type LintResult []LintWarning

// Codes lists the warning codes in order.
func (r LintResult) Codes() []string {
	out := make([]string, len(r))
	for i, w := range r {
		out[i] = w.Code
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

// Lint inspects a configuration that already passed Validate.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	if c.Token.SigningMethod == "" {
		add("token_unverified", LintInfo,
			"access tokens are decoded without signature verification; the API must verify them")
	}
	if c.Token.SigningMethod == "hs256" {
		add("token_hs256_shared_secret", LintInfo,
			"hs256 verification requires the client to hold the signing secret")
	}
	if c.Token.ExpirySkew == 0 {
		add("expiry_skew_zero", LintInfo,
			"tokens expiring in transit will be rejected by the API; consider a small ExpirySkew")
	}

	if c.Refresh.Timeout > 30*time.Second {
		add("refresh_timeout_long", LintWarn,
			"every caller waiting on a renewal is blocked for up to Refresh Timeout")
	}

	switch c.Session.Backend {
	case BackendMemory:
		add("session_memory", LintInfo, "sessions do not survive a restart with the memory backend")
	case BackendRedis:
		if c.Session.RedisTTL == 0 {
			add("session_redis_no_ttl", LintWarn, "stored credentials never expire in Redis")
		}
	}

	if c.Notify.Async && !c.Notify.DropIfFull {
		add("notify_blocking", LintWarn,
			"a slow notifier can block API calls once the notification queue is full")
	}

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		add("api_plaintext", LintWarn, "bearer tokens are sent over plain http to a non-local host")
	}

	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
