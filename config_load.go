package authclient

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AUTHCLIENT_API_BASE_URL.
const EnvPrefix = "AUTHCLIENT"

// LoadConfig reads a YAML file at path (optional) over [DefaultConfig], applies
// AUTHCLIENT_* environment overrides, and validates the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	def := DefaultConfig()

	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.login_path", def.API.LoginPath)
	v.SetDefault("api.register_path", def.API.RegisterPath)
	v.SetDefault("api.verify_path", def.API.VerifyPath)
	v.SetDefault("api.refresh_path", def.API.RefreshPath)
	v.SetDefault("api.timeout", def.API.Timeout)
	v.SetDefault("api.exempt_suffixes", []string{})
	v.SetDefault("api.exempt_substrings", []string{})

	v.SetDefault("token.signing_method", def.Token.SigningMethod)
	v.SetDefault("token.verify_key", def.Token.VerifyKey)
	v.SetDefault("token.issuer", def.Token.Issuer)
	v.SetDefault("token.audience", def.Token.Audience)
	v.SetDefault("token.expiry_skew", def.Token.ExpirySkew)

	v.SetDefault("session.backend", def.Session.Backend)
	v.SetDefault("session.file_path", def.Session.FilePath)
	v.SetDefault("session.redis_addr", def.Session.RedisAddr)
	v.SetDefault("session.redis_prefix", def.Session.RedisPrefix)
	v.SetDefault("session.redis_ttl", def.Session.RedisTTL)
	v.SetDefault("session.access_slot", def.Session.AccessSlot)
	v.SetDefault("session.refresh_slot", def.Session.RefreshSlot)

	v.SetDefault("refresh.timeout", def.Refresh.Timeout)

	v.SetDefault("routes.login", def.Routes.Login)
	v.SetDefault("routes.unauthenticated", def.Routes.Unauthenticated)
	v.SetDefault("routes.authenticated", def.Routes.Authenticated)

	v.SetDefault("notify.async", def.Notify.Async)
	v.SetDefault("notify.buffer_size", def.Notify.BufferSize)
	v.SetDefault("notify.drop_if_full", def.Notify.DropIfFull)

	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.enable_latency_histograms", def.Metrics.EnableLatencyHistograms)

	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.pretty", def.Log.Pretty)
	v.SetDefault("log.app", def.Log.App)
	v.SetDefault("log.env", def.Log.Env)
	v.SetDefault("log.version", def.Log.Version)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
