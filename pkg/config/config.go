// Package config loads and validates the gateway configuration from a
// YAML file, with environment variable overrides and optional
// credential-file watching for token rotation without restart.
package config

import (
	"time"

	"nxapi-hq/nxapi/pkg/providers"
)

// Config is the root configuration of the gateway.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server"`

	// Providers configures the enabled vendor backends, keyed by vendor
	// name (deepseek, kimi, metaso, doubao, qwen, zhipu, minimax).
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Session configures the credential store.
	Session SessionConfig `yaml:"session"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the bind address (host:port).
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading request headers and body.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// IdleTimeout bounds idle keep-alive connections.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProviderConfig configures one vendor backend.
type ProviderConfig struct {
	// BaseURL overrides the vendor's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Token is the operator credential. Its shape is vendor specific
	// (bearer token, refresh JWT, cookie value, uid-sid pair).
	Token string `yaml:"token"`

	// TokenFile reads the credential from a file instead; the file is
	// watched so rotations take effect without restart.
	TokenFile string `yaml:"token_file"`

	// SigningSecret overrides the built-in signing secret, for vendors
	// that rotate theirs.
	SigningSecret string `yaml:"signing_secret"`

	// PowMaxAttempts bounds the proof-of-work nonce search.
	PowMaxAttempts int `yaml:"pow_max_attempts"`

	// Timeout is the per-call deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig configures structured log output.
type LoggingConfig struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format selects json or text output.
	Format string `yaml:"format"`
}

// SessionConfig configures the credential store.
type SessionConfig struct {
	// JanitorSchedule is a cron expression for sweeping long-expired
	// credentials; empty disables the janitor.
	JanitorSchedule string `yaml:"janitor_schedule"`
}

// knownVendors are the vendor names accepted under providers.
var knownVendors = []string{"deepseek", "kimi", "metaso", "doubao", "qwen", "zhipu", "minimax"}

// ProviderConfigs converts the configured vendors into the runtime
// provider configurations keyed by vendor name.
func (c *Config) ProviderConfigs() map[string]providers.ProviderConfig {
	out := make(map[string]providers.ProviderConfig, len(c.Providers))
	for name, p := range c.Providers {
		out[name] = providers.ProviderConfig{
			Name:           name,
			BaseURL:        p.BaseURL,
			Token:          p.Token,
			SigningSecret:  p.SigningSecret,
			PowMaxAttempts: p.PowMaxAttempts,
			Timeout:        p.Timeout,
		}
	}
	return out
}
