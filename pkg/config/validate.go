package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks the configuration for errors that would prevent the
// gateway from starting.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return fmt.Errorf("server.listen_address %q is not host:port: %w", cfg.Server.ListenAddress, err)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not json or text", cfg.Logging.Format)
	}

	if len(cfg.Providers) == 0 {
		return fmt.Errorf("no providers configured; at least one vendor needs credentials")
	}

	for name, p := range cfg.Providers {
		if !isKnownVendor(name) {
			return fmt.Errorf("unknown provider %q (known vendors: %s)", name, strings.Join(knownVendors, ", "))
		}
		if p.Token == "" && p.TokenFile == "" {
			return fmt.Errorf("provider %q: either token or token_file is required", name)
		}
		if p.Timeout < 0 {
			return fmt.Errorf("provider %q: timeout must not be negative", name)
		}
		if p.PowMaxAttempts < 0 {
			return fmt.Errorf("provider %q: pow_max_attempts must not be negative", name)
		}
	}

	return nil
}

func isKnownVendor(name string) bool {
	for _, vendor := range knownVendors {
		if vendor == name {
			return true
		}
	}
	return false
}
