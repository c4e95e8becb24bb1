package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the configuration from a YAML file, applies defaults,
// environment overrides and file-based credentials, and validates the
// result. Environment variables use the form NXAPI_SECTION_FIELD; a
// vendor token is NXAPI_PROVIDERS_<VENDOR>_TOKEN.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := loadTokenFiles(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies NXAPI_* environment variables on top of the
// file configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("NXAPI_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("NXAPI_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("NXAPI_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}
	if val := os.Getenv("NXAPI_LOGGING_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("NXAPI_LOGGING_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("NXAPI_SESSION_JANITOR_SCHEDULE"); val != "" {
		cfg.Session.JanitorSchedule = val
	}

	for _, vendor := range knownVendors {
		applyProviderEnvOverrides(cfg, vendor)
	}
}

// applyProviderEnvOverrides applies NXAPI_PROVIDERS_<VENDOR>_* variables
// for one vendor. A token override enables a vendor not present in the
// file at all.
func applyProviderEnvOverrides(cfg *Config, vendor string) {
	prefix := "NXAPI_PROVIDERS_" + strings.ToUpper(vendor) + "_"

	provider, exists := cfg.Providers[vendor]
	modified := false

	if val := os.Getenv(prefix + "TOKEN"); val != "" {
		provider.Token = val
		modified = true
	}
	if val := os.Getenv(prefix + "BASE_URL"); val != "" {
		provider.BaseURL = val
		modified = true
	}
	if val := os.Getenv(prefix + "TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			provider.Timeout = d
			modified = true
		}
	}

	if modified || exists {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderTimeout
		}
		if provider.PowMaxAttempts == 0 {
			provider.PowMaxAttempts = DefaultPowMaxAttempts
		}
		cfg.Providers[vendor] = provider
	}
}

// loadTokenFiles resolves token_file references into tokens.
func loadTokenFiles(cfg *Config) error {
	for name, p := range cfg.Providers {
		if p.TokenFile == "" {
			continue
		}
		token, err := readTokenFile(p.TokenFile)
		if err != nil {
			return fmt.Errorf("provider %q: %w", name, err)
		}
		p.Token = token
		cfg.Providers[name] = p
	}
	return nil
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading token file %q: %w", path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("token file %q is empty", path)
	}
	return token, nil
}
