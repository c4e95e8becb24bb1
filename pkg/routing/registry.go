// Package routing maps model names onto vendor providers. Resolution is
// pattern based and never touches the network: an unknown model fails
// before any upstream call. Provider instances are constructed lazily on
// first use and cached for the registry's lifetime.
package routing

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/deepseek"
	"nxapi-hq/nxapi/pkg/providers/doubao"
	"nxapi-hq/nxapi/pkg/providers/kimi"
	"nxapi-hq/nxapi/pkg/providers/metaso"
	"nxapi-hq/nxapi/pkg/providers/minimax"
	"nxapi-hq/nxapi/pkg/providers/qwen"
	"nxapi-hq/nxapi/pkg/providers/session"
	"nxapi-hq/nxapi/pkg/providers/zhipu"
)

// constructor builds one vendor client from its configuration.
type constructor func(cfg providers.ProviderConfig, sessions *session.Store) (providers.Provider, error)

// vendorRule maps a model-name pattern to a vendor.
type vendorRule struct {
	vendor   string
	keywords []string
}

// vendorRules is checked in order; the first keyword hit wins.
var vendorRules = []vendorRule{
	{vendor: "deepseek", keywords: []string{"deepseek", "ds-"}},
	{vendor: "kimi", keywords: []string{"kimi", "moonshot"}},
	{vendor: "metaso", keywords: []string{"metaso"}},
	{vendor: "doubao", keywords: []string{"doubao"}},
	{vendor: "qwen", keywords: []string{"qwen", "tongyi"}},
	{vendor: "zhipu", keywords: []string{"zhipu", "chatglm", "glm"}},
	{vendor: "minimax", keywords: []string{"minimax"}},
}

// zhipu also accepts raw 24-hex assistant ids as model names.
var assistantIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

var constructors = map[string]constructor{
	"deepseek": func(cfg providers.ProviderConfig, _ *session.Store) (providers.Provider, error) {
		return deepseek.New(cfg)
	},
	"kimi": func(cfg providers.ProviderConfig, sessions *session.Store) (providers.Provider, error) {
		return kimi.New(cfg, sessions)
	},
	"metaso": func(cfg providers.ProviderConfig, sessions *session.Store) (providers.Provider, error) {
		return metaso.New(cfg, sessions)
	},
	"doubao": func(cfg providers.ProviderConfig, _ *session.Store) (providers.Provider, error) {
		return doubao.New(cfg)
	},
	"qwen": func(cfg providers.ProviderConfig, _ *session.Store) (providers.Provider, error) {
		return qwen.New(cfg)
	},
	"zhipu": func(cfg providers.ProviderConfig, sessions *session.Store) (providers.Provider, error) {
		return zhipu.New(cfg, sessions)
	},
	"minimax": func(cfg providers.ProviderConfig, _ *session.Store) (providers.Provider, error) {
		return minimax.New(cfg)
	},
}

// Registry resolves model names to cached provider instances.
type Registry struct {
	// configs holds the configuration of each enabled vendor
	configs map[string]providers.ProviderConfig

	// sessions is the shared credential store handed to vendors that
	// derive session state
	sessions *session.Store

	// mu protects instances
	mu sync.Mutex

	// instances caches constructed providers by vendor name
	instances map[string]providers.Provider
}

// NewRegistry creates a registry over the enabled vendor configurations.
// Vendors absent from configs are treated as disabled.
func NewRegistry(configs map[string]providers.ProviderConfig, sessions *session.Store) *Registry {
	return &Registry{
		configs:   configs,
		sessions:  sessions,
		instances: make(map[string]providers.Provider),
	}
}

// VendorFor returns the vendor a model name selects, or "" when none
// matches.
func VendorFor(model string) string {
	m := strings.ToLower(model)
	for _, rule := range vendorRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(m, keyword) {
				return rule.vendor
			}
		}
	}
	if assistantIDPattern.MatchString(m) {
		return "zhipu"
	}
	return ""
}

// Resolve returns the provider serving the given model, constructing it
// on first use. No network call is made.
func (r *Registry) Resolve(model string) (providers.Provider, error) {
	vendor := VendorFor(model)
	if vendor == "" {
		return nil, &UnknownModelError{Model: model, AvailableModels: r.ListModels()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, enabled := r.configs[vendor]
	if !enabled {
		return nil, &ProviderDisabledError{Provider: vendor, Model: model}
	}

	if instance, ok := r.instances[vendor]; ok {
		return instance, nil
	}

	instance, err := constructors[vendor](cfg, r.sessions)
	if err != nil {
		return nil, err
	}
	r.instances[vendor] = instance
	slog.Debug("provider constructed", "vendor", vendor)
	return instance, nil
}

// ListModels returns the model identifiers of all enabled vendors,
// sorted. Vendors whose configuration is invalid are skipped.
func (r *Registry) ListModels() []string {
	var models []string
	for vendor := range r.configs {
		instance, err := r.Resolve(vendor)
		if err != nil {
			slog.Warn("provider skipped while listing models", "vendor", vendor, "error", err)
			continue
		}
		models = append(models, instance.Models()...)
	}
	sort.Strings(models)
	return models
}

// RotateCredential swaps the token of an enabled vendor and drops its
// cached instance so the next request is built with the new credential.
// Unknown or disabled vendors are ignored.
func (r *Registry) RotateCredential(vendor, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, enabled := r.configs[vendor]
	if !enabled {
		return
	}
	cfg.Token = token
	r.configs[vendor] = cfg

	if instance, ok := r.instances[vendor]; ok {
		if err := instance.Close(); err != nil {
			slog.Warn("closing provider after credential rotation", "vendor", vendor, "error", err)
		}
		delete(r.instances, vendor)
	}
	slog.Info("provider credential rotated", "vendor", vendor)
}

// Close shuts down all constructed providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var first error
	for vendor, instance := range r.instances {
		if err := instance.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.instances, vendor)
	}
	return first
}
