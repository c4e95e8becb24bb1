package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrUnknownModel is returned when no provider claims the requested model.
	ErrUnknownModel = errors.New("unknown model")

	// ErrProviderDisabled is returned when the model maps to a provider that
	// has no credentials configured.
	ErrProviderDisabled = errors.New("provider disabled")
)

// UnknownModelError is returned when the requested model matches no
// configured provider. Detected before any network call.
type UnknownModelError struct {
	// Model is the requested model.
	Model string

	// AvailableModels contains the models of all enabled providers.
	AvailableModels []string
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	if len(e.AvailableModels) == 0 {
		return fmt.Sprintf("model %q not recognized by any provider", e.Model)
	}
	return fmt.Sprintf("model %q not recognized by any provider (available models: %s)",
		e.Model, strings.Join(e.AvailableModels, ", "))
}

// Is implements error matching for errors.Is().
func (e *UnknownModelError) Is(target error) bool {
	return target == ErrUnknownModel
}

// ProviderDisabledError is returned when a model resolves to a vendor the
// operator has not configured credentials for.
type ProviderDisabledError struct {
	// Provider is the vendor the model resolved to.
	Provider string

	// Model is the requested model.
	Model string
}

// Error implements the error interface.
func (e *ProviderDisabledError) Error() string {
	return fmt.Sprintf("model %q maps to provider %q which has no credentials configured", e.Model, e.Provider)
}

// Is implements error matching for errors.Is().
func (e *ProviderDisabledError) Is(target error) bool {
	return target == ErrProviderDisabled
}
