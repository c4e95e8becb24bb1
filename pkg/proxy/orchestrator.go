// Package proxy sits between the HTTP route layer and the vendor
// providers. The Orchestrator resolves the requested model, submits the
// chat and either forwards the event stream untouched or folds it into
// a single aggregated completion.
package proxy

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/routing"
)

// AggregatedCompletion is a fully drained chat stream.
type AggregatedCompletion struct {
	// Answer is the concatenated answer text
	Answer string

	// Reasoning is the concatenated reasoning text, empty for
	// non-reasoning models
	Reasoning string

	// FinishReason is the terminal finish reason
	FinishReason string

	// Provider is the vendor that served the request
	Provider string

	// Duration is the wall time from submit to terminal event
	Duration time.Duration
}

// Orchestrator routes chat requests to vendor providers.
type Orchestrator struct {
	registry *routing.Registry
}

// NewOrchestrator creates an orchestrator over the given registry.
func NewOrchestrator(registry *routing.Registry) *Orchestrator {
	return &Orchestrator{registry: registry}
}

// Models returns the model identifiers of all enabled providers.
func (o *Orchestrator) Models() []string {
	return o.registry.ListModels()
}

// Stream resolves the model and submits the request, forwarding the
// provider's event channel in order. The channel is finite and carries
// exactly one terminal event unless the consumer departs early.
func (o *Orchestrator) Stream(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, string, error) {
	provider, err := o.registry.Resolve(req.Model)
	if err != nil {
		return nil, "", err
	}

	events, err := provider.Submit(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return events, provider.Name(), nil
}

// Complete drains the event stream into an aggregated completion. A
// terminal error event surfaces as an error; partial deltas received
// before it are discarded since nothing was sent to the client yet.
func (o *Orchestrator) Complete(ctx context.Context, req *providers.ChatRequest) (*AggregatedCompletion, error) {
	start := time.Now()

	events, providerName, err := o.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	var answer, reasoning strings.Builder
	finishReason := providers.FinishCompleted

	for event := range events {
		switch event.Type {
		case providers.EventAnswerDelta:
			answer.WriteString(event.Text)
		case providers.EventReasoningDelta:
			reasoning.WriteString(event.Text)
		case providers.EventFinish:
			finishReason = event.FinishReason
		case providers.EventError:
			return nil, event.Err
		}
	}

	duration := time.Since(start)
	slog.Debug("completion aggregated",
		"provider", providerName,
		"model", req.Model,
		"answer_bytes", answer.Len(),
		"reasoning_bytes", reasoning.Len(),
		"duration", duration)

	return &AggregatedCompletion{
		Answer:       answer.String(),
		Reasoning:    reasoning.String(),
		FinishReason: finishReason,
		Provider:     providerName,
		Duration:     duration,
	}, nil
}
