package providers

import "time"

// Message represents a single message in a conversation.
// It is vendor-agnostic and is transformed to vendor-specific payloads
// by each adapter.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// ChatRequest represents a vendor-agnostic chat completion request.
// It is immutable once constructed; adapters must not modify it.
type ChatRequest struct {
	// Model is the requested model identifier (e.g., "deepseek-chat")
	Model string `json:"model"`

	// Messages is the ordered conversation history
	Messages []Message `json:"messages"`

	// Stream indicates whether the caller wants incremental delivery
	Stream bool `json:"stream,omitempty"`

	// Temperature controls randomness (0.0 to 2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// MaxTokens is the maximum number of tokens to generate
	MaxTokens int `json:"max_tokens,omitempty"`
}

// EventType discriminates the canonical event variants.
type EventType string

const (
	// EventAnswerDelta carries an increment of answer text.
	EventAnswerDelta EventType = "answer_delta"

	// EventReasoningDelta carries an increment of chain-of-thought text.
	EventReasoningDelta EventType = "reasoning_delta"

	// EventFinish terminates the sequence normally.
	EventFinish EventType = "finish"

	// EventError terminates the sequence with a failure.
	EventError EventType = "error"
)

// ChatEvent is the canonical output unit shared by all vendor adapters.
// A sequence of ChatEvents for one request is monotonic: no event follows
// a Finish or Error event.
type ChatEvent struct {
	// Type discriminates the variant
	Type EventType `json:"type"`

	// Text is the delta text for AnswerDelta and ReasoningDelta events
	Text string `json:"text,omitempty"`

	// FinishReason is set on Finish events
	// (completed, length-limited, filtered, upstream-error)
	FinishReason string `json:"finish_reason,omitempty"`

	// Err is set on Error events; it is one of the typed errors in this
	// package (ChallengeError, AuthExpiredError, TransportError, ...)
	Err error `json:"-"`

	// ID is the upstream conversation or message identifier, when known
	ID string `json:"id,omitempty"`
}

// Finish reason constants.
const (
	FinishCompleted     = "completed"
	FinishLengthLimited = "length-limited"
	FinishFiltered      = "filtered"
	FinishUpstreamError = "upstream-error"
)

// Message role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TransportKind identifies the wire protocol family a vendor speaks.
type TransportKind string

const (
	// TransportSSE is plain HTTP with Server-Sent-Events framing.
	TransportSSE TransportKind = "http-sse"

	// TransportJSON is HTTP request/response or chunked JSON lines.
	TransportJSON TransportKind = "http-json"

	// TransportWebSocket is a WebSocket connection with binary framing.
	TransportWebSocket TransportKind = "websocket"
)

// ProviderConfig contains the immutable identity of one vendor backend.
// It is loaded once at startup and never mutated afterwards.
type ProviderConfig struct {
	// Name is the vendor identifier (e.g., "deepseek", "zhipu")
	Name string

	// BaseURL is the vendor endpoint base URL
	BaseURL string

	// Transport is the wire protocol family
	Transport TransportKind

	// Token is the operator-supplied raw long-lived credential
	// (bearer token, refresh token, or cookie fragment, per vendor)
	Token string

	// SigningSecret is static secret material for keyed signers
	SigningSecret string

	// PowMaxAttempts bounds the proof-of-work nonce search
	PowMaxAttempts int

	// Timeout is the per-call deadline
	Timeout time.Duration

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host
	MaxIdleConnsPerHost int

	// IdleConnTimeout is how long an idle connection remains pooled
	IdleConnTimeout time.Duration
}
