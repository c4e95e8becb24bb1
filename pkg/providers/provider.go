package providers

import "context"

// Provider is the core interface every vendor adapter implements.
// It provides one capability: submit a chat request and receive the
// canonical event stream.
//
// All methods accept a context.Context for cancellation and timeout
// control. Implementations must respect context cancellation and close
// the underlying vendor connection promptly when the context ends.
type Provider interface {
	// Submit sends a chat request to the vendor and returns a channel of
	// canonical events. The channel is lazy (events arrive as the vendor
	// streams them), finite, and closed after the terminal Finish or
	// Error event. A Provider stream is not restartable; retries require
	// a fresh Submit.
	//
	// The returned channel always ends with exactly one terminal event.
	// Errors during streaming are delivered in-band as an Error event,
	// never out-of-band, so partial output already consumed is preserved.
	Submit(ctx context.Context, req *ChatRequest) (<-chan *ChatEvent, error)

	// Name returns the vendor identifier (e.g., "deepseek").
	Name() string

	// Models returns the model identifiers this provider serves.
	Models() []string

	// Close releases vendor connections and cached resources.
	// After Close, the provider must not be used.
	Close() error
}

// ValidateRequest performs request validation shared by all adapters.
// It runs before any network call so invalid requests fail fast.
func ValidateRequest(req *ChatRequest) error {
	if req == nil {
		return &ValidationError{Field: "request", Message: "request cannot be nil"}
	}
	if req.Model == "" {
		return &ValidationError{Field: "model", Message: "model is required"}
	}
	if len(req.Messages) == 0 {
		return &ValidationError{Field: "messages", Message: "at least one message is required"}
	}
	return nil
}

// LastUserMessage returns the content of the most recent user message,
// falling back to the final message when no user message exists. Several
// vendors accept only a single prompt string per turn.
func LastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	if len(messages) > 0 {
		return messages[len(messages)-1].Content
	}
	return ""
}

// FlattenMessages joins a conversation into one prompt string with role
// prefixes, for vendors whose chat endpoint accepts a single prompt.
func FlattenMessages(messages []Message) string {
	var out string
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out += "[System]: " + msg.Content + "\n"
		case RoleAssistant:
			out += "[Assistant]: " + msg.Content + "\n"
		default:
			out += msg.Content + "\n"
		}
	}
	if len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out
}
