package server

import (
	"errors"
	"net/http"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/routing"
)

// chatCompletionRequest is the OpenAI-compatible request body.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []providers.Message `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

// chatCompletionResponse is the OpenAI-compatible non-streaming reply.
type chatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatCompletionChunk is one OpenAI-compatible SSE chunk.
type chatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []chunkChoice `json:"choices"`
}

type chunkChoice struct {
	Index        int     `json:"index"`
	Delta        delta   `json:"delta"`
	FinishReason *string `json:"finish_reason"`
}

type delta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// modelList is the OpenAI-compatible /v1/models reply.
type modelList struct {
	Object string      `json:"object"`
	Data   []modelInfo `json:"data"`
}

type modelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// errorResponse is the OpenAI-compatible error envelope.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// vendorLabel is the metrics and ownership label for a model name.
func vendorLabel(model string) string {
	if vendor := routing.VendorFor(model); vendor != "" {
		return vendor
	}
	return "unknown"
}

// renderThink wraps one reasoning delta in the inline marker used on
// the OpenAI wire. Literal marker text inside reasoning is not escaped.
func renderThink(text string) string {
	return "<think:" + text + ">"
}

// finishReasonWire maps canonical finish reasons onto OpenAI values.
func finishReasonWire(reason string) string {
	switch reason {
	case providers.FinishLengthLimited:
		return "length"
	case providers.FinishFiltered:
		return "content_filter"
	default:
		return "stop"
	}
}

// statusForError maps the error taxonomy onto HTTP statuses.
func statusForError(err error) (int, string) {
	if errors.Is(err, routing.ErrUnknownModel) || errors.Is(err, routing.ErrProviderDisabled) {
		return http.StatusNotFound, "invalid_request_error"
	}

	switch providers.ErrorKind(err) {
	case "validation":
		return http.StatusBadRequest, "invalid_request_error"
	case "auth_expired":
		return http.StatusUnauthorized, "authentication_error"
	case "challenge_unsolvable":
		return http.StatusServiceUnavailable, "server_error"
	case "upstream_timeout":
		return http.StatusGatewayTimeout, "server_error"
	case "upstream_transport", "malformed_upstream", "upstream_error":
		return http.StatusBadGateway, "server_error"
	default:
		return http.StatusInternalServerError, "server_error"
	}
}
