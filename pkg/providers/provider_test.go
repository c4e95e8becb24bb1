package providers

import (
	"errors"
	"testing"
)

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       *ChatRequest
		wantField string
	}{
		{
			name:      "nil request",
			req:       nil,
			wantField: "request",
		},
		{
			name:      "missing model",
			req:       &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}},
			wantField: "model",
		},
		{
			name:      "no messages",
			req:       &ChatRequest{Model: "deepseek-chat"},
			wantField: "messages",
		},
		{
			name: "valid",
			req: &ChatRequest{
				Model:    "deepseek-chat",
				Messages: []Message{{Role: RoleUser, Content: "hi"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequest(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if validation.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, validation.Field)
			}
		})
	}
}

func TestLastUserMessage(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
	}
	if got := LastUserMessage(messages); got != "second" {
		t.Errorf("expected %q, got %q", "second", got)
	}

	noUser := []Message{{Role: RoleSystem, Content: "only system"}}
	if got := LastUserMessage(noUser); got != "only system" {
		t.Errorf("expected fallback to final message, got %q", got)
	}

	if got := LastUserMessage(nil); got != "" {
		t.Errorf("expected empty string for empty history, got %q", got)
	}
}

func TestFlattenMessages(t *testing.T) {
	messages := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: "hi there"},
		{Role: RoleUser, Content: "bye"},
	}
	want := "[System]: be brief\nhello\n[Assistant]: hi there\nbye"
	if got := FlattenMessages(messages); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ChallengeError{Provider: "deepseek", Attempts: 1000}, "challenge_unsolvable"},
		{&AuthExpiredError{Provider: "zhipu"}, "auth_expired"},
		{&TimeoutError{Provider: "kimi"}, "upstream_timeout"},
		{&TransportError{Provider: "qwen", Cause: errors.New("reset")}, "upstream_transport"},
		{&MalformedUpstreamError{Provider: "doubao"}, "malformed_upstream"},
		{&UpstreamError{Provider: "metaso", StatusCode: 500}, "upstream_error"},
		{&ValidationError{Field: "model"}, "validation"},
		{errors.New("plain"), "internal"},
	}
	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%T) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
