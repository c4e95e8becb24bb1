// Package deepseek adapts the chat.deepseek.com web backend. Every
// completion requires a fresh chat session and a solved proof-of-work
// challenge; the answer travels in the x-ds-pow-response header.
package deepseek

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/auth"
)

const (
	defaultBaseURL = "https://chat.deepseek.com"

	sessionPath    = "/api/v0/chat_session/create"
	challengePath  = "/api/v0/chat/create_pow_challenge"
	completionPath = "/api/v0/chat/completion"
)

var modelList = []string{"deepseek-chat", "deepseek-reasoner", "deepseek", "deepseek-r1"}

// Client implements providers.Provider for DeepSeek.
type Client struct {
	http   *providers.HTTPProvider
	config providers.ProviderConfig
}

// New creates a DeepSeek client from the provider configuration.
func New(config providers.ProviderConfig) (*Client, error) {
	if config.Token == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "bearer token is required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Client{
		http:   providers.NewHTTPProvider(config),
		config: config,
	}, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

func (c *Client) baseHeaders() map[string]string {
	return map[string]string{
		"accept":                   "*/*",
		"content-type":             "application/json",
		"x-client-locale":          "zh_CN",
		"x-client-platform":        "web",
		"x-client-version":         "1.7.0",
		"x-app-version":            "20241129.1",
		"x-client-timezone-offset": "28800",
		"origin":                   c.config.BaseURL,
		"referer":                  c.config.BaseURL + "/",
		"authorization":            "Bearer " + c.config.Token,
	}
}

// isReasoner reports whether the requested model enables thinking mode.
func isReasoner(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "reasoner") || strings.Contains(m, "r1") || strings.Contains(m, "think")
}

type bizEnvelope struct {
	Data struct {
		BizData json.RawMessage `json:"biz_data"`
	} `json:"data"`
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, extraHeaders map[string]string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	headers := c.baseHeaders()
	for k, v := range extraHeaders {
		headers[k] = v
	}
	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + path,
		Body:    body,
		Headers: headers,
	})
	if err != nil && providers.IsAuthFailure(err) {
		// The bearer token is operator-supplied and not refreshable.
		return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: err.Error()}
	}
	return resp, err
}

func (c *Client) decodeBizData(resp *http.Response, out any) error {
	defer resp.Body.Close()

	var envelope bizEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: err}
	}
	if err := json.Unmarshal(envelope.Data.BizData, out); err != nil {
		return &providers.MalformedUpstreamError{
			Provider:   c.config.Name,
			RawPayload: string(envelope.Data.BizData),
			Cause:      err,
		}
	}
	return nil
}

// createSession opens a fresh chat session and returns its id.
func (c *Client) createSession(ctx context.Context) (string, error) {
	resp, err := c.postJSON(ctx, sessionPath, map[string]any{}, nil)
	if err != nil {
		return "", err
	}
	var session struct {
		ID string `json:"id"`
	}
	if err := c.decodeBizData(resp, &session); err != nil {
		return "", err
	}
	if session.ID == "" {
		return "", &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: fmt.Errorf("session id missing")}
	}
	return session.ID, nil
}

// fetchChallenge requests a proof-of-work challenge for the completion path.
func (c *Client) fetchChallenge(ctx context.Context) (*auth.Challenge, error) {
	resp, err := c.postJSON(ctx, challengePath, map[string]string{"target_path": completionPath}, nil)
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Challenge auth.Challenge `json:"challenge"`
	}
	if err := c.decodeBizData(resp, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Challenge, nil
}

// solveChallenge runs the bounded nonce search and encodes the header value.
func (c *Client) solveChallenge(ch *auth.Challenge) (string, error) {
	start := time.Now()
	answer, err := auth.SolveChallenge(ch, c.config.PowMaxAttempts)
	if err != nil {
		attempts := c.config.PowMaxAttempts
		if attempts <= 0 {
			attempts = auth.DefaultPowMaxAttempts
		}
		return "", &providers.ChallengeError{Provider: c.config.Name, Attempts: attempts}
	}
	providers.ObservePowSolve(c.config.Name, time.Since(start))
	slog.Debug("proof-of-work solved",
		"provider", c.config.Name,
		"difficulty", ch.Difficulty,
		"nonce", answer,
		"duration", time.Since(start),
	)
	return auth.EncodeAnswer(ch, answer), nil
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	sessionID, err := c.createSession(ctx)
	if err != nil {
		return nil, err
	}

	challenge, err := c.fetchChallenge(ctx)
	if err != nil {
		return nil, err
	}
	powResponse, err := c.solveChallenge(challenge)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"chat_session_id":   sessionID,
		"parent_message_id": nil,
		"prompt":            providers.FlattenMessages(req.Messages),
		"ref_file_ids":      []string{},
		"thinking_enabled":  isReasoner(req.Model),
		"search_enabled":    false,
		"preempt":           false,
	}

	resp, err := c.postJSON(ctx, completionPath, payload, map[string]string{
		"x-ds-pow-response": powResponse,
	})
	if err != nil {
		return nil, err
	}

	seq := providers.NewSequencer(ctx)
	go c.consumeStream(resp, seq)
	return seq.Events(), nil
}
