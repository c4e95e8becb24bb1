// Package zhipu adapts the chatglm.cn web backend. The operator
// supplies a JWT (access or refresh); refresh tokens are exchanged for
// hour-lived access tokens through a signed refresh endpoint, and every
// request carries an MD5 signature over a mangled timestamp and nonce.
package zhipu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/auth"
	"nxapi-hq/nxapi/pkg/providers/session"
)

const (
	defaultBaseURL = "https://chatglm.cn"

	refreshPath = "/chatglm/user-api/user/refresh"
	streamPath  = "/chatglm/backend-api/assistant/stream"
	deletePath  = "/chatglm/backend-api/assistant/conversation/delete"

	defaultAssistantID = "65940acff94777010aa6b796"
	signingSecret      = "8a1317a7468aa3ad86e997d08f3f31cb"

	accessTokenLifetime = time.Hour
)

var modelList = []string{
	"zhipu", "chatglm",
	"glm-4", "glm-4-plus", "glm-4-air", "glm-4-airx",
	"glm-4-flash", "glm-4-long", "glm-4v", "glm-4v-plus",
}

var assistantIDPattern = regexp.MustCompile(`^[0-9a-f]{24}$`)

// Client implements providers.Provider for Zhipu.
type Client struct {
	http     *providers.HTTPProvider
	config   providers.ProviderConfig
	sessions *session.Store
	secret   string
}

// New creates a Zhipu client. The session store is shared across
// providers and caches the derived access token.
func New(config providers.ProviderConfig, sessions *session.Store) (*Client, error) {
	if config.Token == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "refresh or access token is required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	secret := config.SigningSecret
	if secret == "" {
		secret = signingSecret
	}
	return &Client{
		http:     providers.NewHTTPProvider(config),
		config:   config,
		sessions: sessions,
		secret:   secret,
	}, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

// signedHeaders builds the header set every chatglm.cn call carries.
func (c *Client) signedHeaders(accessToken string) map[string]string {
	timestamp := auth.MangleTimestamp(time.Now())
	nonce := auth.NewNonce()

	deviceID := auth.NewNonce()
	if claims, err := auth.DecodeJWTPayload(accessToken); err == nil {
		if id := auth.JWTStringClaim(claims, "device_id"); id != "" {
			deviceID = id
		}
	}

	return map[string]string{
		"Accept":         "text/event-stream",
		"Authorization":  "Bearer " + accessToken,
		"Content-Type":   "application/json",
		"App-Name":       "chatglm",
		"Origin":         c.config.BaseURL,
		"Referer":        c.config.BaseURL + "/main/alltoolsdetail",
		"X-Device-Id":    deviceID,
		"X-App-Platform": "pc",
		"X-App-Version":  "0.0.1",
		"X-Lang":         "zh",
		"X-Request-Id":   auth.NewNonce(),
		"X-Timestamp":    timestamp,
		"X-Nonce":        nonce,
		"X-Sign":         auth.TimestampSign(timestamp, nonce, c.secret),
	}
}

// tokenType inspects the operator token's embedded type claim.
func tokenType(token string) string {
	claims, err := auth.DecodeJWTPayload(token)
	if err != nil {
		return ""
	}
	return auth.JWTStringClaim(claims, "type")
}

// acquireAccessToken returns a usable access token, exchanging the
// refresh token through the session store when needed.
func (c *Client) acquireAccessToken(ctx context.Context) (string, error) {
	if tokenType(c.config.Token) != "refresh" {
		return c.config.Token, nil
	}

	cred, err := c.sessions.Acquire(ctx, c.config.Name, c.refreshAccessToken)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (c *Client) refreshAccessToken(ctx context.Context) (*session.Credential, error) {
	headers := c.signedHeaders(c.config.Token)
	headers["Accept"] = "*/*"
	headers["Content-Type"] = "application/json;charset=utf-8"

	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + refreshPath,
		Body:    []byte("{}"),
		Headers: headers,
	})
	if err != nil {
		if providers.IsAuthFailure(err) {
			return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: "refresh token rejected"}
		}
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Result  struct {
			AccessToken string `json:"access_token"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: err}
	}
	if body.Status != 0 || body.Result.AccessToken == "" {
		return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: body.Message}
	}

	return &session.Credential{
		Token:     body.Result.AccessToken,
		ExpiresAt: time.Now().Add(accessTokenLifetime),
	}, nil
}

// assistantID maps the requested model to a chatglm assistant. A bare
// 24-hex model name addresses a custom assistant directly.
func assistantID(model string) string {
	if assistantIDPattern.MatchString(model) {
		return model
	}
	return defaultAssistantID
}

// preparePrompt folds the conversation into the single tagged prompt
// string the assistant endpoint accepts.
func preparePrompt(messages []providers.Message) string {
	if len(messages) < 2 {
		var b strings.Builder
		for _, msg := range messages {
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
		return strings.TrimSpace(b.String())
	}

	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case providers.RoleSystem:
			fmt.Fprintf(&b, "<|system|>\n%s\n", msg.Content)
		case providers.RoleAssistant:
			fmt.Fprintf(&b, "</s>\n%s\n", msg.Content)
		default:
			fmt.Fprintf(&b, "<|user|>\n%s\n", msg.Content)
		}
	}
	b.WriteString("</s>\n")
	return strings.TrimSpace(b.String())
}

func (c *Client) buildPayload(req *providers.ChatRequest) ([]byte, error) {
	payload := map[string]any{
		"assistant_id":    assistantID(req.Model),
		"conversation_id": "",
		"project_id":      "",
		"chat_type":       "user_chat",
		"messages": []map[string]any{{
			"role": "user",
			"content": []map[string]string{{
				"type": "text",
				"text": preparePrompt(req.Messages),
			}},
		}},
		"meta_data": map[string]any{
			"is_test":             false,
			"input_question_type": "xxxx",
			"channel":             "",
			"draft_id":            "",
			"chat_mode":           "zero",
			"is_networking":       false,
			"quote_log_id":        "",
			"platform":            "pc",
		},
	}
	return json.Marshal(payload)
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	body, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.DoAuthenticated(ctx,
		func(ctx context.Context) (*providers.RequestSpec, error) {
			accessToken, err := c.acquireAccessToken(ctx)
			if err != nil {
				return nil, err
			}
			return &providers.RequestSpec{
				Method:  http.MethodPost,
				URL:     c.config.BaseURL + streamPath,
				Body:    body,
				Headers: c.signedHeaders(accessToken),
			}, nil
		},
		func() { c.sessions.Invalidate(c.config.Name) },
	)
	if err != nil {
		return nil, err
	}

	seq := providers.NewSequencer(ctx)
	go c.consumeStream(resp, assistantID(req.Model), seq)
	return seq.Events(), nil
}

// deleteConversation removes the server-side conversation after a
// completed exchange. Best effort; failures are ignored.
func (c *Client) deleteConversation(conversationID, assistantID string) {
	if conversationID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	accessToken, err := c.acquireAccessToken(ctx)
	if err != nil {
		return
	}

	body, _ := json.Marshal(map[string]string{
		"assistant_id":    assistantID,
		"conversation_id": conversationID,
	})
	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + deletePath,
		Body:    body,
		Headers: c.signedHeaders(accessToken),
	})
	if err == nil {
		resp.Body.Close()
	}
}
