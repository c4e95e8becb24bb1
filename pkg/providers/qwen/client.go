// Package qwen adapts the qianwen.biz.aliyun.com dialog backend. Auth
// is pure cookie composition: the operator pastes either a full cookie
// fragment (XSRF-TOKEN included) or a bare tongyi_sso_ticket value.
// Responses are SSE with cumulative content snapshots.
package qwen

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/auth"
)

const (
	defaultBaseURL   = "https://qianwen.biz.aliyun.com/dialog"
	conversationPath = "/conversation"
)

var modelList = []string{
	"qwen", "qwen3", "qwen3.5-plus", "qwen3-max", "qwen3-max-thinking",
	"qwen3-flash", "qwen3-coder", "qwen-vl-plus", "qwen-vl-max", "qwen-long",
}

// modelCodes maps public model names to the dialog backend's internal
// model codes.
var modelCodes = map[string]string{
	"qwen":               "Qwen",
	"qwen3":              "Qwen",
	"qwen3.5-plus":       "Qwen3.5-Plus",
	"qwen3-max":          "Qwen3-Max",
	"qwen3-max-thinking": "Qwen3-Max-Thinking-Preview",
	"qwen3-flash":        "Qwen3-Flash",
	"qwen3-coder":        "Qwen3-Coder",
	"qwen-vl-plus":       "Qwen-VL-Max",
	"qwen-vl-max":        "Qwen-VL-Max",
	"qwen-long":          "Qwen-Long",
}

// Client implements providers.Provider for Qwen.
type Client struct {
	http      *providers.HTTPProvider
	config    providers.ProviderConfig
	cookies   [][2]string
	xsrfToken string
}

// New creates a Qwen client, parsing the operator credential into
// cookies. A bare value (no '=') is treated as the SSO ticket.
func New(config providers.ProviderConfig) (*Client, error) {
	if config.Token == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "cookie fragment or sso ticket is required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}

	client := &Client{
		http:   providers.NewHTTPProvider(config),
		config: config,
	}

	if strings.Contains(config.Token, "=") {
		parsed := auth.ParseCookieString(config.Token)
		for _, part := range strings.Split(config.Token, ";") {
			key, _, found := strings.Cut(strings.TrimSpace(part), "=")
			if !found {
				continue
			}
			key = strings.TrimSpace(key)
			client.cookies = append(client.cookies, [2]string{key, parsed[key]})
		}
		client.xsrfToken = auth.XSRFToken(parsed)
	} else {
		client.cookies = [][2]string{{"tongyi_sso_ticket", config.Token}}
	}

	return client, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

func (c *Client) headers() map[string]string {
	headers := map[string]string{
		"Accept":       "text/event-stream",
		"Content-Type": "application/json",
		"Origin":       "https://www.qianwen.com",
		"Referer":      "https://www.qianwen.com/",
		"X-Platform":   "pc_tongyi",
		"Cookie":       auth.BuildCookieHeader(c.cookies),
	}
	if c.xsrfToken != "" {
		headers["X-Xsrf-Token"] = c.xsrfToken
	}
	return headers
}

// modelCode resolves the internal model code for a public model name.
func modelCode(model string) string {
	if code, ok := modelCodes[strings.ToLower(model)]; ok {
		return code
	}
	return "Qwen"
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"action": "next",
		"contents": []map[string]string{{
			"contentType": "text",
			"content":     providers.LastUserMessage(req.Messages),
			"role":        "user",
		}},
		"mode":        "chat",
		"model":       modelCode(req.Model),
		"requestId":   auth.NewNonce(),
		"parentMsgId": "0",
		"sessionId":   "",
		"sessionType": "text_chat",
		"userAction":  "chat",
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + conversationPath,
		Body:    body,
		Headers: c.headers(),
	})
	if err != nil {
		if providers.IsAuthFailure(err) {
			// Cookies are operator-supplied and not refreshable here.
			return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: "cookie rejected"}
		}
		return nil, err
	}

	seq := providers.NewSequencer(ctx)
	go c.consumeStream(resp, seq)
	return seq.Events(), nil
}
