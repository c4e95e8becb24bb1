// Package kimi adapts the www.kimi.com gateway. Chat traffic uses a
// connect-style RPC: the request and every response message travel as
// length-prefixed binary frames (wsframe) inside a chunked HTTP body.
// Before chatting, the adapter fetches the account's traffic id and
// registers a synthetic device.
package kimi

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/session"
	"nxapi-hq/nxapi/pkg/providers/wsframe"
)

const (
	defaultBaseURL = "https://www.kimi.com"

	userPath     = "/api/user"
	registerPath = "/api/device/register"
	chatPath     = "/apiv2/kimi.gateway.chat.v1.ChatService/Chat"
)

var modelList = []string{
	"kimi", "kimi-k2.5", "kimi-k2", "kimi-k1.5",
	"moonshot-v1-8k", "moonshot-v1-32k", "moonshot-v1-128k",
}

// scenarios maps model-name fragments to gateway scenario tags.
// Order matters: "k2.5" must match before "k2".
var scenarios = []struct {
	fragment string
	scenario string
}{
	{"k2.5", "SCENARIO_K2D5"},
	{"k2", "SCENARIO_K2"},
	{"k1.5", "SCENARIO_K1D5"},
}

const defaultScenario = "SCENARIO_K2D5"

// Client implements providers.Provider for Kimi.
type Client struct {
	http     *providers.HTTPProvider
	config   providers.ProviderConfig
	sessions *session.Store
}

// New creates a Kimi client.
func New(config providers.ProviderConfig, sessions *session.Store) (*Client, error) {
	if config.Token == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "bearer token is required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Client{
		http:     providers.NewHTTPProvider(config),
		config:   config,
		sessions: sessions,
	}, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

func newDeviceID() string {
	digits := make([]byte, 19)
	for i := range digits {
		digits[i] = byte('0' + rand.Intn(10))
	}
	// Leading zero would shorten the numeric form the gateway expects.
	if digits[0] == '0' {
		digits[0] = '1'
	}
	return string(digits)
}

func newSessionID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) +
		strconv.FormatInt(1_000_000_000+rand.Int63n(9_000_000_000), 10)
}

func (c *Client) baseHeaders(identity *session.Credential) map[string]string {
	return map[string]string{
		"accept":                   "*/*",
		"content-type":             "application/connect+json",
		"connect-protocol-version": "1",
		"x-msh-platform":           "web",
		"x-msh-version":            "1.0.0",
		"x-language":               "zh-CN",
		"r-timezone":               "Asia/Shanghai",
		"origin":                   c.config.BaseURL,
		"referer":                  c.config.BaseURL + "/",
		"authorization":            "Bearer " + c.config.Token,
		"x-msh-device-id":          identity.Extra["device_id"],
		"x-msh-session-id":         identity.Extra["session_id"],
		"x-traffic-id":             identity.Token,
	}
}

// acquireIdentity returns the cached traffic id and device registration,
// establishing them on first use.
func (c *Client) acquireIdentity(ctx context.Context) (*session.Credential, error) {
	return c.sessions.Acquire(ctx, c.config.Name, c.establishIdentity)
}

func (c *Client) establishIdentity(ctx context.Context) (*session.Credential, error) {
	deviceID := newDeviceID()
	sessionID := newSessionID()

	headers := map[string]string{
		"accept":           "application/json, text/plain, */*",
		"content-type":     "application/json",
		"authorization":    "Bearer " + c.config.Token,
		"x-msh-platform":   "web",
		"x-msh-device-id":  deviceID,
		"x-msh-session-id": sessionID,
		"x-msh-version":    "1.0.0",
	}

	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodGet,
		URL:     c.config.BaseURL + userPath,
		Headers: headers,
		Query:   url.Values{"t": {strconv.FormatInt(time.Now().UnixMilli(), 10)}},
	})
	if err != nil {
		if providers.IsAuthFailure(err) {
			return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: "account token rejected"}
		}
		return nil, err
	}

	var user struct {
		ID string `json:"id"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&user)
	resp.Body.Close()
	if decodeErr != nil {
		return nil, &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: decodeErr}
	}

	regResp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + registerPath,
		Body:    []byte("{}"),
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	regResp.Body.Close()

	return &session.Credential{
		Token: user.ID,
		Extra: map[string]string{
			"device_id":  deviceID,
			"session_id": sessionID,
		},
	}, nil
}

func scenarioFor(model string) string {
	m := strings.ToLower(model)
	for _, s := range scenarios {
		if strings.Contains(m, s.fragment) {
			return s.scenario
		}
	}
	return defaultScenario
}

func isThinking(model string) bool {
	return strings.Contains(strings.ToLower(model), "think")
}

func (c *Client) buildChatFrame(req *providers.ChatRequest) ([]byte, error) {
	scenario := scenarioFor(req.Model)
	return wsframe.Encode(map[string]any{
		"scenario": scenario,
		"tools":    []map[string]any{{"type": "TOOL_TYPE_SEARCH", "search": map[string]any{}}},
		"message": map[string]any{
			"role": "user",
			"blocks": []map[string]any{{
				"message_id": "",
				"text":       map[string]string{"content": providers.LastUserMessage(req.Messages)},
			}},
			"scenario": scenario,
		},
		"options": map[string]bool{"thinking": isThinking(req.Model)},
	})
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	frame, err := c.buildChatFrame(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.DoAuthenticated(ctx,
		func(ctx context.Context) (*providers.RequestSpec, error) {
			identity, err := c.acquireIdentity(ctx)
			if err != nil {
				return nil, err
			}
			return &providers.RequestSpec{
				Method:  http.MethodPost,
				URL:     c.config.BaseURL + chatPath,
				Body:    frame,
				Headers: c.baseHeaders(identity),
			}, nil
		},
		func() { c.sessions.Invalidate(c.config.Name) },
	)
	if err != nil {
		return nil, err
	}

	seq := providers.NewSequencer(ctx)
	go c.consumeStream(resp, seq)
	return seq.Events(), nil
}
