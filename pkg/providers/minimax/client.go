// Package minimax adapts the agent.minimaxi.com matrix backend. There
// is no streaming endpoint: a message is sent, then the chat detail is
// polled until the chat reports completion, with cumulative message
// content diffed into deltas. Every call carries two MD5 digests, a
// body signature and a path digest (the "yy" header).
package minimax

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/auth"
)

const (
	defaultBaseURL = "https://agent.minimaxi.com"

	sendPath   = "/matrix/api/v1/chat/send_msg"
	detailPath = "/matrix/api/v1/chat/get_chat_detail"

	signatureSecret = "I*7Cf%WZ#S&%1RlZJ&C2"
	yySuffix        = "ooui"

	defaultPollInterval = 700 * time.Millisecond
	maxPollDuration     = 60 * time.Second
)

var modelList = []string{"minimax", "minimax-auto", "MiniMax-M2.5"}

// Client implements providers.Provider for MiniMax.
type Client struct {
	http   *providers.HTTPProvider
	config providers.ProviderConfig
	secret string

	instanceID string
	userID     string
	deviceID   string

	pollInterval time.Duration
}

// New creates a MiniMax client, reading the user and device identifiers
// embedded in the operator JWT.
func New(config providers.ProviderConfig) (*Client, error) {
	if config.Token == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "account token is required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	secret := config.SigningSecret
	if secret == "" {
		secret = signatureSecret
	}

	client := &Client{
		http:         providers.NewHTTPProvider(config),
		config:       config,
		secret:       secret,
		instanceID:   uuid.NewString(),
		pollInterval: defaultPollInterval,
	}

	if claims, err := auth.DecodeJWTPayload(config.Token); err == nil {
		if user, ok := claims["user"].(map[string]any); ok {
			if id, ok := user["id"].(string); ok {
				client.userID = id
			}
			if id, ok := user["deviceID"].(string); ok {
				client.deviceID = id
			}
		}
	}

	return client, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

func (c *Client) queryParams(unixSeconds int64) url.Values {
	return url.Values{
		"device_platform":  {"web"},
		"biz_id":           {"3"},
		"app_id":           {"3001"},
		"version_code":     {"22201"},
		"unix":             {strconv.FormatInt(unixSeconds*1000, 10)},
		"timezone_offset":  {"28800"},
		"lang":             {"zh"},
		"uuid":             {c.instanceID},
		"device_id":        {c.deviceID},
		"os_name":          {"Windows"},
		"browser_name":     {"chrome"},
		"device_memory":    {"8"},
		"cpu_core_num":     {"32"},
		"browser_language": {"zh-CN"},
		"browser_platform": {"Win32"},
		"user_id":          {c.userID},
		"screen_width":     {"1600"},
		"screen_height":    {"1000"},
		"token":            {c.config.Token},
		"client":           {"web"},
	}
}

// signedPost performs one signed matrix API call. The body signature
// and path digest are computed over the exact bytes and query string
// sent on the wire.
func (c *Client) signedPost(ctx context.Context, path string, body []byte) (*http.Response, error) {
	now := time.Now()
	unixSeconds := now.Unix()
	query := c.queryParams(unixSeconds)
	pathWithQuery := path + "?" + query.Encode()

	headers := map[string]string{
		"Accept":       "application/json, text/plain, */*",
		"Content-Type": "application/json",
		"Origin":       c.config.BaseURL,
		"Referer":      c.config.BaseURL + "/",
		"token":        c.config.Token,
		"x-timestamp":  strconv.FormatInt(unixSeconds, 10),
		"x-signature":  auth.BodySignature(unixSeconds, c.secret, string(body)),
		"yy":           auth.PathDigest(unixSeconds*1000, pathWithQuery, string(body), yySuffix),
	}

	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + path,
		Body:    body,
		Headers: headers,
		Query:   query,
	})
	if err != nil && providers.IsAuthFailure(err) {
		return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: "account token rejected"}
	}
	return resp, err
}

func modelOption(model string) map[string]any {
	m := model
	if m == "minimax" || m == "minimax-auto" {
		return map[string]any{"display_name": "Auto", "model_type": 0}
	}
	return map[string]any{"display_name": "MiniMax-M2.5", "model_type": 501}
}

type sendResponse struct {
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	ChatID string `json:"chat_id"`
	MsgID  string `json:"msg_id"`
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{
		"msg_type":           1,
		"text":               providers.FlattenMessages(req.Messages),
		"chat_type":          2,
		"attachments":        []any{},
		"selected_mcp_tools": []any{},
		"sub_agent_ids":      []any{},
		"model_option":       modelOption(req.Model),
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.signedPost(ctx, sendPath, body)
	if err != nil {
		return nil, err
	}

	var sent sendResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&sent)
	resp.Body.Close()
	if decodeErr != nil {
		return nil, &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: decodeErr}
	}
	if sent.BaseResp.StatusCode != 0 {
		return nil, &providers.UpstreamError{Provider: c.config.Name, Message: sent.BaseResp.StatusMsg}
	}
	if sent.ChatID == "" {
		return nil, &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: errMissingChatID}
	}

	seq := providers.NewSequencer(ctx)
	go c.pollChat(ctx, sent.ChatID, seq)
	return seq.Events(), nil
}
