// Package doubao adapts the www.doubao.com chat backend. Auth rides in
// the sessionid/sessionid_ss cookie pair; each request carries a wide
// set of synthetic device query parameters. Responses are named SSE
// events (SSE_ACK, CHUNK_DELTA, STREAM_MSG_NOTIFY, SSE_REPLY_END).
package doubao

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/auth"
)

const (
	defaultBaseURL = "https://www.doubao.com"
	completionPath = "/chat/completion"

	defaultBotID = "7338286299411103781"
)

var modelList = []string{"doubao", "doubao-pro", "doubao-lite", "doubao-1.5-pro", "doubao-1.5-lite"}

// Client implements providers.Provider for Doubao.
type Client struct {
	http   *providers.HTTPProvider
	config providers.ProviderConfig

	deviceID string
	webID    string
	teaUUID  string
	fp       string
}

// New creates a Doubao client with a synthetic device identity held for
// the client's lifetime.
func New(config providers.ProviderConfig) (*Client, error) {
	if config.Token == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "sessionid cookie value is required"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Client{
		http:     providers.NewHTTPProvider(config),
		config:   config,
		deviceID: randomDigits(19),
		webID:    randomDigits(19),
		teaUUID:  randomDigits(19),
		fp:       "verify_" + strings.ReplaceAll(uuid.NewString(), "-", "_")[:20],
	}, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

func randomDigits(n int) string {
	digits := make([]byte, n)
	for i := range digits {
		digits[i] = byte('0' + rand.Intn(10))
	}
	if digits[0] == '0' {
		digits[0] = '1'
	}
	return string(digits)
}

func (c *Client) queryParams() url.Values {
	return url.Values{
		"aid":                 {"497858"},
		"device_id":           {c.deviceID},
		"device_platform":     {"web"},
		"fp":                  {c.fp},
		"language":            {"zh"},
		"pc_version":          {"3.5.10"},
		"pkg_type":            {"release_version"},
		"real_aid":            {"497858"},
		"samantha_web":        {"1"},
		"tea_uuid":            {c.teaUUID},
		"use-olympus-account": {"1"},
		"version_code":        {"20800"},
		"web_id":              {c.webID},
		"web_tab_id":          {uuid.NewString()},
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Accept":       "*/*",
		"Content-Type": "application/json",
		"Origin":       c.config.BaseURL,
		"Referer":      c.config.BaseURL + "/chat/",
		"Cookie": auth.BuildCookieHeader([][2]string{
			{"sessionid", c.config.Token},
			{"sessionid_ss", c.config.Token},
		}),
	}
}

func (c *Client) buildBody(req *providers.ChatRequest) ([]byte, error) {
	localConversationID := "local_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + randomDigits(6)

	body := map[string]any{
		"client_meta": map[string]any{
			"local_conversation_id": localConversationID,
			"conversation_id":       "",
			"bot_id":                defaultBotID,
			"last_section_id":       "",
			"last_message_index":    nil,
		},
		"messages": []map[string]any{{
			"local_message_id": uuid.NewString(),
			"content_block": []map[string]any{{
				"block_type": 10000,
				"content": map[string]any{
					"text_block": map[string]string{
						"text":          providers.LastUserMessage(req.Messages),
						"icon_url":      "",
						"icon_url_dark": "",
						"summary":       "",
					},
					"pc_event_block": "",
				},
				"block_id":      uuid.NewString(),
				"parent_id":     "",
				"meta_info":     []any{},
				"append_fields": []any{},
			}},
			"message_status": 0,
		}},
		"option": map[string]any{
			"create_time_ms":           time.Now().UnixMilli(),
			"is_audio":                 false,
			"answer_with_suggest":      false,
			"tts_switch":               false,
			"need_deep_think":          0,
			"is_regen":                 false,
			"is_replace":               false,
			"disable_sse_cache":        false,
			"scene_type":               0,
			"unique_key":               uuid.NewString(),
			"start_seq":                0,
			"need_create_conversation": true,
			"conversation_init_option": map[string]bool{"need_ack_conversation": true},
			"message_from":             0,
			"sse_recv_event_options":   map[string]bool{"support_chunk_delta": true},
		},
		"ext": map[string]string{
			"use_deep_think":           "0",
			"fp":                       c.fp,
			"conversation_init_option": `{"need_ack_conversation":true}`,
		},
	}
	return json.Marshal(body)
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	body, err := c.buildBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + completionPath,
		Body:    body,
		Headers: c.headers(),
		Query:   c.queryParams(),
	})
	if err != nil {
		if providers.IsAuthFailure(err) {
			return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: "session cookie rejected"}
		}
		return nil, err
	}

	seq := providers.NewSequencer(ctx)
	go c.consumeStream(resp, seq)
	return seq.Events(), nil
}
