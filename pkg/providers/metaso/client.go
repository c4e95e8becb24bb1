// Package metaso adapts the metaso.cn search-answer backend. The
// operator token is a "uid-sid" pair rendered into cookies; each
// conversation additionally needs a page token scraped from the site's
// HTML shell. Answers arrive over SSE with bracketed citation labels
// that are stripped before emission.
package metaso

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/auth"
	"nxapi-hq/nxapi/pkg/providers/session"
)

const (
	defaultBaseURL = "https://metaso.cn"

	sessionPath = "/api/session"
	searchPath  = "/api/searchV2"
)

var modelList = []string{
	"metaso", "metaso-concise", "metaso-detail", "metaso-research",
	"metaso-scholar", "metaso-concise-scholar", "metaso-detail-scholar", "metaso-research-scholar",
}

var metaTokenPattern = regexp.MustCompile(`<meta id="meta-token" content="([^"]*)"`)

// searchMode is the mode/engine pair a model name selects.
type searchMode struct {
	mode    string
	scholar bool
}

// Client implements providers.Provider for Metaso.
type Client struct {
	http     *providers.HTTPProvider
	config   providers.ProviderConfig
	sessions *session.Store
	uid      string
	sid      string
}

// New creates a Metaso client from a "uid-sid" token.
func New(config providers.ProviderConfig, sessions *session.Store) (*Client, error) {
	uid, sid, found := strings.Cut(config.Token, "-")
	if !found || uid == "" || sid == "" {
		return nil, &providers.ConfigError{Provider: config.Name, Field: "token", Message: "token must be uid-sid"}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	return &Client{
		http:     providers.NewHTTPProvider(config),
		config:   config,
		sessions: sessions,
		uid:      uid,
		sid:      sid,
	}, nil
}

// Name implements providers.Provider.
func (c *Client) Name() string { return c.config.Name }

// Models implements providers.Provider.
func (c *Client) Models() []string { return modelList }

// Close implements providers.Provider.
func (c *Client) Close() error { return c.http.Close() }

func (c *Client) cookieHeader() string {
	return auth.BuildCookieHeader([][2]string{{"uid", c.uid}, {"sid", c.sid}})
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Accept": "*/*",
		"Origin": c.config.BaseURL,
		"Cookie": c.cookieHeader(),
	}
}

// modeFor selects the search mode from the model name. Unsuffixed
// models search in detail mode.
func modeFor(model string) searchMode {
	m := strings.ToLower(model)
	selected := searchMode{mode: "detail"}
	for _, mode := range []string{"concise", "detail", "research"} {
		if strings.Contains(m, mode) {
			selected.mode = mode
			break
		}
	}
	selected.scholar = strings.Contains(m, "scholar")
	return selected
}

// acquirePageToken returns the scraped meta token, fetching the HTML
// shell on first use. The token is cached until invalidated.
func (c *Client) acquirePageToken(ctx context.Context) (string, error) {
	cred, err := c.sessions.Acquire(ctx, c.config.Name, c.scrapePageToken)
	if err != nil {
		return "", err
	}
	return cred.Token, nil
}

func (c *Client) scrapePageToken(ctx context.Context) (*session.Credential, error) {
	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodGet,
		URL:     c.config.BaseURL + "/",
		Headers: c.headers(),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	html, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return nil, &providers.TransportError{Provider: c.config.Name, Cause: err}
	}

	match := metaTokenPattern.FindSubmatch(html)
	if match == nil || len(match[1]) == 0 {
		return nil, &providers.AuthExpiredError{Provider: c.config.Name, Message: "meta token missing from page, uid/sid likely invalid"}
	}
	return &session.Credential{Token: string(match[1])}, nil
}

// createConversation opens a search session and returns its id.
func (c *Client) createConversation(ctx context.Context, question string, mode searchMode, pageToken string) (string, error) {
	engineType := ""
	if mode.scholar {
		engineType = "scholar"
	}
	body, err := json.Marshal(map[string]string{
		"question":            question,
		"mode":                mode.mode,
		"engineType":          engineType,
		"scholarSearchDomain": "all",
	})
	if err != nil {
		return "", err
	}

	headers := c.headers()
	headers["Token"] = pageToken
	headers["Is-Mini-Webview"] = "0"
	headers["Content-Type"] = "application/json"

	resp, err := c.http.Do(ctx, &providers.RequestSpec{
		Method:  http.MethodPost,
		URL:     c.config.BaseURL + sessionPath,
		Body:    body,
		Headers: headers,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var parsed struct {
		ErrCode int    `json:"errCode"`
		ErrMsg  string `json:"errMsg"`
		ID      string `json:"id"`
		Data    struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: err}
	}
	if parsed.ErrCode != 0 {
		return "", &providers.UpstreamError{Provider: c.config.Name, Message: parsed.ErrMsg}
	}

	id := parsed.Data.ID
	if id == "" {
		id = parsed.ID
	}
	return id, nil
}

// Submit implements providers.Provider.
func (c *Client) Submit(ctx context.Context, req *providers.ChatRequest) (<-chan *providers.ChatEvent, error) {
	if err := providers.ValidateRequest(req); err != nil {
		return nil, err
	}

	question := providers.LastUserMessage(req.Messages)
	mode := modeFor(req.Model)

	resp, err := c.http.DoAuthenticated(ctx,
		func(ctx context.Context) (*providers.RequestSpec, error) {
			pageToken, err := c.acquirePageToken(ctx)
			if err != nil {
				return nil, err
			}
			conversationID, err := c.createConversation(ctx, question, mode, pageToken)
			if err != nil {
				return nil, err
			}

			query := url.Values{
				"sessionId":           {conversationID},
				"question":            {question},
				"lang":                {"zh"},
				"mode":                {mode.mode},
				"url":                 {c.config.BaseURL + "/search/" + conversationID + "?newSearch=true&q=" + url.QueryEscape(question)},
				"enableMix":           {"true"},
				"scholarSearchDomain": {"all"},
				"expectedCurrentSessionSearchCount": {"1"},
				"is-mini-webview":                   {"0"},
				"token":                             {pageToken},
			}

			headers := c.headers()
			headers["Accept"] = "text/event-stream"

			return &providers.RequestSpec{
				Method:  http.MethodGet,
				URL:     c.config.BaseURL + searchPath,
				Headers: headers,
				Query:   query,
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
