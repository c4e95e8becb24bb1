package providers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// RequestSpec describes one outbound vendor HTTP call.
type RequestSpec struct {
	// Method is the HTTP method
	Method string

	// URL is the absolute request URL
	URL string

	// Body is the request body (nil for bodyless requests)
	Body []byte

	// Headers are set on the request verbatim
	Headers map[string]string

	// Query is appended to the URL when non-nil
	Query url.Values
}

// HTTPProvider is the shared HTTP transport adapter. It provides
// connection pooling, per-call deadlines, a single transparent retry for
// transport-class failures, and typed error mapping. Vendor adapters
// embed it and build their protocol on top of Do / DoAuthenticated.
type HTTPProvider struct {
	config ProviderConfig
	client *http.Client
}

// NewHTTPProvider creates the shared HTTP transport for one vendor.
func NewHTTPProvider(config ProviderConfig) *HTTPProvider {
	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &HTTPProvider{
		config: config,
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}
}

// Config returns the provider's immutable configuration.
func (p *HTTPProvider) Config() ProviderConfig {
	return p.config
}

// Do performs one vendor HTTP call. Transport-class failures (connection
// reset, deadline expiry) are retried exactly once; protocol failures
// (non-2xx with a vendor error body) are never retried here and surface
// as *UpstreamError. The caller owns the response body on success.
func (p *HTTPProvider) Do(ctx context.Context, spec *RequestSpec) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= 1; attempt++ {
		resp, err := p.doOnce(ctx, spec)
		if err == nil {
			return resp, nil
		}

		var transport *TransportError
		var timeout *TimeoutError
		if errors.As(err, &transport) || errors.As(err, &timeout) {
			lastErr = err
			if attempt == 0 {
				slog.Debug("transport failure, retrying once",
					"provider", p.config.Name,
					"url", spec.URL,
					"error", err,
				)
				continue
			}
			break
		}

		// Protocol failure: surface immediately.
		return nil, err
	}

	return nil, lastErr
}

func (p *HTTPProvider) doOnce(ctx context.Context, spec *RequestSpec) (*http.Response, error) {
	reqURL := spec.URL
	if spec.Query != nil {
		reqURL = reqURL + "?" + spec.Query.Encode()
	}

	var bodyReader io.Reader
	if spec.Body != nil {
		bodyReader = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.Method, reqURL, bodyReader)
	if err != nil {
		return nil, &TransportError{Provider: p.config.Name, Cause: err}
	}

	for key, value := range spec.Headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && spec.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancelled or the request deadline expired.
			return nil, &TimeoutError{Provider: p.config.Name, Timeout: p.config.Timeout}
		}
		return nil, &TransportError{Provider: p.config.Name, Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	return nil, &UpstreamError{
		Provider:   p.config.Name,
		StatusCode: resp.StatusCode,
		Message:    string(errorBody),
	}
}

// IsAuthFailure reports whether an error is an authentication-class
// vendor rejection (401/403).
func IsAuthFailure(err error) bool {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.StatusCode == http.StatusUnauthorized || upstream.StatusCode == http.StatusForbidden
	}
	return false
}

// DoAuthenticated performs a credentialed call. The build callback
// constructs the request from currently-valid session artifacts; on an
// authentication-class failure the invalidate callback is invoked, the
// request is rebuilt (forcing a session refresh), and the call is
// retried exactly once. A second auth failure surfaces *AuthExpiredError.
func (p *HTTPProvider) DoAuthenticated(ctx context.Context, build func(context.Context) (*RequestSpec, error), invalidate func()) (*http.Response, error) {
	spec, err := build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := p.Do(ctx, spec)
	if err == nil {
		return resp, nil
	}
	if !IsAuthFailure(err) {
		return nil, err
	}

	slog.Info("authentication rejected, refreshing session and retrying",
		"provider", p.config.Name,
	)
	invalidate()

	spec, buildErr := build(ctx)
	if buildErr != nil {
		return nil, buildErr
	}

	resp, err = p.Do(ctx, spec)
	if err == nil {
		return resp, nil
	}
	if IsAuthFailure(err) {
		var upstream *UpstreamError
		errors.As(err, &upstream)
		return nil, &AuthExpiredError{Provider: p.config.Name, Message: upstream.Message}
	}
	return nil, err
}

// Close releases idle pooled connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
