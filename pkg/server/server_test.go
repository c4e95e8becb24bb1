package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	stub "nxapi-hq/nxapi/internal/providers"
	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/session"
	"nxapi-hq/nxapi/pkg/proxy"
	"nxapi-hq/nxapi/pkg/routing"
	"nxapi-hq/nxapi/pkg/telemetry/metrics"
)

func newTestServer(t *testing.T, streamBody string) (*httptest.Server, func()) {
	t.Helper()
	backend := stub.NewDeepSeekServer(stub.DeepSeekStub{Token: "test-token", StreamBody: streamBody})

	registry := routing.NewRegistry(map[string]providers.ProviderConfig{
		"deepseek": {
			Name:           "deepseek",
			BaseURL:        backend.URL,
			Token:          "test-token",
			PowMaxAttempts: 1000,
			Timeout:        5 * time.Second,
		},
	}, session.NewStore())

	gateway := New(Config{}, proxy.NewOrchestrator(registry), metrics.NewCollector())
	front := httptest.NewServer(gateway.Handler())

	return front, func() {
		front.Close()
		registry.Close()
		backend.Close()
	}
}

func postChat(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/v1/chat/completions", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	return resp
}

func TestChatCompletionAggregated(t *testing.T) {
	front, cleanup := newTestServer(t, stub.HelloStream)
	defer cleanup()

	resp := postChat(t, front.URL, `{"model":"deepseek-chat","messages":[{"role":"user","content":"hi"}]}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if parsed.Object != "chat.completion" {
		t.Errorf("unexpected object: %q", parsed.Object)
	}
	if parsed.Choices[0].Message.Content != "hello" {
		t.Errorf("unexpected content: %q", parsed.Choices[0].Message.Content)
	}
	if parsed.Choices[0].FinishReason != "stop" {
		t.Errorf("unexpected finish reason: %q", parsed.Choices[0].FinishReason)
	}
	if !strings.HasPrefix(parsed.ID, "chatcmpl-") {
		t.Errorf("unexpected response id: %q", parsed.ID)
	}
	if parsed.Usage.TotalTokens == 0 {
		t.Error("usage should be estimated")
	}
}

func TestChatCompletionRendersThinkMarker(t *testing.T) {
	front, cleanup := newTestServer(t, stub.ReasoningStream)
	defer cleanup()

	resp := postChat(t, front.URL, `{"model":"deepseek-reasoner","messages":[{"role":"user","content":"hi"}]}`)
	defer resp.Body.Close()

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := "<think:pondering>the answer"
	if parsed.Choices[0].Message.Content != want {
		t.Errorf("content = %q, want %q", parsed.Choices[0].Message.Content, want)
	}
}

func TestChatCompletionStreaming(t *testing.T) {
	front, cleanup := newTestServer(t, stub.ReasoningStream)
	defer cleanup()

	resp := postChat(t, front.URL, `{"model":"deepseek-reasoner","stream":true,"messages":[{"role":"user","content":"hi"}]}`)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type: %q", ct)
	}

	var contents []string
	var finishReason string
	sawDone := false

	scanner := providers.NewSSEScanner(resp.Body)
	for {
		event, ok := scanner.Next()
		if !ok {
			break
		}
		if event.Data == "[DONE]" {
			sawDone = true
			break
		}
		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			t.Fatalf("chunk is not JSON: %v", err)
		}
		if chunk.Object != "chat.completion.chunk" {
			t.Errorf("unexpected chunk object: %q", chunk.Object)
		}
		if c := chunk.Choices[0].Delta.Content; c != "" {
			contents = append(contents, c)
		}
		if fr := chunk.Choices[0].FinishReason; fr != nil {
			finishReason = *fr
		}
	}

	if !sawDone {
		t.Error("stream must end with [DONE]")
	}
	if finishReason != "stop" {
		t.Errorf("unexpected finish reason: %q", finishReason)
	}
	want := []string{"<think:pondering>", "the answer"}
	if len(contents) != len(want) {
		t.Fatalf("content deltas = %v, want %v", contents, want)
	}
	for i := range want {
		if contents[i] != want[i] {
			t.Errorf("delta %d = %q, want %q", i, contents[i], want[i])
		}
	}
}

func TestChatCompletionUnknownModel(t *testing.T) {
	front, cleanup := newTestServer(t, stub.HelloStream)
	defer cleanup()

	resp := postChat(t, front.URL, `{"model":"gpt-4","messages":[{"role":"user","content":"hi"}]}`)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	var parsed errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decoding error: %v", err)
	}
	if parsed.Error.Type != "invalid_request_error" {
		t.Errorf("unexpected error type: %q", parsed.Error.Type)
	}
}

func TestModelsEndpoint(t *testing.T) {
	front, cleanup := newTestServer(t, stub.HelloStream)
	defer cleanup()

	resp, err := http.Get(front.URL + "/v1/models")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var parsed modelList
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decoding models: %v", err)
	}
	found := false
	for _, m := range parsed.Data {
		if m.ID == "deepseek-chat" && m.OwnedBy == "deepseek" {
			found = true
		}
	}
	if !found {
		t.Errorf("deepseek-chat missing from %+v", parsed.Data)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	front, cleanup := newTestServer(t, stub.HelloStream)
	defer cleanup()

	resp, err := http.Get(front.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status: %d", resp.StatusCode)
	}

	postChat(t, front.URL, `{"model":"deepseek-chat","messages":[{"role":"user","content":"hi"}]}`).Body.Close()

	resp, err = http.Get(front.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	if !strings.Contains(string(body), "nxapi_provider_requests_total") {
		t.Error("request counter missing from metrics output")
	}
}

func TestRequestIDAndCORS(t *testing.T) {
	front, cleanup := newTestServer(t, stub.HelloStream)
	defer cleanup()

	req, _ := http.NewRequest(http.MethodOptions, front.URL+"/v1/chat/completions", nil)
	req.Header.Set("Origin", "https://example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status: %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS origin header")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing request id header")
	}
}
