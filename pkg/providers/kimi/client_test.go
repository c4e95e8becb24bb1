package kimi

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/session"
	"nxapi-hq/nxapi/pkg/providers/wsframe"
)

type stubBackend struct {
	t         *testing.T
	userCalls atomic.Int32
	regCalls  atomic.Int32
	frames    [][]byte
}

func encodeFrame(t *testing.T, v any) []byte {
	t.Helper()
	frame, err := wsframe.Encode(v)
	if err != nil {
		t.Fatalf("encoding frame: %v", err)
	}
	return frame
}

func errorFrame(payload string) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = wsframe.OpError
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[5:], payload)
	return frame
}

func (b *stubBackend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(userPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.userCalls.Add(1)
		fmt.Fprint(w, `{"id":"traffic-1"}`)
	})

	mux.HandleFunc(registerPath, func(w http.ResponseWriter, r *http.Request) {
		b.regCalls.Add(1)
		fmt.Fprint(w, `{}`)
	})

	mux.HandleFunc(chatPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/connect+json" {
			b.t.Errorf("unexpected content type: %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("x-traffic-id") != "traffic-1" {
			b.t.Errorf("traffic id missing: %q", r.Header.Get("x-traffic-id"))
		}
		if len(r.Header.Get("x-msh-device-id")) != 19 {
			b.t.Errorf("device id should be 19 digits: %q", r.Header.Get("x-msh-device-id"))
		}

		// The request body must be a decodable connect frame.
		body, _ := io.ReadAll(r.Body)
		var dec wsframe.Decoder
		dec.Feed(body)
		frame, err := dec.Next()
		if err != nil || frame == nil {
			b.t.Errorf("request body is not a connect frame: %v", err)
		} else {
			var req struct {
				Scenario string `json:"scenario"`
				Message  struct {
					Blocks []struct {
						Text struct {
							Content string `json:"content"`
						} `json:"text"`
					} `json:"blocks"`
				} `json:"message"`
			}
			json.Unmarshal(frame.Payload, &req)
			if req.Scenario == "" {
				b.t.Error("scenario missing from chat request")
			}
			if len(req.Message.Blocks) != 1 || req.Message.Blocks[0].Text.Content != "hi" {
				b.t.Errorf("unexpected chat request blocks: %+v", req.Message.Blocks)
			}
		}

		for _, f := range b.frames {
			w.Write(f)
		}
	})

	return mux
}

func newTestClient(t *testing.T, backend *stubBackend) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(backend.handler())

	client, err := New(providers.ProviderConfig{
		Name:    "kimi",
		BaseURL: server.URL,
		Token:   "test-token",
		Timeout: 5 * time.Second,
	}, session.NewStore())
	if err != nil {
		server.Close()
		t.Fatalf("New failed: %v", err)
	}
	return client, func() {
		client.Close()
		server.Close()
	}
}

func drain(events <-chan *providers.ChatEvent) []*providers.ChatEvent {
	var out []*providers.ChatEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestSubmitDecodesConnectFrames(t *testing.T) {
	backend := &stubBackend{t: t}
	backend.frames = [][]byte{
		encodeFrame(t, map[string]any{"chat": map[string]string{"id": "chat-1"}}),
		encodeFrame(t, map[string]any{"op": "append", "block": map[string]any{"text": map[string]string{"content": "hel"}}}),
		encodeFrame(t, map[string]any{"op": "append", "block": map[string]any{"text": map[string]string{"content": "lo"}}}),
		encodeFrame(t, map[string]any{"done": map[string]any{}}),
	}

	client, cleanup := newTestClient(t, backend)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "kimi-k2",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if len(collected) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(collected), collected)
	}
	var text bytes.Buffer
	for _, ev := range collected[:2] {
		text.WriteString(ev.Text)
	}
	if text.String() != "hello" {
		t.Errorf("unexpected text: %q", text.String())
	}
	if collected[2].Type != providers.EventFinish {
		t.Errorf("unexpected terminal: %+v", collected[2])
	}

	if backend.userCalls.Load() != 1 || backend.regCalls.Load() != 1 {
		t.Errorf("identity should be established once, got user=%d register=%d",
			backend.userCalls.Load(), backend.regCalls.Load())
	}
}

func TestSubmitReusesIdentity(t *testing.T) {
	backend := &stubBackend{t: t}
	backend.frames = [][]byte{encodeFrame(t, map[string]any{"done": map[string]any{}})}

	client, cleanup := newTestClient(t, backend)
	defer cleanup()

	for i := 0; i < 3; i++ {
		events, err := client.Submit(context.Background(), &providers.ChatRequest{
			Model:    "kimi",
			Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
		})
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		drain(events)
	}

	if backend.userCalls.Load() != 1 {
		t.Errorf("expected 1 identity fetch across requests, got %d", backend.userCalls.Load())
	}
}

func TestSubmitSkipsKeepaliveBytes(t *testing.T) {
	backend := &stubBackend{t: t}
	backend.frames = [][]byte{
		{0x01},
		encodeFrame(t, map[string]any{"op": "append", "block": map[string]any{"text": map[string]string{"content": "hello"}}}),
		{0x07, 0x07},
		encodeFrame(t, map[string]any{"done": map[string]any{}}),
	}

	client, cleanup := newTestClient(t, backend)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "kimi",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if len(collected) != 2 {
		t.Fatalf("expected 2 events, got %d: %+v", len(collected), collected)
	}
	if collected[0].Text != "hello" {
		t.Errorf("unexpected text: %q", collected[0].Text)
	}
	if collected[1].Type != providers.EventFinish || collected[1].FinishReason != providers.FinishCompleted {
		t.Errorf("stray bytes must not terminate the stream: %+v", collected[1])
	}
}

func TestSubmitErrorFrame(t *testing.T) {
	backend := &stubBackend{t: t}
	backend.frames = [][]byte{
		encodeFrame(t, map[string]any{"op": "append", "block": map[string]any{"text": map[string]string{"content": "partial"}}}),
		errorFrame(`{"code":"overloaded"}`),
	}

	client, cleanup := newTestClient(t, backend)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "kimi",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if len(collected) != 2 {
		t.Fatalf("expected 2 events, got %d", len(collected))
	}
	if collected[0].Text != "partial" {
		t.Errorf("partial output must be preserved, got %q", collected[0].Text)
	}
	if collected[1].Type != providers.EventError {
		t.Fatalf("expected error terminal, got %+v", collected[1])
	}
	if providers.ErrorKind(collected[1].Err) != "upstream_error" {
		t.Errorf("unexpected error kind: %s", providers.ErrorKind(collected[1].Err))
	}
}

func TestSubmitSetOpReplacesText(t *testing.T) {
	backend := &stubBackend{t: t}
	backend.frames = [][]byte{
		encodeFrame(t, map[string]any{"op": "set", "block": map[string]any{"text": map[string]string{"content": "abc"}}}),
		encodeFrame(t, map[string]any{"op": "set", "block": map[string]any{"text": map[string]string{"content": "abcdef"}}}),
		encodeFrame(t, map[string]any{"done": map[string]any{}}),
	}

	client, cleanup := newTestClient(t, backend)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "kimi-k2.5",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if collected[0].Text != "abc" || collected[1].Text != "def" {
		t.Errorf("set snapshots not diffed: %q %q", collected[0].Text, collected[1].Text)
	}
}

func TestScenarioFor(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"kimi-k2.5", "SCENARIO_K2D5"},
		{"kimi-k2", "SCENARIO_K2"},
		{"kimi-k1.5", "SCENARIO_K1D5"},
		{"kimi", "SCENARIO_K2D5"},
		{"moonshot-v1-8k", "SCENARIO_K2D5"},
	}
	for _, tt := range tests {
		if got := scenarioFor(tt.model); got != tt.want {
			t.Errorf("scenarioFor(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestNewDeviceID(t *testing.T) {
	id := newDeviceID()
	if len(id) != 19 {
		t.Fatalf("expected 19 digits, got %d", len(id))
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			t.Fatalf("non-digit character in device id: %q", id)
		}
	}
	if id[0] == '0' {
		t.Error("device id must not start with zero")
	}
}
