package doubao

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)

	client, err := New(providers.ProviderConfig{
		Name:    "doubao",
		BaseURL: server.URL,
		Token:   "sess-value",
		Timeout: 5 * time.Second,
	})
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

func TestSubmitChunkDeltaStream(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		cookie := r.Header.Get("Cookie")
		if cookie != "sessionid=sess-value; sessionid_ss=sess-value" {
			t.Errorf("unexpected cookie header: %q", cookie)
		}

		query := r.URL.Query()
		if query.Get("aid") != "497858" {
			t.Errorf("aid query param missing: %q", query.Get("aid"))
		}
		if len(query.Get("device_id")) != 19 {
			t.Errorf("device_id should be 19 digits: %q", query.Get("device_id"))
		}
		if !strings.HasPrefix(query.Get("fp"), "verify_") {
			t.Errorf("fp should carry verify_ prefix: %q", query.Get("fp"))
		}

		var body struct {
			ClientMeta struct {
				BotID string `json:"bot_id"`
			} `json:"client_meta"`
			Messages []struct {
				ContentBlock []struct {
					BlockType int `json:"block_type"`
					Content   struct {
						TextBlock struct {
							Text string `json:"text"`
						} `json:"text_block"`
					} `json:"content"`
				} `json:"content_block"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.ClientMeta.BotID != defaultBotID {
			t.Errorf("unexpected bot id: %q", body.ClientMeta.BotID)
		}
		if body.Messages[0].ContentBlock[0].Content.TextBlock.Text != "hi" {
			t.Errorf("unexpected message text")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: SSE_ACK\ndata: {\"ack_client_meta\":{\"conversation_id\":\"c1\",\"section_id\":\"s1\"}}\n\n")
		fmt.Fprint(w, "event: CHUNK_DELTA\ndata: {\"text\":\"hel\"}\n\n")
		fmt.Fprint(w, "event: CHUNK_DELTA\ndata: {\"text\":\"lo\"}\n\n")
		fmt.Fprint(w, "event: SSE_REPLY_END\ndata: {}\n\n")
	}

	client, cleanup := newTestClient(t, handler)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "doubao",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if len(collected) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(collected), collected)
	}
	if collected[0].Text+collected[1].Text != "hello" {
		t.Errorf("unexpected text: %q%q", collected[0].Text, collected[1].Text)
	}
	if collected[2].Type != providers.EventFinish || collected[2].FinishReason != providers.FinishCompleted {
		t.Errorf("unexpected terminal: %+v", collected[2])
	}
}

func TestSubmitNotifyFallback(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: STREAM_MSG_NOTIFY\ndata: {\"content\":{\"content_block\":[{\"block_type\":10000,\"content\":{\"text_block\":{\"text\":\"full answer\"}}}]}}\n\n")
		fmt.Fprint(w, "event: SSE_REPLY_END\ndata: {}\n\n")
	}

	client, cleanup := newTestClient(t, handler)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "doubao-pro",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if len(collected) != 2 {
		t.Fatalf("expected 2 events, got %d", len(collected))
	}
	if collected[0].Text != "full answer" {
		t.Errorf("unexpected text: %q", collected[0].Text)
	}
}

func TestSubmitIgnoresNotifyWhenDeltasPresent(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: CHUNK_DELTA\ndata: {\"text\":\"streamed\"}\n\n")
		fmt.Fprint(w, "event: STREAM_MSG_NOTIFY\ndata: {\"content\":{\"content_block\":[{\"block_type\":10000,\"content\":{\"text_block\":{\"text\":\"streamed\"}}}]}}\n\n")
		fmt.Fprint(w, "event: SSE_REPLY_END\ndata: {}\n\n")
	}

	client, cleanup := newTestClient(t, handler)
	defer cleanup()

	events, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "doubao",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	collected := drain(events)
	if len(collected) != 2 {
		t.Fatalf("snapshot must not duplicate streamed text, got %+v", collected)
	}
}

func TestSubmitAuthFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}

	client, cleanup := newTestClient(t, handler)
	defer cleanup()

	_, err := client.Submit(context.Background(), &providers.ChatRequest{
		Model:    "doubao",
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})
	if providers.ErrorKind(err) != "auth_expired" {
		t.Fatalf("expected auth_expired, got %s (%v)", providers.ErrorKind(err), err)
	}
}
