// Package providers holds stub vendor backends shared by tests in the
// proxy and server packages. Each stub speaks just enough of its
// vendor's protocol to exercise the full request path end to end.
package providers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
)

// DeepSeekStub emulates the DeepSeek session, challenge and completion
// flow with a low-difficulty proof-of-work challenge.
type DeepSeekStub struct {
	// Token is the bearer token the stub accepts.
	Token string

	// StreamBody is the SSE body returned by the completion endpoint.
	StreamBody string
}

// NewDeepSeekServer starts a stub DeepSeek backend. The caller owns the
// returned server and must Close it.
func NewDeepSeekServer(stub DeepSeekStub) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v0/chat_session/create", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+stub.Token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":{"biz_data":{"id":"stub-session"}}}`)
	})

	mux.HandleFunc("/api/v0/chat/create_pow_challenge", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"biz_data":{"challenge":{
			"algorithm":"DeepSeekHashV1",
			"challenge":"94e422f2ac55677000b92e561bb1a10da1a7fad54af93fa4706e4c1fa06eba5c",
			"salt":"9fa6d396e71f769c77ee",
			"difficulty":4,
			"expire_at":1771229508176,
			"signature":"stub-signature",
			"target_path":"/api/v0/chat/completion"}}}}`)
	})

	mux.HandleFunc("/api/v0/chat/completion", func(w http.ResponseWriter, r *http.Request) {
		raw, err := base64.StdEncoding.DecodeString(r.Header.Get("x-ds-pow-response"))
		if err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var answer struct {
			Answer int64 `json:"answer"`
		}
		if json.Unmarshal(raw, &answer) != nil || answer.Answer != 24 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, stub.StreamBody)
	})

	return httptest.NewServer(mux)
}

// HelloStream is a two-delta DeepSeek SSE body spelling "hello".
const HelloStream = "data: {\"v\":\"hel\"}\n\ndata: {\"v\":\"lo\"}\n\ndata: [DONE]\n\n"

// ReasoningStream is a DeepSeek SSE body carrying one reasoning delta
// followed by one answer delta.
const ReasoningStream = "data: {\"v\":\"pondering\",\"p\":\"response/thinking_content\"}\n\n" +
	"data: {\"v\":\"the answer\",\"p\":\"response/content\"}\n\n" +
	"data: [DONE]\n\n"
