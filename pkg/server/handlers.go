package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nxapi-hq/nxapi/pkg/providers"
)

// handleChatCompletions serves POST /v1/chat/completions in both
// streaming and non-streaming modes.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var body chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}

	req := &providers.ChatRequest{
		Model:       body.Model,
		Messages:    body.Messages,
		Stream:      body.Stream,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
	}

	s.metrics.RecordRequest(vendorLabel(body.Model), body.Model)

	if body.Stream {
		s.streamCompletion(w, r, req)
		return
	}
	s.completeOnce(w, r, req)
}

// completeOnce drains the stream server-side and replies with a single
// aggregated completion.
func (s *Server) completeOnce(w http.ResponseWriter, r *http.Request, req *providers.ChatRequest) {
	start := time.Now()

	completion, err := s.orchestrator.Complete(r.Context(), req)
	if err != nil {
		s.metrics.RecordError(vendorLabel(req.Model), providers.ErrorKind(err))
		status, errType := statusForError(err)
		s.writeError(w, status, errType, err.Error())
		return
	}

	s.metrics.RecordDuration(completion.Provider, req.Model, time.Since(start))

	content := completion.Answer
	if completion.Reasoning != "" {
		content = renderThink(completion.Reasoning) + completion.Answer
	}

	prompt := estimateTokens(flattenPrompt(req.Messages))
	completionTokens := estimateTokens(content)

	writeJSON(w, http.StatusOK, &chatCompletionResponse{
		ID:      newResponseID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []choice{{
			Index:        0,
			Message:      message{Role: providers.RoleAssistant, Content: content},
			FinishReason: finishReasonWire(completion.FinishReason),
		}},
		Usage: usage{
			PromptTokens:     prompt,
			CompletionTokens: completionTokens,
			TotalTokens:      prompt + completionTokens,
		},
	})
}

// streamCompletion forwards canonical events as OpenAI SSE chunks.
// Reasoning deltas are wrapped in the inline think marker.
func (s *Server) streamCompletion(w http.ResponseWriter, r *http.Request, req *providers.ChatRequest) {
	start := time.Now()

	events, providerName, err := s.orchestrator.Stream(r.Context(), req)
	if err != nil {
		s.metrics.RecordError(vendorLabel(req.Model), providers.ErrorKind(err))
		status, errType := statusForError(err)
		s.writeError(w, status, errType, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	responseID := newResponseID()
	created := time.Now().Unix()

	chunk := func(d delta, finishReason *string) *chatCompletionChunk {
		return &chatCompletionChunk{
			ID:      responseID,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []chunkChoice{{Index: 0, Delta: d, FinishReason: finishReason}},
		}
	}

	writeChunk(w, chunk(delta{Role: providers.RoleAssistant}, nil))

	for event := range events {
		s.metrics.RecordStreamEvent(providerName, string(event.Type))

		switch event.Type {
		case providers.EventAnswerDelta:
			writeChunk(w, chunk(delta{Content: event.Text}, nil))
		case providers.EventReasoningDelta:
			writeChunk(w, chunk(delta{Content: renderThink(event.Text)}, nil))
		case providers.EventFinish:
			reason := finishReasonWire(event.FinishReason)
			writeChunk(w, chunk(delta{}, &reason))
		case providers.EventError:
			s.metrics.RecordError(providerName, providers.ErrorKind(event.Err))
			writeSSEError(w, event.Err)
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flush(w)

	s.metrics.RecordDuration(providerName, req.Model, time.Since(start))
}

// handleModels serves GET /v1/models with the models of all enabled
// providers.
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	created := time.Now().Unix()
	models := s.orchestrator.Models()

	data := make([]modelInfo, 0, len(models))
	for _, id := range models {
		data = append(data, modelInfo{
			ID:      id,
			Object:  "model",
			Created: created,
			OwnedBy: vendorLabel(id),
		})
	}

	writeJSON(w, http.StatusOK, &modelList{Object: "list", Data: data})
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, &errorResponse{Error: errorBody{Message: msg, Type: errType}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeChunk(w http.ResponseWriter, chunk *chatCompletionChunk) {
	data, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flush(w)
}

// writeSSEError emits an error object mid-stream; the HTTP status is
// already committed at this point.
func writeSSEError(w http.ResponseWriter, err error) {
	_, errType := statusForError(err)
	data, marshalErr := json.Marshal(&errorResponse{Error: errorBody{
		Message: err.Error(),
		Type:    errType,
		Code:    providers.ErrorKind(err),
	}})
	if marshalErr != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flush(w)
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}

func newResponseID() string {
	return "chatcmpl-" + uuid.NewString()
}

// estimateTokens approximates token counts for the usage block. The
// vendors never report real usage, so four characters per token is as
// good as it gets.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func flattenPrompt(messages []providers.Message) string {
	var total string
	for _, m := range messages {
		total += m.Content
	}
	return total
}
