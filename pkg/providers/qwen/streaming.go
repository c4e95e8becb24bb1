package qwen

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"nxapi-hq/nxapi/pkg/providers"
)

// streamEvent is one SSE payload from /conversation. Content snapshots
// are cumulative across events.
type streamEvent struct {
	MsgID     string `json:"msgId"`
	SessionID string `json:"sessionId"`
	MsgStatus string `json:"msgStatus"`
	ErrorCode string `json:"errorCode"`
	ErrorMsg  string `json:"errorMsg"`
	Contents  []struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"contents"`
}

func (e *streamEvent) text() string {
	var b strings.Builder
	for _, item := range e.Contents {
		if item.ContentType == "text" || item.ContentType == "text2image" {
			b.WriteString(item.Content)
		}
	}
	return b.String()
}

func (c *Client) consumeStream(resp *http.Response, seq *providers.Sequencer) {
	defer resp.Body.Close()
	defer seq.Close()

	var last string

	scanner := providers.NewSSEScanner(resp.Body)
	for {
		event, ok := scanner.Next()
		if !ok {
			break
		}

		var parsed streamEvent
		if err := json.Unmarshal([]byte(event.Data), &parsed); err != nil {
			continue
		}

		if parsed.ErrorCode != "" {
			seq.Fail(&providers.UpstreamError{
				Provider: c.config.Name,
				Message:  fmt.Sprintf("%s: %s", parsed.ErrorCode, parsed.ErrorMsg),
			})
			return
		}

		if parsed.MsgStatus == "finish" {
			seq.Finish(providers.FinishCompleted)
			return
		}

		snapshot := parsed.text()
		if snapshot == "" || snapshot == last {
			continue
		}
		delta := snapshot
		if strings.HasPrefix(snapshot, last) {
			delta = snapshot[len(last):]
		}
		last = snapshot
		if !seq.Answer(delta) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		seq.Fail(&providers.TransportError{Provider: c.config.Name, Cause: err})
		return
	}
	seq.Finish(providers.FinishCompleted)
}
