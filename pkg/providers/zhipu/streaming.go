package zhipu

import (
	"encoding/json"
	"net/http"
	"strings"

	"nxapi-hq/nxapi/pkg/providers"
)

// streamEvent is one assistant/stream SSE payload. Text items are
// cumulative snapshots; deltas are recovered by prefix diffing.
type streamEvent struct {
	ConversationID string `json:"conversation_id"`
	Parts          []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"parts"`
}

// cumulativeDiff tracks a cumulative text snapshot and yields the suffix
// added since the previous snapshot. A snapshot that is not an extension
// of the previous one replaces it wholesale and is emitted in full.
type cumulativeDiff struct {
	last string
}

func (d *cumulativeDiff) delta(snapshot string) string {
	if snapshot == d.last {
		return ""
	}
	if strings.HasPrefix(snapshot, d.last) {
		delta := snapshot[len(d.last):]
		d.last = snapshot
		return delta
	}
	d.last = snapshot
	return snapshot
}

func (c *Client) consumeStream(resp *http.Response, assistant string, seq *providers.Sequencer) {
	defer resp.Body.Close()
	defer seq.Close()

	var answer, thinking cumulativeDiff
	var conversationID string

	scanner := providers.NewSSEScanner(resp.Body)
	for {
		event, ok := scanner.Next()
		if !ok {
			break
		}
		if event.Data == "[DONE]" {
			break
		}

		var parsed streamEvent
		if err := json.Unmarshal([]byte(event.Data), &parsed); err != nil {
			continue
		}
		if parsed.ConversationID != "" {
			conversationID = parsed.ConversationID
		}

		for _, part := range parsed.Parts {
			if part.Role != "assistant" {
				continue
			}
			for _, item := range part.Content {
				switch item.Type {
				case "text":
					if !seq.Answer(answer.delta(item.Text)) {
						return
					}
				case "think":
					if !seq.Reasoning(thinking.delta(item.Text)) {
						return
					}
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		seq.Fail(&providers.TransportError{Provider: c.config.Name, Cause: err})
		return
	}
	seq.Finish(providers.FinishCompleted)

	go c.deleteConversation(conversationID, assistant)
}
