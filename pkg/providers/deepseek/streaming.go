package deepseek

import (
	"encoding/json"
	"net/http"
	"strings"

	"nxapi-hq/nxapi/pkg/providers"
)

// streamChunk is one SSE payload from the completion endpoint. The "v"
// field is either a plain string delta or an object snapshot carrying
// response fragments; the optional "p" field is the JSON-pointer-style
// path a string delta applies to, which is how thinking text is told
// apart from answer text.
type streamChunk struct {
	V json.RawMessage `json:"v"`
	P string          `json:"p"`
}

type fragmentSnapshot struct {
	Response struct {
		Fragments []struct {
			Content string `json:"content"`
		} `json:"fragments"`
	} `json:"response"`
}

const finishedMarker = "FINISHED"

// consumeStream reads the completion SSE stream and emits canonical
// events. It owns the response body and the sequencer.
func (c *Client) consumeStream(resp *http.Response, seq *providers.Sequencer) {
	defer resp.Body.Close()
	defer seq.Close()

	scanner := providers.NewSSEScanner(resp.Body)
	for {
		event, ok := scanner.Next()
		if !ok {
			break
		}
		if event.Data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			// Interstitial non-JSON payloads are skipped, matching the
			// web client's behavior.
			continue
		}
		if chunk.V == nil {
			continue
		}

		var text string
		if err := json.Unmarshal(chunk.V, &text); err == nil {
			if text == finishedMarker {
				continue
			}
			if strings.HasSuffix(chunk.P, "thinking_content") {
				if !seq.Reasoning(text) {
					return
				}
				continue
			}
			if !seq.Answer(text) {
				return
			}
			continue
		}

		var snapshot fragmentSnapshot
		if err := json.Unmarshal(chunk.V, &snapshot); err != nil {
			continue
		}
		for _, fragment := range snapshot.Response.Fragments {
			if !seq.Answer(fragment.Content) {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil {
		seq.Fail(&providers.TransportError{Provider: c.config.Name, Cause: err})
		return
	}
	seq.Finish(providers.FinishCompleted)
}
