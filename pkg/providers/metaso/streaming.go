package metaso

import (
	"encoding/json"
	"net/http"
	"regexp"

	"nxapi-hq/nxapi/pkg/providers"
)

// indexLabelPattern matches the [[n]] citation labels embedded in
// answer text.
var indexLabelPattern = regexp.MustCompile(`\[\[\d+\]\]`)

type searchEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

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

		var parsed searchEvent
		if err := json.Unmarshal([]byte(event.Data), &parsed); err != nil {
			continue
		}

		switch parsed.Type {
		case "append-text":
			text := indexLabelPattern.ReplaceAllString(parsed.Text, "")
			if !seq.Answer(text) {
				return
			}
		case "error":
			seq.Fail(&providers.UpstreamError{
				Provider: c.config.Name,
				Message:  parsed.Code + ": " + parsed.Msg,
			})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		seq.Fail(&providers.TransportError{Provider: c.config.Name, Cause: err})
		return
	}
	seq.Finish(providers.FinishCompleted)
}
