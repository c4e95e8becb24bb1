package kimi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"nxapi-hq/nxapi/pkg/providers"
	"nxapi-hq/nxapi/pkg/providers/wsframe"
)

// chatMessage is one decoded connect frame payload from the chat RPC.
type chatMessage struct {
	Op   string `json:"op"`
	Chat *struct {
		ID string `json:"id"`
	} `json:"chat"`
	Message *struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"message"`
	Block *struct {
		Text *struct {
			Content string `json:"content"`
		} `json:"text"`
		Think *struct {
			Content string `json:"content"`
		} `json:"think"`
	} `json:"block"`
	Done  json.RawMessage `json:"done"`
	Error json.RawMessage `json:"error"`
}

// blockText applies set/append operation semantics to a text block and
// returns the delta to emit. "set" replaces the accumulated text, so a
// non-extending snapshot is emitted whole.
type blockText struct {
	total string
}

func (b *blockText) apply(op, content string) string {
	switch op {
	case "set":
		if strings.HasPrefix(content, b.total) {
			delta := content[len(b.total):]
			b.total = content
			return delta
		}
		b.total = content
		return content
	default:
		b.total += content
		return content
	}
}

func (c *Client) consumeStream(resp *http.Response, seq *providers.Sequencer) {
	defer resp.Body.Close()
	defer seq.Close()

	var dec wsframe.Decoder
	var answer, thinking blockText
	buf := make([]byte, 32*1024)

	for {
		frame, err := dec.Next()
		if err != nil {
			seq.Fail(&providers.MalformedUpstreamError{Provider: c.config.Name, Cause: err})
			return
		}
		if frame == nil {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				dec.Feed(buf[:n])
				continue
			}
			if err == io.EOF {
				seq.Finish(providers.FinishCompleted)
				return
			}
			if err != nil {
				seq.Fail(&providers.TransportError{Provider: c.config.Name, Cause: err})
				return
			}
			continue
		}

		if frame.Op == wsframe.OpError {
			seq.Fail(&providers.UpstreamError{Provider: c.config.Name, Message: string(frame.Payload)})
			return
		}

		var msg chatMessage
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			continue
		}

		if msg.Error != nil {
			seq.Fail(&providers.UpstreamError{Provider: c.config.Name, Message: string(msg.Error)})
			return
		}

		if msg.Block != nil {
			if msg.Block.Think != nil {
				if !seq.Reasoning(thinking.apply(msg.Op, msg.Block.Think.Content)) {
					return
				}
			}
			if msg.Block.Text != nil {
				if !seq.Answer(answer.apply(msg.Op, msg.Block.Text.Content)) {
					return
				}
			}
		}

		if msg.Done != nil {
			seq.Finish(providers.FinishCompleted)
			return
		}
	}
}
