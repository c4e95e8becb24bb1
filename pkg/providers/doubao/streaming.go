package doubao

import (
	"encoding/json"
	"net/http"

	"nxapi-hq/nxapi/pkg/providers"
)

// Named SSE event types emitted by /chat/completion.
const (
	eventAck         = "SSE_ACK"
	eventChunkDelta  = "CHUNK_DELTA"
	eventMsgNotify   = "STREAM_MSG_NOTIFY"
	eventReplyEnd    = "SSE_REPLY_END"
	textBlockType    = 10000
)

type chunkDelta struct {
	Text string `json:"text"`
}

type msgNotify struct {
	Content struct {
		ContentBlock []struct {
			BlockType int `json:"block_type"`
			Content   struct {
				TextBlock struct {
					Text string `json:"text"`
				} `json:"text_block"`
			} `json:"content"`
		} `json:"content_block"`
	} `json:"content"`
}

func (c *Client) consumeStream(resp *http.Response, seq *providers.Sequencer) {
	defer resp.Body.Close()
	defer seq.Close()

	// CHUNK_DELTA events carry incremental text; STREAM_MSG_NOTIFY
	// carries full snapshots and is used only when no deltas arrived.
	sawDelta := false

	scanner := providers.NewSSEScanner(resp.Body)
	for {
		event, ok := scanner.Next()
		if !ok {
			break
		}

		switch event.Name {
		case eventChunkDelta:
			var delta chunkDelta
			if err := json.Unmarshal([]byte(event.Data), &delta); err != nil {
				continue
			}
			sawDelta = true
			if !seq.Answer(delta.Text) {
				return
			}

		case eventMsgNotify:
			if sawDelta {
				continue
			}
			var notify msgNotify
			if err := json.Unmarshal([]byte(event.Data), &notify); err != nil {
				continue
			}
			for _, block := range notify.Content.ContentBlock {
				if block.BlockType != textBlockType {
					continue
				}
				if !seq.Answer(block.Content.TextBlock.Text) {
					return
				}
			}

		case eventReplyEnd:
			seq.Finish(providers.FinishCompleted)
			return

		case eventAck:
			// Conversation acknowledgment; nothing to emit.
		}
	}

	if err := scanner.Err(); err != nil {
		seq.Fail(&providers.TransportError{Provider: c.config.Name, Cause: err})
		return
	}
	seq.Finish(providers.FinishCompleted)
}
