package minimax

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"nxapi-hq/nxapi/pkg/providers"
)

var errMissingChatID = errors.New("send_msg response carried no chat_id")

const chatStatusFinished = 2

type chatDetail struct {
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
	Chat struct {
		ChatStatus int `json:"chat_status"`
	} `json:"chat"`
	Messages []struct {
		MsgType    int    `json:"msg_type"`
		MsgContent string `json:"msg_content"`
	} `json:"messages"`
}

// assistantContent returns the newest assistant message body. Messages
// arrive newest first.
func (d *chatDetail) assistantContent() string {
	for _, msg := range d.Messages {
		if msg.MsgType == 2 {
			return msg.MsgContent
		}
	}
	return ""
}

func (c *Client) fetchDetail(ctx context.Context, chatID string) (*chatDetail, error) {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"size":    500,
		"desc":    true,
	})
	if err != nil {
		return nil, err
	}

	resp, err := c.signedPost(ctx, detailPath, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var detail chatDetail
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, &providers.MalformedUpstreamError{Provider: c.config.Name, Cause: err}
	}
	if detail.BaseResp.StatusCode != 0 {
		return nil, &providers.UpstreamError{Provider: c.config.Name, Message: detail.BaseResp.StatusMsg}
	}
	return &detail, nil
}

// pollChat polls the chat detail until the chat reports completion,
// emitting the growth of the assistant message as answer deltas.
func (c *Client) pollChat(ctx context.Context, chatID string, seq *providers.Sequencer) {
	defer seq.Close()

	deadline := time.Now().Add(maxPollDuration)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var emitted string
	for {
		detail, err := c.fetchDetail(ctx, chatID)
		if err != nil {
			seq.Fail(err)
			return
		}

		content := detail.assistantContent()
		if len(content) > len(emitted) && content[:len(emitted)] == emitted {
			if !seq.Answer(content[len(emitted):]) {
				return
			}
			emitted = content
		} else if content != emitted && content != "" {
			if !seq.Answer(content) {
				return
			}
			emitted = content
		}

		if detail.Chat.ChatStatus == chatStatusFinished {
			seq.Finish(providers.FinishCompleted)
			return
		}
		if time.Now().After(deadline) {
			seq.Fail(&providers.TimeoutError{Provider: c.config.Name, Timeout: maxPollDuration})
			return
		}

		select {
		case <-ctx.Done():
			seq.Fail(&providers.TimeoutError{Provider: c.config.Name, Timeout: maxPollDuration})
			return
		case <-ticker.C:
		}
	}
}
