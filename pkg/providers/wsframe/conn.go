package wsframe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 15 * time.Second
	writeTimeout     = 10 * time.Second
)

// Conn is a WebSocket connection speaking the length-prefixed frame
// envelope inside binary messages. Control frames (ping/pong) are
// handled transparently by the underlying connection and never surface
// as frames.
type Conn struct {
	ws  *websocket.Conn
	dec Decoder
}

// Dial opens a WebSocket connection with the given headers. The context
// bounds the handshake only; use SetReadDeadline-style contexts on
// Receive via the request context of the caller.
func Dial(ctx context.Context, url string, header http.Header) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}

	ws, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket handshake failed: %w", err)
	}
	return &Conn{ws: ws}, nil
}

// Send encodes v as a data frame and writes it as one binary message.
func (c *Conn) Send(v any) error {
	frame, err := Encode(v)
	if err != nil {
		return err
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Receive returns the next complete frame, reading WebSocket messages
// as needed. A frame may span multiple messages and one message may
// carry multiple frames; the internal decoder buffers across both.
func (c *Conn) Receive(ctx context.Context) (*Frame, error) {
	for {
		frame, err := c.dec.Next()
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}

		if deadline, ok := ctx.Deadline(); ok {
			c.ws.SetReadDeadline(deadline)
		}
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		c.dec.Feed(data)
	}
}

// Close sends a close frame and tears down the connection.
func (c *Conn) Close() error {
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}
