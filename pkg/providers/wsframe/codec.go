// Package wsframe implements the length-prefixed binary envelope used
// by connect-style chat backends: one opcode byte, a big-endian uint32
// payload length, then a JSON payload. The codec is transport-agnostic;
// the same frames travel over chunked HTTP responses and WebSocket
// binary messages.
package wsframe

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Frame opcodes.
const (
	// OpData carries a JSON message.
	OpData byte = 0x00

	// OpError carries a JSON error envelope and terminates the stream.
	OpError byte = 0x02
)

const headerSize = 5

// maxFrameSize rejects frames whose declared length is implausible,
// which usually means the stream is desynchronized.
const maxFrameSize = 16 * 1024 * 1024

// Frame is one decoded envelope.
type Frame struct {
	// Op is the frame opcode (OpData or OpError)
	Op byte

	// Payload is the raw JSON payload
	Payload json.RawMessage
}

// Encode serializes v as a data frame.
func Encode(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding frame payload: %w", err)
	}
	frame := make([]byte, headerSize+len(payload))
	frame[0] = OpData
	binary.BigEndian.PutUint32(frame[1:5], uint32(len(payload)))
	copy(frame[headerSize:], payload)
	return frame, nil
}

// Decoder incrementally extracts frames from a byte stream that arrives
// in arbitrary chunks. Feed appends received bytes; Next pops complete
// frames until it returns nil.
type Decoder struct {
	buf []byte
}

// Feed appends newly received bytes to the internal buffer.
func (d *Decoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next returns the next complete frame, or nil when the buffer holds
// only a partial frame. Keepalive and other unrecognized bytes between
// frames are discarded one at a time until the buffer resynchronizes on
// a known opcode. An oversized declared length returns an error; the
// stream cannot be resynchronized after that.
func (d *Decoder) Next() (*Frame, error) {
	for len(d.buf) > 0 && d.buf[0] != OpData && d.buf[0] != OpError {
		d.buf = d.buf[1:]
	}
	if len(d.buf) < headerSize {
		return nil, nil
	}

	op := d.buf[0]
	length := binary.BigEndian.Uint32(d.buf[1:5])
	if length > maxFrameSize {
		return nil, fmt.Errorf("frame length %d exceeds limit", length)
	}
	if len(d.buf) < headerSize+int(length) {
		return nil, nil
	}

	payload := make([]byte, length)
	copy(payload, d.buf[headerSize:headerSize+length])
	d.buf = d.buf[headerSize+int(length):]

	return &Frame{Op: op, Payload: payload}, nil
}

// Buffered reports how many undecoded bytes remain.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}
