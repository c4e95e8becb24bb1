package wsframe

import (
	"encoding/binary"
	"testing"
)

func TestEncodeRoundTrip(t *testing.T) {
	frame, err := Encode(map[string]string{"message": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if frame[0] != OpData {
		t.Errorf("expected data opcode, got 0x%02x", frame[0])
	}
	length := binary.BigEndian.Uint32(frame[1:5])
	if int(length) != len(frame)-5 {
		t.Errorf("length header %d does not match payload size %d", length, len(frame)-5)
	}

	var dec Decoder
	dec.Feed(frame)
	decoded, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded == nil {
		t.Fatal("expected a complete frame")
	}
	if string(decoded.Payload) != `{"message":"hello"}` {
		t.Errorf("unexpected payload: %s", decoded.Payload)
	}
}

func TestDecoderPartialFrames(t *testing.T) {
	frame, _ := Encode(map[string]string{"op": "append"})

	var dec Decoder
	for i := 0; i < len(frame); i++ {
		dec.Feed(frame[i : i+1])
		decoded, err := dec.Next()
		if err != nil {
			t.Fatalf("byte %d: unexpected error: %v", i, err)
		}
		if i < len(frame)-1 && decoded != nil {
			t.Fatalf("frame surfaced early at byte %d", i)
		}
		if i == len(frame)-1 && decoded == nil {
			t.Fatal("frame missing after final byte")
		}
	}
}

func TestDecoderMultipleFramesInOneChunk(t *testing.T) {
	first, _ := Encode(map[string]int{"seq": 1})
	second, _ := Encode(map[string]int{"seq": 2})
	errorFrame := append([]byte{OpError, 0, 0, 0, 2}, []byte("{}")...)

	var dec Decoder
	dec.Feed(append(append(first, second...), errorFrame...))

	for i, wantOp := range []byte{OpData, OpData, OpError} {
		frame, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if frame == nil {
			t.Fatalf("frame %d missing", i)
		}
		if frame.Op != wantOp {
			t.Errorf("frame %d: expected opcode 0x%02x, got 0x%02x", i, wantOp, frame.Op)
		}
	}

	frame, err := dec.Next()
	if err != nil || frame != nil {
		t.Errorf("expected drained decoder, got frame=%v err=%v", frame, err)
	}
	if dec.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", dec.Buffered())
	}
}

func TestDecoderSkipsKeepaliveBytes(t *testing.T) {
	frame, _ := Encode(map[string]string{"op": "append"})

	var dec Decoder
	dec.Feed([]byte{0x01})
	dec.Feed(frame)

	decoded, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded == nil || decoded.Op != OpData {
		t.Fatalf("expected the data frame past the keepalive byte, got %+v", decoded)
	}
	if string(decoded.Payload) != `{"op":"append"}` {
		t.Errorf("unexpected payload: %s", decoded.Payload)
	}
}

func TestDecoderResyncsBetweenFrames(t *testing.T) {
	first, _ := Encode(map[string]int{"seq": 1})
	second, _ := Encode(map[string]int{"seq": 2})

	var dec Decoder
	dec.Feed(first)
	dec.Feed([]byte{0x7f, 0x01, 0x03})
	dec.Feed(second)

	for i := 0; i < 2; i++ {
		frame, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if frame == nil {
			t.Fatalf("frame %d missing", i)
		}
	}

	if frame, err := dec.Next(); err != nil || frame != nil {
		t.Errorf("expected drained decoder, got frame=%v err=%v", frame, err)
	}
	if dec.Buffered() != 0 {
		t.Errorf("expected garbage bytes discarded, %d buffered", dec.Buffered())
	}
}

func TestDecoderRejectsOversizedFrame(t *testing.T) {
	header := make([]byte, 5)
	header[0] = OpData
	binary.BigEndian.PutUint32(header[1:5], maxFrameSize+1)

	var dec Decoder
	dec.Feed(header)

	if _, err := dec.Next(); err == nil {
		t.Fatal("expected oversized frame error")
	}
}

func TestDecoderEmptyPayload(t *testing.T) {
	var dec Decoder
	dec.Feed([]byte{OpData, 0, 0, 0, 0})

	frame, err := dec.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame == nil || len(frame.Payload) != 0 {
		t.Errorf("expected empty payload frame, got %+v", frame)
	}
}
