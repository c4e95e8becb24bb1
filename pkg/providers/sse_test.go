package providers

import (
	"strings"
	"testing"
)

func TestSSEScannerBasic(t *testing.T) {
	input := "data: {\"v\":\"hello\"}\n\ndata: {\"v\":\" world\"}\n\ndata: [DONE]\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	var events []SSEEvent
	for {
		ev, ok := scanner.Next()
		if !ok {
			break
		}
		events = append(events, ev)
	}

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Data != `{"v":"hello"}` {
		t.Errorf("unexpected first event: %q", events[0].Data)
	}
	if events[2].Data != "[DONE]" {
		t.Errorf("unexpected terminal event: %q", events[2].Data)
	}
}

func TestSSEScannerNamedEvents(t *testing.T) {
	input := "event: SSE_ACK\ndata: {\"conversation_id\":\"c1\"}\n\nevent: CHUNK_DELTA\ndata: {\"text\":\"hi\"}\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	ev, ok := scanner.Next()
	if !ok || ev.Name != "SSE_ACK" {
		t.Fatalf("expected SSE_ACK, got %+v ok=%v", ev, ok)
	}

	ev, ok = scanner.Next()
	if !ok || ev.Name != "CHUNK_DELTA" {
		t.Fatalf("expected CHUNK_DELTA, got %+v ok=%v", ev, ok)
	}
	if ev.Data != `{"text":"hi"}` {
		t.Errorf("unexpected data: %q", ev.Data)
	}
}

func TestSSEScannerMultiLineData(t *testing.T) {
	input := "data: line one\ndata: line two\n\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	ev, ok := scanner.Next()
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Data != "line one\nline two" {
		t.Errorf("unexpected joined data: %q", ev.Data)
	}
}

func TestSSEScannerSkipsCommentsAndCRLF(t *testing.T) {
	input := ": keepalive\r\ndata: payload\r\n\r\n"
	scanner := NewSSEScanner(strings.NewReader(input))

	ev, ok := scanner.Next()
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Data != "payload" {
		t.Errorf("unexpected data: %q", ev.Data)
	}
}

func TestSSEScannerTruncatedStream(t *testing.T) {
	// Final event lacks the trailing blank line; it must still surface.
	input := "data: first\n\ndata: truncated"
	scanner := NewSSEScanner(strings.NewReader(input))

	ev, _ := scanner.Next()
	if ev.Data != "first" {
		t.Fatalf("unexpected first event: %q", ev.Data)
	}
	ev, ok := scanner.Next()
	if !ok || ev.Data != "truncated" {
		t.Errorf("expected truncated tail to surface, got %+v ok=%v", ev, ok)
	}
	if _, ok := scanner.Next(); ok {
		t.Error("expected end of stream")
	}
}

func TestLineScanner(t *testing.T) {
	input := "{\"a\":1}\n\n{\"b\":2}\n"
	scanner := NewLineScanner(strings.NewReader(input))

	line, ok := scanner.Next()
	if !ok || line != `{"a":1}` {
		t.Fatalf("unexpected first line: %q ok=%v", line, ok)
	}
	line, ok = scanner.Next()
	if !ok || line != `{"b":2}` {
		t.Fatalf("unexpected second line: %q ok=%v", line, ok)
	}
	if _, ok := scanner.Next(); ok {
		t.Error("expected end of stream")
	}
}
