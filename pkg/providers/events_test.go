package providers

import (
	"context"
	"testing"
)

func collect(seq *Sequencer) []*ChatEvent {
	var out []*ChatEvent
	for ev := range seq.Events() {
		out = append(out, ev)
	}
	return out
}

func TestSequencerOrdering(t *testing.T) {
	seq := NewSequencer(context.Background())

	go func() {
		seq.Reasoning("thinking")
		seq.Answer("hello")
		seq.Answer(" world")
		seq.Finish(FinishCompleted)
		seq.Close()
	}()

	events := collect(seq)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}

	wantTypes := []EventType{EventReasoningDelta, EventAnswerDelta, EventAnswerDelta, EventFinish}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d: expected type %s, got %s", i, want, events[i].Type)
		}
	}
	if events[3].FinishReason != FinishCompleted {
		t.Errorf("expected finish reason %q, got %q", FinishCompleted, events[3].FinishReason)
	}
}

func TestSequencerDropsAfterTerminal(t *testing.T) {
	seq := NewSequencer(context.Background())

	go func() {
		seq.Answer("first")
		seq.Finish(FinishCompleted)
		if seq.Answer("after terminal") {
			t.Error("Answer after terminal should report false")
		}
		seq.Finish(FinishUpstreamError)
		seq.Fail(&TransportError{Provider: "test"})
		seq.Close()
	}()

	events := collect(seq)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != EventFinish || events[1].FinishReason != FinishCompleted {
		t.Errorf("terminal event changed: %+v", events[1])
	}
}

func TestSequencerErrorTerminal(t *testing.T) {
	seq := NewSequencer(context.Background())

	go func() {
		seq.Answer("partial")
		seq.Fail(&MalformedUpstreamError{Provider: "test", RawPayload: "{"})
		seq.Close()
	}()

	events := collect(seq)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Type != EventError {
		t.Fatalf("expected error terminal, got %s", events[1].Type)
	}
	if ErrorKind(events[1].Err) != "malformed_upstream" {
		t.Errorf("expected malformed_upstream kind, got %s", ErrorKind(events[1].Err))
	}
}

func TestSequencerSkipsEmptyDeltas(t *testing.T) {
	seq := NewSequencer(context.Background())

	go func() {
		seq.Answer("")
		seq.Reasoning("")
		seq.Answer("only")
		seq.Finish(FinishCompleted)
		seq.Close()
	}()

	events := collect(seq)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Text != "only" {
		t.Errorf("expected text %q, got %q", "only", events[0].Text)
	}
}

func TestSequencerConsumerDeparture(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	seq := NewSequencer(ctx)

	// Fill the buffer, then cancel; further sends must not block.
	for i := 0; i < 64; i++ {
		seq.Answer("x")
	}
	cancel()

	if seq.Answer("blocked") {
		t.Error("send after cancellation should report false")
	}
	if !seq.Finished() {
		t.Error("sequencer should be finished after consumer departure")
	}
	seq.Close()
}
