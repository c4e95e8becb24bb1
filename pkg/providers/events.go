package providers

import "context"

// Sequencer enforces the ordering contract of a canonical event stream:
// events are forwarded in emit order, exactly one terminal event is
// delivered, and anything emitted after the terminal event is dropped.
//
// One Sequencer serves one request. It is used from the single goroutine
// that reads the vendor stream, so it needs no locking.
type Sequencer struct {
	ch       chan *ChatEvent
	ctx      context.Context
	finished bool
}

// NewSequencer creates a Sequencer delivering into a buffered channel.
// The context is the request context; emission stops silently once it is
// cancelled, because the consumer is gone.
func NewSequencer(ctx context.Context) *Sequencer {
	return &Sequencer{
		ch:  make(chan *ChatEvent, 64),
		ctx: ctx,
	}
}

// Events returns the receive side of the canonical stream.
func (s *Sequencer) Events() <-chan *ChatEvent {
	return s.ch
}

// Answer emits an answer text delta. Empty deltas are skipped.
// Returns false once the stream is terminated or the consumer departed.
func (s *Sequencer) Answer(text string) bool {
	if text == "" {
		return !s.finished
	}
	return s.send(&ChatEvent{Type: EventAnswerDelta, Text: text})
}

// Reasoning emits a chain-of-thought text delta. Empty deltas are skipped.
func (s *Sequencer) Reasoning(text string) bool {
	if text == "" {
		return !s.finished
	}
	return s.send(&ChatEvent{Type: EventReasoningDelta, Text: text})
}

// Finish emits the terminal Finish event. Duplicate terminals collapse
// to the first one delivered.
func (s *Sequencer) Finish(reason string) {
	if s.finished {
		return
	}
	s.send(&ChatEvent{Type: EventFinish, FinishReason: reason})
	s.finished = true
}

// Fail emits the terminal Error event. Duplicate terminals collapse to
// the first one delivered.
func (s *Sequencer) Fail(err error) {
	if s.finished {
		return
	}
	s.send(&ChatEvent{Type: EventError, Err: err})
	s.finished = true
}

// Finished reports whether a terminal event has been emitted.
func (s *Sequencer) Finished() bool {
	return s.finished
}

// Close closes the event channel. It must be called exactly once, after
// the vendor stream is fully drained or abandoned.
func (s *Sequencer) Close() {
	close(s.ch)
}

func (s *Sequencer) send(ev *ChatEvent) bool {
	if s.finished {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	case <-s.ctx.Done():
		// Consumer departed; stop emitting but let the producer unwind.
		s.finished = true
		return false
	}
}
