package providers

import (
	"bufio"
	"io"
	"strings"
)

// SSEEvent is one parsed Server-Sent-Events frame.
type SSEEvent struct {
	// Name is the value of the "event:" field, empty for unnamed events
	Name string

	// Data is the joined value of the "data:" field lines
	Data string
}

// SSEScanner incrementally parses a Server-Sent-Events byte stream.
// It handles multi-line data fields, event names, comment lines, and
// arbitrary chunk boundaries, and never buffers the whole response.
type SSEScanner struct {
	scanner *bufio.Scanner
	err     error
}

// NewSSEScanner wraps an HTTP response body. The caller retains
// ownership of the reader and must close it when done.
func NewSSEScanner(r io.Reader) *SSEScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &SSEScanner{scanner: scanner}
}

// Next returns the next complete event, or false at end of stream.
// Events with no data field are skipped.
func (s *SSEScanner) Next() (SSEEvent, bool) {
	var ev SSEEvent
	var dataLines []string

	for s.scanner.Scan() {
		line := strings.TrimRight(s.scanner.Text(), "\r")

		if line == "" {
			if len(dataLines) > 0 {
				ev.Data = strings.Join(dataLines, "\n")
				return ev, true
			}
			ev.Name = ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, ":"):
			// Comment/keepalive line.
		}
	}

	s.err = s.scanner.Err()

	// Stream ended without a trailing blank line.
	if len(dataLines) > 0 {
		ev.Data = strings.Join(dataLines, "\n")
		return ev, true
	}
	return SSEEvent{}, false
}

// Err returns the first non-EOF read error encountered, if any.
func (s *SSEScanner) Err() error {
	return s.err
}

// LineScanner incrementally reads newline-delimited JSON payloads from a
// chunked HTTP response. Blank lines are skipped.
type LineScanner struct {
	scanner *bufio.Scanner
	err     error
}

// NewLineScanner wraps a chunked response body.
func NewLineScanner(r io.Reader) *LineScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &LineScanner{scanner: scanner}
}

// Next returns the next non-blank line, or false at end of stream.
func (s *LineScanner) Next() (string, bool) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line != "" {
			return line, true
		}
	}
	s.err = s.scanner.Err()
	return "", false
}

// Err returns the first non-EOF read error encountered, if any.
func (s *LineScanner) Err() error {
	return s.err
}
