package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// JSONSink writes one JSON object per line (machine stream), flushing
// at least every flushEvery lines so a consumer tailing the stream is
// never more than a few events behind.
type JSONSink struct {
	w          *bufio.Writer
	closer     io.Closer
	flushEvery int
	sinceFlush int
}

// NewJSONSink wraps w (closed on Close if it implements io.Closer).
// flushEvery <= 0 defaults to 10.
func NewJSONSink(w io.Writer, flushEvery int) *JSONSink {
	if flushEvery <= 0 {
		flushEvery = 10
	}
	closer, _ := w.(io.Closer)
	return &JSONSink{w: bufio.NewWriter(w), closer: closer, flushEvery: flushEvery}
}

func (s *JSONSink) Emit(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("sink: marshal event: %w", err)
	}
	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("sink: write event: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write newline: %w", err)
	}

	s.sinceFlush++
	if s.sinceFlush >= s.flushEvery {
		if err := s.w.Flush(); err != nil {
			return fmt.Errorf("sink: flush: %w", err)
		}
		s.sinceFlush = 0
	}
	return nil
}

func (s *JSONSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: final flush: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
