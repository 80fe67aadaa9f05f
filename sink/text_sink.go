package sink

import (
	"bufio"
	"fmt"
	"io"
)

// TextSink renders events as a human-readable line stream, the
// parallel format to the machine JSON stream.
type TextSink struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewTextSink wraps w.
func NewTextSink(w io.Writer) *TextSink {
	closer, _ := w.(io.Closer)
	return &TextSink{w: bufio.NewWriter(w), closer: closer}
}

func (s *TextSink) Emit(e Event) error {
	var line string
	switch e.Type {
	case EventMonitoringStarted:
		line = fmt.Sprintf("monitoring started: %v", e.MonitoringStarted.Endpoints)
	case EventPageStarted:
		p := e.PageStarted
		line = fmt.Sprintf("[%s] page %d started: source=%s codec=%s id=%s", e.Endpoint, p.PageNumber, p.Source, p.Codec, p.Identifier)
	case EventStats:
		s := e.Stats
		line = fmt.Sprintf("[%s] stats: dur=%.1fs pkts=%d loss=%.1f%% jitter=%.1fms rms=%.1fdB freq=%.0fHz",
			e.Endpoint, s.DurationSecs, s.Packets, s.LossPercent, s.JitterMs, s.RMSDb, s.FreqHz)
	case EventPageEnded:
		p := e.PageEnded
		line = fmt.Sprintf("[%s] page %d ended: dur=%.1fs loss=%.1f%% dominant=%.0fHz clipped=%d glitches=%d",
			e.Endpoint, p.PageNumber, p.DurationSecs, p.LossPercent, p.DominantFreqHz, p.TotalClipped, p.TotalGlitches)
	case EventRecordingSaved:
		line = fmt.Sprintf("[%s] recording saved: %s", e.Endpoint, e.RecordingSaved.Path)
	case EventError:
		line = fmt.Sprintf("[%s] error: %s", e.Endpoint, e.Error.Message)
	case EventTimeout:
		line = fmt.Sprintf("[%s] timeout", e.Endpoint)
	default:
		line = fmt.Sprintf("[%s] %s", e.Endpoint, e.Type)
	}

	if _, err := fmt.Fprintln(s.w, line); err != nil {
		return fmt.Errorf("sink: write text event: %w", err)
	}
	return s.w.Flush()
}

func (s *TextSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: final flush: %w", err)
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
