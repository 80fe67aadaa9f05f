package sink

// Sink receives lifecycle events as they occur. Implementations must
// not block the reassembler for long; JSONSink/TextSink buffer and
// flush on their own schedule.
type Sink interface {
	Emit(e Event) error
	Close() error
}

// MultiSink fans a single event out to multiple sinks, continuing past
// individual failures so a broken recording sink doesn't also silence
// the event stream.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink constructs a MultiSink over the given sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(e Event) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Emit(e); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
