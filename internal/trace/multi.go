package trace

import "errors"

// MultiTracer backs --trace-mode=both: every event reaches the stream and
// the ring, so a crash can still dump recent history after the stream was
// cut short.
type MultiTracer struct {
	level Level
	sinks []Tracer
}

// NewMultiTracer returns a tracer that forwards to each of sinks.
func NewMultiTracer(level Level, sinks ...Tracer) *MultiTracer {
	return &MultiTracer{level: level, sinks: sinks}
}

func (t *MultiTracer) Emit(ev *Event) {
	for _, s := range t.sinks {
		s.Emit(ev)
	}
}

// Flush flushes every sink and joins their errors.
func (t *MultiTracer) Flush() error {
	return t.each(Tracer.Flush)
}

// Close closes every sink even when an earlier one fails.
func (t *MultiTracer) Close() error {
	return t.each(Tracer.Close)
}

func (t *MultiTracer) each(op func(Tracer) error) error {
	var errs []error
	for _, s := range t.sinks {
		if err := op(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *MultiTracer) Level() Level  { return t.level }
func (t *MultiTracer) Enabled() bool { return t.level > LevelOff }
