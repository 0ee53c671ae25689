package driver

import "time"

// Phase names one step of a module's pipeline.
type Phase string

const (
	PhaseSpecialize Phase = "specialize"
	PhaseRefcount   Phase = "refcount"
	PhaseValidate   Phase = "validate"
)

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
	PhaseFailed
	// PhaseCached is sent instead of the phase events of a cache hit.
	PhaseCached
)

// PhaseEvent describes a phase boundary of one module.
type PhaseEvent struct {
	Module  string
	Phase   Phase
	Status  PhaseStatus
	Err     error
	Elapsed time.Duration
}

// PhaseObserver receives phase events; it is called from worker
// goroutines and must be safe for concurrent use.
type PhaseObserver func(PhaseEvent)

func (o PhaseObserver) emit(ev PhaseEvent) {
	if o != nil {
		o(ev)
	}
}
