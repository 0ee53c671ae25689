package trace

import (
	"strconv"
	"sync"
	"time"
)

// Heartbeat emits a point event every interval while a build runs. A run of
// heartbeats with no span ends between them points at a specialization
// that never finishes.
type Heartbeat struct {
	tracer   Tracer
	interval time.Duration
	started  time.Time
	stop     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// StartHeartbeat starts beating on tracer. It returns nil when tracing is
// off or interval is not positive; Stop on nil is fine.
func StartHeartbeat(tracer Tracer, interval time.Duration) *Heartbeat {
	if tracer == nil || !tracer.Enabled() || interval <= 0 {
		return nil
	}
	h := &Heartbeat{
		tracer:   tracer,
		interval: interval,
		started:  time.Now(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Heartbeat) run() {
	defer close(h.done)
	tick := time.NewTicker(h.interval)
	defer tick.Stop()
	for n := 1; ; n++ {
		select {
		case now := <-tick.C:
			h.tracer.Emit(&Event{
				Time:   now,
				Seq:    nextSeq(),
				Kind:   KindHeartbeat,
				Scope:  ScopeDriver,
				GID:    workerID(),
				Name:   "heartbeat",
				Detail: "#" + strconv.Itoa(n) + " after " + now.Sub(h.started).Round(time.Millisecond).String(),
			})
		case <-h.stop:
			return
		}
	}
}

// Stop ends the heartbeat and waits for its goroutine. It is idempotent.
func (h *Heartbeat) Stop() {
	if h == nil {
		return
	}
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
