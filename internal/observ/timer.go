// Package observ collects per-run timings and counters for --timings.
package observ

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Phase records the duration and metadata of one pass.
type Phase struct {
	Name  string
	Start time.Time
	Dur   time.Duration
	Note  string
}

// Timer tracks passes and named counters. It is safe for concurrent use;
// bundles compiled in parallel share one Timer.
type Timer struct {
	mu       sync.Mutex
	phases   []Phase
	counters map[string]int64
}

// NewTimer creates a new empty Timer.
func NewTimer() *Timer {
	return &Timer{phases: make([]Phase, 0, 8), counters: make(map[string]int64)}
}

// Begin starts a new phase and returns its index.
func (t *Timer) Begin(name string) int {
	if t == nil {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phases = append(t.phases, Phase{Name: name, Start: time.Now()})
	return len(t.phases) - 1
}

// End finishes a phase by its index.
func (t *Timer) End(idx int, note string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx < 0 || idx >= len(t.phases) {
		return
	}
	p := &t.phases[idx]
	p.Dur = time.Since(p.Start)
	p.Note = note
}

// Count adds delta to the counter name.
func (t *Timer) Count(name string, delta int64) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.counters[name] += delta
	t.mu.Unlock()
}

// Summary renders the report as an aligned table.
func (t *Timer) Summary() string {
	report := t.Report()
	var sb strings.Builder
	sb.WriteString("timings:\n")
	for _, p := range report.Phases {
		fmt.Fprintf(&sb, "  %-20s %7.2f ms", p.Name, p.DurationMS)
		if p.Note != "" {
			sb.WriteString("  // " + p.Note)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "  %-20s %7.2f ms\n", "total", report.TotalMS)
	for _, c := range report.Counters {
		fmt.Fprintf(&sb, "  %-20s %7d\n", c.Name, c.Value)
	}
	return sb.String()
}

// PhaseReport is one phase in serialized form.
type PhaseReport struct {
	Name       string  `json:"name" msgpack:"name"`
	DurationMS float64 `json:"duration_ms" msgpack:"duration_ms"`
	Note       string  `json:"note,omitempty" msgpack:"note,omitempty"`
}

// CounterReport is one counter in serialized form.
type CounterReport struct {
	Name  string `json:"name" msgpack:"name"`
	Value int64  `json:"value" msgpack:"value"`
}

// Report aggregates the timer. Counters are sorted by name.
type Report struct {
	TotalMS  float64         `json:"total_ms" msgpack:"total_ms"`
	Phases   []PhaseReport   `json:"phases" msgpack:"phases"`
	Counters []CounterReport `json:"counters,omitempty" msgpack:"counters,omitempty"`
}

// Report snapshots phases and counters.
func (t *Timer) Report() Report {
	if t == nil {
		return Report{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	report := Report{Phases: make([]PhaseReport, len(t.phases))}
	var total time.Duration
	for i, phase := range t.phases {
		total += phase.Dur
		report.Phases[i] = PhaseReport{
			Name:       phase.Name,
			DurationMS: durationToMillis(phase.Dur),
			Note:       phase.Note,
		}
	}
	report.TotalMS = durationToMillis(total)
	for name, v := range t.counters {
		report.Counters = append(report.Counters, CounterReport{Name: name, Value: v})
	}
	slices.SortFunc(report.Counters, func(a, b CounterReport) int { return strings.Compare(a.Name, b.Name) })
	return report
}

func durationToMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
