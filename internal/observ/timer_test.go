package observ

import (
	"strings"
	"testing"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	i := tm.Begin("specialize")
	tm.Count("procs", 3)
	tm.Count("procs", 2)
	tm.Count("incref", 1)
	tm.End(i, "5 procs")

	rep := tm.Report()
	if len(rep.Phases) != 1 || rep.Phases[0].Note != "5 procs" {
		t.Fatalf("phases = %+v", rep.Phases)
	}
	if len(rep.Counters) != 2 || rep.Counters[0].Name != "incref" || rep.Counters[1].Value != 5 {
		t.Fatalf("counters = %+v", rep.Counters)
	}
	if s := tm.Summary(); !strings.Contains(s, "specialize") || !strings.Contains(s, "procs") {
		t.Fatalf("summary = %q", s)
	}
}

func TestNilTimerIsInert(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	tm.Count("y", 1)
	if rep := tm.Report(); len(rep.Phases) != 0 {
		t.Fatalf("nil timer reported %+v", rep)
	}
}
