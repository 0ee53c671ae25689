package trace

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLevelShouldEmit(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeDriver, false},
		{LevelPhase, ScopePass, true},
		{LevelPhase, ScopeModule, false},
		{LevelDetail, ScopeModule, true},
		{LevelDetail, ScopeProc, false},
		{LevelDebug, ScopeProc, true},
	}
	for _, tc := range cases {
		if got := tc.level.ShouldEmit(tc.scope); got != tc.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", tc.level, tc.scope, got, tc.want)
		}
	}
}

func TestRingKeepsLastEvents(t *testing.T) {
	r := NewRingTracer(2, LevelDebug)
	for _, name := range []string{"a", "b", "c"} {
		r.Emit(&Event{Kind: KindPoint, Scope: ScopePass, Name: name})
	}
	got := r.Snapshot()
	if len(got) != 2 || got[0].Name != "b" || got[1].Name != "c" {
		t.Fatalf("snapshot = %+v", got)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "• c") {
		t.Fatalf("dump = %q", buf.String())
	}
}

func TestStreamChromeIsJSONArray(t *testing.T) {
	var buf bytes.Buffer
	st := NewStreamTracer(&buf, LevelPhase, FormatChrome)
	ctx := WithTracer(context.Background(), st)
	span := Begin(FromContext(ctx), ScopePass, "specialize", 0)
	span.WithExtra("procs", "3").End("")
	Begin(FromContext(ctx), ScopeProc, "proc:Test.0", span.ID()).End("")
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "{\"traceEvents\":[") || !strings.HasSuffix(out, "]}\n") {
		t.Fatalf("chrome output = %q", out)
	}
	if strings.Count(out, "\"ph\":") != 2 {
		t.Fatalf("proc scope should be filtered at phase level: %q", out)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("chrome"); err != nil || f != FormatChrome {
		t.Fatalf("chrome = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatalf("xml accepted")
	}
	if formatFor("out.ndjson") != FormatNDJSON || formatFor("out.txt") != FormatText {
		t.Fatalf("formatFor wrong")
	}
}

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"off", "error", "PHASE", "Detail", "debug"} {
		l, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if l.String() != strings.ToLower(in) {
			t.Fatalf("ParseLevel(%q) = %s", in, l)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("verbose accepted")
	}
	if LevelError.ShouldEmit(ScopeDriver) {
		t.Fatalf("error level records spans")
	}
}

func TestStartNestsSpans(t *testing.T) {
	r := NewRingTracer(16, LevelDetail)
	ctx := WithTracer(context.Background(), r)

	ctx, drv := Start(ctx, ScopeDriver, "driver")
	mctx, mod := Start(ctx, ScopeModule, "module:app")
	if ParentID(ctx) != drv.ID() || ParentID(mctx) != mod.ID() {
		t.Fatalf("context carries %d/%d, want %d/%d", ParentID(ctx), ParentID(mctx), drv.ID(), mod.ID())
	}
	// proc scope is filtered at detail level
	pctx, proc := Start(mctx, ScopeProc, "proc:Test.0")
	if proc.ID() != 0 || ParentID(pctx) != mod.ID() {
		t.Fatalf("filtered span replaced parent: id %d, parent %d", proc.ID(), ParentID(pctx))
	}
	_, pass := Start(pctx, ScopePass, "specialize")
	proc.End("")
	pass.End("")
	mod.End("")
	drv.End("")

	var passBegin *Event
	events := r.Snapshot()
	for i := range events {
		if events[i].Kind == KindSpanBegin && events[i].Name == "specialize" {
			passBegin = &events[i]
		}
	}
	if passBegin == nil || passBegin.ParentID != mod.ID() {
		t.Fatalf("specialize begin = %+v, want parent %d", passBegin, mod.ID())
	}
	if len(events) != 6 {
		t.Fatalf("recorded %d events, want 6", len(events))
	}
}

func TestChildSpan(t *testing.T) {
	r := NewRingTracer(8, LevelDebug)
	pass := Begin(r, ScopePass, "specialize", 0)
	proc := pass.Child(ScopeProc, "proc:List.5")
	proc.WithExtra("layout", "i64").End("")
	pass.End("")

	events := r.Snapshot()
	if len(events) != 4 {
		t.Fatalf("recorded %d events, want 4", len(events))
	}
	if events[1].ParentID != pass.ID() || events[2].Extra["layout"] != "i64" {
		t.Fatalf("child events = %+v", events[1:3])
	}

	var none *Span
	if got := none.Child(ScopeProc, "proc:x"); got.ID() != 0 {
		t.Fatalf("child of nil span = %d", got.ID())
	}
	if Begin(Nop, ScopePass, "specialize", 0).Child(ScopeProc, "proc:x").End("") != 0 {
		t.Fatalf("disabled child measured time")
	}
}

type failingTracer struct {
	nopTracer
	err error
}

func (f failingTracer) Close() error { return f.err }

func TestMultiTracerJoinsCloseErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	ring := NewRingTracer(4, LevelPhase)
	m := NewMultiTracer(LevelPhase, failingTracer{err: errA}, ring, failingTracer{err: errB})
	m.Emit(&Event{Kind: KindPoint, Scope: ScopePass, Name: "emit"})
	if len(ring.Snapshot()) != 1 {
		t.Fatalf("ring missed forwarded event")
	}
	err := m.Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("Close() = %v, want both errors", err)
	}
	if m.Flush() != nil {
		t.Fatalf("Flush() failed")
	}
}

func TestHeartbeatStops(t *testing.T) {
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatalf("heartbeat on disabled tracer")
	}
	r := NewRingTracer(64, LevelError)
	h := StartHeartbeat(r, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for len(r.Snapshot()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()
	events := r.Snapshot()
	if len(events) == 0 {
		t.Fatalf("no heartbeat recorded")
	}
	if events[0].Kind != KindHeartbeat || !strings.HasPrefix(events[0].Detail, "#1 after ") {
		t.Fatalf("first event = %+v", events[0])
	}
	n := len(events)
	time.Sleep(5 * time.Millisecond)
	if len(r.Snapshot()) != n {
		t.Fatalf("heartbeat kept beating after Stop")
	}
}
