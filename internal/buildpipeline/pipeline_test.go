package buildpipeline_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"monoc/internal/buildpipeline"
	"monoc/internal/hir"
	"monoc/internal/testkit"
)

func bundlePath(t *testing.T, modules ...*hir.Program) string {
	t.Helper()
	return testkit.WriteBundle(t, "", "app.mpk", modules...)
}

type recorder struct {
	mu     sync.Mutex
	events []buildpipeline.Event
}

func (r *recorder) OnEvent(ev buildpipeline.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) count(module string, stage buildpipeline.Stage, status buildpipeline.Status) int {
	n := 0
	for _, ev := range r.events {
		if ev.Module == module && ev.Stage == stage && ev.Status == status {
			n++
		}
	}
	return n
}

func TestBuildWritesText(t *testing.T) {
	path := bundlePath(t, testkit.AddModule("Alpha", 1, 2), testkit.AddModule("Beta", 3, 4))
	var out bytes.Buffer
	rec := &recorder{}
	res, err := buildpipeline.Build(context.Background(), &buildpipeline.BuildRequest{
		CompileRequest: buildpipeline.CompileRequest{BundlePath: path, NoCache: true, Progress: rec},
		Output:         &out,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out.String() != res.Driver.Text() || res.Bytes != out.Len() {
		t.Fatalf("output mismatch:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "procedure Alpha.") || !strings.Contains(out.String(), "procedure Beta.") {
		t.Fatalf("missing procedures:\n%s", out.String())
	}
	for _, m := range []string{"Alpha", "Beta"} {
		if rec.count(m, buildpipeline.StageLoad, buildpipeline.StatusQueued) != 1 {
			t.Fatalf("%s was not queued", m)
		}
		if rec.count(m, buildpipeline.StageValidate, buildpipeline.StatusDone) != 1 {
			t.Fatalf("%s did not finish", m)
		}
	}
	if !res.Timings.Has(buildpipeline.StageEmit) {
		t.Fatal("emit stage was not timed")
	}
}

func TestBuildWritesOutputFile(t *testing.T) {
	path := bundlePath(t, testkit.AddModule("Alpha", 1, 2))
	outPath := filepath.Join(t.TempDir(), "out", "alpha.ir")
	res, err := buildpipeline.Build(context.Background(), &buildpipeline.BuildRequest{
		CompileRequest: buildpipeline.CompileRequest{BundlePath: path, CacheDir: t.TempDir()},
		OutputPath:     outPath,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.OutputPath != outPath || res.Bytes == 0 {
		t.Fatalf("result = %+v", res)
	}
}

func TestBuildReusesCache(t *testing.T) {
	path := bundlePath(t, testkit.AddModule("Alpha", 1, 2), testkit.AddModule("Beta", 3, 4))
	cacheDir := t.TempDir()
	req := func(sink buildpipeline.ProgressSink) *buildpipeline.BuildRequest {
		return &buildpipeline.BuildRequest{
			CompileRequest: buildpipeline.CompileRequest{BundlePath: path, CacheDir: cacheDir, Progress: sink},
			Output:         &bytes.Buffer{},
		}
	}
	if _, err := buildpipeline.Build(context.Background(), req(nil)); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	res, err := buildpipeline.Build(context.Background(), req(rec))
	if err != nil {
		t.Fatal(err)
	}
	if res.Driver.CacheHits != 2 {
		t.Fatalf("hits = %d, want 2", res.Driver.CacheHits)
	}
	if rec.count("Alpha", buildpipeline.StageSpecialize, buildpipeline.StatusCached) != 1 {
		t.Fatal("cache hit was not reported")
	}
}

func TestBuildMissingBundle(t *testing.T) {
	_, err := buildpipeline.Build(context.Background(), &buildpipeline.BuildRequest{
		CompileRequest: buildpipeline.CompileRequest{BundlePath: filepath.Join(t.TempDir(), "none.mpk")},
	})
	if err == nil || !strings.Contains(err.Error(), "load bundle") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunEvaluatesEntries(t *testing.T) {
	path := bundlePath(t, testkit.AddModule("Alpha", 1, 2), testkit.AddModule("Beta", 30, 12))
	res, err := buildpipeline.Run(context.Background(), &buildpipeline.RunRequest{
		CompileRequest: buildpipeline.CompileRequest{BundlePath: path, Jobs: 2},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := map[string]string{"Alpha": "3", "Beta": "42"}
	if len(res.Entries) != 2 {
		t.Fatalf("entries = %d", len(res.Entries))
	}
	for _, e := range res.Entries {
		if e.Err != nil || e.Outcome.Crash != nil {
			t.Fatalf("%s failed: %v %v", e.Module, e.Err, e.Outcome.Crash)
		}
		if e.Outcome.Value != want[e.Module] {
			t.Fatalf("%s = %q, want %q", e.Module, e.Outcome.Value, want[e.Module])
		}
	}
	if res.Failed() {
		t.Fatal("run reported failure")
	}
}

func TestRunReportsCrash(t *testing.T) {
	path := bundlePath(t, testkit.AddModule("Alpha", 1<<62, 1<<62))
	res, err := buildpipeline.Run(context.Background(), &buildpipeline.RunRequest{
		CompileRequest: buildpipeline.CompileRequest{BundlePath: path},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Failed() || res.Entries[0].Outcome.Crash == nil {
		t.Fatalf("expected crash, got %+v", res.Entries)
	}
	if got := res.Entries[0].Outcome.Crash.Message; got != "integer addition overflowed!" {
		t.Fatalf("crash = %q", got)
	}
}

func TestDiagnosticsStopBuild(t *testing.T) {
	p := testkit.AddModule("Alpha", 1, 2)
	p.Expose(p.Interns.Insert(p.Home, "missing"))
	path := bundlePath(t, p)
	_, err := buildpipeline.Build(context.Background(), &buildpipeline.BuildRequest{
		CompileRequest: buildpipeline.CompileRequest{BundlePath: path, NoCache: true},
		Output:         &bytes.Buffer{},
	})
	if !errors.Is(err, buildpipeline.ErrDiagnostics) {
		t.Fatalf("err = %v", err)
	}
}
