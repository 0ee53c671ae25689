package driver_test

import (
	"context"
	"sync"
	"testing"

	"monoc/internal/driver"
	"monoc/internal/hir"
	"monoc/internal/testkit"
)

func writeBundle(t *testing.T) string {
	t.Helper()
	return testkit.WriteBundle(t, "", "app.mpk",
		testkit.AddModule("Alpha", 1, 2),
		testkit.AddModule("Beta", 3, 4),
		testkit.AddModule("Gamma", 5, 6),
	)
}

func load(t *testing.T, path string) *hir.Bundle {
	t.Helper()
	b, err := driver.LoadBundle(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return b
}

func TestRunKeepsBundleOrder(t *testing.T) {
	path := writeBundle(t)
	res, err := driver.Run(context.Background(), load(t, path), driver.Options{Jobs: 3})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"Alpha", "Beta", "Gamma"}
	if len(res.Modules) != len(want) {
		t.Fatalf("got %d modules", len(res.Modules))
	}
	for i, m := range res.Modules {
		if m.Name != want[i] || m.Index != i {
			t.Fatalf("module %d = %s/%d, want %s", i, m.Name, m.Index, want[i])
		}
		if m.Text == "" || m.Procs == 0 || m.Cached {
			t.Fatalf("module %s: procs=%d cached=%v text=%q", m.Name, m.Procs, m.Cached, m.Text)
		}
		if m.HasErrors() {
			t.Fatalf("module %s has errors: %v", m.Name, m.Diagnostics)
		}
	}
}

func TestRunIsDeterministicAcrossJobCounts(t *testing.T) {
	path := writeBundle(t)
	serial, err := driver.Run(context.Background(), load(t, path), driver.Options{Jobs: 1})
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := driver.Run(context.Background(), load(t, path), driver.Options{Jobs: 8})
	if err != nil {
		t.Fatal(err)
	}
	if serial.Text() != parallel.Text() {
		t.Fatalf("serial:\n%s\nparallel:\n%s", serial.Text(), parallel.Text())
	}
}

func TestDiskCacheServesSecondRun(t *testing.T) {
	path := writeBundle(t)
	disk, err := driver.NewDiskCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	first, err := driver.Run(context.Background(), load(t, path), driver.Options{Disk: disk})
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHits != 0 {
		t.Fatalf("cold run hits = %d", first.CacheHits)
	}
	second, err := driver.Run(context.Background(), load(t, path), driver.Options{Disk: disk})
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheHits != 3 {
		t.Fatalf("warm run hits = %d, want 3", second.CacheHits)
	}
	if first.Text() != second.Text() {
		t.Fatalf("cached text differs:\n%s\nvs\n%s", first.Text(), second.Text())
	}

	// another default width is another key
	third, err := driver.Run(context.Background(), load(t, path), driver.Options{Disk: disk, DefaultIntWidth: 32})
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheHits != 0 {
		t.Fatalf("hits after option change = %d", third.CacheHits)
	}

	if err := disk.DropAll(); err != nil {
		t.Fatal(err)
	}
	fourth, err := driver.Run(context.Background(), load(t, path), driver.Options{Disk: disk})
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheHits != 0 {
		t.Fatalf("hits after DropAll = %d", fourth.CacheHits)
	}
}

func TestMemoryCacheAndKeepIR(t *testing.T) {
	path := writeBundle(t)
	mem := driver.NewModuleCache(4)
	if _, err := driver.Run(context.Background(), load(t, path), driver.Options{Memory: mem}); err != nil {
		t.Fatal(err)
	}
	warm, err := driver.Run(context.Background(), load(t, path), driver.Options{Memory: mem})
	if err != nil {
		t.Fatal(err)
	}
	if warm.CacheHits != 3 || warm.Modules[0].Mono != nil {
		t.Fatalf("hits = %d", warm.CacheHits)
	}
	full, err := driver.Run(context.Background(), load(t, path), driver.Options{Memory: mem, KeepIR: true})
	if err != nil {
		t.Fatal(err)
	}
	if full.CacheHits != 0 || len(full.Modules[1].IR) == 0 {
		t.Fatalf("KeepIR run: hits=%d ir=%d", full.CacheHits, len(full.Modules[1].IR))
	}
}

func TestObserverSeesEveryPhase(t *testing.T) {
	path := writeBundle(t)
	var (
		mu   sync.Mutex
		ends = map[string]int{}
	)
	obs := func(ev driver.PhaseEvent) {
		if ev.Status != driver.PhaseEnd {
			return
		}
		mu.Lock()
		ends[ev.Module]++
		mu.Unlock()
	}
	if _, err := driver.Run(context.Background(), load(t, path), driver.Options{Observer: obs}); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		if ends[name] != 3 {
			t.Fatalf("%s: %d phase ends, want 3", name, ends[name])
		}
	}
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	path := writeBundle(t)
	if _, err := driver.Run(ctx, load(t, path), driver.Options{}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestLayoutListing(t *testing.T) {
	path := writeBundle(t)
	res, err := driver.Run(context.Background(), load(t, path), driver.Options{KeepIR: true})
	if err != nil {
		t.Fatal(err)
	}
	defs := res.Modules[0].DefinitionLayouts()
	if len(defs) != 1 || defs[0].Layout != "I64" || defs[0].Err != "" {
		t.Fatalf("definition layouts = %+v", defs)
	}
	if procs := res.Modules[0].ProcLayouts(); len(procs) == 0 {
		t.Fatal("no specializations listed")
	}
}
