// Package driver specializes the modules of a bundle in parallel.
//
// Every module owns its interns, type interner and layout interner, so
// workers share nothing but the caches. Results come back in bundle order
// whatever order the workers finish in.
package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"monoc/internal/diag"
	"monoc/internal/hir"
	"monoc/internal/ir"
	"monoc/internal/mono"
	"monoc/internal/observ"
	"monoc/internal/refcount"
	"monoc/internal/source"
	"monoc/internal/trace"
)

// Options configures Run.
type Options struct {
	Jobs            int
	DefaultIntWidth uint8
	SkipRefcount    bool
	// KeepIR keeps the procedures of every module. Cached payloads only
	// hold text, so KeepIR bypasses the caches.
	KeepIR bool

	Disk     *DiskCache
	Memory   *ModuleCache
	Timer    *observ.Timer
	Observer PhaseObserver
}

// ModuleResult is the output of one module.
type ModuleResult struct {
	Index int
	Name  string
	Files *source.FileSet

	// Mono and IR are nil for cache hits.
	Mono *mono.Result
	IR   []*ir.Proc

	Text        string
	Procs       int
	Stats       refcount.Stats
	Diagnostics []diag.Diagnostic
	Cached      bool
	Elapsed     time.Duration
}

// HasErrors reports whether any diagnostic of the module is an error.
func (m *ModuleResult) HasErrors() bool {
	for _, d := range m.Diagnostics {
		if d.Severity >= diag.SevError {
			return true
		}
	}
	return false
}

// Result holds every module in bundle order.
type Result struct {
	Modules   []*ModuleResult
	CacheHits int
}

// HasErrors reports whether any module has error diagnostics.
func (r *Result) HasErrors() bool {
	for _, m := range r.Modules {
		if m.HasErrors() {
			return true
		}
	}
	return false
}

// Text concatenates the canonical text of every module.
func (r *Result) Text() string {
	var sb strings.Builder
	for _, m := range r.Modules {
		sb.WriteString(m.Text)
	}
	return sb.String()
}

// LoadBundle reads a msgpack bundle.
func LoadBundle(path string) (*hir.Bundle, error) {
	b, err := hir.ReadBundle(path)
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", path, err)
	}
	if len(b.Modules) == 0 {
		return nil, fmt.Errorf("load bundle %s: no modules", path)
	}
	return b, nil
}

// Run specializes every module of b. Problems in the input end up in the
// module diagnostics; the error is for cancellation and internal defects.
func Run(ctx context.Context, b *hir.Bundle, opts Options) (*Result, error) {
	if b == nil || len(b.Modules) == 0 {
		return &Result{}, nil
	}
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "driver")
	phase := opts.Timer.Begin("specialize")

	// indices are unique per goroutine, no mutex needed
	results := make([]*ModuleResult, len(b.Modules))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(b.Modules)))
	for i, p := range b.Modules {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := runModule(gctx, i, p, &opts)
			if err != nil {
				opts.Observer.emit(PhaseEvent{Module: p.Name, Phase: PhaseSpecialize, Status: PhaseFailed, Err: err})
				return fmt.Errorf("module %s: %w", p.Name, err)
			}
			results[i] = m
			return nil
		})
	}
	err := g.Wait()
	opts.Timer.End(phase, strconv.Itoa(len(b.Modules))+" modules")
	if err != nil {
		span.End("failed")
		return nil, err
	}

	res := &Result{Modules: results}
	for _, m := range results {
		if m.Cached {
			res.CacheHits++
		}
		opts.Timer.Count("procs", int64(m.Procs))
	}
	opts.Timer.Count("cache hits", int64(res.CacheHits))
	span.WithExtra("modules", strconv.Itoa(len(results))).
		WithExtra("cached", strconv.Itoa(res.CacheHits)).
		End("")
	return res, nil
}

func runModule(ctx context.Context, idx int, p *hir.Program, opts *Options) (*ModuleResult, error) {
	start := time.Now()
	ctx, span := trace.Start(ctx, trace.ScopeModule, "module:"+p.Name)

	useCache := !opts.KeepIR && (opts.Disk != nil || opts.Memory != nil)
	var key Digest
	if useCache {
		var err error
		if key, err = cacheKey(p, opts); err != nil {
			span.End("failed")
			return nil, err
		}
		if m, ok := lookupCache(idx, p, key, opts); ok {
			m.Elapsed = time.Since(start)
			opts.Observer.emit(PhaseEvent{Module: p.Name, Phase: PhaseSpecialize, Status: PhaseCached, Elapsed: m.Elapsed})
			span.End("cached")
			return m, nil
		}
	}

	m, err := specializeModule(ctx, idx, p, opts)
	if err != nil {
		span.End("failed")
		return nil, err
	}
	m.Elapsed = time.Since(start)
	if useCache {
		payload := payloadOf(m)
		opts.Memory.Put(p.Name, key, payload)
		if err := opts.Disk.Put(key, payload); err != nil {
			// a cache that cannot be written only costs time
			m.Diagnostics = append(m.Diagnostics, diag.New(diag.SevWarning, diag.IOCacheCorrupt, source.Span{},
				fmt.Sprintf("cannot write cache entry: %v", err)))
		}
	}
	span.WithExtra("procs", strconv.Itoa(m.Procs)).End("")
	return m, nil
}

func lookupCache(idx int, p *hir.Program, key Digest, opts *Options) (*ModuleResult, bool) {
	payload, ok := opts.Memory.Get(p.Name, key)
	if !ok {
		var disk DiskPayload
		hit, err := opts.Disk.Get(key, &disk)
		if err != nil || !hit {
			return nil, false
		}
		payload = &disk
		opts.Memory.Put(p.Name, key, payload)
	}
	files := source.NewFileSet()
	for _, path := range payload.Files {
		files.Add(path)
	}
	return &ModuleResult{
		Index:       idx,
		Name:        p.Name,
		Files:       files,
		Text:        payload.Text,
		Procs:       payload.Procs,
		Stats:       payload.Stats,
		Diagnostics: payload.Diagnostics,
		Cached:      true,
	}, true
}

func specializeModule(ctx context.Context, idx int, p *hir.Program, opts *Options) (*ModuleResult, error) {
	obs := opts.Observer
	began := time.Now()
	obs.emit(PhaseEvent{Module: p.Name, Phase: PhaseSpecialize, Status: PhaseStart})
	res, err := mono.Specialize(ctx, p, mono.Options{DefaultIntWidth: opts.DefaultIntWidth})
	if err != nil {
		return nil, err
	}
	obs.emit(PhaseEvent{Module: p.Name, Phase: PhaseSpecialize, Status: PhaseEnd, Elapsed: time.Since(began)})

	m := &ModuleResult{
		Index:       idx,
		Name:        p.Name,
		Files:       p.Files,
		Mono:        res,
		Diagnostics: res.Diagnostics(),
	}
	if len(res.Entries) == 0 && len(p.Exposed) == 0 {
		m.Diagnostics = append(m.Diagnostics, diag.NewWarning(diag.ProjNoEntry, source.Span{},
			fmt.Sprintf("module %s exposes nothing; no procedures were produced", p.Name)))
	}
	procs := res.Reachable()

	if !opts.SkipRefcount {
		began = time.Now()
		obs.emit(PhaseEvent{Module: p.Name, Phase: PhaseRefcount, Status: PhaseStart})
		st, err := refcount.Run(procs, res.Resolver.Layouts)
		if err != nil {
			return nil, fmt.Errorf("refcount: %w", err)
		}
		m.Stats = st
		obs.emit(PhaseEvent{Module: p.Name, Phase: PhaseRefcount, Status: PhaseEnd, Elapsed: time.Since(began)})
	}

	began = time.Now()
	obs.emit(PhaseEvent{Module: p.Name, Phase: PhaseValidate, Status: PhaseStart})
	if err := ir.Validate(procs, p.Interns); err != nil {
		return nil, errors.Join(errors.New("invalid IR produced"), err)
	}
	obs.emit(PhaseEvent{Module: p.Name, Phase: PhaseValidate, Status: PhaseEnd, Elapsed: time.Since(began)})

	m.Text = ir.NewPrinter(p.Interns).Program(procs)
	m.Procs = len(procs)
	if opts.KeepIR {
		m.IR = procs
	}
	return m, nil
}
