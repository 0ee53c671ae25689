package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"monoc/internal/driver"
	"monoc/internal/hir"
	"monoc/internal/observ"
)

// CompileRequest configures the shared front half of every command.
type CompileRequest struct {
	BundlePath      string
	Jobs            int
	DefaultIntWidth uint8
	SkipRefcount    bool
	KeepIR          bool

	// NoCache disables the disk cache. CacheDir overrides its location.
	NoCache  bool
	CacheDir string
	Memory   *driver.ModuleCache

	Progress ProgressSink
	Timer    *observ.Timer
}

// CompileResult captures the specialized bundle and stage timings.
type CompileResult struct {
	Bundle  *hir.Bundle
	Driver  *driver.Result
	Modules []string
	Timings Timings
}

// Compile loads the bundle and specializes every module.
func Compile(ctx context.Context, req *CompileRequest) (CompileResult, error) {
	var result CompileResult
	if ctx == nil {
		ctx = context.Background()
	}
	if req == nil {
		return result, errors.New("missing compile request")
	}
	if req.BundlePath == "" {
		return result, errors.New("missing bundle path")
	}

	loadStart := time.Now()
	phase := req.Timer.Begin("load")
	emitStage(req.Progress, nil, StageLoad, StatusWorking, nil, 0)
	bundle, err := driver.LoadBundle(req.BundlePath)
	req.Timer.End(phase, req.BundlePath)
	if err != nil {
		emitStage(req.Progress, nil, StageLoad, StatusError, err, 0)
		return result, err
	}
	result.Bundle = bundle
	for _, m := range bundle.Modules {
		result.Modules = append(result.Modules, m.Name)
	}
	result.Timings.Set(StageLoad, time.Since(loadStart))
	emitQueued(req.Progress, result.Modules)

	opts := driver.Options{
		Jobs:            req.Jobs,
		DefaultIntWidth: req.DefaultIntWidth,
		SkipRefcount:    req.SkipRefcount,
		KeepIR:          req.KeepIR,
		Memory:          req.Memory,
		Timer:           req.Timer,
		Observer:        (&phaseObserver{sink: req.Progress}).OnPhase,
	}
	if !req.NoCache && !req.KeepIR {
		disk, err := openCache(req.CacheDir)
		if err != nil {
			return result, fmt.Errorf("open cache: %w", err)
		}
		opts.Disk = disk
	}

	specStart := time.Now()
	res, err := driver.Run(ctx, bundle, opts)
	result.Timings.Set(StageSpecialize, time.Since(specStart))
	if err != nil {
		emitStage(req.Progress, nil, StageSpecialize, StatusError, err, 0)
		return result, err
	}
	result.Driver = res
	return result, nil
}

func openCache(dir string) (*driver.DiskCache, error) {
	if dir != "" {
		return driver.NewDiskCache(dir)
	}
	return driver.OpenDiskCache("monoc")
}

// phaseObserver maps driver phase events to progress events.
type phaseObserver struct {
	sink ProgressSink
}

// OnPhase updates the progress UI based on driver phase events.
func (p *phaseObserver) OnPhase(ev driver.PhaseEvent) {
	if p == nil || p.sink == nil {
		return
	}
	stage := StageSpecialize
	switch ev.Phase {
	case driver.PhaseRefcount:
		stage = StageRefcount
	case driver.PhaseValidate:
		stage = StageValidate
	}
	switch ev.Status {
	case driver.PhaseStart:
		emit(p.sink, Event{Module: ev.Module, Stage: stage, Status: StatusWorking})
	case driver.PhaseCached:
		emit(p.sink, Event{Module: ev.Module, Stage: stage, Status: StatusCached, Elapsed: ev.Elapsed})
	case driver.PhaseFailed:
		emit(p.sink, Event{Module: ev.Module, Stage: stage, Status: StatusError, Err: ev.Err})
	case driver.PhaseEnd:
		if ev.Phase == driver.PhaseValidate {
			emit(p.sink, Event{Module: ev.Module, Stage: stage, Status: StatusDone, Elapsed: ev.Elapsed})
		}
	}
}
