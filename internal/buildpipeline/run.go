package buildpipeline

import (
	"context"
	"errors"
	"time"

	"monoc/internal/eval"
)

// RunRequest configures interpretation of a bundle's entries.
type RunRequest struct {
	CompileRequest
	Eval eval.Options
}

// EntryRun is the outcome of one entry procedure.
type EntryRun struct {
	Module  string
	Outcome *eval.Outcome
	// Err is an interpreter fault: a leak, a double free, a step limit.
	Err error
	// Skipped is set for entries that take arguments.
	Skipped bool
}

// RunResult lists every entry run in bundle order.
type RunResult struct {
	CompileResult
	Entries []EntryRun
}

// Failed reports whether any entry crashed or faulted.
func (r *RunResult) Failed() bool {
	for _, e := range r.Entries {
		if e.Err != nil || (e.Outcome != nil && e.Outcome.Crash != nil) {
			return true
		}
	}
	return false
}

// Run compiles the bundle with its IR kept and evaluates every entry that
// takes no arguments.
func Run(ctx context.Context, req *RunRequest) (RunResult, error) {
	var result RunResult
	if req == nil {
		return result, errors.New("missing run request")
	}
	creq := req.CompileRequest
	creq.KeepIR = true
	compileRes, err := Compile(ctx, &creq)
	result.CompileResult = compileRes
	if err != nil {
		return result, err
	}
	if compileRes.Driver.HasErrors() {
		emitStage(req.Progress, compileRes.Modules, StageRun, StatusError, ErrDiagnostics, 0)
		return result, ErrDiagnostics
	}

	runStart := time.Now()
	phase := req.Timer.Begin("run")
	for _, m := range compileRes.Driver.Modules {
		emit(req.Progress, Event{Module: m.Name, Stage: StageRun, Status: StatusWorking})
		status := StatusDone
		layouts := m.Mono.Resolver.Layouts
		interns := m.Mono.Program.Interns
		for _, k := range m.Mono.Entries {
			p := m.Mono.Procs[k]
			if len(p.Params) > 0 {
				result.Entries = append(result.Entries, EntryRun{Module: m.Name, Outcome: &eval.Outcome{Proc: p.Name.String(interns)}, Skipped: true})
				continue
			}
			out, err := eval.Run(ctx, m.IR, layouts, interns, p.Name, req.Eval)
			if err != nil || out.Crash != nil {
				status = StatusError
			}
			result.Entries = append(result.Entries, EntryRun{Module: m.Name, Outcome: out, Err: err})
			if ctx.Err() != nil {
				req.Timer.End(phase, "cancelled")
				return result, ctx.Err()
			}
		}
		emit(req.Progress, Event{Module: m.Name, Stage: StageRun, Status: status})
	}
	req.Timer.End(phase, "")
	result.Timings.Set(StageRun, time.Since(runStart))
	return result, nil
}
