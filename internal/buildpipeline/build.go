// Package buildpipeline orchestrates the commands: load a bundle,
// specialize it, then emit text or run it.
package buildpipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BuildRequest configures output generation.
type BuildRequest struct {
	CompileRequest
	// OutputPath receives the canonical text; Output is used when it is
	// empty.
	OutputPath string
	Output     io.Writer
	// AllowErrors emits text even when a module has error diagnostics.
	AllowErrors bool
}

// BuildResult captures build artefacts and timings.
type BuildResult struct {
	CompileResult
	OutputPath string
	Bytes      int
}

// ErrDiagnostics is returned when the bundle has error diagnostics.
var ErrDiagnostics = errors.New("bundle has errors")

// Build compiles the bundle and writes its canonical text.
func Build(ctx context.Context, req *BuildRequest) (BuildResult, error) {
	var result BuildResult
	if req == nil {
		return result, errors.New("missing build request")
	}
	compileRes, err := Compile(ctx, &req.CompileRequest)
	result.CompileResult = compileRes
	if err != nil {
		return result, err
	}
	if compileRes.Driver.HasErrors() && !req.AllowErrors {
		emitStage(req.Progress, compileRes.Modules, StageEmit, StatusError, ErrDiagnostics, 0)
		return result, ErrDiagnostics
	}

	emitStart := time.Now()
	phase := req.Timer.Begin("emit")
	emitStage(req.Progress, nil, StageEmit, StatusWorking, nil, 0)
	text := compileRes.Driver.Text()
	if req.OutputPath != "" {
		result.OutputPath = req.OutputPath
		err = writeOutput(req.OutputPath, text)
	} else if req.Output != nil {
		_, err = io.WriteString(req.Output, text)
	}
	req.Timer.End(phase, "")
	if err != nil {
		emitStage(req.Progress, nil, StageEmit, StatusError, err, 0)
		return result, err
	}
	result.Bytes = len(text)
	result.Timings.Set(StageEmit, time.Since(emitStart))
	emitStage(req.Progress, nil, StageEmit, StatusDone, nil, result.Timings.Duration(StageEmit))
	return result, nil
}

func writeOutput(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("failed to write build output %q: %w", path, err)
	}
	return nil
}
