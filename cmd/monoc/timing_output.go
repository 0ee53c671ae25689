package main

import (
	"fmt"
	"io"
	"time"

	"monoc/internal/buildpipeline"
)

func printStageTimings(out io.Writer, s *settings, timings buildpipeline.Timings) {
	if out == nil || !s.timings {
		return
	}
	for _, stage := range []buildpipeline.Stage{
		buildpipeline.StageLoad,
		buildpipeline.StageSpecialize,
		buildpipeline.StageEmit,
		buildpipeline.StageRun,
	} {
		if timings.Has(stage) {
			fmt.Fprintf(out, "%s %.1f ms\n", stage, toMillis(timings.Duration(stage)))
		}
	}
	if s.timer != nil {
		fmt.Fprint(out, s.timer.Summary())
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
