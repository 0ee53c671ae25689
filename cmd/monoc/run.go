package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"monoc/internal/buildpipeline"
	"monoc/internal/eval"
)

var runCmd = &cobra.Command{
	Use:   "run <bundle.mpk>",
	Short: "Evaluate each module's entries and check reference counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().Int("max-steps", eval.DefaultMaxSteps, "abort an entry after this many statements")
	runCmd.Flags().Int("max-depth", eval.DefaultMaxDepth, "maximum call depth")
	runCmd.Flags().Bool("heap-stats", false, "print allocation counts per entry")
}

func runRun(cmd *cobra.Command, args []string) error {
	bundlePath := args[0]
	s, err := loadSettings(cmd, bundlePath)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, s.cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	maxSteps, err := cmd.Flags().GetInt("max-steps")
	if err != nil {
		return fmt.Errorf("failed to get max-steps flag: %w", err)
	}
	maxDepth, err := cmd.Flags().GetInt("max-depth")
	if err != nil {
		return fmt.Errorf("failed to get max-depth flag: %w", err)
	}
	heapStats, err := cmd.Flags().GetBool("heap-stats")
	if err != nil {
		return fmt.Errorf("failed to get heap-stats flag: %w", err)
	}

	req := &buildpipeline.RunRequest{
		CompileRequest: s.compileRequest(bundlePath),
		Eval:           eval.Options{MaxSteps: maxSteps, MaxDepth: maxDepth},
	}
	var res buildpipeline.RunResult
	err = withProgress(cmd, s, "run "+bundlePath, func(sink buildpipeline.ProgressSink) error {
		req.Progress = sink
		var rerr error
		res, rerr = buildpipeline.Run(cmd.Context(), req)
		return rerr
	})
	if res.Driver != nil {
		errs, warns := printDiagnostics(cmd.ErrOrStderr(), res.Driver)
		if errors.Is(err, buildpipeline.ErrDiagnostics) {
			return fmt.Errorf("%d errors, %d warnings", errs, warns)
		}
	}
	if err != nil {
		return err
	}

	for _, e := range res.Entries {
		printEntry(cmd.OutOrStdout(), e, heapStats)
	}
	printStageTimings(cmd.ErrOrStderr(), s, res.Timings)
	if res.Failed() {
		return errors.New("run failed")
	}
	return nil
}

var (
	entryStyle = color.New(color.Bold)
	crashStyle = color.New(color.FgRed, color.Bold)
	skipStyle  = color.New(color.FgYellow)
)

func printEntry(out io.Writer, e buildpipeline.EntryRun, heapStats bool) {
	entryStyle.Fprintf(out, "%s", e.Outcome.Proc)
	switch {
	case e.Skipped:
		skipStyle.Fprintln(out, " skipped: entry takes arguments")
		return
	case e.Outcome.Crash != nil:
		crashStyle.Fprintf(out, " crashed: %s\n", e.Outcome.Crash.Message)
		if len(e.Outcome.Crash.Backtrace) > 0 {
			fmt.Fprintf(out, "  backtrace: %s\n", strings.Join(e.Outcome.Crash.Backtrace, " <- "))
		}
	default:
		fmt.Fprintf(out, " = %s\n", e.Outcome.Value)
	}
	if e.Err != nil {
		crashStyle.Fprintf(out, "  %v\n", e.Err)
	}
	if heapStats {
		h := e.Outcome.Heap
		fmt.Fprintf(out, "  steps %d, allocs %d, frees %d, peak %d\n", e.Outcome.Steps, h.Allocs, h.Frees, h.Peak)
	}
}
