package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"monoc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "monoc",
	Short:         "Monomorphizing middle end for solved functional programs",
	Long:          `monoc specializes typed bundles into first-order procedures with explicit reference counting`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mode, err := cmd.Root().PersistentFlags().GetString("color")
		if err != nil {
			return err
		}
		if err := applyColorMode(mode); err != nil {
			return err
		}
		stop, err := setupProfiling(cmd)
		if err != nil {
			return err
		}
		stopProfiling = stop
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		stopProfiling()
	},
}

// stopProfiling is replaced by the pre-run hook once profilers start.
var stopProfiling = func() {}

func init() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(layoutsCmd)
	rootCmd.AddCommand(versionCmd)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to monoc.toml (default: search upwards from the bundle)")
	flags.Int("jobs", 0, "parallel modules (0 = from config or number of CPUs)")
	flags.String("trace", "", "write trace events to file (\"-\" for stderr)")
	flags.String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	flags.String("trace-mode", "stream", "trace storage mode (stream|ring|both)")
	flags.String("trace-format", "auto", "trace output format (auto|text|ndjson|chrome)")
	flags.Int("trace-ring-size", 4096, "events retained in ring mode")
	flags.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")
	flags.Bool("timings", false, "show timing information")
	flags.String("ui", "auto", "progress UI (auto|on|off)")
	flags.Bool("no-cache", false, "do not read or write the result cache")
	flags.String("color", "auto", "colorize output (auto|on|off)")
	flags.String("cpu-profile", "", "write a CPU profile to file")
	flags.String("mem-profile", "", "write a heap profile to file on exit")
	flags.String("runtime-trace", "", "write a Go runtime trace to file")
}

// main executes the root command; any error exits with status 1.
func main() {
	err := rootCmd.Execute()
	// PersistentPostRun is skipped when a command fails
	stopProfiling()
	if err != nil {
		color.New(color.FgRed, color.Bold).Fprint(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// isTerminal reports whether f is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
