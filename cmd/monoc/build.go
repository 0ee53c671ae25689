package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"monoc/internal/buildpipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build <bundle.mpk>",
	Short: "Specialize a bundle and print its procedures",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().StringP("out", "o", "", "write the IR to this file instead of stdout")
	buildCmd.Flags().Bool("allow-errors", false, "emit IR even when diagnostics contain errors")
	buildCmd.Flags().Bool("no-refcount", false, "skip reference count insertion")
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	allowErrors, err := cmd.Flags().GetBool("allow-errors")
	if err != nil {
		return fmt.Errorf("failed to get allow-errors flag: %w", err)
	}
	noRefcount, err := cmd.Flags().GetBool("no-refcount")
	if err != nil {
		return fmt.Errorf("failed to get no-refcount flag: %w", err)
	}

	req := &buildpipeline.BuildRequest{
		CompileRequest: s.compileRequest(bundlePath),
		OutputPath:     outPath,
		AllowErrors:    allowErrors,
	}
	req.SkipRefcount = noRefcount
	if outPath == "" {
		req.Output = cmd.OutOrStdout()
	}

	var res buildpipeline.BuildResult
	err = withProgress(cmd, s, "build "+bundlePath, func(sink buildpipeline.ProgressSink) error {
		req.Progress = sink
		var berr error
		res, berr = buildpipeline.Build(cmd.Context(), req)
		return berr
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
	if outPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", res.OutputPath, res.Bytes)
	}
	printStageTimings(cmd.ErrOrStderr(), s, res.Timings)
	return nil
}
