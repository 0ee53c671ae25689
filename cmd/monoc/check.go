package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"monoc/internal/buildpipeline"
)

var checkCmd = &cobra.Command{
	Use:   "check <bundle.mpk>",
	Short: "Report diagnostics only; exit status 1 on errors",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().String("format", "pretty", "diagnostics format (pretty|json|sarif)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	bundlePath := args[0]
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "pretty", "json", "sarif":
	default:
		return fmt.Errorf("invalid --format value %q (expected pretty|json|sarif)", format)
	}
	s, err := loadSettings(cmd, bundlePath)
	if err != nil {
		return err
	}
	cleanup, err := setupTracing(cmd, s.cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	req := s.compileRequest(bundlePath)
	var res buildpipeline.CompileResult
	err = withProgress(cmd, s, "check "+bundlePath, func(sink buildpipeline.ProgressSink) error {
		req.Progress = sink
		var cerr error
		res, cerr = buildpipeline.Compile(cmd.Context(), &req)
		return cerr
	})
	if err != nil {
		return err
	}
	var errs, warns int
	if format == "pretty" {
		errs, warns = printDiagnostics(cmd.ErrOrStderr(), res.Driver)
		summarize(cmd.OutOrStdout(), res.Driver, errs, warns)
	} else {
		if err := writeDiagnostics(cmd.OutOrStdout(), format, res.Driver); err != nil {
			return err
		}
		errs, warns = countDiagnostics(res.Driver)
	}
	printStageTimings(cmd.ErrOrStderr(), s, res.Timings)
	if errs > 0 {
		return fmt.Errorf("check failed with %d errors", errs)
	}
	return nil
}
