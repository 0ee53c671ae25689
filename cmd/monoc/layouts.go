package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"monoc/internal/buildpipeline"
	"monoc/internal/driver"
)

var layoutsCmd = &cobra.Command{
	Use:   "layouts <bundle.mpk>",
	Short: "Print the resolved layout of every definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runLayouts,
}

func init() {
	layoutsCmd.Flags().Bool("procs", false, "also list the layout of every specialization")
}

func runLayouts(cmd *cobra.Command, args []string) error {
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
	withProcs, err := cmd.Flags().GetBool("procs")
	if err != nil {
		return fmt.Errorf("failed to get procs flag: %w", err)
	}

	req := s.compileRequest(bundlePath)
	req.KeepIR = true
	res, err := buildpipeline.Compile(cmd.Context(), &req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	header := color.New(color.Bold)
	for _, m := range res.Driver.Modules {
		header.Fprintf(out, "module %s\n", m.Name)
		printLayouts(out, m.DefinitionLayouts())
		if withProcs {
			fmt.Fprintln(out, "  specializations:")
			printLayouts(out, m.ProcLayouts())
		}
	}
	printStageTimings(cmd.ErrOrStderr(), s, res.Timings)
	return nil
}

var polyStyle = color.New(color.Faint)

func printLayouts(out io.Writer, entries []driver.LayoutEntry) {
	for _, e := range entries {
		if e.Err != "" {
			fmt.Fprintf(out, "  %s: ", e.Name)
			polyStyle.Fprintln(out, e.Err)
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", e.Name, e.Layout)
	}
}
