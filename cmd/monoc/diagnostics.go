package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"monoc/internal/diagfmt"
	"monoc/internal/driver"
	"monoc/internal/version"
)

func diagnosticUnits(res *driver.Result) []diagfmt.Unit {
	units := make([]diagfmt.Unit, 0, len(res.Modules))
	for _, m := range res.Modules {
		if len(m.Diagnostics) == 0 {
			continue
		}
		units = append(units, diagfmt.Unit{Module: m.Name, Files: m.Files, Diagnostics: m.Diagnostics})
	}
	return units
}

// printDiagnostics writes every module's diagnostics and returns the
// number of errors and warnings.
func printDiagnostics(out io.Writer, res *driver.Result) (errs, warns int) {
	return diagfmt.Pretty(out, diagnosticUnits(res), diagfmt.PrettyOpts{
		Color:     !color.NoColor,
		ShowNotes: true,
	})
}

// writeDiagnostics renders diagnostics in the requested machine format.
func writeDiagnostics(out io.Writer, format string, res *driver.Result) error {
	units := diagnosticUnits(res)
	switch format {
	case "json":
		return diagfmt.JSON(out, units, diagfmt.JSONOpts{IncludeNotes: true})
	case "sarif":
		return diagfmt.Sarif(out, units, diagfmt.SarifRunMeta{
			ToolName:       "monoc",
			ToolVersion:    strings.TrimSpace(version.Version),
			InvocationArgs: os.Args[1:],
		})
	}
	return fmt.Errorf("unknown diagnostics format %q", format)
}

func countDiagnostics(res *driver.Result) (errs, warns int) {
	out := diagfmt.BuildDiagnosticsOutput(diagnosticUnits(res), diagfmt.JSONOpts{})
	return out.Errors, out.Warnings
}

func summarize(out io.Writer, res *driver.Result, errs, warns int) {
	procs := 0
	for _, m := range res.Modules {
		procs += m.Procs
	}
	fmt.Fprintf(out, "%d modules, %d procedures (%d cached), %d errors, %d warnings\n",
		len(res.Modules), procs, res.CacheHits, errs, warns)
}
