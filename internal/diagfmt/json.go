package diagfmt

import (
	"encoding/json"
	"io"

	"monoc/internal/diag"
	"monoc/internal/source"
)

// LocationJSON is a byte range inside a source file.
type LocationJSON struct {
	File      string `json:"file"`
	StartByte uint32 `json:"start_byte"`
	EndByte   uint32 `json:"end_byte"`
}

// NoteJSON is a secondary note attached to a diagnostic.
type NoteJSON struct {
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
}

// DiagnosticJSON is a single diagnostic in JSON form.
type DiagnosticJSON struct {
	Module   string        `json:"module"`
	Severity string        `json:"severity"`
	Code     string        `json:"code"`
	Title    string        `json:"title"`
	Message  string        `json:"message"`
	Location *LocationJSON `json:"location,omitempty"`
	Notes    []NoteJSON    `json:"notes,omitempty"`
}

// DiagnosticsOutput is the root of the JSON document.
type DiagnosticsOutput struct {
	Diagnostics []DiagnosticJSON `json:"diagnostics"`
	Count       int              `json:"count"`
	Errors      int              `json:"errors"`
	Warnings    int              `json:"warnings"`
}

func makeLocation(sp source.Span, fs *source.FileSet, mode PathMode) *LocationJSON {
	if !hasLocation(sp) {
		return nil
	}
	return &LocationJSON{
		File:      formatPath(fs.Path(sp.File), mode),
		StartByte: sp.Start,
		EndByte:   sp.End,
	}
}

// BuildDiagnosticsOutput converts units into the JSON document without
// encoding it. Units keep their order; diagnostics keep bag order.
func BuildDiagnosticsOutput(units []Unit, opts JSONOpts) DiagnosticsOutput {
	out := DiagnosticsOutput{Diagnostics: make([]DiagnosticJSON, 0)}
	for _, u := range units {
		for i := range u.Diagnostics {
			d := &u.Diagnostics[i]
			switch d.Severity {
			case diag.SevError:
				out.Errors++
			case diag.SevWarning:
				out.Warnings++
			}
			if opts.Max > 0 && len(out.Diagnostics) >= opts.Max {
				continue
			}
			dj := DiagnosticJSON{
				Module:   u.Module,
				Severity: d.Severity.String(),
				Code:     d.Code.ID(),
				Title:    d.Code.Title(),
				Message:  d.Message,
				Location: makeLocation(d.Primary, u.Files, opts.PathMode),
			}
			if opts.IncludeNotes {
				for _, n := range d.Notes {
					dj.Notes = append(dj.Notes, NoteJSON{
						Message:  n.Msg,
						Location: makeLocation(n.Span, u.Files, opts.PathMode),
					})
				}
			}
			out.Diagnostics = append(out.Diagnostics, dj)
		}
	}
	out.Count = len(out.Diagnostics)
	return out
}

// JSON writes units as an indented JSON document.
func JSON(w io.Writer, units []Unit, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildDiagnosticsOutput(units, opts))
}
