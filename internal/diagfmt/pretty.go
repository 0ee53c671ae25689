package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"monoc/internal/diag"
)

type palette struct {
	err, warn, info, loc, note *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		err:  color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow, color.Bold),
		info: color.New(color.FgCyan),
		loc:  color.New(color.FgBlue),
		note: color.New(color.Faint),
	}
	for _, c := range []*color.Color{p.err, p.warn, p.info, p.loc, p.note} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Pretty writes human-readable diagnostics and returns how many errors
// and warnings it printed.
func Pretty(w io.Writer, units []Unit, opts PrettyOpts) (errs, warns int) {
	p := newPalette(opts.Color)
	for _, u := range units {
		for i := range u.Diagnostics {
			d := &u.Diagnostics[i]
			switch d.Severity {
			case diag.SevError:
				errs++
				p.err.Fprint(w, "error")
			case diag.SevWarning:
				warns++
				p.warn.Fprint(w, "warning")
			default:
				p.info.Fprint(w, "info")
			}
			fmt.Fprintf(w, "[%s]: %s\n", d.Code.ID(), d.Message)
			if hasLocation(d.Primary) {
				p.loc.Fprintf(w, "  --> %s:%d-%d\n", formatPath(u.Files.Path(d.Primary.File), opts.PathMode), d.Primary.Start, d.Primary.End)
			} else {
				p.loc.Fprintf(w, "  --> module %s\n", u.Module)
			}
			if !opts.ShowNotes {
				continue
			}
			for _, n := range d.Notes {
				p.note.Fprintf(w, "  note: %s\n", n.Msg)
			}
		}
	}
	return errs, warns
}
