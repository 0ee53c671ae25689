package driver

import (
	"monoc/internal/ir"
	"monoc/internal/symbols"
)

// LayoutEntry is one line of a layout listing.
type LayoutEntry struct {
	Name   string
	Layout string
	// Err is set when the definition has no layout, e.g. it is polymorphic.
	Err string
}

// DefinitionLayouts lists the layout of every definition of the home
// module in definition order. m must come from a run with KeepIR.
func (m *ModuleResult) DefinitionLayouts() []LayoutEntry {
	if m.Mono == nil {
		return nil
	}
	prog, res := m.Mono.Program, m.Mono.Resolver
	out := make([]LayoutEntry, 0, len(prog.Order))
	for _, sym := range prog.Order {
		if sym.Module != prog.Home {
			continue
		}
		d := prog.Defs[sym]
		e := LayoutEntry{Name: prog.Interns.Describe(sym)}
		if prog.Types.HasVars(d.Type) {
			e.Err = "polymorphic"
		} else if id, err := res.Resolve(d.Type); err != nil {
			e.Err = err.Error()
		} else {
			e.Layout = res.Layouts.String(id, prog.Interns.String)
		}
		out = append(out, e)
	}
	return out
}

// ProcLayouts lists the function layout of every specialization in
// creation order.
func (m *ModuleResult) ProcLayouts() []LayoutEntry {
	if m.Mono == nil {
		return nil
	}
	in := m.Mono.Program.Interns
	layouts := m.Mono.Resolver.Layouts
	out := make([]LayoutEntry, 0, len(m.Mono.Order))
	for _, k := range m.Mono.Order {
		p := m.Mono.Procs[k]
		out = append(out, LayoutEntry{
			Name:   procLabel(p, in),
			Layout: layouts.String(k.Layout, in.String),
		})
	}
	return out
}

func procLabel(p *ir.Proc, in *symbols.Interns) string {
	if name := in.DebugName(p.Name.Symbol); name != "" {
		return p.Name.String(in) + " (" + name + ")"
	}
	return p.Name.String(in)
}
