package symbols

// ModuleTable is the serialisable form of one module's identifiers.
type ModuleTable struct {
	Name   string
	Idents []string
}

// Export copies all modules in ID order, the sentinel excluded.
func (in *Interns) Export() []ModuleTable {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]ModuleTable, 0, len(in.modules)-1)
	for _, m := range in.modules[1:] {
		out = append(out, ModuleTable{Name: m.name, Idents: append([]string(nil), m.idents...)})
	}
	return out
}

// FromTables rebuilds an identifier table. Module IDs follow slice order.
func FromTables(mods []ModuleTable) *Interns {
	in := &Interns{
		modules: []moduleEntry{{}},
		byName:  make(map[string]ModuleID, len(mods)),
	}
	for _, m := range mods {
		id := in.Module(m.Name)
		in.modules[id].idents = append([]string(nil), m.Idents...)
	}
	for _, name := range []string{ModuleAttr, ModuleNum, ModuleList, ModuleDict, ModuleBool, ModuleStr, ModuleResult} {
		in.Module(name)
	}
	return in
}
