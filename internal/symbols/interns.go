package symbols

import (
	"fmt"
	"strconv"
	"sync"

	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"
)

type moduleEntry struct {
	name   string
	idents []string // index = IdentID; empty string for anonymous temporaries
}

// Interns owns module names and identifier tables. It is safe for concurrent
// use; each specialization run normally owns its own instance anyway.
type Interns struct {
	mu      sync.Mutex
	modules []moduleEntry // modules[0] is the NoModuleID sentinel
	byName  map[string]ModuleID
}

// NewInterns creates a table with the builtin modules registered.
func NewInterns() *Interns {
	in := &Interns{
		modules: []moduleEntry{{}},
		byName:  make(map[string]ModuleID, 8),
	}
	for _, name := range []string{ModuleAttr, ModuleNum, ModuleList, ModuleDict, ModuleBool, ModuleStr, ModuleResult} {
		in.Module(name)
	}
	return in
}

// Module returns the ID for name, registering it on first use.
func (in *Interns) Module(name string) ModuleID {
	name = norm.NFC.String(name)
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.byName[name]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.modules))
	if err != nil {
		panic(fmt.Errorf("symbols: module table overflow: %w", err))
	}
	id := ModuleID(n)
	in.modules = append(in.modules, moduleEntry{name: name})
	in.byName[name] = id
	return id
}

// LookupModule finds an already registered module.
func (in *Interns) LookupModule(name string) (ModuleID, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	id, ok := in.byName[norm.NFC.String(name)]
	return id, ok
}

// ModuleName returns the printed name of a module.
func (in *Interns) ModuleName(id ModuleID) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(id) >= len(in.modules) {
		return "?"
	}
	return in.modules[id].name
}

// Insert allocates the next identifier of mod under a debug name.
func (in *Interns) Insert(mod ModuleID, name string) Symbol {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.insertLocked(mod, norm.NFC.String(name))
}

// Fresh allocates an anonymous identifier in mod.
func (in *Interns) Fresh(mod ModuleID) Symbol {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.insertLocked(mod, "")
}

func (in *Interns) insertLocked(mod ModuleID, name string) Symbol {
	if int(mod) >= len(in.modules) || mod == NoModuleID {
		panic(fmt.Errorf("symbols: unknown module %d", mod))
	}
	e := &in.modules[mod]
	n, err := safecast.Conv[uint32](len(e.idents))
	if err != nil {
		panic(fmt.Errorf("symbols: ident table overflow: %w", err))
	}
	e.idents = append(e.idents, name)
	return Symbol{Module: mod, Ident: IdentID(n)}
}

// InsertAt registers a symbol with a fixed identifier, growing the table so
// that later Fresh calls never reuse it.
func (in *Interns) InsertAt(mod ModuleID, ident IdentID, name string) Symbol {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(mod) >= len(in.modules) || mod == NoModuleID {
		panic(fmt.Errorf("symbols: unknown module %d", mod))
	}
	e := &in.modules[mod]
	for len(e.idents) <= int(ident) {
		e.idents = append(e.idents, "")
	}
	if name != "" {
		e.idents[ident] = norm.NFC.String(name)
	}
	return Symbol{Module: mod, Ident: ident}
}

// Attr returns a symbol from the #Attr module.
func (in *Interns) Attr(ident IdentID) Symbol {
	mod, _ := in.LookupModule(ModuleAttr)
	return in.InsertAt(mod, ident, "")
}

// String renders the canonical Module.N form used by the IR printer.
func (in *Interns) String(s Symbol) string {
	if !s.IsValid() {
		return "<nosym>"
	}
	return in.ModuleName(s.Module) + "." + strconv.FormatUint(uint64(s.Ident), 10)
}

// DebugName returns the source name of a symbol, if it has one.
func (in *Interns) DebugName(s Symbol) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(s.Module) >= len(in.modules) {
		return ""
	}
	e := in.modules[s.Module]
	if int(s.Ident) >= len(e.idents) {
		return ""
	}
	return e.idents[s.Ident]
}

// Describe prints "Test.3 (name)" when a debug name exists.
func (in *Interns) Describe(s Symbol) string {
	if name := in.DebugName(s); name != "" {
		return in.String(s) + " (" + name + ")"
	}
	return in.String(s)
}

// IdentCount reports how many identifiers mod has allocated.
func (in *Interns) IdentCount(mod ModuleID) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(mod) >= len(in.modules) {
		return 0
	}
	return len(in.modules[mod].idents)
}

// ModuleNames lists registered modules in ID order (sentinel excluded).
func (in *Interns) ModuleNames() []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]string, 0, len(in.modules)-1)
	for _, m := range in.modules[1:] {
		out = append(out, m.name)
	}
	return out
}

// IdentNames returns a copy of the identifier table of mod.
func (in *Interns) IdentNames(mod ModuleID) []string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if int(mod) >= len(in.modules) {
		return nil
	}
	return append([]string(nil), in.modules[mod].idents...)
}
