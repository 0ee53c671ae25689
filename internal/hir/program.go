package hir

import (
	"fmt"

	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// Def is a top-level definition. Functions have an ExprClosure body without
// captures whose Symbol equals the definition symbol; anything else is a
// value that is evaluated on use.
type Def struct {
	Symbol symbols.Symbol
	Type   types.TypeID
	Expr   *Expr
	Span   source.Span
}

// IsFunction reports whether the definition is a lambda.
func (d *Def) IsFunction() bool {
	return d != nil && d.Expr != nil && d.Expr.Kind == ExprClosure
}

// Closure returns the lambda payload of a function definition.
func (d *Def) Closure() (ClosureData, bool) {
	if !d.IsFunction() {
		return ClosureData{}, false
	}
	c, ok := d.Expr.Data.(ClosureData)
	return c, ok
}

// Program is one module after type solving, together with the builtin
// definitions it may call.
type Program struct {
	Name    string
	Home    symbols.ModuleID
	Interns *symbols.Interns
	Types   *types.Interner
	Files   *source.FileSet

	Defs    map[symbols.Symbol]*Def
	Order   []symbols.Symbol // definition order, for deterministic iteration
	Exposed []symbols.Symbol
}

// NewProgram creates an empty program whose home module is name.
func NewProgram(name string) *Program {
	interns := symbols.NewInterns()
	return &Program{
		Name:    name,
		Home:    interns.Module(name),
		Interns: interns,
		Types:   types.NewInterner(),
		Files:   source.NewFileSet(),
		Defs:    make(map[symbols.Symbol]*Def),
	}
}

// AddDef registers a definition. Redefinition is an error.
func (p *Program) AddDef(d *Def) error {
	if d == nil || !d.Symbol.IsValid() {
		return fmt.Errorf("hir: invalid definition")
	}
	if _, exists := p.Defs[d.Symbol]; exists {
		return fmt.Errorf("hir: duplicate definition %s", p.Interns.String(d.Symbol))
	}
	p.Defs[d.Symbol] = d
	p.Order = append(p.Order, d.Symbol)
	return nil
}

// Expose marks sym as an entry point.
func (p *Program) Expose(sym symbols.Symbol) {
	p.Exposed = append(p.Exposed, sym)
}

// Lookup returns a definition.
func (p *Program) Lookup(sym symbols.Symbol) (*Def, bool) {
	d, ok := p.Defs[sym]
	return d, ok
}
