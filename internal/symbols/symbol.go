package symbols

import "fmt"

// ModuleID identifies a module inside Interns.
type ModuleID uint32

// IdentID identifies an identifier within one module.
type IdentID uint32

const (
	// NoModuleID marks the absence of a module.
	NoModuleID ModuleID = 0
)

// IsValid reports whether the module ID refers to a registered module.
func (id ModuleID) IsValid() bool { return id != NoModuleID }

// Symbol names a value, function or temporary. Printed form is Module.Ident.
type Symbol struct {
	Module ModuleID
	Ident  IdentID
}

// NoSymbol is the zero symbol.
var NoSymbol = Symbol{}

// IsValid reports whether the symbol belongs to a registered module.
func (s Symbol) IsValid() bool { return s.Module.IsValid() }

// Less orders symbols by module, then ident.
func (s Symbol) Less(other Symbol) bool {
	if s.Module != other.Module {
		return s.Module < other.Module
	}
	return s.Ident < other.Ident
}

// Compare is a three-way variant of Less, usable with slices.SortFunc.
func Compare(a, b Symbol) int {
	switch {
	case a == b:
		return 0
	case a.Less(b):
		return -1
	default:
		return 1
	}
}

// GoString keeps %#v output compact in test failures.
func (s Symbol) GoString() string {
	return fmt.Sprintf("sym(%d.%d)", s.Module, s.Ident)
}

// Well-known module names. Attr holds synthesized parameters of builtin and
// closure procedures.
const (
	ModuleAttr   = "#Attr"
	ModuleNum    = "Num"
	ModuleList   = "List"
	ModuleDict   = "Dict"
	ModuleBool   = "Bool"
	ModuleStr    = "Str"
	ModuleResult = "Result"
)

// Fixed identifiers inside #Attr.
const (
	AttrArg1    IdentID = 2
	AttrArg2    IdentID = 3
	AttrArg3    IdentID = 4
	AttrClosure IdentID = 12
)
