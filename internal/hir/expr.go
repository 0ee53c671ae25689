package hir

import (
	"monoc/internal/lowlevel"
	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// ExprKind enumerates typed expression forms.
type ExprKind uint8

const (
	ExprInt ExprKind = iota
	ExprFloat
	ExprStr
	ExprVar
	ExprTag
	ExprRecord
	ExprAccess
	ExprList
	ExprCall
	ExprLowLevel
	ExprClosure
	ExprWhen
	ExprIf
	ExprLet
	ExprRuntimeError
)

func (k ExprKind) String() string {
	switch k {
	case ExprInt:
		return "Int"
	case ExprFloat:
		return "Float"
	case ExprStr:
		return "Str"
	case ExprVar:
		return "Var"
	case ExprTag:
		return "Tag"
	case ExprRecord:
		return "Record"
	case ExprAccess:
		return "Access"
	case ExprList:
		return "List"
	case ExprCall:
		return "Call"
	case ExprLowLevel:
		return "LowLevel"
	case ExprClosure:
		return "Closure"
	case ExprWhen:
		return "When"
	case ExprIf:
		return "If"
	case ExprLet:
		return "Let"
	case ExprRuntimeError:
		return "RuntimeError"
	default:
		return "Unknown"
	}
}

// Expr is a solved expression; Type is its (possibly generic) type.
type Expr struct {
	Kind ExprKind
	Type types.TypeID
	Span source.Span
	Data ExprData
}

// ExprData is implemented by every payload type.
type ExprData interface {
	exprData()
}

type IntData struct {
	Value int64
}

type FloatData struct {
	Value float64
}

type StrData struct {
	Value string
}

type VarData struct {
	Symbol symbols.Symbol
}

// TagData constructs a tag of the expression's union type.
type TagData struct {
	Name string
	Args []*Expr
}

type RecordField struct {
	Name  string
	Value *Expr
}

type RecordData struct {
	Fields []RecordField
}

// AccessData reads Field out of Record.
type AccessData struct {
	Record *Expr
	Field  string
}

type ListData struct {
	Elems []*Expr
}

// CallData applies Callee, which is a Var naming a definition or any
// function-typed value.
type CallData struct {
	Callee *Expr
	Args   []*Expr
}

type LowLevelData struct {
	Op   lowlevel.Op
	Args []*Expr
}

type Param struct {
	Symbol symbols.Symbol
	Type   types.TypeID
}

// ClosureData is a lambda. Symbol names the lifted procedure; Captures are
// the free variables in the order the lambda set lists them.
type ClosureData struct {
	Symbol   symbols.Symbol
	Params   []Param
	Captures []Param
	Body     *Expr
}

// Branch is one `when` alternative: any of Patterns (an or-pattern) with an
// optional guard.
type Branch struct {
	Patterns []*Pattern
	Guard    *Expr
	Body     *Expr
	Span     source.Span
}

type WhenData struct {
	Cond     *Expr
	Branches []Branch
}

type IfBranch struct {
	Cond *Expr
	Then *Expr
}

type IfData struct {
	Branches []IfBranch
	Else     *Expr
}

// LetData binds Pattern to Value in Body.
type LetData struct {
	Pattern *Pattern
	Value   *Expr
	Body    *Expr
}

// RuntimeErrorData aborts evaluation; the front end uses it for values of
// erroneous type and failed assertions.
type RuntimeErrorData struct {
	Message string
}

func (IntData) exprData()          {}
func (FloatData) exprData()        {}
func (StrData) exprData()          {}
func (VarData) exprData()          {}
func (TagData) exprData()          {}
func (RecordData) exprData()       {}
func (AccessData) exprData()       {}
func (ListData) exprData()         {}
func (CallData) exprData()         {}
func (LowLevelData) exprData()     {}
func (ClosureData) exprData()      {}
func (WhenData) exprData()         {}
func (IfData) exprData()           {}
func (LetData) exprData()          {}
func (RuntimeErrorData) exprData() {}
