package hir

import (
	"monoc/internal/lowlevel"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// Builder constructs typed expressions. It is used by the builtin table and
// by tests that stand in for the type checker.
type Builder struct {
	P *Program
	T *types.Interner
	B types.Builtins
}

func NewBuilder(p *Program) *Builder {
	return &Builder{P: p, T: p.Types, B: p.Types.Builtins()}
}

// Sym allocates a named symbol in the home module.
func (b *Builder) Sym(name string) symbols.Symbol {
	return b.P.Interns.Insert(b.P.Home, name)
}

// Fn builds a function type.
func (b *Builder) Fn(params []types.TypeID, result types.TypeID, lambdas types.TypeID) types.TypeID {
	return b.T.Func(params, result, lambdas)
}

// Lambdas builds a lambda set.
func (b *Builder) Lambdas(members ...types.LambdaMember) types.TypeID {
	return b.T.LambdaSet(members)
}

func (b *Builder) Int(v int64, t types.TypeID) *Expr {
	return &Expr{Kind: ExprInt, Type: t, Data: IntData{Value: v}}
}

// I64 is an I64 literal.
func (b *Builder) I64(v int64) *Expr { return b.Int(v, b.B.I64) }

func (b *Builder) Float(v float64, t types.TypeID) *Expr {
	return &Expr{Kind: ExprFloat, Type: t, Data: FloatData{Value: v}}
}

// F64 is an F64 literal.
func (b *Builder) F64(v float64) *Expr { return b.Float(v, b.B.F64) }

func (b *Builder) Str(s string) *Expr {
	return &Expr{Kind: ExprStr, Type: b.B.Str, Data: StrData{Value: s}}
}

func (b *Builder) Var(sym symbols.Symbol, t types.TypeID) *Expr {
	return &Expr{Kind: ExprVar, Type: t, Data: VarData{Symbol: sym}}
}

// Tag constructs name of the union type t.
func (b *Builder) Tag(t types.TypeID, name string, args ...*Expr) *Expr {
	return &Expr{Kind: ExprTag, Type: t, Data: TagData{Name: name, Args: args}}
}

// True and False are values of the builtin Bool.
func (b *Builder) True() *Expr  { return b.Tag(b.B.Bool, "True") }
func (b *Builder) False() *Expr { return b.Tag(b.B.Bool, "False") }

func (b *Builder) Record(t types.TypeID, fields ...RecordField) *Expr {
	return &Expr{Kind: ExprRecord, Type: t, Data: RecordData{Fields: fields}}
}

func (b *Builder) Access(rec *Expr, field string, t types.TypeID) *Expr {
	return &Expr{Kind: ExprAccess, Type: t, Data: AccessData{Record: rec, Field: field}}
}

func (b *Builder) List(t types.TypeID, elems ...*Expr) *Expr {
	return &Expr{Kind: ExprList, Type: t, Data: ListData{Elems: elems}}
}

// Call applies fn; result is the call's type.
func (b *Builder) Call(fn *Expr, result types.TypeID, args ...*Expr) *Expr {
	return &Expr{Kind: ExprCall, Type: result, Data: CallData{Callee: fn, Args: args}}
}

func (b *Builder) LowLevel(op lowlevel.Op, t types.TypeID, args ...*Expr) *Expr {
	return &Expr{Kind: ExprLowLevel, Type: t, Data: LowLevelData{Op: op, Args: args}}
}

// Closure builds a lambda of function type fnType.
func (b *Builder) Closure(sym symbols.Symbol, fnType types.TypeID, params, captures []Param, body *Expr) *Expr {
	return &Expr{Kind: ExprClosure, Type: fnType, Data: ClosureData{Symbol: sym, Params: params, Captures: captures, Body: body}}
}

func (b *Builder) When(cond *Expr, t types.TypeID, branches ...Branch) *Expr {
	return &Expr{Kind: ExprWhen, Type: t, Data: WhenData{Cond: cond, Branches: branches}}
}

// Branch is an unguarded alternative.
func (b *Builder) Branch(body *Expr, pats ...*Pattern) Branch {
	return Branch{Patterns: pats, Body: body}
}

// Guarded is an alternative with a guard.
func (b *Builder) Guarded(guard, body *Expr, pats ...*Pattern) Branch {
	return Branch{Patterns: pats, Guard: guard, Body: body}
}

// If builds if/else; extra else-if arms can be added through IfData.
func (b *Builder) If(t types.TypeID, cond, then, els *Expr) *Expr {
	return &Expr{Kind: ExprIf, Type: t, Data: IfData{Branches: []IfBranch{{Cond: cond, Then: then}}, Else: els}}
}

func (b *Builder) Let(p *Pattern, value, body *Expr) *Expr {
	return &Expr{Kind: ExprLet, Type: body.Type, Data: LetData{Pattern: p, Value: value, Body: body}}
}

// LetVar binds sym to value.
func (b *Builder) LetVar(sym symbols.Symbol, value, body *Expr) *Expr {
	return b.Let(b.PIdent(sym, value.Type), value, body)
}

func (b *Builder) RuntimeError(t types.TypeID, msg string) *Expr {
	return &Expr{Kind: ExprRuntimeError, Type: t, Data: RuntimeErrorData{Message: msg}}
}

func (b *Builder) PWild(t types.TypeID) *Pattern {
	return &Pattern{Kind: PatWildcard, Type: t}
}

func (b *Builder) PIdent(sym symbols.Symbol, t types.TypeID) *Pattern {
	return &Pattern{Kind: PatIdent, Type: t, Symbol: sym}
}

func (b *Builder) PInt(v int64, t types.TypeID) *Pattern {
	return &Pattern{Kind: PatInt, Type: t, Int: v}
}

func (b *Builder) PFloat(v float64, t types.TypeID) *Pattern {
	return &Pattern{Kind: PatFloat, Type: t, Float: v}
}

func (b *Builder) PStr(s string) *Pattern {
	return &Pattern{Kind: PatStr, Type: b.B.Str, Str: s}
}

func (b *Builder) PTag(t types.TypeID, name string, args ...*Pattern) *Pattern {
	return &Pattern{Kind: PatTag, Type: t, Tag: name, Args: args}
}

func (b *Builder) PRecord(t types.TypeID, fields ...FieldPattern) *Pattern {
	return &Pattern{Kind: PatRecord, Type: t, Fields: fields}
}

// Function adds a top-level function definition.
func (b *Builder) Function(sym symbols.Symbol, fnType types.TypeID, params []Param, body *Expr) *Def {
	d := &Def{Symbol: sym, Type: fnType, Expr: b.Closure(sym, fnType, params, nil, body)}
	b.mustAdd(d)
	return d
}

// Value adds a top-level value definition.
func (b *Builder) Value(sym symbols.Symbol, value *Expr) *Def {
	d := &Def{Symbol: sym, Type: value.Type, Expr: value}
	b.mustAdd(d)
	return d
}

func (b *Builder) mustAdd(d *Def) {
	if err := b.P.AddDef(d); err != nil {
		panic(err)
	}
}
