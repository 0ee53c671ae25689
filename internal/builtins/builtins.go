// Package builtins defines the standard library functions that wrap
// low-level operations. They are ordinary polymorphic definitions and are
// specialized like user code.
package builtins

import (
	"fmt"
	"slices"
	"strings"

	"monoc/internal/hir"
	"monoc/internal/lowlevel"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

type entry struct {
	module string
	ident  symbols.IdentID
	build  func(e *env, self symbols.Symbol) *hir.Def
}

// entries maps qualified names to fixed identifiers. Identifiers are part
// of the printed output and must stay stable.
var entries = map[string]entry{
	"Num.isGte":   {symbols.ModuleNum, 20, compare(lowlevel.NumGte)},
	"Num.isLt":    {symbols.ModuleNum, 21, compare(lowlevel.NumLt)},
	"Num.isGt":    {symbols.ModuleNum, 22, compare(lowlevel.NumGt)},
	"Num.isLte":   {symbols.ModuleNum, 23, compare(lowlevel.NumLte)},
	"Num.add":     {symbols.ModuleNum, 24, arith(lowlevel.NumAdd)},
	"Num.sub":     {symbols.ModuleNum, 25, arith(lowlevel.NumSub)},
	"Num.mul":     {symbols.ModuleNum, 26, arith(lowlevel.NumMul)},
	"Num.neg":     {symbols.ModuleNum, 30, numNeg},
	"Num.toFloat": {symbols.ModuleNum, 35, numToFloat},
	"Num.div":     {symbols.ModuleNum, 42, checkedDiv(lowlevel.NumDivUnchecked)},
	"Num.rem":     {symbols.ModuleNum, 43, checkedDiv(lowlevel.NumRemUnchecked)},
	"Num.round":   {symbols.ModuleNum, 47, numRound},

	"List.get":    {symbols.ModuleList, 3, listGet},
	"List.set":    {symbols.ModuleList, 4, listSet},
	"List.append": {symbols.ModuleList, 5, listAppend},
	"List.len":    {symbols.ModuleList, 7, listLen},
	"List.concat": {symbols.ModuleList, 9, listConcat},

	"Dict.empty":  {symbols.ModuleDict, 2, dictEmpty},
	"Dict.insert": {symbols.ModuleDict, 3, dictInsert},
	"Dict.len":    {symbols.ModuleDict, 8, dictLen},

	"Bool.and":     {symbols.ModuleBool, 2, logic(lowlevel.And)},
	"Bool.or":      {symbols.ModuleBool, 3, logic(lowlevel.Or)},
	"Bool.not":     {symbols.ModuleBool, 4, boolNot},
	"Bool.isEq":    {symbols.ModuleBool, 5, equality(lowlevel.Eq)},
	"Bool.isNotEq": {symbols.ModuleBool, 6, equality(lowlevel.NotEq)},

	"Str.concat": {symbols.ModuleStr, 2, strConcat},
	"Str.len":    {symbols.ModuleStr, 3, strLen},
}

// Names lists every builtin in sorted order.
func Names() []string {
	out := make([]string, 0, len(entries))
	for name := range entries {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Symbol returns the symbol of a qualified builtin name such as "List.len".
func Symbol(in *symbols.Interns, name string) (symbols.Symbol, bool) {
	e, ok := entries[name]
	if !ok {
		return symbols.Symbol{}, false
	}
	mod, ok := in.LookupModule(e.module)
	if !ok {
		return symbols.Symbol{}, false
	}
	short := name[strings.IndexByte(name, '.')+1:]
	return in.InsertAt(mod, e.ident, short), true
}

// MustSymbol is Symbol for names known to exist.
func MustSymbol(in *symbols.Interns, name string) symbols.Symbol {
	sym, ok := Symbol(in, name)
	if !ok {
		panic(fmt.Sprintf("builtins: unknown %s", name))
	}
	return sym
}

// Install adds every builtin to p that p does not define yet.
func Install(p *hir.Program) {
	e := &env{b: hir.NewBuilder(p)}
	e.x = p.Interns.Attr(symbols.AttrArg1)
	e.y = p.Interns.Attr(symbols.AttrArg2)
	e.z = p.Interns.Attr(symbols.AttrArg3)
	for _, name := range Names() {
		sym := MustSymbol(p.Interns, name)
		if _, exists := p.Lookup(sym); exists {
			continue
		}
		entries[name].build(e, sym)
	}
}

// Type returns the polymorphic type of an installed builtin.
func Type(p *hir.Program, name string) (types.TypeID, bool) {
	sym, ok := Symbol(p.Interns, name)
	if !ok {
		return types.NoTypeID, false
	}
	d, ok := p.Lookup(sym)
	if !ok {
		return types.NoTypeID, false
	}
	return d.Type, true
}
