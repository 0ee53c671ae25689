package types

import "maps"

// Table is a flat copy of an interner, used to ship solved types inside a
// bundle. IDs are preserved exactly.
type Table struct {
	Types    []Type
	Index    map[string]TypeID
	Builtins Builtins
	Vars     []VarInfo
	Records  []RecordInfo
	Unions   []UnionInfo
	Funcs    []FuncInfo
	Sets     []LambdaSetInfo
}

// Export copies the interner state.
func (in *Interner) Export() *Table {
	return &Table{
		Types:    append([]Type(nil), in.types...),
		Index:    maps.Clone(in.index),
		Builtins: in.builtins,
		Vars:     append([]VarInfo(nil), in.vars...),
		Records:  append([]RecordInfo(nil), in.records...),
		Unions:   append([]UnionInfo(nil), in.unions...),
		Funcs:    append([]FuncInfo(nil), in.funcs...),
		Sets:     append([]LambdaSetInfo(nil), in.sets...),
	}
}

// FromTable rebuilds an interner. The table must come from Export.
func FromTable(t *Table) *Interner {
	in := &Interner{
		types:    append([]Type(nil), t.Types...),
		index:    maps.Clone(t.Index),
		builtins: t.Builtins,
		vars:     append([]VarInfo(nil), t.Vars...),
		records:  append([]RecordInfo(nil), t.Records...),
		unions:   append([]UnionInfo(nil), t.Unions...),
		funcs:    append([]FuncInfo(nil), t.Funcs...),
		sets:     append([]LambdaSetInfo(nil), t.Sets...),
		hasVars:  make(map[TypeID]bool),
	}
	if in.index == nil {
		in.index = make(map[string]TypeID)
	}
	if len(in.types) == 0 {
		in.types = []Type{{Kind: KindInvalid}}
	}
	return in
}
