package types

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"

	"monoc/internal/symbols"
)

// Interner provides stable TypeIDs. Scalars and composites built from
// already-interned children are deduplicated structurally; recursive unions
// created through Reserve/DefineUnion are not.
type Interner struct {
	types    []Type
	index    map[string]TypeID
	builtins Builtins
	vars     []VarInfo
	records  []RecordInfo
	unions   []UnionInfo
	funcs    []FuncInfo
	sets     []LambdaSetInfo
	hasVars  map[TypeID]bool
}

// NewInterner constructs an interner seeded with built-in types.
func NewInterner() *Interner {
	in := &Interner{
		types:   []Type{{Kind: KindInvalid}},
		index:   make(map[string]TypeID, 64),
		vars:    []VarInfo{{}},
		records: []RecordInfo{{}},
		unions:  []UnionInfo{{}},
		funcs:   []FuncInfo{{}},
		sets:    []LambdaSetInfo{{}},
		hasVars: make(map[TypeID]bool),
	}
	in.builtins.I8 = in.Int(Width8, true)
	in.builtins.I16 = in.Int(Width16, true)
	in.builtins.I32 = in.Int(Width32, true)
	in.builtins.I64 = in.Int(Width64, true)
	in.builtins.U8 = in.Int(Width8, false)
	in.builtins.U16 = in.Int(Width16, false)
	in.builtins.U32 = in.Int(Width32, false)
	in.builtins.U64 = in.Int(Width64, false)
	in.builtins.F32 = in.Float(Width32)
	in.builtins.F64 = in.Float(Width64)
	in.builtins.Str = in.intern(Type{Kind: KindStr}, "str")
	in.builtins.Unit = in.Record(nil)
	in.builtins.Bool = in.Union([]Tag{{Name: "False"}, {Name: "True"}})
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

func (in *Interner) intern(t Type, key string) TypeID {
	if key != "" {
		if id, ok := in.index[key]; ok {
			return id
		}
	}
	id := in.push(t)
	if key != "" {
		in.index[key] = id
	}
	return id
}

func (in *Interner) push(t Type) TypeID {
	n, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	in.types = append(in.types, t)
	return TypeID(n)
}

func sideIndex(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("types: side table overflow: %w", err))
	}
	return v
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: invalid TypeID %d", id))
	}
	return tt
}

// Len reports the number of interned types including the sentinel.
func (in *Interner) Len() int { return len(in.types) }

// Int interns a fixed-width integer.
func (in *Interner) Int(w Width, signed bool) TypeID {
	return in.intern(Type{Kind: KindInt, Width: w, Signed: signed}, "int:"+strconv.Itoa(int(w))+":"+strconv.FormatBool(signed))
}

// Float interns a floating-point type.
func (in *Interner) Float(w Width) TypeID {
	return in.intern(Type{Kind: KindFloat, Width: w}, "float:"+strconv.Itoa(int(w)))
}

// List interns List elem.
func (in *Interner) List(elem TypeID) TypeID {
	return in.intern(Type{Kind: KindList, Elem: elem}, "list:"+idKey(elem))
}

// Dict interns Dict k v.
func (in *Interner) Dict(k, v TypeID) TypeID {
	return in.intern(Type{Kind: KindDict, Elem: k, Value: v}, "dict:"+idKey(k)+","+idKey(v))
}

// Var creates a fresh, distinct type variable.
func (in *Interner) Var(name string) TypeID {
	return in.NumVar(name, NumNone)
}

// NumVar creates a fresh variable restricted to numbers of the given class.
func (in *Interner) NumVar(name string, class NumClass) TypeID {
	in.vars = append(in.vars, VarInfo{Name: name, Num: class})
	return in.push(Type{Kind: KindVar, Payload: sideIndex(len(in.vars) - 1)})
}

// Erroneous creates a placeholder for a type the solver could not infer.
func (in *Interner) Erroneous() TypeID {
	return in.push(Type{Kind: KindErroneous})
}

// Record interns a record type. Fields are stored sorted by name.
func (in *Interner) Record(fields []Field) TypeID {
	fs := slices.Clone(fields)
	slices.SortStableFunc(fs, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	var sb strings.Builder
	sb.WriteString("record:")
	for _, f := range fs {
		sb.WriteString(f.Name)
		sb.WriteByte('=')
		sb.WriteString(idKey(f.Type))
		sb.WriteByte(';')
	}
	key := sb.String()
	if id, ok := in.index[key]; ok {
		return id
	}
	in.records = append(in.records, RecordInfo{Fields: fs})
	return in.intern(Type{Kind: KindRecord, Payload: sideIndex(len(in.records) - 1)}, key)
}

// Union interns a non-recursive tag union.
func (in *Interner) Union(tags []Tag) TypeID {
	ts := sortTags(tags)
	key := "union:" + tagsKey(ts)
	if id, ok := in.index[key]; ok {
		return id
	}
	in.unions = append(in.unions, UnionInfo{Tags: ts})
	return in.intern(Type{Kind: KindUnion, Payload: sideIndex(len(in.unions) - 1)}, key)
}

// Reserve allocates an ID for a union that refers to itself. It must be
// completed with DefineUnion before use.
func (in *Interner) Reserve() TypeID {
	return in.push(Type{Kind: KindInvalid})
}

// DefineUnion completes a reserved ID.
func (in *Interner) DefineUnion(id TypeID, tags []Tag) {
	if int(id) >= len(in.types) || in.types[id].Kind != KindInvalid || id == NoTypeID {
		panic(fmt.Sprintf("types: DefineUnion on non-reserved id %d", id))
	}
	in.unions = append(in.unions, UnionInfo{Tags: sortTags(tags)})
	in.types[id] = Type{Kind: KindUnion, Payload: sideIndex(len(in.unions) - 1)}
	delete(in.hasVars, id)
}

// Func interns a function type.
func (in *Interner) Func(params []TypeID, result, lambdas TypeID) TypeID {
	var sb strings.Builder
	sb.WriteString("func:")
	for _, p := range params {
		sb.WriteString(idKey(p))
		sb.WriteByte(',')
	}
	sb.WriteString("->" + idKey(result) + "|" + idKey(lambdas))
	key := sb.String()
	if id, ok := in.index[key]; ok {
		return id
	}
	in.funcs = append(in.funcs, FuncInfo{Params: slices.Clone(params), Result: result, Lambdas: lambdas})
	return in.intern(Type{Kind: KindFunc, Payload: sideIndex(len(in.funcs) - 1)}, key)
}

// LambdaSet interns a lambda set. Members are sorted by symbol.
func (in *Interner) LambdaSet(members []LambdaMember) TypeID {
	ms := make([]LambdaMember, len(members))
	for i, m := range members {
		ms[i] = LambdaMember{Symbol: m.Symbol, Captures: slices.Clone(m.Captures)}
	}
	slices.SortStableFunc(ms, func(a, b LambdaMember) int { return symbols.Compare(a.Symbol, b.Symbol) })
	var sb strings.Builder
	sb.WriteString("lambdas:")
	for _, m := range ms {
		fmt.Fprintf(&sb, "%d.%d(", m.Symbol.Module, m.Symbol.Ident)
		for _, c := range m.Captures {
			sb.WriteString(idKey(c))
			sb.WriteByte(',')
		}
		sb.WriteString(");")
	}
	key := sb.String()
	if id, ok := in.index[key]; ok {
		return id
	}
	in.sets = append(in.sets, LambdaSetInfo{Members: ms})
	return in.intern(Type{Kind: KindLambdaSet, Payload: sideIndex(len(in.sets) - 1)}, key)
}

func sortTags(tags []Tag) []Tag {
	ts := make([]Tag, len(tags))
	for i, t := range tags {
		ts[i] = Tag{Name: t.Name, Args: slices.Clone(t.Args)}
	}
	slices.SortStableFunc(ts, func(a, b Tag) int { return strings.Compare(a.Name, b.Name) })
	return ts
}

func tagsKey(ts []Tag) string {
	var sb strings.Builder
	for _, t := range ts {
		sb.WriteString(t.Name)
		sb.WriteByte('(')
		for _, a := range t.Args {
			sb.WriteString(idKey(a))
			sb.WriteByte(',')
		}
		sb.WriteString(");")
	}
	return sb.String()
}

func idKey(id TypeID) string { return strconv.FormatUint(uint64(id), 10) }

// RecordInfo returns record details for a KindRecord type.
func (in *Interner) RecordInfo(id TypeID) (RecordInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindRecord {
		return RecordInfo{}, false
	}
	return in.records[t.Payload], true
}

// UnionInfo returns tags of a KindUnion type.
func (in *Interner) UnionInfo(id TypeID) (UnionInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindUnion {
		return UnionInfo{}, false
	}
	return in.unions[t.Payload], true
}

// FuncInfo returns details of a KindFunc type.
func (in *Interner) FuncInfo(id TypeID) (FuncInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindFunc {
		return FuncInfo{}, false
	}
	return in.funcs[t.Payload], true
}

// LambdaSetInfo returns members of a KindLambdaSet type.
func (in *Interner) LambdaSetInfo(id TypeID) (LambdaSetInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindLambdaSet {
		return LambdaSetInfo{}, false
	}
	return in.sets[t.Payload], true
}

// VarInfo returns details of a KindVar type.
func (in *Interner) VarInfo(id TypeID) (VarInfo, bool) {
	t, ok := in.Lookup(id)
	if !ok || t.Kind != KindVar {
		return VarInfo{}, false
	}
	return in.vars[t.Payload], true
}

// HasVars reports whether a variable or erroneous type is reachable from id.
func (in *Interner) HasVars(id TypeID) bool {
	if v, ok := in.hasVars[id]; ok {
		return v
	}
	seen := make(map[TypeID]struct{})
	v := in.reachesVar(id, seen)
	in.hasVars[id] = v
	return v
}

func (in *Interner) reachesVar(id TypeID, seen map[TypeID]struct{}) bool {
	if _, ok := seen[id]; ok {
		return false
	}
	seen[id] = struct{}{}
	t, ok := in.Lookup(id)
	if !ok {
		return false
	}
	switch t.Kind {
	case KindVar, KindErroneous:
		return true
	case KindList:
		return in.reachesVar(t.Elem, seen)
	case KindDict:
		return in.reachesVar(t.Elem, seen) || in.reachesVar(t.Value, seen)
	case KindRecord:
		for _, f := range in.records[t.Payload].Fields {
			if in.reachesVar(f.Type, seen) {
				return true
			}
		}
	case KindUnion:
		for _, tag := range in.unions[t.Payload].Tags {
			for _, a := range tag.Args {
				if in.reachesVar(a, seen) {
					return true
				}
			}
		}
	case KindFunc:
		fn := in.funcs[t.Payload]
		for _, p := range fn.Params {
			if in.reachesVar(p, seen) {
				return true
			}
		}
		return in.reachesVar(fn.Result, seen) || in.reachesVar(fn.Lambdas, seen)
	case KindLambdaSet:
		for _, m := range in.sets[t.Payload].Members {
			for _, c := range m.Captures {
				if in.reachesVar(c, seen) {
					return true
				}
			}
		}
	}
	return false
}
