package layout

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"monoc/internal/types"
)

type cacheEntry struct {
	ID  ID
	Err *Error
}

// Resolver maps solved types to layouts. Results for closed layouts are
// memoized per TypeID.
type Resolver struct {
	Types   *types.Interner
	Layouts *Interner
	Target  Target

	// DefaultIntWidth is used for number variables nothing constrained.
	DefaultIntWidth uint8

	cache  map[types.TypeID]cacheEntry
	orders map[types.TypeID][]int
}

// NewResolver creates a resolver with its own layout interner.
func NewResolver(typesIn *types.Interner, target Target) *Resolver {
	return &Resolver{
		Types:           typesIn,
		Layouts:         NewInterner(),
		Target:          target,
		DefaultIntWidth: 64,
		cache:           make(map[types.TypeID]cacheEntry, 64),
		orders:          make(map[types.TypeID][]int),
	}
}

type resolveState struct {
	stack []types.TypeID // unions currently being resolved
	index map[types.TypeID]int
}

// Resolve computes the layout of t.
func (r *Resolver) Resolve(t types.TypeID) (ID, error) {
	state := &resolveState{index: make(map[types.TypeID]int, 8)}
	id, err := r.resolve(t, state)
	if err != nil {
		return NoID, err
	}
	return id, nil
}

// MustResolve panics on error. Intended for tests and builtin tables.
func (r *Resolver) MustResolve(t types.TypeID) ID {
	id, err := r.Resolve(t)
	if err != nil {
		panic(err)
	}
	return id
}

func (r *Resolver) resolve(t types.TypeID, state *resolveState) (ID, *Error) {
	if cached, ok := r.cache[t]; ok {
		return cached.ID, cached.Err
	}
	if idx, ok := state.index[t]; ok {
		depth, err := safecast.Conv[uint32](len(state.stack) - 1 - idx)
		if err != nil {
			panic(fmt.Errorf("layout: recursion depth overflow: %w", err))
		}
		return r.Layouts.Intern(Layout{Kind: KindBoxed, Depth: depth}), nil
	}
	id, lerr := r.compute(t, state)
	if lerr != nil {
		r.cache[t] = cacheEntry{Err: lerr}
		return NoID, lerr
	}
	if r.Layouts.Closed(id) {
		r.cache[t] = cacheEntry{ID: id}
	}
	return id, nil
}

func (r *Resolver) compute(t types.TypeID, state *resolveState) (ID, *Error) {
	tt, ok := r.Types.Lookup(t)
	if !ok {
		return NoID, &Error{Kind: ErrUnknownType, Type: t}
	}
	switch tt.Kind {
	case types.KindVar:
		info, _ := r.Types.VarInfo(t)
		switch info.Num {
		case types.NumInt:
			return r.Layouts.Int(r.DefaultIntWidth, true), nil
		case types.NumFrac:
			return r.Layouts.Float(64), nil
		}
		return NoID, &Error{Kind: ErrUnresolvedVar, Type: t, Name: info.Name}
	case types.KindErroneous:
		return NoID, &Error{Kind: ErrErroneousType, Type: t}
	case types.KindInt:
		return r.Layouts.Int(uint8(tt.Width), tt.Signed), nil
	case types.KindFloat:
		return r.Layouts.Float(uint8(tt.Width)), nil
	case types.KindStr:
		return r.Layouts.Intern(Layout{Kind: KindStr}), nil
	case types.KindList:
		elem, err := r.resolve(tt.Elem, state)
		if err != nil {
			return NoID, err
		}
		return r.Layouts.Intern(Layout{Kind: KindList, Elem: elem}), nil
	case types.KindDict:
		k, err := r.resolve(tt.Elem, state)
		if err != nil {
			return NoID, err
		}
		v, err := r.resolve(tt.Value, state)
		if err != nil {
			return NoID, err
		}
		return r.Layouts.Intern(Layout{Kind: KindDict, Elem: k, Value: v}), nil
	case types.KindRecord:
		return r.record(t, state)
	case types.KindUnion:
		return r.union(t, state)
	case types.KindFunc:
		return r.closure(t, state)
	case types.KindLambdaSet:
		return r.lambdaSet(t, state)
	default:
		return NoID, &Error{Kind: ErrUnknownType, Type: t}
	}
}

func (r *Resolver) record(t types.TypeID, state *resolveState) (ID, *Error) {
	info, _ := r.Types.RecordInfo(t)
	ids := make([]ID, len(info.Fields))
	for i, f := range info.Fields {
		id, err := r.resolve(f.Type, state)
		if err != nil {
			return NoID, err
		}
		ids[i] = id
	}
	order := r.fieldOrder(t, info, ids)
	fields := make([]ID, len(order))
	for i, src := range order {
		fields[i] = ids[src]
	}
	return r.Layouts.Struct(fields), nil
}

// fieldOrder sorts record fields by alignment (largest first), then label.
func (r *Resolver) fieldOrder(t types.TypeID, info types.RecordInfo, ids []ID) []int {
	if o, ok := r.orders[t]; ok {
		return o
	}
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(r.Align(ids[b]), r.Align(ids[a])); c != 0 {
			return c
		}
		return strings.Compare(info.Fields[a].Name, info.Fields[b].Name)
	})
	r.orders[t] = order
	return order
}

// FieldIndex returns the struct position of a record label.
func (r *Resolver) FieldIndex(record types.TypeID, name string) (uint32, error) {
	info, ok := r.Types.RecordInfo(record)
	if !ok {
		return 0, fmt.Errorf("layout: type#%d is not a record", record)
	}
	if _, ok := r.orders[record]; !ok {
		if _, err := r.Resolve(record); err != nil {
			return 0, err
		}
	}
	order := r.orders[record]
	for pos, src := range order {
		if info.Fields[src].Name == name {
			return safecast.Conv[uint32](pos)
		}
	}
	return 0, fmt.Errorf("layout: record type#%d has no field %q", record, name)
}

func (r *Resolver) union(t types.TypeID, state *resolveState) (ID, *Error) {
	info, _ := r.Types.UnionInfo(t)
	state.index[t] = len(state.stack)
	state.stack = append(state.stack, t)
	variants := make([]Variant, len(info.Tags))
	var children []ID
	var lerr *Error
	for i, tag := range info.Tags {
		fields := make([]ID, len(tag.Args))
		for j, a := range tag.Args {
			id, err := r.resolve(a, state)
			if err != nil {
				lerr = err
				break
			}
			fields[j] = id
		}
		if lerr != nil {
			break
		}
		variants[i] = Variant{Name: tag.Name, Fields: fields}
		children = append(children, fields...)
	}
	state.stack = state.stack[:len(state.stack)-1]
	delete(state.index, t)
	if lerr != nil {
		return NoID, lerr
	}

	l := Layout{Kind: KindUnion, Variants: variants, Recursive: r.Layouts.RefersToSelf(children)}
	l.Repr, l.NullTag = chooseRepr(variants, l.Recursive)
	switch l.Repr {
	case ReprDirect:
		return r.Layouts.Struct(variants[0].Fields), nil
	case ReprSingleTagNoPayload:
		return r.Layouts.Unit(), nil
	}
	return r.Layouts.Intern(l), nil
}

// chooseRepr picks the cheapest representation for a union.
func chooseRepr(variants []Variant, recursive bool) (Repr, uint32) {
	nonNullary := 0
	nullTag := uint32(0)
	for i, v := range variants {
		if len(v.Fields) > 0 {
			nonNullary++
		} else {
			nullTag = uint32(i) // #nosec G115 -- bounded by variant count
		}
	}
	if !recursive {
		switch {
		case len(variants) == 1 && nonNullary == 0:
			return ReprSingleTagNoPayload, 0
		case len(variants) == 1:
			return ReprDirect, 0
		case nonNullary == 0 && len(variants) <= 256:
			return ReprByteTag, 0
		}
		return ReprTagged, 0
	}
	if nonNullary == 1 && len(variants) == 2 {
		return ReprNullablePointer, nullTag
	}
	return ReprPointerTag, 0
}

func (r *Resolver) closure(t types.TypeID, state *resolveState) (ID, *Error) {
	fn, _ := r.Types.FuncInfo(t)
	lt, ok := r.Types.Lookup(fn.Lambdas)
	if !ok || lt.Kind != types.KindLambdaSet {
		return NoID, &Error{Kind: ErrUnresolvedLambdaSet, Type: t}
	}
	return r.lambdaSet(fn.Lambdas, state)
}

func (r *Resolver) lambdaSet(t types.TypeID, state *resolveState) (ID, *Error) {
	info, _ := r.Types.LambdaSetInfo(t)
	members := make([]Member, len(info.Members))
	capturing := false
	for i, m := range info.Members {
		caps := make([]ID, len(m.Captures))
		for j, c := range m.Captures {
			id, err := r.resolve(c, state)
			if err != nil {
				return NoID, err
			}
			caps[j] = id
		}
		if len(caps) > 0 {
			capturing = true
		}
		members[i] = Member{Symbol: m.Symbol, Captures: caps}
	}
	l := Layout{Kind: KindClosure, Members: members}
	switch {
	case len(members) <= 1:
		l.Closure = ClosureStruct
	case !capturing && len(members) <= 256:
		l.Closure = ClosureEnum
	default:
		l.Closure = ClosureUnion
	}
	return r.Layouts.Intern(l), nil
}
