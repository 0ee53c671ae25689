package layout_test

import (
	"errors"
	"testing"

	"monoc/internal/layout"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

func newResolver() (*types.Interner, *layout.Resolver) {
	tin := types.NewInterner()
	return tin, layout.NewResolver(tin, layout.X86_64LinuxGNU())
}

func TestResolveUnionRepresentations(t *testing.T) {
	tin, r := newResolver()
	b := tin.Builtins()

	cases := []struct {
		name string
		typ  types.TypeID
		kind layout.Kind
		repr layout.Repr
	}{
		{"bool", b.Bool, layout.KindUnion, layout.ReprByteTag},
		{"enum", tin.Union([]types.Tag{{Name: "Red"}, {Name: "Green"}, {Name: "Blue"}}), layout.KindUnion, layout.ReprByteTag},
		{"unit tag", tin.Union([]types.Tag{{Name: "Unit"}}), layout.KindStruct, layout.ReprNone},
		{"single payload", tin.Union([]types.Tag{{Name: "Pair", Args: []types.TypeID{b.I64, b.I64}}}), layout.KindStruct, layout.ReprNone},
		{"maybe", tin.Union([]types.Tag{{Name: "Just", Args: []types.TypeID{b.I64}}, {Name: "Nothing"}}), layout.KindUnion, layout.ReprTagged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := r.Resolve(tc.typ)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			l := r.Layouts.Get(id)
			if l.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", l.Kind, tc.kind)
			}
			if tc.kind == layout.KindUnion && l.Repr != tc.repr {
				t.Fatalf("repr = %s, want %s", l.Repr, tc.repr)
			}
		})
	}
}

func TestResolveRecursiveUnionIsBoxed(t *testing.T) {
	tin, r := newResolver()
	b := tin.Builtins()

	consList := tin.Reserve()
	tin.DefineUnion(consList, []types.Tag{{Name: "Cons", Args: []types.TypeID{b.I64, consList}}, {Name: "Nil"}})
	id, err := r.Resolve(consList)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	l := r.Layouts.Get(id)
	if !l.Recursive || l.Repr != layout.ReprNullablePointer {
		t.Fatalf("cons list: recursive=%v repr=%s", l.Recursive, l.Repr)
	}
	if l.NullTag != 1 {
		t.Fatalf("Nil must be the null tag, got %d", l.NullTag)
	}
	tail := r.Layouts.Get(l.Variants[0].Fields[1])
	if tail.Kind != layout.KindBoxed || tail.Depth != 0 {
		t.Fatalf("tail field = %+v, want boxed depth 0", tail)
	}
	if !r.Layouts.IsHeap(id) {
		t.Fatalf("recursive union must live on the heap")
	}

	// A second, structurally equal instantiation must produce the same layout.
	a := tin.Var("a")
	generic := tin.Reserve()
	tin.DefineUnion(generic, []types.Tag{{Name: "Cons", Args: []types.TypeID{a, generic}}, {Name: "Nil"}})
	inst := tin.Apply(types.Subst{a: b.I64}, generic)
	id2, err := r.Resolve(inst)
	if err != nil {
		t.Fatalf("resolve instance: %v", err)
	}
	if id2 != id {
		t.Fatalf("equal recursive types got different layouts: %d vs %d", id, id2)
	}
}

func TestResolveRecursiveWithManyTagsUsesPointerTag(t *testing.T) {
	tin, r := newResolver()
	b := tin.Builtins()
	tree := tin.Reserve()
	tin.DefineUnion(tree, []types.Tag{
		{Name: "Empty"},
		{Name: "Leaf", Args: []types.TypeID{b.I64}},
		{Name: "Node", Args: []types.TypeID{tree, tree}},
	})
	id := r.MustResolve(tree)
	l := r.Layouts.Get(id)
	if l.Repr != layout.ReprPointerTag {
		t.Fatalf("repr = %s, want pointer-tag", l.Repr)
	}
	if l.PayloadOffset() != 1 {
		t.Fatalf("payload offset = %d, want 1", l.PayloadOffset())
	}
}

func TestResolveUnresolvedVariableFails(t *testing.T) {
	tin, r := newResolver()
	_, err := r.Resolve(tin.List(tin.Var("a")))
	var lerr *layout.Error
	if !errors.As(err, &lerr) || lerr.Kind != layout.ErrUnresolvedVar {
		t.Fatalf("expected unresolved variable error, got %v", err)
	}
}

func TestResolveNumberVariableDefaults(t *testing.T) {
	tin, r := newResolver()
	r.DefaultIntWidth = 32
	id := r.MustResolve(tin.NumVar("n", types.NumInt))
	l := r.Layouts.Get(id)
	if l.Kind != layout.KindInt || l.Width != 32 || !l.Signed {
		t.Fatalf("number default = %+v", l)
	}
}

func TestRecordFieldOrder(t *testing.T) {
	tin, r := newResolver()
	b := tin.Builtins()
	rec := tin.Record([]types.Field{
		{Name: "flag", Type: b.U8},
		{Name: "y", Type: b.F64},
		{Name: "list", Type: tin.List(b.I64)},
	})
	id := r.MustResolve(rec)
	want := []string{"list", "y", "flag"}
	for i, name := range want {
		idx, err := r.FieldIndex(rec, name)
		if err != nil {
			t.Fatalf("field %s: %v", name, err)
		}
		if int(idx) != i {
			t.Fatalf("field %s at %d, want %d", name, idx, i)
		}
	}
	if got := r.Size(id); got != 40 {
		t.Fatalf("size = %d, want 40", got)
	}
	if len(r.Layouts.RefcountedFields(id, -1)) != 1 {
		t.Fatalf("expected exactly the list field to be refcounted")
	}
}

func TestResolveLambdaSetReprs(t *testing.T) {
	tin, r := newResolver()
	b := tin.Builtins()
	interns := symbols.NewInterns()
	home := interns.Module("Test")
	f := interns.Insert(home, "f")
	g := interns.Insert(home, "g")

	fn := func(members ...types.LambdaMember) types.TypeID {
		return tin.Func([]types.TypeID{b.I64}, b.I64, tin.LambdaSet(members))
	}
	cases := []struct {
		name string
		typ  types.TypeID
		want layout.ClosureRepr
	}{
		{"single", fn(types.LambdaMember{Symbol: f, Captures: []types.TypeID{b.I64}}), layout.ClosureStruct},
		{"enum", fn(types.LambdaMember{Symbol: f}, types.LambdaMember{Symbol: g}), layout.ClosureEnum},
		{"union", fn(types.LambdaMember{Symbol: f}, types.LambdaMember{Symbol: g, Captures: []types.TypeID{b.I64}}), layout.ClosureUnion},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := r.Layouts.Get(r.MustResolve(tc.typ))
			if l.Kind != layout.KindClosure || l.Closure != tc.want {
				t.Fatalf("got %s/%s, want closure/%s", l.Kind, l.Closure, tc.want)
			}
		})
	}

	unresolved := tin.Func([]types.TypeID{b.I64}, b.I64, tin.Var("lambdas"))
	if _, err := r.Resolve(unresolved); err == nil {
		t.Fatalf("expected error for unresolved lambda set")
	}
}
