package types

import (
	"testing"

	"monoc/internal/symbols"
)

func TestUnifyBindsVariables(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	a := in.Var("a")
	poly := in.Func([]TypeID{in.List(a)}, a, NoTypeID)
	concrete := in.Func([]TypeID{in.List(b.I64)}, b.I64, NoTypeID)

	s := Subst{}
	if err := in.Unify(poly, concrete, s); err != nil {
		t.Fatalf("unify: %v", err)
	}
	if s[a] != b.I64 {
		t.Fatalf("a bound to %s, want I64", in.String(s[a]))
	}
	if got := in.Apply(s, poly); got != concrete {
		t.Fatalf("apply: got %s, want %s", in.String(got), in.String(concrete))
	}
}

func TestUnifyRejectsWidthMismatch(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if err := in.Unify(in.List(b.I64), in.List(b.I32), Subst{}); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestApplyRecursiveUnion(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	a := in.Var("a")
	list := in.Reserve()
	in.DefineUnion(list, []Tag{{Name: "Cons", Args: []TypeID{a, list}}, {Name: "Nil"}})
	if !in.HasVars(list) {
		t.Fatalf("ConsList a must contain a variable")
	}

	got := in.Apply(Subst{a: b.I64}, list)
	if in.HasVars(got) {
		t.Fatalf("applied type still has variables: %s", in.String(got))
	}
	info, ok := in.UnionInfo(got)
	if !ok {
		t.Fatalf("applied type is not a union")
	}
	idx, ok := info.TagIndex("Cons")
	if !ok {
		t.Fatalf("missing Cons")
	}
	cons := info.Tags[idx]
	if cons.Args[0] != b.I64 || cons.Args[1] != got {
		t.Fatalf("Cons args = %v, want [I64 self]", cons.Args)
	}
}

func TestLambdaSetMembersSorted(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	interns := symbols.NewInterns()
	home := interns.Module("Test")
	f := interns.Insert(home, "f")
	g := interns.Insert(home, "g")
	set := in.LambdaSet([]LambdaMember{{Symbol: g, Captures: []TypeID{b.I64}}, {Symbol: f}})
	info, _ := in.LambdaSetInfo(set)
	if info.Members[0].Symbol != f || info.Members[1].Symbol != g {
		t.Fatalf("members not sorted: %#v", info.Members)
	}
	if again := in.LambdaSet([]LambdaMember{{Symbol: f}, {Symbol: g, Captures: []TypeID{b.I64}}}); again != set {
		t.Fatalf("lambda sets not deduplicated")
	}
}

func TestStringRendersTypes(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	rec := in.Record([]Field{{Name: "y", Type: b.F64}, {Name: "x", Type: in.List(b.I64)}})
	if got := in.String(rec); got != "{ x : List I64, y : F64 }" {
		t.Fatalf("record string = %q", got)
	}
	if got := in.String(b.Bool); got != "[False, True]" {
		t.Fatalf("bool string = %q", got)
	}
}
