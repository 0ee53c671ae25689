package lambdaset_test

import (
	"strings"
	"testing"

	"monoc/internal/ir"
	"monoc/internal/lambdaset"
	"monoc/internal/layout"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

type fixture struct {
	in   *symbols.Interns
	home symbols.ModuleID
	ty   *types.Interner
	res  *layout.Resolver
}

func newFixture() *fixture {
	in := symbols.NewInterns()
	ty := types.NewInterner()
	return &fixture{in: in, home: in.Module("Test"), ty: ty, res: layout.NewResolver(ty, layout.X86_64LinuxGNU())}
}

func (f *fixture) fresh() symbols.Symbol { return f.in.Fresh(f.home) }

func TestReprSelection(t *testing.T) {
	f := newFixture()
	i64 := f.ty.Builtins().I64
	a, b := f.fresh(), f.fresh()

	cases := []struct {
		name    string
		members []types.LambdaMember
		want    layout.ClosureRepr
	}{
		{"single", []types.LambdaMember{{Symbol: a, Captures: []types.TypeID{i64}}}, layout.ClosureStruct},
		{"enum", []types.LambdaMember{{Symbol: a}, {Symbol: b}}, layout.ClosureEnum},
		{"union", []types.LambdaMember{{Symbol: a, Captures: []types.TypeID{i64}}, {Symbol: b}}, layout.ClosureUnion},
	}
	for _, tc := range cases {
		set, err := lambdaset.Resolve(f.res, f.ty.LambdaSet(tc.members))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if set.Repr() != tc.want {
			t.Fatalf("%s: repr %s, want %s", tc.name, set.Repr(), tc.want)
		}
	}
}

func TestConstructAndUnpack(t *testing.T) {
	f := newFixture()
	i64 := f.ty.Builtins().I64
	a, b := f.fresh(), f.fresh()
	x := f.fresh()
	set, err := lambdaset.Resolve(f.res, f.ty.LambdaSet([]types.LambdaMember{
		{Symbol: a, Captures: []types.TypeID{i64}},
		{Symbol: b},
	}))
	if err != nil {
		t.Fatal(err)
	}
	p := ir.NewPrinter(f.in)
	e, err := set.Construct(a, []symbols.Symbol{x})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Expr(&e); got != "ClosureTag(Test.0) Test.2" {
		t.Fatalf("construct = %q", got)
	}
	if _, err := set.Construct(b, []symbols.Symbol{x}); err == nil {
		t.Fatalf("wrong capture count accepted")
	}
	env := f.in.Attr(symbols.AttrClosure)
	reads := set.Unpack(env, a)
	if len(reads) != 1 || p.Expr(&reads[0]) != "Index 1 #Attr.12" {
		t.Fatalf("unpack = %v", reads)
	}
	if set.EnvLayout(b) != layout.NoID || set.EnvLayout(a) != set.Layout {
		t.Fatalf("env layouts wrong")
	}
}

func TestDispatchUnionSwitchesOnTag(t *testing.T) {
	f := newFixture()
	i64 := f.ty.Builtins().I64
	a, b := f.fresh(), f.fresh() // Test.0, Test.1
	fn := f.fresh()              // Test.2
	arg := f.fresh()             // Test.3
	out := f.fresh()             // Test.4
	set, err := lambdaset.Resolve(f.res, f.ty.LambdaSet([]types.LambdaMember{
		{Symbol: a, Captures: []types.TypeID{i64}},
		{Symbol: b},
	}))
	if err != nil {
		t.Fatal(err)
	}
	members := []symbols.Symbol{a, b}
	s := set.Dispatch(lambdaset.Call{
		Value:    fn,
		Args:     []symbols.Symbol{arg},
		Result:   f.res.Layouts.I64(),
		Assigned: out,
		Hole:     ir.NewRet(out),
		Fresh:    f.fresh,
		Target:   func(i int) ir.ProcName { return ir.ProcName{Symbol: members[i]} },
	})
	want := strings.Join([]string{
		"let Test.5 = Index 0 Test.2;",
		"joinpoint Test.6 Test.4:",
		"    ret Test.4;",
		"in",
		"switch Test.5:",
		"    case 0:",
		"        let Test.7 = CallByName Test.0 Test.3 Test.2;",
		"        jump Test.6 Test.7;",
		"    default:",
		"        let Test.8 = CallByName Test.1 Test.3;",
		"        jump Test.6 Test.8;",
		"",
	}, "\n")
	if got := ir.NewPrinter(f.in).Stmt(s, 0); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}
