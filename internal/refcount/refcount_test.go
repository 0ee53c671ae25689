package refcount_test

import (
	"strings"
	"testing"

	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/lowlevel"
	"monoc/internal/refcount"
	"monoc/internal/symbols"
)

type fixture struct {
	in   *symbols.Interns
	home symbols.ModuleID
	ls   *layout.Interner
	str  layout.ID
	i64  layout.ID
}

func newFixture() *fixture {
	in := symbols.NewInterns()
	ls := layout.NewInterner()
	return &fixture{
		in:   in,
		home: in.Module("Test"),
		ls:   ls,
		str:  ls.Intern(layout.Layout{Kind: layout.KindStr}),
		i64:  ls.I64(),
	}
}

func (f *fixture) fresh() symbols.Symbol { return f.in.Fresh(f.home) }

func (f *fixture) run(t *testing.T, procs ...*ir.Proc) refcount.Stats {
	t.Helper()
	st, err := refcount.Run(procs, f.ls)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := ir.Validate(procs, f.in); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return st
}

func (f *fixture) expect(t *testing.T, p *ir.Proc, lines ...string) {
	t.Helper()
	want := strings.Join(append(lines, ""), "\n")
	if got := ir.NewPrinter(f.in).Proc(p); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestReturnedParameterIsOwned(t *testing.T) {
	f := newFixture()
	name := f.fresh()
	x := f.fresh()
	p := &ir.Proc{
		Name:   ir.ProcName{Symbol: name},
		Params: []ir.Param{{Symbol: x, Layout: f.str}},
		Body:   ir.NewRet(x),
		Ret:    f.str,
	}
	f.run(t, p)
	if p.Params[0].Borrowed {
		t.Fatalf("returned parameter inferred borrowed")
	}
	f.expect(t, p, "procedure Test.0 (Test.1):", "    ret Test.1;")
}

func TestReadOnlyParameterIsBorrowed(t *testing.T) {
	f := newFixture()
	name := f.fresh()
	s := f.fresh()
	n := f.fresh()
	p := &ir.Proc{
		Name:   ir.ProcName{Symbol: name},
		Params: []ir.Param{{Symbol: s, Layout: f.str}},
		Body:   ir.NewLet(n, f.i64, ir.LowLevel(lowlevel.StrLen, s), ir.NewRet(n)),
		Ret:    f.i64,
	}
	st := f.run(t, p)
	if !p.Params[0].Borrowed || st.Borrowed != 1 {
		t.Fatalf("parameter should be borrowed: %+v", st)
	}
	f.expect(t, p,
		"procedure Test.0 (Test.1):",
		"    let Test.2 = lowlevel StrLen Test.1;",
		"    ret Test.2;",
	)
}

func TestInsertion(t *testing.T) {
	cases := []struct {
		name  string
		build func(f *fixture, name symbols.Symbol) *ir.Stmt
		want  []string
	}{
		{
			name: "shared value is inc'd before its first consuming use",
			build: func(f *fixture, _ symbols.Symbol) *ir.Stmt {
				s, r := f.fresh(), f.fresh()
				pair := f.ls.Struct([]layout.ID{f.str, f.str})
				return ir.NewLet(s, f.str, ir.StrLit("a"),
					ir.NewLet(r, pair, ir.Struct(s, s), ir.NewRet(r)))
			},
			want: []string{
				"    let Test.1 = \"a\";",
				"    inc Test.1;",
				"    let Test.2 = Struct {Test.1, Test.1};",
				"    ret Test.2;",
			},
		},
		{
			name: "value is released after its last borrowed use",
			build: func(f *fixture, _ symbols.Symbol) *ir.Stmt {
				s, n := f.fresh(), f.fresh()
				return ir.NewLet(s, f.str, ir.StrLit("a"),
					ir.NewLet(n, f.i64, ir.LowLevel(lowlevel.StrLen, s), ir.NewRet(n)))
			},
			want: []string{
				"    let Test.1 = \"a\";",
				"    let Test.2 = lowlevel StrLen Test.1;",
				"    dec Test.1;",
				"    ret Test.2;",
			},
		},
		{
			name: "branch that does not read a value releases it first",
			build: func(f *fixture, _ symbols.Symbol) *ir.Stmt {
				s, b, u := f.fresh(), f.fresh(), f.fresh()
				return ir.NewLet(s, f.str, ir.StrLit("a"),
					ir.NewLet(b, f.ls.Bool(), ir.BoolLit(true),
						ir.NewIf(b,
							ir.NewRet(s),
							ir.NewLet(u, f.str, ir.StrLit("b"), ir.NewRet(u)))))
			},
			want: []string{
				"    let Test.1 = \"a\";",
				"    let Test.2 = true;",
				"    if Test.2 then",
				"        ret Test.1;",
				"    else",
				"        dec Test.1;",
				"        let Test.3 = \"b\";",
				"        ret Test.3;",
			},
		},
		{
			name: "unused value is released at once",
			build: func(f *fixture, _ symbols.Symbol) *ir.Stmt {
				s, n := f.fresh(), f.fresh()
				return ir.NewLet(s, f.str, ir.StrLit("a"),
					ir.NewLet(n, f.i64, ir.I64Lit(1), ir.NewRet(n)))
			},
			want: []string{
				"    let Test.1 = \"a\";",
				"    dec Test.1;",
				"    let Test.2 = 1i64;",
				"    ret Test.2;",
			},
		},
	}
	for _, tc := range cases {
		f := newFixture()
		name := f.fresh()
		p := &ir.Proc{Name: ir.ProcName{Symbol: name}, Entry: true}
		p.Body = tc.build(f, name)
		f.run(t, p)
		want := strings.Join(append(append([]string{"procedure Test.0 ():"}, tc.want...), ""), "\n")
		if got := ir.NewPrinter(f.in).Proc(p); got != want {
			t.Fatalf("%s:\ngot:\n%s\nwant:\n%s", tc.name, got, want)
		}
	}
}

func TestFullyProjectedCellIsDecrefd(t *testing.T) {
	f := newFixture()
	boxed := f.ls.Intern(layout.Layout{Kind: layout.KindBoxed})
	cons := f.ls.Intern(layout.Layout{
		Kind: layout.KindUnion,
		Repr: layout.ReprPointerTag,
		Variants: []layout.Variant{
			{Name: "Cons", Fields: []layout.ID{f.str, boxed}},
			{Name: "Nil"},
		},
		Recursive: true,
	})
	pair := f.ls.Struct([]layout.ID{f.str, boxed})

	name := f.fresh()
	l, h, tl, r := f.fresh(), f.fresh(), f.fresh(), f.fresh()
	p := &ir.Proc{
		Name:   ir.ProcName{Symbol: name},
		Params: []ir.Param{{Symbol: l, Layout: cons}},
		Body: ir.NewLet(h, f.str, ir.Index(l, cons, 1, 0),
			ir.NewLet(tl, boxed, ir.Index(l, cons, 2, 0),
				ir.NewLet(r, pair, ir.Struct(h, tl), ir.NewRet(r)))),
		Ret: pair,
	}
	st := f.run(t, p)
	f.expect(t, p,
		"procedure Test.0 (Test.1):",
		"    let Test.2 = Index 1 Test.1;",
		"    let Test.3 = Index 2 Test.1;",
		"    decref Test.1;",
		"    let Test.4 = Struct {Test.2, Test.3};",
		"    ret Test.4;",
	)
	if st.Decrefs != 1 || st.Incs != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestFullyProjectedStructIsDecrefd(t *testing.T) {
	f := newFixture()
	rec := f.ls.Struct([]layout.ID{f.str, f.i64})
	name := f.fresh()
	x, a := f.fresh(), f.fresh()
	p := &ir.Proc{
		Name:   ir.ProcName{Symbol: name},
		Params: []ir.Param{{Symbol: x, Layout: rec}},
		Body:   ir.NewLet(a, f.str, ir.Index(x, rec, 0, -1), ir.NewRet(a)),
		Ret:    f.str,
	}
	st := f.run(t, p)
	f.expect(t, p,
		"procedure Test.0 (Test.1):",
		"    let Test.2 = Index 0 Test.1;",
		"    decref Test.1;",
		"    ret Test.2;",
	)
	if st.Decrefs != 1 || st.Decs != 0 || st.Incs != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPartialProjectionIncsField(t *testing.T) {
	f := newFixture()
	pairL := f.ls.Struct([]layout.ID{f.str, f.str})
	name := f.fresh()
	x, a := f.fresh(), f.fresh()
	p := &ir.Proc{
		Name:   ir.ProcName{Symbol: name},
		Params: []ir.Param{{Symbol: x, Layout: pairL}},
		Body:   ir.NewLet(a, f.str, ir.Index(x, pairL, 0, -1), ir.NewRet(a)),
		Ret:    f.str,
	}
	f.run(t, p)
	f.expect(t, p,
		"procedure Test.0 (Test.1):",
		"    let Test.2 = Index 0 Test.1;",
		"    inc Test.2;",
		"    dec Test.1;",
		"    ret Test.2;",
	)
}

func TestFallibleCallGetsCleanup(t *testing.T) {
	f := newFixture()
	add := f.fresh()
	a, b, c := f.fresh(), f.fresh(), f.fresh()
	adder := &ir.Proc{
		Name: ir.ProcName{Symbol: add},
		Body: ir.NewLet(a, f.i64, ir.I64Lit(1),
			ir.NewLet(b, f.i64, ir.I64Lit(2),
				ir.NewLet(c, f.i64, ir.LowLevel(lowlevel.NumAdd, a, b), ir.NewRet(c)))),
		Ret: f.i64,
	}

	main := f.fresh()
	s, r, n := f.fresh(), f.fresh(), f.fresh()
	caller := &ir.Proc{
		Name:  ir.ProcName{Symbol: main},
		Entry: true,
		Body: ir.NewLet(s, f.str, ir.StrLit("x"),
			ir.NewLet(r, f.i64, ir.Call(adder.Name),
				ir.NewLet(n, f.i64, ir.LowLevel(lowlevel.StrLen, s), ir.NewRet(r)))),
		Ret: f.i64,
	}

	st := f.run(t, adder, caller)
	if !adder.Fallible || !caller.Fallible || st.Fallible != 2 {
		t.Fatalf("fallibility not propagated: %+v", st)
	}
	if st.Invokes != 1 {
		t.Fatalf("invokes = %d, want 1", st.Invokes)
	}
	f.expect(t, adder,
		"procedure Test.0 ():",
		"    let Test.1 = 1i64;",
		"    let Test.2 = 2i64;",
		"    let Test.3 = lowlevel NumAdd Test.1 Test.2;",
		"    ret Test.3;",
	)
	f.expect(t, caller,
		"procedure Test.4 ():",
		"    let Test.5 = \"x\";",
		"    invoke Test.6 = CallByName Test.0 catch",
		"        dec Test.5;",
		"        unreachable;",
		"    let Test.7 = lowlevel StrLen Test.5;",
		"    dec Test.5;",
		"    ret Test.6;",
	)
}

func TestJumpKeepsJoinBodyInputsAlive(t *testing.T) {
	f := newFixture()
	name := f.fresh()
	s, j, x, n, one := f.fresh(), f.fresh(), f.fresh(), f.fresh(), f.fresh()
	p := &ir.Proc{
		Name:  ir.ProcName{Symbol: name},
		Entry: true,
		Body: ir.NewLet(s, f.str, ir.StrLit("a"),
			ir.NewJoin(j, []ir.Param{{Symbol: x, Layout: f.i64}},
				ir.NewLet(n, f.i64, ir.LowLevel(lowlevel.StrLen, s), ir.NewRet(n)),
				ir.NewLet(one, f.i64, ir.I64Lit(1), ir.NewJump(j, one)))),
		Ret: f.i64,
	}
	f.run(t, p)
	f.expect(t, p,
		"procedure Test.0 ():",
		"    let Test.1 = \"a\";",
		"    joinpoint Test.2 Test.3:",
		"        let Test.4 = lowlevel StrLen Test.1;",
		"        dec Test.1;",
		"        ret Test.4;",
		"    in",
		"    let Test.5 = 1i64;",
		"    jump Test.2 Test.5;",
	)
}
