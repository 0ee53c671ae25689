package ir_test

import (
	"strings"
	"testing"

	"monoc/internal/ir"
	"monoc/internal/lowlevel"
	"monoc/internal/symbols"
)

type fixture struct {
	in   *symbols.Interns
	home symbols.ModuleID
	num  symbols.ModuleID
}

func newFixture() *fixture {
	in := symbols.NewInterns()
	num, _ := in.LookupModule(symbols.ModuleNum)
	return &fixture{in: in, home: in.Module("Test"), num: num}
}

func (f *fixture) fresh() symbols.Symbol { return f.in.Fresh(f.home) }

func TestPrintProgramOrdersEntryLast(t *testing.T) {
	f := newFixture()
	main := f.fresh() // Test.0
	a := f.fresh()
	b := f.fresh()
	r := f.fresh()

	add := f.in.InsertAt(f.num, 24, "add")
	x := f.in.Attr(symbols.AttrArg1)
	y := f.in.Attr(symbols.AttrArg2)
	res := f.fresh()
	addProc := &ir.Proc{
		Name:   ir.ProcName{Symbol: add},
		Params: []ir.Param{{Symbol: x}, {Symbol: y}},
		Body:   ir.NewLet(res, 0, ir.LowLevel(lowlevel.NumAdd, x, y), ir.NewRet(res)),
	}
	mainProc := &ir.Proc{
		Name:  ir.ProcName{Symbol: main},
		Entry: true,
		Body: ir.NewLet(a, 0, ir.I64Lit(1),
			ir.NewLet(b, 0, ir.I64Lit(2),
				ir.NewLet(r, 0, ir.Call(addProc.Name, a, b), ir.NewRet(r)))),
	}

	got := ir.NewPrinter(f.in).Program([]*ir.Proc{mainProc, addProc})
	want := strings.Join([]string{
		"procedure Num.24 (#Attr.2, #Attr.3):",
		"    let Test.4 = lowlevel NumAdd #Attr.2 #Attr.3;",
		"    ret Test.4;",
		"",
		"procedure Test.0 ():",
		"    let Test.1 = 1i64;",
		"    let Test.2 = 2i64;",
		"    let Test.3 = CallByName Num.24 Test.1 Test.2;",
		"    ret Test.3;",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}
	if err := ir.Validate([]*ir.Proc{mainProc, addProc}, f.in); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPrintControlFlow(t *testing.T) {
	f := newFixture()
	main := f.fresh()
	j := f.fresh()
	p := f.fresh()
	c := f.fresh()
	one := f.fresh()
	two := f.fresh()
	l := f.fresh()
	fl := f.fresh()

	body := ir.NewJoin(j, []ir.Param{{Symbol: p}}, ir.NewRet(p),
		ir.NewLet(c, 0, ir.U8Lit(0),
			&ir.Stmt{Kind: ir.StmtSwitch, Switch: ir.SwitchStmt{
				Cond: c,
				Cases: []ir.Case{
					{Value: 1, Body: ir.NewLet(one, 0, ir.I64Lit(1), ir.NewJump(j, one))},
				},
				Default: ir.NewLet(two, 0, ir.I64Lit(2), ir.NewJump(j, two)),
			}}))
	proc := &ir.Proc{Name: ir.ProcName{Symbol: main}, Body: body, Entry: true}

	want := strings.Join([]string{
		"procedure Test.0 ():",
		"    joinpoint Test.1 Test.2:",
		"        ret Test.2;",
		"    in",
		"    let Test.3 = 0u8;",
		"    switch Test.3:",
		"        case 1:",
		"            let Test.4 = 1i64;",
		"            jump Test.1 Test.4;",
		"        default:",
		"            let Test.5 = 2i64;",
		"            jump Test.1 Test.5;",
		"",
	}, "\n")
	if got := ir.NewPrinter(f.in).Proc(proc); got != want {
		t.Fatalf("got:\n%s\nwant:\n%s", got, want)
	}

	inv := &ir.Stmt{Kind: ir.StmtInvoke, Invoke: ir.InvokeStmt{
		Symbol:  fl,
		Call:    ir.Call(proc.Name),
		Cleanup: ir.NewRefcount(ir.Dec, l, ir.NewUnreachable()),
		Next:    ir.NewRet(fl),
	}}
	wantInv := strings.Join([]string{
		"invoke Test.7 = CallByName Test.0 catch",
		"    dec Test.6;",
		"    unreachable;",
		"ret Test.7;",
		"",
	}, "\n")
	if got := ir.NewPrinter(f.in).Stmt(inv, 0); got != wantInv {
		t.Fatalf("got:\n%s\nwant:\n%s", got, wantInv)
	}
}

func TestPrintExpressions(t *testing.T) {
	f := newFixture()
	a := f.fresh()
	b := f.fresh()
	clo := f.fresh()
	p := ir.NewPrinter(f.in)
	cases := []struct {
		expr ir.Expr
		want string
	}{
		{ir.I64Lit(-1), "-1i64"},
		{ir.FloatLit(3.14, 64), "3.14f64"},
		{ir.FloatLit(1, 64), "1f64"},
		{ir.BoolLit(true), "true"},
		{ir.U8Lit(2), "2u8"},
		{ir.StrLit("hi"), `"hi"`},
		{ir.Struct(), "Struct {}"},
		{ir.Struct(a, b), "Struct {Test.0, Test.1}"},
		{ir.Expr{Kind: ir.ExprTag, Tag: "Just", Args: []symbols.Symbol{a, b}}, "Just Test.0 Test.1"},
		{ir.Index(a, 0, 1, 0), "Index 1 Test.0"},
		{ir.Expr{Kind: ir.ExprArray}, "Array []"},
		{ir.Expr{Kind: ir.ExprClosureTag, Sym: clo, Args: []symbols.Symbol{a, b}}, "ClosureTag(Test.2) Test.0 Test.1"},
		{ir.GetTagID(a, 0), "GetTagId Test.0"},
		{ir.LowLevel(lowlevel.DictEmpty), "lowlevel DictEmpty"},
	}
	for _, tc := range cases {
		if got := p.Expr(&tc.expr); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}

func TestValidateReportsDefects(t *testing.T) {
	f := newFixture()
	main := f.fresh()
	j := f.fresh()
	p := f.fresh()
	ghost := f.fresh()
	body := ir.NewJoin(j, []ir.Param{{Symbol: p}}, ir.NewRet(p), ir.NewJump(j))
	procs := []*ir.Proc{
		{Name: ir.ProcName{Symbol: main}, Body: body},
		{Name: ir.ProcName{Symbol: main}, Body: ir.NewRet(ghost)},
	}
	err := ir.Validate(procs, f.in)
	if err == nil {
		t.Fatalf("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"duplicate procedure", "0 arguments, join point takes 1", "unbound symbol Test.3"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q does not mention %q", msg, want)
		}
	}
}

func TestFreeVars(t *testing.T) {
	f := newFixture()
	x := f.fresh()
	y := f.fresh()
	z := f.fresh()
	j := f.fresh()
	p := f.fresh()
	s := ir.NewJoin(j, []ir.Param{{Symbol: p}},
		ir.NewLet(z, 0, ir.Struct(p, x), ir.NewRet(z)),
		ir.NewIf(y, ir.NewJump(j, y), ir.NewRet(x)))
	fv := ir.FreeVars(s)
	if len(fv) != 2 || !fv.Has(x) || !fv.Has(y) {
		t.Fatalf("free vars = %v", fv)
	}
}
