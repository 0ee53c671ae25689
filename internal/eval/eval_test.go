package eval_test

import (
	"context"
	"math"
	"strings"
	"testing"

	"monoc/internal/builtins"
	"monoc/internal/eval"
	"monoc/internal/hir"
	"monoc/internal/ir"
	"monoc/internal/lowlevel"
	"monoc/internal/mono"
	"monoc/internal/refcount"
	"monoc/internal/types"
)

func newProgram() (*hir.Program, *hir.Builder) {
	p := hir.NewProgram("Test")
	builtins.Install(p)
	return p, hir.NewBuilder(p)
}

// run specializes p, inserts reference counting and evaluates its single
// entry. Faults, leaks included, fail the test.
func run(t *testing.T, p *hir.Program) *eval.Outcome {
	t.Helper()
	ctx := context.Background()
	res, err := mono.Specialize(ctx, p, mono.Options{})
	if err != nil {
		t.Fatalf("specialize: %v", err)
	}
	if res.HasErrors() || len(res.Entries) != 1 {
		t.Fatalf("entries=%v problems=%v", res.Entries, res.Problems)
	}
	procs := res.Reachable()
	if _, err := refcount.Run(procs, res.Resolver.Layouts); err != nil {
		t.Fatalf("refcount: %v", err)
	}
	text := ir.NewPrinter(p.Interns).Program(procs)
	if err := ir.Validate(procs, p.Interns); err != nil {
		t.Fatalf("validate: %v\n%s", err, text)
	}
	out, err := eval.Run(ctx, procs, res.Resolver.Layouts, p.Interns, res.Procs[res.Entries[0]].Name, eval.Options{})
	if err != nil {
		t.Fatalf("eval: %v\n%s", err, text)
	}
	return out
}

func expectValue(t *testing.T, out *eval.Outcome, want string) {
	t.Helper()
	if out.Crash != nil {
		t.Fatalf("crashed: %v", out.Crash)
	}
	if out.Value != want {
		t.Fatalf("value = %s, want %s", out.Value, want)
	}
}

func TestRunAddition(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	add := builtins.MustSymbol(p.Interns, "Num.add")
	addType := b.Fn([]types.TypeID{b.B.I64, b.B.I64}, b.B.I64, b.Lambdas(types.LambdaMember{Symbol: add}))
	b.Value(main, b.Call(b.Var(add, addType), b.B.I64, b.I64(1), b.I64(2)))
	p.Expose(main)

	expectValue(t, run(t, p), "3")
}

func TestRunPeanoNumbers(t *testing.T) {
	p, b := newProgram()
	i64 := b.B.I64
	peano := b.T.Reserve()
	b.T.DefineUnion(peano, []types.Tag{{Name: "Z"}, {Name: "S", Args: []types.TypeID{peano}}})

	toInt := b.Sym("toInt")
	n := b.Sym("n")
	pred := b.Sym("pred")
	main := b.Sym("main")
	fnType := b.Fn([]types.TypeID{peano}, i64, b.Lambdas(types.LambdaMember{Symbol: toInt}))
	b.Function(toInt, fnType, []hir.Param{{Symbol: n, Type: peano}}, b.When(b.Var(n, peano), i64,
		b.Branch(b.I64(0), b.PTag(peano, "Z")),
		b.Branch(
			b.LowLevel(lowlevel.NumAdd, i64, b.I64(1), b.Call(b.Var(toInt, fnType), i64, b.Var(pred, peano))),
			b.PTag(peano, "S", b.PIdent(pred, peano)),
		),
	))
	three := b.Tag(peano, "S", b.Tag(peano, "S", b.Tag(peano, "S", b.Tag(peano, "Z"))))
	b.Value(main, b.Call(b.Var(toInt, fnType), i64, three))
	p.Expose(main)

	out := run(t, p)
	expectValue(t, out, "3")
	if out.Heap.Allocs != 3 || out.Heap.Frees != 3 {
		t.Fatalf("heap = %+v, want three cells allocated and freed", out.Heap)
	}
}

func strListType(b *hir.Builder) types.TypeID {
	list := b.T.Reserve()
	b.T.DefineUnion(list, []types.Tag{{Name: "Nil"}, {Name: "Cons", Args: []types.TypeID{b.B.Str, list}}})
	return list
}

func TestRunLinkedListLength(t *testing.T) {
	p, b := newProgram()
	i64 := b.B.I64
	list := strListType(b)
	length := b.Sym("length")
	l := b.Sym("l")
	rest := b.Sym("rest")
	main := b.Sym("main")
	fnType := b.Fn([]types.TypeID{list}, i64, b.Lambdas(types.LambdaMember{Symbol: length}))
	b.Function(length, fnType, []hir.Param{{Symbol: l, Type: list}}, b.When(b.Var(l, list), i64,
		b.Branch(b.I64(0), b.PTag(list, "Nil")),
		b.Branch(
			b.LowLevel(lowlevel.NumAdd, i64, b.I64(1), b.Call(b.Var(length, fnType), i64, b.Var(rest, list))),
			b.PTag(list, "Cons", b.PWild(b.B.Str), b.PIdent(rest, list)),
		),
	))
	value := b.Tag(list, "Cons", b.Str("a"), b.Tag(list, "Cons", b.Str("b"), b.Tag(list, "Nil")))
	b.Value(main, b.Call(b.Var(length, fnType), i64, value))
	p.Expose(main)

	expectValue(t, run(t, p), "2")
}

func TestRunReturnsLinkedList(t *testing.T) {
	p, b := newProgram()
	list := strListType(b)
	main := b.Sym("main")
	b.Value(main, b.Tag(list, "Cons", b.Str("a"), b.Tag(list, "Cons", b.Str("b"), b.Tag(list, "Nil"))))
	p.Expose(main)

	expectValue(t, run(t, p), `Cons "a" (Cons "b" Nil)`)
}

func TestRunCapturingClosure(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	k := b.Sym("k")
	f := b.Sym("f")
	lam := b.Sym("lambda")
	y := b.Sym("y")
	i64 := b.B.I64
	fnType := b.Fn([]types.TypeID{i64}, i64, b.Lambdas(types.LambdaMember{Symbol: lam, Captures: []types.TypeID{i64}}))
	closure := b.Closure(lam, fnType,
		[]hir.Param{{Symbol: y, Type: i64}},
		[]hir.Param{{Symbol: k, Type: i64}},
		b.LowLevel(lowlevel.NumAdd, i64, b.Var(y, i64), b.Var(k, i64)),
	)
	b.Value(main, b.LetVar(k, b.I64(5),
		b.LetVar(f, closure, b.Call(b.Var(f, fnType), i64, b.I64(1)))))
	p.Expose(main)

	expectValue(t, run(t, p), "6")
}

func TestRunClosureCapturingString(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	greeting := b.Sym("greeting")
	f := b.Sym("f")
	lam := b.Sym("lambda")
	name := b.Sym("name")
	str := b.B.Str
	fnType := b.Fn([]types.TypeID{str}, str, b.Lambdas(types.LambdaMember{Symbol: lam, Captures: []types.TypeID{str}}))
	closure := b.Closure(lam, fnType,
		[]hir.Param{{Symbol: name, Type: str}},
		[]hir.Param{{Symbol: greeting, Type: str}},
		b.LowLevel(lowlevel.StrConcat, str, b.Var(greeting, str), b.Var(name, str)),
	)
	b.Value(main, b.LetVar(greeting, b.Str("hello, "),
		b.LetVar(f, closure, b.Call(b.Var(f, fnType), str, b.Str("world")))))
	p.Expose(main)

	expectValue(t, run(t, p), `"hello, world"`)
}

func TestRunGuards(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{input: 5, want: `"big"`},
		{input: 2, want: `"small"`},
	}
	for _, tc := range cases {
		p, b := newProgram()
		main := b.Sym("main")
		x := b.Sym("x")
		i64 := b.B.I64
		b.Value(main, b.When(b.I64(tc.input), b.B.Str,
			b.Guarded(b.LowLevel(lowlevel.NumGt, b.B.Bool, b.Var(x, i64), b.I64(3)), b.Str("big"), b.PIdent(x, i64)),
			b.Branch(b.Str("small"), b.PWild(i64)),
		))
		p.Expose(main)

		expectValue(t, run(t, p), tc.want)
	}
}

func TestRunNestedPatterns(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	n := b.Sym("n")
	i64 := b.B.I64
	maybe := b.T.Union([]types.Tag{{Name: "Just", Args: []types.TypeID{i64}}, {Name: "Nothing"}})
	nested := b.T.Union([]types.Tag{{Name: "Just", Args: []types.TypeID{maybe}}, {Name: "Nothing"}})
	b.Value(main, b.When(b.Tag(nested, "Just", b.Tag(maybe, "Just", b.I64(7))), i64,
		b.Branch(b.Var(n, i64), b.PTag(nested, "Just", b.PTag(maybe, "Just", b.PIdent(n, i64)))),
		b.Branch(b.I64(1), b.PTag(nested, "Just", b.PTag(maybe, "Nothing"))),
		b.Branch(b.I64(0), b.PTag(nested, "Nothing")),
	))
	p.Expose(main)

	expectValue(t, run(t, p), "7")
}

func TestRunListAppend(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	listT := b.T.List(b.B.I64)
	b.Value(main, b.LowLevel(lowlevel.ListAppend, listT, b.List(listT, b.I64(1), b.I64(2)), b.I64(3)))
	p.Expose(main)

	expectValue(t, run(t, p), "[1, 2, 3]")
}

func TestRunOverflowUnwindsWithoutLeaks(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	s := b.Sym("s")
	n := b.Sym("n")
	i64 := b.B.I64
	add := builtins.MustSymbol(p.Interns, "Num.add")
	addType := b.Fn([]types.TypeID{i64, i64}, i64, b.Lambdas(types.LambdaMember{Symbol: add}))
	rec := b.T.Record([]types.Field{{Name: "n", Type: i64}, {Name: "s", Type: b.B.Str}})
	b.Value(main, b.LetVar(s, b.Str("kept"),
		b.LetVar(n, b.Call(b.Var(add, addType), i64, b.I64(math.MaxInt64), b.I64(1)),
			b.Record(rec,
				hir.RecordField{Name: "n", Value: b.Var(n, i64)},
				hir.RecordField{Name: "s", Value: b.Var(s, b.B.Str)},
			))))
	p.Expose(main)

	out := run(t, p)
	if out.Crash == nil || out.Crash.Message != "integer addition overflowed!" {
		t.Fatalf("outcome = %+v", out)
	}
	if len(out.Crash.Backtrace) != 2 || out.Crash.Backtrace[0] != "Num.24" {
		t.Fatalf("backtrace = %v", out.Crash.Backtrace)
	}
	if out.Heap.Allocs != 1 || out.Heap.Frees != 1 {
		t.Fatalf("heap = %+v", out.Heap)
	}
}

func TestRunRuntimeErrorCrashes(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	b.Value(main, b.RuntimeError(b.B.I64, "boom"))
	p.Expose(main)

	out := run(t, p)
	if out.Crash == nil || !strings.Contains(out.Crash.Error(), "boom") {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestRunWithoutRefcountingLeaks(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	s := b.Sym("s")
	b.Value(main, b.LetVar(s, b.Str("dropped"), b.I64(1)))
	p.Expose(main)

	ctx := context.Background()
	res, err := mono.Specialize(ctx, p, mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	procs := res.Reachable()
	_, err = eval.Run(ctx, procs, res.Resolver.Layouts, p.Interns, res.Procs[res.Entries[0]].Name, eval.Options{})
	if !eval.IsCode(err, eval.CodeLeak) || !strings.Contains(err.Error(), "str=1") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStepLimit(t *testing.T) {
	p, b := newProgram()
	loop := b.Sym("loop")
	n := b.Sym("n")
	main := b.Sym("main")
	i64 := b.B.I64
	fnType := b.Fn([]types.TypeID{i64}, i64, b.Lambdas(types.LambdaMember{Symbol: loop}))
	b.Function(loop, fnType, []hir.Param{{Symbol: n, Type: i64}}, b.Call(b.Var(loop, fnType), i64, b.Var(n, i64)))
	b.Value(main, b.Call(b.Var(loop, fnType), i64, b.I64(0)))
	p.Expose(main)

	ctx := context.Background()
	res, err := mono.Specialize(ctx, p, mono.Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = eval.Run(ctx, res.Reachable(), res.Resolver.Layouts, p.Interns, res.Procs[res.Entries[0]].Name, eval.Options{MaxSteps: 1000})
	if !eval.IsCode(err, eval.CodeStepLimit) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunLambdaSetChosenByIf(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{input: 5, want: `"pre-x"`},
		{input: 1, want: `"x"`},
	}
	for _, tc := range cases {
		p, b := newProgram()
		main := b.Sym("main")
		prefix := b.Sym("prefix")
		f := b.Sym("f")
		withPrefix := b.Sym("withPrefix")
		plain := b.Sym("plain")
		s1 := b.Sym("s1")
		s2 := b.Sym("s2")
		str := b.B.Str
		fnType := b.Fn([]types.TypeID{str}, str, b.Lambdas(
			types.LambdaMember{Symbol: withPrefix, Captures: []types.TypeID{str}},
			types.LambdaMember{Symbol: plain},
		))
		prefixed := b.Closure(withPrefix, fnType,
			[]hir.Param{{Symbol: s1, Type: str}},
			[]hir.Param{{Symbol: prefix, Type: str}},
			b.LowLevel(lowlevel.StrConcat, str, b.Var(prefix, str), b.Var(s1, str)),
		)
		unchanged := b.Closure(plain, fnType, []hir.Param{{Symbol: s2, Type: str}}, nil, b.Var(s2, str))
		cond := b.LowLevel(lowlevel.NumGt, b.B.Bool, b.I64(tc.input), b.I64(3))
		b.Value(main, b.LetVar(prefix, b.Str("pre-"),
			b.LetVar(f, b.If(fnType, cond, prefixed, unchanged),
				b.Call(b.Var(f, fnType), str, b.Str("x")))))
		p.Expose(main)

		out := run(t, p)
		expectValue(t, out, tc.want)
		if out.Heap.Allocs != out.Heap.Frees {
			t.Fatalf("input %d: heap = %+v", tc.input, out.Heap)
		}
	}
}

func TestRunRecordPatternKeepsProjectedField(t *testing.T) {
	p, b := newProgram()
	main := b.Sym("main")
	x := b.Sym("x")
	ints := b.T.List(b.B.I64)
	rec := b.T.Record([]types.Field{{Name: "x", Type: ints}, {Name: "y", Type: b.B.F64}})
	value := b.Record(rec,
		hir.RecordField{Name: "x", Value: b.List(ints, b.I64(1), b.I64(3), b.I64(4))},
		hir.RecordField{Name: "y", Value: b.F64(3.14)},
	)
	b.Value(main, b.Let(b.PRecord(rec, hir.FieldPattern{Name: "x", Symbol: x, Type: ints}), value, b.Var(x, ints)))
	p.Expose(main)

	out := run(t, p)
	expectValue(t, out, "[1, 3, 4]")
	if out.Heap.Allocs != 1 || out.Heap.Frees != 1 {
		t.Fatalf("heap = %+v", out.Heap)
	}
}
