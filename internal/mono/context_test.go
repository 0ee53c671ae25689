package mono

import (
	"errors"
	"testing"

	"monoc/internal/hir"
	"monoc/internal/layout"
	"monoc/internal/source"
	"monoc/internal/types"
)

func TestReusedProcNameIsTableCorruption(t *testing.T) {
	p := hir.NewProgram("Test")
	b := hir.NewBuilder(p)
	id := b.Sym("id")
	x := b.Sym("x")
	a := b.T.Var("a")
	lambdas := b.Lambdas(types.LambdaMember{Symbol: id})
	b.Function(id, b.Fn([]types.TypeID{a}, a, lambdas), []hir.Param{{Symbol: x, Type: a}}, b.Var(x, a))
	atInt := b.Fn([]types.TypeID{b.B.I64}, b.B.I64, lambdas)
	atStr := b.Fn([]types.TypeID{b.B.Str}, b.B.Str, lambdas)

	c := newContext(p, Options{Target: layout.X86_64LinuxGNU(), MaxProcs: DefaultMaxProcs})
	first, ok := c.ensure(id, atInt, source.Span{})
	if !ok {
		t.Fatalf("ensure at I64 failed: %v", c.problems)
	}
	if again, ok := c.ensure(id, atInt, source.Span{}); !ok || again != first {
		t.Fatalf("same key got %v, want %v", again, first)
	}

	c.specs[id] = 0
	if _, ok := c.ensure(id, atStr, source.Span{}); ok {
		t.Fatalf("second layout reused name %v", first)
	}
	if !errors.Is(c.corrupt, ErrTableCorrupt) {
		t.Fatalf("corrupt = %v", c.corrupt)
	}
	if len(c.procs) != 1 {
		t.Fatalf("procs = %d, want 1", len(c.procs))
	}
}
