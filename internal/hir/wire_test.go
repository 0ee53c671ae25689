package hir_test

import (
	"bytes"
	"testing"

	"monoc/internal/hir"
	"monoc/internal/types"
)

func TestBundleRoundTripKeepsIDs(t *testing.T) {
	p := hir.NewProgram("Test")
	b := hir.NewBuilder(p)

	maybe := b.T.Union([]types.Tag{{Name: "Just", Args: []types.TypeID{b.B.I64}}, {Name: "Nothing"}})
	main := b.Sym("main")
	n := b.Sym("n")
	body := b.When(b.Tag(maybe, "Just", b.I64(3)), b.B.I64,
		b.Branch(b.Var(n, b.B.I64), b.PTag(maybe, "Just", b.PIdent(n, b.B.I64))),
		b.Branch(b.I64(0), b.PWild(maybe)),
	)
	b.Value(main, body)
	p.Expose(main)
	p.Files.Add("src/main.roc")

	var buf bytes.Buffer
	if err := hir.Encode(&buf, &hir.Bundle{Modules: []*hir.Program{p}}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := hir.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Modules) != 1 {
		t.Fatalf("modules = %d", len(got.Modules))
	}
	q := got.Modules[0]
	if q.Home != p.Home || q.Interns.String(main) != "Test.0" {
		t.Fatalf("home module lost: %d %s", q.Home, q.Interns.String(main))
	}
	if q.Types.Len() != p.Types.Len() {
		t.Fatalf("type count %d, want %d", q.Types.Len(), p.Types.Len())
	}
	if again := q.Types.Union([]types.Tag{{Name: "Nothing"}, {Name: "Just", Args: []types.TypeID{b.B.I64}}}); again != maybe {
		t.Fatalf("dedup index not restored: %d vs %d", again, maybe)
	}
	d, ok := q.Lookup(main)
	if !ok || d.Expr.Kind != hir.ExprWhen {
		t.Fatalf("main def = %+v", d)
	}
	w := d.Expr.Data.(hir.WhenData)
	if len(w.Branches) != 2 || w.Branches[0].Patterns[0].Args[0].Symbol != n {
		t.Fatalf("branches not restored: %+v", w.Branches)
	}
	if len(q.Exposed) != 1 || q.Exposed[0] != main {
		t.Fatalf("exposed = %v", q.Exposed)
	}
	if q.Files.Path(1) != "src/main.roc" {
		t.Fatalf("file path = %s", q.Files.Path(1))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := hir.Decode(bytes.NewReader([]byte{0xc1})); err == nil {
		t.Fatalf("expected error")
	}
}
