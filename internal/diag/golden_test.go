package diag

import (
	"testing"

	"monoc/internal/source"
)

func TestFormatGoldenDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	main := fs.Add("app/Main.roc")

	diags := []Diagnostic{
		NewWarning(MonoRedundantBranch, source.Span{File: main, Start: 40, End: 52}, "this branch is never reached"),
		NewError(MonoNonExhaustive, source.Span{File: main, Start: 10, End: 30}, "missing:\nNothing").
			WithNote(source.Span{File: main, Start: 12, End: 15}, "scrutinee"),
	}

	want := "error MONO9001 app/Main.roc:10-30 missing: Nothing\n" +
		"note MONO9001 app/Main.roc:12-15 scrutinee\n" +
		"warning MONO9002 app/Main.roc:40-52 this branch is never reached"

	if got := FormatGoldenDiagnostics(diags, fs, true); got != want {
		t.Fatalf("unexpected golden diagnostics:\nwant:\n%s\n\ngot:\n%s", want, got)
	}
}

func TestBagSortAndDedup(t *testing.T) {
	b := NewBag(8)
	sp := source.Span{File: 1, Start: 5, End: 6}
	b.Add(NewWarning(MonoRedundantBranch, sp, "x"))
	b.Add(NewError(MonoNonExhaustive, sp, "y"))
	b.Add(NewError(MonoNonExhaustive, sp, "y"))
	b.Dedup()
	b.Sort()
	if b.Len() != 2 {
		t.Fatalf("len = %d after dedup", b.Len())
	}
	if b.Items()[0].Severity != SevError || !b.HasErrors() {
		t.Fatalf("errors should sort first")
	}
	small := NewBag(1)
	small.Add(NewError(MonoInternal, sp, "a"))
	if small.Add(NewError(MonoInternal, sp, "b")) {
		t.Fatalf("limit not enforced")
	}
}
