package builtins_test

import (
	"testing"

	"monoc/internal/builtins"
	"monoc/internal/hir"
	"monoc/internal/types"
)

func TestInstallUsesFixedIdentifiers(t *testing.T) {
	p := hir.NewProgram("Test")
	builtins.Install(p)

	cases := map[string]string{
		"Num.add":    "Num.24",
		"Num.div":    "Num.42",
		"Num.round":  "Num.47",
		"List.len":   "List.7",
		"List.get":   "List.3",
		"Dict.empty": "Dict.2",
		"Bool.isEq":  "Bool.5",
	}
	for name, want := range cases {
		sym := builtins.MustSymbol(p.Interns, name)
		if got := p.Interns.String(sym); got != want {
			t.Fatalf("%s printed as %s, want %s", name, got, want)
		}
		if _, ok := p.Lookup(sym); !ok {
			t.Fatalf("%s not installed", name)
		}
	}

	before := len(p.Defs)
	builtins.Install(p)
	if len(p.Defs) != before {
		t.Fatalf("second install added definitions: %d -> %d", before, len(p.Defs))
	}
}

func TestBuiltinShapes(t *testing.T) {
	p := hir.NewProgram("Test")
	builtins.Install(p)

	get, _ := p.Lookup(builtins.MustSymbol(p.Interns, "List.get"))
	if !get.IsFunction() {
		t.Fatalf("List.get must be a function")
	}
	fn, ok := p.Types.FuncInfo(get.Type)
	if !ok || len(fn.Params) != 2 {
		t.Fatalf("List.get type = %s", p.Types.String(get.Type))
	}
	if _, ok := p.Types.UnionInfo(fn.Result); !ok {
		t.Fatalf("List.get must return a Result union")
	}
	if !p.Types.HasVars(get.Type) {
		t.Fatalf("List.get should be polymorphic")
	}

	empty, _ := p.Lookup(builtins.MustSymbol(p.Interns, "Dict.empty"))
	if empty.IsFunction() {
		t.Fatalf("Dict.empty is a value definition")
	}
	if tt := p.Types.MustLookup(empty.Type); tt.Kind != types.KindDict {
		t.Fatalf("Dict.empty kind = %s", tt.Kind)
	}

	if _, ok := builtins.Symbol(p.Interns, "List.nope"); ok {
		t.Fatalf("unknown builtin resolved")
	}
}
