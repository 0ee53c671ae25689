// Package testkit holds program fixtures shared by package tests.
package testkit

import (
	"path/filepath"
	"testing"

	"monoc/internal/builtins"
	"monoc/internal/hir"
	"monoc/internal/types"
)

// AddModule builds a module named name whose only entry, main, is x + y
// through the Num.add builtin.
func AddModule(name string, x, y int64) *hir.Program {
	p := hir.NewProgram(name)
	builtins.Install(p)
	b := hir.NewBuilder(p)
	main := b.Sym("main")
	add := builtins.MustSymbol(p.Interns, "Num.add")
	addType := b.Fn([]types.TypeID{b.B.I64, b.B.I64}, b.B.I64, b.Lambdas(types.LambdaMember{Symbol: add}))
	b.Value(main, b.Call(b.Var(add, addType), b.B.I64, b.I64(x), b.I64(y)))
	p.Expose(main)
	return p
}

// WriteBundle encodes modules into dir/name and returns the path. An empty
// dir means a fresh temporary directory.
func WriteBundle(t testing.TB, dir, name string, modules ...*hir.Program) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	path := filepath.Join(dir, name)
	if err := hir.WriteBundle(path, &hir.Bundle{Modules: modules}); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}
