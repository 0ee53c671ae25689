package refcount

import (
	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/symbols"
)

// inferBorrows decides, for every parameter of every procedure, whether the
// procedure takes ownership of it. A parameter is owned when the body
// returns it, stores it, jumps with it, passes it to an owned position, or
// needs ownership of a value projected out of it. Parameters start borrowed
// and only ever become owned, so the iteration terminates.
func inferBorrows(procs []*ir.Proc, kinds map[ir.ProcName]map[symbols.Symbol]layout.ID, layouts *layout.Interner) map[ir.ProcName][]bool {
	owned := make(map[ir.ProcName][]bool, len(procs))
	for _, p := range procs {
		owned[p.Name] = make([]bool, len(p.Params))
	}
	for changed := true; changed; {
		changed = false
		for _, p := range procs {
			need := demands(p.Body, owned)
			own := owned[p.Name]
			for i, param := range p.Params {
				if own[i] || !layouts.ContainsRefcounted(param.Layout) {
					continue
				}
				if need.Has(param.Symbol) {
					own[i] = true
					changed = true
				}
			}
		}
	}
	return owned
}

// demands collects the symbols the body must own.
func demands(body *ir.Stmt, owned map[ir.ProcName][]bool) ir.SymbolSet {
	need := make(ir.SymbolSet)
	parent := make(map[symbols.Symbol]symbols.Symbol)
	expr := func(x symbols.Symbol, e *ir.Expr) {
		if e.Kind == ir.ExprIndex {
			parent[x] = e.Args[0]
			return
		}
		for i, c := range consumes(e, owned) {
			if c {
				need.Add(e.Args[i])
			}
		}
	}
	ir.Walk(body, func(s *ir.Stmt) {
		switch s.Kind {
		case ir.StmtLet:
			expr(s.Let.Symbol, &s.Let.Expr)
		case ir.StmtInvoke:
			expr(s.Invoke.Symbol, &s.Invoke.Call)
		case ir.StmtJump:
			addAll(need, s.Jump.Args)
		case ir.StmtRet:
			need.Add(s.Ret.Symbol)
		}
	})
	// owning a projection requires owning what it was read from
	for changed := true; changed; {
		changed = false
		for x, y := range parent {
			if need.Has(x) && !need.Has(y) {
				need.Add(y)
				changed = true
			}
		}
	}
	return need
}
