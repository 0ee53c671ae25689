package refcount

import (
	"monoc/internal/ir"
	"monoc/internal/lowlevel"
)

// markFallible returns the procedures that can abort: those containing a
// runtime error or a trapping low-level operation, and transitively their
// callers.
func markFallible(procs []*ir.Proc) map[ir.ProcName]bool {
	fallible := make(map[ir.ProcName]bool, len(procs))
	callers := make(map[ir.ProcName][]ir.ProcName)
	var work []ir.ProcName
	for _, p := range procs {
		direct := false
		ir.Walk(p.Body, func(s *ir.Stmt) {
			switch s.Kind {
			case ir.StmtRuntimeError:
				direct = true
			case ir.StmtLet:
				direct = direct || trapping(&s.Let.Expr)
			case ir.StmtInvoke:
				direct = direct || trapping(&s.Invoke.Call)
			}
		})
		for _, callee := range ir.Calls(p.Body) {
			callers[callee] = append(callers[callee], p.Name)
		}
		if direct && !fallible[p.Name] {
			fallible[p.Name] = true
			work = append(work, p.Name)
		}
	}
	for len(work) > 0 {
		n := work[len(work)-1]
		work = work[:len(work)-1]
		for _, c := range callers[n] {
			if !fallible[c] {
				fallible[c] = true
				work = append(work, c)
			}
		}
	}
	return fallible
}

func trapping(e *ir.Expr) bool {
	if e.Kind != ir.ExprLowLevel {
		return false
	}
	sig, ok := lowlevel.Lookup(e.Op)
	return ok && sig.Fallible
}

// toInvokes turns every let whose right-hand side can abort into an Invoke
// with an empty cleanup and returns how many it converted.
func toInvokes(s *ir.Stmt, fallible map[ir.ProcName]bool) int {
	n := 0
	ir.Walk(s, func(st *ir.Stmt) {
		if st.Kind != ir.StmtLet {
			return
		}
		e := &st.Let.Expr
		if !trapping(e) && (e.Kind != ir.ExprCall || !fallible[e.Proc]) {
			return
		}
		let := st.Let
		*st = ir.Stmt{Kind: ir.StmtInvoke, Invoke: ir.InvokeStmt{
			Symbol: let.Symbol,
			Layout: let.Layout,
			Call:   let.Expr,
			Next:   let.Next,
		}}
		n++
	})
	return n
}
