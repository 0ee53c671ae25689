package refcount

import (
	"monoc/internal/ir"
	"monoc/internal/symbols"
)

// liveness records, for every statement of one procedure, the symbols read
// by it or by anything that may run after it. A jump keeps alive the
// arguments it passes and every outer symbol its join point body reads.
type liveness struct {
	at    map[*ir.Stmt]ir.SymbolSet
	joins map[symbols.Symbol]ir.SymbolSet

	changed bool
}

func computeLiveness(body *ir.Stmt) *liveness {
	lv := &liveness{joins: make(map[symbols.Symbol]ir.SymbolSet)}
	// join bodies may jump back to themselves, so iterate until the join
	// sets stop growing
	for {
		lv.at = make(map[*ir.Stmt]ir.SymbolSet)
		lv.changed = false
		lv.of(body)
		if !lv.changed {
			return lv
		}
	}
}

// of returns the live-in set of s.
func (lv *liveness) of(s *ir.Stmt) ir.SymbolSet {
	if s == nil {
		return ir.SymbolSet{}
	}
	if set, ok := lv.at[s]; ok {
		return set
	}
	out := make(ir.SymbolSet)
	switch s.Kind {
	case ir.StmtLet:
		out.Union(lv.of(s.Let.Next))
		delete(out, s.Let.Symbol)
		addAll(out, s.Let.Expr.Args)
	case ir.StmtInvoke:
		out.Union(lv.of(s.Invoke.Next))
		delete(out, s.Invoke.Symbol)
		out.Union(lv.of(s.Invoke.Cleanup))
		addAll(out, s.Invoke.Call.Args)
	case ir.StmtRefcount:
		out.Union(lv.of(s.Refcount.Next))
		out.Add(s.Refcount.Symbol)
	case ir.StmtIf:
		out.Add(s.If.Cond)
		out.Union(lv.of(s.If.Then))
		out.Union(lv.of(s.If.Else))
	case ir.StmtSwitch:
		out.Add(s.Switch.Cond)
		for _, c := range s.Switch.Cases {
			out.Union(lv.of(c.Body))
		}
		out.Union(lv.of(s.Switch.Default))
	case ir.StmtJoin:
		body := lv.of(s.Join.Body).Clone()
		for _, p := range s.Join.Params {
			delete(body, p.Symbol)
		}
		if prev := lv.joins[s.Join.ID]; len(prev) != len(body) {
			lv.joins[s.Join.ID] = body
			lv.changed = true
		}
		out.Union(lv.of(s.Join.Next))
	case ir.StmtJump:
		addAll(out, s.Jump.Args)
		out.Union(lv.joins[s.Jump.Target])
	case ir.StmtRet:
		out.Add(s.Ret.Symbol)
	}
	lv.at[s] = out
	return out
}

func addAll(set ir.SymbolSet, syms []symbols.Symbol) {
	for _, s := range syms {
		set.Add(s)
	}
}
