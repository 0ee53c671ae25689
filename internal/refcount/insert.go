package refcount

import (
	"slices"

	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/symbols"
)

// inserter places refcount statements in one procedure. held is the set of
// owned values alive at the current point; the walk keeps it a subset of
// the live set by releasing values right after their last use.
type inserter struct {
	layouts *layout.Interner
	kinds   map[symbols.Symbol]layout.ID
	owned   map[ir.ProcName][]bool
	lv      *liveness

	// borrowed holds parameters and projections the procedure does not own.
	borrowed ir.SymbolSet
	// decref holds aggregates whose refcounted fields were all moved out by
	// projections; releasing one drops the aggregate but not its fields,
	// which makes it a no-op at run time for inline structs.
	decref ir.SymbolSet

	stats   Stats
	demoted int
}

func newInserter(layouts *layout.Interner, kinds map[symbols.Symbol]layout.ID, owned map[ir.ProcName][]bool) *inserter {
	return &inserter{
		layouts:  layouts,
		kinds:    kinds,
		owned:    owned,
		borrowed: make(ir.SymbolSet),
		decref:   make(ir.SymbolSet),
	}
}

func (in *inserter) rc(s symbols.Symbol) bool {
	l, ok := in.kinds[s]
	return ok && in.layouts.ContainsRefcounted(l)
}

func (in *inserter) proc(p *ir.Proc) *ir.Stmt {
	in.lv = computeLiveness(p.Body)
	held := make(ir.SymbolSet)
	for _, param := range p.Params {
		if !in.rc(param.Symbol) {
			continue
		}
		if param.Borrowed {
			in.borrowed.Add(param.Symbol)
		} else {
			held.Add(param.Symbol)
		}
	}
	return in.branch(p.Body, held)
}

// branch enters s with the owned values of the enclosing scope, releasing
// those s never reads.
func (in *inserter) branch(s *ir.Stmt, held ir.SymbolSet) *ir.Stmt {
	held = held.Clone()
	live := in.lv.of(s)
	var dead []symbols.Symbol
	for _, x := range sorted(held) {
		if !live.Has(x) {
			dead = append(dead, x)
			delete(held, x)
		}
	}
	body := in.visit(s, held)
	for i := len(dead) - 1; i >= 0; i-- {
		body = in.release(dead[i], body)
	}
	return body
}

func (in *inserter) visit(s *ir.Stmt, held ir.SymbolSet) *ir.Stmt {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case ir.StmtLet, ir.StmtInvoke:
		return in.binding(s, held)
	case ir.StmtRefcount:
		s.Refcount.Next = in.visit(s.Refcount.Next, held)
	case ir.StmtIf:
		s.If.Then = in.branch(s.If.Then, held)
		s.If.Else = in.branch(s.If.Else, held)
	case ir.StmtSwitch:
		for i := range s.Switch.Cases {
			s.Switch.Cases[i].Body = in.branch(s.Switch.Cases[i].Body, held)
		}
		if s.Switch.Default != nil {
			s.Switch.Default = in.branch(s.Switch.Default, held)
		}
	case ir.StmtJoin:
		outer := in.lv.joins[s.Join.ID]
		inner := make(ir.SymbolSet)
		for x := range held {
			if outer.Has(x) {
				inner.Add(x)
			}
		}
		for _, p := range s.Join.Params {
			if in.rc(p.Symbol) {
				inner.Add(p.Symbol)
				delete(in.borrowed, p.Symbol)
			}
		}
		s.Join.Body = in.branch(s.Join.Body, inner)
		s.Join.Next = in.visit(s.Join.Next, held)
	case ir.StmtJump:
		pre, _ := in.consume(s.Jump.Args, nil, held, in.lv.joins[s.Jump.Target])
		return in.incs(pre, s)
	case ir.StmtRet:
		if x := s.Ret.Symbol; in.rc(x) && !held.Has(x) {
			return in.incs([]symbols.Symbol{x}, s)
		}
	}
	return s
}

// binding handles a let or invoke: operands passed to owning positions are
// inc'd unless this is their last use, operands that die here are released
// right after, and the bound value becomes owned.
func (in *inserter) binding(s *ir.Stmt, held ir.SymbolSet) *ir.Stmt {
	invoke := s.Kind == ir.StmtInvoke
	x, e, next := s.Let.Symbol, &s.Let.Expr, s.Let.Next
	if invoke {
		x, e, next = s.Invoke.Symbol, &s.Invoke.Call, s.Invoke.Next
	}
	after := in.lv.of(next)

	projection := e.Kind == ir.ExprIndex && in.rc(x)
	parentHeld := false
	if projection {
		y := e.Args[0]
		parentHeld = held.Has(y)
		if parentHeld && !in.decref.Has(y) && in.projectionRun(s, y) {
			in.decref.Add(y)
		}
	}

	pre, post := in.consume(e.Args, consumes(e, in.owned), held, after)

	var cleanup []symbols.Symbol
	if invoke {
		during := held.Clone()
		addAll(during, post)
		cleanup = sorted(during)
	}

	incX := false
	if in.rc(x) {
		switch {
		case projection && !parentHeld:
			in.borrowed.Add(x)
		case projection:
			held.Add(x)
			incX = !in.decref.Has(e.Args[0])
		default:
			held.Add(x)
		}
		if held.Has(x) && !after.Has(x) {
			delete(held, x)
			if incX {
				incX = false
			} else {
				post = append(post, x)
			}
		}
	}

	rest := in.visit(next, held)
	for i := len(post) - 1; i >= 0; i-- {
		rest = in.release(post[i], rest)
	}
	if incX {
		rest = in.inc(x, rest)
	}

	switch {
	case !invoke:
		s.Let.Next = rest
	case len(cleanup) == 0:
		call, l := s.Invoke.Call, s.Invoke.Layout
		*s = ir.Stmt{Kind: ir.StmtLet, Let: ir.LetStmt{Symbol: x, Layout: l, Expr: call, Next: rest}}
		in.demoted++
	default:
		handler := ir.NewUnreachable()
		for i := len(cleanup) - 1; i >= 0; i-- {
			handler = in.release(cleanup[i], handler)
		}
		s.Invoke.Cleanup = handler
		s.Invoke.Next = rest
	}
	return in.incs(pre, s)
}

// consume accounts for the operands of one statement. own marks the
// positions that take ownership (nil means all of them); after is the live
// set once the statement completes. It returns the values to inc before the
// statement and the ones to release after it, and drops from held every
// value whose ownership moves into the statement or ends with it.
func (in *inserter) consume(args []symbols.Symbol, own []bool, held, after ir.SymbolSet) (pre, post []symbols.Symbol) {
	count := make(map[symbols.Symbol]int, len(args))
	lent := make(map[symbols.Symbol]bool)
	var order []symbols.Symbol
	for i, a := range args {
		if _, seen := count[a]; !seen {
			order = append(order, a)
			count[a] = 0
		}
		if own == nil || own[i] {
			count[a]++
		} else {
			lent[a] = true
		}
	}
	for _, a := range order {
		if !in.rc(a) {
			continue
		}
		c := count[a]
		if !held.Has(a) {
			pre = repeat(pre, a, c)
			continue
		}
		keep := after.Has(a) || (c > 0 && lent[a])
		if c > 0 && !keep {
			pre = repeat(pre, a, c-1)
			delete(held, a)
			continue
		}
		pre = repeat(pre, a, c)
		if !after.Has(a) {
			post = append(post, a)
			delete(held, a)
		}
	}
	return pre, post
}

// projectionRun reports whether the straight line of lets starting at s
// reads every refcounted field of y exactly once with Index and never uses
// y otherwise, with y dead once the line ends.
func (in *inserter) projectionRun(s *ir.Stmt, y symbols.Symbol) bool {
	variant := s.Let.Expr.Var
	need := in.layouts.RefcountedFields(in.kinds[y], variant)
	if len(need) == 0 {
		return false
	}
	got := make(map[uint32]bool)
	t := s
	for ; t != nil && t.Kind == ir.StmtLet; t = t.Let.Next {
		e := &t.Let.Expr
		if e.Kind == ir.ExprIndex && e.Args[0] == y {
			if e.Var != variant || got[e.ID] {
				return false
			}
			got[e.ID] = true
			continue
		}
		if slices.Contains(e.Args, y) {
			return false
		}
	}
	if t == nil || in.lv.of(t).Has(y) {
		return false
	}
	for _, f := range need {
		if !got[f] {
			return false
		}
	}
	return true
}

func (in *inserter) release(x symbols.Symbol, next *ir.Stmt) *ir.Stmt {
	if !in.decref.Has(x) {
		in.stats.Decs++
		return ir.NewRefcount(ir.Dec, x, next)
	}
	in.stats.Decrefs++
	return ir.NewRefcount(ir.Decref, x, next)
}

func (in *inserter) inc(x symbols.Symbol, next *ir.Stmt) *ir.Stmt {
	in.stats.Incs++
	return ir.NewRefcount(ir.Inc, x, next)
}

func (in *inserter) incs(xs []symbols.Symbol, next *ir.Stmt) *ir.Stmt {
	for i := len(xs) - 1; i >= 0; i-- {
		next = in.inc(xs[i], next)
	}
	return next
}

func repeat(out []symbols.Symbol, x symbols.Symbol, n int) []symbols.Symbol {
	for i := 0; i < n; i++ {
		out = append(out, x)
	}
	return out
}
