// Package refcount makes memory management explicit in specialized IR.
//
// Run rewrites procedures in three steps:
//
//  1. fallibility: procedures that can abort (checked arithmetic, runtime
//     errors, calls to other fallible procedures) are marked, and every call
//     that can abort becomes an Invoke;
//  2. borrow inference: a parameter stays borrowed unless the body needs to
//     own it, iterated to a fixpoint over the whole program;
//  3. insertion: inc, dec and decref statements are placed so that every
//     owned value is released exactly once on every path, and each Invoke
//     gets a cleanup releasing what the procedure owns at the call.
//
// The pass expects each symbol to be bound once per procedure, except that
// join point parameters may rebind the procedure parameters they loop over.
package refcount

import (
	"fmt"
	"slices"

	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/lowlevel"
	"monoc/internal/symbols"
)

// Stats summarises one Run.
type Stats struct {
	Fallible int
	Invokes  int
	Borrowed int
	Incs     int
	Decs     int
	Decrefs  int
}

// Run inserts reference counting into procs in place.
func Run(procs []*ir.Proc, layouts *layout.Interner) (Stats, error) {
	var st Stats
	kinds := make(map[ir.ProcName]map[symbols.Symbol]layout.ID, len(procs))
	for _, p := range procs {
		k, err := collectLayouts(p)
		if err != nil {
			return st, err
		}
		kinds[p.Name] = k
	}

	fallible := markFallible(procs)
	for _, p := range procs {
		if fallible[p.Name] {
			p.Fallible = true
			st.Fallible++
		}
		st.Invokes += toInvokes(p.Body, fallible)
	}

	owned := inferBorrows(procs, kinds, layouts)
	for _, p := range procs {
		own := owned[p.Name]
		for i := range p.Params {
			p.Params[i].Borrowed = layouts.ContainsRefcounted(p.Params[i].Layout) && !own[i]
			if p.Params[i].Borrowed {
				st.Borrowed++
			}
		}
	}

	for _, p := range procs {
		ins := newInserter(layouts, kinds[p.Name], owned)
		p.Body = ins.proc(p)
		st.Incs += ins.stats.Incs
		st.Decs += ins.stats.Decs
		st.Decrefs += ins.stats.Decrefs
		st.Invokes -= ins.demoted
	}
	return st, nil
}

// collectLayouts maps every symbol bound in p to its layout.
func collectLayouts(p *ir.Proc) (map[symbols.Symbol]layout.ID, error) {
	out := make(map[symbols.Symbol]layout.ID)
	var err error
	bind := func(sym symbols.Symbol, l layout.ID) {
		if prev, ok := out[sym]; ok && prev != l && err == nil {
			err = fmt.Errorf("refcount: proc %v: symbol %v bound at two layouts", p.Name, sym)
		}
		out[sym] = l
	}
	for _, param := range p.Params {
		bind(param.Symbol, param.Layout)
	}
	ir.Walk(p.Body, func(s *ir.Stmt) {
		switch s.Kind {
		case ir.StmtLet:
			bind(s.Let.Symbol, s.Let.Layout)
		case ir.StmtInvoke:
			bind(s.Invoke.Symbol, s.Invoke.Layout)
		case ir.StmtJoin:
			for _, param := range s.Join.Params {
				bind(param.Symbol, param.Layout)
			}
		}
	})
	return out, err
}

// consumes reports, per operand of e, whether that position takes
// ownership of its value.
func consumes(e *ir.Expr, owned map[ir.ProcName][]bool) []bool {
	out := make([]bool, len(e.Args))
	switch e.Kind {
	case ir.ExprCall:
		params, known := owned[e.Proc]
		for i := range out {
			out[i] = !known || (i < len(params) && params[i])
		}
	case ir.ExprLowLevel:
		for i := range out {
			out[i] = e.Op.ArgOwnership(i) == lowlevel.Owned
		}
	case ir.ExprStruct, ir.ExprTag, ir.ExprArray, ir.ExprClosureTag:
		for i := range out {
			out[i] = true
		}
	}
	return out
}

func sorted(set ir.SymbolSet) []symbols.Symbol {
	out := make([]symbols.Symbol, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	slices.SortFunc(out, symbols.Compare)
	return out
}
