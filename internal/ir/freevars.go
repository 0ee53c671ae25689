package ir

import "monoc/internal/symbols"

// SymbolSet is a set of value symbols.
type SymbolSet map[symbols.Symbol]struct{}

func (s SymbolSet) Add(sym symbols.Symbol) { s[sym] = struct{}{} }

func (s SymbolSet) Has(sym symbols.Symbol) bool {
	_, ok := s[sym]
	return ok
}

// Union adds every member of other to s.
func (s SymbolSet) Union(other SymbolSet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

func (s SymbolSet) Clone() SymbolSet {
	out := make(SymbolSet, len(s))
	out.Union(s)
	return out
}

// FreeVars returns the value symbols s reads without binding them. Join
// point identifiers are not values and never appear in the result.
func FreeVars(s *Stmt) SymbolSet {
	out := make(SymbolSet)
	freeVars(s, make(SymbolSet), out)
	return out
}

func freeVars(s *Stmt, bound, out SymbolSet) {
	use := func(sym symbols.Symbol) {
		if !bound.Has(sym) {
			out.Add(sym)
		}
	}
	// bindings made along a straight line are undone on return
	var added []symbols.Symbol
	bind := func(sym symbols.Symbol) {
		if !bound.Has(sym) {
			bound.Add(sym)
			added = append(added, sym)
		}
	}
	defer func() {
		for _, sym := range added {
			delete(bound, sym)
		}
	}()

	for s != nil {
		switch s.Kind {
		case StmtLet:
			for _, a := range s.Let.Expr.Args {
				use(a)
			}
			bind(s.Let.Symbol)
			s = s.Let.Next
		case StmtInvoke:
			for _, a := range s.Invoke.Call.Args {
				use(a)
			}
			freeVars(s.Invoke.Cleanup, bound, out)
			bind(s.Invoke.Symbol)
			s = s.Invoke.Next
		case StmtRefcount:
			use(s.Refcount.Symbol)
			s = s.Refcount.Next
		case StmtJoin:
			inner := bound.Clone()
			for _, p := range s.Join.Params {
				inner.Add(p.Symbol)
			}
			freeVars(s.Join.Body, inner, out)
			s = s.Join.Next
		case StmtIf:
			use(s.If.Cond)
			freeVars(s.If.Then, bound, out)
			freeVars(s.If.Else, bound, out)
			return
		case StmtSwitch:
			use(s.Switch.Cond)
			for _, c := range s.Switch.Cases {
				freeVars(c.Body, bound, out)
			}
			freeVars(s.Switch.Default, bound, out)
			return
		case StmtJump:
			for _, a := range s.Jump.Args {
				use(a)
			}
			return
		case StmtRet:
			use(s.Ret.Symbol)
			return
		default:
			return
		}
	}
}

// Walk calls fn for every statement reachable from s, parents first.
func Walk(s *Stmt, fn func(*Stmt)) {
	for s != nil {
		fn(s)
		switch s.Kind {
		case StmtLet:
			s = s.Let.Next
		case StmtInvoke:
			Walk(s.Invoke.Cleanup, fn)
			s = s.Invoke.Next
		case StmtRefcount:
			s = s.Refcount.Next
		case StmtJoin:
			Walk(s.Join.Body, fn)
			s = s.Join.Next
		case StmtIf:
			Walk(s.If.Then, fn)
			Walk(s.If.Else, fn)
			return
		case StmtSwitch:
			for _, c := range s.Switch.Cases {
				Walk(c.Body, fn)
			}
			Walk(s.Switch.Default, fn)
			return
		default:
			return
		}
	}
}

// Calls lists the procedures a body calls by name, in order of appearance.
func Calls(s *Stmt) []ProcName {
	var out []ProcName
	Walk(s, func(st *Stmt) {
		switch st.Kind {
		case StmtLet:
			if st.Let.Expr.Kind == ExprCall {
				out = append(out, st.Let.Expr.Proc)
			}
		case StmtInvoke:
			if st.Invoke.Call.Kind == ExprCall {
				out = append(out, st.Invoke.Call.Proc)
			}
		}
	})
	return out
}

// Substitute rewrites every read of from in s to to. Bindings are left
// alone; callers only rename symbols that s does not bind.
func Substitute(s *Stmt, from, to symbols.Symbol) {
	rename := func(args []symbols.Symbol) {
		for i, a := range args {
			if a == from {
				args[i] = to
			}
		}
	}
	one := func(sym *symbols.Symbol) {
		if *sym == from {
			*sym = to
		}
	}
	Walk(s, func(st *Stmt) {
		switch st.Kind {
		case StmtLet:
			rename(st.Let.Expr.Args)
		case StmtInvoke:
			rename(st.Invoke.Call.Args)
		case StmtRefcount:
			one(&st.Refcount.Symbol)
		case StmtIf:
			one(&st.If.Cond)
		case StmtSwitch:
			one(&st.Switch.Cond)
		case StmtJump:
			rename(st.Jump.Args)
		case StmtRet:
			one(&st.Ret.Symbol)
		}
	})
}
