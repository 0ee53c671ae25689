package ir

import (
	"errors"
	"fmt"

	"monoc/internal/symbols"
)

// Validate checks structural invariants of a set of procedures:
// unique names, bound operands, known call targets, join point scoping and
// arity, and complete control flow. It returns all violations joined.
func Validate(procs []*Proc, in *symbols.Interns) error {
	var errs []error
	names := make(map[ProcName]struct{}, len(procs))
	for _, p := range procs {
		if _, dup := names[p.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate procedure %s", p.Name.String(in)))
		}
		names[p.Name] = struct{}{}
	}
	for _, p := range procs {
		v := validator{in: in, procs: names, joins: make(map[symbols.Symbol]int)}
		bound := make(SymbolSet)
		for _, param := range p.Params {
			bound.Add(param.Symbol)
		}
		v.stmt(p.Body, bound)
		if len(v.errs) > 0 {
			errs = append(errs, fmt.Errorf("procedure %s: %w", p.Name.String(in), errors.Join(v.errs...)))
		}
	}
	return errors.Join(errs...)
}

type validator struct {
	in    *symbols.Interns
	procs map[ProcName]struct{}
	joins map[symbols.Symbol]int // join id -> arity, for joins in scope
	errs  []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) use(sym symbols.Symbol, bound SymbolSet) {
	if !bound.Has(sym) {
		v.fail("unbound symbol %s", v.in.String(sym))
	}
}

func (v *validator) expr(e *Expr, bound SymbolSet) {
	for _, a := range e.Args {
		v.use(a, bound)
	}
	if e.Kind == ExprCall {
		if _, ok := v.procs[e.Proc]; !ok {
			v.fail("call to unknown procedure %s", e.Proc.String(v.in))
		}
	}
	if e.Kind == ExprIndex && len(e.Args) != 1 {
		v.fail("Index takes one operand, got %d", len(e.Args))
	}
}

func (v *validator) stmt(s *Stmt, bound SymbolSet) {
	bound = bound.Clone()
	for {
		if s == nil {
			v.fail("missing continuation")
			return
		}
		switch s.Kind {
		case StmtLet:
			v.expr(&s.Let.Expr, bound)
			bound.Add(s.Let.Symbol)
			s = s.Let.Next
		case StmtInvoke:
			v.expr(&s.Invoke.Call, bound)
			v.stmt(s.Invoke.Cleanup, bound)
			bound.Add(s.Invoke.Symbol)
			s = s.Invoke.Next
		case StmtRefcount:
			v.use(s.Refcount.Symbol, bound)
			s = s.Refcount.Next
		case StmtJoin:
			inner := bound.Clone()
			for _, p := range s.Join.Params {
				inner.Add(p.Symbol)
			}
			// the body may jump to itself
			prev, shadowed := v.joins[s.Join.ID]
			v.joins[s.Join.ID] = len(s.Join.Params)
			v.stmt(s.Join.Body, inner)
			v.stmt(s.Join.Next, bound)
			if shadowed {
				v.joins[s.Join.ID] = prev
			} else {
				delete(v.joins, s.Join.ID)
			}
			return
		case StmtIf:
			v.use(s.If.Cond, bound)
			v.stmt(s.If.Then, bound)
			v.stmt(s.If.Else, bound)
			return
		case StmtSwitch:
			v.use(s.Switch.Cond, bound)
			seen := make(map[uint64]struct{}, len(s.Switch.Cases))
			for _, c := range s.Switch.Cases {
				if _, dup := seen[c.Value]; dup {
					v.fail("switch %s: duplicate case %d", v.in.String(s.Switch.Cond), c.Value)
				}
				seen[c.Value] = struct{}{}
				v.stmt(c.Body, bound)
			}
			if s.Switch.Default != nil {
				v.stmt(s.Switch.Default, bound)
			}
			return
		case StmtJump:
			arity, ok := v.joins[s.Jump.Target]
			if !ok {
				v.fail("jump to unknown join point %s", v.in.String(s.Jump.Target))
			} else if arity != len(s.Jump.Args) {
				v.fail("jump %s: %d arguments, join point takes %d", v.in.String(s.Jump.Target), len(s.Jump.Args), arity)
			}
			for _, a := range s.Jump.Args {
				v.use(a, bound)
			}
			return
		case StmtRet:
			v.use(s.Ret.Symbol, bound)
			return
		case StmtRuntimeError, StmtUnreachable:
			return
		default:
			v.fail("unknown statement kind %d", s.Kind)
			return
		}
	}
}
