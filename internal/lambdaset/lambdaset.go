// Package lambdaset turns the closure sets recorded on function types into
// runtime values and call dispatch.
//
// A function-typed value is represented by its lambda set layout: a single
// member is just its captures, several non-capturing members are a byte
// (or bool) naming the member, anything else is a tagged union whose tag
// selects the member and whose payload holds that member's captures.
package lambdaset

import (
	"fmt"

	"fortio.org/safecast"

	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// Set is a resolved lambda set.
type Set struct {
	Layout layout.ID
	l      *layout.Layout
	in     *layout.Interner
}

// Resolve computes the set of a function type or of a lambda set type.
func Resolve(r *layout.Resolver, t types.TypeID) (*Set, error) {
	id, err := r.Resolve(t)
	if err != nil {
		return nil, err
	}
	l := r.Layouts.Get(id)
	if l.Kind != layout.KindClosure {
		return nil, fmt.Errorf("lambdaset: type#%d has layout %s, not a closure", t, l.Kind)
	}
	return &Set{Layout: id, l: l, in: r.Layouts}, nil
}

// Repr returns the chosen representation.
func (s *Set) Repr() layout.ClosureRepr { return s.l.Closure }

// Members lists the closures of the set in tag order.
func (s *Set) Members() []layout.Member { return s.l.Members }

// Member returns the tag of sym.
func (s *Set) Member(sym symbols.Symbol) (int, bool) {
	for i, m := range s.l.Members {
		if m.Symbol == sym {
			return i, true
		}
	}
	return -1, false
}

// Captures reports whether member i carries an environment.
func (s *Set) Captures(i int) bool { return len(s.l.Members[i].Captures) > 0 }

// EnvLayout is the layout of the trailing environment parameter of member
// sym, or NoID when the member captures nothing.
func (s *Set) EnvLayout(sym symbols.Symbol) layout.ID {
	i, ok := s.Member(sym)
	if !ok || !s.Captures(i) {
		return layout.NoID
	}
	return s.Layout
}

// TagLayout is the layout of the value a dispatch switches on.
func (s *Set) TagLayout() layout.ID {
	switch s.l.Closure {
	case layout.ClosureEnum:
		if s.l.IsBool() {
			return s.in.Bool()
		}
		return s.in.U8()
	case layout.ClosureUnion:
		return s.in.I64()
	}
	return layout.NoID
}

func tagOf(i int) uint32 {
	v, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("lambdaset: member index: %w", err))
	}
	return v
}

// Construct builds the value of member sym with the given captures, in
// the order the set lists them.
func (s *Set) Construct(sym symbols.Symbol, caps []symbols.Symbol) (ir.Expr, error) {
	i, ok := s.Member(sym)
	if !ok {
		return ir.Expr{}, fmt.Errorf("lambdaset: %v is not a member", sym)
	}
	if got, want := len(caps), len(s.l.Members[i].Captures); got != want {
		return ir.Expr{}, fmt.Errorf("lambdaset: member %d takes %d captures, got %d", i, want, got)
	}
	switch s.l.Closure {
	case layout.ClosureStruct:
		return ir.Struct(caps...), nil
	case layout.ClosureEnum:
		if s.l.IsBool() {
			return ir.BoolLit(i == 1), nil
		}
		v, err := safecast.Conv[uint8](i)
		if err != nil {
			return ir.Expr{}, err
		}
		return ir.U8Lit(v), nil
	default:
		return ir.Expr{Kind: ir.ExprClosureTag, Sym: sym, ID: tagOf(i), Of: s.Layout, Args: caps}, nil
	}
}

// Unpack returns the expressions that read the captures of member sym out
// of env, in capture order.
func (s *Set) Unpack(env symbols.Symbol, sym symbols.Symbol) []ir.Expr {
	i, ok := s.Member(sym)
	if !ok {
		return nil
	}
	off := s.l.PayloadOffset()
	out := make([]ir.Expr, len(s.l.Members[i].Captures))
	for j := range out {
		out[j] = ir.Index(env, s.Layout, off+tagOf(j), i)
	}
	return out
}

// CaptureLayouts lists the layouts of member sym's captures.
func (s *Set) CaptureLayouts(sym symbols.Symbol) []layout.ID {
	i, ok := s.Member(sym)
	if !ok {
		return nil
	}
	return s.l.Members[i].Captures
}

// Call describes one value call to dispatch.
type Call struct {
	Value    symbols.Symbol   // the closure value
	Args     []symbols.Symbol // explicit arguments
	Result   layout.ID
	Assigned symbols.Symbol // receives the result
	Hole     *ir.Stmt       // continuation that reads Assigned
	Fresh    func() symbols.Symbol
	Target   func(member int) ir.ProcName
}

// Dispatch lowers c into a direct call for a single member, or a switch
// over the tag with one call per member meeting at a join point.
func (s *Set) Dispatch(c Call) *ir.Stmt {
	args := func(i int) []symbols.Symbol {
		out := append([]symbols.Symbol(nil), c.Args...)
		if s.Captures(i) {
			out = append(out, c.Value)
		}
		return out
	}
	if len(s.l.Members) == 1 {
		return ir.NewLet(c.Assigned, c.Result, ir.Call(c.Target(0), args(0)...), c.Hole)
	}

	cond := c.Value
	var load func(*ir.Stmt) *ir.Stmt
	if s.l.Closure == layout.ClosureUnion {
		tag := c.Fresh()
		cond = tag
		load = func(next *ir.Stmt) *ir.Stmt {
			return ir.NewLet(tag, s.in.I64(), ir.Index(c.Value, s.Layout, 0, -1), next)
		}
	}
	join := c.Fresh()
	sw := ir.SwitchStmt{Cond: cond, CondLayout: s.TagLayout(), Ret: c.Result}
	for i := range s.l.Members {
		r := c.Fresh()
		arm := ir.NewLet(r, c.Result, ir.Call(c.Target(i), args(i)...), ir.NewJump(join, r))
		if i == len(s.l.Members)-1 {
			sw.Default = arm
			break
		}
		sw.Cases = append(sw.Cases, ir.Case{Value: uint64(i), Body: arm})
	}
	body := &ir.Stmt{Kind: ir.StmtSwitch, Switch: sw}
	out := ir.NewJoin(join, []ir.Param{{Symbol: c.Assigned, Layout: c.Result}}, c.Hole, body)
	if load != nil {
		return load(out)
	}
	return out
}
