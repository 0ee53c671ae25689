package mono

import (
	"fmt"

	"fortio.org/safecast"

	"monoc/internal/diag"
	"monoc/internal/hir"
	"monoc/internal/ir"
	"monoc/internal/lambdaset"
	"monoc/internal/layout"
	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// dest is where a lowered expression delivers its value: returned from the
// procedure when join is unset, passed to join otherwise.
type dest struct {
	join symbols.Symbol
}

func (d dest) deliver(sym symbols.Symbol) *ir.Stmt {
	if d.join.IsValid() {
		return ir.NewJump(d.join, sym)
	}
	return ir.NewRet(sym)
}

// lowerer lowers one specialization. Statements are built back to front:
// every helper receives the continuation that consumes the value it binds.
type lowerer struct {
	c  *Context
	ap *types.Applier
	// alias maps symbols bound to another symbol to that symbol.
	alias  map[symbols.Symbol]symbols.Symbol
	failed string
}

func newLowerer(c *Context, ap *types.Applier) *lowerer {
	return &lowerer{c: c, ap: ap, alias: make(map[symbols.Symbol]symbols.Symbol)}
}

func (l *lowerer) fresh() symbols.Symbol {
	return l.c.prog.Interns.Fresh(l.c.prog.Home)
}

func (l *lowerer) typeOf(t types.TypeID) types.TypeID { return l.ap.Apply(t) }

func (l *lowerer) layoutOf(t types.TypeID, span source.Span) layout.ID {
	id, err := l.c.res.Resolve(l.typeOf(t))
	if err != nil {
		l.fail(span, diag.MonoErroneousLayout, err.Error())
		return l.c.res.Layouts.Unit()
	}
	return id
}

// fail records the first problem of this procedure; its body is replaced
// by a runtime error once lowering finishes.
func (l *lowerer) fail(span source.Span, code diag.Code, msg string) {
	if l.failed != "" {
		return
	}
	l.failed = msg
	l.c.problem(code, diag.SevError, span, "%s", msg)
}

func (l *lowerer) finishBody(body *ir.Stmt) *ir.Stmt {
	if l.failed != "" {
		return ir.NewError(l.failed)
	}
	return body
}

func (l *lowerer) sym(s symbols.Symbol) symbols.Symbol {
	for {
		a, ok := l.alias[s]
		if !ok {
			return s
		}
		s = a
	}
}

func (l *lowerer) isGlobal(s symbols.Symbol) bool {
	_, ok := l.c.prog.Defs[s]
	return ok
}

// localVar reports whether e reads a local variable, and which symbol
// holds its value.
func (l *lowerer) localVar(e *hir.Expr) (symbols.Symbol, bool) {
	if e.Kind != hir.ExprVar {
		return symbols.NoSymbol, false
	}
	v := e.Data.(hir.VarData).Symbol
	if l.isGlobal(v) {
		return symbols.NoSymbol, false
	}
	return l.sym(v), true
}

// lowerTo lowers e in tail position relative to d.
func (l *lowerer) lowerTo(e *hir.Expr, d dest) *ir.Stmt {
	switch data := e.Data.(type) {
	case hir.LetData:
		return l.lowerLet(data, e.Span, func() *ir.Stmt { return l.lowerTo(data.Body, d) })
	case hir.IfData:
		return l.lowerIf(data, 0, d)
	case hir.WhenData:
		return l.lowerWhen(e, d)
	case hir.RuntimeErrorData:
		return ir.NewError(data.Message)
	}
	return l.lowerWith(e, d.deliver)
}

// lowerWith evaluates e into a symbol and hands it to k.
func (l *lowerer) lowerWith(e *hir.Expr, k func(symbols.Symbol) *ir.Stmt) *ir.Stmt {
	if v, ok := l.localVar(e); ok {
		return k(v)
	}
	s := l.fresh()
	return l.lowerInto(e, s, k(s))
}

// lowerArgs evaluates args left to right and hands their symbols to k.
func (l *lowerer) lowerArgs(args []*hir.Expr, k func([]symbols.Symbol) *ir.Stmt) *ir.Stmt {
	syms := make([]symbols.Symbol, len(args))
	computed := make([]bool, len(args))
	for i, a := range args {
		if v, ok := l.localVar(a); ok {
			syms[i] = v
			continue
		}
		syms[i] = l.fresh()
		computed[i] = true
	}
	s := k(syms)
	for i := len(args) - 1; i >= 0; i-- {
		if computed[i] {
			s = l.lowerInto(args[i], syms[i], s)
		}
	}
	return s
}

// lowerInto binds the value of e to assigned, then continues with hole.
func (l *lowerer) lowerInto(e *hir.Expr, assigned symbols.Symbol, hole *ir.Stmt) *ir.Stmt {
	lay := l.layoutOf(e.Type, e.Span)
	switch d := e.Data.(type) {
	case hir.IntData:
		return ir.NewLet(assigned, lay, l.intLit(d.Value, lay), hole)
	case hir.FloatData:
		return ir.NewLet(assigned, lay, ir.FloatLit(d.Value, l.c.res.Layouts.Get(lay).Width), hole)
	case hir.StrData:
		return ir.NewLet(assigned, lay, ir.StrLit(d.Value), hole)
	case hir.VarData:
		return l.lowerVar(e, d.Symbol, assigned, lay, hole)
	case hir.TagData:
		return l.lowerTag(e, d, assigned, lay, hole)
	case hir.RecordData:
		return l.lowerRecord(e, d, assigned, lay, hole)
	case hir.AccessData:
		recType := l.typeOf(d.Record.Type)
		pos, err := l.c.res.FieldIndex(recType, d.Field)
		if err != nil {
			l.fail(e.Span, diag.MonoInternal, err.Error())
			return ir.NewError(err.Error())
		}
		recLayout := l.layoutOf(recType, d.Record.Span)
		return l.lowerWith(d.Record, func(r symbols.Symbol) *ir.Stmt {
			return ir.NewLet(assigned, lay, ir.Index(r, recLayout, pos, -1), hole)
		})
	case hir.ListData:
		elem := l.c.res.Layouts.Get(lay).Elem
		return l.lowerArgs(d.Elems, func(xs []symbols.Symbol) *ir.Stmt {
			return ir.NewLet(assigned, lay, ir.Expr{Kind: ir.ExprArray, Elem: elem, Args: xs}, hole)
		})
	case hir.CallData:
		return l.lowerCall(e, d, assigned, lay, hole)
	case hir.LowLevelData:
		return l.lowerArgs(d.Args, func(xs []symbols.Symbol) *ir.Stmt {
			return ir.NewLet(assigned, lay, ir.LowLevel(d.Op, xs...), hole)
		})
	case hir.ClosureData:
		caps := make([]symbols.Symbol, len(d.Captures))
		for i, cp := range d.Captures {
			caps[i] = l.sym(cp.Symbol)
		}
		return l.construct(d.Symbol, e.Type, caps, assigned, hole, e.Span)
	case hir.LetData:
		return l.lowerLet(d, e.Span, func() *ir.Stmt { return l.lowerInto(d.Body, assigned, hole) })
	case hir.IfData:
		j := l.fresh()
		return ir.NewJoin(j, []ir.Param{{Symbol: assigned, Layout: lay}}, hole, l.lowerIf(d, 0, dest{join: j}))
	case hir.WhenData:
		j := l.fresh()
		return ir.NewJoin(j, []ir.Param{{Symbol: assigned, Layout: lay}}, hole, l.lowerWhen(e, dest{join: j}))
	case hir.RuntimeErrorData:
		return ir.NewError(d.Message)
	}
	l.fail(e.Span, diag.MonoInternal, fmt.Sprintf("cannot lower %s expression", e.Kind))
	return ir.NewError("unsupported expression")
}

func (l *lowerer) intLit(v int64, lay layout.ID) ir.Expr {
	ll := l.c.res.Layouts.Get(lay)
	switch ll.Kind {
	case layout.KindInt:
		return ir.IntLit(v, ll.Width, ll.Signed)
	case layout.KindFloat:
		return ir.FloatLit(float64(v), ll.Width)
	}
	return ir.I64Lit(v)
}

func (l *lowerer) lowerVar(e *hir.Expr, v symbols.Symbol, assigned symbols.Symbol, lay layout.ID, hole *ir.Stmt) *ir.Stmt {
	def, global := l.c.prog.Lookup(v)
	if !global {
		ir.Substitute(hole, assigned, l.sym(v))
		return hole
	}
	if def.IsFunction() {
		return l.construct(v, e.Type, nil, assigned, hole, e.Span)
	}
	name, ok := l.c.ensure(v, l.typeOf(e.Type), e.Span)
	if !ok {
		return ir.NewError("unknown value " + l.c.name(v))
	}
	return ir.NewLet(assigned, lay, ir.Call(name), hole)
}

// construct binds assigned to the closure value of member with caps.
func (l *lowerer) construct(member symbols.Symbol, fnType types.TypeID, caps []symbols.Symbol, assigned symbols.Symbol, hole *ir.Stmt, span source.Span) *ir.Stmt {
	t := l.typeOf(fnType)
	set, err := lambdaset.Resolve(l.c.res, t)
	if err != nil {
		l.fail(span, diag.MonoErroneousLayout, err.Error())
		return ir.NewError(err.Error())
	}
	if _, ok := l.c.ensure(member, t, span); !ok {
		return ir.NewError("cannot specialize " + l.c.name(member))
	}
	value, err := set.Construct(member, caps)
	if err != nil {
		l.fail(span, diag.MonoInternal, err.Error())
		return ir.NewError(err.Error())
	}
	return ir.NewLet(assigned, set.Layout, value, hole)
}

// unpackCaptures binds the captures of lam out of env before body.
func (l *lowerer) unpackCaptures(env symbols.Symbol, lam hir.ClosureData, t types.TypeID, body *ir.Stmt) *ir.Stmt {
	set, err := lambdaset.Resolve(l.c.res, t)
	if err != nil {
		l.fail(source.Span{}, diag.MonoErroneousLayout, err.Error())
		return body
	}
	reads := set.Unpack(env, lam.Symbol)
	lays := set.CaptureLayouts(lam.Symbol)
	for i := len(reads) - 1; i >= 0 && i < len(lam.Captures); i-- {
		body = ir.NewLet(lam.Captures[i].Symbol, lays[i], reads[i], body)
	}
	return body
}

func (l *lowerer) lowerCall(e *hir.Expr, d hir.CallData, assigned symbols.Symbol, lay layout.ID, hole *ir.Stmt) *ir.Stmt {
	calleeType := l.typeOf(d.Callee.Type)
	if v, ok := d.Callee.Data.(hir.VarData); ok {
		if def, ok := l.c.prog.Lookup(v.Symbol); ok && def.IsFunction() {
			name, ok := l.c.ensure(v.Symbol, calleeType, e.Span)
			if !ok {
				return ir.NewError("cannot specialize " + l.c.name(v.Symbol))
			}
			return l.lowerArgs(d.Args, func(xs []symbols.Symbol) *ir.Stmt {
				return ir.NewLet(assigned, lay, ir.Call(name, xs...), hole)
			})
		}
	}
	set, err := lambdaset.Resolve(l.c.res, calleeType)
	if err != nil {
		l.fail(e.Span, diag.MonoErroneousLayout, err.Error())
		return ir.NewError(err.Error())
	}
	// an unspecializable member makes the whole call an error stub
	var missing symbols.Symbol
	failed := false
	target := func(i int) ir.ProcName {
		sym := set.Members()[i].Symbol
		name, ok := l.c.ensure(sym, calleeType, e.Span)
		if !ok && !failed {
			missing, failed = sym, true
		}
		return name
	}
	return l.lowerWith(d.Callee, func(f symbols.Symbol) *ir.Stmt {
		return l.lowerArgs(d.Args, func(xs []symbols.Symbol) *ir.Stmt {
			call := set.Dispatch(lambdaset.Call{
				Value:    f,
				Args:     xs,
				Result:   lay,
				Assigned: assigned,
				Hole:     hole,
				Fresh:    l.fresh,
				Target:   target,
			})
			if failed {
				return ir.NewError("cannot specialize " + l.c.name(missing))
			}
			return call
		})
	})
}

func (l *lowerer) lowerTag(e *hir.Expr, d hir.TagData, assigned symbols.Symbol, lay layout.ID, hole *ir.Stmt) *ir.Stmt {
	info, _ := l.c.types.UnionInfo(l.typeOf(e.Type))
	tid, ok := info.TagIndex(d.Name)
	if !ok {
		msg := fmt.Sprintf("tag %s is not part of its union type", d.Name)
		l.fail(e.Span, diag.MonoInternal, msg)
		return ir.NewError(msg)
	}
	id, _ := safecast.Conv[uint32](tid)
	ul := l.c.res.Layouts.Get(lay)
	switch {
	case ul.Kind == layout.KindUnion && ul.Repr == layout.ReprByteTag:
		if ul.IsBool() {
			return ir.NewLet(assigned, lay, ir.BoolLit(tid == 1), hole)
		}
		b, _ := safecast.Conv[uint8](tid)
		return ir.NewLet(assigned, lay, ir.U8Lit(b), hole)
	case ul.Kind != layout.KindUnion:
		// single-variant unions are laid out as their payload struct
		return l.lowerArgs(d.Args, func(xs []symbols.Symbol) *ir.Stmt {
			return ir.NewLet(assigned, lay, ir.Struct(xs...), hole)
		})
	case ul.PayloadOffset() == 0:
		return l.lowerArgs(d.Args, func(xs []symbols.Symbol) *ir.Stmt {
			return ir.NewLet(assigned, lay, tagExpr(d.Name, id, lay, xs), hole)
		})
	}
	tagSym := l.fresh()
	inner := l.lowerArgs(d.Args, func(xs []symbols.Symbol) *ir.Stmt {
		args := append([]symbols.Symbol{tagSym}, xs...)
		return ir.NewLet(assigned, lay, tagExpr(d.Name, id, lay, args), hole)
	})
	return ir.NewLet(tagSym, l.c.res.Layouts.I64(), ir.I64Lit(int64(tid)), inner)
}

func tagExpr(name string, id uint32, of layout.ID, args []symbols.Symbol) ir.Expr {
	return ir.Expr{Kind: ir.ExprTag, Tag: name, ID: id, Of: of, Args: args}
}

func (l *lowerer) lowerRecord(e *hir.Expr, d hir.RecordData, assigned symbols.Symbol, lay layout.ID, hole *ir.Stmt) *ir.Stmt {
	t := l.typeOf(e.Type)
	ordered := make([]*hir.Expr, len(d.Fields))
	for _, f := range d.Fields {
		pos, err := l.c.res.FieldIndex(t, f.Name)
		if err != nil || int(pos) >= len(ordered) {
			msg := fmt.Sprintf("record field %s does not fit its type", f.Name)
			l.fail(e.Span, diag.MonoInternal, msg)
			return ir.NewError(msg)
		}
		ordered[pos] = f.Value
	}
	return l.lowerArgs(ordered, func(xs []symbols.Symbol) *ir.Stmt {
		return ir.NewLet(assigned, lay, ir.Struct(xs...), hole)
	})
}

func (l *lowerer) lowerIf(d hir.IfData, i int, to dest) *ir.Stmt {
	if i == len(d.Branches) {
		return l.lowerTo(d.Else, to)
	}
	b := d.Branches[i]
	return l.lowerWith(b.Cond, func(c symbols.Symbol) *ir.Stmt {
		then := l.lowerTo(b.Then, to)
		return ir.NewIf(c, then, l.lowerIf(d, i+1, to))
	})
}

// lowerLet binds the pattern of d and continues with body. Identifier
// patterns bind directly; anything else is matched like a one-branch when.
func (l *lowerer) lowerLet(d hir.LetData, span source.Span, body func() *ir.Stmt) *ir.Stmt {
	p := d.Pattern
	switch p.Kind {
	case hir.PatIdent:
		if v, ok := l.localVar(d.Value); ok {
			l.alias[p.Symbol] = v
			return body()
		}
		next := body()
		return l.lowerInto(d.Value, p.Symbol, next)
	case hir.PatWildcard:
		s := l.fresh()
		next := body()
		return l.lowerInto(d.Value, s, next)
	}
	return l.lowerWith(d.Value, func(v symbols.Symbol) *ir.Stmt {
		branches := []hir.Branch{{Patterns: []*hir.Pattern{p}, Span: span}}
		return l.match(v, d.Value.Type, branches, func(int) *ir.Stmt { return body() }, span)
	})
}
