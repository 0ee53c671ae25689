package mono

import (
	"fmt"
	"slices"
	"strings"

	"fortio.org/safecast"

	"monoc/internal/decision"
	"monoc/internal/diag"
	"monoc/internal/hir"
	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/lowlevel"
	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

const nonExhaustiveMsg = "non-exhaustive pattern match"

// binding is one variable a row binds: the value at path, or the default
// expression of an optional record field the value lacks.
type binding struct {
	sym  symbols.Symbol
	path decision.Path
	def  *hir.Expr
}

type rowInfo struct {
	goal  int
	binds []binding
}

// matcher lowers one match over the value in root.
type matcher struct {
	l      *lowerer
	root   symbols.Symbol
	rows   []rowInfo
	guards []*hir.Expr
	body   func(goal int) *ir.Stmt
	ret    layout.ID
	// types holds the concrete type of every path the patterns visit.
	types map[string]types.TypeID

	errGoal int
	joins   map[int]symbols.Symbol
	params  map[int][]binding
	// inline marks shared goals reached from a single row; their join
	// body binds the row variables itself.
	inline map[int]bool
}

func (l *lowerer) lowerWhen(e *hir.Expr, d dest) *ir.Stmt {
	w := e.Data.(hir.WhenData)
	ret := l.layoutOf(e.Type, e.Span)
	return l.lowerWith(w.Cond, func(x symbols.Symbol) *ir.Stmt {
		m := l.newMatcher(x, w.Branches, ret, func(g int) *ir.Stmt { return l.lowerTo(w.Branches[g].Body, d) })
		return m.lower(w.Cond.Type, w.Branches, e.Span)
	})
}

// match lowers a single-branch destructuring of the value in root.
func (l *lowerer) match(root symbols.Symbol, t types.TypeID, branches []hir.Branch, body func(int) *ir.Stmt, span source.Span) *ir.Stmt {
	m := l.newMatcher(root, branches, layout.NoID, body)
	return m.lower(t, branches, span)
}

func (l *lowerer) newMatcher(root symbols.Symbol, branches []hir.Branch, ret layout.ID, body func(int) *ir.Stmt) *matcher {
	m := &matcher{
		l:       l,
		root:    root,
		body:    body,
		ret:     ret,
		types:   make(map[string]types.TypeID),
		errGoal: len(branches),
		joins:   make(map[int]symbols.Symbol),
		params:  make(map[int][]binding),
		inline:  make(map[int]bool),
	}
	for _, b := range branches {
		m.guards = append(m.guards, b.Guard)
	}
	return m
}

func (m *matcher) lower(condType types.TypeID, branches []hir.Branch, span source.Span) *ir.Stmt {
	rootType := m.l.typeOf(condType)
	var rows []decision.Row
	for g, b := range branches {
		for _, p := range b.Patterns {
			var binds []binding
			pat, ok := m.pattern(p, rootType, decision.Path{}, &binds)
			if !ok {
				return ir.NewError("unsupported pattern")
			}
			rows = append(rows, decision.Row{Pattern: pat, Guard: b.Guard != nil, Goal: g})
			m.rows = append(m.rows, rowInfo{goal: g, binds: binds})
		}
	}

	rep := decision.Check(rows)
	for _, g := range rep.Redundant {
		m.l.c.problem(diag.MonoRedundantBranch, diag.SevWarning, branches[g].Span, "branch %d can never match", g+1)
	}
	if !rep.Exhaustive() {
		missing := make([]string, len(rep.Missing))
		for i, w := range rep.Missing {
			missing[i] = w.String()
		}
		m.l.c.problem(diag.MonoNonExhaustive, diag.SevError, span, "match does not cover: %s", strings.Join(missing, ", "))
		rows = append(rows, decision.Row{Pattern: decision.Wildcard(), Goal: m.errGoal})
		m.rows = append(m.rows, rowInfo{goal: m.errGoal})
	}

	tree := decision.Compile(rows)
	leafRows := make(map[int][]int)
	collectRows(tree, leafRows)
	counts := decision.Goals(tree)
	var shared []int
	for g := 0; g <= m.errGoal; g++ {
		if counts[g] < 2 {
			continue
		}
		shared = append(shared, g)
		m.joins[g] = m.l.fresh()
		if len(leafRows[g]) == 1 {
			m.inline[g] = true
		} else {
			for _, b := range m.rows[leafRows[g][0]].binds {
				if len(b.path) > 0 || b.def != nil {
					m.params[g] = append(m.params[g], b)
				}
			}
		}
	}

	out := m.node(tree)
	for i := len(shared) - 1; i >= 0; i-- {
		g := shared[i]
		var params []ir.Param
		var body *ir.Stmt
		if m.inline[g] {
			body = m.bind(m.rows[leafRows[g][0]].binds, func() *ir.Stmt { return m.goal(g) })
		} else {
			for _, b := range m.params[g] {
				params = append(params, ir.Param{Symbol: b.sym, Layout: m.bindingLayout(b)})
			}
			body = m.goal(g)
		}
		out = ir.NewJoin(m.joins[g], params, body, out)
	}
	return out
}

// collectRows records, per goal, the distinct rows whose leaves or guards
// reach it, in tree order.
func collectRows(n *decision.Node, out map[int][]int) {
	if n == nil {
		return
	}
	switch n.Kind {
	case decision.Leaf, decision.Guarded:
		if !slices.Contains(out[n.Goal], n.Row) {
			out[n.Goal] = append(out[n.Goal], n.Row)
		}
		collectRows(n.Failure, out)
	case decision.Decide:
		for _, e := range n.Edges {
			collectRows(e.Node, out)
		}
		collectRows(n.Fallback, out)
	}
}

func (m *matcher) unsupported(p *hir.Pattern, format string, args ...any) (decision.Pattern, bool) {
	m.l.fail(p.Span, diag.MonoUnsupportedPattern, fmt.Sprintf(format, args...))
	return decision.Pattern{}, false
}

// pattern converts p, matched against a value of concrete type t at path.
func (m *matcher) pattern(p *hir.Pattern, t types.TypeID, path decision.Path, binds *[]binding) (decision.Pattern, bool) {
	m.types[path.Key()] = t
	switch p.Kind {
	case hir.PatWildcard:
		return decision.Wildcard(), true
	case hir.PatIdent:
		*binds = append(*binds, binding{sym: p.Symbol, path: path})
		return decision.Wildcard(), true
	case hir.PatInt:
		return decision.Pattern{Kind: decision.Int, Int: p.Int}, true
	case hir.PatFloat:
		return decision.Pattern{Kind: decision.Float, Float: p.Float}, true
	case hir.PatStr:
		return decision.Pattern{Kind: decision.Str, Str: p.Str}, true
	case hir.PatTag:
		return m.tagPattern(p, t, path, binds)
	case hir.PatRecord:
		return m.recordPattern(p, t, path, binds)
	}
	return m.unsupported(p, "unsupported %s pattern", p.Kind)
}

func (m *matcher) tagPattern(p *hir.Pattern, t types.TypeID, path decision.Path, binds *[]binding) (decision.Pattern, bool) {
	info, ok := m.l.c.types.UnionInfo(t)
	if !ok {
		return m.unsupported(p, "tag pattern %s against a non-union type", p.Tag)
	}
	tid, ok := info.TagIndex(p.Tag)
	if !ok || len(info.Tags[tid].Args) != len(p.Args) {
		return m.unsupported(p, "tag pattern %s does not fit its union type", p.Tag)
	}
	ul := m.l.c.res.Layouts.Get(m.l.layoutOf(t, p.Span))
	pat := decision.Pattern{Kind: decision.Ctor, Union: m.l.c.unionOf(t, info), Tag: tid, Variant: tid}
	var off uint32
	if ul.Kind != layout.KindUnion {
		pat.Variant = -1
	} else {
		off = ul.PayloadOffset()
	}
	for i, a := range p.Args {
		idx := off + mustU32(i)
		sub, ok := m.pattern(a, info.Tags[tid].Args[i], path.Extend(decision.Step{Index: idx, Variant: pat.Variant}), binds)
		if !ok {
			return decision.Pattern{}, false
		}
		pat.Fields = append(pat.Fields, decision.Field{Index: idx, Pattern: sub})
	}
	return pat, true
}

func (m *matcher) recordPattern(p *hir.Pattern, t types.TypeID, path decision.Path, binds *[]binding) (decision.Pattern, bool) {
	info, ok := m.l.c.types.RecordInfo(t)
	if !ok {
		return m.unsupported(p, "record pattern against a non-record type")
	}
	pat := decision.Pattern{Kind: decision.Ctor, Union: m.l.c.recordUnion(t, info), Variant: -1}
	for _, f := range info.Fields {
		pos, err := m.l.c.res.FieldIndex(t, f.Name)
		if err != nil {
			return m.unsupported(p, "%v", err)
		}
		sub := decision.Wildcard()
		if i := fieldPattern(p, f.Name); i >= 0 {
			fp := p.Fields[i]
			fpath := path.Extend(decision.Step{Index: pos, Variant: -1})
			m.types[fpath.Key()] = f.Type
			if fp.Symbol.IsValid() {
				*binds = append(*binds, binding{sym: fp.Symbol, path: fpath})
			}
			if fp.Sub != nil {
				if sub, ok = m.pattern(fp.Sub, f.Type, fpath, binds); !ok {
					return decision.Pattern{}, false
				}
			}
		}
		pat.Fields = append(pat.Fields, decision.Field{Index: pos, Pattern: sub})
	}
	for _, fp := range p.Fields {
		if _, _, present := info.Field(fp.Name); present {
			continue
		}
		if fp.Default == nil || !fp.Symbol.IsValid() {
			return m.unsupported(p, "record has no field %s", fp.Name)
		}
		*binds = append(*binds, binding{sym: fp.Symbol, def: fp.Default})
	}
	return pat, true
}

func fieldPattern(p *hir.Pattern, name string) int {
	for i, f := range p.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func mustU32(i int) uint32 {
	v, err := safecast.Conv[uint32](i)
	if err != nil {
		panic(fmt.Errorf("mono: field index: %w", err))
	}
	return v
}

// unionOf returns the constructor table of union type t, shared by every
// pattern on that type so the exhaustiveness check can compare them.
func (c *Context) unionOf(t types.TypeID, info types.UnionInfo) *decision.Union {
	if u, ok := c.unions[t]; ok {
		return u
	}
	u := &decision.Union{Alts: make([]decision.Alt, len(info.Tags))}
	for i, tag := range info.Tags {
		u.Alts[i] = decision.Alt{Name: tag.Name, Arity: len(tag.Args)}
	}
	c.unions[t] = u
	return u
}

func (c *Context) recordUnion(t types.TypeID, info types.RecordInfo) *decision.Union {
	if u, ok := c.unions[t]; ok {
		return u
	}
	alt := decision.Alt{Arity: len(info.Fields)}
	for _, f := range info.Fields {
		alt.Labels = append(alt.Labels, f.Name)
	}
	u := &decision.Union{Alts: []decision.Alt{alt}}
	c.unions[t] = u
	return u
}

func (m *matcher) typeAt(path decision.Path) types.TypeID {
	return m.types[path.Key()]
}

func (m *matcher) bindingLayout(b binding) layout.ID {
	if b.def != nil {
		return m.l.layoutOf(b.def.Type, b.def.Span)
	}
	return m.l.layoutOf(m.typeAt(b.path), source.Span{})
}

// load reads the value at path out of the root with a chain of Index
// reads, naming the last one final when it is valid.
func (m *matcher) load(path decision.Path, final symbols.Symbol, k func(symbols.Symbol, types.TypeID) *ir.Stmt) *ir.Stmt {
	if len(path) == 0 {
		return k(m.root, m.typeAt(path))
	}
	syms := make([]symbols.Symbol, len(path))
	for i := range syms {
		if i == len(syms)-1 && final.IsValid() {
			syms[i] = final
			continue
		}
		syms[i] = m.l.fresh()
	}
	s := k(syms[len(syms)-1], m.typeAt(path))
	for i := len(path) - 1; i >= 0; i-- {
		parent := m.root
		if i > 0 {
			parent = syms[i-1]
		}
		of := m.l.layoutOf(m.typeAt(path[:i]), source.Span{})
		lay := m.l.layoutOf(m.typeAt(path[:i+1]), source.Span{})
		s = ir.NewLet(syms[i], lay, ir.Index(parent, of, path[i].Index, path[i].Variant), s)
	}
	return s
}

// bind brings the variables of a row into scope, then continues with k.
func (m *matcher) bind(binds []binding, k func() *ir.Stmt) *ir.Stmt {
	for _, b := range binds {
		if len(b.path) == 0 && b.def == nil {
			m.l.alias[b.sym] = m.root
		}
	}
	next := k()
	for i := len(binds) - 1; i >= 0; i-- {
		b := binds[i]
		switch {
		case b.def != nil:
			next = m.l.lowerInto(b.def, b.sym, next)
		case len(b.path) > 0:
			n := next
			next = m.load(b.path, b.sym, func(symbols.Symbol, types.TypeID) *ir.Stmt { return n })
		}
	}
	return next
}

func (m *matcher) goal(g int) *ir.Stmt {
	if g == m.errGoal {
		return ir.NewError(nonExhaustiveMsg)
	}
	return m.body(g)
}

// reach continues to goal once the variables of row are in scope.
func (m *matcher) reach(g int) *ir.Stmt {
	j, shared := m.joins[g]
	if !shared {
		return m.goal(g)
	}
	params := m.params[g]
	args := make([]symbols.Symbol, len(params))
	for i, p := range params {
		args[i] = m.l.sym(p.sym)
	}
	return ir.NewJump(j, args...)
}

func (m *matcher) node(n *decision.Node) *ir.Stmt {
	switch n.Kind {
	case decision.Leaf:
		if m.inline[n.Goal] {
			return m.reach(n.Goal)
		}
		return m.bind(m.rows[n.Row].binds, func() *ir.Stmt { return m.reach(n.Goal) })
	case decision.Guarded:
		return m.guarded(n)
	case decision.Decide:
		return m.decide(n)
	}
	return ir.NewError(nonExhaustiveMsg)
}

// guarded evaluates a guard with the row's variables in scope. The guard
// result is passed to an inner join point that continues to the goal or
// falls through to the remaining rows.
func (m *matcher) guarded(n *decision.Node) *ir.Stmt {
	return m.bind(m.rows[n.Row].binds, func() *ir.Stmt {
		j := m.l.fresh()
		ok := m.l.fresh()
		success := m.reach(n.Goal)
		failure := m.node(n.Failure)
		test := m.l.lowerWith(m.guards[n.Goal], func(g symbols.Symbol) *ir.Stmt { return ir.NewJump(j, g) })
		params := []ir.Param{{Symbol: ok, Layout: m.l.c.res.Layouts.Bool()}}
		return ir.NewJoin(j, params, ir.NewIf(ok, success, failure), test)
	})
}

func (m *matcher) decide(n *decision.Node) *ir.Stmt {
	return m.load(n.Path, symbols.NoSymbol, func(v symbols.Symbol, t types.TypeID) *ir.Stmt {
		lay := m.l.layoutOf(t, source.Span{})
		explicit, def := n.Edges, n.Fallback
		if def == nil {
			def = explicit[len(explicit)-1].Node
			explicit = explicit[:len(explicit)-1]
		}
		if len(explicit) == 0 {
			return m.node(def)
		}
		switch n.Edges[0].Test.Kind {
		case decision.IsCtor:
			return m.decideCtor(v, lay, explicit, def)
		case decision.IsInt:
			if len(explicit) > 1 && nonNegative(explicit) {
				return m.switchOn(v, lay, explicit, def, func(t decision.Test) uint64 { return uint64(t.Int) })
			}
		}
		return m.ifChain(v, lay, explicit, 0, def)
	})
}

func nonNegative(edges []decision.Edge) bool {
	for _, e := range edges {
		if e.Test.Int < 0 {
			return false
		}
	}
	return true
}

func tagValue(t decision.Test) uint64 { return uint64(t.Tag) }

// decideCtor branches on the tag of a union value.
func (m *matcher) decideCtor(v symbols.Symbol, lay layout.ID, explicit []decision.Edge, def *decision.Node) *ir.Stmt {
	ins := m.l.c.res.Layouts
	ul := ins.Get(lay)
	if ul.IsBool() {
		then, els := def, def
		for _, e := range explicit {
			if e.Test.Tag == 1 {
				then = e.Node
			} else {
				els = e.Node
			}
		}
		thenS := m.node(then)
		return ir.NewIf(v, thenS, m.node(els))
	}

	tagLayout := ins.I64()
	if ul.Repr == layout.ReprByteTag {
		tagLayout = ins.U8()
	}
	withTag := func(k func(symbols.Symbol) *ir.Stmt) *ir.Stmt {
		switch {
		case ul.Repr == layout.ReprByteTag:
			return k(v)
		case ul.Repr == layout.ReprNullablePointer:
			t := m.l.fresh()
			return ir.NewLet(t, tagLayout, ir.GetTagID(v, lay), k(t))
		}
		t := m.l.fresh()
		return ir.NewLet(t, tagLayout, ir.Index(v, lay, 0, -1), k(t))
	}

	if len(explicit) > 1 {
		return withTag(func(tag symbols.Symbol) *ir.Stmt {
			return m.switchOn(tag, tagLayout, explicit, def, tagValue)
		})
	}
	lit := m.l.fresh()
	litExpr := ir.I64Lit(int64(explicit[0].Test.Tag))
	if tagLayout == ins.U8() {
		b, _ := safecast.Conv[uint8](explicit[0].Test.Tag)
		litExpr = ir.U8Lit(b)
	}
	return ir.NewLet(lit, tagLayout, litExpr, withTag(func(tag symbols.Symbol) *ir.Stmt {
		b := m.l.fresh()
		then := m.node(explicit[0].Node)
		els := m.node(def)
		return ir.NewLet(b, ins.Bool(), ir.LowLevel(lowlevel.Eq, lit, tag), ir.NewIf(b, then, els))
	}))
}

func (m *matcher) switchOn(v symbols.Symbol, lay layout.ID, explicit []decision.Edge, def *decision.Node, value func(decision.Test) uint64) *ir.Stmt {
	sw := ir.SwitchStmt{Cond: v, CondLayout: lay, Ret: m.ret}
	for _, e := range explicit {
		sw.Cases = append(sw.Cases, ir.Case{Value: value(e.Test), Body: m.node(e.Node)})
	}
	sw.Default = m.node(def)
	return &ir.Stmt{Kind: ir.StmtSwitch, Switch: sw}
}

// ifChain compares v against each literal edge in turn.
func (m *matcher) ifChain(v symbols.Symbol, lay layout.ID, edges []decision.Edge, i int, def *decision.Node) *ir.Stmt {
	if i == len(edges) {
		return m.node(def)
	}
	lit := m.l.fresh()
	b := m.l.fresh()
	then := m.node(edges[i].Node)
	rest := m.ifChain(v, lay, edges, i+1, def)
	return ir.NewLet(lit, lay, m.literal(edges[i].Test, lay),
		ir.NewLet(b, m.l.c.res.Layouts.Bool(), ir.LowLevel(lowlevel.Eq, lit, v), ir.NewIf(b, then, rest)))
}

func (m *matcher) literal(t decision.Test, lay layout.ID) ir.Expr {
	switch t.Kind {
	case decision.IsInt:
		return m.l.intLit(t.Int, lay)
	case decision.IsFloat:
		return ir.FloatLit(t.Float, m.l.c.res.Layouts.Get(lay).Width)
	}
	return ir.StrLit(t.Str)
}
