// Package mono specializes a solved program into first-order procedures.
//
// Every reachable (definition, concrete layout) pair becomes one ir.Proc.
// Lowering walks a definition body once per specialization, resolving the
// layout of every value, compiling `when` into decision trees and turning
// function values into their lambda set representation. Calls to other
// definitions enqueue further specializations on a FIFO work-list, so the
// order of procedures depends only on the input program.
package mono

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"monoc/internal/builtins"
	"monoc/internal/decision"
	"monoc/internal/diag"
	"monoc/internal/hir"
	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/trace"
	"monoc/internal/types"
)

// DefaultMaxProcs bounds the number of specializations of one program.
const DefaultMaxProcs = 100_000

// ErrTooManyProcs is returned when specialization does not converge.
var ErrTooManyProcs = errors.New("mono: specialization limit reached")

// ErrTableCorrupt is returned when one procedure name would stand for two
// specializations.
var ErrTableCorrupt = errors.New("mono: specialization table corrupt")

// Options configures Specialize.
type Options struct {
	Target          layout.Target
	DefaultIntWidth uint8
	MaxProcs        int
	// Reporter, when set, receives every problem as it is found.
	Reporter diag.Reporter
}

// Key identifies one specialization: the definition and the Function
// layout of its parameters (environment last) and result.
type Key struct {
	Symbol symbols.Symbol
	Layout layout.ID
}

// Problem is a diagnostic raised during specialization.
type Problem struct {
	Code     diag.Code
	Severity diag.Severity
	Span     source.Span
	Message  string
}

// Result is the specialized program.
type Result struct {
	Program  *hir.Program
	Resolver *layout.Resolver
	Procs    map[Key]*ir.Proc
	Order    []Key
	Entries  []Key
	Problems []Problem
}

// List returns every procedure in creation order.
func (r *Result) List() []*ir.Proc {
	out := make([]*ir.Proc, 0, len(r.Order))
	for _, k := range r.Order {
		out = append(out, r.Procs[k])
	}
	return out
}

// Lookup finds a procedure by name.
func (r *Result) Lookup(name ir.ProcName) (*ir.Proc, bool) {
	for _, k := range r.Order {
		if p := r.Procs[k]; p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Reachable lists the procedures reachable from the entries by calls, in
// creation order.
func (r *Result) Reachable() []*ir.Proc {
	byName := make(map[ir.ProcName]*ir.Proc, len(r.Procs))
	for _, p := range r.Procs {
		byName[p.Name] = p
	}
	seen := make(map[ir.ProcName]bool)
	var queue []ir.ProcName
	for _, k := range r.Entries {
		name := r.Procs[k].Name
		seen[name] = true
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		p := byName[queue[0]]
		queue = queue[1:]
		if p == nil {
			continue
		}
		for _, callee := range ir.Calls(p.Body) {
			if !seen[callee] {
				seen[callee] = true
				queue = append(queue, callee)
			}
		}
	}
	var out []*ir.Proc
	for _, k := range r.Order {
		if p := r.Procs[k]; seen[p.Name] {
			out = append(out, p)
		}
	}
	return out
}

// HasErrors reports whether any problem is an error.
func (r *Result) HasErrors() bool {
	for _, p := range r.Problems {
		if p.Severity == diag.SevError {
			return true
		}
	}
	return false
}

// Text renders the reachable procedures.
func (r *Result) Text() string {
	return ir.NewPrinter(r.Program.Interns).Program(r.Reachable())
}

// Diagnostics converts the problems for rendering.
func (r *Result) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(r.Problems))
	for i, p := range r.Problems {
		out[i] = diag.Diagnostic{Severity: p.Severity, Code: p.Code, Message: p.Message, Primary: p.Span}
	}
	return out
}

// pending is a specialization whose body has not been lowered yet.
type pending struct {
	key  Key
	proc *ir.Proc
	// concrete is the function type (or value type) of this instance.
	concrete types.TypeID
	// source is the lambda, or the value expression of a value def.
	source *hir.Expr
	span   source.Span
}

// Context holds the state of one Specialize run.
type Context struct {
	prog   *hir.Program
	types  *types.Interner
	res    *layout.Resolver
	opts   Options
	span   *trace.Span

	closures map[symbols.Symbol]*hir.Expr
	procs    map[Key]*ir.Proc
	names    map[ir.ProcName]Key
	order    []Key
	specs    map[symbols.Symbol]int
	queue    []*pending
	unions   map[types.TypeID]*decision.Union
	problems []Problem
	overflow bool
	corrupt  error
}

// Specialize lowers every definition reachable from prog.Exposed. The
// builtin definitions are installed into prog first.
func Specialize(ctx context.Context, prog *hir.Program, opts Options) (*Result, error) {
	if opts.MaxProcs <= 0 {
		opts.MaxProcs = DefaultMaxProcs
	}
	if opts.Target.PtrSize == 0 {
		opts.Target = layout.X86_64LinuxGNU()
	}
	builtins.Install(prog)

	c := newContext(prog, opts)
	_, span := trace.Start(ctx, trace.ScopePass, "specialize")
	c.span = span
	c.collectClosures()

	var entries []Key
	for _, sym := range prog.Exposed {
		if k, ok := c.entry(sym); ok {
			entries = append(entries, k)
		}
	}
	if c.corrupt != nil {
		span.End("corrupt")
		return nil, c.corrupt
	}
	for len(c.queue) > 0 {
		if err := ctx.Err(); err != nil {
			span.End("cancelled")
			return nil, err
		}
		p := c.queue[0]
		c.queue = c.queue[1:]
		c.lowerProc(p)
		if c.overflow {
			span.End("overflow")
			return nil, fmt.Errorf("%w: more than %d procedures", ErrTooManyProcs, opts.MaxProcs)
		}
		if c.corrupt != nil {
			span.End("corrupt")
			return nil, c.corrupt
		}
	}
	span.WithExtra("procs", strconv.Itoa(len(c.order))).End("")

	return &Result{
		Program:  prog,
		Resolver: c.res,
		Procs:    c.procs,
		Order:    c.order,
		Entries:  entries,
		Problems: c.problems,
	}, nil
}

func newContext(prog *hir.Program, opts Options) *Context {
	res := layout.NewResolver(prog.Types, opts.Target)
	if opts.DefaultIntWidth != 0 {
		res.DefaultIntWidth = opts.DefaultIntWidth
	}
	return &Context{
		prog:     prog,
		types:    prog.Types,
		res:      res,
		opts:     opts,
		closures: make(map[symbols.Symbol]*hir.Expr),
		procs:    make(map[Key]*ir.Proc),
		names:    make(map[ir.ProcName]Key),
		specs:    make(map[symbols.Symbol]int),
		unions:   make(map[types.TypeID]*decision.Union),
	}
}

func (c *Context) problem(code diag.Code, sev diag.Severity, span source.Span, format string, args ...any) {
	p := Problem{Code: code, Severity: sev, Span: span, Message: fmt.Sprintf(format, args...)}
	c.problems = append(c.problems, p)
	if c.opts.Reporter != nil {
		c.opts.Reporter.Report(p.Code, p.Severity, p.Span, p.Message, nil)
	}
}

func (c *Context) name(sym symbols.Symbol) string {
	return c.prog.Interns.String(sym)
}

// collectClosures indexes every lambda in the program by its symbol.
func (c *Context) collectClosures() {
	var walk func(e *hir.Expr)
	walk = func(e *hir.Expr) {
		if e == nil {
			return
		}
		switch d := e.Data.(type) {
		case hir.TagData:
			for _, a := range d.Args {
				walk(a)
			}
		case hir.RecordData:
			for _, f := range d.Fields {
				walk(f.Value)
			}
		case hir.AccessData:
			walk(d.Record)
		case hir.ListData:
			for _, a := range d.Elems {
				walk(a)
			}
		case hir.CallData:
			walk(d.Callee)
			for _, a := range d.Args {
				walk(a)
			}
		case hir.LowLevelData:
			for _, a := range d.Args {
				walk(a)
			}
		case hir.ClosureData:
			c.closures[d.Symbol] = e
			walk(d.Body)
		case hir.WhenData:
			walk(d.Cond)
			for _, b := range d.Branches {
				for _, p := range b.Patterns {
					walkDefaults(p, walk)
				}
				walk(b.Guard)
				walk(b.Body)
			}
		case hir.IfData:
			for _, b := range d.Branches {
				walk(b.Cond)
				walk(b.Then)
			}
			walk(d.Else)
		case hir.LetData:
			walkDefaults(d.Pattern, walk)
			walk(d.Value)
			walk(d.Body)
		}
	}
	for _, sym := range c.prog.Order {
		walk(c.prog.Defs[sym].Expr)
	}
}

func walkDefaults(p *hir.Pattern, walk func(*hir.Expr)) {
	if p == nil {
		return
	}
	for _, a := range p.Args {
		walkDefaults(a, walk)
	}
	for _, f := range p.Fields {
		walk(f.Default)
		walkDefaults(f.Sub, walk)
	}
}

// entry specializes an exposed definition at its own type.
func (c *Context) entry(sym symbols.Symbol) (Key, bool) {
	def, ok := c.prog.Lookup(sym)
	if !ok {
		c.problem(diag.MonoUnknownSymbol, diag.SevError, source.Span{}, "exposed symbol %s is not defined", c.name(sym))
		return Key{}, false
	}
	key, err := c.keyOf(sym, def.Type)
	if err != nil {
		c.problem(diag.MonoEntryNotConcrete, diag.SevError, def.Span,
			"entry %s has no concrete layout: %v", c.prog.Interns.Describe(sym), err)
		return Key{}, false
	}
	if _, ok := c.ensure(sym, def.Type, def.Span); !ok {
		return Key{}, false
	}
	c.procs[key].Entry = true
	return key, true
}

// source finds the lambda or value expression sym names.
func (c *Context) source(sym symbols.Symbol) (*hir.Expr, bool) {
	if def, ok := c.prog.Lookup(sym); ok {
		return def.Expr, def.Expr != nil
	}
	e, ok := c.closures[sym]
	return e, ok
}

// keyOf computes the specialization key of sym at concrete type t.
func (c *Context) keyOf(sym symbols.Symbol, t types.TypeID) (Key, error) {
	fn, isFn := c.types.FuncInfo(t)
	if !isFn {
		l, err := c.res.Resolve(t)
		if err != nil {
			return Key{}, err
		}
		return Key{Symbol: sym, Layout: c.res.Layouts.Function(nil, l)}, nil
	}
	params := make([]layout.ID, 0, len(fn.Params)+1)
	for _, p := range fn.Params {
		l, err := c.res.Resolve(p)
		if err != nil {
			return Key{}, err
		}
		params = append(params, l)
	}
	if env, err := c.envLayout(sym, t); err != nil {
		return Key{}, err
	} else if env.IsValid() {
		params = append(params, env)
	}
	result, err := c.res.Resolve(fn.Result)
	if err != nil {
		return Key{}, err
	}
	return Key{Symbol: sym, Layout: c.res.Layouts.Function(params, result)}, nil
}

// envLayout is the layout of the closure environment parameter of member
// sym of function type t, or NoID when sym captures nothing.
func (c *Context) envLayout(sym symbols.Symbol, t types.TypeID) (layout.ID, error) {
	fn, _ := c.types.FuncInfo(t)
	info, ok := c.types.LambdaSetInfo(fn.Lambdas)
	if !ok {
		return layout.NoID, nil
	}
	i, ok := info.MemberIndex(sym)
	if !ok || len(info.Members[i].Captures) == 0 {
		return layout.NoID, nil
	}
	return c.res.Resolve(t)
}

// ensure returns the procedure for sym at concrete type t, enqueueing a new
// specialization if none exists.
func (c *Context) ensure(sym symbols.Symbol, t types.TypeID, span source.Span) (ir.ProcName, bool) {
	src, ok := c.source(sym)
	if !ok {
		c.problem(diag.MonoUnknownSymbol, diag.SevError, span, "reference to unknown definition %s", c.name(sym))
		return ir.ProcName{}, false
	}
	key, err := c.keyOf(sym, t)
	if err != nil {
		c.problem(diag.MonoErroneousLayout, diag.SevError, span,
			"cannot specialize %s: %v", c.prog.Interns.Describe(sym), err)
		return ir.ProcName{}, false
	}
	if p, ok := c.procs[key]; ok {
		return p.Name, true
	}
	if len(c.procs) >= c.opts.MaxProcs {
		c.overflow = true
		return ir.ProcName{}, false
	}
	name := ir.ProcName{Symbol: sym, Spec: c.specs[sym]}
	if other, taken := c.names[name]; taken && other != key {
		if c.corrupt == nil {
			c.corrupt = fmt.Errorf("%w: %s names two layouts", ErrTableCorrupt, name.String(c.prog.Interns))
		}
		return ir.ProcName{}, false
	}
	c.names[name] = key
	c.specs[sym]++
	fl := c.res.Layouts.Get(key.Layout)
	proc := &ir.Proc{Name: name, Ret: fl.Result}
	c.procs[key] = proc
	c.order = append(c.order, key)
	c.queue = append(c.queue, &pending{key: key, proc: proc, concrete: t, source: src, span: span})
	return name, true
}

// lowerProc fills in the parameters and body of p.
func (c *Context) lowerProc(p *pending) {
	span := c.span.Child(trace.ScopeProc, "proc:"+p.proc.Name.String(c.prog.Interns))
	defer span.End("")

	poly := p.source.Type
	subst := types.Subst{}
	if err := c.types.Unify(poly, p.concrete, subst); err != nil {
		c.problem(diag.MonoInternal, diag.SevError, p.span, "specializing %s: %v", c.name(p.key.Symbol), err)
		p.proc.Body = ir.NewError("specialization of " + c.name(p.key.Symbol) + " failed")
		return
	}
	l := newLowerer(c, c.types.NewApplier(subst))

	lam, isFn := p.source.Data.(hir.ClosureData)
	if !isFn {
		p.proc.Body = l.finishBody(l.lowerTo(p.source, dest{}))
		return
	}
	fl := c.res.Layouts.Get(p.key.Layout)
	params := make([]ir.Param, 0, len(lam.Params)+1)
	for i, param := range lam.Params {
		params = append(params, ir.Param{Symbol: param.Symbol, Layout: fl.Fields[i]})
	}
	body := l.lowerTo(lam.Body, dest{})
	if len(lam.Captures) > 0 && len(fl.Fields) > len(lam.Params) {
		env := c.prog.Interns.Attr(symbols.AttrClosure)
		params = append(params, ir.Param{Symbol: env, Layout: fl.Fields[len(lam.Params)]})
		body = l.unpackCaptures(env, lam, p.concrete, body)
	}
	p.proc.Params = params
	p.proc.Body = l.finishBody(body)
	rewriteTailCalls(p.proc, l.fresh)
}
