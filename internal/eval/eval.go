package eval

import (
	"context"
	"errors"
	"strconv"

	"fortio.org/safecast"

	"monoc/internal/ir"
	"monoc/internal/layout"
	"monoc/internal/symbols"
	"monoc/internal/trace"
)

const (
	DefaultMaxSteps = 50_000_000
	DefaultMaxDepth = 10_000

	// cancellation is polled every pollEvery statements
	pollEvery = 1 << 12
)

// Options bounds one run.
type Options struct {
	MaxSteps int
	MaxDepth int
}

// Machine executes procedures of one specialized program.
type Machine struct {
	Heap *Heap

	procs   map[ir.ProcName]*ir.Proc
	layouts *layout.Interner
	interns *symbols.Interns
	opts    Options

	steps int
	depth int
}

// New prepares a machine over procs.
func New(procs []*ir.Proc, layouts *layout.Interner, in *symbols.Interns, opts Options) *Machine {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	m := &Machine{
		Heap:    NewHeap(),
		procs:   make(map[ir.ProcName]*ir.Proc, len(procs)),
		layouts: layouts,
		interns: in,
		opts:    opts,
	}
	for _, p := range procs {
		m.procs[p.Name] = p
	}
	return m
}

// Outcome is the result of running one entry procedure.
type Outcome struct {
	Proc  string
	Value string // rendered result, empty when the program crashed
	Crash *Crash
	Steps int
	Heap  HeapStats
}

// Run calls entry with no arguments, renders its result, releases it and
// checks that the heap is empty. A program crash is reported in
// Outcome.Crash; the error is reserved for faults, leaks included.
func Run(ctx context.Context, procs []*ir.Proc, layouts *layout.Interner, in *symbols.Interns, entry ir.ProcName, opts Options) (*Outcome, error) {
	_, span := trace.Start(ctx, trace.ScopePass, "eval:"+entry.String(in))

	m := New(procs, layouts, in, opts)
	out := &Outcome{Proc: entry.String(in)}
	v, err := m.Call(ctx, entry)
	var crash *Crash
	switch {
	case errors.As(err, &crash):
		out.Crash = crash
	case err != nil:
		span.End("fault")
		return out, err
	default:
		p := m.procs[entry]
		rendered, rerr := m.Render(v, p.Ret)
		if rerr != nil {
			span.End("fault")
			return out, rerr
		}
		out.Value = rendered
		if rerr := m.protect(func() { m.Heap.Dec(v) }); rerr != nil {
			span.End("fault")
			return out, rerr
		}
	}
	out.Steps = m.steps
	out.Heap = m.Heap.Stats()
	span.WithExtra("steps", strconv.Itoa(m.steps)).
		WithExtra("allocs", strconv.Itoa(out.Heap.Allocs)).
		End("")
	return out, m.Heap.CheckLeaks()
}

// Call runs the procedure name with args, which it takes ownership of
// according to the procedure's parameter modes.
func (m *Machine) Call(ctx context.Context, name ir.ProcName, args ...Value) (Value, error) {
	var (
		v   Value
		err error
	)
	if perr := m.protect(func() { v, err = m.call(ctx, name, args) }); perr != nil {
		return Value{}, perr
	}
	if errors.Is(err, errUnreachable) {
		err = fault(CodeUnreachable, "unreachable executed outside a cleanup")
	}
	return v, err
}

// protect converts heap faults raised as panics into errors.
func (m *Machine) protect(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			f, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			err = f
		}
	}()
	fn()
	return err
}

type frame struct {
	proc  *ir.Proc
	env   map[symbols.Symbol]Value
	joins map[symbols.Symbol]*ir.JoinStmt
}

func (f *frame) get(s symbols.Symbol, in *symbols.Interns) Value {
	v, ok := f.env[s]
	if !ok {
		panic(fault(CodeUnboundSymbol, "%s reads unbound %s", f.proc.Name.String(in), in.String(s)))
	}
	return v
}

func (f *frame) args(syms []symbols.Symbol, in *symbols.Interns) []Value {
	out := make([]Value, len(syms))
	for i, s := range syms {
		out[i] = f.get(s, in)
	}
	return out
}

func (m *Machine) call(ctx context.Context, name ir.ProcName, args []Value) (Value, error) {
	p, ok := m.procs[name]
	if !ok {
		return Value{}, fault(CodeUnknownProc, "call to unknown procedure %s", name.String(m.interns))
	}
	if len(args) != len(p.Params) {
		return Value{}, fault(CodeBadIR, "%s takes %d arguments, got %d", name.String(m.interns), len(p.Params), len(args))
	}
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > m.opts.MaxDepth {
		return Value{}, fault(CodeStackOverflow, "call depth exceeds %d", m.opts.MaxDepth)
	}
	f := &frame{
		proc:  p,
		env:   make(map[symbols.Symbol]Value, 16),
		joins: make(map[symbols.Symbol]*ir.JoinStmt),
	}
	for i, param := range p.Params {
		f.env[param.Symbol] = args[i]
	}
	v, err := m.exec(ctx, f, p.Body)
	var crash *Crash
	if errors.As(err, &crash) {
		crash.Backtrace = append(crash.Backtrace, name.String(m.interns))
	}
	return v, err
}

func (m *Machine) tick(ctx context.Context) error {
	m.steps++
	if m.steps > m.opts.MaxSteps {
		return fault(CodeStepLimit, "more than %d steps", m.opts.MaxSteps)
	}
	if m.steps%pollEvery == 0 {
		return ctx.Err()
	}
	return nil
}

func (m *Machine) exec(ctx context.Context, f *frame, s *ir.Stmt) (Value, error) {
	for {
		if s == nil {
			return Value{}, fault(CodeBadIR, "%s: missing continuation", f.proc.Name.String(m.interns))
		}
		if err := m.tick(ctx); err != nil {
			return Value{}, err
		}
		switch s.Kind {
		case ir.StmtLet:
			v, err := m.expr(ctx, f, &s.Let.Expr, s.Let.Layout)
			if err != nil {
				return Value{}, err
			}
			f.env[s.Let.Symbol] = v
			s = s.Let.Next
		case ir.StmtInvoke:
			v, err := m.expr(ctx, f, &s.Invoke.Call, s.Invoke.Layout)
			if err != nil {
				return Value{}, m.unwind(ctx, f, s.Invoke.Cleanup, err)
			}
			f.env[s.Invoke.Symbol] = v
			s = s.Invoke.Next
		case ir.StmtRefcount:
			v := f.get(s.Refcount.Symbol, m.interns)
			switch s.Refcount.Op {
			case ir.Inc:
				m.Heap.Inc(v)
			case ir.Dec:
				m.Heap.Dec(v)
			case ir.Decref:
				m.Heap.Decref(v)
			}
			s = s.Refcount.Next
		case ir.StmtJoin:
			f.joins[s.Join.ID] = &s.Join
			s = s.Join.Next
		case ir.StmtJump:
			j, ok := f.joins[s.Jump.Target]
			if !ok || len(j.Params) != len(s.Jump.Args) {
				return Value{}, fault(CodeBadIR, "bad jump to %s", m.interns.String(s.Jump.Target))
			}
			// parameters may rebind the arguments, so read all first
			vals := f.args(s.Jump.Args, m.interns)
			for i, p := range j.Params {
				f.env[p.Symbol] = vals[i]
			}
			s = j.Body
		case ir.StmtIf:
			if f.get(s.If.Cond, m.interns).Int != 0 {
				s = s.If.Then
			} else {
				s = s.If.Else
			}
		case ir.StmtSwitch:
			s = m.arm(f, &s.Switch)
			if s == nil {
				return Value{}, fault(CodeBadIR, "switch has no arm for its value")
			}
		case ir.StmtRet:
			return f.get(s.Ret.Symbol, m.interns), nil
		case ir.StmtRuntimeError:
			return Value{}, &Crash{Message: s.Error.Message}
		case ir.StmtUnreachable:
			return Value{}, errUnreachable
		default:
			return Value{}, fault(CodeBadIR, "unknown statement kind %s", s.Kind)
		}
	}
}

func (m *Machine) arm(f *frame, sw *ir.SwitchStmt) *ir.Stmt {
	v := f.get(sw.Cond, m.interns).Int
	for _, c := range sw.Cases {
		if c.Value == uint64(v) {
			return c.Body
		}
	}
	return sw.Default
}

// unwind runs the cleanup of a failed invoke and passes the crash on.
// Faults skip cleanups.
func (m *Machine) unwind(ctx context.Context, f *frame, cleanup *ir.Stmt, err error) error {
	var crash *Crash
	if !errors.As(err, &crash) || cleanup == nil {
		return err
	}
	_, cerr := m.exec(ctx, f, cleanup)
	if errors.Is(cerr, errUnreachable) {
		return err
	}
	if cerr == nil {
		return fault(CodeBadIR, "cleanup of %s returned", f.proc.Name.String(m.interns))
	}
	return cerr
}

func (m *Machine) expr(ctx context.Context, f *frame, e *ir.Expr, result layout.ID) (Value, error) {
	switch e.Kind {
	case ir.ExprLiteral:
		return m.literal(e.Lit), nil
	case ir.ExprCall:
		return m.call(ctx, e.Proc, f.args(e.Args, m.interns))
	case ir.ExprLowLevel:
		return m.lowlevel(e.Op, f.args(e.Args, m.interns), result)
	case ir.ExprStruct:
		return AggValue(f.args(e.Args, m.interns)...), nil
	case ir.ExprArray:
		return m.Heap.AllocList(f.args(e.Args, m.interns)), nil
	case ir.ExprTag:
		return m.tag(e, f.args(e.Args, m.interns)), nil
	case ir.ExprClosureTag:
		return m.closure(e, f.args(e.Args, m.interns)), nil
	case ir.ExprIndex:
		return m.index(f.get(e.Args[0], m.interns), e.ID)
	case ir.ExprGetTagID:
		return IntValue(int64(m.tagOf(f.get(e.Args[0], m.interns), m.layouts.Get(e.Of)))), nil
	}
	return Value{}, fault(CodeBadIR, "unknown expression kind %d", e.Kind)
}

func (m *Machine) literal(l ir.Literal) Value {
	switch l.Kind {
	case ir.LitFloat:
		return FloatValue(l.Float)
	case ir.LitBool:
		return boolValue(l.Bool)
	case ir.LitStr:
		return m.Heap.AllocStr(l.Str)
	}
	return IntValue(l.Int)
}

func (m *Machine) tag(e *ir.Expr, args []Value) Value {
	ul := m.layouts.Get(e.Of)
	switch ul.Repr {
	case layout.ReprPointerTag:
		return m.Heap.AllocCell(args)
	case layout.ReprNullablePointer:
		if e.ID == ul.NullTag {
			return Null()
		}
		return m.Heap.AllocCell(args)
	}
	return AggValue(args...)
}

func (m *Machine) closure(e *ir.Expr, caps []Value) Value {
	if m.layouts.Get(e.Of).Closure == layout.ClosureUnion {
		return AggValue(append([]Value{IntValue(int64(e.ID))}, caps...)...)
	}
	return AggValue(caps...)
}

// index reads field pos of an inline aggregate or a heap cell.
func (m *Machine) index(v Value, pos uint32) (Value, error) {
	fields := v.Fields
	if v.Kind == VKPtr {
		fields = m.Heap.Get(v).Fields
	}
	if int(pos) >= len(fields) {
		return Value{}, fault(CodeBadIR, "Index %d of a value with %d fields", pos, len(fields))
	}
	return fields[pos], nil
}

// tagOf decodes the tag id of a union or closure value of layout l.
func (m *Machine) tagOf(v Value, l *layout.Layout) uint32 {
	switch {
	case l.Kind == layout.KindUnion && l.Repr == layout.ReprNullablePointer:
		if v.IsNull() {
			return l.NullTag
		}
		return 1 - l.NullTag
	case v.Kind == VKInt:
		return tagID(v.Int)
	case l.PayloadOffset() == 1:
		fields := v.Fields
		if v.Kind == VKPtr {
			fields = m.Heap.Get(v).Fields
		}
		return tagID(fields[0].Int)
	}
	return 0
}

func tagID(v int64) uint32 {
	id, err := safecast.Conv[uint32](v)
	if err != nil {
		panic(fault(CodeBadIR, "tag id %d out of range", v))
	}
	return id
}

// Render formats v, a value of layout id, for display.
func (m *Machine) Render(v Value, id layout.ID) (s string, err error) {
	err = m.protect(func() {
		r := renderer{m: m}
		s = r.value(v, id)
	})
	return s, err
}
