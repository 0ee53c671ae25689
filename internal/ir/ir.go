package ir

import (
	"strconv"

	"monoc/internal/layout"
	"monoc/internal/lowlevel"
	"monoc/internal/symbols"
)

// ProcName identifies a specialization. Spec is 0 for the first
// specialization of Symbol and counts up for later ones.
type ProcName struct {
	Symbol symbols.Symbol
	Spec   int
}

// String renders Module.N, or Module.N#k for later specializations.
func (n ProcName) String(in *symbols.Interns) string {
	s := in.String(n.Symbol)
	if n.Spec > 0 {
		s += "#" + strconv.Itoa(n.Spec)
	}
	return s
}

// Param is a procedure or join point parameter.
type Param struct {
	Symbol   symbols.Symbol
	Layout   layout.ID
	Borrowed bool
}

// Proc is one specialized procedure.
type Proc struct {
	Name   ProcName
	Params []Param
	Body   *Stmt
	Ret    layout.ID

	// Entry marks procedures exposed to the host.
	Entry bool
	// Fallible is set by the refcount pass when the procedure can abort.
	Fallible bool
}

// StmtKind enumerates statement forms.
type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtSwitch
	StmtIf
	StmtInvoke
	StmtJoin
	StmtJump
	StmtRet
	StmtRefcount
	StmtRuntimeError
	StmtUnreachable
)

func (k StmtKind) String() string {
	switch k {
	case StmtLet:
		return "let"
	case StmtSwitch:
		return "switch"
	case StmtIf:
		return "if"
	case StmtInvoke:
		return "invoke"
	case StmtJoin:
		return "joinpoint"
	case StmtJump:
		return "jump"
	case StmtRet:
		return "ret"
	case StmtRefcount:
		return "refcount"
	case StmtRuntimeError:
		return "error"
	case StmtUnreachable:
		return "unreachable"
	default:
		return "?"
	}
}

// RefcountOp is the operation of a StmtRefcount.
type RefcountOp uint8

const (
	Inc RefcountOp = iota
	Dec
	Decref
)

func (op RefcountOp) String() string {
	switch op {
	case Inc:
		return "inc"
	case Dec:
		return "dec"
	default:
		return "decref"
	}
}

// Stmt is a structured statement. Only the payload matching Kind is set.
type Stmt struct {
	Kind StmtKind

	Let      LetStmt
	Switch   SwitchStmt
	If       IfStmt
	Invoke   InvokeStmt
	Join     JoinStmt
	Jump     JumpStmt
	Ret      RetStmt
	Refcount RefcountStmt
	Error    ErrorStmt
}

// LetStmt binds Symbol to Expr and continues with Next.
type LetStmt struct {
	Symbol symbols.Symbol
	Layout layout.ID
	Expr   Expr
	Next   *Stmt
}

// Case is one switch arm.
type Case struct {
	Value uint64
	Body  *Stmt
}

// SwitchStmt dispatches on an integer-like symbol.
type SwitchStmt struct {
	Cond       symbols.Symbol
	CondLayout layout.ID
	Cases      []Case
	Default    *Stmt
	Ret        layout.ID
}

// IfStmt branches on a boolean symbol.
type IfStmt struct {
	Cond symbols.Symbol
	Then *Stmt
	Else *Stmt
}

// InvokeStmt is a call that may abort. Cleanup runs on the failure path and
// ends in StmtUnreachable; Next is the success continuation.
type InvokeStmt struct {
	Symbol  symbols.Symbol
	Layout  layout.ID
	Call    Expr
	Cleanup *Stmt
	Next    *Stmt
}

// JoinStmt declares join point ID with Body, then continues with Next.
type JoinStmt struct {
	ID     symbols.Symbol
	Params []Param
	Body   *Stmt
	Next   *Stmt
}

// JumpStmt transfers control to an enclosing join point.
type JumpStmt struct {
	Target symbols.Symbol
	Args   []symbols.Symbol
}

type RetStmt struct {
	Symbol symbols.Symbol
}

// RefcountStmt adjusts the count of Symbol and continues with Next.
type RefcountStmt struct {
	Op     RefcountOp
	Symbol symbols.Symbol
	Next   *Stmt
}

// ErrorStmt aborts with Message.
type ErrorStmt struct {
	Message string
}

// ExprKind enumerates right-hand sides of let and invoke.
type ExprKind uint8

const (
	ExprLiteral ExprKind = iota
	ExprCall
	ExprLowLevel
	ExprStruct
	ExprTag
	ExprIndex
	ExprArray
	ExprClosureTag
	ExprGetTagID
)

// LitKind distinguishes literal forms.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitFloat
	LitBool
	LitStr
)

// Literal is a constant. Width and Signed describe LitInt and LitFloat.
type Literal struct {
	Kind   LitKind
	Int    int64
	Float  float64
	Bool   bool
	Str    string
	Width  uint8
	Signed bool
}

// Expr is a flat right-hand side. Args holds the operand symbols of every
// kind that takes operands.
type Expr struct {
	Kind ExprKind
	Args []symbols.Symbol

	Lit  Literal        // ExprLiteral
	Proc ProcName       // ExprCall
	Op   lowlevel.Op    // ExprLowLevel
	Tag  string         // ExprTag: constructor name
	ID   uint32         // ExprTag, ExprClosureTag: tag id; ExprIndex: field position
	Of   layout.ID      // ExprTag, ExprClosureTag: the union/closure layout; ExprIndex: layout of Args[0]
	Elem layout.ID      // ExprArray
	Var  int            // ExprIndex: variant the field belongs to, -1 for structs
	Sym  symbols.Symbol // ExprClosureTag: lambda set member
}

// Operands returns the symbols an expression reads.
func (e *Expr) Operands() []symbols.Symbol {
	return e.Args
}

// IsCall reports whether e calls a procedure by name.
func (e *Expr) IsCall() bool { return e.Kind == ExprCall }

func NewLet(sym symbols.Symbol, l layout.ID, e Expr, next *Stmt) *Stmt {
	return &Stmt{Kind: StmtLet, Let: LetStmt{Symbol: sym, Layout: l, Expr: e, Next: next}}
}

func NewRet(sym symbols.Symbol) *Stmt {
	return &Stmt{Kind: StmtRet, Ret: RetStmt{Symbol: sym}}
}

func NewJump(target symbols.Symbol, args ...symbols.Symbol) *Stmt {
	return &Stmt{Kind: StmtJump, Jump: JumpStmt{Target: target, Args: args}}
}

func NewIf(cond symbols.Symbol, then, els *Stmt) *Stmt {
	return &Stmt{Kind: StmtIf, If: IfStmt{Cond: cond, Then: then, Else: els}}
}

func NewJoin(id symbols.Symbol, params []Param, body, next *Stmt) *Stmt {
	return &Stmt{Kind: StmtJoin, Join: JoinStmt{ID: id, Params: params, Body: body, Next: next}}
}

func NewRefcount(op RefcountOp, sym symbols.Symbol, next *Stmt) *Stmt {
	return &Stmt{Kind: StmtRefcount, Refcount: RefcountStmt{Op: op, Symbol: sym, Next: next}}
}

func NewError(msg string) *Stmt {
	return &Stmt{Kind: StmtRuntimeError, Error: ErrorStmt{Message: msg}}
}

func NewUnreachable() *Stmt {
	return &Stmt{Kind: StmtUnreachable}
}

// IntLit builds an integer literal of the given width.
func IntLit(v int64, width uint8, signed bool) Expr {
	return Expr{Kind: ExprLiteral, Lit: Literal{Kind: LitInt, Int: v, Width: width, Signed: signed}}
}

// I64Lit is an I64 literal.
func I64Lit(v int64) Expr { return IntLit(v, 64, true) }

// U8Lit is a byte literal.
func U8Lit(v uint8) Expr { return IntLit(int64(v), 8, false) }

func FloatLit(v float64, width uint8) Expr {
	return Expr{Kind: ExprLiteral, Lit: Literal{Kind: LitFloat, Float: v, Width: width}}
}

func BoolLit(v bool) Expr {
	return Expr{Kind: ExprLiteral, Lit: Literal{Kind: LitBool, Bool: v}}
}

func StrLit(s string) Expr {
	return Expr{Kind: ExprLiteral, Lit: Literal{Kind: LitStr, Str: s}}
}

func Call(name ProcName, args ...symbols.Symbol) Expr {
	return Expr{Kind: ExprCall, Proc: name, Args: args}
}

func LowLevel(op lowlevel.Op, args ...symbols.Symbol) Expr {
	return Expr{Kind: ExprLowLevel, Op: op, Args: args}
}

func Struct(args ...symbols.Symbol) Expr {
	return Expr{Kind: ExprStruct, Args: args}
}

// Index reads field pos of x; variant is -1 for structs.
func Index(x symbols.Symbol, of layout.ID, pos uint32, variant int) Expr {
	return Expr{Kind: ExprIndex, Args: []symbols.Symbol{x}, Of: of, ID: pos, Var: variant}
}

func GetTagID(x symbols.Symbol, of layout.ID) Expr {
	return Expr{Kind: ExprGetTagID, Args: []symbols.Symbol{x}, Of: of}
}
