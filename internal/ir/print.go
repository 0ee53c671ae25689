package ir

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"monoc/internal/symbols"
)

const indentUnit = "    "

// Printer renders procedures in the canonical text form.
type Printer struct {
	Interns *symbols.Interns
}

func NewPrinter(in *symbols.Interns) *Printer {
	return &Printer{Interns: in}
}

// Program renders procs sorted by name, entry procedures last, separated by
// a blank line.
func (p *Printer) Program(procs []*Proc) string {
	texts := make([]string, 0, len(procs))
	var entries []string
	for _, proc := range procs {
		if proc == nil {
			continue
		}
		if proc.Entry {
			entries = append(entries, p.Proc(proc))
			continue
		}
		texts = append(texts, p.Proc(proc))
	}
	slices.Sort(texts)
	slices.Sort(entries)
	return strings.Join(append(texts, entries...), "\n")
}

// Dump writes Program(procs) to w.
func (p *Printer) Dump(w io.Writer, procs []*Proc) error {
	_, err := io.WriteString(w, p.Program(procs))
	return err
}

// Proc renders a single procedure, ending with a newline.
func (p *Printer) Proc(proc *Proc) string {
	var sb strings.Builder
	sb.WriteString("procedure ")
	sb.WriteString(proc.Name.String(p.Interns))
	sb.WriteString(" (")
	for i, param := range proc.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.sym(param.Symbol))
	}
	sb.WriteString("):\n")
	p.stmt(&sb, proc.Body, 1)
	return sb.String()
}

// Stmt renders a statement at the given indentation depth.
func (p *Printer) Stmt(s *Stmt, depth int) string {
	var sb strings.Builder
	p.stmt(&sb, s, depth)
	return sb.String()
}

func (p *Printer) sym(s symbols.Symbol) string {
	return p.Interns.String(s)
}

func (p *Printer) line(sb *strings.Builder, depth int, format string, args ...any) {
	sb.WriteString(strings.Repeat(indentUnit, depth))
	fmt.Fprintf(sb, format, args...)
	sb.WriteByte('\n')
}

func (p *Printer) stmt(sb *strings.Builder, s *Stmt, depth int) {
	for s != nil {
		switch s.Kind {
		case StmtLet:
			p.line(sb, depth, "let %s = %s;", p.sym(s.Let.Symbol), p.Expr(&s.Let.Expr))
			s = s.Let.Next
		case StmtInvoke:
			p.line(sb, depth, "invoke %s = %s catch", p.sym(s.Invoke.Symbol), p.Expr(&s.Invoke.Call))
			p.stmt(sb, s.Invoke.Cleanup, depth+1)
			s = s.Invoke.Next
		case StmtRefcount:
			p.line(sb, depth, "%s %s;", s.Refcount.Op, p.sym(s.Refcount.Symbol))
			s = s.Refcount.Next
		case StmtJoin:
			header := "joinpoint " + p.sym(s.Join.ID)
			for _, param := range s.Join.Params {
				header += " " + p.sym(param.Symbol)
			}
			p.line(sb, depth, "%s:", header)
			p.stmt(sb, s.Join.Body, depth+1)
			p.line(sb, depth, "in")
			s = s.Join.Next
		case StmtIf:
			p.line(sb, depth, "if %s then", p.sym(s.If.Cond))
			p.stmt(sb, s.If.Then, depth+1)
			p.line(sb, depth, "else")
			p.stmt(sb, s.If.Else, depth+1)
			return
		case StmtSwitch:
			p.line(sb, depth, "switch %s:", p.sym(s.Switch.Cond))
			for _, c := range s.Switch.Cases {
				p.line(sb, depth+1, "case %d:", c.Value)
				p.stmt(sb, c.Body, depth+2)
			}
			if s.Switch.Default != nil {
				p.line(sb, depth+1, "default:")
				p.stmt(sb, s.Switch.Default, depth+2)
			}
			return
		case StmtJump:
			p.line(sb, depth, "jump %s;", p.joinArgs(s.Jump.Target, s.Jump.Args))
			return
		case StmtRet:
			p.line(sb, depth, "ret %s;", p.sym(s.Ret.Symbol))
			return
		case StmtRuntimeError:
			p.line(sb, depth, "Error %s;", s.Error.Message)
			return
		case StmtUnreachable:
			p.line(sb, depth, "unreachable;")
			return
		default:
			p.line(sb, depth, "<bad stmt %d>", s.Kind)
			return
		}
	}
}

func (p *Printer) joinArgs(head symbols.Symbol, args []symbols.Symbol) string {
	out := p.sym(head)
	for _, a := range args {
		out += " " + p.sym(a)
	}
	return out
}

// Expr renders a right-hand side.
func (p *Printer) Expr(e *Expr) string {
	switch e.Kind {
	case ExprLiteral:
		return formatLiteral(e.Lit)
	case ExprCall:
		return p.spaced("CallByName "+e.Proc.String(p.Interns), e.Args)
	case ExprLowLevel:
		return p.spaced("lowlevel "+e.Op.String(), e.Args)
	case ExprStruct:
		return "Struct {" + p.commaList(e.Args) + "}"
	case ExprTag:
		return p.spaced(e.Tag, e.Args)
	case ExprIndex:
		return "Index " + strconv.FormatUint(uint64(e.ID), 10) + " " + p.sym(e.Args[0])
	case ExprArray:
		return "Array [" + p.commaList(e.Args) + "]"
	case ExprClosureTag:
		return p.spaced("ClosureTag("+p.sym(e.Sym)+")", e.Args)
	case ExprGetTagID:
		return "GetTagId " + p.sym(e.Args[0])
	default:
		return fmt.Sprintf("<bad expr %d>", e.Kind)
	}
}

func (p *Printer) spaced(head string, args []symbols.Symbol) string {
	var sb strings.Builder
	sb.WriteString(head)
	for _, a := range args {
		sb.WriteByte(' ')
		sb.WriteString(p.sym(a))
	}
	return sb.String()
}

func (p *Printer) commaList(args []symbols.Symbol) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = p.sym(a)
	}
	return strings.Join(parts, ", ")
}

func formatLiteral(l Literal) string {
	switch l.Kind {
	case LitInt:
		if l.Signed {
			return strconv.FormatInt(l.Int, 10) + "i" + strconv.Itoa(int(l.Width))
		}
		return strconv.FormatUint(uint64(l.Int), 10) + "u" + strconv.Itoa(int(l.Width)) // #nosec G115 -- unsigned literal bits
	case LitFloat:
		return strconv.FormatFloat(l.Float, 'f', -1, 64) + "f" + strconv.Itoa(int(l.Width))
	case LitBool:
		return strconv.FormatBool(l.Bool)
	case LitStr:
		return strconv.Quote(l.Str)
	default:
		return "?"
	}
}
