package hir

import (
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"monoc/internal/lowlevel"
	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// BundleSchema is bumped whenever the wire layout changes.
const BundleSchema uint16 = 1

// Bundle is the unit the front end hands over: one or more solved modules.
type Bundle struct {
	Modules []*Program
}

type wireBundle struct {
	Schema  uint16
	Modules []wireProgram
}

type wireProgram struct {
	Name    string
	Home    symbols.ModuleID
	Symbols []symbols.ModuleTable
	Types   *types.Table
	Files   []string
	Defs    []wireDef
	Exposed []symbols.Symbol
}

type wireDef struct {
	Symbol symbols.Symbol
	Type   types.TypeID
	Expr   *wireExpr
	Span   source.Span
}

// wireExpr flattens every ExprData variant into one record; unused fields
// are omitted on the wire.
type wireExpr struct {
	Kind ExprKind
	Type types.TypeID
	Span source.Span

	Int      int64          `msgpack:",omitempty"`
	Float    float64        `msgpack:",omitempty"`
	Str      string         `msgpack:",omitempty"`
	Symbol   symbols.Symbol `msgpack:",omitempty"`
	Op       lowlevel.Op    `msgpack:",omitempty"`
	Sub      *wireExpr      `msgpack:",omitempty"`
	Body     *wireExpr      `msgpack:",omitempty"`
	Else     *wireExpr      `msgpack:",omitempty"`
	Args     []*wireExpr    `msgpack:",omitempty"`
	Fields   []wireField    `msgpack:",omitempty"`
	Params   []Param        `msgpack:",omitempty"`
	Captures []Param        `msgpack:",omitempty"`
	Branches []wireBranch   `msgpack:",omitempty"`
	Ifs      []wireIf       `msgpack:",omitempty"`
	Pattern  *wirePattern   `msgpack:",omitempty"`
}

type wireField struct {
	Name  string
	Value *wireExpr
}

type wireBranch struct {
	Patterns []*wirePattern
	Guard    *wireExpr `msgpack:",omitempty"`
	Body     *wireExpr
	Span     source.Span
}

type wireIf struct {
	Cond *wireExpr
	Then *wireExpr
}

type wirePattern struct {
	Kind   PatternKind
	Type   types.TypeID
	Span   source.Span
	Symbol symbols.Symbol     `msgpack:",omitempty"`
	Int    int64              `msgpack:",omitempty"`
	Float  float64            `msgpack:",omitempty"`
	Str    string             `msgpack:",omitempty"`
	Tag    string             `msgpack:",omitempty"`
	Args   []*wirePattern     `msgpack:",omitempty"`
	Fields []wireFieldPattern `msgpack:",omitempty"`
}

type wireFieldPattern struct {
	Name    string
	Symbol  symbols.Symbol
	Type    types.TypeID
	Sub     *wirePattern `msgpack:",omitempty"`
	Default *wireExpr    `msgpack:",omitempty"`
}

// Encode writes b as msgpack.
func Encode(w io.Writer, b *Bundle) error {
	wb := wireBundle{Schema: BundleSchema}
	for _, p := range b.Modules {
		wb.Modules = append(wb.Modules, toWireProgram(p))
	}
	return msgpack.NewEncoder(w).Encode(&wb)
}

// Decode reads a bundle written by Encode.
func Decode(r io.Reader) (*Bundle, error) {
	var wb wireBundle
	if err := msgpack.NewDecoder(r).Decode(&wb); err != nil {
		return nil, fmt.Errorf("hir: decode bundle: %w", err)
	}
	if wb.Schema != BundleSchema {
		return nil, fmt.Errorf("hir: bundle schema %d, want %d", wb.Schema, BundleSchema)
	}
	b := &Bundle{}
	for i := range wb.Modules {
		p, err := fromWireProgram(&wb.Modules[i])
		if err != nil {
			return nil, err
		}
		b.Modules = append(b.Modules, p)
	}
	return b, nil
}

// ReadBundle decodes the bundle stored at path.
func ReadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// WriteBundle encodes b to path.
func WriteBundle(path string, b *Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func toWireProgram(p *Program) wireProgram {
	wp := wireProgram{
		Name:    p.Name,
		Home:    p.Home,
		Symbols: p.Interns.Export(),
		Types:   p.Types.Export(),
		Files:   p.Files.Paths(),
		Exposed: append([]symbols.Symbol(nil), p.Exposed...),
	}
	for _, sym := range p.Order {
		d := p.Defs[sym]
		wp.Defs = append(wp.Defs, wireDef{Symbol: d.Symbol, Type: d.Type, Expr: toWireExpr(d.Expr), Span: d.Span})
	}
	return wp
}

func fromWireProgram(wp *wireProgram) (*Program, error) {
	if wp.Types == nil {
		return nil, fmt.Errorf("hir: module %q has no type table", wp.Name)
	}
	p := &Program{
		Name:    wp.Name,
		Home:    wp.Home,
		Interns: symbols.FromTables(wp.Symbols),
		Types:   types.FromTable(wp.Types),
		Files:   source.NewFileSet(),
		Defs:    make(map[symbols.Symbol]*Def, len(wp.Defs)),
		Exposed: wp.Exposed,
	}
	for _, path := range wp.Files {
		p.Files.Add(path)
	}
	for _, wd := range wp.Defs {
		d := &Def{Symbol: wd.Symbol, Type: wd.Type, Expr: fromWireExpr(wd.Expr), Span: wd.Span}
		if err := p.AddDef(d); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func toWireExprs(es []*Expr) []*wireExpr {
	if len(es) == 0 {
		return nil
	}
	out := make([]*wireExpr, len(es))
	for i, e := range es {
		out[i] = toWireExpr(e)
	}
	return out
}

func toWireExpr(e *Expr) *wireExpr {
	if e == nil {
		return nil
	}
	w := &wireExpr{Kind: e.Kind, Type: e.Type, Span: e.Span}
	switch d := e.Data.(type) {
	case IntData:
		w.Int = d.Value
	case FloatData:
		w.Float = d.Value
	case StrData:
		w.Str = d.Value
	case VarData:
		w.Symbol = d.Symbol
	case TagData:
		w.Str = d.Name
		w.Args = toWireExprs(d.Args)
	case RecordData:
		for _, f := range d.Fields {
			w.Fields = append(w.Fields, wireField{Name: f.Name, Value: toWireExpr(f.Value)})
		}
	case AccessData:
		w.Sub = toWireExpr(d.Record)
		w.Str = d.Field
	case ListData:
		w.Args = toWireExprs(d.Elems)
	case CallData:
		w.Sub = toWireExpr(d.Callee)
		w.Args = toWireExprs(d.Args)
	case LowLevelData:
		w.Op = d.Op
		w.Args = toWireExprs(d.Args)
	case ClosureData:
		w.Symbol = d.Symbol
		w.Params = d.Params
		w.Captures = d.Captures
		w.Body = toWireExpr(d.Body)
	case WhenData:
		w.Sub = toWireExpr(d.Cond)
		for _, br := range d.Branches {
			wb := wireBranch{Guard: toWireExpr(br.Guard), Body: toWireExpr(br.Body), Span: br.Span}
			for _, pat := range br.Patterns {
				wb.Patterns = append(wb.Patterns, toWirePattern(pat))
			}
			w.Branches = append(w.Branches, wb)
		}
	case IfData:
		for _, br := range d.Branches {
			w.Ifs = append(w.Ifs, wireIf{Cond: toWireExpr(br.Cond), Then: toWireExpr(br.Then)})
		}
		w.Else = toWireExpr(d.Else)
	case LetData:
		w.Pattern = toWirePattern(d.Pattern)
		w.Sub = toWireExpr(d.Value)
		w.Body = toWireExpr(d.Body)
	case RuntimeErrorData:
		w.Str = d.Message
	}
	return w
}

func fromWireExprs(ws []*wireExpr) []*Expr {
	if len(ws) == 0 {
		return nil
	}
	out := make([]*Expr, len(ws))
	for i, w := range ws {
		out[i] = fromWireExpr(w)
	}
	return out
}

func fromWireExpr(w *wireExpr) *Expr {
	if w == nil {
		return nil
	}
	e := &Expr{Kind: w.Kind, Type: w.Type, Span: w.Span}
	switch w.Kind {
	case ExprInt:
		e.Data = IntData{Value: w.Int}
	case ExprFloat:
		e.Data = FloatData{Value: w.Float}
	case ExprStr:
		e.Data = StrData{Value: w.Str}
	case ExprVar:
		e.Data = VarData{Symbol: w.Symbol}
	case ExprTag:
		e.Data = TagData{Name: w.Str, Args: fromWireExprs(w.Args)}
	case ExprRecord:
		d := RecordData{}
		for _, f := range w.Fields {
			d.Fields = append(d.Fields, RecordField{Name: f.Name, Value: fromWireExpr(f.Value)})
		}
		e.Data = d
	case ExprAccess:
		e.Data = AccessData{Record: fromWireExpr(w.Sub), Field: w.Str}
	case ExprList:
		e.Data = ListData{Elems: fromWireExprs(w.Args)}
	case ExprCall:
		e.Data = CallData{Callee: fromWireExpr(w.Sub), Args: fromWireExprs(w.Args)}
	case ExprLowLevel:
		e.Data = LowLevelData{Op: w.Op, Args: fromWireExprs(w.Args)}
	case ExprClosure:
		e.Data = ClosureData{Symbol: w.Symbol, Params: w.Params, Captures: w.Captures, Body: fromWireExpr(w.Body)}
	case ExprWhen:
		d := WhenData{Cond: fromWireExpr(w.Sub)}
		for _, wb := range w.Branches {
			br := Branch{Guard: fromWireExpr(wb.Guard), Body: fromWireExpr(wb.Body), Span: wb.Span}
			for _, wp := range wb.Patterns {
				br.Patterns = append(br.Patterns, fromWirePattern(wp))
			}
			d.Branches = append(d.Branches, br)
		}
		e.Data = d
	case ExprIf:
		d := IfData{Else: fromWireExpr(w.Else)}
		for _, wi := range w.Ifs {
			d.Branches = append(d.Branches, IfBranch{Cond: fromWireExpr(wi.Cond), Then: fromWireExpr(wi.Then)})
		}
		e.Data = d
	case ExprLet:
		e.Data = LetData{Pattern: fromWirePattern(w.Pattern), Value: fromWireExpr(w.Sub), Body: fromWireExpr(w.Body)}
	case ExprRuntimeError:
		e.Data = RuntimeErrorData{Message: w.Str}
	}
	return e
}

func toWirePattern(p *Pattern) *wirePattern {
	if p == nil {
		return nil
	}
	w := &wirePattern{
		Kind: p.Kind, Type: p.Type, Span: p.Span,
		Symbol: p.Symbol, Int: p.Int, Float: p.Float, Str: p.Str, Tag: p.Tag,
	}
	for _, a := range p.Args {
		w.Args = append(w.Args, toWirePattern(a))
	}
	for _, f := range p.Fields {
		w.Fields = append(w.Fields, wireFieldPattern{
			Name: f.Name, Symbol: f.Symbol, Type: f.Type,
			Sub: toWirePattern(f.Sub), Default: toWireExpr(f.Default),
		})
	}
	return w
}

func fromWirePattern(w *wirePattern) *Pattern {
	if w == nil {
		return nil
	}
	p := &Pattern{
		Kind: w.Kind, Type: w.Type, Span: w.Span,
		Symbol: w.Symbol, Int: w.Int, Float: w.Float, Str: w.Str, Tag: w.Tag,
	}
	for _, a := range w.Args {
		p.Args = append(p.Args, fromWirePattern(a))
	}
	for _, f := range w.Fields {
		p.Fields = append(p.Fields, FieldPattern{
			Name: f.Name, Symbol: f.Symbol, Type: f.Type,
			Sub: fromWirePattern(f.Sub), Default: fromWireExpr(f.Default),
		})
	}
	return p
}
