package hir

import (
	"monoc/internal/source"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// PatternKind enumerates pattern forms.
type PatternKind uint8

const (
	PatWildcard PatternKind = iota
	PatIdent
	PatInt
	PatFloat
	PatStr
	PatTag
	PatRecord
)

func (k PatternKind) String() string {
	switch k {
	case PatWildcard:
		return "_"
	case PatIdent:
		return "Ident"
	case PatInt:
		return "Int"
	case PatFloat:
		return "Float"
	case PatStr:
		return "Str"
	case PatTag:
		return "Tag"
	case PatRecord:
		return "Record"
	default:
		return "Unknown"
	}
}

// Pattern is a typed pattern. Type is the type of the matched value.
type Pattern struct {
	Kind PatternKind
	Type types.TypeID
	Span source.Span

	Symbol symbols.Symbol // PatIdent
	Int    int64          // PatInt
	Float  float64        // PatFloat
	Str    string         // PatStr
	Tag    string         // PatTag
	Args   []*Pattern     // PatTag
	Fields []FieldPattern // PatRecord
}

// FieldPattern destructures one record field. Sub, when set, matches the
// field value further; Symbol binds it. Default supplies a value for an
// optional field missing from the record type.
type FieldPattern struct {
	Name    string
	Symbol  symbols.Symbol
	Type    types.TypeID
	Sub     *Pattern
	Default *Expr
}

// Bindings lists the symbols a pattern binds, left to right.
func (p *Pattern) Bindings() []symbols.Symbol {
	var out []symbols.Symbol
	p.collect(&out)
	return out
}

func (p *Pattern) collect(out *[]symbols.Symbol) {
	if p == nil {
		return
	}
	switch p.Kind {
	case PatIdent:
		*out = append(*out, p.Symbol)
	case PatTag:
		for _, a := range p.Args {
			a.collect(out)
		}
	case PatRecord:
		for _, f := range p.Fields {
			if f.Symbol.IsValid() {
				*out = append(*out, f.Symbol)
			}
			f.Sub.collect(out)
		}
	}
}
