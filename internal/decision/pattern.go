// Package decision compiles pattern-match rows into decision trees and
// checks a match for exhaustiveness and redundancy.
//
// Patterns here are already lowered to positions: every constructor field
// carries the Index it is read from, so the tree speaks in paths the IR can
// load directly.
package decision

import (
	"fmt"
	"strconv"
	"strings"
)

// Alt is one constructor of a Union.
type Alt struct {
	Name   string
	Arity  int
	Labels []string // record fields, printed as { a: _ }
}

// Union lists every constructor a Ctor pattern may test against. Rows on the
// same scrutinee type must share one *Union.
type Union struct {
	Alts []Alt
}

// Single reports whether the union has exactly one constructor, in which
// case matching it needs no test.
func (u *Union) Single() bool { return u != nil && len(u.Alts) == 1 }

// PatternKind enumerates pattern forms.
type PatternKind uint8

const (
	Any PatternKind = iota
	Ctor
	Int
	Float
	Str
)

// Field is one constructor argument together with its Index position.
type Field struct {
	Index   uint32
	Pattern Pattern
}

// Pattern is a simplified, position-annotated pattern.
type Pattern struct {
	Kind PatternKind

	Union   *Union  // Ctor
	Tag     int     // Ctor: position in Union.Alts
	Variant int     // Ctor: variant recorded on the path steps of Fields, -1 for structs
	Fields  []Field // Ctor, len == Union.Alts[Tag].Arity

	Int   int64
	Float float64
	Str   string
}

// Wildcard is the pattern that matches anything.
func Wildcard() Pattern { return Pattern{Kind: Any} }

// Step reads field Index of the value at the previous step.
type Step struct {
	Index   uint32
	Variant int
}

// Path addresses a sub-value of the scrutinee; the empty path is the
// scrutinee itself.
type Path []Step

// Key is a comparable rendering of p.
func (p Path) Key() string {
	var sb strings.Builder
	for _, s := range p {
		sb.WriteString(strconv.FormatUint(uint64(s.Index), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(s.Variant))
		sb.WriteByte('/')
	}
	return sb.String()
}

// Extend returns a copy of p with s appended.
func (p Path) Extend(s Step) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// TestKind enumerates the checks a decision node performs.
type TestKind uint8

const (
	IsCtor TestKind = iota
	IsInt
	IsFloat
	IsStr
)

// Test is one outgoing edge condition.
type Test struct {
	Kind  TestKind
	Union *Union
	Tag   int
	Int   int64
	Float float64
	Str   string
}

func (t Test) equal(o Test) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case IsCtor:
		return t.Tag == o.Tag
	case IsInt:
		return t.Int == o.Int
	case IsFloat:
		return t.Float == o.Float
	default:
		return t.Str == o.Str
	}
}

func (t Test) String() string {
	switch t.Kind {
	case IsCtor:
		return "is " + t.Union.Alts[t.Tag].Name
	case IsInt:
		return "== " + strconv.FormatInt(t.Int, 10)
	case IsFloat:
		return "== " + strconv.FormatFloat(t.Float, 'g', -1, 64)
	default:
		return "== " + strconv.Quote(t.Str)
	}
}

func testOf(p Pattern) Test {
	switch p.Kind {
	case Ctor:
		return Test{Kind: IsCtor, Union: p.Union, Tag: p.Tag}
	case Int:
		return Test{Kind: IsInt, Int: p.Int}
	case Float:
		return Test{Kind: IsFloat, Float: p.Float}
	case Str:
		return Test{Kind: IsStr, Str: p.Str}
	}
	panic(fmt.Sprintf("decision: no test for pattern kind %d", p.Kind))
}

// String renders the pattern in source-like syntax, used for witnesses.
func (p Pattern) String() string {
	switch p.Kind {
	case Any:
		return "_"
	case Int:
		return strconv.FormatInt(p.Int, 10)
	case Float:
		return strconv.FormatFloat(p.Float, 'g', -1, 64)
	case Str:
		return strconv.Quote(p.Str)
	}
	alt := p.Union.Alts[p.Tag]
	if alt.Labels != nil {
		parts := make([]string, len(p.Fields))
		for i, f := range p.Fields {
			parts[i] = alt.Labels[i] + ": " + f.Pattern.String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	}
	if len(p.Fields) == 0 {
		return alt.Name
	}
	var sb strings.Builder
	sb.WriteString(alt.Name)
	for _, f := range p.Fields {
		sb.WriteByte(' ')
		s := f.Pattern.String()
		if f.Pattern.Kind == Ctor && len(f.Pattern.Fields) > 0 && f.Pattern.Union.Alts[f.Pattern.Tag].Labels == nil {
			s = "(" + s + ")"
		}
		sb.WriteString(s)
	}
	return sb.String()
}
