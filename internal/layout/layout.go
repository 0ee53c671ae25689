package layout

import (
	"fmt"

	"monoc/internal/symbols"
)

// ID identifies an interned layout.
type ID uint32

// NoID marks the absence of a layout.
const NoID ID = 0

// IsValid reports whether the ID refers to an interned layout.
func (id ID) IsValid() bool { return id != NoID }

// Kind enumerates layout variants.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindFloat
	KindStr
	KindList
	KindDict
	KindStruct
	KindUnion
	KindBoxed
	KindClosure
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindBoxed:
		return "boxed"
	case KindClosure:
		return "closure"
	case KindFunction:
		return "function"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Repr is the runtime representation chosen for a tag union.
type Repr uint8

const (
	ReprNone Repr = iota
	// ReprDirect: one variant with payload, stored as its payload struct.
	ReprDirect
	// ReprByteTag: only nullary variants; the value is the tag itself.
	ReprByteTag
	// ReprSingleTagNoPayload: one nullary variant, zero-sized.
	ReprSingleTagNoPayload
	// ReprTagged: tag word at field 0, payload at fields 1..n, inline.
	ReprTagged
	// ReprPointerTag: like ReprTagged but heap-allocated (recursive unions).
	ReprPointerTag
	// ReprNullablePointer: recursive union where null stands for the single
	// nullary variant and the cell holds the payload of the other one.
	ReprNullablePointer
)

func (r Repr) String() string {
	switch r {
	case ReprDirect:
		return "direct"
	case ReprByteTag:
		return "byte-tag"
	case ReprSingleTagNoPayload:
		return "single-tag-no-payload"
	case ReprTagged:
		return "tagged"
	case ReprPointerTag:
		return "pointer-tag"
	case ReprNullablePointer:
		return "nullable-pointer"
	default:
		return "none"
	}
}

// Variant is one union alternative; position in Layout.Variants is its tag id.
type Variant struct {
	Name   string
	Fields []ID
}

// ClosureRepr is the runtime representation of a lambda set.
type ClosureRepr uint8

const (
	// ClosureStruct: a single member; the value is its capture struct.
	ClosureStruct ClosureRepr = iota
	// ClosureEnum: several members, none capturing; the value is the tag.
	ClosureEnum
	// ClosureUnion: tag word at field 0 followed by the member's captures.
	ClosureUnion
)

func (r ClosureRepr) String() string {
	switch r {
	case ClosureStruct:
		return "struct"
	case ClosureEnum:
		return "enum"
	default:
		return "union"
	}
}

// Member is one closure in a lambda set.
type Member struct {
	Symbol   symbols.Symbol
	Captures []ID
}

// Layout is a fully concrete memory shape. It never mentions a type variable.
type Layout struct {
	Kind   Kind
	Width  uint8 // bits, Int/Float
	Signed bool

	Elem  ID // List element, Dict key
	Value ID // Dict value

	Fields []ID // Struct fields, Function params
	Result ID   // Function result

	Variants  []Variant // Union
	Repr      Repr
	Recursive bool
	NullTag   uint32 // ReprNullablePointer: tag id of the nullary variant

	Members []Member // Closure
	Closure ClosureRepr

	Depth uint32 // Boxed: how many enclosing unions to skip to reach the target
}

// TagCount returns the number of alternatives of a union or closure layout.
func (l *Layout) TagCount() int {
	switch l.Kind {
	case KindUnion:
		return len(l.Variants)
	case KindClosure:
		return len(l.Members)
	}
	return 0
}

// PayloadOffset is the Index of the first payload field of a union value.
func (l *Layout) PayloadOffset() uint32 {
	if l.Kind == KindUnion && (l.Repr == ReprTagged || l.Repr == ReprPointerTag) {
		return 1
	}
	if l.Kind == KindClosure && l.Closure == ClosureUnion {
		return 1
	}
	return 0
}

// IsBool reports whether the layout is a two-variant byte tag, printed as
// true/false.
func (l *Layout) IsBool() bool {
	if l.Kind == KindUnion {
		return l.Repr == ReprByteTag && len(l.Variants) == 2
	}
	if l.Kind == KindClosure {
		return l.Closure == ClosureEnum && len(l.Members) == 2
	}
	return false
}
