package types

import (
	"fmt"

	"monoc/internal/symbols"
)

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of solved types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVar
	KindErroneous
	KindInt
	KindFloat
	KindStr
	KindList
	KindDict
	KindRecord
	KindUnion
	KindFunc
	KindLambdaSet
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVar:
		return "var"
	case KindErroneous:
		return "erroneous"
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
	case KindRecord:
		return "record"
	case KindUnion:
		return "union"
	case KindFunc:
		return "func"
	case KindLambdaSet:
		return "lambda-set"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	Width8  Width = 8
	Width16 Width = 16
	Width32 Width = 32
	Width64 Width = 64
)

// NumClass marks type variables that only range over numbers. Such
// variables have a layout even when nothing fixes them.
type NumClass uint8

const (
	NumNone NumClass = iota
	NumInt
	NumFrac
)

// Type is a compact descriptor. Composite kinds keep their details in the
// interner side tables addressed by Payload.
type Type struct {
	Kind    Kind
	Width   Width
	Signed  bool
	Elem    TypeID // list element, dict key
	Value   TypeID // dict value
	Payload uint32
}

// Field is one record field.
type Field struct {
	Name string
	Type TypeID
}

// RecordInfo lists fields sorted by name.
type RecordInfo struct {
	Fields []Field
}

// Tag is one tag-union alternative.
type Tag struct {
	Name string
	Args []TypeID
}

// UnionInfo lists tags sorted by name; the position is the tag id.
type UnionInfo struct {
	Tags []Tag
}

// FuncInfo describes a function type. Lambdas is a KindLambdaSet type or a
// variable that the call site binds.
type FuncInfo struct {
	Params  []TypeID
	Result  TypeID
	Lambdas TypeID
}

// LambdaMember is one closure that can flow into a function-typed value.
type LambdaMember struct {
	Symbol   symbols.Symbol
	Captures []TypeID
}

// LambdaSetInfo lists members sorted by symbol.
type LambdaSetInfo struct {
	Members []LambdaMember
}

// VarInfo describes a type variable.
type VarInfo struct {
	Name string
	Num  NumClass
}

// Builtins stores TypeIDs for common types.
type Builtins struct {
	I8, I16, I32, I64 TypeID
	U8, U16, U32, U64 TypeID
	F32, F64          TypeID
	Str               TypeID
	Unit              TypeID
	Bool              TypeID
}

// TagIndex returns the tag id of name inside info.
func (info UnionInfo) TagIndex(name string) (int, bool) {
	for i, t := range info.Tags {
		if t.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Field looks up a record field by name.
func (info RecordInfo) Field(name string) (Field, int, bool) {
	for i, f := range info.Fields {
		if f.Name == name {
			return f, i, true
		}
	}
	return Field{}, -1, false
}

// MemberIndex returns the position of sym inside the lambda set.
func (info LambdaSetInfo) MemberIndex(sym symbols.Symbol) (int, bool) {
	for i, m := range info.Members {
		if m.Symbol == sym {
			return i, true
		}
	}
	return -1, false
}
