// Package lowlevel lists the primitive operations implemented by the runtime
// library. The compiler treats them as opaque call targets; only their
// argument ownership and whether they can trap are known here.
package lowlevel

import "fmt"

// Op identifies a primitive operation.
type Op uint16

const (
	OpInvalid Op = iota
	NumAdd
	NumSub
	NumMul
	NumDivUnchecked
	NumRemUnchecked
	NumNeg
	NumRound
	NumToFloat
	NumLt
	NumLte
	NumGt
	NumGte
	Eq
	NotEq
	And
	Or
	Not
	ListLen
	ListGetUnsafe
	ListSet
	ListAppend
	ListConcat
	DictEmpty
	DictSize
	DictInsert
	StrConcat
	StrLen
	opCount
)

// Ownership tells whether an argument position consumes its value.
type Ownership uint8

const (
	Borrowed Ownership = iota
	Owned
)

func (o Ownership) String() string {
	if o == Owned {
		return "owned"
	}
	return "borrowed"
}

// Signature describes a primitive.
type Signature struct {
	Name     string
	Args     []Ownership
	Fallible bool // can raise a fatal runtime condition (e.g. overflow)
}

var (
	b  = Borrowed
	ow = Owned
)

var table = [opCount]Signature{
	NumAdd:          {Name: "NumAdd", Args: []Ownership{b, b}, Fallible: true},
	NumSub:          {Name: "NumSub", Args: []Ownership{b, b}, Fallible: true},
	NumMul:          {Name: "NumMul", Args: []Ownership{b, b}, Fallible: true},
	NumDivUnchecked: {Name: "NumDivUnchecked", Args: []Ownership{b, b}},
	NumRemUnchecked: {Name: "NumRemUnchecked", Args: []Ownership{b, b}},
	NumNeg:          {Name: "NumNeg", Args: []Ownership{b}},
	NumRound:        {Name: "NumRound", Args: []Ownership{b}},
	NumToFloat:      {Name: "NumToFloat", Args: []Ownership{b}},
	NumLt:           {Name: "NumLt", Args: []Ownership{b, b}},
	NumLte:          {Name: "NumLte", Args: []Ownership{b, b}},
	NumGt:           {Name: "NumGt", Args: []Ownership{b, b}},
	NumGte:          {Name: "NumGte", Args: []Ownership{b, b}},
	Eq:              {Name: "Eq", Args: []Ownership{b, b}},
	NotEq:           {Name: "NotEq", Args: []Ownership{b, b}},
	And:             {Name: "And", Args: []Ownership{b, b}},
	Or:              {Name: "Or", Args: []Ownership{b, b}},
	Not:             {Name: "Not", Args: []Ownership{b}},
	ListLen:         {Name: "ListLen", Args: []Ownership{b}},
	ListGetUnsafe:   {Name: "ListGetUnsafe", Args: []Ownership{b, b}},
	ListSet:         {Name: "ListSet", Args: []Ownership{ow, b, ow}},
	ListAppend:      {Name: "ListAppend", Args: []Ownership{ow, ow}},
	ListConcat:      {Name: "ListConcat", Args: []Ownership{ow, b}},
	DictEmpty:       {Name: "DictEmpty"},
	DictSize:        {Name: "DictSize", Args: []Ownership{b}},
	DictInsert:      {Name: "DictInsert", Args: []Ownership{ow, ow, ow}},
	StrConcat:       {Name: "StrConcat", Args: []Ownership{ow, b}},
	StrLen:          {Name: "StrLen", Args: []Ownership{b}},
}

var byName = func() map[string]Op {
	m := make(map[string]Op, len(table))
	for i, sig := range table {
		if sig.Name != "" {
			m[sig.Name] = Op(i)
		}
	}
	return m
}()

// Lookup returns the signature of op.
func Lookup(op Op) (Signature, bool) {
	if op == OpInvalid || op >= opCount {
		return Signature{}, false
	}
	return table[op], true
}

// ByName resolves the printed name of an op.
func ByName(name string) (Op, bool) {
	op, ok := byName[name]
	return op, ok
}

func (op Op) String() string {
	if sig, ok := Lookup(op); ok {
		return sig.Name
	}
	return fmt.Sprintf("Op(%d)", uint16(op))
}

// Arity is the number of arguments op expects.
func (op Op) Arity() int {
	sig, _ := Lookup(op)
	return len(sig.Args)
}

// ArgOwnership returns the ownership of argument i. Out of range positions
// are borrowed.
func (op Op) ArgOwnership(i int) Ownership {
	sig, _ := Lookup(op)
	if i < 0 || i >= len(sig.Args) {
		return Borrowed
	}
	return sig.Args[i]
}

// Fallible reports whether op may trap.
func (op Op) Fallible() bool {
	sig, _ := Lookup(op)
	return sig.Fallible
}

// All lists every valid op in declaration order.
func All() []Op {
	out := make([]Op, 0, int(opCount)-1)
	for op := Op(1); op < opCount; op++ {
		out = append(out, op)
	}
	return out
}
