package eval

import (
	"math"

	"monoc/internal/layout"
	"monoc/internal/lowlevel"
)

// lowlevel runs a primitive. Owned arguments are consumed: stored into the
// result or released; borrowed ones are only read.
func (m *Machine) lowlevel(op lowlevel.Op, args []Value, result layout.ID) (Value, error) {
	if len(args) != op.Arity() {
		return Value{}, fault(CodeBadIR, "%s takes %d arguments, got %d", op, op.Arity(), len(args))
	}
	switch op {
	case lowlevel.NumAdd, lowlevel.NumSub, lowlevel.NumMul:
		return m.arith(op, args[0], args[1], result)
	case lowlevel.NumDivUnchecked, lowlevel.NumRemUnchecked:
		return divide(op, args[0], args[1])
	case lowlevel.NumNeg:
		if args[0].Kind == VKFloat {
			return FloatValue(-args[0].Float), nil
		}
		return IntValue(-args[0].Int), nil
	case lowlevel.NumRound:
		return IntValue(int64(math.Round(args[0].Float))), nil
	case lowlevel.NumToFloat:
		return FloatValue(float64(args[0].Int)), nil
	case lowlevel.NumLt, lowlevel.NumLte, lowlevel.NumGt, lowlevel.NumGte:
		return boolValue(compare(op, args[0], args[1])), nil
	case lowlevel.Eq:
		return boolValue(m.equal(args[0], args[1])), nil
	case lowlevel.NotEq:
		return boolValue(!m.equal(args[0], args[1])), nil
	case lowlevel.And:
		return boolValue(args[0].Int != 0 && args[1].Int != 0), nil
	case lowlevel.Or:
		return boolValue(args[0].Int != 0 || args[1].Int != 0), nil
	case lowlevel.Not:
		return boolValue(args[0].Int == 0), nil
	case lowlevel.ListLen:
		return IntValue(int64(len(m.Heap.Get(args[0]).Elems))), nil
	case lowlevel.ListGetUnsafe:
		elems := m.Heap.Get(args[0]).Elems
		i := args[1].Int
		if i < 0 || i >= int64(len(elems)) {
			return Value{}, &Crash{Message: "list index out of bounds"}
		}
		m.Heap.Inc(elems[i])
		return elems[i], nil
	case lowlevel.ListSet:
		list, o := m.unique(args[0])
		i := args[1].Int
		if i < 0 || i >= int64(len(o.Elems)) {
			m.Heap.Dec(list)
			m.Heap.Dec(args[2])
			return Value{}, &Crash{Message: "list index out of bounds"}
		}
		m.Heap.Dec(o.Elems[i])
		o.Elems[i] = args[2]
		return list, nil
	case lowlevel.ListAppend:
		list, o := m.unique(args[0])
		o.Elems = append(o.Elems, args[1])
		return list, nil
	case lowlevel.ListConcat:
		list, o := m.unique(args[0])
		for _, e := range m.Heap.Get(args[1]).Elems {
			m.Heap.Inc(e)
			o.Elems = append(o.Elems, e)
		}
		return list, nil
	case lowlevel.DictEmpty:
		return m.Heap.AllocDict(), nil
	case lowlevel.DictSize:
		return IntValue(int64(len(m.Heap.Get(args[0]).Elems))), nil
	case lowlevel.DictInsert:
		dict, o := m.unique(args[0])
		k, v := args[1], args[2]
		for i, key := range o.Elems {
			if m.equal(key, k) {
				m.Heap.Dec(k)
				m.Heap.Dec(o.Vals[i])
				o.Vals[i] = v
				return dict, nil
			}
		}
		o.Elems = append(o.Elems, k)
		o.Vals = append(o.Vals, v)
		return dict, nil
	case lowlevel.StrConcat:
		s, o := m.unique(args[0])
		o.Str += m.Heap.Get(args[1]).Str
		return s, nil
	case lowlevel.StrLen:
		return IntValue(int64(len(m.Heap.Get(args[0]).Str))), nil
	}
	return Value{}, fault(CodeBadIR, "unsupported low-level op %s", op)
}

func (m *Machine) arith(op lowlevel.Op, a, b Value, result layout.ID) (Value, error) {
	l := m.layouts.Get(result)
	if l.Kind == layout.KindFloat {
		switch op {
		case lowlevel.NumAdd:
			return FloatValue(a.Float + b.Float), nil
		case lowlevel.NumSub:
			return FloatValue(a.Float - b.Float), nil
		default:
			return FloatValue(a.Float * b.Float), nil
		}
	}
	r, ok := checkedInt(op, a.Int, b.Int, l.Width, l.Signed)
	if !ok {
		return Value{}, &Crash{Message: overflowMessage(op)}
	}
	return IntValue(r), nil
}

func divide(op lowlevel.Op, a, b Value) (Value, error) {
	if a.Kind == VKFloat {
		if op == lowlevel.NumRemUnchecked {
			return FloatValue(math.Mod(a.Float, b.Float)), nil
		}
		return FloatValue(a.Float / b.Float), nil
	}
	if b.Int == 0 {
		return Value{}, &Crash{Message: "integer division by zero"}
	}
	if op == lowlevel.NumRemUnchecked {
		return IntValue(a.Int % b.Int), nil
	}
	return IntValue(a.Int / b.Int), nil
}

func compare(op lowlevel.Op, a, b Value) bool {
	var c int
	if a.Kind == VKFloat {
		switch {
		case a.Float < b.Float:
			c = -1
		case a.Float > b.Float:
			c = 1
		}
	} else {
		switch {
		case a.Int < b.Int:
			c = -1
		case a.Int > b.Int:
			c = 1
		}
	}
	switch op {
	case lowlevel.NumLt:
		return c < 0
	case lowlevel.NumLte:
		return c <= 0
	case lowlevel.NumGt:
		return c > 0
	default:
		return c >= 0
	}
}

// unique returns an object v can be mutated through: v itself when it is
// the only reference, otherwise a fresh copy, with v released.
func (m *Machine) unique(v Value) (Value, *Object) {
	o := m.Heap.Get(v)
	if o.RC == 1 {
		return v, o
	}
	var c Value
	switch o.Kind {
	case OKStr:
		c = m.Heap.AllocStr(o.Str)
	case OKList:
		c = m.Heap.AllocList(o.Elems)
		for _, e := range o.Elems {
			m.Heap.Inc(e)
		}
	case OKDict:
		c = m.Heap.AllocDict()
		d := m.Heap.Get(c)
		d.Elems = append(d.Elems, o.Elems...)
		d.Vals = append(d.Vals, o.Vals...)
		for _, e := range o.children() {
			m.Heap.Inc(e)
		}
	default:
		c = m.Heap.AllocCell(o.Fields)
		for _, e := range o.Fields {
			m.Heap.Inc(e)
		}
	}
	m.Heap.Dec(v)
	return c, m.Heap.Get(c)
}

// equal is structural equality.
func (m *Machine) equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case VKInt:
		return a.Int == b.Int
	case VKFloat:
		return a.Float == b.Float
	case VKAgg:
		return m.equalAll(a.Fields, b.Fields)
	case VKPtr:
		if a.H == b.H {
			return true
		}
		if a.H == 0 || b.H == 0 {
			return false
		}
		x, y := m.Heap.Get(a), m.Heap.Get(b)
		if x.Kind != y.Kind {
			return false
		}
		switch x.Kind {
		case OKStr:
			return x.Str == y.Str
		case OKCell:
			return m.equalAll(x.Fields, y.Fields)
		default:
			return m.equalAll(x.Elems, y.Elems) && m.equalAll(x.Vals, y.Vals)
		}
	}
	return false
}

func (m *Machine) equalAll(xs, ys []Value) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if !m.equal(xs[i], ys[i]) {
			return false
		}
	}
	return true
}
