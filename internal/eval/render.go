package eval

import (
	"slices"
	"strconv"
	"strings"

	"monoc/internal/layout"
)

// renderer prints values guided by their layouts. unions holds the
// enclosing union layouts, innermost last, so Boxed fields can find the
// union they point back to.
type renderer struct {
	m      *Machine
	unions []layout.ID
}

func (r *renderer) value(v Value, id layout.ID) string {
	l := r.m.layouts.Get(id)
	switch l.Kind {
	case layout.KindInt:
		if l.Signed {
			return strconv.FormatInt(v.Int, 10)
		}
		return strconv.FormatUint(uint64(v.Int), 10)
	case layout.KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case layout.KindStr:
		return strconv.Quote(r.m.Heap.Get(v).Str)
	case layout.KindList:
		o := r.m.Heap.Get(v)
		parts := make([]string, len(o.Elems))
		for i, e := range o.Elems {
			parts[i] = r.value(e, l.Elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case layout.KindDict:
		o := r.m.Heap.Get(v)
		parts := make([]string, len(o.Elems))
		for i := range o.Elems {
			parts[i] = r.value(o.Elems[i], l.Elem) + ": " + r.value(o.Vals[i], l.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case layout.KindStruct:
		parts := make([]string, len(l.Fields))
		for i, f := range l.Fields {
			parts[i] = r.value(v.Fields[i], f)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case layout.KindUnion:
		return r.union(v, id, l)
	case layout.KindBoxed:
		n := len(r.unions) - 1 - int(l.Depth)
		if n < 0 {
			return "<boxed>"
		}
		saved := r.unions
		r.unions = slices.Clone(saved[:n])
		out := r.value(v, saved[n])
		r.unions = saved
		return out
	case layout.KindClosure:
		return "<closure>"
	case layout.KindFunction:
		return "<function>"
	}
	return "<invalid>"
}

func (r *renderer) union(v Value, id layout.ID, l *layout.Layout) string {
	tag := r.m.tagOf(v, l)
	if l.IsBool() {
		if tag == 1 {
			return "True"
		}
		return "False"
	}
	variant := l.Variants[tag]
	var payload []Value
	switch {
	case l.Repr == layout.ReprByteTag:
	case v.Kind == VKPtr && !v.IsNull():
		payload = r.m.Heap.Get(v).Fields
	case v.Kind == VKAgg:
		payload = v.Fields
	}
	payload = payload[min(len(payload), int(l.PayloadOffset())):]

	r.unions = append(r.unions, id)
	defer func() { r.unions = r.unions[:len(r.unions)-1] }()
	parts := []string{variant.Name}
	for i, f := range variant.Fields {
		if i >= len(payload) {
			break
		}
		s := r.value(payload[i], f)
		if strings.Contains(s, " ") && !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") && !strings.HasPrefix(s, "\"") {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ")
}
