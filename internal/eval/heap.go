package eval

import (
	"fmt"
	"slices"
	"strings"
)

// Handle names a heap object. Handles are never reused within a run.
type Handle uint64

// ObjectKind identifies what a heap object holds.
type ObjectKind uint8

const (
	OKStr ObjectKind = iota + 1
	OKList
	OKDict
	// OKCell is a boxed union value or a recursive-union payload.
	OKCell
)

func (k ObjectKind) String() string {
	switch k {
	case OKStr:
		return "str"
	case OKList:
		return "list"
	case OKDict:
		return "dict"
	case OKCell:
		return "cell"
	default:
		return "unknown"
	}
}

// Object is one refcounted allocation.
type Object struct {
	Kind    ObjectKind
	RC      int
	Alive   bool
	AllocID uint64

	Str    string
	Elems  []Value // list elements, dict keys
	Vals   []Value // dict values, parallel to Elems
	Fields []Value // cell contents
}

// children lists the values an object owns.
func (o *Object) children() []Value {
	switch o.Kind {
	case OKList:
		return o.Elems
	case OKDict:
		return append(slices.Clone(o.Elems), o.Vals...)
	case OKCell:
		return o.Fields
	}
	return nil
}

// HeapStats counts heap traffic of one run.
type HeapStats struct {
	Allocs int
	Frees  int
	Peak   int
}

// Heap stores the refcounted objects of one run. Faults panic with *Error;
// Machine recovers them at its entry points.
type Heap struct {
	next  Handle
	objs  map[Handle]*Object
	live  int
	stats HeapStats
}

func NewHeap() *Heap {
	return &Heap{next: 1, objs: make(map[Handle]*Object, 128)}
}

func (h *Heap) alloc(o *Object) Value {
	handle := h.next
	h.next++
	o.RC = 1
	o.Alive = true
	o.AllocID = uint64(handle)
	h.objs[handle] = o
	h.live++
	h.stats.Allocs++
	h.stats.Peak = max(h.stats.Peak, h.live)
	return PtrValue(handle)
}

// AllocStr allocates a string.
func (h *Heap) AllocStr(s string) Value {
	return h.alloc(&Object{Kind: OKStr, Str: s})
}

// AllocList allocates a list owning elems.
func (h *Heap) AllocList(elems []Value) Value {
	return h.alloc(&Object{Kind: OKList, Elems: slices.Clone(elems)})
}

// AllocDict allocates an empty dictionary.
func (h *Heap) AllocDict() Value {
	return h.alloc(&Object{Kind: OKDict})
}

// AllocCell allocates a cell owning fields.
func (h *Heap) AllocCell(fields []Value) Value {
	return h.alloc(&Object{Kind: OKCell, Fields: slices.Clone(fields)})
}

// Get returns the live object behind v.
func (h *Heap) Get(v Value) *Object {
	if v.Kind != VKPtr || v.H == 0 {
		panic(fault(CodeInvalidHandle, "dereference of %s value %s", v.Kind, v))
	}
	o, ok := h.objs[v.H]
	if !ok {
		panic(fault(CodeInvalidHandle, "invalid handle %d", v.H))
	}
	if !o.Alive {
		panic(fault(CodeUseAfterFree, "use after free: handle %d (%s)", v.H, o.Kind))
	}
	return o
}

// Unique reports whether the caller holds the only reference to v.
func (h *Heap) Unique(v Value) bool {
	return h.Get(v).RC == 1
}

// Inc adds one reference to every heap object v points at directly.
func (h *Heap) Inc(v Value) {
	switch v.Kind {
	case VKPtr:
		if v.H != 0 {
			h.Get(v).RC++
		}
	case VKAgg:
		for _, f := range v.Fields {
			h.Inc(f)
		}
	}
}

// Dec drops one reference, freeing objects whose count reaches zero along
// with everything they own.
func (h *Heap) Dec(v Value) {
	switch v.Kind {
	case VKPtr:
		if v.H == 0 {
			return
		}
		o, ok := h.objs[v.H]
		if ok && !o.Alive {
			panic(fault(CodeDoubleFree, "double free: handle %d (%s)", v.H, o.Kind))
		}
		o = h.Get(v)
		o.RC--
		if o.RC > 0 {
			return
		}
		kids := o.children()
		h.free(o)
		for _, c := range kids {
			h.Dec(c)
		}
	case VKAgg:
		for _, f := range v.Fields {
			h.Dec(f)
		}
	}
}

// Decref releases v after its owned fields have been moved out: a unique
// object is freed without touching its contents, a shared one loses a
// reference and its contents gain one each.
// Inline aggregates have no cell of their own and are left alone.
func (h *Heap) Decref(v Value) {
	if v.Kind != VKPtr || v.H == 0 {
		return
	}
	o, ok := h.objs[v.H]
	if ok && !o.Alive {
		panic(fault(CodeDoubleFree, "double free: handle %d (%s)", v.H, o.Kind))
	}
	o = h.Get(v)
	if o.RC > 1 {
		o.RC--
		for _, c := range o.children() {
			h.Inc(c)
		}
		return
	}
	h.free(o)
}

func (h *Heap) free(o *Object) {
	o.Alive = false
	o.RC = 0
	o.Str, o.Elems, o.Vals, o.Fields = "", nil, nil, nil
	h.live--
	h.stats.Frees++
}

// Stats returns the traffic counters.
func (h *Heap) Stats() HeapStats { return h.stats }

// Live counts objects not yet freed, by kind.
func (h *Heap) Live() map[ObjectKind]int {
	out := make(map[ObjectKind]int)
	for _, o := range h.objs {
		if o.Alive {
			out[o.Kind]++
		}
	}
	return out
}

// CheckLeaks returns a CodeLeak error when objects are still alive.
func (h *Heap) CheckLeaks() error {
	if h.live == 0 {
		return nil
	}
	live := h.Live()
	kinds := make([]ObjectKind, 0, len(live))
	for k := range live {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, live[k])
	}
	return fault(CodeLeak, "heap leak detected: %s", strings.Join(parts, " "))
}
