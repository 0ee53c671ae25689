package layout

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// Interner deduplicates layouts by structure. One interner belongs to one
// specialization run.
type Interner struct {
	layouts []Layout
	index   map[string]ID
	refs    [][]uint32 // escaping Boxed depths per layout, sorted

	unit, boolean, i64, u8 ID
}

// NewInterner creates an interner with the common scalars pre-registered.
func NewInterner() *Interner {
	in := &Interner{
		layouts: []Layout{{}},
		index:   make(map[string]ID, 64),
		refs:    [][]uint32{nil},
	}
	in.unit = in.Intern(Layout{Kind: KindStruct})
	in.i64 = in.Int(64, true)
	in.u8 = in.Int(8, false)
	in.boolean = in.Intern(Layout{
		Kind:     KindUnion,
		Repr:     ReprByteTag,
		Variants: []Variant{{Name: "False"}, {Name: "True"}},
	})
	return in
}

// Unit is the empty struct.
func (in *Interner) Unit() ID { return in.unit }

// Bool is the [False, True] byte tag.
func (in *Interner) Bool() ID { return in.boolean }

// I64 is the default integer.
func (in *Interner) I64() ID { return in.i64 }

// U8 is the byte used for enum tags.
func (in *Interner) U8() ID { return in.u8 }

// Int interns an integer layout.
func (in *Interner) Int(width uint8, signed bool) ID {
	return in.Intern(Layout{Kind: KindInt, Width: width, Signed: signed})
}

// Float interns a float layout.
func (in *Interner) Float(width uint8) ID {
	return in.Intern(Layout{Kind: KindFloat, Width: width})
}

// Struct interns a struct of the given fields.
func (in *Interner) Struct(fields []ID) ID {
	return in.Intern(Layout{Kind: KindStruct, Fields: fields})
}

// Function interns a top-level function layout.
func (in *Interner) Function(params []ID, result ID) ID {
	return in.Intern(Layout{Kind: KindFunction, Fields: params, Result: result})
}

// Get returns the layout behind id.
func (in *Interner) Get(id ID) *Layout {
	if int(id) >= len(in.layouts) || id == NoID {
		panic(fmt.Sprintf("layout: invalid ID %d", id))
	}
	return &in.layouts[id]
}

// Len reports how many layouts are interned, the sentinel included.
func (in *Interner) Len() int { return len(in.layouts) }

// Closed reports whether id has no Boxed reference escaping it.
func (in *Interner) Closed(id ID) bool {
	return len(in.refs[id]) == 0
}

// RefersToSelf reports whether a union with the given children would
// contain a Boxed pointing at itself.
func (in *Interner) RefersToSelf(children []ID) bool {
	for _, c := range children {
		if slices.Contains(in.refs[c], 0) {
			return true
		}
	}
	return false
}

// Intern returns the ID of l, adding it on first sight.
func (in *Interner) Intern(l Layout) ID {
	key := in.key(&l)
	if id, ok := in.index[key]; ok {
		return id
	}
	n, err := safecast.Conv[uint32](len(in.layouts))
	if err != nil {
		panic(fmt.Errorf("layout: interner overflow: %w", err))
	}
	id := ID(n)
	l.Fields = slices.Clone(l.Fields)
	if l.Variants != nil {
		vs := make([]Variant, len(l.Variants))
		for i, v := range l.Variants {
			vs[i] = Variant{Name: v.Name, Fields: slices.Clone(v.Fields)}
		}
		l.Variants = vs
	}
	if l.Members != nil {
		ms := make([]Member, len(l.Members))
		for i, m := range l.Members {
			ms[i] = Member{Symbol: m.Symbol, Captures: slices.Clone(m.Captures)}
		}
		l.Members = ms
	}
	in.layouts = append(in.layouts, l)
	in.refs = append(in.refs, in.escaping(&l))
	in.index[key] = id
	return id
}

func (in *Interner) escaping(l *Layout) []uint32 {
	var out []uint32
	add := func(ids ...ID) {
		for _, id := range ids {
			if id == NoID {
				continue
			}
			for _, r := range in.refs[id] {
				if !slices.Contains(out, r) {
					out = append(out, r)
				}
			}
		}
	}
	switch l.Kind {
	case KindBoxed:
		out = []uint32{l.Depth}
	case KindList, KindDict:
		add(l.Elem, l.Value)
	case KindStruct, KindFunction:
		add(l.Fields...)
		add(l.Result)
	case KindClosure:
		for _, m := range l.Members {
			add(m.Captures...)
		}
	case KindUnion:
		var inner []uint32
		for _, v := range l.Variants {
			for _, f := range v.Fields {
				for _, r := range in.refs[f] {
					if !slices.Contains(inner, r) {
						inner = append(inner, r)
					}
				}
			}
		}
		for _, r := range inner {
			if r > 0 && !slices.Contains(out, r-1) {
				out = append(out, r-1)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (in *Interner) key(l *Layout) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(l.Kind)))
	sb.WriteByte(':')
	switch l.Kind {
	case KindInt:
		fmt.Fprintf(&sb, "%d:%t", l.Width, l.Signed)
	case KindFloat:
		fmt.Fprintf(&sb, "%d", l.Width)
	case KindList, KindDict:
		fmt.Fprintf(&sb, "%d,%d", l.Elem, l.Value)
	case KindStruct:
		writeIDs(&sb, l.Fields)
	case KindFunction:
		writeIDs(&sb, l.Fields)
		fmt.Fprintf(&sb, "->%d", l.Result)
	case KindBoxed:
		fmt.Fprintf(&sb, "%d", l.Depth)
	case KindUnion:
		fmt.Fprintf(&sb, "%d:%t:%d:", l.Repr, l.Recursive, l.NullTag)
		for _, v := range l.Variants {
			sb.WriteString(v.Name)
			writeIDs(&sb, v.Fields)
			sb.WriteByte(';')
		}
	case KindClosure:
		fmt.Fprintf(&sb, "%d:", l.Closure)
		for _, m := range l.Members {
			fmt.Fprintf(&sb, "%d.%d", m.Symbol.Module, m.Symbol.Ident)
			writeIDs(&sb, m.Captures)
			sb.WriteByte(';')
		}
	}
	return sb.String()
}

func writeIDs(sb *strings.Builder, ids []ID) {
	sb.WriteByte('(')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(id), 10))
	}
	sb.WriteByte(')')
}
