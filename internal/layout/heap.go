package layout

// IsHeap reports whether a value of this layout is a pointer to a
// reference-counted allocation.
func (in *Interner) IsHeap(id ID) bool {
	l := in.Get(id)
	switch l.Kind {
	case KindStr, KindList, KindDict, KindBoxed:
		return true
	case KindUnion:
		return l.Repr == ReprPointerTag || l.Repr == ReprNullablePointer
	}
	return false
}

// ContainsRefcounted reports whether values of this layout own any
// reference-counted allocation, directly or through fields.
func (in *Interner) ContainsRefcounted(id ID) bool {
	if in.IsHeap(id) {
		return true
	}
	l := in.Get(id)
	switch l.Kind {
	case KindStruct:
		for _, f := range l.Fields {
			if in.ContainsRefcounted(f) {
				return true
			}
		}
	case KindUnion:
		for _, v := range l.Variants {
			for _, f := range v.Fields {
				if in.ContainsRefcounted(f) {
					return true
				}
			}
		}
	case KindClosure:
		for _, m := range l.Members {
			for _, c := range m.Captures {
				if in.ContainsRefcounted(c) {
					return true
				}
			}
		}
	}
	return false
}

// FieldLayouts returns the layouts addressed by Index on a value of id,
// for the given variant (ignored for structs). Index positions line up with
// the returned slice; a tag word, if any, appears as a U8/I64 slot.
func (in *Interner) FieldLayouts(id ID, variant int) []ID {
	l := in.Get(id)
	switch l.Kind {
	case KindStruct:
		return l.Fields
	case KindUnion:
		if variant < 0 || variant >= len(l.Variants) {
			return nil
		}
		fields := l.Variants[variant].Fields
		if l.PayloadOffset() == 1 {
			return append([]ID{in.I64()}, fields...)
		}
		return fields
	case KindClosure:
		if variant < 0 || variant >= len(l.Members) {
			return nil
		}
		caps := l.Members[variant].Captures
		if l.Closure == ClosureUnion {
			return append([]ID{in.I64()}, caps...)
		}
		return caps
	}
	return nil
}

// RefcountedFields lists Index positions holding refcounted data.
func (in *Interner) RefcountedFields(id ID, variant int) []uint32 {
	var out []uint32
	for i, f := range in.FieldLayouts(id, variant) {
		if in.ContainsRefcounted(f) {
			out = append(out, uint32(i)) // #nosec G115 -- field count is small
		}
	}
	return out
}
