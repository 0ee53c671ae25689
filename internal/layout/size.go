package layout

// Size returns the byte size of a layout value for the resolver's target.
func (r *Resolver) Size(id ID) int {
	size, _ := r.sizeAlign(id)
	return size
}

// Align returns the alignment of a layout value.
func (r *Resolver) Align(id ID) int {
	_, align := r.sizeAlign(id)
	return align
}

func (r *Resolver) sizeAlign(id ID) (int, int) {
	l := r.Layouts.Get(id)
	ptr := r.Target.PtrSize
	switch l.Kind {
	case KindInt, KindFloat:
		n := int(l.Width) / 8
		return n, n
	case KindStr, KindList, KindDict:
		return 3 * ptr, r.Target.PtrAlign
	case KindBoxed, KindFunction:
		return ptr, r.Target.PtrAlign
	case KindStruct:
		return r.structSize(l.Fields)
	case KindUnion:
		switch l.Repr {
		case ReprByteTag:
			return 1, 1
		case ReprPointerTag, ReprNullablePointer:
			return ptr, r.Target.PtrAlign
		}
		return r.taggedSize(variantFields(l))
	case KindClosure:
		switch l.Closure {
		case ClosureEnum:
			return 1, 1
		case ClosureStruct:
			if len(l.Members) == 0 {
				return 0, 1
			}
			return r.structSize(l.Members[0].Captures)
		}
		payloads := make([][]ID, len(l.Members))
		for i, m := range l.Members {
			payloads[i] = m.Captures
		}
		return r.taggedSize(payloads)
	}
	return 0, 1
}

func variantFields(l *Layout) [][]ID {
	out := make([][]ID, len(l.Variants))
	for i, v := range l.Variants {
		out[i] = v.Fields
	}
	return out
}

func (r *Resolver) structSize(fields []ID) (int, int) {
	size, align := 0, 1
	for _, f := range fields {
		fs, fa := r.sizeAlign(f)
		size = alignUp(size, fa) + fs
		if fa > align {
			align = fa
		}
	}
	return alignUp(size, align), align
}

// taggedSize: an 8-byte tag word followed by the widest payload.
func (r *Resolver) taggedSize(payloads [][]ID) (int, int) {
	maxSize, align := 0, 8
	for _, p := range payloads {
		s, a := r.structSize(p)
		if s > maxSize {
			maxSize = s
		}
		if a > align {
			align = a
		}
	}
	return alignUp(8+maxSize, align), align
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}
