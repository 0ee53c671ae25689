package layout

import (
	"fmt"
	"strings"

	"monoc/internal/symbols"
)

// String renders a layout. symName may be nil, in which case closure
// members print as raw module/ident pairs.
func (in *Interner) String(id ID, symName func(symbols.Symbol) string) string {
	var sb strings.Builder
	in.write(&sb, id, symName)
	return sb.String()
}

func (in *Interner) write(sb *strings.Builder, id ID, symName func(symbols.Symbol) string) {
	if id == NoID {
		sb.WriteString("<none>")
		return
	}
	l := in.Get(id)
	switch l.Kind {
	case KindInt:
		if l.Signed {
			fmt.Fprintf(sb, "I%d", l.Width)
		} else {
			fmt.Fprintf(sb, "U%d", l.Width)
		}
	case KindFloat:
		fmt.Fprintf(sb, "F%d", l.Width)
	case KindStr:
		sb.WriteString("Str")
	case KindList:
		sb.WriteString("List ")
		in.write(sb, l.Elem, symName)
	case KindDict:
		sb.WriteString("Dict ")
		in.write(sb, l.Elem, symName)
		sb.WriteByte(' ')
		in.write(sb, l.Value, symName)
	case KindStruct:
		sb.WriteString("Struct ")
		in.writeList(sb, l.Fields, symName)
	case KindBoxed:
		fmt.Fprintf(sb, "*rec%d", l.Depth)
	case KindFunction:
		sb.WriteString("Function ")
		in.writeList(sb, l.Fields, symName)
		sb.WriteString(" -> ")
		in.write(sb, l.Result, symName)
	case KindUnion:
		fmt.Fprintf(sb, "Union[%s] {", l.Repr)
		for i, v := range l.Variants {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(v.Name)
			in.writeList(sb, v.Fields, symName)
		}
		sb.WriteByte('}')
	case KindClosure:
		fmt.Fprintf(sb, "Closure[%s] {", l.Closure)
		for i, m := range l.Members {
			if i > 0 {
				sb.WriteString(", ")
			}
			if symName != nil {
				sb.WriteString(symName(m.Symbol))
			} else {
				fmt.Fprintf(sb, "%d.%d", m.Symbol.Module, m.Symbol.Ident)
			}
			in.writeList(sb, m.Captures, symName)
		}
		sb.WriteByte('}')
	default:
		sb.WriteString(l.Kind.String())
	}
}

func (in *Interner) writeList(sb *strings.Builder, ids []ID, symName func(symbols.Symbol) string) {
	sb.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		in.write(sb, id, symName)
	}
	sb.WriteByte('}')
}
