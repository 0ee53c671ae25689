package types

import (
	"fmt"
	"strings"
)

// String renders a type for diagnostics.
func (in *Interner) String(id TypeID) string {
	var sb strings.Builder
	in.write(&sb, id, make(map[TypeID]bool))
	return sb.String()
}

func (in *Interner) write(sb *strings.Builder, id TypeID, visiting map[TypeID]bool) {
	t, ok := in.Lookup(id)
	if !ok {
		sb.WriteString("<invalid>")
		return
	}
	if visiting[id] {
		sb.WriteString("<rec>")
		return
	}
	switch t.Kind {
	case KindVar:
		v := in.vars[t.Payload]
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("t%d", id)
		}
		switch v.Num {
		case NumInt:
			sb.WriteString("Int " + name)
		case NumFrac:
			sb.WriteString("Frac " + name)
		default:
			sb.WriteString(name)
		}
	case KindErroneous:
		sb.WriteString("<error>")
	case KindInt:
		if t.Signed {
			fmt.Fprintf(sb, "I%d", t.Width)
		} else {
			fmt.Fprintf(sb, "U%d", t.Width)
		}
	case KindFloat:
		fmt.Fprintf(sb, "F%d", t.Width)
	case KindStr:
		sb.WriteString("Str")
	case KindList:
		sb.WriteString("List ")
		in.writeArg(sb, t.Elem, visiting)
	case KindDict:
		sb.WriteString("Dict ")
		in.writeArg(sb, t.Elem, visiting)
		sb.WriteByte(' ')
		in.writeArg(sb, t.Value, visiting)
	case KindRecord:
		fields := in.records[t.Payload].Fields
		if len(fields) == 0 {
			sb.WriteString("{}")
			return
		}
		sb.WriteString("{ ")
		for i, f := range fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name + " : ")
			in.write(sb, f.Type, visiting)
		}
		sb.WriteString(" }")
	case KindUnion:
		visiting[id] = true
		sb.WriteByte('[')
		for i, tag := range in.unions[t.Payload].Tags {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(tag.Name)
			for _, a := range tag.Args {
				sb.WriteByte(' ')
				in.writeArg(sb, a, visiting)
			}
		}
		sb.WriteByte(']')
		delete(visiting, id)
	case KindFunc:
		fn := in.funcs[t.Payload]
		for i, p := range fn.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			in.writeArg(sb, p, visiting)
		}
		sb.WriteString(" -> ")
		in.write(sb, fn.Result, visiting)
	case KindLambdaSet:
		sb.WriteString("[[")
		for i, m := range in.sets[t.Payload].Members {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%d.%d", m.Symbol.Module, m.Symbol.Ident)
		}
		sb.WriteString("]]")
	default:
		sb.WriteString(t.Kind.String())
	}
}

func (in *Interner) writeArg(sb *strings.Builder, id TypeID, visiting map[TypeID]bool) {
	t, ok := in.Lookup(id)
	if ok && (t.Kind == KindList || t.Kind == KindDict || t.Kind == KindFunc || (t.Kind == KindVar && in.vars[t.Payload].Num != NumNone)) {
		sb.WriteByte('(')
		in.write(sb, id, visiting)
		sb.WriteByte(')')
		return
	}
	in.write(sb, id, visiting)
}
