package types

import (
	"fmt"
)

// Subst binds type variables (by their TypeID) to concrete types.
type Subst map[TypeID]TypeID

type pair struct{ a, b TypeID }

// Unify walks poly and concrete in lockstep and records a binding for every
// variable of poly. Variables on the concrete side are left alone.
func (in *Interner) Unify(poly, concrete TypeID, s Subst) error {
	u := unifier{in: in, s: s, seen: make(map[pair]struct{})}
	return u.unify(poly, concrete)
}

type unifier struct {
	in   *Interner
	s    Subst
	seen map[pair]struct{}
}

func (u *unifier) unify(a, b TypeID) error {
	if a == b {
		return nil
	}
	key := pair{a, b}
	if _, ok := u.seen[key]; ok {
		return nil
	}
	u.seen[key] = struct{}{}

	ta, ok := u.in.Lookup(a)
	if !ok {
		return fmt.Errorf("types: unify: invalid type %d", a)
	}
	if ta.Kind == KindVar {
		if bound, ok := u.s[a]; ok {
			if bound == b {
				return nil
			}
			return u.unify(bound, b)
		}
		u.s[a] = b
		return nil
	}
	tb, ok := u.in.Lookup(b)
	if !ok {
		return fmt.Errorf("types: unify: invalid type %d", b)
	}
	if tb.Kind == KindVar || ta.Kind == KindErroneous || tb.Kind == KindErroneous {
		return nil
	}
	if ta.Kind != tb.Kind {
		return fmt.Errorf("types: cannot unify %s with %s", u.in.String(a), u.in.String(b))
	}
	switch ta.Kind {
	case KindInt, KindFloat:
		if ta.Width != tb.Width || ta.Signed != tb.Signed {
			return fmt.Errorf("types: cannot unify %s with %s", u.in.String(a), u.in.String(b))
		}
	case KindStr:
	case KindList:
		return u.unify(ta.Elem, tb.Elem)
	case KindDict:
		if err := u.unify(ta.Elem, tb.Elem); err != nil {
			return err
		}
		return u.unify(ta.Value, tb.Value)
	case KindRecord:
		ra := u.in.records[ta.Payload]
		rb := u.in.records[tb.Payload]
		for _, fa := range ra.Fields {
			fb, _, found := rb.Field(fa.Name)
			if !found {
				continue
			}
			if err := u.unify(fa.Type, fb.Type); err != nil {
				return err
			}
		}
	case KindUnion:
		ua := u.in.unions[ta.Payload]
		ub := u.in.unions[tb.Payload]
		for _, tagA := range ua.Tags {
			idx, found := ub.TagIndex(tagA.Name)
			if !found {
				continue
			}
			tagB := ub.Tags[idx]
			if len(tagA.Args) != len(tagB.Args) {
				return fmt.Errorf("types: tag %s arity mismatch (%d vs %d)", tagA.Name, len(tagA.Args), len(tagB.Args))
			}
			for i := range tagA.Args {
				if err := u.unify(tagA.Args[i], tagB.Args[i]); err != nil {
					return err
				}
			}
		}
	case KindFunc:
		fa := u.in.funcs[ta.Payload]
		fb := u.in.funcs[tb.Payload]
		if len(fa.Params) != len(fb.Params) {
			return fmt.Errorf("types: function arity mismatch (%d vs %d)", len(fa.Params), len(fb.Params))
		}
		for i := range fa.Params {
			if err := u.unify(fa.Params[i], fb.Params[i]); err != nil {
				return err
			}
		}
		if err := u.unify(fa.Result, fb.Result); err != nil {
			return err
		}
		return u.unify(fa.Lambdas, fb.Lambdas)
	case KindLambdaSet:
		la := u.in.sets[ta.Payload]
		lb := u.in.sets[tb.Payload]
		for _, ma := range la.Members {
			idx, found := lb.MemberIndex(ma.Symbol)
			if !found {
				continue
			}
			mb := lb.Members[idx]
			if len(ma.Captures) != len(mb.Captures) {
				return fmt.Errorf("types: closure capture count mismatch")
			}
			for i := range ma.Captures {
				if err := u.unify(ma.Captures[i], mb.Captures[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Apply rewrites t replacing every bound variable. Closed types are returned
// unchanged, so applying the same substitution twice yields the same IDs for
// non-recursive types.
func (in *Interner) Apply(s Subst, t TypeID) TypeID {
	a := Applier{in: in, s: s, memo: make(map[TypeID]TypeID)}
	return a.Apply(t)
}

// Applier applies one substitution to many types while sharing a memo, so
// a whole definition body maps recursive unions to the same new IDs.
type Applier struct {
	in   *Interner
	s    Subst
	memo map[TypeID]TypeID
}

// NewApplier prepares a reusable substitution.
func (in *Interner) NewApplier(s Subst) *Applier {
	return &Applier{in: in, s: s, memo: make(map[TypeID]TypeID)}
}

// Apply substitutes inside t.
func (a *Applier) Apply(t TypeID) TypeID {
	if t == NoTypeID || len(a.s) == 0 || !a.in.HasVars(t) {
		return t
	}
	if r, ok := a.memo[t]; ok {
		return r
	}
	tt := a.in.MustLookup(t)
	var out TypeID
	switch tt.Kind {
	case KindVar:
		r, ok := a.s[t]
		if !ok {
			return t
		}
		out = r
	case KindList:
		out = a.in.List(a.Apply(tt.Elem))
	case KindDict:
		out = a.in.Dict(a.Apply(tt.Elem), a.Apply(tt.Value))
	case KindRecord:
		src := a.in.records[tt.Payload].Fields
		fields := make([]Field, len(src))
		for i, f := range src {
			fields[i] = Field{Name: f.Name, Type: a.Apply(f.Type)}
		}
		out = a.in.Record(fields)
	case KindUnion:
		id := a.in.Reserve()
		a.memo[t] = id
		src := a.in.unions[tt.Payload].Tags
		tags := make([]Tag, len(src))
		for i, tag := range src {
			args := make([]TypeID, len(tag.Args))
			for j, arg := range tag.Args {
				args[j] = a.Apply(arg)
			}
			tags[i] = Tag{Name: tag.Name, Args: args}
		}
		a.in.DefineUnion(id, tags)
		return id
	case KindFunc:
		fn := a.in.funcs[tt.Payload]
		params := make([]TypeID, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = a.Apply(p)
		}
		out = a.in.Func(params, a.Apply(fn.Result), a.Apply(fn.Lambdas))
	case KindLambdaSet:
		src := a.in.sets[tt.Payload].Members
		members := make([]LambdaMember, len(src))
		for i, m := range src {
			caps := make([]TypeID, len(m.Captures))
			for j, c := range m.Captures {
				caps[j] = a.Apply(c)
			}
			members[i] = LambdaMember{Symbol: m.Symbol, Captures: caps}
		}
		out = a.in.LambdaSet(members)
	default:
		out = t
	}
	a.memo[t] = out
	return out
}
