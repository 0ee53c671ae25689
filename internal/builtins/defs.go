package builtins

import (
	"monoc/internal/hir"
	"monoc/internal/lowlevel"
	"monoc/internal/symbols"
	"monoc/internal/types"
)

// env carries the builder and the #Attr parameter symbols shared by all
// builtin bodies.
type env struct {
	b       *hir.Builder
	x, y, z symbols.Symbol
}

func (e *env) fn(self symbols.Symbol, params []types.TypeID, result types.TypeID) types.TypeID {
	return e.b.Fn(params, result, e.b.Lambdas(types.LambdaMember{Symbol: self}))
}

func (e *env) params(ts ...types.TypeID) []hir.Param {
	syms := []symbols.Symbol{e.x, e.y, e.z}
	out := make([]hir.Param, len(ts))
	for i, t := range ts {
		out[i] = hir.Param{Symbol: syms[i], Type: t}
	}
	return out
}

func (e *env) result(ok types.TypeID) types.TypeID {
	return e.b.T.Union([]types.Tag{
		{Name: "Err", Args: []types.TypeID{e.b.B.Unit}},
		{Name: "Ok", Args: []types.TypeID{ok}},
	})
}

// wrap defines self as \params -> lowlevel op params.
func (e *env) wrap(self symbols.Symbol, op lowlevel.Op, params []types.TypeID, result types.TypeID) *hir.Def {
	ps := e.params(params...)
	args := make([]*hir.Expr, len(ps))
	for i, p := range ps {
		args[i] = e.b.Var(p.Symbol, p.Type)
	}
	return e.b.Function(self, e.fn(self, params, result), ps, e.b.LowLevel(op, result, args...))
}

func arith(op lowlevel.Op) func(*env, symbols.Symbol) *hir.Def {
	return func(e *env, self symbols.Symbol) *hir.Def {
		a := e.b.T.Var("a")
		return e.wrap(self, op, []types.TypeID{a, a}, a)
	}
}

func compare(op lowlevel.Op) func(*env, symbols.Symbol) *hir.Def {
	return func(e *env, self symbols.Symbol) *hir.Def {
		a := e.b.T.Var("a")
		return e.wrap(self, op, []types.TypeID{a, a}, e.b.B.Bool)
	}
}

func equality(op lowlevel.Op) func(*env, symbols.Symbol) *hir.Def {
	return compare(op)
}

func logic(op lowlevel.Op) func(*env, symbols.Symbol) *hir.Def {
	return func(e *env, self symbols.Symbol) *hir.Def {
		bl := e.b.B.Bool
		return e.wrap(self, op, []types.TypeID{bl, bl}, bl)
	}
}

func boolNot(e *env, self symbols.Symbol) *hir.Def {
	return e.wrap(self, lowlevel.Not, []types.TypeID{e.b.B.Bool}, e.b.B.Bool)
}

func numNeg(e *env, self symbols.Symbol) *hir.Def {
	a := e.b.T.Var("a")
	return e.wrap(self, lowlevel.NumNeg, []types.TypeID{a}, a)
}

func numToFloat(e *env, self symbols.Symbol) *hir.Def {
	a := e.b.T.NumVar("a", types.NumInt)
	return e.wrap(self, lowlevel.NumToFloat, []types.TypeID{a}, e.b.B.F64)
}

func numRound(e *env, self symbols.Symbol) *hir.Def {
	return e.wrap(self, lowlevel.NumRound, []types.TypeID{e.b.B.F64}, e.b.B.I64)
}

// checkedDiv guards the unchecked primitive with a zero test:
//
//	\a, b -> if b != 0 then Ok (op a b) else Err {}
func checkedDiv(op lowlevel.Op) func(*env, symbols.Symbol) *hir.Def {
	return func(e *env, self symbols.Symbol) *hir.Def {
		b := e.b
		a := b.T.NumVar("a", types.NumInt)
		res := e.result(a)
		ps := e.params(a, a)
		x, y := b.Var(e.x, a), b.Var(e.y, a)
		body := b.If(res,
			b.LowLevel(lowlevel.NotEq, b.B.Bool, y, b.Int(0, a)),
			b.Tag(res, "Ok", b.LowLevel(op, a, x, b.Var(e.y, a))),
			b.Tag(res, "Err", b.Record(b.B.Unit)),
		)
		return b.Function(self, e.fn(self, []types.TypeID{a, a}, res), ps, body)
	}
}

// listGet is \list, i -> if i < len list then Ok (getUnsafe list i) else Err {}
func listGet(e *env, self symbols.Symbol) *hir.Def {
	b := e.b
	elem := b.T.Var("a")
	list := b.T.List(elem)
	res := e.result(elem)
	ps := e.params(list, b.B.I64)
	body := b.If(res,
		b.LowLevel(lowlevel.NumLt, b.B.Bool, b.Var(e.y, b.B.I64), b.LowLevel(lowlevel.ListLen, b.B.I64, b.Var(e.x, list))),
		b.Tag(res, "Ok", b.LowLevel(lowlevel.ListGetUnsafe, elem, b.Var(e.x, list), b.Var(e.y, b.B.I64))),
		b.Tag(res, "Err", b.Record(b.B.Unit)),
	)
	return b.Function(self, e.fn(self, []types.TypeID{list, b.B.I64}, res), ps, body)
}

// listSet is \list, i, v -> if i < len list then set list i v else list
func listSet(e *env, self symbols.Symbol) *hir.Def {
	b := e.b
	elem := b.T.Var("a")
	list := b.T.List(elem)
	ps := e.params(list, b.B.I64, elem)
	body := b.If(list,
		b.LowLevel(lowlevel.NumLt, b.B.Bool, b.Var(e.y, b.B.I64), b.LowLevel(lowlevel.ListLen, b.B.I64, b.Var(e.x, list))),
		b.LowLevel(lowlevel.ListSet, list, b.Var(e.x, list), b.Var(e.y, b.B.I64), b.Var(e.z, elem)),
		b.Var(e.x, list),
	)
	return b.Function(self, e.fn(self, []types.TypeID{list, b.B.I64, elem}, list), ps, body)
}

func listAppend(e *env, self symbols.Symbol) *hir.Def {
	elem := e.b.T.Var("a")
	list := e.b.T.List(elem)
	return e.wrap(self, lowlevel.ListAppend, []types.TypeID{list, elem}, list)
}

func listLen(e *env, self symbols.Symbol) *hir.Def {
	list := e.b.T.List(e.b.T.Var("a"))
	return e.wrap(self, lowlevel.ListLen, []types.TypeID{list}, e.b.B.I64)
}

func listConcat(e *env, self symbols.Symbol) *hir.Def {
	list := e.b.T.List(e.b.T.Var("a"))
	return e.wrap(self, lowlevel.ListConcat, []types.TypeID{list, list}, list)
}

// dictEmpty is a value, not a function; it specializes to a procedure
// without parameters.
func dictEmpty(e *env, self symbols.Symbol) *hir.Def {
	d := e.b.T.Dict(e.b.T.Var("k"), e.b.T.Var("v"))
	return e.b.Value(self, e.b.LowLevel(lowlevel.DictEmpty, d))
}

func dictInsert(e *env, self symbols.Symbol) *hir.Def {
	k, v := e.b.T.Var("k"), e.b.T.Var("v")
	d := e.b.T.Dict(k, v)
	return e.wrap(self, lowlevel.DictInsert, []types.TypeID{d, k, v}, d)
}

func dictLen(e *env, self symbols.Symbol) *hir.Def {
	d := e.b.T.Dict(e.b.T.Var("k"), e.b.T.Var("v"))
	return e.wrap(self, lowlevel.DictSize, []types.TypeID{d}, e.b.B.I64)
}

func strConcat(e *env, self symbols.Symbol) *hir.Def {
	s := e.b.B.Str
	return e.wrap(self, lowlevel.StrConcat, []types.TypeID{s, s}, s)
}

func strLen(e *env, self symbols.Symbol) *hir.Def {
	return e.wrap(self, lowlevel.StrLen, []types.TypeID{e.b.B.Str}, e.b.B.I64)
}
