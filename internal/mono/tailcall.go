package mono

import (
	"monoc/internal/ir"
	"monoc/internal/symbols"
)

// rewriteTailCalls turns self calls in tail position into jumps to a join
// point wrapped around the body of p:
//
//	joinpoint J params:
//	    body (with `let r = CallByName p xs; ret r` replaced by `jump J xs`)
//	in
//	jump J params;
//
// The join point reuses the parameter symbols, so the body is unchanged
// apart from the rewritten calls.
func rewriteTailCalls(p *ir.Proc, fresh func() symbols.Symbol) {
	if p == nil || p.Body == nil || len(p.Params) == 0 {
		return
	}
	var sites []*ir.Stmt
	ir.Walk(p.Body, func(s *ir.Stmt) {
		if isSelfTailCall(s, p.Name) {
			sites = append(sites, s)
		}
	})
	if len(sites) == 0 {
		return
	}
	j := fresh()
	for _, s := range sites {
		args := s.Let.Expr.Args
		*s = ir.Stmt{Kind: ir.StmtJump, Jump: ir.JumpStmt{Target: j, Args: args}}
	}
	params := make([]ir.Param, len(p.Params))
	entry := make([]symbols.Symbol, len(p.Params))
	for i, param := range p.Params {
		params[i] = ir.Param{Symbol: param.Symbol, Layout: param.Layout}
		entry[i] = param.Symbol
	}
	p.Body = ir.NewJoin(j, params, p.Body, ir.NewJump(j, entry...))
}

func isSelfTailCall(s *ir.Stmt, self ir.ProcName) bool {
	if s.Kind != ir.StmtLet || s.Let.Expr.Kind != ir.ExprCall || s.Let.Expr.Proc != self {
		return false
	}
	next := s.Let.Next
	return next != nil && next.Kind == ir.StmtRet && next.Ret.Symbol == s.Let.Symbol
}
