package syntax

// Inspect traverses the tree rooted at n in source order, calling f for
// each node. When f returns false the children of that node are skipped.
// Params, keywords, handlers and comprehension clauses are not nodes of
// their own; their expressions and bodies are visited in place.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch x := n.(type) {
	case *ExprStmt:
		inspectExprs(f, x.X)
	case *Assign:
		inspectExprs(f, x.Targets...)
		inspectExprs(f, x.Value)
	case *AugAssign:
		inspectExprs(f, x.Target, x.Value)
	case *AnnAssign:
		inspectExprs(f, x.Target, x.Annotation, x.Value)
	case *Return:
		inspectExprs(f, x.Value)
	case *If:
		inspectExprs(f, x.Cond)
		inspectStmts(f, x.Body, x.Else)
	case *While:
		inspectExprs(f, x.Cond)
		inspectStmts(f, x.Body, x.Else)
	case *For:
		inspectExprs(f, x.Target, x.Iter)
		inspectStmts(f, x.Body, x.Else)
	case *FuncDef:
		inspectExprs(f, x.Decorators...)
		inspectParams(f, x.Params)
		inspectExprs(f, x.Returns)
		inspectStmts(f, x.Body)
	case *ClassDef:
		inspectExprs(f, x.Decorators...)
		inspectExprs(f, x.Bases...)
		inspectKeywords(f, x.Keywords)
		inspectStmts(f, x.Body)
	case *Try:
		inspectStmts(f, x.Body)
		for _, h := range x.Handlers {
			inspectExprs(f, h.Type)
			inspectStmts(f, h.Body)
		}
		inspectStmts(f, x.Else, x.Finally)
	case *Raise:
		inspectExprs(f, x.Exc, x.Cause)
	case *Assert:
		inspectExprs(f, x.Test, x.Msg)
	case *Delete:
		inspectExprs(f, x.Targets...)
	case *With:
		for _, item := range x.Items {
			inspectExprs(f, item.Context, item.Vars)
		}
		inspectStmts(f, x.Body)

	case *JoinedStr:
		inspectExprs(f, x.Parts...)
	case *FormattedValue:
		inspectExprs(f, x.Value)
		if x.Spec != nil {
			Inspect(x.Spec, f)
		}
	case *BinOp:
		inspectExprs(f, x.X, x.Y)
	case *UnaryOp:
		inspectExprs(f, x.X)
	case *BoolOp:
		inspectExprs(f, x.Values...)
	case *Compare:
		inspectExprs(f, x.Left)
		inspectExprs(f, x.Comparators...)
	case *Call:
		inspectExprs(f, x.Func)
		inspectExprs(f, x.Args...)
		inspectKeywords(f, x.Keywords)
	case *Attribute:
		inspectExprs(f, x.X)
	case *Subscript:
		inspectExprs(f, x.X, x.Index)
	case *Slice:
		inspectExprs(f, x.Lo, x.Hi, x.Step)
	case *ListExpr:
		inspectExprs(f, x.Elts...)
	case *TupleExpr:
		inspectExprs(f, x.Elts...)
	case *SetExpr:
		inspectExprs(f, x.Elts...)
	case *DictExpr:
		for i := range x.Values {
			inspectExprs(f, x.Keys[i], x.Values[i])
		}
	case *ListComp:
		inspectComprehension(f, x.Generators, x.Elt)
	case *SetComp:
		inspectComprehension(f, x.Generators, x.Elt)
	case *GeneratorExp:
		inspectComprehension(f, x.Generators, x.Elt)
	case *DictComp:
		inspectComprehension(f, x.Generators, x.Key, x.Value)
	case *IfExp:
		inspectExprs(f, x.Cond, x.Then, x.Else)
	case *Lambda:
		inspectParams(f, x.Params)
		inspectExprs(f, x.Body)
	case *Starred:
		inspectExprs(f, x.X)
	case *NamedExpr:
		inspectExprs(f, x.Target, x.Value)
	case *Yield:
		inspectExprs(f, x.Value)
	case *Await:
		inspectExprs(f, x.X)
	}
}

func inspectExprs(f func(Node) bool, exprs ...Expr) {
	for _, e := range exprs {
		// a typed nil pointer in an interface is still a missing child
		if e == nil || isNilNode(e) {
			continue
		}
		Inspect(e, f)
	}
}

func inspectStmts(f func(Node) bool, blocks ...[]Stmt) {
	for _, b := range blocks {
		for _, s := range b {
			Inspect(s, f)
		}
	}
}

func inspectParams(f func(Node) bool, params []*Param) {
	for _, p := range params {
		inspectExprs(f, p.Annotation, p.Default)
	}
}

func inspectKeywords(f func(Node) bool, kws []*Keyword) {
	for _, kw := range kws {
		inspectExprs(f, kw.Value)
	}
}

func inspectComprehension(f func(Node) bool, gens []*Comprehension, elts ...Expr) {
	for _, g := range gens {
		inspectExprs(f, g.Iter, g.Target)
		inspectExprs(f, g.Ifs...)
	}
	inspectExprs(f, elts...)
}

func isNilNode(e Expr) bool {
	switch x := e.(type) {
	case *Name:
		return x == nil
	case *JoinedStr:
		return x == nil
	}
	return false
}
