package syntax

import "strings"

type parser struct {
	toks  []Token
	p     int
	depth int
}

// bailout carries a syntax error up the recursive descent
type bailout struct {
	err *Error
}

// Parse parses a complete source file
func Parse(src string) (mod *Module, err error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	ps := &parser{toks: toks}
	defer ps.recover(&err)

	mod = &Module{}
	for ps.tok().Kind != EOF {
		if ps.tok().Kind == NEWLINE {
			ps.next()
			continue
		}
		mod.Body = append(mod.Body, ps.statement()...)
	}
	return mod, nil
}

// ParseExpr parses a single expression, which may be a bare tuple
func ParseExpr(src string) (expr Expr, err error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	ps := &parser{toks: toks}
	defer ps.recover(&err)

	expr = ps.testListStar()
	if ps.tok().Kind == NEWLINE {
		ps.next()
	}
	if ps.tok().Kind != EOF {
		ps.fail(ps.tok().Pos, "invalid syntax")
	}
	return expr, nil
}

func (ps *parser) recover(err *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = b.err
	}
}

func (ps *parser) fail(pos Pos, format string, args ...any) {
	panic(bailout{errorf(pos, format, args...)})
}

// enter descends one level of syntactic nesting
func (ps *parser) enter(pos Pos) {
	if ps.depth >= MaxDepth {
		ps.fail(pos, "too many nested expressions or statements")
	}
	ps.depth++
}

func (ps *parser) leave() {
	ps.depth--
}

func (ps *parser) tok() Token {
	return ps.toks[ps.p]
}

func (ps *parser) peekTok(n int) Token {
	if ps.p+n >= len(ps.toks) {
		return ps.toks[len(ps.toks)-1]
	}
	return ps.toks[ps.p+n]
}

func (ps *parser) next() Token {
	t := ps.toks[ps.p]
	if t.Kind != EOF {
		ps.p++
	}
	return t
}

func (ps *parser) isOp(op string) bool {
	t := ps.tok()
	return t.Kind == OP && t.Value == op
}

func (ps *parser) isKw(kw string) bool {
	t := ps.tok()
	return t.Kind == NAME && t.Value == kw
}

func (ps *parser) acceptOp(op string) bool {
	if ps.isOp(op) {
		ps.next()
		return true
	}
	return false
}

func (ps *parser) acceptKw(kw string) bool {
	if ps.isKw(kw) {
		ps.next()
		return true
	}
	return false
}

func (ps *parser) expectOp(op string) Token {
	if !ps.isOp(op) {
		ps.fail(ps.tok().Pos, "expected '%s'", op)
	}
	return ps.next()
}

func (ps *parser) expectKw(kw string) Token {
	if !ps.isKw(kw) {
		ps.fail(ps.tok().Pos, "expected '%s'", kw)
	}
	return ps.next()
}

func (ps *parser) expectName() string {
	t := ps.tok()
	if t.Kind != NAME || IsKeyword(t.Value) {
		ps.fail(t.Pos, "invalid syntax")
	}
	ps.next()
	return t.Value
}

func (ps *parser) expectNewline() {
	t := ps.tok()
	switch t.Kind {
	case NEWLINE:
		ps.next()
	case EOF:
	default:
		ps.fail(t.Pos, "invalid syntax")
	}
}

func (ps *parser) statement() []Stmt {
	t := ps.tok()
	if t.Kind == INDENT {
		ps.fail(t.Pos, "unexpected indent")
	}
	if t.Kind == OP && t.Value == "@" {
		return []Stmt{ps.decorated()}
	}
	if t.Kind == NAME {
		switch t.Value {
		case "if":
			return []Stmt{ps.ifStmt()}
		case "while":
			return []Stmt{ps.whileStmt()}
		case "for":
			return []Stmt{ps.forStmt(false)}
		case "def":
			return []Stmt{ps.funcDef(nil, false)}
		case "class":
			return []Stmt{ps.classDef(nil)}
		case "try":
			return []Stmt{ps.tryStmt()}
		case "with":
			return []Stmt{ps.withStmt(false)}
		case "async":
			return []Stmt{ps.asyncStmt(nil)}
		}
	}
	return ps.simpleStatements()
}

func (ps *parser) simpleStatements() []Stmt {
	var stmts []Stmt
	for {
		stmts = append(stmts, ps.smallStatement())
		if !ps.acceptOp(";") {
			break
		}
		if ps.tok().Kind == NEWLINE || ps.tok().Kind == EOF {
			break
		}
	}
	ps.expectNewline()
	return stmts
}

func (ps *parser) smallStatement() Stmt {
	t := ps.tok()
	if t.Kind == NAME {
		switch t.Value {
		case "pass":
			ps.next()
			return &Pass{Pos: t.Pos}
		case "break":
			ps.next()
			return &Break{Pos: t.Pos}
		case "continue":
			ps.next()
			return &Continue{Pos: t.Pos}
		case "return":
			ps.next()
			ret := &Return{Pos: t.Pos}
			if !ps.atStatementEnd() {
				ret.Value = ps.testListStar()
			}
			return ret
		case "raise":
			ps.next()
			r := &Raise{Pos: t.Pos}
			if !ps.atStatementEnd() {
				r.Exc = ps.test()
				if ps.acceptKw("from") {
					r.Cause = ps.test()
				}
			}
			return r
		case "assert":
			ps.next()
			a := &Assert{Pos: t.Pos, Test: ps.test()}
			if ps.acceptOp(",") {
				a.Msg = ps.test()
			}
			return a
		case "del":
			ps.next()
			d := &Delete{Pos: t.Pos}
			for {
				target := ps.bitOr()
				ps.checkTarget(target, "delete")
				d.Targets = append(d.Targets, target)
				if !ps.acceptOp(",") || ps.atStatementEnd() {
					break
				}
			}
			return d
		case "global":
			ps.next()
			return &Global{Pos: t.Pos, Names: ps.nameList()}
		case "nonlocal":
			ps.next()
			return &Nonlocal{Pos: t.Pos, Names: ps.nameList()}
		case "import":
			return ps.importStmt()
		case "from":
			return ps.importFrom()
		}
	}
	return ps.exprStatement()
}

func (ps *parser) atStatementEnd() bool {
	t := ps.tok()
	return t.Kind == NEWLINE || t.Kind == EOF || (t.Kind == OP && t.Value == ";")
}

func (ps *parser) nameList() []string {
	names := []string{ps.expectName()}
	for ps.acceptOp(",") {
		names = append(names, ps.expectName())
	}
	return names
}

func (ps *parser) dottedName() string {
	parts := []string{ps.expectName()}
	for ps.acceptOp(".") {
		parts = append(parts, ps.expectName())
	}
	return strings.Join(parts, ".")
}

func (ps *parser) importStmt() Stmt {
	t := ps.expectKw("import")
	imp := &Import{Pos: t.Pos}
	for {
		pos := ps.tok().Pos
		alias := &Alias{Pos: pos, Name: ps.dottedName()}
		if ps.acceptKw("as") {
			alias.AsName = ps.expectName()
		}
		imp.Names = append(imp.Names, alias)
		if !ps.acceptOp(",") {
			break
		}
	}
	return imp
}

func (ps *parser) importFrom() Stmt {
	t := ps.expectKw("from")
	imp := &ImportFrom{Pos: t.Pos}
	for {
		if ps.acceptOp(".") {
			imp.Level++
			continue
		}
		if ps.acceptOp("...") {
			imp.Level += 3
			continue
		}
		break
	}
	if !ps.isKw("import") {
		imp.Module = ps.dottedName()
	}
	ps.expectKw("import")

	if star := ps.tok(); ps.acceptOp("*") {
		imp.Names = []*Alias{{Pos: star.Pos, Name: "*"}}
		return imp
	}
	parens := ps.acceptOp("(")
	for {
		pos := ps.tok().Pos
		alias := &Alias{Pos: pos, Name: ps.expectName()}
		if ps.acceptKw("as") {
			alias.AsName = ps.expectName()
		}
		imp.Names = append(imp.Names, alias)
		if !ps.acceptOp(",") {
			break
		}
		if parens && ps.isOp(")") {
			break
		}
	}
	if parens {
		ps.expectOp(")")
	}
	return imp
}

var augOps = map[string]bool{
	"+=": true, "-=": true, "*=": true, "/=": true, "//=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, "&=": true, "|=": true, "^=": true,
	"@=": true,
}

func (ps *parser) exprStatement() Stmt {
	pos := ps.tok().Pos
	first := ps.testListStarOrYield()

	t := ps.tok()
	switch {
	case t.Kind == OP && augOps[t.Value]:
		ps.next()
		ps.checkAugTarget(first)
		return &AugAssign{
			Pos:    pos,
			Target: first,
			Op:     strings.TrimSuffix(t.Value, "="),
			Value:  ps.testListStarOrYield(),
		}
	case t.Kind == OP && t.Value == ":":
		ps.next()
		ps.checkAugTarget(first)
		ann := &AnnAssign{Pos: pos, Target: first, Annotation: ps.test()}
		if ps.acceptOp("=") {
			ann.Value = ps.testListStarOrYield()
		}
		return ann
	case t.Kind == OP && t.Value == "=":
		assign := &Assign{Pos: pos}
		value := first
		for ps.acceptOp("=") {
			ps.checkTarget(value, "assign to")
			assign.Targets = append(assign.Targets, value)
			value = ps.testListStarOrYield()
		}
		assign.Value = value
		return assign
	}
	return &ExprStmt{Pos: pos, X: first}
}

func (ps *parser) checkAugTarget(e Expr) {
	switch e.(type) {
	case *Name, *Attribute, *Subscript:
		return
	}
	ps.fail(e.Position(), "illegal expression for augmented assignment")
}

func (ps *parser) checkTarget(e Expr, verb string) {
	switch x := e.(type) {
	case *Name, *Attribute, *Subscript:
	case *TupleExpr:
		for _, elt := range x.Elts {
			ps.checkTarget(elt, verb)
		}
	case *ListExpr:
		for _, elt := range x.Elts {
			ps.checkTarget(elt, verb)
		}
	case *Starred:
		ps.checkTarget(x.X, verb)
	case *Constant:
		ps.fail(e.Position(), "cannot %s literal", verb)
	case *Call:
		ps.fail(e.Position(), "cannot %s function call", verb)
	default:
		ps.fail(e.Position(), "cannot %s expression", verb)
	}
}

// block parses ':' followed by an indented suite or a same-line statement list
func (ps *parser) block() []Stmt {
	ps.enter(ps.tok().Pos)
	defer ps.leave()
	ps.expectOp(":")
	if ps.tok().Kind != NEWLINE {
		return ps.simpleStatements()
	}
	ps.next()
	if ps.tok().Kind != INDENT {
		ps.fail(ps.tok().Pos, "expected an indented block")
	}
	ps.next()
	var body []Stmt
	for ps.tok().Kind != DEDENT && ps.tok().Kind != EOF {
		if ps.tok().Kind == NEWLINE {
			ps.next()
			continue
		}
		body = append(body, ps.statement()...)
	}
	if ps.tok().Kind == DEDENT {
		ps.next()
	}
	return body
}

func (ps *parser) ifStmt() Stmt {
	t := ps.next()
	stmt := &If{Pos: t.Pos, Cond: ps.namedExprTest()}
	stmt.Body = ps.block()
	switch {
	case ps.isKw("elif"):
		stmt.Else = []Stmt{ps.ifStmt()}
	case ps.acceptKw("else"):
		stmt.Else = ps.block()
	}
	return stmt
}

func (ps *parser) whileStmt() Stmt {
	t := ps.next()
	stmt := &While{Pos: t.Pos, Cond: ps.namedExprTest()}
	stmt.Body = ps.block()
	if ps.acceptKw("else") {
		stmt.Else = ps.block()
	}
	return stmt
}

func (ps *parser) forStmt(async bool) Stmt {
	t := ps.expectKw("for")
	target := ps.exprList()
	ps.checkTarget(target, "assign to")
	ps.expectKw("in")
	stmt := &For{Pos: t.Pos, Target: target, Iter: ps.testListStar(), Async: async}
	stmt.Body = ps.block()
	if ps.acceptKw("else") {
		stmt.Else = ps.block()
	}
	return stmt
}

func (ps *parser) funcDef(decorators []Expr, async bool) Stmt {
	t := ps.expectKw("def")
	fn := &FuncDef{Pos: t.Pos, Decorators: decorators, Async: async}
	fn.Name = ps.expectName()
	ps.expectOp("(")
	fn.Params = ps.params(")", true)
	ps.expectOp(")")
	if ps.acceptOp("->") {
		fn.Returns = ps.test()
	}
	fn.Body = ps.block()
	return fn
}

func (ps *parser) classDef(decorators []Expr) Stmt {
	t := ps.expectKw("class")
	cls := &ClassDef{Pos: t.Pos, Decorators: decorators}
	cls.Name = ps.expectName()
	if ps.acceptOp("(") {
		cls.Bases, cls.Keywords = ps.callArgs()
		ps.expectOp(")")
	}
	cls.Body = ps.block()
	return cls
}

func (ps *parser) decorated() Stmt {
	var decorators []Expr
	for ps.acceptOp("@") {
		decorators = append(decorators, ps.namedExprTest())
		ps.expectNewline()
	}
	switch {
	case ps.isKw("def"):
		return ps.funcDef(decorators, false)
	case ps.isKw("class"):
		return ps.classDef(decorators)
	case ps.isKw("async"):
		return ps.asyncStmt(decorators)
	}
	ps.fail(ps.tok().Pos, "invalid syntax")
	return nil
}

func (ps *parser) asyncStmt(decorators []Expr) Stmt {
	ps.expectKw("async")
	switch {
	case ps.isKw("def"):
		return ps.funcDef(decorators, true)
	case decorators != nil:
	case ps.isKw("for"):
		return ps.forStmt(true)
	case ps.isKw("with"):
		return ps.withStmt(true)
	}
	ps.fail(ps.tok().Pos, "invalid syntax")
	return nil
}

func (ps *parser) tryStmt() Stmt {
	t := ps.expectKw("try")
	stmt := &Try{Pos: t.Pos}
	stmt.Body = ps.block()
	for ps.isKw("except") {
		h := &ExceptHandler{Pos: ps.next().Pos}
		if !ps.isOp(":") {
			h.Type = ps.test()
			if ps.acceptKw("as") {
				h.Name = ps.expectName()
			} else if ps.isOp(",") {
				ps.fail(ps.tok().Pos, "multiple exception types must be parenthesized")
			}
		}
		h.Body = ps.block()
		stmt.Handlers = append(stmt.Handlers, h)
	}
	if len(stmt.Handlers) > 0 && ps.acceptKw("else") {
		stmt.Else = ps.block()
	}
	if ps.acceptKw("finally") {
		stmt.Finally = ps.block()
	}
	if len(stmt.Handlers) == 0 && stmt.Finally == nil {
		ps.fail(ps.tok().Pos, "expected 'except' or 'finally' block")
	}
	return stmt
}

func (ps *parser) withStmt(async bool) Stmt {
	t := ps.expectKw("with")
	stmt := &With{Pos: t.Pos, Async: async}
	for {
		item := &WithItem{Context: ps.test()}
		if ps.acceptKw("as") {
			item.Vars = ps.bitOr()
			ps.checkTarget(item.Vars, "assign to")
		}
		stmt.Items = append(stmt.Items, item)
		if !ps.acceptOp(",") {
			break
		}
	}
	stmt.Body = ps.block()
	return stmt
}

// params parses a parameter list up to (not including) the closing token.
// Annotations are only permitted for def.
func (ps *parser) params(closing string, annotations bool) []*Param {
	var params []*Param
	seen := map[string]bool{}
	keywordOnly := false
	sawDefault := false

	for !ps.isOp(closing) {
		pos := ps.tok().Pos
		p := &Param{}
		switch {
		case ps.acceptOp("/"):
			if !ps.acceptOp(",") {
				return params
			}
			continue
		case ps.acceptOp("**"):
			p.DoubleStar = true
			p.Name = ps.expectName()
		case ps.acceptOp("*"):
			keywordOnly = true
			if ps.isOp(",") {
				ps.next()
				continue
			}
			p.Star = true
			p.Name = ps.expectName()
		default:
			p.Name = ps.expectName()
			p.KeywordOnly = keywordOnly
		}
		if annotations && ps.acceptOp(":") {
			p.Annotation = ps.test()
		}
		if !p.Star && !p.DoubleStar && ps.acceptOp("=") {
			p.Default = ps.test()
			sawDefault = true
		} else if sawDefault && !keywordOnly && !p.Star && !p.DoubleStar {
			ps.fail(pos, "non-default argument follows default argument")
		}
		if seen[p.Name] {
			ps.fail(pos, "duplicate argument '%s' in function definition", p.Name)
		}
		seen[p.Name] = true
		params = append(params, p)
		if p.DoubleStar && !ps.isOp(closing) && !(ps.isOp(",") && ps.peekTok(1).Kind == OP && ps.peekTok(1).Value == closing) {
			ps.fail(ps.tok().Pos, "arguments cannot follow var-keyword argument")
		}
		if !ps.acceptOp(",") {
			break
		}
	}
	return params
}
