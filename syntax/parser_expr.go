package syntax

import "strings"

var compareOps = map[string]bool{
	"<": true, ">": true, "==": true, ">=": true, "<=": true, "!=": true,
}

// testListStarOrYield parses the right-hand side of an assignment
func (ps *parser) testListStarOrYield() Expr {
	if ps.isKw("yield") {
		return ps.yieldExpr()
	}
	return ps.testListStar()
}

func (ps *parser) yieldExpr() Expr {
	t := ps.expectKw("yield")
	y := &Yield{Pos: t.Pos}
	if ps.acceptKw("from") {
		y.From = true
		y.Value = ps.test()
		return y
	}
	if !ps.atStatementEnd() && !ps.isOp(")") && !ps.isOp("=") {
		y.Value = ps.testListStar()
	}
	return y
}

// testListStar parses comma-separated tests or starred expressions,
// producing a tuple when a comma is present.
func (ps *parser) testListStar() Expr {
	pos := ps.tok().Pos
	first := ps.starOrNamedTest()
	if !ps.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for ps.acceptOp(",") {
		if ps.atExprListEnd() {
			break
		}
		elts = append(elts, ps.starOrNamedTest())
	}
	return &TupleExpr{Pos: pos, Elts: elts}
}

// exprList parses loop and comprehension targets, stopping before 'in'
func (ps *parser) exprList() Expr {
	pos := ps.tok().Pos
	first := ps.starOrBitOr()
	if !ps.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for ps.acceptOp(",") {
		if ps.isKw("in") || ps.atExprListEnd() {
			break
		}
		elts = append(elts, ps.starOrBitOr())
	}
	return &TupleExpr{Pos: pos, Elts: elts}
}

func (ps *parser) atExprListEnd() bool {
	t := ps.tok()
	if t.Kind == NEWLINE || t.Kind == EOF {
		return true
	}
	if t.Kind == OP {
		switch t.Value {
		case ")", "]", "}", "=", ":", ";":
			return true
		}
		return augOps[t.Value]
	}
	return false
}

func (ps *parser) starOrNamedTest() Expr {
	if t := ps.tok(); ps.acceptOp("*") {
		return &Starred{Pos: t.Pos, X: ps.bitOr()}
	}
	return ps.namedExprTest()
}

func (ps *parser) starOrBitOr() Expr {
	if t := ps.tok(); ps.acceptOp("*") {
		return &Starred{Pos: t.Pos, X: ps.bitOr()}
	}
	return ps.bitOr()
}

func (ps *parser) namedExprTest() Expr {
	pos := ps.tok().Pos
	e := ps.test()
	if ps.isOp(":=") {
		ps.next()
		name, ok := e.(*Name)
		if !ok {
			ps.fail(pos, "cannot use assignment expressions with %s", strings.ToLower(KindName(e)))
		}
		return &NamedExpr{Pos: pos, Target: name, Value: ps.test()}
	}
	return e
}

func (ps *parser) test() Expr {
	pos := ps.tok().Pos
	ps.enter(pos)
	defer ps.leave()
	if ps.isKw("lambda") {
		return ps.lambda()
	}
	e := ps.orTest()
	if ps.acceptKw("if") {
		cond := ps.orTest()
		ps.expectKw("else")
		return &IfExp{Pos: pos, Cond: cond, Then: e, Else: ps.test()}
	}
	return e
}

// testNoCond parses a comprehension filter, where a bare conditional
// expression would be ambiguous.
func (ps *parser) testNoCond() Expr {
	if ps.isKw("lambda") {
		return ps.lambda()
	}
	return ps.orTest()
}

func (ps *parser) lambda() Expr {
	t := ps.expectKw("lambda")
	params := ps.params(":", false)
	ps.expectOp(":")
	return &Lambda{Pos: t.Pos, Params: params, Body: ps.test()}
}

func (ps *parser) orTest() Expr {
	pos := ps.tok().Pos
	e := ps.andTest()
	if !ps.isKw("or") {
		return e
	}
	values := []Expr{e}
	for ps.acceptKw("or") {
		values = append(values, ps.andTest())
	}
	return &BoolOp{Pos: pos, Op: "or", Values: values}
}

func (ps *parser) andTest() Expr {
	pos := ps.tok().Pos
	e := ps.notTest()
	if !ps.isKw("and") {
		return e
	}
	values := []Expr{e}
	for ps.acceptKw("and") {
		values = append(values, ps.notTest())
	}
	return &BoolOp{Pos: pos, Op: "and", Values: values}
}

func (ps *parser) notTest() Expr {
	if t := ps.tok(); ps.acceptKw("not") {
		ps.enter(t.Pos)
		defer ps.leave()
		return &UnaryOp{Pos: t.Pos, Op: "not", X: ps.notTest()}
	}
	return ps.comparison()
}

func (ps *parser) comparison() Expr {
	pos := ps.tok().Pos
	left := ps.bitOr()
	var ops []string
	var comparators []Expr
	for {
		t := ps.tok()
		var op string
		switch {
		case t.Kind == OP && compareOps[t.Value]:
			ps.next()
			op = t.Value
		case ps.isKw("in"):
			ps.next()
			op = "in"
		case ps.isKw("not") && ps.peekTok(1).Kind == NAME && ps.peekTok(1).Value == "in":
			ps.next()
			ps.next()
			op = "not in"
		case ps.isKw("is"):
			ps.next()
			op = "is"
			if ps.acceptKw("not") {
				op = "is not"
			}
		}
		if op == "" {
			break
		}
		ops = append(ops, op)
		comparators = append(comparators, ps.bitOr())
	}
	if len(ops) == 0 {
		return left
	}
	return &Compare{Pos: pos, Left: left, Ops: ops, Comparators: comparators}
}

// binaryLevels lists binary operators from loosest to tightest binding
var binaryLevels = [][]string{
	{"|"},
	{"^"},
	{"&"},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "//", "%", "@"},
}

func (ps *parser) bitOr() Expr {
	return ps.binary(0)
}

func (ps *parser) binary(level int) Expr {
	if level == len(binaryLevels) {
		return ps.factor()
	}
	pos := ps.tok().Pos
	x := ps.binary(level + 1)
	// each operator in a chain nests the tree one level deeper
	links := 0
	defer func() { ps.depth -= links }()
	for {
		t := ps.tok()
		if t.Kind != OP || !contains(binaryLevels[level], t.Value) {
			return x
		}
		ps.next()
		ps.enter(t.Pos)
		links++
		x = &BinOp{Pos: pos, Op: t.Value, X: x, Y: ps.binary(level + 1)}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (ps *parser) factor() Expr {
	t := ps.tok()
	if t.Kind == OP && (t.Value == "-" || t.Value == "+" || t.Value == "~") {
		ps.next()
		ps.enter(t.Pos)
		defer ps.leave()
		return &UnaryOp{Pos: t.Pos, Op: t.Value, X: ps.factor()}
	}
	return ps.power()
}

func (ps *parser) power() Expr {
	pos := ps.tok().Pos
	var x Expr
	if ps.acceptKw("await") {
		x = &Await{Pos: pos, X: ps.primary()}
	} else {
		x = ps.primary()
	}
	if ps.acceptOp("**") {
		ps.enter(pos)
		defer ps.leave()
		return &BinOp{Pos: pos, Op: "**", X: x, Y: ps.factor()}
	}
	return x
}

func (ps *parser) primary() Expr {
	x := ps.atom()
	links := 0
	defer func() { ps.depth -= links }()
	for {
		t := ps.tok()
		if t.Kind == OP && (t.Value == "(" || t.Value == "[" || t.Value == ".") {
			ps.enter(t.Pos)
			links++
		}
		switch {
		case t.Kind == OP && t.Value == "(":
			ps.next()
			args, kws := ps.callArgs()
			ps.expectOp(")")
			x = &Call{Pos: x.Position(), Func: x, Args: args, Keywords: kws}
		case t.Kind == OP && t.Value == "[":
			ps.next()
			idx := ps.subscriptList()
			ps.expectOp("]")
			x = &Subscript{Pos: x.Position(), X: x, Index: idx}
		case t.Kind == OP && t.Value == ".":
			ps.next()
			name := ps.tok()
			if name.Kind != NAME {
				ps.fail(name.Pos, "invalid syntax")
			}
			ps.next()
			x = &Attribute{Pos: x.Position(), X: x, Name: name.Value}
		default:
			return x
		}
	}
}

// callArgs parses call arguments up to the closing parenthesis
func (ps *parser) callArgs() ([]Expr, []*Keyword) {
	var args []Expr
	var kws []*Keyword
	for !ps.isOp(")") {
		t := ps.tok()
		switch {
		case ps.acceptOp("**"):
			kws = append(kws, &Keyword{Value: ps.test()})
		case ps.acceptOp("*"):
			if len(kws) > 0 && kws[len(kws)-1].Name == "" {
				ps.fail(t.Pos, "iterable argument unpacking follows keyword argument unpacking")
			}
			args = append(args, &Starred{Pos: t.Pos, X: ps.test()})
		case t.Kind == NAME && !IsKeyword(t.Value) && ps.peekTok(1).Kind == OP && ps.peekTok(1).Value == "=":
			ps.next()
			ps.next()
			for _, kw := range kws {
				if kw.Name == t.Value {
					ps.fail(t.Pos, "keyword argument repeated: %s", t.Value)
				}
			}
			kws = append(kws, &Keyword{Name: t.Value, Value: ps.test()})
		default:
			arg := ps.namedExprTest()
			if ps.isKw("for") || ps.isKw("async") {
				arg = &GeneratorExp{Pos: arg.Position(), Elt: arg, Generators: ps.comprehensions()}
				if len(args) > 0 || len(kws) > 0 || !ps.isOp(")") {
					ps.fail(arg.Position(), "generator expression must be parenthesized")
				}
			}
			if len(kws) > 0 {
				ps.fail(arg.Position(), "positional argument follows keyword argument")
			}
			args = append(args, arg)
		}
		if !ps.acceptOp(",") {
			break
		}
	}
	return args, kws
}

func (ps *parser) subscriptList() Expr {
	pos := ps.tok().Pos
	first := ps.subscript()
	if !ps.isOp(",") {
		return first
	}
	elts := []Expr{first}
	for ps.acceptOp(",") {
		if ps.isOp("]") {
			break
		}
		elts = append(elts, ps.subscript())
	}
	return &TupleExpr{Pos: pos, Elts: elts}
}

func (ps *parser) subscript() Expr {
	pos := ps.tok().Pos
	var lo Expr
	if !ps.isOp(":") {
		lo = ps.namedExprTest()
		if !ps.isOp(":") {
			return lo
		}
	}
	ps.expectOp(":")
	s := &Slice{Pos: pos, Lo: lo}
	if !ps.isOp(":") && !ps.isOp("]") && !ps.isOp(",") {
		s.Hi = ps.test()
	}
	if ps.acceptOp(":") {
		if !ps.isOp("]") && !ps.isOp(",") {
			s.Step = ps.test()
		}
	}
	return s
}

func (ps *parser) comprehensions() []*Comprehension {
	var gens []*Comprehension
	for ps.isKw("for") || ps.isKw("async") {
		c := &Comprehension{}
		if ps.acceptKw("async") {
			c.Async = true
		}
		ps.expectKw("for")
		c.Target = ps.exprList()
		ps.checkTarget(c.Target, "assign to")
		ps.expectKw("in")
		c.Iter = ps.orTest()
		for ps.acceptKw("if") {
			c.Ifs = append(c.Ifs, ps.testNoCond())
		}
		gens = append(gens, c)
	}
	return gens
}

func (ps *parser) atom() Expr {
	t := ps.tok()
	switch t.Kind {
	case INT:
		ps.next()
		return &Constant{Pos: t.Pos, Value: t.Int}
	case FLOAT:
		ps.next()
		return &Constant{Pos: t.Pos, Value: t.Float}
	case STRING:
		return ps.stringAtom()
	case NAME:
		switch t.Value {
		case "None":
			ps.next()
			return &Constant{Pos: t.Pos, Value: nil}
		case "True":
			ps.next()
			return &Constant{Pos: t.Pos, Value: true}
		case "False":
			ps.next()
			return &Constant{Pos: t.Pos, Value: false}
		}
		if IsKeyword(t.Value) {
			ps.fail(t.Pos, "invalid syntax")
		}
		ps.next()
		return &Name{Pos: t.Pos, Id: t.Value}
	case OP:
		switch t.Value {
		case "(":
			return ps.parenAtom()
		case "[":
			return ps.listAtom()
		case "{":
			return ps.braceAtom()
		case "...":
			ps.next()
			return &Constant{Pos: t.Pos, Value: Ellipsis{}}
		}
	case NEWLINE, EOF:
		ps.fail(t.Pos, "unexpected end of input")
	case INDENT:
		ps.fail(t.Pos, "unexpected indent")
	}
	ps.fail(t.Pos, "invalid syntax")
	return nil
}

func (ps *parser) parenAtom() Expr {
	open := ps.expectOp("(")
	if ps.acceptOp(")") {
		return &TupleExpr{Pos: open.Pos}
	}
	if ps.isKw("yield") {
		y := ps.yieldExpr()
		ps.expectOp(")")
		return y
	}
	first := ps.starOrNamedTest()
	if ps.isKw("for") || ps.isKw("async") {
		gen := &GeneratorExp{Pos: open.Pos, Elt: first, Generators: ps.comprehensions()}
		ps.expectOp(")")
		return gen
	}
	if !ps.isOp(",") {
		ps.expectOp(")")
		if _, ok := first.(*Starred); ok {
			ps.fail(first.Position(), "cannot use starred expression here")
		}
		return first
	}
	elts := []Expr{first}
	for ps.acceptOp(",") {
		if ps.isOp(")") {
			break
		}
		elts = append(elts, ps.starOrNamedTest())
	}
	ps.expectOp(")")
	return &TupleExpr{Pos: open.Pos, Elts: elts}
}

func (ps *parser) listAtom() Expr {
	open := ps.expectOp("[")
	if ps.acceptOp("]") {
		return &ListExpr{Pos: open.Pos}
	}
	first := ps.starOrNamedTest()
	if ps.isKw("for") || ps.isKw("async") {
		comp := &ListComp{Pos: open.Pos, Elt: first, Generators: ps.comprehensions()}
		ps.expectOp("]")
		return comp
	}
	elts := []Expr{first}
	for ps.acceptOp(",") {
		if ps.isOp("]") {
			break
		}
		elts = append(elts, ps.starOrNamedTest())
	}
	ps.expectOp("]")
	return &ListExpr{Pos: open.Pos, Elts: elts}
}

func (ps *parser) braceAtom() Expr {
	open := ps.expectOp("{")
	if ps.acceptOp("}") {
		return &DictExpr{Pos: open.Pos}
	}

	if ps.acceptOp("**") {
		d := &DictExpr{Pos: open.Pos, Keys: []Expr{nil}, Values: []Expr{ps.bitOr()}}
		return ps.dictRest(d)
	}

	first := ps.starOrNamedTest()
	if ps.acceptOp(":") {
		value := ps.test()
		if ps.isKw("for") || ps.isKw("async") {
			comp := &DictComp{Pos: open.Pos, Key: first, Value: value, Generators: ps.comprehensions()}
			ps.expectOp("}")
			return comp
		}
		d := &DictExpr{Pos: open.Pos, Keys: []Expr{first}, Values: []Expr{value}}
		return ps.dictRest(d)
	}

	if ps.isKw("for") || ps.isKw("async") {
		comp := &SetComp{Pos: open.Pos, Elt: first, Generators: ps.comprehensions()}
		ps.expectOp("}")
		return comp
	}
	elts := []Expr{first}
	for ps.acceptOp(",") {
		if ps.isOp("}") {
			break
		}
		elts = append(elts, ps.starOrNamedTest())
	}
	ps.expectOp("}")
	return &SetExpr{Pos: open.Pos, Elts: elts}
}

func (ps *parser) dictRest(d *DictExpr) Expr {
	for ps.acceptOp(",") {
		if ps.isOp("}") {
			break
		}
		if ps.acceptOp("**") {
			d.Keys = append(d.Keys, nil)
			d.Values = append(d.Values, ps.bitOr())
			continue
		}
		key := ps.test()
		ps.expectOp(":")
		d.Keys = append(d.Keys, key)
		d.Values = append(d.Values, ps.test())
	}
	ps.expectOp("}")
	return d
}

// stringAtom concatenates adjacent string literals, producing a JoinedStr when
// any of them is an f-string.
func (ps *parser) stringAtom() Expr {
	pos := ps.tok().Pos
	var parts []Expr
	formatted := false
	for ps.tok().Kind == STRING {
		t := ps.next()
		if !t.FStr {
			parts = append(parts, &Constant{Pos: t.Pos, Value: t.Value})
			continue
		}
		formatted = true
		joined, err := parseFString(t.Value, t.RawStr, t.Pos)
		if err != nil {
			panic(bailout{err})
		}
		parts = append(parts, joined.Parts...)
	}

	parts = mergeConstants(parts)
	if !formatted {
		if len(parts) == 0 {
			return &Constant{Pos: pos, Value: ""}
		}
		return parts[0]
	}
	return &JoinedStr{Pos: pos, Parts: parts}
}

func mergeConstants(parts []Expr) []Expr {
	var out []Expr
	for _, p := range parts {
		c, ok := p.(*Constant)
		if ok && len(out) > 0 {
			if prev, ok := out[len(out)-1].(*Constant); ok {
				out[len(out)-1] = &Constant{Pos: prev.Pos, Value: prev.Value.(string) + c.Value.(string)}
				continue
			}
		}
		out = append(out, p)
	}
	return out
}

// parseFString splits an f-string body into literal text and replacement
// fields. Field expressions are parsed with ParseExpr.
func parseFString(body string, raw bool, pos Pos) (*JoinedStr, *Error) {
	js := &JoinedStr{Pos: pos}
	var lit strings.Builder

	flush := func() *Error {
		if lit.Len() == 0 {
			return nil
		}
		text := lit.String()
		lit.Reset()
		if !raw {
			decoded, err := DecodeEscapes(text)
			if err != nil {
				return errorf(pos, "%s", err.Error())
			}
			text = decoded
		}
		js.Parts = append(js.Parts, &Constant{Pos: pos, Value: text})
		return nil
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '{' && i+1 < len(body) && body[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(body) && body[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '}':
			return nil, errorf(pos, "f-string: single '}' is not allowed")
		case c == '{':
			if err := flush(); err != nil {
				return nil, err
			}
			end, err := fieldEnd(body, i+1, pos)
			if err != nil {
				return nil, err
			}
			fields, err := parseField(body[i+1:end], raw, pos)
			if err != nil {
				return nil, err
			}
			js.Parts = append(js.Parts, fields...)
			i = end
		default:
			lit.WriteByte(c)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return js, nil
}

// fieldEnd returns the index of the '}' closing the field starting at start
func fieldEnd(body string, start int, pos Pos) (int, *Error) {
	depth := 0
	var quote byte
	for i := start; i < len(body); i++ {
		c := body[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']':
			depth--
		case '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, errorf(pos, "f-string: expecting '}'")
}

func parseField(field string, raw bool, pos Pos) ([]Expr, *Error) {
	exprEnd := len(field)
	depth := 0
	var quote byte
	for i := 0; i < len(field); i++ {
		c := field[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '!':
			if depth == 0 && (i+1 >= len(field) || field[i+1] != '=') {
				exprEnd = i
			}
		case ':':
			if depth == 0 {
				exprEnd = i
			}
		}
		if exprEnd != len(field) {
			break
		}
	}

	exprText := field[:exprEnd]
	rest := field[exprEnd:]
	var out []Expr

	selfDoc := false
	trimmed := strings.TrimRight(exprText, " ")
	if strings.HasSuffix(trimmed, "=") && !strings.HasSuffix(trimmed, "==") &&
		!strings.HasSuffix(trimmed, "!=") && !strings.HasSuffix(trimmed, "<=") &&
		!strings.HasSuffix(trimmed, ">=") {
		selfDoc = true
		out = append(out, &Constant{Pos: pos, Value: exprText})
		exprText = strings.TrimSuffix(trimmed, "=")
	}

	if strings.TrimSpace(exprText) == "" {
		return nil, errorf(pos, "f-string: empty expression not allowed")
	}
	value, err := ParseExpr("(" + exprText + ")")
	if err != nil {
		return nil, errorf(pos, "f-string: invalid expression %q", strings.TrimSpace(exprText))
	}

	fv := &FormattedValue{Pos: pos, Value: value}
	if selfDoc {
		fv.Conversion = 'r'
	}
	if strings.HasPrefix(rest, "!") {
		if len(rest) < 2 || !strings.ContainsRune("sra", rune(rest[1])) {
			return nil, errorf(pos, "f-string: invalid conversion character")
		}
		fv.Conversion = rune(rest[1])
		rest = rest[2:]
	}
	if strings.HasPrefix(rest, ":") {
		spec, serr := parseFString(rest[1:], raw, pos)
		if serr != nil {
			return nil, serr
		}
		fv.Spec = spec
		if selfDoc && rest != "" {
			fv.Conversion = 0
		}
	} else if rest != "" {
		return nil, errorf(pos, "f-string: expecting '}'")
	}
	return append(out, fv), nil
}
