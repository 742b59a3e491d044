package interp

import (
	"regexp"
	resyntax "regexp/syntax"
	"strconv"
	"strings"
	"unicode/utf8"
)

// re flag values match the host language so code can combine them with |
const (
	reIgnoreCase int64 = 2
	reMultiline  int64 = 8
	reDotAll     int64 = 16
	reASCII      int64 = 256
)

var (
	PatternType = &Type{Name: "Pattern", Base: ObjectType}
	MatchType   = &Type{Name: "Match", Base: ObjectType}
)

func reModule() *Module {
	return newModule("re", map[string]Value{
		"error":      PatternErrorType,
		"I":          Int(reIgnoreCase),
		"IGNORECASE": Int(reIgnoreCase),
		"M":          Int(reMultiline),
		"MULTILINE":  Int(reMultiline),
		"S":          Int(reDotAll),
		"DOTALL":     Int(reDotAll),
		"A":          Int(reASCII),
		"ASCII":      Int(reASCII),
	}, map[string]BuiltinFunc{
		"compile":   reCompile,
		"search":    reCall("search"),
		"match":     reCall("match"),
		"fullmatch": reCall("fullmatch"),
		"findall":   reCall("findall"),
		"finditer":  reCall("finditer"),
		"sub":       reSub("sub"),
		"subn":      reSub("subn"),
		"split":     reSplit,
		"escape":    reEscape,
	})
}

// pattern is a compiled expression with its anchored variants
type pattern struct {
	src    string
	flags  int64
	search *regexp.Regexp
	match  *regexp.Regexp
	full   *regexp.Regexp
}

// translatePattern rewrites the few escapes whose spelling differs in RE2
func translatePattern(src string, flags int64) string {
	var b strings.Builder
	if flags&reIgnoreCase != 0 {
		b.WriteString("(?i)")
	}
	if flags&reMultiline != 0 {
		b.WriteString("(?m)")
	}
	if flags&reDotAll != 0 {
		b.WriteString("(?s)")
	}
	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			if src[i+1] == 'Z' {
				b.WriteString(`\z`)
			} else {
				b.WriteByte(c)
				b.WriteByte(src[i+1])
			}
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func compilePattern(src string, flags int64) (*pattern, error) {
	expr := translatePattern(src, flags)
	search, err := regexp.Compile(expr)
	if err != nil {
		return nil, excf(PatternErrorType, "%s", patternMessage(err))
	}
	return &pattern{
		src:    src,
		flags:  flags,
		search: search,
		match:  regexp.MustCompile(`\A(?:` + expr + `)`),
		full:   regexp.MustCompile(`\A(?:` + expr + `)\z`),
	}, nil
}

func patternMessage(err error) string {
	if re, ok := err.(*resyntax.Error); ok {
		return string(re.Code) + ": " + re.Expr
	}
	return err.Error()
}

// toPattern accepts a source string or a compiled Pattern object
func toPattern(fn string, v Value, flagsV Value) (*pattern, error) {
	flags, err := optInt(fn, flagsV, 0)
	if err != nil {
		return nil, err
	}
	switch p := v.(type) {
	case Str:
		return compilePattern(string(p), flags)
	case *Object:
		if p.Class == PatternType {
			src, _ := p.Attrs["pattern"].(Str)
			f, _ := p.Attrs["flags"].(Int)
			return compilePattern(string(src), int64(f)|flags)
		}
	}
	return nil, excf(TypeErrorType, "first argument must be string or compiled pattern")
}

func reCompile(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("compile", args, kwargs, []string{"pattern", "flags"}, 1)
	if err != nil {
		return nil, err
	}
	p, err := toPattern("compile", a[0], a[1])
	if err != nil {
		return nil, err
	}
	return p.object(), nil
}

func (p *pattern) object() *Object {
	o := &Object{
		Class: PatternType,
		Repr:  "re.compile(" + strRepr(p.src) + ")",
		Attrs: map[string]Value{
			"pattern": Str(p.src),
			"flags":   Int(p.flags),
			"groups":  Int(p.search.NumSubexp()),
		},
	}
	for _, name := range []string{"search", "match", "fullmatch", "findall", "finditer"} {
		op := name
		o.Attrs[name] = &Builtin{Name: name, Recv: o, Fn: func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
			a, err := bindArgs(op, args, kwargs, []string{"string"}, 1)
			if err != nil {
				return nil, err
			}
			return p.apply(in, op, a[0])
		}}
	}
	o.Attrs["sub"] = &Builtin{Name: "sub", Recv: o, Fn: func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		return p.subCall(in, "sub", args, kwargs)
	}}
	o.Attrs["subn"] = &Builtin{Name: "subn", Recv: o, Fn: func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		return p.subCall(in, "subn", args, kwargs)
	}}
	o.Attrs["split"] = &Builtin{Name: "split", Recv: o, Fn: func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs("split", args, kwargs, []string{"string", "maxsplit"}, 1)
		if err != nil {
			return nil, err
		}
		return p.split(in, a[0], a[1])
	}}
	return o
}

func reCall(op string) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs(op, args, kwargs, []string{"pattern", "string", "flags"}, 2)
		if err != nil {
			return nil, err
		}
		p, err := toPattern(op, a[0], a[2])
		if err != nil {
			return nil, err
		}
		return p.apply(in, op, a[1])
	}
}

func (p *pattern) apply(in *Interp, op string, subject Value) (Value, error) {
	s, err := wantStr(op, subject)
	if err != nil {
		return nil, err
	}
	switch op {
	case "search", "match", "fullmatch":
		re := p.search
		if op == "match" {
			re = p.match
		} else if op == "fullmatch" {
			re = p.full
		}
		loc := re.FindStringSubmatchIndex(s)
		if loc == nil {
			return None, nil
		}
		return p.matchObject(s, loc), nil
	case "findall":
		var out []Value
		for _, loc := range p.search.FindAllStringSubmatchIndex(s, -1) {
			if err := in.charge(); err != nil {
				return nil, err
			}
			out = append(out, p.findallItem(s, loc))
		}
		return newList(out), nil
	default:
		var out []Value
		for _, loc := range p.search.FindAllStringSubmatchIndex(s, -1) {
			if err := in.charge(); err != nil {
				return nil, err
			}
			out = append(out, p.matchObject(s, loc))
		}
		return newList(out), nil
	}
}

func groupValue(s string, loc []int, g int, def Value) Value {
	if loc[2*g] < 0 {
		return def
	}
	return Str(s[loc[2*g]:loc[2*g+1]])
}

func (p *pattern) findallItem(s string, loc []int) Value {
	n := p.search.NumSubexp()
	switch n {
	case 0:
		return groupValue(s, loc, 0, Str(""))
	case 1:
		return groupValue(s, loc, 1, Str(""))
	}
	t := make(Tuple, n)
	for g := 1; g <= n; g++ {
		t[g-1] = groupValue(s, loc, g, Str(""))
	}
	return t
}

func runeOffset(s string, i int) int64 {
	if i < 0 {
		return -1
	}
	return int64(utf8.RuneCountInString(s[:i]))
}

// groupIndex resolves a group number or name
func (p *pattern) groupIndex(v Value) (int, error) {
	switch g := v.(type) {
	case Str:
		if i := p.search.SubexpIndex(string(g)); i >= 0 {
			return i, nil
		}
	case Int, Bool:
		n, _ := asInt(g)
		if n >= 0 && int(n) <= p.search.NumSubexp() {
			return int(n), nil
		}
	}
	return 0, excf(IndexErrorType, "no such group")
}

func (p *pattern) matchObject(s string, loc []int) *Object {
	o := &Object{Class: MatchType}
	o.Repr = "<re.Match object; span=(" + strconv.FormatInt(runeOffset(s, loc[0]), 10) + ", " +
		strconv.FormatInt(runeOffset(s, loc[1]), 10) + "), match=" + strRepr(s[loc[0]:loc[1]]) + ">"
	group := func(v Value) (Value, error) {
		g, err := p.groupIndex(v)
		if err != nil {
			return nil, err
		}
		return groupValue(s, loc, g, None), nil
	}
	o.GetItem = group

	method := func(name string, fn BuiltinFunc) {
		o.Attrs[name] = &Builtin{Name: name, Recv: o, Fn: fn}
	}
	o.Attrs = map[string]Value{
		"string": Str(s),
		"re":     p.object(),
	}
	method("group", func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		if len(kwargs) > 0 {
			return nil, excf(TypeErrorType, "group() takes no keyword arguments")
		}
		switch len(args) {
		case 0:
			return group(Int(0))
		case 1:
			return group(args[0])
		}
		out := make(Tuple, len(args))
		for i, a := range args {
			v, err := group(a)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	})
	method("groups", func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs("groups", args, kwargs, []string{"default"}, 0)
		if err != nil {
			return nil, err
		}
		n := p.search.NumSubexp()
		out := make(Tuple, n)
		for g := 1; g <= n; g++ {
			out[g-1] = groupValue(s, loc, g, orNone(a[0]))
		}
		return out, nil
	})
	method("groupdict", func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs("groupdict", args, kwargs, []string{"default"}, 0)
		if err != nil {
			return nil, err
		}
		d := NewDict()
		for g, name := range p.search.SubexpNames() {
			if name != "" {
				d.SetStr(name, groupValue(s, loc, g, orNone(a[0])))
			}
		}
		return d, nil
	})
	bound := func(name string, pick func(start, end int64) Value) {
		method(name, func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
			a, err := bindArgs(name, args, kwargs, []string{"group"}, 0)
			if err != nil {
				return nil, err
			}
			g := 0
			if a[0] != nil {
				if g, err = p.groupIndex(a[0]); err != nil {
					return nil, err
				}
			}
			return pick(runeOffset(s, loc[2*g]), runeOffset(s, loc[2*g+1])), nil
		})
	}
	bound("start", func(start, _ int64) Value { return Int(start) })
	bound("end", func(_, end int64) Value { return Int(end) })
	bound("span", func(start, end int64) Value { return Tuple{Int(start), Int(end)} })
	return o
}

func reSub(op string) BuiltinFunc {
	return func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs(op, args, kwargs, []string{"pattern", "repl", "string", "count", "flags"}, 3)
		if err != nil {
			return nil, err
		}
		p, err := toPattern(op, a[0], a[4])
		if err != nil {
			return nil, err
		}
		return p.sub(in, op, a[1], a[2], a[3])
	}
}

func (p *pattern) subCall(in *Interp, op string, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs(op, args, kwargs, []string{"repl", "string", "count"}, 2)
	if err != nil {
		return nil, err
	}
	return p.sub(in, op, a[0], a[1], a[2])
}

func (p *pattern) sub(in *Interp, op string, repl, subject, countV Value) (Value, error) {
	s, err := wantStr(op, subject)
	if err != nil {
		return nil, err
	}
	count, err := optInt(op, countV, 0)
	if err != nil {
		return nil, err
	}
	limit := -1
	if count > 0 {
		limit = int(count)
	}

	var b strings.Builder
	last, n := 0, 0
	for _, loc := range p.search.FindAllStringSubmatchIndex(s, limit) {
		if err := in.charge(); err != nil {
			return nil, err
		}
		b.WriteString(s[last:loc[0]])
		var piece string
		switch r := repl.(type) {
		case Str:
			if piece, err = p.expand(string(r), s, loc); err != nil {
				return nil, err
			}
		default:
			v, err := in.call(repl, []Value{p.matchObject(s, loc)}, nil)
			if err != nil {
				return nil, err
			}
			ps, ok := v.(Str)
			if !ok {
				return nil, excf(TypeErrorType, "expected str instance, %s found", typeName(v))
			}
			piece = string(ps)
		}
		b.WriteString(piece)
		if err := checkSize(int64(b.Len())); err != nil {
			return nil, err
		}
		last = loc[1]
		n++
	}
	b.WriteString(s[last:])
	if op == "subn" {
		return Tuple{Str(b.String()), Int(n)}, nil
	}
	return Str(b.String()), nil
}

// expand substitutes group references and escapes in a replacement template
func (p *pattern) expand(tmpl, s string, loc []int) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '\\' || i+1 == len(tmpl) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := tmpl[i]; {
		case e >= '0' && e <= '9':
			j := i + 1
			if j < len(tmpl) && tmpl[j] >= '0' && tmpl[j] <= '9' {
				j++
			}
			g, _ := strconv.Atoi(tmpl[i:j])
			if g > p.search.NumSubexp() {
				return "", excf(PatternErrorType, "invalid group reference %d", g)
			}
			if v, ok := groupValue(s, loc, g, Str("")).(Str); ok {
				b.WriteString(string(v))
			}
			i = j - 1
		case e == 'g':
			end := strings.IndexByte(tmpl[i:], '>')
			if i+1 >= len(tmpl) || tmpl[i+1] != '<' || end < 0 {
				return "", excf(PatternErrorType, "missing group name")
			}
			name := tmpl[i+2 : i+end]
			var ref Value = Str(name)
			if n, err := strconv.Atoi(name); err == nil {
				ref = Int(n)
			}
			g, err := p.groupIndex(ref)
			if err != nil {
				return "", excf(PatternErrorType, "unknown group name '%s'", name)
			}
			if v, ok := groupValue(s, loc, g, Str("")).(Str); ok {
				b.WriteString(string(v))
			}
			i += end
		case e == 'n':
			b.WriteByte('\n')
		case e == 't':
			b.WriteByte('\t')
		case e == 'r':
			b.WriteByte('\r')
		case e == '\\':
			b.WriteByte('\\')
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}

func reSplit(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("split", args, kwargs, []string{"pattern", "string", "maxsplit", "flags"}, 2)
	if err != nil {
		return nil, err
	}
	p, err := toPattern("split", a[0], a[3])
	if err != nil {
		return nil, err
	}
	return p.split(in, a[1], a[2])
}

func (p *pattern) split(in *Interp, subject, maxsplitV Value) (Value, error) {
	s, err := wantStr("split", subject)
	if err != nil {
		return nil, err
	}
	maxsplit, err := optInt("split", maxsplitV, 0)
	if err != nil {
		return nil, err
	}
	limit := -1
	if maxsplit > 0 {
		limit = int(maxsplit)
	}
	var out []Value
	last := 0
	for _, loc := range p.search.FindAllStringSubmatchIndex(s, limit) {
		if err := in.charge(); err != nil {
			return nil, err
		}
		out = append(out, Str(s[last:loc[0]]))
		for g := 1; g <= p.search.NumSubexp(); g++ {
			out = append(out, groupValue(s, loc, g, None))
		}
		last = loc[1]
	}
	out = append(out, Str(s[last:]))
	return newList(out), nil
}

const reSpecial = "()[]{}?*+-|^$\\.&~# \t\n\r\v\f"

func reEscape(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("escape", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	s, err := wantStr("escape", args[0])
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, r := range s {
		if r < utf8.RuneSelf && strings.ContainsRune(reSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return Str(b.String()), nil
}
