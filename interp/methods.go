package interp

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type methodFunc func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error)

// Method tables are filled in init because their bodies call back into the
// evaluator.
var (
	strMethods     map[string]methodFunc
	listMethods    map[string]methodFunc
	tupleMethods   map[string]methodFunc
	dictMethods    map[string]methodFunc
	counterMethods map[string]methodFunc
	setMethods     map[string]methodFunc
	intMethods     map[string]methodFunc
	floatMethods   map[string]methodFunc
)

// method returns name bound to recv, if recv's type has such a method
func (in *Interp) method(recv Value, name string) (*Builtin, bool) {
	var table map[string]methodFunc
	switch x := recv.(type) {
	case Str:
		table = strMethods
	case *List:
		table = listMethods
	case Tuple:
		table = tupleMethods
	case *Dict:
		if x.class == CounterType {
			if m, ok := counterMethods[name]; ok {
				return bindMethod(recv, name, m), true
			}
		}
		table = dictMethods
	case *Set:
		table = setMethods
	case Int, Bool:
		table = intMethods
	case Float:
		table = floatMethods
	}
	m, ok := table[name]
	if !ok {
		return nil, false
	}
	return bindMethod(recv, name, m), true
}

func bindMethod(recv Value, name string, m methodFunc) *Builtin {
	return &Builtin{
		Name: name,
		Recv: recv,
		Fn: func(in *Interp, args []Value, kwargs []Kwarg) (Value, error) {
			return m(in, recv, args, kwargs)
		},
	}
}

func init() {
	strMethods = map[string]methodFunc{
		"upper":        strMap(strings.ToUpper),
		"lower":        strMap(strings.ToLower),
		"casefold":     strMap(strings.ToLower),
		"swapcase":     strMap(swapCase),
		"title":        strMap(titleCase),
		"capitalize":   strMap(capitalize),
		"strip":        strStrip(strings.Trim, strings.TrimSpace),
		"lstrip":       strStrip(strings.TrimLeft, func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }),
		"rstrip":       strStrip(strings.TrimRight, func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }),
		"split":        strSplit(false),
		"rsplit":       strSplit(true),
		"splitlines":   strSplitLines,
		"join":         strJoin,
		"replace":      strReplace,
		"startswith":   strAffix(strings.HasPrefix, "startswith"),
		"endswith":     strAffix(strings.HasSuffix, "endswith"),
		"find":         strFind("find", false, false),
		"rfind":        strFind("rfind", true, false),
		"index":        strFind("index", false, true),
		"rindex":       strFind("rindex", true, true),
		"count":        strCount,
		"format":       walksMethod(strFormatMethod),
		"isdigit":      strIs(unicode.IsDigit),
		"isdecimal":    strIs(unicode.IsDigit),
		"isnumeric":    strIs(unicode.IsNumber),
		"isalpha":      strIs(unicode.IsLetter),
		"isalnum":      strIs(func(r rune) bool { return unicode.IsLetter(r) || unicode.IsNumber(r) }),
		"isspace":      strIs(unicode.IsSpace),
		"isupper":      strCased(unicode.IsUpper, unicode.IsLower),
		"islower":      strCased(unicode.IsLower, unicode.IsUpper),
		"zfill":        strZfill,
		"center":       strPad("center"),
		"ljust":        strPad("ljust"),
		"rjust":        strPad("rjust"),
		"partition":    strPartition(false),
		"rpartition":   strPartition(true),
		"removeprefix": strRemove(strings.TrimPrefix, "removeprefix"),
		"removesuffix": strRemove(strings.TrimSuffix, "removesuffix"),
	}

	listMethods = map[string]methodFunc{
		"append":  listAppend,
		"extend":  listExtend,
		"insert":  listInsert,
		"pop":     listPop,
		"remove":  walksMethod(listRemove),
		"index":   walksMethod(seqIndex),
		"count":   walksMethod(seqCount),
		"sort":    listSort,
		"reverse": listReverse,
		"copy": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("copy", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			return newList(append([]Value(nil), recv.(*List).Elems...)), nil
		},
		"clear": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("clear", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			recv.(*List).Elems = []Value{}
			return None, nil
		},
	}

	tupleMethods = map[string]methodFunc{
		"index": walksMethod(seqIndex),
		"count": walksMethod(seqCount),
	}

	dictMethods = map[string]methodFunc{
		"get":        dictGet,
		"keys":       dictView(func(d *Dict) []Value { return d.Keys() }),
		"values":     dictView(func(d *Dict) []Value { return d.Values() }),
		"items":      dictView(func(d *Dict) []Value { return d.Items() }),
		"pop":        dictPop,
		"popitem":    dictPopItem,
		"update":     dictUpdate,
		"setdefault": dictSetDefault,
		"copy": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("copy", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			return recv.(*Dict).Copy(), nil
		},
		"clear": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("clear", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			recv.(*Dict).Clear()
			return None, nil
		},
	}

	counterMethods = map[string]methodFunc{
		"most_common": counterMostCommon,
		"elements":    counterElements,
		"update":      counterUpdate(1),
		"subtract":    counterUpdate(-1),
		"total":       counterTotal,
	}

	setMethods = map[string]methodFunc{
		"add":                  setAdd,
		"remove":               setRemove(true),
		"discard":              setRemove(false),
		"pop":                  setPop,
		"union":                setCombine("union", "|"),
		"intersection":         setCombine("intersection", "&"),
		"difference":           setCombine("difference", "-"),
		"symmetric_difference": setCombine("symmetric_difference", "^"),
		"update":               setUpdate,
		"issubset":             setRelation("issubset", "<="),
		"issuperset":           setRelation("issuperset", ">="),
		"isdisjoint":           setDisjoint,
		"copy": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("copy", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			return recv.(*Set).Copy(), nil
		},
		"clear": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("clear", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			s := recv.(*Set)
			s.items = nil
			s.index = map[any]int{}
			return None, nil
		},
	}

	intMethods = map[string]methodFunc{
		"bit_length": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("bit_length", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			n, _ := asInt(recv)
			if n < 0 {
				n = -n
			}
			bits := int64(0)
			for u := uint64(n); u > 0; u >>= 1 {
				bits++
			}
			return Int(bits), nil
		},
	}

	floatMethods = map[string]methodFunc{
		"is_integer": func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
			if err := exactArgs("is_integer", args, kwargs, 0, 0); err != nil {
				return nil, err
			}
			f := float64(recv.(Float))
			return Bool(!math.IsInf(f, 0) && f == math.Trunc(f)), nil
		},
	}
}

// str

func strMap(fn func(string) string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("str method", args, kwargs, 0, 0); err != nil {
			return nil, err
		}
		return Str(fn(string(recv.(Str)))), nil
	}
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsUpper(r):
			return unicode.ToLower(r)
		case unicode.IsLower(r):
			return unicode.ToUpper(r)
		}
		return r
	}, s)
}

func titleCase(s string) string {
	var b strings.Builder
	prevCased := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevCased {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevCased = true
			continue
		}
		prevCased = false
		b.WriteRune(r)
	}
	return b.String()
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func strStrip(withChars func(string, string) string, space func(string) string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("strip", args, kwargs, 0, 1); err != nil {
			return nil, err
		}
		s := string(recv.(Str))
		if len(args) == 0 || isNone(args[0]) {
			return Str(space(s)), nil
		}
		chars, err := wantStr("strip", args[0])
		if err != nil {
			return nil, err
		}
		return Str(withChars(s, chars)), nil
	}
}

func strSplit(fromRight bool) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		a, err := bindArgs("split", args, kwargs, []string{"sep", "maxsplit"}, 0)
		if err != nil {
			return nil, err
		}
		s := string(recv.(Str))
		maxsplit, err := optInt("split", a[1], -1)
		if err != nil {
			return nil, err
		}

		var parts []string
		if a[0] == nil || isNone(a[0]) {
			parts = splitWhitespace(s, int(maxsplit), fromRight)
		} else {
			sep, err := wantStr("split", a[0])
			if err != nil {
				return nil, err
			}
			if sep == "" {
				return nil, excf(ValueErrorType, "empty separator")
			}
			switch {
			case maxsplit < 0:
				parts = strings.Split(s, sep)
			case fromRight:
				parts = rsplitN(s, sep, int(maxsplit))
			default:
				parts = strings.SplitN(s, sep, int(maxsplit)+1)
			}
		}
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = Str(p)
		}
		return newList(out), nil
	}
}

func rsplitN(s, sep string, n int) []string {
	var parts []string
	for n > 0 {
		i := strings.LastIndex(s, sep)
		if i < 0 {
			break
		}
		parts = append(parts, s[i+len(sep):])
		s = s[:i]
		n--
	}
	parts = append(parts, s)
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return parts
}

func splitWhitespace(s string, maxsplit int, fromRight bool) []string {
	if maxsplit < 0 {
		return strings.Fields(s)
	}
	if fromRight {
		fields := splitWhitespace(reverseString(s), maxsplit, false)
		for i, j := 0, len(fields)-1; i < j; i, j = i+1, j-1 {
			fields[i], fields[j] = fields[j], fields[i]
		}
		for i := range fields {
			fields[i] = reverseString(fields[i])
		}
		return fields
	}
	var parts []string
	rest := strings.TrimLeftFunc(s, unicode.IsSpace)
	for rest != "" {
		if len(parts) == maxsplit {
			parts = append(parts, strings.TrimRightFunc(rest, unicode.IsSpace))
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			parts = append(parts, rest)
			break
		}
		parts = append(parts, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return parts
}

func reverseString(s string) string {
	rs := []rune(s)
	for i, j := 0, len(rs)-1; i < j; i, j = i+1, j-1 {
		rs[i], rs[j] = rs[j], rs[i]
	}
	return string(rs)
}

func strSplitLines(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("splitlines", args, kwargs, []string{"keepends"}, 0)
	if err != nil {
		return nil, err
	}
	keep := a[0] != nil && truthy(a[0])
	s := string(recv.(Str))
	var out []Value
	for s != "" {
		i := strings.IndexAny(s, "\r\n")
		if i < 0 {
			out = append(out, Str(s))
			break
		}
		width := 1
		if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
			width = 2
		}
		if keep {
			out = append(out, Str(s[:i+width]))
		} else {
			out = append(out, Str(s[:i]))
		}
		s = s[i+width:]
	}
	return newList(out), nil
}

func strJoin(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("join", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	items, err := in.toSlice(args[0])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(items))
	size := 0
	for i, item := range items {
		s, ok := item.(Str)
		if !ok {
			return nil, excf(TypeErrorType, "sequence item %d: expected str instance, %s found", i, typeName(item))
		}
		parts[i] = string(s)
		size += len(s)
	}
	if err := checkSize(int64(size + len(recv.(Str))*len(parts))); err != nil {
		return nil, err
	}
	return Str(strings.Join(parts, string(recv.(Str)))), nil
}

func strReplace(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("replace", args, kwargs, 2, 3); err != nil {
		return nil, err
	}
	old, err := wantStr("replace", args[0])
	if err != nil {
		return nil, err
	}
	repl, err := wantStr("replace", args[1])
	if err != nil {
		return nil, err
	}
	n := int64(-1)
	if len(args) == 3 {
		if n, err = wantInt("replace", args[2]); err != nil {
			return nil, err
		}
	}
	s := string(recv.(Str))
	count := int64(strings.Count(s, old))
	if n >= 0 && n < count {
		count = n
	}
	if err := checkSize(int64(len(s)) + count*int64(len(repl)-len(old))); err != nil {
		return nil, err
	}
	return Str(strings.Replace(s, old, repl, int(n))), nil
}

// runeWindow applies optional start/end arguments to s, returning the
// window and its rune offset.
func runeWindow(fn string, s string, args []Value) (string, int, error) {
	rs := []rune(s)
	n := int64(len(rs))
	start, end := int64(0), n
	var err error
	if len(args) > 0 {
		if start, err = optInt(fn, args[0], 0); err != nil {
			return "", 0, err
		}
	}
	if len(args) > 1 {
		if end, err = optInt(fn, args[1], n); err != nil {
			return "", 0, err
		}
	}
	clamp := func(i int64) int64 {
		if i < 0 {
			i += n
		}
		if i < 0 {
			return 0
		}
		if i > n {
			return n
		}
		return i
	}
	start, end = clamp(start), clamp(end)
	if start > end {
		return "", -1, nil
	}
	return string(rs[start:end]), int(start), nil
}

func strAffix(test func(string, string) bool, fn string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(fn, args, kwargs, 1, 3); err != nil {
			return nil, err
		}
		s, offset, err := runeWindow(fn, string(recv.(Str)), args[1:])
		if err != nil {
			return nil, err
		}
		if offset < 0 {
			return Bool(false), nil
		}
		candidates := []Value{args[0]}
		if t, ok := args[0].(Tuple); ok {
			candidates = t
		}
		for _, c := range candidates {
			affix, ok := c.(Str)
			if !ok {
				return nil, excf(TypeErrorType, "%s first arg must be str or a tuple of str, not %s", fn, typeName(c))
			}
			if test(s, string(affix)) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
}

func strFind(fn string, fromRight, raise bool) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(fn, args, kwargs, 1, 3); err != nil {
			return nil, err
		}
		sub, err := wantStr(fn, args[0])
		if err != nil {
			return nil, err
		}
		s, offset, err := runeWindow(fn, string(recv.(Str)), args[1:])
		if err != nil {
			return nil, err
		}
		pos := -1
		if offset >= 0 {
			var i int
			if fromRight {
				i = strings.LastIndex(s, sub)
			} else {
				i = strings.Index(s, sub)
			}
			if i >= 0 {
				pos = offset + utf8.RuneCountInString(s[:i])
			}
		}
		if pos < 0 && raise {
			return nil, excf(ValueErrorType, "substring not found")
		}
		return Int(pos), nil
	}
}

func strCount(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("count", args, kwargs, 1, 3); err != nil {
		return nil, err
	}
	sub, err := wantStr("count", args[0])
	if err != nil {
		return nil, err
	}
	s, offset, err := runeWindow("count", string(recv.(Str)), args[1:])
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return Int(0), nil
	}
	return Int(strings.Count(s, sub)), nil
}

func strFormatMethod(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	s, err := in.strFormat(string(recv.(Str)), args, kwargs)
	if err != nil {
		return nil, err
	}
	return Str(s), nil
}

func strIs(pred func(rune) bool) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("str method", args, kwargs, 0, 0); err != nil {
			return nil, err
		}
		s := string(recv.(Str))
		if s == "" {
			return Bool(false), nil
		}
		for _, r := range s {
			if !pred(r) {
				return Bool(false), nil
			}
		}
		return Bool(true), nil
	}
}

func strCased(want, reject func(rune) bool) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("str method", args, kwargs, 0, 0); err != nil {
			return nil, err
		}
		found := false
		for _, r := range string(recv.(Str)) {
			if reject(r) {
				return Bool(false), nil
			}
			if want(r) {
				found = true
			}
		}
		return Bool(found), nil
	}
}

func strZfill(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("zfill", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	width, err := wantInt("zfill", args[0])
	if err != nil {
		return nil, err
	}
	if err := checkSize(width); err != nil {
		return nil, err
	}
	s := string(recv.(Str))
	n := int64(utf8.RuneCountInString(s))
	if n >= width {
		return Str(s), nil
	}
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}
	return Str(sign + strings.Repeat("0", int(width-n)) + s), nil
}

func strPad(mode string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(mode, args, kwargs, 1, 2); err != nil {
			return nil, err
		}
		width, err := wantInt(mode, args[0])
		if err != nil {
			return nil, err
		}
		if err := checkSize(width); err != nil {
			return nil, err
		}
		fill := " "
		if len(args) == 2 {
			f, err := wantStr(mode, args[1])
			if err != nil {
				return nil, err
			}
			if utf8.RuneCountInString(f) != 1 {
				return nil, excf(TypeErrorType, "The fill character must be exactly one character long")
			}
			fill = f
		}
		align := map[string]byte{"center": '^', "ljust": '<', "rjust": '>'}[mode]
		return Str(pad(string(recv.(Str)), int(width), fill, align)), nil
	}
}

func strPartition(fromRight bool) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("partition", args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		sep, err := wantStr("partition", args[0])
		if err != nil {
			return nil, err
		}
		if sep == "" {
			return nil, excf(ValueErrorType, "empty separator")
		}
		s := string(recv.(Str))
		var i int
		if fromRight {
			i = strings.LastIndex(s, sep)
		} else {
			i = strings.Index(s, sep)
		}
		if i < 0 {
			if fromRight {
				return Tuple{Str(""), Str(""), Str(s)}, nil
			}
			return Tuple{Str(s), Str(""), Str("")}, nil
		}
		return Tuple{Str(s[:i]), Str(sep), Str(s[i+len(sep):])}, nil
	}
}

func strRemove(trim func(string, string) string, fn string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(fn, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		affix, err := wantStr(fn, args[0])
		if err != nil {
			return nil, err
		}
		return Str(trim(string(recv.(Str)), affix)), nil
	}
}

// list and tuple

func listAppend(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("append", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	l := recv.(*List)
	if err := checkSize(int64(len(l.Elems) + 1)); err != nil {
		return nil, err
	}
	l.Elems = append(l.Elems, args[0])
	return None, nil
}

func listExtend(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("extend", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	if _, err := in.inplaceOp("+", recv, args[0]); err != nil {
		return nil, err
	}
	return None, nil
}

func listInsert(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("insert", args, kwargs, 2, 2); err != nil {
		return nil, err
	}
	l := recv.(*List)
	i, err := wantInt("insert", args[0])
	if err != nil {
		return nil, err
	}
	n := int64(len(l.Elems))
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	if i > n {
		i = n
	}
	if err := checkSize(n + 1); err != nil {
		return nil, err
	}
	l.Elems = append(l.Elems, nil)
	copy(l.Elems[i+1:], l.Elems[i:])
	l.Elems[i] = args[1]
	return None, nil
}

func listPop(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("pop", args, kwargs, 0, 1); err != nil {
		return nil, err
	}
	l := recv.(*List)
	if len(l.Elems) == 0 {
		return nil, excf(IndexErrorType, "pop from empty list")
	}
	idx := Value(Int(-1))
	if len(args) == 1 {
		idx = args[0]
	}
	i, err := indexOf("list", idx, len(l.Elems))
	if err != nil {
		return nil, err
	}
	if i < 0 {
		return nil, excf(IndexErrorType, "pop index out of range")
	}
	v := l.Elems[i]
	l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
	return v, nil
}

func listRemove(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("remove", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	l := recv.(*List)
	for i, v := range l.Elems {
		if identical(v, args[0]) || equal(v, args[0]) {
			l.Elems = append(l.Elems[:i], l.Elems[i+1:]...)
			return None, nil
		}
	}
	return nil, excf(ValueErrorType, "list.remove(x): x not in list")
}

func seqItems(recv Value) []Value {
	if l, ok := recv.(*List); ok {
		return l.Elems
	}
	return recv.(Tuple)
}

func seqIndex(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("index", args, kwargs, 1, 3); err != nil {
		return nil, err
	}
	items := seqItems(recv)
	n := int64(len(items))
	start, end := int64(0), n
	var err error
	if len(args) > 1 {
		if start, err = wantInt("index", args[1]); err != nil {
			return nil, err
		}
	}
	if len(args) > 2 {
		if end, err = wantInt("index", args[2]); err != nil {
			return nil, err
		}
	}
	if start < 0 {
		start = max(start+n, 0)
	}
	if end < 0 {
		end = max(end+n, 0)
	}
	for i := start; i < end && i < n; i++ {
		if identical(items[i], args[0]) || equal(items[i], args[0]) {
			return Int(i), nil
		}
	}
	if _, ok := recv.(Tuple); ok {
		return nil, excf(ValueErrorType, "tuple.index(x): x not in tuple")
	}
	return nil, excf(ValueErrorType, "%s is not in list", repr(args[0]))
}

func seqCount(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("count", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	n := 0
	for _, v := range seqItems(recv) {
		if identical(v, args[0]) || equal(v, args[0]) {
			n++
		}
	}
	return Int(n), nil
}

func listSort(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if len(args) > 0 {
		return nil, excf(TypeErrorType, "sort() takes no positional arguments")
	}
	a, err := bindArgs("sort", nil, kwargs, []string{"key", "reverse"}, 0)
	if err != nil {
		return nil, err
	}
	l := recv.(*List)
	sorted, err := in.sortValues(l.Elems, orNone(a[0]), a[1] != nil && truthy(a[1]))
	if err != nil {
		return nil, err
	}
	l.Elems = sorted
	return None, nil
}

func listReverse(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("reverse", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	e := recv.(*List).Elems
	for i, j := 0, len(e)-1; i < j; i, j = i+1, j-1 {
		e[i], e[j] = e[j], e[i]
	}
	return None, nil
}

// sortValues returns a stably sorted copy of items
func (in *Interp) sortValues(items []Value, key Value, reverse bool) ([]Value, error) {
	keys := items
	if !isNone(key) {
		keys = make([]Value, len(items))
		for i, item := range items {
			k, err := in.call(key, []Value{item}, nil)
			if err != nil {
				return nil, err
			}
			keys[i] = k
		}
	}

	perm := make([]int, len(items))
	for i := range perm {
		perm[i] = i
	}
	var sortErr error
	sort.SliceStable(perm, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		a, b := keys[perm[i]], keys[perm[j]]
		if reverse {
			a, b = b, a
		}
		if err := in.chargeWalk(a, b); err != nil {
			sortErr = err
			return false
		}
		ok, err := less(a, b)
		if err != nil {
			sortErr = err
		}
		return ok
	})
	if sortErr != nil {
		return nil, sortErr
	}
	out := make([]Value, len(items))
	for i, p := range perm {
		out[i] = items[p]
	}
	return out, nil
}

// dict

func dictGet(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("get", args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	v, found, err := recv.(*Dict).Get(args[0])
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return None, nil
}

func dictView(items func(*Dict) []Value) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("view", args, kwargs, 0, 0); err != nil {
			return nil, err
		}
		return newList(items(recv.(*Dict))), nil
	}
}

func dictPop(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("pop", args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	v, found, err := recv.(*Dict).Delete(args[0])
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return nil, &Exception{Class: KeyErrorType, Args: []Value{args[0]}}
}

func dictPopItem(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("popitem", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	d := recv.(*Dict)
	if d.Len() == 0 {
		return nil, excf(KeyErrorType, "popitem(): dictionary is empty")
	}
	k := d.keys[len(d.keys)-1]
	v, _, err := d.Delete(k)
	if err != nil {
		return nil, err
	}
	return Tuple{k, v}, nil
}

// mergeInto copies a mapping or an iterable of pairs into d
func (in *Interp) mergeInto(d *Dict, src Value) error {
	if m, ok := src.(*Dict); ok {
		for i, k := range m.keys {
			if err := d.Set(k, m.vals[i]); err != nil {
				return err
			}
		}
		return nil
	}
	items, err := in.toSlice(src)
	if err != nil {
		return err
	}
	for i, item := range items {
		pair, err := in.toSlice(item)
		if err != nil {
			return excf(TypeErrorType, "cannot convert dictionary update sequence element #%d to a sequence", i)
		}
		if len(pair) != 2 {
			return excf(ValueErrorType, "dictionary update sequence element #%d has length %d; 2 is required", i, len(pair))
		}
		if err := d.Set(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

func dictUpdate(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if len(args) > 1 {
		return nil, excf(TypeErrorType, "update expected at most 1 argument, got %d", len(args))
	}
	d := recv.(*Dict)
	if len(args) == 1 {
		if err := in.mergeInto(d, args[0]); err != nil {
			return nil, err
		}
	}
	for _, kw := range kwargs {
		d.SetStr(kw.Name, kw.Value)
	}
	return None, nil
}

func dictSetDefault(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("setdefault", args, kwargs, 1, 2); err != nil {
		return nil, err
	}
	d := recv.(*Dict)
	v, found, err := d.Get(args[0])
	if err != nil {
		return nil, err
	}
	if found {
		return v, nil
	}
	def := None
	if len(args) == 2 {
		def = args[1]
	}
	if err := d.Set(args[0], def); err != nil {
		return nil, err
	}
	return def, nil
}

// Counter

func counterMostCommon(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	a, err := bindArgs("most_common", args, kwargs, []string{"n"}, 0)
	if err != nil {
		return nil, err
	}
	d := recv.(*Dict)
	items := d.Items()
	sort.SliceStable(items, func(i, j int) bool {
		ci, _ := asFloat(items[i].(Tuple)[1])
		cj, _ := asFloat(items[j].(Tuple)[1])
		return ci > cj
	})
	n, err := optInt("most_common", a[0], int64(len(items)))
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n < int64(len(items)) {
		items = items[:n]
	}
	return newList(items), nil
}

func counterElements(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("elements", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	d := recv.(*Dict)
	var out []Value
	for i, k := range d.keys {
		n, _ := asInt(d.vals[i])
		for j := int64(0); j < n; j++ {
			out = append(out, k)
			if err := checkSize(int64(len(out))); err != nil {
				return nil, err
			}
		}
	}
	return newList(out), nil
}

// count adds sign*n for each element of src into the counter d
func (in *Interp) count(d *Dict, src Value, sign int64) error {
	if m, ok := src.(*Dict); ok {
		for i, k := range m.keys {
			n, ok := asInt(m.vals[i])
			if !ok {
				return excf(TypeErrorType, "counter values must be integers")
			}
			if err := counterAdd(d, k, sign*n); err != nil {
				return err
			}
		}
		return nil
	}
	return in.iterate(src, func(item Value) error {
		return counterAdd(d, item, sign)
	})
}

func counterAdd(d *Dict, k Value, n int64) error {
	cur, _, err := d.Get(k)
	if err != nil {
		return err
	}
	c, _ := asInt(orNone(cur))
	return d.Set(k, Int(c+n))
}

func counterUpdate(sign int64) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if len(args) > 1 {
			return nil, excf(TypeErrorType, "expected at most 1 argument, got %d", len(args))
		}
		d := recv.(*Dict)
		if len(args) == 1 {
			if err := in.count(d, args[0], sign); err != nil {
				return nil, err
			}
		}
		for _, kw := range kwargs {
			n, ok := asInt(kw.Value)
			if !ok {
				return nil, excf(TypeErrorType, "counter values must be integers")
			}
			if err := counterAdd(d, Str(kw.Name), sign*n); err != nil {
				return nil, err
			}
		}
		return None, nil
	}
}

func counterTotal(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("total", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	var total Value = Int(0)
	for _, v := range recv.(*Dict).vals {
		var err error
		if total, err = binaryOp("+", total, v); err != nil {
			return nil, err
		}
	}
	return total, nil
}

// set

func setAdd(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("add", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	return None, recv.(*Set).Add(args[0])
}

func setRemove(strict bool) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs("remove", args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		found, err := recv.(*Set).Remove(args[0])
		if err != nil {
			return nil, err
		}
		if !found && strict {
			return nil, &Exception{Class: KeyErrorType, Args: []Value{args[0]}}
		}
		return None, nil
	}
}

func setPop(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("pop", args, kwargs, 0, 0); err != nil {
		return nil, err
	}
	s := recv.(*Set)
	if s.Len() == 0 {
		return nil, excf(KeyErrorType, "pop from an empty set")
	}
	v := s.items[0]
	if _, err := s.Remove(v); err != nil {
		return nil, err
	}
	return v, nil
}

func (in *Interp) toSet(v Value) (*Set, error) {
	if s, ok := v.(*Set); ok {
		return s, nil
	}
	items, err := in.toSlice(v)
	if err != nil {
		return nil, err
	}
	return setFrom(items)
}

func setCombine(fn, op string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if len(kwargs) > 0 {
			return nil, excf(TypeErrorType, "%s() takes no keyword arguments", fn)
		}
		var acc Value = recv.(*Set).Copy()
		for _, arg := range args {
			other, err := in.toSet(arg)
			if err != nil {
				return nil, err
			}
			if acc, err = setOp(op, acc.(*Set), other); err != nil {
				return nil, err
			}
		}
		return acc, nil
	}
}

func setUpdate(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if len(kwargs) > 0 {
		return nil, excf(TypeErrorType, "update() takes no keyword arguments")
	}
	s := recv.(*Set)
	for _, arg := range args {
		err := in.iterate(arg, func(item Value) error {
			return s.Add(item)
		})
		if err != nil {
			return nil, err
		}
	}
	return None, nil
}

func setRelation(fn, op string) methodFunc {
	return func(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
		if err := exactArgs(fn, args, kwargs, 1, 1); err != nil {
			return nil, err
		}
		other, err := in.toSet(args[0])
		if err != nil {
			return nil, err
		}
		return Bool(compareSets(op, recv.(*Set), other)), nil
	}
}

func setDisjoint(in *Interp, recv Value, args []Value, kwargs []Kwarg) (Value, error) {
	if err := exactArgs("isdisjoint", args, kwargs, 1, 1); err != nil {
		return nil, err
	}
	other, err := in.toSet(args[0])
	if err != nil {
		return nil, err
	}
	for _, item := range recv.(*Set).items {
		if found, _ := other.Contains(item); found {
			return Bool(false), nil
		}
	}
	return Bool(true), nil
}
