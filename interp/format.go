package interp

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// formatSpec is a parsed format-spec mini-language string
type formatSpec struct {
	fill      string
	align     byte
	sign      byte
	alternate bool
	zero      bool
	width     int
	grouping  byte
	precision int
	verb      byte
}

func parseFormatSpec(spec string) (*formatSpec, error) {
	fs := &formatSpec{fill: " ", precision: -1}
	rs := []rune(spec)
	i := 0
	isAlign := func(r rune) bool { return r == '<' || r == '>' || r == '^' || r == '=' }

	switch {
	case len(rs) >= 2 && isAlign(rs[1]):
		fs.fill, fs.align = string(rs[0]), byte(rs[1])
		i = 2
	case len(rs) >= 1 && isAlign(rs[0]):
		fs.align = byte(rs[0])
		i = 1
	}
	if i < len(rs) && (rs[i] == '+' || rs[i] == '-' || rs[i] == ' ') {
		fs.sign = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '#' {
		fs.alternate = true
		i++
	}
	if i < len(rs) && rs[i] == '0' {
		fs.zero = true
		i++
	}
	start := i
	for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
		i++
	}
	if i > start {
		w, err := strconv.Atoi(string(rs[start:i]))
		if err != nil || w > maxSequence {
			return nil, excf(ValueErrorType, "Too many decimal digits in format string")
		}
		fs.width = w
	}
	if i < len(rs) && (rs[i] == ',' || rs[i] == '_') {
		fs.grouping = byte(rs[i])
		i++
	}
	if i < len(rs) && rs[i] == '.' {
		i++
		start = i
		for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
			i++
		}
		if i == start {
			return nil, excf(ValueErrorType, "Format specifier missing precision")
		}
		p, err := strconv.Atoi(string(rs[start:i]))
		if err != nil || p > maxSequence {
			return nil, excf(ValueErrorType, "Too many decimal digits in format string")
		}
		fs.precision = p
	}
	if i < len(rs) {
		if rs[i] > 127 {
			return nil, excf(ValueErrorType, "Invalid format specifier '%s'", spec)
		}
		fs.verb = byte(rs[i])
		i++
	}
	if i != len(rs) {
		return nil, excf(ValueErrorType, "Invalid format specifier '%s'", spec)
	}
	if fs.zero && fs.align == 0 {
		fs.fill, fs.align = "0", '='
	}
	return fs, nil
}

// formatValue implements format(v, spec)
func formatValue(v Value, spec string) (string, error) {
	if spec == "" {
		return str(v), nil
	}
	fs, err := parseFormatSpec(spec)
	if err != nil {
		return "", err
	}

	switch x := v.(type) {
	case Str:
		if fs.verb != 0 && fs.verb != 's' {
			return "", excf(ValueErrorType, "Unknown format code '%c' for object of type 'str'", fs.verb)
		}
		if fs.sign != 0 {
			return "", excf(ValueErrorType, "Sign not allowed in string format specifier")
		}
		s := string(x)
		if fs.precision >= 0 {
			if rs := []rune(s); len(rs) > fs.precision {
				s = string(rs[:fs.precision])
			}
		}
		return pad(s, fs.width, fs.fill, alignOr(fs.align, '<')), nil
	case Int, Bool:
		n, _ := asInt(v)
		switch fs.verb {
		case 'e', 'E', 'f', 'F', 'g', 'G', '%':
			return formatFloat(float64(n), fs)
		}
		return formatInt(n, fs)
	case Float:
		switch fs.verb {
		case 'd', 'b', 'o', 'x', 'X', 'c':
			return "", excf(ValueErrorType, "Unknown format code '%c' for object of type 'float'", fs.verb)
		}
		return formatFloat(float64(x), fs)
	}
	return "", excf(TypeErrorType, "unsupported format string passed to %s.__format__", typeName(v))
}

func alignOr(a, def byte) byte {
	if a == 0 {
		return def
	}
	return a
}

func formatInt(n int64, fs *formatSpec) (string, error) {
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}

	var digits, prefix string
	switch fs.verb {
	case 0, 'd', 'n':
		digits = strconv.FormatUint(u, 10)
	case 'b':
		digits, prefix = strconv.FormatUint(u, 2), "0b"
	case 'o':
		digits, prefix = strconv.FormatUint(u, 8), "0o"
	case 'x':
		digits, prefix = strconv.FormatUint(u, 16), "0x"
	case 'X':
		digits, prefix = strings.ToUpper(strconv.FormatUint(u, 16)), "0X"
	case 'c':
		if n < 0 || n > utf8.MaxRune {
			return "", excf(OverflowErrorType, "%%c arg not in range(0x110000)")
		}
		return pad(string(rune(n)), fs.width, fs.fill, alignOr(fs.align, '<')), nil
	default:
		return "", excf(ValueErrorType, "Unknown format code '%c' for object of type 'int'", fs.verb)
	}
	if !fs.alternate {
		prefix = ""
	}
	if fs.grouping != 0 {
		every := 3
		if fs.verb == 'b' || fs.verb == 'o' || fs.verb == 'x' || fs.verb == 'X' {
			every = 4
		}
		digits = group(digits, fs.grouping, every)
	}
	return finishNumber(signOf(neg, fs.sign), prefix+digits, fs), nil
}

func formatFloat(f float64, fs *formatSpec) (string, error) {
	neg := math.Signbit(f) && !math.IsNaN(f)
	a := math.Abs(f)

	var body string
	switch {
	case math.IsInf(a, 0):
		body = "inf"
	case math.IsNaN(a):
		body = "nan"
	default:
		prec := fs.precision
		switch fs.verb {
		case 'f', 'F':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(a, 'f', prec, 64)
		case 'e', 'E':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(a, 'e', prec, 64)
		case '%':
			if prec < 0 {
				prec = 6
			}
			body = strconv.FormatFloat(a*100, 'f', prec, 64) + "%"
		case 'g', 'G', 'n':
			if prec < 0 {
				prec = 6
			}
			if prec == 0 {
				prec = 1
			}
			body = strconv.FormatFloat(a, 'g', prec, 64)
			if fs.alternate && !strings.ContainsAny(body, ".e") {
				body += "."
			}
		case 0:
			if prec < 0 {
				body = floatRepr(a)
			} else {
				if prec == 0 {
					prec = 1
				}
				body = strconv.FormatFloat(a, 'g', prec, 64)
				if !strings.ContainsAny(body, ".e") {
					body += ".0"
				}
			}
		default:
			return "", excf(ValueErrorType, "Unknown format code '%c' for object of type 'float'", fs.verb)
		}
	}
	if fs.verb == 'E' || fs.verb == 'F' || fs.verb == 'G' {
		body = strings.ToUpper(body)
	}
	if fs.grouping != 0 {
		intPart, rest := body, ""
		if i := strings.IndexAny(body, ".e%"); i >= 0 {
			intPart, rest = body[:i], body[i:]
		}
		body = group(intPart, fs.grouping, 3) + rest
	}
	return finishNumber(signOf(neg, fs.sign), body, fs), nil
}

func signOf(neg bool, mode byte) string {
	switch {
	case neg:
		return "-"
	case mode == '+':
		return "+"
	case mode == ' ':
		return " "
	}
	return ""
}

func finishNumber(sign, body string, fs *formatSpec) string {
	align := alignOr(fs.align, '>')
	if align == '=' {
		n := fs.width - utf8.RuneCountInString(sign) - utf8.RuneCountInString(body)
		if n > 0 {
			return sign + strings.Repeat(fs.fill, n) + body
		}
		return sign + body
	}
	return pad(sign+body, fs.width, fs.fill, align)
}

func group(digits string, sep byte, every int) string {
	if len(digits) <= every {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % every
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += every {
		if b.Len() > 0 {
			b.WriteByte(sep)
		}
		b.WriteString(digits[i : i+every])
	}
	return b.String()
}

// pad aligns s within width runes using fill
func pad(s string, width int, fill string, align byte) string {
	n := width - utf8.RuneCountInString(s)
	if n <= 0 {
		return s
	}
	switch align {
	case '<':
		return s + strings.Repeat(fill, n)
	case '^':
		left := n / 2
		return strings.Repeat(fill, left) + s + strings.Repeat(fill, n-left)
	default:
		return strings.Repeat(fill, n) + s
	}
}

// formatPercent implements printf-style str % args
func formatPercent(format string, args Value) (Value, error) {
	var items []Value
	mapping, isMap := args.(*Dict)
	if t, ok := args.(Tuple); ok {
		items = t
	} else {
		items = []Value{args}
	}
	next := 0
	take := func() (Value, error) {
		if next >= len(items) {
			return nil, excf(TypeErrorType, "not enough arguments for format string")
		}
		v := items[next]
		next++
		return v, nil
	}

	var b strings.Builder
	usedMap := false
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(format) {
			return nil, excf(ValueErrorType, "incomplete format")
		}

		var arg Value
		if format[i] == '(' {
			end := strings.IndexByte(format[i:], ')')
			if end < 0 {
				return nil, excf(ValueErrorType, "incomplete format key")
			}
			if !isMap {
				return nil, excf(TypeErrorType, "format requires a mapping")
			}
			key := format[i+1 : i+end]
			v, found, err := mapping.Get(Str(key))
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, &Exception{Class: KeyErrorType, Args: []Value{Str(key)}}
			}
			arg, usedMap = v, true
			i += end + 1
		}

		var flags strings.Builder
		align := byte('>')
		for i < len(format) && strings.IndexByte("-+ 0#", format[i]) >= 0 {
			switch format[i] {
			case '-':
				align = '<'
			default:
				flags.WriteByte(format[i])
			}
			i++
		}
		start := i
		for i < len(format) && (format[i] >= '0' && format[i] <= '9' || format[i] == '.') {
			i++
		}
		width := format[start:i]
		if i >= len(format) {
			return nil, excf(ValueErrorType, "incomplete format")
		}
		verb := format[i]
		if verb == '%' {
			b.WriteByte('%')
			continue
		}

		if arg == nil {
			v, err := take()
			if err != nil {
				return nil, err
			}
			arg = v
		}

		fl := flags.String()
		textSpec := string(align) + width
		var sb strings.Builder
		if strings.IndexByte(fl, '0') >= 0 && align != '<' {
			sb.WriteString("0=")
		} else {
			sb.WriteByte(align)
		}
		switch {
		case strings.IndexByte(fl, '+') >= 0:
			sb.WriteByte('+')
		case strings.IndexByte(fl, ' ') >= 0:
			sb.WriteByte(' ')
		}
		if strings.IndexByte(fl, '#') >= 0 {
			sb.WriteByte('#')
		}
		sb.WriteString(width)
		spec := sb.String()

		var s string
		var err error
		switch verb {
		case 's':
			s, err = formatValue(Str(str(arg)), textSpec)
		case 'r', 'a':
			s, err = formatValue(Str(repr(arg)), textSpec)
		case 'd', 'i', 'u':
			n, ok := asInt(arg)
			if !ok {
				f, isNum := asFloat(arg)
				if !isNum {
					return nil, excf(TypeErrorType, "%%%c format: a real number is required, not %s", verb, typeName(arg))
				}
				n = int64(f)
			}
			s, err = formatValue(Int(n), spec+"d")
		case 'x', 'X', 'o':
			n, ok := asInt(arg)
			if !ok {
				return nil, excf(TypeErrorType, "%%%c format: an integer is required, not %s", verb, typeName(arg))
			}
			s, err = formatValue(Int(n), spec+string(verb))
		case 'c':
			if cs, ok := arg.(Str); ok && utf8.RuneCountInString(string(cs)) == 1 {
				s, err = formatValue(cs, textSpec)
			} else {
				n, ok := asInt(arg)
				if !ok {
					return nil, excf(TypeErrorType, "%%c requires int or char")
				}
				s, err = formatValue(Int(n), spec+"c")
			}
		case 'f', 'F', 'e', 'E', 'g', 'G':
			f, ok := asFloat(arg)
			if !ok {
				return nil, excf(TypeErrorType, "must be real number, not %s", typeName(arg))
			}
			s, err = formatValue(Float(f), spec+string(verb))
		default:
			return nil, excf(ValueErrorType, "unsupported format character '%c' (0x%x) at index %d", verb, verb, i)
		}
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	if !usedMap && !isMap && next < len(items) {
		return nil, excf(TypeErrorType, "not all arguments converted during string formatting")
	}
	return Str(b.String()), nil
}

// strFormat implements str.format
func (in *Interp) strFormat(format string, args []Value, kwargs []Kwarg) (string, error) {
	var b strings.Builder
	auto := 0
	manual := false
	rs := []rune(format)

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch r {
		case '{':
			if i+1 < len(rs) && rs[i+1] == '{' {
				b.WriteRune('{')
				i++
				continue
			}
			depth, j := 1, i+1
			for ; j < len(rs); j++ {
				if rs[j] == '{' {
					depth++
				} else if rs[j] == '}' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if j >= len(rs) {
				return "", excf(ValueErrorType, "expected '}' before end of string")
			}
			field := string(rs[i+1 : j])
			i = j

			name, conv, spec := splitField(field)
			if name == "" {
				if manual {
					return "", excf(ValueErrorType, "cannot switch from manual field specification to automatic field numbering")
				}
				name = strconv.Itoa(auto)
				auto++
			} else if isDigits(firstPart(name)) {
				if auto > 0 {
					return "", excf(ValueErrorType, "cannot switch from automatic field numbering to manual field specification")
				}
				manual = true
			}

			v, err := in.resolveField(name, args, kwargs)
			if err != nil {
				return "", err
			}
			switch conv {
			case "":
			case "r", "a":
				v = Str(repr(v))
			case "s":
				v = Str(str(v))
			default:
				return "", excf(ValueErrorType, "Unknown conversion specifier %s", conv)
			}
			if strings.Contains(spec, "{") {
				if spec, err = in.strFormat(spec, args, kwargs); err != nil {
					return "", err
				}
			}
			s, err := formatValue(v, spec)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		case '}':
			if i+1 < len(rs) && rs[i+1] == '}' {
				b.WriteRune('}')
				i++
				continue
			}
			return "", excf(ValueErrorType, "Single '}' encountered in format string")
		default:
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func splitField(field string) (name, conv, spec string) {
	name = field
	depth := 0
scan:
	for i, r := range field {
		switch r {
		case '[':
			depth++
		case ']':
			depth--
		case ':':
			if depth == 0 {
				name, spec = field[:i], field[i+1:]
				break scan
			}
		}
	}
	if i := strings.LastIndexByte(name, '!'); i >= 0 && !strings.Contains(name[i:], "]") {
		name, conv = name[:i], name[i+1:]
	}
	return name, conv, spec
}

func firstPart(name string) string {
	if i := strings.IndexAny(name, ".["); i >= 0 {
		return name[:i]
	}
	return name
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (in *Interp) resolveField(name string, args []Value, kwargs []Kwarg) (Value, error) {
	head := firstPart(name)
	rest := name[len(head):]

	var v Value
	if isDigits(head) {
		idx, _ := strconv.Atoi(head)
		if idx >= len(args) {
			return nil, excf(IndexErrorType, "Replacement index %d out of range for positional args tuple", idx)
		}
		v = args[idx]
	} else {
		for _, kw := range kwargs {
			if kw.Name == head {
				v = kw.Value
			}
		}
		if v == nil {
			return nil, &Exception{Class: KeyErrorType, Args: []Value{Str(head)}}
		}
	}

	for rest != "" {
		switch rest[0] {
		case '.':
			end := strings.IndexAny(rest[1:], ".[")
			if end < 0 {
				end = len(rest) - 1
			}
			attr := rest[1 : end+1]
			rest = rest[end+1:]
			var err error
			if v, err = in.getAttr(v, attr); err != nil {
				return nil, err
			}
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, excf(ValueErrorType, "Missing ']' in format string")
			}
			key := rest[1:end]
			rest = rest[end+1:]
			var k Value = Str(key)
			if isDigits(key) {
				n, _ := strconv.ParseInt(key, 10, 64)
				k = Int(n)
			}
			var err error
			if v, err = in.getItem(v, k); err != nil {
				return nil, err
			}
		default:
			return nil, excf(ValueErrorType, "Only '.' or '[' may follow ']' in format field specifier")
		}
	}
	return v, nil
}
