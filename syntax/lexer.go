package syntax

import (
	"strconv"
	"strings"
	"unicode"
)

// operators ordered longest first so that greedy matching works
var operators = []string{
	"**=", "//=", ">>=", "<<=", "...",
	"->", ":=", "**", "//", "<<", ">>", "<=", ">=", "==", "!=",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "@=",
	"+", "-", "*", "/", "%", "@", "&", "|", "^", "~", "<", ">",
	"(", ")", "[", "]", "{", "}", ",", ":", ".", ";", "=",
}

// Nesting limits. Source beyond them is rejected with a syntax error
// rather than parsed by unbounded recursion.
const (
	MaxBrackets = 200
	MaxIndent   = 100
	MaxDepth    = 1000
)

type lexer struct {
	src         []rune
	off         int
	line        int
	col         int
	indents     []int
	depth       int
	atLineStart bool
	tokens      []Token
}

// Tokenize splits src into tokens, synthesizing NEWLINE, INDENT and DEDENT
// tokens from the line structure.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{
		src:         []rune(src),
		line:        1,
		col:         1,
		indents:     []int{0},
		atLineStart: true,
	}
	if err := lx.run(); err != nil {
		return nil, err
	}
	return lx.tokens, nil
}

func (lx *lexer) peek(n int) rune {
	if lx.off+n >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off+n]
}

func (lx *lexer) eof() bool {
	return lx.off >= len(lx.src)
}

func (lx *lexer) advance() rune {
	r := lx.src[lx.off]
	lx.off++
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) pos() Pos {
	return Pos{Line: lx.line, Col: lx.col}
}

func (lx *lexer) emit(kind TokenKind, value string, pos Pos) *Token {
	lx.tokens = append(lx.tokens, Token{Kind: kind, Value: value, Pos: pos})
	return &lx.tokens[len(lx.tokens)-1]
}

func (lx *lexer) lastKind() TokenKind {
	if len(lx.tokens) == 0 {
		return NEWLINE
	}
	return lx.tokens[len(lx.tokens)-1].Kind
}

func (lx *lexer) run() error {
	for {
		if lx.atLineStart && lx.depth == 0 {
			done, err := lx.indentation()
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
		if lx.eof() {
			break
		}

		r := lx.peek(0)
		switch {
		case r == ' ' || r == '\t' || r == '\f' || r == '\r':
			lx.advance()
		case r == '#':
			for !lx.eof() && lx.peek(0) != '\n' {
				lx.advance()
			}
		case r == '\\':
			pos := lx.pos()
			lx.advance()
			if lx.peek(0) == '\r' {
				lx.advance()
			}
			if lx.peek(0) != '\n' {
				return errorf(pos, "unexpected character after line continuation character")
			}
			lx.advance()
		case r == '\n':
			pos := lx.pos()
			lx.advance()
			if lx.depth == 0 {
				if lx.lastKind() != NEWLINE {
					lx.emit(NEWLINE, "", pos)
				}
				lx.atLineStart = true
			}
		case r == '"' || r == '\'':
			if err := lx.str("", lx.pos()); err != nil {
				return err
			}
		case isDigit(r) || (r == '.' && isDigit(lx.peek(1))):
			if err := lx.number(); err != nil {
				return err
			}
		case isIdentStart(r):
			pos := lx.pos()
			start := lx.off
			for !lx.eof() && isIdentPart(lx.peek(0)) {
				lx.advance()
			}
			word := string(lx.src[start:lx.off])
			if q := lx.peek(0); (q == '"' || q == '\'') && isStringPrefix(word) {
				if err := lx.str(strings.ToLower(word), pos); err != nil {
					return err
				}
				continue
			}
			lx.emit(NAME, word, pos)
		default:
			if err := lx.operator(); err != nil {
				return err
			}
		}
	}

	pos := lx.pos()
	if lx.lastKind() != NEWLINE {
		lx.emit(NEWLINE, "", pos)
	}
	for len(lx.indents) > 1 {
		lx.indents = lx.indents[:len(lx.indents)-1]
		lx.emit(DEDENT, "", pos)
	}
	lx.emit(EOF, "", pos)
	return nil
}

// indentation measures the leading whitespace of a logical line and emits
// INDENT/DEDENT tokens. Blank and comment-only lines are skipped. It returns
// true when the input is exhausted.
func (lx *lexer) indentation() (bool, error) {
	for {
		width := 0
	scan:
		for !lx.eof() {
			switch lx.peek(0) {
			case ' ':
				width++
			case '\t':
				width = (width/8 + 1) * 8
			case '\f':
				width = 0
			default:
				break scan
			}
			lx.advance()
		}
		if lx.eof() {
			return true, nil
		}
		switch lx.peek(0) {
		case '\n', '\r':
			lx.advance()
			continue
		case '#':
			for !lx.eof() && lx.peek(0) != '\n' {
				lx.advance()
			}
			continue
		}

		lx.atLineStart = false
		pos := lx.pos()
		top := lx.indents[len(lx.indents)-1]
		switch {
		case width > top:
			if len(lx.indents) > MaxIndent {
				return false, errorf(pos, "too many levels of indentation")
			}
			lx.indents = append(lx.indents, width)
			lx.emit(INDENT, "", pos)
		case width < top:
			for width < lx.indents[len(lx.indents)-1] {
				lx.indents = lx.indents[:len(lx.indents)-1]
				lx.emit(DEDENT, "", pos)
			}
			if width != lx.indents[len(lx.indents)-1] {
				return false, errorf(pos, "unindent does not match any outer indentation level")
			}
		}
		return false, nil
	}
}

func (lx *lexer) operator() error {
	pos := lx.pos()
	for _, op := range operators {
		if lx.hasPrefix(op) {
			for range op {
				lx.advance()
			}
			switch op {
			case "(", "[", "{":
				if lx.depth >= MaxBrackets {
					return errorf(pos, "too many nested parentheses")
				}
				lx.depth++
			case ")", "]", "}":
				if lx.depth == 0 {
					return errorf(pos, "unmatched '%s'", op)
				}
				lx.depth--
			}
			lx.emit(OP, op, pos)
			return nil
		}
	}
	r := lx.peek(0)
	if r == '!' || r == '$' || r == '?' || r == '`' {
		return errorf(pos, "invalid syntax")
	}
	return errorf(pos, "invalid character '%c' (U+%04X)", r, r)
}

func (lx *lexer) hasPrefix(s string) bool {
	i := 0
	for _, r := range s {
		if lx.peek(i) != r {
			return false
		}
		i++
	}
	return true
}

func (lx *lexer) number() error {
	pos := lx.pos()
	start := lx.off
	isFloat := false

	if lx.peek(0) == '0' && strings.ContainsRune("xXoObB", lx.peek(1)) {
		lx.advance()
		lx.advance()
		for !lx.eof() && (isHexDigit(lx.peek(0)) || lx.peek(0) == '_') {
			lx.advance()
		}
	} else {
		lx.digits()
		if lx.peek(0) == '.' {
			isFloat = true
			lx.advance()
			lx.digits()
		}
		if r := lx.peek(0); r == 'e' || r == 'E' {
			next := lx.peek(1)
			if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peek(2))) {
				isFloat = true
				lx.advance()
				if next == '+' || next == '-' {
					lx.advance()
				}
				lx.digits()
			}
		}
	}

	if r := lx.peek(0); r == 'j' || r == 'J' {
		return errorf(pos, "complex literals are not supported")
	}
	if isIdentStart(lx.peek(0)) {
		return errorf(pos, "invalid decimal literal")
	}

	text := string(lx.src[start:lx.off])
	clean := strings.ReplaceAll(text, "_", "")
	if isFloat {
		f, err := strconv.ParseFloat(clean, 64)
		if err != nil {
			return errorf(pos, "invalid float literal %q", text)
		}
		tok := lx.emit(FLOAT, text, pos)
		tok.Float = f
		return nil
	}

	base := 0
	if isAllDigits(clean) {
		base = 10
		if len(clean) > 1 && clean[0] == '0' && strings.Trim(clean, "0") != "" {
			return errorf(pos, "leading zeros in decimal integer literals are not permitted")
		}
	}
	n, err := strconv.ParseInt(clean, base, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); ok && numErr.Err == strconv.ErrRange {
			return errorf(pos, "integer literal %s is too large", text)
		}
		return errorf(pos, "invalid integer literal %q", text)
	}
	tok := lx.emit(INT, text, pos)
	tok.Int = n
	return nil
}

func (lx *lexer) digits() {
	for !lx.eof() && (isDigit(lx.peek(0)) || lx.peek(0) == '_') {
		lx.advance()
	}
}

func (lx *lexer) str(prefix string, pos Pos) error {
	if strings.Contains(prefix, "b") {
		return errorf(pos, "bytes literals are not supported")
	}
	raw := strings.Contains(prefix, "r")
	fstr := strings.Contains(prefix, "f")

	quote := lx.advance()
	triple := false
	if lx.peek(0) == quote && lx.peek(1) == quote {
		lx.advance()
		lx.advance()
		triple = true
	}

	var body strings.Builder
	for {
		if lx.eof() {
			if triple {
				return errorf(pos, "unterminated triple-quoted string literal")
			}
			return errorf(pos, "unterminated string literal")
		}
		r := lx.peek(0)
		if r == '\\' {
			body.WriteRune(lx.advance())
			if !lx.eof() {
				body.WriteRune(lx.advance())
			}
			continue
		}
		if r == '\n' && !triple {
			return errorf(pos, "unterminated string literal")
		}
		if r == quote {
			if !triple {
				lx.advance()
				break
			}
			if lx.peek(1) == quote && lx.peek(2) == quote {
				lx.advance()
				lx.advance()
				lx.advance()
				break
			}
		}
		body.WriteRune(lx.advance())
	}

	text := body.String()
	if !fstr && !raw {
		decoded, err := DecodeEscapes(text)
		if err != nil {
			return errorf(pos, "%s", err.Error())
		}
		text = decoded
	}
	tok := lx.emit(STRING, text, pos)
	tok.FStr = fstr
	tok.RawStr = raw
	return nil
}

// DecodeEscapes interprets backslash escapes the way a non-raw string
// literal does. Unknown escapes are kept verbatim.
func DecodeEscapes(s string) (string, error) {
	if !strings.Contains(s, "\\") {
		return s, nil
	}
	var b strings.Builder
	rs := []rune(s)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		if r != '\\' || i+1 >= len(rs) {
			b.WriteRune(r)
			continue
		}
		i++
		switch c := rs[i]; c {
		case '\n':
		case '\\', '\'', '"':
			b.WriteRune(c)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'x', 'u', 'U':
			width := map[rune]int{'x': 2, 'u': 4, 'U': 8}[c]
			if i+width >= len(rs) {
				return "", &escapeError{c}
			}
			code, err := strconv.ParseUint(string(rs[i+1:i+1+width]), 16, 32)
			if err != nil {
				return "", &escapeError{c}
			}
			b.WriteRune(rune(code))
			i += width
		case '0', '1', '2', '3', '4', '5', '6', '7':
			end := i
			for end < len(rs) && end < i+3 && rs[end] >= '0' && rs[end] <= '7' {
				end++
			}
			code, _ := strconv.ParseUint(string(rs[i:end]), 8, 32)
			b.WriteRune(rune(code))
			i = end - 1
		default:
			b.WriteRune('\\')
			b.WriteRune(c)
		}
	}
	return b.String(), nil
}

type escapeError struct {
	kind rune
}

func (e *escapeError) Error() string {
	return "truncated \\" + string(e.kind) + " escape"
}

func isStringPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "r", "u", "f", "b", "rb", "br", "fr", "rf":
		return true
	}
	return false
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return true
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
