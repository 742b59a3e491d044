package syntax

import "fmt"

// Pos is a 1-based source position
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// TokenKind enumerates lexical token classes
type TokenKind int

// Token kinds
const (
	EOF TokenKind = iota
	NEWLINE
	INDENT
	DEDENT
	NAME
	INT
	FLOAT
	STRING
	OP
)

var tokenKindNames = map[TokenKind]string{
	EOF:     "EOF",
	NEWLINE: "NEWLINE",
	INDENT:  "INDENT",
	DEDENT:  "DEDENT",
	NAME:    "NAME",
	INT:     "INT",
	FLOAT:   "FLOAT",
	STRING:  "STRING",
	OP:      "OP",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a lexical token. For STRING tokens Value holds the decoded text,
// except for f-strings where it holds the raw body for the parser to split.
type Token struct {
	Kind   TokenKind
	Value  string
	Pos    Pos
	Int    int64
	Float  float64
	FStr   bool
	RawStr bool
}

func (t Token) String() string {
	switch t.Kind {
	case NAME, OP, INT, FLOAT:
		return fmt.Sprintf("%q", t.Value)
	case STRING:
		return "string literal"
	default:
		return t.Kind.String()
	}
}

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true, "elif": true,
	"else": true, "except": true, "finally": true, "for": true, "from": true,
	"global": true, "if": true, "import": true, "in": true, "is": true,
	"lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// IsKeyword reports whether name is a reserved word
func IsKeyword(name string) bool {
	return keywords[name]
}

// Error is a syntax error with the position it was detected at
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at line %d, column %d", e.Msg, e.Pos.Line, e.Pos.Col)
}

func errorf(pos Pos, format string, args ...any) *Error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
