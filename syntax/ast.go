package syntax

import "reflect"

// Node is any element of the syntax tree
type Node interface {
	Position() Pos
}

// Stmt is a statement node
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node
type Expr interface {
	Node
	exprNode()
}

// Position returns p itself so that every node embedding Pos satisfies Node
func (p Pos) Position() Pos {
	return p
}

// KindName returns the node type name, e.g. "ClassDef" or "ListComp"
func KindName(n Node) string {
	t := reflect.TypeOf(n)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Module is a parsed source file
type Module struct {
	Body []Stmt
}

type (
	// ExprStmt evaluates an expression for its side effects
	ExprStmt struct {
		Pos
		X Expr
	}

	// Assign binds Value to every target, left to right
	Assign struct {
		Pos
		Targets []Expr
		Value   Expr
	}

	// AugAssign is target op= value; Op omits the trailing '='
	AugAssign struct {
		Pos
		Target Expr
		Op     string
		Value  Expr
	}

	// AnnAssign is an annotated assignment; Value may be nil
	AnnAssign struct {
		Pos
		Target     Expr
		Annotation Expr
		Value      Expr
	}

	Pass     struct{ Pos }
	Break    struct{ Pos }
	Continue struct{ Pos }

	Return struct {
		Pos
		Value Expr
	}

	If struct {
		Pos
		Cond Expr
		Body []Stmt
		Else []Stmt
	}

	While struct {
		Pos
		Cond Expr
		Body []Stmt
		Else []Stmt
	}

	For struct {
		Pos
		Target Expr
		Iter   Expr
		Body   []Stmt
		Else   []Stmt
		Async  bool
	}

	FuncDef struct {
		Pos
		Name       string
		Params     []*Param
		Returns    Expr
		Body       []Stmt
		Decorators []Expr
		Async      bool
	}

	ClassDef struct {
		Pos
		Name       string
		Bases      []Expr
		Keywords   []*Keyword
		Body       []Stmt
		Decorators []Expr
	}

	Import struct {
		Pos
		Names []*Alias
	}

	// ImportFrom is from module import names. Level counts leading dots;
	// a single alias named "*" denotes a star import.
	ImportFrom struct {
		Pos
		Module string
		Level  int
		Names  []*Alias
	}

	Try struct {
		Pos
		Body     []Stmt
		Handlers []*ExceptHandler
		Else     []Stmt
		Finally  []Stmt
	}

	Raise struct {
		Pos
		Exc   Expr
		Cause Expr
	}

	Assert struct {
		Pos
		Test Expr
		Msg  Expr
	}

	Delete struct {
		Pos
		Targets []Expr
	}

	Global struct {
		Pos
		Names []string
	}

	Nonlocal struct {
		Pos
		Names []string
	}

	With struct {
		Pos
		Items []*WithItem
		Body  []Stmt
		Async bool
	}
)

// Param is a function or lambda parameter
type Param struct {
	Name        string
	Default     Expr
	Annotation  Expr
	Star        bool
	DoubleStar  bool
	KeywordOnly bool
}

// Alias is one imported name with its optional rebinding
type Alias struct {
	Pos
	Name   string
	AsName string
}

// Bound returns the name the import binds in the current scope
func (a *Alias) Bound() string {
	if a.AsName != "" {
		return a.AsName
	}
	return a.Name
}

// ExceptHandler is one except clause; Type and Name are optional
type ExceptHandler struct {
	Pos
	Type Expr
	Name string
	Body []Stmt
}

type WithItem struct {
	Context Expr
	Vars    Expr
}

// Keyword is a name=value call argument; an empty Name denotes **value
type Keyword struct {
	Name  string
	Value Expr
}

type (
	Name struct {
		Pos
		Id string
	}

	// Constant holds None (nil), bool, int64, float64, string or Ellipsis
	Constant struct {
		Pos
		Value any
	}

	// JoinedStr is an f-string: Constant string parts and FormattedValues
	JoinedStr struct {
		Pos
		Parts []Expr
	}

	// FormattedValue is a replacement field; Conversion is 0, 's', 'r' or 'a'
	FormattedValue struct {
		Pos
		Value      Expr
		Conversion rune
		Spec       *JoinedStr
	}

	BinOp struct {
		Pos
		Op string
		X  Expr
		Y  Expr
	}

	// UnaryOp covers "-", "+", "~" and "not"
	UnaryOp struct {
		Pos
		Op string
		X  Expr
	}

	// BoolOp is a chain of "and" or "or"
	BoolOp struct {
		Pos
		Op     string
		Values []Expr
	}

	// Compare is a comparison chain a < b <= c
	Compare struct {
		Pos
		Left        Expr
		Ops         []string
		Comparators []Expr
	}

	Call struct {
		Pos
		Func     Expr
		Args     []Expr
		Keywords []*Keyword
	}

	Attribute struct {
		Pos
		X    Expr
		Name string
	}

	Subscript struct {
		Pos
		X     Expr
		Index Expr
	}

	Slice struct {
		Pos
		Lo   Expr
		Hi   Expr
		Step Expr
	}

	ListExpr struct {
		Pos
		Elts []Expr
	}

	TupleExpr struct {
		Pos
		Elts []Expr
	}

	SetExpr struct {
		Pos
		Elts []Expr
	}

	// DictExpr keys are nil for **mapping entries
	DictExpr struct {
		Pos
		Keys   []Expr
		Values []Expr
	}

	ListComp struct {
		Pos
		Elt        Expr
		Generators []*Comprehension
	}

	SetComp struct {
		Pos
		Elt        Expr
		Generators []*Comprehension
	}

	DictComp struct {
		Pos
		Key        Expr
		Value      Expr
		Generators []*Comprehension
	}

	GeneratorExp struct {
		Pos
		Elt        Expr
		Generators []*Comprehension
	}

	IfExp struct {
		Pos
		Cond Expr
		Then Expr
		Else Expr
	}

	Lambda struct {
		Pos
		Params []*Param
		Body   Expr
	}

	Starred struct {
		Pos
		X Expr
	}

	// NamedExpr is an assignment expression (x := v)
	NamedExpr struct {
		Pos
		Target *Name
		Value  Expr
	}

	Yield struct {
		Pos
		Value Expr
		From  bool
	}

	Await struct {
		Pos
		X Expr
	}
)

// Comprehension is one for/if clause group of a comprehension
type Comprehension struct {
	Target Expr
	Iter   Expr
	Ifs    []Expr
	Async  bool
}

// Ellipsis is the value of the ... literal
type Ellipsis struct{}

func (*ExprStmt) stmtNode()   {}
func (*Assign) stmtNode()     {}
func (*AugAssign) stmtNode()  {}
func (*AnnAssign) stmtNode()  {}
func (*Pass) stmtNode()       {}
func (*Break) stmtNode()      {}
func (*Continue) stmtNode()   {}
func (*Return) stmtNode()     {}
func (*If) stmtNode()         {}
func (*While) stmtNode()      {}
func (*For) stmtNode()        {}
func (*FuncDef) stmtNode()    {}
func (*ClassDef) stmtNode()   {}
func (*Import) stmtNode()     {}
func (*ImportFrom) stmtNode() {}
func (*Try) stmtNode()        {}
func (*Raise) stmtNode()      {}
func (*Assert) stmtNode()     {}
func (*Delete) stmtNode()     {}
func (*Global) stmtNode()     {}
func (*Nonlocal) stmtNode()   {}
func (*With) stmtNode()       {}

func (*Name) exprNode()           {}
func (*Constant) exprNode()       {}
func (*JoinedStr) exprNode()      {}
func (*FormattedValue) exprNode() {}
func (*BinOp) exprNode()          {}
func (*UnaryOp) exprNode()        {}
func (*BoolOp) exprNode()         {}
func (*Compare) exprNode()        {}
func (*Call) exprNode()           {}
func (*Attribute) exprNode()      {}
func (*Subscript) exprNode()      {}
func (*Slice) exprNode()          {}
func (*ListExpr) exprNode()       {}
func (*TupleExpr) exprNode()      {}
func (*SetExpr) exprNode()        {}
func (*DictExpr) exprNode()       {}
func (*ListComp) exprNode()       {}
func (*SetComp) exprNode()        {}
func (*DictComp) exprNode()       {}
func (*GeneratorExp) exprNode()   {}
func (*IfExp) exprNode()          {}
func (*Lambda) exprNode()         {}
func (*Starred) exprNode()        {}
func (*NamedExpr) exprNode()      {}
func (*Yield) exprNode()          {}
func (*Await) exprNode()          {}
