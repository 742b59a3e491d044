// Package syntax turns submitted source text into a syntax tree.
//
// The lexer and parser accept the Python-style surface syntax that agent
// code is written in, including constructs the evaluator refuses to run
// (class, with, global, yield, ...). Parsing them into explicit node kinds
// lets the evaluator reject them by name instead of failing with a
// confusing syntax error. A tree is immutable once Parse returns.
//
// Usage:
//
//	mod, err := syntax.Parse("x = 1\nprint(x)\n")
//	if err != nil {
//	    var serr *syntax.Error
//	    errors.As(err, &serr) // serr.Pos.Line
//	}
//	for _, stmt := range mod.Body {
//	    fmt.Println(syntax.KindName(stmt))
//	}
package syntax
