package interp

import (
	"strings"

	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/syntax"
)

// dynamicLoaders are builtins that load modules or code from strings at run
// time. Any reference to them is checked as the import of builtins.<name>.
var dynamicLoaders = map[string]bool{
	"__import__":   true,
	"__builtins__": true,
	"__loader__":   true,
	"compile":      true,
	"eval":         true,
	"exec":         true,
}

// CheckImports statically checks every import in src against pol and
// returns the first denial in source order. Source the parser rejects is
// reported as a SyntaxError, so nothing unchecked reaches a backend.
func CheckImports(src string, pol *policy.Policy) *result.Error {
	if pol == nil {
		pol = policy.Default()
	}
	if rerr := pol.CheckSource(src); rerr != nil {
		return rerr
	}
	mod, err := syntax.Parse(src)
	if err != nil {
		return toResultError(syntaxError(err))
	}

	for _, stmt := range mod.Body {
		if rerr := firstDenial(stmt, pol); rerr != nil {
			return rerr
		}
	}
	return nil
}

func firstDenial(root syntax.Node, pol *policy.Policy) *result.Error {
	var denied *result.Error
	syntax.Inspect(root, func(n syntax.Node) bool {
		if denied != nil {
			return false
		}
		if fv, ok := n.(*syntax.FormattedValue); ok {
			// positions inside a replacement field restart at line 1
			if rerr := firstDenial(fv.Value, pol); rerr != nil {
				cp := *rerr
				cp.Line = fv.Line
				denied = &cp
			} else if fv.Spec != nil {
				denied = firstDenial(fv.Spec, pol)
			}
			return false
		}
		if rerr := checkNode(n, pol); rerr != nil {
			denied = rerr.AtLine(n.Position().Line)
			return false
		}
		return true
	})
	return denied
}

func checkNode(n syntax.Node, pol *policy.Policy) *result.Error {
	switch s := n.(type) {
	case *syntax.Import:
		for _, alias := range s.Names {
			if !pol.IsImportAllowed(alias.Name) {
				return importDenied(alias.Name)
			}
		}
	case *syntax.ImportFrom:
		if s.Level > 0 {
			return importDenied(strings.Repeat(".", s.Level) + s.Module)
		}
		if !pol.IsImportAllowed(s.Module) {
			return importDenied(s.Module)
		}
		for _, alias := range s.Names {
			if alias.Name == "*" {
				continue
			}
			if path := s.Module + "." + alias.Name; !pol.IsImportAllowed(path) {
				return importDenied(path)
			}
		}
	case *syntax.Name:
		if dynamicLoaders[s.Id] {
			return importDenied("builtins." + s.Id)
		}
	case *syntax.Attribute:
		if dynamicLoaders[s.Name] {
			return importDenied("builtins." + s.Name)
		}
	}
	return nil
}
