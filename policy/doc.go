// Package policy provides the authorization policy and the operation budget.
//
// A Policy is an immutable value built once at startup: the set of top-level
// module names code may import, an ordered denylist of dotted-path patterns
// that override the allowlist, and the resource ceilings applied to every
// evaluation. Every query is a pure function over that snapshot.
//
// A Budget is the per-submission operation counter. The evaluator charges it
// once per evaluated syntax node and once per iteration step; the first
// charge past the ceiling fails and the counter stays frozen at the ceiling.
//
// The denylist is a heuristic. It stops the known escape routes through
// otherwise innocuous modules but is not a proof of isolation; only the
// remote backends provide a real isolation boundary.
//
// Usage:
//
//	pol, err := policy.New(policy.Options{
//	    AllowedImports:    []string{"math"},
//	    DangerousPatterns: []string{"os", "subprocess"},
//	    MaxOperations:     1000,
//	})
//	if !pol.IsImportAllowed("os.path") {
//	    // deny
//	}
//	budget := policy.NewBudget(pol.MaxOperations())
//	if err := budget.Charge(); err != nil {
//	    // ResourceExhausted
//	}
package policy
