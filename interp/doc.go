// Package interp provides the restricted evaluator.
//
// The evaluator walks a syntax tree produced by package syntax and executes
// only the node kinds it knows. Every evaluated statement, expression and
// iteration step is charged against the policy's operation budget, every
// import is checked against the policy's allow and deny lists, and any
// construct outside the supported subset fails with UnsupportedOperation.
//
// Evaluation state lives in an Interp created per submission; an Evaluator
// only holds the policy and may be shared between goroutines.
//
// Usage:
//
//	ev := interp.New(policy.Default())
//	res := ev.Run(ctx, interp.Input{Code: "import math\nprint(math.sqrt(16))"})
//	// res.Output == []string{"4.0"}
package interp
