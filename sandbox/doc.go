// Package sandbox runs submissions through one of several backends.
//
// The local backend evaluates code in process with the restricted
// evaluator. The docker, podman and microvm backends run real Python in an
// isolated environment: a Manager owns Sessions, each Session provisions
// its environment through a Driver on first use, serves submissions one at
// a time in arrival order and is torn down exactly once.
//
// Every backend implements Executor. Evaluation outcomes, failures
// included, are returned inside a result.Result.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg, pol, collector)
//	res, err := executor.Submit(ctx, sandbox.Request{
//	    Code:      "import math\nmath.sqrt(16)",
//	    SessionID: "analysis",
//	})
//	defer executor.Teardown(ctx)
package sandbox
