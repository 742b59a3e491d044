// Package result provides the execution result channel.
//
// The result package defines the uniform ExecutionResult returned by every
// sandbox backend, the closed taxonomy of error kinds, and the Output buffer
// that captures standard output written by evaluated code. Output written
// before an aborting error is kept: a failed Result carries both the partial
// output and the structured error.
//
// Usage:
//
//	out := result.NewOutput(50000)
//	fmt.Fprintln(out, "hello")
//	res := &result.Result{Output: out.Lines(), OutputTruncated: out.Truncated()}
//	if res.Failed() {
//	    log.Printf("%s: %s", res.Err.Kind, res.Err.Message)
//	}
package result
