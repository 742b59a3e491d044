// Package metrics provides Prometheus metrics and OpenTelemetry spans for
// the execution engine.
//
// A Collector records submissions, evaluated operations and the life of
// remote sandbox sessions. A nil *Collector is valid and records nothing, so
// components can be built without metrics in tests. Handler serves the
// registry on /metrics next to a /healthz liveness check.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewCollector(reg)
//	collector.ObserveSubmission("local", res)
//	http.ListenAndServe(":9090", metrics.Handler(reg))
package metrics
