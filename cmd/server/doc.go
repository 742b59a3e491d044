// Package main is the entry point for the safebox MCP server.
//
// The server exposes restricted Python execution as Model Context Protocol
// tools over stdio or HTTP. Submissions are evaluated in process by the
// restricted evaluator, or inside container and micro-VM sandboxes that
// keep one environment per session.
//
// Usage:
//
//	SAFEBOX_SANDBOX_BACKEND=docker SAFEBOX_SERVER_TRANSPORT=http server
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging, viper for
// configuration and Prometheus for metrics served on a separate listener.
package main
