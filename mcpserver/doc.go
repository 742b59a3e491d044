// Package mcpserver exposes the sandbox executor as Model Context Protocol
// tools.
//
// The execute_python tool runs a snippet and returns the JSON-encoded
// result; close_session tears a sandbox session down. Both stdio and HTTP
// transports are supported as configured by the application
// configuration.
//
// Usage:
//
//	server, err := mcpserver.New(config, logger, executor)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.ServeStdio() // or server.ServeHTTP()
package mcpserver
