// Package config provides application configuration management.
//
// The config package loads the configuration from an optional config.yaml
// (in . or ./config), applies SAFEBOX_ environment overrides and validates
// the result. It covers the server transport, the sandbox backend and its
// resource limits, the authorization policy, logging and metrics.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pol, err := cfg.BuildPolicy()
package config
