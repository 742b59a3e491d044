package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/logger"
	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/sandbox"
)

// errReported marks a failure that was already printed
var errReported = errors.New("failed")

type options struct {
	configFile string
	backend    string
	maxOps     int64
	sessionID  string
	jsonOutput bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "safebox",
		Short: "safebox - restricted Python execution",
		Long: `safebox evaluates Python snippets under an import allow-list, an
operation budget and resource limits, either in process or inside a
container or micro-VM sandbox.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Configuration file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	runCmd := &cobra.Command{
		Use:   "run [file|-]",
		Short: "Evaluate a Python file, or stdin when the file is - or omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmission(cmd, args, opts)
		},
	}
	runCmd.Flags().StringVar(&opts.backend, "backend", "", "Backend override (local, docker, podman, microvm)")
	runCmd.Flags().Int64Var(&opts.maxOps, "max-ops", 0, "Operation budget override")
	runCmd.Flags().StringVar(&opts.sessionID, "session", "", "Session id for remote backends")
	runCmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the result as JSON")

	checkCmd := &cobra.Command{
		Use:   "check-import <dotted.path>",
		Short: "Print whether the policy allows importing a module path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckImport(cmd, args[0], opts)
		},
	}

	rootCmd.AddCommand(runCmd, checkCmd)
	return rootCmd
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.configFile != "" {
		return config.NewFromFile(opts.configFile)
	}
	return config.New()
}

func readSource(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read source: %w", err)
	}
	return string(data), nil
}

func runSubmission(cmd *cobra.Command, args []string, opts *options) error {
	code, err := readSource(cmd, args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Sandbox.Backend = opts.backend
	}
	if opts.maxOps > 0 {
		cfg.Policy.MaxOperations = opts.maxOps
	}

	log, err := logger.New(cfg.Logging.Mode, opts.logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	pol, err := cfg.BuildPolicy()
	if err != nil {
		return err
	}
	executor, err := sandbox.NewExecutor(log, cfg, pol, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	defer func() {
		if tdErr := executor.Teardown(context.WithoutCancel(ctx)); tdErr != nil {
			log.Warn("teardown failed", zap.Error(tdErr))
		}
	}()

	res, err := executor.Submit(ctx, sandbox.Request{Code: code, SessionID: opts.sessionID})
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res, opts.jsonOutput); err != nil {
		return err
	}
	if res.Failed() {
		return errReported
	}
	return nil
}

func printResult(stdout, stderr io.Writer, res *result.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, line := range res.Output {
		fmt.Fprintln(stdout, line)
	}
	if res.OutputTruncated {
		fmt.Fprintln(stderr, "[output truncated]")
	}
	if res.ReturnValue != nil {
		fmt.Fprintf(stdout, "=> %s\n", *res.ReturnValue)
	}
	if res.Err != nil {
		fmt.Fprintf(stderr, "error: %v\n", res.Err)
	}
	return nil
}

func runCheckImport(cmd *cobra.Command, path string, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	pol, err := cfg.BuildPolicy()
	if err != nil {
		return err
	}

	allowed, reason := decide(pol, path)
	if allowed {
		fmt.Fprintf(cmd.OutOrStdout(), "allowed: %s\n", path)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "denied: %s (%s)\n", path, reason)
	return errReported
}

func decide(pol *policy.Policy, path string) (bool, string) {
	switch {
	case pol.IsPathDangerous(path):
		return false, "matches a dangerous pattern"
	case !pol.IsImportAllowed(path):
		return false, "not in allowed_imports"
	default:
		return true, ""
	}
}
