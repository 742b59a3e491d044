package policy

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/isdmx/safebox/result"
)

// Default ceilings
const (
	DefaultMaxOperations     = 10_000_000
	DefaultMaxRecursionDepth = 200
	DefaultMaxOutputBytes    = 50_000
	DefaultMaxSourceBytes    = 1 << 20
)

// DefaultAllowedImports lists the modules the interpreter implements natively
var DefaultAllowedImports = []string{
	"collections", "itertools", "json", "math", "re", "statistics", "string",
}

// DefaultDangerousPatterns are dotted-path segments that reach process,
// file, or reflection facilities.
var DefaultDangerousPatterns = []string{
	"_os", "os", "subprocess", "_subprocess", "pty", "system", "popen",
	"spawn", "shutil", "sys", "pathlib", "io", "socket", "multiprocessing",
	"builtins", "importlib", "ctypes",
}

// Options is the raw policy configuration
type Options struct {
	AllowedImports    []string `mapstructure:"allowed_imports" yaml:"allowed_imports"`
	DangerousPatterns []string `mapstructure:"dangerous_patterns" yaml:"dangerous_patterns"`
	MaxOperations     int64    `mapstructure:"max_operations" yaml:"max_operations"`
	MaxRecursionDepth int      `mapstructure:"max_recursion_depth" yaml:"max_recursion_depth"`
	MaxOutputBytes    int      `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	MaxSourceBytes    int      `mapstructure:"max_source_bytes" yaml:"max_source_bytes"`
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		AllowedImports:    append([]string(nil), DefaultAllowedImports...),
		DangerousPatterns: append([]string(nil), DefaultDangerousPatterns...),
		MaxOperations:     DefaultMaxOperations,
		MaxRecursionDepth: DefaultMaxRecursionDepth,
		MaxOutputBytes:    DefaultMaxOutputBytes,
		MaxSourceBytes:    DefaultMaxSourceBytes,
	}
}

// Policy is the immutable authorization policy
type Policy struct {
	allowed   map[string]struct{}
	allowAll  bool
	patterns  []string
	maxOps    int64
	maxDepth  int
	maxOutput int
	maxSource int
}

// New validates opts and builds a Policy. Zero ceilings select the defaults;
// negative ones are rejected.
func New(opts Options) (*Policy, error) {
	if opts.MaxOperations < 0 {
		return nil, fmt.Errorf("max_operations must not be negative, got: %d", opts.MaxOperations)
	}
	if opts.MaxRecursionDepth < 0 {
		return nil, fmt.Errorf("max_recursion_depth must not be negative, got: %d", opts.MaxRecursionDepth)
	}
	if opts.MaxOutputBytes < 0 {
		return nil, fmt.Errorf("max_output_bytes must not be negative, got: %d", opts.MaxOutputBytes)
	}
	if opts.MaxSourceBytes < 0 {
		return nil, fmt.Errorf("max_source_bytes must not be negative, got: %d", opts.MaxSourceBytes)
	}

	p := &Policy{
		allowed:   make(map[string]struct{}, len(opts.AllowedImports)),
		maxOps:    opts.MaxOperations,
		maxDepth:  opts.MaxRecursionDepth,
		maxOutput: opts.MaxOutputBytes,
		maxSource: opts.MaxSourceBytes,
	}
	if p.maxOps == 0 {
		p.maxOps = DefaultMaxOperations
	}
	if p.maxDepth == 0 {
		p.maxDepth = DefaultMaxRecursionDepth
	}
	if p.maxOutput == 0 {
		p.maxOutput = DefaultMaxOutputBytes
	}
	if p.maxSource == 0 {
		p.maxSource = DefaultMaxSourceBytes
	}

	for _, name := range opts.AllowedImports {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
			continue
		case name == "*":
			p.allowAll = true
			continue
		}
		// "pkg.*" authorizes pkg and its submodules; the check is on the
		// top-level name either way.
		name = strings.TrimSuffix(name, ".*")
		if strings.Contains(name, ".") {
			return nil, fmt.Errorf("allowed_imports entries must be top-level module names, got: %s", name)
		}
		p.allowed[name] = struct{}{}
	}

	for _, pattern := range opts.DangerousPatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid dangerous pattern %q: %w", pattern, err)
		}
		p.patterns = append(p.patterns, pattern)
	}

	return p, nil
}

// Default returns the policy built from DefaultOptions
func Default() *Policy {
	p, err := New(DefaultOptions())
	if err != nil {
		panic(err)
	}
	return p
}

// IsImportAllowed reports whether code may import the dotted module path.
// The top-level name must be allowed and no part of the path may match the
// denylist; the denylist wins when both match.
func (p *Policy) IsImportAllowed(module string) bool {
	top, _, _ := strings.Cut(module, ".")
	if top == "" {
		return false
	}
	if _, ok := p.allowed[top]; !ok && !p.allowAll {
		return false
	}
	return !p.IsPathDangerous(module)
}

// IsPathDangerous reports whether any dotted prefix or suffix of the path
// matches a denylist pattern. Matching is segment aligned, so "io" denies
// "io" and "pkg.io.x" but not "ratio".
func (p *Policy) IsPathDangerous(dotted string) bool {
	segments := strings.Split(dotted, ".")
	n := len(segments)
	for i := 1; i <= n; i++ {
		prefix := strings.Join(segments[:i], ".")
		suffix := strings.Join(segments[n-i:], ".")
		for _, pattern := range p.patterns {
			if matchPattern(pattern, prefix) || matchPattern(pattern, suffix) {
				return true
			}
		}
	}
	// Interior segments, e.g. "a.os.b"
	for i := 1; i < n-1; i++ {
		for _, pattern := range p.patterns {
			if matchPattern(pattern, segments[i]) {
				return true
			}
		}
	}
	return false
}

func matchPattern(pattern, candidate string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == candidate
	}
	ok, err := path.Match(pattern, candidate)
	return err == nil && ok
}

// MaxOperations is the per-submission operation ceiling
func (p *Policy) MaxOperations() int64 {
	return p.maxOps
}

// MaxRecursionDepth is the ceiling on nested call frames
func (p *Policy) MaxRecursionDepth() int {
	return p.maxDepth
}

// MaxOutputBytes caps captured standard output
func (p *Policy) MaxOutputBytes() int {
	return p.maxOutput
}

// MaxSourceBytes caps the size of a submitted program
func (p *Policy) MaxSourceBytes() int {
	return p.maxSource
}

// CheckSource rejects programs larger than MaxSourceBytes
func (p *Policy) CheckSource(src string) *result.Error {
	if len(src) > p.maxSource {
		return result.Errorf(result.KindResourceExhausted,
			"program of %d bytes exceeds the limit of %d", len(src), p.maxSource)
	}
	return nil
}

// AllowedImports returns the allowed top-level names, sorted
func (p *Policy) AllowedImports() []string {
	names := make([]string, 0, len(p.allowed)+1)
	if p.allowAll {
		names = append(names, "*")
	}
	for name := range p.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DangerousPatterns returns the denylist in configured order
func (p *Policy) DangerousPatterns() []string {
	return append([]string(nil), p.patterns...)
}
