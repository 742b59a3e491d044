package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/isdmx/safebox/result"
)

func TestPolicyImports(t *testing.T) {
	pol, err := New(Options{
		AllowedImports:    []string{"math", "collections", "numpy.*"},
		DangerousPatterns: []string{"math.nonexistent_danger", "os", "sub*"},
		MaxOperations:     1000,
	})
	require.NoError(t, err)

	tests := []struct {
		module  string
		allowed bool
	}{
		{"math", true},
		{"numpy", true},
		{"numpy.linalg", true},
		{"os", false},
		{"json", false},
		{"math.nonexistent_danger", false},
		{"collections.os", false},
		{"collections.os.path", false},
		{"collections.subprocess_helper", false},
		{"collections.abc", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			assert.Equal(t, tt.allowed, pol.IsImportAllowed(tt.module))
		})
	}
}

func TestPolicyDangerousPaths(t *testing.T) {
	pol, err := New(Options{DangerousPatterns: []string{"io", "os.system"}})
	require.NoError(t, err)

	assert.True(t, pol.IsPathDangerous("io"))
	assert.True(t, pol.IsPathDangerous("pkg.io"))
	assert.True(t, pol.IsPathDangerous("pkg.io.reader"))
	assert.True(t, pol.IsPathDangerous("os.system"))
	assert.True(t, pol.IsPathDangerous("wrapper.os.system"))
	assert.False(t, pol.IsPathDangerous("ratio"))
	assert.False(t, pol.IsPathDangerous("os"))
	assert.False(t, pol.IsPathDangerous("math.sqrt"))
}

func TestPolicyWildcardAllow(t *testing.T) {
	pol, err := New(Options{AllowedImports: []string{"*"}, DangerousPatterns: []string{"os"}})
	require.NoError(t, err)
	assert.True(t, pol.IsImportAllowed("anything"))
	assert.False(t, pol.IsImportAllowed("os"))
	assert.Equal(t, []string{"*"}, pol.AllowedImports())
}

func TestPolicyValidation(t *testing.T) {
	t.Run("NegativeOperations", func(t *testing.T) {
		_, err := New(Options{MaxOperations: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_operations must not be negative")
	})

	t.Run("NegativeDepth", func(t *testing.T) {
		_, err := New(Options{MaxRecursionDepth: -1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_recursion_depth must not be negative")
	})

	t.Run("DottedAllowEntry", func(t *testing.T) {
		_, err := New(Options{AllowedImports: []string{"os.path"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "top-level module names")
	})

	t.Run("BadPattern", func(t *testing.T) {
		_, err := New(Options{DangerousPatterns: []string{"[abc"}})
		require.Error(t, err)
	})

	t.Run("ZeroSelectsDefaults", func(t *testing.T) {
		pol, err := New(Options{})
		require.NoError(t, err)
		assert.Equal(t, int64(DefaultMaxOperations), pol.MaxOperations())
		assert.Equal(t, DefaultMaxRecursionDepth, pol.MaxRecursionDepth())
		assert.Equal(t, DefaultMaxOutputBytes, pol.MaxOutputBytes())
		assert.Equal(t, DefaultMaxSourceBytes, pol.MaxSourceBytes())
	})

	t.Run("NegativeSourceLimit", func(t *testing.T) {
		_, err := New(Options{MaxSourceBytes: -1})
		require.Error(t, err)
	})
}

func TestCheckSource(t *testing.T) {
	pol, err := New(Options{MaxSourceBytes: 8})
	require.NoError(t, err)

	assert.Nil(t, pol.CheckSource("x = 1"))
	assert.Nil(t, pol.CheckSource("12345678"))

	rerr := pol.CheckSource("123456789")
	require.NotNil(t, rerr)
	assert.Equal(t, result.KindResourceExhausted, rerr.Kind)
	assert.Contains(t, rerr.Message, "exceeds the limit of 8")
}

func TestDefaultPolicy(t *testing.T) {
	pol := Default()
	assert.True(t, pol.IsImportAllowed("math"))
	assert.True(t, pol.IsImportAllowed("re"))
	assert.False(t, pol.IsImportAllowed("os"))
	assert.False(t, pol.IsImportAllowed("subprocess"))
	assert.False(t, pol.IsPathDangerous("re.compile"))
	assert.Equal(t, DefaultDangerousPatterns, pol.DangerousPatterns())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "policy.yaml")
	doc := `allowed_imports: [math, json]
dangerous_patterns:
  - os
max_operations: 500
`
	require.NoError(t, os.WriteFile(file, []byte(doc), 0o600))

	pol, err := LoadFile(file, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"json", "math"}, pol.AllowedImports())
	assert.Equal(t, []string{"os"}, pol.DangerousPatterns())
	assert.Equal(t, int64(500), pol.MaxOperations())
	assert.Equal(t, DefaultMaxRecursionDepth, pol.MaxRecursionDepth())

	t.Run("UnknownKey", func(t *testing.T) {
		_, err := Parse([]byte("allowed_import: [math]\n"), DefaultOptions())
		require.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "missing.yaml"), DefaultOptions())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read policy file")
	})
}

func TestBudget(t *testing.T) {
	t.Run("FreezesAtCeiling", func(t *testing.T) {
		b := NewBudget(5)
		for i := 0; i < 5; i++ {
			require.NoError(t, b.Charge())
		}
		assert.True(t, b.Exhausted())

		for i := 0; i < 3; i++ {
			err := b.Charge()
			require.Error(t, err)
			assert.Equal(t, result.KindResourceExhausted, result.KindOf(err))
		}
		assert.Equal(t, int64(5), b.Used())
		assert.Equal(t, int64(0), b.Remaining())
	})

	t.Run("ZeroCeilingFailsImmediately", func(t *testing.T) {
		b := NewBudget(0)
		require.Error(t, b.Charge())
		assert.Equal(t, int64(0), b.Used())
	})
}

func TestBudgetNeverExceedsCeiling(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ceiling := rapid.Int64Range(0, 500).Draw(rt, "ceiling")
		charges := rapid.IntRange(0, 1000).Draw(rt, "charges")

		b := NewBudget(ceiling)
		succeeded := int64(0)
		for i := 0; i < charges; i++ {
			if b.Charge() == nil {
				succeeded++
			}
			if b.Used() > ceiling {
				rt.Fatalf("used %d exceeds ceiling %d", b.Used(), ceiling)
			}
		}
		expected := min(int64(charges), ceiling)
		if succeeded != expected {
			rt.Fatalf("expected %d successful charges, got %d", expected, succeeded)
		}
	})
}
