package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorgan/errsage/internal/model"
)

func TestNewLibrary(t *testing.T) {
	t.Run("loads default patterns", func(t *testing.T) {
		lib, err := NewLibrary(DefaultPatterns())
		require.NoError(t, err)
		assert.Equal(t, len(DefaultPatterns()), lib.Size())

		p, ok := lib.Get("null-property-access")
		require.True(t, ok)
		assert.Equal(t, "null-reference", p.Category)
		assert.NotEmpty(t, p.FixTemplates)

		m, ok := lib.Matcher("null-property-access")
		require.True(t, ok)
		assert.True(t, m.Matches("cannot read property 'foo' of undefined"))
	})

	t.Run("rejects invalid pattern", func(t *testing.T) {
		_, err := NewLibrary([]model.ErrorPattern{{ID: "broken"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "signature is required")
	})

	t.Run("rejects invalid signature regex", func(t *testing.T) {
		_, err := NewLibrary([]model.ErrorPattern{{ID: "bad-regex", Signature: "unclosed("}})
		require.Error(t, err)
	})
}

func TestRecordFeedback(t *testing.T) {
	lib, err := NewLibrary([]model.ErrorPattern{{
		ID:          "test-pattern",
		Signature:   "something broke",
		SuccessRate: 80,
	}})
	require.NoError(t, err)

	t.Run("success moves the rate toward 100", func(t *testing.T) {
		require.True(t, lib.RecordFeedback("test-pattern", true, 0.1))
		p, ok := lib.Get("test-pattern")
		require.True(t, ok)
		assert.InDelta(t, 82.0, p.SuccessRate, 0.01)
	})

	t.Run("failure moves the rate toward 0", func(t *testing.T) {
		require.True(t, lib.RecordFeedback("test-pattern", false, 0.1))
		p, ok := lib.Get("test-pattern")
		require.True(t, ok)
		assert.InDelta(t, 73.8, p.SuccessRate, 0.01)
	})

	t.Run("unknown pattern reports false", func(t *testing.T) {
		assert.False(t, lib.RecordFeedback("no-such-pattern", true, 0.1))
	})
}

func TestLoadFile(t *testing.T) {
	t.Run("parses a pattern file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "patterns.yaml")
		content := `patterns:
  - id: custom-cache-stampede
    category: performance
    signature: "(cache stampede|thundering herd)"
    confidence_threshold: 80
    causes:
      - "cold cache under concurrent load"
    preventions:
      - "use singleflight for cache fills"
    fix_templates:
      - "serialize cache misses per key"
    success_rate: 70
  - id: no-rate
    category: misc
    signature: "some phrase"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		patterns, err := LoadFile(path)
		require.NoError(t, err)
		require.Len(t, patterns, 2)

		assert.Equal(t, "custom-cache-stampede", patterns[0].ID)
		assert.Equal(t, 70.0, patterns[0].SuccessRate)
		assert.Equal(t, 75.0, patterns[1].SuccessRate, "missing success rate gets the default")

		lib, err := NewLibrary(append(DefaultPatterns(), patterns...))
		require.NoError(t, err)
		assert.Equal(t, len(DefaultPatterns())+2, lib.Size())
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("patterns: [not: {valid"), 0o600))
		_, err := LoadFile(path)
		require.Error(t, err)
	})
}
