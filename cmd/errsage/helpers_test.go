package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadErrorContexts(t *testing.T) {
	t.Run("reads a JSON array from a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "errors.json")
		require.NoError(t, os.WriteFile(path, []byte(`[
			{"message": "connection refused", "environment": "staging"},
			{"message": "widget failure"}
		]`), 0o600))

		errs, err := readErrorContexts(path)
		require.NoError(t, err)
		require.Len(t, errs, 2)
		assert.Equal(t, "connection refused", errs[0].Message)
		assert.Equal(t, "staging", errs[0].Environment)
	})

	t.Run("malformed input is a parse error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "errors.json")
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

		_, err := readErrorContexts(path)
		require.ErrorContains(t, err, "failed to parse")
	})

	t.Run("missing file is a read error", func(t *testing.T) {
		_, err := readErrorContexts(filepath.Join(t.TempDir(), "absent.json"))
		require.ErrorContains(t, err, "failed to read")
	})
}

func TestTruncate(t *testing.T) {
	t.Run("short strings pass through", func(t *testing.T) {
		assert.Equal(t, "brief", truncate("brief", 10))
	})

	t.Run("long strings get an ellipsis", func(t *testing.T) {
		got := truncate("a very long error message indeed", 10)
		assert.Equal(t, "a very ...", got)
		assert.Len(t, []rune(got), 10)
	})

	t.Run("multibyte runes are never split", func(t *testing.T) {
		got := truncate(strings.Repeat("日本語", 30), 10)
		assert.True(t, utf8.ValidString(got))
		assert.Len(t, []rune(got), 10)
		assert.True(t, strings.HasSuffix(got, "..."))
	})
}
