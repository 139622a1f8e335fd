package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexMatcher(t *testing.T) {
	t.Run("case insensitive by default", func(t *testing.T) {
		m, err := NewRegexMatcher(`cannot read propert(y|ies) .* of (undefined|null)`)
		require.NoError(t, err)

		assert.True(t, m.Matches("cannot read property 'length' of undefined"))
		assert.True(t, m.Matches("Cannot read properties of null"))
		assert.False(t, m.Matches("connection refused"))
		assert.Equal(t, "regex", m.Name())
	})

	t.Run("preserves explicit inline flags", func(t *testing.T) {
		m, err := NewRegexMatcher(`(?i)timeout`)
		require.NoError(t, err)
		assert.True(t, m.Matches("request TIMEOUT after 30s"))
	})

	t.Run("rejects invalid expressions", func(t *testing.T) {
		_, err := NewRegexMatcher(`unclosed(group`)
		require.Error(t, err)
	})
}

func TestTokenOverlapMatcher(t *testing.T) {
	t.Run("matches when enough tokens overlap", func(t *testing.T) {
		m := NewTokenOverlapMatcher("database connection pool exhausted", 0.75)

		assert.True(t, m.Matches("the database connection pool was exhausted under load"))
		assert.False(t, m.Matches("database migration failed"))
		assert.Equal(t, "token-overlap", m.Name())
	})

	t.Run("empty rule never matches", func(t *testing.T) {
		m := NewTokenOverlapMatcher("", 0.8)
		assert.False(t, m.Matches("anything at all"))
	})

	t.Run("invalid threshold falls back to default", func(t *testing.T) {
		m := NewTokenOverlapMatcher("disk quota exceeded", -1)
		assert.True(t, m.Matches("disk quota exceeded on /var"))
	})
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Cannot read property 'x' of undefined!")
	assert.Equal(t, []string{"cannot", "read", "property", "of", "undefined"}, tokens)

	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("a b c"), "single-letter tokens are dropped")
}

func TestSimilarity(t *testing.T) {
	t.Run("identical strings score 100", func(t *testing.T) {
		assert.InDelta(t, 100.0, Similarity("connection refused by host", "connection refused by host"), 0.01)
	})

	t.Run("disjoint strings score zero", func(t *testing.T) {
		assert.Zero(t, Similarity("disk full", "null pointer"))
	})

	t.Run("partial overlap is proportional", func(t *testing.T) {
		// 2 common tokens out of 2+4 total.
		score := Similarity("connection refused", "connection refused by remote host")
		assert.InDelta(t, 2.0*2.0/6.0*100.0, score, 0.01)
	})

	t.Run("empty input scores zero", func(t *testing.T) {
		assert.Zero(t, Similarity("", "connection refused"))
	})
}
