// Package pattern provides the error pattern library and signature matching.
package pattern

import (
	"fmt"
	"regexp"
	"strings"
)

// Matcher evaluates an error signature against a pattern's matching rule.
// Implementations must be safe for concurrent use after construction.
type Matcher interface {
	// Matches reports whether the signature satisfies the rule.
	Matches(signature string) bool
	// Name identifies the matcher kind for logging.
	Name() string
}

// RegexMatcher matches signatures with a case-insensitive regular expression.
type RegexMatcher struct {
	re *regexp.Regexp
}

// NewRegexMatcher compiles rule into a matcher. Rules are made
// case-insensitive unless they already carry an inline flag.
func NewRegexMatcher(rule string) (*RegexMatcher, error) {
	if !strings.HasPrefix(rule, "(?i)") {
		rule = "(?i)" + rule
	}
	re, err := regexp.Compile(rule)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern rule: %w", err)
	}
	return &RegexMatcher{re: re}, nil
}

// Matches reports whether the signature matches the compiled expression.
func (m *RegexMatcher) Matches(signature string) bool {
	return m.re.MatchString(signature)
}

// Name returns the matcher kind.
func (m *RegexMatcher) Name() string { return "regex" }

// TokenOverlapMatcher matches when enough of the rule's tokens appear in
// the signature. It is a coarser fallback for rules that are plain phrases
// rather than regular expressions.
type TokenOverlapMatcher struct {
	tokens    []string
	threshold float64 // Fraction of rule tokens that must appear, 0-1
}

// NewTokenOverlapMatcher builds a matcher requiring the given fraction of
// rule tokens to be present in the signature.
func NewTokenOverlapMatcher(rule string, threshold float64) *TokenOverlapMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.8
	}
	return &TokenOverlapMatcher{
		tokens:    Tokenize(rule),
		threshold: threshold,
	}
}

// Matches reports whether enough rule tokens appear in the signature.
func (m *TokenOverlapMatcher) Matches(signature string) bool {
	if len(m.tokens) == 0 {
		return false
	}
	present := make(map[string]bool)
	for _, tok := range Tokenize(signature) {
		present[tok] = true
	}
	hits := 0
	for _, tok := range m.tokens {
		if present[tok] {
			hits++
		}
	}
	return float64(hits)/float64(len(m.tokens)) >= m.threshold
}

// Name returns the matcher kind.
func (m *TokenOverlapMatcher) Name() string { return "token-overlap" }

// Tokenize splits a string into lowercase word tokens.
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	var tokens []string
	for _, f := range fields {
		if len(f) > 1 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Similarity computes a token-overlap score between two signatures:
// 2*|common| / (|tokens1|+|tokens2|) * 100.
func Similarity(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(ta))
	for _, tok := range ta {
		setA[tok] = true
	}
	seen := make(map[string]bool)
	common := 0
	for _, tok := range tb {
		if setA[tok] && !seen[tok] {
			common++
			seen[tok] = true
		}
	}
	return 2 * float64(common) / float64(len(ta)+len(tb)) * 100
}
