package pattern

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmorgan/errsage/internal/model"
)

// Library is the immutable-at-runtime set of known error patterns.
// Patterns are loaded once at construction; only success rates change
// afterwards, via feedback.
type Library struct {
	patterns []model.ErrorPattern
	matchers map[string]Matcher
	mu       sync.RWMutex
}

// NewLibrary builds a library from the given patterns, compiling a matcher
// for each. Patterns with invalid rules are rejected.
func NewLibrary(patterns []model.ErrorPattern) (*Library, error) {
	lib := &Library{
		patterns: make([]model.ErrorPattern, 0, len(patterns)),
		matchers: make(map[string]Matcher, len(patterns)),
	}

	for _, p := range patterns {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid pattern: %w", err)
		}
		m, err := NewRegexMatcher(p.Signature)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
		}
		lib.patterns = append(lib.patterns, p)
		lib.matchers[p.ID] = m
	}

	return lib, nil
}

// Patterns returns a copy of all library entries.
func (l *Library) Patterns() []model.ErrorPattern {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.ErrorPattern, len(l.patterns))
	copy(out, l.patterns)
	return out
}

// Matcher returns the compiled matcher for a pattern ID.
func (l *Library) Matcher(patternID string) (Matcher, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.matchers[patternID]
	return m, ok
}

// Get returns the pattern with the given ID.
func (l *Library) Get(patternID string) (*model.ErrorPattern, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := range l.patterns {
		if l.patterns[i].ID == patternID {
			p := l.patterns[i]
			return &p, true
		}
	}
	return nil, false
}

// Size returns the number of loaded patterns.
func (l *Library) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.patterns)
}

// RecordFeedback applies an effectiveness update to a pattern's success
// rate using the given EMA weight. Success rates are the only mutable
// pattern state.
func (l *Library) RecordFeedback(patternID string, wasSuccessful bool, weight float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.patterns {
		if l.patterns[i].ID != patternID {
			continue
		}
		target := 0.0
		if wasSuccessful {
			target = 100.0
		}
		l.patterns[i].SuccessRate = l.patterns[i].SuccessRate*(1-weight) + target*weight
		l.patterns[i].LastUpdated = time.Now()
		return true
	}
	return false
}

// patternFile is the on-disk YAML shape for a pattern library file.
type patternFile struct {
	Patterns []struct {
		ID                  string   `yaml:"id"`
		Category            string   `yaml:"category"`
		Signature           string   `yaml:"signature"`
		ConfidenceThreshold float64  `yaml:"confidence_threshold"`
		Causes              []string `yaml:"causes"`
		Preventions         []string `yaml:"preventions"`
		FixTemplates        []string `yaml:"fix_templates"`
		SuccessRate         float64  `yaml:"success_rate"`
	} `yaml:"patterns"`
}

// LoadFile reads additional patterns from a YAML file and returns them
// merged after the builtin defaults.
func LoadFile(path string) ([]model.ErrorPattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns file: %w", err)
	}

	var pf patternFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse patterns file: %w", err)
	}

	patterns := make([]model.ErrorPattern, 0, len(pf.Patterns))
	for _, p := range pf.Patterns {
		rate := p.SuccessRate
		if rate == 0 {
			rate = 75
		}
		patterns = append(patterns, model.ErrorPattern{
			ID:                  p.ID,
			Category:            p.Category,
			Signature:           p.Signature,
			ConfidenceThreshold: p.ConfidenceThreshold,
			Causes:              p.Causes,
			Preventions:         p.Preventions,
			FixTemplates:        p.FixTemplates,
			SuccessRate:         rate,
			LastUpdated:         time.Now(),
		})
	}
	return patterns, nil
}
