package engine

import (
	"context"
	"sync"

	"github.com/jmorgan/errsage/internal/service"
)

// MockAnalysisClient is a test implementation of service.AnalysisClient.
// It replays canned responses and records every prompt it receives.
type MockAnalysisClient struct {
	responses []string
	prompts   []string
	err       error
	usage     service.Usage
	calls     int
	mu        sync.Mutex
}

// NewMockAnalysisClient creates a mock that returns the given responses in
// order, repeating the last one once they run out.
func NewMockAnalysisClient(responses ...string) *MockAnalysisClient {
	return &MockAnalysisClient{responses: responses}
}

// FailWith makes every subsequent call return err.
func (m *MockAnalysisClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ReportUsage sets the token usage returned with every response.
func (m *MockAnalysisClient) ReportUsage(input, output int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = service.Usage{InputTokens: input, OutputTokens: output}
}

// Analyze returns the next canned response.
func (m *MockAnalysisClient) Analyze(ctx context.Context, prompt string) (string, service.Usage, error) {
	if err := ctx.Err(); err != nil {
		return "", service.Usage{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.prompts = append(m.prompts, prompt)
	m.calls++
	if m.err != nil {
		return "", service.Usage{}, m.err
	}

	if len(m.responses) == 0 {
		return "{}", m.usage, nil
	}
	idx := m.calls - 1
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], m.usage, nil
}

// Calls returns how many times Analyze was invoked.
func (m *MockAnalysisClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Prompts returns a copy of every prompt received.
func (m *MockAnalysisClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
