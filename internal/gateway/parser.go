package gateway

import (
	"encoding/json"
	"strings"

	"github.com/jmorgan/errsage/internal/model"
)

// analysisPayload mirrors the JSON schema the external service is asked to
// produce. Every list field is optional; absences default to empty.
type analysisPayload struct {
	Patterns []struct {
		PatternID          string   `json:"pattern_id"`
		Category           string   `json:"category"`
		RootCause          string   `json:"root_cause"`
		Prevention         string   `json:"prevention"`
		FixTemplate        string   `json:"fix_template"`
		Confidence         float64  `json:"confidence"`
		ApplicableContexts []string `json:"applicable_contexts"`
	} `json:"patterns"`
	NovelInsights            []string `json:"novel_insights"`
	CrossContextCorrelations []string `json:"cross_context_correlations"`
}

// parseAnalysis extracts structured results from the raw response text.
// Parse failure is not fatal: the caller receives an empty result with a
// diagnostic note, never an error, so that a bad round costs a call but
// not a crash.
func parseAnalysis(content string) model.AnalysisResult {
	content = cleanMarkdownWrapper(content)

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return model.AnalysisResult{
			Patterns: []model.DiscoveredPattern{},
			Note:     "analysis response could not be parsed: " + err.Error(),
		}
	}

	result := model.AnalysisResult{
		Patterns:                 make([]model.DiscoveredPattern, 0, len(payload.Patterns)),
		NovelInsights:            payload.NovelInsights,
		CrossContextCorrelations: payload.CrossContextCorrelations,
	}
	if result.NovelInsights == nil {
		result.NovelInsights = []string{}
	}
	if result.CrossContextCorrelations == nil {
		result.CrossContextCorrelations = []string{}
	}

	for _, p := range payload.Patterns {
		if p.PatternID == "" {
			continue
		}
		result.Patterns = append(result.Patterns, model.DiscoveredPattern{
			PatternID:          p.PatternID,
			Category:           p.Category,
			RootCause:          p.RootCause,
			Prevention:         p.Prevention,
			FixTemplate:        p.FixTemplate,
			Confidence:         p.Confidence,
			ApplicableContexts: p.ApplicableContexts,
		})
	}

	if len(result.Patterns) == 0 && len(result.NovelInsights) == 0 {
		result.Note = "analysis returned no patterns or insights"
	}
	return result
}

// cleanMarkdownWrapper strips ```json fences some models wrap around their
// JSON output.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}
	return strings.TrimSpace(content)
}
