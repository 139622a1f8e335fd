package gateway

import (
	"fmt"
	"strings"

	"github.com/jmorgan/errsage/internal/model"
)

// buildPrompt constructs one structured request describing every batch
// item and the output schema the service must follow.
func buildPrompt(items []model.QueuedItem, crossContext bool) string {
	var b strings.Builder

	b.WriteString("Analyze the following application errors. For each distinct underlying ")
	b.WriteString("pattern, identify the root cause, a prevention, and a fix template.\n\n")

	for i, item := range items {
		fmt.Fprintf(&b, "Error %d [priority: %s]\n", i+1, item.Priority)
		fmt.Fprintf(&b, "Message: %s\n", item.Error.Message)
		if item.Error.StackTrace != "" {
			fmt.Fprintf(&b, "Stack trace:\n%s\n", item.Error.StackTrace)
		}
		if item.Error.Context != "" {
			fmt.Fprintf(&b, "Context: %s\n", item.Error.Context)
		}
		if item.Error.Environment != "" {
			fmt.Fprintf(&b, "Environment: %s\n", item.Error.Environment)
		}
		if item.Error.Platform != "" {
			fmt.Fprintf(&b, "Platform: %s\n", item.Error.Platform)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with JSON only, matching this schema:
{
  "patterns": [
    {
      "pattern_id": "kebab-case-identifier",
      "category": "taxonomy tag",
      "root_cause": "one sentence",
      "prevention": "one sentence",
      "fix_template": "actionable fix instruction",
      "confidence": 0-100,
      "applicable_contexts": ["context tags"]
    }
  ],
  "novel_insights": ["notable observations that are not tied to a single pattern"]`)

	if crossContext {
		b.WriteString(`,
  "cross_context_correlations": ["relationships between errors from different contexts"]`)
	}

	b.WriteString("\n}\n\nGroup errors that share an underlying cause into one pattern. ")
	b.WriteString("Omit a field rather than inventing content for it.")

	return b.String()
}
