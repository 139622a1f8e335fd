package model

import "time"

// Priority orders queued items for dispatch.
type Priority string

// Priority levels, highest first.
const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight returns the numeric dispatch weight for queue ordering.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 100
	case PriorityHigh:
		return 75
	case PriorityMedium:
		return 50
	case PriorityLow:
		return 25
	}
	return 25
}

// Valid reports whether p is a recognized priority level.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// QueuedItem is a pending novel-error record awaiting external analysis.
// Lifecycle: queued -> dispatched -> {resolved | requeued | dropped}.
type QueuedItem struct {
	QueuedAt      time.Time    `json:"queued_at"`
	ID            string       `json:"id"`
	Error         ErrorContext `json:"error"`
	Priority      Priority     `json:"priority"`
	EstimatedCost float64      `json:"estimated_cost"`
	RetryCount    int          `json:"retry_count"`
}

// QueueInfo is returned to a caller whose error was enqueued rather than
// resolved locally.
type QueueInfo struct {
	ETA           time.Time `json:"eta"`
	ItemID        string    `json:"item_id"`
	Priority      Priority  `json:"priority"`
	QueuePosition int       `json:"queue_position"`
	CostEstimate  float64   `json:"cost_estimate"`
}
