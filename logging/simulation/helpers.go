package simulation

import (
	"context"

	"spectate/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when one tick of session and cycle
	// work exceeds the tick budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach
// alongside the recent window statistics.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
	MeanMillis     float64 `json:"meanMillis"`
	P95Millis      float64 `json:"p95Millis"`
	Sessions       int     `json:"sessions"`
}

// TickBudgetOverrun publishes a warning for a slow tick.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySystem,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
