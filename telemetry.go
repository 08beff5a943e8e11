package server

import (
	"sync/atomic"
	"time"

	"spectate/server/internal/telemetry"
)

const (
	metricTickDuration   = "tick_duration_ms"
	metricTickOverruns   = "tick_overruns_total"
	metricBroadcastBytes = "broadcast_bytes_total"
	metricCommandsDrop   = "commands_dropped_total"
	metricCommandsFailed = "commands_failed_total"
	metricSendFailures   = "send_failures_total"
)

type tickTelemetry struct {
	stats        *telemetry.TickStats
	streak       atomic.Uint64
	lastDuration atomic.Int64
	bytesSent    atomic.Uint64
}

func newTickTelemetry(window int) *tickTelemetry {
	return &tickTelemetry{stats: telemetry.NewTickStats(window)}
}

// observe records one tick and returns the current overrun streak, zero when
// the tick finished within budget.
func (t *tickTelemetry) observe(duration, budget time.Duration) uint64 {
	t.stats.Observe(duration)
	t.lastDuration.Store(duration.Milliseconds())
	if budget <= 0 || duration <= budget {
		t.streak.Store(0)
		return 0
	}
	return t.streak.Add(1)
}

func (t *tickTelemetry) recordBroadcast(bytes int) {
	if bytes > 0 {
		t.bytesSent.Add(uint64(bytes))
	}
}
