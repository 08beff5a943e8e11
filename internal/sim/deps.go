package sim

import (
	"spectate/server/internal/telemetry"
	"spectate/server/logging"
)

// Deps carries shared infrastructure dependencies required by the engine core.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}
