package sim

import "time"

// EngineCore is the authoritative state the loop drives. Apply and Step are
// only ever called from the loop goroutine.
type EngineCore interface {
	Deps() Deps
	Apply(ctx LoopTickContext, cmds []Command) error
	Step(ctx LoopTickContext)
}

// LoopTickContext describes the tick being advanced.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

// LoopStepResult summarises one advanced tick.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Commands     []Command
	Err          error
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

// LoopHooks lets the host observe and sequence the loop.
type LoopHooks struct {
	NextTick       func() uint64
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnQueueWarning func(length int)
	OnCommandDrop  func(reason string, cmd Command)
}
