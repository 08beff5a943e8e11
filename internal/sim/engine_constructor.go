package sim

import "errors"

// ErrMissingEngineCore indicates NewEngine was invoked without a core.
var ErrMissingEngineCore = errors.New("sim: engine core is nil")

// EngineOption configures NewEngine behaviour. Options are applied in order;
// later options override earlier ones.
type EngineOption interface {
	apply(*engineConfig)
}

type engineOptionFunc func(*engineConfig)

func (f engineOptionFunc) apply(cfg *engineConfig) {
	if f != nil {
		f(cfg)
	}
}

type engineConfig struct {
	loopConfig LoopConfig
	loopHooks  LoopHooks
}

// WithLoopConfig overrides the default command queue and tick loop sizing.
func WithLoopConfig(config LoopConfig) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopConfig = config
	})
}

// WithLoopHooks supplies custom loop callbacks. Hooks set by earlier options
// are chained before the new ones.
func WithLoopHooks(hooks LoopHooks) EngineOption {
	return engineOptionFunc(func(cfg *engineConfig) {
		cfg.loopHooks = chainHooks(cfg.loopHooks, hooks)
	})
}

// NewEngine wraps core in a Loop configured by the supplied options.
func NewEngine(core EngineCore, opts ...EngineOption) (*Loop, error) {
	if core == nil {
		return nil, ErrMissingEngineCore
	}
	cfg := engineConfig{loopConfig: DefaultLoopConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	loop := NewLoop(core, cfg.loopConfig, cfg.loopHooks)
	if loop == nil {
		return nil, ErrMissingEngineCore
	}
	return loop, nil
}

func chainHooks(first, second LoopHooks) LoopHooks {
	out := first
	if second.NextTick != nil {
		out.NextTick = second.NextTick
	}
	if second.Prepare != nil {
		prev := first.Prepare
		out.Prepare = func(ctx LoopTickContext) {
			if prev != nil {
				prev(ctx)
			}
			second.Prepare(ctx)
		}
	}
	if second.AfterStep != nil {
		prev := first.AfterStep
		out.AfterStep = func(result LoopStepResult) {
			if prev != nil {
				prev(result)
			}
			second.AfterStep(result)
		}
	}
	if second.OnQueueWarning != nil {
		out.OnQueueWarning = second.OnQueueWarning
	}
	if second.OnCommandDrop != nil {
		out.OnCommandDrop = second.OnCommandDrop
	}
	return out
}
