// Package telemetry carries the narrow logging and metrics interfaces shared
// by the hub, the transport handlers and the store, plus tick timing stats.
package telemetry

import (
	"log"

	"spectate/server/logging"
)

// Logger is the printf-style logger every component accepts.
type Logger interface {
	Printf(format string, args ...any)
}

// LoggerFunc adapts functions into the Logger interface.
type LoggerFunc func(format string, args ...any)

// Printf implements Logger for LoggerFunc.
func (f LoggerFunc) Printf(format string, args ...any) {
	if f == nil {
		return
	}
	f(format, args...)
}

// Discard drops every line.
var Discard Logger = LoggerFunc(nil)

// WrapLogger adapts a standard library logger. A nil logger discards.
func WrapLogger(logger *log.Logger) Logger {
	if logger == nil {
		return Discard
	}
	return LoggerFunc(logger.Printf)
}

// WithScope prefixes every line with "[scope] " so transport and hub output
// can be told apart in one stream.
func WithScope(logger Logger, scope string) Logger {
	if logger == nil {
		return Discard
	}
	if scope == "" {
		return logger
	}
	prefix := "[" + scope + "] "
	return LoggerFunc(func(format string, args ...any) {
		logger.Printf(prefix+format, args...)
	})
}

// Metrics is the counter and gauge surface the hub reports through.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// WrapMetrics exposes the shared counter set as Metrics.
func WrapMetrics(metrics *logging.Metrics) Metrics {
	return counterSet{metrics: metrics}
}

type counterSet struct {
	metrics *logging.Metrics
}

func (c counterSet) Add(key string, delta uint64) {
	if c.metrics == nil {
		return
	}
	c.metrics.TelemetryAdd(key, delta)
}

func (c counterSet) Store(key string, value uint64) {
	if c.metrics == nil {
		return
	}
	c.metrics.TelemetryStore(key, value)
}
