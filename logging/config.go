package logging

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Sink names understood by the server.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
)

// Config describes the event router and the sinks it feeds.
type Config struct {
	EnabledSinks    []string
	BufferSize      int
	MinimumSeverity Severity
	// CategorySeverity overrides MinimumSeverity for single categories, so
	// camera traffic can run at debug while the rest stays at info.
	CategorySeverity map[string]Severity
	Fields           map[string]any
	JSON             JSONConfig
	Console          ConsoleConfig
	DropWarnInterval time.Duration
}

// JSONConfig controls the newline-delimited JSON sink.
type JSONConfig struct {
	FilePath      string
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{SinkConsole},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			FlushInterval: 2 * time.Second,
		},
	}
}

// Validate rejects sink names the server cannot build and unusable sizes.
func (c Config) Validate() error {
	for _, name := range c.EnabledSinks {
		if name != SinkConsole && name != SinkJSON {
			return fmt.Errorf("logging: unknown sink %q", name)
		}
	}
	if c.BufferSize < 0 {
		return fmt.Errorf("logging: negative buffer size %d", c.BufferSize)
	}
	return nil
}

func (c Config) HasSink(name string) bool {
	return slices.Contains(c.EnabledSinks, name)
}

// MinimumFor returns the severity floor for events in category.
func (c Config) MinimumFor(category string) Severity {
	if s, ok := c.CategorySeverity[category]; ok {
		return s
	}
	return c.MinimumSeverity
}

// ParseCategorySeverity reads "category=level" pairs such as
// "spectate=debug". Blank entries are skipped.
func ParseCategorySeverity(pairs []string) (map[string]Severity, error) {
	var out map[string]Severity
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		category, level, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("logging: %q is not category=level", pair)
		}
		severity, ok := ParseSeverity(strings.ToLower(strings.TrimSpace(level)))
		if !ok {
			return nil, fmt.Errorf("logging: unknown severity %q for %s", level, category)
		}
		if out == nil {
			out = make(map[string]Severity)
		}
		out[strings.TrimSpace(category)] = severity
	}
	return out, nil
}

func (c Config) CloneFields() map[string]any {
	if len(c.Fields) == 0 {
		return nil
	}
	return maps.Clone(c.Fields)
}
