package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"spectate/server/internal/camera"
	"spectate/server/logging"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.TickRate != 20 || cfg.SyncRate != 5 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.UpdateInterval != 50*time.Millisecond || cfg.DefaultDwell != 10*time.Second {
		t.Fatalf("unexpected cadence defaults %+v", cfg)
	}
	params, err := cfg.CameraDefaults()
	if err != nil {
		t.Fatalf("CameraDefaults: %v", err)
	}
	if params != camera.DefaultParameters() {
		t.Fatalf("expected built-in camera defaults, got %+v", params)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SPECTATE_TICK_RATE", "30")
	t.Setenv("SPECTATE_LOG_SINKS", "console, json")
	t.Setenv("SPECTATE_LOG_LEVEL", "debug")
	t.Setenv("SPECTATE_LOG_CATEGORIES", "network=warn")
	t.Setenv("SPECTATE_AUTO_EXCLUDE_PREFIXES", "bot_,npc_")
	t.Setenv("SPECTATE_CAMERA", "distance=12,rotationSpeed=30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TickRate != 30 {
		t.Fatalf("expected tick rate override, got %d", cfg.TickRate)
	}
	params, _ := cfg.CameraDefaults()
	if params.Distance != 12 || params.RotationSpeed != 30 {
		t.Fatalf("expected camera overrides, got %+v", params)
	}
	logCfg := cfg.Logging()
	if !logCfg.HasSink("json") || logCfg.MinimumSeverity != logging.SeverityDebug {
		t.Fatalf("unexpected logging config %+v", logCfg)
	}
	if logCfg.MinimumFor(logging.CategoryNetwork) != logging.SeverityWarn || logCfg.MinimumFor(logging.CategorySpectate) != logging.SeverityDebug {
		t.Fatalf("unexpected category floors %+v", logCfg.CategorySeverity)
	}
	rule := cfg.MembershipRule()
	if rule.Admits("bot_7") || !rule.Admits("alice") {
		t.Fatalf("unexpected membership rule %+v", rule)
	}
}

func TestLoadRejectsOutOfRangeCamera(t *testing.T) {
	t.Setenv("SPECTATE_CAMERA", "distance=-4")
	_, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadRejectsShortDwell(t *testing.T) {
	t.Setenv("SPECTATE_DEFAULT_DWELL", "500ms")
	if _, err := Load(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadParseError(t *testing.T) {
	t.Setenv("SPECTATE_TICK_RATE", "fast")
	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestLoadRejectsBadLogCategory(t *testing.T) {
	t.Setenv("SPECTATE_LOG_CATEGORIES", "spectate=loud")
	_, err := Load()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
