// Package config loads brickstorm session configuration from TOML
// files with environment variable overrides. A missing config file is
// not an error; defaults apply and the environment can still override
// them.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/brickstorm/internal/plugin"
)

// ErrInvalidConfig rejects configuration that fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the root configuration.
type Config struct {
	Log     LogConfig     `toml:"log"`
	Engine  EngineConfig  `toml:"engine"`
	Scripts ScriptsConfig `toml:"scripts"`
	Demo    DemoConfig    `toml:"demo"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" env:"BRICKSTORM_LOG_LEVEL"`
}

// EngineConfig configures the plugin engine. Durations are plain
// millisecond integers, the same convention script descriptors use.
type EngineConfig struct {
	// PerformanceMonitoring enables frame budget flagging.
	PerformanceMonitoring bool `toml:"performance_monitoring" env:"BRICKSTORM_PERF_MONITORING"`

	// FrameBudgetMS is the advisory per-operation budget.
	FrameBudgetMS int64 `toml:"frame_budget_ms" env:"BRICKSTORM_FRAME_BUDGET_MS"`

	// LifecycleTimeoutMS bounds plugin init and destroy hooks.
	LifecycleTimeoutMS int64 `toml:"lifecycle_timeout_ms" env:"BRICKSTORM_LIFECYCLE_TIMEOUT_MS"`
}

// ScriptsConfig configures scripted power-up loading.
type ScriptsConfig struct {
	// Dir is the directory scanned for .lua power-up scripts.
	// Empty disables script loading.
	Dir string `toml:"dir" env:"BRICKSTORM_SCRIPTS_DIR"`

	// CallTimeoutMS bounds a single scripted hook call.
	CallTimeoutMS int64 `toml:"call_timeout_ms" env:"BRICKSTORM_SCRIPT_CALL_TIMEOUT_MS"`

	// HotReload reloads scripts when their files change on disk.
	HotReload bool `toml:"hot_reload" env:"BRICKSTORM_SCRIPTS_HOT_RELOAD"`
}

// DemoConfig configures the demo session loop.
type DemoConfig struct {
	// TickRate is the fixed step rate in ticks per second.
	TickRate int `toml:"tick_rate" env:"BRICKSTORM_DEMO_TICK_RATE"`

	// DurationMS is how long the demo runs.
	DurationMS int64 `toml:"duration_ms" env:"BRICKSTORM_DEMO_DURATION_MS"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: "info",
		},
		Engine: EngineConfig{
			PerformanceMonitoring: true,
			FrameBudgetMS:         2,
			LifecycleTimeoutMS:    5000,
		},
		Scripts: ScriptsConfig{
			CallTimeoutMS: 250,
			HotReload:     false,
		},
		Demo: DemoConfig{
			TickRate:   60,
			DurationMS: 10_000,
		},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q (want debug, info, warn, or error)", ErrInvalidConfig, c.Log.Level)
	}
	if c.Engine.FrameBudgetMS < 0 {
		return fmt.Errorf("%w: engine.frame_budget_ms must not be negative", ErrInvalidConfig)
	}
	if c.Engine.LifecycleTimeoutMS < 0 {
		return fmt.Errorf("%w: engine.lifecycle_timeout_ms must not be negative", ErrInvalidConfig)
	}
	if c.Scripts.CallTimeoutMS < 0 {
		return fmt.Errorf("%w: scripts.call_timeout_ms must not be negative", ErrInvalidConfig)
	}
	if c.Demo.TickRate <= 0 {
		return fmt.Errorf("%w: demo.tick_rate must be positive", ErrInvalidConfig)
	}
	if c.Demo.DurationMS <= 0 {
		return fmt.Errorf("%w: demo.duration_ms must be positive", ErrInvalidConfig)
	}
	return nil
}

// ManagerConfig converts the engine section to the plugin manager's
// configuration. Zero durations fall back to the manager defaults.
func (c EngineConfig) ManagerConfig() plugin.Config {
	return plugin.Config{
		PerformanceMonitoring:    c.PerformanceMonitoring,
		MaxExecutionTimePerFrame: time.Duration(c.FrameBudgetMS) * time.Millisecond,
		ExecutionTimeout:         time.Duration(c.LifecycleTimeoutMS) * time.Millisecond,
	}
}

// CallTimeout returns the scripted hook call budget.
func (c ScriptsConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMS) * time.Millisecond
}

// TickInterval returns the fixed step interval.
func (c DemoConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// Duration returns how long the demo runs.
func (c DemoConfig) Duration() time.Duration {
	return time.Duration(c.DurationMS) * time.Millisecond
}
