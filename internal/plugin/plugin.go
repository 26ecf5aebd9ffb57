// Package plugin implements the power-up plugin lifecycle and
// time-budgeted execution engine: dependency-ordered registration,
// timeout-bounded init/destroy, per-invocation budget accounting, and
// isolated failure handling. A Manager instance is owned by its game
// session; there is no process-wide registry.
package plugin

import (
	"context"
	"fmt"
	"time"
)

// Plugin is the minimal contract every power-up plugin satisfies.
type Plugin interface {
	// Name returns the unique plugin name.
	Name() string

	// Version returns the plugin version string.
	Version() string

	// Dependencies returns the names of plugins this plugin depends on.
	// May be empty. Every named dependency must be registered before
	// this plugin can register.
	Dependencies() []string

	// Init prepares the plugin for use. The context carries the
	// manager's execution-timeout deadline; honoring it is cooperative.
	// A hook that ignores the deadline keeps running after the manager
	// has already reported a timeout failure.
	Init(ctx context.Context) error

	// Destroy releases the plugin's resources. The same deadline and
	// cancellation caveat as Init applies.
	Destroy(ctx context.Context) error
}

// Metadata is a point-in-time snapshot of a plugin's registry record.
type Metadata struct {
	// Name is the unique plugin name.
	Name string

	// Version is the plugin version string.
	Version string

	// Dependencies are the declared dependency names.
	Dependencies []string

	// Status is the lifecycle status at snapshot time.
	Status Status

	// InitTime is how long a successful Init took.
	InitTime time.Duration

	// LastExecutionTime is the duration of the last successful execution.
	LastExecutionTime time.Duration

	// TotalExecutionTime is the sum of all successful execution durations.
	TotalExecutionTime time.Duration

	// Executions is the number of successful executions.
	Executions uint64

	// ErrorCount is the number of recorded failures.
	ErrorCount int

	// LastError is the most recent recorded failure.
	LastError error
}

// validatePlugin checks the shape of a plugin before registration.
func validatePlugin(p Plugin) error {
	if p == nil {
		return fmt.Errorf("%w: plugin is nil", ErrInvalidPlugin)
	}
	if p.Name() == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidPlugin)
	}
	if p.Version() == "" {
		return fmt.Errorf("%w: version is empty", ErrInvalidPlugin)
	}
	for _, dep := range p.Dependencies() {
		if dep == "" {
			return fmt.Errorf("%w: empty dependency name", ErrInvalidPlugin)
		}
		if dep == p.Name() {
			return fmt.Errorf("%w: plugin depends on itself", ErrInvalidPlugin)
		}
	}
	return nil
}
