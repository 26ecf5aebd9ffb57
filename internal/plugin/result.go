package plugin

import (
	"fmt"
	"time"

	"github.com/dshills/brickstorm/internal/game"
)

// EffectResult is the tagged outcome of one effect hook. Hooks report
// failure through it instead of panicking; the wrapper layers convert
// any panic that does escape into a failed result.
type EffectResult struct {
	// Success indicates the hook completed without error.
	Success bool

	// Modified indicates the hook changed game state.
	Modified bool

	// Patch records the changes for a caller-invoked rollback. Only
	// meaningful on success; the engine never applies or reverts it.
	Patch *game.Patch

	// Err is the failure cause when Success is false.
	Err error
}

// IsOK returns true if the hook succeeded.
func (r EffectResult) IsOK() bool {
	return r.Success
}

// AppliedEffect creates a successful result whose changes are recorded
// in the given patch. A nil or empty patch means nothing was modified.
func AppliedEffect(patch *game.Patch) EffectResult {
	return EffectResult{
		Success:  true,
		Modified: !patch.Empty(),
		Patch:    patch,
	}
}

// UnmodifiedEffect creates a successful result that changed nothing.
func UnmodifiedEffect() EffectResult {
	return EffectResult{Success: true}
}

// FailedEffect creates a failed result.
func FailedEffect(err error) EffectResult {
	return EffectResult{Success: false, Err: err}
}

// FailedEffectf creates a failed result with a formatted error.
func FailedEffectf(format string, args ...any) EffectResult {
	return EffectResult{Success: false, Err: fmt.Errorf(format, args...)}
}

// ExecutionResult is the manager-level outcome of one Execute dispatch.
type ExecutionResult struct {
	// Success indicates the operation ran and reported success.
	Success bool

	// ExecutionTime is the measured duration of the dispatched call.
	// Zero when the dispatch was rejected before invoking the plugin.
	ExecutionTime time.Duration

	// Err is the failure cause when Success is false.
	Err error

	// ExceededBudget is set when the measured time ran over the
	// per-frame budget. Advisory: the call was never interrupted.
	ExceededBudget bool

	// Effect is the hook-level outcome, when the dispatch reached the
	// plugin. Rejected dispatches leave it nil.
	Effect *EffectResult
}

// IsOK returns true if the dispatch succeeded.
func (r ExecutionResult) IsOK() bool {
	return r.Success
}

// Patch returns the rollback patch of the underlying effect, if any.
func (r ExecutionResult) Patch() *game.Patch {
	if r.Effect == nil {
		return nil
	}
	return r.Effect.Patch
}

// rejectedExecution creates a result for a dispatch that never reached
// the plugin.
func rejectedExecution(err error) ExecutionResult {
	return ExecutionResult{Success: false, Err: err}
}
