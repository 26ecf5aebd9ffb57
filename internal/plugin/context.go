package plugin

import (
	"time"

	"github.com/dshills/brickstorm/internal/game"
)

// GameState is the view of session entities handed to plugin hooks.
// The engine never reads or mutates it; it only forwards the reference.
// Satisfied by *game.State.
type GameState interface {
	// Balls returns the balls currently in play.
	Balls() []*game.Ball

	// Paddle returns the player paddle.
	Paddle() *game.Paddle

	// Blocks returns the block field.
	Blocks() []*game.Block

	// ActivePowerUps returns the session's active-effects registry.
	ActivePowerUps() []game.ActivePowerUp

	// AddBall adds a ball to play.
	AddBall(b *game.Ball)

	// RemoveBall removes the ball with the given ID.
	RemoveBall(id string) bool
}

// PerfBudget is the performance slot the manager stamps on a context
// before dispatching an operation. The budget is advisory: nothing
// preempts a hook that runs past it, the overrun is only observed and
// flagged after the call returns.
type PerfBudget struct {
	// StartTime is when the manager started the dispatch.
	StartTime time.Time

	// MaxExecutionTime is the per-invocation budget.
	MaxExecutionTime time.Duration
}

// Elapsed returns the time since the dispatch started.
func (p PerfBudget) Elapsed() time.Duration {
	if p.StartTime.IsZero() {
		return 0
	}
	return time.Since(p.StartTime)
}

// Remaining returns the budget left, which may be negative.
// A zero budget means no budget was stamped.
func (p PerfBudget) Remaining() time.Duration {
	if p.MaxExecutionTime == 0 {
		return 0
	}
	return p.MaxExecutionTime - p.Elapsed()
}

// Exhausted returns true if a stamped budget has run out.
func (p PerfBudget) Exhausted() bool {
	return p.MaxExecutionTime > 0 && p.Elapsed() >= p.MaxExecutionTime
}

// ExecContext carries the per-call inputs for one effect operation:
// the game state, frame timing, and the performance budget slot.
// A fresh context is built for every dispatch.
type ExecContext struct {
	// Game is the session state the effect may observe and mutate.
	Game GameState

	// DeltaTime is the time advanced by the current frame.
	DeltaTime time.Duration

	// Now is the current frame's timestamp.
	Now time.Time

	// Perf is stamped by the manager before dispatch.
	Perf PerfBudget
}

// NewExecContext creates a context for one effect operation.
func NewExecContext(gs GameState, delta time.Duration, now time.Time) *ExecContext {
	return &ExecContext{
		Game:      gs,
		DeltaTime: delta,
		Now:       now,
	}
}
