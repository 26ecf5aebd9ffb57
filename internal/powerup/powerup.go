// Package powerup ships the built-in power-ups. Each is an effect.Base
// configured with native Go hooks; scripted power-ups loaded through
// luafx sit alongside these in the same registry.
package powerup

import (
	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
)

// Built-in power-up type identifiers.
const (
	TypeMultiBall  = "multiball"
	TypeWidePaddle = "wide-paddle"
	TypeSlowBall   = "slow-ball"
)

// Builtins constructs every built-in power-up.
func Builtins(opts ...effect.Option) ([]*effect.Base, error) {
	ctors := []func(...effect.Option) (*effect.Base, error){
		MultiBall,
		WidePaddle,
		SlowBall,
	}

	out := make([]*effect.Base, 0, len(ctors))
	for _, ctor := range ctors {
		b, err := ctor(opts...)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func stateOf(ec *plugin.ExecContext) (plugin.GameState, bool) {
	if ec == nil || ec.Game == nil {
		return nil, false
	}
	return ec.Game, true
}

// scaleBallSpeeds multiplies every ball's speed, recording each change.
func scaleBallSpeeds(gs plugin.GameState, factor float64) (*game.Patch, int) {
	patch := game.NewPatch()
	n := 0
	for _, b := range gs.Balls() {
		before := b.Speed
		after := before * factor
		patch.RecordBallSpeed(b.ID, before, after)
		b.Speed = after
		n++
	}
	return patch, n
}

// scalePaddleWidth multiplies the paddle width, recording the change.
func scalePaddleWidth(gs plugin.GameState, factor float64) *game.Patch {
	p := gs.Paddle()
	patch := game.NewPatch()
	before := p.Width
	after := before * factor
	patch.RecordPaddleWidth(before, after)
	p.Width = after
	return patch
}
