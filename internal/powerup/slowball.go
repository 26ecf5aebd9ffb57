package powerup

import (
	"time"

	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
)

const slowBallFactor = 0.5

// SlowBall halves every ball's speed for a limited time. It cannot be
// active alongside a turbo-ball effect.
func SlowBall(opts ...effect.Option) (*effect.Base, error) {
	meta := effect.Metadata{
		Type:        TypeSlowBall,
		Name:        "Slow Ball",
		Description: "Halves every ball's speed",
		Icon:        "snail",
		Color:       "#2196f3",
		Rarity:      effect.RarityUncommon,
		Duration:    8 * time.Second,
		Version:     "1.0.0",
		Effect: effect.Descriptor{
			ConflictsWith: []string{"turbo-ball"},
			Priority:      1,
		},
	}

	hooks := effect.Hooks{
		OnApply:  applySlowBall,
		OnRemove: removeSlowBall,
	}
	return effect.New(meta, hooks, opts...)
}

func applySlowBall(ec *plugin.ExecContext) plugin.EffectResult {
	gs, ok := stateOf(ec)
	if !ok {
		return plugin.FailedEffectf("slow-ball: no game state")
	}
	patch, n := scaleBallSpeeds(gs, slowBallFactor)
	if n == 0 {
		return plugin.FailedEffectf("slow-ball: no balls in play")
	}
	return plugin.AppliedEffect(patch)
}

func removeSlowBall(ec *plugin.ExecContext) plugin.EffectResult {
	gs, ok := stateOf(ec)
	if !ok {
		return plugin.FailedEffectf("slow-ball: no game state")
	}
	patch, _ := scaleBallSpeeds(gs, 1/slowBallFactor)
	return plugin.AppliedEffect(patch)
}
