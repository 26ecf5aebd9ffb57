package powerup

import (
	"time"

	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
)

const widePaddleFactor = 1.5

// WidePaddle stretches the paddle for a limited time. Re-pickup
// refreshes the timer instead of stacking.
func WidePaddle(opts ...effect.Option) (*effect.Base, error) {
	meta := effect.Metadata{
		Type:        TypeWidePaddle,
		Name:        "Wide Paddle",
		Description: "Stretches the paddle",
		Icon:        "stretch",
		Color:       "#4caf50",
		Rarity:      effect.RarityCommon,
		Duration:    12 * time.Second,
		Version:     "1.0.0",
	}

	hooks := effect.Hooks{
		OnApply:  applyWidePaddle,
		OnRemove: removeWidePaddle,
	}
	return effect.New(meta, hooks, opts...)
}

func applyWidePaddle(ec *plugin.ExecContext) plugin.EffectResult {
	gs, ok := stateOf(ec)
	if !ok {
		return plugin.FailedEffectf("wide-paddle: no game state")
	}
	return plugin.AppliedEffect(scalePaddleWidth(gs, widePaddleFactor))
}

func removeWidePaddle(ec *plugin.ExecContext) plugin.EffectResult {
	gs, ok := stateOf(ec)
	if !ok {
		return plugin.FailedEffectf("wide-paddle: no game state")
	}
	return plugin.AppliedEffect(scalePaddleWidth(gs, 1/widePaddleFactor))
}
