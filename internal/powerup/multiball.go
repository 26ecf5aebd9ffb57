package powerup

import (
	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
)

// MultiBall splits every ball in flight into a mirrored pair. The
// effect is instant: spawned balls stay until lost, so it carries no
// duration and no remove hook.
func MultiBall(opts ...effect.Option) (*effect.Base, error) {
	meta := effect.Metadata{
		Type:        TypeMultiBall,
		Name:        "Multi-Ball",
		Description: "Splits every ball in flight into a mirrored pair",
		Icon:        "orbs",
		Color:       "#ff5252",
		Rarity:      effect.RarityRare,
		Version:     "1.0.0",
		Effect: effect.Descriptor{
			Stacks:    true,
			MaxStacks: 3,
		},
	}

	return effect.New(meta, effect.Hooks{OnApply: applyMultiBall}, opts...)
}

func applyMultiBall(ec *plugin.ExecContext) plugin.EffectResult {
	gs, ok := stateOf(ec)
	if !ok {
		return plugin.FailedEffectf("multiball: no game state")
	}
	balls := gs.Balls()
	if len(balls) == 0 {
		return plugin.FailedEffectf("multiball: no balls in play")
	}

	patch := game.NewPatch()
	for _, b := range balls {
		split := game.NewBall(b.X, b.Y, -b.VX, b.VY)
		split.Radius = b.Radius
		split.Speed = b.Speed
		gs.AddBall(split)
		patch.RecordAddBall(split)
	}
	return plugin.AppliedEffect(patch)
}
