package luafx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
)

const multiballScript = `
powerup = {
    type        = "multiball",
    name        = "Multi-Ball",
    description = "Splits every ball in flight",
    icon        = "orbs",
    color       = "#22cc88",
    rarity      = "rare",
    duration_ms = 10000,
    version     = "1.0.0",
    conflicts_with = { "turbo-ball" },
    stacks      = true,
    max_stacks  = 3,
    priority    = 2,
}

function powerup.apply(game)
    local balls = game.balls()
    for i = 1, #balls do
        local b = balls[i]
        game.add_ball(b.x, b.y, -b.vx, b.vy)
    end
end

function powerup.remove(game)
end
`

func loadTestEffect(t *testing.T, code string, opts ...Option) *effect.Base {
	t.Helper()
	b, err := LoadString("test.lua", code, opts...)
	if err != nil {
		t.Fatalf("LoadString() failed: %v", err)
	}
	return b
}

func initTestEffect(t *testing.T, b *effect.Base) {
	t.Helper()
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
}

func oneBallContext(t *testing.T) (*game.State, *plugin.ExecContext) {
	t.Helper()
	state := game.NewState()
	state.AddBall(game.NewBall(100, 100, 1, -1))
	return state, plugin.NewExecContext(state, 16*time.Millisecond, time.Now())
}

func TestLoadStringDescriptor(t *testing.T) {
	b := loadTestEffect(t, multiballScript)

	if b.Name() != "multiball" {
		t.Errorf("Name() = %q, want multiball", b.Name())
	}
	if b.Version() != "1.0.0" {
		t.Errorf("Version() = %q, want 1.0.0", b.Version())
	}

	md := b.Metadata()
	if md.Name != "Multi-Ball" {
		t.Errorf("display name = %q, want Multi-Ball", md.Name)
	}
	if md.Rarity != effect.RarityRare {
		t.Errorf("Rarity = %s, want rare", md.Rarity)
	}
	if md.Duration != 10*time.Second {
		t.Errorf("Duration = %s, want 10s", md.Duration)
	}
	if !md.Effect.Stacks || md.Effect.MaxStacks != 3 {
		t.Errorf("stacking = %v/%d, want true/3", md.Effect.Stacks, md.Effect.MaxStacks)
	}
	if md.Effect.Priority != 2 {
		t.Errorf("Priority = %d, want 2", md.Effect.Priority)
	}
	if len(md.Effect.ConflictsWith) != 1 || md.Effect.ConflictsWith[0] != "turbo-ball" {
		t.Errorf("ConflictsWith = %v, want [turbo-ball]", md.Effect.ConflictsWith)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multiball.lua")
	if err := os.WriteFile(path, []byte(multiballScript), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if b.Name() != "multiball" {
		t.Errorf("Name() = %q, want multiball", b.Name())
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want error
	}{
		{
			"no powerup table",
			`x = 1`,
			ErrNoPowerUpTable,
		},
		{
			"no apply function",
			`powerup = { type = "idle", name = "Idle", version = "1.0.0" }`,
			ErrApplyMissing,
		},
		{
			"invalid color",
			`powerup = { type = "bad", name = "Bad", version = "1.0.0", color = "reddish" }
			 function powerup.apply(game) end`,
			effect.ErrInvalidMetadata,
		},
		{
			"unknown rarity",
			`powerup = { type = "bad", name = "Bad", version = "1.0.0", rarity = "mythic" }
			 function powerup.apply(game) end`,
			effect.ErrInvalidMetadata,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadString("test.lua", tt.code)
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadString() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadSyntaxError(t *testing.T) {
	if _, err := LoadString("test.lua", `powerup = {`); err == nil {
		t.Error("LoadString() = nil for a syntax error")
	}
}

func TestApplyMutatesStateAndRecordsPatch(t *testing.T) {
	b := loadTestEffect(t, multiballScript)
	initTestEffect(t, b)
	state, ec := oneBallContext(t)

	res := b.ApplyEffect(ec)
	if !res.IsOK() {
		t.Fatalf("ApplyEffect() failed: %v", res.Err)
	}
	if !res.Modified {
		t.Error("Modified = false after spawning a ball")
	}
	if got := len(state.Balls()); got != 2 {
		t.Fatalf("balls = %d, want 2", got)
	}
	if res.Patch.Len() != 1 {
		t.Fatalf("patch changes = %d, want 1", res.Patch.Len())
	}

	// Reverting the patch removes the spawned ball
	if err := res.Patch.Revert(state); err != nil {
		t.Fatalf("Revert() failed: %v", err)
	}
	if got := len(state.Balls()); got != 1 {
		t.Errorf("balls after revert = %d, want 1", got)
	}
}

func TestScalePaddleWidth(t *testing.T) {
	code := `
powerup = { type = "wide-paddle", name = "Wide Paddle", version = "1.0.0" }
function powerup.apply(game)
    game.scale_paddle_width(1.5)
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)
	state, ec := oneBallContext(t)
	before := state.Paddle().Width

	res := b.ApplyEffect(ec)
	if !res.IsOK() {
		t.Fatalf("ApplyEffect() failed: %v", res.Err)
	}
	if got := state.Paddle().Width; got != before*1.5 {
		t.Errorf("paddle width = %v, want %v", got, before*1.5)
	}

	if err := res.Patch.Revert(state); err != nil {
		t.Fatalf("Revert() failed: %v", err)
	}
	if got := state.Paddle().Width; got != before {
		t.Errorf("paddle width after revert = %v, want %v", got, before)
	}
}

func TestScaleBallSpeed(t *testing.T) {
	code := `
powerup = { type = "slow-ball", name = "Slow Ball", version = "1.0.0" }
function powerup.apply(game)
    local n = game.scale_ball_speed(0.5)
    if n == 0 then
        return false, "no balls in play"
    end
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)
	state, ec := oneBallContext(t)

	res := b.ApplyEffect(ec)
	if !res.IsOK() {
		t.Fatalf("ApplyEffect() failed: %v", res.Err)
	}
	if got := state.Balls()[0].Speed; got != 0.5 {
		t.Errorf("ball speed = %v, want 0.5", got)
	}

	// A state with no balls trips the script's own failure path
	emptyEC := plugin.NewExecContext(game.NewState(), 0, time.Now())
	res = b.ApplyEffect(emptyEC)
	if res.Success {
		t.Error("ApplyEffect() succeeded with no balls")
	}
	if !errors.Is(res.Err, ErrScriptFailed) {
		t.Errorf("error = %v, want ErrScriptFailed", res.Err)
	}
	if !strings.Contains(res.Err.Error(), "no balls in play") {
		t.Errorf("error %v does not carry the script reason", res.Err)
	}
}

func TestScriptRuntimeError(t *testing.T) {
	code := `
powerup = { type = "fragile", name = "Fragile", version = "1.0.0" }
function powerup.apply(game)
    error("kaboom")
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)
	_, ec := oneBallContext(t)

	res := b.ApplyEffect(ec)
	if res.Success {
		t.Error("ApplyEffect() succeeded despite a runtime error")
	}
	if res.Err == nil || !strings.Contains(res.Err.Error(), "kaboom") {
		t.Errorf("error = %v, want the script message", res.Err)
	}
}

func TestSandboxStripsEscapeHatches(t *testing.T) {
	code := `
powerup = { type = "probe", name = "Probe", version = "1.0.0" }
function powerup.apply(game)
    if dofile ~= nil or loadfile ~= nil or load ~= nil or loadstring ~= nil then
        return false, "load family reachable"
    end
    if os ~= nil or io ~= nil or debug ~= nil then
        return false, "system library reachable"
    end
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)
	_, ec := oneBallContext(t)

	if res := b.ApplyEffect(ec); !res.IsOK() {
		t.Errorf("sandbox probe failed: %v", res.Err)
	}
}

func TestCallTimeout(t *testing.T) {
	code := `
powerup = { type = "spinner", name = "Spinner", version = "1.0.0" }
function powerup.apply(game)
    while true do end
end
`
	b := loadTestEffect(t, code, WithCallTimeout(50*time.Millisecond))
	initTestEffect(t, b)
	_, ec := oneBallContext(t)

	start := time.Now()
	res := b.ApplyEffect(ec)
	elapsed := time.Since(start)

	if res.Success {
		t.Error("ApplyEffect() succeeded for an endless loop")
	}
	if elapsed > 5*time.Second {
		t.Errorf("deadline did not interrupt the loop for %s", elapsed)
	}
}

func TestUpdateReceivesDelta(t *testing.T) {
	code := `
powerup = { type = "ticker", name = "Ticker", version = "1.0.0" }
function powerup.apply(game) end
function powerup.update(game, dt)
    if dt < 15 or dt > 17 then
        return false, "unexpected dt " .. dt
    end
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)
	_, ec := oneBallContext(t)

	if res := b.UpdateEffect(ec); !res.IsOK() {
		t.Errorf("UpdateEffect() failed: %v", res.Err)
	}
}

func TestInitFunctionRuns(t *testing.T) {
	code := `
powerup = { type = "greeter", name = "Greeter", version = "1.0.0" }
local ready = false
function powerup.init()
    ready = true
end
function powerup.apply(game)
    if not ready then
        return false, "init never ran"
    end
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)
	_, ec := oneBallContext(t)

	if res := b.ApplyEffect(ec); !res.IsOK() {
		t.Errorf("ApplyEffect() failed: %v", res.Err)
	}
}

func TestDestroyFailureKeepsInterpreter(t *testing.T) {
	code := `
powerup = { type = "clingy", name = "Clingy", version = "1.0.0" }
function powerup.apply(game) end
function powerup.destroy()
    error("not letting go")
end
`
	b := loadTestEffect(t, code)
	initTestEffect(t, b)

	if err := b.Destroy(context.Background()); err == nil {
		t.Fatal("Destroy() = nil, want script error")
	}

	// The interpreter survives a failed destroy so retrying the
	// lifecycle still reaches the script
	if err := b.Init(context.Background()); err != nil {
		t.Errorf("Init() after failed destroy = %v, want nil", err)
	}
}

func TestManagerRunsScriptedPlugin(t *testing.T) {
	m := plugin.New(plugin.DefaultConfig())
	b := loadTestEffect(t, multiballScript)

	if err := m.Register(b); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if err := m.InitializeAll(context.Background()); err != nil {
		t.Fatalf("InitializeAll() failed: %v", err)
	}

	state, ec := oneBallContext(t)
	res := m.Execute("multiball", plugin.OpApplyEffect, ec)
	if !res.IsOK() {
		t.Fatalf("Execute() failed: %v", res.Err)
	}
	if got := len(state.Balls()); got != 2 {
		t.Errorf("balls = %d, want 2", got)
	}
	if res.Patch() == nil || res.Patch().Len() != 1 {
		t.Error("execution result lost the effect patch")
	}

	if err := m.DestroyAll(context.Background()); err != nil {
		t.Fatalf("DestroyAll() failed: %v", err)
	}
}
