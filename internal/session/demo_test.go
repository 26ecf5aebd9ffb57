package session

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/brickstorm/internal/config"
	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/powerup"
)

func TestRunDemoShort(t *testing.T) {
	s := newTestSession(t, func(c *config.Config) {
		c.Demo.TickRate = 250
		c.Demo.DurationMS = 80
	})

	if err := s.RunDemo(context.Background()); err != nil {
		t.Fatalf("RunDemo: %v", err)
	}

	snap := s.Metrics().Snapshot()
	if snap.TickCount == 0 {
		t.Error("demo should have ticked")
	}
	// The first scheduled activation fires immediately.
	if snap.EffectsApplied == 0 {
		t.Error("demo should have applied at least one effect")
	}

	for _, name := range []string{powerup.TypeMultiBall, powerup.TypeWidePaddle, powerup.TypeSlowBall} {
		if st, _ := s.Manager().StatusOf(name); st != plugin.StatusDestroyed {
			t.Errorf("%s status = %v, want destroyed after demo", name, st)
		}
	}
}

func TestRunDemoCancel(t *testing.T) {
	s := newTestSession(t, func(c *config.Config) {
		c.Demo.TickRate = 250
		c.Demo.DurationMS = 60_000
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- s.RunDemo(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("RunDemo after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunDemo did not return after cancel")
	}

	if got := len(s.State().ActivePowerUps()); got != 0 {
		t.Errorf("active power-ups after cancel = %d, want 0", got)
	}
}

func TestDemoScheduleIncludesScripts(t *testing.T) {
	s := newTestSession(t)
	s.scripts["/tmp/turbo.lua"] = "turbo-ball"
	s.scripts["/tmp/zippy.lua"] = "zippy"

	steps := s.demoSchedule()

	if len(steps) != 7 {
		t.Fatalf("got %d steps, want 7 (5 built-in + 2 scripts)", len(steps))
	}
	// Scripts land after the built-in schedule, sorted by name.
	if steps[5].name != "turbo-ball" || steps[6].name != "zippy" {
		t.Errorf("script steps = %s, %s, want turbo-ball, zippy", steps[5].name, steps[6].name)
	}
	if steps[5].at < steps[4].at {
		t.Error("script steps should come after built-in steps")
	}
}

func TestSeedDemoState(t *testing.T) {
	s := newTestSession(t)
	seedDemoState(s.State())

	if got := len(s.State().Balls()); got != 1 {
		t.Errorf("balls = %d, want 1", got)
	}
	if got := len(s.State().Blocks()); got != 15 {
		t.Errorf("blocks = %d, want 15", got)
	}
}
