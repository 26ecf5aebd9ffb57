package session

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dshills/brickstorm/internal/config"
	"github.com/dshills/brickstorm/internal/powerup"
)

func turboScript(version string) string {
	return fmt.Sprintf(`
powerup = {
    type        = "turbo-ball",
    name        = "Turbo Ball",
    description = "Doubles every ball's speed",
    icon        = "flame",
    color       = "#ff9800",
    rarity      = "rare",
    duration_ms = 5000,
    version     = %q,
    conflicts_with = { "slow-ball" },
    priority    = 3,
}

function powerup.apply(game)
    if game.ball_count() == 0 then
        return false, "no balls in play"
    end
    game.scale_ball_speed(2.0)
    return true
end

function powerup.remove(game)
    game.scale_ball_speed(0.5)
    return true
end
`, version)
}

func writeTurboScript(t *testing.T, dir, version string) string {
	t.Helper()
	path := filepath.Join(dir, "turbo.lua")
	if err := os.WriteFile(path, []byte(turboScript(version)), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestStartLoadsScripts(t *testing.T) {
	dir := t.TempDir()
	writeTurboScript(t, dir, "1.0.0")

	s := newTestSession(t, func(c *config.Config) { c.Scripts.Dir = dir })
	startSession(t, s)

	if !s.Manager().Has("turbo-ball") {
		t.Fatal("scripted power-up not registered")
	}
	if st, _ := s.Manager().StatusOf("turbo-ball"); !st.CanExecute() {
		t.Errorf("scripted power-up status = %v, want active", st)
	}

	md, ok := s.Manager().Metadata("turbo-ball")
	if !ok || md.Version != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0", md.Version)
	}
}

func TestBrokenScriptDoesNotBlockStart(t *testing.T) {
	dir := t.TempDir()
	writeTurboScript(t, dir, "1.0.0")
	if err := os.WriteFile(filepath.Join(dir, "broken.lua"), []byte("x = 1\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	s := newTestSession(t, func(c *config.Config) { c.Scripts.Dir = dir })
	startSession(t, s)

	if !s.Manager().Has("turbo-ball") {
		t.Error("valid script should load despite a broken neighbor")
	}
	if s.Manager().Count() != 4 {
		t.Errorf("Count() = %d, want 4 (3 built-ins + 1 script)", s.Manager().Count())
	}
}

func TestScriptedConflictResolution(t *testing.T) {
	dir := t.TempDir()
	writeTurboScript(t, dir, "1.0.0")

	s := newTestSession(t, func(c *config.Config) { c.Scripts.Dir = dir })
	startSession(t, s)
	ball := seedBall(t, s)

	mustActivate(t, s, powerup.TypeSlowBall)
	if ball.Speed != 0.5 {
		t.Fatalf("ball speed = %v, want 0.5", ball.Speed)
	}

	// Turbo's script priority 3 beats slow-ball's 1.
	mustActivate(t, s, "turbo-ball")

	if s.State().CountActive(powerup.TypeSlowBall) != 0 {
		t.Error("slow-ball should be replaced")
	}
	if s.State().CountActive("turbo-ball") != 1 {
		t.Error("turbo-ball should be active")
	}
	if ball.Speed != 2.0 {
		t.Errorf("ball speed = %v, want 2.0", ball.Speed)
	}
}

func TestHotReloadSwapsScript(t *testing.T) {
	dir := t.TempDir()
	path := writeTurboScript(t, dir, "1.0.0")

	s := newTestSession(t, func(c *config.Config) {
		c.Scripts.Dir = dir
		c.Scripts.HotReload = true
	})
	startSession(t, s)
	seedBall(t, s)

	id := mustActivate(t, s, "turbo-ball")
	if id == "" {
		t.Fatal("activation ID empty")
	}

	if err := os.WriteFile(path, []byte(turboScript("2.0.0")), 0o644); err != nil {
		t.Fatalf("rewrite script: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		s.Tick(0)
		if md, ok := s.Manager().Metadata("turbo-ball"); ok && md.Version == "2.0.0" {
			break
		}
		if time.Now().After(deadline) {
			md, _ := s.Manager().Metadata("turbo-ball")
			t.Fatalf("script not reloaded, version = %q", md.Version)
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The old plugin's activation was retired during the swap.
	if got := s.State().CountActive("turbo-ball"); got != 0 {
		t.Errorf("active count after reload = %d, want 0", got)
	}
	if st, _ := s.Manager().StatusOf("turbo-ball"); !st.CanExecute() {
		t.Errorf("reloaded plugin status = %v, want active", st)
	}

	// The reloaded plugin activates cleanly.
	mustActivate(t, s, "turbo-ball")
}

func TestHotReloadRemovedScript(t *testing.T) {
	dir := t.TempDir()
	path := writeTurboScript(t, dir, "1.0.0")

	s := newTestSession(t, func(c *config.Config) {
		c.Scripts.Dir = dir
		c.Scripts.HotReload = true
	})
	startSession(t, s)

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove script: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.Manager().Has("turbo-ball") {
		s.Tick(0)
		if time.Now().After(deadline) {
			t.Fatal("removed script still registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := s.Manager().Count(); got != 3 {
		t.Errorf("Count() = %d, want 3 built-ins", got)
	}
}
