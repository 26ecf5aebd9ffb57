package session

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/powerup"
)

// demoStep schedules one activation during the demo run.
type demoStep struct {
	at   time.Duration
	name string
}

// RunDemo starts the session, seeds a demo field, and drives the
// fixed-step loop for the configured duration, activating power-ups on
// a schedule. Conflict rejections and stack limits along the way are
// expected demo content, not failures.
func (s *Session) RunDemo(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	seedDemoState(s.state)

	steps := s.demoSchedule()
	interval := s.cfg.Demo.TickInterval()
	duration := s.cfg.Demo.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("demo interrupted")
			return s.Stop(context.Background())

		case <-ticker.C:
			elapsed := time.Since(start)
			if elapsed >= duration {
				s.logSummary()
				return s.Stop(context.Background())
			}
			for len(steps) > 0 && elapsed >= steps[0].at {
				s.runStep(steps[0])
				steps = steps[1:]
			}
			s.Tick(interval)
		}
	}
}

// demoSchedule builds the activation timeline: the built-ins early,
// including a stack and a refresh, then every loaded script. Scripts
// land after slow-ball so a conflicting script exercises resolution.
func (s *Session) demoSchedule() []demoStep {
	steps := []demoStep{
		{0, powerup.TypeMultiBall},
		{400 * time.Millisecond, powerup.TypeWidePaddle},
		{800 * time.Millisecond, powerup.TypeSlowBall},
		{1200 * time.Millisecond, powerup.TypeMultiBall},
		{1600 * time.Millisecond, powerup.TypeWidePaddle},
	}

	at := 2 * time.Second
	for _, name := range s.scriptNames() {
		steps = append(steps, demoStep{at, name})
		at += 400 * time.Millisecond
	}
	return steps
}

// scriptNames returns the loaded script plugin names, sorted for a
// stable schedule.
func (s *Session) scriptNames() []string {
	names := make([]string, 0, len(s.scripts))
	for _, name := range s.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runStep activates one scheduled power-up and reports the outcome.
func (s *Session) runStep(step demoStep) {
	id, err := s.Activate(step.name)
	switch {
	case errors.Is(err, ErrConflictRejected) || errors.Is(err, ErrStackLimitReached):
		s.log.Info("demo: %v", err)
	case err != nil:
		s.log.Warn("demo: activating %s: %v", step.name, err)
	default:
		s.log.Info("demo: activated %s (%s)", step.name, shortID(id))
	}
}

// logSummary reports the run's numbers at the end of the demo.
func (s *Session) logSummary() {
	snap := s.metrics.Snapshot()
	stats := s.manager.Stats()

	s.log.Info("demo complete: %d ticks (avg %.2fms), %d effects applied, %d failed, %d rollbacks, %d over budget",
		snap.TickCount,
		float64(snap.AvgTickTimeNs)/1e6,
		snap.EffectsApplied,
		snap.EffectsFailed,
		snap.Rollbacks,
		snap.BudgetExceeded,
	)
	if len(stats.OverBudget) > 0 {
		s.log.Warn("over budget last frame: %v", stats.OverBudget)
	}

	bus := s.bus.Stats()
	s.log.Debug("bus: %d published, %d delivered, %d handler panics",
		bus.Published, bus.Delivered, bus.Panics)
}

// seedDemoState fills a fresh field: one ball above the paddle and a
// small block grid.
func seedDemoState(st *game.State) {
	st.Paddle().X = 170
	st.Paddle().Y = 440

	st.AddBall(game.NewBall(200, 300, 1.4, -1.8))

	for row := 0; row < 3; row++ {
		for col := 0; col < 5; col++ {
			st.AddBlock(game.NewBlock(
				40+float64(col)*(game.DefaultBlockWidth+4),
				60+float64(row)*(game.DefaultBlockHeight+4),
			))
		}
	}
}
