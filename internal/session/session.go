// Package session owns one game session end to end: logging, the event
// bus, game state, the plugin engine, scripted power-up loading, and
// the demo loop. Activation policy lives here, not in the engine: the
// session checks conflicts and stacking against power-up metadata,
// keeps the registry of live activations, and reverts recorded patches
// when an effect cannot remove itself.
//
// A Session and everything it owns belong to a single goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/brickstorm/internal/app"
	"github.com/dshills/brickstorm/internal/config"
	"github.com/dshills/brickstorm/internal/event"
	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
	"github.com/dshills/brickstorm/internal/plugin/luafx"
	"github.com/dshills/brickstorm/internal/powerup"
	"github.com/dshills/brickstorm/internal/script"
)

// Session errors.
var (
	// ErrUnknownPowerUp is returned when activating a power-up that is
	// not registered.
	ErrUnknownPowerUp = errors.New("power-up not registered")

	// ErrConflictRejected is returned when an activation loses a
	// conflict against an already-active power-up.
	ErrConflictRejected = errors.New("activation rejected by conflicting power-up")

	// ErrStackLimitReached is returned when a stacking power-up is
	// already at its stack cap.
	ErrStackLimitReached = errors.New("power-up stack limit reached")

	// ErrActivationFailed is returned when the apply operation fails.
	ErrActivationFailed = errors.New("power-up activation failed")

	// ErrActivationNotFound is returned when deactivating an unknown
	// activation ID.
	ErrActivationNotFound = errors.New("activation not found")
)

// Session wires one game session together.
type Session struct {
	id      string
	cfg     config.Config
	log     *app.Logger
	bus     *event.Bus
	state   *game.State
	manager *plugin.Manager
	metrics *app.Metrics

	// scripts maps a script path to the plugin name it registered,
	// so hot reloads can swap the right plugin.
	scripts map[string]string

	// patches holds the rollback patch of each live activation.
	patches map[string]*game.Patch

	watcher  *script.Watcher
	unsubMgr func()
	started  bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *app.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithState substitutes a pre-seeded game state.
func WithState(st *game.State) Option {
	return func(s *Session) {
		if st != nil {
			s.state = st
		}
	}
}

// New creates a session from the given configuration. Nothing is
// registered or initialized until Start.
func New(cfg config.Config, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		bus:     event.NewBus(),
		state:   game.NewState(),
		metrics: app.NewMetrics(),
		scripts: make(map[string]string),
		patches: make(map[string]*game.Patch),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = app.NewLogger(app.LoggerConfig{
			Level:  app.ParseLogLevel(cfg.Log.Level),
			Prefix: "brickstorm",
		})
	}
	s.manager = plugin.New(cfg.Engine.ManagerConfig(), plugin.WithLogger(s.log))
	s.unsubMgr = s.manager.Subscribe(s.onManagerEvent)
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Bus returns the session event bus.
func (s *Session) Bus() *event.Bus { return s.bus }

// State returns the session game state.
func (s *Session) State() *game.State { return s.state }

// Manager returns the session plugin manager.
func (s *Session) Manager() *plugin.Manager { return s.manager }

// Metrics returns the session loop metrics.
func (s *Session) Metrics() *app.Metrics { return s.metrics }

// Start registers the built-in power-ups, loads any configured
// scripts, and initializes every registered plugin. Script load
// failures and individual init failures are logged but do not stop
// the session; an unresolvable dependency cycle does.
func (s *Session) Start(ctx context.Context) error {
	if s.started {
		return errors.New("session already started")
	}

	if err := s.registerBuiltins(); err != nil {
		return err
	}

	if dir := s.cfg.Scripts.Dir; dir != "" {
		if err := s.loadScripts(dir); err != nil {
			s.log.Warn("script loading: %v", err)
		}
		if s.cfg.Scripts.HotReload {
			w, err := script.NewWatcher(dir, script.WithWatchLogger(s.log))
			if err != nil {
				return fmt.Errorf("starting script watcher: %w", err)
			}
			s.watcher = w
		}
	}

	if err := s.manager.InitializeAll(ctx); err != nil {
		if errors.Is(err, plugin.ErrCyclicDependency) {
			return err
		}
		s.log.Warn("initialization: %v", err)
	}

	s.started = true
	s.log.Info("session %s started: %d of %d plugins active",
		shortID(s.id), s.manager.CountActive(), s.manager.Count())
	return nil
}

// Stop deactivates every live power-up, destroys every plugin in
// reverse initialization order, and releases the script watcher.
func (s *Session) Stop(ctx context.Context) error {
	if s.watcher != nil {
		_ = s.watcher.Close()
		s.watcher = nil
	}

	for _, a := range s.state.ActivePowerUps() {
		s.deactivate(a, event.ReasonShutdown)
	}

	err := s.manager.DestroyAll(ctx)
	s.unsubMgr()
	s.started = false
	s.log.Info("session %s stopped", shortID(s.id))
	if err != nil {
		return fmt.Errorf("session shutdown: %w", err)
	}
	return nil
}

// Activate applies the named power-up and records the activation.
// Conflicts and stacking are resolved against power-up metadata before
// the apply operation is dispatched; re-activating a non-stacking
// power-up replaces the live activation.
//
// Returns the activation ID on success.
func (s *Session) Activate(name string) (string, error) {
	p, ok := s.manager.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPowerUp, name)
	}
	meta, _ := effectMetadata(p)

	if err := s.resolveConflicts(name, meta); err != nil {
		return "", err
	}

	stacked := false
	count := s.state.CountActive(name)
	switch {
	case count == 0:
	case meta.Effect.Stacks:
		if meta.Effect.MaxStacks > 0 && count >= meta.Effect.MaxStacks {
			return "", fmt.Errorf("%w: %s already at %d", ErrStackLimitReached, name, count)
		}
		stacked = true
	default:
		// Re-pickup of a non-stacking power-up replaces the live
		// activation, which also refreshes its expiry.
		for _, a := range s.state.ActiveByType(name) {
			s.deactivate(a, event.ReasonReplaced)
		}
	}

	res := s.manager.Execute(name, plugin.OpApplyEffect, s.execContext(0))
	if !res.Success {
		return "", fmt.Errorf("%w: %s: %w", ErrActivationFailed, name, res.Err)
	}

	id := activationID(p)
	now := time.Now()
	a := game.ActivePowerUp{ActivationID: id, Type: name, AppliedAt: now}
	if meta.Duration > 0 {
		a.ExpiresAt = now.Add(meta.Duration)
	}
	s.state.Activate(a)

	if patch := res.Patch(); patch != nil && !patch.Empty() {
		s.patches[id] = patch
	}
	s.metrics.RecordEffectApplied()

	if stacked {
		s.bus.Publish(event.TopicPowerUpStacked, event.PowerUpStacked{
			PluginName: name,
			Stacks:     s.state.CountActive(name),
		})
	}

	s.log.Debug("activated %s (%s)", name, shortID(id))
	return id, nil
}

// Deactivate removes the activation with the given ID at the player's
// request.
func (s *Session) Deactivate(activationID string) error {
	for _, a := range s.state.ActivePowerUps() {
		if a.ActivationID == activationID {
			s.deactivate(a, event.ReasonRequested)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrActivationNotFound, activationID)
}

// Tick advances the session by one fixed step: script changes are
// drained, every active effect gets an update dispatch, and expired
// activations are removed.
func (s *Session) Tick(delta time.Duration) {
	timer := app.StartTimer()

	s.drainScriptChanges()

	ec := s.execContext(delta)
	for _, typ := range s.activeTypes() {
		s.manager.Execute(typ, plugin.OpUpdateEffect, ec)
	}

	for _, a := range s.state.Expired(time.Now()) {
		s.deactivate(a, event.ReasonExpired)
	}

	s.metrics.RecordTick(timer.Elapsed())
}

// resolveConflicts checks the attacker against every distinct active
// power-up type. A conflict declared by either side counts. The higher
// priority wins; on a tie the incumbent stays. The loser's conflict
// hook runs before the outcome is applied.
func (s *Session) resolveConflicts(name string, meta effect.Metadata) error {
	for _, activeType := range s.activeTypes() {
		if activeType == name {
			continue
		}
		activeMeta := s.metadataFor(activeType)
		if !meta.ConflictsWith(activeType) && !activeMeta.ConflictsWith(name) {
			continue
		}

		ec := s.execContext(0)
		if meta.Effect.Priority > activeMeta.Effect.Priority {
			s.manager.Execute(activeType, plugin.OpHandleConflict, ec)
			for _, a := range s.state.ActiveByType(activeType) {
				s.deactivate(a, event.ReasonReplaced)
			}
			s.bus.Publish(event.TopicPowerUpConflict, event.PowerUpConflict{
				PluginName:    name,
				ConflictsWith: activeType,
				Resolved:      true,
			})
			s.log.Debug("conflict: %s replaces %s", name, activeType)
			continue
		}

		s.manager.Execute(name, plugin.OpHandleConflict, ec)
		s.bus.Publish(event.TopicPowerUpConflict, event.PowerUpConflict{
			PluginName:    name,
			ConflictsWith: activeType,
			Resolved:      false,
		})
		return fmt.Errorf("%w: %s conflicts with active %s", ErrConflictRejected, name, activeType)
	}
	return nil
}

// deactivate ends one activation. The remove operation gets first
// crack; when it fails or changes nothing, the recorded patch is
// reverted instead so the effect never outlives its registry entry.
func (s *Session) deactivate(a game.ActivePowerUp, reason string) {
	res := s.manager.Execute(a.Type, plugin.OpRemoveEffect, s.execContext(0))
	handled := res.Success && res.Effect != nil && res.Effect.Modified

	if !handled {
		if patch, ok := s.patches[a.ActivationID]; ok {
			if err := patch.Revert(s.state); err != nil {
				s.log.Warn("rollback of %s failed: %v", a.Type, err)
			} else {
				s.metrics.RecordRollback()
			}
		}
	}

	delete(s.patches, a.ActivationID)
	s.state.Deactivate(a.ActivationID)
	s.bus.Publish(event.TopicPowerUpDeactivated, event.PowerUpDeactivated{
		PluginName:   a.Type,
		ActivationID: a.ActivationID,
		Reason:       reason,
	})
	s.log.Debug("deactivated %s (%s): %s", a.Type, shortID(a.ActivationID), reason)
}

// registerBuiltins registers the built-in power-ups.
func (s *Session) registerBuiltins() error {
	builtins, err := powerup.Builtins(effect.WithPublisher(s.bus))
	if err != nil {
		return fmt.Errorf("building built-in power-ups: %w", err)
	}
	var errs []error
	for _, b := range builtins {
		if err := s.manager.Register(b); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("registering built-in power-ups: %w", errors.Join(errs...))
	}
	return nil
}

// loadScripts loads every script in dir. Individual failures are
// collected so one broken script cannot block the rest.
func (s *Session) loadScripts(dir string) error {
	paths, err := script.ListScripts(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, path := range paths {
		if err := s.loadScript(path); err != nil {
			errs = append(errs, err)
			continue
		}
		s.log.Debug("loaded script %s as %s", filepath.Base(path), s.scripts[path])
	}
	return errors.Join(errs...)
}

// loadScript loads and registers one script.
func (s *Session) loadScript(path string) error {
	eff, err := luafx.Load(path,
		luafx.WithCallTimeout(s.cfg.Scripts.CallTimeout()),
		luafx.WithLogger(s.log),
		luafx.WithPublisher(s.bus),
	)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if err := s.manager.Register(eff); err != nil {
		return fmt.Errorf("registering %s: %w", path, err)
	}
	s.scripts[path] = eff.Name()
	return nil
}

// drainScriptChanges applies any pending hot-reload changes without
// blocking the tick.
func (s *Session) drainScriptChanges() {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case c, ok := <-s.watcher.Changes():
			if !ok {
				s.watcher = nil
				return
			}
			s.handleScriptChange(c)
		default:
			return
		}
	}
}

// handleScriptChange swaps a scripted plugin for its rewritten file,
// or retires it when the file is gone. The old plugin is fully
// deactivated and removed before the replacement registers, so the
// name is free even when the rewrite keeps it.
func (s *Session) handleScriptChange(c script.Change) {
	name, known := s.scripts[c.Path]
	if known {
		s.unloadScript(c.Path, name)
	}

	if c.Kind == script.ChangeRemove {
		if known {
			s.log.Info("script removed: %s", filepath.Base(c.Path))
		}
		return
	}

	if err := s.reloadScript(c.Path); err != nil {
		s.log.Error("hot reload of %s: %v", filepath.Base(c.Path), err)
		return
	}
	s.log.Info("hot reloaded %s as %s", filepath.Base(c.Path), s.scripts[c.Path])
}

// unloadScript deactivates, destroys, and removes a scripted plugin.
func (s *Session) unloadScript(path, name string) {
	for _, a := range s.state.ActiveByType(name) {
		s.deactivate(a, event.ReasonReplaced)
	}
	if st, ok := s.manager.StatusOf(name); ok && st == plugin.StatusActive {
		if err := s.manager.DestroyPlugin(context.Background(), name); err != nil {
			s.log.Warn("destroying %s: %v", name, err)
		}
	}
	if err := s.manager.Remove(name); err != nil {
		s.log.Warn("removing %s: %v", name, err)
	}
	delete(s.scripts, path)
}

// reloadScript loads, registers, and initializes a script file.
func (s *Session) reloadScript(path string) error {
	if err := s.loadScript(path); err != nil {
		return err
	}
	name := s.scripts[path]
	if err := s.manager.InitializePlugin(context.Background(), name); err != nil {
		return fmt.Errorf("initializing %s: %w", name, err)
	}
	return nil
}

// onManagerEvent feeds engine events into the session metrics. The
// manager already logs its own events.
func (s *Session) onManagerEvent(ev plugin.ManagerEvent) {
	switch ev.Type {
	case plugin.EventBudgetExceeded:
		s.metrics.RecordBudgetExceeded()
	case plugin.EventExecuteFailed:
		s.metrics.RecordEffectFailed()
	}
}

// execContext builds the per-dispatch context for the current state.
func (s *Session) execContext(delta time.Duration) *plugin.ExecContext {
	return plugin.NewExecContext(s.state, delta, time.Now())
}

// activeTypes returns the distinct power-up types with live
// activations, in activation order.
func (s *Session) activeTypes() []string {
	seen := make(map[string]bool)
	var types []string
	for _, a := range s.state.ActivePowerUps() {
		if seen[a.Type] {
			continue
		}
		seen[a.Type] = true
		types = append(types, a.Type)
	}
	return types
}

// metadataFor returns the metadata of a registered power-up, or a zero
// descriptor when the plugin is gone or does not carry one.
func (s *Session) metadataFor(name string) effect.Metadata {
	p, ok := s.manager.Get(name)
	if !ok {
		return effect.Metadata{}
	}
	meta, _ := effectMetadata(p)
	return meta
}

// effectMetadata extracts the power-up descriptor from a plugin.
// Plugins without one get zero metadata: no conflicts, no stacking,
// no expiry.
func effectMetadata(p plugin.Plugin) (effect.Metadata, bool) {
	mp, ok := p.(interface{ Metadata() effect.Metadata })
	if !ok {
		return effect.Metadata{}, false
	}
	return mp.Metadata(), true
}

// activationID returns the plugin-reported ID of the latest
// activation, so the registry entry and the activation event carry the
// same ID. Plugins without activation accounting get a fresh one.
func activationID(p plugin.Plugin) string {
	if mp, ok := p.(interface{ Metrics() effect.Metrics }); ok {
		if id := mp.Metrics().LastActivationID; id != "" {
			return id
		}
	}
	return uuid.NewString()
}

// shortID trims a UUID for log lines.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
