package luafx

import (
	"context"
	"errors"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/brickstorm/internal/app"
	"github.com/dshills/brickstorm/internal/game"
	"github.com/dshills/brickstorm/internal/plugin"
	"github.com/dshills/brickstorm/internal/plugin/effect"
)

// The global a script must declare, and the function keys read from it.
const (
	globalPowerUp = "powerup"

	fnInit     = "init"
	fnDestroy  = "destroy"
	fnApply    = "apply"
	fnRemove   = "remove"
	fnUpdate   = "update"
	fnConflict = "on_conflict"
)

var (
	// ErrNoPowerUpTable is returned when a script declares no powerup
	// table.
	ErrNoPowerUpTable = errors.New("script declares no powerup table")

	// ErrApplyMissing is returned when a script declares no apply
	// function; an effect that cannot apply is not a power-up.
	ErrApplyMissing = errors.New("powerup.apply missing")

	// ErrScriptFailed reports a behavior function that returned false.
	ErrScriptFailed = errors.New("script hook failed")
)

type options struct {
	timeout time.Duration
	log     *app.Logger
	bus     effect.Publisher
	deps    []string
}

func defaultOptions() options {
	return options{
		timeout: DefaultCallTimeout,
		log:     app.NullLogger,
	}
}

// Option configures script loading.
type Option func(*options)

// WithCallTimeout bounds a single scripted hook call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger routes script print output and load diagnostics.
func WithLogger(log *app.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithPublisher routes the wrapped effect's notifications to a bus.
func WithPublisher(bus effect.Publisher) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithDependencies declares plugins the scripted power-up requires.
func WithDependencies(deps ...string) Option {
	return func(o *options) {
		o.deps = append([]string(nil), deps...)
	}
}

// Script is one loaded power-up script bound to its own interpreter.
// The exported surface is the *effect.Base returned by Load; Script
// lives on inside its hooks.
type Script struct {
	vm   *vm
	meta effect.Metadata
	fns  map[string]*lua.LFunction
	src  string
	log  *app.Logger
}

// Load reads a power-up script from disk and wraps it in the standard
// effect contract.
func Load(path string, opts ...Option) (*effect.Base, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	v := newVM(o.timeout, o.log)
	if err := v.doFile(path); err != nil {
		v.close()
		return nil, fmt.Errorf("script %s: %w", path, err)
	}
	return build(v, path, o)
}

// LoadString compiles an in-memory script. The src label stands in for
// a path in diagnostics.
func LoadString(src, code string, opts ...Option) (*effect.Base, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	v := newVM(o.timeout, o.log)
	if err := v.doString(code); err != nil {
		v.close()
		return nil, fmt.Errorf("script %s: %w", src, err)
	}
	return build(v, src, o)
}

func build(v *vm, src string, o options) (*effect.Base, error) {
	table, ok := v.globalTable(globalPowerUp)
	if !ok {
		v.close()
		return nil, fmt.Errorf("script %s: %w", src, ErrNoPowerUpTable)
	}

	meta, err := metadataFromTable(table)
	if err != nil {
		v.close()
		return nil, fmt.Errorf("script %s: %w", src, err)
	}

	s := &Script{
		vm:   v,
		meta: meta,
		fns:  make(map[string]*lua.LFunction),
		src:  src,
		log:  o.log,
	}
	for _, name := range []string{fnInit, fnDestroy, fnApply, fnRemove, fnUpdate, fnConflict} {
		if fn, found := tableFunc(table, name); found {
			s.fns[name] = fn
		}
	}
	if _, found := s.fns[fnApply]; !found {
		v.close()
		return nil, fmt.Errorf("script %s: %w", src, ErrApplyMissing)
	}

	var effOpts []effect.Option
	if o.bus != nil {
		effOpts = append(effOpts, effect.WithPublisher(o.bus))
	}
	if len(o.deps) > 0 {
		effOpts = append(effOpts, effect.WithDependencies(o.deps...))
	}

	base, err := effect.New(meta, s.hooks(), effOpts...)
	if err != nil {
		v.close()
		return nil, fmt.Errorf("script %s: %w", src, err)
	}

	o.log.WithPlugin(meta.Type).Debug("loaded script %s", src)
	return base, nil
}

// metadataFromTable decodes the descriptor fields of a powerup table.
// Validation happens when the effect is constructed.
func metadataFromTable(t *lua.LTable) (effect.Metadata, error) {
	md := effect.Metadata{
		Type:        tableString(t, "type"),
		Name:        tableString(t, "name"),
		Description: tableString(t, "description"),
		Icon:        tableString(t, "icon"),
		Color:       tableString(t, "color"),
		Version:     tableString(t, "version"),
	}

	if s := tableString(t, "rarity"); s != "" {
		r, err := effect.ParseRarity(s)
		if err != nil {
			return effect.Metadata{}, err
		}
		md.Rarity = r
	}
	if ms, ok := tableNumber(t, "duration_ms"); ok {
		md.Duration = time.Duration(ms) * time.Millisecond
	}

	md.Effect = effect.Descriptor{
		ConflictsWith: tableStringSlice(t, "conflicts_with"),
		Stacks:        tableBool(t, "stacks"),
	}
	if n, ok := tableNumber(t, "max_stacks"); ok {
		md.Effect.MaxStacks = int(n)
	}
	if n, ok := tableNumber(t, "priority"); ok {
		md.Effect.Priority = int(n)
	}

	return md, nil
}

// hooks adapts the script functions to the effect contract. Absent
// optional functions stay nil so the base treats them as no-ops.
func (s *Script) hooks() effect.Hooks {
	h := effect.Hooks{
		OnInit:    s.lifecycleHook(fnInit),
		OnDestroy: s.destroyHook(),
		OnApply:   s.opHook(fnApply),
	}
	if _, ok := s.fns[fnRemove]; ok {
		h.OnRemove = s.opHook(fnRemove)
	}
	if _, ok := s.fns[fnUpdate]; ok {
		h.OnUpdate = s.opHook(fnUpdate)
	}
	if _, ok := s.fns[fnConflict]; ok {
		h.OnConflict = s.opHook(fnConflict)
	}
	return h
}

func (s *Script) lifecycleHook(name string) func(context.Context) error {
	return func(context.Context) error {
		fn, ok := s.fns[name]
		if !ok {
			return nil
		}
		if _, err := s.vm.call(fn); err != nil {
			return fmt.Errorf("%s.%s: %w", s.meta.Type, name, err)
		}
		return nil
	}
}

// destroyHook runs powerup.destroy and closes the interpreter. The VM
// stays open when the hook fails so re-initialization after the
// failure can still reach the script.
func (s *Script) destroyHook() func(context.Context) error {
	return func(context.Context) error {
		if fn, ok := s.fns[fnDestroy]; ok {
			if _, err := s.vm.call(fn); err != nil {
				return fmt.Errorf("%s.%s: %w", s.meta.Type, fnDestroy, err)
			}
		}
		s.vm.close()
		return nil
	}
}

// opHook runs one behavior function against a fresh recording patch.
// Update functions additionally receive the tick delta in
// milliseconds. A function may return false plus an optional message
// to signal failure.
func (s *Script) opHook(name string) func(*plugin.ExecContext) plugin.EffectResult {
	return func(ec *plugin.ExecContext) plugin.EffectResult {
		fn, ok := s.fns[name]
		if !ok {
			return plugin.UnmodifiedEffect()
		}

		call := &effectCall{ec: ec, patch: game.NewPatch()}
		gt := s.gameTable(call)
		if gt == nil {
			return plugin.FailedEffect(fmt.Errorf("%s.%s: %w", s.meta.Type, name, ErrVMClosed))
		}

		args := []lua.LValue{gt}
		if name == fnUpdate && ec != nil {
			args = append(args, lua.LNumber(float64(ec.DeltaTime)/float64(time.Millisecond)))
		}

		ret, err := s.vm.call(fn, args...)
		if err != nil {
			return plugin.FailedEffect(fmt.Errorf("%s.%s: %w", s.meta.Type, name, err))
		}

		if len(ret) > 0 {
			if b, isBool := ret[0].(lua.LBool); isBool && !bool(b) {
				reason := "no reason given"
				if len(ret) > 1 {
					reason = ret[1].String()
				}
				return plugin.FailedEffect(fmt.Errorf("%s.%s: %w: %s", s.meta.Type, name, ErrScriptFailed, reason))
			}
		}

		return plugin.AppliedEffect(call.patch)
	}
}
