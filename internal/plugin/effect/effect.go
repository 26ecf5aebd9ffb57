// Package effect provides the base power-up plugin: lifecycle
// bookkeeping, the initialization guard, activation counting, and bus
// notifications wrapped around a set of behavior hooks. Concrete
// power-ups supply hooks instead of reimplementing the contract.
package effect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/brickstorm/internal/event"
	"github.com/dshills/brickstorm/internal/plugin"
)

var (
	// ErrNotInitialized rejects effect operations dispatched before
	// Init completed or after Destroy began.
	ErrNotInitialized = errors.New("effect not initialized")

	// ErrBudgetExhausted reports that the frame budget is already
	// spent. Advisory, like the budget itself.
	ErrBudgetExhausted = errors.New("execution budget exhausted")
)

// Publisher is the slice of the event bus the effect base needs.
// *event.Bus satisfies it.
type Publisher interface {
	Publish(topic event.Topic, payload any)
}

// Hooks are the behavior points a power-up fills in. Nil hooks succeed
// without doing anything, so a power-up implements only what it needs.
type Hooks struct {
	// OnInit acquires whatever the effect needs before activation.
	OnInit func(ctx context.Context) error

	// OnDestroy releases what OnInit acquired.
	OnDestroy func(ctx context.Context) error

	// OnApply applies the effect to game state.
	OnApply func(ec *plugin.ExecContext) plugin.EffectResult

	// OnRemove reverts the effect.
	OnRemove func(ec *plugin.ExecContext) plugin.EffectResult

	// OnUpdate advances a continuous effect by one tick.
	OnUpdate func(ec *plugin.ExecContext) plugin.EffectResult

	// OnConflict reacts to a conflicting activation.
	OnConflict func(ec *plugin.ExecContext) plugin.EffectResult
}

// Base implements the power-up contract around a set of hooks. Every
// operation runs behind the initialization guard; a Base whose Init has
// not completed fails operations instead of running them half-built.
type Base struct {
	meta  Metadata
	deps  []string
	hooks Hooks
	bus   Publisher

	mu             sync.Mutex
	initialized    bool
	activations    uint64
	lastActivation string
	totalOpTime    time.Duration
}

var (
	_ plugin.Plugin   = (*Base)(nil)
	_ plugin.Effector = (*Base)(nil)
)

// Option configures a Base.
type Option func(*Base)

// WithPublisher routes activation notifications to a bus.
func WithPublisher(bus Publisher) Option {
	return func(b *Base) {
		b.bus = bus
	}
}

// WithDependencies declares plugins that must be registered first.
func WithDependencies(deps ...string) Option {
	return func(b *Base) {
		b.deps = append([]string(nil), deps...)
	}
}

// New builds a power-up plugin from a descriptor and hooks.
func New(meta Metadata, hooks Hooks, opts ...Option) (*Base, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	b := &Base{meta: meta.clone(), hooks: hooks}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the canonical power-up type.
func (b *Base) Name() string {
	return b.meta.Type
}

// Version returns the plugin version.
func (b *Base) Version() string {
	return b.meta.Version
}

// Dependencies returns the declared dependency names.
func (b *Base) Dependencies() []string {
	return append([]string(nil), b.deps...)
}

// Metadata returns a copy of the static power-up descriptor.
func (b *Base) Metadata() Metadata {
	return b.meta.clone()
}

// Init runs the OnInit hook and arms the initialization guard.
func (b *Base) Init(ctx context.Context) error {
	if b.hooks.OnInit != nil {
		if err := b.hooks.OnInit(ctx); err != nil {
			return err
		}
	}

	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()
	return nil
}

// Destroy drops the guard and runs the OnDestroy hook. The guard drops
// first so a half-torn-down effect cannot keep executing.
func (b *Base) Destroy(ctx context.Context) error {
	b.mu.Lock()
	b.initialized = false
	b.mu.Unlock()

	if b.hooks.OnDestroy != nil {
		return b.hooks.OnDestroy(ctx)
	}
	return nil
}

// Initialized reports whether the guard is armed.
func (b *Base) Initialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// ApplyEffect validates the context, applies the effect, and, on
// success, counts the activation and announces it on the bus. A
// context whose budget is already spent fails the apply before the
// hook runs.
func (b *Base) ApplyEffect(ec *plugin.ExecContext) plugin.EffectResult {
	if err := b.ValidateEffect(ec); err != nil {
		return plugin.FailedEffect(err)
	}

	res := b.guarded(b.hooks.OnApply, ec)
	if !res.Success {
		return res
	}

	activationID := b.recordActivation()
	if b.bus != nil {
		b.bus.Publish(event.TopicPowerUpActivated, event.PowerUpActivated{
			PluginName:   b.meta.Type,
			ActivationID: activationID,
			Duration:     b.meta.Duration,
		})
	}
	return res
}

// RemoveEffect reverts the effect.
func (b *Base) RemoveEffect(ec *plugin.ExecContext) plugin.EffectResult {
	return b.guarded(b.hooks.OnRemove, ec)
}

// UpdateEffect advances a continuous effect by one tick, announcing
// updates that modified state.
func (b *Base) UpdateEffect(ec *plugin.ExecContext) plugin.EffectResult {
	res := b.guarded(b.hooks.OnUpdate, ec)
	if res.Success && res.Modified && b.bus != nil {
		changes := 0
		if res.Patch != nil {
			changes = res.Patch.Len()
		}
		b.bus.Publish(event.TopicPowerUpUpdated, event.PowerUpUpdated{
			PluginName: b.meta.Type,
			Changes:    changes,
		})
	}
	return res
}

// HandleConflict reacts to a conflicting activation.
func (b *Base) HandleConflict(ec *plugin.ExecContext) plugin.EffectResult {
	return b.guarded(b.hooks.OnConflict, ec)
}

// ValidateEffect checks that the context can absorb the apply: it must
// be present and a stamped budget must not already be spent.
// ApplyEffect runs it before invoking its hook; the other operations
// leave the budget advisory.
func (b *Base) ValidateEffect(ec *plugin.ExecContext) error {
	if ec == nil {
		return fmt.Errorf("%s: nil execution context", b.meta.Type)
	}
	if ec.Perf.Exhausted() {
		return fmt.Errorf("%s: %w", b.meta.Type, ErrBudgetExhausted)
	}
	return nil
}

// guarded runs one op hook behind the initialization guard, timing it
// and converting a panicking hook into a failed result.
func (b *Base) guarded(fn func(*plugin.ExecContext) plugin.EffectResult, ec *plugin.ExecContext) (res plugin.EffectResult) {
	b.mu.Lock()
	ready := b.initialized
	b.mu.Unlock()

	if !ready {
		return plugin.FailedEffect(fmt.Errorf("%s: %w", b.meta.Type, ErrNotInitialized))
	}
	if fn == nil {
		return plugin.UnmodifiedEffect()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = plugin.FailedEffectf("%s: hook panicked: %v", b.meta.Type, r)
		}
		b.mu.Lock()
		b.totalOpTime += time.Since(start)
		b.mu.Unlock()
	}()
	return fn(ec)
}

func (b *Base) recordActivation() string {
	id := uuid.NewString()

	b.mu.Lock()
	b.activations++
	b.lastActivation = id
	b.mu.Unlock()
	return id
}

// Metrics is a snapshot of an effect's own accounting.
type Metrics struct {
	// Activations counts successful ApplyEffect calls.
	Activations uint64

	// TotalExecutionTime sums the durations of all hook runs.
	TotalExecutionTime time.Duration

	// AverageExecutionTime is TotalExecutionTime spread over
	// activations.
	AverageExecutionTime time.Duration

	// LastActivationID identifies the most recent activation.
	LastActivationID string

	// Initialized reports the guard state at snapshot time.
	Initialized bool
}

// Metrics returns a snapshot of the effect's accounting.
func (b *Base) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := Metrics{
		Activations:        b.activations,
		TotalExecutionTime: b.totalOpTime,
		LastActivationID:   b.lastActivation,
		Initialized:        b.initialized,
	}
	if b.activations > 0 {
		m.AverageExecutionTime = b.totalOpTime / time.Duration(b.activations)
	}
	return m
}
