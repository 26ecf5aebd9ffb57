package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/brickstorm/internal/app"
)

// Default configuration values.
const (
	// DefaultMaxExecutionTimePerFrame is the advisory per-invocation
	// budget for effect operations.
	DefaultMaxExecutionTimePerFrame = 2 * time.Millisecond

	// DefaultExecutionTimeout bounds how long the manager waits for an
	// init or destroy hook.
	DefaultExecutionTimeout = 5000 * time.Millisecond
)

// Config configures the plugin manager.
type Config struct {
	// PerformanceMonitoring enables budget flagging and over-budget
	// tracking in performance stats.
	PerformanceMonitoring bool

	// MaxExecutionTimePerFrame is the advisory per-invocation budget.
	// Execution is never interrupted; overruns are only flagged.
	MaxExecutionTimePerFrame time.Duration

	// ExecutionTimeout bounds init and destroy hooks. A hook that runs
	// past it is reported as failed but keeps running detached.
	ExecutionTimeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		PerformanceMonitoring:    true,
		MaxExecutionTimePerFrame: DefaultMaxExecutionTimePerFrame,
		ExecutionTimeout:         DefaultExecutionTimeout,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log *app.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// EventHandler handles plugin manager events.
// Handlers must be non-blocking and should not call back into the
// Manager to avoid deadlocks. Panics in handlers are recovered.
type EventHandler func(event ManagerEvent)

// ManagerEvent represents a plugin manager event.
type ManagerEvent struct {
	Type   ManagerEventType
	Plugin string
	Error  error
}

// ManagerEventType is the type of manager event.
type ManagerEventType int

const (
	// EventRegistered is emitted when a plugin is registered.
	EventRegistered ManagerEventType = iota
	// EventInitialized is emitted when a plugin initializes successfully.
	EventInitialized
	// EventInitFailed is emitted when an init attempt fails or times out.
	EventInitFailed
	// EventDestroyed is emitted when a plugin is torn down.
	EventDestroyed
	// EventDestroyFailed is emitted when a destroy attempt fails or times out.
	EventDestroyFailed
	// EventExecuteFailed is emitted when a dispatched operation fails.
	EventExecuteFailed
	// EventBudgetExceeded is emitted when an operation runs over budget.
	EventBudgetExceeded
)

// String returns a string representation of the event type.
func (t ManagerEventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventInitialized:
		return "initialized"
	case EventInitFailed:
		return "init-failed"
	case EventDestroyed:
		return "destroyed"
	case EventDestroyFailed:
		return "destroy-failed"
	case EventExecuteFailed:
		return "execute-failed"
	case EventBudgetExceeded:
		return "budget-exceeded"
	default:
		return "unknown"
	}
}

// record is the manager-owned bookkeeping for one registered plugin.
type record struct {
	plugin Plugin
	deps   []string
	status Status

	initTime           time.Duration
	lastExecutionTime  time.Duration
	totalExecutionTime time.Duration
	executions         uint64
	errorCount         int
	lastError          error
}

// Manager owns the plugin registry for one game session. It resolves
// dependency order, bounds lifecycle hooks with timeouts, dispatches
// effect operations under an advisory time budget, and isolates
// per-plugin failures so one broken plugin cannot abort the host loop.
type Manager struct {
	mu sync.RWMutex

	// Registered plugins by name
	records map[string]*record

	// Registration order (for deterministic resolution)
	regOrder []string

	// Actual init sequence (teardown runs its reverse)
	initOrder []string

	// Event handlers (protected by mu)
	eventHandlers []EventHandler

	// Configuration
	config Config

	log *app.Logger
}

// New creates a plugin manager for one session.
func New(config Config, opts ...Option) *Manager {
	if config.MaxExecutionTimePerFrame <= 0 {
		config.MaxExecutionTimePerFrame = DefaultMaxExecutionTimePerFrame
	}
	if config.ExecutionTimeout <= 0 {
		config.ExecutionTimeout = DefaultExecutionTimeout
	}

	m := &Manager{
		records:  make(map[string]*record),
		regOrder: make([]string, 0),
		config:   config,
		log:      app.NullLogger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.config
}

// Register adds a plugin to the registry with status Registered.
// It fails, leaving the registry completely unchanged, when the plugin
// shape is invalid, the name is already present, or any declared
// dependency is not yet registered. Registering a dependency later does
// not retroactively admit an earlier rejected dependent.
func (m *Manager) Register(p Plugin) error {
	if err := validatePlugin(p); err != nil {
		m.log.Warn("registration rejected: %v", err)
		return err
	}

	name := p.Name()
	deps := append([]string(nil), p.Dependencies()...)

	m.mu.Lock()
	if _, exists := m.records[name]; exists {
		m.mu.Unlock()
		m.log.WithPlugin(name).Warn("registration rejected: duplicate name")
		return fmt.Errorf("plugin %q: %w", name, ErrDuplicatePlugin)
	}
	for _, dep := range deps {
		if _, ok := m.records[dep]; !ok {
			m.mu.Unlock()
			m.log.WithPlugin(name).Warn("registration rejected: dependency %q not registered", dep)
			return fmt.Errorf("plugin %q dependency %q: %w", name, dep, ErrDependencyNotFound)
		}
	}
	m.records[name] = &record{plugin: p, deps: deps, status: StatusRegistered}
	m.regOrder = append(m.regOrder, name)
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventRegistered, Plugin: name})
	m.log.WithPlugin(name).Debug("registered version %s", p.Version())
	return nil
}

// DependencyOrder returns the order InitializeAll would initialize in:
// every plugin after all of its dependencies, deterministic for a fixed
// registration sequence. Fails if the dependency graph has a cycle.
func (m *Manager) DependencyOrder() ([]string, error) {
	m.mu.RLock()
	deps := make(map[string][]string, len(m.records))
	for name, rec := range m.records {
		deps[name] = rec.deps
	}
	reg := make([]string, len(m.regOrder))
	copy(reg, m.regOrder)
	m.mu.RUnlock()

	return resolveOrder(deps, reg)
}

// InitializePlugin initializes one plugin, racing its Init hook against
// the execution timeout. On success the plugin becomes Active; on hook
// error or timeout it becomes Error. A timed-out hook is not cancelled:
// it keeps running detached and the manager merely stops waiting, so a
// slow Init can still mutate external state after being reported as
// failed. Initializing an Active plugin is a no-op.
func (m *Manager) InitializePlugin(ctx context.Context, name string) error {
	m.mu.Lock()
	rec, exists := m.records[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	if rec.status == StatusActive {
		m.mu.Unlock()
		return nil
	}
	if !rec.status.CanInitialize() {
		status := rec.status
		m.mu.Unlock()
		return fmt.Errorf("plugin %q status %s: %w", name, status, ErrNotInitializable)
	}
	rec.status = StatusInitializing
	m.appendInitOrder(name)
	m.mu.Unlock()

	ictx, cancel := context.WithTimeout(ctx, m.config.ExecutionTimeout)
	defer cancel()

	start := time.Now()
	err := m.awaitLifecycle(ictx, rec.plugin.Init)
	elapsed := time.Since(start)

	if err != nil {
		m.mu.Lock()
		rec.status = StatusError
		rec.errorCount++
		rec.lastError = err
		m.mu.Unlock()

		m.emitEvent(ManagerEvent{Type: EventInitFailed, Plugin: name, Error: err})
		m.log.WithPlugin(name).Warn("init failed after %s: %v", elapsed, err)
		return fmt.Errorf("plugin %q: %w", name, err)
	}

	m.mu.Lock()
	rec.status = StatusActive
	rec.initTime = elapsed
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventInitialized, Plugin: name})
	m.log.WithPlugin(name).Debug("initialized in %s", elapsed)
	return nil
}

// InitializeAll initializes every registered plugin in dependency
// order. A cycle fails the whole batch before any Init runs; no valid
// linear order exists. Individual init failures do not stop the batch;
// they are aggregated into the returned error.
func (m *Manager) InitializeAll(ctx context.Context) error {
	order, err := m.DependencyOrder()
	if err != nil {
		m.log.Error("initialization aborted: %v", err)
		return err
	}

	var initErrors []error
	for _, name := range order {
		if err := m.InitializePlugin(ctx, name); err != nil {
			initErrors = append(initErrors, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(initErrors) > 0 {
		return fmt.Errorf("failed to initialize %d plugins: %w", len(initErrors), errors.Join(initErrors...))
	}
	return nil
}

// Execute dispatches one effect operation on an Active plugin. The
// dispatch is rejected without invoking the plugin when the plugin is
// unknown, not Active, or does not support the operation. The manager
// stamps the context's performance slot, measures the call, flags
// budget overruns (advisory only), and converts a panicking hook into
// a failed result. One broken plugin never aborts the host loop.
func (m *Manager) Execute(name string, op Op, ec *ExecContext) ExecutionResult {
	m.mu.RLock()
	rec, exists := m.records[name]
	var status Status
	if exists {
		status = rec.status
	}
	m.mu.RUnlock()

	if !exists {
		return rejectedExecution(fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound))
	}
	if !status.CanExecute() {
		return rejectedExecution(fmt.Errorf("plugin %q status %s: %w", name, status, ErrNotActive))
	}
	if !op.Valid() {
		return rejectedExecution(fmt.Errorf("plugin %q op %d: %w", name, int(op), ErrUnsupportedOp))
	}
	eff, ok := rec.plugin.(Effector)
	if !ok {
		return rejectedExecution(fmt.Errorf("plugin %q op %s: %w", name, op, ErrUnsupportedOp))
	}

	if ec == nil {
		ec = NewExecContext(nil, 0, time.Now())
	}
	ec.Perf = PerfBudget{
		StartTime:        time.Now(),
		MaxExecutionTime: m.config.MaxExecutionTimePerFrame,
	}

	start := time.Now()
	res := invokeOp(eff, op, ec)
	elapsed := time.Since(start)

	exceeded := false
	if m.config.PerformanceMonitoring && elapsed > m.config.MaxExecutionTimePerFrame {
		exceeded = true
		m.emitEvent(ManagerEvent{Type: EventBudgetExceeded, Plugin: name})
		m.log.WithPlugin(name).Debug("%s exceeded budget: %s > %s", op, elapsed, m.config.MaxExecutionTimePerFrame)
	}

	m.mu.Lock()
	if res.Success {
		rec.lastExecutionTime = elapsed
		rec.totalExecutionTime += elapsed
		rec.executions++
	} else {
		rec.errorCount++
		rec.lastError = res.Err
	}
	m.mu.Unlock()

	if !res.Success {
		m.emitEvent(ManagerEvent{Type: EventExecuteFailed, Plugin: name, Error: res.Err})
		m.log.WithPlugin(name).Warn("%s failed: %v", op, res.Err)
	}

	return ExecutionResult{
		Success:        res.Success,
		ExecutionTime:  elapsed,
		Err:            res.Err,
		ExceededBudget: exceeded,
		Effect:         &res,
	}
}

// invokeOp calls the operation's typed method, converting a panic into
// a failed result.
func invokeOp(eff Effector, op Op, ec *ExecContext) (res EffectResult) {
	defer func() {
		if r := recover(); r != nil {
			res = FailedEffectf("%s panicked: %v", op, r)
		}
	}()

	switch op {
	case OpApplyEffect:
		return eff.ApplyEffect(ec)
	case OpRemoveEffect:
		return eff.RemoveEffect(ec)
	case OpUpdateEffect:
		return eff.UpdateEffect(ec)
	case OpHandleConflict:
		return eff.HandleConflict(ec)
	default:
		return FailedEffect(ErrUnsupportedOp)
	}
}

// DestroyPlugin tears down one Active plugin, racing its Destroy hook
// against the execution timeout. Success transitions the plugin to
// Destroyed; hook error or timeout transitions it to Error but never
// blocks teardown of other plugins. The same non-cancellation caveat as
// InitializePlugin applies.
func (m *Manager) DestroyPlugin(ctx context.Context, name string) error {
	m.mu.Lock()
	rec, exists := m.records[name]
	if !exists {
		m.mu.Unlock()
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	if rec.status != StatusActive {
		status := rec.status
		m.mu.Unlock()
		return fmt.Errorf("plugin %q status %s: %w", name, status, ErrNotActive)
	}
	m.mu.Unlock()

	ictx, cancel := context.WithTimeout(ctx, m.config.ExecutionTimeout)
	defer cancel()

	start := time.Now()
	err := m.awaitLifecycle(ictx, rec.plugin.Destroy)
	elapsed := time.Since(start)

	if err != nil {
		m.mu.Lock()
		rec.status = StatusError
		rec.errorCount++
		rec.lastError = err
		m.mu.Unlock()

		m.emitEvent(ManagerEvent{Type: EventDestroyFailed, Plugin: name, Error: err})
		m.log.WithPlugin(name).Warn("destroy failed after %s: %v", elapsed, err)
		return fmt.Errorf("plugin %q: %w", name, err)
	}

	m.mu.Lock()
	rec.status = StatusDestroyed
	m.mu.Unlock()

	m.emitEvent(ManagerEvent{Type: EventDestroyed, Plugin: name})
	m.log.WithPlugin(name).Debug("destroyed in %s", elapsed)
	return nil
}

// DestroyAll tears down every Active plugin in exactly the reverse of
// the order their inits ran. Individual destroy failures are aggregated
// and do not stop the rest. Plugins that never initialized hold no
// resources and are marked Destroyed without running their hook.
func (m *Manager) DestroyAll(ctx context.Context) error {
	m.mu.RLock()
	names := reverseOrder(m.initOrder)
	m.mu.RUnlock()

	var destroyErrors []error
	for _, name := range names {
		m.mu.RLock()
		rec, exists := m.records[name]
		active := exists && rec.status == StatusActive
		m.mu.RUnlock()
		if !active {
			continue
		}
		if err := m.DestroyPlugin(ctx, name); err != nil {
			destroyErrors = append(destroyErrors, fmt.Errorf("%s: %w", name, err))
		}
	}

	m.mu.Lock()
	for _, rec := range m.records {
		if rec.status == StatusRegistered {
			rec.status = StatusDestroyed
		}
	}
	m.mu.Unlock()

	if len(destroyErrors) > 0 {
		return fmt.Errorf("failed to destroy %d plugins: %w", len(destroyErrors), errors.Join(destroyErrors...))
	}
	return nil
}

// awaitLifecycle runs fn on its own goroutine and waits for it to
// settle or for the context deadline, whichever comes first. A deadline
// win does not stop fn; it keeps running detached. fn receives ctx so
// cooperative hooks can notice the deadline. Panics in fn are converted
// to errors.
func (m *Manager) awaitLifecycle(ctx context.Context, fn func(context.Context) error) error {
	done := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("lifecycle hook panicked: %v", r)
			}
			done <- err
		}()
		err = fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("after %s: %w", m.config.ExecutionTimeout, ErrTimeout)
		}
		return ctx.Err()
	}
}

// Remove drops a Destroyed or failed plugin's record so a replacement
// can register under the same name. Rejected while other registered
// plugins depend on it.
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, exists := m.records[name]
	if !exists {
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	if rec.status != StatusDestroyed && rec.status != StatusError {
		return fmt.Errorf("plugin %q status %s: %w", name, rec.status, ErrNotRemovable)
	}
	for other, orec := range m.records {
		if other == name {
			continue
		}
		for _, dep := range orec.deps {
			if dep == name {
				return fmt.Errorf("plugin %q required by %q: %w", name, other, ErrHasDependents)
			}
		}
	}

	delete(m.records, name)
	m.regOrder = removeName(m.regOrder, name)
	m.initOrder = removeName(m.initOrder, name)
	return nil
}

// Get returns a registered plugin by name.
func (m *Manager) Get(name string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[name]
	if !exists {
		return nil, false
	}
	return rec.plugin, true
}

// Has returns true if a plugin with the given name is registered.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.records[name]
	return exists
}

// StatusOf returns the lifecycle status of a plugin.
func (m *Manager) StatusOf(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[name]
	if !exists {
		return 0, false
	}
	return rec.status, true
}

// Metadata returns a snapshot of a plugin's registry record.
func (m *Manager) Metadata(name string) (Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, exists := m.records[name]
	if !exists {
		return Metadata{}, false
	}
	deps := make([]string, len(rec.deps))
	copy(deps, rec.deps)

	return Metadata{
		Name:               name,
		Version:            rec.plugin.Version(),
		Dependencies:       deps,
		Status:             rec.status,
		InitTime:           rec.initTime,
		LastExecutionTime:  rec.lastExecutionTime,
		TotalExecutionTime: rec.totalExecutionTime,
		Executions:         rec.executions,
		ErrorCount:         rec.errorCount,
		LastError:          rec.lastError,
	}, true
}

// List returns all registered plugin names in registration order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.regOrder))
	copy(out, m.regOrder)
	return out
}

// Count returns the number of registered plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// CountActive returns the number of Active plugins.
func (m *Manager) CountActive() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, rec := range m.records {
		if rec.status == StatusActive {
			count++
		}
	}
	return count
}

// HasErrors returns true if any plugin is in the Error status.
func (m *Manager) HasErrors() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.records {
		if rec.status == StatusError {
			return true
		}
	}
	return false
}

// Errors returns every plugin in the Error status with its last error.
func (m *Manager) Errors() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]error)
	for name, rec := range m.records {
		if rec.status == StatusError && rec.lastError != nil {
			errs[name] = rec.lastError
		}
	}
	return errs
}

// PerformanceStats aggregates execution accounting across the registry.
type PerformanceStats struct {
	// TotalPlugins is the number of registered plugins.
	TotalPlugins int

	// ActivePlugins is the number of Active plugins.
	ActivePlugins int

	// AverageExecutionTime is the mean successful execution duration.
	AverageExecutionTime time.Duration

	// TotalExecutionTime is the summed successful execution duration.
	TotalExecutionTime time.Duration

	// OverBudget lists plugins whose last execution ran over budget,
	// in registration order.
	OverBudget []string
}

// Stats returns aggregated performance statistics.
func (m *Manager) Stats() PerformanceStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := PerformanceStats{TotalPlugins: len(m.records)}
	var executions uint64
	for _, name := range m.regOrder {
		rec, exists := m.records[name]
		if !exists {
			continue
		}
		if rec.status == StatusActive {
			stats.ActivePlugins++
		}
		stats.TotalExecutionTime += rec.totalExecutionTime
		executions += rec.executions
		if m.config.PerformanceMonitoring && rec.lastExecutionTime > m.config.MaxExecutionTimePerFrame {
			stats.OverBudget = append(stats.OverBudget, name)
		}
	}
	if executions > 0 {
		stats.AverageExecutionTime = stats.TotalExecutionTime / time.Duration(executions)
	}
	return stats
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {} // No-op for nil handlers
	}

	m.mu.Lock()
	m.eventHandlers = append(m.eventHandlers, handler)
	index := len(m.eventHandlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.eventHandlers) {
			m.eventHandlers[index] = nil
		}
	}
}

// emitEvent sends an event to all handlers.
// Handlers are called outside any locks and panics are recovered.
func (m *Manager) emitEvent(event ManagerEvent) {
	m.mu.RLock()
	handlers := make([]EventHandler, len(m.eventHandlers))
	copy(handlers, m.eventHandlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				recover() // Ignore panics from handlers
			}()
			handler(event)
		}()
	}
}

// appendInitOrder records an init attempt once.
// Must be called with mu held.
func (m *Manager) appendInitOrder(name string) {
	for _, n := range m.initOrder {
		if n == name {
			return
		}
	}
	m.initOrder = append(m.initOrder, name)
}

// removeName removes a name from an order slice.
func removeName(order []string, name string) []string {
	for i, n := range order {
		if n == name {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}
