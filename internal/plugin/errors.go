package plugin

import "errors"

// Plugin engine errors.
var (
	// ErrInvalidPlugin is returned when plugin validation fails.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrDuplicatePlugin is returned when registering a name that is
	// already present.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrDependencyNotFound is returned when a declared dependency is
	// not yet registered.
	ErrDependencyNotFound = errors.New("plugin dependency not registered")

	// ErrCyclicDependency is returned when the dependency graph has a
	// cycle. This is the only error that fails a whole InitializeAll
	// batch; no valid linear order exists.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrPluginNotFound is returned when a plugin name is not registered.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNotActive is returned when executing or destroying a plugin
	// that is not in the active status.
	ErrNotActive = errors.New("plugin is not active")

	// ErrNotInitializable is returned when an init attempt is made in a
	// status that does not permit one.
	ErrNotInitializable = errors.New("plugin cannot be initialized in its current status")

	// ErrTimeout is returned when an init or destroy hook did not settle
	// within the execution timeout. The hook itself is not cancelled;
	// the engine merely stops waiting for it.
	ErrTimeout = errors.New("plugin lifecycle operation timed out")

	// ErrUnsupportedOp is returned when a plugin does not implement the
	// requested operation.
	ErrUnsupportedOp = errors.New("operation not supported by plugin")

	// ErrHasDependents is returned when removing a plugin that other
	// registered plugins depend on.
	ErrHasDependents = errors.New("plugin has registered dependents")

	// ErrNotRemovable is returned when removing a plugin that has not
	// been destroyed or failed.
	ErrNotRemovable = errors.New("plugin must be destroyed or failed before removal")
)
