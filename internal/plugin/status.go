package plugin

// Status represents the lifecycle status of a registered plugin.
type Status int

// Plugin lifecycle statuses.
const (
	// StatusRegistered - Plugin is registered but not initialized.
	StatusRegistered Status = iota

	// StatusInitializing - Plugin Init is in flight.
	StatusInitializing

	// StatusActive - Plugin initialized successfully and can execute.
	StatusActive

	// StatusError - Plugin failed an init, execute, or destroy attempt.
	StatusError

	// StatusDestroyed - Plugin was torn down.
	StatusDestroyed
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusRegistered:
		return "registered"
	case StatusInitializing:
		return "initializing"
	case StatusActive:
		return "active"
	case StatusError:
		return "error"
	case StatusDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// CanExecute returns true if the plugin may be executed.
func (s Status) CanExecute() bool {
	return s == StatusActive
}

// CanInitialize returns true if an init attempt is permitted.
// Error is included so a failed plugin can be retried.
func (s Status) CanInitialize() bool {
	return s == StatusRegistered || s == StatusError
}
