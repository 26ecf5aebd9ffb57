package event

import "time"

// Power-up event topics.
const (
	// TopicPowerUpActivated is published when an effect is applied.
	TopicPowerUpActivated Topic = "powerup.activated"

	// TopicPowerUpUpdated is published when a per-tick update modified state.
	TopicPowerUpUpdated Topic = "powerup.updated"

	// TopicPowerUpDeactivated is published when an effect is removed.
	TopicPowerUpDeactivated Topic = "powerup.deactivated"

	// TopicPowerUpConflict is published when an activation hits a
	// conflicting active power-up.
	TopicPowerUpConflict Topic = "powerup.conflict"

	// TopicPowerUpStacked is published when an activation stacks on an
	// already-active power-up of the same type.
	TopicPowerUpStacked Topic = "powerup.stacked"
)

// PowerUpActivated is published when an effect is applied.
type PowerUpActivated struct {
	// PluginName is the unique plugin identifier.
	PluginName string

	// ActivationID identifies this activation.
	ActivationID string

	// Duration is how long the effect stays active. Zero means the
	// effect does not expire on its own.
	Duration time.Duration
}

// PowerUpUpdated is published when a per-tick update modified game state.
type PowerUpUpdated struct {
	// PluginName is the unique plugin identifier.
	PluginName string

	// Changes is the number of state changes the update recorded.
	Changes int
}

// PowerUpDeactivated is published when an effect is removed.
type PowerUpDeactivated struct {
	// PluginName is the unique plugin identifier.
	PluginName string

	// ActivationID identifies the activation that ended.
	ActivationID string

	// Reason explains why the effect was removed.
	Reason string
}

// Deactivation reasons.
const (
	ReasonExpired   = "expired"
	ReasonReplaced  = "replaced"
	ReasonRequested = "requested"
	ReasonShutdown  = "shutdown"
)

// PowerUpConflict is published when an activation hits a conflicting
// active power-up.
type PowerUpConflict struct {
	// PluginName is the plugin that attempted to activate.
	PluginName string

	// ConflictsWith is the active plugin it conflicted with.
	ConflictsWith string

	// Resolved indicates whether the conflict handler cleared the way
	// for the new activation.
	Resolved bool
}

// PowerUpStacked is published when an activation stacks on an active
// power-up of the same type.
type PowerUpStacked struct {
	// PluginName is the unique plugin identifier.
	PluginName string

	// Stacks is the live stack count after this activation.
	Stacks int
}
