package plugin

// Op identifies one of the closed set of effect operations Execute can
// dispatch. Dispatching by enumeration instead of method-name strings
// keeps "unknown method" a compile-time concern; an out-of-range Op is
// still rejected as a failed result, never a crash.
type Op int

// Effect operations.
const (
	// OpApplyEffect applies the plugin's effect to game state.
	OpApplyEffect Op = iota

	// OpRemoveEffect removes the plugin's effect from game state.
	OpRemoveEffect

	// OpUpdateEffect advances the plugin's effect by one tick.
	OpUpdateEffect

	// OpHandleConflict asks the plugin to resolve a conflict with an
	// already-active power-up.
	OpHandleConflict
)

// String returns a string representation of the operation.
func (o Op) String() string {
	switch o {
	case OpApplyEffect:
		return "apply_effect"
	case OpRemoveEffect:
		return "remove_effect"
	case OpUpdateEffect:
		return "update_effect"
	case OpHandleConflict:
		return "handle_conflict"
	default:
		return "unknown"
	}
}

// Valid returns true if the operation is a member of the closed set.
func (o Op) Valid() bool {
	return o >= OpApplyEffect && o <= OpHandleConflict
}

// Effector is the operation surface of an effect plugin. Execute
// dispatches Ops to it; plugins that do not implement it reject every
// operation as unsupported.
type Effector interface {
	// ApplyEffect applies the effect to the game state in the context.
	ApplyEffect(ec *ExecContext) EffectResult

	// RemoveEffect removes the effect from the game state.
	RemoveEffect(ec *ExecContext) EffectResult

	// UpdateEffect advances the effect by one tick.
	UpdateEffect(ec *ExecContext) EffectResult

	// HandleConflict resolves a conflict with an active power-up.
	HandleConflict(ec *ExecContext) EffectResult
}
