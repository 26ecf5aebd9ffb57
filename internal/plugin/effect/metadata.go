package effect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidMetadata rejects malformed power-up descriptors.
var ErrInvalidMetadata = errors.New("invalid power-up metadata")

// Rarity is a power-up drop tier.
type Rarity int

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityEpic
	RarityLegendary
)

// String returns a string representation of the rarity.
func (r Rarity) String() string {
	switch r {
	case RarityCommon:
		return "common"
	case RarityUncommon:
		return "uncommon"
	case RarityRare:
		return "rare"
	case RarityEpic:
		return "epic"
	case RarityLegendary:
		return "legendary"
	default:
		return "unknown"
	}
}

// ParseRarity parses a rarity name (case-insensitive).
// Returns RarityCommon and an error for unknown names.
func ParseRarity(s string) (Rarity, error) {
	switch strings.ToLower(s) {
	case "common":
		return RarityCommon, nil
	case "uncommon":
		return RarityUncommon, nil
	case "rare":
		return RarityRare, nil
	case "epic":
		return RarityEpic, nil
	case "legendary":
		return RarityLegendary, nil
	default:
		return RarityCommon, fmt.Errorf("%w: unknown rarity %q", ErrInvalidMetadata, s)
	}
}

// Descriptor describes how an effect interacts with other effects.
type Descriptor struct {
	// ConflictsWith lists power-up types that cannot be active at the
	// same time as this one.
	ConflictsWith []string

	// Stacks allows multiple simultaneous activations of this type.
	Stacks bool

	// MaxStacks caps simultaneous activations when Stacks is set.
	// Zero means no cap.
	MaxStacks int

	// Priority orders conflict resolution; higher wins.
	Priority int
}

// Metadata is the static descriptor a power-up ships with. Type doubles
// as the plugin name; the rest feeds the HUD and drop tables.
type Metadata struct {
	// Type is the canonical power-up identifier, e.g. "multiball".
	Type string

	// Name is the human-readable display name.
	Name string

	// Description explains the effect to the player.
	Description string

	// Icon names the HUD glyph for this power-up.
	Icon string

	// Color is the hex accent color, e.g. "#22cc88". Optional; the
	// rarity tier supplies a fallback.
	Color string

	// Rarity is the drop tier.
	Rarity Rarity

	// Duration is how long one activation stays in effect. Zero means
	// the effect does not expire on its own.
	Duration time.Duration

	// Version is the plugin version string.
	Version string

	// Effect describes conflict and stacking behavior.
	Effect Descriptor
}

// Validate checks the descriptor before it backs a plugin.
func (md Metadata) Validate() error {
	if md.Type == "" {
		return fmt.Errorf("%w: empty type", ErrInvalidMetadata)
	}
	if md.Name == "" {
		return fmt.Errorf("%w: empty display name", ErrInvalidMetadata)
	}
	if md.Version == "" {
		return fmt.Errorf("%w: empty version", ErrInvalidMetadata)
	}
	if md.Duration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidMetadata)
	}
	if md.Color != "" {
		if _, err := colorful.Hex(md.Color); err != nil {
			return fmt.Errorf("%w: color %q: %v", ErrInvalidMetadata, md.Color, err)
		}
	}
	if md.Rarity < RarityCommon || md.Rarity > RarityLegendary {
		return fmt.Errorf("%w: rarity out of range", ErrInvalidMetadata)
	}
	if md.Effect.MaxStacks < 0 {
		return fmt.Errorf("%w: negative max stacks", ErrInvalidMetadata)
	}
	if !md.Effect.Stacks && md.Effect.MaxStacks > 1 {
		return fmt.Errorf("%w: max stacks set without stacking", ErrInvalidMetadata)
	}
	for _, other := range md.Effect.ConflictsWith {
		if other == "" {
			return fmt.Errorf("%w: empty conflict entry", ErrInvalidMetadata)
		}
		if other == md.Type {
			return fmt.Errorf("%w: %q conflicts with itself", ErrInvalidMetadata, md.Type)
		}
	}
	return nil
}

// ConflictsWith returns true if the descriptor names the given type as
// conflicting.
func (md Metadata) ConflictsWith(powerUpType string) bool {
	for _, other := range md.Effect.ConflictsWith {
		if other == powerUpType {
			return true
		}
	}
	return false
}

// rarityAccent is the fallback accent color per tier.
var rarityAccent = map[Rarity]string{
	RarityCommon:    "#9e9e9e",
	RarityUncommon:  "#4caf50",
	RarityRare:      "#2196f3",
	RarityEpic:      "#9c27b0",
	RarityLegendary: "#ff9800",
}

// AccentColor returns the effect color for HUD use, falling back to the
// rarity tier's accent when the descriptor carries none.
func (md Metadata) AccentColor() colorful.Color {
	if md.Color != "" {
		if c, err := colorful.Hex(md.Color); err == nil {
			return c
		}
	}
	hex, ok := rarityAccent[md.Rarity]
	if !ok {
		hex = rarityAccent[RarityCommon]
	}
	c, _ := colorful.Hex(hex)
	return c
}

// clone returns a copy that shares no slices with the original.
func (md Metadata) clone() Metadata {
	md.Effect.ConflictsWith = append([]string(nil), md.Effect.ConflictsWith...)
	return md
}
