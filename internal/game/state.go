// Package game defines the session entities power-up plugins observe and
// mutate: balls in play, the paddle, the block field, and the registry of
// currently active power-ups. The plugin engine only forwards references to
// this state; it never reads or writes it itself.
package game

import (
	"time"

	"github.com/google/uuid"
)

// Default entity dimensions.
const (
	DefaultBallRadius   = 6.0
	DefaultBallSpeed    = 1.0
	DefaultPaddleWidth  = 100.0
	DefaultPaddleHeight = 16.0
	DefaultPaddleSpeed  = 1.0
	DefaultBlockWidth   = 60.0
	DefaultBlockHeight  = 24.0
)

// Ball is a ball in play. Speed is a multiplier applied by the physics
// step on top of the velocity vector, so effects can slow or accelerate
// a ball without touching its direction.
type Ball struct {
	ID     string
	X, Y   float64
	VX, VY float64
	Radius float64
	Speed  float64
}

// NewBall creates a ball at the given position with the given velocity.
func NewBall(x, y, vx, vy float64) *Ball {
	return &Ball{
		ID:     uuid.NewString(),
		X:      x,
		Y:      y,
		VX:     vx,
		VY:     vy,
		Radius: DefaultBallRadius,
		Speed:  DefaultBallSpeed,
	}
}

// Clone returns a copy of the ball with a fresh identity.
func (b *Ball) Clone() *Ball {
	clone := *b
	clone.ID = uuid.NewString()
	return &clone
}

// Paddle is the player paddle. A session has exactly one.
type Paddle struct {
	X, Y   float64
	Width  float64
	Height float64
	Speed  float64
}

// Block is one destructible block in the field.
type Block struct {
	ID        string
	X, Y      float64
	Width     float64
	Height    float64
	HitPoints int
	Destroyed bool
}

// NewBlock creates a block at the given position with one hit point.
func NewBlock(x, y float64) *Block {
	return &Block{
		ID:        uuid.NewString(),
		X:         x,
		Y:         y,
		Width:     DefaultBlockWidth,
		Height:    DefaultBlockHeight,
		HitPoints: 1,
	}
}

// ActivePowerUp is one live activation in the session's active-effects
// registry. Stacking is modeled as multiple entries sharing a Type.
type ActivePowerUp struct {
	// ActivationID uniquely identifies this activation.
	ActivationID string

	// Type is the plugin name that produced the activation.
	Type string

	// AppliedAt is when the effect was applied.
	AppliedAt time.Time

	// ExpiresAt is when the effect should be removed.
	// Zero means the effect does not expire on its own.
	ExpiresAt time.Time
}

// Expired reports whether the activation has passed its expiry.
func (a ActivePowerUp) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// State holds all session entities. It is owned by the session loop and
// is not safe for concurrent use.
type State struct {
	balls  []*Ball
	paddle *Paddle
	blocks []*Block
	active []ActivePowerUp
}

// NewState creates an empty state with a default paddle.
func NewState() *State {
	return &State{
		paddle: &Paddle{
			Width:  DefaultPaddleWidth,
			Height: DefaultPaddleHeight,
			Speed:  DefaultPaddleSpeed,
		},
	}
}

// Balls returns the balls currently in play.
// The slice is a copy; the elements are live.
func (s *State) Balls() []*Ball {
	out := make([]*Ball, len(s.balls))
	copy(out, s.balls)
	return out
}

// Paddle returns the player paddle.
func (s *State) Paddle() *Paddle {
	return s.paddle
}

// Blocks returns the block field.
// The slice is a copy; the elements are live.
func (s *State) Blocks() []*Block {
	out := make([]*Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// ActivePowerUps returns a copy of the active-effects registry.
func (s *State) ActivePowerUps() []ActivePowerUp {
	out := make([]ActivePowerUp, len(s.active))
	copy(out, s.active)
	return out
}

// AddBall adds a ball to play. Nil balls are ignored.
func (s *State) AddBall(b *Ball) {
	if b == nil {
		return
	}
	s.balls = append(s.balls, b)
}

// RemoveBall removes the ball with the given ID.
// Returns false if no such ball is in play.
func (s *State) RemoveBall(id string) bool {
	for i, b := range s.balls {
		if b.ID == id {
			s.balls = append(s.balls[:i], s.balls[i+1:]...)
			return true
		}
	}
	return false
}

// FindBall returns the ball with the given ID.
func (s *State) FindBall(id string) (*Ball, bool) {
	for _, b := range s.balls {
		if b.ID == id {
			return b, true
		}
	}
	return nil, false
}

// AddBlock adds a block to the field. Nil blocks are ignored.
func (s *State) AddBlock(b *Block) {
	if b == nil {
		return
	}
	s.blocks = append(s.blocks, b)
}

// Activate records a power-up activation in the registry.
func (s *State) Activate(p ActivePowerUp) {
	s.active = append(s.active, p)
}

// Deactivate removes the activation with the given ID.
// Returns false if no such activation exists.
func (s *State) Deactivate(activationID string) bool {
	for i, a := range s.active {
		if a.ActivationID == activationID {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return true
		}
	}
	return false
}

// ActiveByType returns all activations of the given power-up type.
func (s *State) ActiveByType(typ string) []ActivePowerUp {
	out := make([]ActivePowerUp, 0)
	for _, a := range s.active {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

// HasActive returns true if any activation of the given type is live.
func (s *State) HasActive(typ string) bool {
	for _, a := range s.active {
		if a.Type == typ {
			return true
		}
	}
	return false
}

// CountActive returns the number of live activations of the given type.
func (s *State) CountActive(typ string) int {
	count := 0
	for _, a := range s.active {
		if a.Type == typ {
			count++
		}
	}
	return count
}

// SetActiveExpiry updates the expiry of the activation with the given ID.
// Returns false if no such activation exists.
func (s *State) SetActiveExpiry(activationID string, expires time.Time) bool {
	for i := range s.active {
		if s.active[i].ActivationID == activationID {
			s.active[i].ExpiresAt = expires
			return true
		}
	}
	return false
}

// Expired returns the activations whose expiry has passed.
func (s *State) Expired(now time.Time) []ActivePowerUp {
	out := make([]ActivePowerUp, 0)
	for _, a := range s.active {
		if a.Expired(now) {
			out = append(out, a)
		}
	}
	return out
}
