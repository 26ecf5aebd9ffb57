package game

import (
	"errors"
	"fmt"
)

// Patch errors.
var (
	// ErrBallNotFound is returned when a patch references a ball that is
	// no longer in play.
	ErrBallNotFound = errors.New("ball not found")

	// ErrNilState is returned when a patch is applied to a nil state.
	ErrNilState = errors.New("state is nil")
)

// ChangeKind identifies what a single change modified.
type ChangeKind int

const (
	// ChangePaddleWidth records a paddle width change.
	ChangePaddleWidth ChangeKind = iota
	// ChangePaddleSpeed records a paddle speed change.
	ChangePaddleSpeed
	// ChangeBallSpeed records a ball speed-multiplier change.
	ChangeBallSpeed
	// ChangeBallRadius records a ball radius change.
	ChangeBallRadius
	// ChangeAddBall records a ball added to play.
	ChangeAddBall
	// ChangeRemoveBall records a ball removed from play.
	ChangeRemoveBall
)

// String returns a string representation of the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangePaddleWidth:
		return "paddle.width"
	case ChangePaddleSpeed:
		return "paddle.speed"
	case ChangeBallSpeed:
		return "ball.speed"
	case ChangeBallRadius:
		return "ball.radius"
	case ChangeAddBall:
		return "ball.add"
	case ChangeRemoveBall:
		return "ball.remove"
	default:
		return "unknown"
	}
}

// Change is one recorded state mutation. Numeric kinds carry the before
// and after values; entity kinds carry a snapshot of the ball involved.
type Change struct {
	Kind   ChangeKind
	BallID string
	Before float64
	After  float64
	Ball   *Ball
}

// Patch records the mutations an effect made so the caller can revert
// them later. A patch is plain data: it can be inspected, logged, and
// tested independently of the effect that produced it. Reverting is
// always the caller's decision; nothing applies a patch automatically.
type Patch struct {
	changes []Change
}

// NewPatch creates an empty patch.
func NewPatch() *Patch {
	return &Patch{}
}

// Empty returns true if the patch records no changes.
func (p *Patch) Empty() bool {
	return p == nil || len(p.changes) == 0
}

// Len returns the number of recorded changes.
func (p *Patch) Len() int {
	if p == nil {
		return 0
	}
	return len(p.changes)
}

// Changes returns a copy of the recorded changes in record order.
func (p *Patch) Changes() []Change {
	if p == nil {
		return nil
	}
	out := make([]Change, len(p.changes))
	copy(out, p.changes)
	return out
}

// Record appends a change to the patch.
func (p *Patch) Record(c Change) {
	p.changes = append(p.changes, c)
}

// RecordPaddleWidth records a paddle width change.
func (p *Patch) RecordPaddleWidth(before, after float64) {
	p.Record(Change{Kind: ChangePaddleWidth, Before: before, After: after})
}

// RecordPaddleSpeed records a paddle speed change.
func (p *Patch) RecordPaddleSpeed(before, after float64) {
	p.Record(Change{Kind: ChangePaddleSpeed, Before: before, After: after})
}

// RecordBallSpeed records a ball speed-multiplier change.
func (p *Patch) RecordBallSpeed(id string, before, after float64) {
	p.Record(Change{Kind: ChangeBallSpeed, BallID: id, Before: before, After: after})
}

// RecordBallRadius records a ball radius change.
func (p *Patch) RecordBallRadius(id string, before, after float64) {
	p.Record(Change{Kind: ChangeBallRadius, BallID: id, Before: before, After: after})
}

// RecordAddBall records a ball added to play.
func (p *Patch) RecordAddBall(b *Ball) {
	p.Record(Change{Kind: ChangeAddBall, BallID: b.ID, Ball: b})
}

// RecordRemoveBall records a ball removed from play, keeping a snapshot
// so a revert can restore it.
func (p *Patch) RecordRemoveBall(b *Ball) {
	snapshot := *b
	p.Record(Change{Kind: ChangeRemoveBall, BallID: b.ID, Ball: &snapshot})
}

// Revert undoes the recorded changes in reverse record order. Changes
// whose target ball has since left play are reported as errors but do
// not stop the remaining changes from reverting.
func (p *Patch) Revert(s *State) error {
	if p == nil || len(p.changes) == 0 {
		return nil
	}
	if s == nil {
		return ErrNilState
	}

	var revertErrors []error
	for i := len(p.changes) - 1; i >= 0; i-- {
		if err := p.undo(s, p.changes[i]); err != nil {
			revertErrors = append(revertErrors, err)
		}
	}
	return errors.Join(revertErrors...)
}

// Apply redoes the recorded changes in record order. Used when a caller
// reverts a multi-effect transaction and later decides to replay it.
func (p *Patch) Apply(s *State) error {
	if p == nil || len(p.changes) == 0 {
		return nil
	}
	if s == nil {
		return ErrNilState
	}

	var applyErrors []error
	for _, c := range p.changes {
		if err := p.redo(s, c); err != nil {
			applyErrors = append(applyErrors, err)
		}
	}
	return errors.Join(applyErrors...)
}

func (p *Patch) undo(s *State, c Change) error {
	switch c.Kind {
	case ChangePaddleWidth:
		s.Paddle().Width = c.Before
	case ChangePaddleSpeed:
		s.Paddle().Speed = c.Before
	case ChangeBallSpeed:
		ball, ok := s.FindBall(c.BallID)
		if !ok {
			return fmt.Errorf("revert %s %q: %w", c.Kind, c.BallID, ErrBallNotFound)
		}
		ball.Speed = c.Before
	case ChangeBallRadius:
		ball, ok := s.FindBall(c.BallID)
		if !ok {
			return fmt.Errorf("revert %s %q: %w", c.Kind, c.BallID, ErrBallNotFound)
		}
		ball.Radius = c.Before
	case ChangeAddBall:
		if !s.RemoveBall(c.BallID) {
			return fmt.Errorf("revert %s %q: %w", c.Kind, c.BallID, ErrBallNotFound)
		}
	case ChangeRemoveBall:
		restored := *c.Ball
		s.AddBall(&restored)
	}
	return nil
}

func (p *Patch) redo(s *State, c Change) error {
	switch c.Kind {
	case ChangePaddleWidth:
		s.Paddle().Width = c.After
	case ChangePaddleSpeed:
		s.Paddle().Speed = c.After
	case ChangeBallSpeed:
		ball, ok := s.FindBall(c.BallID)
		if !ok {
			return fmt.Errorf("apply %s %q: %w", c.Kind, c.BallID, ErrBallNotFound)
		}
		ball.Speed = c.After
	case ChangeBallRadius:
		ball, ok := s.FindBall(c.BallID)
		if !ok {
			return fmt.Errorf("apply %s %q: %w", c.Kind, c.BallID, ErrBallNotFound)
		}
		ball.Radius = c.After
	case ChangeAddBall:
		added := *c.Ball
		s.AddBall(&added)
	case ChangeRemoveBall:
		if !s.RemoveBall(c.BallID) {
			return fmt.Errorf("apply %s %q: %w", c.Kind, c.BallID, ErrBallNotFound)
		}
	}
	return nil
}
