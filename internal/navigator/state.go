package navigator

import "errors"

// State is the controller's position in its lifecycle
type State int

const (
	Idle State = iota
	Loading
	Ready
	Transitioning
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Transitioning:
		return "transitioning"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Direction of a transition
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

var (
	// ErrAtBoundary is returned when moving past either end of the deck
	ErrAtBoundary = errors.New("no card in that direction")

	// ErrTransitionInProgress is returned when a transition or load is already running
	ErrTransitionInProgress = errors.New("transition already in progress")

	// ErrNotReady is returned when no deck is loaded
	ErrNotReady = errors.New("deck is not ready")

	// ErrStale is returned when a result belongs to a superseded generation
	ErrStale = errors.New("superseded by a newer navigation")
)

// Transition is a started move that must be completed with Complete
type Transition struct {
	Direction Direction
	From      int
	To        int  // Position after completion; 0 when rolling over
	Rollover  bool // Completing switches to the staged deck
	gen       uint64
}
