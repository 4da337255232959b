package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/navigator"
)

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// DeckLoadedMsg signals that a load finished. Err is set when the
// controller ended up exhausted.
type DeckLoadedMsg struct {
	Err error
}

// TransitionDoneMsg fires when the transition delay has elapsed
type TransitionDoneMsg struct {
	Transition navigator.Transition
}

// LikeToggledMsg reports the outcome of a like toggle
type LikeToggledMsg struct {
	Liked bool
	Err   error // persisting failed; the toggle still stands
}

// ChatChunkMsg carries the reply accumulated so far
type ChatChunkMsg struct {
	Index   int
	Content string
	NextCmd tea.Cmd
}

// ChatDoneMsg signals the end of a chat exchange
type ChatDoneMsg struct {
	Index   int
	Message domain.ChatMessage
	Err     error
}

// LikedLoadedMsg delivers the liked cards for the liked list
type LikedLoadedMsg struct {
	Items []domain.Item
	Err   error
}

// LoadBusyMsg signals a load refused because a move was in progress
type LoadBusyMsg struct{}

// NewVersionMsg signals that the remote catalog moved past the local data version
type NewVersionMsg struct {
	Version int
}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}
