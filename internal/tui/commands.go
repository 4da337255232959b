package tui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/navigator"
)

// Command factories for async operations

const (
	loadTimeout  = 60 * time.Second
	chatTimeout  = 5 * time.Minute
	likedTimeout = 30 * time.Second
)

// LoadDeckCmd describes the catalog and builds a fresh deck
func LoadDeckCmd(nav Navigator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		err := nav.Load(ctx)
		switch {
		case errors.Is(err, navigator.ErrStale):
			// a newer load owns the controller
			return nil
		case errors.Is(err, navigator.ErrTransitionInProgress):
			return LoadBusyMsg{}
		}
		return DeckLoadedMsg{Err: err}
	}
}

// TransitionCmd completes a started move after delay
func TransitionCmd(t navigator.Transition, delay time.Duration) tea.Cmd {
	if delay <= 0 {
		return func() tea.Msg {
			return TransitionDoneMsg{Transition: t}
		}
	}
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return TransitionDoneMsg{Transition: t}
	})
}

// ToggleLikeCmd flips the like on the current card
func ToggleLikeCmd(nav Navigator) tea.Cmd {
	return func() tea.Msg {
		liked, err := nav.ToggleLike()
		if errors.Is(err, navigator.ErrNotReady) {
			return nil
		}
		return LikeToggledMsg{Liked: liked, Err: err}
	}
}

// AskCmd sends a follow-up question with streaming updates using channels.
// Uses a continuation pattern to pump every chunk to the UI. Without
// stream the reply arrives as a single ChatDoneMsg.
func AskCmd(svc ChatService, item domain.Item, prompt string, stream bool) tea.Cmd {
	return func() tea.Msg {
		chunks := make(chan string)
		done := make(chan ChatDoneMsg, 1)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), chatTimeout)
			defer cancel()

			var onChunk func(string)
			if stream {
				onChunk = func(accumulated string) {
					select {
					case chunks <- accumulated:
					case <-ctx.Done():
					}
				}
			}
			msg, err := svc.Ask(ctx, item, prompt, onChunk)
			done <- ChatDoneMsg{Index: item.GlobalIndex, Message: msg, Err: err}
			close(chunks)
		}()

		return readChatStream(item.GlobalIndex, chunks, done)
	}
}

// readChatStream reads one chunk and embeds the continuation command.
// Once the stream closes it returns the final ChatDoneMsg.
func readChatStream(index int, chunks <-chan string, done <-chan ChatDoneMsg) tea.Msg {
	content, ok := <-chunks
	if !ok {
		return <-done
	}
	return ChatChunkMsg{
		Index:   index,
		Content: content,
		NextCmd: func() tea.Msg {
			return readChatStream(index, chunks, done)
		},
	}
}

// LoadLikedCmd loads the liked cards for the liked list
func LoadLikedCmd(src LikedSource) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), likedTimeout)
		defer cancel()

		items, err := src.LoadLiked(ctx)
		return LikedLoadedMsg{Items: items, Err: err}
	}
}

// ListenVersionCmd waits for the next remote version notification
func ListenVersionCmd(versions <-chan int) tea.Cmd {
	if versions == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-versions
		if !ok {
			return nil
		}
		return NewVersionMsg{Version: v}
	}
}

// ClearStatusCmd returns a command that clears status after a delay
func ClearStatusCmd(delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
