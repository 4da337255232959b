package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quizdeck/internal/navigator"
)

// handleKeyMsg handles keyboard input
func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Handle mode-specific keys
	switch m.Mode {
	case ModeHelp:
		if key.Matches(msg, Keys.Escape, Keys.Help, Keys.Quit) {
			m.Mode = ModeCards
		}
		return m, nil

	case ModeChat:
		return m.handleChatKey(msg)

	case ModeLiked:
		var cmd tea.Cmd
		m.Liked, cmd = m.Liked.Update(msg)
		if !m.Liked.IsVisible() {
			m.Mode = ModeCards
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.Mode = ModeHelp
		return m, nil

	case key.Matches(msg, Keys.Next):
		return m.beginMove(navigator.Forward)

	case key.Matches(msg, Keys.Prev):
		return m.beginMove(navigator.Backward)

	case key.Matches(msg, Keys.Like):
		if m.pending != nil || m.Loading {
			return m, nil
		}
		return m, ToggleLikeCmd(m.Nav)

	case key.Matches(msg, Keys.Thinking):
		if !m.Card.ToggleThinking() {
			return m, m.setStatus("No reasoning for this card", false)
		}
		return m, nil

	case key.Matches(msg, Keys.Chat):
		cur := m.view.Current
		if cur == nil || m.pending != nil {
			return m, nil
		}
		m.Mode = ModeChat
		cmd := m.Chat.Show(cur.Item, m.ChatSvc.History(cur.Item.GlobalIndex))
		if !m.ChatSvc.Enabled() {
			return m, tea.Batch(cmd, m.setStatus("Chat is not configured", true))
		}
		return m, cmd

	case key.Matches(msg, Keys.Liked):
		m.Mode = ModeLiked
		return m, tea.Batch(m.Liked.Show(), LoadLikedCmd(m.Likes))

	case key.Matches(msg, Keys.Reload):
		if m.Loading || m.pending != nil {
			return m, nil
		}
		m.Loading = true
		m.StatusMsg = ""
		return m, tea.Batch(LoadDeckCmd(m.Nav), m.Spinner.Tick)

	case key.Matches(msg, Keys.Up):
		m.Card.ScrollUp(1)
	case key.Matches(msg, Keys.Down):
		m.Card.ScrollDown(1)
	case key.Matches(msg, Keys.PageUp):
		m.Card.PageUp()
	case key.Matches(msg, Keys.PageDown):
		m.Card.PageDown()
	}

	return m, nil
}

// beginMove starts a transition; it completes after the transition delay
func (m Model) beginMove(dir navigator.Direction) (tea.Model, tea.Cmd) {
	if m.pending != nil {
		return m, nil
	}

	t, err := m.Nav.Begin(dir)
	switch {
	case errors.Is(err, navigator.ErrAtBoundary):
		if dir == navigator.Backward {
			return m, m.setStatus("This is the first card", false)
		}
		return m, m.setStatus("End of deck, press r for a new one", false)
	case errors.Is(err, navigator.ErrNotReady), errors.Is(err, navigator.ErrTransitionInProgress):
		return m, nil
	case err != nil:
		return m, m.setStatus(err.Error(), true)
	}

	m.pending = &t
	m.Card.SetLeaving(int(dir))
	return m, TransitionCmd(t, m.opts.TransitionDelay)
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, Keys.ClearChat) {
		if m.Chat.Busy() {
			return m, nil
		}
		item := m.Chat.Item()
		m.ChatSvc.Clear(item.GlobalIndex)
		m.Chat.Finish(item.GlobalIndex, nil)
		return m, nil
	}

	var cmd tea.Cmd
	var prompt string
	m.Chat, cmd, prompt = m.Chat.Update(msg)
	if !m.Chat.IsVisible() {
		m.Mode = ModeCards
		return m, cmd
	}
	if prompt == "" {
		return m, cmd
	}

	item := m.Chat.Item()
	return m, tea.Batch(cmd, m.Chat.Start(prompt), AskCmd(m.ChatSvc, item, prompt, m.opts.StreamChat))
}
