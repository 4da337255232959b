package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quizdeck/internal/navigator"
	"github.com/mmcdole/quizdeck/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	bodyHeight := m.Height - HeaderHeight - FooterHeight
	var body string
	switch m.Mode {
	case ModeHelp:
		body = m.renderHelp(bodyHeight)
	case ModeChat:
		body = m.Chat.View()
	case ModeLiked:
		body = lipgloss.Place(m.Width, bodyHeight, lipgloss.Center, lipgloss.Center, m.Liked.View())
	default:
		body = m.renderBody(bodyHeight)
	}

	body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) renderHeader() string {
	parts := []string{styles.AccentStyle.Bold(true).Render("quizdeck")}

	info := m.view.Info
	if info.Size > 0 {
		parts = append(parts, styles.DimStyle.Render(fmt.Sprintf("%d cards · v%d", info.Size, info.Version)))
	}
	if info.FromCache {
		parts = append(parts, styles.DimBadgeStyle.Render("offline"))
	}
	if m.view.Staged {
		parts = append(parts, styles.DimStyle.Render("next deck ready"))
	}
	if m.Chat.Busy() && m.Mode != ModeChat {
		parts = append(parts, styles.DimStyle.Render("chat replying…"))
	}
	return lipgloss.NewStyle().MaxWidth(m.Width).Render(strings.Join(parts, "  "))
}

func (m Model) renderBody(height int) string {
	if m.Loading && !m.Card.HasCard() {
		msg := m.Spinner.View() + " Loading cards..."
		return lipgloss.Place(m.Width, height, lipgloss.Center, lipgloss.Center, msg)
	}

	if m.view.State == navigator.Exhausted || !m.Card.HasCard() {
		lines := []string{styles.TitleStyle.Render("No cards to show")}
		if m.view.Err != nil {
			lines = append(lines, styles.ErrorStyle.Render(describeLoadError(m.view.Err)))
		}
		lines = append(lines, styles.DimStyle.Render("r: retry   q: quit"))
		return lipgloss.Place(m.Width, height, lipgloss.Center, lipgloss.Center,
			lipgloss.JoinVertical(lipgloss.Center, lines...))
	}

	return m.Card.View()
}

func (m Model) renderHelp(height int) string {
	m.Help.ShowAll = true
	content := styles.ModalStyle.Render(
		styles.ModalTitleStyle.Render("Keys") + "\n" + m.Help.View(Keys),
	)
	return lipgloss.Place(m.Width, height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderFooter() string {
	if m.StatusMsg != "" {
		style := styles.SubtitleStyle
		if m.StatusIsErr {
			style = styles.ErrorStyle
		}
		return style.Render(styles.Truncate(m.StatusMsg, m.Width))
	}

	switch m.Mode {
	case ModeChat:
		return styles.HelpDescStyle.Render("enter: send  esc: close  C-l: clear  PgUp/PgDn: scroll")
	case ModeLiked:
		return styles.HelpDescStyle.Render("type to filter  ↑/↓: move  enter: answer  esc: close")
	}

	m.Help.ShowAll = false
	return m.Help.View(Keys)
}
