package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/tui/styles"
)

// ChatPanel is the follow-up conversation for one card: the exchange so
// far, the reply being streamed, and an input line.
type ChatPanel struct {
	visible bool
	input   textinput.Model
	log     viewport.Model
	spinner spinner.Model

	item      domain.Item
	history   []domain.ChatMessage
	pending   string // prompt in flight
	streaming string // reply accumulated so far
	busy      bool

	width  int
	height int
}

// NewChatPanel creates a new chat panel
func NewChatPanel() ChatPanel {
	ti := textinput.New()
	ti.Placeholder = "Ask about this card..."
	ti.CharLimit = 2000
	ti.Prompt = "› "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	return ChatPanel{
		input:   ti,
		log:     viewport.New(0, 0),
		spinner: sp,
	}
}

// Show opens the panel for item with its stored history
func (p *ChatPanel) Show(item domain.Item, history []domain.ChatMessage) tea.Cmd {
	if p.item.GlobalIndex != item.GlobalIndex || !p.busy {
		p.pending = ""
		p.streaming = ""
		p.busy = false
	}
	p.visible = true
	p.item = item
	p.history = history
	p.input.SetValue("")
	p.input.Focus()
	p.refresh()
	return textinput.Blink
}

// Hide dismisses the panel. A reply in flight keeps streaming.
func (p *ChatPanel) Hide() {
	p.visible = false
	p.input.Blur()
}

// IsVisible returns whether the panel is shown
func (p ChatPanel) IsVisible() bool {
	return p.visible
}

// Item returns the card under discussion
func (p ChatPanel) Item() domain.Item {
	return p.item
}

// Busy reports whether a reply is in flight
func (p ChatPanel) Busy() bool {
	return p.busy
}

// SetSize updates the component dimensions
func (p *ChatPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
	p.input.Width = width - 8
	p.log.Width = width - 4
	p.log.Height = height - 6
	if p.log.Height < 1 {
		p.log.Height = 1
	}
	p.refresh()
}

// Start records prompt as in flight and clears the input
func (p *ChatPanel) Start(prompt string) tea.Cmd {
	p.pending = prompt
	p.streaming = ""
	p.busy = true
	p.input.SetValue("")
	p.refresh()
	return p.spinner.Tick
}

// SetStreaming updates the reply being received for index
func (p *ChatPanel) SetStreaming(index int, content string) {
	if index != p.item.GlobalIndex {
		return
	}
	p.streaming = content
	p.refresh()
}

// Finish ends the exchange for index and shows the stored history
func (p *ChatPanel) Finish(index int, history []domain.ChatMessage) {
	if index != p.item.GlobalIndex {
		return
	}
	p.busy = false
	p.pending = ""
	p.streaming = ""
	p.history = history
	p.refresh()
}

// Update handles input events, returns (panel, cmd, submitted prompt)
func (p ChatPanel) Update(msg tea.Msg) (ChatPanel, tea.Cmd, string) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !p.busy {
			return p, nil, ""
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		p.refresh()
		return p, cmd, ""

	case tea.KeyMsg:
		if !p.visible {
			return p, nil, ""
		}
		switch msg.String() {
		case "enter":
			prompt := strings.TrimSpace(p.input.Value())
			if prompt == "" || p.busy {
				return p, nil, ""
			}
			return p, nil, prompt
		case "esc":
			p.Hide()
			return p, nil, ""
		case "pgup":
			p.log.ViewUp()
			return p, nil, ""
		case "pgdown":
			p.log.ViewDown()
			return p, nil, ""
		}
	}

	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd, ""
}

func (p *ChatPanel) refresh() {
	width := p.log.Width
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	for _, m := range p.history {
		b.WriteString(renderChatMessage(m, width))
		b.WriteString("\n\n")
	}
	if p.pending != "" {
		b.WriteString(renderChatMessage(domain.ChatMessage{Role: domain.ChatRoleUser, Content: p.pending}, width))
		b.WriteString("\n\n")
		if p.streaming != "" {
			b.WriteString(styles.AssistantMsgStyle.Width(width).Render(p.streaming))
		} else {
			b.WriteString(p.spinner.View() + styles.DimStyle.Render(" thinking"))
		}
	}
	if b.Len() == 0 {
		b.WriteString(styles.DimStyle.Render("No questions yet."))
	}

	p.log.SetContent(strings.TrimRight(b.String(), "\n"))
	p.log.GotoBottom()
}

func renderChatMessage(m domain.ChatMessage, width int) string {
	switch {
	case m.IsUser():
		return styles.UserMsgStyle.Width(width).Render("You: " + m.Content)
	case m.Failed:
		return styles.FailedMsgStyle.Width(width).Render(m.Content)
	default:
		return styles.AssistantMsgStyle.Width(width).Render(m.Content)
	}
}

// View renders the chat panel
func (p ChatPanel) View() string {
	if !p.visible {
		return ""
	}

	question := styles.Truncate(strings.TrimPrefix(p.item.Question, "Q: "), p.width-8)
	content := lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render(question),
		p.log.View(),
		"",
		p.input.View(),
	)
	return styles.ModalStyle.Width(p.width - 2).Render(content)
}
