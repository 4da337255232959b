package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/tui/styles"
)

// Layout constants for the card view
const (
	CardBorderHeight = 2
	CardChromeWidth  = 4 // border + horizontal padding
	CardHeaderHeight = 2 // status line + blank
	CardMinWidth     = 20
)

// CardView displays one card: a status line, the question, and the
// answer rendered as markdown in a scrollable body.
type CardView struct {
	viewport viewport.Model

	markdownStyle string
	renderer      *glamour.TermRenderer
	rendererWidth int

	card     *domain.Card
	item     domain.Item
	position int
	total    int

	width        int
	height       int
	showThinking bool
	leaving      int // direction of a pending move, 0 if none

	// rendered body key; avoids re-rendering markdown on every frame
	renderedIndex    int
	renderedWidth    int
	renderedThinking bool
}

// NewCardView creates a card view. markdownStyle is a glamour standard
// style name ("dark", "light", "notty").
func NewCardView(markdownStyle string) CardView {
	if markdownStyle == "" {
		markdownStyle = "dark"
	}
	return CardView{
		viewport:      viewport.New(0, 0),
		markdownStyle: markdownStyle,
		renderedIndex: -1,
	}
}

// SetSize updates the component dimensions
func (c *CardView) SetSize(width, height int) {
	c.width = width
	c.height = height
	c.viewport.Width = c.contentWidth()
	c.viewport.Height = c.bodyHeight()
	c.rerender()
}

// SetCard shows card. Flags are read from item; only a different card or
// width re-renders the body.
func (c *CardView) SetCard(card *domain.Card, item domain.Item, position, total int) {
	changed := c.card == nil || card == nil || c.card.GlobalIndex != card.GlobalIndex
	c.card = card
	c.item = item
	c.position = position
	c.total = total
	c.leaving = 0
	if changed {
		c.viewport.GotoTop()
	}
	c.rerender()
}

// Clear removes the card
func (c *CardView) Clear() {
	c.card = nil
	c.leaving = 0
	c.renderedIndex = -1
	c.viewport.SetContent("")
}

// HasCard returns true if a card is displayed
func (c CardView) HasCard() bool {
	return c.card != nil
}

// SetLeaving marks a move in progress in direction dir (-1 or 1)
func (c *CardView) SetLeaving(dir int) {
	c.leaving = dir
}

// ToggleThinking shows or hides the reasoning section. It returns false
// when the card has none.
func (c *CardView) ToggleThinking() bool {
	if c.card == nil || !c.card.HasThinking() {
		return false
	}
	c.showThinking = !c.showThinking
	c.rerender()
	return true
}

// ShowingThinking reports whether the reasoning section is visible
func (c CardView) ShowingThinking() bool {
	return c.showThinking
}

// ScrollUp scrolls the body up n lines
func (c *CardView) ScrollUp(n int) {
	c.viewport.LineUp(n)
}

// ScrollDown scrolls the body down n lines
func (c *CardView) ScrollDown(n int) {
	c.viewport.LineDown(n)
}

// PageUp scrolls the body up one page
func (c *CardView) PageUp() {
	c.viewport.ViewUp()
}

// PageDown scrolls the body down one page
func (c *CardView) PageDown() {
	c.viewport.ViewDown()
}

func (c CardView) contentWidth() int {
	w := c.width - CardChromeWidth
	if w < CardMinWidth {
		w = CardMinWidth
	}
	return w
}

func (c CardView) bodyHeight() int {
	h := c.height - CardBorderHeight - CardHeaderHeight - c.questionHeight() - 1 // scroll line
	if h < 1 {
		h = 1
	}
	return h
}

func (c CardView) questionHeight() int {
	if c.card == nil {
		return 0
	}
	return lipgloss.Height(c.renderQuestion())
}

func (c *CardView) rerender() {
	if c.card == nil {
		return
	}
	width := c.contentWidth()
	c.viewport.Width = width
	c.viewport.Height = c.bodyHeight()
	if c.renderedIndex == c.card.GlobalIndex && c.renderedWidth == width && c.renderedThinking == c.showThinking {
		return
	}

	body := c.renderMarkdown(c.card.Answer, width)
	if c.showThinking && c.card.HasThinking() {
		thinking := styles.ThinkingStyle.Width(width - 2).Render(c.card.Thinking)
		body = styles.DimStyle.Render("Reasoning") + "\n" + thinking + "\n\n" + body
	}
	c.viewport.SetContent(body)

	c.renderedIndex = c.card.GlobalIndex
	c.renderedWidth = width
	c.renderedThinking = c.showThinking
}

// renderMarkdown renders text with glamour, falling back to wrapped plain
// text if the renderer cannot be built.
func (c *CardView) renderMarkdown(text string, width int) string {
	if c.renderer == nil || c.rendererWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(c.markdownStyle),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			c.renderer = nil
			return lipgloss.NewStyle().Width(width).Render(text)
		}
		c.renderer = r
		c.rendererWidth = width
	}
	out, err := c.renderer.Render(text)
	if err != nil {
		return lipgloss.NewStyle().Width(width).Render(text)
	}
	return strings.Trim(out, "\n")
}

func (c CardView) renderQuestion() string {
	return styles.QuestionStyle.Width(c.contentWidth()).Render(c.card.Question)
}

func (c CardView) renderStatus() string {
	var parts []string
	parts = append(parts, styles.BadgeStyle.Render(fmt.Sprintf("%d/%d", c.position+1, c.total)))
	if c.card.Category != "" {
		parts = append(parts, styles.DimBadgeStyle.Render(c.card.Category))
	}

	switch {
	case c.item.IsViewed:
		parts = append(parts, styles.ViewedMark)
	default:
		parts = append(parts, styles.NewMark)
	}
	if c.item.IsLiked {
		parts = append(parts, styles.LikedMark)
	}
	if c.card.HasThinking() && !c.showThinking {
		parts = append(parts, styles.DimStyle.Render("t: reasoning"))
	}

	switch c.leaving {
	case 1:
		parts = append(parts, styles.TransitionStyle.Render("→"))
	case -1:
		parts = append(parts, styles.TransitionStyle.Render("←"))
	}
	return strings.Join(parts, " ")
}

// View renders the component
func (c CardView) View() string {
	if c.card == nil {
		return ""
	}

	var scroll string
	if !c.viewport.AtBottom() {
		scroll = styles.DimStyle.Render(fmt.Sprintf("↓ %d%%", int(c.viewport.ScrollPercent()*100)))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		c.renderStatus(),
		"",
		c.renderQuestion(),
		c.viewport.View(),
		scroll,
	)

	style := styles.ActiveBorder
	if c.leaving != 0 {
		style = styles.InactiveBorder
	}
	return style.Padding(0, 1).Width(c.contentWidth() + 2).Render(content)
}
