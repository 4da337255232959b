package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/search"
	"github.com/mmcdole/quizdeck/internal/tui/styles"
	"github.com/sahilm/fuzzy"
)

const maxLikedRows = 12

// LikedRow is one filtered entry with the question positions that matched
type LikedRow struct {
	Item           domain.Item
	Title          string
	MatchedIndexes []int
}

// LikedList is a modal over the liked cards with a fuzzy filter
type LikedList struct {
	visible bool
	loading bool
	err     error
	input   textinput.Model
	keys    ListKeyMap

	items   []domain.Item
	rows    []LikedRow
	cursor  int
	offset  int
	preview bool

	width  int
	height int
}

// NewLikedList creates a new liked list
func NewLikedList() LikedList {
	ti := textinput.New()
	ti.Placeholder = "Filter liked cards..."
	ti.CharLimit = 100
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return LikedList{
		input: ti,
		keys:  DefaultListKeyMap(),
	}
}

// Show opens the list in the loading state
func (l *LikedList) Show() tea.Cmd {
	l.visible = true
	l.loading = true
	l.err = nil
	l.preview = false
	l.input.SetValue("")
	l.input.Focus()
	return textinput.Blink
}

// Hide dismisses the list
func (l *LikedList) Hide() {
	l.visible = false
	l.input.Blur()
}

// IsVisible returns whether the list is shown
func (l LikedList) IsVisible() bool {
	return l.visible
}

// SetSize updates the component dimensions
func (l *LikedList) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.input.Width = l.modalWidth() - 8
}

// SetItems replaces the liked cards and reapplies the filter
func (l *LikedList) SetItems(items []domain.Item, err error) {
	l.loading = false
	l.err = err
	l.items = items
	l.applyFilter()
}

// Rows returns the filtered rows
func (l LikedList) Rows() []LikedRow {
	return l.rows
}

// Selected returns the row under the cursor
func (l LikedList) Selected() (LikedRow, bool) {
	if l.cursor < 0 || l.cursor >= len(l.rows) {
		return LikedRow{}, false
	}
	return l.rows[l.cursor], true
}

// Update handles input events
func (l LikedList) Update(msg tea.Msg) (LikedList, tea.Cmd) {
	if !l.visible {
		return l, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, l.keys.Escape):
			if l.preview {
				l.preview = false
				return l, nil
			}
			l.Hide()
			return l, nil
		case key.Matches(keyMsg, l.keys.Up):
			l.moveCursor(-1)
			return l, nil
		case key.Matches(keyMsg, l.keys.Down):
			l.moveCursor(1)
			return l, nil
		case key.Matches(keyMsg, l.keys.Home):
			l.moveCursor(-len(l.rows))
			return l, nil
		case key.Matches(keyMsg, l.keys.End):
			l.moveCursor(len(l.rows))
			return l, nil
		case key.Matches(keyMsg, l.keys.Preview):
			if len(l.rows) > 0 {
				l.preview = !l.preview
			}
			return l, nil
		}
	}

	prev := l.input.Value()
	var cmd tea.Cmd
	l.input, cmd = l.input.Update(msg)
	if l.input.Value() != prev {
		l.preview = false
		l.applyFilter()
	}
	return l, cmd
}

func (l *LikedList) moveCursor(delta int) {
	l.cursor += delta
	if l.cursor >= len(l.rows) {
		l.cursor = len(l.rows) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+maxLikedRows {
		l.offset = l.cursor - maxLikedRows + 1
	}
}

// applyFilter ranks the liked cards against the query and records which
// question characters matched for highlighting.
func (l *LikedList) applyFilter() {
	query := strings.TrimSpace(l.input.Value())
	results := search.Filter(l.items, query)

	l.rows = make([]LikedRow, len(results))
	for i, r := range results {
		title := search.QuestionText(r.Item)
		l.rows[i] = LikedRow{
			Item:           r.Item,
			Title:          title,
			MatchedIndexes: matchedIndexes(query, title),
		}
	}

	l.cursor = 0
	l.offset = 0
}

// matchedIndexes returns the byte offsets in title matched by query
func matchedIndexes(query, title string) []int {
	if query == "" {
		return nil
	}
	matches := fuzzy.Find(strings.ToLower(query), []string{strings.ToLower(title)})
	if len(matches) == 0 {
		return nil
	}
	return matches[0].MatchedIndexes
}

func (l LikedList) modalWidth() int {
	w := l.width * 3 / 4
	if w < 40 {
		w = 40
	}
	return w
}

// View renders the liked list modal
func (l LikedList) View() string {
	if !l.visible {
		return ""
	}

	width := l.modalWidth()
	var b strings.Builder
	b.WriteString(styles.ModalTitleStyle.Render(fmt.Sprintf("Liked cards (%d)", len(l.items))))
	b.WriteString("\n")
	b.WriteString(l.input.View())
	b.WriteString("\n\n")

	switch {
	case l.loading:
		b.WriteString(styles.DimStyle.Render("Loading..."))
	case l.err != nil:
		b.WriteString(styles.ErrorStyle.Render("Failed to load liked cards: " + l.err.Error()))
	case len(l.items) == 0:
		b.WriteString(styles.DimStyle.Render("Press space on a card to like it."))
	case len(l.rows) == 0:
		b.WriteString(styles.DimStyle.Render("No matches"))
	case l.preview:
		l.renderPreview(&b, width-6)
	default:
		l.renderRows(&b, width-6)
	}

	return styles.ModalStyle.Width(width).Render(b.String())
}

func (l LikedList) renderRows(b *strings.Builder, width int) {
	end := l.offset + maxLikedRows
	if end > len(l.rows) {
		end = len(l.rows)
	}

	for i := l.offset; i < end; i++ {
		row := l.rows[i]
		selected := i == l.cursor
		title := styles.Truncate(row.Title, width-2)
		b.WriteString(styles.LikedMark)
		b.WriteString(highlightMatches(title, row.MatchedIndexes, selected))
		b.WriteString("\n")
	}

	if len(l.rows) > end {
		b.WriteString(styles.DimStyle.Render(fmt.Sprintf("... and %d more", len(l.rows)-end)))
	}
}

func (l LikedList) renderPreview(b *strings.Builder, width int) {
	row, ok := l.Selected()
	if !ok {
		return
	}
	card := domain.NewCard(row.Item)
	b.WriteString(styles.QuestionStyle.Width(width).Render(card.Question))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(card.Answer))
}

// highlightMatches renders text with the matched byte offsets emphasised
func highlightMatches(text string, matchedIndexes []int, selected bool) string {
	base := styles.NormalItemStyle
	if selected {
		base = styles.SelectedItemStyle
	}
	if len(matchedIndexes) == 0 {
		return base.Render(text)
	}

	matchSet := make(map[int]bool, len(matchedIndexes))
	for _, idx := range matchedIndexes {
		matchSet[idx] = true
	}

	plain := base.UnsetPadding()
	match := styles.MatchHighlightStyle
	if selected {
		match = styles.MatchHighlightSelectedStyle
	}

	var out strings.Builder
	for i, r := range text {
		if matchSet[i] {
			out.WriteString(match.Render(string(r)))
		} else {
			out.WriteString(plain.Render(string(r)))
		}
	}
	pad := plain.Render(" ")
	return pad + out.String() + pad
}
