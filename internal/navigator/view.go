package navigator

import "github.com/mmcdole/quizdeck/internal/domain"

// Slot is one deck position as seen by a renderer
type Slot struct {
	Position int
	Item     domain.Item
	Card     *domain.Card // nil until materialized
}

// View is an immutable snapshot of the controller for rendering
type View struct {
	State    State
	Position int
	DeckLen  int
	Info     domain.CatalogInfo
	Prev     *Slot
	Current  *Slot
	Next     *Slot
	Staged   bool // a next deck is ready for rollover
	Err      error
}

// AtLast reports whether the current card is the deck's last
func (v View) AtLast() bool {
	return v.DeckLen > 0 && v.Position == v.DeckLen-1
}

// View returns a snapshot of the current state
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:    c.state,
		Position: c.position,
		DeckLen:  len(c.deck),
		Info:     c.info,
		Staged:   c.staged != nil,
		Err:      c.lastErr,
	}
	if len(c.deck) == 0 {
		return v
	}

	v.Prev = c.slot(c.position - 1)
	v.Current = c.slot(c.position)
	v.Next = c.slot(c.position + 1)
	return v
}

// slot builds the Slot for position p. Caller holds mu.
func (c *Controller) slot(p int) *Slot {
	if p < 0 || p >= len(c.deck) {
		return nil
	}
	idx := c.deck[p]
	s := &Slot{Position: p, Item: c.items[idx]}
	if card, ok := c.cache.Peek(idx); ok {
		s.Card = card
	}
	return s
}

// Deck returns a copy of the working deck
func (c *Controller) Deck() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.deck...)
}
