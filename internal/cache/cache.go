// Package cache memoizes constructed cards by global index for one deck session.
package cache

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/mmcdole/quizdeck/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BuildFunc constructs a card from an item. It must be free of side effects.
type BuildFunc func(item domain.Item) *domain.Card

// CardCache stores at most one card per global index per lifetime
// (the span between two Clear calls).
type CardCache struct {
	build BuildFunc

	mu    sync.Mutex
	cards map[int]*domain.Card
	gen   uint64 // bumped by Clear; constructions from an older gen are dropped

	// singleflight groups concurrent misses for the same index
	group singleflight.Group

	constructions atomic.Int64
}

// New creates a cache using build to construct cards (domain.NewCard if nil)
func New(build BuildFunc) *CardCache {
	if build == nil {
		build = domain.NewCard
	}
	return &CardCache{
		build: build,
		cards: make(map[int]*domain.Card),
	}
}

// Get returns the cached card for index, constructing and storing it on a miss.
// Repeated calls with the same index return the same *Card until Clear.
func (c *CardCache) Get(index int, item domain.Item) *domain.Card {
	c.mu.Lock()
	if card, ok := c.cards[index]; ok {
		c.mu.Unlock()
		return card
	}
	gen := c.gen
	c.mu.Unlock()

	return c.load(gen, index, item)
}

// Generation identifies the current cache lifetime; Clear starts a new one
func (c *CardCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Preload constructs and stores a card only if index is absent; it never
// replaces an existing entry. It is bound to lifetime gen and does nothing,
// returning false, once the cache has been cleared since gen was read.
func (c *CardCache) Preload(gen uint64, index int, item domain.Item) bool {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return false
	}
	if _, ok := c.cards[index]; ok {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	c.load(gen, index, item)
	return true
}

// Peek returns the cached card without constructing one
func (c *CardCache) Peek(index int) (*domain.Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	card, ok := c.cards[index]
	return card, ok
}

// Clear drops every entry. In-flight constructions started before Clear are
// returned to their callers but not stored.
func (c *CardCache) Clear() {
	c.mu.Lock()
	c.cards = make(map[int]*domain.Card)
	c.gen++
	c.mu.Unlock()
}

// Len returns the number of cached cards
func (c *CardCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cards)
}

// Constructions returns how many cards were built since creation
func (c *CardCache) Constructions() int64 {
	return c.constructions.Load()
}

func (c *CardCache) load(gen uint64, index int, item domain.Item) *domain.Card {
	key := strconv.FormatUint(gen, 10) + ":" + strconv.Itoa(index)

	v, _, _ := c.group.Do(key, func() (any, error) {
		// Double-check inside the flight: an earlier flight may have stored it
		c.mu.Lock()
		if card, ok := c.cards[index]; ok && c.gen == gen {
			c.mu.Unlock()
			return card, nil
		}
		c.mu.Unlock()

		card := c.build(item)
		c.constructions.Add(1)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return card, nil
		}
		if existing, ok := c.cards[index]; ok {
			return existing, nil
		}
		c.cards[index] = card
		return card, nil
	})

	return v.(*domain.Card)
}
