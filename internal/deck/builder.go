// Package deck computes the working order of cards for a browsing session.
package deck

import (
	"math/rand/v2"
	"sync"

	"github.com/mmcdole/quizdeck/internal/domain"
)

// DefaultBatchSize caps a deck to one catalog page
const DefaultBatchSize = 200

// Deck is an ordered sequence of global indices without duplicates
type Deck []int

// Contains reports whether the deck holds globalIndex
func (d Deck) Contains(globalIndex int) bool {
	for _, i := range d {
		if i == globalIndex {
			return true
		}
	}
	return false
}

// Set returns the deck's indices as a set
func (d Deck) Set() domain.IndexSet {
	return domain.NewIndexSet(d...)
}

// Builder samples decks. The zero value uses the global random source and no batch cap.
type Builder struct {
	Rand      *rand.Rand // nil = global source
	BatchSize int        // <= 0 = unbounded

	mu sync.Mutex // guards Rand
}

// NewBuilder creates a builder with the given batch size and random source
func NewBuilder(batchSize int, r *rand.Rand) *Builder {
	return &Builder{Rand: r, BatchSize: batchSize}
}

// Build returns a random permutation of the unviewed indices in [0, catalogSize),
// truncated to the batch size.
//
// Returns domain.ErrEmptyCatalog when catalogSize <= 0 and
// domain.ErrDeckExhausted when every index has been viewed.
func (b *Builder) Build(catalogSize int, viewed domain.IndexSet) (Deck, error) {
	return b.BuildExcluding(catalogSize, viewed, nil)
}

// BuildExcluding is Build with an extra set of indices to leave out
// (e.g. the cards of the deck currently on screen).
func (b *Builder) BuildExcluding(catalogSize int, viewed, exclude domain.IndexSet) (Deck, error) {
	if catalogSize <= 0 {
		return nil, domain.ErrEmptyCatalog
	}

	available := make([]int, 0, catalogSize)
	for i := 0; i < catalogSize; i++ {
		if viewed.Has(i) || exclude.Has(i) {
			continue
		}
		available = append(available, i)
	}
	return b.sample(available)
}

// BuildFrom draws the deck from pool instead of the whole catalog range.
// It is used offline, where only the saved items can be shown.
func (b *Builder) BuildFrom(pool []int, viewed, exclude domain.IndexSet) (Deck, error) {
	if len(pool) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	available := make([]int, 0, len(pool))
	for _, i := range pool {
		if viewed.Has(i) || exclude.Has(i) {
			continue
		}
		available = append(available, i)
	}
	return b.sample(available)
}

// sample shuffles available in place and keeps at most one batch
func (b *Builder) sample(available []int) (Deck, error) {
	if len(available) == 0 {
		return nil, domain.ErrDeckExhausted
	}

	count := len(available)
	if b.BatchSize > 0 && b.BatchSize < count {
		count = b.BatchSize
	}

	// Partial Fisher-Yates: the first count slots end up a uniform sample
	// without replacement, in uniform random order.
	n := len(available)
	for i := 0; i < count; i++ {
		j := i + b.intN(n-i)
		available[i], available[j] = available[j], available[i]
	}

	return Deck(available[:count:count]), nil
}

func (b *Builder) intN(n int) int {
	if b.Rand != nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.Rand.IntN(n)
	}
	return rand.IntN(n)
}

// Build is the stateless form of Builder.Build using the global random source.
func Build(catalogSize int, viewed domain.IndexSet, batchSize int) (Deck, error) {
	return (&Builder{BatchSize: batchSize}).Build(catalogSize, viewed)
}

// NeedsRegeneration reports whether the working deck must be rebuilt: the
// remote data advanced, the local deck ran out, or there is no local catalog.
func NeedsRegeneration(remoteVersion, localVersion int, deckExhausted, catalogEmpty bool) bool {
	return remoteVersion > localVersion || deckExhausted || catalogEmpty
}
