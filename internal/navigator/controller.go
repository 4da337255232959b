// Package navigator drives deck browsing: it loads a deck, moves through it,
// records viewed and liked cards, keeps neighbouring cards materialized and
// prepares the next deck before the current one runs out.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/quizdeck/internal/cache"
	"github.com/mmcdole/quizdeck/internal/deck"
	"github.com/mmcdole/quizdeck/internal/domain"
	"golang.org/x/sync/errgroup"
)

// CatalogSource supplies catalog metadata and items
type CatalogSource interface {
	Describe(ctx context.Context) (domain.CatalogInfo, error)
	FetchItems(ctx context.Context, indices []int) ([]domain.Item, error)

	// CachedItems lists the items available without the remote
	CachedItems() []domain.Item

	// SnapshotBehind reports whether items being served predate the
	// remote version last described
	SnapshotBehind() bool
}

// ProgressTracker records viewed and liked indices
type ProgressTracker interface {
	Viewed() domain.IndexSet
	IsViewed(globalIndex int) bool
	IsLiked(globalIndex int) bool
	DataVersion() int
	MarkViewed(globalIndex int) bool
	ToggleLiked(globalIndex int) bool
	SetDataVersion(version int) bool
	ResetViewed() bool
	Flush() error
}

// DeckBuilder samples decks from the unviewed part of the catalog
type DeckBuilder interface {
	BuildExcluding(catalogSize int, viewed, exclude domain.IndexSet) (deck.Deck, error)
	BuildFrom(pool []int, viewed, exclude domain.IndexSet) (deck.Deck, error)
}

// Options tunes navigation policy
type Options struct {
	// MarkViewedOnBackward also marks the departing card viewed on backward moves
	MarkViewedOnBackward bool

	// AutoAdvance stages the next deck at the last position so a forward
	// move there rolls over instead of stopping
	AutoAdvance bool

	// BatchSize caps the deck when Builder is nil
	BatchSize int

	// Builder overrides the deck builder. It is called from background
	// goroutines and must be safe for concurrent use.
	Builder DeckBuilder

	// Cache overrides the card cache
	Cache *cache.CardCache
}

// stagedDeck is the next deck, prepared while the user is on the last card
type stagedDeck struct {
	deck  deck.Deck
	items map[int]domain.Item
	reset bool // every card was viewed; viewed state is cleared on rollover
}

// Controller is the single owner of the working deck and current position
type Controller struct {
	catalog  CatalogSource
	progress ProgressTracker
	builder  DeckBuilder
	cache    *cache.CardCache
	opts     Options
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	info     domain.CatalogInfo
	pool     []int // saved indices decks are drawn from offline; nil online
	deck     deck.Deck
	items    map[int]domain.Item
	position int
	lastErr  error

	gen     uint64 // bumped on every navigation and regeneration
	deckGen uint64 // bumped when the deck is replaced

	staged  *stagedDeck
	staging bool

	ctx    context.Context // lifetime of background tasks
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller in the Idle state
func New(catalog CatalogSource, progress ProgressTracker, opts Options, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	builder := opts.Builder
	if builder == nil {
		batch := opts.BatchSize
		if batch == 0 {
			batch = deck.DefaultBatchSize
		}
		builder = deck.NewBuilder(batch, nil)
	}
	cards := opts.Cache
	if cards == nil {
		cards = cache.New(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		catalog:  catalog,
		progress: progress,
		builder:  builder,
		cache:    cards,
		opts:     opts,
		logger:   logger,
		state:    Idle,
		items:    make(map[int]domain.Item),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Load describes the catalog, builds a fresh deck and enters Ready(0).
// A Load started while another is running supersedes it; the earlier one
// returns ErrStale. When a load fails the previous deck stays on screen
// with the error recorded; without one the controller ends up Exhausted.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Transitioning {
		c.mu.Unlock()
		return ErrTransitionInProgress
	}
	c.gen++
	c.deckGen++
	gen := c.gen
	c.state = Loading
	c.staged = nil
	c.staging = false
	c.mu.Unlock()

	c.logger.Info("loading deck", "gen", gen)

	next, err := c.regenerate(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.logger.Debug("discarding stale load", "gen", gen, "current", c.gen)
		return ErrStale
	}

	if err != nil {
		c.lastErr = err
		if len(c.deck) > 0 {
			c.logger.Error("deck load failed, keeping current deck", "error", err)
			c.enterReady()
			return err
		}
		c.state = Exhausted
		c.deck = nil
		c.items = make(map[int]domain.Item)
		c.position = 0
		c.cache.Clear()
		c.logger.Error("deck load failed", "error", err)
		return err
	}

	c.info = next.info
	c.pool = next.pool
	c.deck = next.deck
	c.items = next.items
	c.position = 0
	c.lastErr = nil
	c.cache.Clear()
	c.enterReady()

	c.logger.Info("deck ready", "size", len(next.deck), "catalogSize", next.info.Size,
		"version", next.info.Version, "fromCache", next.info.FromCache)
	return nil
}

// loadedDeck is the outcome of a regeneration
type loadedDeck struct {
	info  domain.CatalogInfo
	pool  []int
	deck  deck.Deck
	items map[int]domain.Item
}

// regenerate runs the slow part of Load without holding the lock
func (c *Controller) regenerate(ctx context.Context) (loadedDeck, error) {
	info, err := c.catalog.Describe(ctx)
	if err != nil {
		return loadedDeck{}, err
	}
	if info.IsEmpty() {
		return loadedDeck{}, domain.ErrEmptyCatalog
	}

	var pool []int
	if info.FromCache {
		pool = itemIndices(c.catalog.CachedItems())
		if len(pool) == 0 {
			return loadedDeck{}, fmt.Errorf("%w: no saved items", domain.ErrEmptyCatalog)
		}
	}

	d, err := c.buildDeck(info.Size, pool, c.progress.Viewed(), nil)
	if errors.Is(err, domain.ErrDeckExhausted) {
		if pool == nil {
			c.logger.Info("every card viewed, starting over", "catalogSize", info.Size)
			c.progress.ResetViewed()
		} else {
			// Offline only part of the catalog is known; viewed state
			// of the rest is kept.
			c.logger.Info("every saved card viewed, repeating them", "saved", len(pool))
		}
		d, err = c.buildDeck(info.Size, pool, domain.NewIndexSet(), nil)
	}
	if err != nil {
		return loadedDeck{}, err
	}

	d, items, err := c.fetchDeck(ctx, d)
	if err != nil {
		return loadedDeck{}, err
	}

	if !info.FromCache && !c.catalog.SnapshotBehind() && info.Version != c.progress.DataVersion() {
		c.progress.SetDataVersion(info.Version)
	}
	if err := c.progress.Flush(); err != nil {
		c.logger.Warn("progress not persisted after regeneration", "error", err)
	}
	return loadedDeck{info: info, pool: pool, deck: d, items: items}, nil
}

// buildDeck draws from pool when set, from the catalog range otherwise
func (c *Controller) buildDeck(catalogSize int, pool []int, viewed, exclude domain.IndexSet) (deck.Deck, error) {
	if pool != nil {
		return c.builder.BuildFrom(pool, viewed, exclude)
	}
	return c.builder.BuildExcluding(catalogSize, viewed, exclude)
}

func itemIndices(items []domain.Item) []int {
	out := make([]int, 0, len(items))
	for _, item := range items {
		out = append(out, item.GlobalIndex)
	}
	return out
}

// fetchDeck loads the items of d and drops indices that have none
func (c *Controller) fetchDeck(ctx context.Context, d deck.Deck) (deck.Deck, map[int]domain.Item, error) {
	fetched, err := c.catalog.FetchItems(ctx, d)
	if err != nil {
		return nil, nil, err
	}

	items := make(map[int]domain.Item, len(fetched))
	for _, item := range fetched {
		item.IsViewed = c.progress.IsViewed(item.GlobalIndex)
		item.IsLiked = c.progress.IsLiked(item.GlobalIndex)
		items[item.GlobalIndex] = item
	}

	kept := make(deck.Deck, 0, len(d))
	for _, idx := range d {
		if _, ok := items[idx]; ok {
			kept = append(kept, idx)
		}
	}
	if dropped := len(d) - len(kept); dropped > 0 {
		c.logger.Warn("dropped indices without items", "count", dropped)
	}
	if len(kept) == 0 {
		return nil, nil, fmt.Errorf("%w: no items for %d indices", domain.ErrEmptyCatalog, len(d))
	}
	return kept, items, nil
}

// Begin starts a move in dir. The move takes effect on Complete.
func (c *Controller) Begin(dir Direction) (Transition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Ready:
	case Transitioning, Loading:
		return Transition{}, ErrTransitionInProgress
	default:
		return Transition{}, ErrNotReady
	}

	t := Transition{Direction: dir, From: c.position}
	switch dir {
	case Forward:
		if c.position+1 < len(c.deck) {
			t.To = c.position + 1
		} else if c.staged != nil {
			t.To = 0
			t.Rollover = true
		} else {
			return Transition{}, ErrAtBoundary
		}
	case Backward:
		if c.position-1 < 0 {
			return Transition{}, ErrAtBoundary
		}
		t.To = c.position - 1
	default:
		return Transition{}, fmt.Errorf("invalid direction %d", dir)
	}

	c.gen++
	t.gen = c.gen
	c.state = Transitioning
	c.logger.Debug("transition started", "dir", dir, "from", t.From, "to", t.To, "rollover", t.Rollover)
	return t, nil
}

// Complete applies a started move
func (c *Controller) Complete(t Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Transitioning || t.gen != c.gen {
		return ErrStale
	}

	departing := c.deck[t.From]
	if t.Direction == Forward || c.opts.MarkViewedOnBackward {
		c.markViewed(departing)
	}

	if t.Rollover {
		c.rollover()
	} else {
		c.position = t.To
	}

	c.gen++
	c.enterReady()
	return nil
}

// Next moves forward one card
func (c *Controller) Next() error {
	t, err := c.Begin(Forward)
	if err != nil {
		return err
	}
	return c.Complete(t)
}

// Prev moves back one card
func (c *Controller) Prev() error {
	t, err := c.Begin(Backward)
	if err != nil {
		return err
	}
	return c.Complete(t)
}

func (c *Controller) markViewed(globalIndex int) {
	c.progress.MarkViewed(globalIndex)
	if item, ok := c.items[globalIndex]; ok {
		item.IsViewed = true
		c.items[globalIndex] = item
	}
}

// rollover swaps in the staged deck. Caller holds mu.
func (c *Controller) rollover() {
	next := c.staged
	c.staged = nil
	c.staging = false
	c.deckGen++

	if next.reset {
		c.logger.Info("every card viewed, starting over")
		c.progress.ResetViewed()
	}

	// Flags may have changed since the deck was staged
	for idx, item := range next.items {
		item.IsViewed = c.progress.IsViewed(idx)
		item.IsLiked = c.progress.IsLiked(idx)
		next.items[idx] = item
	}

	c.deck = next.deck
	c.items = next.items
	c.position = 0
	c.cache.Clear()
	c.logger.Info("rolled over to next deck", "size", len(next.deck))
}

// enterReady materializes the current card and schedules neighbour
// preloads and, on the last card, staging of the next deck. Caller holds mu.
func (c *Controller) enterReady() {
	c.state = Ready

	current := c.deck[c.position]
	c.cache.Get(current, c.items[current])

	var neighbours []domain.Item
	for _, p := range []int{c.position - 1, c.position + 1} {
		if p >= 0 && p < len(c.deck) {
			neighbours = append(neighbours, c.items[c.deck[p]])
		}
	}
	if len(neighbours) > 0 {
		c.preload(c.gen, c.cache.Generation(), neighbours)
	}

	if c.opts.AutoAdvance && c.position == len(c.deck)-1 && c.staged == nil && !c.staging {
		c.stage(c.deckGen, c.info.Size, c.pool, c.deck)
	}
}

// preload materializes neighbour cards in the background. cacheGen pins
// the cache lifetime so a card never lands in a cache cleared meanwhile.
// Caller holds mu.
func (c *Controller) preload(gen, cacheGen uint64, items []domain.Item) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		var g errgroup.Group
		for _, item := range items {
			g.Go(func() error {
				if c.generation() != gen {
					return ErrStale
				}
				if !c.cache.Preload(cacheGen, item.GlobalIndex, item) {
					return ErrStale
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			c.logger.Debug("neighbour preload superseded", "gen", gen)
		}
	}()
}

// stage builds and fetches the deck that follows current. Caller holds mu.
func (c *Controller) stage(deckGen uint64, catalogSize int, pool []int, current deck.Deck) {
	c.staging = true
	exclude := current.Set()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		next, err := c.buildNext(catalogSize, pool, exclude)
		var items map[int]domain.Item
		if err == nil {
			next.deck, items, err = c.fetchDeck(c.ctx, next.deck)
			next.items = items
		}

		c.mu.Lock()
		defer c.mu.Unlock()

		if deckGen != c.deckGen {
			c.logger.Debug("discarding stale staged deck", "deckGen", deckGen)
			return
		}
		c.staging = false
		if err != nil {
			c.logger.Warn("failed to stage next deck", "error", err)
			return
		}
		c.staged = next
		c.logger.Debug("next deck staged", "size", len(next.deck), "reset", next.reset)
	}()
}

// buildNext picks the next deck. When nothing unviewed is left outside the
// current deck, viewed state is to be reset and the deck drawn from the
// whole catalog, still avoiding current cards if possible. Offline the
// saved cards are repeated without touching viewed state.
func (c *Controller) buildNext(catalogSize int, pool []int, exclude domain.IndexSet) (*stagedDeck, error) {
	d, err := c.buildDeck(catalogSize, pool, c.progress.Viewed(), exclude)
	if err == nil {
		return &stagedDeck{deck: d}, nil
	}
	if !errors.Is(err, domain.ErrDeckExhausted) {
		return nil, err
	}

	d, err = c.buildDeck(catalogSize, pool, domain.NewIndexSet(), exclude)
	if errors.Is(err, domain.ErrDeckExhausted) {
		d, err = c.buildDeck(catalogSize, pool, domain.NewIndexSet(), nil)
	}
	if err != nil {
		return nil, err
	}
	return &stagedDeck{deck: d, reset: pool == nil}, nil
}

func (c *Controller) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// ToggleLike flips the like on the current card and persists it
// synchronously. The in-memory change stands even if persisting fails.
func (c *Controller) ToggleLike() (bool, error) {
	c.mu.Lock()
	if c.state != Ready || len(c.deck) == 0 {
		c.mu.Unlock()
		return false, ErrNotReady
	}
	current := c.deck[c.position]
	liked := c.progress.ToggleLiked(current)
	if item, ok := c.items[current]; ok {
		item.IsLiked = liked
		c.items[current] = item
	}
	c.mu.Unlock()

	c.logger.Debug("like toggled", "index", current, "liked", liked)
	if err := c.progress.Flush(); err != nil {
		c.logger.Error("failed to persist like", "index", current, "error", err)
		return liked, err
	}
	return liked, nil
}

// NeedsReload reports whether a remote version warrants a fresh deck
func (c *Controller) NeedsReload(remoteVersion int) bool {
	c.mu.Lock()
	exhausted := c.state == Exhausted
	empty := c.info.IsEmpty()
	c.mu.Unlock()
	return deck.NeedsRegeneration(remoteVersion, c.progress.DataVersion(), exhausted, empty)
}

// State returns the current state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until background preloads and staging finish
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels background work and waits for it
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
