package navigator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/mmcdole/quizdeck/internal/catalog"
	"github.com/mmcdole/quizdeck/internal/deck"
	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// remoteCatalog is a catalog server with switchable failures
type remoteCatalog struct {
	mu      sync.Mutex
	version int
	size    int
	down    bool
	noItems bool // only the item endpoint fails
}

func (r *remoteCatalog) FetchVersion(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, domain.ErrRemoteUnavailable
	}
	return r.version, nil
}

func (r *remoteCatalog) FetchMaxIndex(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return 0, domain.ErrRemoteUnavailable
	}
	return r.size - 1, nil
}

func (r *remoteCatalog) FetchByIndices(ctx context.Context, indices []int) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down || r.noItems {
		return nil, domain.ErrRemoteUnavailable
	}
	var items []domain.Item
	for _, idx := range indices {
		if idx >= 0 && idx < r.size {
			items = append(items, versionedItem(idx, r.version))
		}
	}
	return items, nil
}

func (r *remoteCatalog) set(fn func(r *remoteCatalog)) {
	r.mu.Lock()
	fn(r)
	r.mu.Unlock()
}

func versionedItem(idx, version int) domain.Item {
	return domain.Item{
		GlobalIndex: idx,
		Question:    fmt.Sprintf("Question %d", idx),
		Answer:      fmt.Sprintf("Answer %d v%d", idx, version),
	}
}

func TestOffline_DeckDrawsFromSavedItems(t *testing.T) {
	st := memStore(t)
	require.NoError(t, st.SaveCatalogInfo(domain.CatalogInfo{Version: 1, Size: 10000}))
	var saved []domain.Item
	for i := 0; i < 200; i++ {
		saved = append(saved, versionedItem(i*50, 1))
	}
	require.NoError(t, st.SaveItems(saved))

	tr := openTracker(t, st)
	unviewed := domain.NewIndexSet()
	for i, item := range saved {
		if i < 150 {
			tr.MarkViewed(item.GlobalIndex)
		} else {
			unviewed.Add(item.GlobalIndex)
		}
	}

	svc := catalog.NewService(&remoteCatalog{down: true}, st, nil)
	c := newController(t, svc, tr, Options{Builder: seeded(200)})

	require.NoError(t, c.Load(context.Background()))
	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.True(t, v.Info.FromCache)
	assert.ElementsMatch(t, unviewed.Sorted(), c.Deck())
}

func TestOffline_RepeatsSavedCardsWithoutResettingProgress(t *testing.T) {
	st := memStore(t)
	require.NoError(t, st.SaveCatalogInfo(domain.CatalogInfo{Version: 1, Size: 100}))
	require.NoError(t, st.SaveItems([]domain.Item{versionedItem(3, 1), versionedItem(9, 1)}))

	tr := openTracker(t, st)
	tr.MarkViewed(3)
	tr.MarkViewed(9)
	tr.MarkViewed(40)

	svc := catalog.NewService(&remoteCatalog{down: true}, st, nil)
	c := newController(t, svc, tr, Options{Builder: seeded(200)})

	require.NoError(t, c.Load(context.Background()))
	assert.ElementsMatch(t, []int{3, 9}, c.Deck())
	assert.Equal(t, 3, tr.Viewed().Len())
}

func TestOffline_SeedWhenNothingSaved(t *testing.T) {
	st := memStore(t)
	svc := catalog.NewService(nil, st, nil)
	svc.SetSeed([]domain.Item{versionedItem(0, 0), versionedItem(1, 0), versionedItem(2, 0)})

	c := newController(t, svc, openTracker(t, st), Options{Builder: seeded(200)})

	require.NoError(t, c.Load(context.Background()))
	assert.ElementsMatch(t, []int{0, 1, 2}, c.Deck())
	assert.True(t, c.View().Info.FromCache)
}

func TestReload_ItemFailureAfterVersionBumpKeepsSnapshot(t *testing.T) {
	st := memStore(t)
	tr := openTracker(t, st)
	remote := &remoteCatalog{version: 1, size: 50}
	svc := catalog.NewService(remote, st, nil)
	c := newController(t, svc, tr, Options{Builder: seeded(200)})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	require.Len(t, c.Deck(), 50)
	require.Len(t, st.GetAllItems(), 50)
	assert.Equal(t, 1, tr.DataVersion())

	remote.set(func(r *remoteCatalog) {
		r.version = 2
		r.noItems = true
	})
	require.True(t, c.NeedsReload(2))

	require.NoError(t, c.Load(ctx))
	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.NotEmpty(t, c.Deck())
	assert.Contains(t, v.Current.Item.Answer, "v1")
	assert.Len(t, st.GetAllItems(), 50)

	// the old content was served, so the new version is still pending
	assert.Equal(t, 1, tr.DataVersion())
	assert.True(t, c.NeedsReload(2))

	remote.set(func(r *remoteCatalog) { r.noItems = false })
	require.NoError(t, c.Load(ctx))
	assert.Contains(t, c.View().Current.Item.Answer, "v2")
	assert.Equal(t, 2, tr.DataVersion())
	assert.False(t, c.NeedsReload(2))
}

func TestFailedReloadKeepsCurrentDeck(t *testing.T) {
	cat := newFakeCatalog(10)
	c := newController(t, cat, openTracker(t, memStore(t)), Options{
		Builder: &fixedBuilder{decks: []deck.Deck{{5, 2, 8}}},
	})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Next())

	cat.mu.Lock()
	cat.describeErr = domain.ErrRemoteUnavailable
	cat.mu.Unlock()

	err := c.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)

	v := c.View()
	assert.Equal(t, Ready, v.State)
	assert.Equal(t, 1, v.Position)
	assert.Equal(t, []int{5, 2, 8}, c.Deck())
	assert.ErrorIs(t, v.Err, domain.ErrRemoteUnavailable)
	assert.NoError(t, c.Next())
}

// gatedCatalog blocks the first Describe until released
type gatedCatalog struct {
	*fakeCatalog
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCatalog) Describe(ctx context.Context) (domain.CatalogInfo, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.fakeCatalog.Describe(ctx)
}

func TestSupersededLoadIsStale(t *testing.T) {
	cat := &gatedCatalog{
		fakeCatalog: newFakeCatalog(10),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	c := newController(t, cat, openTracker(t, memStore(t)), Options{
		Builder: &fixedBuilder{decks: []deck.Deck{{1, 2}, {3, 4}}},
	})
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- c.Load(ctx) }()
	<-cat.entered
	assert.Equal(t, Loading, c.State())

	require.NoError(t, c.Load(ctx))
	assert.Equal(t, []int{1, 2}, c.Deck())

	close(cat.release)
	assert.ErrorIs(t, <-first, ErrStale)
	assert.Equal(t, []int{1, 2}, c.Deck())
	assert.Equal(t, Ready, c.State())
}
