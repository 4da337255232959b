package deck

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ExcludesViewedScenario(t *testing.T) {
	d, err := Build(10, domain.NewIndexSet(0, 1, 2), DefaultBatchSize)
	require.NoError(t, err)
	require.Len(t, d, 7)

	sorted := append([]int(nil), d...)
	sort.Ints(sorted)
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, sorted)
}

func TestBuild_PermutationProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 200; trial++ {
		size := 1 + r.IntN(60)
		viewed := domain.NewIndexSet()
		for i := 0; i < size; i++ {
			if r.IntN(3) == 0 {
				viewed.Add(i)
			}
		}
		if viewed.Len() == size {
			viewed.Remove(0)
		}
		batch := r.IntN(size + 5) // includes 0 = unbounded

		b := NewBuilder(batch, rand.New(rand.NewPCG(uint64(trial), 7)))
		d, err := b.Build(size, viewed)
		require.NoError(t, err)

		available := size - viewed.Len()
		want := available
		if batch > 0 && batch < available {
			want = batch
		}
		require.Len(t, d, want, "size=%d viewed=%d batch=%d", size, viewed.Len(), batch)

		seen := domain.NewIndexSet()
		for _, idx := range d {
			assert.True(t, idx >= 0 && idx < size, "index %d out of range", idx)
			assert.False(t, viewed.Has(idx), "viewed index %d in deck", idx)
			assert.True(t, seen.Add(idx), "duplicate index %d", idx)
		}
	}
}

func TestBuild_BatchSizeCaps(t *testing.T) {
	d, err := Build(500, nil, 200)
	require.NoError(t, err)
	assert.Len(t, d, 200)
}

func TestBuild_AllViewedIsExhausted(t *testing.T) {
	_, err := Build(3, domain.NewIndexSet(0, 1, 2), DefaultBatchSize)
	assert.ErrorIs(t, err, domain.ErrDeckExhausted)
}

func TestBuild_EmptyCatalog(t *testing.T) {
	_, err := Build(0, nil, DefaultBatchSize)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
}

func TestBuildExcluding_LeavesOutCurrentDeck(t *testing.T) {
	b := NewBuilder(0, rand.New(rand.NewPCG(3, 4)))
	d, err := b.BuildExcluding(6, domain.NewIndexSet(0), domain.NewIndexSet(1, 2))
	require.NoError(t, err)

	sorted := append([]int(nil), d...)
	sort.Ints(sorted)
	assert.Equal(t, []int{3, 4, 5}, sorted)

	_, err = b.BuildExcluding(3, domain.NewIndexSet(0), domain.NewIndexSet(1, 2))
	assert.ErrorIs(t, err, domain.ErrDeckExhausted)
}

func TestBuild_SameSeedSameOrder(t *testing.T) {
	a, err := NewBuilder(0, rand.New(rand.NewPCG(9, 9))).Build(20, nil)
	require.NoError(t, err)
	b, err := NewBuilder(0, rand.New(rand.NewPCG(9, 9))).Build(20, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestNeedsRegeneration(t *testing.T) {
	assert.True(t, NeedsRegeneration(3, 2, false, false))
	assert.False(t, NeedsRegeneration(2, 2, false, false))
	assert.True(t, NeedsRegeneration(2, 2, true, false))
	assert.True(t, NeedsRegeneration(0, 0, false, true))
}

func TestDeck_ContainsAndSet(t *testing.T) {
	d := Deck{5, 2, 8}
	assert.True(t, d.Contains(2))
	assert.False(t, d.Contains(3))
	assert.Equal(t, []int{2, 5, 8}, d.Set().Sorted())
}

func TestBuildFrom_OnlyPoolIndices(t *testing.T) {
	b := NewBuilder(0, rand.New(rand.NewPCG(5, 6)))
	pool := []int{3, 50, 120, 9000}

	d, err := b.BuildFrom(pool, domain.NewIndexSet(50), domain.NewIndexSet(9000))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 120}, d)

	_, err = b.BuildFrom(pool, domain.NewIndexSet(pool...), nil)
	assert.ErrorIs(t, err, domain.ErrDeckExhausted)

	_, err = b.BuildFrom(nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCatalog)
}
