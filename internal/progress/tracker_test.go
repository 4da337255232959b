package progress

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmcdole/quizdeck/internal/domain"
	"github.com/mmcdole/quizdeck/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore wraps a real store and can be told to fail writes
type flakyStore struct {
	domain.ProgressStore

	mu    sync.Mutex
	fail  bool
	saves int
}

func (f *flakyStore) SaveProgress(id string, s domain.ProgressState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.fail {
		return errors.New("disk full")
	}
	return f.ProgressStore.SaveProgress(id, s)
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func memStore(t *testing.T) *store.BoltStore {
	t.Helper()
	s, err := store.NewBoltStore("", "")
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesRecordWhenAbsent(t *testing.T) {
	s := memStore(t)

	tr, err := Open(s, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	_, found, err := s.LoadProgress(tr.InstallationID())
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMutations_AreWrittenThrough(t *testing.T) {
	s := memStore(t)
	tr, err := Open(s, nil)
	require.NoError(t, err)

	tr.SetDataVersion(3)
	tr.MarkViewed(5)
	assert.True(t, tr.ToggleLiked(7))
	require.NoError(t, tr.Close())

	saved, found, err := s.LoadProgress(tr.InstallationID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, saved.DataVersion)
	assert.Equal(t, []int{5}, saved.ViewedIndices.Sorted())
	assert.Equal(t, []int{7}, saved.LikedIndices.Sorted())
}

func TestBackgroundWriterEventuallyPersists(t *testing.T) {
	s := memStore(t)
	tr, err := Open(s, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	tr.MarkViewed(11)

	assert.Eventually(t, func() bool {
		saved, _, _ := s.LoadProgress(tr.InstallationID())
		return saved.ViewedIndices.Has(11)
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLiked_Twice(t *testing.T) {
	tr, err := Open(memStore(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	assert.True(t, tr.ToggleLiked(7))
	assert.Equal(t, []int{7}, tr.Snapshot().LikedIndices.Sorted())
	assert.False(t, tr.ToggleLiked(7))
	assert.Equal(t, 0, tr.Snapshot().LikedIndices.Len())
}

func TestFailedWrite_IsRetriedOnNextFlush(t *testing.T) {
	fs := &flakyStore{ProgressStore: memStore(t)}
	tr, err := Open(fs, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	require.NoError(t, tr.Flush())

	fs.setFail(true)
	tr.MarkViewed(1)
	err = tr.Flush()
	if err == nil {
		// background writer consumed the change first; its error is recorded
		err = tr.LastError()
	}
	require.ErrorIs(t, err, domain.ErrPersistenceFailure)
	// in-memory state is unaffected
	assert.True(t, tr.IsViewed(1))

	fs.setFail(false)
	require.NoError(t, tr.Flush())
	assert.NoError(t, tr.LastError())

	saved, _, err := fs.LoadProgress(tr.InstallationID())
	require.NoError(t, err)
	assert.True(t, saved.ViewedIndices.Has(1))
}

func TestResetViewed(t *testing.T) {
	tr, err := Open(memStore(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	tr.MarkViewed(1)
	tr.MarkViewed(2)
	assert.True(t, tr.ResetViewed())
	assert.Equal(t, 0, tr.Viewed().Len())
	assert.False(t, tr.ResetViewed())
}
