// Package progress owns the in-memory ProgressState and writes it through to
// the local store after every mutation.
package progress

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/quizdeck/internal/domain"
)

// Tracker is the single owner of the installation's progress record.
//
// Saves run on one writer goroutine, so they are serialized and coalesced:
// a burst of mutations produces at most one pending write, and the last
// snapshot wins. A failed write leaves the tracker dirty and is retried on
// the next mutation or Flush.
type Tracker struct {
	store     domain.ProgressStore
	installID string
	logger    *slog.Logger

	mu      sync.Mutex
	state   domain.ProgressState
	dirty   bool
	lastErr error

	saveMu sync.Mutex // serializes SaveProgress calls

	kick     chan struct{}
	stop     chan struct{}
	finished chan struct{}
	once     sync.Once
}

// Open loads the progress record for this installation, creating it if absent,
// and starts the background writer.
func Open(store domain.ProgressStore, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	installID, err := store.InstallationID()
	if err != nil {
		return nil, fmt.Errorf("failed to get installation id: %w", err)
	}

	state, found, err := store.LoadProgress(installID)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress: %w", err)
	}
	state.Normalize()

	t := &Tracker{
		store:     store,
		installID: installID,
		logger:    logger,
		state:     state,
		dirty:     !found,
		kick:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		finished:  make(chan struct{}),
	}

	if !found {
		logger.Info("creating progress record", "installID", installID)
		if err := t.Flush(); err != nil {
			logger.Warn("failed to create progress record", "error", err)
		}
	} else {
		logger.Debug("loaded progress",
			"installID", installID,
			"dataVersion", state.DataVersion,
			"viewed", state.ViewedIndices.Len(),
			"liked", state.LikedIndices.Len(),
		)
	}

	go t.run()
	return t, nil
}

// InstallationID returns the id the record is stored under
func (t *Tracker) InstallationID() string {
	return t.installID
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() domain.ProgressState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.Clone()
}

// Viewed returns a copy of the viewed set
func (t *Tracker) Viewed() domain.IndexSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ViewedIndices.Clone()
}

func (t *Tracker) IsViewed(globalIndex int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ViewedIndices.Has(globalIndex)
}

func (t *Tracker) IsLiked(globalIndex int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.LikedIndices.Has(globalIndex)
}

func (t *Tracker) DataVersion() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.DataVersion
}

// LastError returns the error of the most recent failed write (nil after a success)
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// MarkViewed records globalIndex as viewed
func (t *Tracker) MarkViewed(globalIndex int) bool {
	return t.mutate(func(s *domain.ProgressState) bool { return s.AddViewed(globalIndex) })
}

// ToggleLiked flips the like on globalIndex and returns the new value
func (t *Tracker) ToggleLiked(globalIndex int) bool {
	var liked bool
	t.mutate(func(s *domain.ProgressState) bool {
		liked = s.ToggleLiked(globalIndex)
		return true
	})
	return liked
}

// SetDataVersion records the catalog version the progress refers to
func (t *Tracker) SetDataVersion(version int) bool {
	return t.mutate(func(s *domain.ProgressState) bool { return s.SetDataVersion(version) })
}

// ResetViewed forgets all viewed indices
func (t *Tracker) ResetViewed() bool {
	return t.mutate(func(s *domain.ProgressState) bool { return s.ResetViewed() })
}

func (t *Tracker) mutate(fn func(s *domain.ProgressState) bool) bool {
	t.mu.Lock()
	changed := fn(&t.state)
	if changed {
		t.dirty = true
	}
	pending := t.dirty
	t.mu.Unlock()

	if pending {
		t.schedule()
	}
	return changed
}

func (t *Tracker) schedule() {
	select {
	case t.kick <- struct{}{}:
	default: // a save is already pending and will pick up this change
	}
}

func (t *Tracker) run() {
	defer close(t.finished)
	for {
		select {
		case <-t.kick:
			if err := t.save(); err != nil {
				t.logger.Error("progress write failed, will retry on next change", "error", err)
			}
		case <-t.stop:
			return
		}
	}
}

// Flush writes pending changes synchronously
func (t *Tracker) Flush() error {
	return t.save()
}

func (t *Tracker) save() error {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	if !t.dirty {
		t.mu.Unlock()
		return nil
	}
	snapshot := t.state.Clone()
	t.dirty = false
	t.mu.Unlock()

	err := t.store.SaveProgress(t.installID, snapshot)
	if err != nil && !errors.Is(err, domain.ErrPersistenceFailure) {
		err = fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
	}

	t.mu.Lock()
	t.lastErr = err
	if err != nil {
		t.dirty = true
	}
	t.mu.Unlock()

	return err
}

// Close stops the writer and flushes outstanding changes
func (t *Tracker) Close() error {
	var err error
	t.once.Do(func() {
		close(t.stop)
		<-t.finished
		err = t.Flush()
	})
	return err
}
