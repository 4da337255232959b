// Package scheduler polls the remote catalog version in the background.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const checkTimeout = 15 * time.Second

// VersionSource reports the remote catalog version
type VersionSource interface {
	FetchVersion(ctx context.Context) (int, error)
}

// ReloadDecider decides whether a remote version warrants a new deck
type ReloadDecider interface {
	NeedsReload(remoteVersion int) bool
}

// Scheduler runs the periodic version check
type Scheduler struct {
	scheduler *gocron.Scheduler
	remote    VersionSource
	decider   ReloadDecider
	onNewer   func(remoteVersion int)
	logger    *slog.Logger
}

// New creates a scheduler. onNewer is called from the scheduler's goroutine
// whenever a check finds that the deck should be rebuilt.
func New(remote VersionSource, decider ReloadDecider, onNewer func(remoteVersion int), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		remote:    remote,
		decider:   decider,
		onNewer:   onNewer,
		logger:    logger,
	}
}

// Start schedules the check every interval, first run one interval from now
func (s *Scheduler) Start(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	_, err := s.scheduler.Every(interval).SingletonMode().WaitForSchedule().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()
		if _, _, err := s.Check(ctx); err != nil {
			s.logger.Warn("version check failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("version polling started", "interval", interval)
	return nil
}

// Stop terminates the scheduled check
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Check fetches the remote version once and notifies when a reload is due
func (s *Scheduler) Check(ctx context.Context) (int, bool, error) {
	version, err := s.remote.FetchVersion(ctx)
	if err != nil {
		return 0, false, err
	}

	if !s.decider.NeedsReload(version) {
		s.logger.Debug("catalog up to date", "version", version)
		return version, false, nil
	}

	s.logger.Info("catalog changed, reload due", "version", version)
	if s.onNewer != nil {
		s.onNewer(version)
	}
	return version, true, nil
}
