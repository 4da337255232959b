package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mmcdole/quizdeck/internal/domain"
)

const defaultPageSize = 200

// Source identifies where the last Describe got its answer from
type Source int

const (
	SourceRemote Source = iota
	SourceSnapshot
	SourceSeed
)

func (s Source) String() string {
	switch s {
	case SourceRemote:
		return "remote"
	case SourceSnapshot:
		return "snapshot"
	case SourceSeed:
		return "seed"
	default:
		return "unknown"
	}
}

// Service orchestrates the remote catalog client, the local snapshot and
// bundled seed data.
type Service struct {
	client   domain.CatalogClient // nil when running from seed data only
	store    domain.CatalogSnapshot
	logger   *slog.Logger
	pageSize int

	mu     sync.RWMutex
	seed   map[int]domain.Item
	source Source

	// newer is remote info whose version is ahead of the item snapshot.
	// It is committed once items of that version have been saved.
	newer *domain.CatalogInfo
}

// NewService creates a new catalog service. client may be nil.
func NewService(client domain.CatalogClient, store domain.CatalogSnapshot, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:   client,
		store:    store,
		logger:   logger,
		pageSize: defaultPageSize,
		seed:     make(map[int]domain.Item),
	}
}

// SetPageSize sets how many indices go into one remote request
func (s *Service) SetPageSize(n int) {
	if n <= 0 || n > defaultPageSize {
		n = defaultPageSize
	}
	s.pageSize = n
}

// SetSeed installs the items served when neither the remote nor the
// snapshot has anything
func (s *Service) SetSeed(items []domain.Item) {
	seed := make(map[int]domain.Item, len(items))
	for _, item := range items {
		if item.IsComplete() {
			seed[item.GlobalIndex] = item
		}
	}
	s.mu.Lock()
	s.seed = seed
	s.mu.Unlock()
	s.logger.Debug("seed data installed", "count", len(seed))
}

// Source returns where the last Describe got its answer from
func (s *Service) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Service) setSource(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

// Describe returns the catalog's version and size. The remote is asked
// first; on failure the snapshot metadata is used, then the seed data.
func (s *Service) Describe(ctx context.Context) (domain.CatalogInfo, error) {
	info, remoteErr := s.describeRemote(ctx)
	if remoteErr == nil {
		if !info.IsEmpty() {
			s.setSource(SourceRemote)
			return info, nil
		}
		remoteErr = domain.ErrEmptyCatalog
	} else {
		if ctx.Err() != nil {
			return domain.CatalogInfo{}, ctx.Err()
		}
		s.logger.Warn("remote catalog unavailable, falling back", "error", remoteErr)

		if cached, ok := s.store.GetCatalogInfo(); ok && !cached.IsEmpty() {
			cached.FromCache = true
			s.setSource(SourceSnapshot)
			s.logger.Info("using catalog snapshot", "version", cached.Version, "size", cached.Size)
			return cached, nil
		}
	}

	if seedInfo, ok := s.seedInfo(); ok {
		s.setSource(SourceSeed)
		s.logger.Info("using seed catalog", "size", seedInfo.Size)
		return seedInfo, nil
	}

	if errors.Is(remoteErr, domain.ErrEmptyCatalog) {
		return domain.CatalogInfo{}, remoteErr
	}
	return domain.CatalogInfo{}, fmt.Errorf("%w: %w", domain.ErrEmptyCatalog, remoteErr)
}

func (s *Service) describeRemote(ctx context.Context) (domain.CatalogInfo, error) {
	if s.client == nil {
		return domain.CatalogInfo{}, domain.ErrRemoteUnavailable
	}

	version, err := s.client.FetchVersion(ctx)
	if err != nil {
		return domain.CatalogInfo{}, err
	}
	maxIndex, err := s.client.FetchMaxIndex(ctx)
	if err != nil {
		return domain.CatalogInfo{}, err
	}

	info := domain.CatalogInfo{Version: version, Size: max(maxIndex+1, 0)}

	if prev, ok := s.store.GetCatalogInfo(); ok && version > prev.Version {
		// Content behind known indices may have changed. The old snapshot
		// stays usable until items of the new version arrive.
		s.mu.Lock()
		s.newer = &info
		s.mu.Unlock()
		s.logger.Info("catalog version advanced", "from", prev.Version, "to", version)
	} else {
		s.mu.Lock()
		s.newer = nil
		s.mu.Unlock()
		if err := s.store.SaveCatalogInfo(info); err != nil {
			s.logger.Error("failed to save catalog info", "error", err)
		}
	}

	s.logger.Debug("described remote catalog", "version", version, "size", info.Size)
	return info, nil
}

func (s *Service) seedInfo() (domain.CatalogInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.seed) == 0 {
		return domain.CatalogInfo{}, false
	}
	size := 0
	for idx := range s.seed {
		size = max(size, idx+1)
	}
	return domain.CatalogInfo{Size: size, FromCache: true}, true
}

// FetchItems returns the items for indices in request order. Indices with
// no item anywhere are omitted. Only when nothing at all could be found
// after a remote failure is an error returned.
//
// After a version bump every index is fetched remotely; the old snapshot
// is replaced only once the whole request succeeded and otherwise keeps
// serving as the fallback.
func (s *Service) FetchItems(ctx context.Context, indices []int) ([]domain.Item, error) {
	if len(indices) == 0 {
		return nil, nil
	}

	if s.Source() == SourceSeed {
		return s.seedItems(indices), nil
	}

	s.mu.RLock()
	newer := s.newer
	s.mu.RUnlock()

	local, missing := s.store.GetItems(indices)
	found := make(map[int]domain.Item, len(indices))
	for _, item := range local {
		found[item.GlobalIndex] = item
	}

	request := missing
	if newer != nil {
		request = indices
	}

	var remoteErr error
	if len(request) > 0 {
		fetched, err := s.fetchRemote(ctx, request)
		for _, item := range fetched {
			found[item.GlobalIndex] = item
		}
		switch {
		case err == nil && newer != nil:
			s.commitVersion(*newer, fetched)
		case len(fetched) > 0:
			if err := s.store.SaveItems(fetched); err != nil {
				s.logger.Error("failed to save items", "error", err, "count", len(fetched))
			}
		}
		remoteErr = err
	}

	if remoteErr != nil {
		s.logger.Warn("remote item fetch failed", "error", remoteErr, "missing", len(missing))
		for _, item := range s.seedItems(missing) {
			if _, ok := found[item.GlobalIndex]; !ok {
				found[item.GlobalIndex] = item
			}
		}
		if len(found) == 0 {
			if errors.Is(remoteErr, domain.ErrRemoteUnavailable) || ctx.Err() != nil {
				return nil, remoteErr
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrRemoteUnavailable, remoteErr)
		}
	}

	items := make([]domain.Item, 0, len(found))
	for _, idx := range indices {
		if item, ok := found[idx]; ok {
			items = append(items, item)
			delete(found, idx)
		}
	}
	s.logger.Debug("fetched items", "requested", len(indices), "local", len(local), "returned", len(items))
	return items, nil
}

// fetchRemote requests indices in pages, returning whatever arrived before
// the first failure along with that failure.
func (s *Service) fetchRemote(ctx context.Context, indices []int) ([]domain.Item, error) {
	if s.client == nil {
		return nil, domain.ErrRemoteUnavailable
	}
	return fetchChunked(ctx, indices, s.pageSize, s.client.FetchByIndices)
}

// fetchChunked is a generic pagination helper over an index list.
func fetchChunked[T any](
	ctx context.Context,
	indices []int,
	chunkSize int,
	fetch func(ctx context.Context, chunk []int) ([]T, error),
) ([]T, error) {
	if chunkSize <= 0 {
		chunkSize = defaultPageSize
	}

	var all []T
	for start := 0; start < len(indices); start += chunkSize {
		select {
		case <-ctx.Done():
			return all, ctx.Err()
		default:
		}

		end := min(start+chunkSize, len(indices))
		items, err := fetch(ctx, indices[start:end])
		if err != nil {
			return all, err
		}
		all = append(all, items...)
	}
	return all, nil
}

func (s *Service) seedItems(indices []int) []domain.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var items []domain.Item
	for _, idx := range indices {
		if item, ok := s.seed[idx]; ok {
			items = append(items, item)
		}
	}
	return items
}

// commitVersion replaces the item snapshot with items of the newer version
// and records its catalog info
func (s *Service) commitVersion(info domain.CatalogInfo, items []domain.Item) {
	s.store.InvalidateItems()
	if err := s.store.SaveItems(items); err != nil {
		s.logger.Error("failed to save items", "error", err, "count", len(items))
		return
	}
	if err := s.store.SaveCatalogInfo(info); err != nil {
		s.logger.Error("failed to save catalog info", "error", err)
		return
	}

	s.mu.Lock()
	if s.newer != nil && s.newer.Version == info.Version {
		s.newer = nil
	}
	s.mu.Unlock()
	s.logger.Info("item snapshot replaced", "version", info.Version, "items", len(items))
}

// SnapshotBehind reports whether the remote moved to a version whose items
// have not been saved yet. Items served meanwhile are from the older version.
func (s *Service) SnapshotBehind() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newer != nil
}

// CachedItems returns every locally known item in index order: the seed
// data when running from it, the snapshot otherwise
func (s *Service) CachedItems() []domain.Item {
	if s.Source() == SourceSeed {
		s.mu.RLock()
		items := make([]domain.Item, 0, len(s.seed))
		for _, item := range s.seed {
			items = append(items, item)
		}
		s.mu.RUnlock()
		sort.Slice(items, func(i, j int) bool { return items[i].GlobalIndex < items[j].GlobalIndex })
		return items
	}
	items := s.store.GetAllItems()
	sort.Slice(items, func(i, j int) bool { return items[i].GlobalIndex < items[j].GlobalIndex })
	return items
}
