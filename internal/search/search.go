// Package search finds liked cards by fuzzy matching their questions.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/quizdeck/internal/domain"
)

// ItemSource resolves items by global index
type ItemSource interface {
	FetchItems(ctx context.Context, indices []int) ([]domain.Item, error)
}

// LikeSource exposes the liked indices
type LikeSource interface {
	Snapshot() domain.ProgressState
}

// Result is a matched liked card
type Result struct {
	Item     domain.Item
	Distance int // Levenshtein distance of the match (lower = better)
}

// Service handles fuzzy search over liked cards
type Service struct {
	items  ItemSource
	likes  LikeSource
	logger *slog.Logger
}

// NewService creates a new search service
func NewService(items ItemSource, likes LikeSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{items: items, likes: likes, logger: logger}
}

// LoadLiked returns the liked items in index order. Liked indices whose
// items cannot be resolved are skipped.
func (s *Service) LoadLiked(ctx context.Context) ([]domain.Item, error) {
	liked := s.likes.Snapshot().LikedIndices.Sorted()
	if len(liked) == 0 {
		return nil, nil
	}

	items, err := s.items.FetchItems(ctx, liked)
	if err != nil {
		s.logger.Error("failed to load liked cards", "error", err, "count", len(liked))
		return nil, err
	}
	for i := range items {
		items[i].IsLiked = true
	}
	if len(items) < len(liked) {
		s.logger.Warn("some liked cards are unavailable", "liked", len(liked), "found", len(items))
	}
	return items, nil
}

// Liked loads the liked cards and filters them by query
func (s *Service) Liked(ctx context.Context, query string) ([]Result, error) {
	items, err := s.LoadLiked(ctx)
	if err != nil {
		return nil, err
	}
	results := Filter(items, query)
	s.logger.Debug("liked search", "query", query, "results", len(results))
	return results, nil
}

// Filter ranks items whose question fuzzily contains query (case and
// diacritics insensitive). An empty query keeps every item in order.
func Filter(items []domain.Item, query string) []Result {
	query = strings.TrimSpace(query)
	if query == "" {
		results := make([]Result, len(items))
		for i, item := range items {
			results[i] = Result{Item: item}
		}
		return results
	}

	targets := make([]string, len(items))
	for i, item := range items {
		targets[i] = QuestionText(item)
	}

	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.Stable(ranks)

	results := make([]Result, len(ranks))
	for i, r := range ranks {
		results[i] = Result{Item: items[r.OriginalIndex], Distance: r.Distance}
	}
	return results
}

// QuestionText is the question as displayed and searched
func QuestionText(item domain.Item) string {
	return strings.TrimSpace(strings.TrimPrefix(item.Question, "Q: "))
}
