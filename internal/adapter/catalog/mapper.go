package catalog

import (
	"time"

	"github.com/mmcdole/quizdeck/internal/domain"
)

// MapItems converts backend rows to domain items, dropping rows without a
// question or answer.
func MapItems(rows []Question) []domain.Item {
	items := make([]domain.Item, 0, len(rows))
	for _, row := range rows {
		item := MapItem(row)
		if !item.IsComplete() {
			continue
		}
		items = append(items, item)
	}
	return items
}

// MapItem converts a single backend row
func MapItem(row Question) domain.Item {
	return domain.Item{
		GlobalIndex: row.Index,
		Question:    row.Question,
		Answer:      row.Answer,
		Thinking:    row.Thinking,
		Category:    row.Type,
		CreatedAt:   parseTime(row.CreatedAt),
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Now()
	}
	return t
}
