// Package loader parses bundled seed cards used when the remote catalog has
// never been reached.
//
// A seed file holds sections separated by a "----q----" line. The first line
// of a section is the question; the remaining lines are the answer,
// optionally followed by a "----rc----" line and the reasoning text.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/quizdeck/internal/domain"
)

const (
	sectionSeparator  = "\n----q----\n"
	thinkingSeparator = "\n----rc----\n"
	seedExt           = ".txt"
)

// Parse splits seed text into items. Indices start at firstIndex and are
// assigned in order to the sections that parse into complete items.
func Parse(content, category string, firstIndex int) []domain.Item {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	now := time.Now()

	var items []domain.Item
	next := firstIndex
	for _, section := range strings.Split(content, sectionSeparator) {
		lines := strings.Split(strings.TrimSpace(section), "\n")
		if len(lines) < 2 {
			continue
		}

		question := strings.TrimSpace(strings.TrimPrefix(lines[0], "Q: "))
		body := strings.Join(lines[1:], "\n")

		answer, thinking, _ := strings.Cut(body, thinkingSeparator)
		item := domain.Item{
			GlobalIndex: next,
			Question:    question,
			Answer:      strings.TrimSpace(answer),
			Thinking:    strings.TrimSpace(thinking),
			Category:    category,
			CreatedAt:   now,
		}
		if !item.IsComplete() {
			continue
		}
		items = append(items, item)
		next++
	}
	return items
}

// LoadFile parses a single seed file. The category is the file's base name.
func LoadFile(path string, firstIndex int) ([]domain.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	category := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(string(data), category, firstIndex), nil
}

// LoadDir parses every .txt file in dir in name order, numbering items
// sequentially from zero across files.
func LoadDir(dir string) ([]domain.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), seedExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var items []domain.Item
	for _, name := range names {
		loaded, err := LoadFile(filepath.Join(dir, name), len(items))
		if err != nil {
			return nil, err
		}
		items = append(items, loaded...)
	}
	return items, nil
}
