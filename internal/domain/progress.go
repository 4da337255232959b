package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// IndexSet is a set of global indices.
// It serializes as a sorted JSON array.
type IndexSet map[int]struct{}

// NewIndexSet creates a set holding the given indices
func NewIndexSet(indices ...int) IndexSet {
	s := make(IndexSet, len(indices))
	for _, i := range indices {
		s[i] = struct{}{}
	}
	return s
}

// Has reports whether i is in the set. Safe on a nil set.
func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Add inserts i and reports whether the set changed
func (s IndexSet) Add(i int) bool {
	if s.Has(i) {
		return false
	}
	s[i] = struct{}{}
	return true
}

// Remove deletes i and reports whether the set changed
func (s IndexSet) Remove(i int) bool {
	if !s.Has(i) {
		return false
	}
	delete(s, i)
	return true
}

// Len returns the number of indices in the set
func (s IndexSet) Len() int { return len(s) }

// Sorted returns the indices in ascending order
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy of the set
func (s IndexSet) Clone() IndexSet {
	out := make(IndexSet, len(s))
	for i := range s {
		out[i] = struct{}{}
	}
	return out
}

func (s IndexSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IndexSet) UnmarshalJSON(data []byte) error {
	var indices []int
	if err := json.Unmarshal(data, &indices); err != nil {
		return err
	}
	*s = NewIndexSet(indices...)
	return nil
}

// ProgressState is the durable record of what the user has seen and liked.
//
// LikedIndices is not required to be a subset of ViewedIndices: a card can be
// liked before it is marked viewed.
type ProgressState struct {
	DataVersion   int       `json:"dataVersion"`
	ViewedIndices IndexSet  `json:"viewedIndices"`
	LikedIndices  IndexSet  `json:"likedIndices"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// NewProgressState returns an empty progress record
func NewProgressState() ProgressState {
	return ProgressState{
		ViewedIndices: NewIndexSet(),
		LikedIndices:  NewIndexSet(),
		LastUpdated:   time.Now(),
	}
}

// Normalize replaces nil sets with empty ones (after decoding old records)
func (p *ProgressState) Normalize() {
	if p.ViewedIndices == nil {
		p.ViewedIndices = NewIndexSet()
	}
	if p.LikedIndices == nil {
		p.LikedIndices = NewIndexSet()
	}
}

func (p *ProgressState) touch(changed bool) bool {
	if changed {
		p.LastUpdated = time.Now()
	}
	return changed
}

// AddViewed records i as viewed and reports whether the state changed
func (p *ProgressState) AddViewed(i int) bool {
	p.Normalize()
	return p.touch(p.ViewedIndices.Add(i))
}

// AddLiked records i as liked and reports whether the state changed
func (p *ProgressState) AddLiked(i int) bool {
	p.Normalize()
	return p.touch(p.LikedIndices.Add(i))
}

// RemoveLiked clears the like on i and reports whether the state changed
func (p *ProgressState) RemoveLiked(i int) bool {
	p.Normalize()
	return p.touch(p.LikedIndices.Remove(i))
}

// ToggleLiked flips the like on i and returns the new liked value
func (p *ProgressState) ToggleLiked(i int) bool {
	if p.LikedIndices.Has(i) {
		p.RemoveLiked(i)
		return false
	}
	p.AddLiked(i)
	return true
}

// SetDataVersion records the catalog version the progress refers to
func (p *ProgressState) SetDataVersion(v int) bool {
	if p.DataVersion == v {
		return false
	}
	p.DataVersion = v
	return p.touch(true)
}

// ResetViewed forgets every viewed index
func (p *ProgressState) ResetViewed() bool {
	if p.ViewedIndices.Len() == 0 {
		p.Normalize()
		return false
	}
	p.ViewedIndices = NewIndexSet()
	return p.touch(true)
}

// Clone returns a deep copy safe to hand to another goroutine
func (p ProgressState) Clone() ProgressState {
	out := p
	out.ViewedIndices = p.ViewedIndices.Clone()
	out.LikedIndices = p.LikedIndices.Clone()
	return out
}
