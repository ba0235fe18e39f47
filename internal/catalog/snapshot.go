// internal/catalog/snapshot.go
package catalog

import (
	"sort"
	"sync/atomic"
	"time"

	"proposition-engine/internal/models"
)

// Snapshot is an immutable view of the proposition catalog at a point in
// time. Generators only ever read a snapshot, so two requests against the
// same snapshot see identical candidate sets even while a refresh is in
// flight.
type Snapshot struct {
	TakenAt    time.Time
	byCategory map[string][]models.Candidate
	pinned     []models.Candidate
	size       int
}

// NewSnapshot indexes the given propositions by category. Within a
// category candidates are ordered by base popularity descending, with
// candidate id as the tiebreak so ordering is fully deterministic.
func NewSnapshot(propositions []models.Candidate) *Snapshot {
	s := &Snapshot{
		TakenAt:    time.Now().UTC(),
		byCategory: make(map[string][]models.Candidate),
		size:       len(propositions),
	}

	for _, p := range propositions {
		if p.Pinned {
			s.pinned = append(s.pinned, p)
		}
		s.byCategory[p.Category] = append(s.byCategory[p.Category], p)
	}

	for cat := range s.byCategory {
		list := s.byCategory[cat]
		sort.Slice(list, func(i, j int) bool {
			if list[i].BasePopularity != list[j].BasePopularity {
				return list[i].BasePopularity > list[j].BasePopularity
			}
			return list[i].ID < list[j].ID
		})
	}
	sort.Slice(s.pinned, func(i, j int) bool { return s.pinned[i].ID < s.pinned[j].ID })

	return s
}

// Categories returns the category names in sorted order.
func (s *Snapshot) Categories() []string {
	cats := make([]string, 0, len(s.byCategory))
	for c := range s.byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// TopN returns up to n candidates for a category, most popular first.
func (s *Snapshot) TopN(category string, n int) []models.Candidate {
	list := s.byCategory[category]
	if n > 0 && len(list) > n {
		list = list[:n]
	}
	out := make([]models.Candidate, len(list))
	copy(out, list)
	return out
}

// Pinned returns the explicitly pinned candidates.
func (s *Snapshot) Pinned() []models.Candidate {
	out := make([]models.Candidate, len(s.pinned))
	copy(out, s.pinned)
	return out
}

// Size returns the number of propositions in the snapshot.
func (s *Snapshot) Size() int {
	return s.size
}

// Holder publishes the current snapshot for concurrent readers. Refresh
// swaps the pointer whole; readers see either the old or the new catalog,
// never a mixture.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

func NewHolder(initial *Snapshot) *Holder {
	h := &Holder{}
	if initial == nil {
		initial = NewSnapshot(nil)
	}
	h.current.Store(initial)
	return h
}

func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

func (h *Holder) Replace(s *Snapshot) {
	if s != nil {
		h.current.Store(s)
	}
}
