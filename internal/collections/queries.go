package collections

import (
	"sort"

	"github.com/mmcdole/marquee/internal/domain"
)

// Reads never fail and never return memory shared with the store.

// Collections returns a copy of every collection, in display order
func (s *Store) Collections() []domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Collection, len(s.state.Collections))
	for i, c := range s.state.Collections {
		out[i] = c.Clone()
	}
	return out
}

// Collection returns a copy of one collection
func (s *Store) Collection(id string) (domain.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return domain.Collection{}, false
	}
	return s.state.Collections[idx].Clone(), true
}

// IsItemInAnyCollection reports whether any collection holds itemID
func (s *Store) IsItemInAnyCollection(itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.SavedItemIDs[itemID]
}

// IsItemInCollection reports whether the given collection holds itemID.
// False when the collection does not exist.
func (s *Store) IsItemInCollection(collectionID string, itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(collectionID)
	if idx < 0 {
		return false
	}
	return s.state.Collections[idx].Contains(itemID)
}

// SavedItemIDs returns every saved item ID in ascending order
func (s *Store) SavedItemIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0, len(s.state.SavedItemIDs))
	for id := range s.state.SavedItemIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
