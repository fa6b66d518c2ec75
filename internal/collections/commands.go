package collections

import (
	"github.com/mmcdole/marquee/internal/domain"
)

// Mutations. Unknown IDs are silent no-ops: callers only hold IDs from a
// recent read, so a miss means a deletion won the race.

// CreateCollection appends a new empty collection and returns a copy of it.
// Titles are used as given; duplicates are allowed.
func (s *Store) CreateCollection(title string) domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := domain.Collection{
		ID:        s.newID(),
		Title:     title,
		Items:     []domain.MediaItem{},
		CreatedAt: s.now().UnixMilli(),
	}
	s.state.Collections = append(s.state.Collections, c)
	s.schedulePersistLocked()

	s.logger.Info("created collection", "title", title, "id", c.ID)
	return c.Clone()
}

// DeleteCollection removes a non-default collection and rebuilds the saved
// index, since any of its items may have lost their last reference.
// Reports whether a collection was removed.
func (s *Store) DeleteCollection(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return false
	}
	if s.state.Collections[idx].IsDefault {
		s.logger.Debug("refusing to delete default collection", "id", id)
		return false
	}

	cols := make([]domain.Collection, 0, len(s.state.Collections)-1)
	cols = append(cols, s.state.Collections[:idx]...)
	cols = append(cols, s.state.Collections[idx+1:]...)
	s.state.Collections = cols
	s.state.SavedItemIDs = buildIndex(cols)
	s.schedulePersistLocked()

	s.logger.Info("deleted collection", "id", id)
	return true
}

// AddItem prepends item to a collection. Adding an item already in that
// collection is a no-op; the same item may live in several collections.
// Items whose kind and detail disagree are rejected. Reports whether the
// item was added.
func (s *Store) AddItem(collectionID string, item domain.MediaItem) bool {
	if err := item.Validate(); err != nil {
		s.logger.Warn("rejecting media item", "collectionID", collectionID, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addItemLocked(collectionID, item)
}

func (s *Store) addItemLocked(collectionID string, item domain.MediaItem) bool {
	idx := s.findLocked(collectionID)
	if idx < 0 {
		return false
	}
	c := &s.state.Collections[idx]
	if c.Contains(item.ID) {
		return false
	}

	items := make([]domain.MediaItem, 0, len(c.Items)+1)
	items = append(items, item.Clone())
	items = append(items, c.Items...)
	c.Items = items
	s.state.SavedItemIDs[item.ID] = true
	s.schedulePersistLocked()

	s.logger.Debug("added item to collection", "collectionID", collectionID, "itemID", item.ID)
	return true
}

// RemoveItem removes an item from one collection. The saved index entry is
// dropped only when no collection still holds the item. Reports whether an
// item was removed.
func (s *Store) RemoveItem(collectionID string, itemID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeItemLocked(collectionID, itemID)
}

func (s *Store) removeItemLocked(collectionID string, itemID int64) bool {
	idx := s.findLocked(collectionID)
	if idx < 0 {
		return false
	}
	c := &s.state.Collections[idx]

	items := make([]domain.MediaItem, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ID != itemID {
			items = append(items, item)
		}
	}
	removed := len(items) != len(c.Items)
	c.Items = items

	// Full scan on purpose: correctness must not depend on a counter
	stillSaved := false
	for i := range s.state.Collections {
		if s.state.Collections[i].Contains(itemID) {
			stillSaved = true
			break
		}
	}
	if !stillSaved {
		delete(s.state.SavedItemIDs, itemID)
	}

	if removed {
		s.schedulePersistLocked()
		s.logger.Debug("removed item from collection", "collectionID", collectionID, "itemID", itemID)
	}
	return removed
}

// ToggleItem removes item from the collection if present and adds it
// otherwise. Returns whether the item is in the collection afterwards.
func (s *Store) ToggleItem(collectionID string, item domain.MediaItem) bool {
	if err := item.Validate(); err != nil {
		s.logger.Warn("rejecting media item", "collectionID", collectionID, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(collectionID)
	if idx < 0 {
		return false
	}
	if s.state.Collections[idx].Contains(item.ID) {
		s.removeItemLocked(collectionID, item.ID)
		return false
	}
	return s.addItemLocked(collectionID, item)
}

// RenameCollection replaces a collection's title, leaving everything else as is.
// Reports whether the collection was found.
func (s *Store) RenameCollection(id, newTitle string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.findLocked(id)
	if idx < 0 {
		return false
	}
	s.state.Collections[idx].Title = newTitle
	s.schedulePersistLocked()

	s.logger.Info("renamed collection", "id", id, "title", newTitle)
	return true
}
