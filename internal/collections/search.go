package collections

import (
	"sort"
	"strings"

	fuzzysearch "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/sahilm/fuzzy"
)

// savedIndex implements sahilm/fuzzy.Source over the distinct saved items
type savedIndex struct {
	items       []domain.MediaItem
	lowerTitles []string // Pre-computed lowercase titles
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *savedIndex) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of items (implements fuzzy.Source)
func (idx *savedIndex) Len() int { return len(idx.items) }

// SearchSaved fuzzy-matches query against the titles of every saved item.
// Each item appears once even when saved in several collections; results
// are best match first.
func (s *Store) SearchSaved(query string) []domain.MediaItem {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	idx := s.buildSavedIndex()
	matches := fuzzy.FindFrom(strings.ToLower(query), idx)

	results := make([]domain.MediaItem, 0, len(matches))
	for _, m := range matches {
		results = append(results, idx.items[m.Index])
	}
	return results
}

func (s *Store) buildSavedIndex() *savedIndex {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := &savedIndex{}
	seen := make(map[int64]bool, len(s.state.SavedItemIDs))
	for _, c := range s.state.Collections {
		for _, item := range c.Items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			idx.items = append(idx.items, item.Clone())
			idx.lowerTitles = append(idx.lowerTitles, strings.ToLower(item.Title))
		}
	}
	return idx
}

// FindCollections returns collections whose title fuzzy-matches query,
// closest first. An empty query returns every collection.
func (s *Store) FindCollections(query string) []domain.Collection {
	cols := s.Collections()

	query = strings.TrimSpace(query)
	if query == "" {
		return cols
	}

	titles := make([]string, len(cols))
	for i, c := range cols {
		titles[i] = c.Title
	}

	ranks := fuzzysearch.RankFindNormalizedFold(query, titles)
	sort.Stable(ranks)

	results := make([]domain.Collection, 0, len(ranks))
	for _, r := range ranks {
		results = append(results, cols[r.OriginalIndex])
	}
	return results
}
