package domain

import (
	"fmt"
	"strings"
)

// MediaKind distinguishes the variants a MediaItem can carry
type MediaKind string

const (
	MediaKindMovie  MediaKind = "movie"
	MediaKindSeries MediaKind = "series"
)

// Actor is a cast member shown on detail pages
type Actor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Episode is a single episode of a series
type Episode struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	Type        string `json:"type,omitempty"`
	Aired       string `json:"aired,omitempty"`
	Image       string `json:"img,omitempty"`
	Description string `json:"description,omitempty"`
}

// Recommendation is a related title suggested on a movie detail page
type Recommendation struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Poster  string  `json:"poster,omitempty"`
	Year    string  `json:"year,omitempty"`
	Rating  float64 `json:"rating,omitempty"`
	Runtime string  `json:"runtime,omitempty"`
}

// MovieDetail holds movie-only metadata
type MovieDetail struct {
	Tagline         string           `json:"tagline,omitempty"`
	Runtime         string           `json:"runtime,omitempty"` // Pre-formatted, e.g. "2h 45m"
	Director        string           `json:"director,omitempty"`
	Budget          string           `json:"budget,omitempty"` // Pre-formatted, e.g. "$356M"
	Revenue         string           `json:"revenue,omitempty"`
	TrailerURL      string           `json:"trailerUrl,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
}

// SeriesDetail holds series-only metadata
type SeriesDetail struct {
	RuntimeMinutes int               `json:"runtime,omitempty"`
	TotalEpisodes  int               `json:"totalEpisodes,omitempty"`
	Network        string            `json:"network,omitempty"`
	Country        string            `json:"country,omitempty"`
	Status         string            `json:"status,omitempty"` // e.g. "Returning Series", "Ended"
	Trailer        string            `json:"trailer,omitempty"`
	Seasons        map[int][]Episode `json:"seasons,omitempty"`
}

// MediaItem is a movie or series as saved into a collection.
// Kind is set at construction and selects which detail pointer is populated.
type MediaItem struct {
	ID       int64     `json:"id"`
	Kind     MediaKind `json:"kind"`
	Title    string    `json:"title"`
	Year     string    `json:"year,omitempty"`
	Poster   string    `json:"poster,omitempty"`
	Fanart   string    `json:"fanart,omitempty"`
	Overview string    `json:"overview,omitempty"`
	Rating   float64   `json:"rating,omitempty"`
	Genres   []string  `json:"genres,omitempty"`
	Cast     []Actor   `json:"cast,omitempty"`

	Movie  *MovieDetail  `json:"movie,omitempty"`
	Series *SeriesDetail `json:"series,omitempty"`
}

// NewMovieItem builds a movie-kind MediaItem
func NewMovieItem(id int64, title string, detail MovieDetail) MediaItem {
	return MediaItem{ID: id, Kind: MediaKindMovie, Title: title, Movie: &detail}
}

// NewSeriesItem builds a series-kind MediaItem
func NewSeriesItem(id int64, title string, detail SeriesDetail) MediaItem {
	return MediaItem{ID: id, Kind: MediaKindSeries, Title: title, Series: &detail}
}

// IsMovie reports whether the item is a movie
func (m MediaItem) IsMovie() bool { return m.Kind == MediaKindMovie }

// IsSeries reports whether the item is a series
func (m MediaItem) IsSeries() bool { return m.Kind == MediaKindSeries }

// Validate checks that Kind and the populated detail agree
func (m MediaItem) Validate() error {
	switch m.Kind {
	case MediaKindMovie:
		if m.Series != nil {
			return fmt.Errorf("%w: movie %d carries series detail", ErrInvalidMediaItem, m.ID)
		}
	case MediaKindSeries:
		if m.Movie != nil {
			return fmt.Errorf("%w: series %d carries movie detail", ErrInvalidMediaItem, m.ID)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMediaItem, m.Kind)
	}
	return nil
}

// Description returns secondary info for list display
// (e.g. "2024 · 2h 10m" for movies, "2019 · 40 episodes" for series)
func (m MediaItem) Description() string {
	var parts []string
	if m.Year != "" {
		parts = append(parts, m.Year)
	}
	switch m.Kind {
	case MediaKindMovie:
		if m.Movie != nil && m.Movie.Runtime != "" {
			parts = append(parts, m.Movie.Runtime)
		}
	case MediaKindSeries:
		if m.Series != nil && m.Series.TotalEpisodes > 0 {
			parts = append(parts, fmt.Sprintf("%d episodes", m.Series.TotalEpisodes))
		}
	}
	return strings.Join(parts, " · ")
}

// Clone returns a deep copy of the item
func (m MediaItem) Clone() MediaItem {
	c := m
	c.Genres = append([]string(nil), m.Genres...)
	c.Cast = append([]Actor(nil), m.Cast...)
	if m.Movie != nil {
		movie := *m.Movie
		movie.Recommendations = append([]Recommendation(nil), m.Movie.Recommendations...)
		c.Movie = &movie
	}
	if m.Series != nil {
		series := *m.Series
		if m.Series.Seasons != nil {
			series.Seasons = make(map[int][]Episode, len(m.Series.Seasons))
			for num, eps := range m.Series.Seasons {
				series.Seasons[num] = append([]Episode(nil), eps...)
			}
		}
		c.Series = &series
	}
	return c
}

// Collection is a user-named, ordered list of saved media items.
// Items are newest-first and unique by ID.
type Collection struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	IsDefault bool        `json:"isDefault,omitempty"`
	Items     []MediaItem `json:"items"`
	CreatedAt int64       `json:"createdAt"` // epoch milliseconds
}

// Contains reports whether an item with the given ID is in the collection
func (c *Collection) Contains(itemID int64) bool {
	return c.indexOf(itemID) >= 0
}

func (c *Collection) indexOf(itemID int64) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// CoverItems returns up to n of the most recently added items, used for cover art
func (c *Collection) CoverItems(n int) []MediaItem {
	if n > len(c.Items) {
		n = len(c.Items)
	}
	if n <= 0 {
		return nil
	}
	return c.Items[:n]
}

// Clone returns a deep copy of the collection
func (c Collection) Clone() Collection {
	out := c
	out.Items = make([]MediaItem, len(c.Items))
	for i, item := range c.Items {
		out.Items[i] = item.Clone()
	}
	return out
}
