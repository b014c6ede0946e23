// Package memory provides an in-memory Store for development and testing.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geoffreykithuku/books-crawler/internal/books"
)

// Store implements books.Store with mutex-guarded maps. Operations are
// atomic at single-record granularity, mirroring the document-store
// semantics the production backend provides.
type Store struct {
	mu          sync.RWMutex
	books       map[string]books.Book
	checkpoints map[string]books.Checkpoint
	changes     []books.ChangeRecord
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		books:       make(map[string]books.Book),
		checkpoints: make(map[string]books.Checkpoint),
	}
}

// UpsertBook inserts or updates the record keyed by SourceURL.
// Inserts set CreatedAt from the crawl timestamp; updates keep the
// original CreatedAt.
func (s *Store) UpsertBook(_ context.Context, book books.Book) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.books[book.SourceURL]
	if ok {
		book.CreatedAt = existing.CreatedAt
		s.books[book.SourceURL] = book
		return false, nil
	}
	if book.CreatedAt.IsZero() {
		book.CreatedAt = book.CrawledAt
	}
	s.books[book.SourceURL] = book
	return true, nil
}

// FindBook fetches a record by source URL.
func (s *Store) FindBook(_ context.Context, sourceURL string) (books.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book, ok := s.books[sourceURL]
	if !ok {
		return books.Book{}, books.ErrNotFound
	}
	return book, nil
}

// TouchBook advances only the crawl timestamp of an existing record.
func (s *Store) TouchBook(_ context.Context, sourceURL string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[sourceURL]
	if !ok {
		return books.ErrNotFound
	}
	book.CrawledAt = at
	s.books[sourceURL] = book
	return nil
}

// ListBooks returns records matching the filter.
func (s *Store) ListBooks(_ context.Context, filter books.BookFilter) ([]books.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]books.Book, 0, len(s.books))
	for _, b := range s.books {
		if !matches(b, filter) {
			continue
		}
		matched = append(matched, b)
	}

	sortBooks(matched, filter.SortBy)

	if filter.PerPage > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.PerPage
		if start >= len(matched) {
			return []books.Book{}, nil
		}
		end := start + filter.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, nil
}

// SaveCheckpoint upserts the checkpoint for its crawler identity.
func (s *Store) SaveCheckpoint(_ context.Context, cp books.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp.Dispatched = append([]string(nil), cp.Dispatched...)
	s.checkpoints[cp.CrawlerID] = cp
	return nil
}

// LoadCheckpoint fetches the checkpoint for a crawler identity.
func (s *Store) LoadCheckpoint(_ context.Context, crawlerID string) (books.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.checkpoints[crawlerID]
	if !ok {
		return books.Checkpoint{}, books.ErrNotFound
	}
	cp.Dispatched = append([]string(nil), cp.Dispatched...)
	return cp, nil
}

// InsertChange appends an audit entry. Entries are never mutated.
func (s *Store) InsertChange(_ context.Context, rec books.ChangeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.Changes = append([]string(nil), rec.Changes...)
	s.changes = append(s.changes, rec)
	return nil
}

// ChangesBetween returns audit entries with ChangedAt in [from, to),
// newest first.
func (s *Store) ChangesBetween(_ context.Context, from, to time.Time) ([]books.ChangeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]books.ChangeRecord, 0)
	for _, rec := range s.changes {
		if rec.ChangedAt.Before(from) || !rec.ChangedAt.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ChangedAt.After(out[j].ChangedAt)
	})
	return out, nil
}

func matches(b books.Book, f books.BookFilter) bool {
	if f.Category != "" && b.Category != f.Category {
		return false
	}
	if f.Rating != nil && (b.Rating == nil || *b.Rating != *f.Rating) {
		return false
	}
	if f.MinPrice != nil && (b.PriceInclTax == nil || *b.PriceInclTax < *f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && (b.PriceInclTax == nil || *b.PriceInclTax > *f.MaxPrice) {
		return false
	}
	return true
}

func sortBooks(list []books.Book, by books.SortField) {
	switch by {
	case books.SortByPrice:
		sort.Slice(list, func(i, j int) bool {
			return priceOrZero(list[i]) < priceOrZero(list[j])
		})
	case books.SortByReviews:
		sort.Slice(list, func(i, j int) bool {
			return list[i].NumReviews > list[j].NumReviews
		})
	default:
		sort.Slice(list, func(i, j int) bool {
			return ratingOrZero(list[i]) > ratingOrZero(list[j])
		})
	}
}

func priceOrZero(b books.Book) float64 {
	if b.PriceInclTax == nil {
		return 0
	}
	return *b.PriceInclTax
}

func ratingOrZero(b books.Book) int {
	if b.Rating == nil {
		return 0
	}
	return *b.Rating
}
