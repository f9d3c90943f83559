package library

import (
	"fmt"
	"os"
	"strings"
)

// CatalogStore owns the titleId → Title mapping. The collection is loaded
// into memory once at construction and is the single source of truth for
// reads; every mutation rewrites the whole backing file before returning.
//
// On persistence failure the in-memory mutation is not rolled back, so the
// caller must treat such an error as fatal for the session.
type CatalogStore struct {
	path   string
	titles []Title
}

// NewCatalogStore opens (or creates) the catalog file at path.
func NewCatalogStore(path string) (*CatalogStore, error) {
	if err := ensureDataDir(path); err != nil {
		return nil, err
	}
	s := &CatalogStore{path: path}
	if _, err := os.Stat(path); err == nil {
		titles, err := readRecordFile[Title](path)
		if err != nil {
			return nil, err
		}
		s.titles = titles
		s.repairDates()
		return s, nil
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *CatalogStore) Path() string { return s.path }

// repairDates backfills a missing or unparsable acquiredDate with today.
func (s *CatalogStore) repairDates() {
	for i := range s.titles {
		if s.titles[i].AcquiredDate.IsZero() {
			s.titles[i].AcquiredDate = Today()
		}
	}
}

func (s *CatalogStore) save() error { return writeRecordFile(s.path, s.titles) }

func (s *CatalogStore) indexOf(titleID string) int {
	for i := range s.titles {
		if s.titles[i].TitleID == titleID {
			return i
		}
	}
	return -1
}

// Add inserts a new title and persists the collection.
func (s *CatalogStore) Add(t Title) error {
	if s.indexOf(t.TitleID) >= 0 {
		return fmt.Errorf("title %q: %w", t.TitleID, ErrDuplicateKey)
	}
	s.titles = append(s.titles, t)
	return s.save()
}

// Update replaces the record with the same titleId in place.
func (s *CatalogStore) Update(t Title) error {
	i := s.indexOf(t.TitleID)
	if i < 0 {
		return fmt.Errorf("title %q: %w", t.TitleID, ErrNotFound)
	}
	s.titles[i] = t
	return s.save()
}

// Replace swaps the record stored under oldID for t, keeping its position.
// Renaming onto an id that already belongs to another record is refused.
func (s *CatalogStore) Replace(oldID string, t Title) error {
	i := s.indexOf(oldID)
	if i < 0 {
		return fmt.Errorf("title %q: %w", oldID, ErrNotFound)
	}
	if t.TitleID != oldID && s.indexOf(t.TitleID) >= 0 {
		return fmt.Errorf("title %q: %w", t.TitleID, ErrDuplicateKey)
	}
	s.titles[i] = t
	return s.save()
}

// Remove deletes the record. Loan-safety is the Coordinator's concern; this
// store knows nothing about copies.
func (s *CatalogStore) Remove(titleID string) error {
	i := s.indexOf(titleID)
	if i < 0 {
		return fmt.Errorf("title %q: %w", titleID, ErrNotFound)
	}
	s.titles = append(s.titles[:i], s.titles[i+1:]...)
	return s.save()
}

// Get looks up a title. Absence is a normal case for callers like search, so
// it is reported through the bool rather than an error.
func (s *CatalogStore) Get(titleID string) (Title, bool) {
	i := s.indexOf(titleID)
	if i < 0 {
		return Title{}, false
	}
	return s.titles[i], true
}

// All returns the records in store order.
func (s *CatalogStore) All() []Title {
	out := make([]Title, len(s.titles))
	copy(out, s.titles)
	return out
}

// Search matches keyword case-insensitively against name, category, location
// and titleId. Results come back in store order.
func (s *CatalogStore) Search(keyword string) []Title {
	kw := strings.ToLower(keyword)
	var out []Title
	for _, t := range s.titles {
		if strings.Contains(strings.ToLower(t.Name), kw) ||
			strings.Contains(strings.ToLower(t.Category), kw) ||
			strings.Contains(strings.ToLower(t.Location), kw) ||
			strings.Contains(strings.ToLower(t.TitleID), kw) {
			out = append(out, t)
		}
	}
	return out
}

// ByCategory returns the titles filed under exactly the given category.
func (s *CatalogStore) ByCategory(category string) []Title {
	var out []Title
	for _, t := range s.titles {
		if t.Category == category {
			out = append(out, t)
		}
	}
	return out
}

// ByLocation returns the titles shelved at exactly the given site.
func (s *CatalogStore) ByLocation(location string) []Title {
	var out []Title
	for _, t := range s.titles {
		if t.Location == location {
			out = append(out, t)
		}
	}
	return out
}

// Count returns the number of catalog entries.
func (s *CatalogStore) Count() int { return len(s.titles) }

// TotalValue sums the price over all records.
func (s *CatalogStore) TotalValue() float64 {
	var total float64
	for _, t := range s.titles {
		total += t.Price
	}
	return total
}

// ExportTo serializes the full collection to an external file.
func (s *CatalogStore) ExportTo(path string) error {
	if err := ensureDataDir(path); err != nil {
		return err
	}
	return writeRecordFile(path, s.titles)
}

// ImportFrom merges records from an external file, skipping any incoming
// record whose titleId already exists. It returns the count actually added.
func (s *CatalogStore) ImportFrom(path string) (int, error) {
	incoming, err := readRecordFile[Title](path)
	if err != nil {
		return 0, err
	}
	added := 0
	for _, t := range incoming {
		if s.indexOf(t.TitleID) >= 0 {
			continue
		}
		if t.AcquiredDate.IsZero() {
			t.AcquiredDate = Today()
		}
		s.titles = append(s.titles, t)
		added++
	}
	if err := s.save(); err != nil {
		return added, err
	}
	return added, nil
}
