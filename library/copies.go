package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultLoanDays is the standard loan period, also used when renewing.
const DefaultLoanDays = 30

// CopyStore owns the collection of physical copies. Same load-once,
// rewrite-on-mutation discipline as the CatalogStore, keyed by copyId; the
// by-title view is recomputed per query rather than materialized.
//
// counters records the highest copy number ever assigned per title, persisted
// in a sibling file, so a retired number is never handed out again after the
// copy holding it is removed.
//
// This store enforces no lending policy beyond the availability flag itself:
// removal of a loaned copy and the owner check on return are the
// Coordinator's job.
type CopyStore struct {
	path         string
	countersPath string
	copies       []Copy
	counters     map[string]int
}

// counterPath derives the counter file location from the copy file location,
// e.g. data/book_copies.json -> data/book_copies_counters.json.
func counterPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_counters.json"
}

// NewCopyStore opens (or creates) the copy file at path.
func NewCopyStore(path string) (*CopyStore, error) {
	if err := ensureDataDir(path); err != nil {
		return nil, err
	}
	s := &CopyStore{
		path:         path,
		countersPath: counterPath(path),
		counters:     make(map[string]int),
	}
	if _, err := os.Stat(path); err == nil {
		copies, err := readRecordFile[Copy](path)
		if err != nil {
			return nil, err
		}
		s.copies = copies
	} else if err := s.save(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.countersPath); err == nil {
		counters, err := readCounterFile(s.countersPath)
		if err != nil {
			return nil, err
		}
		s.counters = counters
	}
	// A hand-edited copy file may be ahead of the recorded watermarks.
	for _, c := range s.copies {
		if c.CopyNumber > s.counters[c.TitleID] {
			s.counters[c.TitleID] = c.CopyNumber
		}
	}
	return s, nil
}

// Path returns the location of the backing file.
func (s *CopyStore) Path() string { return s.path }

func (s *CopyStore) save() error { return writeRecordFile(s.path, s.copies) }

func (s *CopyStore) saveCounters() error { return writeCounterFile(s.countersPath, s.counters) }

func (s *CopyStore) indexOf(copyID string) int {
	for i := range s.copies {
		if s.copies[i].CopyID == copyID {
			return i
		}
	}
	return -1
}

// Add inserts a new copy, advances the title's watermark if the copy carries a
// new highest number, and persists the collection.
func (s *CopyStore) Add(c Copy) error {
	if s.indexOf(c.CopyID) >= 0 {
		return fmt.Errorf("copy %q: %w", c.CopyID, ErrDuplicateKey)
	}
	s.copies = append(s.copies, c)
	if c.CopyNumber > s.counters[c.TitleID] {
		s.counters[c.TitleID] = c.CopyNumber
		if err := s.saveCounters(); err != nil {
			return err
		}
	}
	return s.save()
}

// Remove deletes the copy regardless of its loan state.
func (s *CopyStore) Remove(copyID string) error {
	i := s.indexOf(copyID)
	if i < 0 {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotFound)
	}
	s.copies = append(s.copies[:i], s.copies[i+1:]...)
	return s.save()
}

// Update replaces the record with the same copyId.
func (s *CopyStore) Update(c Copy) error {
	i := s.indexOf(c.CopyID)
	if i < 0 {
		return fmt.Errorf("copy %q: %w", c.CopyID, ErrNotFound)
	}
	s.copies[i] = c
	return s.save()
}

// Get looks up a single copy.
func (s *CopyStore) Get(copyID string) (Copy, bool) {
	i := s.indexOf(copyID)
	if i < 0 {
		return Copy{}, false
	}
	return s.copies[i], true
}

// All returns every copy in store order.
func (s *CopyStore) All() []Copy {
	out := make([]Copy, len(s.copies))
	copy(out, s.copies)
	return out
}

// ByTitle returns all copies of the given title.
func (s *CopyStore) ByTitle(titleID string) []Copy {
	var out []Copy
	for _, c := range s.copies {
		if c.TitleID == titleID {
			out = append(out, c)
		}
	}
	return out
}

// Available returns the title's free copies ordered ascending by copy number,
// so copies are always lent lowest-number-first.
func (s *CopyStore) Available(titleID string) []Copy {
	all := s.ByTitle(titleID)
	sort.Slice(all, func(i, j int) bool { return all[i].CopyNumber < all[j].CopyNumber })
	var out []Copy
	for _, c := range all {
		if c.Available() {
			out = append(out, c)
		}
	}
	return out
}

// FirstAvailable returns the lowest-numbered free copy of the title. This is
// the allocation policy for borrow requests.
func (s *CopyStore) FirstAvailable(titleID string) (Copy, bool) {
	avail := s.Available(titleID)
	if len(avail) == 0 {
		return Copy{}, false
	}
	return avail[0], true
}

// Borrow marks the copy as lent to borrower until due. The borrow date is
// always today.
func (s *CopyStore) Borrow(copyID, borrower string, due Date) error {
	i := s.indexOf(copyID)
	if i < 0 {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotFound)
	}
	if !s.copies[i].Available() {
		return fmt.Errorf("copy %q: %w", copyID, ErrCopyOnLoan)
	}
	s.copies[i].BorrowedBy = borrower
	s.copies[i].BorrowDate = Today()
	s.copies[i].DueDate = due
	return s.save()
}

// Return clears the loan state unconditionally if the copy exists. Whether
// the caller is the borrower is checked one layer up.
func (s *CopyStore) Return(copyID string) error {
	i := s.indexOf(copyID)
	if i < 0 {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotFound)
	}
	s.copies[i].BorrowedBy = ""
	s.copies[i].BorrowDate = Date{}
	s.copies[i].DueDate = Date{}
	return s.save()
}

// Renew extends the due date of a loaned copy by extendDays from its current
// value. A non-positive extendDays means the default loan period.
func (s *CopyStore) Renew(copyID string, extendDays int) error {
	i := s.indexOf(copyID)
	if i < 0 {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotFound)
	}
	if s.copies[i].Available() {
		return fmt.Errorf("copy %q is not on loan: %w", copyID, ErrNotFound)
	}
	if extendDays <= 0 {
		extendDays = DefaultLoanDays
	}
	s.copies[i].DueDate = s.copies[i].DueDate.AddDays(extendDays)
	return s.save()
}

// BorrowedBy returns every copy currently held by the given borrower.
func (s *CopyStore) BorrowedBy(borrower string) []Copy {
	var out []Copy
	for _, c := range s.copies {
		if c.BorrowedBy != "" && c.BorrowedBy == borrower {
			out = append(out, c)
		}
	}
	return out
}

// DueSoon returns the loaned copies whose due date falls within the next
// withinDays days (overdue copies included).
func (s *CopyStore) DueSoon(withinDays int) []Copy {
	cutoff := Today().AddDays(withinDays)
	var out []Copy
	for _, c := range s.copies {
		if !c.Available() && !c.DueDate.IsZero() && !c.DueDate.After(cutoff.Time) {
			out = append(out, c)
		}
	}
	return out
}

// TotalCount returns how many copies of the title exist.
func (s *CopyStore) TotalCount(titleID string) int { return len(s.ByTitle(titleID)) }

// AvailableCount returns how many copies of the title are free.
func (s *CopyStore) AvailableCount(titleID string) int { return len(s.Available(titleID)) }

// BorrowedCount returns how many copies of the title are out on loan.
func (s *CopyStore) BorrowedCount(titleID string) int {
	return s.TotalCount(titleID) - s.AvailableCount(titleID)
}

// NextCopyNumber returns 1 + the highest copy number ever assigned for the
// title, or 1 if it never had copies. The watermark survives removal, so
// retired numbers are never reused.
func (s *CopyStore) NextCopyNumber(titleID string) int {
	return s.counters[titleID] + 1
}

// RemoveByTitle deletes every copy of the title in one rewrite and returns
// how many were removed. The title's watermark is retired with it; a title
// re-created under the same id starts numbering fresh. Only the Coordinator
// calls this, as the cascade step of title removal.
func (s *CopyStore) RemoveByTitle(titleID string) (int, error) {
	kept := s.copies[:0]
	removed := 0
	for _, c := range s.copies {
		if c.TitleID == titleID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if _, ok := s.counters[titleID]; ok {
		delete(s.counters, titleID)
		if err := s.saveCounters(); err != nil {
			return 0, err
		}
	}
	if removed == 0 {
		return 0, nil
	}
	s.copies = kept
	return removed, s.save()
}

// Retitle moves every copy of oldID under newID, rederiving the copy ids, and
// returns how many were touched. The watermark follows the rename. Used when a
// title is renamed.
func (s *CopyStore) Retitle(oldID, newID string) (int, error) {
	changed := 0
	for i := range s.copies {
		if s.copies[i].TitleID != oldID {
			continue
		}
		s.copies[i].TitleID = newID
		s.copies[i].CopyID = CopyIDFor(newID, s.copies[i].CopyNumber)
		changed++
	}
	if n := s.counters[oldID]; n > 0 {
		if n > s.counters[newID] {
			s.counters[newID] = n
		}
		delete(s.counters, oldID)
		if err := s.saveCounters(); err != nil {
			return changed, err
		}
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.save()
}
