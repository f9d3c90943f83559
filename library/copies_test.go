package library

import (
	"errors"
	"path/filepath"
	"testing"
)

func tempCopies(t *testing.T) *CopyStore {
	t.Helper()
	s, err := NewCopyStore(filepath.Join(t.TempDir(), "book_copies.json"))
	if err != nil {
		t.Fatalf("new copy store: %v", err)
	}
	return s
}

func addCopies(t *testing.T, s *CopyStore, titleID string, numbers ...int) {
	t.Helper()
	for _, n := range numbers {
		c := Copy{CopyID: CopyIDFor(titleID, n), TitleID: titleID, CopyNumber: n}
		if err := s.Add(c); err != nil {
			t.Fatalf("add copy %d: %v", n, err)
		}
	}
}

func TestCopyNumbersNeverReused(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1, 2, 3)

	if err := s.Remove("CS001_3"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := s.NextCopyNumber("CS001"); got != 4 {
		t.Fatalf("want next number 4 after removing the max, got %d", got)
	}
	if got := s.NextCopyNumber("LIT001"); got != 1 {
		t.Fatalf("want 1 for a title with no copies, got %d", got)
	}
}

func TestCopyNumbersSurviveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book_copies.json")
	s, err := NewCopyStore(path)
	if err != nil {
		t.Fatalf("new copy store: %v", err)
	}
	addCopies(t, s, "CS001", 1, 2, 3)
	if err := s.Remove("CS001_3"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	reloaded, err := NewCopyStore(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.NextCopyNumber("CS001"); got != 4 {
		t.Fatalf("retired number must stay retired across reloads, got %d", got)
	}
}

func TestFirstAvailableLowestNumber(t *testing.T) {
	s := tempCopies(t)
	// Insert out of order; allocation must still go lowest-number-first.
	addCopies(t, s, "CS001", 3, 1, 2)

	first, ok := s.FirstAvailable("CS001")
	if !ok || first.CopyNumber != 1 {
		t.Fatalf("want copy 1 first, got %+v ok=%v", first, ok)
	}
	if err := s.Borrow(first.CopyID, "alice", Today().AddDays(30)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	first, ok = s.FirstAvailable("CS001")
	if !ok || first.CopyNumber != 2 {
		t.Fatalf("want copy 2 next, got %+v ok=%v", first, ok)
	}
}

func TestBorrowSetsAndReturnClearsDates(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1)
	due := Today().AddDays(14)

	if err := s.Borrow("CS001_1", "alice", due); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	c, _ := s.Get("CS001_1")
	if c.Available() {
		t.Fatalf("copy should be on loan")
	}
	if c.BorrowedBy != "alice" || !c.BorrowDate.Equal(Today().Time) || !c.DueDate.Equal(due.Time) {
		t.Fatalf("loan fields wrong: %+v", c)
	}

	if err := s.Return("CS001_1"); err != nil {
		t.Fatalf("return: %v", err)
	}
	c, _ = s.Get("CS001_1")
	if !c.Available() || !c.BorrowDate.IsZero() || !c.DueDate.IsZero() {
		t.Fatalf("loan state should be fully cleared: %+v", c)
	}
}

func TestBorrowFailures(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1)

	if err := s.Borrow("CS001_9", "alice", Today()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for missing copy, got %v", err)
	}
	if err := s.Borrow("CS001_1", "alice", Today()); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := s.Borrow("CS001_1", "bob", Today()); !errors.Is(err, ErrCopyOnLoan) {
		t.Fatalf("want ErrCopyOnLoan for double borrow, got %v", err)
	}
}

func TestRenewExtendsFromCurrentDue(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1)
	due := Today().AddDays(10)
	if err := s.Borrow("CS001_1", "alice", due); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := s.Renew("CS001_1", 7); err != nil {
		t.Fatalf("renew: %v", err)
	}
	c, _ := s.Get("CS001_1")
	if want := due.AddDays(7); !c.DueDate.Equal(want.Time) {
		t.Fatalf("want due %s, got %s", want, c.DueDate)
	}

	// Default period when no explicit extension is given.
	if err := s.Renew("CS001_1", 0); err != nil {
		t.Fatalf("renew default: %v", err)
	}
	c, _ = s.Get("CS001_1")
	if want := due.AddDays(7 + DefaultLoanDays); !c.DueDate.Equal(want.Time) {
		t.Fatalf("want due %s, got %s", want, c.DueDate)
	}
}

func TestRenewRequiresActiveLoan(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1)
	if err := s.Renew("CS001_1", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound renewing an available copy, got %v", err)
	}
}

func TestDueSoonWindow(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1, 2, 3)
	s.Borrow("CS001_1", "alice", Today().AddDays(3))
	s.Borrow("CS001_2", "bob", Today().AddDays(20))

	got := s.DueSoon(7)
	if len(got) != 1 || got[0].CopyID != "CS001_1" {
		t.Fatalf("want only the copy due in 3 days, got %+v", got)
	}
	// Overdue copies stay in the window.
	s.Return("CS001_1")
	s.Borrow("CS001_1", "alice", Today().AddDays(-2))
	if got := s.DueSoon(7); len(got) != 1 {
		t.Fatalf("overdue copy should be reported, got %+v", got)
	}
}

func TestCopyCounts(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1, 2, 3)
	s.Borrow("CS001_2", "alice", Today().AddDays(30))

	if got := s.TotalCount("CS001"); got != 3 {
		t.Fatalf("total: want 3, got %d", got)
	}
	if got := s.AvailableCount("CS001"); got != 2 {
		t.Fatalf("available: want 2, got %d", got)
	}
	if got := s.BorrowedCount("CS001"); got != 1 {
		t.Fatalf("borrowed: want 1, got %d", got)
	}
	if got := s.BorrowedBy("alice"); len(got) != 1 || got[0].CopyID != "CS001_2" {
		t.Fatalf("BorrowedBy: %+v", got)
	}
}

func TestRemoveByTitleAndRetitle(t *testing.T) {
	s := tempCopies(t)
	addCopies(t, s, "CS001", 1, 2)
	addCopies(t, s, "LIT001", 1)

	changed, err := s.Retitle("CS001", "CS100")
	if err != nil || changed != 2 {
		t.Fatalf("retitle: changed=%d err=%v", changed, err)
	}
	if _, ok := s.Get("CS100_2"); !ok {
		t.Fatalf("retitled copy id missing")
	}
	if got := s.NextCopyNumber("CS100"); got != 3 {
		t.Fatalf("watermark must follow the rename, got %d", got)
	}
	if got := s.NextCopyNumber("CS001"); got != 1 {
		t.Fatalf("old id must start fresh, got %d", got)
	}

	removed, err := s.RemoveByTitle("CS100")
	if err != nil || removed != 2 {
		t.Fatalf("remove by title: removed=%d err=%v", removed, err)
	}
	if got := s.TotalCount("LIT001"); got != 1 {
		t.Fatalf("other title's copies must survive, got %d", got)
	}
	if got := s.NextCopyNumber("CS100"); got != 1 {
		t.Fatalf("a removed title's numbering starts over if re-created, got %d", got)
	}
}
