package library

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	dir := t.TempDir()
	catalog, err := NewCatalogStore(filepath.Join(dir, "library_data.json"))
	if err != nil {
		t.Fatalf("catalog store: %v", err)
	}
	copies, err := NewCopyStore(filepath.Join(dir, "book_copies.json"))
	if err != nil {
		t.Fatalf("copy store: %v", err)
	}
	return NewCoordinator(catalog, copies)
}

func mustAddTitle(t *testing.T, c *Coordinator, id string) Title {
	t.Helper()
	title := testTitle(id)
	if err := c.AddTitle(title); err != nil {
		t.Fatalf("add title %s: %v", id, err)
	}
	return title
}

func TestAddTitleSeedsOneCopy(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")

	if got := c.TotalCopies("CS001"); got != 1 {
		t.Fatalf("want exactly one seeded copy, got %d", got)
	}
	copies := c.CopiesOf("CS001")
	if copies[0].CopyNumber != 1 || copies[0].CopyID != "CS001_1" || !copies[0].Available() {
		t.Fatalf("seeded copy wrong: %+v", copies[0])
	}

	if err := c.AddTitle(testTitle("CS001")); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey, got %v", err)
	}
}

func TestBorrowLifecycle(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	due := Today().AddDays(30)

	cp, err := c.BorrowTitle("CS001", "alice", due)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if cp.CopyID != "CS001_1" || cp.BorrowedBy != "alice" || !cp.DueDate.Equal(due.Time) {
		t.Fatalf("loaned copy wrong: %+v", cp)
	}
	if got := c.AvailableCopies("CS001"); got != 0 {
		t.Fatalf("want 0 available, got %d", got)
	}
	title, _ := c.Title("CS001")
	if title.LoanCount != 1 {
		t.Fatalf("loan counter not incremented: %d", title.LoanCount)
	}

	// No free copy left for the next borrower.
	if _, err := c.BorrowTitle("CS001", "bob", due); !errors.Is(err, ErrNoAvailableCopy) {
		t.Fatalf("want ErrNoAvailableCopy, got %v", err)
	}
	if _, err := c.BorrowTitle("ZZ999", "bob", due); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown title, got %v", err)
	}
}

func TestBorrowDefaultDueDate(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")

	cp, err := c.BorrowTitle("CS001", "alice", Date{})
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if want := Today().AddDays(DefaultLoanDays); !cp.DueDate.Equal(want.Time) {
		t.Fatalf("want default due %s, got %s", want, cp.DueDate)
	}
}

func TestAddCopiesContinuesNumbering(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	if _, err := c.BorrowTitle("CS001", "alice", Today().AddDays(30)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	added, err := c.AddCopies("CS001", 2)
	if err != nil {
		t.Fatalf("add copies: %v", err)
	}
	if len(added) != 2 || added[0].CopyNumber != 2 || added[1].CopyNumber != 3 {
		t.Fatalf("want copy numbers 2 and 3, got %+v", added)
	}
	if got := c.AvailableCopies("CS001"); got != 2 {
		t.Fatalf("want 2 available, got %d", got)
	}

	if _, err := c.AddCopies("ZZ999", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := c.AddCopies("CS001", 0); err == nil {
		t.Fatalf("want error for non-positive count")
	}
}

func TestAddCopiesNeverReusesRemovedNumbers(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	if _, err := c.AddCopies("CS001", 2); err != nil {
		t.Fatalf("add copies: %v", err)
	}
	if err := c.RemoveCopy("CS001_3"); err != nil {
		t.Fatalf("remove copy: %v", err)
	}

	added, err := c.AddCopies("CS001", 1)
	if err != nil {
		t.Fatalf("add copies: %v", err)
	}
	if added[0].CopyNumber != 4 {
		t.Fatalf("removed number 3 must stay retired, got %d", added[0].CopyNumber)
	}
}

func TestReturnByNonOwner(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	cp, err := c.BorrowTitle("CS001", "alice", Today().AddDays(30))
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := c.ReturnCopy(cp.CopyID, "mallory"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}
	got, _ := c.copies.Get(cp.CopyID)
	if got.BorrowedBy != "alice" {
		t.Fatalf("copy must remain loaned to alice: %+v", got)
	}

	if err := c.ReturnCopy(cp.CopyID, "alice"); err != nil {
		t.Fatalf("owner return: %v", err)
	}
}

func TestDoubleReturnFails(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	cp, _ := c.BorrowTitle("CS001", "alice", Today().AddDays(30))

	if err := c.ReturnCopy(cp.CopyID, "alice"); err != nil {
		t.Fatalf("first return: %v", err)
	}
	if err := c.ReturnCopy(cp.CopyID, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second return must fail like a missing loan, got %v", err)
	}
	if err := c.ReturnCopy("ZZ999_1", "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown copy, got %v", err)
	}
}

func TestRemoveTitleBlockedWhileOnLoan(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	if _, err := c.AddCopies("CS001", 1); err != nil {
		t.Fatalf("add copies: %v", err)
	}
	cp, _ := c.BorrowTitle("CS001", "alice", Today().AddDays(30))

	if err := c.RemoveTitle("CS001"); !errors.Is(err, ErrCopyOnLoan) {
		t.Fatalf("want ErrCopyOnLoan, got %v", err)
	}

	if err := c.ReturnCopy(cp.CopyID, "alice"); err != nil {
		t.Fatalf("return: %v", err)
	}
	if err := c.RemoveTitle("CS001"); err != nil {
		t.Fatalf("remove after return: %v", err)
	}
	if got := c.TotalCopies("CS001"); got != 0 {
		t.Fatalf("cascade must remove every copy, %d left", got)
	}
	if _, ok := c.Title("CS001"); ok {
		t.Fatalf("title should be gone")
	}
}

func TestRemoveCopyRefusedWhileOnLoan(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	cp, _ := c.BorrowTitle("CS001", "alice", Today().AddDays(30))

	if err := c.RemoveCopy(cp.CopyID); !errors.Is(err, ErrCopyOnLoan) {
		t.Fatalf("want ErrCopyOnLoan, got %v", err)
	}
	if err := c.RemoveCopy("ZZ999_1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	c.ReturnCopy(cp.CopyID, "alice")
	if err := c.RemoveCopy(cp.CopyID); err != nil {
		t.Fatalf("remove available copy: %v", err)
	}
}

func TestUpdateTitleRenameCascades(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")
	mustAddTitle(t, c, "CS002")
	if _, err := c.AddCopies("CS001", 1); err != nil {
		t.Fatalf("add copies: %v", err)
	}

	renamed := testTitle("CS002")
	if err := c.UpdateTitle("CS001", renamed); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("want ErrDuplicateKey renaming onto CS002, got %v", err)
	}
	if err := c.UpdateTitle("ZZ999", testTitle("ZZ999")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	renamed.TitleID = "CS100"
	if err := c.UpdateTitle("CS001", renamed); err != nil {
		t.Fatalf("rename: %v", err)
	}
	copies := c.CopiesOf("CS100")
	if len(copies) != 2 {
		t.Fatalf("copies must follow the rename, got %d", len(copies))
	}
	for _, cp := range copies {
		if cp.CopyID != CopyIDFor("CS100", cp.CopyNumber) {
			t.Fatalf("copy id not rederived: %+v", cp)
		}
	}
	if got := c.CopiesOf("CS001"); len(got) != 0 {
		t.Fatalf("no copies may stay under the old id: %+v", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	src := newTestCoordinator(t)
	for _, id := range []string{"CS001", "LIT001", "HIS001"} {
		mustAddTitle(t, src, id)
	}
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := src.ExportSnapshot(path); err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestCoordinator(t)
	added, err := dst.ImportSnapshot(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if added != 3 {
		t.Fatalf("want 3 imported, got %d", added)
	}

	want := make(map[string]Title)
	for _, title := range src.Titles() {
		want[title.TitleID] = title
	}
	got := dst.Titles()
	if len(got) != len(want) {
		t.Fatalf("title sets differ in size: %d vs %d", len(got), len(want))
	}
	for _, title := range got {
		if want[title.TitleID] != title {
			t.Fatalf("title %s differs after round-trip", title.TitleID)
		}
	}
}

func TestSortReordersViewOnly(t *testing.T) {
	c := newTestCoordinator(t)
	cheap := testTitle("CS001")
	cheap.Price = 10
	dear := testTitle("CS002")
	dear.Price = 99
	c.AddTitle(cheap)
	c.AddTitle(dear)

	c.SortByPrice()
	view := c.Titles()
	if view[0].TitleID != "CS002" {
		t.Fatalf("want most expensive first, got %s", view[0].TitleID)
	}
	// Store order is untouched by sorting.
	if stored := c.catalog.All(); stored[0].TitleID != "CS001" {
		t.Fatalf("store order must not change, got %s first", stored[0].TitleID)
	}

	c.SortByName()
	view = c.Titles()
	if view[0].Name > view[1].Name {
		t.Fatalf("name sort not ascending: %q, %q", view[0].Name, view[1].Name)
	}
}

func TestStatistics(t *testing.T) {
	c := newTestCoordinator(t)
	// Two categories with equal counts: the tie goes to the one encountered
	// first in iteration order.
	a := testTitle("CS001")
	b := testTitle("LIT001")
	b.Category = "Literature"
	b.Location = Locations[1]
	c2 := testTitle("CS002")
	d := testTitle("LIT002")
	d.Category = "Literature"
	for _, title := range []Title{a, b, c2, d} {
		if err := c.AddTitle(title); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if _, err := c.BorrowTitle("CS001", "alice", Today().AddDays(30)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	st := c.Statistics()
	if st.Titles != 4 || st.Copies != 4 {
		t.Fatalf("counts wrong: %+v", st)
	}
	if st.AvailableCopies != 3 || st.BorrowedCopies != 1 {
		t.Fatalf("availability wrong: %+v", st)
	}
	if st.TotalValue != 42.50*4 {
		t.Fatalf("total value wrong: %v", st.TotalValue)
	}
	if st.PopularCategory != "Computer Science" {
		t.Fatalf("tie must break to first-encountered category, got %q", st.PopularCategory)
	}
	if st.PopularLocation != Locations[0] {
		t.Fatalf("popular location wrong: %q", st.PopularLocation)
	}
}

func TestStatisticsIgnoresViewOrder(t *testing.T) {
	c := newTestCoordinator(t)
	a := testTitle("CS001")
	b := testTitle("LIT001")
	b.Category = "Literature"
	b.Price = 99
	if err := c.AddTitle(a); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.AddTitle(b); err != nil {
		t.Fatalf("add: %v", err)
	}

	// Put Literature first in the presentation view; the one-each tie must
	// still break to the category added first.
	c.SortByPrice()
	if got := c.Titles()[0].TitleID; got != "LIT001" {
		t.Fatalf("price sort should lead with LIT001, got %s", got)
	}
	if st := c.Statistics(); st.PopularCategory != "Computer Science" {
		t.Fatalf("tie-break must follow store order, not view order: %q", st.PopularCategory)
	}
}

func TestObserverNotification(t *testing.T) {
	c := newTestCoordinator(t)
	calls := 0
	token := c.Subscribe(func() { calls++ })

	mustAddTitle(t, c, "CS001")
	if calls != 1 {
		t.Fatalf("want 1 notification after AddTitle, got %d", calls)
	}
	if _, err := c.BorrowTitle("CS001", "alice", Today().AddDays(30)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 notifications, got %d", calls)
	}

	// Failed operations must not notify.
	if err := c.AddTitle(testTitle("CS001")); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if calls != 2 {
		t.Fatalf("failed mutation must not notify, got %d", calls)
	}

	c.Unsubscribe(token)
	mustAddTitle(t, c, "CS002")
	if calls != 2 {
		t.Fatalf("unsubscribed observer must not fire, got %d", calls)
	}
}

func TestObserverReentrancyQueued(t *testing.T) {
	c := newTestCoordinator(t)
	mustAddTitle(t, c, "CS001")

	calls := 0
	c.Subscribe(func() {
		calls++
		// Mutate once from inside the notification; the inner change signal
		// must be queued and replayed, not re-entered.
		if calls == 1 {
			if _, err := c.AddCopies("CS001", 1); err != nil {
				t.Errorf("observer mutation: %v", err)
			}
		}
	})

	mustAddTitle(t, c, "CS002")
	if calls != 2 {
		t.Fatalf("want outer pass plus one replay, got %d calls", calls)
	}
	if got := c.TotalCopies("CS001"); got != 2 {
		t.Fatalf("observer mutation must take effect, got %d copies", got)
	}
}

func TestImportSampleData(t *testing.T) {
	c := newTestCoordinator(t)
	if err := c.ImportSampleData(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st := c.Statistics()
	if st.Titles != len(sampleCatalog) {
		t.Fatalf("want %d sample titles, got %d", len(sampleCatalog), st.Titles)
	}
	for _, s := range sampleCatalog {
		want := 1 + s.extraCopies
		if got := c.TotalCopies(s.title.TitleID); got != want {
			t.Fatalf("%s: want %d copies, got %d", s.title.TitleID, want, got)
		}
	}
}
