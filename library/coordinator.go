package library

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Session is the identity handed over by the authentication collaborator at
// session start. The Coordinator never authenticates anyone itself.
type Session struct {
	Username   string
	Privileged bool
}

// Coordinator composes the catalog and copy stores and is the only component
// the presentation layer talks to. It enforces the invariants that span both
// stores: a new title always gets one seeded copy, a title cannot be removed
// while any of its copies is on loan, and every successful borrow bumps the
// title's loan counter.
//
// Multi-step operations are not atomic across the two stores; each one runs
// as a compensating-action sequence, and a failed compensation surfaces as
// ErrPersistence meaning the stores may have diverged.
//
// A single mutex serializes coordinator operations. The change notification
// fans out synchronously after a successful mutation, outside the lock.
type Coordinator struct {
	mu      sync.Mutex
	catalog *CatalogStore
	copies  *CopyStore

	// view is the presentation-order title list. Sorting reorders only this
	// slice; store order is untouched. It resets to store order after every
	// mutation.
	view []Title

	session Session

	observers []observer
	notifying bool
	pending   bool
}

type observer struct {
	id string
	fn func()
}

// NewCoordinator wires a coordinator around explicitly constructed stores.
func NewCoordinator(catalog *CatalogStore, copies *CopyStore) *Coordinator {
	return &Coordinator{
		catalog: catalog,
		copies:  copies,
		view:    catalog.All(),
	}
}

// SetSession installs the collaborator-supplied identity.
func (c *Coordinator) SetSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

// CurrentSession returns the identity installed by SetSession.
func (c *Coordinator) CurrentSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Subscribe registers fn to be called after every successful mutating
// operation and returns a token for Unsubscribe. Observers must not assume
// they can mutate synchronously without the replay described in notify.
func (c *Coordinator) Subscribe(fn func()) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := uuid.NewString()
	c.observers = append(c.observers, observer{id: id, fn: fn})
	return id
}

// Unsubscribe removes a previously registered observer.
func (c *Coordinator) Unsubscribe(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.observers {
		if c.observers[i].id == token {
			c.observers = append(c.observers[:i], c.observers[i+1:]...)
			return
		}
	}
}

// notify fans the change signal out to all observers. If an observer issues
// a mutating call synchronously, that inner call's notification is queued and
// replayed as one extra pass after the outer fan-out completes, instead of
// re-entering.
func (c *Coordinator) notify() {
	c.mu.Lock()
	if c.notifying {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.notifying = true
	c.mu.Unlock()

	for {
		c.mu.Lock()
		fns := make([]func(), len(c.observers))
		for i, ob := range c.observers {
			fns[i] = ob.fn
		}
		c.mu.Unlock()

		for _, fn := range fns {
			fn()
		}

		c.mu.Lock()
		if !c.pending {
			c.notifying = false
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

func (c *Coordinator) refreshView() { c.view = c.catalog.All() }

// AddTitle creates a catalog entry and seeds exactly one copy (number 1) for
// it. If the seed copy cannot be persisted the title is removed again.
func (c *Coordinator) AddTitle(t Title) error {
	if err := c.addTitle(t); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) addTitle(t Title) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.TitleID == "" {
		return fmt.Errorf("title id must not be empty")
	}
	if _, ok := c.catalog.Get(t.TitleID); ok {
		return fmt.Errorf("title %q: %w", t.TitleID, ErrDuplicateKey)
	}
	if t.AcquiredDate.IsZero() {
		t.AcquiredDate = Today()
	}
	if err := c.catalog.Add(t); err != nil {
		return err
	}
	seed := Copy{
		CopyID:     CopyIDFor(t.TitleID, 1),
		TitleID:    t.TitleID,
		CopyNumber: 1,
	}
	if err := c.copies.Add(seed); err != nil {
		if undoErr := c.catalog.Remove(t.TitleID); undoErr != nil {
			return fmt.Errorf("%w: seeding copy failed (%v) and removing title failed (%v)",
				ErrPersistence, err, undoErr)
		}
		return err
	}
	c.refreshView()
	return nil
}

// UpdateTitle replaces the record stored under oldID. Renaming onto an id
// that already exists elsewhere is refused; a successful rename also moves
// the title's copies under the new id.
func (c *Coordinator) UpdateTitle(oldID string, t Title) error {
	if err := c.updateTitle(oldID, t); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) updateTitle(oldID string, t Title) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.catalog.Replace(oldID, t); err != nil {
		return err
	}
	if t.TitleID != oldID {
		if _, err := c.copies.Retitle(oldID, t.TitleID); err != nil {
			return err
		}
	}
	c.refreshView()
	return nil
}

// RemoveTitle cascades: it refuses while any copy is on loan, then removes
// every copy, then the title, in that order, so a crash mid-operation never
// leaves a loaned copy orphaned from its title.
func (c *Coordinator) RemoveTitle(titleID string) error {
	if err := c.removeTitle(titleID); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) removeTitle(titleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.catalog.Get(titleID); !ok {
		return fmt.Errorf("title %q: %w", titleID, ErrNotFound)
	}
	if n := c.copies.BorrowedCount(titleID); n > 0 {
		return fmt.Errorf("title %q has %d copies on loan: %w", titleID, n, ErrCopyOnLoan)
	}
	if _, err := c.copies.RemoveByTitle(titleID); err != nil {
		return err
	}
	if err := c.catalog.Remove(titleID); err != nil {
		return err
	}
	c.refreshView()
	return nil
}

// AddCopies allocates count new copies for the title, numbered from
// NextCopyNumber upward. A mid-batch failure aborts without rolling back the
// copies already inserted.
func (c *Coordinator) AddCopies(titleID string, count int) ([]Copy, error) {
	added, err := c.addCopies(titleID, count)
	if len(added) > 0 {
		c.notify()
	}
	return added, err
}

func (c *Coordinator) addCopies(titleID string, count int) ([]Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if count <= 0 {
		return nil, fmt.Errorf("copy count must be positive, got %d", count)
	}
	if _, ok := c.catalog.Get(titleID); !ok {
		return nil, fmt.Errorf("title %q: %w", titleID, ErrNotFound)
	}
	next := c.copies.NextCopyNumber(titleID)
	var added []Copy
	for i := 0; i < count; i++ {
		cp := Copy{
			CopyID:     CopyIDFor(titleID, next+i),
			TitleID:    titleID,
			CopyNumber: next + i,
		}
		if err := c.copies.Add(cp); err != nil {
			return added, err
		}
		added = append(added, cp)
	}
	return added, nil
}

// RemoveCopy deletes a single copy, refusing while it is on loan.
func (c *Coordinator) RemoveCopy(copyID string) error {
	if err := c.removeCopy(copyID); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) removeCopy(copyID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp, ok := c.copies.Get(copyID)
	if !ok {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotFound)
	}
	if !cp.Available() {
		return fmt.Errorf("copy %q is borrowed by %q: %w", copyID, cp.BorrowedBy, ErrCopyOnLoan)
	}
	if err := c.copies.Remove(copyID); err != nil {
		return err
	}
	return nil
}

// BorrowTitle lends the lowest-numbered available copy of the title to
// borrower and increments the title's loan counter. A zero due date means
// today plus the default loan period. If the counter update cannot be
// persisted the loan is undone; if that undo also fails the stores have
// diverged and the error wraps ErrPersistence.
func (c *Coordinator) BorrowTitle(titleID, borrower string, due Date) (Copy, error) {
	cp, err := c.borrowTitle(titleID, borrower, due)
	if err != nil {
		return Copy{}, err
	}
	c.notify()
	return cp, nil
}

func (c *Coordinator) borrowTitle(titleID, borrower string, due Date) (Copy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if borrower == "" {
		return Copy{}, fmt.Errorf("borrower must not be empty")
	}
	t, ok := c.catalog.Get(titleID)
	if !ok {
		return Copy{}, fmt.Errorf("title %q: %w", titleID, ErrNotFound)
	}
	first, ok := c.copies.FirstAvailable(titleID)
	if !ok {
		return Copy{}, fmt.Errorf("title %q: %w", titleID, ErrNoAvailableCopy)
	}
	if due.IsZero() {
		due = Today().AddDays(DefaultLoanDays)
	}
	if err := c.copies.Borrow(first.CopyID, borrower, due); err != nil {
		return Copy{}, err
	}
	t.LoanCount++
	if err := c.catalog.Update(t); err != nil {
		if undoErr := c.copies.Return(first.CopyID); undoErr != nil {
			return Copy{}, fmt.Errorf("%w: loan counter update failed (%v) and undoing the loan failed (%v)",
				ErrPersistence, err, undoErr)
		}
		return Copy{}, err
	}
	c.refreshView()
	cp, _ := c.copies.Get(first.CopyID)
	return cp, nil
}

// ReturnCopy ends a loan. Only the borrower on record may return a copy;
// returning a copy that is not on loan fails like a missing record.
func (c *Coordinator) ReturnCopy(copyID, borrower string) error {
	if err := c.returnCopy(copyID, borrower); err != nil {
		return err
	}
	c.notify()
	return nil
}

func (c *Coordinator) returnCopy(copyID, borrower string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp, ok := c.copies.Get(copyID)
	if !ok {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotFound)
	}
	if cp.Available() {
		return fmt.Errorf("copy %q is not on loan: %w", copyID, ErrNotFound)
	}
	if cp.BorrowedBy != borrower {
		return fmt.Errorf("copy %q: %w", copyID, ErrNotOwner)
	}
	return c.copies.Return(copyID)
}

// RenewCopy extends a loan's due date by extendDays from its current value;
// non-positive means the default loan period.
func (c *Coordinator) RenewCopy(copyID string, extendDays int) error {
	c.mu.Lock()
	err := c.copies.Renew(copyID, extendDays)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.notify()
	return nil
}

// ExportSnapshot writes the full catalog to an external file.
func (c *Coordinator) ExportSnapshot(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.ExportTo(path)
}

// ImportSnapshot merges titles from an external file, skipping ids that
// already exist, and returns the count actually added. Imported titles get no
// seeded copy; copies are managed through AddCopies.
func (c *Coordinator) ImportSnapshot(path string) (int, error) {
	c.mu.Lock()
	added, err := c.catalog.ImportFrom(path)
	c.refreshView()
	c.mu.Unlock()
	if added > 0 {
		c.notify()
	}
	return added, err
}

// --- Read side ---

// Titles returns the title list in presentation order.
func (c *Coordinator) Titles() []Title {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Title, len(c.view))
	copy(out, c.view)
	return out
}

// Title looks up a single catalog entry.
func (c *Coordinator) Title(titleID string) (Title, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Get(titleID)
}

// SearchTitles matches keyword case-insensitively against name, category,
// location and titleId.
func (c *Coordinator) SearchTitles(keyword string) []Title {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.Search(keyword)
}

// TitlesByCategory filters on exact category.
func (c *Coordinator) TitlesByCategory(category string) []Title {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.ByCategory(category)
}

// TitlesByLocation filters on exact storage site.
func (c *Coordinator) TitlesByLocation(location string) []Title {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalog.ByLocation(location)
}

// CopiesOf returns all copies of the given title.
func (c *Coordinator) CopiesOf(titleID string) []Copy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copies.ByTitle(titleID)
}

// AvailableCopies returns how many copies of the title are free.
func (c *Coordinator) AvailableCopies(titleID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copies.AvailableCount(titleID)
}

// TotalCopies returns how many copies of the title exist.
func (c *Coordinator) TotalCopies(titleID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copies.TotalCount(titleID)
}

// BorrowedBy returns the copies currently held by a borrower.
func (c *Coordinator) BorrowedBy(borrower string) []Copy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copies.BorrowedBy(borrower)
}

// DueSoon returns the loaned copies due within the next withinDays days.
func (c *Coordinator) DueSoon(withinDays int) []Copy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copies.DueSoon(withinDays)
}

// TopBorrowed returns up to n titles ordered by loan count, highest first.
func (c *Coordinator) TopBorrowed(n int) []Title {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.catalog.All()
	sort.SliceStable(out, func(i, j int) bool { return out[i].LoanCount > out[j].LoanCount })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// RecentlyAdded returns the titles acquired within the last days days, most
// recent first.
func (c *Coordinator) RecentlyAdded(days int) []Title {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := Today().AddDays(-days)
	var out []Title
	for _, t := range c.catalog.All() {
		if !t.AcquiredDate.Before(cutoff.Time) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AcquiredDate.After(out[j].AcquiredDate.Time)
	})
	return out
}

// Stats is the aggregate view over both stores.
type Stats struct {
	Titles          int
	Copies          int
	AvailableCopies int
	BorrowedCopies  int
	TotalValue      float64
	PopularCategory string
	PopularLocation string
}

// Statistics aggregates counts and value over the whole catalog. The popular
// category/location is the mode over the title list in store order, ties
// broken by whichever value is encountered first; view sorting does not
// affect it.
func (c *Coordinator) Statistics() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := Stats{
		Titles:     c.catalog.Count(),
		TotalValue: c.catalog.TotalValue(),
	}
	for _, cp := range c.copies.All() {
		st.Copies++
		if cp.Available() {
			st.AvailableCopies++
		} else {
			st.BorrowedCopies++
		}
	}
	all := c.catalog.All()
	st.PopularCategory = modeOf(all, func(t Title) string { return t.Category })
	st.PopularLocation = modeOf(all, func(t Title) string { return t.Location })
	return st
}

func modeOf(titles []Title, key func(Title) string) string {
	counts := make(map[string]int)
	for _, t := range titles {
		counts[key(t)]++
	}
	best, bestCount := "", 0
	seen := make(map[string]bool)
	for _, t := range titles {
		k := key(t)
		if seen[k] {
			continue
		}
		seen[k] = true
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}

// --- Sorting (presentation order only) ---

// SortByName orders the title view by name ascending.
func (c *Coordinator) SortByName() { c.sortView(func(a, b Title) bool { return a.Name < b.Name }) }

// SortByCategory orders the title view by category ascending.
func (c *Coordinator) SortByCategory() {
	c.sortView(func(a, b Title) bool { return a.Category < b.Category })
}

// SortByLocation orders the title view by storage site ascending.
func (c *Coordinator) SortByLocation() {
	c.sortView(func(a, b Title) bool { return a.Location < b.Location })
}

// SortByPrice orders the title view by price descending.
func (c *Coordinator) SortByPrice() { c.sortView(func(a, b Title) bool { return a.Price > b.Price }) }

// SortByLoanCount orders the title view by loan count descending.
func (c *Coordinator) SortByLoanCount() {
	c.sortView(func(a, b Title) bool { return a.LoanCount > b.LoanCount })
}

// SortByAcquiredDate orders the title view most recently acquired first.
func (c *Coordinator) SortByAcquiredDate() {
	c.sortView(func(a, b Title) bool { return a.AcquiredDate.After(b.AcquiredDate.Time) })
}

func (c *Coordinator) sortView(less func(a, b Title) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sort.SliceStable(c.view, func(i, j int) bool { return less(c.view[i], c.view[j]) })
}
