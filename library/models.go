package library

import (
	"fmt"
	"time"
)

// Title describes one catalog entry. It carries metadata only; the physical
// instances live in the CopyStore as Copy records keyed by TitleID.
type Title struct {
	TitleID      string  `json:"titleId"`
	Name         string  `json:"name"`
	Author       string  `json:"author"`
	Publisher    string  `json:"publisher"`
	Location     string  `json:"location"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	AcquiredDate Date    `json:"acquiredDate"`
	LoanCount    int     `json:"loanCount"`
}

// Copy is one physical, independently loanable instance of a Title.
// An empty BorrowedBy is the sole availability signal; BorrowDate and DueDate
// are set together on borrow and cleared together on return.
type Copy struct {
	CopyID     string `json:"copyId"`
	TitleID    string `json:"titleId"`
	CopyNumber int    `json:"copyNumber"`
	BorrowedBy string `json:"borrowedBy"`
	BorrowDate Date   `json:"borrowDate"`
	DueDate    Date   `json:"dueDate"`
}

// Available reports whether the copy can be lent out.
func (c Copy) Available() bool { return c.BorrowedBy == "" }

// CopyIDFor derives the unique copy identifier from the title id and the
// copy's number, e.g. "CS001_2".
func CopyIDFor(titleID string, copyNumber int) string {
	return fmt.Sprintf("%s_%d", titleID, copyNumber)
}

// Locations is the fixed set of storage sites a title can be shelved at.
var Locations = []string{"Main Library", "East Campus Library"}

// ValidLocation reports whether loc is one of the known storage sites.
func ValidLocation(loc string) bool {
	for _, l := range Locations {
		if l == loc {
			return true
		}
	}
	return false
}

const dateLayout = "2006-01-02"

// Date is a calendar date. The zero value means "unset" and serializes as an
// empty string; set dates serialize as ISO yyyy-mm-dd.
type Date struct {
	time.Time
}

// Today returns the current calendar date.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, m, d)
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO yyyy-mm-dd string. Anything unparsable, including
// the empty string, yields the unset date; the stores favor availability over
// strict validation and repair what they must on load.
func ParseDate(s string) Date {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}
	}
	return Date{t}
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	if d.IsZero() {
		return d
	}
	return Date{d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*d = ParseDate(s)
	return nil
}
