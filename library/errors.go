package library

import "errors"

// Error kinds shared by the stores and the Coordinator. Store and coordinator
// methods wrap these with the offending id; callers match with errors.Is.
var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrNotFound        = errors.New("not found")
	ErrCopyOnLoan      = errors.New("copy is on loan")
	ErrNoAvailableCopy = errors.New("no available copy")
	ErrNotOwner        = errors.New("copy is borrowed by someone else")
	ErrPersistence     = errors.New("persistence failure")
)
