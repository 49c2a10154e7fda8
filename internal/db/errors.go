package db

import "errors"

// Sentinel errors for storage operations.
var (
	ErrKeyNotFound      = errors.New("db: key not found")
	ErrIndexNotFound    = errors.New("db: index not found")
	ErrSnapshotNotFound = errors.New("db: snapshot not found")
)

// Op constants name backend operations for error context.
const (
	OpPing          = "PING"
	OpSearch        = "SEARCH"
	OpCount         = "COUNT"
	OpOpenSnapshot  = "OPEN_PIT"
	OpSearchAfter   = "SEARCH_AFTER"
	OpCloseSnapshot = "CLOSE_PIT"
	OpIndex         = "INDEX"
	OpGet           = "GET"
	OpSet           = "SET"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
