package database

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrDuplicateFeed   = errors.New("a feed with this alias already exists")
	ErrNoSuchFeed      = errors.New("no feed was found with this alias")
	ErrFeedInUse       = errors.New("feed still has filters, delete them first")
	ErrUnknownFeed     = errors.New("couldn't find a feed with this alias")
	ErrDuplicateFilter = errors.New("a filter with the same feed alias, keywords and script path already exists")
	ErrNoMatch         = errors.New("no filters matching")
	ErrAmbiguousMatch  = errors.New("multiple filters matching")
	ErrInvalidKeyword  = errors.New("keywords must not contain control characters")

	ErrScriptNotFile       = errors.New("the filter's script path is not a file")
	ErrScriptNotExecutable = errors.New("the filter's script path is not executable")

	// Invariant violations. These are never expected in correct operation.
	ErrNoSuchFilter        = errors.New("no filter was found to update")
	ErrCorruptState        = errors.New("database is in an inconsistent state")
	ErrWatermarkRegression = errors.New("filter watermark cannot move backwards")
)

// PersistenceError is a storage fault that has no domain meaning.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// constraintCode returns the sqlite result code of a constraint violation,
// or 0 when err is not one.
func constraintCode(err error) int {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0
	}
	if sqliteErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return 0
	}
	return sqliteErr.Code()
}

func isUniqueViolation(err error) bool {
	switch constraintCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	return constraintCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}
