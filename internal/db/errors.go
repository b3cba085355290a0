package db

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrDuplicateKey is returned by Insert when a row already exists for the coordinate.
	ErrDuplicateKey = errors.New("chunk row already exists")

	// ErrNotFound is returned by Update when no row exists for the coordinate.
	ErrNotFound = errors.New("chunk row not found")

	// ErrStorageUnavailable marks failures of the backing engine itself.
	ErrStorageUnavailable = errors.New("chunk storage unavailable")

	// ErrClosed is returned after the last reference to a store was released.
	ErrClosed = fmt.Errorf("%w: store is closed", ErrStorageUnavailable)
)

// classify maps driver errors onto the store error taxonomy, keeping the
// original error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%s: %w: %w", op, ErrDuplicateKey, err)
		case sqliteErr.Code == sqlite3.ErrBusy,
			sqliteErr.Code == sqlite3.ErrLocked,
			sqliteErr.Code == sqlite3.ErrCantOpen,
			sqliteErr.Code == sqlite3.ErrIoErr,
			sqliteErr.Code == sqlite3.ErrFull,
			sqliteErr.Code == sqlite3.ErrNotADB:
			return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
		}
	}

	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
