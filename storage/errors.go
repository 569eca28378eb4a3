package storage

import "errors"

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: ledger closed")
	ErrCorrupt  = errors.New("storage: corrupt record")
	ErrReadOnly = errors.New("storage: write in read-only transaction")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
