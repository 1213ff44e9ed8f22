package storage

import "errors"

// Sentinel errors shared by every chunk store. Backends wrap driver errors
// with these so callers can branch with errors.Is regardless of the store.
var (
	ErrNotFound            = errors.New("resource has no stored chunks")
	ErrStorageClosed       = errors.New("chunk store is closed")
	ErrSerializationFailed = errors.New("chunk encoding failed")
	// ErrCorruptRecord marks a stored record shorter than its header claims.
	ErrCorruptRecord = errors.New("corrupt chunk record")
)
