package data

import (
	"errors"
	"sync"
)

// Standard errors shared by the engine and all index backends.
var (
	// Path errors
	ErrNotDirectory = errors.New("snapdu: not a directory")

	// Snapshot errors
	ErrInvalidSnapshot = errors.New("snapdu: invalid snapshot")
	ErrSnapshotExists  = errors.New("snapdu: snapshot already indexed")

	// Index lifecycle errors
	ErrIndexNotOpen         = errors.New("snapdu: index not opened")
	ErrIndexUnavailable     = errors.New("snapdu: index backend unavailable")
	ErrMalformedAddress     = errors.New("snapdu: malformed index address")
	ErrUnknownAddressScheme = errors.New("snapdu: unknown index address scheme")

	// Transaction errors
	ErrTransactionClosed = errors.New("snapdu: transaction already closed")
	ErrTransactionActive = errors.New("snapdu: another transaction is active")
)

// Errors collects multiple errors, e.g. from cleanup paths that must not stop early.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
