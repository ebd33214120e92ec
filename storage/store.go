package storage

import "context"

// Update notifies listeners that a single path of the panel state
// document changed.
type Update struct {
	Path  string
	Value []byte
}

// Store holds the last observed panel state as a queryable document. It
// is a best effort cache: the panel remains the source of truth and
// readers must tolerate stale fields between events.
type Store interface {
	Set(ctx context.Context, path string, value interface{}) error
	Get(ctx context.Context, path string) ([]byte, error)

	// Document returns the whole state document as JSON.
	Document() []byte

	ListenToUpdates() <-chan *Update

	Close() error
}
