// Package transport moves command documents from the camera side to the
// robot side. Every implementation is a single slot: a new document replaces
// the previous one.
package transport

import (
	"context"
	"errors"
)

// ErrNoRecord is returned by a Source when the slot is absent or empty.
var ErrNoRecord = errors.New("no record")

// Transport delivers a document to the remote slot. Delivery is best effort;
// nothing is read back beyond the error.
type Transport interface {
	Deliver(ctx context.Context, data []byte) error
}

// Source reads the current content of the slot.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Closer is implemented by transports and sources holding connections.
type Closer interface {
	Close() error
}

// Close closes v if it holds resources.
func Close(v any) error {
	if c, ok := v.(Closer); ok {
		return c.Close()
	}
	return nil
}
