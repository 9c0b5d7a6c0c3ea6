// Package journal records effective commits of mirror proxies into their
// native objects. It is an audit trail of edits; the identity map itself is
// never persisted.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one effective commit.
type Entry struct {
	ID         string    `json:"id"`
	ProxyID    uint64    `json:"proxy_id"`
	NativeID   string    `json:"native_id"`
	Type       string    `json:"type"`
	Properties []string  `json:"properties"`
	Changes    int       `json:"changes"`
	At         time.Time `json:"at"`
}

// NewEntry stamps a new entry with an id and the current time.
func NewEntry(proxyID uint64, nativeID, typ string, properties []string, changes int) Entry {
	return Entry{
		ID:         uuid.New().String(),
		ProxyID:    proxyID,
		NativeID:   nativeID,
		Type:       typ,
		Properties: properties,
		Changes:    changes,
		At:         time.Now().UTC(),
	}
}

// Store is the interface for writing and reading journal entries.
type Store interface {
	// Record appends an entry.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit entries, newest first. A native id
	// narrows the result to one object.
	Recent(ctx context.Context, nativeID string, limit int) ([]Entry, error)

	Close() error
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxLimit {
		return defaultLimit
	}
	return limit
}
