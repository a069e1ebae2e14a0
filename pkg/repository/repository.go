package repository

import (
	"context"
	"time"

	"github.com/m-mizutani/leopaint/pkg/model"
)

// Repository defines the interface for local state persistence. The history
// list is stored as a single keyed entry, newest first; the credential is a
// separate keyed entry with an expiry timestamp.
type Repository interface {
	// SaveHistory replaces the persisted history with the given ordered list
	SaveHistory(ctx context.Context, items []*model.HistoryItem) error

	// LoadHistory reads the persisted history. An empty store yields an
	// empty list; an unparseable store yields ErrPersistedStateCorrupt.
	LoadHistory(ctx context.Context) ([]*model.HistoryItem, error)

	// SaveAPIKey persists the credential, overwriting any previous value
	// and its expiry
	SaveAPIKey(ctx context.Context, key string, expiresAt time.Time) error

	// GetAPIKey reads the persisted credential. Absent or expired entries
	// yield an empty string without error.
	GetAPIKey(ctx context.Context) (string, error)

	// DeleteAPIKey removes the persisted credential
	DeleteAPIKey(ctx context.Context) error

	// Close releases the underlying store
	Close() error
}
