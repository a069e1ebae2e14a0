package model

import (
	"strconv"
	"sync"
	"time"
)

type HistoryItemID string

var (
	lastItemID   int64
	lastItemIDMu sync.Mutex
)

// NewHistoryItemID generates a unique, time-derived ID. Epoch milliseconds
// are bumped by one when two IDs are drawn within the same millisecond so
// that IDs stay unique within the process.
func NewHistoryItemID() HistoryItemID {
	lastItemIDMu.Lock()
	defer lastItemIDMu.Unlock()

	now := time.Now().UnixMilli()
	if now <= lastItemID {
		now = lastItemID + 1
	}
	lastItemID = now

	return HistoryItemID(strconv.FormatInt(now, 10))
}

// HistoryItem is a generated artifact. It is created only from a successful
// generation or edit, and destroyed only by capacity eviction or
// whole-history clearing. The only field written after creation is
// RemoteURL, recorded once the image has been uploaded.
type HistoryItem struct {
	GenerationConfig

	ID        HistoryItemID `json:"id"`
	ImageURL  string        `json:"imageUrl"`
	RemoteURL string        `json:"remoteUrl,omitempty"`
	Timestamp int64         `json:"timestamp"`

	// Version control: 1 for originals, parent.Version+1 for edits.
	Version  int           `json:"version"`
	ParentID HistoryItemID `json:"parentId,omitempty"`
}

// HistoryCap is the maximum number of retained history items. Insertion
// beyond the cap evicts the oldest entry.
const HistoryCap = 15
