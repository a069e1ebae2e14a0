package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/repository"
	"github.com/m-mizutani/leopaint/pkg/utils/logging"
)

// Store keeps the ordered, size-bounded log of generation results, newest
// first. Every mutation rewrites the full list to the repository so the
// persisted and in-memory state never diverge.
type Store struct {
	repo repository.Repository

	mu    sync.Mutex
	items []*model.HistoryItem
}

func New(repo repository.Repository) *Store {
	return &Store{repo: repo}
}

// Load reads the persisted history. Corrupt state degrades to an empty
// history and is never fatal to startup.
func (s *Store) Load(ctx context.Context) error {
	items, err := s.repo.LoadHistory(ctx)
	if err != nil {
		if errors.Is(err, model.ErrPersistedStateCorrupt) {
			logging.From(ctx).Warn("discarding corrupt history", "error", err)
			items = nil
		} else {
			return goerr.Wrap(err, "failed to load history")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	return nil
}

// Append creates a new item from a successful generation or edit, prepends
// it, truncates to the cap, and persists the updated list. The version is 1
// unless parentID resolves to an existing item, in which case it is the
// parent's version plus one.
func (s *Store) Append(ctx context.Context, imageDataURI string, cfg model.GenerationConfig, parentID model.HistoryItemID) (*model.HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	version := 1
	if parentID != "" {
		if parent := s.find(parentID); parent != nil {
			version = parent.Version + 1
		}
	}

	item := &model.HistoryItem{
		GenerationConfig: cfg,
		ID:               model.NewHistoryItemID(),
		ImageURL:         imageDataURI,
		Timestamp:        time.Now().UnixMilli(),
		Version:          version,
		ParentID:         parentID,
	}

	items := append([]*model.HistoryItem{item}, s.items...)
	if len(items) > model.HistoryCap {
		items = items[:model.HistoryCap]
	}

	if err := s.repo.SaveHistory(ctx, items); err != nil {
		return nil, goerr.Wrap(err, "failed to persist history")
	}

	s.items = items
	return item, nil
}

// Items returns the current list, newest first
func (s *Store) Items() []*model.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.HistoryItem(nil), s.items...)
}

// Find returns the item with the given ID, or nil
func (s *Store) Find(id model.HistoryItemID) *model.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(id)
}

func (s *Store) find(id model.HistoryItemID) *model.HistoryItem {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// Lineage walks the parent chain starting at id, newest first. Dangling
// parent references end the walk instead of failing.
func (s *Store) Lineage(id model.HistoryItemID) []*model.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chain []*model.HistoryItem
	for item := s.find(id); item != nil; item = s.find(item.ParentID) {
		chain = append(chain, item)
		if item.ParentID == "" || len(chain) > model.HistoryCap {
			break
		}
	}
	return chain
}

// SetRemoteURL records the hosted URL of an uploaded item and persists the
// updated list.
func (s *Store) SetRemoteURL(ctx context.Context, id model.HistoryItemID, hostedURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.find(id)
	if item == nil {
		return goerr.Wrap(model.ErrItemNotFound, "cannot record remote URL", goerr.V("id", id))
	}

	item.RemoteURL = hostedURL
	if err := s.repo.SaveHistory(ctx, s.items); err != nil {
		return goerr.Wrap(err, "failed to persist history")
	}
	return nil
}

// Clear empties the history and persists the empty list
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.SaveHistory(ctx, nil); err != nil {
		return goerr.Wrap(err, "failed to persist history")
	}
	s.items = nil
	return nil
}
