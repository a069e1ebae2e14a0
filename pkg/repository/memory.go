package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/model"
)

// memoryRepo implements Repository in process memory. The history is held as
// its serialized form so that load/save behaves exactly like the durable
// store, including corruption handling.
type memoryRepo struct {
	mu           sync.Mutex
	history      []byte
	apiKey       string
	apiKeyExpiry int64
}

// NewMemory creates an ephemeral in-memory repository. It backs tests and
// runs where no database path is usable.
func NewMemory() Repository {
	return &memoryRepo{}
}

func (r *memoryRepo) SaveHistory(ctx context.Context, items []*model.HistoryItem) error {
	data, err := json.Marshal(items)
	if err != nil {
		return goerr.Wrap(err, "failed to serialize history")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = data
	return nil
}

func (r *memoryRepo) LoadHistory(ctx context.Context) ([]*model.HistoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.history) == 0 {
		return nil, nil
	}

	var items []*model.HistoryItem
	if err := json.Unmarshal(r.history, &items); err != nil {
		return nil, goerr.Wrap(model.ErrPersistedStateCorrupt, err.Error())
	}
	return items, nil
}

func (r *memoryRepo) SaveAPIKey(ctx context.Context, key string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKey = key
	r.apiKeyExpiry = expiresAt.UnixMilli()
	return nil
}

func (r *memoryRepo) GetAPIKey(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.apiKeyExpiry > 0 && r.apiKeyExpiry <= time.Now().UnixMilli() {
		return "", nil
	}
	return r.apiKey, nil
}

func (r *memoryRepo) DeleteAPIKey(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiKey = ""
	r.apiKeyExpiry = 0
	return nil
}

func (r *memoryRepo) Close() error {
	return nil
}
