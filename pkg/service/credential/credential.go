package credential

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/leopaint/pkg/repository"
)

// MinKeyLength is the minimum-length sanity check callers apply before Set
const MinKeyLength = 20

// keyTTL matches the one-year cookie persistence of the original storage.
// Every Set rewrites the expiry.
const keyTTL = 365 * 24 * time.Hour

// Store reads and writes the user's API key. A deploy-time fallback (usually
// the GEMINI_API_KEY environment variable) applies when nothing is stored.
type Store struct {
	repo     repository.Repository
	fallback string
}

type Option func(*Store)

// WithFallback sets the credential used when no stored value exists
func WithFallback(key string) Option {
	return func(s *Store) {
		s.fallback = key
	}
}

func New(repo repository.Repository, opts ...Option) *Store {
	s := &Store{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the persisted credential, or the fallback when none is stored.
// An empty result means no credential is available.
func (s *Store) Get(ctx context.Context) (string, error) {
	key, err := s.repo.GetAPIKey(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read credential")
	}
	if key == "" {
		return s.fallback, nil
	}
	return key, nil
}

// Set persists the credential with a one-year expiry
func (s *Store) Set(ctx context.Context, key string) error {
	if err := s.repo.SaveAPIKey(ctx, key, time.Now().Add(keyTTL)); err != nil {
		return goerr.Wrap(err, "failed to store credential")
	}
	return nil
}

// Clear removes the persisted credential
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.DeleteAPIKey(ctx); err != nil {
		return goerr.Wrap(err, "failed to clear credential")
	}
	return nil
}
