package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/leopaint/pkg/model"
	"github.com/m-mizutani/leopaint/pkg/repository"

	_ "modernc.org/sqlite"
)

func newTestRepo(t *testing.T) (repository.Repository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "leopaint.db")
	repo, err := repository.NewSQLite(context.Background(), path)
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})

	return repo, path
}

func testItems() []*model.HistoryItem {
	return []*model.HistoryItem{
		{
			GenerationConfig: model.GenerationConfig{Prompt: "an edited cat", AspectRatio: model.AspectPortrait},
			ID:               "1700000000001",
			ImageURL:         "data:image/png;base64,Zm9v",
			Timestamp:        1700000000001,
			Version:          2,
			ParentID:         "1700000000000",
		},
		{
			GenerationConfig: model.GenerationConfig{Prompt: "a cat", AspectRatio: model.AspectSquare},
			ID:               "1700000000000",
			ImageURL:         "data:image/png;base64,YmFy",
			RemoteURL:        "https://files.catbox.moe/abc.png",
			Timestamp:        1700000000000,
			Version:          1,
		},
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	items := testItems()
	gt.NoError(t, repo.SaveHistory(ctx, items))

	loaded, err := repo.LoadHistory(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(2)
	gt.Equal(t, loaded, items)
}

func TestLoadHistoryEmpty(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	loaded, err := repo.LoadHistory(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(0)
}

func TestLoadHistoryCorrupt(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepo(t)

	db, err := sql.Open("sqlite", path)
	gt.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(ctx,
		`INSERT INTO app_state (key, value, expires_at) VALUES ('leopaint_history', '{broken', 0)`)
	gt.NoError(t, err)

	_, err = repo.LoadHistory(ctx)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrPersistedStateCorrupt))
}

func TestSaveHistoryOverwrites(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	gt.NoError(t, repo.SaveHistory(ctx, testItems()))
	gt.NoError(t, repo.SaveHistory(ctx, nil))

	loaded, err := repo.LoadHistory(ctx)
	gt.NoError(t, err)
	gt.A(t, loaded).Length(0)
}

func TestAPIKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	key, err := repo.GetAPIKey(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "")

	gt.NoError(t, repo.SaveAPIKey(ctx, "test-api-key-0123456789", time.Now().Add(time.Hour)))

	key, err = repo.GetAPIKey(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "test-api-key-0123456789")

	gt.NoError(t, repo.DeleteAPIKey(ctx))

	key, err = repo.GetAPIKey(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "")
}

func TestAPIKeyExpiry(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	gt.NoError(t, repo.SaveAPIKey(ctx, "expired-key-0123456789", time.Now().Add(-time.Minute)))

	key, err := repo.GetAPIKey(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "")

	// A rewrite refreshes the expiry
	gt.NoError(t, repo.SaveAPIKey(ctx, "expired-key-0123456789", time.Now().Add(time.Hour)))

	key, err = repo.GetAPIKey(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "expired-key-0123456789")
}

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemory()

	items := testItems()
	gt.NoError(t, repo.SaveHistory(ctx, items))

	loaded, err := repo.LoadHistory(ctx)
	gt.NoError(t, err)
	gt.Equal(t, loaded, items)

	gt.NoError(t, repo.SaveAPIKey(ctx, "memory-key-0123456789", time.Now().Add(time.Hour)))
	key, err := repo.GetAPIKey(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "memory-key-0123456789")
}
