package credential_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/leopaint/pkg/repository"
	"github.com/m-mizutani/leopaint/pkg/service/credential"
)

func TestGetFallsBackWhenEmpty(t *testing.T) {
	ctx := context.Background()
	store := credential.New(repository.NewMemory(),
		credential.WithFallback("fallback-key-0123456789"))

	key, err := store.Get(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "fallback-key-0123456789")
}

func TestGetWithoutFallback(t *testing.T) {
	ctx := context.Background()
	store := credential.New(repository.NewMemory())

	key, err := store.Get(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "")
}

func TestSetOverridesFallback(t *testing.T) {
	ctx := context.Background()
	store := credential.New(repository.NewMemory(),
		credential.WithFallback("fallback-key-0123456789"))

	gt.NoError(t, store.Set(ctx, "stored-key-0123456789"))

	key, err := store.Get(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "stored-key-0123456789")
}

func TestClearRestoresFallback(t *testing.T) {
	ctx := context.Background()
	store := credential.New(repository.NewMemory(),
		credential.WithFallback("fallback-key-0123456789"))

	gt.NoError(t, store.Set(ctx, "stored-key-0123456789"))
	gt.NoError(t, store.Clear(ctx))

	key, err := store.Get(ctx)
	gt.NoError(t, err)
	gt.Equal(t, key, "fallback-key-0123456789")
}
