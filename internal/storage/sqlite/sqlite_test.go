package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AlexZinkM/avian-backup/internal/storage"
)

func openTemp(t *testing.T) (*Backend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.db")
	b, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	return b, path
}

func TestBackend_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	b, _ := openTemp(t)
	defer b.Close()

	require.NoError(t, b.Upsert(ctx, "wallets", []storage.Entry{
		{Key: "RA", Body: []byte(`{"name":"a"}`)},
		{Key: "RB", Body: []byte(`{"name":"b"}`)},
	}))
	require.NoError(t, b.Upsert(ctx, "wallets", []storage.Entry{
		{Key: "RA", Body: []byte(`{"name":"a2"}`)},
	}))

	got, err := b.List(ctx, "wallets")
	require.NoError(t, err)
	require.Equal(t, []storage.Entry{
		{Key: "RA", Body: []byte(`{"name":"a2"}`)},
		{Key: "RB", Body: []byte(`{"name":"b"}`)},
	}, got)

	other, err := b.List(ctx, "addressBook")
	require.NoError(t, err)
	require.Empty(t, other)
}

func TestBackend_ReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	ctx := context.Background()
	b, path := openTemp(t)
	require.NoError(t, b.Upsert(ctx, "settings", []storage.Entry{{Key: "theme", Body: []byte(`"dark"`)}}))
	require.NoError(t, b.Close())

	b, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.List(ctx, "settings")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "theme", got[0].Key)
}

func TestBackend_UpsertIsAtomic(t *testing.T) {
	ctx := context.Background()
	b, _ := openTemp(t)
	defer b.Close()

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err := b.Upsert(cctx, "wallets", []storage.Entry{{Key: "RA", Body: []byte(`{}`)}})
	require.Error(t, err)

	got, err := b.List(ctx, "wallets")
	require.NoError(t, err)
	require.Empty(t, got)
}
