package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chunglabmit/blockfs/errors"
	"github.com/chunglabmit/blockfs/storage"
)

func TestLocalProviderCreateAppendReopen(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "sub", "file.dat")

	w, err := provider.Create(ctx, path)
	require.NoError(t, err)
	off, err := w.Append(ctx, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), off)
	off, err = w.Append(ctx, []byte(" world"))
	require.NoError(t, err)
	require.Equal(t, uint64(5), off)
	require.Equal(t, uint64(11), w.Size())
	require.NoError(t, w.Close(ctx))

	r, err := provider.OpenReader(ctx, path)
	require.NoError(t, err)
	defer r.Close()
	size, err := r.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(11), size)

	buf := make([]byte, 5)
	n, err := r.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))
}

func TestLocalProviderOpenWriterTruncatesToMaxLen(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "file.dat")

	w, err := provider.Create(ctx, path)
	require.NoError(t, err)
	_, err = w.Append(ctx, []byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	resumed, err := provider.OpenWriter(ctx, path, 4)
	require.NoError(t, err)
	require.Equal(t, uint64(4), resumed.Size())
	off, err := resumed.Append(ctx, []byte("AB"))
	require.NoError(t, err)
	require.Equal(t, uint64(4), off)
	require.NoError(t, resumed.Close(ctx))

	r, err := provider.OpenReader(ctx, path)
	require.NoError(t, err)
	defer r.Close()
	size, err := r.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(6), size)
	buf := make([]byte, 6)
	_, err = r.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	require.Equal(t, "0123AB", string(buf))
}

func TestLocalProviderOpenReaderMissing(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	_, err := provider.OpenReader(ctx, filepath.Join(t.TempDir(), "missing.dat"))
	require.Error(t, err)
	require.True(t, errors.Is(errors.NotExist, err))
}

func TestLocalProviderRenameAndRemove(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	dir := t.TempDir()
	src := filepath.Join(dir, "a.dat")
	dst := filepath.Join(dir, "nested", "b.dat")

	w, err := provider.Create(ctx, src)
	require.NoError(t, err)
	_, err = w.Append(ctx, []byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	require.NoError(t, provider.Rename(ctx, src, dst))
	_, err = provider.OpenReader(ctx, src)
	require.Error(t, err)

	r, err := provider.OpenReader(ctx, dst)
	require.NoError(t, err)
	r.Close()

	require.NoError(t, provider.Remove(ctx, dst))
	_, err = provider.OpenReader(ctx, dst)
	require.Error(t, err)

	// Removing an already-absent file is not an error.
	require.NoError(t, provider.Remove(ctx, dst))
}
