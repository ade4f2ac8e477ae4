package blockfs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chunglabmit/blockfs/storage"
)

func writtenDirectory(t *testing.T, dirName string) (string, storage.Provider, Coord, []byte) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), dirName)

	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)
	require.NoError(t, dir.StartWriterProcesses(ctx, 2))

	raw := make([]byte, 4*4*4)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	coord := Coord{GX: 0, GY: 1, GZ: 0}
	require.NoError(t, dir.WriteBlock(ctx, coord, raw))
	require.NoError(t, dir.Flush(ctx))
	return path, provider, coord, raw
}

func TestMovePreservesContent(t *testing.T) {
	ctx := context.Background()
	path, provider, coord, raw := writtenDirectory(t, "vol.blockfs")
	dstPath := filepath.Join(filepath.Dir(path), "moved.blockfs")

	require.NoError(t, Move(ctx, provider, path, dstPath))

	dir, err := Open(ctx, provider, dstPath)
	require.NoError(t, err)
	got, err := dir.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = Open(ctx, provider, path)
	require.Error(t, err)
}

func TestCopyLeavesSourceIntact(t *testing.T) {
	ctx := context.Background()
	path, provider, coord, raw := writtenDirectory(t, "vol.blockfs")
	dstPath := filepath.Join(filepath.Dir(path), "copy.blockfs")

	require.NoError(t, Copy(ctx, provider, path, dstPath))

	src, err := Open(ctx, provider, path)
	require.NoError(t, err)
	gotSrc, err := src.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, gotSrc)

	dst, err := Open(ctx, provider, dstPath)
	require.NoError(t, err)
	gotDst, err := dst.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, gotDst)
}

func TestRebaseRewritesPathTable(t *testing.T) {
	ctx := context.Background()
	path, provider, coord, raw := writtenDirectory(t, "vol.blockfs")

	h, _, err := readDirectoryFile(ctx, provider, path)
	require.NoError(t, err)
	require.Len(t, h.paths, 2)

	renamed := make([]string, len(h.paths))
	for i, p := range h.paths {
		newName := p + ".renamed"
		require.NoError(t, provider.Rename(ctx, filepath.Join(filepath.Dir(path), p), filepath.Join(filepath.Dir(path), newName)))
		renamed[i] = newName
	}
	require.NoError(t, Rebase(ctx, provider, path, renamed))

	dir, err := Open(ctx, provider, path)
	require.NoError(t, err)
	got, err := dir.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestRebaseRejectsWrongPathCount(t *testing.T) {
	ctx := context.Background()
	path, provider, _, _ := writtenDirectory(t, "vol.blockfs")
	err := Rebase(ctx, provider, path, []string{"only-one"})
	require.Error(t, err)
}

func TestOpenRecoversTmpAloneAfterCrash(t *testing.T) {
	ctx := context.Background()
	path, provider, coord, raw := writtenDirectory(t, "vol.blockfs")

	// Simulate a crash between writing <path>.tmp and renaming it
	// over <path>: the real file is gone, only the tmp survives.
	require.NoError(t, provider.Rename(ctx, path, path+".tmp"))

	dir, err := Open(ctx, provider, path)
	require.NoError(t, err)
	got, err := dir.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, got)
}

func TestOpenPrefersPathWhenBothExist(t *testing.T) {
	ctx := context.Background()
	path, provider, coord, raw := writtenDirectory(t, "vol.blockfs")

	// Simulate a crash after the rename completed but before a stale
	// tmp from an earlier attempt was cleaned up.
	require.NoError(t, Copy(ctx, provider, path, path+".tmp"))

	dir, err := Open(ctx, provider, path)
	require.NoError(t, err)
	got, err := dir.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = Open(ctx, provider, path+".tmp")
	require.Error(t, err, "recoverTmp should have deleted the stale tmp file")
}
