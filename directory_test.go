package blockfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chunglabmit/blockfs/errors"
	"github.com/chunglabmit/blockfs/storage"
	"github.com/stretchr/testify/require"
)

func testVolume() Volume {
	return Volume{
		X: 8, Y: 8, Z: 8,
		BX: 4, BY: 4, BZ: 4,
		Dtype: DtypeUint8,
		Codec: "raw",
	}
}

func TestDirectoryWriteFlushRead(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "vol.blockfs")

	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)
	require.NoError(t, dir.StartWriterProcesses(ctx, 3))

	raw := make([]byte, 4*4*4)
	for i := range raw {
		raw[i] = byte(i)
	}
	coord := Coord{GX: 1, GY: 1, GZ: 1}
	require.NoError(t, dir.WriteBlock(ctx, coord, raw))
	require.NoError(t, dir.Flush(ctx))
	require.Empty(t, dir.ErrorLog().WriteFailures())

	reopened, err := Open(ctx, provider, path)
	require.NoError(t, err)
	require.Equal(t, testVolume(), reopened.Volume())

	got, err := reopened.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, got)

	_, err = reopened.ReadBlock(ctx, Coord{GX: 0, GY: 0, GZ: 0})
	require.Error(t, err)
	require.True(t, errors.Is(errors.NotExist, err))

	require.NoError(t, reopened.Close())
}

func TestDirectoryWriteBlockShapeMismatch(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "vol.blockfs")

	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)
	require.NoError(t, dir.StartWriterProcesses(ctx, 2))

	err = dir.WriteBlock(ctx, Coord{0, 0, 0}, make([]byte, 3))
	require.Error(t, err)
	require.True(t, errors.Is(errors.Invalid, err))

	// Abandon the writer pool cleanly rather than leaving it mid-flight.
	require.NoError(t, dir.Flush(ctx))
}

func TestDirectoryWriteBlockBeforeStart(t *testing.T) {
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "vol.blockfs")
	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)

	err = dir.WriteBlock(context.Background(), Coord{0, 0, 0}, make([]byte, 64))
	require.Error(t, err)
	require.True(t, errors.Is(errors.Precondition, err))
}

func TestCreateRejectsUnknownCodec(t *testing.T) {
	v := testVolume()
	v.Codec = "no-such-codec"
	_, err := Create(v, storage.NewLocalProvider(), filepath.Join(t.TempDir(), "vol.blockfs"))
	require.Error(t, err)
	require.True(t, errors.Is(errors.NotSupported, err))
}

func TestCreateRejectsInvalidVolume(t *testing.T) {
	v := testVolume()
	v.X = 0
	_, err := Create(v, storage.NewLocalProvider(), filepath.Join(t.TempDir(), "vol.blockfs"))
	require.Error(t, err)
	require.True(t, errors.Is(errors.Invalid, err))
}

func TestDirectoryResumeContinuesWriting(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "vol.blockfs")

	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)
	require.NoError(t, dir.StartWriterProcesses(ctx, 2))

	raw1 := make([]byte, 4*4*4)
	for i := range raw1 {
		raw1[i] = byte(i)
	}
	coord1 := Coord{GX: 0, GY: 0, GZ: 0}
	require.NoError(t, dir.WriteBlock(ctx, coord1, raw1))
	require.NoError(t, dir.Flush(ctx))

	resumed, err := Resume(ctx, provider, path)
	require.NoError(t, err)

	raw2 := make([]byte, 4*4*4)
	for i := range raw2 {
		raw2[i] = byte(255 - i)
	}
	coord2 := Coord{GX: 1, GY: 0, GZ: 0}
	require.NoError(t, resumed.WriteBlock(ctx, coord2, raw2))
	require.NoError(t, resumed.Flush(ctx))

	reopened, err := Open(ctx, provider, path)
	require.NoError(t, err)
	got1, err := reopened.ReadBlock(ctx, coord1)
	require.NoError(t, err)
	require.Equal(t, raw1, got1)
	got2, err := reopened.ReadBlock(ctx, coord2)
	require.NoError(t, err)
	require.Equal(t, raw2, got2)
}

func TestDirectoryResumeTruncatesDanglingTail(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "vol.blockfs")

	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)
	require.NoError(t, dir.StartWriterProcesses(ctx, 1))

	raw := make([]byte, 4*4*4)
	for i := range raw {
		raw[i] = byte(i)
	}
	coord := Coord{GX: 0, GY: 0, GZ: 0}
	require.NoError(t, dir.WriteBlock(ctx, coord, raw))
	require.NoError(t, dir.Flush(ctx))

	h, _, err := readDirectoryFile(ctx, provider, path)
	require.NoError(t, err)
	require.Len(t, h.paths, 1)
	blockFilePath := filepath.Join(filepath.Dir(path), h.paths[0])

	// Simulate a crash that appended bytes for a block whose commit
	// never reached the persisted index: a bare append directly to the
	// BlockFile, bypassing WriteBlock entirely.
	w, err := provider.OpenWriter(ctx, blockFilePath, uint64(len(raw)))
	require.NoError(t, err)
	_, err = w.Append(ctx, []byte("dangling-tail-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	resumed, err := Resume(ctx, provider, path)
	require.NoError(t, err)

	coord2 := Coord{GX: 1, GY: 0, GZ: 0}
	raw2 := make([]byte, 4*4*4)
	for i := range raw2 {
		raw2[i] = byte(i + 1)
	}
	require.NoError(t, resumed.WriteBlock(ctx, coord2, raw2))
	require.NoError(t, resumed.Flush(ctx))

	reopened, err := Open(ctx, provider, path)
	require.NoError(t, err)
	got, err := reopened.ReadBlock(ctx, coord)
	require.NoError(t, err)
	require.Equal(t, raw, got)
	got2, err := reopened.ReadBlock(ctx, coord2)
	require.NoError(t, err)
	require.Equal(t, raw2, got2)
}

// TestOpenDetectsCRCCorruption flips every bit of one byte (byte 24,
// inside the header's Y extent) of a fully flushed directory file and
// checks that Open refuses to trust it rather than handing back a
// header or index built from corrupted bytes.
func TestOpenDetectsCRCCorruption(t *testing.T) {
	ctx := context.Background()
	provider := storage.NewLocalProvider()
	path := filepath.Join(t.TempDir(), "vol.blockfs")

	dir, err := Create(testVolume(), provider, path)
	require.NoError(t, err)
	require.NoError(t, dir.StartWriterProcesses(ctx, 2))

	raw := make([]byte, 4*4*4)
	for i := range raw {
		raw[i] = byte(i)
	}
	require.NoError(t, dir.WriteBlock(ctx, Coord{GX: 0, GY: 0, GZ: 0}, raw))
	require.NoError(t, dir.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 32, "directory file too short to corrupt meaningfully")
	data[24] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0666))

	_, err = Open(ctx, provider, path)
	require.Error(t, err)
	require.True(t, errors.Is(errors.Integrity, err))
}
