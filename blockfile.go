package blockfs

import (
	"context"
	"sync"

	"github.com/chunglabmit/blockfs/errors"
	"github.com/chunglabmit/blockfs/storage"
)

// BlockFile is one spindle's append-only run of encoded block bytes.
// A BlockFile is owned by exactly one WriterPool worker during
// writing; appends are therefore never concurrent with each other,
// though reads may proceed concurrently with appends, provided the
// read range lies wholly within already-committed bytes.
type BlockFile struct {
	id   uint16
	path string
	w    storage.Writer // non-nil while open for writing
	mu   sync.Mutex
	r    storage.Reader // lazily opened for reads
}

// CreateBlockFile creates a new, empty BlockFile at path, identified
// by id within its WriterPool.
func CreateBlockFile(ctx context.Context, provider storage.Provider, id uint16, path string) (*BlockFile, error) {
	w, err := provider.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	return &BlockFile{id: id, path: path, w: w}, nil
}

// OpenBlockFileForWriting reopens an existing BlockFile for appending,
// truncating any bytes beyond maxLen: the tail left by an append that
// was in flight when the process last stopped, and which the
// persisted Index never advertised.
func OpenBlockFileForWriting(ctx context.Context, provider storage.Provider, id uint16, path string, maxLen uint64) (*BlockFile, error) {
	w, err := provider.OpenWriter(ctx, path, maxLen)
	if err != nil {
		return nil, err
	}
	return &BlockFile{id: id, path: path, w: w}, nil
}

// OpenBlockFileForReading opens an existing BlockFile for read-only
// access; Append must not be called on the result.
func OpenBlockFileForReading(id uint16, path string) *BlockFile {
	return &BlockFile{id: id, path: path}
}

// ID returns the BlockFile's index within its WriterPool.
func (b *BlockFile) ID() uint16 { return b.id }

// Path returns the BlockFile's storage path.
func (b *BlockFile) Path() string { return b.path }

// Append writes encoded at the file's current end, returning the
// Entry locating it. Append must be called by at most one goroutine
// at a time (the WriterPool enforces this via coordinate routing).
func (b *BlockFile) Append(ctx context.Context, encoded []byte) (Entry, error) {
	if b.w == nil {
		return Entry{}, errors.E(errors.Invalid, "blockfile not open for writing")
	}
	offset, err := b.w.Append(ctx, encoded)
	if err != nil {
		return Entry{}, errors.E(errors.Unavailable, "write failure", err)
	}
	return Entry{FileID: b.id, Offset: offset, NBytes: uint32(len(encoded))}, nil
}

// Len returns the number of bytes appended to the BlockFile so far.
func (b *BlockFile) Len() uint64 {
	if b.w == nil {
		return 0
	}
	return b.w.Size()
}

// Close finalizes the BlockFile after writing.
func (b *BlockFile) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.w == nil {
		return nil
	}
	err := b.w.Close(ctx)
	b.w = nil
	if err != nil {
		return errors.E(errors.Unavailable, "blockfile close", err)
	}
	return nil
}

// ReadAt returns the nbytes encoded bytes beginning at offset.
func (b *BlockFile) ReadAt(ctx context.Context, provider storage.Provider, offset uint64, nbytes uint32) ([]byte, error) {
	r, err := b.reader(ctx, provider)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, nbytes)
	if _, err := r.ReadAt(ctx, buf, offset); err != nil {
		return nil, errors.E(errors.Unavailable, "read failure", err)
	}
	return buf, nil
}

func (b *BlockFile) reader(ctx context.Context, provider storage.Provider) (storage.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.r != nil {
		return b.r, nil
	}
	r, err := provider.OpenReader(ctx, b.path)
	if err != nil {
		return nil, err
	}
	b.r = r
	return b.r, nil
}
