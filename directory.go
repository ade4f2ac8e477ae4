package blockfs

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/chunglabmit/blockfs/codec"
	"github.com/chunglabmit/blockfs/errors"
	"github.com/chunglabmit/blockfs/storage"
)

// directoryState is a Directory's lifecycle stage; see Directory's
// doc comment.
type directoryState int

const (
	stateFresh directoryState = iota
	stateWriting
	stateClosed
	stateReadOnly
)

// defaultQueueMultiplier sets the default per-worker submission queue
// capacity, expressed as a multiple of the worker count.
const defaultQueueMultiplier = 4

// Directory is the engine's entry point: it owns a volume's Index and
// the BlockFiles backing it, and mediates every write and read.
//
// A Directory is either fresh (created, parameters fixed, index
// all-absent), writing (WriterPool active, accepting submissions),
// closed (WriterPool drained and joined, final index flushed), or
// read-only opened (from an existing directory file; WriterPool not
// started; writes rejected).
type Directory struct {
	mu       sync.Mutex
	state    directoryState
	provider storage.Provider
	path     string // directory file path
	volume   Volume
	nx, ny, nz uint32
	index    *Index
	files    []*BlockFile
	pool     *WriterPool
}

// blockPath returns the default path for BlockFile i, as a sibling of
// the directory file.
func blockPath(dirPath string, i uint16) string {
	return fmt.Sprintf("%s.%d", dirPath, i)
}

// DefaultBlockPath returns the conventional sibling path for BlockFile
// i of the directory file at dirPath, the same naming
// StartWriterProcesses uses. Tools that build a replacement path table
// from a worker-count hint (see cmd/blockfs-rebase) use this to name
// the BlockFiles that count implies.
func DefaultBlockPath(dirPath string, i uint16) string {
	return blockPath(dirPath, i)
}

// Create fixes a new Directory's parameters at path, with an
// all-absent index sized for volume's grid. The Directory is fresh;
// call StartWriterProcesses before WriteBlock.
func Create(volume Volume, provider storage.Provider, path string) (*Directory, error) {
	if err := volume.Validate(); err != nil {
		return nil, err
	}
	if !codec.Registered(volume.Codec) {
		return nil, errors.E(errors.NotSupported, "unsupported codec "+volume.Codec)
	}
	nx, ny, nz := volume.GridExtent()
	return &Directory{
		state:    stateFresh,
		provider: provider,
		path:     path,
		volume:   volume,
		nx:       nx, ny: ny, nz: nz,
		index: NewIndex(nx, ny, nz),
	}, nil
}

// StartWriterProcesses creates w BlockFiles and starts the WriterPool,
// moving the Directory from fresh to writing. w must be positive; no
// default worker count is chosen, and w <= 0 returns an Invalid-kind
// error.
func (d *Directory) StartWriterProcesses(ctx context.Context, w int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != stateFresh {
		return errors.E(errors.Precondition, "StartWriterProcesses requires a fresh directory")
	}
	if w <= 0 {
		return errors.E(errors.Invalid, "worker count must be positive")
	}
	files := make([]*BlockFile, w)
	for i := 0; i < w; i++ {
		f, err := CreateBlockFile(ctx, d.provider, uint16(i), blockPath(d.path, uint16(i)))
		if err != nil {
			return err
		}
		files[i] = f
	}
	d.files = files
	d.pool = NewWriterPool(ctx, d.volume, files, d.index, defaultQueueMultiplier*w)
	d.state = stateWriting
	return nil
}

// WriteBlock submits raw, the little-endian packed voxel array for
// the block at coord, for asynchronous encoding and append. WriteBlock
// returns as soon as the submission is queued; the write is not
// guaranteed durable until Flush returns.
func (d *Directory) WriteBlock(ctx context.Context, coord Coord, raw []byte) error {
	d.mu.Lock()
	state := d.state
	volume := d.volume
	pool := d.pool
	nx, ny, nz := d.nx, d.ny, d.nz
	d.mu.Unlock()

	if state != stateWriting {
		return errors.E(errors.Precondition, "WriteBlock requires a writing directory")
	}
	if !coord.inBounds(nx, ny, nz) {
		return errors.E(errors.Invalid, "coordinate out of range")
	}
	if want := volume.RawBlockLen(); len(raw) != want {
		return errors.E(errors.Invalid, fmt.Sprintf("shape mismatch: got %d bytes, want %d", len(raw), want))
	}
	return pool.Submit(ctx, coord, raw)
}

// Flush stops accepting submissions, waits for every worker to drain,
// and atomically persists the directory file: a temporary file is
// written, fsynced, and renamed over path, so a crash never leaves a
// torn directory file. Flush moves the Directory from writing to
// closed.
func (d *Directory) Flush(ctx context.Context) error {
	d.mu.Lock()
	if d.state != stateWriting {
		d.mu.Unlock()
		return errors.E(errors.Precondition, "Flush requires a writing directory")
	}
	pool := d.pool
	files := d.files
	d.mu.Unlock()

	pool.Close()

	for _, f := range files {
		if err := f.Close(ctx); err != nil {
			return err
		}
	}

	if err := d.persist(); err != nil {
		return err
	}

	d.mu.Lock()
	d.state = stateClosed
	d.mu.Unlock()
	return nil
}

// persist writes the directory file atomically: <path>.tmp, fsync,
// rename over <path>. The tmp name is literal, not a random suffix,
// so that Open's crash-recovery check (see readDirectoryFile) can
// find it after a restart.
func (d *Directory) persist() error {
	dir := filepath.Dir(d.path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0777); err != nil {
		return errors.E(errors.Unavailable, "persist", err)
	}
	tmpName := d.path + ".tmp"
	tmp, err := os.OpenFile(tmpName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return errors.E(errors.Unavailable, "persist", err)
	}
	if err := d.writeTo(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "persist sync", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "persist close", err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		os.Remove(tmpName)
		return errors.E(errors.Unavailable, "persist rename", err)
	}
	return nil
}

func (d *Directory) writeTo(w io.Writer) error {
	paths := make([]string, len(d.files))
	for i, f := range d.files {
		paths[i] = filepath.Base(f.Path())
	}
	h := header{volume: d.volume, paths: paths}
	crc, err := writeHeader(w, h)
	if err != nil {
		return errors.E(errors.Unavailable, "write header", err)
	}
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], d.index.Len())
	if _, err := w.Write(lenBuf[:]); err != nil {
		return errors.E(errors.Unavailable, "write index length", err)
	}
	crc = crc32.Update(crc, crc32.IEEETable, lenBuf[:])
	cw := &countingCRCWriter{w: w, crc: crc}
	if err := d.index.Serialize(cw); err != nil {
		return err
	}
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.crc)
	if _, err := w.Write(trailer[:]); err != nil {
		return errors.E(errors.Unavailable, "write trailer", err)
	}
	return nil
}

// Open opens an existing directory file read-only: the header and
// index are read in full, and BlockFiles are opened lazily for
// reading on first access. WriteBlock is rejected in this state.
func Open(ctx context.Context, provider storage.Provider, path string) (*Directory, error) {
	h, idx, err := readDirectoryFile(ctx, provider, path)
	if err != nil {
		return nil, err
	}
	nx, ny, nz := h.volume.GridExtent()

	dir := filepath.Dir(path)
	files := make([]*BlockFile, len(h.paths))
	for i, p := range h.paths {
		files[i] = OpenBlockFileForReading(uint16(i), filepath.Join(dir, p))
	}

	return &Directory{
		state:    stateReadOnly,
		provider: provider,
		path:     path,
		volume:   h.volume,
		nx:       nx, ny: ny, nz: nz,
		index: idx,
		files: files,
	}, nil
}

// Resume reopens an existing, previously-flushed directory file for
// further writing: each BlockFile is reopened with
// OpenBlockFileForWriting, truncated to the greatest offset+nbytes the
// persisted index actually committed to it, discarding any tail bytes
// a prior process appended but crashed before indexing or persisting.
// A fresh WriterPool is started over the reopened files and the
// persisted index, moving the Directory straight to writing; WriteBlock
// may be called immediately, and a later Flush persists the combined
// result back over path.
func Resume(ctx context.Context, provider storage.Provider, path string) (*Directory, error) {
	h, idx, err := readDirectoryFile(ctx, provider, path)
	if err != nil {
		return nil, err
	}
	nx, ny, nz := h.volume.GridExtent()
	w := len(h.paths)

	dir := filepath.Dir(path)
	maxLens := idx.CommittedLengths(w)
	files := make([]*BlockFile, w)
	for i, p := range h.paths {
		f, err := OpenBlockFileForWriting(ctx, provider, uint16(i), filepath.Join(dir, p), maxLens[i])
		if err != nil {
			return nil, err
		}
		files[i] = f
	}

	d := &Directory{
		state:    stateWriting,
		provider: provider,
		path:     path,
		volume:   h.volume,
		nx:       nx, ny: ny, nz: nz,
		index: idx,
		files: files,
	}
	d.pool = NewWriterPool(ctx, h.volume, files, idx, defaultQueueMultiplier*w)
	return d, nil
}

// ReadBlock returns the decoded voxel bytes for the block at coord,
// or a NotExist-kind error if no block was ever written there.
func (d *Directory) ReadBlock(ctx context.Context, coord Coord) ([]byte, error) {
	d.mu.Lock()
	state := d.state
	volume := d.volume
	nx, ny, nz := d.nx, d.ny, d.nz
	files := d.files
	provider := d.provider
	idx := d.index
	d.mu.Unlock()

	if state != stateReadOnly && state != stateClosed {
		return nil, errors.E(errors.Precondition, "ReadBlock requires a closed or opened directory")
	}
	if !coord.inBounds(nx, ny, nz) {
		return nil, errors.E(errors.Invalid, "coordinate out of range")
	}
	entry, ok := idx.Get(coord)
	if !ok {
		return nil, errors.E(errors.NotExist, "block absent")
	}
	if int(entry.FileID) >= len(files) {
		return nil, errors.E(errors.Integrity, "entry references unknown BlockFile")
	}
	encoded, err := files[entry.FileID].ReadAt(ctx, provider, entry.Offset, entry.NBytes)
	if err != nil {
		return nil, err
	}
	bx, by, bz := volume.BlockShape()
	shape := codec.Shape{BX: bx, BY: by, BZ: bz, ElemSize: volume.Dtype.Size()}
	c, err := codec.Resolve(volume.Codec, volume.CodecParams, shape)
	if err != nil {
		return nil, err
	}
	raw, err := c.Decode(encoded)
	if err != nil {
		return nil, errors.E(errors.Integrity, "decode", err)
	}
	return raw, nil
}

// Close releases any open BlockFile readers. It returns a
// Precondition-kind error for a Directory still in the writing state;
// call Flush instead to finish writing.
func (d *Directory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == stateWriting {
		return errors.E(errors.Precondition, "Close called on a writing directory; call Flush")
	}
	var err error
	for _, f := range d.files {
		f.mu.Lock()
		if f.r != nil {
			if cerr := f.r.Close(); cerr != nil && err == nil {
				err = errors.E(errors.Unavailable, "blockfile reader close", cerr)
			}
			f.r = nil
		}
		f.mu.Unlock()
	}
	d.state = stateClosed
	return err
}

// Volume returns the directory's volume parameters.
func (d *Directory) Volume() Volume {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// ErrorLog returns the WriterPool's accumulated duplicate-write and
// write-failure records. It returns nil if the Directory was never
// started for writing.
func (d *Directory) ErrorLog() *ErrorLog {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pool == nil {
		return nil
	}
	return d.pool.ErrorLog()
}
