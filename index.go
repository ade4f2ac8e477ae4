package blockfs

import (
	"encoding/binary"
	"io"
	"sync/atomic"
	"unsafe"

	"github.com/chunglabmit/blockfs/errors"
)

// Index is the dense, in-memory directory of a volume's blocks: one
// cell per grid coordinate, each holding either an absent marker or
// the Entry locating that block's encoded bytes. Cells are updated
// exactly once, by the index-update agent that consumes a
// WriterPool's commit channel; Get may be called concurrently with
// Put from any goroutine.
type Index struct {
	nx, ny, nz uint32
	cells      []unsafe.Pointer // each cell stores *Entry
}

// NewIndex returns an all-absent Index sized for a grid of extent
// nx, ny, nz.
func NewIndex(nx, ny, nz uint32) *Index {
	return &Index{
		nx: nx, ny: ny, nz: nz,
		cells: make([]unsafe.Pointer, uint64(nx)*uint64(ny)*uint64(nz)),
	}
}

// Get returns the Entry at coordinate c and whether it is present.
func (idx *Index) Get(c Coord) (Entry, bool) {
	i := idx.cellIndex(c)
	p := atomic.LoadPointer(&idx.cells[i])
	if p == nil {
		return Entry{}, false
	}
	return *(*Entry)(p), true
}

// Put records e at coordinate c. Put returns a Precondition-kind
// error if the cell is already populated: every coordinate may be
// written at most once, a contract enforced upstream by the
// WriterPool's per-worker routing but checked again here since Put is
// the index's own invariant.
func (idx *Index) Put(c Coord, e Entry) error {
	if !c.inBounds(idx.nx, idx.ny, idx.nz) {
		return errors.E(errors.Invalid, "coordinate out of range")
	}
	i := idx.cellIndex(c)
	if !atomic.CompareAndSwapPointer(&idx.cells[i], nil, unsafe.Pointer(&e)) {
		return errors.E(errors.Precondition, "duplicate write")
	}
	return nil
}

func (idx *Index) cellIndex(c Coord) uint64 {
	return c.linearIndex(idx.nx, idx.ny)
}

// Len returns the total number of cells in the index.
func (idx *Index) Len() uint64 {
	return uint64(len(idx.cells))
}

// CommittedLengths returns, for each of w BlockFiles, the greatest
// offset+nbytes any entry in idx records against it, or 0 if idx
// records no entry for that file. It is used to resume writing an
// existing directory: reopening a BlockFile must truncate away any
// bytes appended past what the persisted index actually committed.
func (idx *Index) CommittedLengths(w int) []uint64 {
	lengths := make([]uint64, w)
	for i := range idx.cells {
		p := atomic.LoadPointer(&idx.cells[i])
		if p == nil {
			continue
		}
		e := *(*Entry)(p)
		if int(e.FileID) >= w {
			continue
		}
		end := e.Offset + uint64(e.NBytes)
		if end > lengths[e.FileID] {
			lengths[e.FileID] = end
		}
	}
	return lengths
}

// Serialize writes idx's entries to w in on-disk order: one 14-byte
// record per cell, absent cells written as all-zero.
func (idx *Index) Serialize(w io.Writer) error {
	buf := make([]byte, entrySize)
	for i := range idx.cells {
		p := atomic.LoadPointer(&idx.cells[i])
		var e Entry
		if p != nil {
			e = *(*Entry)(p)
		}
		binary.LittleEndian.PutUint16(buf[0:2], e.FileID)
		binary.LittleEndian.PutUint64(buf[2:10], e.Offset)
		binary.LittleEndian.PutUint32(buf[10:14], e.NBytes)
		if _, err := w.Write(buf); err != nil {
			return errors.E(errors.Unavailable, "index serialize", err)
		}
	}
	return nil
}

// DeserializeIndex reads n entries from r into a new Index sized for
// a grid of extent nx, ny, nz, where n must equal nx*ny*nz.
func DeserializeIndex(r io.Reader, nx, ny, nz uint32) (*Index, error) {
	idx := NewIndex(nx, ny, nz)
	buf := make([]byte, entrySize)
	for i := range idx.cells {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.E(errors.Integrity, "truncated index", err)
		}
		e := Entry{
			FileID: binary.LittleEndian.Uint16(buf[0:2]),
			Offset: binary.LittleEndian.Uint64(buf[2:10]),
			NBytes: binary.LittleEndian.Uint32(buf[10:14]),
		}
		if !e.Absent() {
			idx.cells[i] = unsafe.Pointer(&e)
		}
	}
	return idx, nil
}
