// Package blockfs implements a file-based storage engine for large 3-D
// scalar imaging volumes. A volume is partitioned into fixed-size
// blocks; each block is written exactly once by a concurrent writer
// pool and later retrieved by coordinate through a dense on-disk
// index. See Directory for the engine's entry point.
package blockfs

import (
	"github.com/chunglabmit/blockfs/errors"
)

// Dtype identifies the element type of a volume's voxels.
type Dtype uint16

// Recognised element types. The numeric values are persisted in the
// directory file header and must never be renumbered.
const (
	DtypeUint8 Dtype = iota
	DtypeUint16
	DtypeUint32
	DtypeUint64
	DtypeInt8
	DtypeInt16
	DtypeInt32
	DtypeInt64
	DtypeFloat32
	DtypeFloat64

	maxDtype
)

var dtypeSizes = map[Dtype]int{
	DtypeUint8:   1,
	DtypeUint16:  2,
	DtypeUint32:  4,
	DtypeUint64:  8,
	DtypeInt8:    1,
	DtypeInt16:   2,
	DtypeInt32:   4,
	DtypeInt64:   8,
	DtypeFloat32: 4,
	DtypeFloat64: 8,
}

var dtypeNames = map[Dtype]string{
	DtypeUint8:   "uint8",
	DtypeUint16:  "uint16",
	DtypeUint32:  "uint32",
	DtypeUint64:  "uint64",
	DtypeInt8:    "int8",
	DtypeInt16:   "int16",
	DtypeInt32:   "int32",
	DtypeInt64:   "int64",
	DtypeFloat32: "float32",
	DtypeFloat64: "float64",
}

// Size returns the element size of d in bytes.
func (d Dtype) Size() int { return dtypeSizes[d] }

// String returns the human-readable name of d.
func (d Dtype) String() string { return dtypeNames[d] }

// Valid reports whether d is a recognised dtype.
func (d Dtype) Valid() bool { return d < maxDtype }

// Volume describes the fixed geometry and encoding of a partitioned
// scalar volume: its total extent, the extent of each constituent
// block, its element type, and the codec used to encode block data.
type Volume struct {
	// X, Y, Z are the volume's total extent, in voxels.
	X, Y, Z uint64
	// BX, BY, BZ are the extent of a single block, in voxels. Edge
	// blocks along any axis the block extent does not evenly divide
	// still have this nominal extent, zero-padded; see BlockShape.
	BX, BY, BZ uint32
	// Dtype is the element type of every voxel in the volume.
	Dtype Dtype
	// Codec is the name of the codec used to encode block data, as
	// registered in package codec.
	Codec string
	// CodecParams are the codec-specific parameters persisted
	// alongside Codec (e.g. a compression level).
	CodecParams []byte
}

// Validate checks that v describes a well-formed volume, returning an
// Invalid-kind error describing the first problem found.
func (v Volume) Validate() error {
	if v.X == 0 || v.Y == 0 || v.Z == 0 {
		return errors.E(errors.Invalid, "volume extent must be positive")
	}
	if v.BX == 0 || v.BY == 0 || v.BZ == 0 {
		return errors.E(errors.Invalid, "block extent must be positive")
	}
	if !v.Dtype.Valid() {
		return errors.E(errors.Invalid, "unrecognised dtype")
	}
	if v.Codec == "" {
		return errors.E(errors.Invalid, "codec name must not be empty")
	}
	return nil
}

// GridExtent returns the number of blocks along each axis, computed
// by ceiling division of the volume's extent by its block extent.
func (v Volume) GridExtent() (nx, ny, nz uint32) {
	nx = ceilDivU64(v.X, uint64(v.BX))
	ny = ceilDivU64(v.Y, uint64(v.BY))
	nz = ceilDivU64(v.Z, uint64(v.BZ))
	return
}

// NumBlocks returns the total number of blocks in the volume's grid.
func (v Volume) NumBlocks() uint64 {
	nx, ny, nz := v.GridExtent()
	return uint64(nx) * uint64(ny) * uint64(nz)
}

// BlockShape returns the nominal voxel extent (BX, BY, BZ) of every
// block in the volume's grid. Every block's encoded form is defined
// over this shape, including blocks on the high edge of an axis the
// volume's extent does not evenly divide: out-of-extent voxels in
// such a block are zero, not truncated away. A caller building the
// raw voxel array for an edge block is responsible for zero-padding
// it out to this shape before calling WriteBlock.
func (v Volume) BlockShape() (bx, by, bz uint32) {
	return v.BX, v.BY, v.BZ
}

// RawBlockLen returns the length in bytes of the uncoded, nominal-
// shape voxel array WriteBlock expects for any block in the volume,
// edge or interior.
func (v Volume) RawBlockLen() int {
	return int(v.BX) * int(v.BY) * int(v.BZ) * v.Dtype.Size()
}

func ceilDivU64(total uint64, block uint64) uint32 {
	return uint32((total + block - 1) / block)
}
