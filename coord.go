package blockfs

import "encoding/binary"

// Coord identifies a block by its position in the volume's grid, in
// units of blocks rather than voxels.
type Coord struct {
	GX, GY, GZ uint32
}

// fnvOffsetBasis and fnvPrime are the 32-bit FNV-1a constants.
const (
	fnvOffsetBasis uint32 = 2166136261
	fnvPrime       uint32 = 16777619
)

// bytes returns the 12-byte little-endian encoding of c, the stable
// wire representation hashed to route a submission to a worker.
func (c Coord) bytes() [12]byte {
	var b [12]byte
	binary.LittleEndian.PutUint32(b[0:4], c.GX)
	binary.LittleEndian.PutUint32(b[4:8], c.GY)
	binary.LittleEndian.PutUint32(b[8:12], c.GZ)
	return b
}

// hash returns the FNV-1a hash of c's 12-byte little-endian encoding.
// It is stable across process restarts and platforms, and depends
// only on c's value, not on insertion order.
func (c Coord) hash() uint32 {
	b := c.bytes()
	h := fnvOffsetBasis
	for _, x := range b {
		h ^= uint32(x)
		h *= fnvPrime
	}
	return h
}

// worker returns the index, in [0, w), of the worker responsible for
// c, for a WriterPool of w workers.
func (c Coord) worker(w int) int {
	return int(c.hash() % uint32(w))
}

// linearIndex returns c's position in the dense index array for a
// grid of the given extent, in z-major order:
// ((gz*ny)+gy)*nx+gx.
func (c Coord) linearIndex(nx, ny uint32) uint64 {
	return (uint64(c.GZ)*uint64(ny)+uint64(c.GY))*uint64(nx) + uint64(c.GX)
}

// inBounds reports whether c lies within a grid of extent nx, ny, nz.
func (c Coord) inBounds(nx, ny, nz uint32) bool {
	return c.GX < nx && c.GY < ny && c.GZ < nz
}
