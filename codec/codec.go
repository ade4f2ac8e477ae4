// Package codec implements the pluggable block transformations used to
// store and retrieve voxel data. Each codec is identified by a name
// string, which is persisted verbatim in a directory file's header; a
// registry resolves the name back to a Codec implementation at open
// time, mirroring the name-based transformer registry used elsewhere in
// this codebase for record compression.
package codec

import (
	"fmt"
	"sync"

	"github.com/chunglabmit/blockfs/errors"
)

// Shape describes the uncompressed geometry of a block, as needed by
// codecs that treat block data as a stack of 2-D images rather than an
// opaque byte run.
type Shape struct {
	// BX, BY, BZ are the block's extents along each axis, in voxels.
	BX, BY, BZ uint32
	// ElemSize is the size in bytes of a single voxel's encoded value.
	ElemSize int
}

// NumVoxels returns the number of voxels described by the shape.
func (s Shape) NumVoxels() uint64 {
	return uint64(s.BX) * uint64(s.BY) * uint64(s.BZ)
}

// RawLen returns the length in bytes of the shape's raw (uncoded) voxel
// array.
func (s Shape) RawLen() int {
	return int(s.NumVoxels()) * s.ElemSize
}

// Codec transforms raw little-endian voxel data to and from its
// on-disk representation. Implementations must be safe for concurrent
// use by multiple goroutines. (WriterPool workers and
// Directory.ReadBlock each resolve a fresh Codec value per block.)
type Codec interface {
	// Name returns the codec's registered name.
	Name() string

	// Params returns the encoded parameters that, together with Name,
	// are persisted in the directory file header and must reproduce an
	// equivalent Codec when passed back through Resolve.
	Params() []byte

	// Encode returns the on-disk encoding of raw, a little-endian
	// packed voxel array in z,y,x order.
	Encode(raw []byte) ([]byte, error)

	// Decode reverses Encode. The returned slice has exactly
	// len(raw) bytes as originally passed to Encode.
	Decode(encoded []byte) ([]byte, error)
}

// Factory constructs a Codec from its persisted parameters and the
// shape of the blocks it will operate on.
type Factory func(params []byte, shape Shape) (Codec, error)

var (
	mu       sync.Mutex
	registry = map[string]Factory{}
)

// Register makes a codec factory available under name. Register is
// typically called from an init function. It panics if name is
// already registered, since that indicates a programming error rather
// than a runtime condition.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; ok {
		panic(fmt.Sprintf("codec: duplicate registration for %q", name))
	}
	registry[name] = factory
}

// Resolve constructs the codec registered under name, or returns a
// NotSupported-kind error if no such codec is registered.
func Resolve(name string, params []byte, shape Shape) (Codec, error) {
	mu.Lock()
	factory, ok := registry[name]
	mu.Unlock()
	if !ok {
		return nil, errors.E(errors.NotSupported, fmt.Sprintf("unsupported codec %q", name))
	}
	c, err := factory(params, shape)
	if err != nil {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("codec %q", name), err)
	}
	return c, nil
}

// Registered reports whether a codec is registered under name. It is
// used by callers, such as Create, that need to fail fast
// without constructing a codec instance.
func Registered(name string) bool {
	mu.Lock()
	defer mu.Unlock()
	_, ok := registry[name]
	return ok
}
