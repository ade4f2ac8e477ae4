// +build cgo

// zstd support is cgo-only, since it binds to the C zstd library.
// Adding "zstd" as a volume's codec enables zstd with the default
// compression level; a persisted params byte string of e.g. "6"
// selects compression level 6.
package codec

import (
	"strconv"
	"sync"

	"github.com/DataDog/zstd"
)

func init() {
	Register("zstd", newZstdCodec)
}

var zstdScratchPool = sync.Pool{New: func() interface{} { return []byte{} }}

type zstdCodec struct {
	level int
}

func newZstdCodec(params []byte, _ Shape) (Codec, error) {
	level := zstd.DefaultCompression
	if len(params) > 0 {
		l, err := strconv.Atoi(string(params))
		if err != nil {
			return nil, err
		}
		level = l
	}
	return &zstdCodec{level: level}, nil
}

func (c *zstdCodec) Name() string { return "zstd" }

func (c *zstdCodec) Params() []byte {
	return []byte(strconv.Itoa(c.level))
}

// As of this writing, zstd.{Compress,Decompress} is substantially
// faster than an io.{Reader,Writer}-based implementation, even though
// it incurs an extra copy through a pooled scratch buffer.
func (c *zstdCodec) Encode(raw []byte) ([]byte, error) {
	scratch := zstdScratchPool.Get().([]byte)
	out, err := zstd.CompressLevel(scratch, raw, c.level)
	zstdScratchPool.Put(scratch[:0])
	return out, err
}

func (c *zstdCodec) Decode(encoded []byte) ([]byte, error) {
	scratch := zstdScratchPool.Get().([]byte)
	out, err := zstd.Decompress(scratch, encoded)
	zstdScratchPool.Put(scratch[:0])
	return out, err
}
