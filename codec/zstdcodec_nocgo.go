// +build !cgo

package codec

import "github.com/chunglabmit/blockfs/errors"

func init() {
	Register("zstd", newZstdCodecUnsupported)
}

func newZstdCodecUnsupported([]byte, Shape) (Codec, error) {
	return nil, errors.E(errors.NotSupported, "zstd codec requires a cgo build")
}
