package codec

import (
	"bytes"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

func init() {
	Register("zlib", newZlibCodec)
}

// zlibCodec compresses blocks with zlib framing, at a fixed level
// persisted with the codec's params.
type zlibCodec struct {
	level int
}

func newZlibCodec(params []byte, _ Shape) (Codec, error) {
	level := zlib.DefaultCompression
	if len(params) > 0 {
		l, err := strconv.Atoi(string(params))
		if err != nil {
			return nil, err
		}
		level = l
	}
	return &zlibCodec{level: level}, nil
}

func (c *zlibCodec) Name() string { return "zlib" }

func (c *zlibCodec) Params() []byte {
	return []byte(strconv.Itoa(c.level))
}

func (c *zlibCodec) Encode(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	wr, err := zlib.NewWriterLevel(&out, c.level)
	if err != nil {
		return nil, err
	}
	if _, err := wr.Write(raw); err != nil {
		return nil, err
	}
	if err := wr.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (c *zlibCodec) Decode(encoded []byte) ([]byte, error) {
	rd, err := zlib.NewReader(bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	var out bytes.Buffer
	if _, err := io.Copy(&out, rd); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
