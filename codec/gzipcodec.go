package codec

import (
	"bytes"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"
)

func init() {
	Register("gzip", newGzipCodec)
}

// gzipCodec compresses blocks with gzip framing, at a level 0..9
// persisted with the codec's params. This is the default codec for
// byte-oriented volumes.
type gzipCodec struct {
	level int
}

func newGzipCodec(params []byte, _ Shape) (Codec, error) {
	level := gzip.DefaultCompression
	if len(params) > 0 {
		l, err := strconv.Atoi(string(params))
		if err != nil {
			return nil, err
		}
		if l < 0 || l > 9 {
			return nil, errGzipLevel(l)
		}
		level = l
	}
	return &gzipCodec{level: level}, nil
}

type errGzipLevel int

func (e errGzipLevel) Error() string {
	return "gzip: level out of range 0..9: " + strconv.Itoa(int(e))
}

func (c *gzipCodec) Name() string { return "gzip" }

func (c *gzipCodec) Params() []byte {
	return []byte(strconv.Itoa(c.level))
}

func (c *gzipCodec) Encode(raw []byte) ([]byte, error) {
	var out bytes.Buffer
	wr, err := gzip.NewWriterLevel(&out, c.level)
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

func (c *gzipCodec) Decode(encoded []byte) ([]byte, error) {
	rd, err := gzip.NewReader(bytes.NewReader(encoded))
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
