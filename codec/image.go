package codec

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/flate"
)

func init() {
	Register("lossless-image", newImageCodec)
}

// imageCodec treats each z-slice of a block as a 2-D image: within a
// slice, every row is delta-filtered against the row above it (the
// byte-wise equivalent of a PNG "Up" filter), which tends to flatten
// the typically smooth gradients found in 8- and 16-bit scalar
// imaging data before flate compression. The filter is applied
// byte-wise rather than element-wise, so it is correct regardless of
// element size; it is simply less effective for wide gradients when
// ElemSize > 1.
type imageCodec struct {
	shape Shape
}

func newImageCodec(_ []byte, shape Shape) (Codec, error) {
	return &imageCodec{shape: shape}, nil
}

func (c *imageCodec) Name() string { return "lossless-image" }

func (c *imageCodec) Params() []byte { return nil }

func (c *imageCodec) rowLen() int {
	return int(c.shape.BX) * c.shape.ElemSize
}

func (c *imageCodec) sliceLen() int {
	return c.rowLen() * int(c.shape.BY)
}

func (c *imageCodec) Encode(raw []byte) ([]byte, error) {
	filtered := make([]byte, len(raw))
	rowLen := c.rowLen()
	sliceLen := c.sliceLen()
	for sliceOff := 0; sliceOff+sliceLen <= len(raw); sliceOff += sliceLen {
		slice := raw[sliceOff : sliceOff+sliceLen]
		out := filtered[sliceOff : sliceOff+sliceLen]
		copy(out[:rowLen], slice[:rowLen])
		for rowOff := rowLen; rowOff+rowLen <= sliceLen; rowOff += rowLen {
			row := slice[rowOff : rowOff+rowLen]
			prev := slice[rowOff-rowLen : rowOff]
			dst := out[rowOff : rowOff+rowLen]
			for i := range row {
				dst[i] = row[i] - prev[i]
			}
		}
	}
	var buf bytes.Buffer
	wr, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := wr.Write(filtered); err != nil {
		return nil, err
	}
	if err := wr.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *imageCodec) Decode(encoded []byte) ([]byte, error) {
	rd := flate.NewReader(bytes.NewReader(encoded))
	defer rd.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return nil, err
	}
	filtered := buf.Bytes()
	raw := make([]byte, len(filtered))
	rowLen := c.rowLen()
	sliceLen := c.sliceLen()
	for sliceOff := 0; sliceOff+sliceLen <= len(filtered); sliceOff += sliceLen {
		slice := filtered[sliceOff : sliceOff+sliceLen]
		out := raw[sliceOff : sliceOff+sliceLen]
		copy(out[:rowLen], slice[:rowLen])
		for rowOff := rowLen; rowOff+rowLen <= sliceLen; rowOff += rowLen {
			delta := slice[rowOff : rowOff+rowLen]
			prev := out[rowOff-rowLen : rowOff]
			dst := out[rowOff : rowOff+rowLen]
			for i := range delta {
				dst[i] = prev[i] + delta[i]
			}
		}
	}
	return raw, nil
}
