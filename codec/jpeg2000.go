package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"strconv"

	"github.com/klauspost/compress/flate"

	"github.com/chunglabmit/blockfs/errors"
)

func init() {
	Register("jpeg2000", newJpeg2000Codec)
}

// jpeg2000Codec is a lossy codec parameterised by a target PSNR (peak
// signal-to-noise ratio, in dB). It approximates the rate/distortion
// tradeoff of a true wavelet coder with uniform scalar quantization of
// each voxel, chosen so that doubling the quantization step loses
// approximately 6dB of PSNR, followed by flate compression of the
// quantized stream. It supports only 8- and 16-bit integer element
// sizes, matching the dtypes for which jpeg2000 is a recognised codec.
type jpeg2000Codec struct {
	psnr     float64
	step     int
	elemSize int
}

func newJpeg2000Codec(params []byte, shape Shape) (Codec, error) {
	if shape.ElemSize != 1 && shape.ElemSize != 2 {
		return nil, errors.E(errors.Invalid, "jpeg2000 codec requires an 8- or 16-bit element type")
	}
	psnr := 40.0
	if len(params) > 0 {
		p, err := strconv.ParseFloat(string(params), 64)
		if err != nil {
			return nil, err
		}
		psnr = p
	}
	return &jpeg2000Codec{psnr: psnr, step: quantStep(psnr, shape.ElemSize), elemSize: shape.ElemSize}, nil
}

// quantStep derives a uniform quantization step from a target PSNR,
// treating every 6.02dB of PSNR as a halving of the step: a textbook
// approximation for uniform scalar quantizer distortion.
func quantStep(psnr float64, elemSize int) int {
	maxVal := 255.0
	if elemSize == 2 {
		maxVal = 65535.0
	}
	step := int(maxVal / (1 << uint(psnr/6.02)))
	if step < 1 {
		step = 1
	}
	if step > int(maxVal) {
		step = int(maxVal)
	}
	return step
}

func (c *jpeg2000Codec) Name() string { return "jpeg2000" }

func (c *jpeg2000Codec) Params() []byte {
	return []byte(strconv.FormatFloat(c.psnr, 'g', -1, 64))
}

func (c *jpeg2000Codec) Encode(raw []byte) ([]byte, error) {
	// Each value is replaced by the midpoint of its quantization bin,
	// clamped to the element's range, so no voxel moves by more than
	// step/2.
	quantized := make([]byte, len(raw))
	if c.elemSize == 1 {
		for i, v := range raw {
			q := (int(v)/c.step)*c.step + c.step/2
			if q > 0xFF {
				q = 0xFF
			}
			quantized[i] = byte(q)
		}
	} else {
		for i := 0; i+1 < len(raw); i += 2 {
			v := binary.LittleEndian.Uint16(raw[i:])
			q := (int(v)/c.step)*c.step + c.step/2
			if q > 0xFFFF {
				q = 0xFFFF
			}
			binary.LittleEndian.PutUint16(quantized[i:], uint16(q))
		}
	}
	var buf bytes.Buffer
	wr, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := wr.Write(quantized); err != nil {
		return nil, err
	}
	if err := wr.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *jpeg2000Codec) Decode(encoded []byte) ([]byte, error) {
	rd := flate.NewReader(bytes.NewReader(encoded))
	defer rd.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rd); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
