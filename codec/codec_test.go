package codec_test

import (
	"math"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chunglabmit/blockfs/codec"
)

func testShape() codec.Shape {
	return codec.Shape{BX: 8, BY: 8, BZ: 2, ElemSize: 2}
}

func randomBlock(shape codec.Shape) []byte {
	r := rand.New(rand.NewSource(1))
	b := make([]byte, shape.RawLen())
	r.Read(b)
	return b
}

func TestResolveUnknownCodec(t *testing.T) {
	_, err := codec.Resolve("nonexistent", nil, testShape())
	require.Error(t, err)
}

func TestLosslessRoundTrip(t *testing.T) {
	for _, name := range []string{"raw", "zlib", "gzip", "lossless-image"} {
		name := name
		t.Run(name, func(t *testing.T) {
			shape := testShape()
			raw := randomBlock(shape)
			c, err := codec.Resolve(name, nil, shape)
			require.NoError(t, err)
			require.Equal(t, name, c.Name())

			encoded, err := c.Encode(raw)
			require.NoError(t, err)

			decoded, err := c.Decode(encoded)
			require.NoError(t, err)
			require.Equal(t, raw, decoded)
		})
	}
}

func TestGzipLevelPersisted(t *testing.T) {
	c, err := codec.Resolve("gzip", []byte("6"), testShape())
	require.NoError(t, err)
	require.Equal(t, []byte("6"), c.Params())

	reopened, err := codec.Resolve("gzip", c.Params(), testShape())
	require.NoError(t, err)
	require.Equal(t, c.Params(), reopened.Params())
}

func TestGzipLevelOutOfRange(t *testing.T) {
	_, err := codec.Resolve("gzip", []byte("99"), testShape())
	require.Error(t, err)
}

// psnr computes the peak signal-to-noise ratio in dB between raw and
// decoded, treating maxVal as the largest representable sample value.
func psnr(raw, decoded []byte, maxVal float64) float64 {
	var sumSq float64
	for i := range raw {
		d := float64(raw[i]) - float64(decoded[i])
		sumSq += d * d
	}
	mse := sumSq / float64(len(raw))
	if mse == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(maxVal*maxVal/mse)
}

func TestJpeg2000IsLossyButBounded(t *testing.T) {
	shape := codec.Shape{BX: 8, BY: 8, BZ: 1, ElemSize: 1}
	raw := randomBlock(shape)
	c, err := codec.Resolve("jpeg2000", []byte("30"), shape)
	require.NoError(t, err)

	encoded, err := c.Encode(raw)
	require.NoError(t, err)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(raw))
	require.NotEqual(t, raw, decoded, "jpeg2000 must actually lose information")

	targetPSNR, err := strconv.ParseFloat(string(c.Params()), 64)
	require.NoError(t, err)

	actual := psnr(raw, decoded, 255)
	require.GreaterOrEqualf(t, actual, targetPSNR,
		"decoded block measured %.2fdB PSNR, below the codec's configured target of %.2fdB", actual, targetPSNR)
}

func TestJpeg2000RejectsWideElements(t *testing.T) {
	shape := codec.Shape{BX: 4, BY: 4, BZ: 1, ElemSize: 4}
	_, err := codec.Resolve("jpeg2000", nil, shape)
	require.Error(t, err)
}
