package codec

func init() {
	Register("raw", newRawCodec)
}

// rawCodec stores blocks uncompressed: the on-disk bytes are exactly
// the little-endian packed voxel array.
type rawCodec struct{}

func newRawCodec([]byte, Shape) (Codec, error) {
	return rawCodec{}, nil
}

func (rawCodec) Name() string { return "raw" }

func (rawCodec) Params() []byte { return nil }

func (rawCodec) Encode(raw []byte) ([]byte, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (rawCodec) Decode(encoded []byte) ([]byte, error) {
	out := make([]byte, len(encoded))
	copy(out, encoded)
	return out, nil
}
