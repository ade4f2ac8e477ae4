package blockfs

import (
	"testing"

	"github.com/chunglabmit/blockfs/errors"
	"github.com/stretchr/testify/require"
)

func TestDtypeSizeAndString(t *testing.T) {
	require.Equal(t, 1, DtypeUint8.Size())
	require.Equal(t, 8, DtypeFloat64.Size())
	require.Equal(t, "uint16", DtypeUint16.String())
	require.True(t, DtypeInt32.Valid())
	require.False(t, Dtype(maxDtype).Valid())
}

func TestVolumeValidate(t *testing.T) {
	good := Volume{X: 10, Y: 10, Z: 10, BX: 4, BY: 4, BZ: 4, Dtype: DtypeUint16, Codec: "raw"}
	require.NoError(t, good.Validate())

	cases := []Volume{
		{X: 0, Y: 10, Z: 10, BX: 4, BY: 4, BZ: 4, Dtype: DtypeUint16, Codec: "raw"},
		{X: 10, Y: 10, Z: 10, BX: 0, BY: 4, BZ: 4, Dtype: DtypeUint16, Codec: "raw"},
		{X: 10, Y: 10, Z: 10, BX: 4, BY: 4, BZ: 4, Dtype: maxDtype, Codec: "raw"},
		{X: 10, Y: 10, Z: 10, BX: 4, BY: 4, BZ: 4, Dtype: DtypeUint16, Codec: ""},
	}
	for _, v := range cases {
		err := v.Validate()
		require.Error(t, err)
		require.True(t, errors.Is(errors.Invalid, err))
	}
}

func TestGridExtentEvenlyDivides(t *testing.T) {
	v := Volume{X: 16, Y: 16, Z: 16, BX: 4, BY: 4, BZ: 4, Dtype: DtypeUint8, Codec: "raw"}
	nx, ny, nz := v.GridExtent()
	require.Equal(t, uint32(4), nx)
	require.Equal(t, uint32(4), ny)
	require.Equal(t, uint32(4), nz)
	require.Equal(t, uint64(64), v.NumBlocks())
}

func TestGridExtentTruncatedEdge(t *testing.T) {
	v := Volume{X: 10, Y: 10, Z: 10, BX: 4, BY: 4, BZ: 4, Dtype: DtypeUint8, Codec: "raw"}
	nx, ny, nz := v.GridExtent()
	require.Equal(t, uint32(3), nx)
	require.Equal(t, uint32(3), ny)
	require.Equal(t, uint32(3), nz)

	// The grid has a ragged last row/column/plane along every axis
	// (10 does not divide evenly by 4), but every block -- edge or
	// interior -- is still defined over the nominal block shape; the
	// volume alone determines it, not which grid coordinate is asked.
	bx, by, bz := v.BlockShape()
	require.Equal(t, uint32(4), bx)
	require.Equal(t, uint32(4), by)
	require.Equal(t, uint32(4), bz)
}

func TestRawBlockLen(t *testing.T) {
	v := Volume{X: 10, Y: 10, Z: 10, BX: 4, BY: 4, BZ: 4, Dtype: DtypeUint16, Codec: "raw"}
	require.Equal(t, 4*4*4*2, v.RawBlockLen())
}
