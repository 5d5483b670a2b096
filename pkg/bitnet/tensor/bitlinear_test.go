package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S2 from the worked examples: W = packed [+1,-1,0,+1], scale=1,
// X = [2,3,5,7] -> Y = [2-3+0+7] = [6].
func TestBitLinearMinimalExample(t *testing.T) {
	w, err := NewPackedTernaryTensor(1, 4, []byte{0x49}, 1)
	require.NoError(t, err)

	x, err := NewDenseTensorFromSlice(F32, Host, []float32{2, 3, 5, 7}, 1, 4)
	require.NoError(t, err)

	out, err := BitLinear(x, w)
	require.NoError(t, err)
	data, err := out.Data()
	require.NoError(t, err)
	assert.Equal(t, []float32{6}, data)
}

func TestBitLinearRejectsDimensionMismatch(t *testing.T) {
	w, err := NewPackedTernaryTensor(1, 4, []byte{0x49}, 1)
	require.NoError(t, err)
	x, err := NewDenseTensorFromSlice(F32, Host, []float32{1, 2, 3}, 1, 3)
	require.NoError(t, err)

	_, err = BitLinear(x, w)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBitLinearAndDequantCacheAgree(t *testing.T) {
	source := make([]float32, 8*16)
	for i := range source {
		source[i] = float32(i%7-3) * 0.37
	}
	w, err := Pack(source, 8, 16)
	require.NoError(t, err)

	xData := make([]float32, 3*16)
	for i := range xData {
		xData[i] = float32(i%5-2) * 1.1
	}
	x, err := NewDenseTensorFromSlice(F32, Host, xData, 3, 16)
	require.NoError(t, err)

	streamed, err := BitLinear(x, w)
	require.NoError(t, err)
	cached, err := BitLinearDequantCache(x, w)
	require.NoError(t, err)

	streamedData, err := streamed.Data()
	require.NoError(t, err)
	cachedData, err := cached.Data()
	require.NoError(t, err)

	require.Len(t, cachedData, len(streamedData))
	for i := range streamedData {
		assert.InDelta(t, streamedData[i], cachedData[i], 1e-3)
	}
}

func TestDispatchPicksDequantCacheForAcceleratorBatch(t *testing.T) {
	source := onesAndMinusOnes(4 * 8)
	w, err := Pack(source, 4, 8)
	require.NoError(t, err)

	xData := onesAndMinusOnes(2 * 8)
	x, err := NewDenseTensorFromSlice(F32, Accelerator, xData, 2, 8)
	require.NoError(t, err)

	out, err := Dispatch(x, w)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, out.Shape())
}

func onesAndMinusOnes(n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		if i%2 == 0 {
			v[i] = 1
		} else {
			v[i] = -1
		}
	}
	return v
}
