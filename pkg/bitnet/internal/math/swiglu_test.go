package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

func packedRow(t *testing.T, values []float32, out, in int) *tensor.PackedTernaryTensor {
	t.Helper()
	p, err := tensor.Pack(values, out, in)
	require.NoError(t, err)
	return p
}

func onesOrMinusOnes(n int) []float32 {
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

func TestNewSwiGLUAcceptsMatchingShapes(t *testing.T) {
	hidden, mlpHidden := 4, 4
	gate := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	up := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	down := packedRow(t, onesOrMinusOnes(hidden*mlpHidden), hidden, mlpHidden)

	_, err := NewSwiGLU(hidden, mlpHidden, gate, up, down)
	assert.NoError(t, err)
}

func TestNewSwiGLURejectsMismatchedShapes(t *testing.T) {
	hidden, mlpHidden := 4, 4
	gate := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	up := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	badDown := packedRow(t, onesOrMinusOnes(8), 2, 4) // out=2 but must equal hidden=4

	_, err := NewSwiGLU(hidden, mlpHidden, gate, up, badDown)
	assert.ErrorIs(t, err, ErrInvalidInputShape)
}

func TestSiluKnownValues(t *testing.T) {
	assert.InDelta(t, 0, silu(0), 1e-6)
	// silu(large positive) approaches the input itself.
	assert.InDelta(t, 10, silu(10), 1e-3)
	// silu(large negative) approaches zero.
	assert.InDelta(t, 0, silu(-10), 1e-3)
}

func TestSwiGLUForwardShape(t *testing.T) {
	hidden, mlpHidden := 4, 4
	gate := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	up := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	down := packedRow(t, onesOrMinusOnes(hidden*mlpHidden), hidden, mlpHidden)

	s, err := NewSwiGLU(hidden, mlpHidden, gate, up, down)
	require.NoError(t, err)

	x, err := tensor.NewDenseTensorFromSlice(tensor.F32, tensor.Host, []float32{1, 2, 3, 4}, 1, hidden)
	require.NoError(t, err)

	out, err := s.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, hidden}, out.Shape())
}
