package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

func newTestBlock(t *testing.T, hidden, mlpHidden, inner int) *Block {
	t.Helper()
	norm1, err := NewRMSNorm(hidden, 1e-6)
	require.NoError(t, err)
	norm2, err := NewRMSNorm(hidden, 1e-6)
	require.NoError(t, err)

	down := packedRow(t, onesOrMinusOnes(inner*hidden), inner, hidden)
	up := packedRow(t, onesOrMinusOnes(hidden*inner), hidden, inner)
	ttt, err := NewTTTLayer(hidden, inner, down, up, 0.1)
	require.NoError(t, err)

	gate := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	mlpUp := packedRow(t, onesOrMinusOnes(mlpHidden*hidden), mlpHidden, hidden)
	mlpDown := packedRow(t, onesOrMinusOnes(hidden*mlpHidden), hidden, mlpHidden)
	mlp, err := NewSwiGLU(hidden, mlpHidden, gate, mlpUp, mlpDown)
	require.NoError(t, err)

	block, err := NewBlock(norm1, ttt, norm2, mlp)
	require.NoError(t, err)
	return block
}

func TestNewBlockRejectsNilSublayer(t *testing.T) {
	_, err := NewBlock(nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNilTensor)
}

func TestBlockForwardShapeAndResidual(t *testing.T) {
	hidden := 4
	block := newTestBlock(t, hidden, 4, 4)
	state := NewTTTState(hidden)

	x, err := tensor.NewDenseTensorFromSlice(tensor.F32, tensor.Host, []float32{1, 2, 3, 4}, 1, hidden)
	require.NoError(t, err)

	out, err := block.Forward(x, state)
	require.NoError(t, err)
	assert.Equal(t, []int{1, hidden}, out.Shape())
}

// TestBlockForwardMigratesInputToLayerDevice exercises DeviceMap placement:
// when a block's weights were placed on the accelerator but its input
// arrives resident on the host (the usual case for the very first block
// fed straight from a host-resident embedding table), Forward migrates the
// input rather than erroring.
func TestBlockForwardMigratesInputToLayerDevice(t *testing.T) {
	hidden := 4
	norm1, err := NewRMSNorm(hidden, 1e-6)
	require.NoError(t, err)
	norm2, err := NewRMSNorm(hidden, 1e-6)
	require.NoError(t, err)

	down := packedRow(t, onesOrMinusOnes(hidden*hidden), hidden, hidden).WithDevice(tensor.Accelerator)
	up := packedRow(t, onesOrMinusOnes(hidden*hidden), hidden, hidden).WithDevice(tensor.Accelerator)
	ttt, err := NewTTTLayer(hidden, hidden, down, up, 0.1)
	require.NoError(t, err)

	gate := packedRow(t, onesOrMinusOnes(hidden*hidden), hidden, hidden).WithDevice(tensor.Accelerator)
	mlpUp := packedRow(t, onesOrMinusOnes(hidden*hidden), hidden, hidden).WithDevice(tensor.Accelerator)
	mlpDown := packedRow(t, onesOrMinusOnes(hidden*hidden), hidden, hidden).WithDevice(tensor.Accelerator)
	mlp, err := NewSwiGLU(hidden, hidden, gate, mlpUp, mlpDown)
	require.NoError(t, err)

	block, err := NewBlock(norm1, ttt, norm2, mlp)
	require.NoError(t, err)
	require.Equal(t, tensor.Accelerator, block.ttt.Device())

	state := NewTTTState(hidden)
	x, err := tensor.NewDenseTensorFromSlice(tensor.F32, tensor.Host, []float32{1, 2, 3, 4}, 1, hidden)
	require.NoError(t, err)

	out, err := block.Forward(x, state)
	require.NoError(t, err)
	assert.Equal(t, []int{1, hidden}, out.Shape())
}

func TestBlockForwardAdvancesTTTState(t *testing.T) {
	hidden := 4
	block := newTestBlock(t, hidden, 4, 4)
	state := NewTTTState(hidden)
	zeroState := NewTTTState(hidden)

	x, err := tensor.NewDenseTensorFromSlice(tensor.F32, tensor.Host, []float32{1, 2, 3, 4}, 1, hidden)
	require.NoError(t, err)

	_, err = block.Forward(x, state)
	require.NoError(t, err)

	assert.NotEqual(t, zeroState.w, state.w)
}
