package math

import (
	"github.com/chewxy/math32"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// TTTLayer replaces self-attention with an online test-time-training
// recurrence (§4.5). Each token runs one step of self-supervised gradient
// descent against a per-sequence fast-weight matrix W_state before
// projecting back up to the model's hidden dimension:
//
//	f    = normalize(BitLinear(x, down))
//	pred = W_state · f
//	err  = pred - f
//	grad = err ⊗ f
//	W_state  -= inner_lr * grad
//	y_inner = W_state · f   (using the just-updated state)
//	y = BitLinear(y_inner, up)
//
// The recurrence is strictly sequential: step t's W_state depends on step
// t-1's, so nothing here may be reordered into a time-parallel scan.
type TTTLayer struct {
	hiddenDim int
	inner     int
	down      *tensor.PackedTernaryTensor
	up        *tensor.PackedTernaryTensor
	innerLR   float32
}

// NewTTTLayer wraps the down/up projection weights and the inner learning
// rate for one layer.
func NewTTTLayer(hiddenDim, inner int, down, up *tensor.PackedTernaryTensor, innerLR float32) (*TTTLayer, error) {
	if down == nil || up == nil {
		return nil, ErrNilTensor
	}
	dOut, dIn := down.Shape()
	uOut, uIn := up.Shape()
	if dOut != inner || dIn != hiddenDim || uOut != hiddenDim || uIn != inner {
		return nil, ErrInvalidInputShape
	}
	if math32.IsNaN(innerLR) || math32.IsInf(innerLR, 0) {
		return nil, ErrInvalidInputShape
	}
	return &TTTLayer{hiddenDim: hiddenDim, inner: inner, down: down, up: up, innerLR: innerLR}, nil
}

// Device reports the device this layer's projection weights were placed
// on by the loader's DeviceMap (§3); Block.Forward migrates its input to
// match before calling Forward.
func (s *TTTLayer) Device() tensor.Device {
	return s.down.Device()
}

// normalize returns an L2-normalized copy of f, leaving f untouched, and
// guards against the zero vector so an all-zero activation doesn't divide
// by zero (the zero vector is returned as a zero copy).
func normalize(f []float32) []float32 {
	var sumSq float32
	for _, v := range f {
		sumSq += v * v
	}
	norm := math32.Sqrt(sumSq)
	out := make([]float32, len(f))
	if norm < 1e-12 {
		copy(out, f)
		return out
	}
	for i, v := range f {
		out[i] = v / norm
	}
	return out
}

// Step runs the inner-loop update described above on an already
// normalized f, mutating state in place and returning the post-update
// inner representation y_inner. It is exported mainly for testing the
// recurrence in isolation against a known W_state.
func (s *TTTLayer) Step(f []float32, state *TTTState) (yInner []float32) {
	inner := s.inner
	pred := make([]float32, inner)
	for i := 0; i < inner; i++ {
		var acc float32
		row := state.w[i*inner : (i+1)*inner]
		for j := 0; j < inner; j++ {
			acc += row[j] * f[j]
		}
		pred[i] = acc
	}

	errv := make([]float32, inner)
	for i := range errv {
		errv[i] = pred[i] - f[i]
	}

	for i := 0; i < inner; i++ {
		row := state.w[i*inner : (i+1)*inner]
		for j := 0; j < inner; j++ {
			row[j] -= s.innerLR * errv[i] * f[j]
		}
	}

	yInner = make([]float32, inner)
	for i := 0; i < inner; i++ {
		var acc float32
		row := state.w[i*inner : (i+1)*inner]
		for j := 0; j < inner; j++ {
			acc += row[j] * f[j]
		}
		yInner[i] = acc
	}
	return yInner
}

// Forward runs one token through the TTT layer: x must have shape
// [1, hidden_dim], matching the strictly-sequential, one-token-at-a-time
// contract of the recurrence; any other batch size is rejected with
// ErrInvalidInputShape.
func (s *TTTLayer) Forward(x *tensor.DenseTensor, state *TTTState) (*tensor.DenseTensor, error) {
	if x == nil || state == nil {
		return nil, ErrNilTensor
	}
	if err := ValidateBatchHidden(x, s.hiddenDim, "ttt input"); err != nil {
		return nil, err
	}
	if x.Shape()[0] != 1 {
		return nil, ErrInvalidInputShape
	}
	if state.inner != s.inner {
		return nil, ErrInvalidInputShape
	}

	fRaw, err := tensor.Dispatch(x, s.down)
	if err != nil {
		return nil, err
	}
	fRawData, err := fRaw.Data()
	if err != nil {
		return nil, err
	}
	f := normalize(fRawData) // copies into a new slice, so fRaw is free to release
	tensor.Shared.Release(fRaw)

	yInner := s.Step(f, state)

	yInnerTensor, err := tensor.NewDenseTensorFromSlice(x.Dtype(), x.Device(), yInner, 1, s.inner)
	if err != nil {
		return nil, err
	}

	out, err := tensor.Dispatch(yInnerTensor, s.up)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(yInnerTensor)
	return out, nil
}
