package math

import (
	"github.com/chewxy/math32"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// SwiGLU implements the gated feed-forward sublayer (§4.4):
//
//	a = BitLinear(x, gate);  b = BitLinear(x, up)
//	h = silu(a) * b
//	out = BitLinear(h, down)
//
// where silu(v) = v * sigmoid(v). All three projections are ternary
// BitLinear kernels; there is no bias term at any stage.
type SwiGLU struct {
	hiddenDim int
	mlpHidden int
	gate      *tensor.PackedTernaryTensor
	up        *tensor.PackedTernaryTensor
	down      *tensor.PackedTernaryTensor
}

// NewSwiGLU wraps the three projection weights for one feed-forward block.
func NewSwiGLU(hiddenDim, mlpHidden int, gate, up, down *tensor.PackedTernaryTensor) (*SwiGLU, error) {
	if gate == nil || up == nil || down == nil {
		return nil, ErrNilTensor
	}
	gOut, gIn := gate.Shape()
	uOut, uIn := up.Shape()
	dOut, dIn := down.Shape()
	if gOut != mlpHidden || gIn != hiddenDim ||
		uOut != mlpHidden || uIn != hiddenDim ||
		dOut != hiddenDim || dIn != mlpHidden {
		return nil, ErrInvalidInputShape
	}
	return &SwiGLU{hiddenDim: hiddenDim, mlpHidden: mlpHidden, gate: gate, up: up, down: down}, nil
}

func silu(v float32) float32 {
	return v / (1 + math32.Exp(-v))
}

// Forward runs the gated feed-forward transform on x (shape [batch, hidden_dim]).
func (s *SwiGLU) Forward(x *tensor.DenseTensor) (*tensor.DenseTensor, error) {
	if x == nil {
		return nil, ErrNilTensor
	}
	if err := ValidateBatchHidden(x, s.hiddenDim, "swiglu input"); err != nil {
		return nil, err
	}

	a, err := tensor.Dispatch(x, s.gate)
	if err != nil {
		return nil, err
	}
	b, err := tensor.Dispatch(x, s.up)
	if err != nil {
		return nil, err
	}

	aData, err := a.Data()
	if err != nil {
		return nil, err
	}
	bData, err := b.Data()
	if err != nil {
		return nil, err
	}

	h, err := tensor.Shared.Acquire(x.Dtype(), x.Device(), a.Shape()...)
	if err != nil {
		return nil, err
	}
	hData, _ := h.Data()
	for i := range aData {
		hData[i] = silu(aData[i]) * bData[i]
	}
	// a and b are fully consumed above; release them for reuse before
	// acquiring the down-projection's output buffer.
	tensor.Shared.Release(a)
	tensor.Shared.Release(b)

	out, err := tensor.Dispatch(h, s.down)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(h)
	return out, nil
}
