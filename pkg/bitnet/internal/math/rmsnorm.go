package math

import (
	"runtime"
	"sync"

	"github.com/chewxy/math32"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// RMSNorm implements root-mean-square normalization (§4.3):
//
//	y[i] = g[i] * x[i] / sqrt(mean(x^2) + eps)
//
// Unlike LayerNorm it has no mean-subtraction and no bias; it only rescales
// by the root-mean-square of the activation and a learnable per-feature
// gain g.
type RMSNorm struct {
	hiddenDim int
	eps       float32
	gain      *tensor.DenseTensor
	mu        sync.RWMutex
	closed    bool
}

// NewRMSNorm creates an RMSNorm layer with gain initialized to ones.
func NewRMSNorm(hiddenDim int, eps float32) (*RMSNorm, error) {
	gain, err := tensor.NewDenseTensor(tensor.F32, tensor.Host, hiddenDim)
	if err != nil {
		return nil, err
	}
	for i := 0; i < hiddenDim; i++ {
		if err := gain.Set(1, i); err != nil {
			return nil, err
		}
	}
	return &RMSNorm{hiddenDim: hiddenDim, eps: eps, gain: gain}, nil
}

// SetGain replaces the learnable gain vector, e.g. with weights loaded from
// a model file.
func (r *RMSNorm) SetGain(gain *tensor.DenseTensor) error {
	if r.closed {
		return ErrClosed
	}
	if gain == nil {
		return ErrNilTensor
	}
	shape := gain.Shape()
	if len(shape) != 1 || shape[0] != r.hiddenDim {
		return ErrInvalidGammaShape
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gain = gain
	return nil
}

// Forward normalizes each row of x (shape [batch, hidden_dim]).
func (r *RMSNorm) Forward(x *tensor.DenseTensor) (*tensor.DenseTensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if x == nil {
		return nil, ErrNilTensor
	}
	if err := ValidateBatchHidden(x, r.hiddenDim, "rmsnorm input"); err != nil {
		return nil, err
	}

	xData, err := x.Data()
	if err != nil {
		return nil, err
	}
	batch := x.Shape()[0]

	out, err := tensor.Shared.Acquire(x.Dtype(), x.Device(), batch, r.hiddenDim)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	gainData, err := r.gain.Data()
	r.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		numCPU = 1
	}
	chunk := (batch + numCPU - 1) / numCPU
	if chunk < 1 {
		chunk = 1
	}

	var wg sync.WaitGroup
	hidden := r.hiddenDim
	eps := r.eps
	outData, _ := out.Data()

	for start := 0; start < batch; start += chunk {
		end := start + chunk
		if end > batch {
			end = batch
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for b := start; b < end; b++ {
				row := xData[b*hidden : (b+1)*hidden]
				var sumSq float32
				for _, v := range row {
					sumSq += v * v
				}
				meanSq := sumSq / float32(hidden)
				invRMS := 1 / math32.Sqrt(meanSq+eps)
				outRow := outData[b*hidden : (b+1)*hidden]
				for i, v := range row {
					outRow[i] = gainData[i] * v * invRMS
				}
			}
		}(start, end)
	}
	wg.Wait()

	return out, nil
}

// Close releases the gain tensor.
func (r *RMSNorm) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.gain.Close()
}
