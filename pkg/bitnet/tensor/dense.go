// Package tensor implements the two tensor representations the inference
// core operates on: DenseTensor, a row-major floating buffer used for
// activations and normalization parameters, and PackedTernaryTensor, the
// 2-bit-per-weight ternary storage format used for every BitLinear
// projection. It also hosts the BitLinear kernels and the device/dispatch
// layer that routes calls between host and accelerator memory.
package tensor

import (
	"sync"
	"sync/atomic"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/logging"
)

// Device tags where a tensor's bytes live.
type Device int

const (
	Host Device = iota
	Accelerator
)

func (d Device) String() string {
	if d == Accelerator {
		return "accelerator"
	}
	return "host"
}

// DType tags the on-disk/activation precision of a DenseTensor. Compute
// always happens in float32 internally (see DESIGN.md); DType only affects
// how a tensor is read from or written to the weight file, matching the
// "tagged variant over polymorphism" design note.
type DType int

const (
	F32 DType = iota
	F16
)

// DenseTensor is a standard row-major n-dimensional floating buffer with
// shape, stride, dtype, and a device tag. It is thread-safe: every
// accessor takes the same RWMutex, and a closed tensor fails every
// operation rather than silently returning zero values.
type DenseTensor struct {
	data   []float32
	shape  []int
	stride []int
	dtype  DType
	device Device
	mu     sync.RWMutex
	closed uint32
}

// NewDenseTensor allocates a zeroed tensor with the given shape.
func NewDenseTensor(dtype DType, device Device, shape ...int) (*DenseTensor, error) {
	if len(shape) == 0 {
		return nil, ErrInvalidShape
	}
	for _, dim := range shape {
		if dim <= 0 {
			return nil, ErrInvalidShape
		}
	}
	size := 1
	stride := make([]int, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		stride[i] = size
		size *= shape[i]
	}
	return &DenseTensor{
		data:   make([]float32, size),
		shape:  shape,
		stride: stride,
		dtype:  dtype,
		device: device,
	}, nil
}

// NewDenseTensorFromSlice wraps existing float32 data in a tensor of the
// given shape, copying it so the caller's slice can be reused.
func NewDenseTensorFromSlice(dtype DType, device Device, data []float32, shape ...int) (*DenseTensor, error) {
	t, err := NewDenseTensor(dtype, device, shape...)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, ErrInvalidShape
	}
	copy(t.data, data)
	return t, nil
}

func (t *DenseTensor) isClosed() bool {
	return atomic.LoadUint32(&t.closed) == 1
}

// Shape returns the tensor's dimensions. The caller must not modify the
// returned slice.
func (t *DenseTensor) Shape() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.shape
}

// Dtype reports the tensor's declared on-disk precision.
func (t *DenseTensor) Dtype() DType {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dtype
}

// Device reports where the tensor's bytes live.
func (t *DenseTensor) Device() Device {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.device
}

// Data returns a reference to the underlying float32 buffer. The caller
// must not modify the returned slice.
func (t *DenseTensor) Data() ([]float32, error) {
	if t.isClosed() {
		return nil, ErrTensorClosed
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.data, nil
}

func (t *DenseTensor) index(indices []int) (int, error) {
	if len(indices) != len(t.shape) {
		return 0, ErrInvalidIndices
	}
	idx := 0
	for i, v := range indices {
		if v < 0 || v >= t.shape[i] {
			return 0, ErrIndexOutOfRange
		}
		idx += v * t.stride[i]
	}
	return idx, nil
}

// Get retrieves a single element.
func (t *DenseTensor) Get(indices ...int) (float32, error) {
	if t.isClosed() {
		return 0, ErrTensorClosed
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx, err := t.index(indices)
	if err != nil {
		return 0, err
	}
	return t.data[idx], nil
}

// Set assigns a single element.
func (t *DenseTensor) Set(value float32, indices ...int) error {
	if t.isClosed() {
		return ErrTensorClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, err := t.index(indices)
	if err != nil {
		return err
	}
	t.data[idx] = value
	return nil
}

// Reshape returns a new tensor sharing no storage with the original, with
// the same elements under a different shape. The element count must
// match.
func (t *DenseTensor) Reshape(shape ...int) (*DenseTensor, error) {
	if t.isClosed() {
		return nil, ErrTensorClosed
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	newSize := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, ErrInvalidShape
		}
		newSize *= d
	}
	if newSize != len(t.data) {
		return nil, ErrInvalidReshape
	}
	out, err := NewDenseTensor(t.dtype, t.device, shape...)
	if err != nil {
		return nil, err
	}
	copy(out.data, t.data)
	return out, nil
}

// Add performs element-wise addition, returning a new tensor. Used for
// every residual connection in the transformer block.
func (t *DenseTensor) Add(other *DenseTensor) (*DenseTensor, error) {
	if t == nil || other == nil {
		return nil, ErrNilTensor
	}
	if t.isClosed() || other.isClosed() {
		return nil, ErrTensorClosed
	}
	t.mu.RLock()
	other.mu.RLock()
	defer t.mu.RUnlock()
	defer other.mu.RUnlock()

	if len(t.shape) != len(other.shape) {
		return nil, ErrInvalidShape
	}
	for i := range t.shape {
		if t.shape[i] != other.shape[i] {
			return nil, ErrInvalidShape
		}
	}
	out, err := Shared.Acquire(t.dtype, t.device, t.shape...)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		out.data[i] = t.data[i] + other.data[i]
	}
	return out, nil
}

// Close releases the tensor's backing storage. After Close the tensor
// cannot be used again.
func (t *DenseTensor) Close() error {
	if t == nil {
		return ErrNilTensor
	}
	if atomic.CompareAndSwapUint32(&t.closed, 0, 1) {
		logging.Debugf("closing dense tensor shape=%v device=%s", t.shape, t.device)
		t.data = nil
		t.shape = nil
		t.stride = nil
	}
	return nil
}
