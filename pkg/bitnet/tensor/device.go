package tensor

import (
	"fmt"
	"sync"
)

// bufKey identifies a reusable activation buffer by the properties that
// determine whether it can be recycled: shape, dtype, and device.
type bufKey struct {
	dims   string
	dtype  DType
	device Device
}

func keyFor(dtype DType, device Device, shape []int) bufKey {
	return bufKey{dims: fmt.Sprint(shape), dtype: dtype, device: device}
}

// Dispatcher maintains a free-list of activation buffers keyed on
// (shape, dtype, device). It does no kernel routing itself: Dispatch picks
// a kernel from its input activation's device and batch size, and
// HomeDevice (which computes the device of the largest input) is not
// consulted by Dispatch. Cross-device inputs are migrated only by an
// explicit Migrate call, never silently.
type Dispatcher struct {
	mu       sync.Mutex
	freeList map[bufKey][]*DenseTensor
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{freeList: make(map[bufKey][]*DenseTensor)}
}

// Shared is the process-wide activation buffer pool for the forward path.
// BitLinear, BitLinearDequantCache, DenseTensor.Add, and RMSNorm.Forward all
// acquire their output buffers from it instead of allocating fresh every
// call; the transformer block (internal/math/block.go) and model.ForwardOne
// release each intermediate back to it once its last read is over, so the
// same [batch, hidden]-shaped buffers are recycled token after token rather
// than reallocated (§4.10).
var Shared = NewDispatcher()

// Acquire returns a zeroed tensor of the given shape/dtype/device, reusing
// one from the free list when a compatible one is available.
func (d *Dispatcher) Acquire(dtype DType, device Device, shape ...int) (*DenseTensor, error) {
	key := keyFor(dtype, device, shape)
	d.mu.Lock()
	bucket := d.freeList[key]
	if len(bucket) > 0 {
		t := bucket[len(bucket)-1]
		d.freeList[key] = bucket[:len(bucket)-1]
		d.mu.Unlock()
		for i := range t.data {
			t.data[i] = 0
		}
		atomicReopen(t)
		return t, nil
	}
	d.mu.Unlock()
	return NewDenseTensor(dtype, device, shape...)
}

// atomicReopen clears the closed flag on a tensor pulled back out of the
// free list. Release does not close the tensors it stores, so the flag is
// normally already clear.
func atomicReopen(t *DenseTensor) {
	t.closed = 0
}

// Release returns a tensor to the free list instead of discarding it. The
// tensor must not be used by the caller again without going through
// Acquire.
func (d *Dispatcher) Release(t *DenseTensor) {
	if t == nil {
		return
	}
	t.mu.RLock()
	shape := append([]int(nil), t.shape...)
	dtype := t.dtype
	device := t.device
	t.mu.RUnlock()
	key := keyFor(dtype, device, shape)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.freeList[key] = append(d.freeList[key], t)
}

// Migrate copies a tensor's data to a new tensor resident on dst, leaving
// the source untouched. This is the only sanctioned way bytes cross a
// device boundary; nothing in this package migrates data implicitly.
func Migrate(t *DenseTensor, dst Device) (*DenseTensor, error) {
	data, err := t.Data()
	if err != nil {
		return nil, err
	}
	shape := t.Shape()
	return NewDenseTensorFromSlice(t.Dtype(), dst, data, shape...)
}

// HomeDevice picks the dispatch device for a kernel call given its input
// tensors: the device of the largest (by element count) input, so a small
// activation crossing into accelerator-resident weights migrates rather
// than forcing the weights to migrate.
func HomeDevice(inputs ...Reader) Device {
	best := Host
	bestSize := -1
	for _, in := range inputs {
		if in == nil {
			continue
		}
		size := 1
		for _, d := range in.Shape() {
			size *= d
		}
		if size > bestSize {
			bestSize = size
			best = in.Device()
		}
	}
	return best
}
