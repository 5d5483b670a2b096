package tensor

// Reader is a read-only view over a dense tensor's data, without Close or
// Set access. HomeDevice takes its inputs as Readers; the BitLinear
// kernels take *DenseTensor directly.
type Reader interface {
	Shape() []int
	Dtype() DType
	Device() Device
	Data() ([]float32, error)
}

// Operations is the full read/write/lifecycle surface of a DenseTensor.
type Operations interface {
	Reader
	Get(indices ...int) (float32, error)
	Set(value float32, indices ...int) error
	Reshape(shape ...int) (*DenseTensor, error)
	Close() error
}

// PackedReader is the read-only surface of a ternary weight matrix:
// per-element dequantization plus the scalar scale, without exposing the
// packed byte layout. The BitLinear kernels take *PackedTernaryTensor
// directly and stream its packed codes.
type PackedReader interface {
	Shape() (out, in int)
	Scale() float32
	DequantElement(row, col int) (int8, error)
	ByteStride() int
}

var (
	_ Operations   = (*DenseTensor)(nil)
	_ PackedReader = (*PackedTernaryTensor)(nil)
)
