package tensor

import "errors"

var (
	// ErrTensorClosed is returned when attempting to operate on a closed tensor.
	ErrTensorClosed = errors.New("tensor: operation attempted on closed tensor")
	// ErrInvalidShape is returned when a tensor has an invalid shape.
	ErrInvalidShape = errors.New("tensor: invalid shape")
	// ErrDimensionMismatch is returned when tensor dimensions don't match for an operation.
	ErrDimensionMismatch = errors.New("tensor: dimension mismatch")
	// ErrInvalidIndices is returned when the number of indices doesn't match the shape.
	ErrInvalidIndices = errors.New("tensor: invalid number of indices")
	// ErrIndexOutOfRange is returned when an index falls outside its dimension.
	ErrIndexOutOfRange = errors.New("tensor: index out of range")
	// ErrInvalidReshape is returned when a reshape would change the element count.
	ErrInvalidReshape = errors.New("tensor: cannot reshape tensor with different total size")
	// ErrNotMultipleOfFour is returned when a packed tensor's input dimension
	// isn't a multiple of 4, per the 2-bit packing invariant.
	ErrNotMultipleOfFour = errors.New("tensor: in dimension must be a multiple of 4")
	// ErrUnknownDtype is returned for a tensor directory entry naming an
	// unrecognized dtype.
	ErrUnknownDtype = errors.New("tensor: unknown dtype")
	// ErrNilTensor is returned when an operation receives a nil tensor.
	ErrNilTensor = errors.New("tensor: nil tensor")
)
