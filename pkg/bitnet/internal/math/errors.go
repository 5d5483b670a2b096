// Package math implements the transformer block's numerical layers:
// RMSNorm, the SwiGLU feed-forward, the test-time-training layer, and the
// block composition wiring them together with residual connections.
package math

import "errors"

var (
	// ErrInvalidInputShape is returned when a tensor has an invalid shape for the operation.
	ErrInvalidInputShape = errors.New("math: invalid input shape")
	// ErrHiddenDimMismatch is returned when the hidden dimension does not match the expected value.
	ErrHiddenDimMismatch = errors.New("math: hidden dimension mismatch")
	// ErrInvalidGammaShape is returned when a normalization gain is not 1D or
	// does not match the hidden dimension.
	ErrInvalidGammaShape = errors.New("math: gamma must be 1D tensor with matching hidden dimension")
	// ErrNilTensor is returned when a nil tensor is provided.
	ErrNilTensor = errors.New("math: nil tensor provided")
	// ErrClosed is returned when a layer is used after Close.
	ErrClosed = errors.New("math: operation on a closed layer")
)
