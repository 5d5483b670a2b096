package math

import (
	"fmt"

	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// ValidateShape checks that t's rank matches one of expectedDims.
func ValidateShape(t *tensor.DenseTensor, expectedDims ...int) error {
	shape := t.Shape()
	for _, dim := range expectedDims {
		if len(shape) == dim {
			return nil
		}
	}
	return fmt.Errorf("tensor must have one of dimensions %v, got %dD", expectedDims, len(shape))
}

// ValidateBatchHidden checks that t has shape [batch, hidden_dim].
func ValidateBatchHidden(t *tensor.DenseTensor, hiddenDim int, name string) error {
	if err := ValidateShape(t, 2); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if t.Shape()[1] != hiddenDim {
		return fmt.Errorf("%s: %w", name, ErrHiddenDimMismatch)
	}
	return nil
}

// ValidateMatchingShapes checks that t1 and t2 have identical shapes.
func ValidateMatchingShapes(t1, t2 *tensor.DenseTensor, name1, name2 string) error {
	s1, s2 := t1.Shape(), t2.Shape()
	if len(s1) != len(s2) {
		return fmt.Errorf("%s and %s must have same number of dimensions, got %d and %d",
			name1, name2, len(s1), len(s2))
	}
	for i := range s1 {
		if s1[i] != s2[i] {
			return fmt.Errorf("%s and %s must have matching dimensions, got %v and %v",
				name1, name2, s1, s2)
		}
	}
	return nil
}
