package model

import (
	bitnetmath "github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/math"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// LayerWeights holds the already-constructed sublayers for one
// transformer block (§3): two RMSNorm gains, the TTT down/up projections,
// and the SwiGLU gate/up/down projections.
type LayerWeights struct {
	Norm1 *bitnetmath.RMSNorm
	TTT   *bitnetmath.TTTLayer
	Norm2 *bitnetmath.RMSNorm
	MLP   *bitnetmath.SwiGLU
}

// Embedding is the token embedding table. It is usually ternary-packed
// like every other projection, but the format also allows a dense
// embedding (f16/f32) for models that want full precision at the input
// boundary, per the Open Questions resolution in DESIGN.md.
type Embedding struct {
	dense  *tensor.DenseTensor         // set when the header stores f16/f32
	packed *tensor.PackedTernaryTensor // set when the header stores ternary_2bit
	hidden int
}

// NewDenseEmbedding wraps a dense embedding table of shape [vocab, hidden].
func NewDenseEmbedding(t *tensor.DenseTensor) *Embedding {
	shape := t.Shape()
	return &Embedding{dense: t, hidden: shape[len(shape)-1]}
}

// NewPackedEmbedding wraps a ternary-packed embedding table.
func NewPackedEmbedding(t *tensor.PackedTernaryTensor) *Embedding {
	_, hidden := t.Shape()
	return &Embedding{packed: t, hidden: hidden}
}

// Lookup returns the hidden_dim-wide row for token id as a [1, hidden_dim]
// tensor.
func (e *Embedding) Lookup(id int) (*tensor.DenseTensor, error) {
	row := make([]float32, e.hidden)
	if e.dense != nil {
		data, err := e.dense.Data()
		if err != nil {
			return nil, err
		}
		copy(row, data[id*e.hidden:(id+1)*e.hidden])
	} else {
		for col := 0; col < e.hidden; col++ {
			q, err := e.packed.DequantElement(id, col)
			if err != nil {
				return nil, err
			}
			row[col] = e.packed.Scale() * float32(q)
		}
	}
	return tensor.NewDenseTensorFromSlice(tensor.F32, tensor.Host, row, 1, e.hidden)
}
