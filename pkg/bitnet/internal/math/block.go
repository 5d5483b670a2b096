package math

import "github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"

// Block composes one transformer layer (§4.6):
//
//	h = x + TTT(RMSNorm(x, norm1))
//	y = h + SwiGLU(RMSNorm(h, norm2))
//
// Both sublayers are pre-norm with a residual add, matching the BitNet
// convention of normalizing the input to each projection rather than its
// output.
type Block struct {
	norm1 *RMSNorm
	ttt   *TTTLayer
	norm2 *RMSNorm
	mlp   *SwiGLU
}

// NewBlock assembles one transformer layer from its already-constructed
// sublayers.
func NewBlock(norm1 *RMSNorm, ttt *TTTLayer, norm2 *RMSNorm, mlp *SwiGLU) (*Block, error) {
	if norm1 == nil || ttt == nil || norm2 == nil || mlp == nil {
		return nil, ErrNilTensor
	}
	return &Block{norm1: norm1, ttt: ttt, norm2: norm2, mlp: mlp}, nil
}

// Forward runs one token (x shape [1, hidden_dim]) through the block,
// mutating state in place via the TTT sublayer's inner-loop update.
func (b *Block) Forward(x *tensor.DenseTensor, state *TTTState) (*tensor.DenseTensor, error) {
	if x.Device() != b.ttt.Device() {
		migrated, err := tensor.Migrate(x, b.ttt.Device())
		if err != nil {
			return nil, err
		}
		x = migrated
	}

	n1, err := b.norm1.Forward(x)
	if err != nil {
		return nil, err
	}
	ttOut, err := b.ttt.Forward(n1, state)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(n1)
	h, err := x.Add(ttOut)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(x)
	tensor.Shared.Release(ttOut)

	n2, err := b.norm2.Forward(h)
	if err != nil {
		return nil, err
	}
	mlpOut, err := b.mlp.Forward(n2)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(n2)
	out, err := h.Add(mlpOut)
	if err != nil {
		return nil, err
	}
	tensor.Shared.Release(h)
	tensor.Shared.Release(mlpOut)
	return out, nil
}

// Close releases the block's normalization layers.
func (b *Block) Close() error {
	if err := b.norm1.Close(); err != nil {
		return err
	}
	return b.norm2.Close()
}
