// Package generate implements the streaming generation loop (§4.9): a
// Sequence owns one TTT state per layer and advances them one token at a
// time through a model.Model, with sampling and cooperative cancellation
// layered on top in generate.go and sampling.go.
package generate

import (
	bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"
	bitnetmath "github.com/hyperifyio/ternaryttt/pkg/bitnet/internal/math"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tensor"
)

// forwarder is the subset of *model.Model a Sequence drives. Kept as an
// interface so generate_test.go can exercise the loop against a fake
// without constructing a real weight file.
type forwarder interface {
	ForwardOne(tokenID int, states []*bitnetmath.TTTState) (*tensor.DenseTensor, error)
}

// Sequence owns the per-layer TTT state for one generation context. Its
// W_state matrices are exclusively owned by the goroutine driving it; they
// are never shared across sequences (§5).
type Sequence struct {
	model    forwarder
	states   []*bitnetmath.TTTState
	tokens   []int // every token_id ever fed, prompt and generated, in order
	freed    bool
}

// NewSequence allocates a fresh sequence with zeroed TTT state for every
// layer.
func NewSequence(m forwarder, numLayers, innerDim int) *Sequence {
	states := make([]*bitnetmath.TTTState, numLayers)
	for i := range states {
		states[i] = bitnetmath.NewTTTState(innerDim)
	}
	return &Sequence{model: m, states: states}
}

// Reset zeroes every layer's W_state and forgets consumed tokens, per the
// sequence reset rule: the caller must call this before feeding a prompt
// that is not a continuation of what this sequence has already consumed.
func (s *Sequence) Reset() {
	for _, st := range s.states {
		st.Reset()
	}
	s.tokens = nil
}

// Feed advances the sequence by one token without returning logits, used
// to consume prompt tokens (§4.9 step 1).
func (s *Sequence) Feed(tokenID int) error {
	_, err := s.forward(tokenID)
	return err
}

// ForwardOne advances the sequence by one token and returns its logits as
// a flat float32 slice.
func (s *Sequence) ForwardOne(tokenID int) ([]float32, error) {
	return s.forward(tokenID)
}

func (s *Sequence) forward(tokenID int) ([]float32, error) {
	if s.freed {
		return nil, bitneterrors.ErrHandleFreed
	}
	logitsTensor, err := s.model.ForwardOne(tokenID, s.states)
	if err != nil {
		return nil, err
	}
	logits, err := logitsTensor.Data()
	if err != nil {
		return nil, err
	}
	s.tokens = append(s.tokens, tokenID)
	return logits, nil
}

// Tokens returns every token id this sequence has consumed so far, prompt
// and generated, in order.
func (s *Sequence) Tokens() []int {
	out := make([]int, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Free releases the sequence; any further Feed/ForwardOne call fails with
// ErrHandleFreed. The underlying model is untouched.
func (s *Sequence) Free() {
	s.freed = true
}
