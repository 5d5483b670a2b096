// Package bitnet is the public, language-neutral entry point over the
// ternary-weight / test-time-training inference core (§6): load a model,
// allocate sequences against it, feed and generate tokens, and free both
// in a deterministic order.
package bitnet

import (
	bitneterrors "github.com/hyperifyio/ternaryttt/pkg/bitnet/errors"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/generate"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/model"
	"github.com/hyperifyio/ternaryttt/pkg/bitnet/tokenizer"
)

// SamplingConfig re-exports generate.SamplingConfig so callers never need
// to import the generate package directly.
type SamplingConfig = generate.SamplingConfig

// Callback re-exports generate.Callback.
type Callback = generate.Callback

// LoadOptions re-exports model.LoadOptions (§6's `load(path, options)`).
type LoadOptions = model.LoadOptions

// GenerateResult re-exports generate.Result.
type GenerateResult = generate.Result

// ModelHandle wraps a loaded model. It owns the memory-mapped weight
// file for its entire lifetime.
type ModelHandle struct {
	m *model.Model
}

// Load opens a weight file and assembles a ready-to-run model, applying
// opts' device-placement and other load-time choices.
func Load(path string, opts LoadOptions) (*ModelHandle, error) {
	m, err := model.Load(path, opts)
	if err != nil {
		return nil, err
	}
	return &ModelHandle{m: m}, nil
}

// Free releases the model's memory mapping. Calling it twice is a no-op.
func (h *ModelHandle) Free() error {
	return h.m.Close()
}

// Tokenizer returns the model's configured tokenizer.
func (h *ModelHandle) Tokenizer() tokenizer.Tokenizer {
	return h.m.Tokenizer()
}

// SequenceHandle wraps a generate.Sequence bound to one ModelHandle.
type SequenceHandle struct {
	seq *generate.Sequence
	bos *int
}

// NewSequence allocates a fresh sequence with zeroed W_state for every
// layer.
func NewSequence(h *ModelHandle) *SequenceHandle {
	return &SequenceHandle{
		seq: generate.NewSequence(h.m, h.m.Config.NumLayers, h.m.Config.Inner),
		bos: bosToken(h.m.Tokenizer()),
	}
}

// bosToken looks up the tokenizer's "bos" special token, if it has one.
func bosToken(tok tokenizer.Tokenizer) *int {
	if st, ok := tok.(specialTokenLookup); ok {
		if id, ok := st.SpecialID("bos"); ok {
			return &id
		}
	}
	return nil
}

// Feed advances the sequence's TTT state by each id in turn, discarding
// logits; used to consume a prompt (§4.9 step 1).
func (s *SequenceHandle) Feed(ids []int) error {
	for _, id := range ids {
		if err := s.seq.Feed(id); err != nil {
			return err
		}
	}
	return nil
}

// Generate samples up to maxNew tokens following the already-fed prefix,
// per §4.9's algorithm. An empty prompt is only valid when the model's
// tokenizer has a "bos" special token configured (§8); otherwise it is a
// configuration error.
func (s *SequenceHandle) Generate(prompt []int, maxNew int, sampling SamplingConfig, stopIDs []int, callback Callback) (GenerateResult, error) {
	return generate.Run(s.seq, generate.Request{
		Prompt:       prompt,
		MaxNewTokens: maxNew,
		Sampling:     sampling,
		Stop:         generate.NewStopSet(stopIDs...),
		OnToken:      callback,
		BOSToken:     s.bos,
	})
}

// specialTokenLookup is implemented by tokenizers that expose named
// special tokens (currently only ByteLevelTokenizer); a BPE tokenizer
// built from a vocabulary file simply has none configured.
type specialTokenLookup interface {
	SpecialID(name string) (int, bool)
}

// Reset zeroes every layer's W_state, required before feeding a prompt
// that is not a continuation of what this sequence has already consumed.
func (s *SequenceHandle) Reset() {
	s.seq.Reset()
}

// Tokens returns every token id this sequence has consumed so far.
func (s *SequenceHandle) Tokens() []int {
	return s.seq.Tokens()
}

// Free releases the sequence handle; further use returns ErrHandleFreed.
func (s *SequenceHandle) Free() {
	s.seq.Free()
}

// ExitCode maps any error returned by this package to the CLI exit codes
// documented in §6.
func ExitCode(err error) int {
	return bitneterrors.ExitCode(err)
}
