// Package tokenizer defines the Tokenizer contract the generation loop and
// CLI depend on, plus a byte-level reference implementation that needs no
// vocabulary file at all. A model's weight-file header may instead point
// at a BPE vocabulary (see internal/model for the loader that builds one),
// in which case the loader returns that implementation instead.
package tokenizer

import "errors"

// ErrUnknownToken is returned when Decode is given an id outside the
// tokenizer's vocabulary.
var ErrUnknownToken = errors.New("tokenizer: unknown token id")

// Tokenizer converts between text and the integer token ids the model's
// embedding table and LM head operate on.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
	VocabSize() int
}
