package tokenizer

// ByteLevelTokenizer maps every byte value 0-255 to the token id of the
// same number, and reserves the ids immediately above 256 for the
// caller-supplied special tokens (BOS/EOS/PAD/...). It never fails to
// encode any UTF-8 string, since it operates on raw bytes rather than a
// learned vocabulary.
type ByteLevelTokenizer struct {
	special   map[string]int
	vocabSize int
}

// NewByteLevelTokenizer builds a byte-level tokenizer with the given named
// special tokens assigned ids starting at 256, in the order supplied.
func NewByteLevelTokenizer(specialNames ...string) *ByteLevelTokenizer {
	special := make(map[string]int, len(specialNames))
	for i, name := range specialNames {
		special[name] = 256 + i
	}
	return &ByteLevelTokenizer{special: special, vocabSize: 256 + len(specialNames)}
}

// SpecialID returns the id assigned to a named special token, or false if
// it wasn't registered.
func (b *ByteLevelTokenizer) SpecialID(name string) (int, bool) {
	id, ok := b.special[name]
	return id, ok
}

// Encode converts text into one token id per byte of its UTF-8 encoding.
func (b *ByteLevelTokenizer) Encode(text string) ([]int, error) {
	raw := []byte(text)
	ids := make([]int, len(raw))
	for i, c := range raw {
		ids[i] = int(c)
	}
	return ids, nil
}

// Decode reconstructs text from token ids, silently dropping any id that
// falls outside the 0-255 byte range (i.e. a special token).
func (b *ByteLevelTokenizer) Decode(ids []int) (string, error) {
	out := make([]byte, 0, len(ids))
	for _, id := range ids {
		if id < 0 || id > 255 {
			continue
		}
		out = append(out, byte(id))
	}
	return string(out), nil
}

// VocabSize returns 256 plus the number of registered special tokens.
func (b *ByteLevelTokenizer) VocabSize() int {
	return b.vocabSize
}
