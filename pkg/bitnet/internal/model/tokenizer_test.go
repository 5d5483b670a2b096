package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTokenizerFS() *testFS {
	vocab := map[string]int{"hello": 1, "world": 2, "[UNK]": 3, "[PAD]": 5}
	special := map[string]int{"[UNK]": 3, "[PAD]": 5}
	vocabJSON, _ := json.Marshal(vocab)
	specialJSON, _ := json.Marshal(special)
	return &testFS{
		files: map[string][]byte{
			"tokenizer/vocab.json":          vocabJSON,
			"tokenizer/merges.txt":          []byte("he he\nhel hel\nhell hell\nhello hello\n"),
			"tokenizer/special_tokens.json": specialJSON,
		},
	}
}

func TestNewBPETokenizer(t *testing.T) {
	tok, err := NewBPETokenizer(sampleTokenizerFS(), "tokenizer")
	assert.NoError(t, err)
	assert.Equal(t, 4, tok.VocabSize())
	assert.Equal(t, 1, tok.Vocab["hello"])
	assert.Equal(t, 4, len(tok.Merges))
	assert.Equal(t, 3, tok.SpecialTokens["[UNK]"])
}

func TestNewBPETokenizerErrors(t *testing.T) {
	_, err := NewBPETokenizer(nil, "tokenizer")
	assert.ErrorIs(t, err, ErrFSNotSet)

	_, err = NewBPETokenizer(&testFS{}, "")
	assert.ErrorIs(t, err, ErrPathEmpty)

	_, err = NewBPETokenizer(&testFS{}, "nonexistent")
	assert.ErrorIs(t, err, ErrTokenizerNotFound)
}

func TestBPETokenizerEncode(t *testing.T) {
	tok, err := NewBPETokenizer(sampleTokenizerFS(), "tokenizer")
	assert.NoError(t, err)

	tests := []struct {
		name string
		text string
		want []int
	}{
		{"known words", "hello world", []int{1, 2}},
		{"special token", "hello [PAD] world", []int{1, 5, 2}},
		{"unknown word falls back to per-rune UNK", "hello zz", []int{1, 3, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tok.Encode(tt.text)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBPETokenizerEncodeErrors(t *testing.T) {
	tok := &BPETokenizer{}
	_, err := tok.Encode("test")
	assert.ErrorIs(t, err, ErrVocabNotLoaded)
}

func TestBPETokenizerDecode(t *testing.T) {
	tok, err := NewBPETokenizer(sampleTokenizerFS(), "tokenizer")
	assert.NoError(t, err)

	text, err := tok.Decode([]int{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, "helloworld", text)

	_, err = tok.Decode([]int{1, 999})
	assert.ErrorIs(t, err, ErrUnknownTokenID)
}

func TestBPETokenizerDecodeErrors(t *testing.T) {
	tok := &BPETokenizer{}
	_, err := tok.Decode([]int{1})
	assert.ErrorIs(t, err, ErrVocabNotLoaded)
}

func TestBPETokenizerSplitText(t *testing.T) {
	tok := &BPETokenizer{SpecialTokens: map[string]int{"[UNK]": 1, "[PAD]": 2}}

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"simple text", "hello world", []string{"hello", "world"}},
		{"special tokens", "hello [PAD] world", []string{"hello", "[PAD]", "world"}},
		{"multiple spaces", "hello   world", []string{"hello", "world"}},
		{"newlines", "hello\nworld", []string{"hello", "world"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.splitText(tt.text))
		})
	}
}

func TestBPETokenizerApplyBPE(t *testing.T) {
	tok := &BPETokenizer{
		Merges:   []string{"he", "hel"},
		MergeMap: map[string]string{"he": "he", "hel": "hel"},
	}

	assert.Nil(t, tok.applyBPE(""))
	assert.Equal(t, []string{"hel", "l", "o"}, tok.applyBPE("hello"))
}
