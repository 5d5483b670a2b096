package model

import (
	"bufio"
	"encoding/json"
	"io/fs"
	"strings"
	"unicode/utf8"

	bitnettokenizer "github.com/hyperifyio/ternaryttt/pkg/bitnet/tokenizer"
)

// BPETokenizer loads a byte-pair-encoding vocabulary and merge table from a
// directory (vocab.json, merges.txt, special_tokens.json) and implements
// tokenizer.Tokenizer over it. A weight file's header names this directory
// when its tokenizer.type is "bpe"; otherwise the loader falls back to
// tokenizer.ByteLevelTokenizer.
type BPETokenizer struct {
	fs            fs.FS
	dirPath       string
	Vocab         map[string]int
	Merges        []string
	MergeMap      map[string]string
	SpecialTokens map[string]int
}

var _ bitnettokenizer.Tokenizer = (*BPETokenizer)(nil)

// NewBPETokenizer loads the three tokenizer files from dirPath within fsys.
func NewBPETokenizer(fsys fs.FS, dirPath string) (*BPETokenizer, error) {
	if fsys == nil {
		return nil, ErrFSNotSet
	}
	if dirPath == "" {
		return nil, ErrPathEmpty
	}

	t := &BPETokenizer{fs: fsys, dirPath: dirPath}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *BPETokenizer) load() error {
	vocabFile, err := t.fs.Open(t.dirPath + "/vocab.json")
	if err != nil {
		return ErrTokenizerNotFound
	}
	defer vocabFile.Close()
	if err := json.NewDecoder(vocabFile).Decode(&t.Vocab); err != nil {
		return ErrDecodeFailed
	}

	mergesFile, err := t.fs.Open(t.dirPath + "/merges.txt")
	if err != nil {
		return ErrTokenizerNotFound
	}
	defer mergesFile.Close()

	t.Merges = make([]string, 0)
	t.MergeMap = make(map[string]string)
	scanner := bufio.NewScanner(mergesFile)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			continue
		}
		t.Merges = append(t.Merges, parts[0])
		t.MergeMap[parts[0]] = parts[1]
	}
	if err := scanner.Err(); err != nil {
		return ErrDecodeFailed
	}

	specialFile, err := t.fs.Open(t.dirPath + "/special_tokens.json")
	if err != nil {
		return ErrTokenizerNotFound
	}
	defer specialFile.Close()
	if err := json.NewDecoder(specialFile).Decode(&t.SpecialTokens); err != nil {
		return ErrDecodeFailed
	}

	return nil
}

// Encode converts text into token ids by greedy vocabulary lookup falling
// back to byte-pair merges.
func (t *BPETokenizer) Encode(text string) ([]int, error) {
	if t.Vocab == nil {
		return nil, ErrVocabNotLoaded
	}

	words := t.splitText(text)
	ids := make([]int, 0, len(words))
	for _, word := range words {
		if id, ok := t.Vocab[word]; ok {
			ids = append(ids, id)
			continue
		}
		for _, sub := range t.applyBPE(word) {
			if id, ok := t.Vocab[sub]; ok {
				ids = append(ids, id)
			} else if id, ok := t.SpecialTokens["[UNK]"]; ok {
				ids = append(ids, id)
			} else {
				return nil, ErrUnknownToken
			}
		}
	}
	return ids, nil
}

func (t *BPETokenizer) splitText(text string) []string {
	var words []string
	var current strings.Builder

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size

		if r == '[' {
			if end := strings.Index(text[i:], "]"); end != -1 {
				token := text[i-1 : i+end+1]
				if _, ok := t.SpecialTokens[token]; ok {
					if current.Len() > 0 {
						words = append(words, current.String())
						current.Reset()
					}
					words = append(words, token)
					i += end + 1
					continue
				}
			}
		}

		if r == ' ' || r == '\t' || r == '\n' {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(r)
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

func (t *BPETokenizer) applyBPE(word string) []string {
	if len(word) == 0 {
		return nil
	}
	raw := []byte(word)
	symbols := make([]string, len(raw))
	for i := range raw {
		symbols[i] = string(raw[i : i+1])
	}

	for {
		found := false
		for _, pair := range t.Merges {
			for i := 0; i < len(symbols)-1; i++ {
				if symbols[i]+symbols[i+1] == pair {
					merged := t.MergeMap[pair]
					symbols = append(symbols[:i], append([]string{merged}, symbols[i+2:]...)...)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			break
		}
	}
	return symbols
}

// Decode converts token ids back into text, joining subwords and undoing
// the word-boundary marker.
func (t *BPETokenizer) Decode(ids []int) (string, error) {
	if t.Vocab == nil {
		return "", ErrVocabNotLoaded
	}
	reverse := make(map[int]string, len(t.Vocab))
	for token, id := range t.Vocab {
		reverse[id] = token
	}
	var tokens []string
	for _, id := range ids {
		tok, ok := reverse[id]
		if !ok {
			return "", ErrUnknownTokenID
		}
		tokens = append(tokens, tok)
	}
	text := strings.Join(tokens, "")
	text = strings.ReplaceAll(text, "▁", " ")
	return strings.TrimSpace(text), nil
}

// VocabSize returns the number of entries in the loaded vocabulary.
func (t *BPETokenizer) VocabSize() int {
	return len(t.Vocab)
}
