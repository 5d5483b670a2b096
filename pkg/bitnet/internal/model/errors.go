package model

import "errors"

var (
	ErrFSNotSet    = errors.New("model: filesystem cannot be nil")
	ErrPathEmpty   = errors.New("model: tokenizer path cannot be empty")
	ErrTokenizerNotFound = errors.New("model: tokenizer file not found")
	ErrVocabNotLoaded    = errors.New("model: vocabulary not loaded")
	ErrUnknownToken      = errors.New("model: unknown token")
	ErrUnknownTokenID    = errors.New("model: unknown token id")
	ErrDecodeFailed      = errors.New("model: failed to decode tokenizer file")
)
