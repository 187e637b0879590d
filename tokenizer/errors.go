package tokenizer

import (
	"errors"

	"github.com/subtext-ml/tokenizers/model"
)

// Configuration problems are fatal at construction: a tokenizer with a
// broken vocabulary cannot produce meaningful partial results. Runtime
// tokenize and decode calls degrade through the unknown-token and
// byte-fallback paths instead of failing.
var (
	ErrMissingVocab   = model.ErrMissingVocab
	ErrMalformedVocab = model.ErrMalformedVocab

	ErrMissingTokenizerClass = errors.New("tokenizer: tokenizer_class missing from config")
	ErrUnsupportedTokenizer  = errors.New("tokenizer: unsupported tokenizer class")
	ErrMismatchedConfig      = errors.New("tokenizer: mismatched config")
	ErrNoChatTemplate        = errors.New("tokenizer: no chat template available")
	ErrTooLong               = errors.New("tokenizer: sequence exceeds maximum length")
)
