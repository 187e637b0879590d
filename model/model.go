// Package model implements the three subword algorithms: byte-pair
// encoding, WordPiece, and Unigram. A model maps one pre-tokenized segment
// to token strings; id mapping goes through the shared Vocabulary.
package model

import (
	"errors"
	"fmt"

	"github.com/subtext-ml/tokenizers/config"
)

var (
	// ErrMissingVocab is returned when the model config has no vocab.
	ErrMissingVocab = errors.New("model: missing vocabulary")
	// ErrMalformedVocab is returned when vocab, merges, or unk_id cannot be
	// interpreted.
	ErrMalformedVocab = errors.New("model: malformed vocabulary")
)

// Model is a constructed subword tokenization algorithm. Implementations
// are immutable after construction; Tokenize is pure.
type Model interface {
	// Tokenize splits one pre-tokenized segment into token strings.
	Tokenize(text string) []string

	// TokenToID resolves a token string. ok is false for out-of-vocabulary
	// tokens; callers decide whether that maps to the unknown token.
	TokenToID(token string) (int32, bool)

	// IDToToken resolves an id back to its token string.
	IDToToken(id int32) (string, bool)

	// UnknownToken returns the configured unknown token and its id.
	UnknownToken() (string, int32, bool)

	// FuseUnknown reports whether consecutive unknown tokens collapse into
	// one occurrence.
	FuseUnknown() bool
}

// New builds the model selected by cfg's type field. added contains the
// added-token entries merged into the vocabulary at construction.
func New(cfg config.Config, added map[string]int32) (Model, error) {
	typ, ok := cfg.String("type")
	if !ok {
		// tokenizer.json for SPM conversions sometimes omits the model
		// type; Unigram configs are recognizable by their pair-array vocab
		if _, isUnigram := unigramVocab(cfg); isUnigram {
			typ = "Unigram"
		} else {
			typ = "BPE"
		}
	}

	switch typ {
	case "BPE":
		return NewBPE(cfg, added)
	case "WordPiece":
		return NewWordPiece(cfg, added)
	case "Unigram":
		return NewUnigram(cfg, added)
	}

	return nil, fmt.Errorf("model: unsupported model type %q", typ)
}

func unigramVocab(cfg config.Config) ([]config.Value, bool) {
	items, ok := cfg.Array("vocab")
	if !ok || len(items) == 0 {
		return nil, false
	}
	if _, ok := items[0].Array(); !ok {
		return nil, false
	}
	return items, true
}
