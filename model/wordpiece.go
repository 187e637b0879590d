package model

import (
	"github.com/subtext-ml/tokenizers/config"
	"github.com/subtext-ml/tokenizers/logutil"
)

const defaultMaxInputCharsPerWord = 100

// WordPiece is the greedy longest-match-from-left algorithm used by
// BERT-family models. Non-initial spans carry a continuation prefix.
type WordPiece struct {
	vocab         *Vocabulary
	unknown       string
	unknownID     int32
	hasUnknown    bool
	fuseUnknown   bool
	prefix        string
	maxInputChars int
}

func NewWordPiece(cfg config.Config, added map[string]int32) (*WordPiece, error) {
	base, err := parseVocabDict(cfg)
	if err != nil {
		return nil, err
	}

	wpm := &WordPiece{
		vocab:         NewVocabulary(base, added),
		unknown:       "[UNK]",
		fuseUnknown:   cfg.Boolean("fuseUnk", false),
		prefix:        "##",
		maxInputChars: defaultMaxInputCharsPerWord,
	}

	if unk, ok := cfg.String("unkToken"); ok {
		wpm.unknown = unk
	}
	if prefix, ok := cfg.String("continuingSubwordPrefix"); ok {
		wpm.prefix = prefix
	}
	if n, ok := cfg.Integer("maxInputCharsPerWord"); ok {
		wpm.maxInputChars = n
	}

	wpm.unknownID = wpm.vocab.Encode(wpm.unknown)
	wpm.hasUnknown = wpm.unknownID >= 0

	return wpm, nil
}

// Tokenize implements Model. The input is one whitespace-delimited word
// from the pre-tokenizer; words longer than the limit are unknown outright,
// as is any word with an unmatchable span.
func (wpm *WordPiece) Tokenize(text string) []string {
	runes := []rune(text)
	if len(runes) > wpm.maxInputChars {
		return []string{wpm.unknown}
	}

	var pieces []string
	start := 0
	for start < len(runes) {
		end := len(runes)
		var match string
		for start < end {
			sub := string(runes[start:end])
			if start > 0 {
				sub = wpm.prefix + sub
			}
			if wpm.vocab.Contains(sub) {
				match = sub
				break
			}
			end--
		}

		if match == "" {
			// no span matches at this offset; the whole word is unknown
			return []string{wpm.unknown}
		}

		pieces = append(pieces, match)
		start = end
	}

	logutil.Trace("wordpiece tokenized", "text", text, "tokens", pieces)
	return pieces
}

// TokenToID implements Model.
func (wpm *WordPiece) TokenToID(token string) (int32, bool) {
	if id := wpm.vocab.Encode(token); id >= 0 {
		return id, true
	}
	return 0, false
}

// IDToToken implements Model.
func (wpm *WordPiece) IDToToken(id int32) (string, bool) {
	return wpm.vocab.Decode(id)
}

// UnknownToken implements Model.
func (wpm *WordPiece) UnknownToken() (string, int32, bool) {
	return wpm.unknown, wpm.unknownID, wpm.hasUnknown
}

// FuseUnknown implements Model.
func (wpm *WordPiece) FuseUnknown() bool { return wpm.fuseUnknown }
