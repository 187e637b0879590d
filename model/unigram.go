package model

import (
	"fmt"
	"math"

	"github.com/subtext-ml/tokenizers/config"
	"github.com/subtext-ml/tokenizers/logutil"
)

// unknownScorePenalty pushes the unknown token below every real entry so it
// is chosen only when nothing else matches.
const unknownScorePenalty = 10.0

// Unigram selects the maximum-log-probability segmentation with a Viterbi
// search over the token lattice.
type Unigram struct {
	vocab        *Vocabulary
	scores       []float64
	trie         *trie
	unknown      string
	unknownID    int32
	unknownScore float64
}

// NewUnigram parses the model config: a vocab array of (token, score)
// pairs plus the required unk_id.
func NewUnigram(cfg config.Config, added map[string]int32) (*Unigram, error) {
	items, ok := unigramVocab(cfg)
	if !ok {
		return nil, ErrMissingVocab
	}

	unkID, ok := cfg.Integer("unkId")
	if !ok || unkID < 0 || unkID >= len(items) {
		return nil, fmt.Errorf("%w: missing or out-of-range unk_id", ErrMalformedVocab)
	}

	u := &Unigram{
		scores: make([]float64, len(items)),
		trie:   newTrie(),
	}

	base := make(map[string]int32, len(items))
	minScore := math.Inf(1)
	for i, item := range items {
		entry, ok := item.Array()
		if !ok || len(entry) != 2 {
			return nil, fmt.Errorf("%w: vocab entry %d is not a pair", ErrMalformedVocab, i)
		}

		token, tok := entry[0].String()
		score, sok := entry[1].Float()
		if !tok || !sok {
			return nil, fmt.Errorf("%w: vocab entry %d", ErrMalformedVocab, i)
		}

		base[token] = int32(i)
		u.scores[i] = score
		u.trie.insert(token, int32(i))
		if score < minScore {
			minScore = score
		}
	}

	u.vocab = NewVocabulary(base, added)
	u.unknownID = int32(unkID)
	u.unknown, _ = u.vocab.Decode(u.unknownID)
	u.unknownScore = minScore - unknownScorePenalty

	return u, nil
}

// Tokenize implements Model. Every vocabulary token starting at each offset
// becomes a lattice node; offsets with no single-rune candidate get a
// synthetic unknown node so the lattice stays traversable end to end.
func (u *Unigram) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	l := newLattice(runes)

	for pos := range runes {
		hasSingle := false
		u.trie.commonPrefixSearch(runes, pos, func(length int, id int32) {
			l.insert(pos, length, u.scores[id], id)
			if length == 1 {
				hasSingle = true
			}
		})

		if !hasSingle {
			l.insert(pos, 1, u.unknownScore, u.unknownID)
		}
	}

	path := l.viterbi()
	tokens := make([]string, 0, len(path))
	prevUnknown := false
	for _, idx := range path {
		unknown := l.tokenID(idx) == u.unknownID
		if unknown && prevUnknown {
			// fuse runs of unknown nodes into one surface span
			tokens[len(tokens)-1] += l.surface(idx)
			continue
		}
		tokens = append(tokens, l.surface(idx))
		prevUnknown = unknown
	}

	logutil.Trace("unigram tokenized", "text", text, "tokens", tokens)
	return tokens
}

// TokenToID implements Model.
func (u *Unigram) TokenToID(token string) (int32, bool) {
	if id := u.vocab.Encode(token); id >= 0 {
		return id, true
	}
	return 0, false
}

// IDToToken implements Model.
func (u *Unigram) IDToToken(id int32) (string, bool) {
	return u.vocab.Decode(id)
}

// UnknownToken implements Model.
func (u *Unigram) UnknownToken() (string, int32, bool) {
	return u.unknown, u.unknownID, true
}

// FuseUnknown implements Model. Unigram always fuses runs of unknown
// tokens; without it every unmatched rune would emit its own unknown.
func (u *Unigram) FuseUnknown() bool { return true }
