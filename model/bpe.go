package model

import (
	"cmp"
	"fmt"
	"strings"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/subtext-ml/tokenizers/config"
	"github.com/subtext-ml/tokenizers/logutil"
)

// BytePair is a merge-rank key. Comparison is exact byte equality on both
// sides, never normalized.
type BytePair struct {
	Left, Right string
}

// BPE merges the lowest-ranked adjacent symbol pair until no ranked pair
// remains. Pieces that end up outside the vocabulary degrade to per-byte
// <0xXX> tokens instead of a single unknown token.
type BPE struct {
	vocab       *Vocabulary
	ranks       map[BytePair]int
	unknown     string
	unknownID   int32
	hasUnknown  bool
	fuseUnknown bool
}

// NewBPE parses the model config: a vocab dictionary and an ordered merges
// list, where rank equals list position. Merges accept both the legacy
// single-string "a b" form and the 2-element array form.
func NewBPE(cfg config.Config, added map[string]int32) (*BPE, error) {
	base, err := parseVocabDict(cfg)
	if err != nil {
		return nil, err
	}

	bpe := &BPE{
		vocab:       NewVocabulary(base, added),
		ranks:       make(map[BytePair]int),
		fuseUnknown: cfg.Boolean("fuseUnk", false),
	}

	if merges, ok := cfg.Array("merges"); ok {
		for i, item := range merges {
			pair, err := parseMerge(item)
			if err != nil {
				return nil, fmt.Errorf("%w: merge %d: %v", ErrMalformedVocab, i, err)
			}
			bpe.ranks[pair] = i
		}
	}

	if unk, ok := cfg.String("unkToken"); ok {
		bpe.unknown = unk
		bpe.unknownID = bpe.vocab.Encode(unk)
		bpe.hasUnknown = bpe.unknownID >= 0
	}

	return bpe, nil
}

func parseVocabDict(cfg config.Config) (map[string]int32, error) {
	vocab, ok := cfg.Dictionary("vocab")
	if !ok {
		return nil, ErrMissingVocab
	}

	base := make(map[string]int32, len(vocab))
	for token, v := range vocab {
		id, ok := v.Integer()
		if !ok {
			return nil, fmt.Errorf("%w: id for token %q", ErrMalformedVocab, token)
		}
		base[token] = int32(id)
	}

	return base, nil
}

func parseMerge(item config.Value) (BytePair, error) {
	if s, ok := item.String(); ok {
		left, right, ok := strings.Cut(s, " ")
		if !ok {
			return BytePair{}, fmt.Errorf("merge %q has no separator", s)
		}
		return BytePair{Left: left, Right: right}, nil
	}

	if arr, ok := item.Array(); ok && len(arr) == 2 {
		left, lok := arr[0].String()
		right, rok := arr[1].String()
		if lok && rok {
			return BytePair{Left: left, Right: right}, nil
		}
	}

	return BytePair{}, fmt.Errorf("merge is neither %q nor a string pair", "a b")
}

// merge is one slot of the symbol arena. Dead slots have empty runes; p and
// n link live neighbors.
type merge struct {
	p, n  int
	runes []rune
}

// pair is a candidate merge of two live symbols.
type pair struct {
	a, b  int
	rank  int
	value string
}

// bpe runs the merge loop over one word and returns the surviving symbols.
// The agenda orders by rank, then by left position so equal-rank pairs merge
// left to right.
func (bpe *BPE) bpe(word string) []string {
	runes := []rune(word)
	if len(runes) < 2 {
		return []string{word}
	}

	merges := make([]merge, len(runes))
	for r := range runes {
		merges[r] = merge{p: r - 1, n: r + 1, runes: []rune{runes[r]}}
	}

	pairwise := func(a, b int) *pair {
		if a < 0 || b >= len(merges) {
			return nil
		}

		left, right := string(merges[a].runes), string(merges[b].runes)
		if left == "" || right == "" {
			return nil
		}

		rank, ok := bpe.ranks[BytePair{Left: left, Right: right}]
		if !ok {
			return nil
		}

		return &pair{a: a, b: b, rank: rank, value: left + right}
	}

	pairs := heap.NewWith(func(i, j *pair) int {
		if c := cmp.Compare(i.rank, j.rank); c != 0 {
			return c
		}
		return cmp.Compare(i.a, j.a)
	})

	for i := 0; i < len(runes)-1; i++ {
		if p := pairwise(i, i+1); p != nil {
			pairs.Push(p)
		}
	}

	for !pairs.Empty() {
		p, _ := pairs.Pop()

		left, right := merges[p.a], merges[p.b]
		if len(left.runes) == 0 || len(right.runes) == 0 ||
			string(left.runes)+string(right.runes) != p.value {
			// stale entry from a previous merge
			continue
		}

		merges[p.a].runes = append(left.runes, right.runes...)
		merges[p.b].runes = nil

		merges[p.a].n = right.n
		if right.n < len(merges) {
			merges[right.n].p = p.a
		}

		if p := pairwise(merges[p.a].p, p.a); p != nil {
			pairs.Push(p)
		}
		if p := pairwise(p.a, merges[p.a].n); p != nil {
			pairs.Push(p)
		}
	}

	var out []string
	for _, m := range merges {
		if len(m.runes) > 0 {
			out = append(out, string(m.runes))
		}
	}
	return out
}

// Tokenize implements Model.
func (bpe *BPE) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	// short circuit whole-segment vocabulary hits
	if bpe.vocab.Contains(text) {
		return []string{text}
	}

	var tokens []string
	for _, piece := range bpe.bpe(text) {
		if bpe.vocab.Contains(piece) {
			tokens = append(tokens, piece)
			continue
		}

		// byte fallback: out-of-vocabulary pieces become their UTF-8 bytes
		// as hex-escaped tokens
		for _, b := range []byte(piece) {
			tokens = append(tokens, fmt.Sprintf("<0x%02X>", b))
		}
	}

	logutil.Trace("bpe tokenized", "text", text, "tokens", tokens)
	return tokens
}

// TokenToID implements Model.
func (bpe *BPE) TokenToID(token string) (int32, bool) {
	if id := bpe.vocab.Encode(token); id >= 0 {
		return id, true
	}
	return 0, false
}

// IDToToken implements Model.
func (bpe *BPE) IDToToken(id int32) (string, bool) {
	return bpe.vocab.Decode(id)
}

// UnknownToken implements Model.
func (bpe *BPE) UnknownToken() (string, int32, bool) {
	return bpe.unknown, bpe.unknownID, bpe.hasUnknown
}

// FuseUnknown implements Model.
func (bpe *BPE) FuseUnknown() bool { return bpe.fuseUnknown }
