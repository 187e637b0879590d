package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/subtext-ml/tokenizers/config"
)

func unigramFromPairs(t *testing.T, pairs []any, unkID int) *Unigram {
	t.Helper()
	cfg, ok := config.Wrap(map[string]any{
		"type":   "Unigram",
		"vocab":  pairs,
		"unk_id": unkID,
	}).Dictionary()
	if !ok {
		t.Fatal("not a dictionary")
	}
	u, err := NewUnigram(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestUnigramPicksBestSegmentation(t *testing.T) {
	u := unigramFromPairs(t, []any{
		[]any{"<unk>", 0.0},
		[]any{"a", -1.0},
		[]any{"b", -1.0},
		[]any{"ab", -1.5},
	}, 0)

	// "ab" at -1.5 beats "a"+"b" at -2.0
	want := []string{"ab"}
	if got := u.Tokenize("ab"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize(ab) = %v, want %v", got, want)
	}
}

func TestUnigramUnknownNodes(t *testing.T) {
	u := unigramFromPairs(t, []any{
		[]any{"<unk>", 0.0},
		[]any{"a", -1.0},
	}, 0)

	// z has no vocabulary entry, so a synthetic unknown node covers it
	want := []string{"a", "z", "a"}
	if got := u.Tokenize("aza"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize(aza) = %v, want %v", got, want)
	}
}

func TestUnigramFusesUnknownRuns(t *testing.T) {
	u := unigramFromPairs(t, []any{
		[]any{"<unk>", -5.0},
		[]any{"a", -1.0},
	}, 0)

	// consecutive unknown nodes collapse into one surface span
	want := []string{"a", "qq"}
	if got := u.Tokenize("aqq"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize(aqq) = %v, want %v", got, want)
	}

	want = []string{"qq", "a", "zz"}
	if got := u.Tokenize("qqazz"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize(qqazz) = %v, want %v", got, want)
	}
}

func TestUnigramRequiresUnkID(t *testing.T) {
	cfg, _ := config.Wrap(map[string]any{
		"type":  "Unigram",
		"vocab": []any{[]any{"a", -1.0}},
	}).Dictionary()
	if _, err := NewUnigram(cfg, nil); err == nil {
		t.Fatal("expected error for missing unk_id")
	}
}

// bruteForceBest enumerates every decomposition of text into vocabulary
// tokens and returns the best achievable total score.
func bruteForceBest(text string, scores map[string]float64) (float64, bool) {
	if text == "" {
		return 0, true
	}

	best, found := 0.0, false
	runes := []rune(text)
	for i := 1; i <= len(runes); i++ {
		prefix := string(runes[:i])
		score, ok := scores[prefix]
		if !ok {
			continue
		}
		rest, ok := bruteForceBest(string(runes[i:]), scores)
		if !ok {
			continue
		}
		if !found || score+rest > best {
			best, found = score+rest, true
		}
	}

	return best, found
}

func TestUnigramViterbiOptimality(t *testing.T) {
	scores := map[string]float64{
		"a": -1.2, "b": -2.1, "ab": -2.9, "ba": -3.5, "abb": -4.0,
	}
	pairs := []any{[]any{"<unk>", 0.0}}
	for token, score := range scores {
		pairs = append(pairs, []any{token, score})
	}
	u := unigramFromPairs(t, pairs, 0)

	inputs := []string{"a", "ab", "ba", "abb", "abab", "babab", "aabbab"}
	for _, text := range inputs {
		tokens := u.Tokenize(text)

		var total float64
		var joined string
		for _, token := range tokens {
			score, ok := scores[token]
			if !ok {
				t.Fatalf("Tokenize(%q) emitted out-of-vocab token %q", text, token)
			}
			total += score
			joined += token
		}
		if joined != text {
			t.Fatalf("Tokenize(%q) does not cover the input: %v", text, tokens)
		}

		want, ok := bruteForceBest(text, scores)
		if !ok {
			t.Fatalf("no brute-force decomposition for %q", text)
		}
		if total != want {
			t.Errorf("Tokenize(%q) total score %v, brute force best %v (%v)",
				text, total, want, tokens)
		}
	}
}

func TestUnigramIDMapping(t *testing.T) {
	u := unigramFromPairs(t, []any{
		[]any{"<unk>", 0.0},
		[]any{"hi", -1.0},
	}, 0)

	if id, ok := u.TokenToID("hi"); !ok || id != 1 {
		t.Errorf("TokenToID(hi) = %d, %v", id, ok)
	}
	if token, ok := u.IDToToken(1); !ok || token != "hi" {
		t.Errorf("IDToToken(1) = %q, %v", token, ok)
	}
	if unk, id, ok := u.UnknownToken(); !ok || unk != "<unk>" || id != 0 {
		t.Errorf("UnknownToken() = %q, %d, %v", unk, id, ok)
	}
}
