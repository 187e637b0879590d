package tokenizer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/subtext-ml/tokenizers/config"
)

func mustTokenizer(t *testing.T, data, cfg map[string]any) *Tokenizer {
	t.Helper()
	dataTree, ok := config.Wrap(data).Dictionary()
	require.True(t, ok)
	cfgTree, ok := config.Wrap(cfg).Dictionary()
	require.True(t, ok)

	tok, err := New(dataTree, cfgTree)
	require.NoError(t, err)
	return tok
}

// bertFixture is a word-level WordPiece pipeline: Bert pre-tokenization and
// a WordPiece decoder that restores inter-word spaces.
func bertFixture() (map[string]any, map[string]any) {
	data := map[string]any{
		"model": map[string]any{
			"type": "WordPiece",
			"vocab": map[string]any{
				"[UNK]": 0, "Hello": 1, ",": 2, "world": 3, "!": 4,
				"un": 5, "##aff": 6, "##able": 7,
			},
			"unk_token": "[UNK]",
		},
		"pre_tokenizer": map[string]any{"type": "BertPreTokenizer"},
		"decoder":       map[string]any{"type": "WordPiece", "prefix": "##"},
	}
	cfg := map[string]any{
		"tokenizer_class":              "BertTokenizer",
		"clean_up_tokenization_spaces": true,
	}
	return data, cfg
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data, cfg := bertFixture()
	tok := mustTokenizer(t, data, cfg)

	ids, err := tok.Encode("Hello , world !", false)
	require.NoError(t, err)
	if want := []int32{1, 2, 3, 4}; !cmp.Equal(want, ids) {
		t.Fatalf("Encode() = %v, want %v", ids, want)
	}

	if got, want := tok.Decode(ids, false), "Hello, world!"; got != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestTokenizeSubwords(t *testing.T) {
	data, cfg := bertFixture()
	tok := mustTokenizer(t, data, cfg)

	want := []string{"un", "##aff", "##able"}
	if got := tok.Tokenize("unaffable"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize(unaffable) = %v, want %v", got, want)
	}
}

func addedTokenFixture() (map[string]any, map[string]any) {
	data := map[string]any{
		"model": map[string]any{
			"type":   "BPE",
			"vocab":  map[string]any{"a": 0, "b": 1},
			"merges": []any{},
		},
		"added_tokens": []any{
			map[string]any{"id": 2, "content": "<s>", "special": true},
			map[string]any{"id": 3, "content": "<pad>", "special": true, "lstrip": true, "rstrip": true},
		},
	}
	cfg := map[string]any{
		"tokenizer_class": "GPT2Tokenizer",
		"bos_token":       "<s>",
	}
	return data, cfg
}

func TestAddedTokenPriority(t *testing.T) {
	data, cfg := addedTokenFixture()
	tok := mustTokenizer(t, data, cfg)

	want := []string{"a", "<s>", "b"}
	if got := tok.Tokenize("a<s>b"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize(a<s>b) = %v, want %v", got, want)
	}

	ids, err := tok.Encode("a<s>b", false)
	require.NoError(t, err)
	if want := []int32{0, 2, 1}; !cmp.Equal(want, ids) {
		t.Errorf("Encode() = %v, want %v", ids, want)
	}
}

func TestAddedTokenWhitespaceAbsorption(t *testing.T) {
	data, cfg := addedTokenFixture()
	tok := mustTokenizer(t, data, cfg)

	// lstrip/rstrip absorb the whitespace around <pad>
	want := []string{"a", "<pad>", "b"}
	if got := tok.Tokenize("a  <pad>  b"); !cmp.Equal(want, got) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestDecodeSkipSpecialTokens(t *testing.T) {
	data, cfg := addedTokenFixture()
	tok := mustTokenizer(t, data, cfg)

	if got, want := tok.Decode([]int32{2, 0, 1, 2}, true), "ab"; got != want {
		t.Errorf("Decode(skip) = %q, want %q", got, want)
	}
	if got, want := tok.Decode([]int32{2, 0, 1}, false), "<s>ab"; got != want {
		t.Errorf("Decode(keep) = %q, want %q", got, want)
	}
}

func TestEncodeWithTemplateProcessing(t *testing.T) {
	data, cfg := addedTokenFixture()
	data["post_processor"] = map[string]any{
		"type": "TemplateProcessing",
		"single": []any{
			map[string]any{"SpecialToken": map[string]any{"id": "<s>", "type_id": 0}},
			map[string]any{"Sequence": map[string]any{"id": "A", "type_id": 0}},
		},
	}
	tok := mustTokenizer(t, data, cfg)

	ids, err := tok.Encode("ab", true)
	require.NoError(t, err)
	if want := []int32{2, 0, 1}; !cmp.Equal(want, ids) {
		t.Errorf("Encode(addSpecial) = %v, want %v", ids, want)
	}

	ids, err = tok.Encode("ab", false)
	require.NoError(t, err)
	if want := []int32{0, 1}; !cmp.Equal(want, ids) {
		t.Errorf("Encode(no special) = %v, want %v", ids, want)
	}
}

func TestEncodeBOSFallback(t *testing.T) {
	data, cfg := addedTokenFixture()
	cfg["add_bos_token"] = true

	tok := mustTokenizer(t, data, cfg)
	ids, err := tok.Encode("ab", true)
	require.NoError(t, err)
	if want := []int32{2, 0, 1}; !cmp.Equal(want, ids) {
		t.Errorf("Encode() = %v, want %v", ids, want)
	}
}

func TestMetaspacePipeline(t *testing.T) {
	data := map[string]any{
		"model": map[string]any{
			"type": "Unigram",
			"vocab": []any{
				[]any{"<unk>", 0.0},
				[]any{"▁Hey", -1.0},
				[]any{"▁friend", -1.0},
			},
			"unk_id": 0,
		},
		"pre_tokenizer": map[string]any{
			"type":           "Metaspace",
			"replacement":    "▁",
			"prepend_scheme": "always",
		},
		"decoder": map[string]any{
			"type":             "Metaspace",
			"replacement":      "▁",
			"add_prefix_space": true,
		},
	}
	cfg := map[string]any{"tokenizer_class": "LlamaTokenizer"}
	tok := mustTokenizer(t, data, cfg)

	want := []string{"▁Hey", "▁friend"}
	if got := tok.Tokenize("Hey friend"); !cmp.Equal(want, got) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}

	ids, err := tok.Encode("Hey friend", false)
	require.NoError(t, err)
	if got, want := tok.Decode(ids, false), "Hey friend"; got != want {
		t.Errorf("Decode() = %q, want %q", got, want)
	}
}

func TestEncodeFusesUnknown(t *testing.T) {
	data := map[string]any{
		"model": map[string]any{
			"type": "Unigram",
			"vocab": []any{
				[]any{"<unk>", -5.0},
				[]any{"a", -1.0},
			},
			"unk_id": 0,
		},
	}
	cfg := map[string]any{"tokenizer_class": "LlamaTokenizer"}
	tok := mustTokenizer(t, data, cfg)

	// a run of unmatched runes yields one unknown id, not one per rune
	ids, err := tok.Encode("aqq", false)
	require.NoError(t, err)
	if want := []int32{1, 0}; !cmp.Equal(want, ids) {
		t.Errorf("Encode(aqq) = %v, want %v", ids, want)
	}

	// unknown words split apart by pre-tokenization fuse too
	data["pre_tokenizer"] = map[string]any{"type": "Whitespace"}
	tok = mustTokenizer(t, data, cfg)

	ids, err = tok.Encode("qq zz", false)
	require.NoError(t, err)
	if want := []int32{0}; !cmp.Equal(want, ids) {
		t.Errorf("Encode(qq zz) = %v, want %v", ids, want)
	}
}

func TestLoadErrors(t *testing.T) {
	data, cfg := addedTokenFixture()

	t.Run("missing class", func(t *testing.T) {
		bare := map[string]any{}
		_, err := New(mustDict(t, data), mustDict(t, bare))
		require.ErrorIs(t, err, ErrMissingTokenizerClass)
	})

	t.Run("unsupported class", func(t *testing.T) {
		bad := map[string]any{"tokenizer_class": "MadeUpTokenizer"}
		_, err := New(mustDict(t, data), mustDict(t, bad))
		require.ErrorIs(t, err, ErrUnsupportedTokenizer)
	})

	t.Run("fast suffix accepted", func(t *testing.T) {
		fast := map[string]any{"tokenizer_class": "GPT2TokenizerFast"}
		_, err := New(mustDict(t, data), mustDict(t, fast))
		require.NoError(t, err)
	})

	t.Run("add_bos without bos_token", func(t *testing.T) {
		mismatched := map[string]any{
			"tokenizer_class": "GPT2Tokenizer",
			"add_bos_token":   true,
		}
		_, err := New(mustDict(t, data), mustDict(t, mismatched))
		require.ErrorIs(t, err, ErrMismatchedConfig)
	})

	t.Run("missing model", func(t *testing.T) {
		_, err := New(mustDict(t, map[string]any{}), mustDict(t, cfg))
		require.ErrorIs(t, err, ErrMissingVocab)
	})
}

func mustDict(t *testing.T, doc map[string]any) config.Config {
	t.Helper()
	cfg, ok := config.Wrap(doc).Dictionary()
	require.True(t, ok)
	return cfg
}

func TestFromBytes(t *testing.T) {
	data := []byte(`{
		"model": {"type": "BPE", "vocab": {"hi": 0}, "merges": []},
		"added_tokens": []
	}`)
	cfg := []byte(`{"tokenizer_class": "GPT2Tokenizer"}`)

	tok, err := FromBytes(data, cfg)
	require.NoError(t, err)

	ids, err := tok.Encode("hi", false)
	require.NoError(t, err)
	if want := []int32{0}; !cmp.Equal(want, ids) {
		t.Errorf("Encode(hi) = %v, want %v", ids, want)
	}
}

type fixedRenderer struct {
	out  string
	err  error
	last map[string]any
}

func (f *fixedRenderer) Render(_ string, ctx map[string]any) (string, error) {
	f.last = ctx
	return f.out, f.err
}

func TestApplyChatTemplate(t *testing.T) {
	data, cfg := addedTokenFixture()
	cfg["chat_template"] = "{{ messages }}"

	renderer := &fixedRenderer{out: "a<s>b"}
	tok := mustTokenizer(t, data, cfg).WithRenderer(renderer)

	ids, err := tok.ApplyChatTemplate(ChatTemplateOptions{
		Messages:            []map[string]any{{"role": "user", "content": "hi"}},
		AddGenerationPrompt: true,
	})
	require.NoError(t, err)
	if want := []int32{0, 2, 1}; !cmp.Equal(want, ids) {
		t.Errorf("ApplyChatTemplate() = %v, want %v", ids, want)
	}

	// special token strings and flags are visible to the template
	require.Equal(t, "<s>", renderer.last["bos_token"])
	require.Equal(t, true, renderer.last["add_generation_prompt"])
}

func TestApplyChatTemplateTruncation(t *testing.T) {
	data, cfg := addedTokenFixture()
	cfg["chat_template"] = "irrelevant"

	tok := mustTokenizer(t, data, cfg).WithRenderer(&fixedRenderer{out: "abab"})

	_, err := tok.ApplyChatTemplate(ChatTemplateOptions{MaxLength: 2})
	require.ErrorIs(t, err, ErrTooLong)

	ids, err := tok.ApplyChatTemplate(ChatTemplateOptions{MaxLength: 2, Truncate: true})
	require.NoError(t, err)
	if want := []int32{0, 1}; !cmp.Equal(want, ids) {
		t.Errorf("truncated ids = %v, want %v", ids, want)
	}
}

func TestApplyChatTemplateNoTemplate(t *testing.T) {
	data, cfg := addedTokenFixture()
	tok := mustTokenizer(t, data, cfg)
	_, err := tok.ApplyChatTemplate(ChatTemplateOptions{})
	require.True(t, errors.Is(err, ErrNoChatTemplate))
}
