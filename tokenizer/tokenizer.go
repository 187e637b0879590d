// Package tokenizer composes the pipeline stages into a loaded tokenizer:
// added-token splitting, normalization, pre-tokenization, the subword model,
// post-processing, and decoding.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/subtext-ml/tokenizers/chat"
	"github.com/subtext-ml/tokenizers/config"
	"github.com/subtext-ml/tokenizers/decoder"
	"github.com/subtext-ml/tokenizers/logutil"
	"github.com/subtext-ml/tokenizers/model"
	"github.com/subtext-ml/tokenizers/normalizer"
	"github.com/subtext-ml/tokenizers/postprocessor"
	"github.com/subtext-ml/tokenizers/pretokenizer"
)

// Tokenizer is a fully constructed pipeline. All fields are immutable after
// construction, so a Tokenizer is safe for concurrent use.
type Tokenizer struct {
	model model.Model

	normalizer normalizer.Normalizer
	pretok     pretokenizer.PreTokenizer
	post       postprocessor.PostProcessor
	decoder    decoder.Decoder

	added    []addedToken
	splitter *addedSplitter

	// special token strings by config key ("bos_token" etc.) and the id set
	// dropped by Decode(skipSpecialTokens)
	specialTokens map[string]string
	specialIDs    map[int32]bool

	bosToken, eosToken string
	addBOS, addEOS     bool

	cleanup        bool
	chatTemplate   config.Value
	modelMaxLength int

	renderer chat.Renderer
}

// WithRenderer replaces the chat template renderer. The default is the
// gonja-backed chat.Jinja.
func (t *Tokenizer) WithRenderer(r chat.Renderer) *Tokenizer {
	t.renderer = r
	return t
}

// Tokenize splits text into token strings. Added tokens are extracted first
// and emitted verbatim; the remaining sections run through normalize,
// pre-tokenize, and the model.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string

	first := true
	for _, sec := range t.split(text) {
		if sec.added != nil {
			tokens = append(tokens, sec.added.content)
			first = false
			continue
		}

		s := sec.text
		if t.normalizer != nil {
			s = t.normalizer.Normalize(s)
		}

		words := []string{s}
		if t.pretok != nil {
			words = t.pretok.PreTokenize(s, pretokenizer.Options{FirstSection: first})
		}
		for _, word := range words {
			tokens = append(tokens, t.model.Tokenize(word)...)
		}
		first = false
	}

	if t.model.FuseUnknown() {
		tokens = t.fuseUnknown(tokens)
	}

	logutil.Trace("tokenized", "text", text, "tokens", tokens)
	return tokens
}

// fuseUnknown collapses consecutive tokens that resolve to the unknown id
// into one occurrence. The model already fuses within a word; this catches
// runs that span pre-token boundaries. Unknown tokens carry their surface
// text, so the comparison goes through the id, not the vocab string.
func (t *Tokenizer) fuseUnknown(tokens []string) []string {
	unknownToken, unknownID, ok := t.model.UnknownToken()
	if !ok {
		return tokens
	}

	out := tokens[:0]
	prevUnknown := false
	for _, token := range tokens {
		id, found := t.model.TokenToID(token)
		unknown := !found || id == unknownID
		if unknown && prevUnknown {
			// surfaces concatenate; the literal unknown string deduplicates
			if token != unknownToken {
				out[len(out)-1] += token
			}
			continue
		}
		out = append(out, token)
		prevUnknown = unknown
	}
	return out
}

// Encode tokenizes text and maps the post-processed tokens to ids.
func (t *Tokenizer) Encode(text string, addSpecialTokens bool) ([]int32, error) {
	return t.encode(t.Tokenize(text), nil, addSpecialTokens)
}

// EncodePair encodes a two-sequence input, e.g. for sentence-pair
// classification templates.
func (t *Tokenizer) EncodePair(text, pair string, addSpecialTokens bool) ([]int32, error) {
	return t.encode(t.Tokenize(text), t.Tokenize(pair), addSpecialTokens)
}

func (t *Tokenizer) encode(tokens, pair []string, addSpecialTokens bool) ([]int32, error) {
	switch {
	case t.post != nil:
		tokens = t.post.Process(tokens, pair, addSpecialTokens)
	case len(pair) > 0:
		tokens = append(tokens, pair...)
		fallthrough
	default:
		if addSpecialTokens {
			if t.addBOS && t.bosToken != "" {
				tokens = append([]string{t.bosToken}, tokens...)
			}
			if t.addEOS && t.eosToken != "" {
				tokens = append(tokens, t.eosToken)
			}
		}
	}

	ids := make([]int32, len(tokens))
	for i, token := range tokens {
		id, ok := t.model.TokenToID(token)
		if !ok {
			_, unknownID, hasUnknown := t.model.UnknownToken()
			if !hasUnknown {
				return nil, fmt.Errorf("%w: token %q has no id and no unknown token is configured", ErrMismatchedConfig, token)
			}
			id = unknownID
		}
		ids[i] = id
	}
	return ids, nil
}

// Decode maps ids back to text: resolve tokens, run the decoder graph, join,
// and optionally clean up spacing before punctuation.
func (t *Tokenizer) Decode(ids []int32, skipSpecialTokens bool) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if skipSpecialTokens && t.specialIDs[id] {
			continue
		}
		if token, ok := t.model.IDToToken(id); ok {
			tokens = append(tokens, token)
		}
	}

	if t.decoder != nil {
		tokens = t.decoder.Decode(tokens)
	}

	text := strings.Join(tokens, "")
	if t.cleanup {
		text = cleanupReplacer.Replace(text)
	}
	return text
}

// cleanupReplacer undoes the space a decoder inserts before punctuation and
// contractions.
var cleanupReplacer = strings.NewReplacer(
	" .", ".",
	" ?", "?",
	" !", "!",
	" ,", ",",
	" ' ", "'",
	" n't", "n't",
	" 'm", "'m",
	" 's", "'s",
	" 've", "'ve",
	" 're", "'re",
)
