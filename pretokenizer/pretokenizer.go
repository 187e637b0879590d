// Package pretokenizer implements the pre-tokenization stage: normalized
// text is cut into word-level segments before the subword model runs. All
// variants are instantiated from a config subtree and immutable afterward.
package pretokenizer

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/subtext-ml/tokenizers/config"
)

// Options carries per-call flags through the graph. FirstSection marks the
// first pre-tokenized section of the input; the Metaspace prepend scheme
// "first" keys off it. Sequence passes the same options to every child, so
// "first" only approximates true section boundaries, matching the reference
// behavior.
type Options struct {
	FirstSection bool
}

// PreTokenizer splits one segment into smaller segments. Implementations
// are stateless after construction and safe for concurrent use.
type PreTokenizer interface {
	PreTokenize(s string, opts Options) []string
}

const punctuationClass = `\p{P}\x21-\x2F\x3A-\x40\x5B-\x60\x7B-\x7E`

var constructors = map[string]func(config.Config) (PreTokenizer, error){
	"Whitespace":       func(config.Config) (PreTokenizer, error) { return newMatcher(`\S+`) },
	"WhitespaceSplit":  func(config.Config) (PreTokenizer, error) { return newMatcher(`\S+`) },
	"Punctuation":      newPunctuation,
	"BertPreTokenizer": newBertPre,
	"Digits":           newDigits,
	"Split":            newSplit,
	"Metaspace":        newMetaspace,
	"ByteLevel":        newByteLevel,
}

// Sequence recurses through New, so registering it in the map literal would
// be an initialization cycle.
func init() {
	constructors["Sequence"] = newSequence
}

// New instantiates the pre-tokenizer described by cfg. Unknown type strings
// are a construction-time error.
func New(cfg config.Config) (PreTokenizer, error) {
	typ, ok := cfg.String("type")
	if !ok {
		return nil, fmt.Errorf("pretokenizer: config has no type field")
	}

	ctor, ok := constructors[typ]
	if !ok {
		return nil, fmt.Errorf("pretokenizer: unsupported type %q", typ)
	}

	return ctor(cfg)
}

// Sequence threads the current segment list through each child; every child
// re-splits every segment produced so far.
type Sequence struct {
	children []PreTokenizer
}

func newSequence(cfg config.Config) (PreTokenizer, error) {
	items, ok := cfg.Array("pretokenizers")
	if !ok {
		return nil, fmt.Errorf("pretokenizer: Sequence has no pretokenizers field")
	}

	var seq Sequence
	for _, item := range items {
		child, ok := item.Dictionary()
		if !ok {
			return nil, fmt.Errorf("pretokenizer: Sequence child is not a dictionary")
		}

		pt, err := New(child)
		if err != nil {
			return nil, err
		}
		seq.children = append(seq.children, pt)
	}

	return seq, nil
}

func (seq Sequence) PreTokenize(s string, opts Options) []string {
	parts := []string{s}
	for _, child := range seq.children {
		var next []string
		for _, part := range parts {
			next = append(next, child.PreTokenize(part, opts)...)
		}
		parts = next
	}
	return parts
}

// matcher keeps regex matches and discards everything between them.
type matcher struct {
	re *regexp2.Regexp
}

func newMatcher(pattern string) (PreTokenizer, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("pretokenizer: %w", err)
	}
	return matcher{re: re}, nil
}

func (m matcher) PreTokenize(s string, _ Options) []string {
	var out []string
	for _, seg := range scan(m.re, s) {
		if seg.delim {
			out = append(out, seg.text)
		}
	}
	return out
}

func newPunctuation(config.Config) (PreTokenizer, error) {
	// words or punctuation runs; whitespace lands inside the word class
	return newMatcher(`[^` + punctuationClass + `]+|[` + punctuationClass + `]+`)
}

func newBertPre(config.Config) (PreTokenizer, error) {
	// words without whitespace, or a single punctuation character
	return newMatcher(`[^\s` + punctuationClass + `]+|[` + punctuationClass + `]`)
}

type digits struct {
	re *regexp2.Regexp
}

func newDigits(cfg config.Config) (PreTokenizer, error) {
	pattern := `\p{N}+`
	if cfg.Boolean("individualDigits", false) {
		pattern = `\p{N}`
	}

	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("pretokenizer: Digits: %w", err)
	}
	return digits{re: re}, nil
}

func (d digits) PreTokenize(s string, _ Options) []string {
	return assemble(scan(d.re, s), Isolated)
}

// Split cuts on a literal string or regex pattern. The invert flag swaps
// which spans count as delimiters.
type Split struct {
	re       *regexp2.Regexp
	invert   bool
	behavior Behavior
}

func newSplit(cfg config.Config) (PreTokenizer, error) {
	pattern, ok := cfg.Dictionary("pattern")
	if !ok {
		return nil, fmt.Errorf("pretokenizer: Split has no pattern field")
	}

	var expr string
	if lit, ok := pattern.String("String"); ok {
		expr = regexp2.Escape(lit)
	} else if re, ok := pattern.String("Regex"); ok {
		expr = re
	} else {
		return nil, fmt.Errorf("pretokenizer: Split pattern has neither String nor Regex")
	}

	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("pretokenizer: Split pattern: %w", err)
	}

	behavior := Isolated
	if name, ok := cfg.String("behavior"); ok {
		behavior, err = parseBehavior(name)
		if err != nil {
			return nil, err
		}
	}

	return Split{
		re:       re,
		invert:   cfg.Boolean("invert", false),
		behavior: behavior,
	}, nil
}

func (sp Split) PreTokenize(s string, _ Options) []string {
	segs := scan(sp.re, s)
	if sp.invert {
		for i := range segs {
			segs[i].delim = !segs[i].delim
		}
	}
	return assemble(segs, sp.behavior)
}

// Metaspace replaces spaces with a replacement glyph, optionally prepends
// the glyph, then splits so the glyph stays attached to the piece that
// follows it.
type Metaspace struct {
	replacement    string
	addPrefixSpace bool
	prependScheme  string
	re             *regexp2.Regexp
}

func newMetaspace(cfg config.Config) (PreTokenizer, error) {
	replacement := "▁"
	if r, ok := cfg.String("replacement"); ok {
		replacement = r
	}

	scheme := "always"
	if s, ok := cfg.String("prependScheme"); ok {
		scheme = s
	}
	switch scheme {
	case "always", "first", "never":
	default:
		return nil, fmt.Errorf("pretokenizer: Metaspace prepend scheme %q", scheme)
	}

	re, err := regexp2.Compile(regexp2.Escape(replacement), regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("pretokenizer: Metaspace replacement: %w", err)
	}

	return Metaspace{
		replacement:    replacement,
		addPrefixSpace: cfg.Boolean("addPrefixSpace", true),
		prependScheme:  scheme,
		re:             re,
	}, nil
}

func (m Metaspace) PreTokenize(s string, opts Options) []string {
	s = strings.ReplaceAll(s, " ", m.replacement)

	prepend := m.prependScheme == "always" ||
		(m.prependScheme == "first" && opts.FirstSection)
	if prepend && m.addPrefixSpace && !strings.HasPrefix(s, m.replacement) {
		s = m.replacement + s
	}

	return assemble(scan(m.re, s), MergedWithNext)
}

func parseBehavior(name string) (Behavior, error) {
	switch name {
	case "Removed", "removed":
		return Removed, nil
	case "Isolated", "isolated":
		return Isolated, nil
	case "MergedWithPrevious", "merged_with_previous":
		return MergedWithPrevious, nil
	case "MergedWithNext", "merged_with_next":
		return MergedWithNext, nil
	}
	return 0, fmt.Errorf("pretokenizer: unsupported delimiter behavior %q", name)
}
