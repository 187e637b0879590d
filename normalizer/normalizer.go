// Package normalizer implements the text normalization stage of the
// pipeline. Normalizers are pure text -> text transforms, instantiated once
// from a config subtree and immutable afterward.
package normalizer

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"

	"github.com/subtext-ml/tokenizers/config"
)

// Normalizer transforms text before pre-tokenization. Implementations are
// stateless after construction and safe for concurrent use.
type Normalizer interface {
	Normalize(s string) string
}

var constructors = map[string]func(config.Config) (Normalizer, error){
	"Lowercase":      func(config.Config) (Normalizer, error) { return Lowercase{}, nil },
	"NFD":            func(config.Config) (Normalizer, error) { return Form{norm.NFD}, nil },
	"NFC":            func(config.Config) (Normalizer, error) { return Form{norm.NFC}, nil },
	"NFKD":           func(config.Config) (Normalizer, error) { return Form{norm.NFKD}, nil },
	"NFKC":           func(config.Config) (Normalizer, error) { return Form{norm.NFKC}, nil },
	"StripAccents":   func(config.Config) (Normalizer, error) { return StripAccents{}, nil },
	"Strip":          newStrip,
	"Prepend":        newPrepend,
	"Replace":        newReplace,
	"BertNormalizer": newBert,
	"Bert":           newBert,
	"Precompiled":    func(config.Config) (Normalizer, error) { return Precompiled{}, nil },
}

// Sequence recurses through New, so registering it in the map literal would
// be an initialization cycle.
func init() {
	constructors["Sequence"] = newSequence
}

// New instantiates the normalizer described by cfg. The "type" field selects
// the implementation; unknown types are a construction-time error.
func New(cfg config.Config) (Normalizer, error) {
	typ, ok := cfg.String("type")
	if !ok {
		return nil, fmt.Errorf("normalizer: config has no type field")
	}

	ctor, ok := constructors[typ]
	if !ok {
		return nil, fmt.Errorf("normalizer: unsupported type %q", typ)
	}

	return ctor(cfg)
}

// Sequence folds its children left to right.
type Sequence struct {
	children []Normalizer
}

func newSequence(cfg config.Config) (Normalizer, error) {
	items, ok := cfg.Array("normalizers")
	if !ok {
		return nil, fmt.Errorf("normalizer: Sequence has no normalizers field")
	}

	var seq Sequence
	for _, item := range items {
		child, ok := item.Dictionary()
		if !ok {
			return nil, fmt.Errorf("normalizer: Sequence child is not a dictionary")
		}

		n, err := New(child)
		if err != nil {
			return nil, err
		}
		seq.children = append(seq.children, n)
	}

	return seq, nil
}

func (seq Sequence) Normalize(s string) string {
	for _, child := range seq.children {
		s = child.Normalize(s)
	}
	return s
}

type Lowercase struct{}

func (Lowercase) Normalize(s string) string { return strings.ToLower(s) }

// Form applies one of the four standard Unicode normalization forms.
type Form struct {
	form norm.Form
}

func (f Form) Normalize(s string) string { return f.form.String(s) }

// StripAccents compatibility-decomposes then canonically recomposes. Note
// this does not remove combining marks; the Bert normalizer's accent
// stripping is the one that drops them.
type StripAccents struct{}

func (StripAccents) Normalize(s string) string {
	return norm.NFC.String(norm.NFKD.String(s))
}

// Strip trims leading and/or trailing whitespace.
type Strip struct {
	left, right bool
}

func newStrip(cfg config.Config) (Normalizer, error) {
	return Strip{
		left:  cfg.Boolean("stripLeft", true),
		right: cfg.Boolean("stripRight", true),
	}, nil
}

func (st Strip) Normalize(s string) string {
	if st.left {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
	}
	if st.right {
		s = strings.TrimRightFunc(s, unicode.IsSpace)
	}
	return s
}

// Prepend prefixes a literal string.
type Prepend struct {
	prefix string
}

func newPrepend(cfg config.Config) (Normalizer, error) {
	prefix, _ := cfg.String("prepend")
	return Prepend{prefix: prefix}, nil
}

func (p Prepend) Normalize(s string) string { return p.prefix + s }

// Replace substitutes a literal string or a regex pattern with a replacement
// template.
type Replace struct {
	literal string
	re      *regexp2.Regexp
	content string
}

func newReplace(cfg config.Config) (Normalizer, error) {
	content, _ := cfg.String("content")

	pattern, ok := cfg.Dictionary("pattern")
	if !ok {
		return nil, fmt.Errorf("normalizer: Replace has no pattern field")
	}

	if lit, ok := pattern.String("String"); ok {
		return Replace{literal: lit, content: content}, nil
	}

	if expr, ok := pattern.String("Regex"); ok {
		re, err := regexp2.Compile(expr, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("normalizer: Replace pattern: %w", err)
		}
		return Replace{re: re, content: content}, nil
	}

	return nil, fmt.Errorf("normalizer: Replace pattern has neither String nor Regex")
}

func (r Replace) Normalize(s string) string {
	if r.re != nil {
		if out, err := r.re.Replace(s, r.content, -1, -1); err == nil {
			return out
		}
		return s
	}
	return strings.ReplaceAll(s, r.literal, r.content)
}

// Bert mirrors the Bert-normalizer: clean invisible characters, pad CJK
// characters with spaces, optionally drop combining marks after canonical
// decomposition, optionally lowercase. Each step toggles independently.
type Bert struct {
	cleanText     bool
	handleChinese bool
	stripAccents  bool
	lowercase     bool
}

func newBert(cfg config.Config) (Normalizer, error) {
	lowercase := cfg.Boolean("lowercase", true)

	// strip_accents defaults to the lowercase setting unless set explicitly
	stripAccents := lowercase
	if v, ok := cfg.Get("stripAccents"); ok && !v.IsNull() {
		stripAccents = v.Boolean(stripAccents)
	}

	return Bert{
		cleanText:     cfg.Boolean("cleanText", true),
		handleChinese: cfg.Boolean("handleChineseChars", true),
		stripAccents:  stripAccents,
		lowercase:     lowercase,
	}, nil
}

func (b Bert) Normalize(s string) string {
	if b.cleanText {
		s = bertClean(s)
	}
	if b.handleChinese {
		s = padChineseChars(s)
	}
	if b.stripAccents {
		s = bertStripAccents(s)
	}
	if b.lowercase {
		s = strings.ToLower(s)
	}
	return s
}

func bertClean(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		switch {
		case r == 0 || r == 0xFFFD:
		case r == '\t' || r == '\n' || r == '\r':
			sb.WriteByte(' ')
		case unicode.In(r, unicode.Cc, unicode.Cf):
		case unicode.IsSpace(r):
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isChineseChar(r rune) bool {
	switch {
	case r >= 0x4E00 && r <= 0x9FFF,
		r >= 0x3400 && r <= 0x4DBF,
		r >= 0x20000 && r <= 0x2A6DF,
		r >= 0x2A700 && r <= 0x2B73F,
		r >= 0x2B740 && r <= 0x2B81F,
		r >= 0x2B820 && r <= 0x2CEAF,
		r >= 0xF900 && r <= 0xFAFF,
		r >= 0x2F800 && r <= 0x2FA1F:
		return true
	}
	return false
}

func padChineseChars(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if isChineseChar(r) {
			sb.WriteByte(' ')
			sb.WriteRune(r)
			sb.WriteByte(' ')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func bertStripAccents(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		// combining diacritical marks block
		if r >= 0x0300 && r <= 0x036F {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Precompiled approximates the sentencepiece precompiled_charsmap table:
// control characters are removed, a fixed set of separator codepoints
// becomes a plain space, and NFKC runs on the spans around full-width
// tildes, which are preserved as-is. Exact parity would require decoding
// the embedded binary table.
type Precompiled struct{}

const fullwidthTilde = "～"

func (Precompiled) Normalize(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	var hasTilde bool
	for _, r := range s {
		switch {
		case r >= 0x0001 && r <= 0x0008, r == 0x000B,
			r >= 0x000E && r <= 0x001F, r == 0x007F, r == 0x008F, r == 0x009F:
			// control characters removed outright
		case r == 0x0009, r == 0x000A, r == 0x000C, r == 0x000D,
			r == 0x1680, r >= 0x200B && r <= 0x200F, r == 0x2028, r == 0x2029,
			r == 0x2581, r == 0xFEFF, r == 0xFFFD:
			sb.WriteByte(' ')
		default:
			if r == 0xFF5E {
				hasTilde = true
			}
			sb.WriteRune(r)
		}
	}

	if !hasTilde {
		return norm.NFKC.String(sb.String())
	}

	// NFKC would fold the full-width tilde itself, so normalize around it
	parts := strings.Split(sb.String(), fullwidthTilde)
	for i := range parts {
		parts[i] = norm.NFKC.String(parts[i])
	}
	return strings.Join(parts, fullwidthTilde)
}
