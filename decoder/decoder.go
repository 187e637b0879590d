// Package decoder turns model tokens back into text fragments. Each decoder
// maps a token list to a token list; the orchestrator concatenates the final
// fragments into the decoded string.
package decoder

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dlclark/regexp2"

	"github.com/subtext-ml/tokenizers/config"
	"github.com/subtext-ml/tokenizers/pretokenizer"
)

// Decoder rewrites tokens into text fragments.
type Decoder interface {
	Decode(tokens []string) []string
}

var constructors = map[string]func(config.Config, map[string]bool) (Decoder, error){
	"WordPiece":    newWordPiece,
	"ByteLevel":    newByteLevel,
	"Metaspace":    newMetaspace,
	"Replace":      newReplace,
	"ByteFallback": func(config.Config, map[string]bool) (Decoder, error) { return ByteFallback{}, nil },
	"Fuse":         func(config.Config, map[string]bool) (Decoder, error) { return Fuse{}, nil },
	"Strip":        newStrip,
}

// Sequence recurses through New, so registering it in the map literal would
// be an initialization cycle.
func init() {
	constructors["Sequence"] = newSequence
}

// New instantiates the decoder described by cfg. added is the set of added
// token strings; the byte-level decoder passes them through untouched instead
// of running them through the byte table.
func New(cfg config.Config, added map[string]bool) (Decoder, error) {
	typ, ok := cfg.String("type")
	if !ok {
		return nil, fmt.Errorf("decoder: config has no type field")
	}

	ctor, ok := constructors[typ]
	if !ok {
		return nil, fmt.Errorf("decoder: unsupported type %q", typ)
	}

	return ctor(cfg, added)
}

// Sequence applies its children in order, each consuming the previous
// child's output.
type Sequence struct {
	children []Decoder
}

func newSequence(cfg config.Config, added map[string]bool) (Decoder, error) {
	items, ok := cfg.Array("decoders")
	if !ok {
		return nil, fmt.Errorf("decoder: Sequence has no decoders field")
	}

	s := Sequence{children: make([]Decoder, 0, len(items))}
	for _, item := range items {
		child, ok := item.Dictionary()
		if !ok {
			return nil, fmt.Errorf("decoder: Sequence child is not a dictionary")
		}
		d, err := New(child, added)
		if err != nil {
			return nil, err
		}
		s.children = append(s.children, d)
	}
	return s, nil
}

func (s Sequence) Decode(tokens []string) []string {
	for _, child := range s.children {
		tokens = child.Decode(tokens)
	}
	return tokens
}

// WordPiece strips the continuation prefix and restores the space between
// words.
type WordPiece struct {
	prefix string
}

func newWordPiece(cfg config.Config, _ map[string]bool) (Decoder, error) {
	prefix, ok := cfg.String("prefix")
	if !ok {
		prefix = "##"
	}
	return WordPiece{prefix: prefix}, nil
}

func (w WordPiece) Decode(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		switch {
		case i == 0:
			out[i] = token
		case strings.HasPrefix(token, w.prefix):
			out[i] = strings.TrimPrefix(token, w.prefix)
		default:
			out[i] = " " + token
		}
	}
	return out
}

// ByteLevel reverses the byte-to-glyph table. Runs of ordinary tokens are
// joined and decoded as one UTF-8 unit so multi-byte characters split across
// tokens reassemble; added tokens break the run and pass through verbatim.
type ByteLevel struct {
	added map[string]bool
}

func newByteLevel(_ config.Config, added map[string]bool) (Decoder, error) {
	return ByteLevel{added: added}, nil
}

func (b ByteLevel) Decode(tokens []string) []string {
	var out []string
	var run strings.Builder

	flush := func() {
		if run.Len() > 0 {
			out = append(out, string(pretokenizer.DecodeBytes(run.String())))
			run.Reset()
		}
	}

	for _, token := range tokens {
		if b.added[token] {
			flush()
			out = append(out, token)
			continue
		}
		run.WriteString(token)
	}
	flush()
	return out
}

// Metaspace maps the replacement glyph back to spaces.
type Metaspace struct {
	replacement    string
	addPrefixSpace bool
}

func newMetaspace(cfg config.Config, _ map[string]bool) (Decoder, error) {
	replacement, ok := cfg.String("replacement")
	if !ok {
		replacement = "▁"
	}
	return Metaspace{
		replacement:    replacement,
		addPrefixSpace: cfg.Boolean("addPrefixSpace", true),
	}, nil
}

func (m Metaspace) Decode(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		token = strings.ReplaceAll(token, m.replacement, " ")
		if i == 0 && m.addPrefixSpace {
			token = strings.TrimPrefix(token, " ")
		}
		out[i] = token
	}
	return out
}

// Replace substitutes a literal string or regex match inside every token.
type Replace struct {
	literal string
	re      *regexp2.Regexp
	content string
}

func newReplace(cfg config.Config, _ map[string]bool) (Decoder, error) {
	content, _ := cfg.String("content")

	pattern, ok := cfg.Dictionary("pattern")
	if !ok {
		return nil, fmt.Errorf("decoder: Replace has no pattern field")
	}

	if lit, ok := pattern.String("String"); ok {
		return Replace{literal: lit, content: content}, nil
	}

	if expr, ok := pattern.String("Regex"); ok {
		re, err := regexp2.Compile(expr, regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("decoder: Replace pattern: %w", err)
		}
		return Replace{re: re, content: content}, nil
	}

	return nil, fmt.Errorf("decoder: Replace pattern has neither String nor Regex")
}

func (r Replace) Decode(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		if r.re != nil {
			if s, err := r.re.Replace(token, r.content, -1, -1); err == nil {
				token = s
			}
		} else {
			token = strings.ReplaceAll(token, r.literal, r.content)
		}
		out[i] = token
	}
	return out
}

// ByteFallback folds consecutive <0xXX> byte tokens back into UTF-8 text.
// Runs that do not form valid UTF-8 decode to one replacement character per
// byte.
type ByteFallback struct{}

func (ByteFallback) Decode(tokens []string) []string {
	var out []string
	var pending []byte

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if utf8.Valid(pending) {
			out = append(out, string(pending))
		} else {
			for range pending {
				out = append(out, "�")
			}
		}
		pending = pending[:0]
	}

	for _, token := range tokens {
		if b, ok := byteToken(token); ok {
			pending = append(pending, b)
			continue
		}
		flush()
		out = append(out, token)
	}
	flush()
	return out
}

func byteToken(token string) (byte, bool) {
	if len(token) != 6 || !strings.HasPrefix(token, "<0x") || token[5] != '>' {
		return 0, false
	}
	n, err := strconv.ParseUint(token[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}

// Fuse concatenates every token into a single fragment.
type Fuse struct{}

func (Fuse) Decode(tokens []string) []string {
	if len(tokens) == 0 {
		return tokens
	}
	return []string{strings.Join(tokens, "")}
}

// Strip removes up to start leading and stop trailing copies of a character
// from each token.
type Strip struct {
	content     string
	start, stop int
}

func newStrip(cfg config.Config, _ map[string]bool) (Decoder, error) {
	content, ok := cfg.String("content")
	if !ok {
		return nil, fmt.Errorf("decoder: Strip has no content field")
	}
	start, _ := cfg.Integer("start")
	stop, _ := cfg.Integer("stop")
	return Strip{content: content, start: start, stop: stop}, nil
}

func (s Strip) Decode(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		for n := 0; n < s.start && strings.HasPrefix(token, s.content); n++ {
			token = token[len(s.content):]
		}
		for n := 0; n < s.stop && strings.HasSuffix(token, s.content); n++ {
			token = token[:len(token)-len(s.content)]
		}
		out[i] = token
	}
	return out
}
