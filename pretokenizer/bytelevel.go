package pretokenizer

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/subtext-ml/tokenizers/config"
)

// byteLevelPattern is the GPT-2 chunking regex: contractions, letter runs,
// digit runs, punctuation runs, then whitespace, in that priority order.
const byteLevelPattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// byteToRune maps every byte to a printable codepoint. Bytes that are
// already printable map to themselves; the rest shift into the U+0100 range.
var byteToRune [256]rune

var runeToByte map[rune]byte

func init() {
	runeToByte = make(map[rune]byte, 256)
	for b := 0; b < 256; b++ {
		r := rune(b)
		switch {
		case r == 0x00ad:
			r = 0x0143
		case r <= 0x0020:
			r = r + 0x0100
		case r >= 0x007f && r <= 0x00a0:
			r = r + 0x00a2
		}
		byteToRune[b] = r
		runeToByte[r] = byte(b)
	}
}

// EncodeBytes maps the UTF-8 bytes of s through the byte-to-rune table.
func EncodeBytes(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, b := range []byte(s) {
		sb.WriteRune(byteToRune[b])
	}
	return sb.String()
}

// DecodeRune inverts the byte-level table for a single rune.
func DecodeRune(r rune) (byte, bool) {
	b, ok := runeToByte[r]
	return b, ok
}

// DecodeBytes inverts EncodeBytes. Runes outside the table pass through as
// their own UTF-8 bytes.
func DecodeBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
		} else {
			out = append(out, []byte(string(r))...)
		}
	}
	return out
}

// ByteLevel splits text with the GPT-2 regex and rewrites each chunk's
// bytes into printable codepoints.
type ByteLevel struct {
	addPrefixSpace bool
	re             *regexp2.Regexp
}

func newByteLevel(cfg config.Config) (PreTokenizer, error) {
	re, err := regexp2.Compile(byteLevelPattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("pretokenizer: ByteLevel: %w", err)
	}

	return ByteLevel{
		addPrefixSpace: cfg.Boolean("addPrefixSpace", true),
		re:             re,
	}, nil
}

func (bl ByteLevel) PreTokenize(s string, _ Options) []string {
	if bl.addPrefixSpace && !strings.HasPrefix(s, " ") {
		s = " " + s
	}

	var out []string
	for _, seg := range scan(bl.re, s) {
		if seg.delim {
			out = append(out, EncodeBytes(seg.text))
		}
	}
	return out
}
