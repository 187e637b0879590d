package pretokenizer

import "github.com/dlclark/regexp2"

// Behavior controls what happens to delimiter spans when a segment is cut.
type Behavior int

const (
	Removed Behavior = iota
	Isolated
	MergedWithPrevious
	MergedWithNext
)

// segment is a span of the input, flagged as delimiter (regex match) or
// content (the text between matches).
type segment struct {
	text  string
	delim bool
}

// scan cuts s into alternating content and delimiter segments using re.
// Empty spans are dropped.
func scan(re *regexp2.Regexp, s string) []segment {
	runes := []rune(s)

	var segs []segment
	var offset int
	for m, _ := re.FindRunesMatch(runes); m != nil; m, _ = re.FindNextMatch(m) {
		if m.Index > offset {
			segs = append(segs, segment{text: string(runes[offset:m.Index])})
		}
		if m.Length == 0 {
			// zero-width match; bail rather than loop forever
			offset = m.Index
			break
		}
		segs = append(segs, segment{text: m.String(), delim: true})
		offset = m.Index + m.Length
	}

	if offset < len(runes) {
		segs = append(segs, segment{text: string(runes[offset:])})
	}

	return segs
}

// assemble turns scanned segments into final pieces according to the
// delimiter behavior.
func assemble(segs []segment, behavior Behavior) []string {
	var out []string

	switch behavior {
	case Removed:
		for _, seg := range segs {
			if !seg.delim {
				out = append(out, seg.text)
			}
		}
	case Isolated:
		for _, seg := range segs {
			out = append(out, seg.text)
		}
	case MergedWithPrevious:
		for _, seg := range segs {
			if seg.delim && len(out) > 0 {
				out[len(out)-1] += seg.text
			} else {
				out = append(out, seg.text)
			}
		}
	case MergedWithNext:
		var pending string
		for _, seg := range segs {
			if seg.delim {
				if pending != "" {
					out = append(out, pending)
				}
				pending = seg.text
			} else {
				out = append(out, pending+seg.text)
				pending = ""
			}
		}
		if pending != "" {
			out = append(out, pending)
		}
	}

	return out
}
