package tokenizer

import (
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// addedToken is one added_tokens entry. Added tokens bypass normalization
// and pre-tokenization and are matched verbatim; lstrip/rstrip absorb the
// whitespace adjacent to a match.
type addedToken struct {
	id      int32
	content string
	special bool
	lstrip  bool
	rstrip  bool
}

// section is one piece of the input after added-token splitting: either an
// added-token hit or a run of ordinary text.
type section struct {
	text  string
	added *addedToken
}

// addedSplitter finds every added-token occurrence in a single pass. The
// automaton is built once at load time and reused for every call; leftmost-
// longest matching keeps a longer token from losing to one of its prefixes.
type addedSplitter struct {
	automaton ahocorasick.AhoCorasick
	tokens    []addedToken
}

func newAddedSplitter(tokens []addedToken) *addedSplitter {
	patterns := make([]string, len(tokens))
	for i, token := range tokens {
		patterns[i] = token.content
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		MatchKind: ahocorasick.LeftMostLongestMatch,
		DFA:       true,
	})

	return &addedSplitter{
		automaton: builder.Build(patterns),
		tokens:    tokens,
	}
}

const absorbable = " \t\n\r"

// split cuts s into sections around added-token matches.
func (a *addedSplitter) split(s string) []section {
	var sections []section

	prev := 0
	for _, match := range a.automaton.FindAll(s) {
		token := &a.tokens[match.Pattern()]

		pre := s[prev:match.Start()]
		if token.lstrip {
			pre = strings.TrimRight(pre, absorbable)
		}
		if pre != "" {
			sections = append(sections, section{text: pre})
		}
		sections = append(sections, section{added: token})

		prev = match.End()
		if token.rstrip {
			rest := strings.TrimLeft(s[prev:], absorbable)
			prev = len(s) - len(rest)
		}
	}

	if rest := s[prev:]; rest != "" {
		sections = append(sections, section{text: rest})
	}
	return sections
}

// split dispatches to the added-token splitter when one is configured.
func (t *Tokenizer) split(s string) []section {
	if t.splitter == nil {
		if s == "" {
			return nil
		}
		return []section{{text: s}}
	}
	return t.splitter.split(s)
}
