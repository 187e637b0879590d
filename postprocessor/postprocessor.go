// Package postprocessor assembles final token sequences from one or two
// tokenized inputs, adding model-specific special tokens.
package postprocessor

import (
	"fmt"
	"strings"

	"github.com/subtext-ml/tokenizers/config"
)

// PostProcessor combines the tokens of one or two input sequences into the
// final sequence. addSpecial gates the insertion of special tokens.
type PostProcessor interface {
	Process(tokens, pair []string, addSpecial bool) []string
}

var constructors = map[string]func(config.Config) (PostProcessor, error){
	"TemplateProcessing": newTemplate,
	"ByteLevel":          newByteLevel,
	"RobertaProcessing":  newRoberta,
	"BertProcessing":     newBert,
}

// Sequence recurses through New, so registering it in the map literal would
// be an initialization cycle.
func init() {
	constructors["Sequence"] = newSequence
}

// New builds a post-processor from its config subtree, dispatching on the
// type field.
func New(cfg config.Config) (PostProcessor, error) {
	name, ok := cfg.String("type")
	if !ok {
		return nil, fmt.Errorf("post-processor config has no type")
	}

	construct, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("unsupported post-processor type %q", name)
	}
	return construct(cfg)
}

type sequence struct {
	children []PostProcessor
}

func newSequence(cfg config.Config) (PostProcessor, error) {
	items, ok := cfg.Array("processors")
	if !ok {
		return nil, fmt.Errorf("Sequence post-processor has no processors")
	}

	s := &sequence{}
	for _, item := range items {
		child, ok := item.Dictionary()
		if !ok {
			return nil, fmt.Errorf("Sequence post-processor child is not a dictionary")
		}
		p, err := New(child)
		if err != nil {
			return nil, err
		}
		s.children = append(s.children, p)
	}
	return s, nil
}

func (s *sequence) Process(tokens, pair []string, addSpecial bool) []string {
	for _, child := range s.children {
		tokens = child.Process(tokens, pair, addSpecial)
		// only the first stage sees the pair; later stages operate on the
		// already combined sequence
		pair = nil
	}
	return tokens
}

// templateItem is one slot of a TemplateProcessing template: either a
// literal special token or a reference to input sequence A or B.
type templateItem struct {
	special  string
	sequence string
}

type template struct {
	single []templateItem
	pair   []templateItem
}

func newTemplate(cfg config.Config) (PostProcessor, error) {
	single, err := parseTemplate(cfg, "single")
	if err != nil {
		return nil, err
	}
	pair, err := parseTemplate(cfg, "pair")
	if err != nil {
		return nil, err
	}
	return &template{single: single, pair: pair}, nil
}

func parseTemplate(cfg config.Config, key string) ([]templateItem, error) {
	entries, ok := cfg.Array(key)
	if !ok {
		return nil, nil
	}

	items := make([]templateItem, 0, len(entries))
	for _, entry := range entries {
		slot, ok := entry.Dictionary()
		if !ok {
			return nil, fmt.Errorf("template %s entry is not a dictionary", key)
		}

		if special, ok := slot.Dictionary("SpecialToken"); ok {
			id, ok := special.String("id")
			if !ok {
				return nil, fmt.Errorf("template %s SpecialToken has no id", key)
			}
			items = append(items, templateItem{special: id})
			continue
		}

		if seq, ok := slot.Dictionary("Sequence"); ok {
			id, ok := seq.String("id")
			if !ok || (id != "A" && id != "B") {
				return nil, fmt.Errorf("template %s Sequence id must be A or B", key)
			}
			items = append(items, templateItem{sequence: id})
			continue
		}

		return nil, fmt.Errorf("template %s entry is neither SpecialToken nor Sequence", key)
	}
	return items, nil
}

func (t *template) Process(tokens, pair []string, addSpecial bool) []string {
	items := t.single
	if len(pair) > 0 && t.pair != nil {
		items = t.pair
	}

	out := make([]string, 0, len(tokens)+len(pair)+len(items))
	for _, item := range items {
		switch {
		case item.special != "":
			if addSpecial {
				out = append(out, item.special)
			}
		case item.sequence == "A":
			out = append(out, tokens...)
		case item.sequence == "B":
			out = append(out, pair...)
		}
	}
	return out
}

// byteLevel is an identity pass. This stage only exists to adjust character
// offsets, and offsets are not part of this pipeline.
type byteLevel struct{}

func newByteLevel(config.Config) (PostProcessor, error) {
	return byteLevel{}, nil
}

func (byteLevel) Process(tokens, pair []string, _ bool) []string {
	if len(pair) > 0 {
		return append(append([]string{}, tokens...), pair...)
	}
	return tokens
}

type roberta struct {
	cls, sep       string
	trimOffsets    bool
	addPrefixSpace bool
}

func newRoberta(cfg config.Config) (PostProcessor, error) {
	cls, ok := cfg.Token("cls")
	if !ok {
		return nil, fmt.Errorf("RobertaProcessing has no cls token")
	}
	sep, ok := cfg.Token("sep")
	if !ok {
		return nil, fmt.Errorf("RobertaProcessing has no sep token")
	}

	return &roberta{
		cls:            cls.Text,
		sep:            sep.Text,
		trimOffsets:    cfg.Boolean("trimOffsets", true),
		addPrefixSpace: cfg.Boolean("addPrefixSpace", true),
	}, nil
}

func (r *roberta) Process(tokens, pair []string, addSpecial bool) []string {
	tokens = r.trim(tokens)
	pair = r.trim(pair)

	if !addSpecial {
		return byteLevel{}.Process(tokens, pair, false)
	}

	out := make([]string, 0, len(tokens)+len(pair)+4)
	out = append(out, r.cls)
	out = append(out, tokens...)
	out = append(out, r.sep)
	if len(pair) > 0 {
		out = append(out, r.sep)
		out = append(out, pair...)
		out = append(out, r.sep)
	}
	return out
}

func (r *roberta) trim(tokens []string) []string {
	if !r.trimOffsets || tokens == nil {
		return tokens
	}

	out := make([]string, len(tokens))
	for i, token := range tokens {
		if r.addPrefixSpace {
			out[i] = collapseEdgeSpaces(token)
		} else {
			out[i] = strings.TrimSpace(token)
		}
	}
	return out
}

// collapseEdgeSpaces reduces a run of leading or trailing whitespace to a
// single space.
func collapseEdgeSpaces(token string) string {
	trimmed := strings.TrimSpace(token)
	if trimmed == token {
		return token
	}

	var b strings.Builder
	if strings.TrimLeft(token, " \t\n\r") != token {
		b.WriteByte(' ')
	}
	b.WriteString(trimmed)
	if trimmed != "" && strings.TrimRight(token, " \t\n\r") != token {
		b.WriteByte(' ')
	}
	return b.String()
}

type bert struct {
	cls, sep string
}

func newBert(cfg config.Config) (PostProcessor, error) {
	cls, ok := cfg.Token("cls")
	if !ok {
		return nil, fmt.Errorf("BertProcessing has no cls token")
	}
	sep, ok := cfg.Token("sep")
	if !ok {
		return nil, fmt.Errorf("BertProcessing has no sep token")
	}
	return &bert{cls: cls.Text, sep: sep.Text}, nil
}

func (b *bert) Process(tokens, pair []string, addSpecial bool) []string {
	if !addSpecial {
		return byteLevel{}.Process(tokens, pair, false)
	}

	out := make([]string, 0, len(tokens)+len(pair)+3)
	out = append(out, b.cls)
	out = append(out, tokens...)
	out = append(out, b.sep)
	if len(pair) > 0 {
		out = append(out, pair...)
		out = append(out, b.sep)
	}
	return out
}
