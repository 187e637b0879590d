package tokenizer

import (
	"fmt"

	"github.com/subtext-ml/tokenizers/chat"
	"github.com/subtext-ml/tokenizers/logutil"
)

// ChatTemplateOptions controls one ApplyChatTemplate call.
type ChatTemplateOptions struct {
	// Messages is the conversation, each entry at least {role, content}.
	Messages []map[string]any

	// Template is a literal Jinja source; TemplateName selects a named
	// template from the config. Template wins when both are set.
	Template     string
	TemplateName string

	// Tools, when present, select the tool_use template by default and are
	// exposed to the template.
	Tools []any

	// AdditionalContext entries are merged into the render context last.
	AdditionalContext map[string]any

	AddGenerationPrompt bool

	// MaxLength caps the encoded length, clamped to the config's
	// model_max_length. Without Truncate an overflow is an error.
	MaxLength int
	Truncate  bool
}

// ApplyChatTemplate renders the chat template for messages and encodes the
// result without additional special tokens; templates spell out their own.
func (t *Tokenizer) ApplyChatTemplate(opts ChatTemplateOptions) ([]int32, error) {
	source, ok := chat.Resolve(t.chatTemplate, opts.Template, opts.TemplateName, len(opts.Tools) > 0)
	if !ok {
		return nil, ErrNoChatTemplate
	}

	ctx := chat.Context(opts.Messages, opts.AddGenerationPrompt, opts.Tools, t.specialTokens, opts.AdditionalContext)
	rendered, err := t.renderer.Render(source, ctx)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: chat template: %w", err)
	}
	logutil.Trace("rendered chat template", "chars", len(rendered))

	ids, err := t.Encode(rendered, false)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxLength
	if t.modelMaxLength > 0 && (limit == 0 || t.modelMaxLength < limit) {
		limit = t.modelMaxLength
	}
	if limit > 0 && len(ids) > limit {
		if !opts.Truncate {
			return nil, fmt.Errorf("%w: %d tokens, limit %d", ErrTooLong, len(ids), limit)
		}
		ids = ids[:limit]
	}
	return ids, nil
}
