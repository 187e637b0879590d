// Package chat resolves and renders chat templates. Template selection and
// render-context assembly live here; the Jinja engine itself sits behind the
// Renderer interface as an external collaborator.
package chat

import (
	"bytes"
	"fmt"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"github.com/subtext-ml/tokenizers/config"
)

// Renderer renders a template source against a context. Implementations must
// be safe for concurrent use.
type Renderer interface {
	Render(template string, ctx map[string]any) (string, error)
}

// Jinja returns the default gonja-backed renderer.
func Jinja() Renderer { return jinja{} }

type jinja struct{}

func (jinja) Render(template string, ctx map[string]any) (string, error) {
	tpl, err := gonja.FromString(template)
	if err != nil {
		return "", fmt.Errorf("chat: parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, exec.NewContext(ctx)); err != nil {
		return "", fmt.Errorf("chat: render template: %w", err)
	}
	return buf.String(), nil
}

// Resolve picks the template source to render. Selection order: an explicit
// literal, an explicit name looked up in the config's named templates, the
// tool_use named template when tools are present, the default named
// template, and finally a scalar chat_template string.
func Resolve(value config.Value, literal, name string, hasTools bool) (string, bool) {
	if literal != "" {
		return literal, true
	}

	named := namedTemplates(value)

	if name != "" {
		tpl, ok := named[name]
		return tpl, ok
	}

	if hasTools {
		if tpl, ok := named["tool_use"]; ok {
			return tpl, true
		}
	}

	if tpl, ok := named["default"]; ok {
		return tpl, true
	}

	if tpl, ok := value.String(); ok {
		return tpl, true
	}

	return "", false
}

// namedTemplates flattens a [{name, template}] array into a lookup map.
func namedTemplates(value config.Value) map[string]string {
	entries, ok := value.Array()
	if !ok {
		return nil
	}

	named := make(map[string]string, len(entries))
	for _, entry := range entries {
		dict, ok := entry.Dictionary()
		if !ok {
			continue
		}
		name, nok := dict.String("name")
		tpl, tok := dict.String("template")
		if nok && tok {
			named[name] = tpl
		}
	}
	return named
}

// Context assembles the render context for one apply-chat-template call.
// specialTokens maps config keys like "bos_token" to their string form;
// additional entries override everything else.
func Context(messages []map[string]any, addGenerationPrompt bool, tools []any, specialTokens map[string]string, additional map[string]any) map[string]any {
	ctx := map[string]any{
		"messages":              messages,
		"add_generation_prompt": addGenerationPrompt,
	}
	if len(tools) > 0 {
		ctx["tools"] = tools
	}
	for key, token := range specialTokens {
		ctx[key] = token
	}
	for key, val := range additional {
		ctx[key] = val
	}
	return ctx
}
