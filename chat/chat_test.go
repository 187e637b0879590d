package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subtext-ml/tokenizers/config"
)

func TestResolve(t *testing.T) {
	namedValue := config.Wrap([]any{
		map[string]any{"name": "default", "template": "DEFAULT"},
		map[string]any{"name": "tool_use", "template": "TOOLS"},
		map[string]any{"name": "rag", "template": "RAG"},
	})
	scalarValue := config.Wrap("SCALAR")

	tests := []struct {
		name     string
		value    config.Value
		literal  string
		request  string
		hasTools bool
		want     string
		ok       bool
	}{
		{name: "literal wins", value: namedValue, literal: "{{ x }}", want: "{{ x }}", ok: true},
		{name: "named request", value: namedValue, request: "rag", want: "RAG", ok: true},
		{name: "unknown name", value: namedValue, request: "nope", ok: false},
		{name: "tools pick tool_use", value: namedValue, hasTools: true, want: "TOOLS", ok: true},
		{name: "default otherwise", value: namedValue, want: "DEFAULT", ok: true},
		{name: "scalar fallback", value: scalarValue, want: "SCALAR", ok: true},
		{name: "nothing resolvable", value: config.Wrap(nil), ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Resolve(tt.value, tt.literal, tt.request, tt.hasTools)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJinjaRender(t *testing.T) {
	tpl := "{% for message in messages %}{{ message.role }}: {{ message.content }}\n{% endfor %}" +
		"{% if add_generation_prompt %}assistant:{% endif %}"

	ctx := Context(
		[]map[string]any{
			{"role": "user", "content": "hi"},
			{"role": "assistant", "content": "hello"},
		},
		true, nil, map[string]string{"bos_token": "<s>"}, nil,
	)

	out, err := Jinja().Render(tpl, ctx)
	require.NoError(t, err)
	assert.Equal(t, "user: hi\nassistant: hello\nassistant:", out)
}

func TestJinjaRenderSpecialTokens(t *testing.T) {
	out, err := Jinja().Render("{{ bos_token }}{{ extra }}", Context(
		nil, false, nil,
		map[string]string{"bos_token": "<s>"},
		map[string]any{"extra": "!"},
	))
	require.NoError(t, err)
	assert.Equal(t, "<s>!", out)
}

func TestJinjaParseError(t *testing.T) {
	_, err := Jinja().Render("{% if %}", nil)
	assert.Error(t, err)
}

func TestContextOverrides(t *testing.T) {
	ctx := Context(nil, false, []any{"tool"}, map[string]string{"eos_token": "</s>"},
		map[string]any{"eos_token": "override"})
	assert.Equal(t, "override", ctx["eos_token"])
	assert.Equal(t, []any{"tool"}, ctx["tools"])
}
