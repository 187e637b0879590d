// Package config implements the semi-structured configuration tree shared by
// every pipeline stage. tokenizer.json and tokenizer_config.json are parsed
// into a generic Value tree once at load time; stages read from it through
// typed accessors that return the zero value plus an ok flag instead of
// panicking, so error decisions stay at the call sites that know whether a
// field is required.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Token is a vocabulary entry reference: an id paired with its surface text.
type Token struct {
	ID   uint32
	Text string
}

// Value is one node of the configuration tree. It holds exactly one of:
// nil, string, bool, float64, Token, Config, or []Value. Values are never
// mutated after construction.
type Value struct {
	raw any
}

// Config maps keys to values. The top level of a parsed document is always
// a Config.
type Config map[string]Value

// FromJSON parses raw JSON bytes into a Config. The document root must be an
// object; anything else is a malformed config.
func FromJSON(data []byte) (Config, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("config: top-level value is %T, expected object", raw)
	}

	return fromMap(obj), nil
}

func fromMap(m map[string]any) Config {
	cfg := make(Config, len(m))
	for k, v := range m {
		cfg[k] = wrap(v)
	}
	return cfg
}

func wrap(v any) Value {
	switch v := v.(type) {
	case nil, string, bool, float64, Token:
		return Value{raw: v}
	case int:
		return Value{raw: float64(v)}
	case map[string]any:
		return Value{raw: fromMap(v)}
	case Config:
		return Value{raw: v}
	case []any:
		vals := make([]Value, len(v))
		for i := range v {
			vals[i] = wrap(v[i])
		}
		return Value{raw: vals}
	case []Value:
		return Value{raw: v}
	default:
		// unrecognized scalar from a hand-built tree; keep it and let the
		// accessors reject it
		return Value{raw: v}
	}
}

// Wrap builds a Value from a plain Go value, converting nested maps and
// slices. Used by tests and hand-assembled defaults.
func Wrap(v any) Value { return wrap(v) }

// Get looks up key, first verbatim, then in its snake_case form so that
// cfg.Get("modelType") resolves a "model_type" entry.
func (c Config) Get(key string) (Value, bool) {
	if v, ok := c[key]; ok {
		return v, true
	}
	if v, ok := c[snakeCase(key)]; ok {
		return v, true
	}
	return Value{}, false
}

// String returns the string form of cfg[key].
func (c Config) String(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	return v.String()
}

// Integer returns the integer form of cfg[key].
func (c Config) Integer(key string) (int, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	return v.Integer()
}

// Boolean returns cfg[key] as a bool, or def when the key is absent or not
// a bool.
func (c Config) Boolean(key string, def bool) bool {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	return v.Boolean(def)
}

// Float returns the float form of cfg[key].
func (c Config) Float(key string) (float64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	return v.Float()
}

// Array returns cfg[key] as a value slice.
func (c Config) Array(key string) ([]Value, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	return v.Array()
}

// Dictionary returns cfg[key] as a nested Config.
func (c Config) Dictionary(key string) (Config, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	return v.Dictionary()
}

// Token returns cfg[key] as an (id, text) pair.
func (c Config) Token(key string) (Token, bool) {
	v, ok := c.Get(key)
	if !ok {
		return Token{}, false
	}
	return v.Token()
}

// IsNull reports whether the value holds JSON null.
func (v Value) IsNull() bool { return v.raw == nil }

// String returns the value as a string.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Integer returns the value as an int. JSON numbers arrive as float64; only
// integral floats qualify.
func (v Value) Integer() (int, bool) {
	if n, ok := v.raw.(float64); ok && n == math.Trunc(n) {
		return int(n), true
	}
	return 0, false
}

// Boolean returns the value as a bool, or def when it is not one.
func (v Value) Boolean(def bool) bool {
	if b, ok := v.raw.(bool); ok {
		return b
	}
	return def
}

// Float returns the value as a float64.
func (v Value) Float() (float64, bool) {
	f, ok := v.raw.(float64)
	return f, ok
}

// Array returns the value as a slice of values.
func (v Value) Array() ([]Value, bool) {
	a, ok := v.raw.([]Value)
	return a, ok
}

// Dictionary returns the value as a nested Config.
func (v Value) Dictionary() (Config, bool) {
	c, ok := v.raw.(Config)
	return c, ok
}

// Token returns the value as an (id, text) pair. Both wire encodings are
// recognized: a Token constructed directly, and a 2-element array in either
// [text, id] or [id, text] order.
func (v Value) Token() (Token, bool) {
	switch t := v.raw.(type) {
	case Token:
		return t, true
	case []Value:
		if len(t) != 2 {
			return Token{}, false
		}
		if s, ok := t[0].String(); ok {
			if id, ok := t[1].Integer(); ok && id >= 0 {
				return Token{ID: uint32(id), Text: s}, true
			}
		}
		if id, ok := t[0].Integer(); ok && id >= 0 {
			if s, ok := t[1].String(); ok {
				return Token{ID: uint32(id), Text: s}, true
			}
		}
	}
	return Token{}, false
}

// snakeCase rewrites camelCase keys: split on internal uppercase boundaries,
// lowercase, join with underscores.
func snakeCase(key string) string {
	var sb strings.Builder
	sb.Grow(len(key) + 4)
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
