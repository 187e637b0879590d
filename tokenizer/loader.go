package tokenizer

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/subtext-ml/tokenizers/chat"
	"github.com/subtext-ml/tokenizers/config"
	"github.com/subtext-ml/tokenizers/decoder"
	"github.com/subtext-ml/tokenizers/model"
	"github.com/subtext-ml/tokenizers/normalizer"
	"github.com/subtext-ml/tokenizers/postprocessor"
	"github.com/subtext-ml/tokenizers/pretokenizer"
)

// supportedClasses validates tokenizer_class. Model-specific subclasses all
// collapse onto the same pipeline; the class string is data, not behavior.
var supportedClasses = map[string]bool{
	"PreTrainedTokenizer": true,
	"BertTokenizer":       true,
	"DistilBertTokenizer": true,
	"RobertaTokenizer":    true,
	"GPT2Tokenizer":       true,
	"GPTNeoXTokenizer":    true,
	"BloomTokenizer":      true,
	"CLIPTokenizer":       true,
	"CodeGenTokenizer":    true,
	"CodeLlamaTokenizer":  true,
	"CohereTokenizer":     true,
	"FalconTokenizer":     true,
	"GemmaTokenizer":      true,
	"LlamaTokenizer":      true,
	"Qwen2Tokenizer":      true,
	"T5Tokenizer":         true,
	"WhisperTokenizer":    true,
	"XLMRobertaTokenizer": true,
}

// FromFiles loads tokenizer.json and tokenizer_config.json from dir.
func FromFiles(dir string) (*Tokenizer, error) {
	data, err := os.ReadFile(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer: read tokenizer.json: %w", err)
	}

	cfgData, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json"))
	if err != nil {
		return nil, fmt.Errorf("tokenizer: read tokenizer_config.json: %w", err)
	}

	return FromBytes(data, cfgData)
}

// FromBytes builds a tokenizer from the raw bytes of tokenizer.json and
// tokenizer_config.json.
func FromBytes(tokenizerJSON, tokenizerConfigJSON []byte) (*Tokenizer, error) {
	data, err := config.FromJSON(tokenizerJSON)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: tokenizer.json: %w", err)
	}

	cfg, err := config.FromJSON(tokenizerConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: tokenizer_config.json: %w", err)
	}

	return New(data, cfg)
}

// New builds a tokenizer from the two already parsed config trees: data is
// tokenizer.json, cfg is tokenizer_config.json.
func New(data, cfg config.Config) (*Tokenizer, error) {
	class, ok := cfg.String("tokenizerClass")
	if !ok {
		return nil, ErrMissingTokenizerClass
	}
	if !supportedClasses[strings.TrimSuffix(class, "Fast")] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTokenizer, class)
	}

	added, addedIDs := parseAddedTokens(data)

	modelCfg, ok := data.Dictionary("model")
	if !ok {
		return nil, ErrMissingVocab
	}
	m, err := model.New(modelCfg, addedIDs)
	if err != nil {
		return nil, err
	}

	t := &Tokenizer{
		model:          m,
		added:          added,
		cleanup:        cfg.Boolean("cleanUpTokenizationSpaces", true),
		addBOS:         cfg.Boolean("addBosToken", false),
		addEOS:         cfg.Boolean("addEosToken", false),
		modelMaxLength: maxLength(cfg),
		renderer:       chat.Jinja(),
	}
	if tpl, ok := cfg.Get("chatTemplate"); ok {
		t.chatTemplate = tpl
	}

	if sub, ok := data.Dictionary("normalizer"); ok {
		if t.normalizer, err = normalizer.New(sub); err != nil {
			return nil, err
		}
	}
	if sub, ok := data.Dictionary("preTokenizer"); ok {
		if t.pretok, err = pretokenizer.New(sub); err != nil {
			return nil, err
		}
	}
	if sub, ok := data.Dictionary("postProcessor"); ok {
		if t.post, err = postprocessor.New(sub); err != nil {
			return nil, err
		}
	}
	if sub, ok := data.Dictionary("decoder"); ok {
		addedSet := make(map[string]bool, len(added))
		for _, tok := range added {
			addedSet[tok.content] = true
		}
		if t.decoder, err = decoder.New(sub, addedSet); err != nil {
			return nil, err
		}
	}

	if len(added) > 0 {
		t.splitter = newAddedSplitter(added)
	}

	t.specialTokens = parseSpecialTokens(cfg)
	t.bosToken = t.specialTokens["bos_token"]
	t.eosToken = t.specialTokens["eos_token"]
	if t.addBOS && t.bosToken == "" {
		return nil, fmt.Errorf("%w: add_bos_token is set but bos_token is not", ErrMismatchedConfig)
	}
	if t.addEOS && t.eosToken == "" {
		return nil, fmt.Errorf("%w: add_eos_token is set but eos_token is not", ErrMismatchedConfig)
	}

	t.specialIDs = make(map[int32]bool)
	for _, tok := range added {
		if tok.special {
			t.specialIDs[tok.id] = true
		}
	}
	for _, content := range t.specialTokens {
		if id, ok := m.TokenToID(content); ok {
			t.specialIDs[id] = true
		}
	}

	slog.Debug("loaded tokenizer", "class", class,
		"added_tokens", len(added), "special_ids", len(t.specialIDs))
	return t, nil
}

// parseAddedTokens reads the added_tokens array. The id map is merged into
// the model vocabulary; every entry, special or not, is matched verbatim.
func parseAddedTokens(data config.Config) ([]addedToken, map[string]int32) {
	entries, ok := data.Array("addedTokens")
	if !ok {
		return nil, nil
	}

	tokens := make([]addedToken, 0, len(entries))
	ids := make(map[string]int32, len(entries))
	for _, entry := range entries {
		dict, ok := entry.Dictionary()
		if !ok {
			continue
		}
		content, ok := dict.String("content")
		if !ok || content == "" {
			continue
		}
		id, ok := dict.Integer("id")
		if !ok {
			continue
		}

		tokens = append(tokens, addedToken{
			id:      int32(id),
			content: content,
			special: dict.Boolean("special", false),
			lstrip:  dict.Boolean("lstrip", false),
			rstrip:  dict.Boolean("rstrip", false),
		})
		ids[content] = int32(id)
	}
	return tokens, ids
}

// parseSpecialTokens collects the *_token entries from tokenizer_config.
// Each may be a bare string or an added-token object with a content field.
func parseSpecialTokens(cfg config.Config) map[string]string {
	tokens := make(map[string]string)
	for key, value := range cfg {
		if !strings.HasSuffix(key, "_token") {
			continue
		}
		if s, ok := value.String(); ok {
			tokens[key] = s
			continue
		}
		if dict, ok := value.Dictionary(); ok {
			if s, ok := dict.String("content"); ok {
				tokens[key] = s
			}
		}
	}
	return tokens
}

// maxLength reads model_max_length. Configs use absurd sentinel values
// (1e30) to mean unlimited; anything beyond int32 is treated as unset.
func maxLength(cfg config.Config) int {
	f, ok := cfg.Float("modelMaxLength")
	if !ok || f <= 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
