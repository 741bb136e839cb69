package tokenizer

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Vocab is a vocabulary-file tokenizer. Encoding is greedy longest-match over
// the token list; characters no vocabulary entry covers map to the reserved
// unknown id. Decoding concatenates token strings and never fails.
type Vocab struct {
	tokens []string
	index  map[string]int
	maxLen int
	cfg    Config
}

type vocabFile struct {
	Tokens     []string `json:"tokens"`
	BOSTokenID *int     `json:"bos_token_id"`
	EOSTokenID *int     `json:"eos_token_id"`
	UNKTokenID *int     `json:"unk_token_id"`
	PADTokenID *int     `json:"pad_token_id"`
}

// LoadVocab reads a vocabulary JSON file.
func LoadVocab(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	var vf vocabFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(vf.Tokens) == 0 {
		return nil, fmt.Errorf("vocabulary %s has no tokens", path)
	}
	return NewVocab(vf.Tokens, Config{
		VocabSize:  len(vf.Tokens),
		BOSTokenID: idOr(vf.BOSTokenID, -1),
		EOSTokenID: idOr(vf.EOSTokenID, -1),
		UNKTokenID: idOr(vf.UNKTokenID, -1),
		PADTokenID: idOr(vf.PADTokenID, -1),
	})
}

func idOr(p *int, fallback int) int {
	if p != nil {
		return *p
	}
	return fallback
}

// NewVocab builds a tokenizer from an ordered token list. The slice index is
// the token id.
func NewVocab(tokens []string, cfg Config) (*Vocab, error) {
	if cfg.VocabSize == 0 {
		cfg.VocabSize = len(tokens)
	}
	if cfg.VocabSize != len(tokens) {
		return nil, fmt.Errorf("vocab size %d does not match %d tokens", cfg.VocabSize, len(tokens))
	}
	v := &Vocab{
		tokens: tokens,
		index:  make(map[string]int, len(tokens)),
		cfg:    cfg,
	}
	for id, tok := range tokens {
		if tok == "" {
			continue
		}
		// First occurrence wins so duplicate strings stay stable.
		if _, ok := v.index[tok]; !ok {
			v.index[tok] = id
		}
		if len(tok) > v.maxLen {
			v.maxLen = len(tok)
		}
	}
	return v, nil
}

// Config reports the special ids of this vocabulary.
func (v *Vocab) Config() Config { return v.cfg }

// Encode applies maximal munch: at each position the longest vocabulary entry
// wins; a character outside the vocabulary becomes one unknown token.
func (v *Vocab) Encode(text string) ([]int, error) {
	var ids []int
	for pos := 0; pos < len(text); {
		limit := len(text) - pos
		if limit > v.maxLen {
			limit = v.maxLen
		}
		matched := false
		for n := limit; n > 0; n-- {
			if id, ok := v.index[text[pos:pos+n]]; ok {
				ids = append(ids, id)
				pos += n
				matched = true
				break
			}
		}
		if !matched {
			if v.cfg.UNKTokenID < 0 {
				return nil, fmt.Errorf("character %q at offset %d is outside the vocabulary and no unknown token is reserved", text[pos], pos)
			}
			ids = append(ids, v.cfg.UNKTokenID)
			_, size := utf8.DecodeRuneInString(text[pos:])
			pos += size
		}
	}
	return ids, nil
}

// Decode concatenates token strings. Unknown and out-of-range ids render a
// placeholder; decoding never fails.
func (v *Vocab) Decode(ids []int) (string, error) {
	var out []byte
	for _, id := range ids {
		if id < 0 || id >= len(v.tokens) || id == v.cfg.UNKTokenID {
			out = append(out, placeholder...)
			continue
		}
		out = append(out, v.tokens[id]...)
	}
	return string(out), nil
}
