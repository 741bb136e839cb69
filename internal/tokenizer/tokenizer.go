// Package tokenizer wraps text<->token-id conversion. Implementations hold
// no mutable state after construction and are safe for concurrent use by
// every generation session.
package tokenizer

// Tokenizer converts between text and token ids. Decode must not fail on any
// id sequence: unknown or out-of-range ids render a placeholder instead.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Config carries the special token ids the engine needs alongside a
// Tokenizer.
type Config struct {
	VocabSize  int
	BOSTokenID int
	EOSTokenID int
	UNKTokenID int
	PADTokenID int
}

// placeholder rendered for ids that do not map to vocabulary text.
const placeholder = "�"
