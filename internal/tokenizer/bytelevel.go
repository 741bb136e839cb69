package tokenizer

// Special token layout shared by the built-in tokenizers.
const (
	padID = 0
	bosID = 1
	eosID = 2
	unkID = 3

	numSpecials = 4
)

// ByteLevel tokenizes text as raw bytes offset past the special tokens. Every
// string round-trips exactly, so it is the default pairing for the built-in
// runtime.
type ByteLevel struct{}

// NewByteLevel returns the byte-level tokenizer.
func NewByteLevel() ByteLevel { return ByteLevel{} }

// ByteLevelConfig describes the byte-level vocabulary.
func ByteLevelConfig() Config {
	return Config{
		VocabSize:  numSpecials + 256,
		PADTokenID: padID,
		BOSTokenID: bosID,
		EOSTokenID: eosID,
		UNKTokenID: unkID,
	}
}

func (ByteLevel) Encode(text string) ([]int, error) {
	ids := make([]int, 0, len(text))
	for i := 0; i < len(text); i++ {
		ids = append(ids, numSpecials+int(text[i]))
	}
	return ids, nil
}

// Decode maps ids back to bytes. Special and out-of-range ids render a
// placeholder rather than failing.
func (ByteLevel) Decode(ids []int) (string, error) {
	buf := make([]byte, 0, len(ids))
	for _, id := range ids {
		b := id - numSpecials
		if b < 0 || b > 255 {
			buf = append(buf, placeholder...)
			continue
		}
		buf = append(buf, byte(b))
	}
	return string(buf), nil
}
