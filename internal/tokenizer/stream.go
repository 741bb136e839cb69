package tokenizer

import "unicode/utf8"

// StreamDecoder turns a token-at-a-time id stream into text deltas. Bytes
// that do not yet complete a UTF-8 rune are withheld until a later token
// finishes them, so consumers never see a torn multi-byte character.
type StreamDecoder struct {
	tok     Tokenizer
	ids     []int
	emitted int
}

// NewStreamDecoder wraps a tokenizer for incremental decoding.
func NewStreamDecoder(tok Tokenizer) *StreamDecoder {
	return &StreamDecoder{tok: tok}
}

// Push appends one token and returns the newly completed text, which may be
// empty while a rune is still in flight.
func (d *StreamDecoder) Push(id int) (string, error) {
	d.ids = append(d.ids, id)
	text, err := d.tok.Decode(d.ids)
	if err != nil {
		return "", err
	}
	if len(text) <= d.emitted {
		return "", nil
	}
	delta := text[d.emitted:]
	delta = delta[:completeLen(delta)]
	d.emitted += len(delta)
	return delta, nil
}

// Flush returns any withheld tail, rendering incomplete trailing bytes as-is.
func (d *StreamDecoder) Flush() (string, error) {
	text, err := d.tok.Decode(d.ids)
	if err != nil {
		return "", err
	}
	if len(text) <= d.emitted {
		return "", nil
	}
	delta := text[d.emitted:]
	d.emitted = len(text)
	return delta, nil
}

// Text returns everything decoded so far, including withheld bytes.
func (d *StreamDecoder) Text() (string, error) {
	return d.tok.Decode(d.ids)
}

// completeLen returns the length of the longest prefix of s whose final rune
// is not a truncated multi-byte sequence.
func completeLen(s string) int {
	for i := len(s) - 1; i >= 0 && i >= len(s)-3; i-- {
		b := s[i]
		if !utf8.RuneStart(b) {
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 && expectedRuneLen(b) > len(s)-i {
			return i
		}
		break
	}
	return len(s)
}

func expectedRuneLen(b byte) int {
	switch {
	case b < 0x80:
		return 1
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		return 1
	}
}
