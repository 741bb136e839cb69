package tokenizer

import (
	"strings"
	"testing"
)

func TestByteLevelRoundTrip(t *testing.T) {
	t.Parallel()

	tok := NewByteLevel()
	inputs := []string{
		"",
		"hello world",
		"line one\n\nline two",
		"múltiple ünïcode — 日本語 🦴",
		strings.Repeat("a", 1000),
	}
	for _, in := range inputs {
		ids, err := tok.Encode(in)
		if err != nil {
			t.Fatalf("encode %q: %v", in, err)
		}
		out, err := tok.Decode(ids)
		if err != nil {
			t.Fatalf("decode %q: %v", in, err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: %q -> %q", in, out)
		}
	}
}

func TestByteLevelDecodeNeverFails(t *testing.T) {
	t.Parallel()

	tok := NewByteLevel()
	out, err := tok.Decode([]int{-5, 0, 1, 2, 3, 100000})
	if err != nil {
		t.Fatalf("decode of garbage ids must not fail: %v", err)
	}
	if !strings.Contains(out, "�") {
		t.Fatalf("expected placeholder for unmappable ids, got %q", out)
	}
}

func TestByteLevelConfig(t *testing.T) {
	t.Parallel()

	cfg := ByteLevelConfig()
	if cfg.VocabSize != 260 {
		t.Fatalf("expected vocab size 260, got %d", cfg.VocabSize)
	}
	if cfg.EOSTokenID != eosID || cfg.UNKTokenID != unkID {
		t.Fatalf("unexpected special ids: %+v", cfg)
	}
}

func newTestVocab(t *testing.T) *Vocab {
	t.Helper()
	tokens := []string{"<pad>", "<s>", "</s>", "<unk>", "hello", "hell", "he", "lo", " ", "world", "l", "o", "h", "e"}
	v, err := NewVocab(tokens, Config{
		VocabSize:  len(tokens),
		PADTokenID: 0,
		BOSTokenID: 1,
		EOSTokenID: 2,
		UNKTokenID: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestVocabGreedyLongestMatch(t *testing.T) {
	t.Parallel()

	v := newTestVocab(t)
	ids, err := v.Encode("hello world")
	if err != nil {
		t.Fatal(err)
	}
	// "hello" must win over "hell"+"o" and "he"+"l"+"lo".
	if ids[0] != 4 {
		t.Fatalf("expected leading token 'hello' (4), got %v", ids)
	}
	out, err := v.Decode(ids)
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello world" {
		t.Fatalf("round trip mismatch: %q", out)
	}
}

func TestVocabUnknownCharacter(t *testing.T) {
	t.Parallel()

	v := newTestVocab(t)
	ids, err := v.Encode("hello Ω")
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range ids {
		if id == 3 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unknown token id in %v", ids)
	}

	out, err := v.Decode(ids)
	if err != nil {
		t.Fatalf("decode with unknown token must not fail: %v", err)
	}
	if !strings.Contains(out, "�") {
		t.Fatalf("expected placeholder in decoded text, got %q", out)
	}
}

func TestVocabRoundTripForRepresentableText(t *testing.T) {
	t.Parallel()

	v := newTestVocab(t)
	for _, in := range []string{"hello", "hello world", "he lo", "h e l l o"} {
		ids, err := v.Encode(in)
		if err != nil {
			t.Fatal(err)
		}
		out, err := v.Decode(ids)
		if err != nil {
			t.Fatal(err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: %q -> %q", in, out)
		}
	}
}

func TestStreamDecoderEmitsWholeRunes(t *testing.T) {
	t.Parallel()

	tok := NewByteLevel()
	ids, err := tok.Encode("a日b")
	if err != nil {
		t.Fatal(err)
	}

	dec := NewStreamDecoder(tok)
	var parts []string
	for _, id := range ids {
		delta, err := dec.Push(id)
		if err != nil {
			t.Fatal(err)
		}
		// A delta must never end mid-rune.
		if strings.ContainsRune(delta, '�') {
			t.Fatalf("torn rune in delta %q", delta)
		}
		parts = append(parts, delta)
	}
	tail, err := dec.Flush()
	if err != nil {
		t.Fatal(err)
	}
	parts = append(parts, tail)

	if got := strings.Join(parts, ""); got != "a日b" {
		t.Fatalf("concatenated deltas = %q, want %q", got, "a日b")
	}
}

func TestStreamDecoderDeltasMatchFullDecode(t *testing.T) {
	t.Parallel()

	tok := NewByteLevel()
	text := "streaming — ünïcode 🦴 done"
	ids, err := tok.Encode(text)
	if err != nil {
		t.Fatal(err)
	}

	dec := NewStreamDecoder(tok)
	var sb strings.Builder
	for _, id := range ids {
		delta, err := dec.Push(id)
		if err != nil {
			t.Fatal(err)
		}
		sb.WriteString(delta)
	}
	tail, err := dec.Flush()
	if err != nil {
		t.Fatal(err)
	}
	sb.WriteString(tail)

	if sb.String() != text {
		t.Fatalf("stream decode = %q, want %q", sb.String(), text)
	}
}
