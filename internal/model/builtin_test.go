package model

import (
	"testing"

	"github.com/kilnserve/kiln/internal/backend"
)

func TestBuiltinDeterministic(t *testing.T) {
	t.Parallel()

	a := NewBuiltin(64, 8, 42)
	b := NewBuiltin(64, 8, 42)

	ca := a.NewCache()
	cb := b.NewCache()

	la, err := a.Forward([]int{1, 2, 3}, ca)
	if err != nil {
		t.Fatalf("forward a: %v", err)
	}
	lb, err := b.Forward([]int{1, 2, 3}, cb)
	if err != nil {
		t.Fatalf("forward b: %v", err)
	}

	for i := range la {
		if la[i] != lb[i] {
			t.Fatalf("logits differ at %d: %v vs %v", i, la[i], lb[i])
		}
	}
}

func TestBuiltinIncrementalMatchesFull(t *testing.T) {
	t.Parallel()

	m := NewBuiltin(64, 8, 7)

	full := m.NewCache()
	wantLogits, err := m.Forward([]int{5, 6, 7}, full)
	if err != nil {
		t.Fatalf("full forward: %v", err)
	}

	inc := m.NewCache()
	if _, err := m.Forward([]int{5, 6}, inc); err != nil {
		t.Fatalf("prefill: %v", err)
	}
	gotLogits, err := m.Forward([]int{7}, inc)
	if err != nil {
		t.Fatalf("incremental step: %v", err)
	}

	for i := range wantLogits {
		if wantLogits[i] != gotLogits[i] {
			t.Fatalf("incremental decode diverges at logit %d", i)
		}
	}
	if full.Positions() != 3 || inc.Positions() != 3 {
		t.Fatalf("expected 3 cached positions, got %d and %d", full.Positions(), inc.Positions())
	}
}

func TestBuiltinCacheIsolation(t *testing.T) {
	t.Parallel()

	m := NewBuiltin(64, 8, 7)

	c1 := m.NewCache()
	c2 := m.NewCache()

	l1, err := m.Forward([]int{1}, c1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Forward([]int{9, 10, 11}, c2); err != nil {
		t.Fatal(err)
	}

	// Re-running session 1's history in a fresh cache must reproduce its
	// logits regardless of session 2's activity.
	c3 := m.NewCache()
	l3, err := m.Forward([]int{1}, c3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range l1 {
		if l1[i] != l3[i] {
			t.Fatal("cache state leaked between sessions")
		}
	}
}

func TestBuiltinRejectsBadInput(t *testing.T) {
	t.Parallel()

	m := NewBuiltin(16, 4, 1)
	c := m.NewCache()

	if _, err := m.Forward([]int{99}, c); err == nil {
		t.Fatal("expected error for out-of-vocabulary token")
	}
	if _, err := m.Forward(nil, c); err == nil {
		t.Fatal("expected error for empty token slice")
	}
}

func TestBuiltinCacheReset(t *testing.T) {
	t.Parallel()

	m := NewBuiltin(16, 4, 1)
	c := m.NewCache()
	if _, err := m.Forward([]int{1, 2}, c); err != nil {
		t.Fatal(err)
	}
	c.Reset()
	if c.Positions() != 0 {
		t.Fatalf("expected empty cache after reset, got %d positions", c.Positions())
	}
}

func TestHandleDelegation(t *testing.T) {
	t.Parallel()

	rt := NewBuiltin(16, 4, 1)
	info := Info{ID: "kiln-builtin", VocabSize: 16, EOSTokenID: 2, ContextWindow: 128}
	h := NewHandle(rt, info, backend.CPU)

	if h.Info().ID != "kiln-builtin" {
		t.Fatalf("unexpected info: %+v", h.Info())
	}
	if h.Device() != backend.CPU {
		t.Fatalf("unexpected device: %q", h.Device())
	}

	c := h.NewCache()
	logits, err := h.Forward([]int{3}, c)
	if err != nil {
		t.Fatal(err)
	}
	if len(logits) != 16 {
		t.Fatalf("expected 16 logits, got %d", len(logits))
	}
}
