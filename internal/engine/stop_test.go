package engine

import "testing"

func TestStopMatcherNoStops(t *testing.T) {
	t.Parallel()

	m := newStopMatcher(nil)
	out, matched := m.feed("hello")
	if matched {
		t.Fatal("matched with no stop strings")
	}
	if out != "hello" {
		t.Fatalf("out = %q, want %q", out, "hello")
	}
	if got := m.output(); got != "hello" {
		t.Fatalf("output = %q, want %q", got, "hello")
	}
}

func TestStopMatcherTruncatesAtMatch(t *testing.T) {
	t.Parallel()

	m := newStopMatcher([]string{"\n\n"})
	var released string
	for _, delta := range []string{"abc", "\n", "\n", "xyz"} {
		out, matched := m.feed(delta)
		released += out
		if matched {
			break
		}
	}
	if released != "abc" {
		t.Fatalf("released = %q, want %q", released, "abc")
	}
	if got := m.output(); got != "abc" {
		t.Fatalf("output = %q, want %q", got, "abc")
	}
}

func TestStopMatcherHoldsBackPotentialPrefix(t *testing.T) {
	t.Parallel()

	m := newStopMatcher([]string{"STOP"}) // holdback of 3 bytes
	out, matched := m.feed("abST")
	if matched {
		t.Fatal("unexpected match")
	}
	if out != "a" {
		t.Fatalf("out = %q, want %q: bytes that could start a stop string must be withheld", out, "a")
	}

	// More text slides the holdback window forward without matching.
	out, matched = m.feed("x")
	if matched {
		t.Fatal("unexpected match")
	}
	if out != "b" {
		t.Fatalf("out = %q, want %q", out, "b")
	}

	if rest := m.finish(); rest != "STx" {
		t.Fatalf("finish = %q, want %q", rest, "STx")
	}
	if got := m.output(); got != "abSTx" {
		t.Fatalf("output = %q, want %q", got, "abSTx")
	}
}

func TestStopMatcherMatchSpansDeltas(t *testing.T) {
	t.Parallel()

	m := newStopMatcher([]string{"END"})
	var released string
	for _, delta := range []string{"okE", "N", "D", "tail"} {
		out, matched := m.feed(delta)
		released += out
		if matched {
			break
		}
	}
	if released != "ok" {
		t.Fatalf("released = %q, want %q", released, "ok")
	}
	if got := m.output(); got != "ok" {
		t.Fatalf("output = %q, want %q", got, "ok")
	}
}

func TestStopMatcherEarliestOfSeveral(t *testing.T) {
	t.Parallel()

	m := newStopMatcher([]string{"zzzz", "b"})
	out, matched := m.feed("abc")
	if !matched {
		t.Fatal("expected a match")
	}
	if out != "a" {
		t.Fatalf("out = %q, want %q", out, "a")
	}
}
