package engine

import "strings"

// stopMatcher scans generated text for stop strings while withholding the
// trailing bytes that could still become the start of a match. Text released
// by feed is final: it can be streamed to the client immediately because no
// later token can pull it back into a stop string.
type stopMatcher struct {
	stops    []string
	holdback int
	text     strings.Builder
	emitted  int
}

func newStopMatcher(stops []string) *stopMatcher {
	maxLen := 0
	for _, s := range stops {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}
	m := &stopMatcher{stops: stops}
	if maxLen > 0 {
		m.holdback = maxLen - 1
	}
	return m
}

// feed appends delta and returns the text that is now safe to emit, plus
// whether a stop string matched. On a match the matcher truncates its text
// before the match and releases everything up to that point.
func (m *stopMatcher) feed(delta string) (string, bool) {
	m.text.WriteString(delta)
	text := m.text.String()

	// Released text is final, so a match can only start at or after the
	// emitted boundary.
	if i := m.earliestMatch(text, m.emitted); i >= 0 {
		out := text[m.emitted:i]
		m.emitted = i
		reset := text[:i]
		m.text.Reset()
		m.text.WriteString(reset)
		return out, true
	}

	safe := len(text) - m.holdback
	if safe <= m.emitted {
		return "", false
	}
	out := text[m.emitted:safe]
	m.emitted = safe
	return out, false
}

// append adds delta without scanning for stop strings. Used once generation
// has already ended for a reason that outranks stop matching.
func (m *stopMatcher) append(delta string) {
	m.text.WriteString(delta)
}

// finish releases the withheld tail when generation ends without a stop
// match.
func (m *stopMatcher) finish() string {
	text := m.text.String()
	out := text[m.emitted:]
	m.emitted = len(text)
	return out
}

// output is the full accumulated text, truncated before any matched stop
// string.
func (m *stopMatcher) output() string { return m.text.String() }

func (m *stopMatcher) earliestMatch(text string, from int) int {
	best := -1
	for _, s := range m.stops {
		if s == "" {
			continue
		}
		if i := strings.Index(text[from:], s); i >= 0 && (best < 0 || from+i < best) {
			best = from + i
		}
	}
	return best
}
