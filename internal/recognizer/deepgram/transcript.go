package deepgram

import "strings"

// transcript joins finalized segments with the live interim hypothesis, so
// every update carries the whole utterance so far.
type transcript struct {
	committed []string
	interim   string
	last      string
}

// apply folds one result in and returns the joined text and whether it
// differs from the previous update.
func (t *transcript) apply(text string, isFinal bool) (string, bool) {
	text = strings.TrimSpace(text)
	if isFinal {
		if text != "" {
			t.committed = append(t.committed, text)
		}
		t.interim = ""
	} else {
		t.interim = text
	}

	joined := t.String()
	if joined == t.last {
		return joined, false
	}
	t.last = joined
	return joined, true
}

func (t *transcript) String() string {
	parts := t.committed
	if t.interim != "" {
		parts = append(parts[:len(parts):len(parts)], t.interim)
	}
	return strings.Join(parts, " ")
}

func (t *transcript) empty() bool {
	return len(t.committed) == 0 && t.interim == ""
}
