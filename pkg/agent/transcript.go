package agent

import (
	"strings"

	"github.com/chriscow/utero-voice/pkg/ai/stt"
)

// transcript accumulates recognition results for one listening session.
// Final fragments are committed once; finalized is the index of the first
// result that has not been committed yet.
type transcript struct {
	committed string
	interim   string
	finalized int
}

func (t *transcript) reset() {
	*t = transcript{}
}

// restart prepares for a fresh engine session whose result list starts at zero
// again, keeping the text committed so far.
func (t *transcript) restart() {
	t.finalized = 0
	t.interim = ""
}

// apply processes results from index onwards, skipping anything already
// finalized. It reports whether any result was processed and whether the
// latest one was final.
func (t *transcript) apply(index int, results []stt.Result) (changed, lastFinal bool) {
	start := max(index, t.finalized)
	if start >= len(results) {
		return false, false
	}

	var interim []string
	for i := start; i < len(results); i++ {
		r := results[i]
		text := strings.TrimSpace(r.Transcript())
		if r.IsFinal {
			if text != "" {
				if t.committed == "" {
					t.committed = text
				} else {
					t.committed += " " + text
				}
			}
			t.finalized = i + 1
			lastFinal = true
			continue
		}
		if text != "" {
			interim = append(interim, text)
		}
		lastFinal = false
	}
	t.interim = strings.Join(interim, " ")
	return true, lastFinal
}

func (t *transcript) text() string {
	return t.committed
}

// display is the committed text followed by the pending interim fragment.
func (t *transcript) display() string {
	switch {
	case t.interim == "":
		return t.committed
	case t.committed == "":
		return t.interim
	default:
		return t.committed + " " + t.interim
	}
}
