package agent

import (
	"expvar"
	"fmt"
)

// Metrics holds counters for the controller. They are not registered with
// expvar until Publish is called, so tests can create as many as they like.
type Metrics struct {
	StateTransitions   *expvar.Map
	Commits            *expvar.Int
	CaptureRetries     *expvar.Int
	CompletionFailures *expvar.Int
	CompletionLatency  *expvar.Float // milliseconds, most recent request
}

// NewMetrics creates an unpublished set of metrics.
func NewMetrics() *Metrics {
	transitions := &expvar.Map{}
	transitions.Init()
	return &Metrics{
		StateTransitions:   transitions,
		Commits:            &expvar.Int{},
		CaptureRetries:     &expvar.Int{},
		CompletionFailures: &expvar.Int{},
		CompletionLatency:  &expvar.Float{},
	}
}

// Publish registers the metrics under prefix. Names that are already
// registered are left alone.
func (m *Metrics) Publish(prefix string) {
	vars := map[string]expvar.Var{
		"state_transitions":   m.StateTransitions,
		"commits":             m.Commits,
		"capture_retries":     m.CaptureRetries,
		"completion_failures": m.CompletionFailures,
		"completion_latency":  m.CompletionLatency,
	}
	for name, v := range vars {
		key := prefix + "." + name
		if expvar.Get(key) == nil {
			expvar.Publish(key, v)
		}
	}
}

func (m *Metrics) recordTransition(from, to State) {
	m.StateTransitions.Add(fmt.Sprintf("%s_to_%s", from, to), 1)
}
