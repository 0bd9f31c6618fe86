package agent

import "github.com/chriscow/utero-voice/pkg/ai/llm"

// Snapshot is the observable view of the controller rendered by a UI.
type Snapshot struct {
	State        State         `json:"state"`
	Transcript   string        `json:"transcript"`
	Response     string        `json:"response"`
	NetworkError bool          `json:"networkError"`
	Error        string        `json:"error,omitempty"`
	RetryCount   int           `json:"retryCount"`
	Model        string        `json:"model"`
	Provider     llm.Provider  `json:"provider"`
	Log          []llm.Message `json:"messages"`
}

func (a *Agent) buildSnapshot() Snapshot {
	provider, _ := a.models.Provider(a.model)
	log := make([]llm.Message, len(a.log))
	copy(log, a.log)
	return Snapshot{
		State:        a.currentState(),
		Transcript:   a.transcript.display(),
		Response:     a.response,
		NetworkError: a.networkError,
		Error:        a.errMsg,
		RetryCount:   a.retryCount,
		Model:        a.model,
		Provider:     provider,
		Log:          log,
	}
}

// publish stores a fresh snapshot and notifies OnUpdate if anything changed.
func (a *Agent) publish() {
	next := a.buildSnapshot()

	a.snapMu.Lock()
	prev := a.snap
	a.snap = next
	a.snapMu.Unlock()

	if a.onUpdate != nil && !sameSnapshot(prev, next) {
		a.onUpdate(next)
	}
}

func sameSnapshot(x, y Snapshot) bool {
	return x.State == y.State &&
		x.Transcript == y.Transcript &&
		x.Response == y.Response &&
		x.NetworkError == y.NetworkError &&
		x.Error == y.Error &&
		x.RetryCount == y.RetryCount &&
		x.Model == y.Model &&
		len(x.Log) == len(y.Log)
}
