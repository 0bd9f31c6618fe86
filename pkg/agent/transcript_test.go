package agent

import (
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/utero-voice/pkg/ai/stt"
)

func TestTranscript_Apply(t *testing.T) {
	is := is.New(t)
	var tr transcript

	changed, final := tr.apply(0, []stt.Result{stt.InterimResult("selamat")})
	is.True(changed)
	is.True(!final)
	is.Equal(tr.text(), "")
	is.Equal(tr.display(), "selamat")

	results := []stt.Result{stt.FinalResult(" selamat pagi "), stt.InterimResult("apa")}
	changed, final = tr.apply(0, results)
	is.True(changed)
	is.True(!final) // latest result is interim
	is.Equal(tr.text(), "selamat pagi")
	is.Equal(tr.display(), "selamat pagi apa")

	results[1] = stt.FinalResult("apa kabar")
	changed, final = tr.apply(1, results)
	is.True(changed)
	is.True(final)
	is.Equal(tr.text(), "selamat pagi apa kabar")

	changed, _ = tr.apply(0, results)
	is.True(!changed) // everything already finalized
	is.Equal(tr.text(), "selamat pagi apa kabar")

	tr.restart()
	changed, final = tr.apply(0, []stt.Result{stt.FinalResult("lagi")})
	is.True(changed && final)
	is.Equal(tr.text(), "selamat pagi apa kabar lagi")

	tr.reset()
	is.Equal(tr.display(), "")
	is.Equal(tr.finalized, 0)
}

func TestTranscript_BlankFinal(t *testing.T) {
	is := is.New(t)
	var tr transcript

	changed, final := tr.apply(0, []stt.Result{stt.FinalResult("   "), {IsFinal: true}})
	is.True(changed && final)
	is.Equal(tr.text(), "")
	is.Equal(tr.finalized, 2)
}
