package console

import (
	"testing"

	sttconsole "github.com/chriscow/utero-voice/pkg/ai/stt/console"
	ttsconsole "github.com/chriscow/utero-voice/pkg/ai/tts/console"
	"github.com/chriscow/utero-voice/pkg/plugin"
	"github.com/matryer/is"
)

func TestRegistered(t *testing.T) {
	is := is.New(t)

	capture, err := plugin.NewCapture("console", nil)
	is.NoErr(err)
	c, ok := capture.(*sttconsole.Capture)
	is.True(ok)
	defer c.Close()

	playback, err := plugin.NewPlayback("console", map[string]any{"word_delay": "10ms"})
	is.NoErr(err)
	p, ok := playback.(*ttsconsole.Playback)
	is.True(ok)
	defer p.Close()

	_, err = plugin.NewPlayback("console", map[string]any{"word_delay": "pelan"})
	is.True(err != nil) // bad duration
}
