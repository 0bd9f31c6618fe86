package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"", slog.LevelInfo, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			is := is.New(t)
			got, err := ParseLevel(tt.in)
			is.Equal(err == nil, tt.ok)
			is.Equal(got, tt.want)
		})
	}
}

func TestSetup(t *testing.T) {
	is := is.New(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, err := Setup("warn", FormatJSON, &buf)
	is.NoErr(err)

	logger.Info("Hidden")
	slog.Warn("Capture retry scheduled", slog.Int("attempt", 2))

	line := strings.TrimSpace(buf.String())
	is.True(!strings.Contains(line, "Hidden")) // below level
	var rec map[string]any
	is.NoErr(json.Unmarshal([]byte(line), &rec))
	is.Equal(rec["msg"], "Capture retry scheduled")
	is.Equal(rec["attempt"], float64(2))

	buf.Reset()
	logger, err = Setup("debug", FormatConsole, &buf)
	is.NoErr(err)
	logger.Debug("State transition", slog.String("from", "idle"), slog.String("to", "listening"))
	is.True(strings.Contains(buf.String(), `msg="State transition" from=idle to=listening`))

	_, err = Setup("loud", FormatJSON, &buf)
	is.True(err != nil)
}
