package stt

import (
	"testing"

	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/matryer/is"
)

func TestErrorCode_Classification(t *testing.T) {
	tests := []struct {
		code        ErrorCode
		benign      bool
		recoverable bool
	}{
		{ErrorNoSpeech, true, false},
		{ErrorAborted, true, false},
		{ErrorNetwork, false, true},
		{ErrorNotAllowed, false, false},
		{ErrorAudioCapture, false, false},
		{ErrorCode("something-new"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			is := is.New(t)
			is.Equal(tt.code.Benign(), tt.benign)
			is.Equal(ai.IsRecoverable(tt.code.Err()), tt.recoverable)
			is.Equal(ai.IsFatal(tt.code.Err()), !tt.recoverable)
		})
	}
}

func TestParseErrorCode(t *testing.T) {
	is := is.New(t)
	is.Equal(ParseErrorCode(" Network "), ErrorNetwork)
	is.Equal(ParseErrorCode("not-allowed"), ErrorNotAllowed)
}

func TestResult_Transcript(t *testing.T) {
	is := is.New(t)
	is.Equal(Result{}.Transcript(), "")
	r := Result{Alternatives: []Alternative{{Transcript: "halo"}, {Transcript: "hallo"}}}
	is.Equal(r.Transcript(), "halo") // only the top alternative is used
	is.True(FinalResult("x").IsFinal)
	is.True(!InterimResult("x").IsFinal)
}
