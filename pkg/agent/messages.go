package agent

import "github.com/chriscow/utero-voice/pkg/ai/stt"

// Messages holds the user-facing strings. Empty fields fall back to
// DefaultMessages.
type Messages struct {
	Apology          string `json:"apology" toml:"apology"`
	NoAnswer         string `json:"noAnswer" toml:"no_answer"`
	NetworkExhausted string `json:"networkExhausted" toml:"network_exhausted"`
	PermissionDenied string `json:"permissionDenied" toml:"permission_denied"`
	NoMicrophone     string `json:"noMicrophone" toml:"no_microphone"`
	Unsupported      string `json:"unsupported" toml:"unsupported"`
	Generic          string `json:"generic" toml:"generic"`
}

// DefaultMessages are the Indonesian strings shown to the user.
var DefaultMessages = Messages{
	Apology:          "Maaf, terjadi kesalahan saat memproses permintaan Anda. Silakan coba lagi.",
	NoAnswer:         "Maaf, saya tidak dapat memberikan jawaban saat ini.",
	NetworkExhausted: "Koneksi jaringan bermasalah. Periksa koneksi internet Anda lalu coba lagi.",
	PermissionDenied: "Akses mikrofon ditolak. Izinkan akses mikrofon untuk menggunakan fitur suara.",
	NoMicrophone:     "Mikrofon tidak ditemukan. Pastikan mikrofon terhubung dengan benar.",
	Unsupported:      "Pengenalan suara tidak didukung di perangkat atau bahasa ini.",
	Generic:          "Terjadi kesalahan pada pengenalan suara",
}

func (m Messages) withDefaults() Messages {
	fill := func(s *string, def string) {
		if *s == "" {
			*s = def
		}
	}
	fill(&m.Apology, DefaultMessages.Apology)
	fill(&m.NoAnswer, DefaultMessages.NoAnswer)
	fill(&m.NetworkExhausted, DefaultMessages.NetworkExhausted)
	fill(&m.PermissionDenied, DefaultMessages.PermissionDenied)
	fill(&m.NoMicrophone, DefaultMessages.NoMicrophone)
	fill(&m.Unsupported, DefaultMessages.Unsupported)
	fill(&m.Generic, DefaultMessages.Generic)
	return m
}

// forCaptureError returns the message for a capture failure that ended a session.
func (m Messages) forCaptureError(code stt.ErrorCode) string {
	switch code {
	case stt.ErrorNetwork:
		return m.NetworkExhausted
	case stt.ErrorNotAllowed, stt.ErrorServiceNotAllowed:
		return m.PermissionDenied
	case stt.ErrorAudioCapture:
		return m.NoMicrophone
	case stt.ErrorUnsupported, stt.ErrorLanguageNotSupported:
		return m.Unsupported
	case "":
		return m.Generic
	default:
		return m.Generic + " (" + string(code) + ")"
	}
}
