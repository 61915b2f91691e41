package speech

import (
	"context"
)

// Provider identifies a transcription backend implementation.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderOpenAI Provider = "openai"
	ProviderGroq   Provider = "groq"
)

// RequiresAPIKey reports whether the provider needs a configured API key
// before any capture work may start.
func (p Provider) RequiresAPIKey() bool {
	switch p {
	case ProviderOpenAI, ProviderGroq:
		return true
	default:
		return false
	}
}

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderLocal, ProviderOpenAI, ProviderGroq:
		return true
	default:
		return false
	}
}

// DisplayName returns the user-facing provider name.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderLocal:
		return "Local Whisper"
	case ProviderOpenAI:
		return "OpenAI"
	case ProviderGroq:
		return "Groq"
	default:
		return string(p)
	}
}

// Request carries one transcription invocation. Prompt and Language are
// optional; backends that do not understand them ignore them.
type Request struct {
	AudioPath string
	Prompt    string
	Language  string
}

// Backend is the audio-in, text-out transcription contract shared by the
// local subprocess and the cloud providers.
type Backend interface {
	Transcribe(ctx context.Context, req Request) (string, error)
}
