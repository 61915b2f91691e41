package speech

import (
	"errors"
	"fmt"
)

// Terminal error kinds for a session or request. None of these are retried
// automatically; the caller must start a new session.
var (
	// ErrConfiguration marks a provider that requires an API key but has
	// none configured. Detected before any capture work starts.
	ErrConfiguration = errors.New("provider not configured")

	// ErrCapture marks audio capture that failed to start or produced no
	// file after stopping.
	ErrCapture = errors.New("audio capture failed")

	// ErrNoSpeech marks an empty or blank-audio transcription.
	ErrNoSpeech = errors.New("no speech detected")

	// ErrNetwork marks a transport-level failure: connection error, empty
	// body, or a response that is not JSON at all.
	ErrNetwork = errors.New("transport failure")

	// ErrInvalidResponse marks a well-formed JSON response that carries
	// neither a text nor an error field.
	ErrInvalidResponse = errors.New("invalid response format")

	// ErrAudioFileMissing marks a retranscription target whose stored
	// audio file no longer exists.
	ErrAudioFileMissing = errors.New("audio file not found")
)

// APIError is a structured error returned by a cloud provider.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return "api error: " + e.Message
}

// LaunchError wraps a failure to run the local recognition executable.
type LaunchError struct {
	Err    error
	Stderr string
}

func (e *LaunchError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("recognizer process failed: %v: %s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("recognizer process failed: %v", e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
