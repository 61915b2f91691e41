package capture

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/murmurlabs/murmur-core/internal/audio"
)

// ScriptedRecorder fakes the capture collaborator: Stop materializes a
// short silent WAV file. Used by tests and by dry-run setups without a
// sound card.
type ScriptedRecorder struct {
	// Dir receives the generated WAV files.
	Dir string
	// FailStart makes Start return an error.
	FailStart bool
	// OmitFile makes Stop skip writing the WAV, simulating a capture that
	// never produced output.
	OmitFile bool

	mu        sync.Mutex
	recording bool
	device    string
	starts    int
	cancels   int
}

func (r *ScriptedRecorder) Start(_ context.Context, device string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailStart {
		return fmt.Errorf("scripted capture start failure")
	}
	if r.recording {
		return fmt.Errorf("capture already running")
	}
	r.recording = true
	r.device = device
	r.starts++
	return nil
}

func (r *ScriptedRecorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return "", ErrNotRecording
	}
	r.recording = false

	path := filepath.Join(r.Dir, fmt.Sprintf("scripted_%d.wav", time.Now().UnixNano()))
	if r.OmitFile {
		return "", fmt.Errorf("capture produced no file at %s", path)
	}
	if err := audio.EncodePCM(path, audio.Silence(1600), 16000, 1); err != nil {
		return "", err
	}
	return path, nil
}

func (r *ScriptedRecorder) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return ErrNotRecording
	}
	r.recording = false
	r.cancels++
	return nil
}

// Recording reports whether a scripted capture is active.
func (r *ScriptedRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Cancels returns how many times Cancel succeeded.
func (r *ScriptedRecorder) Cancels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancels
}
