package speech

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

// Sentinel whisper-cli prints when it hears nothing.
const blankAudioSentinel = "[BLANK_AUDIO]"

// Stdout lines containing any of these markers are diagnostics, not
// transcription. Matched as case-sensitive substrings.
var whisperNoiseMarkers = []string{
	"whisper_",
	"ggml_",
	"system_info",
	"main:",
	"GPU",
	"Metal",
	"MB",
}

// WhisperOptions configures the local whisper-cli backend.
type WhisperOptions struct {
	// Command is the executable, optionally with leading wrapper arguments
	// ("nice -n 10 whisper-cli"). Parsed with shell word splitting.
	Command string
	// ModelPath is passed as -m.
	ModelPath string
	// FallbackLanguage is used when the request carries no language code.
	FallbackLanguage string
}

// WhisperBackend invokes whisper-cli on a WAV file and parses its stdout.
// Invocations are serialized; whisper-cli keeps the whole model in memory
// and running two at once doubles that.
type WhisperBackend struct {
	cmd       []string
	modelPath string
	fallback  string
	logger    *slog.Logger
	mu        sync.Mutex
}

func NewWhisperBackend(opts WhisperOptions, logger *slog.Logger) (*WhisperBackend, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("parse whisper command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("whisper command is empty")
	}
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("whisper model path is empty")
	}
	fallback := opts.FallbackLanguage
	if fallback == "" {
		fallback = "en"
	}
	return &WhisperBackend{
		cmd:       args,
		modelPath: opts.ModelPath,
		fallback:  fallback,
		logger:    logger.With(slog.String("component", "whisper-backend")),
	}, nil
}

func (b *WhisperBackend) Transcribe(ctx context.Context, req Request) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	language := req.Language
	if language == "" {
		language = b.fallback
	}

	args := append([]string{}, b.cmd[1:]...)
	args = append(args,
		"-m", b.modelPath,
		"-f", req.AudioPath,
		"-nt",
		"-l", language,
		"-np",
	)

	command := exec.CommandContext(ctx, b.cmd[0], args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr

	b.logger.Debug("running recognizer",
		slog.String("audio", req.AudioPath),
		slog.String("language", language))

	if err := command.Run(); err != nil {
		return "", &LaunchError{Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}

	// Stderr carries model loading chatter; it is never parsed for results.
	if diag := strings.TrimSpace(stderr.String()); diag != "" {
		b.logger.Debug("recognizer diagnostics", slog.String("stderr", diag))
	}

	text := parseWhisperOutput(stdout.String())
	if text == "" || text == blankAudioSentinel {
		return "", ErrNoSpeech
	}
	return text, nil
}

// parseWhisperOutput extracts the transcription from whisper-cli stdout:
// lines are trimmed, empty lines and diagnostic lines (leading '[' or any
// noise marker) are discarded, and the rest are joined with single spaces.
func parseWhisperOutput(output string) string {
	var kept []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "[") || containsNoiseMarker(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, " ")
}

func containsNoiseMarker(line string) bool {
	for _, marker := range whisperNoiseMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}
