package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/murmurlabs/murmur-core/internal/audio"
	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/prompt"
	"github.com/murmurlabs/murmur-core/internal/speech"
)

// Dispatcher maps the configured provider to a backend, coordinates the
// audio-capture collaborator, and builds the prompt and language inputs for
// cloud requests.
type Dispatcher struct {
	provider   speech.Provider
	backends   map[speech.Provider]speech.Backend
	recorder   capture.Recorder
	composer   *prompt.Composer
	template   prompt.Template
	customText string
	language   prompt.Language
	device     string
	logger     *slog.Logger
}

// DispatcherOptions carries the provider configuration read at startup.
type DispatcherOptions struct {
	Provider   speech.Provider
	Backends   map[speech.Provider]speech.Backend
	Recorder   capture.Recorder
	Composer   *prompt.Composer
	Template   prompt.Template
	CustomText string
	Language   prompt.Language
	Device     string
}

func NewDispatcher(opts DispatcherOptions, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider:   opts.Provider,
		backends:   opts.Backends,
		recorder:   opts.Recorder,
		composer:   opts.Composer,
		template:   opts.Template,
		customText: opts.CustomText,
		language:   opts.Language,
		device:     opts.Device,
		logger:     logger.With(slog.String("component", "dispatcher")),
	}
}

// Provider returns the configured provider.
func (d *Dispatcher) Provider() speech.Provider {
	return d.provider
}

// Validate checks the provider preconditions that must hold before any
// capture work starts. Cloud providers without a registered backend (no
// API key) fail here.
func (d *Dispatcher) Validate() error {
	if _, ok := d.backends[d.provider]; !ok {
		return fmt.Errorf("%w: %s API key not configured",
			speech.ErrConfiguration, d.provider.DisplayName())
	}
	return nil
}

// StartCapture begins recording via the capture collaborator.
func (d *Dispatcher) StartCapture(ctx context.Context) error {
	if err := d.recorder.Start(ctx, d.device); err != nil {
		return fmt.Errorf("%w: %v", speech.ErrCapture, err)
	}
	return nil
}

// AbortCapture stops the capture collaborator and discards its output.
func (d *Dispatcher) AbortCapture() {
	if err := d.recorder.Cancel(); err != nil {
		d.logger.Warn("capture abort failed", slog.String("error", err.Error()))
	}
}

// StopAndTranscribe ends the capture and runs the configured backend on
// the finished WAV file. It returns the transcription and the capture path
// so the caller can archive the audio.
func (d *Dispatcher) StopAndTranscribe(ctx context.Context) (text string, audioPath string, err error) {
	audioPath, err = d.recorder.Stop()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", speech.ErrCapture, err)
	}
	if _, statErr := os.Stat(audioPath); statErr != nil {
		return "", "", fmt.Errorf("%w: capture file missing: %v", speech.ErrCapture, statErr)
	}
	if info, probeErr := audio.Probe(audioPath); probeErr != nil {
		d.logger.Warn("captured file failed wav probe", slog.String("error", probeErr.Error()))
	} else {
		d.logger.Info("capture finished",
			slog.Duration("duration", info.Duration),
			slog.Int("sample_rate", info.SampleRate))
	}

	backend, ok := d.backends[d.provider]
	if !ok {
		return "", audioPath, fmt.Errorf("%w: %s API key not configured",
			speech.ErrConfiguration, d.provider.DisplayName())
	}

	req := speech.Request{
		AudioPath: audioPath,
		Language:  d.composer.LanguageCode(d.language),
	}
	if d.provider.RequiresAPIKey() {
		req.Prompt = d.composer.Compose(d.template, d.customText, d.language)
	}

	text, err = backend.Transcribe(ctx, req)
	if err != nil {
		return "", audioPath, err
	}
	return text, audioPath, nil
}

// Transcribe runs a specific provider against an existing audio file. This
// is the retranscription path: it carries no prompt or language steering,
// matching a plain re-run of the stored audio.
func (d *Dispatcher) Transcribe(ctx context.Context, provider speech.Provider, audioPath string) (string, error) {
	backend, ok := d.backends[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s API key not configured",
			speech.ErrConfiguration, provider.DisplayName())
	}
	return backend.Transcribe(ctx, speech.Request{AudioPath: audioPath})
}
