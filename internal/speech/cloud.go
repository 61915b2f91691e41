package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"
)

// Provider defaults. Endpoint and model can be overridden in configuration
// for self-hosted gateways and tests.
const (
	OpenAIEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	OpenAIModel    = "whisper-1"
	GroqEndpoint   = "https://api.groq.com/openai/v1/audio/transcriptions"
	GroqModel      = "whisper-large-v3"
)

const defaultCloudTimeout = 60 * time.Second

// CloudOptions configures one cloud transcription backend.
type CloudOptions struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

// CloudBackend uploads a WAV file to a provider's transcription endpoint.
// OpenAI and Groq share the wire shape; only endpoint, model, and key
// differ.
type CloudBackend struct {
	provider Provider
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
	logger   *slog.Logger
}

func NewCloudBackend(provider Provider, opts CloudOptions, logger *slog.Logger) (*CloudBackend, error) {
	if !provider.RequiresAPIKey() {
		return nil, fmt.Errorf("provider %q is not a cloud provider", provider)
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: %s API key not configured", ErrConfiguration, provider.DisplayName())
	}

	endpoint := opts.Endpoint
	model := opts.Model
	switch provider {
	case ProviderOpenAI:
		if endpoint == "" {
			endpoint = OpenAIEndpoint
		}
		if model == "" {
			model = OpenAIModel
		}
	case ProviderGroq:
		if endpoint == "" {
			endpoint = GroqEndpoint
		}
		if model == "" {
			model = GroqModel
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultCloudTimeout
	}

	return &CloudBackend{
		provider: provider,
		endpoint: endpoint,
		model:    model,
		apiKey:   opts.APIKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With(slog.String("component", "cloud-backend"), slog.String("provider", string(provider))),
	}, nil
}

type cloudResponse struct {
	Text  *string        `json:"text"`
	Error *cloudAPIError `json:"error"`
}

type cloudAPIError struct {
	Message string `json:"message"`
}

func (b *CloudBackend) Transcribe(ctx context.Context, req Request) (string, error) {
	audio, err := os.Open(req.AudioPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrAudioFileMissing, req.AudioPath)
		}
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer audio.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	// Part order matters to some gateways: model, file, then the optional
	// prompt and language fields.
	if err := mw.WriteField("model", b.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	fileHeader.Set("Content-Type", "audio/wav")
	fw, err := mw.CreatePart(fileHeader)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(fw, audio); err != nil {
		return "", fmt.Errorf("copy audio into request: %w", err)
	}

	if req.Prompt != "" {
		if err := mw.WriteField("prompt", req.Prompt); err != nil {
			return "", fmt.Errorf("write prompt field: %w", err)
		}
	}
	if req.Language != "" {
		if err := mw.WriteField("language", req.Language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty response body", ErrNetwork)
	}

	// API-level failures arrive with non-2xx status but still as JSON with
	// an error object, so the body is parsed before the status is judged.
	var parsed cloudResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrNetwork, err)
	}

	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", &APIError{Message: parsed.Error.Message}
	}
	if parsed.Text != nil {
		b.logger.Debug("transcription received",
			slog.Int("status", resp.StatusCode),
			slog.Duration("latency", time.Since(start)))
		return *parsed.Text, nil
	}
	return "", ErrInvalidResponse
}
