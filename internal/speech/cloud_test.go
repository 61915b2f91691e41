package speech

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTestAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake wav payload"), 0o644); err != nil {
		t.Fatalf("write test audio: %v", err)
	}
	return path
}

func newTestBackend(t *testing.T, endpoint string) *CloudBackend {
	t.Helper()
	backend, err := NewCloudBackend(ProviderOpenAI, CloudOptions{
		APIKey:   "sk-test",
		Endpoint: endpoint,
	}, testLogger())
	if err != nil {
		t.Fatalf("new cloud backend: %v", err)
	}
	return backend
}

func TestCloudBackendSuccess(t *testing.T) {
	var gotAuth string
	var gotForm map[string]string
	var gotFilename, gotFileType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotForm = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			gotForm[key] = values[0]
		}
		if files := r.MultipartForm.File["file"]; len(files) == 1 {
			gotFilename = files[0].Filename
			gotFileType = files[0].Header.Get("Content-Type")
		}
		w.Write([]byte(`{"text":"hello"}`))
	}))
	defer server.Close()

	backend := newTestBackend(t, server.URL)
	text, err := backend.Transcribe(context.Background(), Request{
		AudioPath: writeTestAudio(t),
		Prompt:    "Professional tone.",
		Language:  "en",
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "hello" {
		t.Fatalf("expected %q, got %q", "hello", text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotForm["model"] != OpenAIModel {
		t.Fatalf("expected model %q, got %q", OpenAIModel, gotForm["model"])
	}
	if gotForm["prompt"] != "Professional tone." || gotForm["language"] != "en" {
		t.Fatalf("unexpected form fields: %v", gotForm)
	}
	if gotFilename != "audio.wav" || gotFileType != "audio/wav" {
		t.Fatalf("unexpected file part: %q %q", gotFilename, gotFileType)
	}
}

func TestCloudBackendOmitsEmptyOptionalFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if _, ok := r.MultipartForm.Value["prompt"]; ok {
			t.Error("prompt field must be omitted when empty")
		}
		if _, ok := r.MultipartForm.Value["language"]; ok {
			t.Error("language field must be omitted when empty")
		}
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	backend := newTestBackend(t, server.URL)
	if _, err := backend.Transcribe(context.Background(), Request{AudioPath: writeTestAudio(t)}); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
}

func TestCloudBackendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer server.Close()

	backend := newTestBackend(t, server.URL)
	_, err := backend.Transcribe(context.Background(), Request{AudioPath: writeTestAudio(t)})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "bad key" {
		t.Fatalf("expected message %q, got %q", "bad key", apiErr.Message)
	}
}

func TestCloudBackendInvalidResponseFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	backend := newTestBackend(t, server.URL)
	_, err := backend.Transcribe(context.Background(), Request{AudioPath: writeTestAudio(t)})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestCloudBackendMalformedJSONIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	}))
	defer server.Close()

	backend := newTestBackend(t, server.URL)
	_, err := backend.Transcribe(context.Background(), Request{AudioPath: writeTestAudio(t)})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestCloudBackendConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	backend := newTestBackend(t, server.URL)
	_, err := backend.Transcribe(context.Background(), Request{AudioPath: writeTestAudio(t)})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestCloudBackendMissingAudioFile(t *testing.T) {
	backend := newTestBackend(t, "http://127.0.0.1:0")
	_, err := backend.Transcribe(context.Background(), Request{AudioPath: "/does/not/exist.wav"})
	if !errors.Is(err, ErrAudioFileMissing) {
		t.Fatalf("expected ErrAudioFileMissing, got %v", err)
	}
}

func TestNewCloudBackendRequiresKey(t *testing.T) {
	_, err := NewCloudBackend(ProviderGroq, CloudOptions{}, testLogger())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	if _, err := NewCloudBackend(ProviderLocal, CloudOptions{APIKey: "x"}, testLogger()); err == nil {
		t.Fatal("expected error for non-cloud provider")
	}
}

func TestGroqDefaults(t *testing.T) {
	backend, err := NewCloudBackend(ProviderGroq, CloudOptions{APIKey: "gsk-test"}, testLogger())
	if err != nil {
		t.Fatalf("new groq backend: %v", err)
	}
	if backend.endpoint != GroqEndpoint || backend.model != GroqModel {
		t.Fatalf("unexpected defaults: %s %s", backend.endpoint, backend.model)
	}
}
