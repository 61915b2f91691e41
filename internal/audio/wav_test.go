package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeAndProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := EncodePCM(path, Silence(16000), 16000, 1); err != nil {
		t.Fatalf("encode: %v", err)
	}

	info, err := Probe(path)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitDepth != 16 {
		t.Fatalf("unexpected format: %+v", info)
	}
	if info.Duration.Seconds() < 0.9 || info.Duration.Seconds() > 1.1 {
		t.Fatalf("expected ~1s of audio, got %v", info.Duration)
	}
}

func TestProbeRejectsNonWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not.wav")
	if err := os.WriteFile(path, []byte("plain text"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Probe(path); err == nil {
		t.Fatal("expected error for non-wav file")
	}
}

func TestProbeMissingFile(t *testing.T) {
	if _, err := Probe(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
