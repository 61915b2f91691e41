package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/murmurlabs/murmur-core/internal/speech"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Directory == "" {
		opts.Directory = t.TempDir()
	}
	store, err := Open(opts, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func writeSourceAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.wav")
	if err := os.WriteFile(path, []byte("RIFF payload"), 0o644); err != nil {
		t.Fatalf("write source audio: %v", err)
	}
	return path
}

func TestSaveCopiesAudioAndPersists(t *testing.T) {
	dir := t.TempDir()
	store := openTestStore(t, Options{Directory: dir})

	record, err := store.Save("hello world", speech.ProviderLocal, writeSourceAudio(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Flush()

	if _, err := os.Stat(store.AudioPath(record)); err != nil {
		t.Fatalf("audio copy missing: %v", err)
	}

	// Reopen from disk: the record list must have been persisted.
	store.Close()
	reopened := openTestStore(t, Options{Directory: dir})
	all := reopened.GetAll()
	if len(all) != 1 || all[0].Text != "hello world" {
		t.Fatalf("unexpected records after reopen: %+v", all)
	}
}

func TestSaveSurvivesMissingSourceAudio(t *testing.T) {
	store := openTestStore(t, Options{})

	record, err := store.Save("text", speech.ProviderOpenAI, "/does/not/exist.wav")
	if err != nil {
		t.Fatalf("save must not propagate audio copy failure: %v", err)
	}
	store.Flush()

	if _, err := os.Stat(store.AudioPath(record)); !os.IsNotExist(err) {
		t.Fatalf("expected missing audio copy, got %v", err)
	}
	if len(store.GetAll()) != 1 {
		t.Fatal("record must exist even without its audio file")
	}
}

func TestGetAllOrderedMostRecentFirst(t *testing.T) {
	store := openTestStore(t, Options{})
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tick := now.Add(time.Duration(i) * time.Minute)
		store.clock = func() time.Time { return tick }
		if _, err := store.Save(fmt.Sprintf("record %d", i), speech.ProviderLocal, writeSourceAudio(t)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all := store.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].Text != "record 2" || all[2].Text != "record 0" {
		t.Fatalf("expected descending order, got %+v", all)
	}

	recent := store.GetRecent(2)
	if len(recent) != 2 || recent[0].Text != "record 2" {
		t.Fatalf("unexpected recent records: %+v", recent)
	}
}

func TestCapacityEvictsExactlyOne(t *testing.T) {
	store := openTestStore(t, Options{MaxRecords: 50})
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 50; i++ {
		tick := base.Add(time.Duration(i) * time.Second)
		store.clock = func() time.Time { return tick }
		if _, err := store.Save(fmt.Sprintf("record %d", i), speech.ProviderLocal, writeSourceAudio(t)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	tick := base.Add(time.Hour)
	store.clock = func() time.Time { return tick }
	if _, err := store.Save("record 50", speech.ProviderLocal, writeSourceAudio(t)); err != nil {
		t.Fatalf("save 51st: %v", err)
	}

	all := store.GetAll()
	if len(all) != 50 {
		t.Fatalf("expected exactly 50 records after eviction, got %d", len(all))
	}
	if all[0].Text != "record 50" {
		t.Fatalf("newest record missing after eviction: %+v", all[0])
	}
	// Default policy drops the oldest record.
	for _, record := range all {
		if record.Text == "record 0" {
			t.Fatal("oldest record should have been evicted")
		}
	}
}

// evict-most-recent drops the head of the descending list, i.e. the newest
// record. The policy knob exists so product can decide; this pins the
// alternative behavior until that call is made.
func TestEvictMostRecentPolicy(t *testing.T) {
	store := openTestStore(t, Options{MaxRecords: 2, Eviction: EvictMostRecent})
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		store.clock = func() time.Time { return tick }
		if _, err := store.Save(fmt.Sprintf("record %d", i), speech.ProviderLocal, writeSourceAudio(t)); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	all := store.GetAll()
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	// "record 1" was the most recent when the third save hit capacity.
	if all[0].Text != "record 2" || all[1].Text != "record 0" {
		t.Fatalf("unexpected survivors: %+v", all)
	}
}

func TestDeleteRemovesRecordAndAudio(t *testing.T) {
	store := openTestStore(t, Options{})
	record, err := store.Save("to delete", speech.ProviderLocal, writeSourceAudio(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Flush()

	if err := store.Delete(record.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	store.Flush()

	if len(store.GetAll()) != 0 {
		t.Fatal("record still present after delete")
	}
	if _, err := os.Stat(store.AudioPath(record)); !os.IsNotExist(err) {
		t.Fatalf("audio file still present after delete: %v", err)
	}
}

func TestDeleteUnknownIDIsNoop(t *testing.T) {
	store := openTestStore(t, Options{})
	if _, err := store.Save("keep", speech.ProviderLocal, writeSourceAudio(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(uuid.New()); err != nil {
		t.Fatalf("delete unknown id: %v", err)
	}
	if len(store.GetAll()) != 1 {
		t.Fatal("no-op delete must not change the store")
	}
}

type staticTranscriber struct {
	text string
	err  error

	provider speech.Provider
	path     string
}

func (s *staticTranscriber) Transcribe(_ context.Context, provider speech.Provider, audioPath string) (string, error) {
	s.provider = provider
	s.path = audioPath
	return s.text, s.err
}

func TestRetranscribeUsesStoredAudio(t *testing.T) {
	store := openTestStore(t, Options{})
	record, err := store.Save("original", speech.ProviderLocal, writeSourceAudio(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Flush()

	transcriber := &staticTranscriber{text: "second pass"}
	text, err := store.Retranscribe(context.Background(), record, speech.ProviderGroq, transcriber)
	if err != nil {
		t.Fatalf("retranscribe: %v", err)
	}
	if text != "second pass" {
		t.Fatalf("unexpected text %q", text)
	}
	if transcriber.provider != speech.ProviderGroq {
		t.Fatalf("unexpected provider %q", transcriber.provider)
	}
	if transcriber.path != store.AudioPath(record) {
		t.Fatalf("expected stored audio path, got %q", transcriber.path)
	}

	// The original record is untouched.
	got, ok := store.Get(record.ID)
	if !ok || got.Text != "original" {
		t.Fatalf("original record modified: %+v", got)
	}
}

func TestRetranscribeMissingAudio(t *testing.T) {
	store := openTestStore(t, Options{})
	record, err := store.Save("original", speech.ProviderLocal, writeSourceAudio(t))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	store.Flush()
	if err := os.Remove(store.AudioPath(record)); err != nil {
		t.Fatalf("remove audio: %v", err)
	}

	_, err = store.Retranscribe(context.Background(), record, speech.ProviderLocal, &staticTranscriber{})
	if !errors.Is(err, speech.ErrAudioFileMissing) {
		t.Fatalf("expected ErrAudioFileMissing, got %v", err)
	}
	if got, ok := store.Get(record.ID); !ok || got.Text != "original" {
		t.Fatalf("original record must be unchanged, got %+v", got)
	}
}
