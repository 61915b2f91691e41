// Package history keeps the bounded transcript log: a serialized record
// list plus one WAV file per record, with retranscription against the
// stored audio.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmurlabs/murmur-core/internal/speech"
)

// DefaultMaxRecords is the capacity bound of the store.
const DefaultMaxRecords = 50

const recordsFileName = "records.json"

// EvictionPolicy names which record is dropped when a save would exceed
// capacity. EvictOldest is the default; EvictMostRecent drops the newest
// record instead and stays available until product settles the question.
type EvictionPolicy string

const (
	EvictOldest     EvictionPolicy = "evict-oldest"
	EvictMostRecent EvictionPolicy = "evict-most-recent"
)

// Valid reports whether p names a known policy.
func (p EvictionPolicy) Valid() bool {
	return p == EvictOldest || p == EvictMostRecent
}

// Record is one past transcription. Its audio lives in the store's audio
// directory under AudioFileName, derived from the record id.
type Record struct {
	ID            uuid.UUID       `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Text          string          `json:"text"`
	Provider      speech.Provider `json:"provider"`
	AudioFileName string          `json:"audio_file_name"`
}

// Transcriber re-runs transcription for a provider against a stored audio
// file. The session dispatcher implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, provider speech.Provider, audioPath string) (string, error)
}

// Options configures a Store.
type Options struct {
	// Directory holds records.json and the audio/ subdirectory.
	Directory string
	// MaxRecords bounds the store; DefaultMaxRecords when zero.
	MaxRecords int
	// Eviction picks the record dropped at capacity; EvictOldest when
	// empty.
	Eviction EvictionPolicy
}

// Store persists transcript records. Mutations are serialized by the store
// mutex; audio file copies and deletions run on a single-worker queue so a
// UI-driven read never waits on disk I/O.
type Store struct {
	dir        string
	audioDir   string
	maxRecords int
	policy     EvictionPolicy
	logger     *slog.Logger

	mu      sync.Mutex
	records []Record
	closed  bool

	jobs chan func()
	wg   sync.WaitGroup

	clock func() time.Time
	newID func() uuid.UUID
}

func Open(opts Options, logger *slog.Logger) (*Store, error) {
	if opts.Directory == "" {
		return nil, fmt.Errorf("history directory must not be empty")
	}
	maxRecords := opts.MaxRecords
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	policy := opts.Eviction
	if policy == "" {
		policy = EvictOldest
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown eviction policy %q", policy)
	}

	audioDir := filepath.Join(opts.Directory, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	s := &Store{
		dir:        opts.Directory,
		audioDir:   audioDir,
		maxRecords: maxRecords,
		policy:     policy,
		logger:     logger.With(slog.String("component", "history")),
		jobs:       make(chan func(), 16),
		clock:      time.Now,
		newID:      uuid.New,
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for job := range s.jobs {
			job()
		}
	}()

	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, recordsFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history records: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return fmt.Errorf("decode history records: %w", err)
	}
	return nil
}

// Close drains the file queue and blocks until queued audio work finishes.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()
	s.wg.Wait()
}

// Flush blocks until every file operation queued so far has completed.
func (s *Store) Flush() {
	done := make(chan struct{})
	if !s.enqueue(func() { close(done) }) {
		return
	}
	<-done
}

func (s *Store) enqueue(job func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.jobs <- job
	return true
}

// Save appends a new record for a successful transcription and copies the
// source audio into the store. The copy is asynchronous; its failure is
// logged, never propagated, so a record can exist without its audio file.
// When the store is full, exactly one record is evicted per the policy.
func (s *Store) Save(text string, provider speech.Provider, audioSourcePath string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Record{}, fmt.Errorf("history store is closed")
	}

	if len(s.records) >= s.maxRecords {
		s.evictLocked()
	}

	id := s.newID()
	record := Record{
		ID:            id,
		Timestamp:     s.clock().UTC(),
		Text:          text,
		Provider:      provider,
		AudioFileName: "transcript_" + id.String() + ".wav",
	}
	s.records = append(s.records, record)

	destination := filepath.Join(s.audioDir, record.AudioFileName)
	s.jobs <- func() {
		if err := copyFile(audioSourcePath, destination); err != nil {
			s.logger.Warn("failed to save audio copy",
				slog.String("record_id", id.String()),
				slog.String("error", err.Error()))
			return
		}
		s.logger.Debug("audio saved", slog.String("path", destination))
	}

	if err := s.persistLocked(); err != nil {
		return record, err
	}
	return record, nil
}

// evictLocked removes exactly one record per the configured policy and
// queues the deletion of its audio file.
func (s *Store) evictLocked() {
	if len(s.records) == 0 {
		return
	}
	ordered := s.sortedLocked()
	victim := ordered[len(ordered)-1]
	if s.policy == EvictMostRecent {
		victim = ordered[0]
	}
	s.removeLocked(victim.ID)
	s.logger.Info("history record evicted",
		slog.String("record_id", victim.ID.String()),
		slog.String("policy", string(s.policy)))
}

// GetAll returns every record, most recent first.
func (s *Store) GetAll() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// GetRecent returns up to limit records, most recent first.
func (s *Store) GetRecent(limit int) []Record {
	all := s.GetAll()
	if limit < 0 {
		limit = 0
	}
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}

// Get returns the record with the given id.
func (s *Store) Get(id uuid.UUID) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range s.records {
		if record.ID == id {
			return record, true
		}
	}
	return Record{}, false
}

// Delete removes a record and queues the deletion of its audio file. It is
// a no-op when the id is unknown.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, record := range s.records {
		if record.ID == id {
			found = true
			break
		}
	}
	if !found {
		return nil
	}
	s.removeLocked(id)
	return s.persistLocked()
}

// removeLocked drops the record from memory and queues the audio deletion.
func (s *Store) removeLocked(id uuid.UUID) {
	for i, record := range s.records {
		if record.ID != id {
			continue
		}
		path := filepath.Join(s.audioDir, record.AudioFileName)
		s.records = append(s.records[:i], s.records[i+1:]...)
		if !s.closed {
			s.jobs <- func() {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					s.logger.Warn("failed to delete audio file",
						slog.String("path", path),
						slog.String("error", err.Error()))
				}
			}
		}
		return
	}
}

// AudioPath returns the on-disk location of a record's audio.
func (s *Store) AudioPath(record Record) string {
	return filepath.Join(s.audioDir, record.AudioFileName)
}

// Retranscribe re-runs transcription against the stored audio file. The
// original record is never modified; the new text is only returned. The
// stored file must still exist.
func (s *Store) Retranscribe(ctx context.Context, record Record, provider speech.Provider, transcriber Transcriber) (string, error) {
	path := s.AudioPath(record)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", speech.ErrAudioFileMissing, record.AudioFileName)
		}
		return "", fmt.Errorf("stat stored audio: %w", err)
	}
	return transcriber.Transcribe(ctx, provider, path)
}

func (s *Store) sortedLocked() []Record {
	out := append([]Record(nil), s.records...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history records: %w", err)
	}
	path := filepath.Join(s.dir, recordsFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history records: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace history records: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
