// Package feedback surfaces session side effects to the user. The engine
// publishes cues; a desktop collaborator turns them into sounds.
package feedback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/protocol"
)

// Kind names one feedback cue.
type Kind string

const (
	RecordingStarted Kind = "recording_started"
	RecordingStopped Kind = "recording_stopped"
	Transcribing     Kind = "transcribing"
	Completed        Kind = "completed"
	Error            Kind = "error"
	Cancelled        Kind = "cancelled"
)

// Player receives feedback cues.
type Player interface {
	Play(kind Kind)
}

// BusPlayer publishes cues for the sound-player collaborator. Publish
// failures are logged; feedback never affects the session outcome.
type BusPlayer struct {
	bus *bus.Client
	log *slog.Logger
}

func NewBusPlayer(busClient *bus.Client, log *slog.Logger) *BusPlayer {
	return &BusPlayer{
		bus: busClient,
		log: log.With(slog.String("component", "feedback")),
	}
}

func (p *BusPlayer) Play(kind Kind) {
	event := protocol.FeedbackEvent{Kind: string(kind), At: time.Now().UTC()}
	if err := p.bus.PublishJSON(protocol.SubjectFeedbackPlay, event); err != nil {
		p.log.Warn("failed to publish feedback", slog.String("error", err.Error()))
	}
}

// NopPlayer drops cues. Used when the bus is disabled.
type NopPlayer struct{}

func (NopPlayer) Play(Kind) {}

// RecordingPlayer captures cues for tests.
type RecordingPlayer struct {
	mu    sync.Mutex
	kinds []Kind
}

func (p *RecordingPlayer) Play(kind Kind) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
}

// Kinds returns every cue seen so far.
func (p *RecordingPlayer) Kinds() []Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Kind(nil), p.kinds...)
}
