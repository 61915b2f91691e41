// Package delivery hands finished transcripts to the text-injector
// collaborator, which pastes them into the focused application.
package delivery

import (
	"log/slog"
	"sync"
	"time"

	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/protocol"
)

// Sink receives transcripts. Delivery is fire-and-forget; the engine never
// consumes a return value.
type Sink interface {
	Deliver(sessionID, provider, text string)
}

// BusSink publishes transcripts on the delivery subject.
type BusSink struct {
	bus *bus.Client
	log *slog.Logger
}

func NewBusSink(busClient *bus.Client, log *slog.Logger) *BusSink {
	return &BusSink{
		bus: busClient,
		log: log.With(slog.String("component", "delivery")),
	}
}

func (s *BusSink) Deliver(sessionID, provider, text string) {
	event := protocol.DeliveryEvent{
		SessionID: sessionID,
		Provider:  provider,
		Text:      text,
		At:        time.Now().UTC(),
	}
	if err := s.bus.PublishJSON(protocol.SubjectDeliveryText, event); err != nil {
		s.log.Warn("failed to publish delivery", slog.String("error", err.Error()))
	}
}

// NopSink drops transcripts. Used when the bus is disabled.
type NopSink struct{}

func (NopSink) Deliver(string, string, string) {}

// RecordingSink captures deliveries for tests.
type RecordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *RecordingSink) Deliver(_, _, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
}

// Texts returns every delivered transcript so far.
func (s *RecordingSink) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}
