package session

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/murmurlabs/murmur-core/internal/speech"
)

// metrics holds the session instruments. Instrument creation failures are
// logged once and leave the corresponding instrument nil; recording on a
// nil instrument is skipped.
type metrics struct {
	sessionsStarted  metric.Int64Counter
	sessionsFinished metric.Int64Counter
	transcribeTime   metric.Float64Histogram
}

func newMetrics(logger *slog.Logger) *metrics {
	meter := otel.Meter("murmur-core/session")
	m := &metrics{}

	var err error
	m.sessionsStarted, err = meter.Int64Counter("murmur_sessions_started_total",
		metric.WithDescription("Recording sessions started"))
	if err != nil {
		logger.Warn("failed to create session counter", slog.String("error", err.Error()))
	}
	m.sessionsFinished, err = meter.Int64Counter("murmur_sessions_finished_total",
		metric.WithDescription("Recording sessions finished, by outcome"))
	if err != nil {
		logger.Warn("failed to create session counter", slog.String("error", err.Error()))
	}
	m.transcribeTime, err = meter.Float64Histogram("murmur_transcription_seconds",
		metric.WithDescription("Wall time of the transcription phase"),
		metric.WithUnit("s"))
	if err != nil {
		logger.Warn("failed to create transcription histogram", slog.String("error", err.Error()))
	}
	return m
}

func (m *metrics) sessionStarted(ctx context.Context, provider speech.Provider) {
	if m.sessionsStarted == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", string(provider))))
}

func (m *metrics) sessionFinished(ctx context.Context, provider speech.Provider, elapsed time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", string(provider)),
		attribute.String("outcome", outcome))
	if m.sessionsFinished != nil {
		m.sessionsFinished.Add(ctx, 1, attrs)
	}
	if m.transcribeTime != nil {
		m.transcribeTime.Record(ctx, elapsed.Seconds(), attrs)
	}
}
