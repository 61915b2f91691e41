// Package session drives one dictation session at a time through the
// Idle, Recording, and Transcribing states and fans the outcome out to
// history, delivery, and feedback.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/murmurlabs/murmur-core/internal/delivery"
	"github.com/murmurlabs/murmur-core/internal/eventlog"
	"github.com/murmurlabs/murmur-core/internal/feedback"
	"github.com/murmurlabs/murmur-core/internal/history"
)

// State is the controller's current phase.
type State string

const (
	StateIdle         State = "idle"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
)

// DefaultTranscribeTimeout bounds one backend run.
const DefaultTranscribeTimeout = 60 * time.Second

// ControllerOptions wires the controller's collaborators.
type ControllerOptions struct {
	Dispatcher *Dispatcher
	History    *history.Store
	EventLog   *eventlog.Store
	Feedback   feedback.Player
	Delivery   delivery.Sink
	// TranscribeTimeout bounds one backend run; DefaultTranscribeTimeout
	// when zero.
	TranscribeTimeout time.Duration
}

// Controller is the single-session state machine. Start, Stop, and Cancel
// are safe to call from any goroutine; at most one session is active.
type Controller struct {
	dispatcher *Dispatcher
	history    *history.Store
	events     *eventlog.Store
	feedback   feedback.Player
	delivery   delivery.Sink
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	state     State
	sessionID uuid.UUID
}

func NewController(parent context.Context, opts ControllerOptions, logger *slog.Logger) *Controller {
	timeout := opts.TranscribeTimeout
	if timeout <= 0 {
		timeout = DefaultTranscribeTimeout
	}
	ctx, cancel := context.WithCancel(parent)
	return &Controller{
		dispatcher: opts.Dispatcher,
		history:    opts.History,
		events:     opts.EventLog,
		feedback:   opts.Feedback,
		delivery:   opts.Delivery,
		timeout:    timeout,
		logger:     logger.With(slog.String("component", "session")),
		metrics:    newMetrics(logger),
		baseCtx:    ctx,
		cancel:     cancel,
		state:      StateIdle,
	}
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle starts a session when idle and stops it when recording. During
// transcription it does nothing; the press is dropped.
func (c *Controller) Toggle() error {
	switch c.State() {
	case StateIdle:
		return c.Start()
	case StateRecording:
		return c.Stop()
	default:
		c.logger.Debug("toggle ignored while transcribing")
		return nil
	}
}

// Start begins a new recording session. It validates the provider before
// touching the capture device, so a missing API key surfaces immediately
// and leaves the controller idle.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateIdle {
		c.logger.Debug("start ignored", slog.String("state", string(c.state)))
		return nil
	}

	if err := c.dispatcher.Validate(); err != nil {
		c.logger.Error("session rejected", slog.String("error", err.Error()))
		c.feedback.Play(feedback.Error)
		return err
	}

	if err := c.dispatcher.StartCapture(c.baseCtx); err != nil {
		c.logger.Error("failed to start capture", slog.String("error", err.Error()))
		c.feedback.Play(feedback.Error)
		return err
	}

	c.sessionID = uuid.New()
	c.state = StateRecording
	c.metrics.sessionStarted(c.baseCtx, c.dispatcher.Provider())
	c.feedback.Play(feedback.RecordingStarted)
	c.logEvent(c.sessionID, eventlog.KindRecordingStarted, "")
	c.logger.Info("recording started",
		slog.String("session_id", c.sessionID.String()),
		slog.String("provider", string(c.dispatcher.Provider())))
	return nil
}

// Stop ends the recording and transcribes it in the background. The
// controller reports Transcribing until the backend finishes, then returns
// to Idle whatever the outcome.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		c.logger.Debug("stop ignored", slog.String("state", string(c.state)))
		return nil
	}

	c.state = StateTranscribing
	c.feedback.Play(feedback.RecordingStopped)
	c.feedback.Play(feedback.Transcribing)
	c.logEvent(c.sessionID, eventlog.KindRecordingStopped, "")

	sessionID := c.sessionID
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(sessionID)
	}()
	return nil
}

// Cancel discards an in-progress recording. Outside Recording it does
// nothing; a transcription already under way is left to finish.
func (c *Controller) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return nil
	}

	c.dispatcher.AbortCapture()
	c.state = StateIdle
	c.feedback.Play(feedback.Cancelled)
	c.logEvent(c.sessionID, eventlog.KindCancelled, "")
	c.logger.Info("recording cancelled", slog.String("session_id", c.sessionID.String()))
	return nil
}

// run executes the transcription phase for one session and finishes it
// exactly once.
func (c *Controller) run(sessionID uuid.UUID) {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.timeout)
	defer cancel()

	started := time.Now()
	text, audioPath, err := c.dispatcher.StopAndTranscribe(ctx)
	c.finish(sessionID, text, audioPath, time.Since(started), err)
}

// finish records the outcome and returns the controller to Idle. Success
// saves to history and delivers the transcript; failure plays the error
// cue. History persistence failures are logged and do not demote a
// successful transcription.
func (c *Controller) finish(sessionID uuid.UUID, text, audioPath string, elapsed time.Duration, err error) {
	provider := c.dispatcher.Provider()

	if err != nil {
		c.logger.Error("transcription failed",
			slog.String("session_id", sessionID.String()),
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()))
		c.metrics.sessionFinished(c.baseCtx, provider, elapsed, err)
		c.feedback.Play(feedback.Error)
		c.logEvent(sessionID, eventlog.KindFailed, err.Error())
	} else {
		if _, saveErr := c.history.Save(text, provider, audioPath); saveErr != nil {
			c.logger.Warn("failed to save history record", slog.String("error", saveErr.Error()))
		}
		c.delivery.Deliver(sessionID.String(), string(provider), text)
		c.metrics.sessionFinished(c.baseCtx, provider, elapsed, nil)
		c.feedback.Play(feedback.Completed)
		c.logEvent(sessionID, eventlog.KindCompleted, "")
		c.logger.Info("transcription completed",
			slog.String("session_id", sessionID.String()),
			slog.String("provider", string(provider)),
			slog.Duration("elapsed", elapsed),
			slog.Int("chars", len(text)))
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
}

// logEvent writes a best-effort timeline entry. Callers hold no guarantee
// the event log is enabled.
func (c *Controller) logEvent(sessionID uuid.UUID, kind, detail string) {
	if c.events == nil {
		return
	}
	id := sessionID.String()
	provider := string(c.dispatcher.Provider())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.events.BeginSession(ctx, id, provider); err != nil {
		c.logger.Debug("event log session upsert failed", slog.String("error", err.Error()))
		return
	}
	entry := eventlog.Entry{SessionID: id, Kind: kind, Provider: provider, Detail: detail}
	if err := c.events.Append(ctx, entry); err != nil {
		c.logger.Debug("event log append failed", slog.String("error", err.Error()))
	}
}

// Close cancels the base context and waits for any in-flight transcription
// goroutine to finish.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}
