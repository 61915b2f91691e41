// Package runtime assembles the dictation engine: configuration, telemetry,
// the message bus, the transcription backends, and the session controller,
// plus the HTTP surface for health, metrics, and history.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/murmurlabs/murmur-core/internal/bus"
	"github.com/murmurlabs/murmur-core/internal/capture"
	"github.com/murmurlabs/murmur-core/internal/config"
	"github.com/murmurlabs/murmur-core/internal/delivery"
	"github.com/murmurlabs/murmur-core/internal/eventlog"
	"github.com/murmurlabs/murmur-core/internal/feedback"
	"github.com/murmurlabs/murmur-core/internal/history"
	"github.com/murmurlabs/murmur-core/internal/natsserver"
	"github.com/murmurlabs/murmur-core/internal/prompt"
	"github.com/murmurlabs/murmur-core/internal/protocol"
	"github.com/murmurlabs/murmur-core/internal/session"
	"github.com/murmurlabs/murmur-core/internal/speech"
)

type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer  *http.Server
	tracerClose func(context.Context) error
	embedded    *natsserver.EmbeddedServer
	bus         *bus.Client
	events      *eventlog.Store
	history     *history.Store
	dispatcher  *session.Dispatcher
	controller  *session.Controller

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the engine up and blocks until ctx is cancelled, then shuts
// everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.startBus(ctx); err != nil {
		return err
	}

	r.events, err = eventlog.Open(ctx, eventlog.Options{
		Enabled:       r.cfg.EventLog.Enabled,
		Path:          r.cfg.EventLog.Path,
		RetentionDays: r.cfg.EventLog.RetentionDays,
		MaxSessions:   r.cfg.EventLog.MaxSessions,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}

	r.history, err = history.Open(history.Options{
		Directory:  r.cfg.History.Directory,
		MaxRecords: r.cfg.History.MaxRecords,
		Eviction:   history.EvictionPolicy(r.cfg.History.Eviction),
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}

	if err := r.startSession(ctx); err != nil {
		return err
	}
	if err := r.subscribe(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	r.registerHistoryRoutes(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("provider", r.cfg.Speech.Provider))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.shutdown()
	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	servers := r.cfg.Bus.Servers
	if r.cfg.Bus.Embedded {
		embedded, err := natsserver.Start(natsserver.Options{
			Port:     r.cfg.Bus.Port,
			StoreDir: r.cfg.Bus.StoreDir,
		}, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded
		servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", r.cfg.Bus.Port)}
	}

	client, err := bus.Connect(ctx, bus.Options{
		Servers:        servers,
		Username:       r.cfg.Bus.Username,
		Password:       r.cfg.Bus.Password,
		Token:          r.cfg.Bus.Token,
		TLSInsecure:    r.cfg.Bus.TLSInsecure,
		ConnectTimeout: time.Duration(r.cfg.Bus.ConnectTimeout) * time.Millisecond,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.bus = client
	return nil
}

// startSession builds the backend set, the prompt composer, the capture
// recorder, and the controller. The local backend is always registered;
// cloud backends only when their API key is configured, so a missing key
// surfaces when a session starts rather than at boot.
func (r *Runtime) startSession(ctx context.Context) error {
	backends := map[speech.Provider]speech.Backend{}

	whisper, err := speech.NewWhisperBackend(speech.WhisperOptions{
		Command:          r.cfg.Speech.Whisper.Command,
		ModelPath:        r.cfg.Speech.Whisper.ModelPath,
		FallbackLanguage: r.cfg.Speech.Whisper.FallbackLanguage,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build whisper backend: %w", err)
	}
	backends[speech.ProviderLocal] = whisper

	for provider, cloudCfg := range map[speech.Provider]config.CloudProviderConfig{
		speech.ProviderOpenAI: r.cfg.Speech.OpenAI,
		speech.ProviderGroq:   r.cfg.Speech.Groq,
	} {
		if cloudCfg.APIKey == "" {
			r.logger.Debug("cloud backend not registered, no api key",
				slog.String("provider", string(provider)))
			continue
		}
		backend, err := speech.NewCloudBackend(provider, speech.CloudOptions{
			APIKey:   cloudCfg.APIKey,
			Endpoint: cloudCfg.Endpoint,
			Model:    cloudCfg.Model,
			Timeout:  time.Duration(cloudCfg.TimeoutMS) * time.Millisecond,
		}, r.logger)
		if err != nil {
			return fmt.Errorf("failed to build %s backend: %w", provider, err)
		}
		backends[provider] = backend
	}

	var activeApp prompt.ActiveAppSource = prompt.StaticActiveApp{}
	if r.cfg.Prompt.ActiveAppCommand != "" {
		activeApp, err = prompt.NewExecActiveApp(r.cfg.Prompt.ActiveAppCommand, r.logger)
		if err != nil {
			return fmt.Errorf("failed to parse active app command: %w", err)
		}
	}
	composer := prompt.NewComposer(activeApp, prompt.LocaleKeyboard{}, r.logger)

	recorder, err := capture.NewExecRecorder(capture.ExecOptions{
		Command:     r.cfg.Capture.Command,
		Directory:   r.cfg.Capture.Directory,
		StopTimeout: time.Duration(r.cfg.Capture.StopTimeoutMS) * time.Millisecond,
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build capture recorder: %w", err)
	}

	r.dispatcher = session.NewDispatcher(session.DispatcherOptions{
		Provider:   speech.Provider(r.cfg.Speech.Provider),
		Backends:   backends,
		Recorder:   recorder,
		Composer:   composer,
		Template:   prompt.Template(r.cfg.Prompt.Template),
		CustomText: r.cfg.Prompt.CustomText,
		Language:   prompt.Language(r.cfg.Prompt.OutputLanguage),
		Device:     r.cfg.Capture.Device,
	}, r.logger)

	r.controller = session.NewController(ctx, session.ControllerOptions{
		Dispatcher:        r.dispatcher,
		History:           r.history,
		EventLog:          r.events,
		Feedback:          feedback.NewBusPlayer(r.bus, r.logger),
		Delivery:          delivery.NewBusSink(r.bus, r.logger),
		TranscribeTimeout: time.Duration(r.cfg.Session.TranscribeTimeoutMS) * time.Millisecond,
	}, r.logger)
	return nil
}

// subscribe wires the collaborator subjects. Hotkey presses toggle the
// session; an explicit cancel subject discards the active recording.
func (r *Runtime) subscribe() error {
	conn := r.bus.Conn()

	if _, err := conn.Subscribe(protocol.SubjectHotkeyPressed, func(msg *nats.Msg) {
		if err := r.controller.Toggle(); err != nil {
			r.logger.Warn("hotkey toggle rejected", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.SubjectHotkeyPressed, err)
	}

	if _, err := conn.Subscribe(protocol.SubjectSessionCancel, func(msg *nats.Msg) {
		if err := r.controller.Cancel(); err != nil {
			r.logger.Warn("cancel rejected", slog.String("error", err.Error()))
		}
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.SubjectSessionCancel, err)
	}

	if _, err := conn.Subscribe(protocol.SubjectCaptureLevel, func(msg *nats.Msg) {
		r.logger.Debug("capture level sample", slog.Int("bytes", len(msg.Data)))
	}); err != nil {
		return fmt.Errorf("subscribe %s: %w", protocol.SubjectCaptureLevel, err)
	}

	return nil
}

func (r *Runtime) shutdown() {
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	if r.controller != nil {
		r.controller.Close()
	}
	if r.history != nil {
		r.history.Flush()
		r.history.Close()
	}
	if r.events != nil {
		if err := r.events.Close(); err != nil {
			r.logger.Error("event log close error", slog.String("error", err.Error()))
		}
	}
	r.bus.Close()
	r.embedded.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.bus.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
