package natsserver

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// Options configures the embedded NATS server.
type Options struct {
	Port     int
	StoreDir string
}

// EmbeddedServer runs an in-process NATS server so the daemon and its
// desktop collaborators need no external broker.
type EmbeddedServer struct {
	ns  *server.Server
	log *slog.Logger
}

// Start creates and starts an embedded NATS server.
func Start(opts Options, log *slog.Logger) (*EmbeddedServer, error) {
	srvOpts := &server.Options{
		Host:     "127.0.0.1",
		Port:     opts.Port,
		StoreDir: opts.StoreDir,
		Trace:    false,
		Debug:    false,
	}

	ns, err := server.NewServer(srvOpts)
	if err != nil {
		return nil, fmt.Errorf("create embedded NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded NATS server failed to start within 5 seconds")
	}

	log.Info("embedded NATS server started", slog.Int("port", opts.Port))

	return &EmbeddedServer{ns: ns, log: log}, nil
}

// Shutdown gracefully stops the embedded server.
func (e *EmbeddedServer) Shutdown() {
	if e == nil || e.ns == nil {
		return
	}
	e.log.Info("shutting down embedded NATS server")
	e.ns.Shutdown()
	e.ns.WaitForShutdown()
}
