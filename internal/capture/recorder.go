// Package capture coordinates the external audio-capture collaborator. The
// engine never records audio itself; it starts a capture command, stops it,
// and receives back a finished WAV file path.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
)

// Recorder is the audio-capture contract consumed by the dispatcher.
type Recorder interface {
	// Start begins capturing from the given device ("" for the default).
	Start(ctx context.Context, device string) error
	// Stop ends the capture and returns the path of the finished WAV file.
	Stop() (string, error)
	// Cancel aborts the capture and discards any partial file.
	Cancel() error
}

// ErrNotRecording is returned by Stop and Cancel when no capture is active.
var ErrNotRecording = errors.New("no capture in progress")

// Placeholders recognized in the capture command.
const (
	tokenDevice = "{device}"
	tokenOutput = "{output}"
)

const defaultStopTimeout = 5 * time.Second

// ExecOptions configures the exec-based recorder.
type ExecOptions struct {
	// Command is the capture command, e.g.
	// "arecord -q -D {device} -f S16_LE -r 16000 -c 1 {output}".
	// {output} is replaced with the target WAV path (appended when absent);
	// {device} is replaced with the device id, and dropped together with
	// its preceding flag when no device is configured.
	Command string
	// Directory for capture files; defaults to the system temp directory.
	Directory string
	// StopTimeout bounds how long Stop waits after interrupting the
	// process before killing it.
	StopTimeout time.Duration
}

// ExecRecorder runs the configured capture command for the duration of a
// recording and stops it with an interrupt, the way arecord and sox expect.
type ExecRecorder struct {
	cmd         []string
	dir         string
	stopTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	proc    *exec.Cmd
	path    string
	stderr  *bytes.Buffer
	waitErr chan error
}

func NewExecRecorder(opts ExecOptions, logger *slog.Logger) (*ExecRecorder, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("parse capture command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("capture command is empty")
	}
	dir := opts.Directory
	if dir == "" {
		dir = os.TempDir()
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}
	return &ExecRecorder{
		cmd:         args,
		dir:         dir,
		stopTimeout: stopTimeout,
		logger:      logger.With(slog.String("component", "capture")),
	}, nil
}

func (r *ExecRecorder) Start(ctx context.Context, device string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc != nil {
		return fmt.Errorf("capture already running")
	}

	path := filepath.Join(r.dir, fmt.Sprintf("capture_%d.wav", time.Now().UnixNano()))
	args := expandCommand(r.cmd, device, path)

	command := exec.CommandContext(ctx, args[0], args[1:]...)
	stderr := &bytes.Buffer{}
	command.Stderr = stderr

	if err := command.Start(); err != nil {
		return fmt.Errorf("start capture command: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- command.Wait() }()

	r.proc = command
	r.path = path
	r.stderr = stderr
	r.waitErr = waitErr
	r.logger.Info("capture started",
		slog.String("path", path),
		slog.String("device", device))
	return nil
}

func (r *ExecRecorder) Stop() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc == nil {
		return "", ErrNotRecording
	}
	path := r.path
	if err := r.shutdownLocked(); err != nil {
		r.logger.Warn("capture command exited abnormally", slog.String("error", err.Error()))
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("capture produced no file at %s: %w", path, err)
	}
	r.logger.Info("capture stopped", slog.String("path", path))
	return path, nil
}

func (r *ExecRecorder) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proc == nil {
		return ErrNotRecording
	}
	path := r.path
	if err := r.shutdownLocked(); err != nil {
		r.logger.Debug("capture command exit on cancel", slog.String("error", err.Error()))
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("failed to discard capture file", slog.String("error", err.Error()))
	}
	r.logger.Info("capture cancelled", slog.String("path", path))
	return nil
}

// shutdownLocked interrupts the capture process and waits for it, killing
// it if it ignores the interrupt. Always clears the recorder state.
func (r *ExecRecorder) shutdownLocked() error {
	proc := r.proc
	waitErr := r.waitErr
	r.proc = nil
	r.path = ""
	r.stderr = nil
	r.waitErr = nil

	if err := proc.Process.Signal(os.Interrupt); err != nil {
		_ = proc.Process.Kill()
	}
	select {
	case err := <-waitErr:
		return err
	case <-time.After(r.stopTimeout):
		_ = proc.Process.Kill()
		return <-waitErr
	}
}

// expandCommand substitutes the device and output placeholders. A {device}
// token with no configured device is dropped along with the flag before it.
func expandCommand(cmd []string, device, output string) []string {
	args := make([]string, 0, len(cmd)+1)
	sawOutput := false
	for i := 0; i < len(cmd); i++ {
		arg := cmd[i]
		if arg == tokenDevice && device == "" {
			if len(args) > 0 && len(args[len(args)-1]) > 1 && args[len(args)-1][0] == '-' {
				args = args[:len(args)-1]
			}
			continue
		}
		if arg == tokenOutput {
			sawOutput = true
		}
		arg = replaceToken(arg, tokenDevice, device)
		arg = replaceToken(arg, tokenOutput, output)
		args = append(args, arg)
	}
	if !sawOutput {
		args = append(args, output)
	}
	return args
}

func replaceToken(arg, token, value string) string {
	if arg == token {
		return value
	}
	return arg
}
