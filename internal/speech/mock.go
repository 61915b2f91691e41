package speech

import (
	"context"
	"sync"
)

// StaticBackend returns a fixed result. Used by tests and by dry-run
// configurations that exercise the session machinery without a recognizer.
type StaticBackend struct {
	Text string
	Err  error

	mu       sync.Mutex
	requests []Request
}

func NewStaticBackend(text string, err error) *StaticBackend {
	return &StaticBackend{Text: text, Err: err}
}

func (b *StaticBackend) Transcribe(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if b.Err != nil {
		return "", b.Err
	}
	return b.Text, nil
}

// Requests returns a copy of every request seen so far.
func (b *StaticBackend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}
