package services

import (
	"context"
	"sync"
)

// fakeProvider is a scripted Provider for orchestrator and intake tests.
type fakeProvider struct {
	name string
	out  string
	err  error

	// block makes Analyze wait for context cancellation.
	block bool
	// hang makes Analyze ignore its context until release is closed.
	hang    bool
	release chan struct{}

	mu    sync.Mutex
	calls int
	texts []string
}

func (f *fakeProvider) Name() string {
	return f.name
}

func (f *fakeProvider) Analyze(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.hang {
		<-f.release
		return f.out, f.err
	}
	return f.out, f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
