// Package server provides run lifecycle management: ordered release of
// sinks, writers and the metrics endpoint when a run ends or is interrupted.
package server

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// ShutdownManager releases registered resources once, in reverse order of
// registration, within a bounded time.
type ShutdownManager struct {
	timeout time.Duration

	once    sync.Once
	err     error
	closers []namedCloser
	mu      sync.Mutex

	onShutdownStart []func(reason string)
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// ShutdownConfig holds configuration for the shutdown manager.
type ShutdownConfig struct {
	// Timeout bounds the whole shutdown sequence.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{Timeout: 30 * time.Second}
}

// NewShutdownManager creates a shutdown manager.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &ShutdownManager{
		timeout: config.Timeout,
	}
}

// RegisterCloser adds a closer to be called during shutdown.
// Closers are called in reverse order of registration (LIFO).
func (sm *ShutdownManager) RegisterCloser(name string, closer io.Closer) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, namedCloser{name: name, closer: closer})
}

// OnShutdownStart registers a callback invoked with the shutdown reason.
func (sm *ShutdownManager) OnShutdownStart(fn func(reason string)) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.onShutdownStart = append(sm.onShutdownStart, fn)
}

// Shutdown closes every registered resource. Later calls return the result
// of the first. A closer still running when the timeout expires is
// abandoned and reported.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	sm.once.Do(func() {
		sm.mu.Lock()
		callbacks := sm.onShutdownStart
		closers := sm.closers
		sm.mu.Unlock()

		for _, fn := range callbacks {
			fn(reason)
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, sm.timeout)
		defer cancel()

		for i := len(closers) - 1; i >= 0; i-- {
			if err := closeWithin(shutdownCtx, closers[i]); err != nil && sm.err == nil {
				sm.err = err
			}
		}
	})
	return sm.err
}

func closeWithin(ctx context.Context, nc namedCloser) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- nc.closer.Close()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("close %s: %w", nc.name, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close %s: %w", nc.name, ctx.Err())
	}
}

// CloserFunc is an adapter to allow ordinary functions to be used as io.Closer.
type CloserFunc func() error

// Close calls the underlying function.
func (f CloserFunc) Close() error {
	return f()
}
