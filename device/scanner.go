// Package device manages the kiosk's two unreliable hardware resources: the
// camera-based code scanner and the location provider. Each has an
// independent lifecycle with an idempotent teardown.
package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Camera is one hardware camera stream. Start blocks until the stream is
// live and then delivers decoded codes to onDecode from its own goroutine;
// Stop blocks until the hardware grant is fully released.
type Camera interface {
	Start(ctx context.Context, onDecode func(code string)) error
	Stop(ctx context.Context) error
}

// Scanner serializes camera ownership: at most one active stream
// system-wide. Starting a new stream first awaits full teardown of the
// previous one; skipping that wait risks two concurrent hardware grants.
type Scanner struct {
	mu     sync.Mutex
	active Camera
}

// NewScanner returns a scanner with no active stream.
func NewScanner() *Scanner {
	return &Scanner{}
}

// Start tears down any active stream, then starts cam and routes decoded
// codes to onDecode. The callback is invoked for every decode event without
// debouncing; re-entry guarding is the callback owner's job.
func (s *Scanner) Start(ctx context.Context, cam Camera, onDecode func(code string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(ctx); err != nil {
		return fmt.Errorf("stop previous stream: %w", err)
	}

	if err := cam.Start(ctx, onDecode); err != nil {
		return fmt.Errorf("start camera: %w", err)
	}
	s.active = cam
	slog.Debug("camera stream started")
	return nil
}

// Stop releases the active stream. Safe to call when no stream was ever
// started, and idempotent.
func (s *Scanner) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

// Active reports whether a stream currently holds the camera.
func (s *Scanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

func (s *Scanner) stopLocked(ctx context.Context) error {
	if s.active == nil {
		return nil
	}
	cam := s.active
	s.active = nil
	if err := cam.Stop(ctx); err != nil {
		return fmt.Errorf("release camera: %w", err)
	}
	slog.Debug("camera stream released")
	return nil
}
