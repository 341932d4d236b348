package device

import (
	"context"
	"errors"
	"sync"
)

// ErrCameraStopped is returned when a code is injected into a camera that
// is not streaming.
var ErrCameraStopped = errors.New("device: camera not streaming")

// ManualCamera is a Camera fed by software instead of hardware: codes are
// injected by the caller (the terminal front end, or tests) and delivered
// through the decode callback like any real stream.
type ManualCamera struct {
	mu       sync.Mutex
	onDecode func(code string)
}

// NewManualCamera returns a stopped manual camera.
func NewManualCamera() *ManualCamera {
	return &ManualCamera{}
}

// Start records the decode callback and marks the stream live.
func (c *ManualCamera) Start(_ context.Context, onDecode func(code string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDecode = onDecode
	return nil
}

// Stop releases the stream.
func (c *ManualCamera) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDecode = nil
	return nil
}

// Inject delivers a decoded code as if the camera had read it. The callback
// runs on the caller's goroutine.
func (c *ManualCamera) Inject(code string) error {
	c.mu.Lock()
	cb := c.onDecode
	c.mu.Unlock()
	if cb == nil {
		return ErrCameraStopped
	}
	cb(code)
	return nil
}
