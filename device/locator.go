package device

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-library-kiosk/models"
)

// fallbackGPSTimeout guards acquisitions configured without a timeout; an
// acquisition must always resolve.
const fallbackGPSTimeout = 8 * time.Second

// Position is a raw provider reading.
type Position struct {
	Lat float64
	Lng float64
	Acc float64
}

// PositionOptions tune a provider read.
type PositionOptions struct {
	// MaxAge allows the provider to serve a cached reading no older than
	// this.
	MaxAge time.Duration
}

// PositionProvider is the platform's location capability. Any returned
// error is treated as a denial; a nil provider means the platform has no
// location capability at all.
type PositionProvider interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
}

// Locator starts location acquisitions racing the provider against a
// timeout. Every acquisition resolves with exactly one of the four fix
// outcomes; downstream code only logs the kind and proceeds.
type Locator struct {
	provider PositionProvider
	timeout  time.Duration
	maxAge   time.Duration
}

// NewLocator builds a locator. provider may be nil on platforms without a
// location capability.
func NewLocator(provider PositionProvider, timeout, maxAge time.Duration) *Locator {
	return &Locator{provider: provider, timeout: timeout, maxAge: maxAge}
}

// Acquisition is a single in-flight location fix. It is resolved exactly
// once and Wait never hangs.
type Acquisition struct {
	done chan struct{}
	once sync.Once
	fix  models.LocationFix
}

func (a *Acquisition) resolve(fix models.LocationFix) {
	a.once.Do(func() {
		a.fix = fix
		close(a.done)
	})
}

// Wait blocks until the acquisition resolves, or until ctx is cancelled, in
// which case the timed-out sentinel is returned.
func (a *Acquisition) Wait(ctx context.Context) models.LocationFix {
	select {
	case <-a.done:
		return a.fix
	case <-ctx.Done():
		return models.TimedOutFix()
	}
}

// Resolved reports whether the fix is already available.
func (a *Acquisition) Resolved() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Acquire starts an acquisition in the background. It is meant to run
// concurrently with the patron's scanning activity and is only awaited at
// submission time, hiding the provider's latency.
func (l *Locator) Acquire(ctx context.Context) *Acquisition {
	acq := &Acquisition{done: make(chan struct{})}

	if l.provider == nil {
		acq.resolve(models.UnsupportedFix())
		return acq
	}

	timeout := l.timeout
	if timeout <= 0 {
		timeout = fallbackGPSTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		acq.resolve(models.TimedOutFix())
	})

	go func() {
		defer timer.Stop()

		readCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		pos, err := l.provider.CurrentPosition(readCtx, PositionOptions{MaxAge: l.maxAge})
		if err != nil {
			slog.Debug("location provider error", slog.Any("error", err))
			if readCtx.Err() != nil {
				acq.resolve(models.TimedOutFix())
			} else {
				acq.resolve(models.DeniedFix())
			}
			return
		}
		acq.resolve(models.RealFix(pos.Lat, pos.Lng, pos.Acc))
	}()

	return acq
}
