// Package submit orchestrates the unified-entry transaction: lock the UI,
// stop the scanner, await the location fix, issue one batch call and
// reconcile the partial-success response into the session.
package submit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/go-library-kiosk/client"
	"github.com/aluiziolira/go-library-kiosk/device"
	"github.com/aluiziolira/go-library-kiosk/session"
)

// State is the coordinator's position in the submission lifecycle.
type State int32

const (
	// StateIdle means no transaction is in flight.
	StateIdle State = iota
	// StateLocked means the UI is frozen while resources are gathered.
	StateLocked
	// StateSubmitting means the batch request is on the wire.
	StateSubmitting
	// StateTerminated means the session ended on the auto-logout path.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateSubmitting:
		return "submitting"
	case StateTerminated:
		return "terminated"
	default:
		return "idle"
	}
}

// UI is the surface the coordinator freezes and talks through. Lock
// disables all user-initiated mutation until Unlock; Notify with warning
// set must stay visible until the patron acts on it.
type UI interface {
	Lock()
	Unlock()
	Notify(msg string, warning bool)
	Progress(main, sub string)
}

var (
	// ErrCartEmpty rejects entering scan mode with nothing staged.
	ErrCartEmpty = errors.New("submit: cart is empty")
	// ErrNoSession rejects scan mode without an authenticated session.
	ErrNoSession = errors.New("submit: no active session")
)

const (
	msgProcessing   = "Processing transaction"
	msgLocationData = "Attaching location data"
	msgDone         = "Transaction completed"
	msgCommFailure  = "Communication error, please scan again"
	msgExpired      = "Session expired, please log in again"
)

// Coordinator drives submissions. A single shared submitting flag guards
// the decode entry point; stray decode events while a transaction is in
// flight are dropped.
type Coordinator struct {
	api      *client.Client
	sessions *session.Manager
	scanner  *device.Scanner
	locator  *device.Locator
	ui       UI

	logoutDelay time.Duration

	submitting atomic.Bool
	state      atomic.Int32

	mu  sync.Mutex
	acq *device.Acquisition
}

// New wires a coordinator.
func New(api *client.Client, sessions *session.Manager, scanner *device.Scanner, locator *device.Locator, ui UI, logoutDelay time.Duration) *Coordinator {
	return &Coordinator{
		api:         api,
		sessions:    sessions,
		scanner:     scanner,
		locator:     locator,
		ui:          ui,
		logoutDelay: logoutDelay,
	}
}

// State reports the current lifecycle state.
func (co *Coordinator) State() State {
	return State(co.state.Load())
}

func (co *Coordinator) setState(s State) {
	co.state.Store(int32(s))
}

// BeginScan enters scan mode: the location acquisition starts first and
// runs concurrently with the patron's scanning, hiding its latency; then
// the camera stream comes up routing decodes into OnDecode.
func (co *Coordinator) BeginScan(ctx context.Context, cam device.Camera) error {
	sess := co.sessions.Current()
	if sess == nil {
		return ErrNoSession
	}
	if sess.CartLen() == 0 {
		return ErrCartEmpty
	}

	acq := co.locator.Acquire(ctx)
	co.mu.Lock()
	co.acq = acq
	co.mu.Unlock()

	return co.scanner.Start(ctx, cam, func(code string) {
		co.OnDecode(ctx, code)
	})
}

// CancelScan leaves scan mode without submitting, releasing the camera and
// dropping the pending acquisition.
func (co *Coordinator) CancelScan(ctx context.Context) error {
	co.mu.Lock()
	co.acq = nil
	co.mu.Unlock()
	return co.scanner.Stop(ctx)
}

// OnDecode is the submission trigger. The first decode of a transaction
// wins; anything arriving while the flag is held is ignored so no duplicate
// batch request can fire.
func (co *Coordinator) OnDecode(ctx context.Context, code string) {
	if !co.submitting.CompareAndSwap(false, true) {
		slog.Debug("ignoring re-entrant decode", slog.String("code", code))
		return
	}
	release := true
	defer func() {
		if release {
			co.submitting.Store(false)
			co.setState(StateIdle)
		}
	}()

	entryID := uuid.NewString()
	logger := slog.With(slog.String("entry_id", entryID))

	co.setState(StateLocked)
	co.ui.Lock()
	co.ui.Progress(msgProcessing, msgLocationData)

	if err := co.scanner.Stop(ctx); err != nil {
		logger.Error("stopping scanner", slog.Any("error", err))
	}

	acq := co.takeAcquisition()
	if acq == nil {
		// Scan mode was never entered; treat as caller misuse, not a
		// server error.
		logger.Warn("decode without pending location acquisition")
		co.ui.Unlock()
		return
	}

	sess := co.sessions.Current()
	if sess == nil {
		logger.Warn("decode without active session")
		co.ui.Unlock()
		return
	}

	fix := acq.Wait(ctx)
	logger.Info("location fix resolved", slog.String("kind", fix.Kind.String()))

	toReturn, toBorrow := sess.Partition()

	co.setState(StateSubmitting)
	report, err := co.api.ProcessUnifiedEntry(ctx, client.EntryRequest{
		Email:    sess.Email(),
		Token:    sess.Token(),
		ToReturn: toReturn,
		ToBorrow: toBorrow,
		QRCode:   code,
		Location: fix,
	})
	if err != nil {
		co.handleFailure(logger, err)
		return
	}

	sess.ApplyReport(report.ProcessedTitles, toReturn, time.Now())
	logger.Info("submission reconciled",
		slog.Int("requested", len(toReturn)+len(toBorrow)),
		slog.Int("processed", len(report.ProcessedTitles)),
		slog.Bool("partial", report.PartialError),
	)

	if report.PartialError {
		co.api.Metrics.IncSubmission("partial_success")
		co.ui.Unlock()
		msg := report.Message
		if msg == "" {
			msg = "Some items could not be processed"
		}
		co.ui.Notify(msg, true)
		return
	}

	co.api.Metrics.IncSubmission("full_success")
	msg := report.Message
	if msg == "" {
		msg = msgDone
	}
	co.ui.Notify(msg, false)

	// Hold the lock through the confirmation delay so the patron can read
	// the toast before the view resets; teardown happens in the logout
	// routine.
	release = false
	time.AfterFunc(co.logoutDelay, func() {
		defer co.submitting.Store(false)
		if co.sessions.Current() != nil {
			co.Logout(context.Background())
			co.setState(StateTerminated)
			return
		}
		co.ui.Unlock()
		co.setState(StateIdle)
	})
}

// Logout ends the session from any state: camera released, acquisition
// dropped, credentials cleared, UI unlocked.
func (co *Coordinator) Logout(ctx context.Context) {
	if err := co.CancelScan(ctx); err != nil {
		slog.Error("releasing camera on logout", slog.Any("error", err))
	}
	co.sessions.Logout()
	co.ui.Unlock()
}

func (co *Coordinator) handleFailure(logger *slog.Logger, err error) {
	if errors.Is(err, client.ErrAuthExpired) {
		co.api.Metrics.IncSubmission("auth_expired")
		logger.Warn("submission rejected, session expired")
		co.sessions.Expire()
		co.ui.Unlock()
		co.ui.Notify(msgExpired, true)
		return
	}

	var api client.APIError
	if errors.As(err, &api) {
		co.api.Metrics.IncSubmission("rejected")
		logger.Error("submission rejected by backend", slog.String("message", api.Message))
		co.ui.Unlock()
		co.ui.Notify("Submission failed: "+api.Message, true)
		return
	}

	// Transport failures: nothing was applied locally, the cart is intact
	// and the patron retries by scanning again.
	co.api.Metrics.IncSubmission("transport_error")
	logger.Error("submission transport failure", slog.Any("error", err))
	co.ui.Unlock()
	co.ui.Notify(msgCommFailure, true)
}

func (co *Coordinator) takeAcquisition() *device.Acquisition {
	co.mu.Lock()
	defer co.mu.Unlock()
	acq := co.acq
	co.acq = nil
	return acq
}
