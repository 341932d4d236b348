package submit

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-library-kiosk/client"
	"github.com/aluiziolira/go-library-kiosk/config"
	"github.com/aluiziolira/go-library-kiosk/device"
	"github.com/aluiziolira/go-library-kiosk/models"
	"github.com/aluiziolira/go-library-kiosk/session"
)

const testBase = "http://backend.test/api"

const authBody = `{
	"success": true,
	"token": "tok-1",
	"userName": "Ana",
	"currentLoanCount": 2,
	"allBooks": [
		{"title":"Dune","author":"Herbert","status":"ON_LOAN","user":"Ana","dueDate":"3/20"},
		{"title":"Emma","author":"Austen","status":"IN_STOCK","user":""},
		{"title":"Moby Dick","author":"Melville","status":"IN_STOCK","user":""}
	]
}`

type notice struct {
	msg     string
	warning bool
}

type fakeUI struct {
	mu       sync.Mutex
	locked   bool
	unlocks  int
	notices  []notice
	progress []string
}

func (u *fakeUI) Lock() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.locked = true
}

func (u *fakeUI) Unlock() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.locked = false
	u.unlocks++
}

func (u *fakeUI) Notify(msg string, warning bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notices = append(u.notices, notice{msg: msg, warning: warning})
}

func (u *fakeUI) Progress(main, sub string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.progress = append(u.progress, main+"/"+sub)
}

func (u *fakeUI) isLocked() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.locked
}

func (u *fakeUI) lastNotice() (notice, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.notices) == 0 {
		return notice{}, false
	}
	return u.notices[len(u.notices)-1], true
}

type fixedProvider struct{}

func (fixedProvider) CurrentPosition(_ context.Context, _ device.PositionOptions) (device.Position, error) {
	return device.Position{Lat: 35.68, Lng: 139.76, Acc: 8}, nil
}

type harness struct {
	co        *Coordinator
	sessions  *session.Manager
	ui        *fakeUI
	cam       *device.ManualCamera
	transport *httpmock.MockTransport

	mu          sync.Mutex
	entryCalls  int
	entryParams map[string]string
}

// respondEntry installs the submission responder; auth calls keep working.
func (h *harness) respondEntry(body string, delay time.Duration) {
	h.transport.RegisterResponder("GET", testBase, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		if q.Get("action") != "processUnifiedEntry" {
			return httpmock.NewStringResponse(200, authBody), nil
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		h.mu.Lock()
		h.entryCalls++
		h.entryParams = map[string]string{}
		for key := range q {
			h.entryParams[key] = q.Get(key)
		}
		h.mu.Unlock()
		return httpmock.NewStringResponse(200, body), nil
	})
}

func (h *harness) calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entryCalls
}

func (h *harness) param(key string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entryParams[key]
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBase
	cfg.GPSTimeout = time.Second
	cfg.AutoLogoutDelay = 20 * time.Millisecond

	api, err := client.NewClient(cfg)
	require.NoError(t, err)
	transport := httpmock.NewMockTransport()
	api.WithTransport(transport)
	transport.RegisterResponder("GET", testBase, httpmock.NewStringResponder(200, authBody))

	sessions := session.NewManager(api, session.NewMemoryStore(), config.NewLimitStore(cfg))
	_, _, err = sessions.Login(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)

	ui := &fakeUI{}
	co := New(api, sessions,
		device.NewScanner(),
		device.NewLocator(fixedProvider{}, cfg.GPSTimeout, cfg.GPSCache),
		ui, cfg.AutoLogoutDelay)

	return &harness{
		co:        co,
		sessions:  sessions,
		ui:        ui,
		cam:       device.NewManualCamera(),
		transport: transport,
	}
}

func stage(t *testing.T, h *harness, titles ...string) {
	t.Helper()
	for _, title := range titles {
		_, err := h.sessions.Current().AddIntent(title)
		require.NoError(t, err)
	}
}

func TestBeginScanGuards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.ErrorIs(t, h.co.BeginScan(ctx, h.cam), ErrCartEmpty)

	h.sessions.Logout()
	assert.ErrorIs(t, h.co.BeginScan(ctx, h.cam), ErrNoSession)
}

func TestFullSuccessAutoLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stage(t, h, "Dune", "Emma")
	h.respondEntry(`{"success":true,"processedTitles":["Dune","Emma"],"partialError":false,"message":"done"}`, 0)

	require.NoError(t, h.co.BeginScan(ctx, h.cam))
	require.NoError(t, h.cam.Inject("SHELF-7"))

	assert.Equal(t, 1, h.calls())
	assert.Equal(t, "SHELF-7", h.param("qrCode"))
	assert.Equal(t, `["Dune"]`, h.param("toReturn"))
	assert.Equal(t, `["Emma"]`, h.param("toBorrow"))
	// real coordinates travel on the wire
	assert.Equal(t, "35.68", h.param("lat"))

	// reconciliation landed before the confirmation delay
	sess := h.sessions.Current()
	require.NotNil(t, sess)
	assert.Zero(t, sess.CartLen())
	assert.Equal(t, 2, sess.LoanCount()) // -1 +1
	emma, _ := sess.Mirror().Get("Emma")
	assert.Equal(t, models.StatusOnLoan, emma.Status)

	// UI stays locked while the patron reads the toast, then the session
	// ends by itself.
	assert.True(t, h.ui.isLocked())
	n, ok := h.ui.lastNotice()
	require.True(t, ok)
	assert.False(t, n.warning)

	assert.Eventually(t, func() bool {
		return h.sessions.Current() == nil
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return !h.ui.isLocked() && h.co.State() == StateTerminated
	}, time.Second, 5*time.Millisecond)
}

func TestPartialSuccessKeepsSessionLive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stage(t, h, "Dune", "Emma", "Moby Dick")
	h.respondEntry(`{"success":true,"processedTitles":["Dune"],"partialError":true,"message":"Emma unavailable"}`, 0)

	require.NoError(t, h.co.BeginScan(ctx, h.cam))
	require.NoError(t, h.cam.Inject("SHELF-7"))

	sess := h.sessions.Current()
	require.NotNil(t, sess, "partial success must not end the session")

	// Cart' = Cart − processed, exactly.
	assert.Equal(t, []string{"Emma", "Moby Dick"}, sess.CartTitles())
	assert.Equal(t, 1, sess.LoanCount()) // one return confirmed

	dune, _ := sess.Mirror().Get("Dune")
	assert.Equal(t, models.StatusInStock, dune.Status)
	emma, _ := sess.Mirror().Get("Emma")
	assert.Equal(t, models.StatusInStock, emma.Status, "unprocessed record must be untouched")

	assert.False(t, h.ui.isLocked())
	n, _ := h.ui.lastNotice()
	assert.True(t, n.warning)
	assert.Equal(t, "Emma unavailable", n.msg)
	assert.Equal(t, StateIdle, h.co.State())

	// The remainder is retryable: a fresh scan cycle goes through.
	h.respondEntry(`{"success":true,"processedTitles":["Emma","Moby Dick"],"partialError":false}`, 0)
	require.NoError(t, h.co.BeginScan(ctx, h.cam))
	require.NoError(t, h.cam.Inject("SHELF-7"))
	assert.Equal(t, 2, h.calls())
}

func TestAuthExpiredTearsDownSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stage(t, h, "Dune")
	h.respondEntry(`false`, 0)

	require.NoError(t, h.co.BeginScan(ctx, h.cam))
	require.NoError(t, h.cam.Inject("SHELF-7"))

	assert.Nil(t, h.sessions.Current())
	assert.False(t, h.ui.isLocked())
	n, _ := h.ui.lastNotice()
	assert.True(t, n.warning)
	assert.Equal(t, StateIdle, h.co.State())
}

func TestTransportFailureLeavesStateIntact(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stage(t, h, "Dune", "Emma")

	h.transport.RegisterResponder("GET", testBase, func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("action") != "processUnifiedEntry" {
			return httpmock.NewStringResponse(200, authBody), nil
		}
		return httpmock.NewStringResponse(502, "bad gateway"), nil
	})

	require.NoError(t, h.co.BeginScan(ctx, h.cam))
	require.NoError(t, h.cam.Inject("SHELF-7"))

	sess := h.sessions.Current()
	require.NotNil(t, sess)
	assert.Equal(t, []string{"Dune", "Emma"}, sess.CartTitles(), "no optimistic mutation before the response is known")
	assert.Equal(t, 2, sess.LoanCount())
	dune, _ := sess.Mirror().Get("Dune")
	assert.Equal(t, models.StatusOnLoan, dune.Status)

	assert.False(t, h.ui.isLocked())
	n, _ := h.ui.lastNotice()
	assert.True(t, n.warning)
}

func TestReentrantDecodeIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stage(t, h, "Dune")
	h.respondEntry(`{"success":true,"processedTitles":["Dune"],"partialError":true,"message":"retry later"}`, 60*time.Millisecond)

	require.NoError(t, h.co.BeginScan(ctx, h.cam))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.co.OnDecode(ctx, "SHELF-7")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.calls(), "duplicate decodes must not fire duplicate batches")
}

func TestDecodeWithoutAcquisitionAborts(t *testing.T) {
	h := newHarness(t)
	stage(t, h, "Dune")

	// no BeginScan: decode arrives with no pending acquisition
	h.co.OnDecode(context.Background(), "SHELF-7")

	assert.Equal(t, 0, h.calls())
	assert.False(t, h.ui.isLocked())
	assert.Equal(t, StateIdle, h.co.State())
	sess := h.sessions.Current()
	require.NotNil(t, sess)
	assert.Equal(t, []string{"Dune"}, sess.CartTitles())
}

func TestCancelScanReleasesCamera(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stage(t, h, "Dune")

	require.NoError(t, h.co.BeginScan(ctx, h.cam))
	require.NoError(t, h.co.CancelScan(ctx))

	assert.ErrorIs(t, h.cam.Inject("SHELF-7"), device.ErrCameraStopped)
	// and the dropped acquisition means a direct decode aborts cleanly
	h.co.OnDecode(ctx, "SHELF-7")
	assert.Equal(t, 0, h.calls())
}
