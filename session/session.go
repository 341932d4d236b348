// Package session owns the authenticated session context: the current
// patron, the inventory mirror, the cart and the running loan count. A
// session exists from login/restore until logout and is discarded
// wholesale.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-library-kiosk/client"
	"github.com/aluiziolira/go-library-kiosk/config"
	"github.com/aluiziolira/go-library-kiosk/inventory"
)

// Session is one authenticated patron's state. All mutations go through
// its mutex; device callbacks arrive on foreign goroutines.
type Session struct {
	mu        sync.Mutex
	userName  string
	email     string
	token     string
	loanCount int
	mirror    *inventory.Mirror
	cart      *inventory.Cart
	limits    *config.LimitStore
}

func newSession(email string, res *client.AuthResult, limits *config.LimitStore) *Session {
	mirror := inventory.NewMirror()
	mirror.Replace(res.AllBooks)
	return &Session{
		userName:  res.UserName,
		email:     email,
		token:     res.Token,
		loanCount: res.CurrentLoanCount,
		mirror:    mirror,
		cart:      inventory.NewCart(),
		limits:    limits,
	}
}

// UserName returns the patron's display name.
func (s *Session) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

// Email returns the patron's login identity.
func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

// Token returns the session token.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// LoanCount returns the running count of books the patron holds.
func (s *Session) LoanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loanCount
}

// Mirror exposes the inventory mirror for read-side rendering.
func (s *Session) Mirror() *inventory.Mirror {
	return s.mirror
}

// CartTitles returns the staged titles in order.
func (s *Session) CartTitles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Titles()
}

// CartLen returns the number of staged titles.
func (s *Session) CartLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Len()
}

// AddIntent stages a loan/return intent against the current quota.
func (s *Session) AddIntent(title string) (inventory.IntentKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := s.limits.Current().MaxLoanLimit
	return s.cart.AddIntent(s.mirror, s.userName, s.loanCount, max, title)
}

// RemoveIntent drops the staged entry at index.
func (s *Session) RemoveIntent(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.RemoveIntent(index)
}

// Partition splits the cart against the live mirror at submission time.
func (s *Session) Partition() (toReturn, toBorrow []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Partition(s.mirror, s.userName)
}

// ApplyReport reconciles a submission response: every processed title is
// patched into the mirror, dropped from the cart and counted against the
// running loan total; unprocessed titles stay pending. toReturn must be the
// partition the submitted batch was built from.
func (s *Session) ApplyReport(processed, toReturn []string, now time.Time) {
	returned := make(map[string]struct{}, len(toReturn))
	for _, title := range toReturn {
		returned[title] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, title := range processed {
		s.cart.Remove(title)
		_, isReturn := returned[title]
		var patched bool
		if isReturn {
			patched = s.mirror.ApplyReturn(title, now)
		} else {
			patched = s.mirror.ApplyLoan(title, s.userName)
		}
		if !patched {
			slog.Warn("processed title missing from mirror", slog.String("title", title))
			continue
		}
		if isReturn {
			s.loanCount--
		} else {
			s.loanCount++
		}
	}
}

// Manager drives the session lifecycle against the backend and the token
// store.
type Manager struct {
	client *client.Client
	store  TokenStore
	limits *config.LimitStore

	mu      sync.Mutex
	current *Session
}

// NewManager wires a manager.
func NewManager(c *client.Client, store TokenStore, limits *config.LimitStore) *Manager {
	return &Manager{client: c, store: store, limits: limits}
}

// Current returns the active session, or nil when logged out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Login authenticates and establishes a session. A NeedsRegistration
// result is returned as-is with a nil session so the front end can redirect
// to sign-up.
func (m *Manager) Login(ctx context.Context, email, pass string) (*Session, *client.AuthResult, error) {
	res, err := m.client.CheckAuth(ctx, email, pass)
	if err != nil {
		return nil, nil, err
	}
	if res.NeedsRegistration {
		return nil, res, nil
	}
	if !res.Success {
		return nil, res, client.APIError{Action: "checkAuth", Message: res.Message}
	}

	if err := m.store.Save(email, res.Token); err != nil {
		return nil, nil, fmt.Errorf("persist credentials: %w", err)
	}

	sess := newSession(email, res, m.limits)
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	slog.Info("session established",
		slog.String("user", res.UserName),
		slog.Int("loan_count", res.CurrentLoanCount),
		slog.Int("inventory", sess.mirror.Len()),
	)
	return sess, res, nil
}

// Restore attempts a silent login from stored credentials. ErrNoCredentials
// when nothing is persisted; on a rejected token the store is cleared and
// client.ErrAuthExpired propagated.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	email, token, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	res, err := m.client.CheckSession(ctx, email, token)
	if err != nil {
		m.forget()
		return nil, err
	}
	if !res.Success {
		m.forget()
		return nil, client.ErrAuthExpired
	}

	res.Token = token
	sess := newSession(email, res, m.limits)
	m.mu.Lock()
	m.current = sess
	m.mu.Unlock()

	slog.Info("session restored", slog.String("user", res.UserName))
	return sess, nil
}

// Logout discards the session and stored credentials. Safe when already
// logged out.
func (m *Manager) Logout() {
	m.forget()
	slog.Info("session ended")
}

// Expire tears down all session state after an auth rejection.
func (m *Manager) Expire() {
	m.forget()
	slog.Warn("session expired, forcing re-login")
}

func (m *Manager) forget() {
	if err := m.store.Clear(); err != nil {
		slog.Error("clearing stored credentials", slog.Any("error", err))
	}
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}
