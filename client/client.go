// Package client talks to the remote library backend. The wire contract is
// GET with query parameters; responses are JSON, with the quirk that an
// invalid session is signalled by a bare `false` body rather than a
// structured error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aluiziolira/go-library-kiosk/config"
)

const (
	actionCheckAuth     = "checkAuth"
	actionCheckSession  = "checkSession"
	actionUnifiedEntry  = "processUnifiedEntry"
	actionConfigValues  = "getConfigValues"
	actionPasswordReset = "requestPasswordReset"
)

// Client issues authenticated calls against the backend.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	Metrics    *Metrics
}

// NewClient builds a client configured from cfg.
func NewClient(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		Metrics: NewMetrics(),
	}, nil
}

// WithTransport swaps the underlying round tripper; used by tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// CheckAuth exchanges credentials for a session token and an inventory
// snapshot.
func (c *Client) CheckAuth(ctx context.Context, email, pass string) (*AuthResult, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("pass", pass)

	var res AuthResult
	if err := c.call(ctx, actionCheckAuth, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckSession validates a stored token and returns a fresh snapshot;
// ErrAuthExpired when the token has aged out.
func (c *Client) CheckSession(ctx context.Context, email, token string) (*AuthResult, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("token", token)

	var res AuthResult
	if err := c.call(ctx, actionCheckSession, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ProcessUnifiedEntry submits one batch of returns and borrows together
// with the scanned location code and the resolved fix. Sentinel coordinates
// are transmitted verbatim.
func (c *Client) ProcessUnifiedEntry(ctx context.Context, req EntryRequest) (*EntryReport, error) {
	toReturn, err := json.Marshal(sliceOrEmpty(req.ToReturn))
	if err != nil {
		return nil, TransportError{Err: fmt.Errorf("encode toReturn: %w", err)}
	}
	toBorrow, err := json.Marshal(sliceOrEmpty(req.ToBorrow))
	if err != nil {
		return nil, TransportError{Err: fmt.Errorf("encode toBorrow: %w", err)}
	}

	params := url.Values{}
	params.Set("email", req.Email)
	params.Set("token", req.Token)
	params.Set("toReturn", string(toReturn))
	params.Set("toBorrow", string(toBorrow))
	params.Set("qrCode", req.QRCode)
	params.Set("lat", formatCoord(req.Location.Lat))
	params.Set("lng", formatCoord(req.Location.Lng))
	params.Set("acc", formatCoord(req.Location.Acc))

	var res EntryReport
	if err := c.call(ctx, actionUnifiedEntry, params, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, APIError{Action: actionUnifiedEntry, Message: res.Message}
	}
	return &res, nil
}

// FetchRemoteConfig retrieves the backend-owned policy values.
func (c *Client) FetchRemoteConfig(ctx context.Context) (*RemoteConfig, error) {
	var res RemoteConfig
	if err := c.call(ctx, actionConfigValues, url.Values{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RequestPasswordReset asks the backend to mail a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) (*ResetResult, error) {
	params := url.Values{}
	params.Set("email", email)

	var res ResetResult
	if err := c.call(ctx, actionPasswordReset, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) call(ctx context.Context, action string, params url.Values, out any) error {
	params.Set("action", action)
	endpoint := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TransportError{Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.Metrics.IncRequest(action)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.Metrics.IncError("transport")
		return TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.Metrics.ObserveDuration(time.Since(start))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.Metrics.IncError("transport")
		return TransportError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		c.Metrics.IncError("transport")
		return TransportError{Err: fmt.Errorf("http status %d", resp.StatusCode)}
	}

	// A bare `false` body is the backend's auth-invalid sentinel, distinct
	// from a structured failure.
	if bytes.Equal(bytes.TrimSpace(body), []byte("false")) {
		c.Metrics.IncError("auth_expired")
		slog.Warn("backend rejected session token", slog.String("action", action))
		return ErrAuthExpired
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.Metrics.IncError("transport")
		return TransportError{Err: fmt.Errorf("decode %s response: %w", action, err)}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
