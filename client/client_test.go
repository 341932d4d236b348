package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aluiziolira/go-library-kiosk/config"
	"github.com/aluiziolira/go-library-kiosk/models"
	"github.com/jarcoal/httpmock"
)

const testBase = "http://backend.test/api"

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BaseURL = testBase

	c, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	c.WithTransport(transport)
	return c, transport
}

func jsonResponder(t *testing.T, status int, body string) httpmock.Responder {
	t.Helper()
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

func TestCheckAuthSuccess(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBase, jsonResponder(t, 200, `{
		"success": true,
		"token": "tok-1",
		"userName": "Ana",
		"currentLoanCount": 2,
		"allBooks": [
			{"title":"Dune","author":"Herbert","status":"ON_LOAN","user":"Ana"},
			{"title":"Emma","author":"Austen","status":"IN_STOCK","user":""}
		]
	}`))

	res, err := c.CheckAuth(context.Background(), "ana@example.com", "secret")
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if !res.Success || res.Token != "tok-1" || res.UserName != "Ana" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CurrentLoanCount != 2 || len(res.AllBooks) != 2 {
		t.Fatalf("snapshot mismatch: %+v", res)
	}
	if res.AllBooks[0].Status != models.StatusOnLoan {
		t.Fatalf("status not decoded: %+v", res.AllBooks[0])
	}
}

func TestCheckAuthNeedsRegistration(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBase, jsonResponder(t, 200,
		`{"success":false,"needsRegistration":true,"targetUrl":"http://backend.test/app"}`))

	res, err := c.CheckAuth(context.Background(), "new@example.com", "secret")
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if !res.NeedsRegistration || res.TargetURL == "" {
		t.Fatalf("expected registration redirect, got %+v", res)
	}
}

func TestCheckSessionAuthExpired(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBase, jsonResponder(t, 200, `false`))

	_, err := c.CheckSession(context.Background(), "ana@example.com", "stale")
	if !errors.Is(err, ErrAuthExpired) {
		t.Fatalf("err = %v, want ErrAuthExpired", err)
	}
}

func TestProcessUnifiedEntryEncodesRequest(t *testing.T) {
	c, transport := newTestClient(t)

	var gotQuery map[string]string
	transport.RegisterResponder("GET", testBase, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		gotQuery = map[string]string{}
		for key := range q {
			gotQuery[key] = q.Get(key)
		}
		resp := httpmock.NewStringResponse(200,
			`{"success":true,"processedTitles":["Dune"],"partialError":true,"message":"Emma unavailable"}`)
		resp.Header.Set("Content-Type", "application/json")
		return resp, nil
	})

	report, err := c.ProcessUnifiedEntry(context.Background(), EntryRequest{
		Email:    "ana@example.com",
		Token:    "tok-1",
		ToReturn: []string{"Dune"},
		ToBorrow: []string{"Emma"},
		QRCode:   "SHELF-7",
		Location: models.TimedOutFix(),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !report.PartialError || len(report.ProcessedTitles) != 1 {
		t.Fatalf("report = %+v", report)
	}

	if gotQuery["action"] != "processUnifiedEntry" {
		t.Fatalf("action = %q", gotQuery["action"])
	}
	if gotQuery["qrCode"] != "SHELF-7" || gotQuery["token"] != "tok-1" {
		t.Fatalf("identity fields missing: %v", gotQuery)
	}
	// sentinel coordinates travel verbatim
	if gotQuery["lat"] != "-2" || gotQuery["lng"] != "-2" || gotQuery["acc"] != "-2" {
		t.Fatalf("sentinel triple mangled: %v", gotQuery)
	}

	var toReturn, toBorrow []string
	if err := json.Unmarshal([]byte(gotQuery["toReturn"]), &toReturn); err != nil {
		t.Fatalf("toReturn not JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(gotQuery["toBorrow"]), &toBorrow); err != nil {
		t.Fatalf("toBorrow not JSON: %v", err)
	}
	if len(toReturn) != 1 || toReturn[0] != "Dune" || len(toBorrow) != 1 || toBorrow[0] != "Emma" {
		t.Fatalf("partitions = %v / %v", toReturn, toBorrow)
	}
}

func TestProcessUnifiedEntryStructuredFailure(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBase, jsonResponder(t, 200,
		`{"success":false,"message":"unknown location code"}`))

	_, err := c.ProcessUnifiedEntry(context.Background(), EntryRequest{QRCode: "BOGUS"})
	var api APIError
	if !errors.As(err, &api) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if api.Message != "unknown location code" {
		t.Fatalf("message = %q", api.Message)
	}
}

func TestCallTransportFailures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{name: "connection refused", responder: httpmock.NewErrorResponder(errors.New("connection refused"))},
		{name: "http 500", responder: httpmock.NewStringResponder(500, "boom")},
		{name: "malformed json", responder: httpmock.NewStringResponder(200, `{"success":`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, transport := newTestClient(t)
			transport.RegisterResponder("GET", testBase, tt.responder)

			_, err := c.CheckAuth(context.Background(), "a@b.c", "x")
			var transportErr TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("err = %v, want TransportError", err)
			}
			if got := errorTypeLabel(err); got != "transport" {
				t.Fatalf("label = %q", got)
			}
		})
	}
}

func TestFetchRemoteConfig(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBase, jsonResponder(t, 200,
		`{"MAX_LOAN_LIMIT":10,"ALERT_DAYS":14,"LIMIT_DAYS":5}`))

	rc, err := c.FetchRemoteConfig(context.Background())
	if err != nil {
		t.Fatalf("fetch config: %v", err)
	}
	if rc.MaxLoanLimit != 10 || rc.AlertDays != 14 || rc.LimitDays != 5 {
		t.Fatalf("remote config = %+v", rc)
	}
}

func TestRequestPasswordReset(t *testing.T) {
	c, transport := newTestClient(t)
	transport.RegisterResponder("GET", testBase, jsonResponder(t, 200,
		`{"success":true,"message":"sent"}`))

	res, err := c.RequestPasswordReset(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
}
