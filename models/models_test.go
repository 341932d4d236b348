package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "in stock", input: "IN_STOCK", want: StatusInStock},
		{name: "on loan", input: "ON_LOAN", want: StatusOnLoan},
		{name: "padded", input: "  ON_LOAN ", want: StatusOnLoan},
		{name: "unknown", input: "LOST", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatus(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestBookRecordJSONRoundTrip(t *testing.T) {
	raw := []byte(`{"title":"Dune","author":"Herbert","status":" ON_LOAN ","user":"ana","dueDate":"3/14"}`)

	var rec BookRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.Status != StatusOnLoan {
		t.Fatalf("status = %v, want on loan", rec.Status)
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	out, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back BookRecord
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if back.Status != StatusOnLoan || back.Title != "Dune" {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestBookRecordValidateConsistency(t *testing.T) {
	tests := []struct {
		name    string
		rec     BookRecord
		wantErr bool
	}{
		{name: "in stock no holder", rec: BookRecord{Title: "Emma", Status: StatusInStock}},
		{name: "on loan with holder", rec: BookRecord{Title: "Emma", Status: StatusOnLoan, User: "bob"}},
		{name: "on loan without holder", rec: BookRecord{Title: "Emma", Status: StatusOnLoan}, wantErr: true},
		{name: "in stock with holder", rec: BookRecord{Title: "Emma", Status: StatusInStock, User: "bob"}, wantErr: true},
		{name: "missing title", rec: BookRecord{Status: StatusInStock}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr && err == nil {
				t.Fatalf("expected error for %+v", tt.rec)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLocationFixSentinels(t *testing.T) {
	tests := []struct {
		name string
		fix  LocationFix
		kind FixKind
		lat  float64
	}{
		{name: "unsupported", fix: UnsupportedFix(), kind: FixUnsupported, lat: -99},
		{name: "timed out", fix: TimedOutFix(), kind: FixTimedOut, lat: -2},
		{name: "denied", fix: DeniedFix(), kind: FixDenied, lat: -1},
		{name: "real", fix: RealFix(35.68, 139.76, 12), kind: FixReal, lat: 35.68},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.fix.Kind != tt.kind {
				t.Fatalf("kind = %v, want %v", tt.fix.Kind, tt.kind)
			}
			if tt.fix.Lat != tt.lat {
				t.Fatalf("lat = %v, want %v", tt.fix.Lat, tt.lat)
			}
			if tt.fix.Kind != FixReal && (tt.fix.Lat != tt.fix.Lng || tt.fix.Lat != tt.fix.Acc) {
				t.Fatalf("sentinel triple not uniform: %+v", tt.fix)
			}
		})
	}
}

func TestClassifyDue(t *testing.T) {
	now := time.Date(2026, time.March, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  string
		want DueSeverity
	}{
		{name: "far out", due: "4/20", want: DueOK},
		{name: "inside alert window", due: "3/16", want: DueSoon},
		{name: "inside limit window", due: "3/12", want: DueCritical},
		{name: "overdue", due: "3/1", want: DueCritical},
		{name: "unparseable", due: "soon", want: DueOK},
		{name: "empty", due: "", want: DueOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDue(tt.due, now, 7, 3); got != tt.want {
				t.Fatalf("ClassifyDue(%q) = %v, want %v", tt.due, got, tt.want)
			}
		})
	}
}

func TestFormatMonthDay(t *testing.T) {
	got := FormatMonthDay(time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC))
	if got != "3/5" {
		t.Fatalf("FormatMonthDay = %q, want 3/5", got)
	}
}
