package client

import "github.com/aluiziolira/go-library-kiosk/models"

// AuthResult is the payload of checkAuth and checkSession. On success it
// carries the session token and a wholesale inventory snapshot; a first-time
// user gets NeedsRegistration with the sign-up redirect target instead.
type AuthResult struct {
	Success           bool                `json:"success"`
	Token             string              `json:"token"`
	UserName          string              `json:"userName"`
	AllBooks          []models.BookRecord `json:"allBooks"`
	CurrentLoanCount  int                 `json:"currentLoanCount"`
	NeedsRegistration bool                `json:"needsRegistration"`
	TargetURL         string              `json:"targetUrl"`
	Message           string              `json:"message"`
}

// EntryReport is the partial-success response of processUnifiedEntry.
// ProcessedTitles may be a strict subset of the requested titles; when it
// is, PartialError is set and Message explains what was skipped.
type EntryReport struct {
	Success         bool     `json:"success"`
	ProcessedTitles []string `json:"processedTitles"`
	PartialError    bool     `json:"partialError"`
	Message         string   `json:"message"`
}

// EntryRequest is one unified-entry batch: both partitions of the cart plus
// the physical-location proof.
type EntryRequest struct {
	Email    string
	Token    string
	ToReturn []string
	ToBorrow []string
	QRCode   string
	Location models.LocationFix
}

// RemoteConfig carries the backend-owned policy values fetched at startup.
type RemoteConfig struct {
	MaxLoanLimit int `json:"MAX_LOAN_LIMIT"`
	AlertDays    int `json:"ALERT_DAYS"`
	LimitDays    int `json:"LIMIT_DAYS"`
}

// ResetResult is the payload of requestPasswordReset.
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
