// Package models defines the shared data structures for the kiosk client.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the loan state of a book record.
type Status int

const (
	// StatusInStock marks a book available for loan.
	StatusInStock Status = iota
	// StatusOnLoan marks a book currently held by a patron.
	StatusOnLoan
)

const (
	statusInStockLabel = "IN_STOCK"
	statusOnLoanLabel  = "ON_LOAN"
)

// ParseStatus maps a wire label to a Status. Labels are trimmed once here so
// no other code needs to compare padded strings.
func ParseStatus(s string) (Status, error) {
	switch strings.TrimSpace(s) {
	case statusInStockLabel:
		return StatusInStock, nil
	case statusOnLoanLabel:
		return StatusOnLoan, nil
	default:
		return StatusInStock, fmt.Errorf("unknown status %q", s)
	}
}

func (s Status) String() string {
	switch s {
	case StatusOnLoan:
		return statusOnLoanLabel
	default:
		return statusInStockLabel
	}
}

// MarshalJSON encodes the status as its wire label.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire label, tolerating surrounding whitespace.
func (s *Status) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	parsed, err := ParseStatus(label)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// BookRecord is one row of the shared inventory, keyed by Title.
// DueDate and LastReturnDate are "M/D" strings; empty means not set.
type BookRecord struct {
	Title          string `json:"title"`
	Author         string `json:"author"`
	Status         Status `json:"status"`
	User           string `json:"user"`
	DueDate        string `json:"dueDate,omitempty"`
	LastReturnDate string `json:"lastReturnDate,omitempty"`
	Bookshelf      string `json:"bookshelf,omitempty"`
	ImageURL       string `json:"imageUrl,omitempty"`
}

// Validate checks the record's internal consistency: a book is on loan if
// and only if it has a holder.
func (b *BookRecord) Validate() error {
	if b == nil {
		return fmt.Errorf("book record is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book record missing title")
	}
	onLoan := b.Status == StatusOnLoan
	hasHolder := strings.TrimSpace(b.User) != ""
	if onLoan != hasHolder {
		return fmt.Errorf("record %q: status %s inconsistent with holder %q", b.Title, b.Status, b.User)
	}
	return nil
}

// HeldBy reports whether the record is on loan to the named patron.
func (b *BookRecord) HeldBy(user string) bool {
	return b.Status == StatusOnLoan && strings.TrimSpace(b.User) == strings.TrimSpace(user)
}
