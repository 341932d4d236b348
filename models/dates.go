package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthDay is a calendar date without a year, the backend's "M/D" format.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay parses an "M/D" string.
func ParseMonthDay(s string) (MonthDay, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return MonthDay{}, fmt.Errorf("invalid month/day %q", s)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return MonthDay{}, fmt.Errorf("invalid month in %q", s)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil || day < 1 || day > 31 {
		return MonthDay{}, fmt.Errorf("invalid day in %q", s)
	}
	return MonthDay{Month: time.Month(month), Day: day}, nil
}

// FormatMonthDay renders t as the backend's "M/D" format.
func FormatMonthDay(t time.Time) string {
	return fmt.Sprintf("%d/%d", int(t.Month()), t.Day())
}

// In pins the month/day to the year of ref, at midnight in ref's location.
func (md MonthDay) In(ref time.Time) time.Time {
	return time.Date(ref.Year(), md.Month, md.Day, 0, 0, 0, 0, ref.Location())
}

// DueSeverity classifies how close a due date is.
type DueSeverity int

const (
	// DueOK means the due date is comfortably far out, or unparseable.
	DueOK DueSeverity = iota
	// DueSoon means the due date is within the alert window.
	DueSoon
	// DueCritical means the due date is within the hard-limit window.
	DueCritical
)

// ClassifyDue grades a "M/D" due date against now. limitDays is the tighter
// window and wins over alertDays.
func ClassifyDue(dueDate string, now time.Time, alertDays, limitDays int) DueSeverity {
	md, err := ParseMonthDay(dueDate)
	if err != nil {
		return DueOK
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	diff := int(md.In(now).Sub(today).Hours() / 24)
	switch {
	case diff <= limitDays:
		return DueCritical
	case diff <= alertDays:
		return DueSoon
	default:
		return DueOK
	}
}
