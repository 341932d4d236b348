package inventory

import (
	"errors"
	"fmt"
)

// NotFoundError indicates a title with no matching inventory record.
type NotFoundError struct {
	Title string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("not_found: no record for %q", e.Title)
}

// AlreadyStagedError indicates a title already present in the cart.
type AlreadyStagedError struct {
	Title string
}

func (e AlreadyStagedError) Error() string {
	return fmt.Sprintf("already_staged: %q is already in the cart", e.Title)
}

// HeldByOtherError indicates a book on loan to a different patron.
type HeldByOtherError struct {
	Title  string
	Holder string
}

func (e HeldByOtherError) Error() string {
	return fmt.Sprintf("held_by_other: %q is on loan to %s", e.Title, e.Holder)
}

// LimitExceededError indicates the simulated post-add count would exceed the
// loan quota.
type LimitExceededError struct {
	Max       int
	Simulated int
}

func (e LimitExceededError) Error() string {
	return fmt.Sprintf("limit_exceeded: staging would hold %d books, limit is %d", e.Simulated, e.Max)
}

// IndexOutOfRangeError indicates a removal index outside the cart.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index_out_of_range: %d not in cart of %d", e.Index, e.Len)
}

// IsValidation reports whether err belongs to the user-correctable
// validation taxonomy. Validation failures leave all state unchanged.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var notFound NotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	var staged AlreadyStagedError
	if errors.As(err, &staged) {
		return true
	}
	var held HeldByOtherError
	if errors.As(err, &held) {
		return true
	}
	var limit LimitExceededError
	if errors.As(err, &limit) {
		return true
	}
	var index IndexOutOfRangeError
	return errors.As(err, &index)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "none"
	}
	var notFound NotFoundError
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var staged AlreadyStagedError
	if errors.As(err, &staged) {
		return "already_staged"
	}
	var held HeldByOtherError
	if errors.As(err, &held) {
		return "held_by_other"
	}
	var limit LimitExceededError
	if errors.As(err, &limit) {
		return "limit_exceeded"
	}
	var index IndexOutOfRangeError
	if errors.As(err, &index) {
		return "index_out_of_range"
	}
	return "other"
}
