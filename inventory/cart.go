package inventory

import (
	"strings"

	"github.com/aluiziolira/go-library-kiosk/models"
)

// IntentKind classifies a staged cart entry for UI feedback. The submission
// coordinator re-derives the classification from the live mirror at
// partition time; this value is never cached for submission.
type IntentKind int

const (
	// IntentBorrow stages a new loan of an in-stock book.
	IntentBorrow IntentKind = iota
	// IntentReturn stages the return of a book held by the current patron.
	IntentReturn
)

func (k IntentKind) String() string {
	if k == IntentReturn {
		return "return"
	}
	return "borrow"
}

// Cart is the ordered, duplicate-free set of staged titles. Titles must
// exist in the mirror when added; they are not re-validated afterwards so a
// transiently inconsistent mirror cannot strand entries.
type Cart struct {
	titles []string
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// AddIntent validates and appends a title. loanCount is the patron's
// running count of held books and max the loan quota in effect. The
// simulated post-add count is recomputed from the live cart on every call
// because cart composition changes between calls.
func (c *Cart) AddIntent(m *Mirror, user string, loanCount, max int, title string) (IntentKind, error) {
	title = strings.TrimSpace(title)

	rec, ok := m.Get(title)
	if !ok {
		return IntentBorrow, NotFoundError{Title: title}
	}
	if c.Contains(title) {
		return IntentBorrow, AlreadyStagedError{Title: title}
	}

	isMine := rec.HeldBy(user)
	if rec.Status == models.StatusOnLoan && !isMine {
		return IntentBorrow, HeldByOtherError{Title: title, Holder: rec.User}
	}

	if !isMine {
		stagedReturns, stagedBorrows := c.stagedCounts(m, user)
		simulated := loanCount - stagedReturns + stagedBorrows + 1
		if simulated > max {
			return IntentBorrow, LimitExceededError{Max: max, Simulated: simulated}
		}
	}

	c.titles = append(c.titles, title)
	if isMine {
		return IntentReturn, nil
	}
	return IntentBorrow, nil
}

// RemoveIntent drops the entry at index, returning the removed title.
func (c *Cart) RemoveIntent(index int) (string, error) {
	if index < 0 || index >= len(c.titles) {
		return "", IndexOutOfRangeError{Index: index, Len: len(c.titles)}
	}
	title := c.titles[index]
	c.titles = append(c.titles[:index], c.titles[index+1:]...)
	return title, nil
}

// Remove drops a title wherever it sits, reporting whether it was present.
// Used when a submission response confirms the title as processed.
func (c *Cart) Remove(title string) bool {
	title = strings.TrimSpace(title)
	for i, t := range c.titles {
		if t == title {
			c.titles = append(c.titles[:i], c.titles[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether a title is staged.
func (c *Cart) Contains(title string) bool {
	title = strings.TrimSpace(title)
	for _, t := range c.titles {
		if t == title {
			return true
		}
	}
	return false
}

// Titles returns a copy of the staged titles in order.
func (c *Cart) Titles() []string {
	out := make([]string, len(c.titles))
	copy(out, c.titles)
	return out
}

// Len reports the number of staged titles.
func (c *Cart) Len() int {
	return len(c.titles)
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.titles = nil
}

// Partition splits the cart against the live mirror: titles on loan to the
// current patron go to toReturn, everything else (including titles missing
// from the mirror) to toBorrow. Called at submission time, never earlier,
// so intervening reconciliation is always reflected.
func (c *Cart) Partition(m *Mirror, user string) (toReturn, toBorrow []string) {
	for _, title := range c.titles {
		if rec, ok := m.Get(title); ok && rec.HeldBy(user) {
			toReturn = append(toReturn, title)
		} else {
			toBorrow = append(toBorrow, title)
		}
	}
	return toReturn, toBorrow
}

func (c *Cart) stagedCounts(m *Mirror, user string) (returns, borrows int) {
	for _, title := range c.titles {
		rec, ok := m.Get(title)
		if !ok {
			continue
		}
		if rec.HeldBy(user) {
			returns++
		} else if rec.Status == models.StatusInStock {
			borrows++
		}
	}
	return returns, borrows
}
