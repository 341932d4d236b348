// Package inventory holds the locally-mirrored view of the shared book
// inventory and the cart of staged loan/return intents.
package inventory

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-library-kiosk/models"
)

// Mirror is the local copy of all book records, keyed by title. It is
// authoritative until the next wholesale reload or per-title patch from a
// submission response; the client never mutates it on its own initiative.
type Mirror struct {
	mu      sync.RWMutex
	records map[string]models.BookRecord
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{records: make(map[string]models.BookRecord)}
}

// Replace loads a full inventory snapshot, discarding the previous one.
// Records that fail consistency validation are dropped and logged rather
// than poisoning the mirror.
func (m *Mirror) Replace(snapshot []models.BookRecord) {
	next := make(map[string]models.BookRecord, len(snapshot))
	for _, rec := range snapshot {
		rec.Title = strings.TrimSpace(rec.Title)
		rec.User = strings.TrimSpace(rec.User)
		if err := rec.Validate(); err != nil {
			slog.Warn("dropping inconsistent inventory record", slog.Any("error", err))
			continue
		}
		next[rec.Title] = rec
	}

	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
}

// Get looks up a record by title.
func (m *Mirror) Get(title string) (models.BookRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[strings.TrimSpace(title)]
	return rec, ok
}

// Len reports the number of mirrored records.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// All returns every record ordered by title.
func (m *Mirror) All() []models.BookRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BookRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// ApplyReturn flips a record to in-stock, clears the holder and stamps the
// return date with the current month/day. Unknown titles are a no-op.
func (m *Mirror) ApplyReturn(title string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[strings.TrimSpace(title)]
	if !ok {
		return false
	}
	rec.Status = models.StatusInStock
	rec.User = ""
	rec.DueDate = ""
	rec.LastReturnDate = models.FormatMonthDay(now)
	m.records[rec.Title] = rec
	return true
}

// ApplyLoan flips a record to on-loan held by user. Unknown titles are a
// no-op.
func (m *Mirror) ApplyLoan(title, user string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[strings.TrimSpace(title)]
	if !ok {
		return false
	}
	rec.Status = models.StatusOnLoan
	rec.User = strings.TrimSpace(user)
	m.records[rec.Title] = rec
	return true
}

// LoansOf returns the records currently held by the named patron, ordered
// by title.
func (m *Mirror) LoansOf(user string) []models.BookRecord {
	user = strings.TrimSpace(user)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.BookRecord
	for _, rec := range m.records {
		if rec.HeldBy(user) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// OnLoan returns every record currently out on loan, ordered by title.
func (m *Mirror) OnLoan() []models.BookRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.BookRecord
	for _, rec := range m.records {
		if rec.Status == models.StatusOnLoan {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// ReturnedSince returns in-stock records whose last return date falls within
// the past `days` days of now.
func (m *Mirror) ReturnedSince(now time.Time, days int) []models.BookRecord {
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -days)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.BookRecord
	for _, rec := range m.records {
		if rec.Status != models.StatusInStock || rec.LastReturnDate == "" {
			continue
		}
		md, err := models.ParseMonthDay(rec.LastReturnDate)
		if err != nil {
			continue
		}
		if !md.In(now).Before(cutoff) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

// SearchPrefix returns records whose title starts with the query,
// case-insensitively, ordered by title. An empty query matches nothing.
func (m *Mirror) SearchPrefix(query string) []models.BookRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.BookRecord
	for _, rec := range m.records {
		if strings.HasPrefix(strings.ToLower(rec.Title), query) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}
