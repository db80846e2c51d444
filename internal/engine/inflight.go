package engine

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Order lock lifecycle. A record is created pending, moves to sent when
// the wire request goes out, and leaves the table as confirmed, failed,
// or timeout.
const (
	lockPending   = "pending"
	lockSent      = "sent"
	lockConfirmed = "confirmed"
	lockFailed    = "failed"
	lockTimeout   = "timeout"
)

// inFlightOrder is the per-symbol anti-double-submission record.
// At most one exists per symbol at any instant.
type inFlightOrder struct {
	Symbol        string
	CorrelationID string
	StartedAt     time.Time
	Status        string
}

// InFlightStatus is the externally visible view of one lock, served by
// the status endpoint.
type InFlightStatus struct {
	Symbol        string `json:"symbol"`
	CorrelationID string `json:"correlationId"`
	AgeMs         int64  `json:"ageMs"`
	Status        string `json:"status"`
}

// inFlightTable guards order submission. Acquire is a compare-and-set:
// the caller either gets exclusive ownership for the symbol or is told
// who holds it.
type inFlightTable struct {
	mu     sync.Mutex
	ttl    time.Duration
	orders map[string]*inFlightOrder
}

func newInFlightTable(ttl time.Duration) *inFlightTable {
	return &inFlightTable{
		ttl:    ttl,
		orders: make(map[string]*inFlightOrder),
	}
}

// acquire installs a pending record for the symbol. Returns false with
// the blocking record when a younger-than-TTL lock already exists; a
// stale lock is replaced.
func (t *inFlightTable) acquire(symbol string, now time.Time) (*inFlightOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.orders[symbol]; ok && now.Sub(existing.StartedAt) < t.ttl {
		return existing, false
	}

	rec := &inFlightOrder{
		Symbol:        symbol,
		CorrelationID: newCorrelationID(),
		StartedAt:     now,
		Status:        lockPending,
	}
	t.orders[symbol] = rec
	return rec, true
}

// setStatus updates the record's stage while the lock is held.
func (t *inFlightTable) setStatus(symbol, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.orders[symbol]; ok {
		rec.Status = status
	}
}

// release removes the record with its terminal status.
func (t *inFlightTable) release(symbol, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.orders[symbol]; ok {
		rec.Status = status
		delete(t.orders, symbol)
	}
}

// sweep clears every record older than the TTL and returns them so the
// caller can emit timeout events.
func (t *inFlightTable) sweep(now time.Time) []inFlightOrder {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []inFlightOrder
	for symbol, rec := range t.orders {
		if now.Sub(rec.StartedAt) >= t.ttl {
			rec.Status = lockTimeout
			expired = append(expired, *rec)
			delete(t.orders, symbol)
		}
	}
	return expired
}

// snapshot returns the live locks for the status endpoint.
func (t *inFlightTable) snapshot(now time.Time) []InFlightStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]InFlightStatus, 0, len(t.orders))
	for _, rec := range t.orders {
		out = append(out, InFlightStatus{
			Symbol:        rec.Symbol,
			CorrelationID: rec.CorrelationID,
			AgeMs:         now.Sub(rec.StartedAt).Milliseconds(),
			Status:        rec.Status,
		})
	}
	return out
}

// newCorrelationID returns 8 hex chars, enough to grep one order's
// lifecycle across the decision log.
func newCorrelationID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
