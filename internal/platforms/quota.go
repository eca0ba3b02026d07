package platforms

import (
	"sync"
	"time"
)

// QuotaLedger tracks a daily API budget counted in platform-defined cost
// units, resetting at UTC midnight the way the platform does.
type QuotaLedger struct {
	mu    sync.Mutex
	limit int
	used  int
	day   time.Time
	now   func() time.Time
}

func NewQuotaLedger(limit int) *QuotaLedger {
	if limit <= 0 {
		limit = 10000
	}
	return &QuotaLedger{limit: limit, now: time.Now}
}

// TryReserve consumes units from today's budget, reporting false when the
// budget cannot cover them.
func (q *QuotaLedger) TryReserve(units int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollLocked()
	if q.used+units > q.limit {
		return false
	}
	q.used += units
	return true
}

// Exhaust burns the rest of today's budget. Called when the platform itself
// reports the daily quota gone, so local state agrees with the remote one.
func (q *QuotaLedger) Exhaust() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollLocked()
	q.used = q.limit
}

func (q *QuotaLedger) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.rollLocked()
	return q.limit - q.used
}

// UntilReset returns the time left until the next UTC midnight.
func (q *QuotaLedger) UntilReset() time.Duration {
	now := q.now().UTC()
	next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
	return next.Sub(now)
}

func (q *QuotaLedger) rollLocked() {
	today := q.now().UTC().Truncate(24 * time.Hour)
	if !today.Equal(q.day) {
		q.day = today
		q.used = 0
	}
}
