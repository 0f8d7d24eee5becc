// Package dedupe suppresses redelivered webhook events within a TTL window.
package dedupe

import (
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a delivery id is remembered.
const DefaultTTL = 300 * time.Second

// Deduper tracks recently seen delivery identifiers. Storage is bounded by
// delivery rate times TTL: every check sweeps out expired entries before
// testing membership.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// Option customizes a Deduper.
type Option func(*Deduper)

// WithClock injects the time source. Tests use this to control expiry.
func WithClock(now func() time.Time) Option {
	return func(d *Deduper) { d.now = now }
}

// New creates a Deduper with the given TTL. Non-positive TTL falls back to
// DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Deduper {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	d := &Deduper{
		seen: map[string]time.Time{},
		ttl:  ttl,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// CheckAndMark reports whether eventID was already recorded within the TTL
// window; if not, it records it now. Sweep, membership test, and insert run
// under one lock so concurrent deliveries of the same id cannot both pass.
// An empty id is never marked and always passes through: some payload shapes
// carry no delivery id and must not dedupe against each other.
func (d *Deduper) CheckAndMark(eventID string) bool {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return false
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked(now)
	if _, ok := d.seen[eventID]; ok {
		return true
	}
	d.seen[eventID] = now
	return false
}

// Size returns the current number of retained ids, sweeping first so the
// status endpoint never reports expired entries.
func (d *Deduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked(d.now())
	return len(d.seen)
}

func (d *Deduper) sweepLocked(now time.Time) {
	for id, first := range d.seen {
		if now.Sub(first) > d.ttl {
			delete(d.seen, id)
		}
	}
}
