package extrema

import (
	"sync"
	"time"
)

// Record holds the all-time high and low observed for one instrument.
type Record struct {
	Instrument string
	High       float64
	HighAt     time.Time
	Low        float64
	LowAt      time.Time
}

// Tracker maintains per-instrument extrema for the lifetime of the process.
// Safe for concurrent use; stock and option watchers may share one instance.
type Tracker struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewTracker constructs an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{records: make(map[string]Record)}
}

// Seed installs a previously persisted record, typically at startup. It is
// ignored when the instrument already has in-memory state.
func (t *Tracker) Seed(rec Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[rec.Instrument]; ok {
		return
	}
	t.records[rec.Instrument] = rec
}

// Update applies a new observation and reports whether an extreme moved.
// The first observation initialises both sides. Later observations move an
// extreme only on strict inequality, so an equal re-touch keeps the original
// timestamp.
func (t *Tracker) Update(instrument string, price float64, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[instrument]
	if !ok {
		t.records[instrument] = Record{
			Instrument: instrument,
			High:       price,
			HighAt:     at,
			Low:        price,
			LowAt:      at,
		}
		return true
	}

	changed := false
	if price > rec.High {
		rec.High, rec.HighAt = price, at
		changed = true
	}
	if price < rec.Low {
		rec.Low, rec.LowAt = price, at
		changed = true
	}
	if changed {
		t.records[instrument] = rec
	}
	return changed
}

// Read returns the current record for an instrument, if one exists.
func (t *Tracker) Read(instrument string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[instrument]
	return rec, ok
}
