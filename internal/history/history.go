// Package history records per-epoch training telemetry.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is the telemetry of one finished epoch.
type Record struct {
	RunID    uuid.UUID     // identifies the Fit call that produced the record
	Epoch    int           // 1-based epoch number within the run
	Loss     float64       // mean batch loss
	Accuracy float64       // mean batch accuracy, [0, 1]
	Elapsed  time.Duration // wall time of the epoch
}

// Recorder receives one record per finished epoch.
type Recorder interface {
	Append(Record)
}

// History is an append-only, concurrency-safe Recorder.
type History struct {
	mu      sync.RWMutex
	records []Record
}

// New returns an empty history.
func New() *History {
	return &History{}
}

// Append adds a record.
func (h *History) Append(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
}

// Records returns a copy of all records in append order.
func (h *History) Records() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Record(nil), h.records...)
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Last returns the most recent record.
func (h *History) Last() (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return Record{}, false
	}
	return h.records[len(h.records)-1], true
}

// Run returns the records produced by one Fit call.
func (h *History) Run(id uuid.UUID) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []Record
	for _, r := range h.records {
		if r.RunID == id {
			out = append(out, r)
		}
	}
	return out
}

// Multi fans records out to several recorders.
type Multi []Recorder

// Append forwards r to every recorder in order.
func (m Multi) Append(r Record) {
	for _, rec := range m {
		rec.Append(r)
	}
}
