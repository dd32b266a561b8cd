// Package recorder implements the reevaluation recorder a Keeper appends
// one entry to after every tick when enabled: RingRecorder, a bounded
// in-memory buffer, and PostgresRecorder, durable storage over pgx/v5. Both
// implement landkeeper.Recorder so a keeper can be wired to either without
// knowing which.
package recorder

import (
	"sync"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/landkeeper"
)

// RingRecorder keeps the last N ticks per land in memory, discarding older
// entries once the ring is full. It never returns an error from RecordTick
// since there's no I/O to fail on — the degraded-counter policy only
// applies to PostgresRecorder.
type RingRecorder struct {
	size int

	mu    sync.Mutex
	lands map[ids.LandID][]landkeeper.ReevaluationEntry
}

// NewRing builds a RingRecorder holding up to size entries per land.
func NewRing(size int) *RingRecorder {
	if size <= 0 {
		size = 1024
	}
	return &RingRecorder{size: size, lands: make(map[ids.LandID][]landkeeper.ReevaluationEntry)}
}

func (r *RingRecorder) RecordTick(land ids.LandID, entry landkeeper.ReevaluationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	buf := r.lands[land]
	buf = append(buf, entry)
	if len(buf) > r.size {
		buf = buf[len(buf)-r.size:]
	}
	r.lands[land] = buf
	return nil
}

func (r *RingRecorder) All(land ids.LandID) ([]landkeeper.ReevaluationEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]landkeeper.ReevaluationEntry, len(r.lands[land]))
	copy(out, r.lands[land])
	return out, nil
}
