// Package metrics holds the relay's atomic packet/byte counters. It exists
// so the hot path can record activity without a lock: every counter here
// is a sync/atomic field, read concurrently for logging or diagnostics.
package metrics

import "sync/atomic"

// Relay aggregates counters for one relay instance.
type Relay struct {
	PacketsIn  atomic.Uint64
	PacketsOut atomic.Uint64
	BytesIn    atomic.Uint64
	BytesOut   atomic.Uint64
	Dropped    atomic.Uint64
	Keepalives atomic.Uint64
}

// Snapshot is a point-in-time copy of Relay's counters, safe to log or
// serialize.
type Snapshot struct {
	PacketsIn  uint64
	PacketsOut uint64
	BytesIn    uint64
	BytesOut   uint64
	Dropped    uint64
	Keepalives uint64
}

// Snapshot reads all counters. Individual loads are not mutually
// consistent under concurrent updates, which is acceptable for a
// diagnostics snapshot.
func (r *Relay) Snapshot() Snapshot {
	return Snapshot{
		PacketsIn:  r.PacketsIn.Load(),
		PacketsOut: r.PacketsOut.Load(),
		BytesIn:    r.BytesIn.Load(),
		BytesOut:   r.BytesOut.Load(),
		Dropped:    r.Dropped.Load(),
		Keepalives: r.Keepalives.Load(),
	}
}
