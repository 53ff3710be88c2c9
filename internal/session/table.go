// Package session generalizes the relay's "one active local peer" rule
// (a second local peer displaces the first) into a small capacity-bounded
// peer table, keyed by source endpoint. The default configuration
// (MaxPeers=1) reproduces the singleton displacement behavior exactly.
// Larger capacities keep several recently seen peers tracked (see Active),
// but the relay still sends every inbound datagram to Current, the most
// recently seen peer; it does not route replies per peer.
package session

import (
	"net/netip"
	"sync"
)

// Table tracks the most recently seen local peers, up to a fixed capacity.
// Registering a new peer beyond capacity evicts the oldest. Table is safe
// for concurrent use.
type Table struct {
	mu       sync.Mutex
	capacity int
	order    []netip.AddrPort // oldest first
	index    map[netip.AddrPort]struct{}
}

// New returns a Table that holds at most capacity peers. capacity <= 0 is
// treated as 1, the singleton-peer relay default.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = 1
	}
	return &Table{
		capacity: capacity,
		index:    make(map[netip.AddrPort]struct{}, capacity),
	}
}

// Register records peer as active. If peer is already tracked, it is
// moved to most-recently-seen. If the table is at capacity and peer is
// new, the oldest tracked peer is evicted and returned with evicted=true.
func (t *Table) Register(peer netip.AddrPort) (evicted netip.AddrPort, didEvict bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.index[peer]; ok {
		t.touch(peer)
		return netip.AddrPort{}, false
	}

	if len(t.order) >= t.capacity {
		evicted = t.order[0]
		t.order = t.order[1:]
		delete(t.index, evicted)
		didEvict = true
	}

	t.order = append(t.order, peer)
	t.index[peer] = struct{}{}
	return evicted, didEvict
}

func (t *Table) touch(peer netip.AddrPort) {
	for i, p := range t.order {
		if p == peer {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.order = append(t.order, peer)
}

// Current returns the most recently registered peer. In the default
// MaxPeers=1 configuration this is the relay's single active local peer,
// the destination for every inbound datagram.
func (t *Table) Current() (netip.AddrPort, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) == 0 {
		return netip.AddrPort{}, false
	}
	return t.order[len(t.order)-1], true
}

// Active returns a snapshot of all currently tracked peers, oldest first.
func (t *Table) Active() []netip.AddrPort {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]netip.AddrPort, len(t.order))
	copy(out, t.order)
	return out
}
