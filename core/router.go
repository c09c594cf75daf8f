package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/encodeous/ddsroute/protocol"
	"github.com/encodeous/ddsroute/state"
)

// Router is the outbound side of the routing table: the transport that emits advertisements
type Router interface {
	// SendUpdates is called after the table may have changed routes of class. The implementation consumes
	// the change flag with RouteTable.TakeChanges and decides whether anything is sent.
	SendUpdates(class state.RouteClass)
	Log(event RouterEvent, desc string, args ...any)
}

// RouteTable is the routing table of the internal network. All methods are safe for concurrent use.
type RouteTable struct {
	mu    sync.Mutex
	store routeStore
	// changes are the per class "recent changes" flags, only set with mu held
	changes [state.NumClasses]atomic.Bool

	ports  state.PortLookup
	router Router
	// Clock returns the current time, it is replaced in tests
	Clock func() time.Time
}

func NewRouteTable(ports state.PortLookup, router Router) *RouteTable {
	return &RouteTable{
		ports:  ports,
		router: router,
		Clock:  time.Now,
	}
}

// TakeChanges reports whether routes of class changed since the last call, and clears the flag
func (t *RouteTable) TakeChanges(class state.RouteClass) bool {
	return t.changes[class].Swap(false)
}

// HasChanges reports whether routes of class changed, without clearing the flag
func (t *RouteTable) HasChanges(class state.RouteClass) bool {
	return t.changes[class].Load()
}

func (t *RouteTable) markChanged(class state.RouteClass) {
	t.changes[class].Store(true)
}

// trigger hands a class to the advertisement sender, it must never be called with mu held
func (t *RouteTable) trigger(class state.RouteClass) {
	if t.router != nil {
		t.router.SendUpdates(class)
	}
}

func (t *RouteTable) flush(events eventLog) {
	if t.router == nil {
		return
	}
	for _, e := range events {
		t.router.Log(e.event, e.desc, e.args...)
	}
}

// Unpin releases a reference taken by FindNextHop
func (t *RouteTable) Unpin(network state.NetworkId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.store.unpin(network)
}

// EntrySnapshot is a copy of a table entry
type EntrySnapshot struct {
	state.RouteEntry
	Index int
	Refs  int
}

// Entries returns a copy of every entry that was ever assigned a network
func (t *RouteTable) Entries() []EntrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]EntrySnapshot, 0, state.TableSize)
	for i, slot := range t.store.slots {
		if slot.Network == 0 {
			continue
		}
		out = append(out, EntrySnapshot{
			RouteEntry: slot.RouteEntry,
			Index:      i,
			Refs:       slot.refs,
		})
	}
	return out
}

// Records returns the advertisement records for every route of class still held in the table.
// Expired routes are advertised as unreachable.
func (t *RouteTable) Records(class state.RouteClass) []protocol.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.Record, 0, state.TableSize)
	for _, slot := range t.store.slots {
		if slot.Network == 0 {
			continue
		}
		r := slot.Routes[class]
		// entries created for the other class carry a stale route that was never held
		if r.State == state.Unused || (r.State == state.Expired && r.Expiration.IsZero()) {
			continue
		}
		out = append(out, protocol.Record{
			Network: slot.Network,
			Metric:  uint16(min(r.Metric, state.AdvertisedInfinity)),
		})
	}
	return out
}
