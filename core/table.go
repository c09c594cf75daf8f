package core

import (
	"time"

	"github.com/encodeous/ddsroute/state"
)

type tableSlot struct {
	state.RouteEntry
	// refs is an advisory count of transient references held by next hop lookups
	refs int
}

// routeStore is the fixed capacity hash table of route entries. It does no locking of its own.
type routeStore struct {
	slots [state.TableSize]tableSlot
}

func hashNetwork(network state.NetworkId) int {
	return int(network & state.TableMask)
}

// lookup finds the entry for network by linear probing from its hash. When the entry is missing and
// create is set, the first entry on the probe path without a live route is taken over for network.
func (s *routeStore) lookup(network state.NetworkId, pin bool, create bool) *tableSlot {
	if network == 0 {
		return nil
	}
	start := hashNetwork(network)
	var candidate *tableSlot
	for i := 0; i < state.TableSize; i++ {
		slot := &s.slots[(start+i)&state.TableMask]
		if slot.Network == network {
			if pin {
				slot.refs++
			}
			return slot
		}
		if candidate == nil && slot.Free() {
			candidate = slot
		}
	}
	if !create || candidate == nil {
		return nil
	}

	candidate.Network = network
	for i := range candidate.Routes {
		// a new entry is known but stale until an update makes it valid
		candidate.Routes[i] = state.RouteSlot{
			Expiration: time.Time{},
			Metric:     state.Infinity,
			State:      state.Expired,
		}
	}
	candidate.refs = 0
	if pin {
		candidate.refs = 1
	}
	return candidate
}

func (s *routeStore) unpin(network state.NetworkId) {
	slot := s.lookup(network, false, false)
	if slot != nil && slot.refs > 0 {
		slot.refs--
	}
}
