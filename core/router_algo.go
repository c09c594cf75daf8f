package core

import (
	"fmt"
	"time"

	"github.com/encodeous/ddsroute/perf"
	"github.com/encodeous/ddsroute/state"
)

// NextHop is the result of next hop resolution
type NextHop struct {
	Metric uint8
	Port   int
	// Addr is where the packet should be sent, the destination itself for direct delivery
	Addr state.SourceAddr
	// Direct is set when the destination is on a local network and the table was not consulted
	Direct bool
}

// Age runs one aging sweep over every route. All routes are judged against a single point in time.
func (t *RouteTable) Age() {
	var events eventLog

	t.mu.Lock()
	now := t.Clock()
	for i := range t.store.slots {
		e := &t.store.slots[i]
		for _, class := range state.Classes {
			r := &e.Routes[class]
			if r.State == state.Unused || now.Before(r.Expiration) {
				continue
			}
			switch r.State {
			case state.Valid:
				if r.Metric == 0 {
					continue // direct routes never age
				}
				r.State = state.Aging
				r.Expiration = now.Add(state.Units(state.RouteTimeout))
				events.add(RouteAging, "route missed a refresh", "net", e.Network, "class", class, "route", *r)
			case state.Aging:
				r.Metric = state.Infinity
				r.State = state.Expired
				r.Expiration = now.Add(state.Units(state.RouteTimeout))
				t.markChanged(class)
				events.add(RouteExpired, "route expired", "net", e.Network, "class", class, "route", *r)
			case state.Expired:
				r.State = state.Unused
				events.add(RouteFreed, "route slot freed", "net", e.Network, "class", class)
			default:
				events.add(InconsistentState, "route in unknown state", "net", e.Network, "class", class, "state", r.State)
			}
		}
	}
	t.mu.Unlock()

	t.flush(events)
	for _, class := range state.Classes {
		t.trigger(class)
	}
}

// UpdateOne merges an advertisement of network received from source into the table.
// It returns state.ErrTooManyNetworks if the network is new and the table has no room for it.
func (t *RouteTable) UpdateOne(network state.NetworkId, source state.SourceAddr, hopCount int, port int, class state.RouteClass) error {
	if network == 0 {
		return nil
	}
	if !class.Valid() {
		return fmt.Errorf("update for %s: invalid route class %d", network, class)
	}
	metric := state.ClampMetric(hopCount)
	var events eventLog

	t.mu.Lock()
	e := t.store.lookup(network, false, true)
	if e == nil {
		t.mu.Unlock()
		events.add(TableFull, "no room for network", "net", network, "from", source)
		t.flush(events)
		return state.ErrTooManyNetworks
	}
	r := &e.Routes[class]
	if shouldApply(r, source, metric, class) {
		t.apply(&events, e.Network, r, source, metric, port, class, t.Clock())
		perf.RouteUpdates.Add(1)
	} else {
		events.add(RouteRejected, "kept existing route", "net", network, "class", class, "from", source, "metric", metric, "route", *r)
		perf.RejectedUpdates.Add(1)
	}
	t.mu.Unlock()

	t.flush(events)
	if t.HasChanges(class) {
		t.trigger(class)
	}
	return nil
}

// UpdateAllFromSource applies an advertisement to every route of class whose next hop is source,
// used when everything learned from a neighbour has to be refreshed or withdrawn at once.
func (t *RouteTable) UpdateAllFromSource(source state.SourceAddr, hopCount int, port int, class state.RouteClass) {
	if !class.Valid() {
		return
	}
	metric := state.ClampMetric(hopCount)
	var events eventLog

	t.mu.Lock()
	now := t.Clock()
	for i := range t.store.slots {
		e := &t.store.slots[i]
		r := &e.Routes[class]
		if r.State == state.Unused || !r.NextHop.Matches(source, class) {
			continue
		}
		t.apply(&events, e.Network, r, source, metric, port, class, now)
	}
	t.mu.Unlock()

	t.flush(events)
	if t.HasChanges(class) {
		t.trigger(class)
	}
}

// shouldApply decides whether an advertisement replaces the route currently held in r
func shouldApply(r *state.RouteSlot, source state.SourceAddr, metric uint8, class state.RouteClass) bool {
	// the neighbour we route through may always update or withdraw its own route
	if r.State != state.Unused && r.NextHop.Matches(source, class) {
		return true
	}
	if metric < r.Metric {
		return true
	}
	// any live route is better than a stale one
	return r.State != state.Valid && metric <= state.AdvertisedInfinity
}

func (t *RouteTable) apply(events *eventLog, network state.NetworkId, r *state.RouteSlot, source state.SourceAddr, metric uint8, port int, class state.RouteClass, now time.Time) {
	if r.Metric != metric {
		t.markChanged(class)
	}

	// a direct route is not dropped on the first unreachable advertisement, it has to age out first
	if r.Metric == 0 && r.State == state.Valid && metric >= state.AdvertisedInfinity {
		r.State = state.Aging
		r.Expiration = now.Add(state.Units(state.AgingTimeout))
		events.add(WithdrawalDeferred, "direct route withdrawn, aging it out", "net", network, "class", class, "from", source)
		return
	}

	event, desc := RouteChanged, "route refreshed"
	switch {
	case !r.State.Usable():
		event, desc = RouteAdded, "route added"
	case metric >= state.AdvertisedInfinity:
		event, desc = RouteRetracted, "route retracted"
	case metric < r.Metric:
		event, desc = RouteImproved, "route improved"
	}

	r.NextHop = source
	r.Port = port
	r.Metric = metric
	r.State = state.Valid
	r.Expiration = now.Add(state.Units(state.RouteTimeout))
	events.add(event, desc, "net", network, "class", class, "route", *r)
}

// FindNextHop resolves where a packet for dest should be sent. Destinations on a local network are
// delivered directly without consulting the table. A route found in the table pins its entry, the
// caller releases it with Unpin. Direct hops and errors hold no pin.
func (t *RouteTable) FindNextHop(dest state.SourceAddr, class state.RouteClass) (NextHop, error) {
	hop := NextHop{Addr: dest}
	perf.NextHopLookups.Add(1)

	if dest.Network == 0 {
		hop.Direct = true
		perf.DirectHits.Add(1)
		return hop, nil
	}
	if t.ports != nil {
		if idx, ok := t.ports.LocalPort(dest.Network); ok {
			hop.Direct = true
			hop.Port = idx
			perf.DirectHits.Add(1)
			return hop, nil
		}
	}
	if !class.Valid() {
		return hop, state.ErrNoRoute
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.store.lookup(dest.Network, false, false)
	if e == nil {
		return hop, state.ErrNoRoute
	}
	r := e.Routes[class]
	if r.Metric >= state.AdvertisedInfinity || !r.State.Usable() {
		return hop, state.ErrNoRoute
	}
	e.refs++
	hop.Port = r.Port
	if r.Metric != 0 {
		hop.Addr = r.NextHop
	}
	hop.Metric = r.Metric
	return hop, nil
}

// ClosePort withdraws every route of class through port. Direct routes are only withdrawn when force is set.
func (t *RouteTable) ClosePort(port int, class state.RouteClass, force bool) {
	if !class.Valid() {
		return
	}
	var events eventLog

	t.mu.Lock()
	now := t.Clock()
	n := 0
	for i := range t.store.slots {
		e := &t.store.slots[i]
		r := &e.Routes[class]
		if r.State == state.Unused || r.Port != port {
			continue
		}
		if !force && r.Metric == 0 {
			continue
		}
		r.Metric = state.Infinity
		r.State = state.Expired
		r.Expiration = now.Add(state.Units(state.RouteTimeout))
		t.markChanged(class)
		n++
	}
	events.add(PortInvalidated, "port closed", "port", port, "class", class, "force", force, "routes", n)
	t.mu.Unlock()

	t.flush(events)
	if t.HasChanges(class) {
		t.trigger(class)
	}
}
