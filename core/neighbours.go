package core

import (
	"context"
	"net/netip"
	"time"

	"github.com/encodeous/ddsroute/state"
	"github.com/jellydator/ttlcache/v3"
)

type neighbourKey struct {
	Source state.SourceAddr
	Class  state.RouteClass
}

// Neighbour is a router we have recently received routes from
type Neighbour struct {
	Source   state.SourceAddr
	Class    state.RouteClass
	Port     int
	Addr     netip.AddrPort
	LastSeen time.Time
}

func newNeighbourCache(ttl time.Duration) *ttlcache.Cache[neighbourKey, Neighbour] {
	return ttlcache.New[neighbourKey, Neighbour](
		ttlcache.WithTTL[neighbourKey, Neighbour](ttl),
		ttlcache.WithDisableTouchOnHit[neighbourKey, Neighbour](),
	)
}

// markAlive refreshes the neighbour that sent a response
func (t *Transport) markAlive(source state.SourceAddr, class state.RouteClass, port int, addr netip.AddrPort) {
	key := neighbourKey{source, class}
	if !t.neighbours.Has(key) {
		t.env.Log.Info("neighbour up", "source", source, "class", class, "port", port, "addr", addr)
	}
	t.neighbours.Set(key, Neighbour{
		Source:   source,
		Class:    class,
		Port:     port,
		Addr:     addr,
		LastSeen: time.Now(),
	}, ttlcache.DefaultTTL)
}

// neighbourDown withdraws everything learned from a neighbour that stopped refreshing its routes
func (t *Transport) neighbourDown(ctx context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[neighbourKey, Neighbour]) {
	if reason != ttlcache.EvictionReasonExpired {
		return
	}
	n := item.Value()
	t.env.Log.Info("neighbour down", "source", n.Source, "class", n.Class, "port", n.Port)
	t.Table.UpdateAllFromSource(n.Source, state.Infinity, n.Port, n.Class)
}

// Neighbours returns every live neighbour
func (t *Transport) Neighbours() []Neighbour {
	out := make([]Neighbour, 0)
	for _, item := range t.neighbours.Items() {
		if !item.IsExpired() {
			out = append(out, item.Value())
		}
	}
	return out
}

func gcNeighbours(s *state.State) error {
	Get[*Transport](s).neighbours.DeleteExpired()
	return nil
}
