package state

import (
	"fmt"
	"time"
)

// RouteState is the lifecycle of a route slot: Unused -> Valid -> Aging -> Expired -> Unused
type RouteState uint8

const (
	Unused RouteState = iota
	Valid
	Aging
	Expired
)

func (s RouteState) String() string {
	switch s {
	case Unused:
		return "unused"
	case Valid:
		return "valid"
	case Aging:
		return "aging"
	case Expired:
		return "expired"
	}
	return fmt.Sprintf("RouteState(%d)", uint8(s))
}

// Usable reports whether traffic may be forwarded over a slot in this state
func (s RouteState) Usable() bool {
	return s == Valid || s == Aging
}

// RouteClass selects one of the two independently maintained route slots of an entry
type RouteClass uint8

const (
	Standard RouteClass = iota
	NonStandard
)

const NumClasses = 2

var Classes = [NumClasses]RouteClass{Standard, NonStandard}

func (c RouteClass) String() string {
	switch c {
	case Standard:
		return "standard"
	case NonStandard:
		return "non-standard"
	}
	return fmt.Sprintf("RouteClass(%d)", uint8(c))
}

func (c RouteClass) Valid() bool {
	return c < NumClasses
}

type RouteSlot struct {
	Expiration time.Time
	NextHop    SourceAddr
	Port       int
	Metric     uint8
	State      RouteState
}

func (r RouteSlot) String() string {
	if r.State == Unused {
		return "(unused)"
	}
	return fmt.Sprintf("(nh: %s, port: %d, metric: %d, state: %s)", r.NextHop, r.Port, r.Metric, r.State)
}

type RouteEntry struct {
	Network NetworkId
	Routes  [NumClasses]RouteSlot
}

// Free reports whether neither class holds a live route, making the entry reusable for another network
func (e *RouteEntry) Free() bool {
	for _, r := range e.Routes {
		if r.State != Unused && r.State != Expired {
			return false
		}
	}
	return true
}

func (e *RouteEntry) String() string {
	return fmt.Sprintf("%s std %s nstd %s", e.Network, e.Routes[Standard], e.Routes[NonStandard])
}

// ClampMetric limits a hop count to [0, Infinity]
func ClampMetric(hops int) uint8 {
	return uint8(min(max(hops, 0), Infinity))
}

func (c RouteClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *RouteClass) UnmarshalText(text []byte) error {
	switch string(text) {
	case "standard", "std", "":
		*c = Standard
	case "non-standard", "nonstandard", "nstd":
		*c = NonStandard
	default:
		return fmt.Errorf("unknown route class %q", string(text))
	}
	return nil
}
