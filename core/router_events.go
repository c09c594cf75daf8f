package core

import "fmt"

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteImproved
	RouteChanged
	RouteRetracted
	RouteAging
	RouteExpired
	RouteFreed
	RouteRejected
	WithdrawalDeferred
	PortInvalidated
)

// warn events

const (
	TableFull RouterEvent = iota + 1000
	InconsistentState
)

var routerEventNames = map[RouterEvent]string{
	RouteAdded:         "RouteAdded",
	RouteImproved:      "RouteImproved",
	RouteChanged:       "RouteChanged",
	RouteRetracted:     "RouteRetracted",
	RouteAging:         "RouteAging",
	RouteExpired:       "RouteExpired",
	RouteFreed:         "RouteFreed",
	RouteRejected:      "RouteRejected",
	WithdrawalDeferred: "WithdrawalDeferred",
	PortInvalidated:    "PortInvalidated",
	TableFull:          "TableFull",
	InconsistentState:  "InconsistentState",
}

func (e RouterEvent) String() string {
	if name, ok := routerEventNames[e]; ok {
		return name
	}
	return fmt.Sprintf("RouterEvent(%d)", int(e))
}

// IsWarning reports whether the event indicates a problem rather than normal route churn
func (e RouterEvent) IsWarning() bool {
	return e >= 1000
}

type loggedEvent struct {
	event RouterEvent
	desc  string
	args  []any
}

// eventLog collects events while the table lock is held, so they can be emitted after it is released
type eventLog []loggedEvent

func (l *eventLog) add(event RouterEvent, desc string, args ...any) {
	*l = append(*l, loggedEvent{event, desc, args})
}
