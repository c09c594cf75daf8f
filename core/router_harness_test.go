package core

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/encodeous/ddsroute/state"
	"github.com/google/go-cmp/cmp"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness records everything the table asks of its router. Like the transport it consumes the
// change flags, and it reads the table back, which would deadlock if the table lock were still held.
type RouterHarness struct {
	table   *RouteTable
	actions []HarnessEvent
}

func (h *RouterHarness) SendUpdates(class state.RouteClass) {
	if h.table == nil {
		h.actions = append(h.actions, MakeEvent("SEND_UPDATES", class))
		return
	}
	_ = h.table.Records(class)
	if h.table.TakeChanges(class) {
		h.actions = append(h.actions, MakeEvent("SEND_UPDATES", class))
	}
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// GetActions returns the non log actions since the last call
func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}
	h.actions = make([]HarnessEvent, 0)
	return x
}

// GetLogs returns the logged router events since the last call
func (h *RouterHarness) GetLogs() []RouterEvent {
	x := make([]RouterEvent, 0)
	for _, action := range h.actions {
		if action.Message == "LOG" {
			x = append(x, action.Args[0].(RouterEvent))
		}
	}
	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message != msg || len(event.Args) < len(args) {
			continue
		}
		match := true
		for i, arg := range args {
			if !cmp.Equal(event.Args[i], arg) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

// MockPorts is a port lookup over a fixed set of attached networks
type MockPorts map[state.NetworkId]int

func (m MockPorts) LocalPort(network state.NetworkId) (int, bool) {
	idx, ok := m[network]
	return idx, ok
}

// MockClock is a manually advanced clock
type MockClock struct {
	now time.Time
}

func (c *MockClock) Now() time.Time {
	return c.now
}

func (c *MockClock) Advance(units int) {
	c.now = c.now.Add(state.Units(units))
}

func NewTestTable(ports state.PortLookup) (*RouteTable, *RouterHarness, *MockClock) {
	h := &RouterHarness{}
	t := NewRouteTable(ports, h)
	h.table = t
	clock := &MockClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	t.Clock = clock.Now
	return t, h, clock
}

func MakeSource(network state.NetworkId, host uint32) state.SourceAddr {
	return state.SourceAddr{
		Network: network,
		Host:    state.HostId{0, 0, byte(host >> 24), byte(host >> 16), byte(host >> 8), byte(host)},
	}
}

// route returns a copy of the slot for network, failing the test if there is no entry
func route(t *testing.T, rt *RouteTable, network state.NetworkId, class state.RouteClass) state.RouteSlot {
	t.Helper()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	e := rt.store.lookup(network, false, false)
	if e == nil {
		t.Fatalf("no entry for %s", network)
	}
	return e.Routes[class]
}

// setRoute overwrites the slot for network, creating the entry if needed
func setRoute(t *testing.T, rt *RouteTable, network state.NetworkId, class state.RouteClass, r state.RouteSlot) {
	t.Helper()
	rt.mu.Lock()
	defer rt.mu.Unlock()
	e := rt.store.lookup(network, false, true)
	if e == nil {
		t.Fatalf("no room for %s", network)
	}
	e.Routes[class] = r
}
