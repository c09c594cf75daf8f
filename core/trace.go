package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/ddsroute/perf"
	"github.com/encodeous/ddsroute/state"
)

// TraceEvent is a router event as published to trace listeners
type TraceEvent struct {
	Time  time.Time
	Event RouterEvent
	Desc  string
	Args  []any
}

func (e TraceEvent) String() string {
	sb := strings.Builder{}
	sb.WriteString(e.Time.Format("15:04:05.000"))
	sb.WriteByte(' ')
	sb.WriteString(e.Event.String())
	sb.WriteString(": ")
	sb.WriteString(e.Desc)
	for i := 0; i+1 < len(e.Args); i += 2 {
		sb.WriteString(fmt.Sprintf(" %v=%v", e.Args[i], e.Args[i+1]))
	}
	return sb.String()
}

// RouterTrace fans router events out to any number of listeners
type RouterTrace struct {
	broadcast.Broadcaster
	mu     sync.RWMutex
	closed bool
}

func (n *RouterTrace) Init(s *state.State) error {
	n.Broadcaster = broadcast.NewBroadcaster(1024)
	return nil
}

// Publish submits an event unless the trace has been shut down. Events are dropped while
// listeners are too slow to keep up, so publishing never blocks the router.
func (n *RouterTrace) Publish(e TraceEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	if !n.TrySubmit(e) {
		perf.DroppedTraceEvents.Add(1)
	}
}

// Listen streams events into fn until it returns false or done is closed
func (n *RouterTrace) Listen(done <-chan struct{}, fn func(TraceEvent) bool) {
	ch := make(chan interface{}, 64)
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.Register(ch)
	n.mu.RUnlock()

	defer n.unregister(ch)
	for {
		select {
		case v := <-ch:
			if e, ok := v.(TraceEvent); ok && !fn(e) {
				return
			}
		case <-done:
			return
		}
	}
}

func (n *RouterTrace) unregister(ch chan interface{}) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	// the broadcaster may be blocked sending to ch, keep draining until it has let go
	unreg := make(chan struct{})
	go func() {
		n.Unregister(ch)
		close(unreg)
	}()
	for {
		select {
		case <-ch:
		case <-unreg:
			return
		}
	}
}

func (n *RouterTrace) Cleanup(s *state.State) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	return n.Broadcaster.Close()
}
