//go:build integration

package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/encodeous/ddsroute/core"
	"github.com/encodeous/ddsroute/state"
	"github.com/encodeous/tint"
)

// FastTimers shrinks every routing timer so that aging and neighbour loss happen within seconds.
// It returns a function restoring the previous values.
func FastTimers() func() {
	unit, aging, full, req, gc := state.TimeUnit, state.AgingDelay, state.FullTableDelay, state.RequestDelay, state.GcDelay
	state.TimeUnit = 5 * time.Millisecond
	state.AgingDelay = 50 * time.Millisecond
	state.FullTableDelay = 200 * time.Millisecond
	state.RequestDelay = 20 * time.Millisecond
	state.GcDelay = 20 * time.Millisecond
	return func() {
		state.TimeUnit, state.AgingDelay, state.FullTableDelay, state.RequestDelay, state.GcDelay = unit, aging, full, req, gc
	}
}

type Node struct {
	Cfg   state.LocalCfg
	State *state.State
	done  chan struct{}
}

type VirtualHarness struct {
	Dir   string
	Nodes []*Node
}

// NewNode creates a router bound to bind. Host ids are derived from the position of the node.
func (v *VirtualHarness) NewNode(id string, bind string, ports ...state.Port) *Node {
	n := &Node{
		Cfg: state.LocalCfg{
			Id:      id,
			Host:    state.HostId{0x02, 0, 0, 0, 0, byte(len(v.Nodes) + 1)},
			Bind:    bind,
			Ports:   ports,
			IpcPath: filepath.Join(v.Dir, id+".sock"),
		},
	}
	v.Nodes = append(v.Nodes, n)
	return n
}

func (n *Node) Start() error {
	if err := state.NodeConfigValidator(&n.Cfg); err != nil {
		return err
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:        slog.LevelDebug,
		CustomPrefix: n.Cfg.Id,
		TimeFormat:   "15:04:05.000",
	}))
	s, dispatch, err := core.Setup(context.Background(), n.Cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", n.Cfg.Id, err)
	}
	n.State = s
	n.done = make(chan struct{})
	go func() {
		_ = core.MainLoop(s, dispatch)
		close(n.done)
	}()
	return nil
}

func (n *Node) Stop() {
	if n.State == nil {
		return
	}
	n.State.Cancel(errors.New("node stopped"))
	<-n.done
	n.State = nil
}

func (n *Node) Table() *core.RouteTable {
	return core.Get[*core.Transport](n.State).Table
}

func (n *Node) Addr() netip.AddrPort {
	return core.Get[*core.Transport](n.State).LocalAddr()
}

// Source is the address of the node on port
func (n *Node) Source(port int) state.SourceAddr {
	return n.Cfg.Source(port)
}

func (v *VirtualHarness) Stop() {
	for _, n := range v.Nodes {
		n.Stop()
	}
}
