package state

import (
	"fmt"
	"net/netip"
	"strings"
	"sync"
)

// PortKind is the link type of a local port. Any kind other than PortClosed is an active link.
type PortKind uint8

const (
	PortClosed PortKind = iota
	PortRing
	PortEthernet
	PortSerial
	PortTunnel
)

var portKindNames = map[PortKind]string{
	PortClosed:   "closed",
	PortRing:     "ring",
	PortEthernet: "ethernet",
	PortSerial:   "serial",
	PortTunnel:   "tunnel",
}

func (k PortKind) Active() bool {
	_, ok := portKindNames[k]
	return ok && k != PortClosed
}

func (k PortKind) String() string {
	if name, ok := portKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("PortKind(%d)", uint8(k))
}

func (k PortKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *PortKind) UnmarshalText(text []byte) error {
	for kind, name := range portKindNames {
		if strings.EqualFold(name, string(text)) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown port kind %q", string(text))
}

// Port is one record of the local port table
type Port struct {
	Network NetworkId `yaml:"network"`
	Kind    PortKind  `yaml:"kind"`
	// Subnet is the underlay address range neighbours on this port send from
	Subnet netip.Prefix `yaml:"subnet"`
	// Peers receive advertisements sent out of this port
	Peers []netip.AddrPort `yaml:"peers,omitempty"`
}

// PortLookup is the view of the local port table needed for next hop resolution
type PortLookup interface {
	// LocalPort returns the index of an active port attached to the network
	LocalPort(network NetworkId) (int, bool)
}

// PortTable holds the local ports, it can be read from any Goroutine
type PortTable struct {
	mu    sync.RWMutex
	ports [MaxPorts]Port
}

func NewPortTable(ports []Port) (*PortTable, error) {
	if len(ports) > MaxPorts {
		return nil, fmt.Errorf("%d ports configured, at most %d are supported", len(ports), MaxPorts)
	}
	t := &PortTable{}
	copy(t.ports[:], ports)
	return t, nil
}

func (t *PortTable) LocalPort(network NetworkId) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, p := range t.ports {
		if p.Kind.Active() && p.Network == network {
			return i, true
		}
	}
	return 0, false
}

func (t *PortTable) Get(idx int) (Port, bool) {
	if idx < 0 || idx >= MaxPorts {
		return Port{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ports[idx], true
}

// SetKind changes the link type of a port, returning the previous one
func (t *PortTable) SetKind(idx int, kind PortKind) (PortKind, error) {
	if idx < 0 || idx >= MaxPorts {
		return PortClosed, fmt.Errorf("port %d out of range", idx)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.ports[idx].Kind
	t.ports[idx].Kind = kind
	return old, nil
}

// Active returns the indices of all active ports
func (t *PortTable) Active() []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]int, 0, MaxPorts)
	for i, p := range t.ports {
		if p.Kind.Active() {
			out = append(out, i)
		}
	}
	return out
}
