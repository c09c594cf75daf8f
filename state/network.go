package state

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// NetworkId identifies a destination network. 0 means "no network", which is always delivered locally.
type NetworkId uint32

func (n NetworkId) String() string {
	return fmt.Sprintf("%08x", uint32(n))
}

func (n NetworkId) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *NetworkId) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(string(text), "0x"), 16, 32)
	if err != nil {
		return fmt.Errorf("invalid network id %q: %w", string(text), err)
	}
	*n = NetworkId(v)
	return nil
}

// HostId is the 6 byte host part of a SourceAddr
type HostId [6]byte

// hostLowMask selects the low 20 bits of a host, which is all the standard transport compares
const hostLowMask = 1<<20 - 1

func (h HostId) Low20() uint32 {
	return (uint32(h[3])<<16 | uint32(h[4])<<8 | uint32(h[5])) & hostLowMask
}

func (h HostId) String() string {
	sb := strings.Builder{}
	for i, b := range h {
		if i != 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	return sb.String()
}

func (h HostId) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HostId) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), ":")
	if len(parts) != len(h) {
		return fmt.Errorf("invalid host id %q: expected %d octets", string(text), len(h))
	}
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return fmt.Errorf("invalid host id %q: %w", string(text), err)
		}
		h[i] = byte(b)
	}
	return nil
}

// SourceAddr is an xns-style address of a neighbour, used as the next hop of a route.
type SourceAddr struct {
	Network NetworkId
	Host    HostId
}

// SourceAddrLen is the encoded length of a SourceAddr
const SourceAddrLen = 10

// Matches compares two addresses using the rule of the route class.
// Non-standard routes compare the whole host, standard routes only the low 20 bits, since the
// standard transport aliases host addresses.
func (s SourceAddr) Matches(other SourceAddr, class RouteClass) bool {
	if class == NonStandard {
		return s.Host == other.Host
	}
	return s.Host.Low20() == other.Host.Low20()
}

func (s SourceAddr) String() string {
	return fmt.Sprintf("%s.%s", s.Network, s.Host)
}

func (s SourceAddr) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SourceAddr) UnmarshalText(text []byte) error {
	net, host, ok := strings.Cut(string(text), ".")
	if !ok {
		return fmt.Errorf("invalid source address %q, expected <network>.<host>", string(text))
	}
	if err := s.Network.UnmarshalText([]byte(net)); err != nil {
		return err
	}
	return s.Host.UnmarshalText([]byte(host))
}

// ParseSourceAddr parses the text form produced by SourceAddr.String
func ParseSourceAddr(s string) (SourceAddr, error) {
	addr := SourceAddr{}
	err := addr.UnmarshalText([]byte(s))
	return addr, err
}
