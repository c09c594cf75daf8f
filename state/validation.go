package state

import (
	"fmt"
	"net/netip"
	"os"
	"path"
	"path/filepath"
	"regexp"

	"github.com/gaissmai/bart"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func BindValidator(s string) error {
	_, err := netip.ParseAddrPort(s)
	return err
}

func PortValidator(idx int, port Port) error {
	if !port.Kind.Active() {
		return nil
	}
	if port.Network == 0 {
		return fmt.Errorf("port %d: network must not be 0", idx)
	}
	if !port.Subnet.IsValid() {
		return fmt.Errorf("port %d: subnet is invalid", idx)
	}
	for _, peer := range port.Peers {
		if !peer.IsValid() {
			return fmt.Errorf("port %d: peer %s is invalid", idx, peer)
		}
		if !port.Subnet.Contains(peer.Addr().Unmap()) {
			return fmt.Errorf("port %d: peer %s is outside of subnet %s", idx, peer, port.Subnet)
		}
	}
	return nil
}

func NodeConfigValidator(node *LocalCfg) error {
	err := NameValidator(node.Id)
	if err != nil {
		return err
	}
	if node.Host == (HostId{}) {
		return fmt.Errorf("node.Host must not be zero")
	}
	err = BindValidator(node.Bind)
	if err != nil {
		return fmt.Errorf("node.Bind is invalid: %w", err)
	}
	if node.LogPath != "" {
		if err := PathValidator(node.LogPath); err != nil {
			return fmt.Errorf("node.LogPath is invalid: %w", err)
		}
	}
	if len(node.Ports) > MaxPorts {
		return fmt.Errorf("%d ports configured, at most %d are supported", len(node.Ports), MaxPorts)
	}

	// subnets of active ports must not overlap, otherwise a neighbour could not be attributed to a port
	subnets := bart.Table[int]{}
	networks := make(map[NetworkId]int)
	for i, port := range node.Ports {
		err = PortValidator(i, port)
		if err != nil {
			return err
		}
		if !port.Kind.Active() {
			continue
		}
		if subnets.OverlapsPrefix(port.Subnet.Masked()) {
			return fmt.Errorf("port %d: subnet %s overlaps with another port", i, port.Subnet)
		}
		subnets.Insert(port.Subnet.Masked(), i)
		if other, ok := networks[port.Network]; ok {
			return fmt.Errorf("port %d: network %s is already attached to port %d", i, port.Network, other)
		}
		networks[port.Network] = i
	}

	for _, route := range node.Static {
		if route.Network == 0 {
			return fmt.Errorf("static route: network must not be 0")
		}
		if route.Port < 0 || route.Port >= len(node.Ports) {
			return fmt.Errorf("static route to %s: port %d does not exist", route.Network, route.Port)
		}
		if route.Metric < 0 || route.Metric > Infinity {
			return fmt.Errorf("static route to %s: metric %d out of range", route.Network, route.Metric)
		}
		if !route.Class.Valid() {
			return fmt.Errorf("static route to %s: invalid class %d", route.Network, route.Class)
		}
	}
	return nil
}
