//go:build integration

package integration

import (
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/ddsroute/core"
	"github.com/encodeous/ddsroute/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	netAB   state.NetworkId = 0x100
	netBC   state.NetworkId = 0x200
	netStub state.NetworkId = 0x1a
)

// chain builds a - b - c, where a has a stub network that c can only reach through b.
// b listens on 127.0.0.1 and tells its two links apart by the loopback address of its neighbours.
func chain(t *testing.T) (*VirtualHarness, *Node, *Node, *Node) {
	vh := &VirtualHarness{Dir: t.TempDir()}
	b := vh.NewNode("b", "127.0.0.1:0",
		state.Port{Network: netAB, Kind: state.PortEthernet, Subnet: netip.MustParsePrefix("127.0.1.0/24")},
		state.Port{Network: netBC, Kind: state.PortEthernet, Subnet: netip.MustParsePrefix("127.0.2.0/24")},
	)
	require.NoError(t, b.Start())
	addrB := b.Addr()

	a := vh.NewNode("a", "127.0.1.1:0",
		state.Port{Network: netAB, Kind: state.PortEthernet, Subnet: netip.MustParsePrefix("127.0.0.0/24"), Peers: []netip.AddrPort{addrB}},
		state.Port{Network: netStub, Kind: state.PortRing, Subnet: netip.MustParsePrefix("192.0.2.0/24")},
	)
	c := vh.NewNode("c", "127.0.2.1:0",
		state.Port{Network: netBC, Kind: state.PortEthernet, Subnet: netip.MustParsePrefix("127.0.0.0/24"), Peers: []netip.AddrPort{addrB}},
	)
	require.NoError(t, a.Start())
	require.NoError(t, c.Start())
	return vh, a, b, c
}

func routeTo(table *core.RouteTable, network state.NetworkId) (core.NextHop, error) {
	return table.FindNextHop(state.SourceAddr{Network: network, Host: state.HostId{0x02, 0, 0, 0, 0, 0x99}}, state.Standard)
}

func TestChainConvergence(t *testing.T) {
	defer goleak.VerifyNone(t)
	defer FastTimers()()
	vh, a, b, c := chain(t)
	defer vh.Stop()

	require.Eventually(t, func() bool {
		hop, err := routeTo(c.Table(), netStub)
		return err == nil && hop.Metric == 2
	}, 5*time.Second, 10*time.Millisecond)

	hop, err := routeTo(c.Table(), netStub)
	require.NoError(t, err)
	assert.Equal(t, core.NextHop{Metric: 2, Port: 0, Addr: b.Source(1)}, hop)

	hop, err = routeTo(b.Table(), netStub)
	require.NoError(t, err)
	assert.Equal(t, core.NextHop{Metric: 1, Port: 0, Addr: a.Source(0)}, hop)

	require.Eventually(t, func() bool {
		hop, err := routeTo(a.Table(), netBC)
		return err == nil && hop.Metric == 1 && hop.Addr == b.Source(0)
	}, 5*time.Second, 10*time.Millisecond)

	// routes keep being refreshed well past their timeout
	time.Sleep(state.Units(state.RouteTimeout) * 2)
	_, err = routeTo(c.Table(), netStub)
	assert.NoError(t, err)
}

func TestNeighbourLoss(t *testing.T) {
	defer goleak.VerifyNone(t)
	defer FastTimers()()
	vh, _, b, c := chain(t)
	defer vh.Stop()

	require.Eventually(t, func() bool {
		_, err := routeTo(c.Table(), netStub)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	b.Stop()
	require.Eventually(t, func() bool {
		_, err := routeTo(c.Table(), netStub)
		return err != nil
	}, 10*time.Second, 10*time.Millisecond)
	_, err := routeTo(c.Table(), netAB)
	assert.ErrorIs(t, err, state.ErrNoRoute)

	// the directly attached link stays usable
	hop, err := routeTo(c.Table(), netBC)
	require.NoError(t, err)
	assert.True(t, hop.Direct)
}

func TestPortDownWithdrawsStub(t *testing.T) {
	defer goleak.VerifyNone(t)
	defer FastTimers()()
	vh, a, _, c := chain(t)
	defer vh.Stop()

	require.Eventually(t, func() bool {
		_, err := routeTo(c.Table(), netStub)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	res, err := core.IPCGet(a.Cfg.GetIpcPath(), "down 1")
	require.NoError(t, err)
	require.Equal(t, "ok\n", res)

	require.Eventually(t, func() bool {
		_, err := routeTo(c.Table(), netStub)
		return err != nil
	}, 5*time.Second, 10*time.Millisecond)
}
