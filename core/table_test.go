package core

import (
	"testing"

	"github.com/encodeous/ddsroute/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashNetwork(t *testing.T) {
	for _, n := range []state.NetworkId{1, 63, 64, 65, 0xdeadbeef} {
		assert.Equal(t, int(n)&63, hashNetwork(n))
		assert.Equal(t, hashNetwork(n), hashNetwork(n))
	}
}

func TestLookupProbesOnCollision(t *testing.T) {
	for _, held := range []state.RouteState{state.Valid, state.Aging} {
		t.Run(held.String(), func(t *testing.T) {
			s := routeStore{}
			a := s.lookup(0x41, false, true)
			require.NotNil(t, a)
			a.Routes[state.Standard].State = held

			b := s.lookup(0x01, false, true)
			require.NotNil(t, b)
			assert.Same(t, &s.slots[1], a)
			assert.Same(t, &s.slots[2], b)
			assert.Same(t, b, s.lookup(0x01, false, false))
			assert.Same(t, a, s.lookup(0x41, false, false))
		})
	}
}

func TestLookupReusesNeverValidatedEntry(t *testing.T) {
	s := routeStore{}
	a := s.lookup(0x41, false, true)
	require.NotNil(t, a)

	b := s.lookup(0x01, false, true)
	assert.Same(t, &s.slots[1], b)
	assert.Equal(t, state.NetworkId(0x01), s.slots[1].Network)
	assert.Nil(t, s.lookup(0x41, false, false))
}

func TestLookupIgnoresNetworkZero(t *testing.T) {
	s := routeStore{}
	assert.Nil(t, s.lookup(0, false, true))
}

func TestLookupMissing(t *testing.T) {
	s := routeStore{}
	assert.Nil(t, s.lookup(5, false, false))
	assert.Zero(t, s.slots[5].Network)
}

func TestCreatedEntryIsStale(t *testing.T) {
	s := routeStore{}
	e := s.lookup(7, true, true)
	require.NotNil(t, e)
	assert.Equal(t, state.NetworkId(7), e.Network)
	assert.Equal(t, 1, e.refs)
	for _, class := range state.Classes {
		assert.Equal(t, state.Expired, e.Routes[class].State)
		assert.Equal(t, uint8(state.Infinity), e.Routes[class].Metric)
	}
}

func TestInsertionReusesFirstFreeSlot(t *testing.T) {
	s := routeStore{}
	for _, n := range []state.NetworkId{1, 65, 129, 193} {
		e := s.lookup(n, false, true)
		require.NotNil(t, e)
		e.Routes[state.Standard].State = state.Valid
		e.Routes[state.NonStandard].State = state.Valid
	}
	// 65 has one expired and one unused class, 129 is entirely unused
	s.slots[2].Routes[state.Standard].State = state.Expired
	s.slots[2].Routes[state.NonStandard].State = state.Unused
	s.slots[3].Routes[state.Standard].State = state.Unused
	s.slots[3].Routes[state.NonStandard].State = state.Unused

	e := s.lookup(257, false, true)
	assert.Same(t, &s.slots[2], e)
	assert.Equal(t, state.NetworkId(257), s.slots[2].Network)
	assert.Equal(t, state.NetworkId(129), s.slots[3].Network)
}

func TestInsertionSkipsAgingSlot(t *testing.T) {
	s := routeStore{}
	e := s.lookup(1, false, true)
	e.Routes[state.Standard].State = state.Aging
	e.Routes[state.NonStandard].State = state.Unused

	n := s.lookup(65, false, true)
	assert.Same(t, &s.slots[2], n)
}

func TestPinAndUnpin(t *testing.T) {
	s := routeStore{}
	s.lookup(9, true, true)
	s.lookup(9, true, false)
	assert.Equal(t, 2, s.slots[9].refs)
	s.unpin(9)
	s.unpin(9)
	s.unpin(9)
	assert.Equal(t, 0, s.slots[9].refs)
}
