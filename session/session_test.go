package session

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/pagewatch/mcast"
)

func testEndpoint() mcast.Endpoint {
	return mcast.Endpoint{Group: net.ParseIP("239.1.1.1"), Port: 5004}
}

// TestMonotonicStreamNoLoss verifies a gap-free stream reports zero
// loss.
func TestMonotonicStreamNoLoss(t *testing.T) {
	key := Key{Endpoint: testEndpoint(), Protocol: ProtocolRTP, SSRC: 0xAABBCCDD}
	mgr := NewManager(DefaultIdleTimeouts(), nil)

	s, ok := mgr.FindOrCreateRTP(key)
	require.True(t, ok)

	base := time.Now()
	const n = 50
	for i := 0; i < n; i++ {
		seq := uint16(i)
		ts := uint32(i * 160)
		now := base.Add(time.Duration(i) * 20 * time.Millisecond)
		s.OnRTPPacket(seq, ts, 160, now)
	}

	assert.Equal(t, uint64(n), s.Network.PacketsReceived)
	assert.Equal(t, uint64(0), s.Network.PacketsLost)
	assert.Equal(t, 0.0, s.Network.LossPercent())
}

// TestLossAccounting verifies gap-to-loss attribution, including the
// reset threshold above which gaps are not counted as loss.
func TestLossAccounting(t *testing.T) {
	tests := []struct {
		name        string
		gap         int
		expectLosts uint64
	}{
		{"no gap", 1, 0},
		{"small gap", 5, 4},
		{"just under reset threshold", 999, 998},
		{"at reset threshold", 1000, 0},
		{"large reset", 5000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n NetworkStats
			n.observeSequence(0)
			n.observeSequence(uint16(tt.gap))
			assert.Equal(t, tt.expectLosts, n.PacketsLost)
		})
	}
}

func TestLossAccountingWraparound(t *testing.T) {
	var n NetworkStats
	n.observeSequence(65530)
	n.observeSequence(5) // gap = 11 across wraparound
	assert.Equal(t, uint64(10), n.PacketsLost)
}

// TestIdleFinalizationSplitsPages verifies a gap longer than the idle
// timeout finalizes the earlier prefix as one page and lets a later
// packet start a new one.
func TestIdleFinalizationSplitsPages(t *testing.T) {
	key := Key{Endpoint: testEndpoint(), Protocol: ProtocolRTP, SSRC: 0x11223344}
	mgr := NewManager(IdleTimeouts{RTP: 1 * time.Second, Paging: 1 * time.Second}, nil)

	s, ok := mgr.FindOrCreateRTP(key)
	require.True(t, ok)

	base := time.Now()
	s.OnRTPPacket(1, 160, 160, base)
	s.OnRTPPacket(2, 320, 160, base.Add(20*time.Millisecond))

	finalized := mgr.Tick(base.Add(2 * time.Second))
	require.Len(t, finalized, 1)
	assert.Equal(t, FinalizeIdleTimeout, finalized[0].Reason)
	assert.Equal(t, uint64(2), finalized[0].Session.Network.PacketsReceived)

	// same key, later packet starts a new page
	s2, ok := mgr.FindOrCreateRTP(key)
	require.True(t, ok)
	assert.NotSame(t, s, s2)

	later := base.Add(10 * time.Second)
	s2.OnRTPPacket(3, 480, 160, later)
	assert.Equal(t, uint64(1), s2.Network.PacketsReceived)
}

func TestPagingEndCountFinalization(t *testing.T) {
	key := Key{Endpoint: testEndpoint(), Protocol: ProtocolPaging, Channel: 10}
	mgr := NewManager(DefaultIdleTimeouts(), nil)

	s := mgr.FindOrCreatePaging(key)
	now := time.Now()
	s.OnPagingPacket(true, false, false, 20, now)
	for i := 0; i < 100; i++ {
		s.OnPagingPacket(false, true, false, 160, now.Add(time.Duration(i)*20*time.Millisecond))
	}
	for i := 0; i < 3; i++ {
		s.OnPagingPacket(false, false, true, 20, now.Add(2*time.Second))
	}

	assert.Equal(t, StateEnding, s.State)
	assert.Equal(t, 100, s.AudioCount)

	finalized := mgr.Tick(now.Add(2 * time.Second))
	require.Len(t, finalized, 1)
	assert.Equal(t, FinalizeEndCount, finalized[0].Reason)
}

func TestSSRCTieBreak(t *testing.T) {
	ep := testEndpoint()
	mgr := NewManager(DefaultIdleTimeouts(), nil)

	key1 := Key{Endpoint: ep, Protocol: ProtocolRTP, SSRC: 1}
	s1, ok := mgr.FindOrCreateRTP(key1)
	require.True(t, ok)
	s1.OnRTPPacket(1, 160, 160, time.Now())

	key2 := Key{Endpoint: ep, Protocol: ProtocolRTP, SSRC: 2}
	_, ok = mgr.FindOrCreateRTP(key2)
	assert.False(t, ok, "a different active SSRC on the same endpoint must be rejected")
}

func TestFinalizeAllClosesActiveSessionsOnly(t *testing.T) {
	ep := testEndpoint()
	mgr := NewManager(DefaultIdleTimeouts(), nil)

	key1 := Key{Endpoint: ep, Protocol: ProtocolRTP, SSRC: 1}
	s1, ok := mgr.FindOrCreateRTP(key1)
	require.True(t, ok)
	s1.OnRTPPacket(1, 160, 160, time.Now())

	key2 := Key{Endpoint: ep, Protocol: ProtocolPaging, Channel: 2}
	s2 := mgr.FindOrCreatePaging(key2)
	s2.OnPagingPacket(true, false, false, 20, time.Now())

	finalized := mgr.FinalizeAll(time.Now())
	require.Len(t, finalized, 2)
	assert.Empty(t, mgr.Sessions(), "FinalizeAll must remove every session it finalizes")
	for _, f := range finalized {
		assert.Equal(t, FinalizeIdleTimeout, f.Reason)
	}
}

func TestPageIDsAreUniquePerSession(t *testing.T) {
	mgr := NewManager(DefaultIdleTimeouts(), nil)

	key1 := Key{Endpoint: testEndpoint(), Protocol: ProtocolPaging, Channel: 1}
	key2 := Key{Endpoint: testEndpoint(), Protocol: ProtocolPaging, Channel: 2}

	s1 := mgr.FindOrCreatePaging(key1)
	s2 := mgr.FindOrCreatePaging(key2)

	assert.NotEqual(t, uuid.Nil, s1.PageID)
	assert.NotEqual(t, uuid.Nil, s2.PageID)
	assert.NotEqual(t, s1.PageID, s2.PageID)
}
