package transmit

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwsl/pagewatch/mcast"
	"github.com/cwsl/pagewatch/paging"
	"github.com/cwsl/pagewatch/rtpwire"
)

// fakeClock advances only when Sleep is called, so deadline-driven
// tests run instantly and deterministically instead of sleeping in
// real wall-clock time.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func TestFrameSourcePadsLastFrame(t *testing.T) {
	samples := make([]int16, 170)
	frames := FrameSource(samples, 160)
	require.Len(t, frames, 2)
	assert.Len(t, frames[0], 160)
	assert.Len(t, frames[1], 160)
}

func TestFrameSourceExactMultiple(t *testing.T) {
	samples := make([]int16, 320)
	frames := FrameSource(samples, 160)
	require.Len(t, frames, 2)
}

func TestSendRTPProducesMonotonicStream(t *testing.T) {
	if testing.Short() {
		t.Skip("requires multicast-capable network namespace")
	}

	ep := mcast.Endpoint{Group: net.ParseIP("239.42.43.1"), Port: 16004}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := mcast.Listen(ctx, ep, mcast.ListenOptions{})
	require.NoError(t, err)
	defer listener.Close()

	tx, err := mcast.NewTransmitSocket(ep, mcast.TransmitOptions{TTL: 1})
	require.NoError(t, err)
	defer tx.Close()

	frames := [][]byte{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	plan := RTPSendPlan{PayloadType: 0, SSRC: 0xCAFEBABE, FrameSamples: 160, SampleRate: 8000}

	clock := newFakeClock()
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(1*time.Second)))
	require.NoError(t, SendRTP(tx, clock, plan, frames))

	buf := make([]byte, 1500)
	var lastSeq uint16
	for i := 0; i < len(frames); i++ {
		n, _, err := listener.ReadFrom(buf)
		require.NoError(t, err)
		pkt, err := rtpwire.Parse(buf[:n])
		require.NoError(t, err)
		assert.Equal(t, uint32(0xCAFEBABE), pkt.Header.SSRC)
		if i > 0 {
			assert.Equal(t, lastSeq+1, pkt.Header.SequenceNumber)
		}
		lastSeq = pkt.Header.SequenceNumber
	}
}

func TestSendPagingBuildsAlertAudioEndSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("requires multicast-capable network namespace")
	}

	ep := mcast.Endpoint{Group: net.ParseIP("239.42.43.2"), Port: 16005}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listener, err := mcast.Listen(ctx, ep, mcast.ListenOptions{})
	require.NoError(t, err)
	defer listener.Close()

	tx, err := mcast.NewTransmitSocket(ep, mcast.TransmitOptions{TTL: 1})
	require.NoError(t, err)
	defer tx.Close()

	builder, err := paging.NewBuilder(10, 1, "caller", paging.AudioCodecUlaw)
	require.NoError(t, err)

	plan := PagingSendPlan{
		AlertCount:      2,
		EndCount:        2,
		ControlInterval: 0,
		PostAlertDelay:  0,
		PostAudioDelay:  0,
		FrameInterval:   20 * time.Millisecond,
	}
	frames := [][]byte{make([]byte, 160), make([]byte, 160)}

	clock := newFakeClock()
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(1*time.Second)))
	require.NoError(t, SendPaging(tx, clock, builder, plan, frames, 160))

	buf := make([]byte, 1500)
	var opcodes []paging.OpCode
	for i := 0; i < plan.AlertCount+len(frames)+plan.EndCount; i++ {
		n, _, err := listener.ReadFrom(buf)
		require.NoError(t, err)
		h, _, err := paging.Parse(buf[:n])
		require.NoError(t, err)
		opcodes = append(opcodes, h.OpCode)
	}

	assert.Equal(t, paging.OpAlert, opcodes[0])
	assert.Equal(t, paging.OpAlert, opcodes[1])
	assert.Equal(t, paging.OpTransmit, opcodes[2])
	assert.Equal(t, paging.OpTransmit, opcodes[3])
	assert.Equal(t, paging.OpEnd, opcodes[4])
	assert.Equal(t, paging.OpEnd, opcodes[5])
}

func TestSplitRawFramesPadsLastFrame(t *testing.T) {
	frames := splitRawFrames(make([]byte, 170), 160)
	require.Len(t, frames, 2)
	assert.Len(t, frames[1], 160)
}
