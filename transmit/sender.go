package transmit

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cwsl/pagewatch/mcast"
	"github.com/cwsl/pagewatch/paging"
	"github.com/cwsl/pagewatch/rtpwire"
)

// Clock abstracts time.Now/time.Sleep so tests can run without real
// wall-clock waits.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock is the production Clock implementation.
func RealClock() Clock { return realClock{} }

// RTPSendPlan is one built-and-paced RTP transmission run.
type RTPSendPlan struct {
	PayloadType  uint8
	SSRC         uint32
	FrameSamples int
	SampleRate   int
}

// SendRTP transmits encoded frames as an RTP stream at precisely
// frameSamples/sampleRate cadence: sequence increments by 1
// (wrapping), timestamp by frameSamples, and each send targets
// start + samplesSent/sampleRate rather than a fixed per-frame sleep,
// so a late send doesn't compound drift.
func SendRTP(tx *mcast.TransmitSocket, clock Clock, plan RTPSendPlan, frames [][]byte) error {
	seq := uint16(rand.Uint32())
	ts := uint32(rand.Uint32())

	start := clock.Now()
	var samplesSent int64

	for i, payload := range frames {
		marker := i == 0
		pkt, err := rtpwire.Build(plan.PayloadType, seq, ts, plan.SSRC, payload, marker)
		if err != nil {
			return fmt.Errorf("transmit: build rtp packet: %w", err)
		}
		if _, err := tx.Write(pkt); err != nil {
			return fmt.Errorf("transmit: send rtp packet: %w", err)
		}

		seq++
		ts += uint32(plan.FrameSamples)
		samplesSent += int64(plan.FrameSamples)

		expected := start.Add(time.Duration(float64(samplesSent) / float64(plan.SampleRate) * float64(time.Second)))
		if d := expected.Sub(clock.Now()); d > 0 {
			clock.Sleep(d)
		}
	}
	return nil
}

// PagingSendPlan parameterizes one paging transmission.
type PagingSendPlan struct {
	AlertCount      int
	EndCount        int
	ControlInterval time.Duration
	PostAlertDelay  time.Duration
	PostAudioDelay  time.Duration
	FrameInterval   time.Duration // 20ms
}

// SendPaging runs the full alert-burst -> deadline-paced audio ->
// end-burst cycle over tx. The deadline accumulates by FrameInterval
// regardless of how long each send took, so cadence is preserved even
// when one send is late.
func SendPaging(tx *mcast.TransmitSocket, clock Clock, builder *paging.Builder, plan PagingSendPlan, audioFrames [][]byte, frameSamples int) error {
	for i := 0; i < plan.AlertCount; i++ {
		pkt, err := builder.BuildAlert()
		if err != nil {
			return fmt.Errorf("transmit: build alert: %w", err)
		}
		if _, err := tx.Write(pkt); err != nil {
			return fmt.Errorf("transmit: send alert: %w", err)
		}
		if i < plan.AlertCount-1 {
			clock.Sleep(plan.ControlInterval)
		}
	}

	clock.Sleep(plan.PostAlertDelay)

	deadline := clock.Now()
	for _, frame := range audioFrames {
		now := clock.Now()
		if deadline.After(now) {
			clock.Sleep(deadline.Sub(now))
		}
		pkt, err := builder.BuildTransmit(frame, frameSamples)
		if err != nil {
			return fmt.Errorf("transmit: build transmit packet: %w", err)
		}
		if _, err := tx.Write(pkt); err != nil {
			return fmt.Errorf("transmit: send transmit packet: %w", err)
		}
		deadline = deadline.Add(plan.FrameInterval)
	}

	clock.Sleep(plan.PostAudioDelay)

	for i := 0; i < plan.EndCount; i++ {
		pkt, err := builder.BuildEnd()
		if err != nil {
			return fmt.Errorf("transmit: build end: %w", err)
		}
		if _, err := tx.Write(pkt); err != nil {
			return fmt.Errorf("transmit: send end: %w", err)
		}
		if i < plan.EndCount-1 {
			clock.Sleep(plan.ControlInterval)
		}
	}

	return nil
}
