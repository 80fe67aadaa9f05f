// Package session reassembles multicast datagrams into logical
// paging sessions: demultiplexing by (endpoint, SSRC) for RTP or
// (endpoint, channel) for paging, tracking network statistics,
// driving the per-session state machine, and finalising pages on an
// explicit end condition or idle timeout.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/pagewatch/analyzer"
	"github.com/cwsl/pagewatch/codec"
	"github.com/cwsl/pagewatch/mcast"
)

// State is a PageSession's position in the paging protocol's state
// machine.
type State int

const (
	StateIdle State = iota
	StateAlerting
	StateTransmitting
	StateEnding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAlerting:
		return "alerting"
	case StateTransmitting:
		return "transmitting"
	case StateEnding:
		return "ending"
	default:
		return "unknown"
	}
}

// Protocol distinguishes which packet grammar keys this session.
type Protocol int

const (
	ProtocolRTP Protocol = iota
	ProtocolPaging
)

// Key identifies a session slot: endpoint plus either an RTP SSRC or a
// paging channel number.
type Key struct {
	Endpoint mcast.Endpoint
	Protocol Protocol
	SSRC     uint32 // RTP
	Channel  uint8  // paging
}

// String identifies the session SLOT, not a specific packet: for RTP
// that's the endpoint alone (SSRC is mutable claimed state within the
// slot, so a new SSRC can contend for or replace it); for paging it
// includes the channel, since multiple channels are independently
// addressable on one endpoint.
func (k Key) String() string {
	if k.Protocol == ProtocolRTP {
		return fmt.Sprintf("%s/rtp", k.Endpoint)
	}
	return fmt.Sprintf("%s/chan=%d", k.Endpoint, k.Channel)
}

// NetworkStats is the per-page RFC 3550-derived network rollup.
type NetworkStats struct {
	PacketsReceived uint64
	BytesReceived   uint64
	PacketsLost     uint64
	JitterMs        float64
	DurationSecs    float64

	haveLastSeq   bool
	lastSeq       uint16
	haveLastTS    bool
	lastTimestamp uint32
	haveLastArr   bool
	lastArrival   time.Time
	jitterAccum   float64
}

// LossPercent returns packets_lost / (received + lost), 0 if no
// packets have been observed.
func (n NetworkStats) LossPercent() float64 {
	total := n.PacketsReceived + n.PacketsLost
	if total == 0 {
		return 0
	}
	return 100.0 * float64(n.PacketsLost) / float64(total)
}

// observeSequence updates loss accounting for an RTP-style 16-bit
// sequence number: gaps g with 1 < g < 1000 attribute g-1 losses;
// anything else (g<=1 covers duplicates and reordering, g>=1000 is
// treated as a stream reset) attributes none.
func (n *NetworkStats) observeSequence(seq uint16) {
	if n.haveLastSeq {
		gap := int(seq) - int(n.lastSeq)
		if gap < 0 {
			gap += 1 << 16
		}
		if gap > 1 && gap < 1000 {
			n.PacketsLost += uint64(gap - 1)
		}
	}
	n.lastSeq = seq
	n.haveLastSeq = true
}

// observeArrivalJitter implements the RFC 3550 interarrival jitter
// estimator (gain 1/16). The arrival delta is converted at a uniform
// 8 kHz clock; for a codec whose timestamps advance at 16 kHz the
// timestamp delta is twice the arrival delta, so even a perfectly
// paced stream converges to a jitter equal to its packet interval. This
// is an accepted approximation for a narrowband-dominated fleet.
func (n *NetworkStats) observeArrivalJitter(timestamp uint32, now time.Time) {
	if n.haveLastArr && n.haveLastTS {
		arrivalDeltaTicks := now.Sub(n.lastArrival).Seconds() * 8000
		tsDelta := int32(timestamp - n.lastTimestamp)
		d := arrivalDeltaTicks - float64(tsDelta)
		if d < 0 {
			d = -d
		}
		n.jitterAccum += (d - n.jitterAccum) / 16
	}
	n.lastTimestamp = timestamp
	n.haveLastTS = true
	n.lastArrival = now
	n.haveLastArr = true
	n.JitterMs = n.jitterAccum / 8
}

// PageSession is one in-progress or recently-finalized logical page.
type PageSession struct {
	Key       Key
	State     State
	CallerID  string // paging only
	SourceStr string // RTP: source socket address
	Codec     codec.Tag
	CodecSet  bool

	// PageID uniquely identifies this page across a run, independent
	// of a reused SSRC or channel number. The sink events do not carry
	// it.
	PageID uuid.UUID

	PageNumber int

	StartMonotonic time.Time
	StartWallClock time.Time
	LastPacket     time.Time

	AlertCount int
	AudioCount int
	EndCount   int

	Network NetworkStats

	Decoder  codec.Decoder
	Analyzer *analyzer.Analyzer

	claimedSSRC   uint32
	haveSSRCClaim bool
}

// NewPageSession constructs an Idle session for key, to be transitioned
// by the first matching packet.
func NewPageSession(key Key, pageNumber int) *PageSession {
	return &PageSession{
		Key:        key,
		State:      StateIdle,
		PageID:     uuid.New(),
		PageNumber: pageNumber,
	}
}

// touch records packet arrival bookkeeping common to both protocols.
func (s *PageSession) touch(now time.Time, payloadLen int) {
	if s.StartMonotonic.IsZero() {
		s.StartMonotonic = now
		s.StartWallClock = time.Now()
	}
	s.LastPacket = now
	s.Network.PacketsReceived++
	s.Network.BytesReceived += uint64(payloadLen)
	s.Network.DurationSecs = s.LastPacket.Sub(s.StartMonotonic).Seconds()
}

// OnRTPPacket applies an RTP packet's sequence/timestamp to the
// session's network stats and advances last-packet bookkeeping.
func (s *PageSession) OnRTPPacket(seq uint16, timestamp uint32, payloadLen int, now time.Time) {
	s.touch(now, payloadLen)
	s.Network.observeSequence(seq)
	s.Network.observeArrivalJitter(timestamp, now)
}

// OnPagingPacket records arrival bookkeeping for a paging opcode and
// advances the paging state machine. Re-entries into Alerting from
// Transmitting are tolerated (counter only).
func (s *PageSession) OnPagingPacket(isAlert, isTransmit, isEnd bool, payloadLen int, now time.Time) {
	s.touch(now, payloadLen)
	switch {
	case isAlert:
		s.AlertCount++
		if s.State == StateIdle {
			s.State = StateAlerting
		}
	case isTransmit:
		s.AudioCount++
		if s.State == StateIdle || s.State == StateAlerting {
			s.State = StateTransmitting
		}
	case isEnd:
		s.EndCount++
		s.State = StateEnding
	}
}

// ReadyToFinalizeByEndCount reports whether enough end packets have
// been observed to complete a paging session (>= 3).
func (s *PageSession) ReadyToFinalizeByEndCount() bool {
	return s.EndCount >= 3
}

// ClaimSSRC records the SSRC that first claimed this slot; subsequent
// packets bearing a different SSRC are rejected for measurement while
// the slot is active.
func (s *PageSession) ClaimSSRC(ssrc uint32) {
	s.claimedSSRC = ssrc
	s.haveSSRCClaim = true
}

// MatchesSSRC reports whether ssrc matches this session's claimed
// SSRC, or whether no SSRC has been claimed yet.
func (s *PageSession) MatchesSSRC(ssrc uint32) bool {
	if !s.haveSSRCClaim {
		return true
	}
	return s.claimedSSRC == ssrc
}

// IsActive reports whether the session has received at least one
// packet. Finalization removes a session from its Manager but does not
// clear this flag.
func (s *PageSession) IsActive() bool {
	return !s.StartMonotonic.IsZero()
}
