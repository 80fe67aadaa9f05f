package session

import (
	"log"
	"sync"
	"time"
)

// IdleTimeouts configures per-protocol idle finalization (5s RTP, 2s
// paging by default).
type IdleTimeouts struct {
	RTP    time.Duration
	Paging time.Duration
}

// DefaultIdleTimeouts returns the default idle timeouts.
func DefaultIdleTimeouts() IdleTimeouts {
	return IdleTimeouts{RTP: 5 * time.Second, Paging: 2 * time.Second}
}

// FinalizeReason distinguishes why a session was torn down.
type FinalizeReason int

const (
	FinalizeIdleTimeout FinalizeReason = iota
	FinalizeEndCount
)

// Finalized is a snapshot of a session handed to the caller when it
// completes, plus why it completed.
type Finalized struct {
	Session *PageSession
	Reason  FinalizeReason
}

// Manager owns a map of active PageSessions keyed by Key, with a
// periodic Tick that finalizes idle or explicitly-ended sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*PageSession

	pageCounters map[string]int // per-endpoint page counter

	timeouts IdleTimeouts
	logger   *log.Logger
}

// NewManager constructs an empty Manager.
func NewManager(timeouts IdleTimeouts, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		sessions:     make(map[string]*PageSession),
		pageCounters: make(map[string]int),
		timeouts:     timeouts,
		logger:       logger,
	}
}

// nextPageNumber increments and returns the per-endpoint page counter.
func (m *Manager) nextPageNumber(endpointKey string) int {
	m.pageCounters[endpointKey]++
	return m.pageCounters[endpointKey]
}

// FindOrCreateRTP finds the session claiming ssrc on endpointKey, or
// admits a new one into an idle/absent slot. ok is false if no slot is
// available and the datagram must be discarded.
func (m *Manager) FindOrCreateRTP(key Key) (*PageSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if s, exists := m.sessions[k]; exists {
		if s.MatchesSSRC(key.SSRC) && s.IsActive() {
			return s, true
		}
		if !s.IsActive() {
			s.ClaimSSRC(key.SSRC)
			return s, true
		}
		// slot claimed by a different active SSRC: reject for
		// measurement; first claimant keeps the slot until idle.
		return nil, false
	}

	s := NewPageSession(key, m.nextPageNumber(key.Endpoint.String()))
	s.ClaimSSRC(key.SSRC)
	m.sessions[k] = s
	return s, true
}

// FindOrCreatePaging finds or creates the session keyed by channel on
// endpointKey.
func (m *Manager) FindOrCreatePaging(key Key) *PageSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key.String()
	if s, exists := m.sessions[k]; exists {
		return s
	}
	s := NewPageSession(key, m.nextPageNumber(key.Endpoint.String()))
	m.sessions[k] = s
	return s
}

// Sessions returns a snapshot slice of all currently tracked sessions.
func (m *Manager) Sessions() []*PageSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*PageSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Tick runs one supervisor pass: for every session whose last packet
// exceeds the protocol's idle timeout, or whose end-count has reached
// the completion threshold, finalize it and remove it from the map.
// Returns the sessions finalized this tick.
func (m *Manager) Tick(now time.Time) []Finalized {
	m.mu.Lock()
	defer m.mu.Unlock()

	var done []Finalized
	for k, s := range m.sessions {
		if !s.IsActive() {
			continue
		}

		timeout := m.timeouts.RTP
		if s.Key.Protocol == ProtocolPaging {
			timeout = m.timeouts.Paging
		}

		idle := now.Sub(s.LastPacket) >= timeout
		endedByCount := s.Key.Protocol == ProtocolPaging && s.ReadyToFinalizeByEndCount()

		if !idle && !endedByCount {
			continue
		}

		reason := FinalizeIdleTimeout
		if endedByCount {
			reason = FinalizeEndCount
		}

		m.logger.Printf("session %s finalized (%s)", k, reasonString(reason))
		done = append(done, Finalized{Session: s, Reason: reason})
		delete(m.sessions, k)
	}
	return done
}

// FinalizeAll finalizes every active session unconditionally, used on
// shutdown so active sessions complete through the normal end path
// when the outer wall-clock timeout (or an operator interrupt) stops
// the receive loop from admitting new packets.
func (m *Manager) FinalizeAll(now time.Time) []Finalized {
	m.mu.Lock()
	defer m.mu.Unlock()

	var done []Finalized
	for k, s := range m.sessions {
		if !s.IsActive() {
			continue
		}
		m.logger.Printf("session %s finalized (shutdown)", k)
		done = append(done, Finalized{Session: s, Reason: FinalizeIdleTimeout})
		delete(m.sessions, k)
	}
	return done
}

func reasonString(r FinalizeReason) string {
	switch r {
	case FinalizeEndCount:
		return "end-count"
	default:
		return "idle-timeout"
	}
}
