package main

// Monitor is the composition root's receiver: one goroutine per bound
// endpoint drains its socket, feeds datagrams through the RTP/paging
// parsers into the session reassembler, decodes audio into the
// analyzer, writes recordings, and emits events/metrics/summary
// entries. Each loop suspends only at a budgeted receive timeout; a
// stats-interval ticker polled between drains runs supervision, so it
// always runs between packet bursts.

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cwsl/pagewatch/analyzer"
	"github.com/cwsl/pagewatch/codec"
	"github.com/cwsl/pagewatch/config"
	"github.com/cwsl/pagewatch/mcast"
	"github.com/cwsl/pagewatch/paging"
	"github.com/cwsl/pagewatch/recorder"
	"github.com/cwsl/pagewatch/rtpwire"
	"github.com/cwsl/pagewatch/session"
	"github.com/cwsl/pagewatch/sink"
)

// recvTimeout bounds each blocking read so the supervisor tick always
// gets a chance to run.
const recvTimeout = 10 * time.Millisecond

// Monitor wires the core library's packages into a runnable receiver.
type Monitor struct {
	cfg       config.Config
	protocol  session.Protocol
	iface     *net.Interface
	recordDir string
	events    sink.Sink
	metrics   *sink.Metrics
	logger    *log.Logger

	mu      sync.Mutex
	builder *sink.Builder
}

// NewMonitor constructs a Monitor. metrics may be nil to disable
// Prometheus instrumentation.
func NewMonitor(cfg config.Config, protocol session.Protocol, iface *net.Interface, recordDir string, events sink.Sink, metrics *sink.Metrics) *Monitor {
	return &Monitor{
		cfg:       cfg,
		protocol:  protocol,
		iface:     iface,
		recordDir: recordDir,
		events:    events,
		metrics:   metrics,
		logger:    log.Default(),
	}
}

// sessionRuntime holds the per-session state that belongs to the
// monitoring loop rather than to session.PageSession itself: the WAV
// recorder and its destination path.
type sessionRuntime struct {
	recorder      *recorder.Recorder
	recordingPath string
}

// Run joins every endpoint, drains datagrams until ctx is cancelled
// (normal wall-clock timeout or operator interrupt), and returns the
// completed run summary. On cancellation the receive loops stop
// admitting packets, active sessions are finalised through the normal
// end path, recorders are closed, and the summary is returned. Zero
// pages observed is a normal outcome, not an error.
func (m *Monitor) Run(ctx context.Context, endpoints []mcast.Endpoint) sink.Summary {
	start := time.Now()
	m.builder = sink.NewBuilder(sink.RunMetadata{
		EndpointCount: len(endpoints),
		StartWallTime: start,
		Interval:      m.cfg.StatsInterval,
	})

	epStrs := make([]string, len(endpoints))
	for i, ep := range endpoints {
		epStrs[i] = ep.String()
	}
	m.emit(sink.Event{
		Type:              sink.EventMonitoringStarted,
		WallClock:         time.Now(),
		MonitoringStarted: &sink.MonitoringStartedPayload{Endpoints: epStrs},
	})

	pool := mcast.NewPool(mcast.ListenOptions{
		Interface:       m.iface,
		ReadBufferBytes: m.cfg.SocketReadBufferBytes,
	})
	defer pool.CloseAll()

	var wg sync.WaitGroup
	for _, ep := range endpoints {
		l, err := pool.Acquire(ctx, ep)
		if err != nil {
			m.addError(fmt.Errorf("monitor: acquire %s: %w", ep, err))
			m.emitError(ep, err)
			continue
		}
		wg.Add(1)
		go func(ep mcast.Endpoint, l *mcast.Listener) {
			defer wg.Done()
			m.runEndpoint(ctx, ep, l)
		}(ep, l)
	}
	wg.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		m.emit(sink.Event{Type: sink.EventTimeout, WallClock: time.Now()})
	}

	end := time.Now()
	m.events.Close()

	s := m.finalSummary(start, end)
	return s
}

func (m *Monitor) finalSummary(start, end time.Time) sink.Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum := m.builder.Build()
	sum.Metadata.StartWallTime = start
	sum.Metadata.EndWallTime = end
	sum.Metadata.Duration = end.Sub(start)
	return sum
}

// runEndpoint is the per-socket cooperative loop: drain all
// immediately-available datagrams (a receive cycle must never leave
// packets queued in kernel buffers, which would delay idle-timeout
// detection), then run one supervisor tick when the stats interval
// elapses.
func (m *Monitor) runEndpoint(ctx context.Context, ep mcast.Endpoint, l *mcast.Listener) {
	mgr := session.NewManager(session.IdleTimeouts{
		RTP:    m.cfg.IdleTimeoutRTP,
		Paging: m.cfg.IdleTimeoutPaging,
	}, m.logger)

	runtimes := make(map[string]*sessionRuntime)

	buf := make([]byte, 65536)
	ticker := time.NewTicker(m.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.finalizeAndClose(ep, mgr, runtimes, time.Now())
			return
		default:
		}

		for {
			if err := l.SetReadDeadline(time.Now().Add(recvTimeout)); err != nil {
				m.addError(fmt.Errorf("monitor: set read deadline on %s: %w", ep, err))
				break
			}
			n, addr, err := l.ReadFrom(buf)
			if err != nil {
				var nerr net.Error
				if errors.As(err, &nerr) && nerr.Timeout() {
					break
				}
				m.logger.Printf("monitor: %s: recv error: %v", ep, err)
				break
			}
			now := time.Now()
			data := make([]byte, n)
			copy(data, buf[:n])
			m.handleDatagram(ep, addr, data, now, mgr, runtimes)
		}

		select {
		case <-ticker.C:
			m.superviseTick(ep, mgr, runtimes, time.Now())
		case <-ctx.Done():
			m.finalizeAndClose(ep, mgr, runtimes, time.Now())
			return
		default:
		}
	}
}

func (m *Monitor) handleDatagram(ep mcast.Endpoint, addr *net.UDPAddr, data []byte, now time.Time, mgr *session.Manager, runtimes map[string]*sessionRuntime) {
	switch m.protocol {
	case session.ProtocolRTP:
		m.handleRTP(ep, addr, data, now, mgr, runtimes)
	case session.ProtocolPaging:
		m.handlePaging(ep, data, now, mgr, runtimes)
	}
}

func (m *Monitor) handleRTP(ep mcast.Endpoint, addr *net.UDPAddr, data []byte, now time.Time, mgr *session.Manager, runtimes map[string]*sessionRuntime) {
	pkt, err := rtpwire.Parse(data)
	if err != nil {
		m.logger.Printf("monitor: %s: rtp parse: %v", ep, err)
		return
	}

	key := session.Key{Endpoint: ep, Protocol: session.ProtocolRTP, SSRC: pkt.Header.SSRC}
	sess, ok := mgr.FindOrCreateRTP(key)
	if !ok {
		// slot claimed by a different active SSRC; discard for
		// measurement.
		return
	}

	wasActive := sess.IsActive()
	sess.OnRTPPacket(pkt.Header.SequenceNumber, pkt.Header.Timestamp, len(pkt.Payload), now)

	if !sess.CodecSet {
		dec, err := codec.DecoderForPayloadType(int(pkt.Header.PayloadType))
		if err != nil {
			m.logger.Printf("monitor: %s: %v", ep, err)
			m.addError(err)
		} else {
			sess.Decoder = dec
			sess.Codec = dec.Tag()
			sess.CodecSet = true
			sess.Analyzer = analyzer.New(dec.SampleRate())
		}
		sess.SourceStr = addr.String()
	}

	if !wasActive {
		m.emitPageStarted(ep, sess)
	}

	m.decodeAndRecord(ep, sess, runtimes, pkt.Payload)
}

func (m *Monitor) handlePaging(ep mcast.Endpoint, data []byte, now time.Time, mgr *session.Manager, runtimes map[string]*sessionRuntime) {
	header, tp, err := paging.Parse(data)
	if err != nil {
		m.logger.Printf("monitor: %s: paging parse: %v", ep, err)
		return
	}

	key := session.Key{Endpoint: ep, Protocol: session.ProtocolPaging, Channel: header.Channel}
	sess := mgr.FindOrCreatePaging(key)

	wasActive := sess.IsActive()
	isAlert := header.OpCode == paging.OpAlert
	isTransmit := header.OpCode == paging.OpTransmit
	isEnd := header.OpCode == paging.OpEnd
	sess.OnPagingPacket(isAlert, isTransmit, isEnd, len(data), now)

	if header.CallerID != "" {
		sess.CallerID = header.CallerID
	}

	if !wasActive {
		m.emitPageStarted(ep, sess)
	}

	if isTransmit && tp != nil {
		if !sess.CodecSet {
			tag, err := tp.Audio.Codec.ToCodecTag()
			if err != nil {
				m.logger.Printf("monitor: %s: %v", ep, err)
				m.addError(err)
			} else {
				dec, err := codec.NewDecoder(tag)
				if err != nil {
					m.logger.Printf("monitor: %s: %v", ep, err)
					m.addError(err)
				} else {
					sess.Decoder = dec
					sess.Codec = tag
					sess.CodecSet = true
					sess.Analyzer = analyzer.New(dec.SampleRate())
				}
			}
		}
		if tp.CurrentFrame != nil {
			m.decodeAndRecord(ep, sess, runtimes, tp.CurrentFrame)
		}
	}
}

// decodeAndRecord decodes one frame through the session's cached
// decoder, feeds the analyzer, and streams the samples to this
// session's WAV recorder (created lazily on first successful decode).
// Per-frame decode errors are logged and the frame is skipped; they do
// not terminate the session.
func (m *Monitor) decodeAndRecord(ep mcast.Endpoint, sess *session.PageSession, runtimes map[string]*sessionRuntime, frame []byte) {
	if !sess.CodecSet || sess.Decoder == nil {
		return
	}
	samples, err := sess.Decoder.Decode(frame)
	if err != nil {
		m.logger.Printf("monitor: %s: decode: %v", ep, err)
		return
	}
	if len(samples) == 0 {
		return
	}

	if sess.Analyzer != nil {
		sess.Analyzer.Process(samples)
	}

	rt := m.runtimeFor(ep, sess, runtimes)
	if rt.recorder != nil {
		if err := rt.recorder.Write(samples); err != nil {
			m.logger.Printf("monitor: %s: recorder write: %v", ep, err)
		}
	}
}

// runtimeFor returns (creating if needed) the sessionRuntime for sess,
// opening a WAV recorder on first use if recording is enabled.
func (m *Monitor) runtimeFor(ep mcast.Endpoint, sess *session.PageSession, runtimes map[string]*sessionRuntime) *sessionRuntime {
	k := sess.Key.String()
	rt, ok := runtimes[k]
	if ok {
		return rt
	}
	rt = &sessionRuntime{}
	runtimes[k] = rt

	if m.recordDir != "" && sess.Decoder != nil {
		name := fmt.Sprintf("page-%s-%04d.wav", sanitizeEndpoint(ep), sess.PageNumber)
		path := filepath.Join(m.recordDir, name)
		f, err := os.Create(path)
		if err != nil {
			m.logger.Printf("monitor: %s: create recording: %v", ep, err)
			return rt
		}
		rt.recorder = recorder.New(f, sess.Decoder.SampleRate(), sess.Decoder.Channels())
		rt.recordingPath = path
	}
	return rt
}

func sanitizeEndpoint(ep mcast.Endpoint) string {
	return fmt.Sprintf("%s-%d", ep.Group.String(), ep.Port)
}

func (m *Monitor) emitPageStarted(ep mcast.Endpoint, sess *session.PageSession) {
	identifier := sess.CallerID
	if sess.Key.Protocol == session.ProtocolRTP {
		identifier = fmt.Sprintf("%08x", sess.Key.SSRC)
	}
	codecName := ""
	if sess.CodecSet {
		codecName = sess.Codec.String()
	}
	m.emit(sink.Event{
		Type:      sink.EventPageStarted,
		Endpoint:  ep.String(),
		WallClock: time.Now(),
		PageStarted: &sink.PageStartedPayload{
			Source:     sess.SourceStr,
			Codec:      codecName,
			Identifier: identifier,
			PageNumber: sess.PageNumber,
		},
	})
	if m.metrics != nil {
		m.metrics.SessionsActive.WithLabelValues(ep.String()).Inc()
	}
}

// superviseTick emits a periodic snapshot for every active session on
// this endpoint, then finalises any session whose idle timeout (or,
// for paging, end-packet completion threshold) has been reached.
func (m *Monitor) superviseTick(ep mcast.Endpoint, mgr *session.Manager, runtimes map[string]*sessionRuntime, now time.Time) {
	for _, sess := range mgr.Sessions() {
		if !sess.IsActive() {
			continue
		}
		m.emitStats(ep, sess)
	}

	for _, f := range mgr.Tick(now) {
		m.finalizeOne(ep, f.Session, runtimes)
	}
}

func (m *Monitor) emitStats(ep mcast.Endpoint, sess *session.PageSession) {
	var rms, peak, freq float64
	var glitches, clipped int
	if sess.Analyzer != nil {
		st := sess.Analyzer.Stats()
		rms, peak, freq = sink.ClampDb(st.AvgRMSDb), sink.ClampDb(st.MaxPeakDb), st.DominantFreqHz
		glitches, clipped = st.TotalGlitches, st.TotalClipped
	}

	m.emit(sink.Event{
		Type:      sink.EventStats,
		Endpoint:  ep.String(),
		WallClock: time.Now(),
		Stats: &sink.StatsPayload{
			DurationSecs: sess.Network.DurationSecs,
			Packets:      sess.Network.PacketsReceived,
			Bytes:        sess.Network.BytesReceived,
			JitterMs:     sess.Network.JitterMs,
			LossPercent:  sess.Network.LossPercent(),
			RMSDb:        rms,
			PeakDb:       peak,
			FreqHz:       freq,
			Glitches:     glitches,
			Clipped:      clipped,
		},
	})

	if m.metrics != nil {
		epStr := ep.String()
		m.metrics.JitterMs.WithLabelValues(epStr).Set(sess.Network.JitterMs)
		m.metrics.AudioRMSDb.WithLabelValues(epStr).Set(rms)
	}
}

func (m *Monitor) finalizeOne(ep mcast.Endpoint, sess *session.PageSession, runtimes map[string]*sessionRuntime) {
	k := sess.Key.String()
	rt := runtimes[k]
	delete(runtimes, k)

	var audio analyzer.AudioStats
	if sess.Analyzer != nil {
		audio = sess.Analyzer.Stats()
	}

	recordingPath := ""
	if rt != nil && rt.recorder != nil {
		if err := rt.recorder.Close(); err != nil {
			m.logger.Printf("monitor: %s: close recorder: %v", ep, err)
		} else {
			recordingPath = rt.recordingPath
			m.emit(sink.Event{
				Type:           sink.EventRecordingSaved,
				Endpoint:       ep.String(),
				WallClock:      time.Now(),
				RecordingSaved: &sink.RecordingSavedPayload{Path: recordingPath},
			})
		}
	}

	m.emit(sink.Event{
		Type:      sink.EventPageEnded,
		Endpoint:  ep.String(),
		WallClock: time.Now(),
		PageEnded: &sink.PageEndedPayload{
			PageNumber:     sess.PageNumber,
			DurationSecs:   sess.Network.DurationSecs,
			TotalPackets:   sess.Network.PacketsReceived,
			TotalBytes:     sess.Network.BytesReceived,
			LossPercent:    sess.Network.LossPercent(),
			AvgRMSDb:       sink.ClampDb(audio.AvgRMSDb),
			PeakRMSDb:      sink.ClampDb(audio.PeakRMSDb),
			MaxPeakDb:      sink.ClampDb(audio.MaxPeakDb),
			DominantFreqHz: audio.DominantFreqHz,
			TotalClipped:   audio.TotalClipped,
			TotalGlitches:  audio.TotalGlitches,
			AvgZCR:         audio.AvgZCR,
			RecordingPath:  recordingPath,
		},
	})

	m.mu.Lock()
	m.builder.AddPage(sink.PageSummary{
		PageNumber:    sess.PageNumber,
		Endpoint:      ep.String(),
		StartWallTime: sess.StartWallClock,
		EndWallTime:   time.Now(),
		DurationSecs:  sess.Network.DurationSecs,
		RecordingFile: recordingPath,
		Network: sink.NetworkSummary{
			PacketsReceived: sess.Network.PacketsReceived,
			BytesReceived:   sess.Network.BytesReceived,
			PacketsLost:     sess.Network.PacketsLost,
			LossPercent:     sess.Network.LossPercent(),
			JitterMs:        sess.Network.JitterMs,
		},
		Audio: sink.AudioSummary{
			PeakRMSDb:      sink.ClampDb(audio.PeakRMSDb),
			MaxPeakDb:      sink.ClampDb(audio.MaxPeakDb),
			AvgRMSDb:       sink.ClampDb(audio.AvgRMSDb),
			AvgZCR:         audio.AvgZCR,
			AvgDCPercent:   audio.AvgDCPct,
			TotalClipped:   audio.TotalClipped,
			TotalGlitches:  audio.TotalGlitches,
			TotalRepeated:  audio.TotalRepeated,
			SilentFrames:   audio.SilentFrames,
			DominantFreqHz: audio.DominantFreqHz,
		},
	})
	m.mu.Unlock()

	if m.metrics != nil {
		epStr := ep.String()
		m.metrics.SessionsActive.WithLabelValues(epStr).Dec()
		m.metrics.PagesTotal.WithLabelValues(epStr).Inc()
		m.metrics.PacketsReceived.WithLabelValues(epStr).Add(float64(sess.Network.PacketsReceived))
		m.metrics.PacketsLost.WithLabelValues(epStr).Add(float64(sess.Network.PacketsLost))
		m.metrics.AudioClippedTotal.WithLabelValues(epStr).Add(float64(audio.TotalClipped))
		m.metrics.AudioGlitchesTotal.WithLabelValues(epStr).Add(float64(audio.TotalGlitches))
	}
}

// finalizeAndClose forces every still-active session to finalize, used
// when ctx is cancelled.
func (m *Monitor) finalizeAndClose(ep mcast.Endpoint, mgr *session.Manager, runtimes map[string]*sessionRuntime, now time.Time) {
	for _, f := range mgr.FinalizeAll(now) {
		m.finalizeOne(ep, f.Session, runtimes)
	}
}

func (m *Monitor) emit(e sink.Event) {
	if err := m.events.Emit(e); err != nil {
		m.logger.Printf("monitor: emit event: %v", err)
	}
}

func (m *Monitor) emitError(ep mcast.Endpoint, err error) {
	m.emit(sink.Event{
		Type:      sink.EventError,
		Endpoint:  ep.String(),
		WallClock: time.Now(),
		Error:     &sink.ErrorPayload{Message: err.Error()},
	})
}

func (m *Monitor) addError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builder.AddError(err)
}
