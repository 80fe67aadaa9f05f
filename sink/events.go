// Package sink fans session lifecycle events and periodic metric
// snapshots out to a pluggable event stream (line-delimited JSON for
// machines, formatted text for humans), a Prometheus registry, and the
// end-of-run summary document.
package sink

import (
	"math"
	"time"
)

// FloorDb is the dB value substituted for the analyzer's -Inf digital
// silence marker in JSON-bound payloads: encoding/json cannot
// represent infinities and would reject the whole event.
const FloorDb = -120.0

// ClampDb maps non-finite dB values (silence reports -Inf) to FloorDb
// so events and summaries always marshal.
func ClampDb(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return FloorDb
	}
	return v
}

// EventType tags the kind of Event for JSON/text rendering.
type EventType string

const (
	EventMonitoringStarted EventType = "monitoring_started"
	EventPageStarted       EventType = "page_started"
	EventStats             EventType = "stats"
	EventPageEnded         EventType = "page_ended"
	EventRecordingSaved    EventType = "recording_saved"
	EventError             EventType = "error"
	EventTimeout           EventType = "timeout"
)

// Event is the common envelope for every emitted event.
type Event struct {
	Type      EventType `json:"type"`
	Endpoint  string    `json:"endpoint,omitempty"`
	WallClock time.Time `json:"wall_clock"`

	MonitoringStarted *MonitoringStartedPayload `json:"monitoring_started,omitempty"`
	PageStarted       *PageStartedPayload       `json:"page_started,omitempty"`
	Stats             *StatsPayload             `json:"stats,omitempty"`
	PageEnded         *PageEndedPayload         `json:"page_ended,omitempty"`
	RecordingSaved    *RecordingSavedPayload    `json:"recording_saved,omitempty"`
	Error             *ErrorPayload             `json:"error,omitempty"`
}

type MonitoringStartedPayload struct {
	Endpoints []string `json:"endpoints"`
}

type PageStartedPayload struct {
	Source     string `json:"source"`
	Codec      string `json:"codec"`
	Identifier string `json:"identifier"` // SSRC hex or caller ID
	PageNumber int    `json:"page_number"`
}

// StatsPayload is one periodic metric snapshot for an active session.
type StatsPayload struct {
	DurationSecs float64 `json:"duration_secs"`
	Packets      uint64  `json:"packets"`
	Bytes        uint64  `json:"bytes"`
	JitterMs     float64 `json:"jitter_ms"`
	LossPercent  float64 `json:"loss_percent"`
	RMSDb        float64 `json:"rms_db"`
	PeakDb       float64 `json:"peak_db"`
	FreqHz       float64 `json:"freq_hz"`
	Glitches     int     `json:"glitches"`
	Clipped      int     `json:"clipped"`
}

type PageEndedPayload struct {
	PageNumber     int     `json:"page_number"`
	DurationSecs   float64 `json:"duration_secs"`
	TotalPackets   uint64  `json:"total_packets"`
	TotalBytes     uint64  `json:"total_bytes"`
	LossPercent    float64 `json:"loss_percent"`
	AvgRMSDb       float64 `json:"avg_rms_db"`
	PeakRMSDb      float64 `json:"peak_rms_db"`
	MaxPeakDb      float64 `json:"max_peak_db"`
	DominantFreqHz float64 `json:"dominant_freq_hz"`
	TotalClipped   int     `json:"total_clipped"`
	TotalGlitches  int     `json:"total_glitches"`
	AvgZCR         float64 `json:"avg_zero_crossing_rate"`
	RecordingPath  string  `json:"recording_path,omitempty"`
}

type RecordingSavedPayload struct {
	Path string `json:"path"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
