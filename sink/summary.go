package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// PageSummary is one completed page's entry in the summary document.
type PageSummary struct {
	PageNumber    int       `json:"page_number"`
	Endpoint      string    `json:"endpoint"`
	StartWallTime time.Time `json:"start_wall_time"`
	EndWallTime   time.Time `json:"end_wall_time"`
	DurationSecs  float64   `json:"duration_secs"`
	RecordingFile string    `json:"recording_file,omitempty"`

	Network NetworkSummary `json:"network"`
	Audio   AudioSummary   `json:"audio"`
}

type NetworkSummary struct {
	PacketsReceived uint64  `json:"packets_received"`
	BytesReceived   uint64  `json:"bytes_received"`
	PacketsLost     uint64  `json:"packets_lost"`
	LossPercent     float64 `json:"loss_percent"`
	JitterMs        float64 `json:"jitter_ms"`
}

type AudioSummary struct {
	PeakRMSDb      float64 `json:"peak_rms_db"`
	MaxPeakDb      float64 `json:"max_peak_db"`
	AvgRMSDb       float64 `json:"avg_rms_db"`
	AvgZCR         float64 `json:"avg_zero_crossing_rate"`
	AvgDCPercent   float64 `json:"avg_dc_offset_percent"`
	TotalClipped   int     `json:"total_clipped"`
	TotalGlitches  int     `json:"total_glitches"`
	TotalRepeated  int     `json:"total_repeated"`
	SilentFrames   int     `json:"silent_frames"`
	DominantFreqHz float64 `json:"dominant_freq_hz"`
}

// EndpointTotals rolls up every page observed on one endpoint.
type EndpointTotals struct {
	Endpoint         string  `json:"endpoint"`
	Pages            int     `json:"pages"`
	CumulativeDurSec float64 `json:"cumulative_duration_secs"`
	Packets          uint64  `json:"packets"`
	Bytes            uint64  `json:"bytes"`
}

// RunMetadata captures the test-run parameters recorded at the top of
// the summary document.
type RunMetadata struct {
	Pattern       string        `json:"pattern"`
	EndpointCount int           `json:"endpoint_count"`
	StartWallTime time.Time     `json:"start_wall_time"`
	EndWallTime   time.Time     `json:"end_wall_time"`
	Duration      time.Duration `json:"duration"`
	Interval      time.Duration `json:"interval"`
	Timeout       time.Duration `json:"timeout"`
}

// Summary is the complete end-of-run document, written once as
// summary.json whenever the output directory is writable, even when
// errors occurred during the run.
type Summary struct {
	Metadata RunMetadata      `json:"metadata"`
	Pages    []PageSummary    `json:"pages"`
	Totals   []EndpointTotals `json:"endpoint_totals"`
	Errors   []string         `json:"errors"`
}

// Builder accumulates a Summary across a run.
type Builder struct {
	summary Summary
	totals  map[string]*EndpointTotals
}

// NewBuilder constructs an empty summary Builder.
func NewBuilder(meta RunMetadata) *Builder {
	return &Builder{
		summary: Summary{Metadata: meta, Errors: []string{}},
		totals:  make(map[string]*EndpointTotals),
	}
}

// AddPage appends a completed page and folds it into that endpoint's
// totals.
func (b *Builder) AddPage(p PageSummary) {
	b.summary.Pages = append(b.summary.Pages, p)

	t, ok := b.totals[p.Endpoint]
	if !ok {
		t = &EndpointTotals{Endpoint: p.Endpoint}
		b.totals[p.Endpoint] = t
	}
	t.Pages++
	t.CumulativeDurSec += p.DurationSecs
	t.Packets += p.Network.PacketsReceived
	t.Bytes += p.Network.BytesReceived
}

// AddError appends a non-fatal error message to the summary's error
// list.
func (b *Builder) AddError(err error) {
	b.summary.Errors = append(b.summary.Errors, err.Error())
}

// Build finalizes and returns the Summary. Endpoint totals are in map
// iteration order; callers read them by endpoint key.
func (b *Builder) Build() Summary {
	s := b.summary
	for _, t := range b.totals {
		s.Totals = append(s.Totals, *t)
	}
	return s
}

// WriteJSON writes the summary document to w as indented JSON.
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("sink: write summary: %w", err)
	}
	return nil
}
