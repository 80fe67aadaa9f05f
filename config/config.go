// Package config holds the core library's own tunables: idle
// timeouts, stats cadence, socket options, transmit pacing. It is
// deliberately narrow. Persisted configuration files and CLI argument
// parsing belong to the front end embedding this library; what remains
// is a single YAML-tagged struct with a Load/Default pair.
package config

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the set of tunables the core pipeline reads at startup.
type Config struct {
	IdleTimeoutRTP    time.Duration `yaml:"idle_timeout_rtp"`
	IdleTimeoutPaging time.Duration `yaml:"idle_timeout_paging"`
	StatsInterval     time.Duration `yaml:"stats_interval"`

	SocketReadBufferBytes int `yaml:"socket_read_buffer_bytes"`
	MulticastTTL          int `yaml:"multicast_ttl"`

	PagingControlInterval time.Duration `yaml:"paging_control_interval"`
	PagingAlertCount      int           `yaml:"paging_alert_count"`
	PagingEndCount        int           `yaml:"paging_end_count"`
	PagingPostAlertDelay  time.Duration `yaml:"paging_post_alert_delay"`
	PagingPostAudioDelay  time.Duration `yaml:"paging_post_audio_delay"`

	OpusBitrate int `yaml:"opus_bitrate"`

	G722DecodeThresholdBytes int `yaml:"g722_decode_threshold_bytes"`
}

// Default returns the standard operating defaults.
func Default() Config {
	return Config{
		IdleTimeoutRTP:    5 * time.Second,
		IdleTimeoutPaging: 2 * time.Second,
		StatsInterval:     500 * time.Millisecond,

		SocketReadBufferBytes: 1 << 20,
		MulticastTTL:          1,

		PagingControlInterval: 30 * time.Millisecond,
		PagingAlertCount:      31,
		PagingEndCount:        12,
		PagingPostAlertDelay:  64 * time.Millisecond,
		PagingPostAudioDelay:  50 * time.Millisecond,

		OpusBitrate: 16000,

		G722DecodeThresholdBytes: 1600,
	}
}

// Load reads a YAML document into a copy of Default(), so unspecified
// fields keep their defaults rather than zero values.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("config: read: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	return cfg, nil
}
