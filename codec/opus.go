//go:build opus

package codec

import (
	"fmt"

	opus "gopkg.in/hraban/opus.v2"
)

// Opus codec support: wraps gopkg.in/hraban/opus.v2 behind a build tag
// since it requires cgo and libopus at build time. Build with
// `-tags opus` to enable; otherwise opus_stub.go provides a
// construction-time InitError instead.

var validOpusSampleRates = map[int]bool{8000: true, 12000: true, 16000: true, 24000: true, 48000: true}

type opusDecoder struct {
	dec        *opus.Decoder
	sampleRate int
	channels   int
}

type opusEncoder struct {
	enc        *opus.Encoder
	sampleRate int
	channels   int
}

func NewOpusDecoder(sampleRate, channels int) (Decoder, error) {
	if !validOpusSampleRates[sampleRate] {
		return nil, &InitError{Codec: TagOpus, Err: fmt.Errorf("unsupported sample rate %d", sampleRate)}
	}
	if channels != 1 && channels != 2 {
		return nil, &InitError{Codec: TagOpus, Err: fmt.Errorf("unsupported channel count %d", channels)}
	}
	d, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, &InitError{Codec: TagOpus, Err: err}
	}
	return &opusDecoder{dec: d, sampleRate: sampleRate, channels: channels}, nil
}

// NewOpusEncoder constructs an Opus encoder using the VoIP application
// profile. A bitrate of 0 leaves the library default in place.
func NewOpusEncoder(sampleRate, channels, bitrate int) (Encoder, error) {
	if !validOpusSampleRates[sampleRate] {
		return nil, &InitError{Codec: TagOpus, Err: fmt.Errorf("unsupported sample rate %d", sampleRate)}
	}
	if channels != 1 && channels != 2 {
		return nil, &InitError{Codec: TagOpus, Err: fmt.Errorf("unsupported channel count %d", channels)}
	}
	e, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, &InitError{Codec: TagOpus, Err: err}
	}
	if bitrate > 0 {
		if err := e.SetBitrate(bitrate); err != nil {
			return nil, &InitError{Codec: TagOpus, Err: err}
		}
	}
	return &opusEncoder{enc: e, sampleRate: sampleRate, channels: channels}, nil
}

// Decode reserves room for up to 120ms of audio, the longest frame a
// single Opus packet can carry.
func (d *opusDecoder) Decode(frame []byte) ([]int16, error) {
	maxSamples := d.sampleRate * 120 / 1000 * d.channels
	pcm := make([]int16, maxSamples)
	n, err := d.dec.Decode(frame, pcm)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return pcm[:n*d.channels], nil
}
func (d *opusDecoder) SampleRate() int { return d.sampleRate }
func (d *opusDecoder) Channels() int   { return d.channels }
func (d *opusDecoder) Tag() Tag        { return TagOpus }

func (e *opusEncoder) Encode(samples []int16) ([]byte, error) {
	out := make([]byte, 4000)
	n, err := e.enc.Encode(samples, out)
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return out[:n], nil
}
func (e *opusEncoder) SampleRate() int   { return e.sampleRate }
func (e *opusEncoder) Channels() int     { return e.channels }
func (e *opusEncoder) Tag() Tag          { return TagOpus }
func (e *opusEncoder) FrameSamples() int { return e.sampleRate * 20 / 1000 }
