// Package recorder writes decoded PCM audio to 16-bit WAV files, one
// file per page: construct per session, write interleaved samples as
// packets decode, finalize on page end. File naming and directory
// policy belong to the caller.
package recorder

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteSeekCloser is the destination a Recorder writes into. WAV
// finalization seeks back to rewrite the header with the final data
// length, so a plain io.Writer is not enough; *os.File satisfies it.
type WriteSeekCloser interface {
	io.WriteSeeker
	io.Closer
}

// Recorder streams one session's decoded PCM into a WAV file as it is
// written; Close finalizes the header.
type Recorder struct {
	sampleRate int
	channels   int

	enc *wav.Encoder
	w   WriteSeekCloser
}

// New constructs a Recorder writing 16-bit PCM at sampleRate/channels
// to w. Close flushes the WAV trailer and closes w.
func New(w WriteSeekCloser, sampleRate, channels int) *Recorder {
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	return &Recorder{sampleRate: sampleRate, channels: channels, enc: enc, w: w}
}

// Write appends interleaved 16-bit PCM samples to the WAV stream.
func (r *Recorder) Write(samples []int16) error {
	buf := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: r.sampleRate, NumChannels: r.channels},
		Data:   make([]int, len(samples)),
	}
	for i, s := range samples {
		buf.Data[i] = int(s)
	}
	if err := r.enc.Write(buf); err != nil {
		return fmt.Errorf("recorder: write: %w", err)
	}
	return nil
}

// Close flushes the WAV header/trailer and closes the underlying
// writer.
func (r *Recorder) Close() error {
	if err := r.enc.Close(); err != nil {
		return fmt.Errorf("recorder: close encoder: %w", err)
	}
	return r.w.Close()
}
