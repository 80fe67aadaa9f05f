package recorder

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

// ReadFile decodes a WAV file into interleaved PCM samples plus its
// native sample rate and channel count, for the paced transmitter's
// file-decode stage.
func ReadFile(r io.Reader) (samples []int16, sampleRate, channels int, err error) {
	rs, ok := r.(readSeeker)
	if !ok {
		return nil, 0, 0, fmt.Errorf("recorder: file input must support seeking")
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("recorder: not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("recorder: decode PCM: %w", err)
	}

	out := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		out[i] = int16(v)
	}

	return out, int(dec.SampleRate), int(dec.NumChans), nil
}

// readSeeker is io.Reader + io.Seeker, matching go-audio/wav.Decoder's
// constructor requirement.
type readSeeker interface {
	io.Reader
	io.Seeker
}
