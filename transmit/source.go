package transmit

import (
	"fmt"

	"github.com/cwsl/pagewatch/codec"
)

// Source describes a transmit input: either a PCM file to be decoded,
// downmixed, resampled, and encoded, or a raw-mode input that is
// already codec-encoded and just needs splitting on frame boundaries.
type Source struct {
	Samples    []int16 // PCM, native file sample rate/channels (ignored if Raw)
	SampleRate int
	Channels   int

	Raw      bool
	RawBytes []byte // already-encoded codec frames, Raw only
}

// BuildFrames produces encoded wire frames for the given target codec:
// non-raw PCM is downmixed, resampled, framed and encoded; raw input is
// split on frame boundaries.
func BuildFrames(src Source, enc codec.Encoder) (encodedFrames [][]byte, skipped int, err error) {
	if src.Raw {
		frameBytes := rawFrameBytes(enc)
		return splitRawFrames(src.RawBytes, frameBytes), 0, nil
	}

	mono := Downmix(src.Samples, src.Channels)
	resampled := Resample(mono, src.SampleRate, enc.SampleRate())

	// G.722 goes through an external transcoder: encode the whole
	// stream in one call, then split it into 160-byte frames.
	if enc.Tag() == codec.TagG722 {
		stream, err := enc.Encode(resampled)
		if err != nil {
			return nil, 0, fmt.Errorf("transmit: encode g722 stream: %w", err)
		}
		return codec.SplitG722Frames(stream), 0, nil
	}

	frames := FrameSource(resampled, enc.FrameSamples())
	encodedFrames, skipped = EncodeFrames(enc, frames)
	if len(encodedFrames) == 0 && len(frames) > 0 {
		return nil, skipped, fmt.Errorf("transmit: all %d frames failed to encode", len(frames))
	}
	return encodedFrames, skipped, nil
}

func rawFrameBytes(enc codec.Encoder) int {
	// Encoder only exposes FrameSamples, not a wire frame size, so raw
	// mode assumes 2 bytes/sample (int16) for L16 and a 160-byte frame
	// for every other codec.
	if enc.Tag() == codec.TagL16 {
		return enc.FrameSamples() * 2
	}
	return 160
}

func splitRawFrames(data []byte, frameBytes int) [][]byte {
	if frameBytes <= 0 {
		return nil
	}
	var frames [][]byte
	for off := 0; off < len(data); off += frameBytes {
		end := off + frameBytes
		if end > len(data) {
			frame := make([]byte, frameBytes)
			copy(frame, data[off:])
			frames = append(frames, frame)
		} else {
			frames = append(frames, data[off:end])
		}
	}
	return frames
}
