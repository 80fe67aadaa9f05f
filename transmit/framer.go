package transmit

import "github.com/cwsl/pagewatch/codec"

// FrameSource splits a complete PCM stream into codec-fixed frames,
// zero-padding the last partial frame.
func FrameSource(samples []int16, frameSamples int) [][]int16 {
	if frameSamples <= 0 {
		return nil
	}
	n := (len(samples) + frameSamples - 1) / frameSamples
	frames := make([][]int16, 0, n)
	for off := 0; off < len(samples); off += frameSamples {
		end := off + frameSamples
		if end > len(samples) {
			frame := make([]int16, frameSamples)
			copy(frame, samples[off:])
			frames = append(frames, frame)
		} else {
			frames = append(frames, samples[off:end])
		}
	}
	return frames
}

// EncodeFrames runs each PCM frame through enc, skipping (and
// counting) frames that fail to encode rather than aborting the whole
// transmission.
func EncodeFrames(enc codec.Encoder, frames [][]int16) (encoded [][]byte, skipped int) {
	encoded = make([][]byte, 0, len(frames))
	for _, f := range frames {
		b, err := enc.Encode(f)
		if err != nil {
			skipped++
			continue
		}
		encoded = append(encoded, b)
	}
	return encoded, skipped
}
