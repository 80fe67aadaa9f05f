//go:build !opus

package codec

import "fmt"

// Stub Opus support for builds without the `opus` tag (no cgo/libopus
// available). A diagnostic tool must not silently substitute another
// codec for a missing one, so construction fails with an InitError
// instead of falling back to PCM passthrough.

func NewOpusDecoder(sampleRate, channels int) (Decoder, error) {
	return nil, &InitError{Codec: TagOpus, Err: fmt.Errorf("opus support not compiled in; rebuild with -tags opus")}
}

func NewOpusEncoder(sampleRate, channels, bitrate int) (Encoder, error) {
	return nil, &InitError{Codec: TagOpus, Err: fmt.Errorf("opus support not compiled in; rebuild with -tags opus")}
}
