package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestL16RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		samples := rapid.SliceOf(rapid.Int16()).Draw(t, "samples")
		enc := NewL16Encoder(8000, 1)
		dec := NewL16Decoder(8000, 1)

		bytes, err := enc.Encode(samples)
		require.NoError(t, err)

		decoded, err := dec.Decode(bytes)
		require.NoError(t, err)
		assert.Equal(t, samples, decoded)
	})
}

func TestL16OddLengthRejected(t *testing.T) {
	dec := NewL16Decoder(8000, 1)
	_, err := dec.Decode([]byte{0x01, 0x02, 0x03})
	require.Error(t, err)
	var invalid *InvalidFrameError
	assert.ErrorAs(t, err, &invalid)
}

func TestDecoderForPayloadType(t *testing.T) {
	dec, err := DecoderForPayloadType(0)
	require.NoError(t, err)
	assert.Equal(t, TagUlaw, dec.Tag())

	dec, err = DecoderForPayloadType(8)
	require.NoError(t, err)
	assert.Equal(t, TagAlaw, dec.Tag())

	dec, err = DecoderForPayloadType(9)
	if err != nil {
		var initErr *InitError
		if assert.ErrorAs(t, err, &initErr) {
			t.Skip("ffmpeg not available for G.722 transcoder init")
		}
	} else {
		assert.Equal(t, TagG722, dec.Tag())
	}

	_, err = DecoderForPayloadType(50)
	require.Error(t, err)
	var unsupported *UnsupportedPayloadTypeError
	assert.ErrorAs(t, err, &unsupported)
}
