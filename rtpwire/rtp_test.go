package rtpwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseValidPacket(t *testing.T) {
	data := []byte{
		0x80, 0x00,
		0x00, 0x01,
		0x00, 0x00, 0x00, 0xA0,
		0x12, 0x34, 0x56, 0x78,
		0xAA, 0xBB,
	}
	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), p.Header.Version)
	assert.False(t, p.Header.Padding)
	assert.False(t, p.Header.Extension)
	assert.Equal(t, uint8(0), p.Header.CSRCCount)
	assert.False(t, p.Header.Marker)
	assert.Equal(t, uint8(0), p.Header.PayloadType)
	assert.Equal(t, uint16(1), p.Header.SequenceNumber)
	assert.Equal(t, uint32(160), p.Header.Timestamp)
	assert.Equal(t, uint32(0x12345678), p.Header.SSRC)
	assert.Equal(t, []byte{0xAA, 0xBB}, p.Payload)
}

func TestParseWithCSRC(t *testing.T) {
	data := []byte{
		0x82, 0x00,
		0x00, 0x01,
		0x00, 0x00, 0x00, 0xA0,
		0x12, 0x34, 0x56, 0x78,
		0x11, 0x11, 0x11, 0x11,
		0x22, 0x22, 0x22, 0x22,
		0xAA,
	}
	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), p.Header.CSRCCount)
	require.Len(t, p.Header.CSRC, 2)
	assert.Equal(t, uint32(0x11111111), p.Header.CSRC[0])
	assert.Equal(t, uint32(0x22222222), p.Header.CSRC[1])
	assert.Equal(t, []byte{0xAA}, p.Payload)
}

func TestParseTooShort(t *testing.T) {
	_, err := Parse([]byte{0x80, 0x00, 0x00})
	require.Error(t, err)
	var tooShort *TooShortError
	assert.ErrorAs(t, err, &tooShort)
}

func TestParseInvalidVersion(t *testing.T) {
	data := []byte{
		0x00, 0x00,
		0x00, 0x01, 0x00, 0x00, 0x00, 0xA0, 0x12, 0x34, 0x56, 0x78,
	}
	_, err := Parse(data)
	require.Error(t, err)
	var invalidVersion *InvalidVersionError
	assert.ErrorAs(t, err, &invalidVersion)
}

func TestParseInvalidPadding(t *testing.T) {
	data := []byte{
		0xA0, 0x00, // P=1
		0x00, 0x01, 0x00, 0x00, 0x00, 0xA0, 0x12, 0x34, 0x56, 0x78,
		0x00, // padding length byte = 0 -> invalid
	}
	_, err := Parse(data)
	require.Error(t, err)
	var invalidPadding *InvalidPaddingError
	assert.ErrorAs(t, err, &invalidPadding)
}

func TestBuildRoundTrip(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	built, err := Build(8, 100, 16000, 0xABCDEF00, payload, true)
	require.NoError(t, err)

	parsed, err := Parse(built)
	require.NoError(t, err)
	assert.Equal(t, uint8(8), parsed.Header.PayloadType)
	assert.Equal(t, uint16(100), parsed.Header.SequenceNumber)
	assert.Equal(t, uint32(16000), parsed.Header.Timestamp)
	assert.Equal(t, uint32(0xABCDEF00), parsed.Header.SSRC)
	assert.True(t, parsed.Header.Marker)
	assert.Equal(t, payload, parsed.Payload)
}

// TestBuildParseRoundTripProperty checks build-then-parse preserves
// every header field and the payload for arbitrary inputs.
func TestBuildParseRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pt := uint8(rapid.IntRange(0, 127).Draw(t, "pt"))
		seq := uint16(rapid.IntRange(0, 65535).Draw(t, "seq"))
		ts := uint32(rapid.IntRange(0, int(^uint32(0))).Draw(t, "ts"))
		ssrc := uint32(rapid.IntRange(0, int(^uint32(0))).Draw(t, "ssrc"))
		marker := rapid.Bool().Draw(t, "marker")
		payload := rapid.SliceOfN(rapid.Byte(), 0, 200).Draw(t, "payload")

		built, err := Build(pt, seq, ts, ssrc, payload, marker)
		require.NoError(t, err)

		parsed, err := Parse(built)
		require.NoError(t, err)
		assert.Equal(t, pt, parsed.Header.PayloadType)
		assert.Equal(t, seq, parsed.Header.SequenceNumber)
		assert.Equal(t, ts, parsed.Header.Timestamp)
		assert.Equal(t, ssrc, parsed.Header.SSRC)
		assert.Equal(t, marker, parsed.Header.Marker)
		assert.Equal(t, payload, parsed.Payload)
	})
}
