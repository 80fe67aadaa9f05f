package paging

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseHeaderAlert(t *testing.T) {
	data := []byte{0x0F, 5, 0x00, 0x00, 0x01, 0x00, 0x00}
	// caller id len 0 -> padded to 13
	data = append(data, make([]byte, 13)...)
	h, tp, err := Parse(data)
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.Equal(t, OpAlert, h.OpCode)
	assert.Equal(t, uint8(5), h.Channel)
	assert.Equal(t, uint32(0x100), h.HostSerial)
}

func TestParseHeaderInvalidOpcode(t *testing.T) {
	data := []byte{0x01, 5, 0, 0, 0, 0, 0}
	data = append(data, make([]byte, 13)...)
	_, _, err := Parse(data)
	require.Error(t, err)
	var invalidOp *InvalidOpCodeError
	assert.ErrorAs(t, err, &invalidOp)
}

func TestParseHeaderInvalidChannel(t *testing.T) {
	data := []byte{0x0F, 0, 0, 0, 0, 0, 0}
	data = append(data, make([]byte, 13)...)
	_, _, err := Parse(data)
	require.Error(t, err)
	var invalidChan *InvalidChannelError
	assert.ErrorAs(t, err, &invalidChan)

	data[1] = 51
	_, _, err = Parse(data)
	require.Error(t, err)
	assert.ErrorAs(t, err, &invalidChan)
}

func TestParseHeaderTooShort(t *testing.T) {
	_, _, err := Parse([]byte{0x0F, 1, 0, 0})
	require.Error(t, err)
	var tooShort *TooShortError
	assert.ErrorAs(t, err, &tooShort)
}

func TestParseHeaderCallerIDNulTruncation(t *testing.T) {
	header := []byte{0x0F, 1, 0, 0, 0, 1, 13}
	callerID := make([]byte, 13)
	copy(callerID, "ABC")
	callerID[3] = 0 // embedded NUL
	data := append(header, callerID...)
	h, _, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "ABC", h.CallerID)
}

func TestParseTransmitWithBothFrames(t *testing.T) {
	b, err := NewBuilder(10, 0xDEADBEEF, "5551234", AudioCodecUlaw)
	require.NoError(t, err)

	frame1 := make([]byte, 160)
	for i := range frame1 {
		frame1[i] = byte(i)
	}
	pkt1, err := b.BuildTransmit(frame1, 160)
	require.NoError(t, err)

	h, tp, err := Parse(pkt1)
	require.NoError(t, err)
	assert.Equal(t, OpTransmit, h.OpCode)
	require.NotNil(t, tp)
	assert.Nil(t, tp.RedundantFrame) // no prior frame yet
	assert.Equal(t, frame1, tp.CurrentFrame)

	frame2 := make([]byte, 160)
	for i := range frame2 {
		frame2[i] = byte(255 - i)
	}
	pkt2, err := b.BuildTransmit(frame2, 160)
	require.NoError(t, err)

	_, tp2, err := Parse(pkt2)
	require.NoError(t, err)
	require.NotNil(t, tp2)
	assert.Equal(t, frame1, tp2.RedundantFrame)
	assert.Equal(t, frame2, tp2.CurrentFrame)
}

func TestBuildTransmitSkipRedundantAndAudioHeader(t *testing.T) {
	b, err := NewBuilder(1, 1, "x", AudioCodecUlaw)
	require.NoError(t, err)
	b.SetSkipRedundant(true)
	b.SetSkipAudioHeader(true)

	frame := make([]byte, 160)
	pkt, err := b.BuildTransmit(frame, 160)
	require.NoError(t, err)

	head, n, err := ParseHeader(pkt)
	require.NoError(t, err)
	assert.Equal(t, OpTransmit, head.OpCode)
	// with both the subheader and redundant frame skipped, only the
	// current frame follows the header prefix.
	assert.Equal(t, frame, pkt[n:])
}

func TestBuildAlertEndRoundTrip(t *testing.T) {
	b, err := NewBuilder(42, 7, "caller-42", AudioCodecAlaw)
	require.NoError(t, err)

	alert, err := b.BuildAlert()
	require.NoError(t, err)
	h, tp, err := Parse(alert)
	require.NoError(t, err)
	assert.Nil(t, tp)
	assert.Equal(t, OpAlert, h.OpCode)
	assert.Equal(t, "caller-42", h.CallerID)

	end, err := b.BuildEnd()
	require.NoError(t, err)
	h2, tp2, err := Parse(end)
	require.NoError(t, err)
	assert.Nil(t, tp2)
	assert.Equal(t, OpEnd, h2.OpCode)
}

func TestCallerIDTooLong(t *testing.T) {
	long := make([]byte, 300)
	_, err := EncodeHeader(Header{OpCode: OpAlert, Channel: 1, CallerID: string(long)})
	require.Error(t, err)
	var tooLong *CallerIDTooLongError
	assert.ErrorAs(t, err, &tooLong)
}

func TestClassifyChannel(t *testing.T) {
	assert.Equal(t, ChannelNormal, ClassifyChannel(1))
	assert.Equal(t, ChannelPriorityPTT, ClassifyChannel(24))
	assert.Equal(t, ChannelEmergencyPTT, ClassifyChannel(25))
	assert.Equal(t, ChannelPriorityPage, ClassifyChannel(49))
	assert.Equal(t, ChannelEmergencyPage, ClassifyChannel(50))
}

func TestLittleEndianSampleCounter(t *testing.T) {
	b, err := NewBuilder(1, 1, "", AudioCodecUlaw)
	require.NoError(t, err)
	b.SetLittleEndian(true)
	counter := b.sampleCounter

	frame := make([]byte, 160)
	pkt, err := b.BuildTransmit(frame, 160)
	require.NoError(t, err)

	// Header is 20 bytes (7 + 13 padded caller id); subheader follows.
	subheader := pkt[20:26]
	assert.Equal(t, b.codec, AudioCodecTag(subheader[0]))
	assert.Equal(t, counter, binary.LittleEndian.Uint32(subheader[2:6]))
}

// TestHeaderRoundTripProperty checks that encode-then-parse preserves
// opcode/channel/host-serial/caller-id for arbitrary valid inputs.
func TestHeaderRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ops := []OpCode{OpAlert, OpTransmit, OpEnd}
		op := ops[rapid.IntRange(0, 2).Draw(t, "op")]
		channel := uint8(rapid.IntRange(1, 50).Draw(t, "channel"))
		hostSerial := uint32(rapid.IntRange(0, int(^uint32(0))).Draw(t, "hostSerial"))
		callerID := rapid.StringOfN(rapid.RuneFrom([]rune("0123456789ABCDEFxyz")), 0, 40, -1).Draw(t, "callerID")

		h := Header{OpCode: op, Channel: channel, HostSerial: hostSerial, CallerID: callerID}
		encoded, err := EncodeHeader(h)
		require.NoError(t, err)

		parsed, n, err := ParseHeader(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, op, parsed.OpCode)
		assert.Equal(t, channel, parsed.Channel)
		assert.Equal(t, hostSerial, parsed.HostSerial)
		assert.Equal(t, callerID, parsed.CallerID)
	})
}
