// Package paging implements the proprietary multicast paging protocol:
// three opcode-tagged messages (alert, transmit, end) with session
// control and per-packet audio redundancy. Every packet starts with a
// fixed 20-byte-minimum header (opcode, channel, host serial, padded
// caller ID); transmit packets add a 6-byte audio subheader, an
// optional copy of the previous frame, and the current frame.
package paging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"time"

	"github.com/cwsl/pagewatch/codec"
)

// OpCode identifies one of the three paging message types.
type OpCode uint8

const (
	OpAlert    OpCode = 0x0F
	OpTransmit OpCode = 0x10
	OpEnd      OpCode = 0xFF
)

func (op OpCode) String() string {
	switch op {
	case OpAlert:
		return "alert"
	case OpTransmit:
		return "transmit"
	case OpEnd:
		return "end"
	default:
		return fmt.Sprintf("opcode(0x%02X)", uint8(op))
	}
}

// AudioCodecTag is the 1-byte codec identifier carried in the audio
// subheader, distinct from codec.Tag (paging carries only G.711 mu-law,
// G.711 A-law and G.722).
type AudioCodecTag uint8

const (
	AudioCodecUlaw AudioCodecTag = 0x00
	AudioCodecAlaw AudioCodecTag = 0x08
	AudioCodecG722 AudioCodecTag = 0x09
)

// ToCodecTag maps the paging audio subheader codec byte to the shared
// codec.Tag enum.
func (a AudioCodecTag) ToCodecTag() (codec.Tag, error) {
	switch a {
	case AudioCodecUlaw:
		return codec.TagUlaw, nil
	case AudioCodecAlaw:
		return codec.TagAlaw, nil
	case AudioCodecG722:
		return codec.TagG722, nil
	default:
		return 0, &InvalidCodecError{Got: uint8(a)}
	}
}

// FrameBytes returns the codec-fixed 20ms frame size in bytes for a
// paging audio codec tag.
func (a AudioCodecTag) FrameBytes() (int, error) {
	switch a {
	case AudioCodecUlaw, AudioCodecAlaw:
		return 160, nil
	case AudioCodecG722:
		return 160, nil
	default:
		return 0, &InvalidCodecError{Got: uint8(a)}
	}
}

// ChannelClass classifies a channel number into the well-known
// priority/emergency paging and PTT ranges, so the reassembler and
// emitted events can tag a page with its class.
type ChannelClass int

const (
	ChannelNormal ChannelClass = iota
	ChannelPriorityPTT
	ChannelEmergencyPTT
	ChannelPriorityPage
	ChannelEmergencyPage
)

// ClassifyChannel returns the ChannelClass for a validated channel
// number (1-50).
func ClassifyChannel(channel uint8) ChannelClass {
	switch channel {
	case 24:
		return ChannelPriorityPTT
	case 25:
		return ChannelEmergencyPTT
	case 49:
		return ChannelPriorityPage
	case 50:
		return ChannelEmergencyPage
	default:
		return ChannelNormal
	}
}

const (
	minHeaderPrefix   = 20 // 7-byte fixed prefix + 13-byte padded caller-id
	callerIDPadTo     = 13
	audioSubheaderLen = 6
	maxCallerIDBytes  = 255
)

// Header is the common 20-byte-or-larger prefix present in every
// paging packet.
type Header struct {
	OpCode      OpCode
	Channel     uint8
	HostSerial  uint32
	CallerID    string
	CallerIDLen uint8 // as transmitted (may exceed len(CallerID) if an embedded NUL truncated it)
}

// AudioSubheader is the 6-byte header that precedes audio data in a
// transmit packet.
type AudioSubheader struct {
	Codec         AudioCodecTag
	Flags         uint8
	SampleCounter uint32
}

// TransmitPacket is a fully parsed transmit-opcode packet.
type TransmitPacket struct {
	Header         Header
	Audio          AudioSubheader
	RedundantFrame []byte // nil if absent
	CurrentFrame   []byte // nil if absent
}

// --- errors ---

type TooShortError struct{ Expected, Actual int }

func (e *TooShortError) Error() string {
	return fmt.Sprintf("paging: packet too short: expected at least %d bytes, got %d", e.Expected, e.Actual)
}

type InvalidOpCodeError struct{ Got uint8 }

func (e *InvalidOpCodeError) Error() string {
	return fmt.Sprintf("paging: invalid opcode 0x%02X", e.Got)
}

type InvalidChannelError struct{ Got uint8 }

func (e *InvalidChannelError) Error() string {
	return fmt.Sprintf("paging: invalid channel %d (must be 1-50)", e.Got)
}

type InvalidCodecError struct{ Got uint8 }

func (e *InvalidCodecError) Error() string {
	return fmt.Sprintf("paging: invalid audio codec tag 0x%02X", e.Got)
}

type TruncatedError struct{ Context string }

func (e *TruncatedError) Error() string { return "paging: truncated: " + e.Context }

type CallerIDTooLongError struct{ Len int }

func (e *CallerIDTooLongError) Error() string {
	return fmt.Sprintf("paging: caller id too long: %d bytes (max 255)", e.Len)
}

// ParseHeader reads the common opcode/channel/serial/caller-id prefix.
// It returns the parsed Header and the number of bytes consumed.
func ParseHeader(data []byte) (Header, int, error) {
	if len(data) < 7 {
		return Header{}, 0, &TooShortError{Expected: 7, Actual: len(data)}
	}
	op := OpCode(data[0])
	if op != OpAlert && op != OpTransmit && op != OpEnd {
		return Header{}, 0, &InvalidOpCodeError{Got: data[0]}
	}
	channel := data[1]
	if channel == 0 || channel > 50 {
		return Header{}, 0, &InvalidChannelError{Got: channel}
	}
	hostSerial := binary.BigEndian.Uint32(data[2:6])
	callerIDLen := data[6]

	if len(data) < 7+int(callerIDLen) {
		return Header{}, 0, &TooShortError{Expected: 7 + int(callerIDLen), Actual: len(data)}
	}
	raw := data[7 : 7+int(callerIDLen)]
	callerID := string(raw)
	if idx := bytes.IndexByte(raw, 0); idx >= 0 {
		callerID = string(raw[:idx])
	}

	consumed := 7 + int(callerIDLen)
	// Header is padded so caller-id occupies at least 13 bytes.
	if callerIDLen < callerIDPadTo {
		consumed = 7 + callerIDPadTo
		if len(data) < consumed {
			return Header{}, 0, &TooShortError{Expected: consumed, Actual: len(data)}
		}
	}

	return Header{
		OpCode:      op,
		Channel:     channel,
		HostSerial:  hostSerial,
		CallerID:    callerID,
		CallerIDLen: callerIDLen,
	}, consumed, nil
}

// Parse dispatches on opcode: alert/end return header only; transmit
// additionally parses the audio subheader, then attempts
// redundant+current (if remaining >= 2x frame) else current only (if
// remaining >= frame) else neither.
func Parse(data []byte) (Header, *TransmitPacket, error) {
	header, n, err := ParseHeader(data)
	if err != nil {
		return Header{}, nil, err
	}
	if header.OpCode != OpTransmit {
		return header, nil, nil
	}

	rest := data[n:]
	if len(rest) < audioSubheaderLen {
		return Header{}, nil, &TruncatedError{Context: "audio subheader"}
	}
	audioTag := AudioCodecTag(rest[0])
	frameSize, err := audioTag.FrameBytes()
	if err != nil {
		return Header{}, nil, err
	}
	audio := AudioSubheader{
		Codec:         audioTag,
		Flags:         rest[1],
		SampleCounter: binary.BigEndian.Uint32(rest[2:6]),
	}
	rest = rest[audioSubheaderLen:]

	tp := &TransmitPacket{Header: header, Audio: audio}
	switch {
	case len(rest) >= 2*frameSize:
		tp.RedundantFrame = append([]byte(nil), rest[:frameSize]...)
		tp.CurrentFrame = append([]byte(nil), rest[frameSize:2*frameSize]...)
	case len(rest) >= frameSize:
		tp.CurrentFrame = append([]byte(nil), rest[:frameSize]...)
	}

	return header, tp, nil
}

// EncodeHeader pads the caller ID to 13 bytes with NULs to preserve a
// fixed minimum 20-byte prefix; the encoded length is 7 + max(n, 13).
func EncodeHeader(h Header) ([]byte, error) {
	if len(h.CallerID) > maxCallerIDBytes {
		return nil, &CallerIDTooLongError{Len: len(h.CallerID)}
	}
	callerIDLen := len(h.CallerID)
	padded := callerIDLen
	if padded < callerIDPadTo {
		padded = callerIDPadTo
	}

	buf := make([]byte, 7+padded)
	buf[0] = byte(h.OpCode)
	buf[1] = h.Channel
	binary.BigEndian.PutUint32(buf[2:6], h.HostSerial)
	buf[6] = byte(callerIDLen)
	copy(buf[7:], h.CallerID)
	// remaining bytes already zero (NUL padding)
	return buf, nil
}

// newSeed produces a pseudo-random 32-bit sample-counter seed from the
// system clock mixed with a multiplicative constant. No cryptographic
// strength needed; values must differ across consecutive sessions.
func newSeed() uint32 {
	return uint32(time.Now().UnixNano()) * 2654435761
}

// Builder holds per-transmitter state for constructing paging packets:
// channel, host serial, caller ID, codec, an advancing sample counter,
// and the previously-sent frame used as redundancy.
type Builder struct {
	channel       uint8
	hostSerial    uint32
	callerID      string
	codec         AudioCodecTag
	sampleCounter uint32
	previousFrame []byte
	littleEndian  bool
	skipRedundant bool
	skipAudioHdr  bool
}

// NewBuilder constructs a Builder for the given channel/caller-id/codec.
// The sample counter is seeded with a pseudo-random value, reseeded on
// Reset.
func NewBuilder(channel uint8, hostSerial uint32, callerID string, c AudioCodecTag) (*Builder, error) {
	if channel == 0 || channel > 50 {
		return nil, &InvalidChannelError{Got: channel}
	}
	return &Builder{
		channel:       channel,
		hostSerial:    hostSerial,
		callerID:      callerID,
		codec:         c,
		sampleCounter: newSeed(),
	}, nil
}

// SetLittleEndian selects little-endian encoding of the sample counter.
// Strictly a diagnostic switch; real traffic is big-endian.
func (b *Builder) SetLittleEndian(v bool) { b.littleEndian = v }

// SetSkipRedundant omits the previously-sent frame from subsequent
// transmit packets, for sending deliberately malformed streams.
func (b *Builder) SetSkipRedundant(v bool) { b.skipRedundant = v }

// SetSkipAudioHeader omits the audio subheader entirely (a diagnostic,
// protocol-violating mode for exercising receiver robustness).
func (b *Builder) SetSkipAudioHeader(v bool) { b.skipAudioHdr = v }

// Reset reseeds the sample counter and clears the redundancy buffer,
// for reuse across looped transmissions.
func (b *Builder) Reset() {
	b.sampleCounter = newSeed()
	b.previousFrame = nil
}

func (b *Builder) header(op OpCode) Header {
	return Header{OpCode: op, Channel: b.channel, HostSerial: b.hostSerial, CallerID: b.callerID}
}

// BuildAlert produces a header-only alert packet.
func (b *Builder) BuildAlert() ([]byte, error) {
	return EncodeHeader(b.header(OpAlert))
}

// BuildEnd produces a header-only end packet.
func (b *Builder) BuildEnd() ([]byte, error) {
	return EncodeHeader(b.header(OpEnd))
}

// BuildTransmit appends the audio subheader (unless skipped), the
// previously-sent frame as redundancy (unless skipped or absent), then
// the current frame. The sample counter advances by frameSamples
// afterward.
func (b *Builder) BuildTransmit(audioFrame []byte, frameSamples int) ([]byte, error) {
	head, err := EncodeHeader(b.header(OpTransmit))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(head)

	if !b.skipAudioHdr {
		subheader := make([]byte, audioSubheaderLen)
		subheader[0] = byte(b.codec)
		subheader[1] = 0
		if b.littleEndian {
			binary.LittleEndian.PutUint32(subheader[2:6], b.sampleCounter)
		} else {
			binary.BigEndian.PutUint32(subheader[2:6], b.sampleCounter)
		}
		out.Write(subheader)
	}

	if !b.skipRedundant && b.previousFrame != nil {
		out.Write(b.previousFrame)
	}
	out.Write(audioFrame)

	b.previousFrame = append([]byte(nil), audioFrame...)
	b.sampleCounter += uint32(frameSamples)

	return out.Bytes(), nil
}

// RandomHostSerial generates a pseudo-random host serial for use by a
// transmitter that doesn't have a fixed device identity.
func RandomHostSerial() uint32 {
	return rand.Uint32()
}
