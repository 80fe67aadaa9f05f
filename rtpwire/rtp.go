// Package rtpwire parses and builds RFC 3550 RTP packets. Parsing is
// hand-rolled to surface a distinct error per failure mode (TooShort,
// InvalidVersion, Truncated, InvalidPadding), a precision
// github.com/pion/rtp's Unmarshal doesn't expose. Building reuses
// pion/rtp's Packet.Marshal, which produces the same fixed 12-byte
// header this package's own builder would, so the paced transmitter
// gets the upstream library's wire-format guarantees for free.
package rtpwire

import (
	"encoding/binary"
	"fmt"

	pionrtp "github.com/pion/rtp"
)

// Header is the parsed fixed and variable-length RTP header fields.
type Header struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
}

// Packet is a fully parsed RTP packet.
type Packet struct {
	Header  Header
	Payload []byte
}

// TooShortError indicates fewer than the minimum 12 header bytes.
type TooShortError struct{ Got int }

func (e *TooShortError) Error() string {
	return fmt.Sprintf("rtp: packet too short (minimum 12 bytes required, got %d)", e.Got)
}

// InvalidVersionError indicates a version field other than 2.
type InvalidVersionError struct{ Got uint8 }

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("rtp: invalid version: %d (expected 2)", e.Got)
}

// TruncatedError indicates the declared header/extension/CSRC layout
// requires more bytes than are present.
type TruncatedError struct{ Expected, Actual int }

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("rtp: packet truncated: expected %d bytes, got %d", e.Expected, e.Actual)
}

// InvalidPaddingError indicates a zero or out-of-range padding length.
type InvalidPaddingError struct{}

func (e *InvalidPaddingError) Error() string { return "rtp: invalid padding length" }

// Parse validates and parses an RTP packet from raw bytes.
func Parse(data []byte) (*Packet, error) {
	if len(data) < 12 {
		return nil, &TooShortError{Got: len(data)}
	}

	first := data[0]
	version := (first >> 6) & 0x03
	if version != 2 {
		return nil, &InvalidVersionError{Got: version}
	}
	padding := (first>>5)&0x01 != 0
	extension := (first>>4)&0x01 != 0
	csrcCount := first & 0x0F

	second := data[1]
	marker := (second>>7)&0x01 != 0
	payloadType := second & 0x7F

	sequenceNumber := binary.BigEndian.Uint16(data[2:4])
	timestamp := binary.BigEndian.Uint32(data[4:8])
	ssrc := binary.BigEndian.Uint32(data[8:12])

	headerLen := 12 + int(csrcCount)*4
	if len(data) < headerLen {
		return nil, &TruncatedError{Expected: headerLen, Actual: len(data)}
	}

	csrc := make([]uint32, csrcCount)
	for i := 0; i < int(csrcCount); i++ {
		off := 12 + i*4
		csrc[i] = binary.BigEndian.Uint32(data[off : off+4])
	}

	if extension {
		if len(data) < headerLen+4 {
			return nil, &TruncatedError{Expected: headerLen + 4, Actual: len(data)}
		}
		extLen := int(binary.BigEndian.Uint16(data[headerLen+2:headerLen+4])) * 4
		headerLen += 4 + extLen
		if len(data) < headerLen {
			return nil, &TruncatedError{Expected: headerLen, Actual: len(data)}
		}
	}

	payloadEnd := len(data)
	if padding {
		paddingLen := int(data[len(data)-1])
		if paddingLen == 0 || paddingLen > len(data)-headerLen {
			return nil, &InvalidPaddingError{}
		}
		payloadEnd = len(data) - paddingLen
	}

	payload := make([]byte, payloadEnd-headerLen)
	copy(payload, data[headerLen:payloadEnd])

	return &Packet{
		Header: Header{
			Version:        version,
			Padding:        padding,
			Extension:      extension,
			CSRCCount:      csrcCount,
			Marker:         marker,
			PayloadType:    payloadType,
			SequenceNumber: sequenceNumber,
			Timestamp:      timestamp,
			SSRC:           ssrc,
			CSRC:           csrc,
		},
		Payload: payload,
	}, nil
}

// Build produces a fixed 12-byte-header RTP packet with no CSRC,
// extension, or padding, via github.com/pion/rtp's Marshal.
func Build(payloadType uint8, sequenceNumber uint16, timestamp uint32, ssrc uint32, payload []byte, marker bool) ([]byte, error) {
	p := &pionrtp.Packet{
		Header: pionrtp.Header{
			Version:        2,
			Padding:        false,
			Extension:      false,
			Marker:         marker,
			PayloadType:    payloadType,
			SequenceNumber: sequenceNumber,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	return p.Marshal()
}
