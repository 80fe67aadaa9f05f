// Package codec implements the uniform encode/decode contracts for the
// audio codecs carried by paging and RTP traffic: G.711 mu-law, G.711
// A-law, G.722, Opus, and linear PCM. All decoders consume wire bytes
// and produce 16-bit signed native-endian PCM samples; all encoders do
// the reverse.
package codec

import "fmt"

// Tag identifies a codec independent of any particular wire protocol's
// numbering (RTP payload type, paging audio subheader codec byte).
type Tag uint8

const (
	TagUlaw Tag = iota
	TagAlaw
	TagG722
	TagOpus
	TagL16
)

func (t Tag) String() string {
	switch t {
	case TagUlaw:
		return "g711-ulaw"
	case TagAlaw:
		return "g711-alaw"
	case TagG722:
		return "g722"
	case TagOpus:
		return "opus"
	case TagL16:
		return "l16"
	default:
		return fmt.Sprintf("tag(%d)", uint8(t))
	}
}

// Decoder turns wire-format bytes into 16-bit signed PCM samples.
type Decoder interface {
	Decode(frame []byte) ([]int16, error)
	SampleRate() int
	Channels() int
	Tag() Tag
}

// Encoder turns 16-bit signed PCM samples into wire-format bytes.
type Encoder interface {
	Encode(samples []int16) ([]byte, error)
	SampleRate() int
	Channels() int
	Tag() Tag
	FrameSamples() int
}

// Descriptor is the static shape of a codec: its sample rate, channel
// count, native frame size in samples, and (if applicable) its
// well-known RTP payload type.
type Descriptor struct {
	Tag          Tag
	SampleRate   int
	Channels     int
	FrameSamples int
	PayloadType  int // -1 if dynamic/unassigned
}

var descriptors = map[Tag]Descriptor{
	TagUlaw: {Tag: TagUlaw, SampleRate: 8000, Channels: 1, FrameSamples: 160, PayloadType: 0},
	TagAlaw: {Tag: TagAlaw, SampleRate: 8000, Channels: 1, FrameSamples: 160, PayloadType: 8},
	TagG722: {Tag: TagG722, SampleRate: 16000, Channels: 1, FrameSamples: 320, PayloadType: 9},
	TagOpus: {Tag: TagOpus, SampleRate: 48000, Channels: 1, FrameSamples: 960, PayloadType: -1},
	TagL16:  {Tag: TagL16, SampleRate: 8000, Channels: 1, FrameSamples: 160, PayloadType: 11},
}

// DescriptorFor returns the static descriptor for a codec tag.
func DescriptorFor(t Tag) (Descriptor, bool) {
	d, ok := descriptors[t]
	return d, ok
}

// payloadTypeMap maps RTP payload type numbers to codec tags, per
// RFC 3551 for the static assignments and the 96-127 dynamic range
// (assumed Opus).
func payloadTypeMap(pt int) (Tag, bool) {
	switch {
	case pt == 0:
		return TagUlaw, true
	case pt == 8:
		return TagAlaw, true
	case pt == 9:
		return TagG722, true
	case pt == 10 || pt == 11:
		return TagL16, true
	case pt >= 96 && pt <= 127:
		return TagOpus, true
	default:
		return 0, false
	}
}

// UnsupportedPayloadTypeError is returned by DecoderForPayloadType when
// no codec tag is mapped to the given payload type.
type UnsupportedPayloadTypeError struct {
	PayloadType int
}

func (e *UnsupportedPayloadTypeError) Error() string {
	return fmt.Sprintf("codec: unsupported RTP payload type %d", e.PayloadType)
}

// InitError wraps a codec initialization failure (e.g. an external
// transcoder binary missing from PATH). Init errors propagate to the
// caller rather than degrading to a substitute codec.
type InitError struct {
	Codec Tag
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("codec %s: init error: %v", e.Codec, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// InvalidFrameError indicates a frame could not be decoded/encoded
// because of a structural problem (e.g. odd-length L16 input).
type InvalidFrameError struct {
	Reason string
}

func (e *InvalidFrameError) Error() string { return "codec: invalid frame: " + e.Reason }

// EncodeError and DecodeError wrap a per-frame failure from a codec's
// underlying implementation (e.g. a transcoder subprocess exiting
// non-zero). Callers log these and skip the frame; they are not fatal
// to the session.
type EncodeError struct{ Err error }

func (e *EncodeError) Error() string { return "codec: encode error: " + e.Err.Error() }
func (e *EncodeError) Unwrap() error { return e.Err }

type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return "codec: decode error: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// NewDecoder constructs a decoder for the given codec tag.
func NewDecoder(t Tag) (Decoder, error) {
	switch t {
	case TagUlaw:
		return NewUlawDecoder(), nil
	case TagAlaw:
		return NewAlawDecoder(), nil
	case TagG722:
		return NewG722Decoder()
	case TagOpus:
		return NewOpusDecoder(48000, 1)
	case TagL16:
		return NewL16Decoder(8000, 1), nil
	default:
		return nil, &InitError{Codec: t, Err: fmt.Errorf("unknown codec tag %d", t)}
	}
}

// NewEncoder constructs an encoder for the given codec tag.
func NewEncoder(t Tag) (Encoder, error) {
	switch t {
	case TagUlaw:
		return NewUlawEncoder(), nil
	case TagAlaw:
		return NewAlawEncoder(), nil
	case TagG722:
		return NewG722Encoder()
	case TagOpus:
		return NewOpusEncoder(48000, 1, 0)
	case TagL16:
		return NewL16Encoder(8000, 1), nil
	default:
		return nil, &InitError{Codec: t, Err: fmt.Errorf("unknown codec tag %d", t)}
	}
}

// DecoderForPayloadType maps an RTP payload type to a decoder via the
// static/dynamic payload-type table.
func DecoderForPayloadType(pt int) (Decoder, error) {
	tag, ok := payloadTypeMap(pt)
	if !ok {
		return nil, &UnsupportedPayloadTypeError{PayloadType: pt}
	}
	return NewDecoder(tag)
}
