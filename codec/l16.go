package codec

import "encoding/binary"

// L16 is stateless big-endian int16 linear PCM, per RFC 3551. Decode
// rejects odd-length input.

type l16Decoder struct {
	sampleRate int
	channels   int
}

type l16Encoder struct {
	sampleRate int
	channels   int
}

func NewL16Decoder(sampleRate, channels int) Decoder {
	return &l16Decoder{sampleRate: sampleRate, channels: channels}
}

func NewL16Encoder(sampleRate, channels int) Encoder {
	return &l16Encoder{sampleRate: sampleRate, channels: channels}
}

func (d *l16Decoder) Decode(frame []byte) ([]int16, error) {
	if len(frame)%2 != 0 {
		return nil, &InvalidFrameError{Reason: "l16: odd-length input"}
	}
	out := make([]int16, len(frame)/2)
	for i := range out {
		out[i] = int16(binary.BigEndian.Uint16(frame[i*2 : i*2+2]))
	}
	return out, nil
}
func (d *l16Decoder) SampleRate() int { return d.sampleRate }
func (d *l16Decoder) Channels() int   { return d.channels }
func (d *l16Decoder) Tag() Tag        { return TagL16 }

func (e *l16Encoder) Encode(samples []int16) ([]byte, error) {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out, nil
}
func (e *l16Encoder) SampleRate() int   { return e.sampleRate }
func (e *l16Encoder) Channels() int     { return e.channels }
func (e *l16Encoder) Tag() Tag          { return TagL16 }
func (e *l16Encoder) FrameSamples() int { return e.sampleRate / 50 } // 20ms
