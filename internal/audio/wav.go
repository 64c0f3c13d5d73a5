package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// WAV layout constants.
const (
	wavHeaderSize = 44
	wavFormatPCM  = 1
)

// ErrNotWAV is returned by ParseWAV for data without a RIFF/WAVE header.
var ErrNotWAV = errors.New("not a RIFF/WAVE stream")

// Format describes interleaved little-endian PCM audio.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// IsZero reports whether the format is unknown.
func (f Format) IsZero() bool {
	return f == Format{}
}

// BytesPerFrame returns the number of bytes per sample frame.
func (f Format) BytesPerFrame() int {
	return f.BitDepth / 8 * f.Channels
}

// Duration returns the playback length of n bytes of PCM.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.BytesPerFrame() == 0 {
		return 0
	}
	frames := n / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks that the format is playable PCM.
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", f.Channels)
	}
	if f.BitDepth <= 0 || f.BitDepth%8 != 0 {
		return fmt.Errorf("invalid bit depth %d", f.BitDepth)
	}
	return nil
}

// ParseWAV splits a PCM WAV stream into its format and sample data. The
// returned PCM aliases data.
func ParseWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	var (
		format  Format
		haveFmt bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if size < 0 || end > len(data) {
			// Streams written before their length is known report a huge
			// data size; clamp to what is actually there.
			if id != "data" {
				return Format{}, nil, fmt.Errorf("chunk %q overruns stream", id)
			}
			end = len(data)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			tag := binary.LittleEndian.Uint16(data[body : body+2])
			if tag != wavFormatPCM {
				return Format{}, nil, fmt.Errorf("unsupported WAV format tag %d", tag)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(data[body+2 : body+4])),
				SampleRate: int(binary.LittleEndian.Uint32(data[body+4 : body+8])),
				BitDepth:   int(binary.LittleEndian.Uint16(data[body+14 : body+16])),
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, nil, errors.New("data chunk before fmt chunk")
			}
			if err := format.Validate(); err != nil {
				return Format{}, nil, err
			}
			return format, data[body:end], nil
		}

		// Chunks are padded to an even length.
		pos = end + size%2
	}

	return Format{}, nil, errors.New("missing data chunk")
}

// EncodeWAV frames PCM data with a canonical 44-byte WAV header.
func EncodeWAV(f Format, pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	blockAlign := f.BytesPerFrame()
	byteRate := f.SampleRate * blockAlign

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(wavFormatPCM))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(f.SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(f.BitDepth))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
