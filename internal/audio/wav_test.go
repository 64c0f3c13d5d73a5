package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

var testFormat = Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

func TestWAVRoundTrip(t *testing.T) {
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data := EncodeWAV(testFormat, pcm)

	if len(data) != wavHeaderSize+len(pcm) {
		t.Fatalf("encoded length = %d, want %d", len(data), wavHeaderSize+len(pcm))
	}

	format, got, err := ParseWAV(data)
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	if format != testFormat {
		t.Errorf("format = %+v, want %+v", format, testFormat)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v, want %v", got, pcm)
	}
}

func TestParseWAVSkipsExtraChunks(t *testing.T) {
	canonical := EncodeWAV(testFormat, []byte{9, 9, 9, 9})

	// Insert an odd-sized LIST chunk between fmt and data.
	var buf bytes.Buffer
	buf.Write(canonical[:36])
	buf.WriteString("LIST")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	buf.Write(canonical[36:])

	_, pcm, err := ParseWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	if !bytes.Equal(pcm, []byte{9, 9, 9, 9}) {
		t.Errorf("pcm = %v", pcm)
	}
}

func TestParseWAVClampsStreamingDataSize(t *testing.T) {
	data := EncodeWAV(testFormat, []byte{1, 2, 3, 4})
	binary.LittleEndian.PutUint32(data[40:44], 0xFFFFFFFF)

	_, pcm, err := ParseWAV(data)
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	if len(pcm) != 4 {
		t.Errorf("pcm length = %d, want 4", len(pcm))
	}
}

func TestParseWAVErrors(t *testing.T) {
	valid := EncodeWAV(testFormat, []byte{0, 0})

	floatTag := bytes.Clone(valid)
	binary.LittleEndian.PutUint16(floatTag[20:22], 3)

	noData := bytes.Clone(valid[:36])

	tests := []struct {
		name  string
		data  []byte
		isWAV bool
	}{
		{"empty", nil, false},
		{"mp3", []byte("ID3\x03\x00\x00\x00\x00\x00\x00\x00\x00"), false},
		{"float samples", floatTag, true},
		{"missing data", noData, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseWAV(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrNotWAV); got == tt.isWAV {
				t.Errorf("errors.Is(err, ErrNotWAV) = %v for %v", got, err)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	// One second of 16-bit mono at 24kHz.
	if got := testFormat.Duration(48000); got != time.Second {
		t.Errorf("Duration = %v, want 1s", got)
	}
	if got := (Format{}).Duration(100); got != 0 {
		t.Errorf("zero format Duration = %v, want 0", got)
	}
}

func TestFormatValidate(t *testing.T) {
	if err := testFormat.Validate(); err != nil {
		t.Errorf("valid format rejected: %v", err)
	}
	if err := (Format{SampleRate: 24000, Channels: 1, BitDepth: 12}).Validate(); err == nil {
		t.Error("expected error for 12-bit depth")
	}
}
