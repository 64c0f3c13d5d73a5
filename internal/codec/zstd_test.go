package codec

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/seitai/internal/audio"
)

var monoFormat = audio.Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

func newTestZstd(t *testing.T, opts ...Option) *Zstd {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	z, err := NewZstd(opts...)
	if err != nil {
		t.Fatalf("NewZstd failed: %v", err)
	}
	t.Cleanup(func() { _ = z.Close() })
	return z
}

// silence returns n bytes of a quiet, repetitive waveform.
func silence(n int) []byte {
	pcm := make([]byte, n)
	for i := range pcm {
		pcm[i] = byte(i % 4)
	}
	return pcm
}

func TestZstdWAVRoundTrip(t *testing.T) {
	z := newTestZstd(t)
	wav := audio.EncodeWAV(monoFormat, silence(48000))

	enc, err := z.Compress(context.Background(), audio.NewRaw(wav))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	if enc.Codec != ZstdName {
		t.Errorf("Codec = %q", enc.Codec)
	}
	if enc.Format != monoFormat {
		t.Errorf("Format = %+v, want %+v", enc.Format, monoFormat)
	}
	if enc.Size != 48000 {
		t.Errorf("Size = %d, want 48000", enc.Size)
	}
	if len(enc.Data) >= len(wav) {
		t.Errorf("compressed %d bytes to %d", len(wav), len(enc.Data))
	}

	got, err := io.ReadAll(z.Raw(enc))
	if err != nil {
		t.Fatalf("reading decoded audio: %v", err)
	}
	if !bytes.Equal(got, wav) {
		t.Error("decoded WAV differs from canonical input")
	}
}

func TestZstdReframesNonCanonicalWAV(t *testing.T) {
	z := newTestZstd(t)
	pcm := silence(100)
	wav := audio.EncodeWAV(monoFormat, pcm)

	// Claim an unknown data length as streaming encoders do.
	wav[40], wav[41], wav[42], wav[43] = 0xFF, 0xFF, 0xFF, 0xFF

	enc, err := z.Compress(context.Background(), audio.NewRaw(wav))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	got, _ := io.ReadAll(z.Raw(enc))
	if !bytes.Equal(got, audio.EncodeWAV(monoFormat, pcm)) {
		t.Error("decoded audio is not canonically framed")
	}
}

func TestZstdOpaqueInput(t *testing.T) {
	z := newTestZstd(t)
	data := []byte("OggS not a wav file at all")

	enc, err := z.Compress(context.Background(), audio.NewRaw(data))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if !enc.Format.IsZero() {
		t.Errorf("Format = %+v, want zero", enc.Format)
	}

	got, _ := io.ReadAll(z.Raw(enc))
	if !bytes.Equal(got, data) {
		t.Errorf("decoded %q, want %q", got, data)
	}
}

func TestZstdRawViewsAreIndependent(t *testing.T) {
	z := newTestZstd(t)
	enc, err := z.Compress(context.Background(), audio.NewRaw(audio.EncodeWAV(monoFormat, silence(64))))
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	first := z.Raw(enc)
	second := z.Raw(enc)

	a, _ := io.ReadAll(first)
	b, _ := io.ReadAll(second)
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Error("second view was affected by reading the first")
	}

	first.Bytes()[0] ^= 0xFF
	if bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("views share a buffer")
	}
}

func TestZstdCompressErrors(t *testing.T) {
	z := newTestZstd(t)

	malformed := audio.EncodeWAV(monoFormat, silence(8))
	malformed[20] = 3 // IEEE float samples

	tests := []struct {
		name string
		raw  *audio.Raw
	}{
		{"empty", audio.NewRaw(nil)},
		{"nil", nil},
		{"unsupported WAV", audio.NewRaw(malformed)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := z.Compress(context.Background(), tt.raw)
			if !errors.Is(err, audio.ErrEncodingFailed) {
				t.Errorf("err = %v, want ErrEncodingFailed", err)
			}
		})
	}
}

func TestZstdCompressHonoursContext(t *testing.T) {
	z := newTestZstd(t, WithConcurrency(1))

	// Hold the only slot.
	if err := z.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer z.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := z.Compress(ctx, audio.NewRaw([]byte("x")))
	if !errors.Is(err, audio.ErrEncodingFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want encoding failure caused by cancellation", err)
	}
}

func TestZstdRawPanicsOnForeignEntry(t *testing.T) {
	z := newTestZstd(t)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	z.Raw(&audio.Encoded{Codec: "copy", Data: []byte("x")})
}

func TestZstdRawPanicsOnCorruptEntry(t *testing.T) {
	z := newTestZstd(t)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	z.Raw(&audio.Encoded{Codec: ZstdName, Data: []byte("definitely not zstd")})
}

func TestZstdWithRepository(t *testing.T) {
	z := newTestZstd(t, WithLevel(1))
	wav := audio.EncodeWAV(monoFormat, silence(2400))

	calls := 0
	gen := audio.GeneratorFunc(func(ctx context.Context, speaker, text string, speed float32) (*audio.Raw, error) {
		calls++
		return audio.NewRaw(wav), nil
	})
	repo := audio.NewRepository(gen, z, audio.WithLogger(log.New(io.Discard)))

	fp, err := audio.NewFingerprint("CODE", "1", 1)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		raw, err := repo.Get(context.Background(), fp)
		if err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
		got, _ := io.ReadAll(raw)
		if !bytes.Equal(got, wav) {
			t.Errorf("Get %d returned different audio", i)
		}
	}
	if calls != 1 {
		t.Errorf("generator calls = %d, want 1", calls)
	}
}

func BenchmarkZstdCompress(b *testing.B) {
	z, err := NewZstd(WithLogger(log.New(io.Discard)))
	if err != nil {
		b.Fatal(err)
	}
	defer z.Close()

	raw := audio.NewRaw(audio.EncodeWAV(monoFormat, silence(240000)))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := z.Compress(ctx, raw); err != nil {
			b.Fatal(err)
		}
	}
}
