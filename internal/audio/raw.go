package audio

import (
	"bytes"
	"context"
)

// Raw is decoded, playable audio. It reads from its own buffer, so every Raw
// is consumed independently of any other Raw with the same content.
type Raw struct {
	*bytes.Reader
	data []byte
}

// NewRaw wraps data as playable audio. The caller must not modify data
// afterwards.
func NewRaw(data []byte) *Raw {
	return &Raw{Reader: bytes.NewReader(data), data: data}
}

// Bytes returns the full audio content regardless of the read position.
// The slice must not be modified.
func (r *Raw) Bytes() []byte {
	return r.data
}

// Len returns the total size of the audio in bytes.
func (r *Raw) Len() int {
	return len(r.data)
}

// Clone returns a new Raw over a copy of the same content.
func (r *Raw) Clone() *Raw {
	data := make([]byte, len(r.data))
	copy(data, r.data)
	return NewRaw(data)
}

// Encoded is the compact at-rest form of audio held by the cache. Its payload
// is only meaningful to the Processor that produced it.
type Encoded struct {
	// Codec names the processor encoding, e.g. "zstd".
	Codec string

	// Format is the PCM format of the decoded audio, zero when the input was
	// not recognised and is stored opaquely.
	Format Format

	// Data is the encoded payload.
	Data []byte

	// Size is the decoded payload length in bytes.
	Size int
}

// Generator synthesizes speech. Implementations must be safe for concurrent
// use.
type Generator interface {
	// Generate converts text to raw audio with the given speaker and speed.
	// Errors should match ErrSynthesisFailed.
	Generate(ctx context.Context, speaker, text string, speed float32) (*Raw, error)
}

// Processor converts raw audio to its cached form and back. Implementations
// must be safe for concurrent use.
type Processor interface {
	// Compress converts raw audio to its at-rest form. It reads raw from its
	// full content, not its read position. Errors should match
	// ErrEncodingFailed.
	Compress(ctx context.Context, raw *Raw) (*Encoded, error)

	// Raw returns a fresh playable view of an encoded entry. It has no side
	// effects and may be called any number of times on the same entry.
	Raw(enc *Encoded) *Raw
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, speaker, text string, speed float32) (*Raw, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, speaker, text string, speed float32) (*Raw, error) {
	return f(ctx, speaker, text, speed)
}
