// Package codec provides audio.Processor implementations.
package codec

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/semaphore"

	"github.com/dgnsrekt/seitai/internal/audio"
)

// ZstdName is the codec name recorded on entries produced by Zstd.
const ZstdName = "zstd"

// DefaultLevel is the zstd compression level used when none is set.
const DefaultLevel = 3

// Zstd compresses audio with zstd. WAV input is split into its format and
// PCM samples and only the samples are compressed; decoding re-frames them
// with a canonical WAV header. Anything else is compressed as is.
//
// Zstd is safe for concurrent use.
type Zstd struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	sem     *semaphore.Weighted
	logger  *log.Logger
}

type zstdOptions struct {
	level       int
	concurrency int64
	logger      *log.Logger
}

// Option configures a Zstd processor.
type Option func(*zstdOptions)

// WithLevel sets the zstd compression level (1-22).
func WithLevel(level int) Option {
	return func(o *zstdOptions) {
		if level > 0 {
			o.level = level
		}
	}
}

// WithConcurrency limits how many compressions run at once.
func WithConcurrency(n int) Option {
	return func(o *zstdOptions) {
		if n > 0 {
			o.concurrency = int64(n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(o *zstdOptions) {
		o.logger = logger
	}
}

// NewZstd creates a zstd processor.
func NewZstd(opts ...Option) (*Zstd, error) {
	o := zstdOptions{
		level:       DefaultLevel,
		concurrency: int64(runtime.GOMAXPROCS(0)),
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(o.level)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Zstd{
		encoder: encoder,
		decoder: decoder,
		sem:     semaphore.NewWeighted(o.concurrency),
		logger:  o.logger,
	}, nil
}

// Compress encodes raw audio. It waits for a free encoder slot and gives up
// if ctx ends first.
func (z *Zstd) Compress(ctx context.Context, raw *audio.Raw) (*audio.Encoded, error) {
	if raw == nil || raw.Len() == 0 {
		return nil, audio.NewError(audio.KindEncodingFailed, "empty audio", nil)
	}

	if err := z.sem.Acquire(ctx, 1); err != nil {
		return nil, audio.NewError(audio.KindEncodingFailed, "waiting for encoder", err)
	}
	defer z.sem.Release(1)

	start := time.Now()
	data := raw.Bytes()

	format, pcm, err := audio.ParseWAV(data)
	switch {
	case errors.Is(err, audio.ErrNotWAV):
		format, pcm = audio.Format{}, data
	case err != nil:
		return nil, audio.NewError(audio.KindEncodingFailed, "malformed WAV", err)
	}

	compressed := z.encoder.EncodeAll(pcm, make([]byte, 0, len(pcm)/2))

	z.logger.Debug("compressed audio",
		"raw", len(data),
		"compressed", len(compressed),
		"duration", format.Duration(len(pcm)),
		"elapsed", time.Since(start))

	return &audio.Encoded{
		Codec:  ZstdName,
		Format: format,
		Data:   compressed,
		Size:   len(pcm),
	}, nil
}

// Raw decodes an entry produced by Compress into a new buffer. It panics if
// the entry is not a zstd entry or is corrupt.
func (z *Zstd) Raw(enc *audio.Encoded) *audio.Raw {
	if enc.Codec != ZstdName {
		panic(fmt.Sprintf("codec: zstd cannot decode %q entry", enc.Codec))
	}

	pcm, err := z.decoder.DecodeAll(enc.Data, make([]byte, 0, enc.Size))
	if err != nil {
		panic(fmt.Sprintf("codec: corrupt zstd entry: %v", err))
	}

	if enc.Format.IsZero() {
		return audio.NewRaw(pcm)
	}
	return audio.NewRaw(audio.EncodeWAV(enc.Format, pcm))
}

// Close releases encoder and decoder resources.
func (z *Zstd) Close() error {
	z.decoder.Close()
	return z.encoder.Close()
}

var _ audio.Processor = (*Zstd)(nil)
