package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/seitai/internal/audio"
	"github.com/dgnsrekt/seitai/internal/cache"
	"github.com/dgnsrekt/seitai/internal/codec"
	"github.com/dgnsrekt/seitai/internal/config"
	"github.com/dgnsrekt/seitai/internal/message"
	"github.com/dgnsrekt/seitai/internal/voicevox"
)

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	engine    *voicevox.Client
	codec     *codec.Zstd
	repo      *audio.Repository
	segmenter *message.Segmenter
}

func newApp(cfg *config.Config) (*app, error) {
	engine := voicevox.New(cfg.Engine.URL,
		voicevox.WithTimeout(cfg.Engine.Timeout),
		voicevox.WithRequestsPerMinute(cfg.Engine.RequestsPerMinute),
		voicevox.WithLogger(log.Default().WithPrefix("voicevox")),
	)

	zstd, err := codec.NewZstd(
		codec.WithLevel(cfg.Cache.CompressionLevel),
		codec.WithLogger(log.Default().WithPrefix("codec")),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create codec: %w", err)
	}

	opts := []audio.Option{
		audio.WithLogger(log.Default().WithPrefix("cache")),
	}
	if cfg.Cache.Coalesce {
		opts = append(opts, audio.WithCoalescing())
	}
	maxBytes, err := cfg.Cache.MaxBytes()
	if err != nil {
		_ = zstd.Close()
		return nil, err
	}
	if maxBytes > 0 {
		opts = append(opts, audio.WithStore(cache.NewLRU[audio.Fingerprint](maxBytes, audio.EncodedSize)))
	}

	return &app{
		cfg:    cfg,
		engine: engine,
		codec:  zstd,
		repo:   audio.NewRepository(engine, zstd, opts...),
		segmenter: message.NewSegmenter(
			message.WithMaxLength(cfg.Message.MaxLength),
			message.WithNames(cfg.Message.Names),
		),
	}, nil
}

// start seeds the cache from the configured files and runs warmup when
// enabled. Seeded targets are hits during warmup. A warmup failure is logged, not returned, so an offline engine
// does not stop playback of cached audio.
func (a *app) start(ctx context.Context) error {
	for _, entry := range a.cfg.Cache.Seed {
		data, err := os.ReadFile(entry.File)
		if err != nil {
			return fmt.Errorf("unable to read seed file: %w", err)
		}
		fp, err := a.fingerprint(entry.Text, a.cfg.Voice)
		if err != nil {
			return err
		}
		if err := a.repo.Seed(ctx, fp, audio.NewRaw(data)); err != nil {
			return err
		}
		log.Debug("Seeded cache", "text", entry.Text, "file", entry.File)
	}

	if !a.cfg.Cache.Warmup {
		return nil
	}

	var fps []audio.Fingerprint
	for _, target := range cache.Targets() {
		fp, err := a.fingerprint(target.String(), a.cfg.Voice)
		if err != nil {
			return err
		}
		fps = append(fps, fp)
	}
	if err := a.repo.Warmup(ctx, fps...); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn("Cache warmup failed", "err", err, "kind", audio.KindOf(err))
	}
	return nil
}

func (a *app) fingerprint(text string, voice config.VoiceConfig) (audio.Fingerprint, error) {
	return audio.NewFingerprint(text, voice.Speaker, voice.Speed32())
}

func (a *app) Close() error {
	return a.codec.Close()
}
