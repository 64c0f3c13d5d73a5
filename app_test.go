package main

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/dgnsrekt/seitai/internal/audio"
	"github.com/dgnsrekt/seitai/internal/config"
)

func testConfig(t *testing.T, settings map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	for key, value := range settings {
		v.Set(key, value)
	}
	cfg, err := config.Load(v)
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}
	return cfg
}

func TestAppSeedsCache(t *testing.T) {
	wav := audio.EncodeWAV(audio.Format{SampleRate: 24000, Channels: 1, BitDepth: 16}, make([]byte, 480))
	path := filepath.Join(t.TempDir(), "code.wav")
	if err := os.WriteFile(path, wav, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(t, map[string]any{
		// Unroutable, so any synthesis would fail.
		"engine.url": "http://127.0.0.1:1",
		"cache.seed": []map[string]any{{"text": "CODE", "file": path}},
	})

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx := context.Background()
	if err := a.start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	fp, err := a.fingerprint("CODE", cfg.Voice)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := a.repo.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get of seeded text failed: %v", err)
	}
	if _, pcm, err := audio.ParseWAV(raw.Bytes()); err != nil || len(pcm) != 480 {
		t.Errorf("seeded audio: %d pcm bytes, err %v", len(pcm), err)
	}
	if s := a.repo.Stats(); s.Hits != 1 || s.Generated != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAppStartMissingSeedFile(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"cache.seed": []map[string]any{{"text": "URL", "file": filepath.Join(t.TempDir(), "missing.wav")}},
	})

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.start(context.Background()); err == nil {
		t.Error("expected error for missing seed file")
	}
}

func TestAppWarmupToleratesOfflineEngine(t *testing.T) {
	cfg := testConfig(t, map[string]any{
		"engine.url":   "http://127.0.0.1:1",
		"cache.warmup": true,
	})

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.start(context.Background()); err != nil {
		t.Errorf("start failed: %v", err)
	}
	if n := a.repo.Stats().Entries; n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}

func TestAppBoundedStore(t *testing.T) {
	cfg := testConfig(t, map[string]any{"cache.max_size": "1KB"})

	a, err := newApp(cfg)
	if err != nil {
		t.Fatalf("newApp failed: %v", err)
	}
	defer func() { _ = a.Close() }()

	// Larger than the whole store once compressed.
	noise := make([]byte, 8192)
	if _, err := rand.Read(noise); err != nil {
		t.Fatal(err)
	}
	fp, err := a.fingerprint("URL", cfg.Voice)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.repo.Seed(context.Background(), fp, audio.NewRaw(noise)); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if n := a.repo.Stats().Entries; n != 0 {
		t.Errorf("entries = %d, want oversized entry rejected", n)
	}
}
