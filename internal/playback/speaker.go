package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/seitai/internal/audio"
)

// DefaultFormat is the output format of a VOICEVOX engine.
var DefaultFormat = audio.Format{SampleRate: 24000, Channels: 1, BitDepth: 16}

// pollInterval is how often a playing clip is checked for completion.
const pollInterval = 10 * time.Millisecond

// Speaker plays WAV clips on the system audio device, one at a time.
//
// The device is opened once with a fixed format; clips in any other format
// are rejected. Only one Speaker may exist per process.
type Speaker struct {
	context *oto.Context
	format  audio.Format
	volume  float64
	logger  *log.Logger

	// Serializes clips.
	mu sync.Mutex
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithVolume sets the playback volume (0.0 to 1.0).
func WithVolume(volume float64) SpeakerOption {
	return func(s *Speaker) {
		s.volume = volume
	}
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(logger *log.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = logger
	}
}

// NewSpeaker opens the audio device for the given format.
func NewSpeaker(format audio.Format, opts ...SpeakerOption) (*Speaker, error) {
	s := &Speaker{
		format: format,
		volume: 1.0,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validateFormat(format); err != nil {
		return nil, fmt.Errorf("invalid format: %w", err)
	}
	if s.volume < 0.0 || s.volume > 1.0 {
		return nil, fmt.Errorf("volume must be between 0.0 and 1.0, got %f", s.volume)
	}

	ctx, readyChan, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	// Wait for the device to be ready.
	<-readyChan

	s.context = ctx
	return s, nil
}

// validateFormat checks that oto can play the format as is.
func validateFormat(format audio.Format) error {
	if err := format.Validate(); err != nil {
		return err
	}
	if format.Channels != 1 && format.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", format.Channels)
	}
	if format.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", format.BitDepth)
	}
	return nil
}

// Play plays a WAV clip and blocks until it finishes or ctx is done, in
// which case playback stops and ctx.Err() is returned.
func (s *Speaker) Play(ctx context.Context, raw *audio.Raw) error {
	if raw == nil || raw.Len() == 0 {
		return ErrEmptyAudio
	}

	format, pcm, err := audio.ParseWAV(raw.Bytes())
	if err != nil {
		return fmt.Errorf("failed to read clip: %w", err)
	}
	if format != s.format {
		return fmt.Errorf("clip format %+v does not match device format %+v", format, s.format)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	// The reader keeps pcm alive until the player is closed.
	player := s.context.NewPlayer(bytes.NewReader(pcm))
	if player == nil {
		return errors.New("failed to create oto player")
	}
	defer player.Close()

	player.SetVolume(s.volume)
	player.Play()

	s.logger.Debug("playing clip", "duration", format.Duration(len(pcm)))

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	return nil
}
