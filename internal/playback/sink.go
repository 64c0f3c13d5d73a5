package playback

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgnsrekt/seitai/internal/audio"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrEmptyAudio is returned when a sink is handed no audio.
var ErrEmptyAudio = errors.New("audio data is empty")

// Sink consumes playable audio. Play returns once the clip has been fully
// delivered or ctx is done.
type Sink interface {
	Play(ctx context.Context, raw *audio.Raw) error
}

// FileSink writes each clip to a numbered WAV file in a directory.
type FileSink struct {
	dir string

	mu   sync.Mutex
	next int
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("output directory cannot be empty")
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Play writes raw to the next file, e.g. 0001.wav.
func (s *FileSink) Play(ctx context.Context, raw *audio.Raw) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if raw == nil || raw.Len() == 0 {
		return ErrEmptyAudio
	}

	s.mu.Lock()
	s.next++
	path := filepath.Join(s.dir, fmt.Sprintf("%04d.wav", s.next))
	s.mu.Unlock()

	if err := os.WriteFile(path, raw.Bytes(), filePermissions); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	return nil
}

// Written returns how many files have been written.
func (s *FileSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next
}

// streamingSize marks RIFF and data chunk sizes as unknown.
const streamingSize = 0xFFFFFFFF

// WriterSink joins clips into one WAV stream on w. The stream header is
// written with the first clip; later clips must share its format.
type WriterSink struct {
	w io.Writer

	mu     sync.Mutex
	format audio.Format
	header bool
}

// NewWriterSink returns a sink streaming to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Play appends the samples of raw to the stream.
func (s *WriterSink) Play(ctx context.Context, raw *audio.Raw) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if raw == nil || raw.Len() == 0 {
		return ErrEmptyAudio
	}

	format, pcm, err := audio.ParseWAV(raw.Bytes())
	if err != nil {
		return fmt.Errorf("failed to parse clip: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.header {
		header := audio.EncodeWAV(format, nil)
		binary.LittleEndian.PutUint32(header[4:8], streamingSize)
		binary.LittleEndian.PutUint32(header[len(header)-4:], streamingSize)
		if _, err := s.w.Write(header); err != nil {
			return fmt.Errorf("failed to write stream header: %w", err)
		}
		s.format = format
		s.header = true
	} else if format != s.format {
		return fmt.Errorf("clip format %+v does not match stream format %+v", format, s.format)
	}

	if _, err := s.w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// Recorder is a Sink that keeps every clip it is given. It never blocks.
type Recorder struct {
	mu    sync.Mutex
	clips [][]byte
	err   error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Play calls return err.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.err = err
}

// Play records a copy of the clip.
func (r *Recorder) Play(ctx context.Context, raw *audio.Raw) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	r.clips = append(r.clips, raw.Clone().Bytes())
	return nil
}

// Clips returns the recorded clips in play order.
func (r *Recorder) Clips() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	clips := make([][]byte, len(r.clips))
	copy(clips, r.clips)
	return clips
}

var (
	_ Sink = (*FileSink)(nil)
	_ Sink = (*WriterSink)(nil)
	_ Sink = (*Recorder)(nil)
	_ Sink = (*Speaker)(nil)
)
