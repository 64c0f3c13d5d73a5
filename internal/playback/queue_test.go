package playback

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/seitai/internal/audio"
)

func clip(s string) FetchFunc {
	return func(ctx context.Context) (*audio.Raw, error) {
		return audio.NewRaw([]byte(s)), nil
	}
}

func TestQueuePlaysInOrder(t *testing.T) {
	rec := NewRecorder()
	q := NewQueue(rec, 8, log.New(io.Discard))

	// The first clip is the slowest to fetch but must still play first.
	release := make(chan struct{})
	slow := func(ctx context.Context) (*audio.Raw, error) {
		<-release
		return audio.NewRaw([]byte("one")), nil
	}

	if err := q.Enqueue(context.Background(), slow); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(context.Background(), clip("two")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(context.Background(), clip("three")); err != nil {
		t.Fatal(err)
	}
	q.Close()

	done := make(chan error, 1)
	go func() { done <- q.Run(context.Background()) }()

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	clips := rec.Clips()
	want := []string{"one", "two", "three"}
	if len(clips) != len(want) {
		t.Fatalf("played %d clips, want %d", len(clips), len(want))
	}
	for i := range want {
		if string(clips[i]) != want[i] {
			t.Errorf("clip %d = %q, want %q", i, clips[i], want[i])
		}
	}

	if stats := q.Stats(); stats.Played != 3 || stats.Enqueued != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestQueueSkipsFailedFetch(t *testing.T) {
	rec := NewRecorder()
	q := NewQueue(rec, 4, log.New(io.Discard))

	failing := func(ctx context.Context) (*audio.Raw, error) {
		return nil, audio.NewError(audio.KindSynthesisFailed, "engine down", nil)
	}

	_ = q.Enqueue(context.Background(), failing)
	_ = q.Enqueue(context.Background(), clip("ok"))
	q.Close()

	if err := q.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if clips := rec.Clips(); len(clips) != 1 || string(clips[0]) != "ok" {
		t.Errorf("Clips = %q", clips)
	}
	if got := q.Stats().Failed; got != 1 {
		t.Errorf("Failed = %d, want 1", got)
	}
}

func TestQueueFullAndClosed(t *testing.T) {
	q := NewQueue(NewRecorder(), 1, log.New(io.Discard))

	if err := q.Enqueue(context.Background(), clip("a")); err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(context.Background(), clip("b")); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	if got := q.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}

	q.Close()
	q.Close()
	if err := q.Enqueue(context.Background(), clip("c")); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
}

func TestQueueRunStopsOnCancel(t *testing.T) {
	q := NewQueue(NewRecorder(), 1, log.New(io.Discard))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
