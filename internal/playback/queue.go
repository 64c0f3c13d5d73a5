package playback

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/seitai/internal/audio"
)

var (
	// ErrQueueFull is returned when the queue is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")
)

// FetchFunc produces a clip. It runs as soon as the clip is queued.
type FetchFunc func(ctx context.Context) (*audio.Raw, error)

// Queue plays clips on a sink in the order they were queued. Each clip is
// fetched as soon as it is queued, so synthesis of later clips overlaps
// playback of earlier ones.
type Queue struct {
	sink   Sink
	items  chan *pending
	logger *log.Logger

	mu     sync.Mutex
	closed bool

	enqueued atomic.Int64
	played   atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// pending is a queued clip whose fetch may still be running.
type pending struct {
	done     chan struct{}
	raw      *audio.Raw
	err      error
	enqueued time.Time
}

// QueueStats tracks queue counters.
type QueueStats struct {
	Enqueued int64
	Played   int64
	Dropped  int64 // Refused because the queue was full
	Failed   int64 // Fetch or playback errors
	Pending  int
}

// NewQueue creates a queue holding at most size clips awaiting playback.
func NewQueue(sink Sink, size int, logger *log.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Queue{
		sink:   sink,
		items:  make(chan *pending, size),
		logger: logger,
	}
}

// Enqueue starts fetch and queues its clip for playback. It never blocks;
// a full queue drops the clip.
func (q *Queue) Enqueue(ctx context.Context, fetch FetchFunc) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	p := &pending{done: make(chan struct{}), enqueued: time.Now()}
	select {
	case q.items <- p:
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
	q.enqueued.Add(1)

	go func() {
		defer close(p.done)
		p.raw, p.err = fetch(ctx)
	}()

	return nil
}

// Close stops accepting clips. Run plays what is already queued and then
// returns.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.items)
	}
}

// Run plays queued clips until the queue is closed and drained or ctx is
// done. Clips that fail to fetch or play are logged and skipped.
func (q *Queue) Run(ctx context.Context) error {
	for {
		var p *pending
		select {
		case <-ctx.Done():
			return ctx.Err()
		case item, ok := <-q.items:
			if !ok {
				return nil
			}
			p = item
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.done:
		}

		if p.err != nil {
			q.failed.Add(1)
			q.logger.Error("failed to fetch clip", "err", p.err, "kind", audio.KindOf(p.err))
			continue
		}

		if err := q.sink.Play(ctx, p.raw); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.failed.Add(1)
			q.logger.Error("failed to play clip", "err", err)
			continue
		}

		q.played.Add(1)
		q.logger.Debug("played clip", "latency", time.Since(p.enqueued))
	}
}

// Stats returns queue counters.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Enqueued: q.enqueued.Load(),
		Played:   q.played.Load(),
		Dropped:  q.dropped.Load(),
		Failed:   q.failed.Load(),
		Pending:  len(q.items),
	}
}
