package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dgnsrekt/seitai/internal/cache"
)

const defaultWarmupLimit = 4

// Repository serves audio for fingerprints, synthesizing on a miss and
// keeping the encoded result when the text is cacheable. It is safe for
// concurrent use.
type Repository struct {
	gen   Generator
	proc  Processor
	store cache.Store[Fingerprint, *Encoded]

	cacheable   func(text string) bool
	coalesce    bool
	group       singleflight.Group
	warmupLimit int
	logger      *log.Logger

	hits           atomic.Int64
	misses         atomic.Int64
	generated      atomic.Int64
	encodeFailures atomic.Int64
	encodedBytes   atomic.Int64
}

// Option configures a Repository.
type Option func(*Repository)

// WithStore replaces the default unbounded store, e.g. with a cache.LRU.
func WithStore(store cache.Store[Fingerprint, *Encoded]) Option {
	return func(r *Repository) {
		r.store = store
	}
}

// WithPolicy replaces cache.IsCacheable as the caching gate.
func WithPolicy(cacheable func(text string) bool) Option {
	return func(r *Repository) {
		r.cacheable = cacheable
	}
}

// WithCoalescing makes concurrent misses for the same cacheable fingerprint
// share a single synthesis.
func WithCoalescing() Option {
	return func(r *Repository) {
		r.coalesce = true
	}
}

// WithWarmupLimit sets how many fingerprints Warmup synthesizes at once.
func WithWarmupLimit(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.warmupLimit = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates a repository over the given generator and processor.
func NewRepository(gen Generator, proc Processor, opts ...Option) *Repository {
	r := &Repository{
		gen:         gen,
		proc:        proc,
		store:       cache.NewMap[Fingerprint, *Encoded](),
		cacheable:   cache.IsCacheable,
		warmupLimit: defaultWarmupLimit,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EncodedSize reports the at-rest size of an entry. Pass it to cache.NewLRU
// to bound a store by bytes.
func EncodedSize(enc *Encoded) int64 {
	return int64(len(enc.Data))
}

// outcome is the result of one generate/compress/insert pass. enc is nil
// when compression failed and raw must be served uncached.
type outcome struct {
	enc *Encoded
	raw []byte
}

// Get returns playable audio for fp.
//
// A cached entry is decoded without calling the generator. On a miss the
// generator runs; its error is returned unchanged and nothing is cached.
// Generated audio for cacheable text is compressed and stored before being
// returned. That work is detached from ctx, so a caller that gives up still
// leaves the entry behind for the next one.
func (r *Repository) Get(ctx context.Context, fp Fingerprint) (*Raw, error) {
	if enc, ok := r.store.Get(fp); ok {
		r.hits.Add(1)
		r.logger.Debug("cache hit", "fingerprint", fp)
		return r.decode(fp, enc), nil
	}
	r.misses.Add(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !r.cacheable(fp.text) {
		raw, err := r.gen.Generate(ctx, fp.speaker, fp.text, fp.speed)
		if err != nil {
			return nil, err
		}
		r.generated.Add(1)
		return raw, nil
	}

	var results <-chan singleflight.Result
	if r.coalesce {
		results = r.group.DoChan(fp.Key(), func() (any, error) {
			return r.produce(context.WithoutCancel(ctx), fp)
		})
	} else {
		ch := make(chan singleflight.Result, 1)
		detached := context.WithoutCancel(ctx)
		go func() {
			out, err := r.produce(detached, fp)
			ch <- singleflight.Result{Val: out, Err: err}
		}()
		results = ch
	}

	select {
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		out := res.Val.(outcome)
		if out.enc == nil {
			return NewRaw(out.raw), nil
		}
		return r.decode(fp, out.enc), nil
	case <-ctx.Done():
		r.logger.Debug("caller left before synthesis finished", "fingerprint", fp, "err", ctx.Err())
		return nil, ctx.Err()
	}
}

// produce synthesizes fp and stores its encoded form. It never holds the
// store lock across the generator or processor.
func (r *Repository) produce(ctx context.Context, fp Fingerprint) (outcome, error) {
	start := time.Now()
	raw, err := r.gen.Generate(ctx, fp.speaker, fp.text, fp.speed)
	if err != nil {
		r.logger.Debug("synthesis failed", "fingerprint", fp, "err", err)
		return outcome{}, err
	}
	r.generated.Add(1)

	enc, err := r.proc.Compress(ctx, raw)
	if err != nil {
		r.encodeFailures.Add(1)
		r.logger.Warn("failed to encode audio, serving uncached", "fingerprint", fp, "err", err)
		return outcome{raw: raw.Bytes()}, nil
	}

	r.store.Put(fp, enc)
	r.encodedBytes.Add(EncodedSize(enc))
	r.logger.Debug("cached audio",
		"fingerprint", fp,
		"raw", raw.Len(),
		"encoded", len(enc.Data),
		"elapsed", time.Since(start))

	return outcome{enc: enc}, nil
}

// decode turns a stored entry back into playable audio. An entry the
// processor cannot read back means the cache is corrupt.
func (r *Repository) decode(fp Fingerprint, enc *Encoded) *Raw {
	raw := r.proc.Raw(enc)
	if raw == nil {
		panic(fmt.Sprintf("audio: processor returned no audio for cached entry %s", fp))
	}
	return raw
}

// Seed compresses externally supplied audio and stores it for fp, bypassing
// the generator. It returns ErrNotCacheable when the policy rejects fp.
func (r *Repository) Seed(ctx context.Context, fp Fingerprint, raw *Raw) error {
	if !r.cacheable(fp.text) {
		return fmt.Errorf("seed %s: %w", fp, ErrNotCacheable)
	}

	enc, err := r.proc.Compress(ctx, raw)
	if err != nil {
		r.encodeFailures.Add(1)
		return fmt.Errorf("seed %s: %w", fp, err)
	}

	r.store.Put(fp, enc)
	r.encodedBytes.Add(EncodedSize(enc))
	r.logger.Debug("seeded audio", "fingerprint", fp, "encoded", len(enc.Data))
	return nil
}

// Warmup synthesizes every cacheable fingerprint in fps that is not already
// stored. Other fingerprints are skipped. The first error cancels the rest.
func (r *Repository) Warmup(ctx context.Context, fps ...Fingerprint) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.warmupLimit)

	for _, fp := range fps {
		if !r.cacheable(fp.text) {
			r.logger.Debug("skipping warmup for uncacheable text", "fingerprint", fp)
			continue
		}
		g.Go(func() error {
			if _, err := r.Get(gctx, fp); err != nil {
				return fmt.Errorf("warmup %s: %w", fp, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Stats holds repository counters.
type Stats struct {
	Hits           int64 // Lookups served from the store
	Misses         int64 // Lookups that needed synthesis
	Generated      int64 // Successful generator calls
	EncodeFailures int64 // Compressions that failed
	Entries        int   // Entries currently stored
	EncodedBytes   int64 // Total encoded bytes written to the store
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Stats returns a snapshot of the repository counters.
func (r *Repository) Stats() Stats {
	return Stats{
		Hits:           r.hits.Load(),
		Misses:         r.misses.Load(),
		Generated:      r.generated.Load(),
		EncodeFailures: r.encodeFailures.Load(),
		Entries:        r.store.Len(),
		EncodedBytes:   r.encodedBytes.Load(),
	}
}
