// Package responder serves speech audio over NATS request/reply.
package responder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dgnsrekt/seitai/internal/audio"
)

// Reply headers.
const (
	HeaderRequestID = "Seitai-Request-Id"
	HeaderError     = "Seitai-Error"
	HeaderErrorKind = "Seitai-Error-Kind"
	headerType      = "Content-Type"
	contentTypeWAV  = "audio/wav"
)

// Error kinds reported in HeaderErrorKind besides the audio kinds.
const (
	KindInvalidRequest audio.Kind = "INVALID_REQUEST"
	KindTimeout        audio.Kind = "TIMEOUT"
)

// Defaults.
const (
	DefaultSubject     = "seitai.speak"
	DefaultQueue       = "seitai"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 8
	drainPollInterval  = 10 * time.Millisecond
)

var (
	// ErrTextEmpty is returned for requests without text.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrSpeakerEmpty is returned when neither the request nor the defaults name a speaker.
	ErrSpeakerEmpty = errors.New("speaker cannot be empty")
)

// Request is the JSON body of a speech request. Speaker and speed fall back
// to the responder defaults when omitted.
type Request struct {
	Text    string   `json:"text"`
	Speaker string   `json:"speaker,omitempty"`
	Speed   *float32 `json:"speed,omitempty"`
}

// Getter serves audio for a fingerprint. *audio.Repository implements it.
type Getter interface {
	Get(ctx context.Context, fp audio.Fingerprint) (*audio.Raw, error)
}

// Responder answers speech requests on a NATS subject. Replies carry WAV
// audio; failures carry an empty body and error headers.
type Responder struct {
	nc      *nats.Conn
	repo    Getter
	subject string
	queue   string
	timeout time.Duration
	slots   chan struct{}
	logger  *log.Logger

	defaultSpeaker string
	defaultSpeed   float32

	inflight sync.WaitGroup
	served   atomic.Int64
	failed   atomic.Int64
}

// Option configures a Responder.
type Option func(*Responder)

// WithSubject sets the subject to listen on.
func WithSubject(subject string) Option {
	return func(r *Responder) {
		if subject != "" {
			r.subject = subject
		}
	}
}

// WithQueue sets the queue group shared by responder instances.
func WithQueue(queue string) Option {
	return func(r *Responder) {
		if queue != "" {
			r.queue = queue
		}
	}
}

// WithTimeout bounds the handling of one request.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Responder) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithConcurrency limits how many requests are handled at once.
func WithConcurrency(n int) Option {
	return func(r *Responder) {
		if n > 0 {
			r.slots = make(chan struct{}, n)
		}
	}
}

// WithDefaults sets the speaker and speed used when a request omits them.
func WithDefaults(speaker string, speed float32) Option {
	return func(r *Responder) {
		r.defaultSpeaker = speaker
		r.defaultSpeed = speed
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Responder) {
		r.logger = logger
	}
}

// New creates a responder serving audio from repo.
func New(nc *nats.Conn, repo Getter, opts ...Option) *Responder {
	r := &Responder{
		nc:           nc,
		repo:         repo,
		subject:      DefaultSubject,
		queue:        DefaultQueue,
		timeout:      DefaultTimeout,
		slots:        make(chan struct{}, DefaultConcurrency),
		logger:       log.Default(),
		defaultSpeed: 1.0,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run subscribes and serves requests until ctx is done. It then drains the
// subscription and waits for in-flight requests before returning.
func (r *Responder) Run(ctx context.Context) error {
	base := context.WithoutCancel(ctx)

	sub, err := r.nc.QueueSubscribe(r.subject, r.queue, func(msg *nats.Msg) {
		// Blocks delivery while every slot is busy.
		r.slots <- struct{}{}
		r.inflight.Add(1)

		go func() {
			defer func() {
				<-r.slots
				r.inflight.Done()
			}()
			r.handleMessage(base, msg)
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", r.subject, err)
	}

	r.logger.Info("listening for speech requests", "subject", r.subject, "queue", r.queue)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	for sub.IsValid() {
		time.Sleep(drainPollInterval)
	}
	r.inflight.Wait()

	r.logger.Info("responder stopped", "served", r.served.Load(), "failed", r.failed.Load())
	return nil
}

func (r *Responder) handleMessage(base context.Context, msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(base, r.timeout)
	defer cancel()

	requestID := ""
	if msg.Header != nil {
		requestID = msg.Header.Get(HeaderRequestID)
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := r.logger.With("request_id", requestID)

	if msg.Reply == "" {
		logger.Warn("dropping request without reply subject", "subject", msg.Subject)
		return
	}

	start := time.Now()
	raw, err := r.serve(ctx, msg.Data)
	if err != nil {
		r.failed.Add(1)
		kind := errorKind(err)
		logger.Error("failed to serve speech request", "err", err, "kind", kind)
		r.respond(logger, msg, requestID, nil, err, kind)
		return
	}

	r.served.Add(1)
	logger.Debug("served speech request", "bytes", raw.Len(), "elapsed", time.Since(start))
	r.respond(logger, msg, requestID, raw.Bytes(), nil, "")
}

// serve decodes a request and fetches its audio.
func (r *Responder) serve(ctx context.Context, data []byte) (*audio.Raw, error) {
	req, err := r.parseRequest(data)
	if err != nil {
		return nil, err
	}

	speed := r.defaultSpeed
	if req.Speed != nil {
		speed = *req.Speed
	}

	fp, err := audio.NewFingerprint(req.Text, req.Speaker, speed)
	if err != nil {
		return nil, err
	}

	return r.repo.Get(ctx, fp)
}

// requestError marks errors caused by a malformed request.
type requestError struct {
	err error
}

func (e *requestError) Error() string { return "invalid request: " + e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func (r *Responder) parseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &requestError{err: fmt.Errorf("failed to unmarshal request: %w", err)}
	}

	if req.Text == "" {
		return nil, &requestError{err: ErrTextEmpty}
	}
	if req.Speaker == "" {
		req.Speaker = r.defaultSpeaker
	}
	if req.Speaker == "" {
		return nil, &requestError{err: ErrSpeakerEmpty}
	}

	return &req, nil
}

func errorKind(err error) audio.Kind {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return KindInvalidRequest
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return audio.KindOf(err)
	}
}

func (r *Responder) respond(logger *log.Logger, msg *nats.Msg, requestID string, data []byte, err error, kind audio.Kind) {
	reply := nats.NewMsg(msg.Reply)
	reply.Data = data
	reply.Header.Set(HeaderRequestID, requestID)

	if err != nil {
		// Header values must stay on one line.
		reply.Header.Set(HeaderError, strings.Join(strings.Fields(err.Error()), " "))
		reply.Header.Set(HeaderErrorKind, string(kind))
	} else {
		reply.Header.Set(headerType, contentTypeWAV)
	}

	if err := msg.RespondMsg(reply); err != nil {
		logger.Error("failed to publish reply", "err", err)
	}
}
