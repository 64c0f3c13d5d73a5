// Package voicevox is a speech generator backed by a VOICEVOX engine.
package voicevox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/seitai/internal/audio"
)

// Engine endpoints.
const (
	pathAudioQuery = "/audio_query"
	pathSynthesis  = "/synthesis"
	pathSpeakers   = "/speakers"
	pathVersion    = "/version"
)

const (
	// DefaultURL is where a local engine listens.
	DefaultURL = "http://127.0.0.1:50021"

	// DefaultTimeout bounds a single engine request.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 4 << 10
)

// ErrInvalidSpeaker is returned for speaker identifiers that are not style ids.
var ErrInvalidSpeaker = errors.New("speaker must be a numeric style id")

// Client talks to the VOICEVOX engine HTTP API. It implements
// audio.Generator and is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRequestsPerMinute limits synthesis calls. Zero means unlimited.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.rateLimiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the engine at baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		rateLimiter: rate.NewLimiter(rate.Inf, 1),
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ audio.Generator = (*Client)(nil)

// Generate synthesizes text as WAV audio. The engine's audio query is fetched
// first and its speedScale replaced with speed before synthesis.
func (c *Client) Generate(ctx context.Context, speaker, text string, speed float32) (*audio.Raw, error) {
	if text == "" {
		return nil, synthesisError("text cannot be empty", nil)
	}
	if _, err := strconv.Atoi(speaker); err != nil {
		return nil, synthesisError(fmt.Sprintf("speaker %q", speaker), ErrInvalidSpeaker)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, synthesisError("rate limit wait cancelled", err)
	}

	start := time.Now()

	query, err := c.audioQuery(ctx, speaker, text)
	if err != nil {
		return nil, err
	}

	query["speedScale"] = json.RawMessage(strconv.FormatFloat(float64(speed), 'g', -1, 32))

	data, err := c.synthesis(ctx, speaker, query)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("synthesized speech",
		"speaker", speaker,
		"speed", speed,
		"chars", len([]rune(text)),
		"bytes", len(data),
		"elapsed", time.Since(start))

	return audio.NewRaw(data), nil
}

// audioQuery fetches the synthesis parameters for text. Fields are kept raw so
// that everything the engine returns is sent back unchanged.
func (c *Client) audioQuery(ctx context.Context, speaker, text string) (map[string]json.RawMessage, error) {
	params := url.Values{}
	params.Set("text", text)
	params.Set("speaker", speaker)

	body, err := c.do(ctx, http.MethodPost, pathAudioQuery, params, nil)
	if err != nil {
		return nil, err
	}

	var query map[string]json.RawMessage
	if err := json.Unmarshal(body, &query); err != nil {
		return nil, synthesisError("failed to decode audio query", err)
	}
	return query, nil
}

func (c *Client) synthesis(ctx context.Context, speaker string, query map[string]json.RawMessage) ([]byte, error) {
	payload, err := json.Marshal(query)
	if err != nil {
		return nil, synthesisError("failed to encode audio query", err)
	}

	params := url.Values{}
	params.Set("speaker", speaker)

	data, err := c.do(ctx, http.MethodPost, pathSynthesis, params, payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, synthesisError("received empty audio data", nil)
	}
	return data, nil
}

// Style is one voice of a speaker. Its ID is the speaker identifier used in
// fingerprints.
type Style struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// Speaker is a character offered by the engine.
type Speaker struct {
	Name    string  `json:"name"`
	UUID    string  `json:"speaker_uuid"`
	Styles  []Style `json:"styles"`
	Version string  `json:"version"`
}

// Speakers lists the speakers the engine offers.
func (c *Client) Speakers(ctx context.Context) ([]Speaker, error) {
	body, err := c.do(ctx, http.MethodGet, pathSpeakers, nil, nil)
	if err != nil {
		return nil, err
	}

	var speakers []Speaker
	if err := json.Unmarshal(body, &speakers); err != nil {
		return nil, synthesisError("failed to decode speakers", err)
	}
	return speakers, nil
}

// HealthCheck returns the engine version, failing if it is unreachable.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, pathVersion, nil, nil)
	if err != nil {
		return "", err
	}

	var version string
	if err := json.Unmarshal(body, &version); err != nil {
		return "", synthesisError("failed to decode version", err)
	}
	return version, nil
}

// errorResponse is the body the engine sends with a failed request.
type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// do sends a request and returns the body of a 200 response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload []byte) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, synthesisError("failed to create request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, synthesisError(fmt.Sprintf("engine at %s unreachable", c.baseURL), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(path, resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, synthesisError("failed to read response", err)
	}
	return data, nil
}

// StatusError is an engine response with a non-200 status.
type StatusError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s returned %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%s returned %d: %s", e.Path, e.StatusCode, e.Detail)
}

func parseErrorResponse(path string, resp *http.Response) error {
	statusErr := &StatusError{Path: path, StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && len(er.Detail) > 0 {
		// Validation errors carry a list; plain errors a string.
		var detail string
		if json.Unmarshal(er.Detail, &detail) == nil {
			statusErr.Detail = detail
		} else {
			statusErr.Detail = string(er.Detail)
		}
	} else {
		statusErr.Detail = strings.TrimSpace(string(raw))
	}

	return synthesisError("engine rejected request", statusErr)
}

func synthesisError(message string, cause error) error {
	return audio.NewError(audio.KindSynthesisFailed, message, cause)
}
