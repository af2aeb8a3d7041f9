// Package scrape fetches documents for remote scrapers. It honors
// robots.txt and crawl delays, rate limits per domain and caches bodies.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/srs/internal/cache"
	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/worker"
	"github.com/sirupsen/logrus"
)

// ErrDisallowedByRobots is returned for URLs robots.txt forbids us to fetch
var ErrDisallowedByRobots = errors.New("disallowed by robots.txt")

// ErrBodyTooLarge is returned when a body exceeds the configured limit
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError is a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// sleep waits out crawl delays; tests replace it
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Response is a fetched document
type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
	Cached      bool
}

// Fetcher retrieves documents politely
type Fetcher struct {
	client       *http.Client
	robots       *RobotsChecker
	limiter      *worker.Limiter
	cache        cache.Cache
	userAgent    string
	maxBytes     int64
	ignoreRobots bool
	log          logrus.FieldLogger
}

// Option customizes a Fetcher
type Option func(*Fetcher)

// WithCache caches fetched bodies
func WithCache(c cache.Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithLimiter rate limits requests per domain
func WithLimiter(l *worker.Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithLogger sets the logger; nil keeps the default
func WithLogger(log logrus.FieldLogger) Option {
	return func(f *Fetcher) {
		if log != nil {
			f.log = log
		}
	}
}

// NewFetcher creates a fetcher from the http config section. Invalid proxy
// settings are logged and the environment's proxy is used instead.
func NewFetcher(cfg model.HTTPConfig, opts ...Option) *Fetcher {
	proxies, proxyErr := newProxySelector(cfg)
	client := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               proxies.proxy,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		client:       client,
		robots:       NewRobotsChecker(client, cfg.UserAgent),
		cache:        cache.Nop{},
		userAgent:    cfg.UserAgent,
		maxBytes:     cfg.MaxBodyBytes,
		ignoreRobots: cfg.IgnoreRobots,
		log:          logging.Discard(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if proxyErr != nil {
		f.log.Warnf("ignoring proxy settings: %v", proxyErr)
	}
	return f
}

// Fetch GETs rawURL, serving it from cache when possible
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	key := cache.Key(rawURL)
	if body, ok := f.cache.Get(key); ok {
		f.log.WithField("url", rawURL).Debug("cache hit")
		return &Response{URL: rawURL, FinalURL: rawURL, StatusCode: http.StatusOK, Body: body, Cached: true}, nil
	}

	resp, err := f.getWithRetry(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var r io.Reader = resp.Body
	if f.maxBytes > 0 {
		r = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	// a cut document can still parse, so never hand out a prefix
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("GET %s: %w (limit %d bytes)", rawURL, ErrBodyTooLarge, f.maxBytes)
	}

	if err := f.cache.Set(key, body, 0); err != nil {
		f.log.WithField("url", rawURL).Warnf("cache write failed: %v", err)
	}

	return &Response{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// FetchJSON fetches rawURL and decodes its JSON body into v. Numbers
// inside untyped values are kept as json.Number.
func (f *Fetcher) FetchJSON(ctx context.Context, rawURL string, v any) error {
	resp, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode JSON from %s: %w", rawURL, err)
	}
	return nil
}

// Download streams rawURL into dest. The body goes to a temp file in the
// same directory first so dest is never left half-written.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) error {
	resp, err := f.getWithRetry(ctx, rawURL)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("move download into place: %w", err)
	}

	f.log.WithFields(logrus.Fields{"url": rawURL, "dest": dest}).Info("downloaded")
	return nil
}

// maxAttempts bounds retries of transient failures
const maxAttempts = 3

// getWithRetry returns a 2xx response, retrying 429, 5xx and transport
// errors with exponential backoff
func (f *Fetcher) getWithRetry(ctx context.Context, rawURL string) (*http.Response, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := f.get(ctx, rawURL)
		if err == nil {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}
			_ = resp.Body.Close()
			err = &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxAttempts {
			break
		}

		f.log.WithField("url", rawURL).Debugf("attempt %d failed, retrying in %s: %v", attempt, backoff, err)
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

// isRetryable reports whether a failed fetch is worth repeating
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks failures below HTTP, such as refused connections
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "fetch: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// get checks robots.txt, waits for the rate limiter and any crawl delay,
// then issues the request
func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if !f.ignoreRobots {
		allowed, delay, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowedByRobots)
		}
		if delay > 0 {
			f.log.WithField("url", rawURL).Debugf("crawl delay %s", delay)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.8")

	f.log.WithField("url", rawURL).Debug("GET")
	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: err}
	}
	return resp, nil
}
