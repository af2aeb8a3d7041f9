package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/srs/internal/cache"
	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/worker"
)

const testRobots = "User-agent: *\nDisallow: /private\n"

func testConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "srs-test/1.0",
		MaxBodyBytes: 1 << 20,
	}
}

// noSleep records requested delays instead of waiting
func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func newServer(t *testing.T, robots string, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			if robots == "" {
				http.NotFound(w, r)
				return
			}
			_, _ = fmt.Fprint(w, robots)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetch_Success(t *testing.T) {
	noSleep(t)
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "srs-test/1.0" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `[]`)
	})

	f := NewFetcher(testConfig())
	resp, err := f.Fetch(context.Background(), server.URL+"/data.json")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(resp.Body) != "[]" {
		t.Errorf("body = %q", resp.Body)
	}
	if resp.ContentType != "application/json" {
		t.Errorf("content type = %q", resp.ContentType)
	}
	if resp.Cached {
		t.Error("first fetch should not be cached")
	}
}

func TestFetch_DisallowedByRobots(t *testing.T) {
	noSleep(t)
	var hits atomic.Int32
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	f := NewFetcher(testConfig())
	_, err := f.Fetch(context.Background(), server.URL+"/private/data.json")
	if !errors.Is(err, ErrDisallowedByRobots) {
		t.Fatalf("expected ErrDisallowedByRobots, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("disallowed URL was requested %d times", hits.Load())
	}

	cfg := testConfig()
	cfg.IgnoreRobots = true
	if _, err := NewFetcher(cfg).Fetch(context.Background(), server.URL+"/private/data.json"); err != nil {
		t.Errorf("ignore_robots should allow the fetch: %v", err)
	}
}

func TestFetch_NoRobotsAllowsEverything(t *testing.T) {
	noSleep(t)
	server := newServer(t, "", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})
	if _, err := NewFetcher(testConfig()).Fetch(context.Background(), server.URL+"/private/x"); err != nil {
		t.Errorf("missing robots.txt should allow: %v", err)
	}
}

func TestFetch_CrawlDelay(t *testing.T) {
	delays := noSleep(t)
	server := newServer(t, "User-agent: *\nCrawl-delay: 2\n", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})

	if _, err := NewFetcher(testConfig()).Fetch(context.Background(), server.URL+"/a"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(*delays) != 1 || (*delays)[0] != 2*time.Second {
		t.Errorf("expected one 2s crawl delay, got %v", *delays)
	}
}

func TestFetch_CacheHit(t *testing.T) {
	noSleep(t)
	var hits atomic.Int32
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = fmt.Fprint(w, `{"n":1}`)
	})

	f := NewFetcher(testConfig(), WithCache(cache.NewMemoryCache(time.Minute, time.Minute)))
	for i := 0; i < 3; i++ {
		resp, err := f.Fetch(context.Background(), server.URL+"/n.json")
		if err != nil {
			t.Fatalf("Fetch %d: %v", i, err)
		}
		if i > 0 && !resp.Cached {
			t.Errorf("fetch %d should come from cache", i)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 upstream request, got %d", hits.Load())
	}
}

func TestFetch_RetriesTransient(t *testing.T) {
	delays := noSleep(t)
	var attempts atomic.Int32
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "ok")
	})

	resp, err := NewFetcher(testConfig()).Fetch(context.Background(), server.URL+"/flaky")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q", resp.Body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	if len(*delays) != 2 || (*delays)[1] != 2*(*delays)[0] {
		t.Errorf("expected doubling backoff, got %v", *delays)
	}
}

func TestFetch_PermanentFailure(t *testing.T) {
	noSleep(t)
	var attempts atomic.Int32
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := NewFetcher(testConfig()).Fetch(context.Background(), server.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("404 should not be retried, got %d attempts", attempts.Load())
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"503", &StatusError{StatusCode: 503}, true},
		{"429", &StatusError{StatusCode: 429}, true},
		{"404", &StatusError{StatusCode: 404}, false},
		{"transport", &transportError{err: errors.New("connection refused")}, true},
		{"robots", ErrDisallowedByRobots, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryable(tt.err); got != tt.want {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	noSleep(t)
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, r.URL.Path[1:])
	})

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"under limit", "/abc", false},
		{"at limit", "/abcd", false},
		{"one byte over", "/abcde", true},
		{"far over", "/0123456789", true},
	}

	cfg := testConfig()
	cfg.MaxBodyBytes = 4
	mem := cache.NewMemoryCache(time.Minute, time.Minute)
	f := NewFetcher(cfg, WithCache(mem))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := f.Fetch(context.Background(), server.URL+tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrBodyTooLarge) {
					t.Fatalf("expected ErrBodyTooLarge, got %v", err)
				}
				if _, ok := mem.Get(cache.Key(server.URL + tt.path)); ok {
					t.Error("oversized body should not be cached")
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if string(resp.Body) != tt.path[1:] {
				t.Errorf("body = %q, want %q", resp.Body, tt.path[1:])
			}
		})
	}
}

func TestFetchJSON(t *testing.T) {
	noSleep(t)
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `[{"table":"company","record":{"company":"Acme","founded":1901}}]`)
	})

	var rows []model.Row
	if err := NewFetcher(testConfig()).FetchJSON(context.Background(), server.URL+"/rows.json", &rows); err != nil {
		t.Fatalf("FetchJSON: %v", err)
	}
	if len(rows) != 1 || rows[0].Table != "company" || rows[0].Record["company"] != "Acme" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if n, ok := rows[0].Record["founded"].(json.Number); !ok || n.String() != "1901" {
		t.Errorf("founded = %#v, want json.Number 1901", rows[0].Record["founded"])
	}

	var n int
	if err := NewFetcher(testConfig()).FetchJSON(context.Background(), server.URL+"/rows.json", &n); err == nil {
		t.Error("expected a decode error for an array into an int")
	}
}

func TestDownload(t *testing.T) {
	noSleep(t)
	server := newServer(t, testRobots, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "SQLite format 3")
	})

	dest := filepath.Join(t.TempDir(), "db", "data.sqlite")
	f := NewFetcher(testConfig(), WithLimiter(worker.NewLimiter(100, 10)))
	if err := f.Download(context.Background(), server.URL+"/data.sqlite", dest); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read download: %v", err)
	}
	if string(data) != "SQLite format 3" {
		t.Errorf("downloaded %q", data)
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestProductToken(t *testing.T) {
	cases := map[string]string{
		"srs/0.1 (+x)": "srs",
		"bot":          "bot",
		"":             "",
		"  a/1 b/2":    "a",
	}
	for in, want := range cases {
		if got := productToken(in); got != want {
			t.Errorf("productToken(%q) = %q, want %q", in, got, want)
		}
	}
}
