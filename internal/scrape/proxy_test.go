package scrape

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/ppiankov/srs/internal/model"
)

func TestProxySelector(t *testing.T) {
	envProxy, _ := url.Parse("http://env:3128")
	fromEnv := func(*http.Request) (*url.URL, error) { return envProxy, nil }

	tests := []struct {
		name      string
		httpSet   string
		httpsSet  string
		reqURL    string
		wantProxy string
	}{
		{"unset uses environment", "", "", "https://example.com/a", "http://env:3128"},
		{"http proxy for http", "http://p:8080", "", "http://example.com/a", "http://p:8080"},
		{"https falls back to http proxy", "http://p:8080", "", "https://example.com/a", "http://p:8080"},
		{"https proxy preferred", "http://p:8080", "http://s:8443", "https://example.com/a", "http://s:8443"},
		{"https proxy ignored for http", "", "http://s:8443", "http://example.com/a", "http://env:3128"},
		{"none bypasses environment", "none", "", "http://example.com/a", ""},
		{"https none only", "http://p:8080", "NONE", "https://example.com/a", ""},
		{"https none keeps http proxy", "http://p:8080", "none", "http://example.com/a", "http://p:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := newProxySelector(model.HTTPConfig{HTTPProxy: tt.httpSet, HTTPSProxy: tt.httpsSet})
			if err != nil {
				t.Fatalf("newProxySelector: %v", err)
			}
			p.fromEnv = fromEnv

			req, _ := http.NewRequest(http.MethodGet, tt.reqURL, nil)
			got, err := p.proxy(req)
			if err != nil {
				t.Fatalf("proxy: %v", err)
			}
			gotStr := ""
			if got != nil {
				gotStr = got.String()
			}
			if gotStr != tt.wantProxy {
				t.Errorf("proxy = %q, want %q", gotStr, tt.wantProxy)
			}
		})
	}
}

func TestProxySelector_Invalid(t *testing.T) {
	for _, setting := range []string{"localhost:8080", "://bad", "proxy"} {
		_, err := newProxySelector(model.HTTPConfig{HTTPSProxy: setting})
		if !errors.Is(err, model.ErrInvalidProxy) {
			t.Errorf("%q: expected ErrInvalidProxy, got %v", setting, err)
		}
	}

	// the fetcher still builds and uses the environment
	f := NewFetcher(model.HTTPConfig{HTTPProxy: "proxy"})
	if f == nil || f.client.Transport.(*http.Transport).Proxy == nil {
		t.Error("fetcher should fall back to the environment proxy")
	}
}
