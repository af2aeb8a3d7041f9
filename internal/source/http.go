package source

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/scrape"
)

// Fetcher retrieves a remote document
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*scrape.Response, error)
}

// JSONFetcher is a Fetcher that also decodes JSON documents itself
type JSONFetcher interface {
	Fetcher
	FetchJSON(ctx context.Context, rawURL string, v any) error
}

// HTTPScraper fetches a document of rows from a URL
type HTTPScraper struct {
	id      string
	url     string
	fetcher Fetcher
}

// NewHTTPScraper creates a scraper for rawURL
func NewHTTPScraper(id, rawURL string, fetcher Fetcher) (*HTTPScraper, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("scraper %s: invalid URL %q", id, rawURL)
	}
	return &HTTPScraper{id: id, url: rawURL, fetcher: fetcher}, nil
}

func (s *HTTPScraper) ID() string { return s.id }

// Scrape fetches the document and emits its rows. The format comes from
// the URL's extension, then the content type; JSON is the default.
func (s *HTTPScraper) Scrape(ctx context.Context, emit EmitFunc) error {
	u, _ := url.Parse(s.url)
	format, known := FormatOf(u.Path)
	if jf, ok := s.fetcher.(JSONFetcher); ok && known && format == FormatJSON {
		return s.scrapeJSON(ctx, jf, emit)
	}

	resp, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		return err
	}

	if !known {
		format = FormatJSON
		if strings.Contains(resp.ContentType, "yaml") {
			format = FormatYAML
		} else if strings.Contains(resp.ContentType, "ndjson") || strings.Contains(resp.ContentType, "jsonl") {
			format = FormatJSONL
		}
	}

	if err := decodeRows(bytes.NewReader(resp.Body), format, emit); err != nil {
		return fmt.Errorf("%s: %w", s.url, err)
	}
	return nil
}

// scrapeJSON reads a JSON array of rows through the fetcher's decoder
func (s *HTTPScraper) scrapeJSON(ctx context.Context, jf JSONFetcher, emit EmitFunc) error {
	var rows []model.Row
	if err := jf.FetchJSON(ctx, s.url, &rows); err != nil {
		return err
	}
	for _, row := range rows {
		fixNumbers(row.Record)
	}
	return emitAll(rows, emit)
}
