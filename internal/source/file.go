package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileScraper replays rows from a YAML, JSON or JSON-lines file
type FileScraper struct {
	id     string
	path   string
	format Format
}

// NewFileScraper creates a scraper for path. An empty id defaults to the
// file name without its extension.
func NewFileScraper(id, path string) (*FileScraper, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported file type", path)
	}
	if id == "" {
		base := filepath.Base(path)
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &FileScraper{id: id, path: path, format: format}, nil
}

func (s *FileScraper) ID() string { return s.id }

// Path returns the file the scraper reads
func (s *FileScraper) Path() string { return s.path }

// Scrape emits every row in the file
func (s *FileScraper) Scrape(ctx context.Context, emit EmitFunc) error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	if err := decodeRows(f, s.format, emit); err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	return nil
}

// Discover returns a scraper for every record file in dir, sorted by name.
// Files whose names start with an underscore are skipped.
func Discover(dir string) ([]*FileScraper, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scrapers dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := FormatOf(name); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	scrapers := make([]*FileScraper, 0, len(names))
	for _, name := range names {
		s, err := NewFileScraper("", filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		scrapers = append(scrapers, s)
	}
	return scrapers, nil
}
