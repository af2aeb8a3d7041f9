// Package source holds the scrapers the harness can run: record files on
// disk, JSON/YAML documents served over HTTP, and enrichment wrappers.
package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/model"
	"gopkg.in/yaml.v3"
)

// Scraper produces (table, record) rows for one run
type Scraper = harness.Producer

// EmitFunc receives one row
type EmitFunc = harness.EmitFunc

// Format of a record document
type Format string

const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// FormatOf picks the format from a file name or URL path
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".jsonl", ".ndjson":
		return FormatJSONL, true
	default:
		return "", false
	}
}

// decodeRows reads rows from r and emits them in document order
func decodeRows(r io.Reader, format Format, emit EmitFunc) error {
	switch format {
	case FormatYAML:
		var rows []model.Row
		if err := yaml.NewDecoder(r).Decode(&rows); err != nil && err != io.EOF {
			return fmt.Errorf("decode YAML rows: %w", err)
		}
		return emitAll(rows, emit)

	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.UseNumber()
		var rows []model.Row
		if err := dec.Decode(&rows); err != nil {
			return fmt.Errorf("decode JSON rows: %w", err)
		}
		for _, row := range rows {
			fixNumbers(row.Record)
		}
		return emitAll(rows, emit)

	case FormatJSONL:
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
		line := 0
		for sc.Scan() {
			line++
			text := bytes.TrimSpace(sc.Bytes())
			if len(text) == 0 {
				continue
			}
			dec := json.NewDecoder(bytes.NewReader(text))
			dec.UseNumber()
			var row model.Row
			if err := dec.Decode(&row); err != nil {
				return fmt.Errorf("decode line %d: %w", line, err)
			}
			if err := emit(row.Table, fixNumbers(row.Record)); err != nil {
				return err
			}
		}
		return sc.Err()

	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func emitAll(rows []model.Row, emit EmitFunc) error {
	for _, row := range rows {
		if err := emit(row.Table, row.Record); err != nil {
			return err
		}
	}
	return nil
}

func fixNumbers(rec model.Record) model.Record {
	for k, v := range rec {
		rec[k] = numbers(v)
	}
	return rec
}

// numbers replaces json.Number values with int64 or float64
func numbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case map[string]any:
		for k, e := range x {
			x[k] = numbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = numbers(e)
		}
		return x
	default:
		return v
	}
}
