package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/srs/internal/model"
)

// RunColumn tags every stored row with the run that produced it
const RunColumn = "scraper_id"

// column kinds, mapped to SQL types per dialect
const (
	colText  = "text"
	colInt   = "int"
	colFloat = "float"
	colBool  = "bool"
)

// keyColumns returns the primary key columns of a canonical table: the run
// column followed by the table's key fields
func keyColumns(t model.Table) []string {
	cols := []string{RunColumn}
	for _, k := range t.KeyFields {
		if k != RunColumn {
			cols = append(cols, k)
		}
	}
	return cols
}

func kindOf(v any) string {
	switch v.(type) {
	case bool:
		return colBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return colInt
	case float32, float64:
		return colFloat
	default:
		return colText
	}
}

// dbValue converts a record value into something every driver accepts
func (d dialect) dbValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, int64, float64:
		return x, nil
	case bool:
		if d.name == "sqlite" {
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		}
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case map[string]any, model.Record, []any, []string:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("encode %T: %w", v, err)
		}
		return string(b), nil
	default:
		return fmt.Sprint(x), nil
	}
}

func listTables(ctx context.Context, q querier, d dialect) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, d.tablesQuery)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables[name] = true
	}
	return tables, rows.Err()
}

func listColumns(ctx context.Context, q querier, d dialect, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, d.columnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// ensureTable creates the table if needed and adds any columns the entries
// use that it lacks. Column types come from the first non-nil value seen.
func ensureTable(ctx context.Context, tx *sql.Tx, d dialect, t model.Table, exists bool, entries []model.Record) error {
	keys := keyColumns(t)

	if !exists {
		defs := make([]string, len(keys))
		for i, k := range keys {
			defs[i] = quote(k) + " TEXT NOT NULL"
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s, PRIMARY KEY (%s))",
			quote(t.Name), strings.Join(defs, ", "), quoteAll(keys))
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
	}

	have, err := listColumns(ctx, tx, d, t.Name)
	if err != nil {
		return err
	}

	kinds := make(map[string]string)
	for _, rec := range entries {
		for field, v := range rec {
			if have[field] || v == nil {
				continue
			}
			if _, seen := kinds[field]; !seen {
				kinds[field] = kindOf(v)
			}
		}
	}

	missing := make([]string, 0, len(kinds))
	for field := range kinds {
		missing = append(missing, field)
	}
	sort.Strings(missing)

	for _, field := range missing {
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quote(t.Name), quote(field), d.types[kinds[field]])
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", t.Name, field, err)
		}
	}
	return nil
}
