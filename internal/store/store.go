// Package store persists canonical records in SQL, one set of rows per
// scraper run. Saving a run replaces everything that run stored before.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ppiankov/srs/internal/harness"
	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/logging"
	"github.com/ppiankov/srs/internal/model"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// ErrUnknownDriver is returned by Open for unsupported drivers
var ErrUnknownDriver = errors.New("unknown database driver")

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is a SQL-backed record store
type Store struct {
	db      *sql.DB
	dialect dialect
	log     logrus.FieldLogger

	// runs serializes saves of the same run id
	runs sync.Map
}

// Open connects to the configured database
func Open(ctx context.Context, cfg model.DatabaseConfig, log logrus.FieldLogger) (*Store, error) {
	d, ok := dialectFor(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := sql.Open(d.name, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.name, err)
	}

	if d.name == "sqlite" {
		// one writer at a time; concurrent saves queue instead of failing with SQLITE_BUSY
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("configure sqlite: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", d.name, err)
	}

	if log == nil {
		log = logging.Discard()
	}
	return &Store{db: db, dialect: d, log: log}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) lockRun(runID string) func() {
	v, _ := s.runs.LoadOrStore(runID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// SaveRun replaces every row stored for runID with the accumulator's
// records, in a single transaction
func (s *Store) SaveRun(ctx context.Context, runID string, acc *harness.Accumulator) error {
	defer s.lockRun(runID)()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := listTables(ctx, tx, s.dialect)
	if err != nil {
		return err
	}

	if err := s.deleteRun(ctx, tx, existing, runID); err != nil {
		return err
	}

	total := 0
	for _, name := range acc.Tables() {
		schema, ok := model.LookupTable(name)
		if !ok {
			return &harness.UnsupportedTableError{Table: name}
		}
		entries := acc.Entries(name)
		records := make([]model.Record, len(entries))
		for i, e := range entries {
			records[i] = e.Record
		}

		if err := ensureTable(ctx, tx, s.dialect, schema, existing[name], records); err != nil {
			return err
		}
		for _, rec := range records {
			if err := s.insert(ctx, tx, name, runID, rec); err != nil {
				return err
			}
		}
		total += len(records)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.WithField("scraper", runID).Infof("saved %d rows in %d tables", total, len(acc.Tables()))
	return nil
}

func (s *Store) insert(ctx context.Context, tx *sql.Tx, table, runID string, rec model.Record) error {
	fields := make([]string, 0, len(rec))
	for k, v := range rec {
		if k != RunColumn && v != nil {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)

	cols := append([]string{RunColumn}, fields...)
	args := make([]any, 0, len(cols))
	args = append(args, runID)
	for _, f := range fields {
		v, err := s.dialect.dbValue(rec[f])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", table, f, err)
		}
		args = append(args, v)
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(table), quoteAll(cols), s.dialect.placeholders(1, len(cols)))
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// deleteRun removes the run's rows from every canonical table that exists.
// Unknown tables are left alone.
func (s *Store) deleteRun(ctx context.Context, tx *sql.Tx, existing map[string]bool, runID string) error {
	names := make([]string, 0, len(existing))
	for name := range existing {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, ok := model.LookupTable(name); !ok {
			s.log.Debugf("unknown table `%s`, not clearing", name)
			continue
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", quote(name), quote(RunColumn), s.dialect.placeholder(1))
		if _, err := tx.ExecContext(ctx, stmt, runID); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

// DeleteRun removes everything a run stored
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	defer s.lockRun(runID)()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := listTables(ctx, tx, s.dialect)
	if err != nil {
		return err
	}
	if err := s.deleteRun(ctx, tx, existing, runID); err != nil {
		return err
	}
	return tx.Commit()
}

// LastScraped returns when the run last completed. ok is false if it
// never has.
func (s *Store) LastScraped(ctx context.Context, runID string) (time.Time, bool, error) {
	tables, err := listTables(ctx, s.db, s.dialect)
	if err != nil {
		return time.Time{}, false, err
	}
	if !tables[model.TableScraper] {
		return time.Time{}, false, nil
	}
	cols, err := listColumns(ctx, s.db, s.dialect, model.TableScraper)
	if err != nil {
		return time.Time{}, false, err
	}
	if !cols["last_scraped"] {
		return time.Time{}, false, nil
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		quote("last_scraped"), quote(model.TableScraper), quote(RunColumn), s.dialect.placeholder(1))
	var raw sql.NullString
	err = s.db.QueryRowContext(ctx, query, runID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !raw.Valid) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last_scraped: %w", err)
	}

	t, err := isotime.Parse(raw.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// Counts returns the number of rows the run has in each canonical table
func (s *Store) Counts(ctx context.Context, runID string) (map[string]int, error) {
	tables, err := listTables(ctx, s.db, s.dialect)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, name := range model.TableNames() {
		if !tables[name] {
			continue
		}
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s", quote(name), quote(RunColumn), s.dialect.placeholder(1))
		var n int
		if err := s.db.QueryRowContext(ctx, query, runID).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		if n > 0 {
			counts[name] = n
		}
	}
	return counts, nil
}

// Rows loads the run's rows from one table, without the run column
func (s *Store) Rows(ctx context.Context, table, runID string) ([]model.Record, error) {
	schema, ok := model.LookupTable(table)
	if !ok {
		return nil, &harness.UnsupportedTableError{Table: table}
	}
	tables, err := listTables(ctx, s.db, s.dialect)
	if err != nil {
		return nil, err
	}
	if !tables[table] {
		return nil, nil
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s ORDER BY %s",
		quote(table), quote(RunColumn), s.dialect.placeholder(1), quoteAll(keyColumns(schema)))
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []model.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}

		rec := make(model.Record, len(cols))
		for i, c := range cols {
			if c == RunColumn && !schema.HasKeyField(RunColumn) {
				continue
			}
			switch v := values[i].(type) {
			case nil:
			case []byte:
				rec[c] = string(v)
			default:
				rec[c] = v
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
