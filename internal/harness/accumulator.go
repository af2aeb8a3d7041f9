package harness

import (
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/srs/internal/model"
	"github.com/ppiankov/srs/internal/norm"
)

// Entry is one canonical record and its composite key
type Entry struct {
	Key    []string
	Record model.Record
}

// Accumulator holds the canonical records of one run, keyed by table and
// composite key. It is owned by a single run and is not safe for
// concurrent use.
type Accumulator struct {
	runID  string
	tables map[string]map[string]*Entry
	order  map[string][]string
}

// NewAccumulator creates an empty accumulator for the given run
func NewAccumulator(runID string) *Accumulator {
	return &Accumulator{
		runID:  runID,
		tables: make(map[string]map[string]*Entry),
		order:  make(map[string][]string),
	}
}

// RunID returns the identifier of the run this accumulator belongs to
func (a *Accumulator) RunID() string {
	return a.runID
}

// Put inserts rec under (table, key), or merges it into the record already
// stored there. It reports whether a merge happened.
func (a *Accumulator) Put(table string, key []string, rec model.Record) bool {
	rows, ok := a.tables[table]
	if !ok {
		rows = make(map[string]*Entry)
		a.tables[table] = rows
	}

	id := joinKey(key)
	if existing, ok := rows[id]; ok {
		norm.Merge(rec, existing.Record)
		return true
	}

	rows[id] = &Entry{Key: append([]string(nil), key...), Record: rec}
	a.order[table] = append(a.order[table], id)
	return false
}

// Get returns the record stored under (table, key)
func (a *Accumulator) Get(table string, key ...string) (model.Record, bool) {
	e, ok := a.tables[table][joinKey(key)]
	if !ok {
		return nil, false
	}
	return e.Record, true
}

// Tables returns the names of tables holding at least one record, sorted
func (a *Accumulator) Tables() []string {
	names := make([]string, 0, len(a.tables))
	for name := range a.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns a table's records in first-seen order
func (a *Accumulator) Entries(table string) []Entry {
	ids := a.order[table]
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, *a.tables[table][id])
	}
	return out
}

// Len returns the number of records in a table
func (a *Accumulator) Len(table string) int {
	return len(a.tables[table])
}

// Total returns the number of records across all tables
func (a *Accumulator) Total() int {
	n := 0
	for _, rows := range a.tables {
		n += len(rows)
	}
	return n
}

// joinKey quotes each part so distinct keys never collide
func joinKey(key []string) string {
	parts := make([]string, len(key))
	for i, k := range key {
		parts[i] = strconv.Quote(k)
	}
	return strings.Join(parts, ",")
}
