package store

import (
	"fmt"
	"strings"
)

// dialect captures the SQL differences between the supported databases
type dialect struct {
	name string
	// placeholder returns the i-th (1-based) bind parameter
	placeholder func(i int) string
	// tablesQuery lists table names
	tablesQuery string
	// columnsQuery lists a table's column names; it binds the table name
	columnsQuery string
	types        map[string]string
}

var sqliteDialect = dialect{
	name:         "sqlite",
	placeholder:  func(int) string { return "?" },
	tablesQuery:  `SELECT name FROM sqlite_master WHERE type = 'table'`,
	columnsQuery: `SELECT name FROM pragma_table_info(?)`,
	types: map[string]string{
		colText:  "TEXT",
		colInt:   "INTEGER",
		colFloat: "REAL",
		colBool:  "INTEGER",
	},
}

var postgresDialect = dialect{
	name:         "postgres",
	placeholder:  func(i int) string { return fmt.Sprintf("$%d", i) },
	tablesQuery:  `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema()`,
	columnsQuery: `SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`,
	types: map[string]string{
		colText:  "TEXT",
		colInt:   "BIGINT",
		colFloat: "DOUBLE PRECISION",
		colBool:  "BOOLEAN",
	},
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case "sqlite":
		return sqliteDialect, true
	case "postgres":
		return postgresDialect, true
	default:
		return dialect{}, false
	}
}

// placeholders returns n bind parameters starting at from
func (d dialect) placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.placeholder(from + i)
	}
	return strings.Join(ps, ", ")
}

// quote quotes an identifier; both dialects use standard double quotes
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = quote(n)
	}
	return strings.Join(q, ", ")
}
