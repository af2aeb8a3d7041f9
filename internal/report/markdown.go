package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/ppiankov/srs/internal/isotime"
	"github.com/ppiankov/srs/internal/model"
)

var header = []string{"Scraper", "Status", "Accepted", "Rejected", "Rows", "Reason"}

// RenderMarkdown writes the report as a Markdown document with one table
// row per scraper and a list of errors for failed scrapers
func RenderMarkdown(w io.Writer, r *model.BatchReport) error {
	var b strings.Builder

	b.WriteString("# Scraper run\n\n")
	fmt.Fprintf(&b, "- Started: %s\n", isotime.Format(r.StartedAt))
	fmt.Fprintf(&b, "- Finished: %s\n", isotime.Format(r.FinishedAt))
	fmt.Fprintf(&b, "- Scrapers: %d ok, %d failed, %d skipped\n\n",
		r.Count(model.RunOK), r.Count(model.RunFailed), r.Count(model.RunSkipped))

	rows := [][]string{header}
	for _, s := range r.Scrapers {
		rows = append(rows, []string{
			s.ID,
			string(s.Status),
			strconv.Itoa(s.Accepted),
			strconv.Itoa(s.Rejected),
			formatRows(s.Rows),
			s.Reason,
		})
	}
	for _, line := range Table(rows) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	for _, s := range r.Scrapers {
		if len(s.Errors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", s.ID)
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "- %s\n", strings.ReplaceAll(e, "\n", " "))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Table lays out rows as a Markdown table. The first row is the header.
// Columns are padded to their display width so wide runes line up.
func Table(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	colWidths := make([]int, colCount)
	for _, row := range rows {
		for i, cell := range row {
			if width := runewidth.StringWidth(escapeCell(cell)); width > colWidths[i] {
				colWidths[i] = width
			}
		}
	}
	// separator needs at least "---"
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	line := func(row []string) string {
		var sb strings.Builder
		sb.WriteString("|")
		for j := 0; j < colCount; j++ {
			content := ""
			if j < len(row) {
				content = escapeCell(row[j])
			}
			sb.WriteString(" ")
			sb.WriteString(content)
			if pad := colWidths[j] - runewidth.StringWidth(content); pad > 0 {
				sb.WriteString(strings.Repeat(" ", pad))
			}
			sb.WriteString(" |")
		}
		return sb.String()
	}

	out := make([]string, 0, len(rows)+1)
	out = append(out, line(rows[0]))

	var sep strings.Builder
	sep.WriteString("|")
	for _, width := range colWidths {
		sep.WriteString(" " + strings.Repeat("-", width) + " |")
	}
	out = append(out, sep.String())

	for _, row := range rows[1:] {
		out = append(out, line(row))
	}
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// formatRows renders per-table counts as "brand=2 company=1"
func formatRows(counts map[string]int) string {
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		parts = append(parts, fmt.Sprintf("%s=%d", t, counts[t]))
	}
	return strings.Join(parts, " ")
}
