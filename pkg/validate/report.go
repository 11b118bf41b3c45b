package validate

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
)

type Report struct {
	Counts     []TableCount
	Duplicates []DuplicateResult
	SpotCheck  SpotCheckResult
}

// TablesWithDuplicates returns the tables for which at least one duplicate
// key was found.
func (r Report) TablesWithDuplicates() []string {
	var tables []string
	for _, d := range r.Duplicates {
		if len(d.Groups) != 0 {
			tables = append(tables, d.Table)
		}
	}
	return tables
}

// Rows returns the count for table and whether it was counted.
func (r Report) Rows(table string) (int64, bool) {
	for _, c := range r.Counts {
		if c.Table == table {
			return c.Rows, true
		}
	}
	return 0, false
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	return t
}

// Render writes the report as plain text tables.
func (r Report) Render(w io.Writer) {
	counts := newTable(w, "TABLE", "ROWS")
	for _, c := range r.Counts {
		counts.Append([]string{c.Table, strconv.FormatInt(c.Rows, 10)})
	}
	counts.Render()

	if len(r.Duplicates) != 0 {
		fmt.Fprintln(w)
		dups := newTable(w, "TABLE", "KEY", "DUPLICATES")
		for _, d := range r.Duplicates {
			summary := "none"
			if len(d.Groups) != 0 {
				parts := make([]string, len(d.Groups))
				for i, g := range d.Groups {
					parts[i] = fmt.Sprintf("%s (%d)", g.Key, g.Count)
				}
				summary = strings.Join(parts, ", ")
			}
			dups.Append([]string{d.Table, d.Key, summary})
		}
		dups.Render()
		fmt.Fprintf(w, "%d tables have duplicates in them\n", len(r.TablesWithDuplicates()))
	}

	if r.SpotCheck.Checked != 0 {
		fmt.Fprintf(w, "\ntime spot check: %d rows checked, %d mismatches\n", r.SpotCheck.Checked, len(r.SpotCheck.Mismatches))
	}
}
