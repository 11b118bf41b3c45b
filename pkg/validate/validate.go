// Package validate inspects the populated warehouse: row counts, duplicate
// keys and a recomputation of the time dimension.
package validate

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/db"
	"github.com/sparkify/dwh/pkg/redshift"
	"github.com/sparkify/dwh/pkg/schema"
	"github.com/sparkify/dwh/pkg/transform"
)

// DuplicateLimit caps the number of offending keys reported per table.
const DuplicateLimit = 5

var (
	countTemplate = redshift.MustStatementTemplate("count", `SELECT COUNT(*) FROM {| .Table |};`)

	duplicateTemplate = redshift.MustStatementTemplate("duplicates", `SELECT
    CAST({| .Key |} AS VARCHAR) AS duplicate_key,
    COUNT(*) AS cnt
FROM {| .Table |}
GROUP BY {| .Key |}
HAVING COUNT(*) > 1
ORDER BY cnt DESC
LIMIT {| .Limit |};`)

	spotCheckTemplate = redshift.MustStatementTemplate("spot-check", `SELECT e.ts, {| .Columns | join ", " |}
FROM {| .Events |} e
JOIN {| .Table |} t ON t.start_time = {| epochTimestamp "e.ts" |}
ORDER BY e.ts
LIMIT {| .Limit |};`)
)

// CountOrder is the order tables are counted and reported in.
var CountOrder = []string{
	schema.StagingSongs,
	schema.StagingEvents,
	schema.Songplays,
	schema.Users,
	schema.Songs,
	schema.Artists,
	schema.Time,
}

// duplicateCheckTables are the derived tables checked for duplicate keys, in
// check order.
var duplicateCheckTables = []string{
	schema.Songplays,
	schema.Users,
	schema.Songs,
	schema.Artists,
	schema.Time,
}

type TableKey struct {
	Table string
	Key   string
}

// DuplicateKeys returns the primary key of each derived table in check order.
func DuplicateKeys() ([]TableKey, error) {
	keys := make([]TableKey, 0, len(duplicateCheckTables))
	for _, name := range duplicateCheckTables {
		table, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown table %s", name)
		}
		key := table.Key()
		if key == "" {
			return nil, fmt.Errorf("table %s has no primary key", name)
		}
		keys = append(keys, TableKey{Table: name, Key: key})
	}
	return keys, nil
}

type TableCount struct {
	Table string
	Rows  int64
}

type DuplicateGroup struct {
	Key   string
	Count int64
}

type DuplicateResult struct {
	Table  string
	Key    string
	Groups []DuplicateGroup
}

// SpotCheckMismatch is a time row whose stored parts differ from the parts
// recomputed from the event timestamp it was derived from.
type SpotCheckMismatch struct {
	TS       int64
	Stored   transform.TimeParts
	Expected transform.TimeParts
}

type SpotCheckResult struct {
	Checked    int
	Mismatches []SpotCheckMismatch
}

type Validator struct {
	logger  log.FieldLogger
	queryer db.Queryer
}

func NewValidator(logger log.FieldLogger, queryer db.Queryer) *Validator {
	return &Validator{
		logger:  logger.WithField("component", "validator"),
		queryer: queryer,
	}
}

// RowCounts returns the number of rows in each table in CountOrder.
func (v *Validator) RowCounts(ctx context.Context) ([]TableCount, error) {
	counts := make([]TableCount, 0, len(CountOrder))
	for _, table := range CountOrder {
		query, err := redshift.Render(countTemplate, map[string]interface{}{"Table": table})
		if err != nil {
			return nil, err
		}
		var n int64
		rows, err := v.queryer.QueryContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("unable to count rows of %s: %w", table, err)
		}
		if rows.Next() {
			err = rows.Scan(&n)
		}
		if err == nil {
			err = rows.Err()
		}
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to count rows of %s: %w", table, err)
		}
		v.logger.Infof("table %s has %d rows", table, n)
		counts = append(counts, TableCount{Table: table, Rows: n})
	}
	return counts, nil
}

// DuplicateCheck reports up to DuplicateLimit keys appearing more than once
// in each derived table. It is diagnostic: duplicates are not an error.
func (v *Validator) DuplicateCheck(ctx context.Context) ([]DuplicateResult, error) {
	keys, err := DuplicateKeys()
	if err != nil {
		return nil, err
	}
	results := make([]DuplicateResult, 0, len(keys))
	for _, dk := range keys {
		query, err := redshift.Render(duplicateTemplate, map[string]interface{}{
			"Table": dk.Table,
			"Key":   dk.Key,
			"Limit": DuplicateLimit,
		})
		if err != nil {
			return nil, err
		}
		groups, err := v.duplicateGroups(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("unable to check %s for duplicate %s: %w", dk.Table, dk.Key, err)
		}
		logger := v.logger.WithFields(log.Fields{"table": dk.Table, "key": dk.Key})
		if len(groups) == 0 {
			logger.Infof("no duplicates found")
		}
		for _, g := range groups {
			logger.Warnf("%s %s appears %d times", dk.Key, g.Key, g.Count)
		}
		results = append(results, DuplicateResult{Table: dk.Table, Key: dk.Key, Groups: groups})
	}
	return results, nil
}

func (v *Validator) duplicateGroups(ctx context.Context, query string) ([]DuplicateGroup, error) {
	rows, err := v.queryer.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []DuplicateGroup
	for rows.Next() {
		var g DuplicateGroup
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// TimeSpotCheck joins the first limit events of staging_events to their time
// rows, recomputes the calendar parts from each raw millisecond timestamp and
// reports rows whose stored start_time or parts disagree.
func (v *Validator) TimeSpotCheck(ctx context.Context, limit int) (SpotCheckResult, error) {
	var result SpotCheckResult
	if limit <= 0 {
		return result, nil
	}
	timeTable, ok := schema.Lookup(schema.Time)
	if !ok {
		return result, fmt.Errorf("unknown table %s", schema.Time)
	}
	columns := timeTable.ColumnNames()
	for i, c := range columns {
		columns[i] = "t." + c
	}
	query, err := redshift.Render(spotCheckTemplate, map[string]interface{}{
		"Columns": columns,
		"Events":  schema.StagingEvents,
		"Table":   schema.Time,
		"Limit":   limit,
	})
	if err != nil {
		return result, err
	}
	rows, err := v.queryer.QueryContext(ctx, query)
	if err != nil {
		return result, fmt.Errorf("unable to sample %s: %w", schema.Time, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ts        int64
			startTime time.Time
			stored    transform.TimeParts
		)
		if err := rows.Scan(&ts, &startTime, &stored.Hour, &stored.Day, &stored.Week, &stored.Month, &stored.Year, &stored.Weekday); err != nil {
			return result, fmt.Errorf("unable to read %s row: %w", schema.Time, err)
		}
		stored.StartTime = startTime.UTC()
		expected := transform.Parts(transform.EpochMillis(ts))
		result.Checked++
		if stored != expected {
			v.logger.Warnf("time row for ts %d has parts %+v, expected %+v", ts, stored, expected)
			result.Mismatches = append(result.Mismatches, SpotCheckMismatch{TS: ts, Stored: stored, Expected: expected})
		}
	}
	if err := rows.Err(); err != nil {
		return result, err
	}
	v.logger.Infof("spot checked %d time rows, %d mismatches", result.Checked, len(result.Mismatches))
	return result, nil
}

// Run executes all checks. spotCheck is the number of time rows to
// recompute; zero disables the spot check.
func (v *Validator) Run(ctx context.Context, spotCheck int) (Report, error) {
	var report Report
	var err error
	if report.Counts, err = v.RowCounts(ctx); err != nil {
		return report, err
	}
	if report.Duplicates, err = v.DuplicateCheck(ctx); err != nil {
		return report, err
	}
	if report.SpotCheck, err = v.TimeSpotCheck(ctx, spotCheck); err != nil {
		return report, err
	}
	return report, nil
}
