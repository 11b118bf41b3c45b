package transform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/db"
)

// TxExecer is what the transformer needs from the warehouse connection.
type TxExecer interface {
	db.Execer
	db.Beginner
}

type Options struct {
	// Transactional runs all derivations in a single transaction. When false
	// each derivation commits on its own and is recorded in Progress.
	Transactional bool
	// Resume skips derivations already recorded in Progress.
	Resume bool
}

// StepResult describes one derivation of a run.
type StepResult struct {
	Table   string
	Rows    int64
	Skipped bool
}

type Transformer struct {
	logger   log.FieldLogger
	conn     TxExecer
	progress Progress
	opts     Options
}

func NewTransformer(logger log.FieldLogger, conn TxExecer, progress Progress, opts Options) *Transformer {
	if progress == nil {
		progress = NewMemoryProgress()
	}
	return &Transformer{
		logger:   logger.WithField("component", "transformer"),
		conn:     conn,
		progress: progress,
		opts:     opts,
	}
}

// Run executes the derivations in order, stopping at the first failure.
func (t *Transformer) Run(ctx context.Context) ([]StepResult, error) {
	derivations, err := Derivations()
	if err != nil {
		return nil, err
	}

	var pending []Derivation
	var results []StepResult
	for _, d := range derivations {
		if t.opts.Resume {
			done, err := t.progress.Completed(TransformMarker(d.Table))
			if err != nil {
				return results, err
			}
			if done {
				t.logger.Infof("skipping %s, already populated by a previous run", d.Table)
				results = append(results, StepResult{Table: d.Table, Skipped: true})
				continue
			}
		}
		pending = append(pending, d)
	}

	if t.opts.Transactional {
		steps, err := t.runInTransaction(ctx, pending)
		return append(results, steps...), err
	}
	steps, err := t.runAutocommit(ctx, pending)
	return append(results, steps...), err
}

func rowsAffected(res sql.Result) int64 {
	if res == nil {
		return -1
	}
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}

func (t *Transformer) runAutocommit(ctx context.Context, derivations []Derivation) ([]StepResult, error) {
	var results []StepResult
	for _, d := range derivations {
		logger := t.logger.WithField("table", d.Table)
		logger.Infof("populating table")
		res, err := t.conn.ExecContext(ctx, d.SQL)
		if err != nil {
			return results, fmt.Errorf("unable to populate table %s: %w", d.Table, err)
		}
		if err := t.progress.Mark(TransformMarker(d.Table)); err != nil {
			return results, fmt.Errorf("table %s populated but progress could not be recorded: %w", d.Table, err)
		}
		step := StepResult{Table: d.Table, Rows: rowsAffected(res)}
		logger.WithField("rows", step.Rows).Infof("populated table")
		results = append(results, step)
	}
	return results, nil
}

func (t *Transformer) runInTransaction(ctx context.Context, derivations []Derivation) (results []StepResult, err error) {
	if len(derivations) == 0 {
		return nil, nil
	}
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to begin transaction: %w", err)
	}
	committing := false
	defer func() {
		if err == nil || committing {
			return
		}
		// database/sql rolls back by itself when ctx is cancelled, leaving ErrTxDone
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			t.logger.WithError(rbErr).Errorf("unable to roll back transaction")
		} else {
			t.logger.Warnf("rolled back all derivations")
		}
	}()

	for _, d := range derivations {
		logger := t.logger.WithField("table", d.Table)
		logger.Infof("populating table")
		res, execErr := tx.ExecContext(ctx, d.SQL)
		if execErr != nil {
			return nil, fmt.Errorf("unable to populate table %s: %w", d.Table, execErr)
		}
		results = append(results, StepResult{Table: d.Table, Rows: rowsAffected(res)})
	}

	committing = true
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("unable to commit derivations: %w", err)
	}
	for _, step := range results {
		t.logger.WithField("table", step.Table).WithField("rows", step.Rows).Infof("populated table")
		if markErr := t.progress.Mark(TransformMarker(step.Table)); markErr != nil {
			// the commit already happened, so a rollback is impossible here
			t.logger.WithError(markErr).Warnf("unable to record progress for %s", step.Table)
		}
	}
	return results, nil
}
