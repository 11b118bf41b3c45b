// Package loader bulk loads the raw S3 JSON data into the staging tables.
package loader

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/db"
	"github.com/sparkify/dwh/pkg/redshift"
	"github.com/sparkify/dwh/pkg/schema"
	"github.com/sparkify/dwh/pkg/transform"
)

type Options struct {
	// Resume skips staging tables already recorded in Progress.
	Resume bool
	// CopyOptions are appended to every COPY, e.g. "COMPUPDATE OFF".
	CopyOptions []string
}

type Result struct {
	Table    string
	Skipped  bool
	Duration time.Duration
}

// Copies returns the COPY statements for the staging tables, events first.
func Copies(cfg config.Config, options []string) []redshift.CopyJSON {
	return []redshift.CopyJSON{
		{
			Table:      schema.StagingEvents,
			Source:     cfg.S3.LogData,
			RoleARN:    cfg.IAMRole.ARN,
			JSONFormat: cfg.S3.LogJSONPath,
			Region:     cfg.AWS.Region,
			Options:    options,
		},
		{
			Table:      schema.StagingSongs,
			Source:     cfg.S3.SongData,
			RoleARN:    cfg.IAMRole.ARN,
			JSONFormat: redshift.JSONAuto,
			Region:     cfg.AWS.Region,
			Options:    options,
		},
	}
}

// Loader runs one COPY per staging table. Each COPY commits on its own, so
// a failure loading songs leaves the events already loaded.
type Loader struct {
	logger   log.FieldLogger
	execer   db.Execer
	progress transform.Progress
	cfg      config.Config
	opts     Options
}

func NewLoader(logger log.FieldLogger, execer db.Execer, progress transform.Progress, cfg config.Config, opts Options) *Loader {
	if progress == nil {
		progress = transform.NewMemoryProgress()
	}
	return &Loader{
		logger:   logger.WithField("component", "loader"),
		execer:   execer,
		progress: progress,
		cfg:      cfg,
		opts:     opts,
	}
}

func (l *Loader) LoadStaging(ctx context.Context) ([]Result, error) {
	if err := l.cfg.Validate(config.StageLoad); err != nil {
		return nil, err
	}

	var results []Result
	for _, c := range Copies(l.cfg, l.opts.CopyOptions) {
		logger := l.logger.WithFields(log.Fields{"table": c.Table, "source": c.Source})
		marker := transform.LoadMarker(c.Table)
		if l.opts.Resume {
			done, err := l.progress.Completed(marker)
			if err != nil {
				return results, err
			}
			if done {
				logger.Infof("skipping load, already loaded by a previous run")
				results = append(results, Result{Table: c.Table, Skipped: true})
				continue
			}
		}

		stmt, err := c.Statement()
		if err != nil {
			return results, err
		}

		logger.Infof("loading staging table")
		start := time.Now()
		if _, err := l.execer.ExecContext(ctx, stmt); err != nil {
			return results, fmt.Errorf("unable to load %s from %s: %w", c.Table, c.Source, err)
		}
		elapsed := time.Since(start)
		if err := l.progress.Mark(marker); err != nil {
			return results, fmt.Errorf("%s loaded but progress could not be recorded: %w", c.Table, err)
		}
		logger.WithField("duration", elapsed.Round(time.Millisecond)).Infof("loaded staging table")
		results = append(results, Result{Table: c.Table, Duration: elapsed})
	}
	return results, nil
}
