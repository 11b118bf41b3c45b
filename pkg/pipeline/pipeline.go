// Package pipeline runs the warehouse stages in order: provision, schema,
// load, transform, validate and optionally teardown.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/aws"
	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/db"
	"github.com/sparkify/dwh/pkg/loader"
	"github.com/sparkify/dwh/pkg/redshift"
	"github.com/sparkify/dwh/pkg/schema"
	"github.com/sparkify/dwh/pkg/transform"
	"github.com/sparkify/dwh/pkg/validate"
)

const (
	StageProvision = "provision"
	StageSchema    = "schema"
	StageLoad      = "load"
	StageTransform = "transform"
	StageValidate  = "validate"
	StageTeardown  = "teardown"
)

// Provisioner is implemented by *aws.Provisioner.
type Provisioner interface {
	EnsureRole(ctx context.Context, cfg config.Config) (string, error)
	EnsureCluster(ctx context.Context, cfg config.Config) (aws.Endpoint, error)
	Teardown(ctx context.Context, cfg config.Config) error
}

// SourceChecker is implemented by *aws.SourceChecker.
type SourceChecker interface {
	CheckSources(ctx context.Context, cfg config.S3) error
}

// ConnectFunc opens a warehouse connection for the given cluster.
type ConnectFunc func(ctx context.Context, cluster config.Cluster) (db.Conn, error)

type Options struct {
	Connect       redshift.ConnectOptions
	LogQueries    bool
	Transactional bool
	Resume        bool
	// SpotCheck is the number of time rows recomputed during validation.
	SpotCheck   int
	CopyOptions []string
}

type Runner struct {
	logger      log.FieldLogger
	provisioner Provisioner
	sources     SourceChecker
	progress    transform.Progress
	opts        Options

	// Connect is replaced in tests.
	Connect ConnectFunc
	// Out receives the validation report.
	Out io.Writer
}

// NewRunner builds a Runner. sources may be nil to skip checking the S3
// locations before loading.
func NewRunner(logger log.FieldLogger, provisioner Provisioner, sources SourceChecker, progress transform.Progress, opts Options, out io.Writer) *Runner {
	if progress == nil {
		progress = transform.NewMemoryProgress()
	}
	r := &Runner{
		logger:      logger.WithField("component", "pipeline"),
		provisioner: provisioner,
		sources:     sources,
		progress:    progress,
		opts:        opts,
		Out:         out,
	}
	r.Connect = r.defaultConnect
	return r
}

func (r *Runner) defaultConnect(ctx context.Context, cluster config.Cluster) (db.Conn, error) {
	sqlDB, err := redshift.Connect(ctx, r.logger, cluster, r.opts.Connect)
	if err != nil {
		return nil, err
	}
	return db.NewLoggingConn(sqlDB, r.logger, r.opts.LogQueries), nil
}

func (r *Runner) stage(name string, fn func() error) error {
	logger := r.logger.WithField("stage", name)
	logger.Infof("starting stage")
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	stageDurationHistogram.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		stageFailedCounter.WithLabelValues(name).Inc()
		return fmt.Errorf("%s stage failed: %w", name, err)
	}
	logger.WithField("duration", elapsed.Round(time.Millisecond)).Infof("finished stage")
	return nil
}

func (r *Runner) withConn(ctx context.Context, cfg config.Config, fn func(db.Conn) error) error {
	if err := cfg.Validate(config.StageWarehouse); err != nil {
		return err
	}
	conn, err := r.Connect(ctx, cfg.Cluster)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(conn)
}

// Provision ensures the role and cluster exist and returns cfg with their
// ARN and host applied. cfg itself is not modified.
func (r *Runner) Provision(ctx context.Context, cfg config.Config) (config.Config, error) {
	out := cfg
	err := r.stage(StageProvision, func() error {
		if err := cfg.Validate(config.StageProvision); err != nil {
			return err
		}
		arn, err := r.provisioner.EnsureRole(ctx, out)
		if err != nil {
			return err
		}
		out = out.WithRoleARN(arn)

		endpoint, err := r.provisioner.EnsureCluster(ctx, out)
		if err != nil {
			return err
		}
		out = out.WithClusterHost(endpoint.Address)
		if endpoint.Port != 0 {
			out.Cluster.Port = int(endpoint.Port)
		}
		r.logger.WithFields(log.Fields{"arn": arn, "host": endpoint.Address}).Infof("warehouse provisioned")
		return nil
	})
	if err != nil {
		return cfg, err
	}
	return out, nil
}

// CreateSchema drops and recreates all tables, and forgets any recorded
// progress since the data it described is gone.
func (r *Runner) CreateSchema(ctx context.Context, cfg config.Config) error {
	return r.stage(StageSchema, func() error {
		return r.withConn(ctx, cfg, func(conn db.Conn) error {
			return r.createSchema(ctx, conn)
		})
	})
}

func (r *Runner) createSchema(ctx context.Context, conn db.Conn) error {
	if err := schema.NewManager(r.logger, conn).Reset(ctx); err != nil {
		return err
	}
	return r.progress.Reset()
}

// RunETL loads the staging tables then derives the star schema.
func (r *Runner) RunETL(ctx context.Context, cfg config.Config) error {
	return r.withConn(ctx, cfg, func(conn db.Conn) error {
		return r.runETL(ctx, cfg, conn)
	})
}

func (r *Runner) runETL(ctx context.Context, cfg config.Config, conn db.Conn) error {
	if r.opts.Resume {
		markers, err := r.progress.Markers()
		if err != nil {
			return err
		}
		if len(markers) == 0 {
			r.logger.Infof("resume requested but no steps have completed yet")
		} else {
			r.logger.Infof("resuming, skipping completed steps: %s", strings.Join(markers, ", "))
		}
	}

	err := r.stage(StageLoad, func() error {
		if r.sources != nil {
			if err := r.sources.CheckSources(ctx, cfg.S3); err != nil {
				return err
			}
		}
		l := loader.NewLoader(r.logger, conn, r.progress, cfg, loader.Options{
			Resume:      r.opts.Resume,
			CopyOptions: r.opts.CopyOptions,
		})
		_, err := l.LoadStaging(ctx)
		return err
	})
	if err != nil {
		return err
	}

	return r.stage(StageTransform, func() error {
		t := transform.NewTransformer(r.logger, conn, r.progress, transform.Options{
			Transactional: r.opts.Transactional,
			Resume:        r.opts.Resume,
		})
		steps, err := t.Run(ctx)
		for _, step := range steps {
			if !step.Skipped && step.Rows >= 0 {
				rowsInsertedGauge.WithLabelValues(step.Table).Set(float64(step.Rows))
			}
		}
		return err
	})
}

// Validate runs the checks, records them as metrics and writes the report
// to Out.
func (r *Runner) Validate(ctx context.Context, cfg config.Config) (validate.Report, error) {
	var report validate.Report
	err := r.withConn(ctx, cfg, func(conn db.Conn) error {
		var err error
		report, err = r.validate(ctx, conn)
		return err
	})
	return report, err
}

func (r *Runner) validate(ctx context.Context, conn db.Conn) (validate.Report, error) {
	var report validate.Report
	err := r.stage(StageValidate, func() error {
		var err error
		report, err = validate.NewValidator(r.logger, conn).Run(ctx, r.opts.SpotCheck)
		return err
	})
	if err != nil {
		return report, err
	}
	for _, c := range report.Counts {
		tableRowsGauge.WithLabelValues(c.Table).Set(float64(c.Rows))
	}
	for _, d := range report.Duplicates {
		duplicateGroupsGauge.WithLabelValues(d.Table).Set(float64(len(d.Groups)))
	}
	if r.Out != nil {
		report.Render(r.Out)
	}
	return report, nil
}

// Teardown deletes the cluster.
func (r *Runner) Teardown(ctx context.Context, cfg config.Config) error {
	return r.stage(StageTeardown, func() error {
		if err := cfg.Validate(config.StageTeardown); err != nil {
			return err
		}
		return r.provisioner.Teardown(ctx, cfg)
	})
}

// RunAll provisions the warehouse and runs every stage on one connection.
// The returned config carries the provisioning outputs even when a later
// stage fails, so the caller can persist them.
func (r *Runner) RunAll(ctx context.Context, cfg config.Config, teardown bool) (config.Config, validate.Report, error) {
	var report validate.Report
	cfg, err := r.Provision(ctx, cfg)
	if err != nil {
		return cfg, report, err
	}

	err = r.withConn(ctx, cfg, func(conn db.Conn) error {
		if err := r.stage(StageSchema, func() error { return r.createSchema(ctx, conn) }); err != nil {
			return err
		}
		if err := r.runETL(ctx, cfg, conn); err != nil {
			return err
		}
		var err error
		report, err = r.validate(ctx, conn)
		return err
	})
	if err != nil {
		return cfg, report, err
	}

	if teardown {
		r.logger.Infof("pipeline completed successfully, removing cluster")
		if err := r.Teardown(ctx, cfg); err != nil {
			return cfg, report, err
		}
	}
	return cfg, report, nil
}
