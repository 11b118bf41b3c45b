package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/pipeline"
)

func saveOutputs(logger log.FieldLogger, before, after config.Config) error {
	if before.IAMRole.ARN == after.IAMRole.ARN && before.Cluster.Host == after.Cluster.Host {
		return nil
	}
	if err := config.SaveOutputs(opts.configPath, after); err != nil {
		return err
	}
	logger.Infof("recorded role ARN and cluster host in %s", opts.configPath)
	return nil
}

func provision(ctx context.Context, logger log.FieldLogger, cfg config.Config, runner *pipeline.Runner) error {
	provisioned, err := runner.Provision(ctx, cfg)
	if err != nil {
		return err
	}
	if err := saveOutputs(logger, cfg, provisioned); err != nil {
		return err
	}
	return runner.CreateSchema(ctx, provisioned)
}

func etl(ctx context.Context, logger log.FieldLogger, cfg config.Config, runner *pipeline.Runner) error {
	return runner.RunETL(ctx, cfg)
}

func validateWarehouse(ctx context.Context, logger log.FieldLogger, cfg config.Config, runner *pipeline.Runner) error {
	if _, err := runner.Validate(ctx, cfg); err != nil {
		return err
	}
	if !opts.teardown {
		return nil
	}
	logger.Infof("validation completed successfully, removing cluster")
	return runner.Teardown(ctx, cfg)
}

func teardown(ctx context.Context, logger log.FieldLogger, cfg config.Config, runner *pipeline.Runner) error {
	return runner.Teardown(ctx, cfg)
}

func runAll(ctx context.Context, logger log.FieldLogger, cfg config.Config, runner *pipeline.Runner) error {
	provisioned, _, err := runner.RunAll(ctx, cfg, opts.teardown)
	if saveErr := saveOutputs(logger, cfg, provisioned); saveErr != nil {
		if err == nil {
			return saveErr
		}
		logger.WithError(saveErr).Warnf("unable to record provisioning outputs")
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return nil
}
