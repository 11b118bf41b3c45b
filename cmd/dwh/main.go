package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sparkify/dwh/cmd/helpers"
	"github.com/sparkify/dwh/pkg/aws"
	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/pipeline"
	"github.com/sparkify/dwh/pkg/redshift"
	"github.com/sparkify/dwh/pkg/transform"
	"github.com/sparkify/dwh/pkg/util/wait"
)

const envPrefix = "DWH"

// PROMETHEUS_PUSHGATEWAY_URL is accepted as an alias of DWH_PUSHGATEWAY_URL.
var pushgatewayEnv = map[string]string{"PROMETHEUS_PUSHGATEWAY_URL": "pushgateway-url"}

type options struct {
	configPath     string
	logLevel       string
	logTimestamp   bool
	logQueries     bool
	driver         string
	sslMode        string
	pushgatewayURL string
	progressFile   string

	pollInterval    time.Duration
	pollMaxInterval time.Duration
	pollTimeout     time.Duration
	pollAttempts    int

	resume        bool
	transactional bool
	teardown      bool
	spotCheck     int
	copyOptions   []string
	checkSources  bool
}

var opts options

var rootCmd = &cobra.Command{
	Use:           "dwh",
	Short:         "provisions a Redshift warehouse and loads the sparkify star schema into it",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "creates or reuses the IAM role and cluster, records their outputs and recreates all tables",
	RunE:  runCommand(provision),
}

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "loads the staging tables from S3 and derives the star schema",
	RunE:  runCommand(etl),
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "reports row counts, duplicate keys and time dimension mismatches",
	RunE:  runCommand(validateWarehouse),
}

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "deletes the cluster without a final snapshot",
	RunE:  runCommand(teardown),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "provisions, loads, transforms and validates in one go",
	RunE:  runCommand(runAll),
}

func init() {
	defaults := wait.DefaultBackoff()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "dwh.cfg", "path to the INI config file; provisioning outputs are written back to it")
	pf.StringVar(&opts.logLevel, "log-level", log.InfoLevel.String(), "log level")
	pf.BoolVar(&opts.logTimestamp, "log-timestamp", true, "log full timestamp if true, otherwise log time since startup")
	pf.BoolVar(&opts.logQueries, "log-queries", false, "log every SQL statement, with credentials redacted")
	pf.StringVar(&opts.driver, "driver", redshift.DriverPQ, "database/sql driver used to reach the cluster: postgres or pgx")
	pf.StringVar(&opts.sslMode, "sslmode", redshift.DefaultSSLMode, "sslmode for warehouse connections")
	pf.StringVar(&opts.pushgatewayURL, "pushgateway-url", "", "if set, pipeline metrics are pushed to this Prometheus Pushgateway when the command ends")
	pf.StringVar(&opts.progressFile, "progress-file", ".dwh-progress.yaml", "file recording completed load and transform steps, used by --resume")
	pf.DurationVar(&opts.pollInterval, "poll-interval", defaults.InitialInterval, "initial wait between cluster status checks")
	pf.DurationVar(&opts.pollMaxInterval, "poll-max-interval", defaults.MaxInterval, "maximum wait between cluster status checks")
	pf.DurationVar(&opts.pollTimeout, "poll-timeout", defaults.MaxElapsed, "give up waiting for the cluster after this long")
	pf.IntVar(&opts.pollAttempts, "poll-max-attempts", defaults.MaxAttempts, "give up waiting for the cluster after this many status checks")

	for _, cmd := range []*cobra.Command{etlCmd, runCmd} {
		cmd.Flags().BoolVar(&opts.transactional, "transactional", true, "derive all star schema tables in one transaction; if false each table commits on its own")
		cmd.Flags().StringSliceVar(&opts.copyOptions, "copy-option", nil, "extra COPY options, e.g. \"COMPUPDATE OFF\"")
		cmd.Flags().BoolVar(&opts.checkSources, "check-sources", true, "verify the S3 sources contain objects before loading")
	}
	etlCmd.Flags().BoolVar(&opts.resume, "resume", false, "skip load and transform steps recorded as completed in --progress-file")

	for _, cmd := range []*cobra.Command{validateCmd, runCmd} {
		cmd.Flags().BoolVar(&opts.teardown, "teardown", false, "delete the cluster after a successful validation")
		cmd.Flags().IntVar(&opts.spotCheck, "spot-check", 10, "number of time rows to recompute; 0 disables the check")
	}

	rootCmd.AddCommand(provisionCmd, etlCmd, validateCmd, teardownCmd, runCmd)
}

func main() {
	// globally set time to UTC
	time.Local = time.UTC

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatalf("error executing command: %v", err)
	}
}

type commandFunc func(ctx context.Context, logger log.FieldLogger, cfg config.Config, runner *pipeline.Runner) error

// runCommand applies env overrides, loads the config and builds the runner
// shared by every subcommand.
func runCommand(fn commandFunc) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := helpers.SetFlagsFromEnv(cmd.Flags(), envPrefix); err != nil {
			return fmt.Errorf("error setting flags from environment variables: %v", err)
		}
		if err := helpers.MapEnvVarToFlag(pushgatewayEnv, cmd.Flags()); err != nil {
			return err
		}
		logger, err := helpers.SetupLogger(opts.logLevel, opts.logTimestamp, log.Fields{"app": "dwh", "command": cmd.Name()})
		if err != nil {
			return err
		}

		cfg, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}

		ctx := helpers.SetupSignals(logger)
		runner, err := newRunner(logger, cfg, opts, os.Stdout)
		if err != nil {
			return err
		}

		err = fn(ctx, logger, cfg, runner)
		if opts.pushgatewayURL != "" {
			if pushErr := pipeline.PushMetrics(context.Background(), opts.pushgatewayURL); pushErr != nil {
				logger.WithError(pushErr).Warnf("unable to push metrics")
			}
		}
		return err
	}
}

func (o options) pollBackoff() wait.Backoff {
	b := wait.DefaultBackoff()
	b.InitialInterval = o.pollInterval
	b.MaxInterval = o.pollMaxInterval
	b.MaxElapsed = o.pollTimeout
	b.MaxAttempts = o.pollAttempts
	return b
}

func (o options) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		Connect: redshift.ConnectOptions{
			Driver:  o.driver,
			SSLMode: o.sslMode,
		},
		LogQueries:    o.logQueries,
		Transactional: o.transactional,
		Resume:        o.resume,
		SpotCheck:     o.spotCheck,
		CopyOptions:   o.copyOptions,
	}
}

func newRunner(logger log.FieldLogger, cfg config.Config, o options, out io.Writer) (*pipeline.Runner, error) {
	sess, err := aws.NewSession(cfg.AWS)
	if err != nil {
		return nil, err
	}
	provisioner := aws.NewProvisionerFromSession(logger, sess, o.pollBackoff())
	var sources pipeline.SourceChecker
	if o.checkSources {
		sources = aws.NewSourceCheckerFromSession(logger, sess)
	}
	progress := transform.NewFileProgress(o.progressFile)
	return pipeline.NewRunner(logger, provisioner, sources, progress, o.pipelineOptions(), out), nil
}
