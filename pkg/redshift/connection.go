package redshift

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"

	"github.com/sparkify/dwh/pkg/config"
	"github.com/sparkify/dwh/pkg/util/wait"
)

const (
	// DriverPQ is the database/sql driver name registered by lib/pq.
	DriverPQ = "postgres"
	// DriverPGX is the database/sql driver name registered by pgx's stdlib package.
	DriverPGX = "pgx"

	DefaultSSLMode = "require"
)

// DefaultConnectBackoff is used when ConnectOptions.Backoff is left empty.
func DefaultConnectBackoff() wait.Backoff {
	return wait.Backoff{
		InitialInterval: time.Second,
		MaxInterval:     15 * time.Second,
		Multiplier:      1.25,
		Jitter:          0.2,
		MaxElapsed:      5 * time.Minute,
		MaxAttempts:     10,
	}
}

// ConnectOptions select the driver and connection retry behaviour.
type ConnectOptions struct {
	Driver  string
	SSLMode string
	Backoff wait.Backoff
}

// DSN returns a postgres:// connection URL for the cluster. Both supported
// drivers accept this form.
func DSN(cluster config.Cluster, sslMode string) string {
	if sslMode == "" {
		sslMode = DefaultSSLMode
	}
	port := cluster.Port
	if port == 0 {
		port = config.DefaultPort
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cluster.User, cluster.Password),
		Host:     net.JoinHostPort(cluster.Host, strconv.Itoa(port)),
		Path:     "/" + cluster.DBName,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	return u.String()
}

func validDriver(driver string) bool {
	return driver == DriverPQ || driver == DriverPGX
}

// Connect opens a connection pool to the cluster and pings it until it
// answers or the backoff is exhausted. A freshly available cluster can
// refuse connections for a short while, hence the retry. The pool is limited
// to a single connection so statements run in order on one session.
func Connect(ctx context.Context, logger log.FieldLogger, cluster config.Cluster, opts ConnectOptions) (*sql.DB, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverPQ
	}
	if !validDriver(driver) {
		return nil, fmt.Errorf("unsupported driver %q, expected %q or %q", driver, DriverPQ, DriverPGX)
	}

	if opts.Backoff == (wait.Backoff{}) {
		opts.Backoff = DefaultConnectBackoff()
	}

	db, err := sql.Open(driver, DSN(cluster, opts.SSLMode))
	if err != nil {
		return nil, fmt.Errorf("unable to open %s connection: %w", driver, err)
	}
	db.SetMaxOpenConns(1)

	logger = logger.WithFields(log.Fields{"host": cluster.Host, "database": cluster.DBName, "driver": driver})
	err = wait.Until(ctx, "warehouse connection", opts.Backoff, func(ctx context.Context) (bool, string, error) {
		if err := db.PingContext(ctx); err != nil {
			return false, err.Error(), nil
		}
		return true, "connected", nil
	}, func(status string, next time.Duration) {
		logger.Debugf("error encountered when connecting to the warehouse, backing off %s and trying again: %s", next, status)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to the warehouse: %w", err)
	}
	logger.Infof("connected to the warehouse")
	return db, nil
}
