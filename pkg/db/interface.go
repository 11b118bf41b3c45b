package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"

	log "github.com/sirupsen/logrus"
)

// Execer runs statements that return no rows. *sql.DB, *sql.Conn and *sql.Tx
// all satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Queryer runs statements that return rows.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Beginner starts transactions.
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Conn is everything the pipeline stages need from a warehouse connection.
type Conn interface {
	Execer
	Queryer
	Beginner
	Close() error
}

var credentialPattern = regexp.MustCompile(`(?i)(aws_iam_role=|aws_access_key_id=|aws_secret_access_key=|token=|IAM_ROLE\s+|ACCESS_KEY_ID\s+|SECRET_ACCESS_KEY\s+|SESSION_TOKEN\s+)('?)[^';\s]+`)

// Redact masks credentials embedded in COPY/UNLOAD statements so that they
// can be logged.
func Redact(query string) string {
	return credentialPattern.ReplaceAllString(query, "${1}${2}****")
}

type loggingQueryer struct {
	queryer    Queryer
	logger     log.FieldLogger
	logQueries bool
}

func NewLoggingQueryer(queryer Queryer, logger log.FieldLogger, logQueries bool) *loggingQueryer {
	return &loggingQueryer{
		queryer:    queryer,
		logger:     logger,
		logQueries: logQueries,
	}
}

func (loggingQueryer *loggingQueryer) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	if loggingQueryer.logQueries {
		margs := argsString(args...)
		loggingQueryer.logger.Debugf("QUERY: %s [%s]", Redact(query), margs)
	}
	return loggingQueryer.queryer.QueryContext(ctx, query, args...)
}

type loggingExecer struct {
	execer     Execer
	logger     log.FieldLogger
	logQueries bool
}

func NewLoggingExecer(execer Execer, logger log.FieldLogger, logQueries bool) *loggingExecer {
	return &loggingExecer{
		execer:     execer,
		logger:     logger,
		logQueries: logQueries,
	}
}

func (loggingExecer *loggingExecer) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if loggingExecer.logQueries {
		margs := argsString(args...)
		loggingExecer.logger.Debugf("EXEC: %s [%s]", Redact(query), margs)
	}
	return loggingExecer.execer.ExecContext(ctx, query, args...)
}

type loggingConn struct {
	*loggingExecer
	*loggingQueryer
	conn Conn
}

// NewLoggingConn wraps conn so that every statement run through it, outside
// of explicit transactions, is logged at debug level when logQueries is set.
func NewLoggingConn(conn Conn, logger log.FieldLogger, logQueries bool) Conn {
	return &loggingConn{
		loggingExecer:  NewLoggingExecer(conn, logger, logQueries),
		loggingQueryer: NewLoggingQueryer(conn, logger, logQueries),
		conn:           conn,
	}
}

func (c *loggingConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	if c.loggingExecer.logQueries {
		c.loggingExecer.logger.Debugf("BEGIN")
	}
	return c.conn.BeginTx(ctx, opts)
}

func (c *loggingConn) Close() error {
	return c.conn.Close()
}

// argsString pretty prints arguments passed into it for logging query
// arguments
func argsString(args ...interface{}) string {
	var margs string
	for i, a := range args {
		var v interface{} = a
		if x, ok := v.(driver.Valuer); ok {
			y, err := x.Value()
			if err == nil {
				v = y
			}
		}
		switch v.(type) {
		case string, []byte:
			v = fmt.Sprintf("%q", v)
		default:
			v = fmt.Sprintf("%v", v)
		}
		margs += fmt.Sprintf("%d:%s", i+1, v)
		if i+1 < len(args) {
			margs += " "
		}
	}
	return margs
}
