package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"sync"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"Bluebird/internal/domain"
	"Bluebird/internal/ports"
)

// Supported database/sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var tableNameExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLSink inserts records into a pre-existing table inside one transaction
// that is committed on Close. Records appended before an aborted session are lost.
type SQLSink struct {
	db      *sql.DB
	tx      *sql.Tx
	builder sq.InsertBuilder

	closeOnce sync.Once
	closeErr  error
}

var _ ports.Sink = (*SQLSink)(nil)

// OpenSQL connects, verifies the connection and starts the session transaction.
func OpenSQL(ctx context.Context, target domain.DatabaseTarget) (*SQLSink, error) {
	if !tableNameExpr.MatchString(target.Table) {
		return nil, fmt.Errorf("%w: invalid table name %q", domain.ErrSinkUnavailable, target.Table)
	}

	driver := target.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	placeholders, err := placeholderFormat(driver)
	if err != nil {
		return nil, err
	}

	dsn, err := BuildDSN(target)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, connectionError(nil, "open", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, connectionError(db, "ping", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, connectionError(db, "begin", err)
	}

	builder := sq.Insert(target.Table).
		Columns(domain.RecordFields...).
		PlaceholderFormat(placeholders).
		RunWith(tx)

	return &SQLSink{db: db, tx: tx, builder: builder}, nil
}

// Append inserts one row with every value bound as a parameter.
func (s *SQLSink) Append(ctx context.Context, record domain.Record) error {
	if s.tx == nil {
		return fmt.Errorf("%w: sink is closed", domain.ErrWriteFailure)
	}
	if _, err := s.builder.Values(record.Values()...).ExecContext(ctx); err != nil {
		return fmt.Errorf("%w: insert %s: %w", domain.ErrWriteFailure, record.ID, err)
	}
	return nil
}

// Close commits the session and releases the connection pool even when the commit fails.
func (s *SQLSink) Close() error {
	s.closeOnce.Do(func() {
		var commitErr error
		if s.tx != nil {
			commitErr = s.tx.Commit()
			s.tx = nil
		}
		closeErr := s.db.Close()

		switch {
		case commitErr != nil:
			s.closeErr = fmt.Errorf("%w: %w: commit: %w", domain.ErrWriteFailure, domain.ErrConnection, commitErr)
		case closeErr != nil:
			s.closeErr = fmt.Errorf("%w: %w: close: %w", domain.ErrWriteFailure, domain.ErrConnection, closeErr)
		}
	})
	return s.closeErr
}

// BuildDSN returns the explicit DSN or composes a Postgres URL from discrete parameters.
func BuildDSN(target domain.DatabaseTarget) (string, error) {
	if target.DSN != "" {
		return target.DSN, nil
	}
	if target.Driver != "" && target.Driver != DriverPostgres {
		return "", fmt.Errorf("%w: driver %s requires a dsn", domain.ErrSinkUnavailable, target.Driver)
	}
	if target.Host == "" || target.Database == "" {
		return "", fmt.Errorf("%w: host and database are required", domain.ErrSinkUnavailable)
	}

	host := target.Host
	if target.Port != 0 {
		host = net.JoinHostPort(target.Host, strconv.Itoa(target.Port))
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   host,
		Path:   "/" + target.Database,
	}
	if target.User != "" {
		u.User = url.UserPassword(target.User, target.Password)
	}
	if target.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {target.SSLMode}}.Encode()
	}
	return u.String(), nil
}

func placeholderFormat(driver string) (sq.PlaceholderFormat, error) {
	switch driver {
	case DriverPostgres:
		return sq.Dollar, nil
	case DriverSQLite:
		return sq.Question, nil
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", domain.ErrSinkUnavailable, driver)
	}
}

// connectionError releases db on a best-effort basis before reporting the failure.
func connectionError(db *sql.DB, op string, cause error) error {
	if db != nil {
		_ = db.Close()
	}
	return fmt.Errorf("%w: %w: %s: %w", domain.ErrSinkUnavailable, domain.ErrConnection, op, cause)
}
