// Package repositories implements the PostgreSQL stores behind the
// classification overrides, specification import and duplicate review queue.
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
)

// queryExecutor abstracts sql.DB and sql.Tx.
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// Option customizes a repository.
type Option func(*options)

type options struct {
	metrics *prometheus.AppMetrics
}

// WithMetrics records query durations and failures.
func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(o *options) { o.metrics = m }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// observe records one query when metrics are configured.
func (o options) observe(op string, start time.Time, err error) {
	if o.metrics == nil {
		return
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		err = nil
	}
	prometheus.RecordDBQuery(o.metrics, op, time.Since(start), err)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// placeholders renders "($1,$2),($3,$4)" for rows of width columns.
func placeholders(rows, width int) string {
	var sb strings.Builder
	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('(')
		for c := 0; c < width; c++ {
			if c > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, "$%d", n)
			n++
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
