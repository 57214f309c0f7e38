// Benchtop - Experiment History Analytics and Result Caching
// Copyright 2026 A. Harstad (aharstad)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aharstad/benchtop

package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/aharstad/benchtop/internal/logging"
	"github.com/aharstad/benchtop/internal/metrics"
)

var (
	// ErrUnsupportedFormat is returned for sources whose extension has no
	// DuckDB reader function.
	ErrUnsupportedFormat = errors.New("unsupported result file format")

	// ErrInvalidMetric is returned when a metric name is not a plain SQL
	// identifier.
	ErrInvalidMetric = errors.New("invalid metric name")
)

// identPattern matches the column names result files are allowed to use.
// Metric names are interpolated into SQL as quoted identifiers, so anything
// outside this set is rejected outright.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_./-]*$`)

// DB wraps an in-memory DuckDB instance used to scan result files. No data
// is persisted; every query reads the source file directly.
type DB struct {
	conn *sql.DB
}

// OpenDB opens the scanning database. Threads <= 0 uses all CPUs; maxMemory
// is a DuckDB memory limit string such as "512MB".
func OpenDB(threads int, maxMemory string) (*DB, error) {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if maxMemory == "" {
		maxMemory = "512MB"
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments. Parquet and CSV readers are built in.
	connStr := fmt.Sprintf(":memory:?threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open scan database: %w", err)
	}

	logging.Info().
		Int("threads", threads).
		Str("max_memory", maxMemory).
		Msg("Scan database opened")

	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping checks that the scanning database is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return errors.New("scan database is nil")
	}
	return db.conn.PingContext(ctx)
}

// readerFor returns the DuckDB table function for a source file, or
// ErrUnsupportedFormat.
func readerFor(source string) (string, error) {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".parquet":
		return "read_parquet", nil
	case ".csv":
		return "read_csv_auto", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(source))
	}
}

// sourceLiteral escapes a file path for use as a SQL string literal.
func sourceLiteral(source string) string {
	return "'" + strings.ReplaceAll(source, "'", "''") + "'"
}

// LoadHistory scans the metric column of a result file ordered by step.
// Rows where the metric is NULL are skipped. limit+1 rows are requested so
// truncation can be reported without a second scan.
func (db *DB) LoadHistory(ctx context.Context, source, metric string, limit int64) (*HistoryResult, error) {
	start := time.Now()
	result, err := db.loadHistory(ctx, source, metric, limit)
	metrics.RecordLoad("history", time.Since(start), err)
	return result, err
}

func (db *DB) loadHistory(ctx context.Context, source, metric string, limit int64) (*HistoryResult, error) {
	if !identPattern.MatchString(metric) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMetric, metric)
	}

	reader, err := readerFor(source)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("source %s: %w", source, err)
	}

	query := fmt.Sprintf(
		`SELECT step, "%s" FROM %s(%s) WHERE "%s" IS NOT NULL ORDER BY step LIMIT %d`,
		metric, reader, sourceLiteral(source), metric, limit+1,
	)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("history scan of %s failed: %w", source, err)
	}
	defer closeQuietly(rows, "history rows")

	points := make([]MetricPoint, 0, min(limit, 1024))
	for rows.Next() {
		var p MetricPoint
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("history scan of %s failed: %w", source, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history scan of %s failed: %w", source, err)
	}

	truncated := int64(len(points)) > limit
	if truncated {
		points = points[:limit]
	}

	return &HistoryResult{
		Source:      source,
		Metric:      metric,
		Points:      points,
		Truncated:   truncated,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// LoadTable scans a row window from a result file.
func (db *DB) LoadTable(ctx context.Context, source string, limit, offset int64) (*TableResult, error) {
	start := time.Now()
	result, err := db.loadTable(ctx, source, limit, offset)
	metrics.RecordLoad("table", time.Since(start), err)
	return result, err
}

func (db *DB) loadTable(ctx context.Context, source string, limit, offset int64) (*TableResult, error) {
	reader, err := readerFor(source)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(source); err != nil {
		return nil, fmt.Errorf("source %s: %w", source, err)
	}

	query := fmt.Sprintf(
		`SELECT * FROM %s(%s) LIMIT %d OFFSET %d`,
		reader, sourceLiteral(source), limit+1, offset,
	)

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("table scan of %s failed: %w", source, err)
	}
	defer closeQuietly(rows, "table rows")

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("table scan of %s failed: %w", source, err)
	}

	var out [][]any
	for rows.Next() {
		cells := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("table scan of %s failed: %w", source, err)
		}
		for i, cell := range cells {
			// Raw bytes are not JSON-friendly; surface them as strings.
			if b, ok := cell.([]byte); ok {
				cells[i] = string(b)
			}
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("table scan of %s failed: %w", source, err)
	}

	truncated := int64(len(out)) > limit
	if truncated {
		out = out[:limit]
	}

	return &TableResult{
		Source:      source,
		Columns:     columns,
		Rows:        out,
		Offset:      offset,
		Truncated:   truncated,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Metrics lists the numeric columns of a result file, for discovery.
func (db *DB) Metrics(ctx context.Context, source string) ([]string, error) {
	reader, err := readerFor(source)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`DESCRIBE SELECT * FROM %s(%s)`, reader, sourceLiteral(source))
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("describe of %s failed: %w", source, err)
	}
	defer closeQuietly(rows, "describe rows")

	var names []string
	for rows.Next() {
		var name, colType string
		var rest [4]sql.NullString
		if err := rows.Scan(&name, &colType, &rest[0], &rest[1], &rest[2], &rest[3]); err != nil {
			return nil, fmt.Errorf("describe of %s failed: %w", source, err)
		}
		if isNumericType(colType) && name != "step" {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe of %s failed: %w", source, err)
	}
	return names, nil
}

func isNumericType(colType string) bool {
	switch strings.ToUpper(colType) {
	case "TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
		"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT",
		"FLOAT", "DOUBLE", "REAL":
		return true
	}
	return strings.HasPrefix(strings.ToUpper(colType), "DECIMAL")
}

func closeQuietly(c interface{ Close() error }, what string) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Str("resource", what).Msg("Close failed")
	}
}
