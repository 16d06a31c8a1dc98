package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage"
)

// Repo implements storage.Repository for Microsoft SQL Server (including
// Azure SQL Database).
//
// This implementation supports:
//   - Lazy table creation guarded by OBJECT_ID, so EnsureTable is idempotent
//     without IF NOT EXISTS syntax.
//   - Batched inserts chunked under SQL Server's 2100-parameter limit, all
//     chunks inside a single transaction.
//
// The destination table layout matches the reporting contract:
//
//	ID            INT IDENTITY(1,1) PRIMARY KEY
//	ProcessedDate DATETIME DEFAULT GETDATE()
//	<column>      NVARCHAR(MAX) NULL   -- one per observed source column
type Repo struct {
	db dbConn
}

func init() {
	storage.Register("sqlserver", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver.
//
// This method validates connectivity via PingContext, so destination
// authentication failures surface here rather than mid-load.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	raw, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}

	// A run needs at most a handful of short-lived connections.
	raw.SetMaxOpenConns(4)
	raw.SetMaxIdleConns(1)

	if err := raw.PingContext(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &Repo{db: &sqlDB{db: raw}}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the destination table when absent.
//
// Behavior:
//   - The CREATE TABLE is wrapped in an OBJECT_ID guard, so a second call with
//     the same name is a no-op regardless of whether spec.Columns still match
//     the live table. Drift is not detected here; it surfaces later as an
//     insert failure.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows appends rows to table inside one transaction.
//
// Rules:
//   - Statements are chunked so each stays under the 2100-parameter limit.
//   - nil values bind as NULL.
//   - Any chunk failure rolls back the whole batch.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if table == "" {
		return 0, fmt.Errorf("InsertRows: table is empty")
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("InsertRows: columns is empty")
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("InsertRows: row %d has %d values, want %d", i, len(row), len(columns))
		}
	}

	// SQL Server has a hard limit of 2100 parameters per statement. Each row
	// uses len(columns) parameters; stay comfortably below.
	maxRows := 2000 / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("InsertRows: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		q, args := buildInsertSQL(table, columns, part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("InsertRows: insert %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("InsertRows: commit: %w", err)
	}
	return total, nil
}

// buildCreateSQL builds idempotent CREATE TABLE SQL for the destination table.
//
// System columns come first (identity key, ingestion timestamp), followed by
// one NVARCHAR(MAX) column per payload column.
func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("mssql: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("mssql: table %s has no columns", spec.Name)
	}

	parts := make([]string, 0, len(spec.Columns)+2)
	parts = append(parts,
		fmt.Sprintf("%s INT IDENTITY(1,1) PRIMARY KEY", mssqlIdent(storage.IdentityColumn)),
		fmt.Sprintf("%s DATETIME DEFAULT GETDATE()", mssqlIdent(storage.ProcessedColumn)),
	)

	seen := make(map[string]bool, len(spec.Columns))
	for _, c := range spec.Columns {
		if strings.TrimSpace(c) == "" {
			return "", fmt.Errorf("mssql: table %s has an empty column name", spec.Name)
		}
		if seen[c] {
			return "", fmt.Errorf("mssql: table %s has duplicate column %q after sanitization", spec.Name, c)
		}
		seen[c] = true
		parts = append(parts, fmt.Sprintf("%s NVARCHAR(MAX)", mssqlIdent(c)))
	}

	return wrapCreateIfMissing(spec.Name, strings.Join(parts, ", ")), nil
}

// wrapCreateIfMissing wraps a CREATE TABLE statement in an OBJECT_ID guard.
//
// This keeps EnsureTable idempotent without requiring IF NOT EXISTS syntax.
// The name appears both inside a string literal (quote-escaped) and as an
// identifier (bracket-escaped).
func wrapCreateIfMissing(tableName string, innerDefs string) string {
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		strings.ReplaceAll(tableName, "'", "''"),
		mssqlTableIdent(tableName),
		innerDefs,
	)
}

// buildInsertSQL builds a single INSERT ... VALUES statement for a chunk of rows.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString("@p")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.ToriReports" -> [dbo].[ToriReports]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// ---- database/sql seam types ----

// dbConn is a small interface over *sql.DB used to make this package testable.
//
// It intentionally includes only the methods this file needs.
type dbConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error)
	Close() error
}

// txConn is a small interface over *sql.Tx used for testability.
type txConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// sqlDB wraps *sql.DB to implement dbConn.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (txConn, error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlDB) Close() error { return s.db.Close() }

// sqlTx wraps *sql.Tx to implement txConn.
type sqlTx struct {
	tx *sql.Tx
}

func (s *sqlTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.tx.ExecContext(ctx, query, args...)
}

func (s *sqlTx) Commit() error   { return s.tx.Commit() }
func (s *sqlTx) Rollback() error { return s.tx.Rollback() }

// compile-time sanity checks (no runtime cost).
var (
	_ dbConn             = (*sqlDB)(nil)
	_ txConn             = (*sqlTx)(nil)
	_ storage.Repository = (*Repo)(nil)
)
