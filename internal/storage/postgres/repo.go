package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage"
)

// Repo implements storage.Repository for Postgres.
//
// Layout mirrors the SQL Server backend with Postgres types:
//
//	ID            BIGSERIAL PRIMARY KEY
//	ProcessedDate TIMESTAMPTZ DEFAULT now()
//	<column>      TEXT NULL
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a Postgres-backed Repo and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the destination table when absent via
// CREATE TABLE IF NOT EXISTS. Existing tables are never reconciled.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows appends rows to table in one transaction. Postgres caps
// statements at 65535 parameters; chunks stay far below that.
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

	maxRows := 10000 / len(columns)
	if maxRows < 1 {
		maxRows = 1
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("InsertRows: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total int64
	for start := 0; start < len(rows); start += maxRows {
		end := start + maxRows
		if end > len(rows) {
			end = len(rows)
		}
		part := rows[start:end]

		q, args := buildInsertSQL(table, columns, part)
		cmd, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("InsertRows: insert %s: %w", table, err)
		}
		total += cmd.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("InsertRows: commit: %w", err)
	}
	return total, nil
}

func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("postgres: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("postgres: table %s has no columns", spec.Name)
	}

	parts := make([]string, 0, len(spec.Columns)+2)
	parts = append(parts,
		fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", pgIdent(storage.IdentityColumn)),
		fmt.Sprintf("%s TIMESTAMPTZ DEFAULT now()", pgIdent(storage.ProcessedColumn)),
	)

	seen := make(map[string]bool, len(spec.Columns))
	for _, c := range spec.Columns {
		if strings.TrimSpace(c) == "" {
			return "", fmt.Errorf("postgres: table %s has an empty column name", spec.Name)
		}
		if seen[c] {
			return "", fmt.Errorf("postgres: table %s has duplicate column %q after sanitization", spec.Name, c)
		}
		seen[c] = true
		parts = append(parts, fmt.Sprintf("%s TEXT", pgIdent(c)))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s);",
		pgIdent(spec.Name),
		strings.Join(parts, ", "),
	), nil
}

// buildInsertSQL constructs a single multi-row INSERT statement and its
// positional args. Placeholders are numbered $1..$N row-major.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
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
			b.WriteString("$")
			b.WriteString(strconv.Itoa(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(";")
	return b.String(), args
}

// pgIdent double-quotes an identifier, escaping '"' as '""'.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ storage.Repository = (*Repo)(nil)
