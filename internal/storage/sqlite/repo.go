package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage"
)

// Repo implements storage.Repository for SQLite.
//
// SQLite is not the production destination; it exists for local runs and for
// exercising the schema/insert contracts without a server. Differences from
// the SQL Server backend:
//   - The identity key is INTEGER PRIMARY KEY AUTOINCREMENT.
//   - ProcessedDate defaults to datetime('now') stored with TEXT affinity;
//     modernc.org/sqlite has no native DATETIME type.
//   - Payload columns use TEXT (SQLite has no NVARCHAR(MAX)).
type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable creates the destination table when absent, using
// CREATE TABLE IF NOT EXISTS. An existing table is left untouched even when
// spec.Columns differ from it.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	q, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows appends rows to table inside one transaction.
//
// SQLite's default parameter limit is 999 per statement, so the batch is
// chunked; all chunks share a transaction and commit as a unit.
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

	maxRows := 900 / len(columns)
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

func buildCreateSQL(spec storage.TableSpec) (string, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return "", fmt.Errorf("sqlite: table name is empty")
	}
	if len(spec.Columns) == 0 {
		return "", fmt.Errorf("sqlite: table %s has no columns", spec.Name)
	}

	parts := make([]string, 0, len(spec.Columns)+2)
	parts = append(parts,
		fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", sqlIdent(storage.IdentityColumn)),
		fmt.Sprintf("%s TEXT DEFAULT (datetime('now'))", sqlIdent(storage.ProcessedColumn)),
	)

	seen := make(map[string]bool, len(spec.Columns))
	for _, c := range spec.Columns {
		if strings.TrimSpace(c) == "" {
			return "", fmt.Errorf("sqlite: table %s has an empty column name", spec.Name)
		}
		if seen[c] {
			return "", fmt.Errorf("sqlite: table %s has duplicate column %q after sanitization", spec.Name, c)
		}
		seen[c] = true
		parts = append(parts, fmt.Sprintf("%s TEXT", sqlIdent(c)))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)",
		sqlIdent(spec.Name),
		strings.Join(parts, ", "),
	), nil
}

func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(sqlIdent(c))
	}
	b.WriteString(") VALUES ")

	rowPH := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(rowPH)
		args = append(args, row[:len(columns)]...)
	}

	return b.String(), args
}

// sqlIdent double-quotes an identifier, escaping '"' as '""'.
func sqlIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var _ storage.Repository = (*Repo)(nil)
