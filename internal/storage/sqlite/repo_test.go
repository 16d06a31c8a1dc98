package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deya-hazra-maersk/TORI-Data-Processing/internal/storage"
)

// openTestRepo creates a repository over a throwaway database file. A file
// (not :memory:) is used so the database/sql pool can hand out more than one
// connection without splitting state.
func openTestRepo(t *testing.T) (*Repo, string) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "tori_test.db")
	repo, err := New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo.(*Repo), dsn
}

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	q, err := buildCreateSQL(storage.TableSpec{Name: "ToriReports", Columns: []string{"a", "b"}})
	if err != nil {
		t.Fatalf("buildCreateSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "ToriReports"`,
		`"ID" INTEGER PRIMARY KEY AUTOINCREMENT`,
		`"ProcessedDate" TEXT DEFAULT (datetime('now'))`,
		`"a" TEXT`,
		`"b" TEXT`,
	} {
		if !strings.Contains(q, want) {
			t.Fatalf("DDL missing %q:\n%s", want, q)
		}
	}
}

func TestEnsureTable_Idempotent(t *testing.T) {
	t.Parallel()

	repo, dsn := openTestRepo(t)
	spec := storage.TableSpec{Name: "reports", Columns: []string{"a", "b"}}

	if err := repo.EnsureTable(context.Background(), spec); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if err := repo.EnsureTable(context.Background(), spec); err != nil {
		t.Fatalf("EnsureTable (second call): %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='reports'`).Scan(&n)
	if err != nil {
		t.Fatalf("catalog query: %v", err)
	}
	if n != 1 {
		t.Fatalf("relations named 'reports' = %d, want exactly 1", n)
	}
}

func TestEnsureTable_ExistingTableNotReconciled(t *testing.T) {
	t.Parallel()

	repo, dsn := openTestRepo(t)
	ctx := context.Background()

	if err := repo.EnsureTable(ctx, storage.TableSpec{Name: "reports", Columns: []string{"a"}}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// Second call with a drifted column set must not alter the table.
	if err := repo.EnsureTable(ctx, storage.TableSpec{Name: "reports", Columns: []string{"a", "extra"}}); err != nil {
		t.Fatalf("EnsureTable (drifted): %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT name FROM pragma_table_info('reports')`)
	if err != nil {
		t.Fatalf("table_info: %v", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}

	for _, c := range cols {
		if c == "extra" {
			t.Fatalf("drifted column was added; existing tables must never be altered")
		}
	}
}

func TestInsertRows_EndToEnd(t *testing.T) {
	t.Parallel()

	repo, dsn := openTestRepo(t)
	ctx := context.Background()

	if err := repo.EnsureTable(ctx, storage.TableSpec{Name: "reports", Columns: []string{"a", "b"}}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	n, err := repo.InsertRows(ctx, "reports", []string{"a", "b"}, [][]any{
		{"1", "x"},
		{"2", "y"},
		{"3", "z"},
	})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted = %d, want 3", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "reports"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("stored rows = %d, want 3", count)
	}

	// System columns are populated by the database, not the caller.
	var id int64
	var processed sql.NullString
	var a, b sql.NullString
	err = db.QueryRow(`SELECT "ID", "ProcessedDate", "a", "b" FROM "reports" WHERE "a" = '1'`).
		Scan(&id, &processed, &a, &b)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if id == 0 {
		t.Fatalf("identity key not assigned")
	}
	if !processed.Valid || processed.String == "" {
		t.Fatalf("ProcessedDate not defaulted")
	}
	if a.String != "1" || b.String != "x" {
		t.Fatalf("row = (%q, %q), want (1, x)", a.String, b.String)
	}
}

func TestInsertRows_NilStoredAsNull(t *testing.T) {
	t.Parallel()

	repo, dsn := openTestRepo(t)
	ctx := context.Background()

	if err := repo.EnsureTable(ctx, storage.TableSpec{Name: "reports", Columns: []string{"a", "b"}}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := repo.InsertRows(ctx, "reports", []string{"a", "b"}, [][]any{{"1", nil}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	// A true NULL, never the literal text "nan"/"None"/"null".
	var nullCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "reports" WHERE "b" IS NULL`).Scan(&nullCount); err != nil {
		t.Fatalf("null count: %v", err)
	}
	if nullCount != 1 {
		t.Fatalf("NULL rows = %d, want 1", nullCount)
	}

	var textCount int
	err = db.QueryRow(`SELECT COUNT(*) FROM "reports" WHERE "b" IN ('nan', 'None', 'null', '<nil>')`).Scan(&textCount)
	if err != nil {
		t.Fatalf("literal count: %v", err)
	}
	if textCount != 0 {
		t.Fatalf("absent value stored as literal text")
	}
}

func TestInsertRows_ChunkedBatchCommitsAsOne(t *testing.T) {
	t.Parallel()

	repo, dsn := openTestRepo(t)
	ctx := context.Background()

	// 5 columns → 180 rows per statement; 500 rows span multiple chunks and
	// must still land as one committed unit.
	columns := []string{"c1", "c2", "c3", "c4", "c5"}
	if err := repo.EnsureTable(ctx, storage.TableSpec{Name: "reports", Columns: columns}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	rows := make([][]any, 500)
	for i := range rows {
		rows[i] = []any{"a", "b", "c", "d", "e"}
	}

	n, err := repo.InsertRows(ctx, "reports", columns, rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != 500 {
		t.Fatalf("inserted = %d, want 500", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "reports"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 500 {
		t.Fatalf("stored rows = %d, want 500", count)
	}
}

func TestInsertRows_ArityMismatchAbortsBatch(t *testing.T) {
	t.Parallel()

	repo, dsn := openTestRepo(t)
	ctx := context.Background()

	if err := repo.EnsureTable(ctx, storage.TableSpec{Name: "reports", Columns: []string{"a", "b"}}); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	// One bad row aborts the whole batch; no partial success.
	_, err := repo.InsertRows(ctx, "reports", []string{"a", "b"}, [][]any{
		{"1", "x"},
		{"2"},
	})
	if err == nil {
		t.Fatalf("expected arity error")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM "reports"`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("stored rows = %d, want 0 after aborted batch", count)
	}
}
