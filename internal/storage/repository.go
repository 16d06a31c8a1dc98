package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a Repository.
//
// When to use:
//   - Use Config when constructing a Repository via New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is a backend-agnostic destination for report rows.
//
// IMPORTANT: This interface is intentionally minimal and focused on the two
// operations the load stage needs. Each backend implements these semantics in
// its own idiomatic way (SQL Server OBJECT_ID guard, Postgres/SQLite
// IF NOT EXISTS, etc).
type Repository interface {
	// Close releases any backend resources (connections, pools, etc).
	//
	// Edge cases:
	//   - Implementations should be safe to call once at process shutdown.
	//   - Callers should treat Close as "call once".
	Close()

	// EnsureTable creates the destination table when it does not exist.
	//
	// Behavior:
	//   - If the table already exists: no-op. No structural comparison is made
	//     against spec.Columns, even when they differ from the live table.
	//   - Otherwise the table is created with a surrogate identity primary key,
	//     an ingestion-timestamp column with a database-side default, and one
	//     unbounded text column per entry in spec.Columns.
	//
	// This method is idempotent and safe to run on every invocation.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows appends rows to table as a single committed unit.
	//
	// Rules:
	//   - columns are storage (sanitized) names; every row must have one value
	//     per column, with nil meaning SQL NULL.
	//   - Backends may split the batch into multiple statements to respect
	//     driver parameter limits, but all statements run in one transaction:
	//     either every row persists or the transaction is rolled back.
	//
	// Returns the number of rows reported inserted by the driver.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// TableSpec describes the destination table derived from an observed payload.
type TableSpec struct {
	// Name is the destination table name, optionally schema-qualified
	// (e.g. "dbo.ToriReports").
	Name string

	// Columns are the storage column names, already sanitized and in source
	// order. System columns (identity key, ingestion timestamp) are not listed
	// here; backends add them.
	Columns []string
}

// IdentityColumn and ProcessedColumn are the system columns every backend adds
// ahead of the payload columns.
const (
	IdentityColumn  = "ID"
	ProcessedColumn = "ProcessedDate"
)

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a storage backend under a kind (e.g. "sqlserver", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Edge cases:
//   - If cfg.Kind is empty, New returns an error.
//   - If cfg.Kind is not registered, New returns an error.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.Kind")
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
