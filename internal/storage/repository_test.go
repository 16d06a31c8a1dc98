package storage

import (
	"context"
	"strings"
	"testing"
)

type stubRepo struct{}

func (stubRepo) Close()                                       {}
func (stubRepo) EnsureTable(context.Context, TableSpec) error { return nil }
func (stubRepo) InsertRows(context.Context, string, []string, [][]any) (int64, error) {
	return 0, nil
}

func TestNew_EmptyKind(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}

func TestNew_UnknownKind(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "no-such-backend"})
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if !strings.Contains(err.Error(), "no-such-backend") {
		t.Fatalf("error does not name the kind: %v", err)
	}
}

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	Register("test-backend", func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "test-backend", DSN: "x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := repo.(stubRepo); !ok {
		t.Fatalf("New returned %T, want stubRepo", repo)
	}
}

func TestRegister_DuplicatePanics(t *testing.T) {
	t.Parallel()

	Register("dup-backend", func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	Register("dup-backend", func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{}, nil
	})
}
