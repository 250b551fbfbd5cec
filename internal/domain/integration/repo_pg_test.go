package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/pankbase/functional/internal/platform/db"
	"github.com/pankbase/functional/migrations"
)

func newSource(name string) *Source {
	s := &Source{Name: name, APIURL: "https://example.org/" + name, Variables: []string{"gene_a"}}
	s.normalize()
	return s
}

func TestSourceRepoPG_CRUD(t *testing.T) {
	pool := testPool(t)
	repo := NewSourceRepoPG(pool)
	ctx := context.Background()

	src := newSource("islet-qc")
	if err := repo.Create(ctx, src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.CreatedAt.IsZero() {
		t.Error("expected created_at to be returned")
	}
	if err := repo.Create(ctx, newSource("islet-qc")); !errors.Is(err, ErrDuplicateSource) {
		t.Errorf("expected ErrDuplicateSource, got %v", err)
	}

	got, err := repo.GetByName(ctx, "islet-qc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != src.ID || got.IDField != DefaultIDField || len(got.Variables) != 1 {
		t.Errorf("unexpected source: %+v", got)
	}

	if err := repo.Create(ctx, newSource("atac")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	items, total, err := repo.List(ctx, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(items) != 1 {
		t.Errorf("expected 1 of 2, got %d of %d", len(items), total)
	}

	if err := repo.Delete(ctx, "islet-qc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.GetByName(ctx, "islet-qc"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "islet-qc"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound on second delete, got %v", err)
	}
}

func TestSourceRepoPG_TxRollback(t *testing.T) {
	pool := testPool(t)
	repo := NewSourceRepoPG(pool)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithTx(ctx, pool, func(ctx context.Context) error {
		if err := repo.Create(ctx, newSource("rolled-back")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := repo.GetByName(ctx, "rolled-back"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected rolled back insert, got %v", err)
	}
}

func TestSourceRepoPG_ListJoinsCallerTx(t *testing.T) {
	pool := testPool(t)
	repo := NewSourceRepoPG(pool)
	ctx := context.Background()

	err := db.WithTx(ctx, pool, func(ctx context.Context) error {
		if err := repo.Create(ctx, newSource("pending")); err != nil {
			return err
		}
		items, total, err := repo.List(ctx, 50, 0)
		if err != nil {
			return err
		}
		found := false
		for _, s := range items {
			found = found || s.Name == "pending"
		}
		if !found || total != len(items) {
			t.Errorf("expected uncommitted source in list, got %d items of %d", len(items), total)
		}
		return errors.New("rollback")
	})
	if err == nil || err.Error() != "rollback" {
		t.Fatalf("expected rollback, got %v", err)
	}
	if _, err := repo.GetByName(ctx, "pending"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected rolled back insert, got %v", err)
	}
}

func TestMigrator_Idempotent(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	m := db.NewMigrator(pool, migrations.FS)

	n, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no pending migrations, applied %d", n)
	}
	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			t.Errorf("migration %d not applied", s.Version)
		}
	}
	if h := db.Check(ctx, pool); h.Status != "healthy" || h.Pool == nil {
		t.Errorf("unexpected health: %+v", h)
	}
}
