package cohort

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func TestStore_ViewBeforeLoad(t *testing.T) {
	store := NewStore(&stubLoader{tables: testTables()}, zerolog.Nop())
	if _, err := store.View(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	if _, err := store.Describe(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestStore_LoadPublishesVersion(t *testing.T) {
	store, _ := loadedStore(t)
	snap, err := store.View()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("expected version 1, got %d", snap.Version)
	}

	next, err := store.Reload(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Version != 2 {
		t.Errorf("expected version 2, got %d", next.Version)
	}
}

func TestStore_FailedReloadKeepsSnapshot(t *testing.T) {
	store, loader := loadedStore(t)

	bad := testTables()
	bad.Donors.Rows[1][0] = "DON1"
	loader.set(bad, nil)
	_, err := store.Reload(context.Background())
	var integrity *DataIntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}

	loader.set(nil, errSourceMissing)
	if _, err := store.Reload(context.Background()); !errors.Is(err, errSourceMissing) {
		t.Fatalf("expected wrapped loader error, got %v", err)
	}

	snap, err := store.View()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 1 || snap.Frame().Len() != 3 {
		t.Errorf("expected the first snapshot to stay published, got version %d", snap.Version)
	}
}

func TestStore_FailedFirstLoad(t *testing.T) {
	store := NewStore(&stubLoader{err: errSourceMissing}, zerolog.Nop())
	if _, err := store.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := store.View(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestStore_ReloadDoesNotAlterCapturedView(t *testing.T) {
	store, loader := loadedStore(t)
	crit := Criteria{Categorical: map[string][]string{"diabetes_status": {"control"}}}

	v1, err := store.View()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before, err := Filter(crit, v1.Frame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed := testTables()
	changed.Donors.Rows[1][3] = "control"
	loader.set(changed, nil)
	if _, err := store.Reload(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	after, err := Filter(crit, v1.Frame())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sameIDs(before.IDs, after.IDs) || !sameIDs(after.IDs, []string{idD1, idD3}) {
		t.Errorf("captured view changed: before %v after %v", before.IDs, after.IDs)
	}

	v2, _ := store.View()
	current, _ := Filter(crit, v2.Frame())
	if current.Count() != 3 {
		t.Errorf("expected new snapshot to see 3 control donors, got %d", current.Count())
	}
}

func TestStore_ConcurrentReadersDuringReload(t *testing.T) {
	store, loader := loadedStore(t)
	changed := testTables()
	changed.Donors.Rows[1][3] = "control"
	loader.set(changed, nil)

	crit := Criteria{Categorical: map[string][]string{"diabetes_status": {"control"}}}
	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := store.View()
			if err != nil {
				errs <- err.Error()
				return
			}
			first, _ := Filter(crit, snap.Frame())
			for j := 0; j < 20; j++ {
				again, _ := Filter(crit, snap.Frame())
				if !sameIDs(first.IDs, again.IDs) {
					errs <- "captured snapshot changed during reload"
					return
				}
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Reload(context.Background()); err != nil {
				errs <- err.Error()
			}
		}()
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}

	snap, _ := store.View()
	if snap.Version != 5 {
		t.Errorf("expected 5 serialized publications, got version %d", snap.Version)
	}
}

func TestStore_CancelledReload(t *testing.T) {
	store, _ := loadedStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Reload(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	snap, _ := store.View()
	if snap.Version != 1 {
		t.Errorf("expected version 1, got %d", snap.Version)
	}
}
