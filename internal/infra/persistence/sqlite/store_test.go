package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"genomedesigner/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	var setID, variantID string
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		project, err := tx.CreateProject(domain.Project{Title: "persist"})
		if err != nil {
			return err
		}
		rg, err := tx.CreateReferenceGenome(domain.ReferenceGenome{ProjectID: project.ID, Label: "rg"})
		if err != nil {
			return err
		}
		set, err := tx.CreateVariantSet(domain.VariantSet{ReferenceGenomeID: rg.ID, Label: "set"})
		if err != nil {
			return err
		}
		v, err := tx.CreateVariant(domain.Variant{ReferenceGenomeID: rg.ID, Chromosome: "c", Position: 1})
		if err != nil {
			return err
		}
		setID, variantID = set.ID, v.ID
		_, err = tx.CreateMembership(domain.VariantToVariantSet{VariantID: v.ID, VariantSetID: set.ID})
		return err
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	memberships := reloaded.ListMemberships()
	if len(memberships) != 1 || memberships[0].VariantID != variantID || memberships[0].VariantSetID != setID {
		t.Fatalf("expected reloaded membership, got %+v", memberships)
	}
	err = reloaded.View(context.Background(), func(view domain.TransactionView) error {
		if _, ok := view.FindMembership(variantID, setID); !ok {
			t.Fatalf("expected membership index rebuilt on load")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestSQLiteStoreWritesEveryBucket(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateProject(domain.Project{Title: "buckets"})
		return e
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 10 {
		t.Fatalf("expected 10 buckets, got %d", count)
	}
}

func TestSQLiteStoreFailedTransactionSkipsPersist(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateProject(domain.Project{})
		return e
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no persisted buckets, got %d", count)
	}
}
