package variantset

import (
	"context"
	"errors"
	"strings"
	"testing"

	"genomedesigner/internal/infra/persistence/memory"
	"genomedesigner/pkg/domain"
	"genomedesigner/testutil"
)

type storeFixture struct {
	store *memory.Store
	set   domain.VariantSet
	ids   []string
}

func newStoreFixture(t *testing.T, variants int) storeFixture {
	t.Helper()
	f := storeFixture{store: memory.NewStore(nil)}
	_, err := f.store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		project, err := tx.CreateProject(domain.Project{Title: "recoding"})
		if err != nil {
			return err
		}
		genome, err := tx.CreateReferenceGenome(domain.ReferenceGenome{ProjectID: project.ID, Label: "MG1655"})
		if err != nil {
			return err
		}
		if f.set, err = tx.CreateVariantSet(domain.VariantSet{ReferenceGenomeID: genome.ID, Label: "targets"}); err != nil {
			return err
		}
		for i := 0; i < variants; i++ {
			v, err := tx.CreateVariant(domain.Variant{ReferenceGenomeID: genome.ID, Chromosome: "chrom", Position: int64(100 * (i + 1))})
			if err != nil {
				return err
			}
			f.ids = append(f.ids, v.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}

func (f storeFixture) members() int {
	n := 0
	for _, m := range f.store.ListMemberships() {
		if m.VariantSetID == f.set.ID {
			n++
		}
	}
	return n
}

func TestReconcileAgainstMemoryStore(t *testing.T) {
	f := newStoreFixture(t, 3)
	tx := NewStoreTransactor(f.store)

	assertOutcome(t, reconcile(t, tx, f.ids[:2], ActionAdd, f.set.ID), LevelInfo, "2 variants successfully added.")
	assertOutcome(t, reconcile(t, tx, f.ids, ActionAdd, f.set.ID), LevelWarn, "2 of 3 variants were already in the chosen set and were ignored.")
	if f.members() != 3 {
		t.Fatalf("expected 3 memberships, got %d", f.members())
	}
	assertOutcome(t, reconcile(t, tx, f.ids, ActionRemove, f.set.ID), LevelInfo, "3 variants successfully removed.")
	assertOutcome(t, reconcile(t, tx, f.ids, ActionRemove, f.set.ID), LevelError, "None of the selected variants are in the chosen set.")
	if f.members() != 0 {
		t.Fatalf("expected empty set, got %d", f.members())
	}
}

func TestReconcileUnknownVariantLeavesStoreUntouched(t *testing.T) {
	f := newStoreFixture(t, 1)
	out := reconcile(t, NewStoreTransactor(f.store), []string{f.ids[0], "zzzzzzzz"}, ActionAdd, f.set.ID)
	if out.Level != LevelError || !strings.Contains(out.Message, "zzzzzzzz") {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.members() != 0 {
		t.Fatalf("expected no memberships")
	}
}

type rejectMemberships struct{}

func (rejectMemberships) Name() string { return "reject_memberships" }

func (rejectMemberships) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, c := range changes {
		if c.Entity == domain.EntityVariantSetMembership {
			res.Violations = append(res.Violations, domain.Violation{Rule: "reject_memberships", Severity: domain.SeverityBlock, Entity: c.Entity})
		}
	}
	return res, nil
}

func TestRuleViolationSurfacesAsStoreFailure(t *testing.T) {
	f := newStoreFixture(t, 2)
	f.store.RulesEngine().Register(rejectMemberships{})
	out, err := NewReconciler(NewStoreTransactor(f.store)).Reconcile(context.Background(), Request{VariantIDs: f.ids, Action: ActionAdd, SetID: f.set.ID})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if out.Level != LevelError || out.Message != "Variant set could not be updated." {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if f.members() != 0 {
		t.Fatalf("expected rollback")
	}
}

func TestCreateMembershipsReportsExistingPairs(t *testing.T) {
	f := newStoreFixture(t, 2)
	tx := NewStoreTransactor(f.store)
	reconcile(t, tx, f.ids[:1], ActionAdd, f.set.ID)
	err := tx.WithinTransaction(context.Background(), func(repo Repository) error {
		return repo.CreateMemberships(context.Background(), []domain.VariantToVariantSet{
			{VariantID: f.ids[1], VariantSetID: f.set.ID},
			{VariantID: f.ids[0], VariantSetID: f.set.ID},
		})
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) || len(conflict.VariantIDs) != 1 || conflict.VariantIDs[0] != f.ids[0] {
		t.Fatalf("expected conflict on %s, got %v", f.ids[0], err)
	}
	if f.members() != 1 {
		t.Fatalf("conflicting batch must not insert anything, got %d", f.members())
	}
}

func TestReconcilerDoesNotImportInfrastructure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "reconciler depends only on domain types")
}
