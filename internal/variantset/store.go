package variantset

import (
	"context"
	"errors"

	"genomedesigner/pkg/domain"
)

// StoreTransactor runs reconciliations against a domain.PersistentStore.
type StoreTransactor struct {
	store domain.PersistentStore
}

// NewStoreTransactor adapts store to the Transactor interface.
func NewStoreTransactor(store domain.PersistentStore) StoreTransactor {
	return StoreTransactor{store: store}
}

// WithinTransaction runs fn in a store transaction. Rule violations raised at
// commit surface as the returned error.
func (s StoreTransactor) WithinTransaction(ctx context.Context, fn func(Repository) error) error {
	_, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return fn(txRepository{tx: tx})
	})
	return err
}

type txRepository struct {
	tx domain.Transaction
}

func (r txRepository) FindVariants(_ context.Context, ids []string) ([]domain.Variant, error) {
	view := r.tx.Snapshot()
	out := make([]domain.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := view.FindVariant(id); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r txRepository) FindSet(_ context.Context, id string) (domain.VariantSet, bool, error) {
	set, ok := r.tx.Snapshot().FindVariantSet(id)
	return set, ok, nil
}

func (r txRepository) FindMemberships(_ context.Context, variantIDs []string, setID string) ([]domain.VariantToVariantSet, error) {
	view := r.tx.Snapshot()
	var out []domain.VariantToVariantSet
	for _, id := range variantIDs {
		if m, ok := view.FindMembership(id, setID); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// CreateMemberships checks every pair before inserting so a conflict leaves
// the transaction untouched.
func (r txRepository) CreateMemberships(_ context.Context, pairs []domain.VariantToVariantSet) error {
	view := r.tx.Snapshot()
	var conflicting []string
	for _, p := range pairs {
		if _, ok := view.FindMembership(p.VariantID, p.VariantSetID); ok {
			conflicting = append(conflicting, p.VariantID)
		}
	}
	if len(conflicting) > 0 {
		return &ConflictError{VariantIDs: conflicting}
	}
	for _, p := range pairs {
		if _, err := r.tx.CreateMembership(p); err != nil {
			var conflict domain.ErrConflict
			if errors.As(err, &conflict) {
				return &ConflictError{VariantIDs: []string{p.VariantID}}
			}
			return err
		}
	}
	return nil
}

func (r txRepository) DeleteMemberships(_ context.Context, memberships []domain.VariantToVariantSet) error {
	for _, m := range memberships {
		if err := r.tx.DeleteMembership(m.ID); err != nil {
			return err
		}
	}
	return nil
}
