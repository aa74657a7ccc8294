// Package variantset reconciles requests to add variants to, or remove them
// from, a named variant set. Requests may partially apply: variants already
// in (or missing from) the set are skipped and reported in the outcome.
package variantset

import (
	"context"
	"fmt"
	"strings"

	"genomedesigner/pkg/domain"
)

// Action is the requested set operation. Any other value is rejected.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// Level grades an outcome for display.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Outcome is the user-facing result of a reconciliation. Only the level and
// message are serialised; the counters serve programmatic callers.
type Outcome struct {
	Level   Level  `json:"alert_type"`
	Message string `json:"alert_msg"`

	Added   int `json:"-"`
	Removed int `json:"-"`
	// Ignored counts requested variants that needed no change.
	Ignored int `json:"-"`
	// Cause holds the typed error behind an error outcome, if any.
	Cause error `json:"-"`
}

// Request names the variants, the action and the target set.
type Request struct {
	VariantIDs []string
	Action     Action
	SetID      string
}

// Repository is the store surface the reconciler needs. Implementations are
// bound to a single transaction by Transactor.
type Repository interface {
	// FindVariants returns the variants that exist among ids, in any order.
	FindVariants(ctx context.Context, ids []string) ([]domain.Variant, error)
	FindSet(ctx context.Context, id string) (domain.VariantSet, bool, error)
	// FindMemberships returns memberships of any of variantIDs in setID.
	FindMemberships(ctx context.Context, variantIDs []string, setID string) ([]domain.VariantToVariantSet, error)
	// CreateMemberships inserts all pairs or none. A pair that already exists
	// fails the whole call with *ConflictError.
	CreateMemberships(ctx context.Context, pairs []domain.VariantToVariantSet) error
	DeleteMemberships(ctx context.Context, memberships []domain.VariantToVariantSet) error
}

// Transactor runs fn inside one store transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(Repository) error) error
}

// ValidationError reports malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NotFoundError reports identifiers that did not resolve.
type NotFoundError struct {
	Entity domain.EntityType
	IDs    []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, strings.Join(e.IDs, ", "))
}

// ConflictError reports memberships that already existed at insert time.
type ConflictError struct {
	VariantIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("variants already in set: %s", strings.Join(e.VariantIDs, ", "))
}
