package variantset

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"genomedesigner/pkg/domain"
)

// User-facing messages.
const (
	msgAdded          = "%d variants successfully added."
	msgAlreadyInSet   = "%d of %d variants were already in the chosen set and were ignored."
	msgNoneInSet      = "None of the selected variants are in the chosen set."
	msgNotInSet       = "%d of %d variants were not in the chosen set and were ignored."
	msgRemoved        = "%d variants successfully removed."
	msgBadAction      = "Bad variantSet action type."
	msgVariantNeeded  = "At least one variant required."
	msgSetMissing     = "Variant set does not exist."
	msgUnknownVariant = "Unknown variant identifier(s): %s."
	msgStoreFailure   = "Variant set could not be updated."
)

// Logger is the logging surface used by the reconciler. *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Reconciler applies add/remove requests to variant sets.
type Reconciler struct {
	tx     Transactor
	logger Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used for outcome and failure logging.
func WithLogger(logger Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReconciler returns a Reconciler running every request inside tx.
func NewReconciler(tx Transactor, opts ...Option) *Reconciler {
	r := &Reconciler{tx: tx, logger: noopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile validates req and applies the membership delta in one transaction.
// Validation and lookup failures come back as error outcomes with a nil
// error; only store failures return a non-nil error, after rollback.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Outcome, error) {
	ids := distinctIDs(req.VariantIDs)
	setID := strings.TrimSpace(req.SetID)
	if len(ids) == 0 || setID == "" {
		return r.reject(req, &ValidationError{Message: msgVariantNeeded}), nil
	}
	if req.Action != ActionAdd && req.Action != ActionRemove {
		return r.reject(req, &ValidationError{Message: msgBadAction}), nil
	}

	var out Outcome
	err := r.tx.WithinTransaction(ctx, func(repo Repository) error {
		var err error
		out, err = apply(ctx, repo, req.Action, ids, setID)
		return err
	})
	if err != nil {
		r.logger.Error("variant set reconcile failed", "set", setID, "action", string(req.Action), "error", err)
		return Outcome{Level: LevelError, Message: msgStoreFailure, Cause: err}, err
	}
	r.logger.Info("variant set reconciled",
		"set", setID,
		"action", string(req.Action),
		"level", string(out.Level),
		"added", out.Added,
		"removed", out.Removed,
		"ignored", out.Ignored,
	)
	return out, nil
}

func (r *Reconciler) reject(req Request, cause *ValidationError) Outcome {
	r.logger.Warn("variant set request rejected", "set", req.SetID, "action", string(req.Action), "reason", cause.Message)
	return Outcome{Level: LevelError, Message: cause.Message, Cause: cause}
}

func apply(ctx context.Context, repo Repository, action Action, ids []string, setID string) (Outcome, error) {
	set, ok, err := repo.FindSet(ctx, setID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find set %s: %w", setID, err)
	}
	if !ok {
		return Outcome{Level: LevelError, Message: msgSetMissing, Cause: &NotFoundError{Entity: domain.EntityVariantSet, IDs: []string{setID}}}, nil
	}

	variants, err := repo.FindVariants(ctx, ids)
	if err != nil {
		return Outcome{}, fmt.Errorf("find variants: %w", err)
	}
	if missing := missingIDs(ids, variants); len(missing) > 0 {
		return Outcome{
			Level:   LevelError,
			Message: fmt.Sprintf(msgUnknownVariant, strings.Join(missing, ", ")),
			Cause:   &NotFoundError{Entity: domain.EntityVariant, IDs: missing},
		}, nil
	}

	existing, err := repo.FindMemberships(ctx, ids, set.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("find memberships: %w", err)
	}
	if action == ActionAdd {
		return add(ctx, repo, ids, set.ID, existing)
	}
	return remove(ctx, repo, ids, existing)
}

func add(ctx context.Context, repo Repository, ids []string, setID string, existing []domain.VariantToVariantSet) (Outcome, error) {
	present := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		present[m.VariantID] = struct{}{}
	}
	// Each conflict moves at least one id into present, so this terminates.
	for {
		pairs := make([]domain.VariantToVariantSet, 0, len(ids)-len(present))
		for _, id := range ids {
			if _, ok := present[id]; !ok {
				pairs = append(pairs, domain.VariantToVariantSet{VariantID: id, VariantSetID: setID})
			}
		}
		if len(pairs) == 0 {
			break
		}
		err := repo.CreateMemberships(ctx, pairs)
		if err == nil {
			break
		}
		var conflict *ConflictError
		if !errors.As(err, &conflict) || !foldConflict(present, conflict.VariantIDs, pairs) {
			return Outcome{}, fmt.Errorf("create memberships: %w", err)
		}
	}

	total, exist := len(ids), len(present)
	out := Outcome{Added: total - exist, Ignored: exist}
	if exist == 0 {
		out.Level = LevelInfo
		out.Message = fmt.Sprintf(msgAdded, total)
		return out, nil
	}
	out.Level = LevelWarn
	out.Message = fmt.Sprintf(msgAlreadyInSet, exist, total)
	return out, nil
}

// foldConflict marks conflicting ids as present and reports whether any of
// them belonged to the attempted batch.
func foldConflict(present map[string]struct{}, conflicting []string, attempted []domain.VariantToVariantSet) bool {
	inBatch := make(map[string]struct{}, len(attempted))
	for _, p := range attempted {
		inBatch[p.VariantID] = struct{}{}
	}
	progressed := false
	for _, id := range conflicting {
		if _, ok := inBatch[id]; !ok {
			continue
		}
		if _, ok := present[id]; !ok {
			present[id] = struct{}{}
			progressed = true
		}
	}
	return progressed
}

func remove(ctx context.Context, repo Repository, ids []string, existing []domain.VariantToVariantSet) (Outcome, error) {
	total := len(ids)
	if len(existing) == 0 {
		return Outcome{Level: LevelError, Message: msgNoneInSet, Ignored: total}, nil
	}
	if err := repo.DeleteMemberships(ctx, existing); err != nil {
		return Outcome{}, fmt.Errorf("delete memberships: %w", err)
	}
	removed := distinctVariants(existing)
	if removed != total {
		extra := total - removed
		return Outcome{Level: LevelWarn, Message: fmt.Sprintf(msgNotInSet, extra, total), Removed: removed, Ignored: extra}, nil
	}
	return Outcome{Level: LevelInfo, Message: fmt.Sprintf(msgRemoved, total), Removed: removed}, nil
}

// distinctIDs drops blanks and repeats while keeping first-seen order.
func distinctIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(ids []string, found []domain.Variant) []string {
	have := make(map[string]struct{}, len(found))
	for _, v := range found {
		have[v.ID] = struct{}{}
	}
	var missing []string
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func distinctVariants(memberships []domain.VariantToVariantSet) int {
	seen := make(map[string]struct{}, len(memberships))
	for _, m := range memberships {
		seen[m.VariantID] = struct{}{}
	}
	return len(seen)
}
