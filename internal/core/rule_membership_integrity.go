package core

import (
	"context"
	"fmt"

	"genomedesigner/pkg/domain"
)

// MembershipIntegrityRule blocks memberships that reference missing variants
// or sets, or that repeat a (variant, set) pair. A variant filed under a set
// of another reference genome is reported as a warning.
func MembershipIntegrityRule() domain.Rule {
	return membershipIntegrityRule{}
}

type membershipIntegrityRule struct{}

func (membershipIntegrityRule) Name() string { return "membership_integrity" }

func (membershipIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touches(changes, domain.EntityVariantSetMembership, domain.EntityVariant, domain.EntityVariantSet) {
		return res, nil
	}

	seen := make(map[string]string)
	for _, m := range view.ListMemberships() {
		if prev, dup := seen[m.Key()]; dup {
			res.Violations = append(res.Violations, membershipViolation(m.ID, domain.SeverityBlock,
				fmt.Sprintf("variant %s is in set %s twice (memberships %s and %s)", m.VariantID, m.VariantSetID, prev, m.ID)))
			continue
		}
		seen[m.Key()] = m.ID

		variant, ok := view.FindVariant(m.VariantID)
		if !ok {
			res.Violations = append(res.Violations, membershipViolation(m.ID, domain.SeverityBlock,
				fmt.Sprintf("membership %s references missing variant %s", m.ID, m.VariantID)))
			continue
		}
		set, ok := view.FindVariantSet(m.VariantSetID)
		if !ok {
			res.Violations = append(res.Violations, membershipViolation(m.ID, domain.SeverityBlock,
				fmt.Sprintf("membership %s references missing variant set %s", m.ID, m.VariantSetID)))
			continue
		}
		if variant.ReferenceGenomeID != "" && set.ReferenceGenomeID != "" && variant.ReferenceGenomeID != set.ReferenceGenomeID {
			res.Violations = append(res.Violations, membershipViolation(m.ID, domain.SeverityWarn,
				fmt.Sprintf("variant %s and set %s belong to different reference genomes", variant.ID, set.ID)))
		}
	}
	return res, nil
}

func membershipViolation(id string, severity domain.Severity, message string) domain.Violation {
	return domain.Violation{
		Rule:     "membership_integrity",
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityVariantSetMembership,
		EntityID: id,
	}
}
