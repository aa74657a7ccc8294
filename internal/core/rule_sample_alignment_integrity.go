package core

import (
	"context"
	"fmt"

	"genomedesigner/pkg/domain"
)

// SampleAlignmentIntegrityRule requires every sample alignment to point at an
// existing alignment group and sample, with at most one alignment per pair.
func SampleAlignmentIntegrityRule() domain.Rule {
	return sampleAlignmentIntegrityRule{}
}

type sampleAlignmentIntegrityRule struct{}

func (sampleAlignmentIntegrityRule) Name() string { return "sample_alignment_integrity" }

func (sampleAlignmentIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touches(changes, domain.EntitySampleAlignment) {
		return res, nil
	}

	seen := make(map[string]struct{})
	for _, sa := range view.ListSampleAlignments() {
		if _, ok := view.FindAlignmentGroup(sa.AlignmentGroupID); !ok {
			res.Violations = append(res.Violations, sampleAlignmentViolation(sa.ID,
				fmt.Sprintf("sample alignment %s references missing alignment group %s", sa.ID, sa.AlignmentGroupID)))
			continue
		}
		if _, ok := view.FindExperimentSample(sa.ExperimentSampleID); !ok {
			res.Violations = append(res.Violations, sampleAlignmentViolation(sa.ID,
				fmt.Sprintf("sample alignment %s references missing sample %s", sa.ID, sa.ExperimentSampleID)))
			continue
		}
		key := sa.AlignmentGroupID + "/" + sa.ExperimentSampleID
		if _, dup := seen[key]; dup {
			res.Violations = append(res.Violations, sampleAlignmentViolation(sa.ID,
				fmt.Sprintf("sample %s is aligned in group %s more than once", sa.ExperimentSampleID, sa.AlignmentGroupID)))
			continue
		}
		seen[key] = struct{}{}
	}
	return res, nil
}

func sampleAlignmentViolation(id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "sample_alignment_integrity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntitySampleAlignment,
		EntityID: id,
	}
}
