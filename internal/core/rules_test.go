package core

import (
	"context"
	"strings"
	"testing"

	"genomedesigner/pkg/domain"
)

// fakeView is a RuleView over fixed slices.
type fakeView struct {
	variants    []Variant
	sets        []VariantSet
	memberships []Membership
	groups      []AlignmentGroup
	samples     []ExperimentSample
	alignments  []SampleAlignment
}

func (v fakeView) ListVariants() []Variant                   { return v.variants }
func (v fakeView) ListVariantSets() []VariantSet             { return v.sets }
func (v fakeView) ListMemberships() []Membership             { return v.memberships }
func (v fakeView) ListAlignmentGroups() []AlignmentGroup     { return v.groups }
func (v fakeView) ListExperimentSamples() []ExperimentSample { return v.samples }
func (v fakeView) ListSampleAlignments() []SampleAlignment   { return v.alignments }

func (v fakeView) FindVariant(id string) (Variant, bool) {
	for _, x := range v.variants {
		if x.ID == id {
			return x, true
		}
	}
	return Variant{}, false
}

func (v fakeView) FindVariantSet(id string) (VariantSet, bool) {
	for _, x := range v.sets {
		if x.ID == id {
			return x, true
		}
	}
	return VariantSet{}, false
}

func (v fakeView) FindAlignmentGroup(id string) (AlignmentGroup, bool) {
	for _, x := range v.groups {
		if x.ID == id {
			return x, true
		}
	}
	return AlignmentGroup{}, false
}

func (v fakeView) FindExperimentSample(id string) (ExperimentSample, bool) {
	for _, x := range v.samples {
		if x.ID == id {
			return x, true
		}
	}
	return ExperimentSample{}, false
}

func membership(id, variantID, setID string) Membership {
	return Membership{Base: Base{ID: id}, VariantID: variantID, VariantSetID: setID}
}

var membershipChange = []Change{{Entity: EntityMembership, Action: ActionCreate}}

func TestMembershipIntegrityRule(t *testing.T) {
	view := fakeView{
		variants: []Variant{{Base: Base{ID: "v1"}, ReferenceGenomeID: "g1"}, {Base: Base{ID: "v2"}, ReferenceGenomeID: "g2"}},
		sets:     []VariantSet{{Base: Base{ID: "s1"}, ReferenceGenomeID: "g1"}},
		memberships: []Membership{
			membership("m1", "v1", "s1"),
			membership("m2", "v1", "s1"),
			membership("m3", "ghost", "s1"),
			membership("m4", "v1", "nowhere"),
			membership("m5", "v2", "s1"),
		},
	}
	rule := MembershipIntegrityRule()
	if rule.Name() != "membership_integrity" {
		t.Fatalf("unexpected name %s", rule.Name())
	}
	res, err := rule.Evaluate(context.Background(), view, membershipChange)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	want := map[string]domain.Severity{"m2": SeverityBlock, "m3": SeverityBlock, "m4": SeverityBlock, "m5": SeverityWarn}
	if len(res.Violations) != len(want) {
		t.Fatalf("expected %d violations, got %+v", len(want), res.Violations)
	}
	for _, v := range res.Violations {
		if want[v.EntityID] != v.Severity {
			t.Fatalf("unexpected violation %+v", v)
		}
	}
	if !strings.Contains(res.Violations[0].Message, "twice") {
		t.Fatalf("expected duplicate message first, got %q", res.Violations[0].Message)
	}

	res, _ = rule.Evaluate(context.Background(), view, []Change{{Entity: EntityDataset}})
	if len(res.Violations) != 0 {
		t.Fatalf("unrelated changes must not be evaluated")
	}
}

func TestSampleAlignmentIntegrityRule(t *testing.T) {
	view := fakeView{
		groups:  []AlignmentGroup{{Base: Base{ID: "ag"}}},
		samples: []ExperimentSample{{Base: Base{ID: "s1"}}},
		alignments: []SampleAlignment{
			{Base: Base{ID: "a1"}, AlignmentGroupID: "ag", ExperimentSampleID: "s1"},
			{Base: Base{ID: "a2"}, AlignmentGroupID: "ag", ExperimentSampleID: "s1"},
			{Base: Base{ID: "a3"}, AlignmentGroupID: "missing", ExperimentSampleID: "s1"},
			{Base: Base{ID: "a4"}, AlignmentGroupID: "ag", ExperimentSampleID: "missing"},
		},
	}
	res, err := SampleAlignmentIntegrityRule().Evaluate(context.Background(), view, []Change{{Entity: EntitySampleAlignment}})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 3 || !res.HasBlocking() {
		t.Fatalf("expected three blocking violations, got %+v", res.Violations)
	}
	for _, v := range res.Violations {
		if v.EntityID == "a1" {
			t.Fatalf("first alignment of a pair is valid")
		}
	}
}

func TestDefaultRulesEngine(t *testing.T) {
	names := NewDefaultRulesEngine().Rules()
	if len(names) != 2 || names[0] != "membership_integrity" || names[1] != "sample_alignment_integrity" {
		t.Fatalf("unexpected rules %v", names)
	}
}
