package memory

import "sort"

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// sortedValues returns map values ordered by key so listings are deterministic.
func sortedValues[T any](records map[string]T, clone func(T) T) []T {
	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		v := records[k]
		if clone != nil {
			v = clone(v)
		}
		out = append(out, v)
	}
	return out
}

func (v transactionView) ListVariants() []Variant {
	return sortedValues(v.state.variants, nil)
}

func (v transactionView) ListVariantSets() []VariantSet {
	return sortedValues(v.state.variantSets, nil)
}

func (v transactionView) ListMemberships() []Membership {
	return sortedValues(v.state.memberships, nil)
}

func (v transactionView) ListAlignmentGroups() []AlignmentGroup {
	return sortedValues(v.state.alignmentGroups, cloneAlignmentGroup)
}

func (v transactionView) ListExperimentSamples() []ExperimentSample {
	return sortedValues(v.state.samples, cloneSample)
}

func (v transactionView) ListSampleAlignments() []SampleAlignment {
	return sortedValues(v.state.sampleAlignments, cloneSampleAlignment)
}

func (v transactionView) ListReferenceGenomes() []ReferenceGenome {
	return sortedValues(v.state.referenceGenomes, cloneReferenceGenome)
}

func (v transactionView) ListDatasets() []Dataset {
	return sortedValues(v.state.datasets, nil)
}

func (v transactionView) FindProject(id string) (Project, bool) {
	p, ok := v.state.projects[id]
	return p, ok
}

func (v transactionView) FindReferenceGenome(id string) (ReferenceGenome, bool) {
	r, ok := v.state.referenceGenomes[id]
	if !ok {
		return ReferenceGenome{}, false
	}
	return cloneReferenceGenome(r), true
}

func (v transactionView) FindVariant(id string) (Variant, bool) {
	variant, ok := v.state.variants[id]
	return variant, ok
}

func (v transactionView) FindVariantSet(id string) (VariantSet, bool) {
	set, ok := v.state.variantSets[id]
	return set, ok
}

// FindMembership looks up the membership of a variant in a set via the uniqueness index.
func (v transactionView) FindMembership(variantID, setID string) (Membership, bool) {
	id, ok := v.state.membershipKeys[Membership{VariantID: variantID, VariantSetID: setID}.Key()]
	if !ok {
		return Membership{}, false
	}
	m, ok := v.state.memberships[id]
	return m, ok
}

func (v transactionView) FindVariantCallerData(id string) (CallerData, bool) {
	d, ok := v.state.callerData[id]
	if !ok {
		return CallerData{}, false
	}
	return cloneCallerData(d), true
}

func (v transactionView) FindAlignmentGroup(id string) (AlignmentGroup, bool) {
	a, ok := v.state.alignmentGroups[id]
	if !ok {
		return AlignmentGroup{}, false
	}
	return cloneAlignmentGroup(a), true
}

func (v transactionView) FindExperimentSample(id string) (ExperimentSample, bool) {
	s, ok := v.state.samples[id]
	if !ok {
		return ExperimentSample{}, false
	}
	return cloneSample(s), true
}

func (v transactionView) FindSampleAlignment(id string) (SampleAlignment, bool) {
	s, ok := v.state.sampleAlignments[id]
	if !ok {
		return SampleAlignment{}, false
	}
	return cloneSampleAlignment(s), true
}

func (v transactionView) FindDataset(id string) (Dataset, bool) {
	d, ok := v.state.datasets[id]
	return d, ok
}
