package memory

import (
	"fmt"
	"strings"
	"time"

	"genomedesigner/pkg/domain"
)

// transaction represents a mutation set applied to a cloned store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) stamp(b *domain.Base) {
	if b.ID == "" {
		b.ID = tx.store.newID()
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
}

// CreateProject stores a new project.
func (tx *transaction) CreateProject(p Project) (Project, error) {
	tx.stamp(&p.Base)
	if err := mustNotExist(tx.state.projects, domain.EntityProject, p.ID); err != nil {
		return Project{}, err
	}
	if strings.TrimSpace(p.Title) == "" {
		return Project{}, fmt.Errorf("project title required")
	}
	tx.state.projects[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionCreate, After: p})
	return p, nil
}

// CreateReferenceGenome stores a new reference genome under an existing project.
func (tx *transaction) CreateReferenceGenome(r ReferenceGenome) (ReferenceGenome, error) {
	tx.stamp(&r.Base)
	if err := mustNotExist(tx.state.referenceGenomes, domain.EntityReferenceGenome, r.ID); err != nil {
		return ReferenceGenome{}, err
	}
	if _, ok := tx.state.projects[r.ProjectID]; !ok {
		return ReferenceGenome{}, errMissing(domain.EntityProject, r.ProjectID)
	}
	r.DatasetIDs = nil
	tx.state.referenceGenomes[r.ID] = cloneReferenceGenome(r)
	tx.recordChange(Change{Entity: domain.EntityReferenceGenome, Action: domain.ActionCreate, After: cloneReferenceGenome(r)})
	return cloneReferenceGenome(r), nil
}

// UpdateReferenceGenome mutates a reference genome using the provided mutator function.
func (tx *transaction) UpdateReferenceGenome(id string, mutator func(*ReferenceGenome) error) (ReferenceGenome, error) {
	current, ok := tx.state.referenceGenomes[id]
	if !ok {
		return ReferenceGenome{}, errMissing(domain.EntityReferenceGenome, id)
	}
	before := cloneReferenceGenome(current)
	if err := mutator(&current); err != nil {
		return ReferenceGenome{}, err
	}
	current.ID = id
	current.ProjectID = before.ProjectID
	current.DatasetIDs = before.DatasetIDs
	current.UpdatedAt = tx.now
	tx.state.referenceGenomes[id] = cloneReferenceGenome(current)
	tx.recordChange(Change{Entity: domain.EntityReferenceGenome, Action: domain.ActionUpdate, Before: before, After: cloneReferenceGenome(current)})
	return cloneReferenceGenome(current), nil
}

// CreateVariant stores a new variant against an existing reference genome.
func (tx *transaction) CreateVariant(v Variant) (Variant, error) {
	tx.stamp(&v.Base)
	if err := mustNotExist(tx.state.variants, domain.EntityVariant, v.ID); err != nil {
		return Variant{}, err
	}
	if _, ok := tx.state.referenceGenomes[v.ReferenceGenomeID]; !ok {
		return Variant{}, errMissing(domain.EntityReferenceGenome, v.ReferenceGenomeID)
	}
	tx.state.variants[v.ID] = v
	tx.recordChange(Change{Entity: domain.EntityVariant, Action: domain.ActionCreate, After: v})
	return v, nil
}

// DeleteVariant removes a variant together with its memberships and caller data.
func (tx *transaction) DeleteVariant(id string) error {
	current, ok := tx.state.variants[id]
	if !ok {
		return errMissing(domain.EntityVariant, id)
	}
	for mid, m := range tx.state.memberships {
		if m.VariantID == id {
			tx.removeMembership(mid, m)
		}
	}
	for did, d := range tx.state.callerData {
		if d.VariantID == id {
			delete(tx.state.callerData, did)
			tx.recordChange(Change{Entity: domain.EntityVariantCallerData, Action: domain.ActionDelete, Before: cloneCallerData(d)})
		}
	}
	delete(tx.state.variants, id)
	tx.recordChange(Change{Entity: domain.EntityVariant, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateVariantSet stores a new variant set.
func (tx *transaction) CreateVariantSet(s VariantSet) (VariantSet, error) {
	tx.stamp(&s.Base)
	if err := mustNotExist(tx.state.variantSets, domain.EntityVariantSet, s.ID); err != nil {
		return VariantSet{}, err
	}
	if _, ok := tx.state.referenceGenomes[s.ReferenceGenomeID]; !ok {
		return VariantSet{}, errMissing(domain.EntityReferenceGenome, s.ReferenceGenomeID)
	}
	if strings.TrimSpace(s.Label) == "" {
		return VariantSet{}, fmt.Errorf("variant set label required")
	}
	tx.state.variantSets[s.ID] = s
	tx.recordChange(Change{Entity: domain.EntityVariantSet, Action: domain.ActionCreate, After: s})
	return s, nil
}

// DeleteVariantSet removes a variant set and every membership pointing at it.
func (tx *transaction) DeleteVariantSet(id string) error {
	current, ok := tx.state.variantSets[id]
	if !ok {
		return errMissing(domain.EntityVariantSet, id)
	}
	for mid, m := range tx.state.memberships {
		if m.VariantSetID == id {
			tx.removeMembership(mid, m)
		}
	}
	delete(tx.state.variantSets, id)
	tx.recordChange(Change{Entity: domain.EntityVariantSet, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateMembership adds a variant to a set. The (variant, set) pair is unique.
func (tx *transaction) CreateMembership(m Membership) (Membership, error) {
	if _, ok := tx.state.variants[m.VariantID]; !ok {
		return Membership{}, errMissing(domain.EntityVariant, m.VariantID)
	}
	if _, ok := tx.state.variantSets[m.VariantSetID]; !ok {
		return Membership{}, errMissing(domain.EntityVariantSet, m.VariantSetID)
	}
	if _, exists := tx.state.membershipKeys[m.Key()]; exists {
		return Membership{}, domain.ErrConflict{Entity: domain.EntityVariantSetMembership, Key: m.Key()}
	}
	tx.stamp(&m.Base)
	if err := mustNotExist(tx.state.memberships, domain.EntityVariantSetMembership, m.ID); err != nil {
		return Membership{}, err
	}
	tx.state.memberships[m.ID] = m
	tx.state.membershipKeys[m.Key()] = m.ID
	tx.recordChange(Change{Entity: domain.EntityVariantSetMembership, Action: domain.ActionCreate, After: m})
	return m, nil
}

// DeleteMembership removes a membership by ID.
func (tx *transaction) DeleteMembership(id string) error {
	current, ok := tx.state.memberships[id]
	if !ok {
		return errMissing(domain.EntityVariantSetMembership, id)
	}
	tx.removeMembership(id, current)
	return nil
}

func (tx *transaction) removeMembership(id string, m Membership) {
	delete(tx.state.memberships, id)
	delete(tx.state.membershipKeys, m.Key())
	tx.recordChange(Change{Entity: domain.EntityVariantSetMembership, Action: domain.ActionDelete, Before: m})
}

// CreateVariantCallerData stores caller output for an existing variant.
func (tx *transaction) CreateVariantCallerData(d CallerData) (CallerData, error) {
	tx.stamp(&d.Base)
	if err := mustNotExist(tx.state.callerData, domain.EntityVariantCallerData, d.ID); err != nil {
		return CallerData{}, err
	}
	if _, ok := tx.state.variants[d.VariantID]; !ok {
		return CallerData{}, errMissing(domain.EntityVariant, d.VariantID)
	}
	if d.Data == nil {
		d.Data = map[string]any{}
	}
	tx.state.callerData[d.ID] = cloneCallerData(d)
	tx.recordChange(Change{Entity: domain.EntityVariantCallerData, Action: domain.ActionCreate, After: cloneCallerData(d)})
	return cloneCallerData(d), nil
}

// UpdateVariantCallerData mutates caller data in place.
func (tx *transaction) UpdateVariantCallerData(id string, mutator func(*CallerData) error) (CallerData, error) {
	current, ok := tx.state.callerData[id]
	if !ok {
		return CallerData{}, errMissing(domain.EntityVariantCallerData, id)
	}
	before := cloneCallerData(current)
	current = cloneCallerData(current)
	if err := mutator(&current); err != nil {
		return CallerData{}, err
	}
	current.ID = id
	current.VariantID = before.VariantID
	current.UpdatedAt = tx.now
	if current.Data == nil {
		current.Data = map[string]any{}
	}
	tx.state.callerData[id] = cloneCallerData(current)
	tx.recordChange(Change{Entity: domain.EntityVariantCallerData, Action: domain.ActionUpdate, Before: before, After: cloneCallerData(current)})
	return cloneCallerData(current), nil
}

// CreateAlignmentGroup stores a new alignment group.
func (tx *transaction) CreateAlignmentGroup(a AlignmentGroup) (AlignmentGroup, error) {
	tx.stamp(&a.Base)
	if err := mustNotExist(tx.state.alignmentGroups, domain.EntityAlignmentGroup, a.ID); err != nil {
		return AlignmentGroup{}, err
	}
	if _, ok := tx.state.referenceGenomes[a.ReferenceGenomeID]; !ok {
		return AlignmentGroup{}, errMissing(domain.EntityReferenceGenome, a.ReferenceGenomeID)
	}
	if a.Aligner == "" {
		a.Aligner = domain.AlignerBWA
	}
	a.DatasetIDs = nil
	tx.state.alignmentGroups[a.ID] = cloneAlignmentGroup(a)
	tx.recordChange(Change{Entity: domain.EntityAlignmentGroup, Action: domain.ActionCreate, After: cloneAlignmentGroup(a)})
	return cloneAlignmentGroup(a), nil
}

// CreateExperimentSample stores a new sample under an existing project.
func (tx *transaction) CreateExperimentSample(s ExperimentSample) (ExperimentSample, error) {
	tx.stamp(&s.Base)
	if err := mustNotExist(tx.state.samples, domain.EntityExperimentSample, s.ID); err != nil {
		return ExperimentSample{}, err
	}
	if _, ok := tx.state.projects[s.ProjectID]; !ok {
		return ExperimentSample{}, errMissing(domain.EntityProject, s.ProjectID)
	}
	s.DatasetIDs = nil
	tx.state.samples[s.ID] = cloneSample(s)
	tx.recordChange(Change{Entity: domain.EntityExperimentSample, Action: domain.ActionCreate, After: cloneSample(s)})
	return cloneSample(s), nil
}

// CreateSampleAlignment relates a sample to an alignment group.
func (tx *transaction) CreateSampleAlignment(s SampleAlignment) (SampleAlignment, error) {
	tx.stamp(&s.Base)
	if err := mustNotExist(tx.state.sampleAlignments, domain.EntitySampleAlignment, s.ID); err != nil {
		return SampleAlignment{}, err
	}
	if _, ok := tx.state.alignmentGroups[s.AlignmentGroupID]; !ok {
		return SampleAlignment{}, errMissing(domain.EntityAlignmentGroup, s.AlignmentGroupID)
	}
	if _, ok := tx.state.samples[s.ExperimentSampleID]; !ok {
		return SampleAlignment{}, errMissing(domain.EntityExperimentSample, s.ExperimentSampleID)
	}
	s.DatasetIDs = nil
	tx.state.sampleAlignments[s.ID] = cloneSampleAlignment(s)
	tx.recordChange(Change{Entity: domain.EntitySampleAlignment, Action: domain.ActionCreate, After: cloneSampleAlignment(s)})
	return cloneSampleAlignment(s), nil
}

// CreateDataset stores a dataset record. The file itself lives in the blob store.
func (tx *transaction) CreateDataset(d Dataset) (Dataset, error) {
	tx.stamp(&d.Base)
	if err := mustNotExist(tx.state.datasets, domain.EntityDataset, d.ID); err != nil {
		return Dataset{}, err
	}
	if d.Type == "" {
		return Dataset{}, fmt.Errorf("dataset type required")
	}
	if d.Status == "" {
		d.Status = domain.DatasetStatusUnknown
	}
	tx.state.datasets[d.ID] = d
	tx.recordChange(Change{Entity: domain.EntityDataset, Action: domain.ActionCreate, After: d})
	return d, nil
}

// UpdateDataset mutates a dataset record.
func (tx *transaction) UpdateDataset(id string, mutator func(*Dataset) error) (Dataset, error) {
	current, ok := tx.state.datasets[id]
	if !ok {
		return Dataset{}, errMissing(domain.EntityDataset, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Dataset{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.datasets[id] = current
	tx.recordChange(Change{Entity: domain.EntityDataset, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// AttachDataset adds a dataset to the dataset set of its owning entity.
func (tx *transaction) AttachDataset(owner domain.EntityType, ownerID, datasetID string) error {
	if _, ok := tx.state.datasets[datasetID]; !ok {
		return errMissing(domain.EntityDataset, datasetID)
	}
	switch owner {
	case domain.EntityReferenceGenome:
		rg, ok := tx.state.referenceGenomes[ownerID]
		if !ok {
			return errMissing(owner, ownerID)
		}
		if !containsString(rg.DatasetIDs, datasetID) {
			rg = cloneReferenceGenome(rg)
			rg.DatasetIDs = append(rg.DatasetIDs, datasetID)
			tx.state.referenceGenomes[ownerID] = rg
		}
	case domain.EntityAlignmentGroup:
		ag, ok := tx.state.alignmentGroups[ownerID]
		if !ok {
			return errMissing(owner, ownerID)
		}
		if !containsString(ag.DatasetIDs, datasetID) {
			ag = cloneAlignmentGroup(ag)
			ag.DatasetIDs = append(ag.DatasetIDs, datasetID)
			tx.state.alignmentGroups[ownerID] = ag
		}
	case domain.EntityExperimentSample:
		s, ok := tx.state.samples[ownerID]
		if !ok {
			return errMissing(owner, ownerID)
		}
		if !containsString(s.DatasetIDs, datasetID) {
			s = cloneSample(s)
			s.DatasetIDs = append(s.DatasetIDs, datasetID)
			tx.state.samples[ownerID] = s
		}
	case domain.EntitySampleAlignment:
		s, ok := tx.state.sampleAlignments[ownerID]
		if !ok {
			return errMissing(owner, ownerID)
		}
		if !containsString(s.DatasetIDs, datasetID) {
			s = cloneSampleAlignment(s)
			s.DatasetIDs = append(s.DatasetIDs, datasetID)
			tx.state.sampleAlignments[ownerID] = s
		}
	default:
		return fmt.Errorf("%s cannot own datasets", owner)
	}
	tx.recordChange(Change{Entity: owner, Action: domain.ActionUpdate, After: datasetID})
	return nil
}
