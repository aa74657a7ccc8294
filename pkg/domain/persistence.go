package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView

	CreateProject(Project) (Project, error)
	CreateReferenceGenome(ReferenceGenome) (ReferenceGenome, error)
	UpdateReferenceGenome(id string, mutator func(*ReferenceGenome) error) (ReferenceGenome, error)

	CreateVariant(Variant) (Variant, error)
	DeleteVariant(id string) error
	CreateVariantSet(VariantSet) (VariantSet, error)
	DeleteVariantSet(id string) error
	CreateMembership(VariantToVariantSet) (VariantToVariantSet, error)
	DeleteMembership(id string) error
	CreateVariantCallerData(VariantCallerCommonData) (VariantCallerCommonData, error)
	UpdateVariantCallerData(id string, mutator func(*VariantCallerCommonData) error) (VariantCallerCommonData, error)

	CreateAlignmentGroup(AlignmentGroup) (AlignmentGroup, error)
	CreateExperimentSample(ExperimentSample) (ExperimentSample, error)
	CreateSampleAlignment(ExperimentSampleToAlignment) (ExperimentSampleToAlignment, error)

	CreateDataset(Dataset) (Dataset, error)
	UpdateDataset(id string, mutator func(*Dataset) error) (Dataset, error)
	AttachDataset(owner EntityType, ownerID, datasetID string) error
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	FindProject(id string) (Project, bool)
	FindReferenceGenome(id string) (ReferenceGenome, bool)
	FindMembership(variantID, setID string) (VariantToVariantSet, bool)
	FindSampleAlignment(id string) (ExperimentSampleToAlignment, bool)
	FindDataset(id string) (Dataset, bool)
	FindVariantCallerData(id string) (VariantCallerCommonData, bool)
	ListReferenceGenomes() []ReferenceGenome
	ListDatasets() []Dataset
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetVariant(id string) (Variant, bool)
	GetVariantSet(id string) (VariantSet, bool)
	GetDataset(id string) (Dataset, bool)
	ListVariants() []Variant
	ListVariantSets() []VariantSet
	ListMemberships() []VariantToVariantSet
	ListSampleAlignments() []ExperimentSampleToAlignment
}
