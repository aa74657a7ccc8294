// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by genomedesigner.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityProject identifies a project record.
	EntityProject EntityType = "project"
	// EntityReferenceGenome identifies a reference genome record.
	EntityReferenceGenome EntityType = "reference_genome"
	// EntityVariant identifies a single variant call record.
	EntityVariant EntityType = "variant"
	// EntityVariantSet identifies a user-curated variant set.
	EntityVariantSet EntityType = "variant_set"
	// EntityVariantSetMembership identifies the join between a variant and a variant set.
	EntityVariantSetMembership EntityType = "variant_to_variant_set"
	// EntityVariantCallerData identifies raw caller data attached to a variant.
	EntityVariantCallerData EntityType = "variant_caller_common_data"
	// EntityAlignmentGroup identifies an alignment group record.
	EntityAlignmentGroup EntityType = "alignment_group"
	// EntityExperimentSample identifies an experiment sample record.
	EntityExperimentSample EntityType = "experiment_sample"
	// EntitySampleAlignment identifies the join between a sample and an alignment group.
	EntitySampleAlignment EntityType = "experiment_sample_to_alignment"
	// EntityDataset identifies a dataset (file) record.
	EntityDataset EntityType = "dataset"
)

// Aligner enumerates the read aligners an alignment group may be produced with.
type Aligner string

const (
	AlignerBWA Aligner = "BWA"
)

// DatasetType classifies the contents of a dataset file.
type DatasetType string

// Dataset types produced or consumed by the pipelines.
const (
	DatasetTypeReferenceGenomeFASTA   DatasetType = "Reference Genome FASTA"
	DatasetTypeReferenceGenomeGenBank DatasetType = "Reference Genome Genbank"
	DatasetTypeFASTQ1                 DatasetType = "FASTQ Forward"
	DatasetTypeFASTQ2                 DatasetType = "FASTQ Reverse"
	DatasetTypeBWAAlign               DatasetType = "BWA BAM"
	DatasetTypeVCFFreebayes           DatasetType = "Freebayes VCF"
	DatasetTypeVCFSnpeff              DatasetType = "Snpeff VCF"
	DatasetTypeVelvetContigs          DatasetType = "Velvet Contigs"
)

// DatasetStatus tracks whether a dataset file is usable.
type DatasetStatus string

const (
	DatasetStatusUnknown  DatasetStatus = "UNKNOWN"
	DatasetStatusNotReady DatasetStatus = "NOT_READY"
	DatasetStatusReady    DatasetStatus = "READY"
	DatasetStatusFailed   DatasetStatus = "FAILED"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records. ID is the record's stable uid.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is the top-level container owning genomes and samples.
type Project struct {
	Base
	Title string `json:"title"`
	Owner string `json:"owner"`
}

// ReferenceGenome is a genome sequence that samples are aligned against.
type ReferenceGenome struct {
	Base
	ProjectID      string   `json:"project_id"`
	Label          string   `json:"label"`
	NumChromosomes int      `json:"num_chromosomes"`
	NumBases       int64    `json:"num_bases"`
	DatasetIDs     []string `json:"dataset_ids"`
}

// Variant is a single genomic variant call tied to a reference genome position.
type Variant struct {
	Base
	ReferenceGenomeID string `json:"reference_genome_id"`
	Type              string `json:"type"`
	Chromosome        string `json:"chromosome"`
	Position          int64  `json:"position"`
	RefValue          string `json:"ref_value"`
}

// VariantSet is a named, user-curated grouping of variants.
type VariantSet struct {
	Base
	ReferenceGenomeID string `json:"reference_genome_id"`
	Label             string `json:"label"`
	Notes             string `json:"notes"`
}

// VariantToVariantSet records that a variant belongs to a variant set.
type VariantToVariantSet struct {
	Base
	VariantID    string `json:"variant_id"`
	VariantSetID string `json:"variant_set_id"`
}

// MembershipKey returns the uniqueness key of a (variant, set) pair.
func MembershipKey(variantID, setID string) string {
	return variantID + "/" + setID
}

// Key returns the uniqueness key of the membership.
func (m VariantToVariantSet) Key() string {
	return MembershipKey(m.VariantID, m.VariantSetID)
}

// AlignmentGroup collects the alignments of several samples against one reference genome.
type AlignmentGroup struct {
	Base
	ReferenceGenomeID string   `json:"reference_genome_id"`
	Label             string   `json:"label"`
	Aligner           Aligner  `json:"aligner"`
	DatasetIDs        []string `json:"dataset_ids"`
}

// ExperimentSample is a sequenced sample belonging to a project.
type ExperimentSample struct {
	Base
	ProjectID  string   `json:"project_id"`
	Label      string   `json:"label"`
	DatasetIDs []string `json:"dataset_ids"`
}

// ExperimentSampleToAlignment relates a sample to an alignment group and owns the per-sample outputs.
type ExperimentSampleToAlignment struct {
	Base
	AlignmentGroupID   string   `json:"alignment_group_id"`
	ExperimentSampleID string   `json:"experiment_sample_id"`
	DatasetIDs         []string `json:"dataset_ids"`
}

// Dataset describes a file under the media root. FilesystemLocation is media-relative.
type Dataset struct {
	Base
	Label              string        `json:"label"`
	Type               DatasetType   `json:"type"`
	FilesystemLocation string        `json:"filesystem_location"`
	Status             DatasetStatus `json:"status"`
}

// VariantCallerCommonData keeps the raw per-variant caller output as a JSON object.
type VariantCallerCommonData struct {
	Base
	VariantID       string         `json:"variant_id"`
	SourceDatasetID string         `json:"source_dataset_id"`
	Data            map[string]any `json:"data"`
}

// SetData assigns the caller data from a map, a JSON object string or raw JSON bytes.
// A nil value or blank string resets the data to an empty object.
func (v *VariantCallerCommonData) SetData(value any) error {
	switch data := value.(type) {
	case nil:
		v.Data = map[string]any{}
	case map[string]any:
		v.Data = cloneData(data)
	case map[string]string:
		v.Data = make(map[string]any, len(data))
		for k, val := range data {
			v.Data[k] = val
		}
	case string:
		return v.setRawData([]byte(data))
	case []byte:
		return v.setRawData(data)
	case json.RawMessage:
		return v.setRawData(data)
	default:
		return fmt.Errorf("unsupported caller data type %T", value)
	}
	return nil
}

func (v *VariantCallerCommonData) setRawData(raw []byte) error {
	if strings.TrimSpace(string(raw)) == "" {
		v.Data = map[string]any{}
		return nil
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode caller data: %w", err)
	}
	if decoded == nil {
		decoded = map[string]any{}
	}
	v.Data = decoded
	return nil
}

// UnmarshalJSON accepts data persisted either as an object or as a JSON-encoded string.
func (v *VariantCallerCommonData) UnmarshalJSON(b []byte) error {
	type alias VariantCallerCommonData
	var aux struct {
		alias
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*v = VariantCallerCommonData(aux.alias)
	var asString string
	if len(aux.Data) > 0 && json.Unmarshal(aux.Data, &asString) == nil {
		return v.SetData(asString)
	}
	if string(aux.Data) == "null" {
		return v.SetData(nil)
	}
	return v.SetData(aux.Data)
}

func cloneData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
