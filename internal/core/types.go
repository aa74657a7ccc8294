package core

import "genomedesigner/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Project            = domain.Project
	ReferenceGenome    = domain.ReferenceGenome
	Variant            = domain.Variant
	VariantSet         = domain.VariantSet
	Membership         = domain.VariantToVariantSet
	CallerData         = domain.VariantCallerCommonData
	AlignmentGroup     = domain.AlignmentGroup
	ExperimentSample   = domain.ExperimentSample
	SampleAlignment    = domain.ExperimentSampleToAlignment
	Dataset            = domain.Dataset
	DatasetType        = domain.DatasetType
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityProject          = domain.EntityProject
	EntityReferenceGenome  = domain.EntityReferenceGenome
	EntityVariant          = domain.EntityVariant
	EntityVariantSet       = domain.EntityVariantSet
	EntityMembership       = domain.EntityVariantSetMembership
	EntityCallerData       = domain.EntityVariantCallerData
	EntityAlignmentGroup   = domain.EntityAlignmentGroup
	EntityExperimentSample = domain.EntityExperimentSample
	EntitySampleAlignment  = domain.EntitySampleAlignment
	EntityDataset          = domain.EntityDataset
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)

// NewRulesEngine constructs an empty rules engine.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }
