package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/infra/persistence/memory"
	"genomedesigner/internal/variantset"
	"genomedesigner/pkg/domain"
)

var (
	// ErrNoBlobStore is returned by file operations on a service built without a blob store.
	ErrNoBlobStore = errors.New("service has no blob store")
	// ErrAlreadyCompressed is returned when compressing a compressed dataset.
	ErrAlreadyCompressed = errors.New("dataset is already compressed")
)

// Service exposes transactional operations over the genome designer schema.
// Every operation is traced, timed, audited and logged.
type Service struct {
	store   PersistentStore
	blobs   blob.Store
	logger  Logger
	clock   Clock
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the clock used for timings. Stores that stamp records with
// their own clock (the memory store and its durable wrappers) adopt it too.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(tracer Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.audit = recorder
		}
	}
}

// WithBlobStore sets the media store holding dataset files.
func WithBlobStore(store blob.Store) Option {
	return func(s *Service) {
		s.blobs = store
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		clock:   systemClock{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, isDefault := s.clock.(systemClock); !isDefault {
		if stamper, ok := store.(interface{ SetNowFunc(func() time.Time) }); ok {
			stamper.SetNowFunc(s.clock.Now)
		}
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying persistent store.
func (s *Service) Store() PersistentStore { return s.store }

// Blobs returns the media store, or nil when none is configured.
func (s *Service) Blobs() blob.Store { return s.blobs }

// observe closes out an operation: span, metrics, audit and log.
func (s *Service) observe(ctx context.Context, op string, entity EntityType, entityID string, start time.Time, span TraceSpan, err error) {
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	entry := AuditEntry{
		Operation: op,
		Entity:    entity,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		At:        start,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("operation failed", "operation", op, "entity", string(entity), "entity_id", entityID, "error", err)
	} else {
		s.logger.Debug("operation completed", "operation", op, "entity", string(entity), "entity_id", entityID, "duration", duration)
	}
	s.audit.Record(ctx, entry)
}

// run executes fn in a store transaction wrapped in the observability hooks.
// id is read after fn returns so creations can report the new record id.
func (s *Service) run(ctx context.Context, op string, entity EntityType, id *string, fn func(Transaction) error) (Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	res, err := s.store.RunInTransaction(ctx, fn)
	var entityID string
	if id != nil {
		entityID = *id
	}
	s.observe(ctx, op, entity, entityID, start, span, err)
	for _, v := range res.Violations {
		if v.Severity == SeverityWarn {
			s.logger.Warn("rule warning", "rule", v.Rule, "entity", string(v.Entity), "entity_id", v.EntityID, "message", v.Message)
		}
	}
	return res, err
}

// view runs fn against committed state with the observability hooks.
func (s *Service) view(ctx context.Context, op string, entity EntityType, id string, fn func(TransactionView) error) error {
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	err := s.store.View(ctx, fn)
	s.observe(ctx, op, entity, id, start, span, err)
	return err
}

// CreateProject persists a new project.
func (s *Service) CreateProject(ctx context.Context, project Project) (Project, Result, error) {
	var created Project
	res, err := s.run(ctx, "create_project", EntityProject, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateProject(project)
		return err
	})
	return created, res, err
}

// CreateReferenceGenome persists a reference genome under an existing project.
func (s *Service) CreateReferenceGenome(ctx context.Context, genome ReferenceGenome) (ReferenceGenome, Result, error) {
	var created ReferenceGenome
	res, err := s.run(ctx, "create_reference_genome", EntityReferenceGenome, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateReferenceGenome(genome)
		return err
	})
	return created, res, err
}

// UpdateReferenceGenome mutates a reference genome using the provided mutator.
func (s *Service) UpdateReferenceGenome(ctx context.Context, id string, mutator func(*ReferenceGenome) error) (ReferenceGenome, Result, error) {
	var updated ReferenceGenome
	res, err := s.run(ctx, "update_reference_genome", EntityReferenceGenome, &id, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateReferenceGenome(id, mutator)
		return err
	})
	return updated, res, err
}

// CreateVariant persists a variant call.
func (s *Service) CreateVariant(ctx context.Context, variant Variant) (Variant, Result, error) {
	var created Variant
	res, err := s.run(ctx, "create_variant", EntityVariant, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateVariant(variant)
		return err
	})
	return created, res, err
}

// DeleteVariant removes a variant together with its memberships and caller data.
func (s *Service) DeleteVariant(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_variant", EntityVariant, &id, func(tx Transaction) error {
		return tx.DeleteVariant(id)
	})
}

// SetVariantCallerData attaches raw caller output to a variant. data accepts
// anything VariantCallerCommonData.SetData does.
func (s *Service) SetVariantCallerData(ctx context.Context, variantID, sourceDatasetID string, data any) (CallerData, Result, error) {
	record := CallerData{VariantID: variantID, SourceDatasetID: sourceDatasetID}
	if err := record.SetData(data); err != nil {
		return CallerData{}, Result{}, err
	}
	var created CallerData
	res, err := s.run(ctx, "set_variant_caller_data", EntityCallerData, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateVariantCallerData(record)
		return err
	})
	return created, res, err
}

// CreateVariantSet persists a new, empty variant set.
func (s *Service) CreateVariantSet(ctx context.Context, set VariantSet) (VariantSet, Result, error) {
	var created VariantSet
	res, err := s.run(ctx, "create_variant_set", EntityVariantSet, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateVariantSet(set)
		return err
	})
	return created, res, err
}

// DeleteVariantSet removes a variant set and its memberships. Variants are kept.
func (s *Service) DeleteVariantSet(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, "delete_variant_set", EntityVariantSet, &id, func(tx Transaction) error {
		return tx.DeleteVariantSet(id)
	})
}

// AddOrRemoveVariantsFromSet reconciles the membership of a variant set.
// Validation problems come back as error-level outcomes with a nil error.
func (s *Service) AddOrRemoveVariantsFromSet(ctx context.Context, req variantset.Request) (variantset.Outcome, error) {
	const op = "reconcile_variant_set"
	ctx, span := s.tracer.Start(ctx, op)
	start := s.clock.Now()
	reconciler := variantset.NewReconciler(variantset.NewStoreTransactor(s.store), variantset.WithLogger(s.logger))
	out, err := reconciler.Reconcile(ctx, req)
	s.observe(ctx, op, EntityVariantSet, req.SetID, start, span, err)
	return out, err
}

// VariantSetMembers returns the ids of the variants in a set, in store order.
func (s *Service) VariantSetMembers(ctx context.Context, setID string) ([]string, error) {
	var ids []string
	err := s.view(ctx, "list_variant_set_members", EntityVariantSet, setID, func(view TransactionView) error {
		if _, ok := view.FindVariantSet(setID); !ok {
			return domain.ErrNotFound{Entity: EntityVariantSet, ID: setID}
		}
		for _, m := range view.ListMemberships() {
			if m.VariantSetID == setID {
				ids = append(ids, m.VariantID)
			}
		}
		return nil
	})
	return ids, err
}

// CreateAlignmentGroup persists an alignment group for a reference genome.
func (s *Service) CreateAlignmentGroup(ctx context.Context, group AlignmentGroup) (AlignmentGroup, Result, error) {
	var created AlignmentGroup
	res, err := s.run(ctx, "create_alignment_group", EntityAlignmentGroup, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateAlignmentGroup(group)
		return err
	})
	return created, res, err
}

// CreateExperimentSample persists a sample under a project.
func (s *Service) CreateExperimentSample(ctx context.Context, sample ExperimentSample) (ExperimentSample, Result, error) {
	var created ExperimentSample
	res, err := s.run(ctx, "create_experiment_sample", EntityExperimentSample, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateExperimentSample(sample)
		return err
	})
	return created, res, err
}

// CreateSampleAlignment adds a sample to an alignment group.
func (s *Service) CreateSampleAlignment(ctx context.Context, groupID, sampleID string) (SampleAlignment, Result, error) {
	var created SampleAlignment
	res, err := s.run(ctx, "create_sample_alignment", EntitySampleAlignment, &created.ID, func(tx Transaction) error {
		var err error
		created, err = tx.CreateSampleAlignment(SampleAlignment{AlignmentGroupID: groupID, ExperimentSampleID: sampleID})
		return err
	})
	return created, res, err
}

// AlignedSample is a sample alignment resolved with its group, sample and project.
type AlignedSample struct {
	ProjectID string
	Group     AlignmentGroup
	Alignment SampleAlignment
	Sample    ExperimentSample
}

// AlignmentGroupSamples resolves every sample alignment of a group.
func (s *Service) AlignmentGroupSamples(ctx context.Context, groupID string) ([]AlignedSample, error) {
	var out []AlignedSample
	err := s.view(ctx, "list_alignment_group_samples", EntityAlignmentGroup, groupID, func(view TransactionView) error {
		group, ok := view.FindAlignmentGroup(groupID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityAlignmentGroup, ID: groupID}
		}
		genome, ok := view.FindReferenceGenome(group.ReferenceGenomeID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityReferenceGenome, ID: group.ReferenceGenomeID}
		}
		for _, sa := range view.ListSampleAlignments() {
			if sa.AlignmentGroupID != groupID {
				continue
			}
			sample, ok := view.FindExperimentSample(sa.ExperimentSampleID)
			if !ok {
				return fmt.Errorf("sample alignment %s: %w", sa.ID, domain.ErrNotFound{Entity: EntityExperimentSample, ID: sa.ExperimentSampleID})
			}
			out = append(out, AlignedSample{ProjectID: genome.ProjectID, Group: group, Alignment: sa, Sample: sample})
		}
		return nil
	})
	return out, err
}
