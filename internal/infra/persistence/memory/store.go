// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"genomedesigner/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Project aliases domain.Project for in-memory persistence operations.
	Project = domain.Project
	// ReferenceGenome aliases domain.ReferenceGenome.
	ReferenceGenome = domain.ReferenceGenome
	// Variant aliases domain.Variant.
	Variant = domain.Variant
	// VariantSet aliases domain.VariantSet.
	VariantSet = domain.VariantSet
	// Membership aliases domain.VariantToVariantSet.
	Membership = domain.VariantToVariantSet
	// CallerData aliases domain.VariantCallerCommonData.
	CallerData = domain.VariantCallerCommonData
	// AlignmentGroup aliases domain.AlignmentGroup.
	AlignmentGroup = domain.AlignmentGroup
	// ExperimentSample aliases domain.ExperimentSample.
	ExperimentSample = domain.ExperimentSample
	// SampleAlignment aliases domain.ExperimentSampleToAlignment.
	SampleAlignment = domain.ExperimentSampleToAlignment
	// Dataset aliases domain.Dataset.
	Dataset = domain.Dataset
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	projects         map[string]Project
	referenceGenomes map[string]ReferenceGenome
	variants         map[string]Variant
	variantSets      map[string]VariantSet
	memberships      map[string]Membership
	membershipKeys   map[string]string
	callerData       map[string]CallerData
	alignmentGroups  map[string]AlignmentGroup
	samples          map[string]ExperimentSample
	sampleAlignments map[string]SampleAlignment
	datasets         map[string]Dataset
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Projects         map[string]Project          `json:"projects"`
	ReferenceGenomes map[string]ReferenceGenome  `json:"reference_genomes"`
	Variants         map[string]Variant          `json:"variants"`
	VariantSets      map[string]VariantSet       `json:"variant_sets"`
	Memberships      map[string]Membership       `json:"memberships"`
	CallerData       map[string]CallerData       `json:"caller_data"`
	AlignmentGroups  map[string]AlignmentGroup   `json:"alignment_groups"`
	Samples          map[string]ExperimentSample `json:"samples"`
	SampleAlignments map[string]SampleAlignment  `json:"sample_alignments"`
	Datasets         map[string]Dataset          `json:"datasets"`
}

func newMemoryState() memoryState {
	return memoryState{
		projects:         make(map[string]Project),
		referenceGenomes: make(map[string]ReferenceGenome),
		variants:         make(map[string]Variant),
		variantSets:      make(map[string]VariantSet),
		memberships:      make(map[string]Membership),
		membershipKeys:   make(map[string]string),
		callerData:       make(map[string]CallerData),
		alignmentGroups:  make(map[string]AlignmentGroup),
		samples:          make(map[string]ExperimentSample),
		sampleAlignments: make(map[string]SampleAlignment),
		datasets:         make(map[string]Dataset),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Projects:         make(map[string]Project, len(state.projects)),
		ReferenceGenomes: make(map[string]ReferenceGenome, len(state.referenceGenomes)),
		Variants:         make(map[string]Variant, len(state.variants)),
		VariantSets:      make(map[string]VariantSet, len(state.variantSets)),
		Memberships:      make(map[string]Membership, len(state.memberships)),
		CallerData:       make(map[string]CallerData, len(state.callerData)),
		AlignmentGroups:  make(map[string]AlignmentGroup, len(state.alignmentGroups)),
		Samples:          make(map[string]ExperimentSample, len(state.samples)),
		SampleAlignments: make(map[string]SampleAlignment, len(state.sampleAlignments)),
		Datasets:         make(map[string]Dataset, len(state.datasets)),
	}
	for k, v := range state.projects {
		s.Projects[k] = v
	}
	for k, v := range state.referenceGenomes {
		s.ReferenceGenomes[k] = cloneReferenceGenome(v)
	}
	for k, v := range state.variants {
		s.Variants[k] = v
	}
	for k, v := range state.variantSets {
		s.VariantSets[k] = v
	}
	for k, v := range state.memberships {
		s.Memberships[k] = v
	}
	for k, v := range state.callerData {
		s.CallerData[k] = cloneCallerData(v)
	}
	for k, v := range state.alignmentGroups {
		s.AlignmentGroups[k] = cloneAlignmentGroup(v)
	}
	for k, v := range state.samples {
		s.Samples[k] = cloneSample(v)
	}
	for k, v := range state.sampleAlignments {
		s.SampleAlignments[k] = cloneSampleAlignment(v)
	}
	for k, v := range state.datasets {
		s.Datasets[k] = v
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Projects {
		state.projects[k] = v
	}
	for k, v := range s.ReferenceGenomes {
		state.referenceGenomes[k] = cloneReferenceGenome(v)
	}
	for k, v := range s.Variants {
		state.variants[k] = v
	}
	for k, v := range s.VariantSets {
		state.variantSets[k] = v
	}
	for k, v := range s.Memberships {
		state.memberships[k] = v
		state.membershipKeys[v.Key()] = k
	}
	for k, v := range s.CallerData {
		state.callerData[k] = cloneCallerData(v)
	}
	for k, v := range s.AlignmentGroups {
		state.alignmentGroups[k] = cloneAlignmentGroup(v)
	}
	for k, v := range s.Samples {
		state.samples[k] = cloneSample(v)
	}
	for k, v := range s.SampleAlignments {
		state.sampleAlignments[k] = cloneSampleAlignment(v)
	}
	for k, v := range s.Datasets {
		state.datasets[k] = v
	}
	return state
}

// migrateSnapshot drops records whose references no longer resolve so imported
// state always satisfies the membership and alignment invariants.
//
//nolint:gocyclo // one pass per relation keeps parity with persisted snapshots.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Projects == nil {
		snapshot.Projects = map[string]Project{}
	}
	if snapshot.ReferenceGenomes == nil {
		snapshot.ReferenceGenomes = map[string]ReferenceGenome{}
	}
	if snapshot.Variants == nil {
		snapshot.Variants = map[string]Variant{}
	}
	if snapshot.VariantSets == nil {
		snapshot.VariantSets = map[string]VariantSet{}
	}
	if snapshot.Memberships == nil {
		snapshot.Memberships = map[string]Membership{}
	}
	if snapshot.CallerData == nil {
		snapshot.CallerData = map[string]CallerData{}
	}
	if snapshot.AlignmentGroups == nil {
		snapshot.AlignmentGroups = map[string]AlignmentGroup{}
	}
	if snapshot.Samples == nil {
		snapshot.Samples = map[string]ExperimentSample{}
	}
	if snapshot.SampleAlignments == nil {
		snapshot.SampleAlignments = map[string]SampleAlignment{}
	}
	if snapshot.Datasets == nil {
		snapshot.Datasets = map[string]Dataset{}
	}

	datasetExists := func(id string) bool {
		_, ok := snapshot.Datasets[id]
		return ok
	}

	seen := make(map[string]struct{}, len(snapshot.Memberships))
	ids := make([]string, 0, len(snapshot.Memberships))
	for id := range snapshot.Memberships {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m := snapshot.Memberships[id]
		_, variantOK := snapshot.Variants[m.VariantID]
		_, setOK := snapshot.VariantSets[m.VariantSetID]
		if _, dup := seen[m.Key()]; dup || !variantOK || !setOK {
			delete(snapshot.Memberships, id)
			continue
		}
		seen[m.Key()] = struct{}{}
	}

	for id, data := range snapshot.CallerData {
		if _, ok := snapshot.Variants[data.VariantID]; !ok {
			delete(snapshot.CallerData, id)
			continue
		}
		if data.Data == nil {
			data.Data = map[string]any{}
			snapshot.CallerData[id] = data
		}
	}

	for id, esta := range snapshot.SampleAlignments {
		_, groupOK := snapshot.AlignmentGroups[esta.AlignmentGroupID]
		_, sampleOK := snapshot.Samples[esta.ExperimentSampleID]
		if !groupOK || !sampleOK {
			delete(snapshot.SampleAlignments, id)
			continue
		}
		if filtered, changed := filterIDs(esta.DatasetIDs, datasetExists); changed {
			esta.DatasetIDs = filtered
			snapshot.SampleAlignments[id] = esta
		}
	}

	for id, rg := range snapshot.ReferenceGenomes {
		if filtered, changed := filterIDs(rg.DatasetIDs, datasetExists); changed {
			rg.DatasetIDs = filtered
			snapshot.ReferenceGenomes[id] = rg
		}
	}
	for id, ag := range snapshot.AlignmentGroups {
		if filtered, changed := filterIDs(ag.DatasetIDs, datasetExists); changed {
			ag.DatasetIDs = filtered
			snapshot.AlignmentGroups[id] = ag
		}
	}
	for id, sample := range snapshot.Samples {
		if filtered, changed := filterIDs(sample.DatasetIDs, datasetExists); changed {
			sample.DatasetIDs = filtered
			snapshot.Samples[id] = sample
		}
	}
	return snapshot
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneReferenceGenome(r ReferenceGenome) ReferenceGenome {
	cp := r
	cp.DatasetIDs = append([]string(nil), r.DatasetIDs...)
	return cp
}

func cloneAlignmentGroup(a AlignmentGroup) AlignmentGroup {
	cp := a
	cp.DatasetIDs = append([]string(nil), a.DatasetIDs...)
	return cp
}

func cloneSample(s ExperimentSample) ExperimentSample {
	cp := s
	cp.DatasetIDs = append([]string(nil), s.DatasetIDs...)
	return cp
}

func cloneSampleAlignment(s SampleAlignment) SampleAlignment {
	cp := s
	cp.DatasetIDs = append([]string(nil), s.DatasetIDs...)
	return cp
}

func cloneCallerData(c CallerData) CallerData {
	cp := c
	if c.Data != nil {
		cp.Data = make(map[string]any, len(c.Data))
		for k, v := range c.Data {
			cp.Data[k] = v
		}
	}
	return cp
}

func containsString(values []string, id string) bool {
	for _, v := range values {
		if v == id {
			return true
		}
	}
	return false
}

func filterIDs(values []string, exists func(string) bool) ([]string, bool) {
	if len(values) == 0 {
		return values, false
	}
	filtered := make([]string, 0, len(values))
	changed := false
	for _, id := range values {
		if !exists(id) || containsString(filtered, id) {
			changed = true
			continue
		}
		filtered = append(filtered, id)
	}
	return filtered, changed
}

// Store provides an in-memory transactional store for the core domain.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// newID returns an eight character hex uid, matching the short uids shown in the UI.
func (s *Store) newID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the clock used to stamp records.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces committed state only when fn succeeds and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// Read helpers ---------------------------------------------------------------

// GetVariant retrieves a variant by ID from committed state.
func (s *Store) GetVariant(id string) (Variant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.variants[id]
	return v, ok
}

// GetVariantSet retrieves a variant set by ID from committed state.
func (s *Store) GetVariantSet(id string) (VariantSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.state.variantSets[id]
	return v, ok
}

// GetDataset retrieves a dataset by ID from committed state.
func (s *Store) GetDataset(id string) (Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.datasets[id]
	return d, ok
}

// ListVariants returns all variants from committed state.
func (s *Store) ListVariants() []Variant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListVariants()
}

// ListVariantSets returns all variant sets from committed state.
func (s *Store) ListVariantSets() []VariantSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListVariantSets()
}

// ListMemberships returns all variant set memberships from committed state.
func (s *Store) ListMemberships() []Membership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListMemberships()
}

// ListSampleAlignments returns all sample alignments from committed state.
func (s *Store) ListSampleAlignments() []SampleAlignment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListSampleAlignments()
}

func mustNotExist[T any](records map[string]T, entity domain.EntityType, id string) error {
	if _, exists := records[id]; exists {
		return domain.ErrConflict{Entity: entity, Key: id}
	}
	return nil
}

func errMissing(entity domain.EntityType, id string) error {
	return domain.ErrNotFound{Entity: entity, ID: id}
}
