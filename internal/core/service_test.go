package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"genomedesigner/internal/variantset"
	"genomedesigner/pkg/domain"
)

type stubClock struct{ t time.Time }

func (s stubClock) Now() time.Time { return s.t }

type captureLogger struct{ calls []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.calls = append(c.calls, "d:"+msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.calls = append(c.calls, "i:"+msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.calls = append(c.calls, "w:"+msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.calls = append(c.calls, "e:"+msg) }

func (c *captureLogger) has(prefix string) bool {
	for _, call := range c.calls {
		if strings.HasPrefix(call, prefix) {
			return true
		}
	}
	return false
}

type genomeFixture struct {
	project domain.Project
	genome  domain.ReferenceGenome
}

func seedGenome(t *testing.T, svc *Service) genomeFixture {
	t.Helper()
	ctx := context.Background()
	var f genomeFixture
	var err error
	if f.project, _, err = svc.CreateProject(ctx, Project{Title: "recoding"}); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if f.genome, _, err = svc.CreateReferenceGenome(ctx, ReferenceGenome{ProjectID: f.project.ID, Label: "MG1655"}); err != nil {
		t.Fatalf("create genome: %v", err)
	}
	return f
}

func TestServiceOptionsApplyClockAndLogger(t *testing.T) {
	fixed := time.Date(2014, 7, 18, 0, 0, 0, 0, time.UTC)
	log := &captureLogger{}
	svc := NewInMemoryService(nil, WithClock(stubClock{t: fixed}), WithLogger(log), WithLogger(nil))
	f := seedGenome(t, svc)
	if !f.project.CreatedAt.Equal(fixed) {
		t.Fatalf("expected store to stamp with service clock, got %v", f.project.CreatedAt)
	}
	if !log.has("d:operation completed") {
		t.Fatalf("expected debug log per operation, got %v", log.calls)
	}
	if _, err := svc.DeleteVariant(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error deleting missing variant")
	}
	if !log.has("e:operation failed") {
		t.Fatalf("expected error log, got %v", log.calls)
	}
}

func TestAddOrRemoveVariantsFromSet(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine())
	f := seedGenome(t, svc)
	set, _, err := svc.CreateVariantSet(ctx, VariantSet{ReferenceGenomeID: f.genome.ID, Label: "targets"})
	if err != nil {
		t.Fatalf("create set: %v", err)
	}
	var ids []string
	for i := int64(1); i <= 3; i++ {
		v, _, err := svc.CreateVariant(ctx, Variant{ReferenceGenomeID: f.genome.ID, Chromosome: "chrom", Position: i})
		if err != nil {
			t.Fatalf("create variant: %v", err)
		}
		ids = append(ids, v.ID)
	}

	out, err := svc.AddOrRemoveVariantsFromSet(ctx, variantset.Request{VariantIDs: ids, Action: variantset.ActionAdd, SetID: set.ID})
	if err != nil || out.Message != "3 variants successfully added." {
		t.Fatalf("add: %+v %v", out, err)
	}
	members, err := svc.VariantSetMembers(ctx, set.ID)
	if err != nil || len(members) != 3 {
		t.Fatalf("members: %v %v", members, err)
	}
	out, err = svc.AddOrRemoveVariantsFromSet(ctx, variantset.Request{VariantIDs: ids[:1], Action: "toggle", SetID: set.ID})
	if err != nil || out.Level != variantset.LevelError || out.Message != "Bad variantSet action type." {
		t.Fatalf("bad action: %+v %v", out, err)
	}

	if _, err := svc.DeleteVariant(ctx, ids[0]); err != nil {
		t.Fatalf("delete variant: %v", err)
	}
	members, _ = svc.VariantSetMembers(ctx, set.ID)
	if len(members) != 2 {
		t.Fatalf("expected cascade to drop membership, got %v", members)
	}
	if _, err := svc.DeleteVariantSet(ctx, set.ID); err != nil {
		t.Fatalf("delete set: %v", err)
	}
	var nf domain.ErrNotFound
	if _, err := svc.VariantSetMembers(ctx, set.ID); !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(svc.Store().ListVariants()) != 2 {
		t.Fatalf("deleting a set must keep its variants")
	}
}

func TestSetVariantCallerData(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(nil)
	f := seedGenome(t, svc)
	v, _, err := svc.CreateVariant(ctx, Variant{ReferenceGenomeID: f.genome.ID, Chromosome: "chrom", Position: 7})
	if err != nil {
		t.Fatalf("create variant: %v", err)
	}
	data, _, err := svc.SetVariantCallerData(ctx, v.ID, "", `{"DP": 12}`)
	if err != nil {
		t.Fatalf("set caller data: %v", err)
	}
	if data.Data["DP"] != float64(12) {
		t.Fatalf("unexpected data %v", data.Data)
	}
	if _, _, err := svc.SetVariantCallerData(ctx, v.ID, "", 42); err == nil {
		t.Fatalf("expected unsupported data type error")
	}
}

func TestAlignmentGroupSamples(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine())
	f := seedGenome(t, svc)
	group, _, err := svc.CreateAlignmentGroup(ctx, AlignmentGroup{ReferenceGenomeID: f.genome.ID, Label: "run1"})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if group.Aligner != domain.AlignerBWA {
		t.Fatalf("expected default aligner, got %q", group.Aligner)
	}
	for _, label := range []string{"s1", "s2"} {
		sample, _, err := svc.CreateExperimentSample(ctx, ExperimentSample{ProjectID: f.project.ID, Label: label})
		if err != nil {
			t.Fatalf("create sample: %v", err)
		}
		if _, _, err := svc.CreateSampleAlignment(ctx, group.ID, sample.ID); err != nil {
			t.Fatalf("create sample alignment: %v", err)
		}
	}
	samples, err := svc.AlignmentGroupSamples(ctx, group.ID)
	if err != nil {
		t.Fatalf("alignment group samples: %v", err)
	}
	if len(samples) != 2 || samples[0].ProjectID != f.project.ID || samples[0].Group.ID != group.ID {
		t.Fatalf("unexpected samples %+v", samples)
	}

	var violation RuleViolationError
	if _, _, err := svc.CreateSampleAlignment(ctx, group.ID, samples[0].Sample.ID); !errors.As(err, &violation) {
		t.Fatalf("expected duplicate sample alignment to be blocked, got %v", err)
	}
	if _, err := svc.AlignmentGroupSamples(ctx, "missing"); err == nil {
		t.Fatalf("expected missing group error")
	}
}

func TestServiceObservabilityHooks(t *testing.T) {
	ctx := context.Background()
	audit := &MemoryAuditRecorder{}
	tracer := NewJSONTracer(nil, 0)
	metrics := NewExpvarMetricsRecorder("")
	svc := NewInMemoryService(nil, WithAuditRecorder(audit), WithTracer(tracer), WithMetricsRecorder(metrics))

	project, _, err := svc.CreateProject(ctx, Project{Title: "obs"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, _, err := svc.CreateProject(ctx, Project{}); err == nil {
		t.Fatalf("expected missing title error")
	}

	entries := audit.Entries()
	if len(entries) != 2 || entries[0].EntityID != project.ID || entries[0].Status != AuditStatusSuccess || entries[1].Status != AuditStatusError {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	spans := tracer.Entries()
	if len(spans) != 2 || spans[1].Status != "error" || spans[1].Error == "" {
		t.Fatalf("unexpected spans %+v", spans)
	}
	stats := metrics.Snapshot()["create_project"]
	if stats.Success != 1 || stats.Error != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCrossGenomeMembershipCommits(t *testing.T) {
	ctx := context.Background()
	svc := NewInMemoryService(NewDefaultRulesEngine())
	f := seedGenome(t, svc)
	other, _, err := svc.CreateReferenceGenome(ctx, ReferenceGenome{ProjectID: f.project.ID, Label: "other"})
	if err != nil {
		t.Fatalf("create genome: %v", err)
	}
	set, _, _ := svc.CreateVariantSet(ctx, VariantSet{ReferenceGenomeID: f.genome.ID, Label: "targets"})
	v, _, _ := svc.CreateVariant(ctx, Variant{ReferenceGenomeID: other.ID, Chromosome: "chrom", Position: 1})
	out, err := svc.AddOrRemoveVariantsFromSet(ctx, variantset.Request{VariantIDs: []string{v.ID}, Action: variantset.ActionAdd, SetID: set.ID})
	if err != nil || out.Level != variantset.LevelInfo {
		t.Fatalf("cross-genome add should commit with a warning: %+v %v", out, err)
	}
}
