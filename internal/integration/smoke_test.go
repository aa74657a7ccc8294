package integration

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
	"genomedesigner/internal/genome"
	"genomedesigner/internal/variantset"
	"genomedesigner/pkg/domain"
)

const referenceFASTA = ">chr1\nACGTACGT\n>chr2\nGGCC\n"

// TestIntegrationSmoke runs import, compression and set reconciliation
// against every in-process storage and blob driver.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	stores := []struct {
		name string
		opts func(t *testing.T) core.StorageOptions
	}{
		{"memory-store", func(*testing.T) core.StorageOptions {
			return core.StorageOptions{Driver: core.StorageMemory}
		}},
		{"sqlite-store", func(t *testing.T) core.StorageOptions {
			return core.StorageOptions{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "core.db")}
		}},
	}
	blobDrivers := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{"memory-blob", func(*testing.T) blob.Store { return blob.NewMemory() }},
		{"filesystem-blob", func(t *testing.T) blob.Store {
			fs, err := blob.NewFilesystem(t.TempDir())
			if err != nil {
				t.Fatalf("new filesystem blob: %v", err)
			}
			return fs
		}},
		{"mock-s3-blob", func(*testing.T) blob.Store { return blob.NewMockS3ForTests() }},
	}

	for _, sv := range stores {
		for _, bv := range blobDrivers {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				store, closer, err := core.OpenPersistentStore(ctx, sv.opts(t), core.NewDefaultRulesEngine())
				if err != nil {
					t.Fatalf("open store: %v", err)
				}
				t.Cleanup(func() { _ = closer.Close() })
				blobs := bv.open(t)
				var traces bytes.Buffer
				tracer := core.NewJSONTracer(&traces, 0)
				metrics := core.NewExpvarMetricsRecorder("")
				svc := core.NewService(store, core.WithBlobStore(blobs), core.WithTracer(tracer), core.WithMetricsRecorder(metrics))

				project, _, err := svc.CreateProject(ctx, core.Project{Title: "smoke"})
				if err != nil {
					t.Fatalf("create project: %v", err)
				}
				ref, err := genome.ImportFASTA(ctx, svc, blobs, project.ID, "MG1655", strings.NewReader(referenceFASTA))
				if err != nil {
					t.Fatalf("import: %v", err)
				}
				if ref.NumChromosomes != 2 || ref.NumBases != 12 {
					t.Fatalf("unexpected counts %+v", ref)
				}

				owner := core.DatasetOwner{Entity: core.EntityReferenceGenome, ID: ref.ID}
				fasta, err := svc.DatasetWithType(ctx, owner, domain.DatasetTypeReferenceGenomeFASTA, false)
				if err != nil {
					t.Fatalf("dataset lookup: %v", err)
				}
				gz, err := svc.CompressDataset(ctx, fasta.ID, "")
				if err != nil {
					t.Fatalf("compress: %v", err)
				}
				_, rc, err := blobs.Get(ctx, gz.FilesystemLocation)
				if err != nil {
					t.Fatalf("get compressed: %v", err)
				}
				zr, err := gzip.NewReader(rc)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				plain, err := io.ReadAll(zr)
				_ = rc.Close()
				if err != nil || string(plain) != referenceFASTA {
					t.Fatalf("round trip: %q %v", plain, err)
				}

				set, _, err := svc.CreateVariantSet(ctx, core.VariantSet{ReferenceGenomeID: ref.ID, Label: "targets"})
				if err != nil {
					t.Fatalf("create set: %v", err)
				}
				var ids []string
				for i := int64(1); i <= 2; i++ {
					v, _, err := svc.CreateVariant(ctx, core.Variant{ReferenceGenomeID: ref.ID, Chromosome: "chr1", Position: i})
					if err != nil {
						t.Fatalf("create variant: %v", err)
					}
					ids = append(ids, v.ID)
				}
				out, err := svc.AddOrRemoveVariantsFromSet(ctx, variantset.Request{SetID: set.ID, VariantIDs: ids, Action: variantset.ActionAdd})
				if err != nil || out.Level != variantset.LevelInfo || out.Added != 2 {
					t.Fatalf("add: %+v %v", out, err)
				}
				members, err := svc.VariantSetMembers(ctx, set.ID)
				if err != nil || len(members) != 2 {
					t.Fatalf("members: %v %v", members, err)
				}

				if len(tracer.Entries()) == 0 || traces.Len() == 0 {
					t.Fatalf("expected spans to be recorded")
				}
				if metrics.Snapshot()["compress_dataset"].Success != 1 {
					t.Fatalf("expected compress_dataset metric, got %+v", metrics.Snapshot())
				}
			})
		}
	}
}
