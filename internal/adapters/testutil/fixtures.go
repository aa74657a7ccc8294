// Package testutil seeds services for adapter tests so handler tests share
// one fixture shape.
package testutil

import (
	"context"
	"fmt"
	"strings"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
	"genomedesigner/internal/dataset"
	"genomedesigner/pkg/domain"
)

// ReferenceFASTA is the content of the seeded reference genome file.
const ReferenceFASTA = ">chr\nACGTACGT\n"

// Fixture is an in-memory service with one project, reference genome and
// FASTA dataset already stored.
type Fixture struct {
	Service *core.Service
	Blobs   blob.Store
	Project core.Project
	Genome  core.ReferenceGenome
	Dataset core.Dataset
}

// NewFixture builds a Fixture. Options are passed to the service.
func NewFixture(ctx context.Context, opts ...core.Option) (Fixture, error) {
	f := Fixture{Blobs: blob.NewMemory()}
	f.Service = core.NewInMemoryService(core.NewDefaultRulesEngine(), append([]core.Option{core.WithBlobStore(f.Blobs)}, opts...)...)

	var err error
	if f.Project, _, err = f.Service.CreateProject(ctx, core.Project{Title: "fixture"}); err != nil {
		return f, fmt.Errorf("create project: %w", err)
	}
	if f.Genome, _, err = f.Service.CreateReferenceGenome(ctx, core.ReferenceGenome{ProjectID: f.Project.ID, Label: "ref"}); err != nil {
		return f, fmt.Errorf("create genome: %w", err)
	}
	key := dataset.ReferenceGenomeDir(f.Project.ID, f.Genome.ID) + "/ref.fa"
	if _, err := f.Blobs.Put(ctx, key, strings.NewReader(ReferenceFASTA), blob.PutOptions{}); err != nil {
		return f, fmt.Errorf("put reference: %w", err)
	}
	f.Dataset, _, err = f.Service.CreateDataset(ctx, core.DatasetOwner{Entity: core.EntityReferenceGenome, ID: f.Genome.ID}, core.Dataset{
		Label:              "Reference Genome FASTA",
		Type:               domain.DatasetTypeReferenceGenomeFASTA,
		FilesystemLocation: key,
		Status:             domain.DatasetStatusReady,
	})
	if err != nil {
		return f, fmt.Errorf("create dataset: %w", err)
	}
	return f, nil
}

// SeedVariants creates n variants on the fixture genome and returns their ids.
func (f Fixture) SeedVariants(ctx context.Context, n int) ([]string, error) {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		v, _, err := f.Service.CreateVariant(ctx, core.Variant{ReferenceGenomeID: f.Genome.ID, Chromosome: "chr", Position: int64(i)})
		if err != nil {
			return nil, fmt.Errorf("create variant: %w", err)
		}
		ids = append(ids, v.ID)
	}
	return ids, nil
}
