// Package genome imports reference genomes into a project.
package genome

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
	"genomedesigner/internal/dataset"
	"genomedesigner/pkg/domain"
)

// Format names a reference genome file format.
type Format string

const (
	FormatFASTA   Format = "fasta"
	FormatGenBank Format = "genbank"
)

// FASTAFile is the name of the imported sequence file inside the reference genome directory.
const FASTAFile = "reference.fa"

var (
	// ErrUnsupportedFormat is returned for formats that cannot be imported.
	ErrUnsupportedFormat = errors.New("unsupported reference genome format")
	// ErrEmptyGenome is returned when the input holds no sequence records.
	ErrEmptyGenome = errors.New("reference genome has no sequences")
)

// Importer is the subset of *core.Service used by an import.
type Importer interface {
	CreateReferenceGenome(ctx context.Context, genome core.ReferenceGenome) (core.ReferenceGenome, core.Result, error)
	UpdateReferenceGenome(ctx context.Context, id string, mutator func(*core.ReferenceGenome) error) (core.ReferenceGenome, core.Result, error)
	CreateDataset(ctx context.Context, owner core.DatasetOwner, ds core.Dataset) (core.Dataset, core.Result, error)
}

// Import dispatches on format. Only FASTA is supported.
func Import(ctx context.Context, svc Importer, blobs blob.Store, projectID, label string, format Format, r io.Reader) (core.ReferenceGenome, error) {
	switch format {
	case FormatFASTA, "":
		return ImportFASTA(ctx, svc, blobs, projectID, label, r)
	default:
		return core.ReferenceGenome{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// ImportFASTA creates a reference genome from a FASTA stream, stores the file
// in the genome's data directory, records it as a REFERENCE_GENOME_FASTA
// dataset and sets the chromosome and base counts.
func ImportFASTA(ctx context.Context, svc Importer, blobs blob.Store, projectID, label string, r io.Reader) (core.ReferenceGenome, error) {
	br := bufio.NewReader(r)
	if err := sniffFASTA(br); err != nil {
		return core.ReferenceGenome{}, err
	}
	genome, _, err := svc.CreateReferenceGenome(ctx, core.ReferenceGenome{ProjectID: projectID, Label: label})
	if err != nil {
		return core.ReferenceGenome{}, err
	}

	key := path.Join(dataset.ReferenceGenomeDir(projectID, genome.ID), FASTAFile)
	var records int
	var bases int64
	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		tee := io.TeeReader(br, pw)
		var err error
		records, bases, err = countSequences(tee)
		if err == nil {
			_, err = io.Copy(io.Discard, tee)
		}
		pw.CloseWithError(err)
	}()
	_, err = blobs.Put(ctx, key, pr, blob.PutOptions{ContentType: "text/x-fasta"})
	_ = pr.CloseWithError(err)
	<-done
	if err != nil {
		return genome, fmt.Errorf("store %s: %w", key, err)
	}
	if records == 0 {
		_, _ = blobs.Delete(ctx, key)
		return genome, ErrEmptyGenome
	}

	_, _, err = svc.CreateDataset(ctx, core.DatasetOwner{Entity: core.EntityReferenceGenome, ID: genome.ID}, core.Dataset{
		Label:              "Reference Genome FASTA",
		Type:               domain.DatasetTypeReferenceGenomeFASTA,
		FilesystemLocation: key,
		Status:             domain.DatasetStatusReady,
	})
	if err != nil {
		_, _ = blobs.Delete(ctx, key)
		return genome, err
	}
	genome, _, err = svc.UpdateReferenceGenome(ctx, genome.ID, func(g *core.ReferenceGenome) error {
		g.NumChromosomes = records
		g.NumBases = bases
		return nil
	})
	return genome, err
}

// sniffFASTA checks the first non-blank byte without consuming input.
func sniffFASTA(br *bufio.Reader) error {
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return err
	}
	head = bytes.TrimLeft(head, " \t\r\n")
	switch {
	case len(head) == 0:
		return ErrEmptyGenome
	case head[0] == '>':
		return nil
	case bytes.HasPrefix(head, []byte("LOCUS")):
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, FormatGenBank)
	default:
		return fmt.Errorf("%w: input is not FASTA", ErrUnsupportedFormat)
	}
}

func countSequences(r io.Reader) (records int, bases int64, err error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA)))
	for sc.Next() {
		records++
		bases += int64(sc.Seq().(*linear.Seq).Len())
	}
	return records, bases, sc.Error()
}
