// Package assembly maintains de novo assembler output stored under sample
// alignment data directories.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"golang.org/x/sync/errgroup"

	"genomedesigner/internal/blob"
	"genomedesigner/internal/core"
	"genomedesigner/internal/dataset"
)

// ContigsFile is the name velvet gives its assembled contigs.
const ContigsFile = "contigs.fa"

const defaultConcurrency = 4

// SampleSource resolves the sample alignments of an alignment group.
// *core.Service satisfies it.
type SampleSource interface {
	AlignmentGroupSamples(ctx context.Context, groupID string) ([]core.AlignedSample, error)
}

// Options tunes RenameContigs.
type Options struct {
	// DryRun reports the plan without writing any blob.
	DryRun bool
	// Concurrency bounds parallel copies. Zero uses a small default.
	Concurrency int
}

// Rename is one planned contig copy.
type Rename struct {
	SampleAlignmentID string `json:"sample_alignment_id"`
	SampleLabel       string `json:"sample_label"`
	From              string `json:"from"`
	To                string `json:"to"`
	Contigs           int    `json:"contigs"`
	Bases             int    `json:"bases"`
	Missing           bool   `json:"missing,omitempty"`
	Copied            bool   `json:"copied"`
}

// ErrInvalidLabel is returned when a sample label cannot be used as a file name.
var ErrInvalidLabel = errors.New("sample label is not a valid file name")

// RenameContigs copies every sample alignment's velvet contigs file in the
// group to a file named after its sample label, next to the original.
// Alignments without a contigs file are reported as Missing.
func RenameContigs(ctx context.Context, source SampleSource, blobs blob.Store, alignmentGroupID string, opts Options) ([]Rename, error) {
	samples, err := source.AlignmentGroupSamples(ctx, alignmentGroupID)
	if err != nil {
		return nil, err
	}
	plan := make([]Rename, len(samples))
	for i, s := range samples {
		label := strings.TrimSpace(s.Sample.Label)
		if label == "" || strings.ContainsAny(label, `/\`) || label == "." || label == ".." {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, s.Sample.Label)
		}
		dir := dataset.VelvetDir(dataset.SampleAlignmentDir(s.ProjectID, s.Group.ID, s.Alignment.ID))
		plan[i] = Rename{
			SampleAlignmentID: s.Alignment.ID,
			SampleLabel:       label,
			From:              path.Join(dir, ContigsFile),
			To:                path.Join(dir, label+".fa"),
		}
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range plan {
		r := &plan[i]
		g.Go(func() error {
			return apply(gctx, blobs, r, opts.DryRun)
		})
	}
	if err := g.Wait(); err != nil {
		return plan, err
	}
	return plan, nil
}

func apply(ctx context.Context, blobs blob.Store, r *Rename, dryRun bool) error {
	_, src, err := blobs.Get(ctx, r.From)
	if errors.Is(err, blob.ErrNotFound) {
		r.Missing = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("open %s: %w", r.From, err)
	}
	if dryRun {
		defer src.Close()
		r.Contigs, r.Bases, err = countContigs(src)
		if err != nil {
			return fmt.Errorf("read %s: %w", r.From, err)
		}
		return nil
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		tee := io.TeeReader(src, pw)
		var err error
		r.Contigs, r.Bases, err = countContigs(tee)
		if err == nil {
			_, err = io.Copy(io.Discard, tee)
		}
		pw.CloseWithError(errors.Join(err, src.Close()))
	}()
	_, err = blobs.Put(ctx, r.To, pr, blob.PutOptions{ContentType: "text/x-fasta", Overwrite: true})
	_ = pr.CloseWithError(err)
	<-done
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", r.From, r.To, err)
	}
	r.Copied = true
	return nil
}

// countContigs returns the number of FASTA records and their total length.
func countContigs(r io.Reader) (contigs, bases int, err error) {
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNA)))
	for sc.Next() {
		seq := sc.Seq().(*linear.Seq)
		contigs++
		bases += seq.Len()
	}
	return contigs, bases, sc.Error()
}
