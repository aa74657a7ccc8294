package memory

// BucketNames lists the snapshot buckets in the order durable backends persist them.
var BucketNames = []string{
	"projects",
	"reference_genomes",
	"variants",
	"variant_sets",
	"memberships",
	"caller_data",
	"alignment_groups",
	"samples",
	"sample_alignments",
	"datasets",
}

// Bucket returns a pointer to the snapshot field backing the named bucket so
// callers can marshal it or decode into it. Unknown names return nil.
func (s *Snapshot) Bucket(name string) any {
	switch name {
	case "projects":
		return &s.Projects
	case "reference_genomes":
		return &s.ReferenceGenomes
	case "variants":
		return &s.Variants
	case "variant_sets":
		return &s.VariantSets
	case "memberships":
		return &s.Memberships
	case "caller_data":
		return &s.CallerData
	case "alignment_groups":
		return &s.AlignmentGroups
	case "samples":
		return &s.Samples
	case "sample_alignments":
		return &s.SampleAlignments
	case "datasets":
		return &s.Datasets
	}
	return nil
}
