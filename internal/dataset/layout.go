package dataset

import "path"

// Media-relative data directories for each model. Every file a model owns
// lives below its directory.

// ProjectDir returns the data directory of a project.
func ProjectDir(projectID string) string {
	return path.Join("projects", projectID)
}

// ReferenceGenomeDir returns the data directory of a reference genome.
func ReferenceGenomeDir(projectID, referenceGenomeID string) string {
	return path.Join(ProjectDir(projectID), "ref_genomes", referenceGenomeID)
}

// SampleDir returns the data directory of an experiment sample.
func SampleDir(projectID, sampleID string) string {
	return path.Join(ProjectDir(projectID), "samples", sampleID)
}

// AlignmentGroupDir returns the data directory of an alignment group.
func AlignmentGroupDir(projectID, alignmentGroupID string) string {
	return path.Join(ProjectDir(projectID), "alignment_groups", alignmentGroupID)
}

// SampleAlignmentDir returns the data directory of one sample's alignment within a group.
func SampleAlignmentDir(projectID, alignmentGroupID, sampleAlignmentID string) string {
	return path.Join(AlignmentGroupDir(projectID, alignmentGroupID), "sample_alignment_"+sampleAlignmentID)
}

// VelvetDir returns the assembler output directory of a sample alignment.
func VelvetDir(sampleAlignmentDir string) string {
	return path.Join(sampleAlignmentDir, "velvet")
}
