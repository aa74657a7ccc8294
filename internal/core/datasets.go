package core

import (
	"context"
	"fmt"

	"genomedesigner/internal/dataset"
	"genomedesigner/pkg/domain"
)

// DatasetOwner identifies an entity whose dataset set contains a dataset.
type DatasetOwner struct {
	Entity EntityType
	ID     string
}

// CreateDataset records a dataset and attaches it to its owner in one transaction.
func (s *Service) CreateDataset(ctx context.Context, owner DatasetOwner, ds Dataset) (Dataset, Result, error) {
	var created Dataset
	res, err := s.run(ctx, "create_dataset", EntityDataset, &created.ID, func(tx Transaction) error {
		var err error
		if created, err = tx.CreateDataset(ds); err != nil {
			return err
		}
		return tx.AttachDataset(owner.Entity, owner.ID, created.ID)
	})
	return created, res, err
}

// Dataset returns a committed dataset.
func (s *Service) Dataset(ctx context.Context, id string) (Dataset, error) {
	var ds Dataset
	err := s.view(ctx, "get_dataset", EntityDataset, id, func(view TransactionView) error {
		var ok bool
		if ds, ok = view.FindDataset(id); !ok {
			return domain.ErrNotFound{Entity: EntityDataset, ID: id}
		}
		return nil
	})
	return ds, err
}

// UpdateDatasetStatus sets the status of a dataset.
func (s *Service) UpdateDatasetStatus(ctx context.Context, id string, status domain.DatasetStatus) (Dataset, Result, error) {
	var updated Dataset
	res, err := s.run(ctx, "update_dataset_status", EntityDataset, &id, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateDataset(id, func(d *Dataset) error {
			d.Status = status
			return nil
		})
		return err
	})
	return updated, res, err
}

// DatasetOwners returns every entity that lists the dataset, ordered by entity
// kind then id.
func (s *Service) DatasetOwners(ctx context.Context, datasetID string) ([]DatasetOwner, error) {
	var owners []DatasetOwner
	err := s.view(ctx, "list_dataset_owners", EntityDataset, datasetID, func(view TransactionView) error {
		if _, ok := view.FindDataset(datasetID); !ok {
			return domain.ErrNotFound{Entity: EntityDataset, ID: datasetID}
		}
		owners = datasetOwners(view, datasetID)
		return nil
	})
	return owners, err
}

func datasetOwners(view TransactionView, datasetID string) []DatasetOwner {
	var owners []DatasetOwner
	add := func(entity EntityType, id string, ids []string) {
		for _, candidate := range ids {
			if candidate == datasetID {
				owners = append(owners, DatasetOwner{Entity: entity, ID: id})
				return
			}
		}
	}
	for _, rg := range view.ListReferenceGenomes() {
		add(EntityReferenceGenome, rg.ID, rg.DatasetIDs)
	}
	for _, ag := range view.ListAlignmentGroups() {
		add(EntityAlignmentGroup, ag.ID, ag.DatasetIDs)
	}
	for _, sample := range view.ListExperimentSamples() {
		add(EntityExperimentSample, sample.ID, sample.DatasetIDs)
	}
	for _, sa := range view.ListSampleAlignments() {
		add(EntitySampleAlignment, sa.ID, sa.DatasetIDs)
	}
	return owners
}

func ownedDatasetIDs(view TransactionView, owner DatasetOwner) ([]string, error) {
	switch owner.Entity {
	case EntityReferenceGenome:
		if rg, ok := view.FindReferenceGenome(owner.ID); ok {
			return rg.DatasetIDs, nil
		}
	case EntityAlignmentGroup:
		if ag, ok := view.FindAlignmentGroup(owner.ID); ok {
			return ag.DatasetIDs, nil
		}
	case EntityExperimentSample:
		if sample, ok := view.FindExperimentSample(owner.ID); ok {
			return sample.DatasetIDs, nil
		}
	case EntitySampleAlignment:
		if sa, ok := view.FindSampleAlignment(owner.ID); ok {
			return sa.DatasetIDs, nil
		}
	default:
		return nil, fmt.Errorf("%s does not own datasets", owner.Entity)
	}
	return nil, domain.ErrNotFound{Entity: owner.Entity, ID: owner.ID}
}

// DatasetWithType returns the owner's first dataset of the given type whose
// compression state matches compressed.
func (s *Service) DatasetWithType(ctx context.Context, owner DatasetOwner, typ DatasetType, compressed bool) (Dataset, error) {
	var found Dataset
	err := s.view(ctx, "dataset_with_type", owner.Entity, owner.ID, func(view TransactionView) error {
		ids, err := ownedDatasetIDs(view, owner)
		if err != nil {
			return err
		}
		for _, id := range ids {
			ds, ok := view.FindDataset(id)
			if ok && ds.Type == typ && dataset.IsCompressed(ds) == compressed {
				found = ds
				return nil
			}
		}
		return domain.ErrNotFound{Entity: EntityDataset, ID: fmt.Sprintf("%s of %s %s", typ, owner.Entity, owner.ID)}
	})
	return found, err
}

// CompressDataset writes a gzip copy of the dataset file at its location plus
// suffix, records it as a new dataset of the same type and attaches it to every
// owner of the source. Only gzip suffixes are accepted.
func (s *Service) CompressDataset(ctx context.Context, datasetID, suffix string) (Dataset, error) {
	if s.blobs == nil {
		return Dataset{}, ErrNoBlobStore
	}
	suffix, err := dataset.CompressedSuffix(suffix)
	if err != nil {
		return Dataset{}, err
	}
	var source Dataset
	if err := s.store.View(ctx, func(view TransactionView) error {
		var ok bool
		if source, ok = view.FindDataset(datasetID); !ok {
			return domain.ErrNotFound{Entity: EntityDataset, ID: datasetID}
		}
		return nil
	}); err != nil {
		return Dataset{}, err
	}
	if dataset.IsCompressed(source) {
		return Dataset{}, fmt.Errorf("dataset %s: %w", datasetID, ErrAlreadyCompressed)
	}

	target := source.FilesystemLocation + suffix
	if _, err := dataset.Compress(ctx, s.blobs, source.FilesystemLocation, target); err != nil {
		return Dataset{}, err
	}

	var created Dataset
	_, err = s.run(ctx, "compress_dataset", EntityDataset, &created.ID, func(tx Transaction) error {
		if _, ok := tx.Snapshot().FindDataset(datasetID); !ok {
			return domain.ErrNotFound{Entity: EntityDataset, ID: datasetID}
		}
		var err error
		created, err = tx.CreateDataset(Dataset{
			Label:              source.Label,
			Type:               source.Type,
			FilesystemLocation: target,
			Status:             domain.DatasetStatusReady,
		})
		if err != nil {
			return err
		}
		for _, owner := range datasetOwners(tx.Snapshot(), datasetID) {
			if err := tx.AttachDataset(owner.Entity, owner.ID, created.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if _, derr := s.blobs.Delete(ctx, target); derr != nil {
			s.logger.Warn("remove orphaned compressed file", "key", target, "error", derr)
		}
		return Dataset{}, err
	}
	return created, nil
}

// DatasetShellArg returns the dataset location as a shell argument, wrapped in
// a decompressing process substitution when the file is compressed.
func (s *Service) DatasetShellArg(ctx context.Context, datasetID string) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	var ds Dataset
	err := s.view(ctx, "dataset_shell_arg", EntityDataset, datasetID, func(view TransactionView) error {
		var ok bool
		if ds, ok = view.FindDataset(datasetID); !ok {
			return domain.ErrNotFound{Entity: EntityDataset, ID: datasetID}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return dataset.WrapIfCompressed(ds, s.blobs), nil
}
