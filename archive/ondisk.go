package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mzkit/fragindex/blobstore"
	"github.com/mzkit/fragindex/index"
	"github.com/mzkit/fragindex/mass"
)

// OnDisk is a lazy handle to a persisted index. Opening one validates that
// all three artifacts exist and decodes only the metadata; parents are
// materialized on first use and cached, and entries stay on disk until the
// handle is promoted to a full in-memory index with Load.
type OnDisk[T index.Record, P index.Record] struct {
	store   blobstore.Store
	entries BatchCodec[T]
	parents BatchCodec[P]
	meta    Metadata

	mu            sync.Mutex
	parentRecords []P
	parentsLoaded bool
}

// Open validates the three artifacts of a persisted index and returns a
// handle over them. A missing artifact is reported as an ErrArtifactNotFound
// naming that artifact; a present artifact with a bad header is reported as
// ErrMalformedArchive.
func Open[T index.Record, P index.Record](
	ctx context.Context,
	store blobstore.Store,
	entries BatchCodec[T],
	parents BatchCodec[P],
) (*OnDisk[T, P], error) {
	meta, err := ReadMetadata(ctx, store)
	if err != nil {
		return nil, err
	}

	if err := validateArtifact(ctx, store, KindParents, parents.ArchiveName(), parents.Schema()); err != nil {
		return nil, err
	}
	if err := validateArtifact(ctx, store, KindEntries, entries.ArchiveName(), entries.Schema()); err != nil {
		return nil, err
	}

	return &OnDisk[T, P]{
		store:   store,
		entries: entries,
		parents: parents,
		meta:    meta,
	}, nil
}

// validateArtifact checks existence and header of one artifact without
// decoding any batch.
func validateArtifact(ctx context.Context, store blobstore.Store, kind Kind, name string, schema *Schema) error {
	blob, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return &ErrArtifactNotFound{Artifact: name, cause: err}
		}
		return fmt.Errorf("opening %q: %w", name, err)
	}
	defer blob.Close()

	if _, err := NewReader(blobReader(blob), kind, schema); err != nil {
		return &ErrMalformedArchive{Artifact: name, cause: err}
	}
	return nil
}

// Metadata returns the bin envelope the index was built with.
func (d *OnDisk[T, P]) Metadata() Metadata { return d.meta }

// Parents returns the parent sequence in its stored order, reading it from
// the store on the first successful call and serving the cached copy
// afterwards. A failed read is not cached, so a later call retries. The
// slice is owned by the handle and must not be mutated.
func (d *OnDisk[T, P]) Parents(ctx context.Context) ([]P, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.parentsLoaded {
		return d.parentRecords, nil
	}

	records, err := readAll(ctx, d.store, KindParents, d.parents)
	if err != nil {
		return nil, err
	}
	d.parentRecords = records
	d.parentsLoaded = true
	return records, nil
}

// ParentsFor returns the interval of parent positions whose mass falls in the
// tolerance window around m, materializing parents if needed. It assumes the
// index was written with parents in ascending mass order.
func (d *OnDisk[T, P]) ParentsFor(ctx context.Context, m float64, tol mass.Tolerance) (index.Interval, error) {
	parents, err := d.Parents(ctx)
	if err != nil {
		return index.Interval{}, err
	}
	return index.ParentInterval(parents, m, tol), nil
}

// ParentsForRange returns the union interval covering every parent matching
// any mass in [low, high].
func (d *OnDisk[T, P]) ParentsForRange(ctx context.Context, low, high float64, tol mass.Tolerance) (index.Interval, error) {
	parents, err := d.Parents(ctx)
	if err != nil {
		return index.Interval{}, err
	}
	return index.Interval{
		Start: index.ParentInterval(parents, low, tol).Start,
		End:   index.ParentInterval(parents, high, tol).End,
	}, nil
}

// Load reads the entries artifact and promotes the handle to a full
// in-memory index. The loaded index reports index.Unsorted.
func (d *OnDisk[T, P]) Load(ctx context.Context) (*index.SearchIndex[T, P], error) {
	parents, err := d.Parents(ctx)
	if err != nil {
		return nil, err
	}

	segments := make(map[uint64][]T)
	err = readArchive(ctx, d.store, KindEntries, d.entries, func(items []T, segmentID uint64) error {
		segments[segmentID] = append(segments[segmentID], items...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	si, err := index.FromParts(d.meta.BinsPerDalton, d.meta.MaxItemMass, parents, segments)
	if err != nil {
		return nil, &ErrMalformedArchive{Artifact: d.entries.ArchiveName(), cause: err}
	}
	return si, nil
}
