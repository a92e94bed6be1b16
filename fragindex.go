package fragindex

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mzkit/fragindex/archive"
	"github.com/mzkit/fragindex/blobstore"
	"github.com/mzkit/fragindex/index"
	"github.com/mzkit/fragindex/model"
)

// Aliases for the peptide/fragment instantiation of the generic core, so most
// callers never spell out the type parameters.
type (
	// Fragment is a fragment-ion entry.
	Fragment = model.Fragment
	// Peptide is a precursor parent record.
	Peptide = model.Peptide
	// FragmentIndex is the in-memory index over fragments and peptides.
	FragmentIndex = index.SearchIndex[model.Fragment, model.Peptide]
	// OnDiskFragmentIndex is the lazy handle to a persisted fragment index.
	OnDiskFragmentIndex = archive.OnDisk[model.Fragment, model.Peptide]
)

// NewFragmentIndex creates an empty fragment index covering masses up to
// maxItemMass at binsPerDalton bins per unit mass.
func NewFragmentIndex(binsPerDalton uint32, maxItemMass float32) *FragmentIndex {
	return index.New[model.Fragment, model.Peptide](binsPerDalton, maxItemMass)
}

// BuildFragmentIndex assembles an index from library entries. Peptides are
// ordered by ascending mass and renumbered so that a peptide's id equals its
// position, which is what parent-interval queries require; fragments follow
// their peptide's new id. The returned index is unsorted; call Sort before
// searching to enable the fast path.
func BuildFragmentIndex(entries []model.LibraryEntry, binsPerDalton uint32, maxItemMass float32) (*FragmentIndex, error) {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b model.LibraryEntry) int {
		switch {
		case a.Peptide.PeptideMass < b.Peptide.PeptideMass:
			return -1
		case a.Peptide.PeptideMass > b.Peptide.PeptideMass:
			return 1
		default:
			return 0
		}
	})

	si := NewFragmentIndex(binsPerDalton, maxItemMass)
	for pos, e := range ordered {
		p := e.Peptide
		p.ID = uint32(pos)
		si.AddParent(p)
		for _, f := range e.Fragments {
			f.Parent = p.ID
			if err := si.Add(f); err != nil {
				return nil, err
			}
		}
	}
	return si, nil
}

// Write persists the index into the store as three archive artifacts.
func Write(ctx context.Context, store blobstore.Store, si *FragmentIndex, optFns ...Option) error {
	o := applyOptions(optFns)
	err := archive.WriteIndex(ctx, store, si, archive.FragmentCodec{}, archive.PeptideCodec{},
		archive.WithCompression(o.compression),
		archive.WithLogger(o.logger.Logger))
	o.logger.LogWrite(ctx, si.NumParents(), si.NumEntries(), err)
	return err
}

// Read loads a persisted index fully into memory. The result is unsorted;
// call Sort to restore the search fast path.
func Read(ctx context.Context, store blobstore.Store, optFns ...Option) (*FragmentIndex, error) {
	o := applyOptions(optFns)
	si, err := archive.ReadIndex(ctx, store, archive.FragmentCodec{}, archive.PeptideCodec{})
	o.logger.LogLoad(ctx, si, err)
	if err != nil {
		return nil, translateError(err)
	}
	return si, nil
}

// Open validates a persisted index and returns a lazy handle that reads
// metadata eagerly but defers parents and entries.
func Open(ctx context.Context, store blobstore.Store, optFns ...Option) (*OnDiskFragmentIndex, error) {
	o := applyOptions(optFns)
	handle, err := archive.Open(ctx, store, archive.FragmentCodec{}, archive.PeptideCodec{})
	if err != nil {
		o.logger.LogOpen(ctx, archive.Metadata{}, err)
		return nil, translateError(err)
	}
	o.logger.LogOpen(ctx, handle.Metadata(), nil)
	return handle, nil
}

// WriteDir persists the index into a local directory.
func WriteDir(ctx context.Context, dir string, si *FragmentIndex, optFns ...Option) error {
	return Write(ctx, blobstore.NewLocalStore(dir), si, optFns...)
}

// ReadDir loads a persisted index from a local directory.
func ReadDir(ctx context.Context, dir string, optFns ...Option) (*FragmentIndex, error) {
	return Read(ctx, blobstore.NewLocalStore(dir), optFns...)
}

// OpenDir returns a lazy handle over a local directory.
func OpenDir(ctx context.Context, dir string, optFns ...Option) (*OnDiskFragmentIndex, error) {
	return Open(ctx, blobstore.NewLocalStore(dir), optFns...)
}

// ReadMany loads several persisted indexes concurrently, one per store. The
// result slice is parallel to stores. The first failure cancels the
// remaining loads.
func ReadMany(ctx context.Context, stores []blobstore.Store, optFns ...Option) ([]*FragmentIndex, error) {
	o := applyOptions(optFns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	out := make([]*FragmentIndex, len(stores))
	for i, store := range stores {
		g.Go(func() error {
			si, err := Read(ctx, store, optFns...)
			if err != nil {
				return err
			}
			out[i] = si
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
