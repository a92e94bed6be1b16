package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzkit/fragindex/blobstore"
	"github.com/mzkit/fragindex/index"
	"github.com/mzkit/fragindex/mass"
	"github.com/mzkit/fragindex/model"
)

// buildLibraryIndex fills an index with 20 peptides (ids assigned in
// ascending mass order) and a few hundred fragments spread over many bins.
func buildLibraryIndex(t *testing.T) *index.SearchIndex[model.Fragment, model.Peptide] {
	t.Helper()

	si := index.New[model.Fragment, model.Peptide](100, 2000.0)
	for i := 0; i < 20; i++ {
		si.AddParent(model.NewPeptide(300.0+10.0*float32(i), uint32(i), 0, 0, fmt.Sprintf("PEPTIDE%02d", i)))
	}
	for i := 0; i < 300; i++ {
		series := model.SeriesB
		if i%2 == 1 {
			series = model.SeriesY
		}
		f := model.NewFragment(100.0+1.37*float32(i), uint32(i%20), series, uint16(i%12+1))
		require.NoError(t, si.Add(f))
	}
	si.Sort(index.ByMass)
	return si
}

func segmentsOf(si *index.SearchIndex[model.Fragment, model.Peptide]) map[uint64][]model.Fragment {
	out := make(map[uint64][]model.Fragment)
	for segment, entries := range si.Segments() {
		out[segment] = append([]model.Fragment(nil), entries...)
	}
	return out
}

func TestWriteReadIndex(t *testing.T) {
	compressions := map[string]Compression{
		"default": DefaultCompression,
		"none":    NoCompression,
		"s2":      S2,
		"lz4":     LZ4(6),
	}

	for name, compression := range compressions {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			si := buildLibraryIndex(t)

			err := WriteIndex(ctx, store, si, FragmentCodec{}, PeptideCodec{}, WithCompression(compression))
			require.NoError(t, err)

			loaded, err := ReadIndex(ctx, store, FragmentCodec{}, PeptideCodec{})
			require.NoError(t, err)

			assert.Equal(t, si.BinsPerDalton(), loaded.BinsPerDalton())
			assert.Equal(t, si.MaxItemMass(), loaded.MaxItemMass())
			assert.Equal(t, index.Unsorted, loaded.SortedBy())
			assert.Equal(t, si.NumParents(), loaded.NumParents())
			assert.Equal(t, si.NumEntries(), loaded.NumEntries())
			assert.Equal(t, si.Parents(), loaded.Parents())
			assert.Equal(t, segmentsOf(si), segmentsOf(loaded))
		})
	}
}

func TestReadIndexSearchEquivalence(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	si := buildLibraryIndex(t)
	require.NoError(t, WriteIndex(ctx, store, si, FragmentCodec{}, PeptideCodec{}))

	loaded, err := ReadIndex(ctx, store, FragmentCodec{}, PeptideCodec{})
	require.NoError(t, err)

	tol := mass.PPM(50)
	for _, m := range []float64{100.0, 247.6, 310.99, 511.0} {
		var want, got []model.Fragment
		for f := range si.Search(m, tol, nil) {
			want = append(want, f)
		}
		for f := range loaded.Search(m, tol, nil) {
			got = append(got, f)
		}
		assert.ElementsMatch(t, want, got, "query mass %g", m)
	}
}

// flakyFragmentCodec encodes a fixed number of batches and then fails,
// simulating a mid-stream writer error.
type flakyFragmentCodec struct {
	FragmentCodec
	calls     int
	failAfter int
}

func (c *flakyFragmentCodec) EncodeBatch(items []model.Fragment, segmentID uint64) (*Batch, error) {
	c.calls++
	if c.calls > c.failAfter {
		return nil, errors.New("encoder out of memory")
	}
	return FragmentCodec{}.EncodeBatch(items, segmentID)
}

func TestWriteIndexFailureDoesNotCommit(t *testing.T) {
	t.Run("FreshStoreStaysUnreadable", func(t *testing.T) {
		ctx := context.Background()
		store := blobstore.NewMemoryStore()
		si := buildLibraryIndex(t)

		err := WriteIndex(ctx, store, si, &flakyFragmentCodec{failAfter: 2}, PeptideCodec{})
		require.Error(t, err)

		// The aborted entries artifact must not exist, so a reload fails
		// loudly instead of returning a truncated-but-valid index.
		_, err = ReadIndex(ctx, store, FragmentCodec{}, PeptideCodec{})
		var notFound *ErrArtifactNotFound
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, FragmentArchiveName, notFound.Artifact)
	})

	t.Run("ExistingArtifactSurvives", func(t *testing.T) {
		ctx := context.Background()
		store := blobstore.NewMemoryStore()
		si := buildLibraryIndex(t)
		require.NoError(t, WriteIndex(ctx, store, si, FragmentCodec{}, PeptideCodec{}))

		err := WriteIndex(ctx, store, si, &flakyFragmentCodec{failAfter: 2}, PeptideCodec{})
		require.Error(t, err)

		loaded, err := ReadIndex(ctx, store, FragmentCodec{}, PeptideCodec{})
		require.NoError(t, err)
		assert.Equal(t, si.NumEntries(), loaded.NumEntries())
		assert.Equal(t, segmentsOf(si), segmentsOf(loaded))
	})
}

func TestReadIndexMissingArtifact(t *testing.T) {
	artifacts := []string{MetadataArchiveName, PeptideArchiveName, FragmentArchiveName}

	for _, missing := range artifacts {
		t.Run(missing, func(t *testing.T) {
			ctx := context.Background()
			store := blobstore.NewMemoryStore()
			require.NoError(t, WriteIndex(ctx, store, buildLibraryIndex(t), FragmentCodec{}, PeptideCodec{}))
			require.NoError(t, store.Delete(ctx, missing))

			_, err := ReadIndex(ctx, store, FragmentCodec{}, PeptideCodec{})
			var notFound *ErrArtifactNotFound
			require.True(t, errors.As(err, &notFound))
			assert.Equal(t, missing, notFound.Artifact)
			assert.True(t, errors.Is(err, blobstore.ErrNotFound))
		})
	}
}

func TestReadIndexCorruptArtifact(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, WriteIndex(ctx, store, buildLibraryIndex(t), FragmentCodec{}, PeptideCodec{}))

	blob, err := store.Open(ctx, FragmentArchiveName)
	require.NoError(t, err)
	data, err := blobstore.ReadAll(blob)
	require.NoError(t, err)
	require.NoError(t, blob.Close())

	data[len(data)-1] ^= 0xff // trailing batch checksum
	w, err := store.Create(ctx, FragmentArchiveName)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = ReadIndex(ctx, store, FragmentCodec{}, PeptideCodec{})
	var malformed *ErrMalformedArchive
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, FragmentArchiveName, malformed.Artifact)
}

func TestOnDisk(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	si := buildLibraryIndex(t)
	require.NoError(t, WriteIndex(ctx, store, si, FragmentCodec{}, PeptideCodec{}))

	handle, err := Open(ctx, store, FragmentCodec{}, PeptideCodec{})
	require.NoError(t, err)

	t.Run("Metadata", func(t *testing.T) {
		assert.Equal(t, Metadata{BinsPerDalton: 100, MaxItemMass: 2000.0}, handle.Metadata())
	})

	t.Run("Parents", func(t *testing.T) {
		parents, err := handle.Parents(ctx)
		require.NoError(t, err)
		assert.Equal(t, si.Parents(), parents)

		again, err := handle.Parents(ctx)
		require.NoError(t, err)
		assert.Same(t, &parents[0], &again[0], "second call must serve the cached slice")
	})

	t.Run("ParentsFor", func(t *testing.T) {
		tol := mass.Da(15)
		iv, err := handle.ParentsFor(ctx, 400.0, tol)
		require.NoError(t, err)
		assert.Equal(t, si.ParentsFor(400.0, tol), iv)

		// Masses 390..410 cover parents 9 through 11.
		assert.Equal(t, index.Interval{Start: 9, End: 12}, iv)
	})

	t.Run("ParentsForRange", func(t *testing.T) {
		tol := mass.Da(5)
		iv, err := handle.ParentsForRange(ctx, 350.0, 420.0, tol)
		require.NoError(t, err)
		assert.Equal(t, si.ParentsForRange(350.0, 420.0, tol), iv)
	})

	t.Run("Load", func(t *testing.T) {
		loaded, err := handle.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, si.NumEntries(), loaded.NumEntries())
		assert.Equal(t, segmentsOf(si), segmentsOf(loaded))
	})
}

func TestOnDiskParentsRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	si := buildLibraryIndex(t)
	require.NoError(t, WriteIndex(ctx, store, si, FragmentCodec{}, PeptideCodec{}))

	handle, err := Open(ctx, store, FragmentCodec{}, PeptideCodec{})
	require.NoError(t, err)

	// First load fails; the failure must not be latched.
	require.NoError(t, store.Delete(ctx, PeptideArchiveName))
	_, err = handle.Parents(ctx)
	require.Error(t, err)

	require.NoError(t, WriteIndex(ctx, store, si, FragmentCodec{}, PeptideCodec{}))
	parents, err := handle.Parents(ctx)
	require.NoError(t, err)
	assert.Equal(t, si.Parents(), parents)
}

func TestOnDiskMissingArtifact(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, WriteIndex(ctx, store, buildLibraryIndex(t), FragmentCodec{}, PeptideCodec{}))
	require.NoError(t, store.Delete(ctx, PeptideArchiveName))

	_, err := Open(ctx, store, FragmentCodec{}, PeptideCodec{})
	var notFound *ErrArtifactNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, PeptideArchiveName, notFound.Artifact)
}

func TestMetadataAlwaysUncompressed(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, WriteIndex(ctx, store, buildLibraryIndex(t), FragmentCodec{}, PeptideCodec{},
		WithCompression(Zstd(19))))

	blob, err := store.Open(ctx, MetadataArchiveName)
	require.NoError(t, err)
	defer blob.Close()
	data, err := blobstore.ReadAll(blob)
	require.NoError(t, err)

	// Batch codec byte sits right after the 16-byte file header and the
	// 8-byte segment id plus 4-byte row count.
	assert.Equal(t, uint8(CodecNone), data[headerSize+12])
}
