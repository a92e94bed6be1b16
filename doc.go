// Package fragindex provides an embedded mass-tolerance search index for
// mass-spectrometry fragment ions.
//
// A fragment index answers one question fast: given an observed mass and a
// tolerance, which known fragment ions could have produced it? Entries are
// partitioned into discrete mass bins, so a tolerance query touches only the
// handful of bins its window overlaps.
//
//   - Generic core: any record with a mass and a parent position can be
//     indexed, not just peptide fragments
//   - Lazy result iterators with early termination
//   - Parent-interval and Roaring-Bitmap result filtering
//   - Compact binary columnar persistence (zstd, lz4 or s2 per batch)
//   - Pluggable blob storage: local directory, in-memory, or S3
//   - Lazy on-disk handles that answer parent queries without loading entries
//
// # Quick Start
//
// Build an index from a fragment library and search it:
//
//	entries, _ := model.ReadFragmentLibrary(file)
//	si, _ := fragindex.BuildFragmentIndex(entries, 100, 10000.0)
//	si.Sort(index.ByMass)
//
//	tol := mass.PPM(10)
//	for f := range si.Search(113.084, tol, nil) {
//	    fmt.Println(f.Name(), f.FragmentMass)
//	}
//
// Restrict hits to precursors near a known parent mass:
//
//	iv := si.ParentsFor(850.3, mass.PPM(10))
//	for f := range si.Search(113.084, tol, &iv) {
//	    process(f)
//	}
//
// # Persistence
//
// Local mode:
//
//	ctx := context.Background()
//	_ = fragindex.WriteDir(ctx, "./index", si)
//	si, _ = fragindex.ReadDir(ctx, "./index")
//
// Cloud mode:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/yeast/"))
//	_ = fragindex.Write(ctx, store, si)
//	handle, _ := fragindex.Open(ctx, store) // metadata only, entries stay remote
//	iv, _ := handle.ParentsFor(ctx, 850.3, mass.PPM(10))
package fragindex
