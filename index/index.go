// Package index implements the in-memory mass-tolerance search index.
//
// Entries are partitioned into discrete mass bins of width 1/binsPerDalton;
// bins are the unit of both in-memory ordering and on-disk segmentation.
// The index is generic over the Record capability, so any entry or parent
// type exposing a mass and an owning-parent position can be indexed with the
// same implementation.
//
// The index is not safe for concurrent mutation. Callers must not Add or Sort
// while a Search iterator is live; independent index instances may be used in
// parallel freely.
package index

import (
	"fmt"
	"iter"
	"math"
	"slices"
)

// Record is the capability every indexed entry and parent must expose.
// Mass places a record in a bin; ParentID links an entry to its parent's
// position in the parent sequence (parents return their own identity).
type Record interface {
	Mass() float32
	ParentID() uint32
}

// SortType selects the ordering of entries within each bin.
type SortType uint8

const (
	// Unsorted is the state of a freshly built or freshly loaded index.
	Unsorted SortType = iota
	// ByMass orders entries within each bin by ascending mass. This enables
	// the binary-search fast path during tolerance queries.
	ByMass
	// ByParentID orders entries within each bin by ascending owning-parent
	// position, the natural order for per-parent traversal.
	ByParentID
)

// String implements fmt.Stringer.
func (s SortType) String() string {
	switch s {
	case ByMass:
		return "by-mass"
	case ByParentID:
		return "by-parent-id"
	default:
		return "unsorted"
	}
}

// Interval is a half-open range [Start, End) over parent positions.
type Interval struct {
	Start uint32
	End   uint32
}

// Contains reports whether the parent position i falls inside the interval.
func (iv Interval) Contains(i uint32) bool {
	return i >= iv.Start && i < iv.End
}

// Len returns the number of positions covered by the interval.
func (iv Interval) Len() int {
	if iv.End <= iv.Start {
		return 0
	}
	return int(iv.End - iv.Start)
}

// ErrMassOutOfRange is returned by Add when an entry's mass exceeds the
// envelope the index was built for.
type ErrMassOutOfRange struct {
	Mass        float32
	MaxItemMass float32
}

func (e *ErrMassOutOfRange) Error() string {
	return fmt.Sprintf("mass %g exceeds index envelope %g", e.Mass, e.MaxItemMass)
}

// ErrSegmentOutOfRange is returned by FromParts when a stored segment id does
// not map to any bin of the index envelope.
type ErrSegmentOutOfRange struct {
	Segment uint64
	Bins    int
}

func (e *ErrSegmentOutOfRange) Error() string {
	return fmt.Sprintf("segment id %d outside the %d-bin envelope", e.Segment, e.Bins)
}

// SearchIndex owns a parent sequence and the bin-partitioned entry lists.
// T is the entry type, P the parent type.
type SearchIndex[T Record, P Record] struct {
	bins    [][]T
	parents []P

	binsPerDalton uint32
	maxItemMass   float32
	sortedBy      SortType
}

// New creates an empty index covering masses up to maxItemMass at a binning
// resolution of binsPerDalton bins per unit mass.
func New[T Record, P Record](binsPerDalton uint32, maxItemMass float32) *SearchIndex[T, P] {
	return &SearchIndex[T, P]{
		bins:          make([][]T, binCount(binsPerDalton, maxItemMass)),
		binsPerDalton: binsPerDalton,
		maxItemMass:   maxItemMass,
	}
}

func binCount(binsPerDalton uint32, maxItemMass float32) int {
	return int(math.Floor(float64(maxItemMass)*float64(binsPerDalton))) + 1
}

// binFor returns the bin index for a mass. Negative masses clamp to bin 0;
// the caller checks the upper bound.
func (si *SearchIndex[T, P]) binFor(m float64) int {
	b := int(math.Floor(m * float64(si.binsPerDalton)))
	if b < 0 {
		return 0
	}
	return b
}

// BinsPerDalton returns the binning resolution.
func (si *SearchIndex[T, P]) BinsPerDalton() uint32 { return si.binsPerDalton }

// MaxItemMass returns the largest mass the index was built to accommodate.
func (si *SearchIndex[T, P]) MaxItemMass() float32 { return si.maxItemMass }

// SortedBy returns the current within-bin ordering.
func (si *SearchIndex[T, P]) SortedBy() SortType { return si.sortedBy }

// Parents returns the parent sequence. The slice is owned by the index and
// must not be mutated.
func (si *SearchIndex[T, P]) Parents() []P { return si.parents }

// NumParents returns the number of parents.
func (si *SearchIndex[T, P]) NumParents() int { return len(si.parents) }

// NumBins returns the total number of bins in the envelope.
func (si *SearchIndex[T, P]) NumBins() int { return len(si.bins) }

// NumEntries returns the total entry count across all bins.
func (si *SearchIndex[T, P]) NumEntries() int {
	n := 0
	for _, bin := range si.bins {
		n += len(bin)
	}
	return n
}

// Add appends an entry to the bin derived from its mass. The bin's ordering
// invariant is invalidated until the next Sort.
func (si *SearchIndex[T, P]) Add(entry T) error {
	b := si.binFor(float64(entry.Mass()))
	if b >= len(si.bins) {
		return &ErrMassOutOfRange{Mass: entry.Mass(), MaxItemMass: si.maxItemMass}
	}
	si.bins[b] = append(si.bins[b], entry)
	si.sortedBy = Unsorted
	return nil
}

// AddParent appends a parent to the parent sequence. Its position in that
// sequence is the parent's index for interval purposes.
func (si *SearchIndex[T, P]) AddParent(parent P) {
	si.parents = append(si.parents, parent)
}

// Sort orders entries within every bin by the given key and orders the parent
// sequence by ascending mass, as required by ParentsFor. Sorting is stable,
// so sorting an already-sorted index is observably a no-op.
func (si *SearchIndex[T, P]) Sort(mode SortType) {
	slices.SortStableFunc(si.parents, func(a, b P) int {
		switch {
		case a.Mass() < b.Mass():
			return -1
		case a.Mass() > b.Mass():
			return 1
		default:
			return 0
		}
	})

	for _, bin := range si.bins {
		switch mode {
		case ByParentID:
			slices.SortStableFunc(bin, func(a, b T) int {
				switch {
				case a.ParentID() < b.ParentID():
					return -1
				case a.ParentID() > b.ParentID():
					return 1
				default:
					return 0
				}
			})
		default:
			slices.SortStableFunc(bin, func(a, b T) int {
				switch {
				case a.Mass() < b.Mass():
					return -1
				case a.Mass() > b.Mass():
					return 1
				default:
					return 0
				}
			})
		}
	}

	if mode == ByParentID {
		si.sortedBy = ByParentID
	} else {
		si.sortedBy = ByMass
	}
}

// Segments iterates the non-empty bins in ascending bin order, yielding the
// dense bin index and the bin's entries. This is the index's internal bin
// order, and the yielded index is the segment id used for on-disk batches.
// The yielded slices are owned by the index and must not be mutated.
func (si *SearchIndex[T, P]) Segments() iter.Seq2[uint64, []T] {
	return func(yield func(uint64, []T) bool) {
		for b, entries := range si.bins {
			if len(entries) == 0 {
				continue
			}
			if !yield(uint64(b), entries) {
				return
			}
		}
	}
}

// FromParts assembles an index from previously serialized components. Each
// map key is the opaque segment id recorded at write time, which for this
// implementation equals the dense bin index. Bin membership of individual
// entries is trusted, not revalidated; within-bin order is whatever the
// caller provides, so the assembled index reports Unsorted and queries take
// the ordering-agnostic path until Sort is called.
func FromParts[T Record, P Record](binsPerDalton uint32, maxItemMass float32, parents []P, segments map[uint64][]T) (*SearchIndex[T, P], error) {
	si := New[T, P](binsPerDalton, maxItemMass)
	si.parents = parents
	for segment, entries := range segments {
		if segment >= uint64(len(si.bins)) {
			return nil, &ErrSegmentOutOfRange{Segment: segment, Bins: len(si.bins)}
		}
		si.bins[segment] = entries
	}
	return si, nil
}
