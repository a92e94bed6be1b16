package index

import (
	"iter"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/mzkit/fragindex/mass"
)

// Search returns a lazy sequence of entries whose mass lies within tolerance
// of m, optionally restricted to parents whose position falls inside iv.
//
// The tolerance window may span a bin boundary, so every bin the window
// overlaps is scanned, not just the bin containing m. When the index is
// sorted ByMass each candidate bin is entered via binary search and left at
// the first entry beyond the window; in any other ordering the whole bin is
// scanned, which is correct but slower. The exact distance test
// |entry.mass - m| <= delta is applied to every candidate either way.
//
// The returned sequence is restartable. The index must not be mutated while
// an iteration is in progress.
func (si *SearchIndex[T, P]) Search(m float64, tol mass.Tolerance, iv *Interval) iter.Seq[T] {
	return si.searchFunc(m, tol, func(e T) bool {
		return iv == nil || iv.Contains(e.ParentID())
	})
}

// SearchParentSet is Search restricted to an arbitrary set of parent
// positions instead of a contiguous interval. A nil set matches everything.
func (si *SearchIndex[T, P]) SearchParentSet(m float64, tol mass.Tolerance, parents *roaring.Bitmap) iter.Seq[T] {
	return si.searchFunc(m, tol, func(e T) bool {
		return parents == nil || parents.Contains(e.ParentID())
	})
}

func (si *SearchIndex[T, P]) searchFunc(m float64, tol mass.Tolerance, accept func(T) bool) iter.Seq[T] {
	return func(yield func(T) bool) {
		lo, hi := tol.Window(m)
		if len(si.bins) == 0 || hi < 0 {
			return
		}

		first := si.binFor(lo)
		last := si.binFor(hi)
		if first >= len(si.bins) {
			return
		}
		if last >= len(si.bins) {
			last = len(si.bins) - 1
		}

		byMass := si.sortedBy == ByMass
		for b := first; b <= last; b++ {
			bin := si.bins[b]
			start := 0
			if byMass {
				start = sort.Search(len(bin), func(i int) bool {
					return float64(bin[i].Mass()) >= lo
				})
			}
			for i := start; i < len(bin); i++ {
				e := bin[i]
				em := float64(e.Mass())
				if byMass && em > hi {
					break
				}
				if !tol.Contains(m, em) {
					continue
				}
				if !accept(e) {
					continue
				}
				if !yield(e) {
					return
				}
			}
		}
	}
}

// ParentsFor returns the half-open interval of parent positions whose mass
// lies within tolerance of m. The parent sequence must be in ascending mass
// order, which Sort guarantees; on an index assembled from an archive the
// order is whatever was written.
func (si *SearchIndex[T, P]) ParentsFor(m float64, tol mass.Tolerance) Interval {
	return ParentInterval(si.parents, m, tol)
}

// ParentsForRange returns the union interval covering every parent matching
// any mass in [low, high]: it starts where ParentsFor(low) starts and ends
// where ParentsFor(high) ends.
func (si *SearchIndex[T, P]) ParentsForRange(low, high float64, tol mass.Tolerance) Interval {
	return Interval{
		Start: ParentInterval(si.parents, low, tol).Start,
		End:   ParentInterval(si.parents, high, tol).End,
	}
}

// ParentInterval binary-searches a mass-ascending parent slice for the
// half-open interval of positions whose mass falls inside the tolerance
// window around m.
func ParentInterval[P Record](parents []P, m float64, tol mass.Tolerance) Interval {
	lo, hi := tol.Window(m)
	start := sort.Search(len(parents), func(i int) bool {
		return float64(parents[i].Mass()) >= lo
	})
	end := sort.Search(len(parents), func(i int) bool {
		return float64(parents[i].Mass()) > hi
	})
	return Interval{Start: uint32(start), End: uint32(end)}
}
