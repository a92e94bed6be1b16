package index

import (
	"math"
	"slices"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzkit/fragindex/mass"
)

type testEntry struct {
	m float32
	p uint32
}

func (e testEntry) Mass() float32    { return e.m }
func (e testEntry) ParentID() uint32 { return e.p }

type testParent struct {
	m  float32
	id uint32
}

func (p testParent) Mass() float32    { return p.m }
func (p testParent) ParentID() uint32 { return p.id }

// buildIndex populates an index with entries at deterministic masses spread
// over [100, 900) across ten parents.
func buildIndex(t *testing.T) *SearchIndex[testEntry, testParent] {
	t.Helper()
	si := New[testEntry, testParent](100, 1000)
	for i := range uint32(10) {
		si.AddParent(testParent{m: 100 + float32(i)*80, id: i})
	}
	for i := range 1000 {
		e := testEntry{
			m: 100 + float32(i)*0.8 + float32(i%7)*0.013,
			p: uint32(i % 10),
		}
		require.NoError(t, si.Add(e))
	}
	return si
}

func TestSearchIndex(t *testing.T) {
	t.Run("AddOutOfEnvelope", func(t *testing.T) {
		si := New[testEntry, testParent](100, 1000)
		err := si.Add(testEntry{m: 1000.5})
		var oor *ErrMassOutOfRange
		require.ErrorAs(t, err, &oor)
		assert.Equal(t, float32(1000.5), oor.Mass)
	})

	t.Run("NumEntries", func(t *testing.T) {
		si := buildIndex(t)
		assert.Equal(t, 1000, si.NumEntries())
		assert.Equal(t, 10, si.NumParents())
	})

	t.Run("ToleranceCorrectness", func(t *testing.T) {
		si := buildIndex(t)
		si.Sort(ByMass)

		queries := []float64{100.0, 250.4, 413.37, 899.99, 50.0, 999.0}
		for _, q := range queries {
			got := map[float32]int{}
			for e := range si.Search(q, mass.PPM(200), nil) {
				got[e.m]++
			}

			want := map[float32]int{}
			for i := range 1000 {
				m := 100 + float32(i)*0.8 + float32(i%7)*0.013
				if math.Abs(float64(m)-q) <= q*200/1e6 {
					want[m]++
				}
			}
			assert.Equal(t, want, got, "query %g", q)
		}
	})

	t.Run("BoundarySpanningWindow", func(t *testing.T) {
		// One bin per dalton; a window straddling 500.0 must scan both
		// bin 499 and bin 500.
		si := New[testEntry, testParent](1, 1000)
		require.NoError(t, si.Add(testEntry{m: 499.995}))
		require.NoError(t, si.Add(testEntry{m: 500.004}))
		require.NoError(t, si.Add(testEntry{m: 499.9}))
		require.NoError(t, si.Add(testEntry{m: 500.1}))
		si.Sort(ByMass)

		var got []float32
		for e := range si.Search(500.0, mass.Da(0.01), nil) {
			got = append(got, e.m)
		}
		assert.ElementsMatch(t, []float32{499.995, 500.004}, got)
	})

	t.Run("IntervalFilter", func(t *testing.T) {
		si := buildIndex(t)
		si.Sort(ByMass)

		iv := Interval{Start: 2, End: 5}
		for e := range si.Search(413.37, mass.PPM(5000), &iv) {
			assert.True(t, iv.Contains(e.ParentID()))
		}

		// The unfiltered result must be a superset.
		all := slices.Collect(si.Search(413.37, mass.PPM(5000), nil))
		filtered := slices.Collect(si.Search(413.37, mass.PPM(5000), &iv))
		assert.Greater(t, len(all), len(filtered))
	})

	t.Run("ParentSetFilter", func(t *testing.T) {
		si := buildIndex(t)
		si.Sort(ByMass)

		set := roaring.BitmapOf(1, 4, 7)
		for e := range si.SearchParentSet(413.37, mass.PPM(5000), set) {
			assert.True(t, set.Contains(e.ParentID()))
		}

		// A nil set matches everything the interval-free search matches.
		all := slices.Collect(si.Search(413.37, mass.PPM(5000), nil))
		unfiltered := slices.Collect(si.SearchParentSet(413.37, mass.PPM(5000), nil))
		assert.Equal(t, all, unfiltered)
	})

	t.Run("SearchIsRestartable", func(t *testing.T) {
		si := buildIndex(t)
		si.Sort(ByMass)

		seq := si.Search(250.4, mass.PPM(2000), nil)
		first := slices.Collect(seq)
		second := slices.Collect(seq)
		assert.Equal(t, first, second)
	})

	t.Run("EarlyTermination", func(t *testing.T) {
		si := buildIndex(t)
		si.Sort(ByMass)

		n := 0
		for range si.Search(413.37, mass.PPM(5000), nil) {
			n++
			if n == 2 {
				break
			}
		}
		assert.Equal(t, 2, n)
	})
}

func TestSortIdempotence(t *testing.T) {
	for _, mode := range []SortType{ByMass, ByParentID} {
		t.Run(mode.String(), func(t *testing.T) {
			si := buildIndex(t)
			si.Sort(mode)

			var once [][]testEntry
			for _, entries := range si.Segments() {
				once = append(once, slices.Clone(entries))
			}
			parentsOnce := slices.Clone(si.Parents())

			si.Sort(mode)

			var twice [][]testEntry
			for _, entries := range si.Segments() {
				twice = append(twice, slices.Clone(entries))
			}
			assert.Equal(t, once, twice)
			assert.Equal(t, parentsOnce, si.Parents())
		})
	}
}

func TestParents(t *testing.T) {
	newParents := func() *SearchIndex[testEntry, testParent] {
		si := New[testEntry, testParent](10, 2000)
		for i, m := range []float32{150, 300, 450, 600, 750, 900, 1050, 1200} {
			si.AddParent(testParent{m: m, id: uint32(i)})
		}
		si.Sort(ByMass)
		return si
	}

	t.Run("ParentsFor", func(t *testing.T) {
		si := newParents()
		iv := si.ParentsFor(450, mass.Da(1))
		assert.Equal(t, Interval{Start: 2, End: 3}, iv)

		iv = si.ParentsFor(475, mass.Da(30))
		assert.Equal(t, 1, iv.Len())

		iv = si.ParentsFor(10, mass.Da(1))
		assert.Equal(t, 0, iv.Len())
	})

	t.Run("ParentsForRange", func(t *testing.T) {
		si := newParents()
		iv := si.ParentsForRange(300, 900, mass.PPM(10))
		assert.Equal(t, Interval{Start: 1, End: 6}, iv)
	})

	t.Run("RangeMonotonicity", func(t *testing.T) {
		si := newParents()
		low, high := 200.0, 1100.0
		union := si.ParentsForRange(low, high, mass.PPM(10))
		for _, mid := range []float64{200, 450, 733, 1000, 1100} {
			point := si.ParentsFor(mid, mass.PPM(10))
			if point.Len() == 0 {
				continue
			}
			assert.GreaterOrEqual(t, point.Start, union.Start, "mid %g", mid)
			assert.LessOrEqual(t, point.End, union.End, "mid %g", mid)
		}
	})
}

func TestFromParts(t *testing.T) {
	t.Run("RoundTripStructure", func(t *testing.T) {
		si := buildIndex(t)
		si.Sort(ByMass)

		segments := map[uint64][]testEntry{}
		for id, entries := range si.Segments() {
			segments[id] = slices.Clone(entries)
		}

		rebuilt, err := FromParts(si.BinsPerDalton(), si.MaxItemMass(), slices.Clone(si.Parents()), segments)
		require.NoError(t, err)
		assert.Equal(t, si.NumEntries(), rebuilt.NumEntries())
		assert.Equal(t, si.NumParents(), rebuilt.NumParents())
		assert.Equal(t, Unsorted, rebuilt.SortedBy())

		// Queries on the rebuilt index take the ordering-agnostic path and
		// must still agree with the sorted original.
		want := slices.Collect(si.Search(413.37, mass.PPM(5000), nil))
		got := slices.Collect(rebuilt.Search(413.37, mass.PPM(5000), nil))
		assert.ElementsMatch(t, want, got)
	})

	t.Run("SegmentOutOfRange", func(t *testing.T) {
		_, err := FromParts[testEntry, testParent](10, 100, nil, map[uint64][]testEntry{
			5000: {{m: 1}},
		})
		var oor *ErrSegmentOutOfRange
		require.ErrorAs(t, err, &oor)
	})
}
