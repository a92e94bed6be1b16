// Package model defines the concrete record types indexed by fragindex:
// fragment ions and their precursor peptides, plus the fragment-name grammar.
package model

import "fmt"

// Fragment is a single fragment ion. Mass is either m/z or neutral mass,
// depending on the caller's convention; the index does not interpret it.
// Fragments are immutable once constructed.
type Fragment struct {
	FragmentMass float32
	Parent       uint32
	Series       Series
	Ordinal      uint16
}

// NewFragment constructs a fragment owned by the parent at the given position.
func NewFragment(m float32, parent uint32, series Series, ordinal uint16) Fragment {
	return Fragment{FragmentMass: m, Parent: parent, Series: series, Ordinal: ordinal}
}

// Mass returns the fragment mass.
func (f Fragment) Mass() float32 { return f.FragmentMass }

// ParentID returns the position of the owning parent.
func (f Fragment) ParentID() uint32 { return f.Parent }

// Name renders the fragment in the compact name grammar when the series
// carries an ordinal, and the bare series name otherwise.
func (f Fragment) Name() string {
	if f.Series.HasOrdinal() {
		return fmt.Sprintf("%s%d", f.Series, f.Ordinal)
	}
	return f.Series.String()
}
