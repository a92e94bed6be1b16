// Package mass defines the numeric semantics of mass error tolerances.
//
// A Tolerance describes the acceptance window around a query mass, either as
// parts-per-million of the query (relative) or as fixed daltons (absolute).
// All functions are pure; tolerance math is performed in float64 even though
// stored masses are float32, so the accept test is deterministic across
// platforms.
package mass

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Unit is the unit of a Tolerance magnitude.
type Unit uint8

const (
	// UnitPPM interprets the magnitude as parts-per-million of the query mass.
	UnitPPM Unit = iota
	// UnitDa interprets the magnitude as an absolute width in daltons.
	UnitDa
)

// String implements fmt.Stringer.
func (u Unit) String() string {
	switch u {
	case UnitPPM:
		return "ppm"
	case UnitDa:
		return "da"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

// Tolerance is a mass error tolerance: a magnitude plus a unit.
// The zero value is 0 ppm, which matches only exact masses.
type Tolerance struct {
	Value float64
	Unit  Unit
}

// PPM returns a relative tolerance of v parts-per-million.
func PPM(v float64) Tolerance {
	return Tolerance{Value: v, Unit: UnitPPM}
}

// Da returns an absolute tolerance of v daltons.
func Da(v float64) Tolerance {
	return Tolerance{Value: v, Unit: UnitDa}
}

// Delta returns the half-width of the acceptance window for query mass m.
func (t Tolerance) Delta(m float64) float64 {
	switch t.Unit {
	case UnitPPM:
		return m * t.Value / 1e6
	default:
		return t.Value
	}
}

// Window returns the inclusive acceptance window [m-delta, m+delta] for query mass m.
func (t Tolerance) Window(m float64) (lo, hi float64) {
	d := t.Delta(m)
	return m - d, m + d
}

// Contains reports whether candidate lies within the window around m.
// The distance test is exact, not pre-rounded to any bin boundary.
func (t Tolerance) Contains(m, candidate float64) bool {
	return math.Abs(candidate-m) <= t.Delta(m)
}

// String renders the tolerance in the conventional compact form, e.g. "10ppm" or "0.02da".
func (t Tolerance) String() string {
	return strconv.FormatFloat(t.Value, 'g', -1, 64) + t.Unit.String()
}

// Parse parses the compact tolerance form produced by String.
func Parse(s string) (Tolerance, error) {
	trimmed := strings.TrimSpace(strings.ToLower(s))
	var unit Unit
	var num string
	switch {
	case strings.HasSuffix(trimmed, "ppm"):
		unit = UnitPPM
		num = strings.TrimSuffix(trimmed, "ppm")
	case strings.HasSuffix(trimmed, "da"):
		unit = UnitDa
		num = strings.TrimSuffix(trimmed, "da")
	default:
		return Tolerance{}, fmt.Errorf("mass: tolerance %q has no recognized unit", s)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return Tolerance{}, fmt.Errorf("mass: tolerance %q has invalid magnitude: %w", s, err)
	}
	return Tolerance{Value: v, Unit: unit}, nil
}
