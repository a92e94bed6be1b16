package model

import (
	"fmt"
	"strconv"
)

// Series classifies a fragment ion by its cleavage series.
type Series uint8

const (
	// SeriesUnknown is the default classification for fragments without a
	// recognized series. Ordinals are meaningless for it.
	SeriesUnknown Series = iota
	SeriesB
	SeriesY
	SeriesC
	SeriesZ
	SeriesA
	SeriesX
	SeriesPrecursor
	SeriesPeptideY
	SeriesOxonium
	SeriesInternal
)

// HasOrdinal reports whether a position ordinal is meaningful for the series.
// Internal and oxonium ions, like unknown fragments, carry no backbone position.
func (s Series) HasOrdinal() bool {
	switch s {
	case SeriesUnknown, SeriesInternal, SeriesOxonium:
		return false
	default:
		return true
	}
}

// String implements fmt.Stringer. Backbone series render as their single letter.
func (s Series) String() string {
	switch s {
	case SeriesB:
		return "b"
	case SeriesY:
		return "y"
	case SeriesC:
		return "c"
	case SeriesZ:
		return "z"
	case SeriesA:
		return "a"
	case SeriesX:
		return "x"
	case SeriesPrecursor:
		return "Precursor"
	case SeriesPeptideY:
		return "PeptideY"
	case SeriesOxonium:
		return "Oxonium"
	case SeriesInternal:
		return "Internal"
	case SeriesUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("series(%d)", uint8(s))
	}
}

// ErrEmptyFragmentName is returned when a fragment name is the empty string.
type ErrEmptyFragmentName struct{}

func (e *ErrEmptyFragmentName) Error() string {
	return "fragment name cannot be an empty string"
}

// ErrUnknownSeries is returned when a fragment name starts with an
// unrecognized series label. Label holds the offending substring.
type ErrUnknownSeries struct {
	Label string
}

func (e *ErrUnknownSeries) Error() string {
	return fmt.Sprintf("unknown series label %q", e.Label)
}

// ErrInvalidOrdinal is returned when the ordinal part of a fragment name is
// not an unsigned integer. Ordinal holds the offending substring.
type ErrInvalidOrdinal struct {
	Ordinal string
	cause   error
}

func (e *ErrInvalidOrdinal) Error() string {
	return fmt.Sprintf("invalid ordinal value %q, should be an integer", e.Ordinal)
}

func (e *ErrInvalidOrdinal) Unwrap() error { return e.cause }

// ParseFragmentName parses the compact fragment-name grammar, e.g. "b2" into
// series b, ordinal 2. The first byte selects the backbone series; the rest
// must be an unsigned decimal ordinal.
func ParseFragmentName(s string) (Series, uint16, error) {
	if len(s) == 0 {
		return SeriesUnknown, 0, &ErrEmptyFragmentName{}
	}

	var series Series
	switch s[0] {
	case 'b':
		series = SeriesB
	case 'y':
		series = SeriesY
	case 'c':
		series = SeriesC
	case 'z':
		series = SeriesZ
	case 'a':
		series = SeriesA
	case 'x':
		series = SeriesX
	default:
		return SeriesUnknown, 0, &ErrUnknownSeries{Label: s[:1]}
	}

	ordinal, err := strconv.ParseUint(s[1:], 10, 16)
	if err != nil {
		return SeriesUnknown, 0, &ErrInvalidOrdinal{Ordinal: s[1:], cause: err}
	}
	return series, uint16(ordinal), nil
}
