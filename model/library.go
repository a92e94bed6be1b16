package model

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// LibraryEntry pairs a peptide with its fragment ions, in file order.
type LibraryEntry struct {
	Peptide   Peptide
	Fragments []Fragment
}

// ReadFragmentLibrary reads the CSV interchange format used for fragment
// libraries and test fixtures. The first row is a header and is skipped.
// Each subsequent row is either
//
//	PEPTIDE,<sequence>,<mass>
//
// opening a new peptide (IDs are assigned in file order), or
//
//	FRAGMENT,<name>,<mass>
//
// attaching a fragment to the most recent peptide. Fragment names follow the
// grammar accepted by ParseFragmentName.
func ReadFragmentLibrary(r io.Reader) ([]LibraryEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("model: reading library header: %w", err)
	}

	var entries []LibraryEntry
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("model: reading library row: %w", err)
		}

		switch record[0] {
		case "PEPTIDE":
			m, err := strconv.ParseFloat(record[2], 32)
			if err != nil {
				return nil, fmt.Errorf("model: peptide %q has invalid mass %q: %w", record[1], record[2], err)
			}
			id := uint32(len(entries))
			entries = append(entries, LibraryEntry{
				Peptide: NewPeptide(float32(m), id, 0, 0, record[1]),
			})
		case "FRAGMENT":
			if len(entries) == 0 {
				return nil, fmt.Errorf("model: fragment %q appears before any peptide", record[1])
			}
			series, ordinal, err := ParseFragmentName(record[1])
			if err != nil {
				return nil, fmt.Errorf("model: fragment name %q: %w", record[1], err)
			}
			m, err := strconv.ParseFloat(record[2], 32)
			if err != nil {
				return nil, fmt.Errorf("model: fragment %q has invalid mass %q: %w", record[1], record[2], err)
			}
			last := &entries[len(entries)-1]
			last.Fragments = append(last.Fragments, NewFragment(float32(m), last.Peptide.ID, series, ordinal))
		default:
			return nil, fmt.Errorf("model: unknown record type %q", record[0])
		}
	}
	return entries, nil
}
