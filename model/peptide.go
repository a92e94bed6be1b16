package model

// Peptide is a precursor record. ID doubles as the peptide's position in the
// index's parent sequence; interval filters compare fragment parent IDs
// against positions, so callers should assign IDs in ascending-mass order.
//
// Aux0 and Aux1 are caller-defined numeric slots (charge, retention-time
// bucket, protein reference, ...). The index never interprets them; they are
// carried through archives unchanged.
type Peptide struct {
	PeptideMass float32
	ID          uint32
	Aux0        uint16
	Aux1        uint16
	Sequence    string
}

// NewPeptide constructs a peptide record.
func NewPeptide(m float32, id uint32, aux0, aux1 uint16, sequence string) Peptide {
	return Peptide{PeptideMass: m, ID: id, Aux0: aux0, Aux1: aux1, Sequence: sequence}
}

// Mass returns the precursor mass.
func (p Peptide) Mass() float32 { return p.PeptideMass }

// ParentID returns the peptide's own identity.
func (p Peptide) ParentID() uint32 { return p.ID }
